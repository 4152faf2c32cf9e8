package responseengine

import (
	"fmt"
	"reflect"

	"github.com/c360studio/semstreams/component"
)

// responseEngineSchema defines the configuration schema.
var responseEngineSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Config holds configuration for the response engine processor component.
type Config struct {
	// StreamName is the JetStream stream for consuming run submissions.
	StreamName string `json:"stream_name" schema:"type:string,description:JetStream stream for run submissions,category:basic,default:IROPS"`

	// ConsumerName is the durable consumer name for run submissions.
	ConsumerName string `json:"consumer_name" schema:"type:string,description:Durable consumer name for run submissions,category:basic,default:response-engine"`

	// InputSubjectPattern is the subject for disruption run submissions.
	InputSubjectPattern string `json:"input_subject_pattern" schema:"type:string,description:Subject for disruption run submissions,category:basic,default:irops.disruption.submitted"`

	// OutputSubjectPrefix is the subject prefix for run responses.
	OutputSubjectPrefix string `json:"output_subject_prefix" schema:"type:string,description:Subject prefix for run responses,category:basic,default:irops.plan.response"`

	// ProgressSubjectPrefix is the subject prefix for run progress events.
	ProgressSubjectPrefix string `json:"progress_subject_prefix" schema:"type:string,description:Subject prefix for run progress events,category:advanced,default:irops.run.progress"`

	// CompletedSubject is where finished plans are published with their
	// audit trails.
	CompletedSubject string `json:"completed_subject" schema:"type:string,description:Subject for completed plans with audit trails,category:advanced,default:irops.plan.completed"`

	// DetectionThresholdPercent is the gate escalation threshold as a
	// percentage. A run escalates only when the combined risk exceeds it.
	DetectionThresholdPercent int `json:"detection_threshold_percent" schema:"type:int,description:Gate escalation threshold as a percentage,category:advanced,default:70,min:1,max:99"`

	// MaxScenarios caps accepted what-if scenarios per run.
	MaxScenarios int `json:"max_scenarios" schema:"type:int,description:Maximum accepted what-if scenarios per run,category:advanced,default:2,min:1,max:8"`

	// CallTimeoutSeconds bounds each reasoning-provider call.
	CallTimeoutSeconds int `json:"call_timeout_seconds" schema:"type:int,description:Per-call reasoning timeout in seconds,category:advanced,default:20,min:1,max:300"`

	// VariantTimeoutSeconds bounds the specialist fan-in per variant.
	VariantTimeoutSeconds int `json:"variant_timeout_seconds" schema:"type:int,description:Specialist fan-in timeout per variant in seconds,category:advanced,default:30,min:1,max:600"`

	// MaxConcurrentVariants caps variants analyzed in parallel.
	MaxConcurrentVariants int `json:"max_concurrent_variants" schema:"type:int,description:Maximum variants analyzed in parallel,category:advanced,default:4,min:1,max:32"`

	// RunTimeoutSeconds bounds one whole run.
	RunTimeoutSeconds int `json:"run_timeout_seconds" schema:"type:int,description:Whole-run timeout in seconds,category:advanced,default:60,min:5,max:600"`

	// ResponseBucketName is the KV bucket name for storing run responses.
	ResponseBucketName string `json:"response_bucket_name" schema:"type:string,description:KV bucket for run responses,category:advanced,default:IROPS_RESPONSES"`

	// ResponseTTLHours is the TTL for run responses in the KV bucket.
	ResponseTTLHours int `json:"response_ttl_hours" schema:"type:int,description:TTL for run responses in hours,category:advanced,default:24,min:1,max:168"`

	// Watch holds snapshot drop-directory configuration.
	Watch WatchConfig `json:"watch" schema:"type:object,description:Snapshot drop-directory configuration,category:advanced"`

	// Ports contains input/output port definitions.
	Ports *component.PortConfig `json:"ports,omitempty" schema:"type:ports,description:Input/output port definitions,category:basic"`
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		StreamName:                "IROPS",
		ConsumerName:              "response-engine",
		InputSubjectPattern:       "irops.disruption.submitted",
		OutputSubjectPrefix:       "irops.plan.response",
		ProgressSubjectPrefix:     "irops.run.progress",
		CompletedSubject:          "irops.plan.completed",
		DetectionThresholdPercent: 70,
		MaxScenarios:              2,
		CallTimeoutSeconds:        20,
		VariantTimeoutSeconds:     30,
		MaxConcurrentVariants:     4,
		RunTimeoutSeconds:         60,
		ResponseBucketName:        "IROPS_RESPONSES",
		ResponseTTLHours:          24,
		Watch:                     DefaultWatchConfig(),
		Ports: &component.PortConfig{
			Inputs: []component.PortDefinition{
				{
					Name:        "run-submissions",
					Type:        "jetstream",
					Subject:     "irops.disruption.submitted",
					StreamName:  "IROPS",
					Description: "Receive disruption run submissions",
					Required:    true,
				},
			},
			Outputs: []component.PortDefinition{
				{
					Name:        "run-responses",
					Type:        "nats",
					Subject:     "irops.plan.response.>",
					Description: "Publish correlated run responses",
					Required:    false,
				},
				{
					Name:        "completed-plans",
					Type:        "nats",
					Subject:     "irops.plan.completed",
					Description: "Publish finished plans with audit trails",
					Required:    false,
				},
				{
					Name:        "run-progress",
					Type:        "nats",
					Subject:     "irops.run.progress.>",
					Description: "Publish stage transition events",
					Required:    false,
				},
			},
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.StreamName == "" {
		return fmt.Errorf("stream_name is required")
	}
	if c.ConsumerName == "" {
		return fmt.Errorf("consumer_name is required")
	}
	if c.InputSubjectPattern == "" {
		return fmt.Errorf("input_subject_pattern is required")
	}
	if c.OutputSubjectPrefix == "" {
		return fmt.Errorf("output_subject_prefix is required")
	}
	if c.DetectionThresholdPercent < 1 || c.DetectionThresholdPercent > 99 {
		return fmt.Errorf("detection_threshold_percent must be in [1,99]")
	}
	if c.MaxScenarios < 1 {
		return fmt.Errorf("max_scenarios must be at least 1")
	}
	if c.CallTimeoutSeconds <= 0 {
		return fmt.Errorf("call_timeout_seconds must be positive")
	}
	if c.VariantTimeoutSeconds <= 0 {
		return fmt.Errorf("variant_timeout_seconds must be positive")
	}
	if c.MaxConcurrentVariants < 1 {
		return fmt.Errorf("max_concurrent_variants must be at least 1")
	}
	if c.RunTimeoutSeconds <= 0 {
		return fmt.Errorf("run_timeout_seconds must be positive")
	}
	if c.Watch.Enabled && c.Watch.Dir == "" {
		return fmt.Errorf("watch.dir is required when watching is enabled")
	}
	return nil
}
