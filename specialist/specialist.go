// Package specialist runs the fixed analysis set {risk, reallocation,
// cost, scheduling} against disruption variants. Adapters are polymorphic
// over provider-backed and heuristic-only modes behind one contract; the
// runner fans the set out per variant, applies the call and fan-in
// deadlines, and settles every specialist exactly once.
package specialist

import (
	"context"
	"encoding/json"
	"time"

	"github.com/c360studio/irops/disruption"
	"github.com/c360studio/irops/reasoning"
)

// Specialist identifies one analysis role.
type Specialist string

const (
	SpecialistRisk         Specialist = "risk"
	SpecialistReallocation Specialist = "reallocation"
	SpecialistCost         Specialist = "cost"
	SpecialistScheduling   Specialist = "scheduling"
)

// Specialists returns the fixed specialist set in its canonical order.
func Specialists() []Specialist {
	return []Specialist{
		SpecialistRisk,
		SpecialistReallocation,
		SpecialistCost,
		SpecialistScheduling,
	}
}

// Status classifies how a specialist settled.
type Status string

const (
	// StatusOK marks a full-quality result.
	StatusOK Status = "ok"

	// StatusDegraded marks a deterministic heuristic fallback after a
	// provider timeout, transport failure, or malformed output.
	StatusDegraded Status = "degraded"

	// StatusFailed marks a specialist that never settled; it is excluded
	// from aggregation.
	StatusFailed Status = "failed"
)

// FailureReasonTimeout is the failure reason recorded when a deadline
// expired.
const FailureReasonTimeout = "timeout"

// Input is what every adapter analyzes: one context variant plus the gate
// verdict that escalated the run.
type Input struct {
	// Context is the variant under analysis, baseline or overlaid.
	Context disruption.Context

	// Gate is the detection verdict for the run.
	Gate disruption.GateDecision

	// ScenarioID is empty for the baseline variant.
	ScenarioID string
}

// Assessment is one specialist's answer, independent of how it was
// produced.
type Assessment struct {
	// Payload is the structured analysis, shaped per specialist.
	Payload map[string]any

	// Reasoning is the specialist's prose summary.
	Reasoning string
}

// Adapter analyzes a disruption variant from a single operational angle.
// Consult is the full-quality path and must honor ctx; Heuristic is the
// deterministic fallback and must be pure: no external calls, no
// randomness, same input same answer.
type Adapter interface {
	Name() Specialist
	Consult(ctx context.Context, input Input) (*Assessment, error)
	Heuristic(input Input) *Assessment
}

// Completer is the slice of the reasoning client the built-in adapters
// depend on.
type Completer interface {
	Complete(ctx context.Context, req reasoning.Request) (*reasoning.Response, error)
}

// Result records how one specialist settled for one variant.
type Result struct {
	Specialist Specialist `json:"specialist"`

	// ScenarioID is empty for the baseline variant.
	ScenarioID string `json:"scenario_id,omitempty"`

	Status Status `json:"status"`

	// Payload holds the structured analysis. Empty for failed results.
	Payload map[string]any `json:"payload,omitempty"`

	// Reasoning is the specialist's prose summary.
	Reasoning string `json:"reasoning,omitempty"`

	DurationMs int64 `json:"duration_ms"`

	// Retries counts extra consult attempts spent on transient transport
	// failures.
	Retries int `json:"retries,omitempty"`

	// FailureReason is "timeout" for deadline expiry, the transport
	// detail otherwise. Empty for ok results.
	FailureReason string `json:"failure_reason,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// VariantResult is the settled outcome of one variant's specialist pass.
type VariantResult struct {
	// ScenarioID is empty for the baseline variant.
	ScenarioID string `json:"scenario_id,omitempty"`

	// Results holds one entry per settled specialist. After a normal
	// settlement or a variant timeout it covers the full set; after
	// caller cancellation it covers only the specialists that settled
	// in time.
	Results map[Specialist]Result `json:"results"`

	// Unsettled lists specialists abandoned by caller cancellation, in
	// canonical order, so the controller can flush them as skipped.
	Unsettled []Specialist `json:"unsettled,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// FanoutResult carries every variant's outcome for one run.
type FanoutResult struct {
	Baseline *VariantResult `json:"baseline"`

	// Scenarios is parallel to the accepted scenario specs.
	Scenarios []*VariantResult `json:"scenarios,omitempty"`
}

// payloadOf renders a typed assessment as the structured map carried on
// results and audit entries.
func payloadOf(v any) map[string]any {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	return m
}

// decodePayload is the inverse of payloadOf, used by consumers that need
// the typed view back.
func decodePayload(payload map[string]any, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// DecodeRisk extracts the typed risk view from a result payload.
func DecodeRisk(payload map[string]any) (*RiskAssessment, error) {
	var out RiskAssessment
	if err := decodePayload(payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DecodeReallocation extracts the typed reallocation view from a result
// payload.
func DecodeReallocation(payload map[string]any) (*ReallocationPlan, error) {
	var out ReallocationPlan
	if err := decodePayload(payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DecodeCost extracts the typed cost view from a result payload.
func DecodeCost(payload map[string]any) (*CostEstimate, error) {
	var out CostEstimate
	if err := decodePayload(payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DecodeScheduling extracts the typed scheduling view from a result
// payload.
func DecodeScheduling(payload map[string]any) (*ScheduleAssessment, error) {
	var out ScheduleAssessment
	if err := decodePayload(payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
