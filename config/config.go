// Package config provides configuration loading and management for the
// disruption-response engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/irops/aggregate"
	"github.com/c360studio/irops/disruption"
	"github.com/c360studio/irops/engine"
	"github.com/c360studio/irops/model"
	"github.com/c360studio/irops/planner"
	"github.com/c360studio/irops/specialist"
)

// Config represents the complete engine configuration
type Config struct {
	// Models is the model registry. Nil selects the built-in defaults.
	Models *model.RegistryConfig `yaml:"models,omitempty"`

	// Gate holds the detection weights and threshold.
	Gate disruption.GateConfig `yaml:"gate"`

	Planner    PlannerConfig    `yaml:"planner"`
	Specialist SpecialistConfig `yaml:"specialist"`
	Aggregate  AggregateConfig  `yaml:"aggregate"`
	Engine     EngineConfig     `yaml:"engine"`
	NATS       NATSConfig       `yaml:"nats"`
}

// PlannerConfig configures the scenario planner
type PlannerConfig struct {
	// MaxScenarios caps accepted what-if scenarios per run
	MaxScenarios int `yaml:"max_scenarios"`
	// CallTimeout bounds the planner's reasoning call
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// SpecialistConfig configures the specialist runner
type SpecialistConfig struct {
	// CallTimeout bounds each specialist consultation
	CallTimeout time.Duration `yaml:"call_timeout"`
	// VariantTimeout bounds the fan-in barrier per variant
	VariantTimeout time.Duration `yaml:"variant_timeout"`
	// MaxConcurrentVariants caps variants analyzed in parallel
	MaxConcurrentVariants int `yaml:"max_concurrent_variants"`
}

// AggregateConfig mirrors the aggregation thresholds with scalar money
// figures so the section round-trips through YAML; ToAggregate converts
// to the decimal form the aggregator consumes.
type AggregateConfig struct {
	HighRiskThreshold float64 `yaml:"high_risk_threshold"`
	BudgetThreshold   float64 `yaml:"budget_threshold"`
	CostBandMedium    float64 `yaml:"cost_band_medium"`
	CostBandHigh      float64 `yaml:"cost_band_high"`
}

// ToAggregate converts the section to the aggregator's config type.
func (c AggregateConfig) ToAggregate() aggregate.Config {
	return aggregate.Config{
		HighRiskThreshold: c.HighRiskThreshold,
		BudgetThreshold:   decimal.NewFromFloat(c.BudgetThreshold),
		CostBandMedium:    decimal.NewFromFloat(c.CostBandMedium),
		CostBandHigh:      decimal.NewFromFloat(c.CostBandHigh),
	}
}

// EngineConfig configures the workflow controller
type EngineConfig struct {
	// RunTimeout bounds one whole run end to end
	RunTimeout time.Duration `yaml:"run_timeout"`
}

// NATSConfig configures the NATS connection
type NATSConfig struct {
	// URL is the NATS server URL (empty = nats://localhost:4222)
	URL string `yaml:"url"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	agg := aggregate.DefaultConfig()
	return &Config{
		Models: nil, // Built-in registry
		Gate:   disruption.DefaultGateConfig(),
		Planner: PlannerConfig{
			MaxScenarios: planner.DefaultMaxScenarios,
			CallTimeout:  planner.DefaultCallTimeout,
		},
		Specialist: SpecialistConfig{
			CallTimeout:           specialist.DefaultCallTimeout,
			VariantTimeout:        specialist.DefaultVariantTimeout,
			MaxConcurrentVariants: specialist.DefaultMaxConcurrentVariants,
		},
		Aggregate: AggregateConfig{
			HighRiskThreshold: agg.HighRiskThreshold,
			BudgetThreshold:   agg.BudgetThreshold.InexactFloat64(),
			CostBandMedium:    agg.CostBandMedium.InexactFloat64(),
			CostBandHigh:      agg.CostBandHigh.InexactFloat64(),
		},
		Engine: EngineConfig{
			RunTimeout: engine.DefaultRunTimeout,
		},
		NATS: NATSConfig{
			URL: "",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if err := c.Gate.Validate(); err != nil {
		return fmt.Errorf("gate: %w", err)
	}
	if c.Planner.MaxScenarios < 1 {
		return fmt.Errorf("planner.max_scenarios must be >= 1, got %d", c.Planner.MaxScenarios)
	}
	if c.Planner.CallTimeout <= 0 {
		return fmt.Errorf("planner.call_timeout must be positive, got %v", c.Planner.CallTimeout)
	}
	if c.Specialist.CallTimeout <= 0 {
		return fmt.Errorf("specialist.call_timeout must be positive, got %v", c.Specialist.CallTimeout)
	}
	if c.Specialist.VariantTimeout <= 0 {
		return fmt.Errorf("specialist.variant_timeout must be positive, got %v", c.Specialist.VariantTimeout)
	}
	if c.Specialist.MaxConcurrentVariants < 1 {
		return fmt.Errorf("specialist.max_concurrent_variants must be >= 1, got %d", c.Specialist.MaxConcurrentVariants)
	}
	if c.Engine.RunTimeout <= 0 {
		return fmt.Errorf("engine.run_timeout must be positive, got %v", c.Engine.RunTimeout)
	}
	if err := c.Aggregate.ToAggregate().Validate(); err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}
	if c.Models != nil {
		if err := model.FromConfig(c.Models).Validate(); err != nil {
			return fmt.Errorf("models: %w", err)
		}
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return parse(data)
}

// parse decodes YAML over the defaults so absent sections keep their
// default values.
func parse(data []byte) (*Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Models: later layers replace the registry wholesale
	if other.Models != nil {
		c.Models = other.Models
	}

	// Gate
	if len(other.Gate.SignalWeights) > 0 {
		c.Gate.SignalWeights = other.Gate.SignalWeights
	}
	if other.Gate.DetectionThreshold != 0 {
		c.Gate.DetectionThreshold = other.Gate.DetectionThreshold
	}

	// Planner
	if other.Planner.MaxScenarios != 0 {
		c.Planner.MaxScenarios = other.Planner.MaxScenarios
	}
	if other.Planner.CallTimeout != 0 {
		c.Planner.CallTimeout = other.Planner.CallTimeout
	}

	// Specialist
	if other.Specialist.CallTimeout != 0 {
		c.Specialist.CallTimeout = other.Specialist.CallTimeout
	}
	if other.Specialist.VariantTimeout != 0 {
		c.Specialist.VariantTimeout = other.Specialist.VariantTimeout
	}
	if other.Specialist.MaxConcurrentVariants != 0 {
		c.Specialist.MaxConcurrentVariants = other.Specialist.MaxConcurrentVariants
	}

	// Aggregate
	if other.Aggregate.HighRiskThreshold != 0 {
		c.Aggregate.HighRiskThreshold = other.Aggregate.HighRiskThreshold
	}
	if other.Aggregate.BudgetThreshold != 0 {
		c.Aggregate.BudgetThreshold = other.Aggregate.BudgetThreshold
	}
	if other.Aggregate.CostBandMedium != 0 {
		c.Aggregate.CostBandMedium = other.Aggregate.CostBandMedium
	}
	if other.Aggregate.CostBandHigh != 0 {
		c.Aggregate.CostBandHigh = other.Aggregate.CostBandHigh
	}

	// Engine
	if other.Engine.RunTimeout != 0 {
		c.Engine.RunTimeout = other.Engine.RunTimeout
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
}
