package disruption

import (
	"fmt"
	"sort"
	"strings"
)

// riskCeiling caps the combined risk probability. The additive boost
// signals (delayed/critical ratios) can push the weighted sum past 1.0;
// the ceiling keeps the result a probability while never reporting
// absolute certainty.
const riskCeiling = 0.98

// GateConfig controls gate evaluation. Weights are policy, not code: a
// deployment tunes them without touching the engine.
type GateConfig struct {
	// SignalWeights maps signal names to their weight in the combined risk
	// probability. Signals absent from the context contribute zero.
	SignalWeights map[string]float64 `json:"signal_weights" yaml:"signal_weights"`

	// DetectionThreshold is the strict lower bound for escalation: a run
	// proceeds only when riskProbability > DetectionThreshold.
	DetectionThreshold float64 `json:"detection_threshold" yaml:"detection_threshold"`
}

// DefaultGateConfig returns the standard weight set: a convex base over
// weather/crew/aircraft plus additive network-pressure boosts.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		SignalWeights: map[string]float64{
			SignalWeather:       0.40,
			SignalCrew:          0.30,
			SignalAircraft:      0.30,
			SignalDelayedRatio:  0.15,
			SignalCriticalRatio: 0.25,
		},
		DetectionThreshold: 0.70,
	}
}

// Validate checks the configuration for usable values.
func (c GateConfig) Validate() error {
	if c.DetectionThreshold <= 0 || c.DetectionThreshold >= 1 {
		return fmt.Errorf("detection_threshold must be in (0,1), got %v", c.DetectionThreshold)
	}
	if len(c.SignalWeights) == 0 {
		return fmt.Errorf("signal_weights must not be empty")
	}
	for name, w := range c.SignalWeights {
		if w < 0 {
			return fmt.Errorf("signal weight %q must be >= 0, got %v", name, w)
		}
	}
	return nil
}

// GateDecision is the gate's verdict for one context. Produced exactly
// once per run; immutable.
type GateDecision struct {
	// DisruptionDetected is true when the run should escalate to planning.
	DisruptionDetected bool `json:"disruption_detected"`

	// RiskProbability is the combined weighted signal score in [0,1].
	RiskProbability float64 `json:"risk_probability"`

	// Rationale is a one-line explanation of the verdict, including notes
	// for any configured signal missing from the context.
	Rationale string `json:"rationale"`

	// Evidence lists the per-signal contributions behind the probability.
	Evidence []string `json:"evidence,omitempty"`
}

// Gate decides whether a disruption context is worth escalating. It is a
// deterministic classifier: no external calls, identical input and
// configuration always yield an identical decision.
type Gate struct {
	cfg GateConfig
}

// NewGate creates a gate with the given configuration. Passing a zero
// config selects the defaults.
func NewGate(cfg GateConfig) *Gate {
	if cfg.SignalWeights == nil && cfg.DetectionThreshold == 0 {
		cfg = DefaultGateConfig()
	}
	return &Gate{cfg: cfg}
}

// Evaluate computes the gate decision for ctx. Missing configured signals
// contribute zero weight and are noted in the rationale rather than
// failing the evaluation.
func (g *Gate) Evaluate(ctx Context) GateDecision {
	names := make([]string, 0, len(g.cfg.SignalWeights))
	for name := range g.cfg.SignalWeights {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		risk     float64
		evidence []string
		missing  []string
		topName  string
		topScore float64
	)

	for _, name := range names {
		weight := g.cfg.SignalWeights[name]
		score, ok := ctx.Signals[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		contribution := weight * score
		risk += contribution
		if contribution > 0 {
			evidence = append(evidence, fmt.Sprintf("%s %.2f contributes %.2f", name, score, contribution))
		}
		if score > topScore {
			topScore = score
			topName = name
		}
	}

	if risk > riskCeiling {
		risk = riskCeiling
	}

	detected := risk > g.cfg.DetectionThreshold

	var b strings.Builder
	if detected {
		fmt.Fprintf(&b, "disruption detected: risk %.2f exceeds threshold %.2f", risk, g.cfg.DetectionThreshold)
		if topName != "" {
			fmt.Fprintf(&b, ", dominant signal %s (%.2f)", topName, topScore)
		}
	} else {
		fmt.Fprintf(&b, "no disruption: risk %.2f at or below threshold %.2f", risk, g.cfg.DetectionThreshold)
	}
	for _, name := range missing {
		fmt.Fprintf(&b, "; signal %s unavailable, weight ignored", name)
		evidence = append(evidence, fmt.Sprintf("%s missing", name))
	}

	return GateDecision{
		DisruptionDetected: detected,
		RiskProbability:    risk,
		Rationale:          b.String(),
		Evidence:           evidence,
	}
}
