package specialist

import (
	"context"
	"fmt"
	"sort"

	"github.com/c360studio/irops/disruption"
)

// Severity levels a risk assessment may report, ordered low to critical.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// RiskAssessment is the risk specialist's output shape.
type RiskAssessment struct {
	// Likelihood is the probability in [0,1] that the disruption worsens
	// beyond the current state.
	Likelihood float64 `json:"likelihood"`

	// Severity is one of the Severity* levels.
	Severity string `json:"severity"`

	// ExpectedDurationMinutes covers the full disruption window.
	ExpectedDurationMinutes int `json:"expected_duration_minutes"`

	// Drivers lists the signals doing the work, strongest first.
	Drivers []string `json:"drivers,omitempty"`

	// Assessment is the prose risk picture.
	Assessment string `json:"assessment,omitempty"`
}

// Validate rejects assessments outside the contract.
func (r RiskAssessment) Validate() error {
	if r.Likelihood < 0 || r.Likelihood > 1 {
		return fmt.Errorf("likelihood %v outside [0,1]", r.Likelihood)
	}
	switch r.Severity {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
	default:
		return fmt.Errorf("unknown severity %q", r.Severity)
	}
	if r.ExpectedDurationMinutes < 0 {
		return fmt.Errorf("negative expected duration %d", r.ExpectedDurationMinutes)
	}
	return nil
}

// RiskAdapter quantifies how likely the disruption is to worsen and for
// how long.
type RiskAdapter struct {
	providerAdapter
}

// NewRiskAdapter creates the risk specialist. A nil client selects
// heuristic-only mode.
func NewRiskAdapter(client Completer) *RiskAdapter {
	return &RiskAdapter{providerAdapter{role: SpecialistRisk, client: client}}
}

func (a *RiskAdapter) Name() Specialist { return SpecialistRisk }

func (a *RiskAdapter) Consult(ctx context.Context, input Input) (*Assessment, error) {
	if a.client == nil {
		return a.Heuristic(input), nil
	}

	var wire RiskAssessment
	if err := a.completeJSON(ctx, input, &wire); err != nil {
		return nil, err
	}
	if err := wire.Validate(); err != nil {
		return nil, disruption.NewError(disruption.KindProviderMalformedOutput, err)
	}
	return &Assessment{Payload: payloadOf(wire), Reasoning: wire.Assessment}, nil
}

// Heuristic maps the gate probability onto severity bands and estimates
// the disruption window from the dominant signal.
func (a *RiskAdapter) Heuristic(input Input) *Assessment {
	wire := heuristicRisk(input)
	return &Assessment{Payload: payloadOf(wire), Reasoning: wire.Assessment}
}

// SeverityForProbability maps a disruption probability onto the severity
// bands used by the risk heuristic. Aggregation uses it as the fallback
// severity source when the risk specialist fails outright.
func SeverityForProbability(p float64) string {
	switch {
	case p > 0.8:
		return SeverityCritical
	case p > 0.6:
		return SeverityHigh
	case p > 0.4:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func heuristicRisk(input Input) RiskAssessment {
	p := input.Gate.RiskProbability
	severity := SeverityForProbability(p)

	duration := 120
	switch dominantSignal(input.Context) {
	case disruption.SignalWeather:
		duration = 240
	case disruption.SignalCrew:
		duration = 180
	}

	return RiskAssessment{
		Likelihood:              p,
		Severity:                severity,
		ExpectedDurationMinutes: duration,
		Drivers:                 input.Gate.Evidence,
		Assessment: fmt.Sprintf(
			"Heuristic assessment: risk %.2f maps to %s severity with an expected disruption window of %d minutes.",
			p, severity, duration),
	}
}

// dominantSignal returns the highest-scoring signal name. Iteration is
// over sorted names so ties resolve the same way every run.
func dominantSignal(ctx disruption.Context) string {
	names := make([]string, 0, len(ctx.Signals))
	for name := range ctx.Signals {
		names = append(names, name)
	}
	sort.Strings(names)

	best := ""
	bestScore := -1.0
	for _, name := range names {
		if ctx.Signals[name] > bestScore {
			best = name
			bestScore = ctx.Signals[name]
		}
	}
	return best
}
