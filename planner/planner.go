// Package planner turns a gated disruption into a recovery plan with
// optional what-if scenarios. It makes exactly one reasoning call per run;
// every provider-side failure degrades to a deterministic fallback plan
// instead of failing the run.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/irops/disruption"
	"github.com/c360studio/irops/model"
	"github.com/c360studio/irops/prompts"
	"github.com/c360studio/irops/reasoning"
)

const (
	// DefaultMaxScenarios caps accepted what-if scenarios per run.
	DefaultMaxScenarios = 2

	// DefaultCallTimeout bounds the single reasoning call.
	DefaultCallTimeout = 20 * time.Second
)

// Completer is the slice of the reasoning client the planner depends on.
type Completer interface {
	Complete(ctx context.Context, req reasoning.Request) (*reasoning.Response, error)
}

// Plan is the planner's output for one run.
type Plan struct {
	// Narrative is the operator-facing recovery narrative.
	Narrative string `json:"narrative"`

	// Scenarios holds the accepted what-if scenarios, at most the
	// configured cap.
	Scenarios []disruption.ScenarioSpec `json:"scenarios,omitempty"`

	// SkippedScenarios holds proposals beyond the cap. They are recorded
	// for the audit trail but never analyzed.
	SkippedScenarios []disruption.ScenarioSpec `json:"skipped_scenarios,omitempty"`

	// Degraded is true when the provider call failed or returned
	// unusable output and the narrative was synthesized from the gate
	// rationale instead.
	Degraded bool `json:"degraded"`

	// DegradedReason carries the classified failure behind a degraded
	// plan. Nil when Degraded is false.
	DegradedReason error `json:"-"`

	// RequestID correlates the plan with the recorded reasoning call.
	// Empty on degraded plans.
	RequestID string `json:"request_id,omitempty"`

	// Model names the model that produced the narrative. Empty on
	// degraded plans.
	Model string `json:"model,omitempty"`
}

// Planner proposes a recovery plan for a gated disruption context.
type Planner struct {
	client       Completer
	maxScenarios int
	callTimeout  time.Duration
	logger       *slog.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithMaxScenarios caps how many proposed scenarios are accepted per run.
// Zero means every proposal is skipped; negative values are ignored.
func WithMaxScenarios(n int) Option {
	return func(p *Planner) {
		if n >= 0 {
			p.maxScenarios = n
		}
	}
}

// WithCallTimeout bounds the reasoning call.
func WithCallTimeout(d time.Duration) Option {
	return func(p *Planner) {
		if d > 0 {
			p.callTimeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Planner) {
		p.logger = logger
	}
}

// New creates a Planner backed by the given reasoning client.
func New(client Completer, opts ...Option) *Planner {
	p := &Planner{
		client:       client,
		maxScenarios: DefaultMaxScenarios,
		callTimeout:  DefaultCallTimeout,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MaxScenarios reports the configured scenario cap.
func (p *Planner) MaxScenarios() int {
	return p.maxScenarios
}

// plannerResponse is the wire format the model is instructed to emit.
type plannerResponse struct {
	Narrative string                    `json:"narrative"`
	Scenarios []disruption.ScenarioSpec `json:"scenarios"`
}

// Plan requests one recovery plan for the gated context. The provider is
// called exactly once; timeouts, transport failures, and malformed output
// all degrade to a deterministic fallback narrative built from the gate
// rationale. The only returned errors are caller cancellation and the run
// deadline expiring.
func (p *Planner) Plan(ctx context.Context, dctx disruption.Context, gate disruption.GateDecision) (*Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, abortError(err)
	}
	// No client means no provider anywhere in this deployment; the
	// fallback plan is the expected answer, not an error.
	if p.client == nil {
		return p.fallback(gate, disruption.Errorf(disruption.KindProviderTimeout, "no reasoning client configured")), nil
	}

	meta := reasoning.CallMetaFromContext(ctx)
	meta.Stage = "planner"

	callCtx, cancel := context.WithTimeout(reasoning.WithCallMeta(ctx, meta), p.callTimeout)
	defer cancel()

	temperature := 0.7
	resp, err := p.client.Complete(callCtx, reasoning.Request{
		Capability: string(model.CapabilityPlanning),
		Messages: []reasoning.Message{
			{Role: "system", Content: prompts.PlannerSystemPrompt()},
			{Role: "user", Content: prompts.PlannerPrompt(dctx, gate, p.maxScenarios)},
		},
		Temperature: &temperature,
		MaxTokens:   4096,
	})
	if err != nil {
		// The caller going away is the one failure that aborts instead
		// of degrading.
		if ctx.Err() != nil {
			return nil, abortError(ctx.Err())
		}
		p.logger.Warn("planner call failed, using fallback plan",
			"flight", dctx.Flight.Number,
			"error", err)
		return p.fallback(gate, classifyCallFailure(err)), nil
	}

	p.logger.Debug("planner response received",
		"model", resp.Model,
		"total_tokens", resp.Usage.TotalTokens,
		"request_id", resp.RequestID)

	plan, parseErr := p.parsePlan(resp)
	if parseErr != nil {
		p.logger.Warn("planner output rejected, using fallback plan",
			"model", resp.Model,
			"error", parseErr)
		return p.fallback(gate, disruption.NewError(disruption.KindProviderMalformedOutput, parseErr)), nil
	}

	if len(plan.SkippedScenarios) > 0 {
		p.logger.Info("scenario cap applied",
			"accepted", len(plan.Scenarios),
			"skipped", len(plan.SkippedScenarios),
			"max_scenarios", p.maxScenarios)
	}

	return plan, nil
}

// parsePlan extracts the plan from the model response.
func (p *Planner) parsePlan(resp *reasoning.Response) (*Plan, error) {
	jsonContent := reasoning.ExtractJSON(resp.Content)
	if jsonContent == "" {
		return nil, fmt.Errorf("no JSON found in response")
	}

	var wire plannerResponse
	if err := json.Unmarshal([]byte(jsonContent), &wire); err != nil {
		return nil, fmt.Errorf("parse JSON: %w (content: %s)", err, jsonContent[:min(200, len(jsonContent))])
	}
	if wire.Narrative == "" {
		return nil, fmt.Errorf("response missing narrative")
	}

	accepted, skipped := capScenarios(normalizeScenarios(wire.Scenarios), p.maxScenarios)
	return &Plan{
		Narrative:        wire.Narrative,
		Scenarios:        accepted,
		SkippedScenarios: skipped,
		RequestID:        resp.RequestID,
		Model:            resp.Model,
	}, nil
}

// fallback builds the deterministic degraded plan. Zero scenarios; the
// narrative is templated from the gate rationale so two failed runs over
// the same context produce the same plan.
func (p *Planner) fallback(gate disruption.GateDecision, reason error) *Plan {
	return &Plan{
		Narrative:      fallbackNarrative(gate),
		Degraded:       true,
		DegradedReason: reason,
	}
}

// fallbackNarrative renders the degraded-mode narrative from the gate
// verdict alone.
func fallbackNarrative(gate disruption.GateDecision) string {
	return fmt.Sprintf(
		"Contingency response (planner unavailable): %s. "+
			"Proceed with baseline assessment: hold the aircraft at the gate pending specialist analysis, "+
			"protect connections where feasible, and brief crew on the current delay estimate. "+
			"What-if scenario exploration is skipped for this run.",
		gate.Rationale)
}

// normalizeScenarios fills in missing or duplicate scenario IDs so every
// variant is addressable in the audit trail.
func normalizeScenarios(specs []disruption.ScenarioSpec) []disruption.ScenarioSpec {
	seen := make(map[string]bool, len(specs))
	for i := range specs {
		if specs[i].ID == "" || seen[specs[i].ID] {
			specs[i].ID = uuid.NewString()
		}
		seen[specs[i].ID] = true
	}
	return specs
}

// capScenarios splits proposals into accepted and skipped at the cap.
func capScenarios(specs []disruption.ScenarioSpec, maxScenarios int) (accepted, skipped []disruption.ScenarioSpec) {
	if len(specs) <= maxScenarios {
		return specs, nil
	}
	return specs[:maxScenarios], specs[maxScenarios:]
}

// classifyCallFailure maps a reasoning-client error onto the engine error
// taxonomy. Deadline expiry and transport failures both classify as
// provider timeouts; the taxonomy has no separate unavailability kind.
func classifyCallFailure(err error) error {
	return disruption.NewError(disruption.KindProviderTimeout, err)
}

// abortError wraps a context error in the matching engine error kind.
func abortError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return disruption.NewError(disruption.KindRunTimeout, err)
	}
	return disruption.NewError(disruption.KindCallerCancelled, err)
}
