// Package engine drives one disruption-response run through its
// workflow: gate, planner, specialist fan-out, aggregation. The
// controller owns the run state machine, the whole-run deadline, the
// audit trail, and progress emission; every stage failure short of
// caller cancellation is absorbed so a gated run always terminates with
// a final plan.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/irops/aggregate"
	"github.com/c360studio/irops/audit"
	"github.com/c360studio/irops/disruption"
	"github.com/c360studio/irops/persist"
	"github.com/c360studio/irops/planner"
	"github.com/c360studio/irops/progress"
	"github.com/c360studio/irops/reasoning"
	"github.com/c360studio/irops/specialist"
)

const (
	// DefaultRunTimeout bounds one whole run. Expiry forces the
	// transition to aggregation with whatever settled.
	DefaultRunTimeout = 60 * time.Second

	// persistTimeout bounds the best-effort save after a run completes.
	persistTimeout = 10 * time.Second
)

// Completer is the reasoning surface the engine's stages share.
type Completer interface {
	Complete(ctx context.Context, req reasoning.Request) (*reasoning.Response, error)
}

// ScenarioPlanner produces the run's recovery plan.
type ScenarioPlanner interface {
	Plan(ctx context.Context, dctx disruption.Context, gate disruption.GateDecision) (*planner.Plan, error)
	MaxScenarios() int
}

// FanoutRunner executes the specialist set across variants.
type FanoutRunner interface {
	Run(ctx context.Context, baseline disruption.Context, gate disruption.GateDecision, scenarios []disruption.ScenarioSpec) (*specialist.FanoutResult, error)
}

// PlanAggregator folds settled results into the final plan.
type PlanAggregator interface {
	Aggregate(input aggregate.Input) *aggregate.FinalPlan
}

// RunResult is what the caller receives for one run.
type RunResult struct {
	RunID string `json:"run_id"`

	// State is the terminal state: terminated, done, or aborted.
	State RunState `json:"state"`

	// Gate is the detection verdict. Always present.
	Gate disruption.GateDecision `json:"gate"`

	// Plan is the final plan. Nil for terminated and aborted runs.
	Plan *aggregate.FinalPlan `json:"plan,omitempty"`

	// Audit is the complete trail in total order. Partial for aborted
	// runs.
	Audit []audit.Entry `json:"audit"`
}

// Engine is the workflow controller. Construct once, run many; the
// engine holds no state across runs.
type Engine struct {
	gate       *disruption.Gate
	planner    ScenarioPlanner
	runner     FanoutRunner
	aggregator PlanAggregator
	store      persist.Store
	observer   progress.Observer
	metrics    *Metrics
	logger     *slog.Logger
	runTimeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithGate replaces the default gate.
func WithGate(g *disruption.Gate) Option {
	return func(e *Engine) {
		if g != nil {
			e.gate = g
		}
	}
}

// WithPlanner replaces the default planner.
func WithPlanner(p ScenarioPlanner) Option {
	return func(e *Engine) {
		if p != nil {
			e.planner = p
		}
	}
}

// WithRunner replaces the default specialist runner.
func WithRunner(r FanoutRunner) Option {
	return func(e *Engine) {
		if r != nil {
			e.runner = r
		}
	}
}

// WithAggregator replaces the default aggregator.
func WithAggregator(a PlanAggregator) Option {
	return func(e *Engine) {
		if a != nil {
			e.aggregator = a
		}
	}
}

// WithStore sets the persistence collaborator. Defaults to a no-op.
func WithStore(s persist.Store) Option {
	return func(e *Engine) {
		if s != nil {
			e.store = s
		}
	}
}

// WithObserver sets the progress observer. Defaults to none.
func WithObserver(o progress.Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithMetrics attaches engine metrics.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithRunTimeout sets the whole-run deadline.
func WithRunTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.runTimeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Engine backed by the given reasoning client. A nil
// client runs every stage in heuristic-only mode.
func New(client Completer, opts ...Option) *Engine {
	e := &Engine{
		store:      persist.Noop{},
		observer:   progress.Multi(),
		logger:     slog.Default(),
		runTimeout: DefaultRunTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.gate == nil {
		e.gate = disruption.NewGate(disruption.DefaultGateConfig())
	}
	if e.planner == nil {
		e.planner = planner.New(client, planner.WithLogger(e.logger))
	}
	if e.runner == nil {
		e.runner = specialist.NewRunner(client, specialist.WithLogger(e.logger))
	}
	if e.aggregator == nil {
		e.aggregator = aggregate.New(aggregate.DefaultConfig(), aggregate.WithLogger(e.logger))
	}
	return e
}

// Run executes one disruption-response workflow. The only hard failure
// is an invalid snapshot, rejected before any stage runs. Cancellation
// aborts the run and returns the partial result alongside the
// classified error; every other failure is absorbed, so a gated run
// always returns a final plan.
func (e *Engine) Run(ctx context.Context, snap disruption.Snapshot) (*RunResult, error) {
	dctx, err := disruption.BuildContext(snap)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	r := &engineRun{
		e:      e,
		id:     runID,
		trail:  audit.New(runID, audit.WithLogger(e.logger)),
		obsCtx: context.WithoutCancel(ctx),
		state:  StateInit,
	}

	runCtx, cancel := context.WithTimeout(ctx, e.runTimeout)
	defer cancel()
	runCtx = reasoning.WithCallMeta(runCtx, reasoning.CallMeta{RunID: runID})

	e.logger.Info("run started",
		"run_id", runID,
		"flight", dctx.Flight.Number,
		"delay_minutes", dctx.DelayMinutes,
		"passengers", dctx.PassengersAffected)

	return r.execute(runCtx, dctx)
}

// engineRun carries one run's mutable state through the stages.
type engineRun struct {
	e      *Engine
	id     string
	trail  *audit.Trail
	obsCtx context.Context
	state  RunState
}

func (r *engineRun) execute(ctx context.Context, dctx disruption.Context) (*RunResult, error) {
	e := r.e

	// Gate: synchronous, deterministic, exactly once per run.
	gateStart := time.Now().UTC()
	decision := e.gate.Evaluate(dctx)
	r.trail.Append(audit.Entry{
		Stage: "gate",
		Input: map[string]any{
			"flight":        dctx.Flight.Number,
			"delay_minutes": dctx.DelayMinutes,
			"signals":       dctx.Signals,
		},
		Output: map[string]any{
			"risk_probability":    decision.RiskProbability,
			"disruption_detected": decision.DisruptionDetected,
			"rationale":           decision.Rationale,
		},
		Outcome:    audit.OutcomeOK,
		StartedAt:  gateStart,
		FinishedAt: time.Now().UTC(),
	})
	e.metrics.RecordStage("gate", time.Since(gateStart))
	r.transition(StateGated)

	if !decision.DisruptionDetected {
		r.transition(StateTerminated)
		e.logger.Info("run terminated, no disruption",
			"run_id", r.id,
			"risk_probability", decision.RiskProbability)
		return r.finish(StateTerminated, decision, nil), nil
	}

	// Planner: the run's single reasoning call.
	r.transition(StatePlanning)
	planStart := time.Now().UTC()
	plan, planErr := e.planner.Plan(ctx, dctx, decision)
	e.metrics.RecordStage("planner", time.Since(planStart))

	var accepted []disruption.ScenarioSpec
	switch {
	case planErr != nil:
		r.trail.Append(audit.Entry{
			Stage:      "planner",
			Output:     map[string]any{"error": planErr.Error()},
			Outcome:    audit.OutcomeFailed,
			StartedAt:  planStart,
			FinishedAt: time.Now().UTC(),
		})
		r.emit("planner", "", "failed")
		if disruption.IsKind(planErr, disruption.KindCallerCancelled) {
			return r.abort(decision, planErr)
		}
		// Run deadline expired mid-planning. The workflow still moves
		// forward: the fan-out settles instantly as failed and the
		// aggregator produces the insufficient-data plan.
	default:
		r.recordPlan(plan, planStart)
		accepted = plan.Scenarios
	}

	// Specialist fan-out across the baseline and accepted scenarios.
	r.transition(StateFanout)
	fanStart := time.Now().UTC()
	fanout, fanErr := e.runner.Run(ctx, dctx, decision, accepted)
	e.metrics.RecordStage("fanout", time.Since(fanStart))
	r.recordFanout(fanout)
	if fanErr != nil {
		if disruption.IsKind(fanErr, disruption.KindCallerCancelled) {
			r.flushUnsettled(fanout)
			return r.abort(decision, fanErr)
		}
		e.logger.Warn("run deadline expired during fan-out",
			"run_id", r.id,
			"error", fanErr)
	}

	// Aggregation: deterministic, cannot fail.
	r.transition(StateAggregated)
	aggStart := time.Now().UTC()
	narrative := ""
	if plan != nil {
		narrative = plan.Narrative
	}
	final := e.aggregator.Aggregate(aggregate.Input{
		RunID:     r.id,
		Narrative: narrative,
		Gate:      decision,
		Fanout:    fanout,
	})
	e.metrics.RecordStage("aggregate", time.Since(aggStart))
	r.trail.Append(audit.Entry{
		Stage: "aggregate",
		Input: map[string]any{"variants": countVariants(fanout)},
		Output: map[string]any{
			"priority":           string(final.Priority),
			"confidence":         string(final.Confidence),
			"action_code":        final.ActionCode,
			"recommended_action": final.RecommendedAction,
		},
		Outcome:    audit.OutcomeOK,
		StartedAt:  aggStart,
		FinishedAt: time.Now().UTC(),
	})

	result := r.finish(StateDone, decision, final)

	// Persistence is best-effort and never affects the returned plan.
	persistCtx, cancel := context.WithTimeout(r.obsCtx, persistTimeout)
	defer cancel()
	if err := e.store.Save(persistCtx, final, result.Audit); err != nil {
		e.logger.Warn("persistence failed",
			"run_id", r.id,
			"error", err)
	}

	e.logger.Info("run complete",
		"run_id", r.id,
		"priority", final.Priority,
		"confidence", final.Confidence,
		"scenarios", len(final.Scenarios),
		"audit_entries", len(result.Audit))
	return result, nil
}

// recordPlan writes the planner audit entries: the plan itself plus one
// skipped entry per scenario over the cap.
func (r *engineRun) recordPlan(plan *planner.Plan, startedAt time.Time) {
	now := time.Now().UTC()

	outcome := audit.OutcomeOK
	output := map[string]any{
		"narrative": plan.Narrative,
		"scenarios": len(plan.Scenarios),
		"skipped":   len(plan.SkippedScenarios),
	}
	if plan.Model != "" {
		output["model"] = plan.Model
	}
	if plan.Degraded {
		outcome = audit.OutcomeDegraded
		if plan.DegradedReason != nil {
			output["reason"] = plan.DegradedReason.Error()
		}
	}
	r.trail.Append(audit.Entry{
		Stage:      "planner",
		Input:      map[string]any{"max_scenarios": r.e.planner.MaxScenarios()},
		Output:     output,
		Outcome:    outcome,
		StartedAt:  startedAt,
		FinishedAt: now,
	})
	r.emit("planner", "", string(outcome))

	for _, s := range plan.SkippedScenarios {
		r.trail.Append(audit.Entry{
			Stage:      "planner",
			ScenarioID: s.ID,
			Output:     map[string]any{"description": s.Description, "reason": "scenario cap"},
			Outcome:    audit.OutcomeSkipped,
			StartedAt:  startedAt,
			FinishedAt: now,
		})
		r.emit("planner", s.ID, string(audit.OutcomeSkipped))
	}
}

// recordFanout writes one audit entry and progress event per settled
// specialist result.
func (r *engineRun) recordFanout(out *specialist.FanoutResult) {
	if out == nil {
		return
	}
	r.recordVariant(out.Baseline)
	for _, v := range out.Scenarios {
		r.recordVariant(v)
	}
}

func (r *engineRun) recordVariant(v *specialist.VariantResult) {
	if v == nil {
		return
	}
	for _, name := range specialist.Specialists() {
		res, ok := v.Results[name]
		if !ok {
			continue
		}
		r.e.metrics.RecordSpecialist(res)

		output := map[string]any{
			"status":      string(res.Status),
			"duration_ms": res.DurationMs,
		}
		if res.Payload != nil {
			output["payload"] = res.Payload
		}
		if res.FailureReason != "" {
			output["failure_reason"] = res.FailureReason
		}
		if res.Retries > 0 {
			output["retries"] = res.Retries
		}
		r.trail.Append(audit.Entry{
			Stage:      "specialist." + string(name),
			ScenarioID: v.ScenarioID,
			Output:     output,
			Outcome:    outcomeOf(res.Status),
			StartedAt:  res.StartedAt,
			FinishedAt: res.FinishedAt,
		})
		r.emit("specialist."+string(name), v.ScenarioID, string(res.Status))
	}
}

// flushUnsettled records skipped entries for specialists abandoned by
// cancellation. Partial work is flushed to the trail, not discarded.
func (r *engineRun) flushUnsettled(out *specialist.FanoutResult) {
	if out == nil {
		return
	}
	now := time.Now().UTC()
	flush := func(v *specialist.VariantResult) {
		if v == nil {
			return
		}
		for _, name := range v.Unsettled {
			r.trail.Append(audit.Entry{
				Stage:      "specialist." + string(name),
				ScenarioID: v.ScenarioID,
				Output:     map[string]any{"reason": "caller cancelled"},
				Outcome:    audit.OutcomeSkipped,
				StartedAt:  v.StartedAt,
				FinishedAt: now,
			})
			r.emit("specialist."+string(name), v.ScenarioID, string(audit.OutcomeSkipped))
		}
	}
	flush(out.Baseline)
	for _, v := range out.Scenarios {
		flush(v)
	}
}

// transition advances the state machine and emits a progress event.
func (r *engineRun) transition(next RunState) {
	if !r.state.CanTransitionTo(next) {
		// Controller bug; the run proceeds so the caller still gets a
		// terminal outcome.
		r.e.logger.Error("illegal state transition",
			"run_id", r.id,
			"from", r.state,
			"to", next)
	}
	r.state = next
	r.emit("engine", "", string(next))
}

// finish closes the trail and assembles the caller-facing result.
func (r *engineRun) finish(state RunState, decision disruption.GateDecision, plan *aggregate.FinalPlan) *RunResult {
	if r.state != state {
		r.transition(state)
	}
	r.e.metrics.RecordRun(state)
	r.trail.Close()
	return &RunResult{
		RunID: r.id,
		State: state,
		Gate:  decision,
		Plan:  plan,
		Audit: r.trail.Entries(),
	}
}

// abort ends the run on caller cancellation, returning the partial
// trail alongside the classified error.
func (r *engineRun) abort(decision disruption.GateDecision, cause error) (*RunResult, error) {
	r.e.logger.Warn("run aborted",
		"run_id", r.id,
		"state", r.state,
		"error", cause)
	return r.finish(StateAborted, decision, nil), cause
}

// emit publishes one progress event. The observer context survives
// caller cancellation so terminal events still go out.
func (r *engineRun) emit(stage, scenarioID, status string) {
	r.e.observer.Observe(r.obsCtx, progress.Event{
		RunID:      r.id,
		Stage:      stage,
		ScenarioID: scenarioID,
		Status:     status,
		Timestamp:  time.Now().UTC(),
	})
}

func outcomeOf(s specialist.Status) audit.Outcome {
	switch s {
	case specialist.StatusOK:
		return audit.OutcomeOK
	case specialist.StatusDegraded:
		return audit.OutcomeDegraded
	default:
		return audit.OutcomeFailed
	}
}

func countVariants(out *specialist.FanoutResult) int {
	if out == nil {
		return 0
	}
	n := 0
	if out.Baseline != nil {
		n++
	}
	for _, v := range out.Scenarios {
		if v != nil {
			n++
		}
	}
	return n
}
