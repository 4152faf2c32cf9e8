package specialist

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360studio/irops/disruption"
	"github.com/c360studio/irops/reasoning"
)

const (
	// DefaultCallTimeout bounds one specialist's consult, retry included.
	DefaultCallTimeout = 20 * time.Second

	// DefaultVariantTimeout is the fan-in barrier for one variant.
	DefaultVariantTimeout = 30 * time.Second

	// DefaultMaxConcurrentVariants bounds cross-variant concurrency.
	DefaultMaxConcurrentVariants = 4
)

// Runner executes the full specialist set against disruption variants.
// Within a variant the four specialists run in parallel and settle at a
// fan-in barrier; across variants, runs are bounded by the concurrency
// limit.
type Runner struct {
	adapters              map[Specialist]Adapter
	callTimeout           time.Duration
	variantTimeout        time.Duration
	maxConcurrentVariants int
	logger                *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithCallTimeout bounds each specialist consult, retry included.
func WithCallTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.callTimeout = d
		}
	}
}

// WithVariantTimeout sets the fan-in barrier deadline per variant.
func WithVariantTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.variantTimeout = d
		}
	}
}

// WithMaxConcurrentVariants bounds how many variants run at once.
func WithMaxConcurrentVariants(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.maxConcurrentVariants = n
		}
	}
}

// WithAdapter replaces the adapter for its role. Used to swap in
// heuristic-only or custom specialists.
func WithAdapter(a Adapter) RunnerOption {
	return func(r *Runner) {
		r.adapters[a.Name()] = a
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a Runner with the built-in specialist set backed by
// the given reasoning client. A nil client puts every adapter in
// heuristic-only mode.
func NewRunner(client Completer, opts ...RunnerOption) *Runner {
	r := &Runner{
		adapters: map[Specialist]Adapter{
			SpecialistRisk:         NewRiskAdapter(client),
			SpecialistReallocation: NewReallocationAdapter(client),
			SpecialistCost:         NewCostAdapter(client),
			SpecialistScheduling:   NewSchedulingAdapter(client),
		},
		callTimeout:           DefaultCallTimeout,
		variantTimeout:        DefaultVariantTimeout,
		maxConcurrentVariants: DefaultMaxConcurrentVariants,
		logger:                slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the specialist set against the baseline and every accepted
// scenario variant. Scenario contexts are derived from the baseline via
// overlay application; the baseline itself is never mutated. Specialist
// failures live in the result structs and never abort the fan-out; the
// returned error is non-nil only when the caller cancelled or the run
// deadline expired, and the partial FanoutResult is still valid then.
func (r *Runner) Run(ctx context.Context, baseline disruption.Context, gate disruption.GateDecision, scenarios []disruption.ScenarioSpec) (*FanoutResult, error) {
	out := &FanoutResult{Scenarios: make([]*VariantResult, len(scenarios))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxConcurrentVariants)

	g.Go(func() error {
		out.Baseline = r.runVariant(gctx, Input{Context: baseline, Gate: gate})
		return nil
	})
	for i, spec := range scenarios {
		g.Go(func() error {
			variant := disruption.ApplyOverlay(baseline, spec.Overlay)
			out.Scenarios[i] = r.runVariant(gctx, Input{Context: variant, Gate: gate, ScenarioID: spec.ID})
			return nil
		})
	}
	// Variant goroutines never return errors; results carry their own
	// failures.
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return out, abortError(err)
	}
	return out, nil
}

// runVariant fans the specialist set out for one variant and blocks at
// the fan-in barrier until all four settle or the variant deadline
// expires. On deadline expiry the pending specialists are marked failed
// with reason timeout; on caller cancellation they are listed as
// unsettled instead so the controller can flush them as skipped.
func (r *Runner) runVariant(ctx context.Context, input Input) *VariantResult {
	started := time.Now().UTC()

	variantCtx, cancel := context.WithTimeout(ctx, r.variantTimeout)
	defer cancel()

	order := Specialists()
	type slot struct {
		idx int
		res Result
	}
	// Buffered so a late finisher never blocks after the barrier closes.
	resultCh := make(chan slot, len(order))

	for i, name := range order {
		adapter := r.adapters[name]
		go func() {
			if res, ok := r.runSpecialist(variantCtx, adapter, input); ok {
				resultCh <- slot{idx: i, res: res}
			}
		}()
	}

	results := make(map[Specialist]Result, len(order))
	settled := make([]bool, len(order))
	pending := len(order)

collect:
	for pending > 0 {
		select {
		case s := <-resultCh:
			results[order[s.idx]] = s.res
			settled[s.idx] = true
			pending--
		case <-variantCtx.Done():
			break collect
		}
	}

	// Results that raced the deadline are still real settlements.
drain:
	for pending > 0 {
		select {
		case s := <-resultCh:
			results[order[s.idx]] = s.res
			settled[s.idx] = true
			pending--
		default:
			break drain
		}
	}

	out := &VariantResult{
		ScenarioID: input.ScenarioID,
		Results:    results,
		StartedAt:  started,
	}

	if pending > 0 {
		now := time.Now().UTC()
		cancelled := errors.Is(ctx.Err(), context.Canceled)
		for i, name := range order {
			if settled[i] {
				continue
			}
			if cancelled {
				out.Unsettled = append(out.Unsettled, name)
				continue
			}
			results[name] = Result{
				Specialist:    name,
				ScenarioID:    input.ScenarioID,
				Status:        StatusFailed,
				FailureReason: FailureReasonTimeout,
				DurationMs:    now.Sub(started).Milliseconds(),
				StartedAt:     started,
				FinishedAt:    now,
			}
			r.logger.Warn("specialist failed at fan-in barrier",
				"specialist", name,
				"scenario_id", input.ScenarioID,
				"reason", FailureReasonTimeout)
		}
	}

	out.FinishedAt = time.Now().UTC()
	return out
}

// runSpecialist runs one adapter with the call deadline and the heuristic
// fallback. It reports ok=false when the variant window died mid-call;
// labeling that slot belongs to the barrier, not to this goroutine.
func (r *Runner) runSpecialist(ctx context.Context, adapter Adapter, input Input) (Result, bool) {
	started := time.Now().UTC()

	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	assessment, retries, err := r.consult(callCtx, adapter, input)
	cancel()

	res := Result{
		Specialist: adapter.Name(),
		ScenarioID: input.ScenarioID,
		Retries:    retries,
		StartedAt:  started,
	}

	switch {
	case err == nil:
		res.Status = StatusOK
		res.Payload = assessment.Payload
		res.Reasoning = assessment.Reasoning
	case ctx.Err() != nil:
		// Variant window died mid-call.
		return Result{}, false
	default:
		fb := adapter.Heuristic(input)
		res.Status = StatusDegraded
		res.Payload = fb.Payload
		res.Reasoning = fb.Reasoning
		res.FailureReason = failureReason(err)
		r.logger.Warn("specialist degraded to heuristic",
			"specialist", adapter.Name(),
			"scenario_id", input.ScenarioID,
			"reason", res.FailureReason)
	}

	res.FinishedAt = time.Now().UTC()
	res.DurationMs = res.FinishedAt.Sub(started).Milliseconds()
	return res, true
}

// consult makes the full-quality call with a budget of one extra attempt,
// spent only on transient transport failures. Malformed output is never
// retried.
func (r *Runner) consult(ctx context.Context, adapter Adapter, input Input) (*Assessment, int, error) {
	assessment, err := adapter.Consult(ctx, input)
	if err == nil {
		return assessment, 0, nil
	}
	if !reasoning.IsTransient(err) || ctx.Err() != nil {
		return nil, 0, err
	}

	r.logger.Debug("specialist retrying after transient failure",
		"specialist", adapter.Name(),
		"scenario_id", input.ScenarioID,
		"error", err)

	assessment, retryErr := adapter.Consult(ctx, input)
	if retryErr != nil {
		return nil, 1, retryErr
	}
	return assessment, 1, nil
}

// failureReason renders the recorded reason: "timeout" for deadline
// expiry, the transport detail otherwise.
func failureReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureReasonTimeout
	}
	return err.Error()
}

// abortError wraps a context error in the matching engine error kind.
func abortError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return disruption.NewError(disruption.KindRunTimeout, err)
	}
	return disruption.NewError(disruption.KindCallerCancelled, err)
}
