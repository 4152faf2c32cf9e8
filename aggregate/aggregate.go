// Package aggregate merges settled specialist results into the run's
// terminal FinalPlan. Aggregation is deterministic: no external calls,
// no clock-dependent decisions, identical inputs always produce the
// same priority, confidence, and recommendation. It never picks a
// winner among scenarios; the comparison is presented side by side for
// the operator to judge.
package aggregate

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/c360studio/irops/disruption"
	"github.com/c360studio/irops/specialist"
)

// Priority ranks how urgently the recommendation needs operator action.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Confidence grades how much of the baseline analysis is full quality.
type Confidence string

const (
	// ConfidenceLow means at least one baseline specialist failed
	// outright, or every one of them fell back to its heuristic.
	ConfidenceLow Confidence = "low"

	// ConfidenceMedium means every baseline specialist settled and at
	// least one, but not all, fell back to its heuristic.
	ConfidenceMedium Confidence = "medium"

	// ConfidenceHigh means every baseline specialist settled at full
	// quality.
	ConfidenceHigh Confidence = "high"
)

// CostBand classifies the estimated total cost for the decision table.
type CostBand string

const (
	CostBandLow    CostBand = "low"
	CostBandMedium CostBand = "medium"
	CostBandHigh   CostBand = "high"
)

// Machine-readable action codes appended to the recommendation when the
// priority warrants immediate intervention.
const (
	ActionCodeRebookNextDay = "REBOOK_NEXT_DAY"
	ActionCodeCrewChange    = "CREW_CHANGE"
	ActionCodeRebookSameDay = "REBOOK_SAME_DAY"
)

// InsufficientDataMarker prefixes the recommended action when every
// baseline specialist failed and no analysis axis is usable.
const InsufficientDataMarker = "insufficient-data"

// Config tunes the decision table. All thresholds are compared against
// the baseline cost specialist's total in currency-agnostic units.
type Config struct {
	// HighRiskThreshold is the likelihood at or above which the
	// critical override arms.
	HighRiskThreshold float64 `json:"high_risk_threshold" yaml:"high_risk_threshold"`

	// BudgetThreshold is the cost above which the critical override
	// fires, jointly with HighRiskThreshold.
	BudgetThreshold decimal.Decimal `json:"budget_threshold" yaml:"budget_threshold"`

	// CostBandMedium is the inclusive lower bound of the medium band.
	CostBandMedium decimal.Decimal `json:"cost_band_medium" yaml:"cost_band_medium"`

	// CostBandHigh is the inclusive lower bound of the high band.
	CostBandHigh decimal.Decimal `json:"cost_band_high" yaml:"cost_band_high"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		HighRiskThreshold: 0.75,
		BudgetThreshold:   decimal.NewFromInt(50000),
		CostBandMedium:    decimal.NewFromInt(10000),
		CostBandHigh:      decimal.NewFromInt(50000),
	}
}

// Validate checks the configuration for usable values.
func (c Config) Validate() error {
	if c.HighRiskThreshold <= 0 || c.HighRiskThreshold > 1 {
		return fmt.Errorf("high_risk_threshold must be in (0,1], got %v", c.HighRiskThreshold)
	}
	if c.BudgetThreshold.IsNegative() {
		return fmt.Errorf("budget_threshold must be >= 0, got %s", c.BudgetThreshold)
	}
	if c.CostBandMedium.IsNegative() {
		return fmt.Errorf("cost_band_medium must be >= 0, got %s", c.CostBandMedium)
	}
	if c.CostBandHigh.LessThan(c.CostBandMedium) {
		return fmt.Errorf("cost_band_high %s below cost_band_medium %s", c.CostBandHigh, c.CostBandMedium)
	}
	return nil
}

// ScenarioOutcome is the per-variant recomputation shown side by side
// in the final plan.
type ScenarioOutcome struct {
	Priority   Priority   `json:"priority"`
	Confidence Confidence `json:"confidence"`

	// RiskSeverity is the severity the variant's risk axis resolved to.
	RiskSeverity string `json:"risk_severity"`

	// EstimatedCost is the variant's total cost estimate. Zero when the
	// cost axis was unusable.
	EstimatedCost decimal.Decimal `json:"estimated_cost"`
}

// FinalPlan is the terminal artifact of a gated run. Exactly one is
// produced per run that passes the gate; it is immutable once returned.
type FinalPlan struct {
	RunID string `json:"run_id"`

	// RecommendedAction is the planner narrative, augmented with the
	// action code when one applies, or the insufficient-data marker
	// when no baseline analysis is usable.
	RecommendedAction string `json:"recommended_action"`

	// ActionCode is the machine-readable intervention, set only when
	// priority is high or critical and a specialist recommends one.
	ActionCode string `json:"action_code,omitempty"`

	Priority   Priority   `json:"priority"`
	Confidence Confidence `json:"confidence"`

	// Narrative is the planner output before augmentation.
	Narrative string `json:"narrative"`

	// Baseline holds the settled baseline specialist results.
	Baseline map[specialist.Specialist]specialist.Result `json:"baseline"`

	// Scenarios holds the settled results per accepted scenario.
	Scenarios map[string]map[specialist.Specialist]specialist.Result `json:"scenarios,omitempty"`

	// Comparison recomputes priority and confidence per scenario. The
	// aggregator never selects among them.
	Comparison map[string]ScenarioOutcome `json:"comparison,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
}

// Input carries everything aggregation needs from the run.
type Input struct {
	RunID string

	// Narrative is the planner's narrative, full quality or fallback.
	Narrative string

	// Gate is the detection verdict; it backfills the risk axis when
	// the risk specialist failed.
	Gate disruption.GateDecision

	// Fanout holds every variant's settled specialist results.
	Fanout *specialist.FanoutResult
}

// Aggregator folds specialist results through the decision table.
type Aggregator struct {
	cfg    Config
	logger *slog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates an Aggregator with the given thresholds.
func New(cfg Config, opts ...Option) *Aggregator {
	a := &Aggregator{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate produces the FinalPlan. It cannot fail: missing or failed
// axes fall back to gate-derived severity and the lowest cost band, and
// an all-failed baseline still yields a plan carrying the
// insufficient-data marker.
func (a *Aggregator) Aggregate(input Input) *FinalPlan {
	baseline := map[specialist.Specialist]specialist.Result{}
	var scenarioVariants []*specialist.VariantResult
	if input.Fanout != nil {
		if input.Fanout.Baseline != nil {
			baseline = input.Fanout.Baseline.Results
		}
		scenarioVariants = input.Fanout.Scenarios
	}

	eval := a.evaluate(input.Gate, baseline)

	plan := &FinalPlan{
		RunID:       input.RunID,
		Priority:    eval.priority,
		Confidence:  eval.confidence,
		Narrative:   input.Narrative,
		Baseline:    baseline,
		GeneratedAt: time.Now().UTC(),
	}

	if allFailed(baseline) {
		plan.Confidence = ConfidenceLow
		plan.RecommendedAction = fmt.Sprintf(
			"%s: no usable baseline analysis; escalate to manual review.", InsufficientDataMarker)
	} else {
		plan.RecommendedAction = input.Narrative
		if rank(eval.priority) >= rank(PriorityHigh) {
			if code := interventionCode(baseline); code != "" {
				plan.ActionCode = code
				plan.RecommendedAction = fmt.Sprintf("%s (action: %s)", input.Narrative, code)
			}
		}
	}

	for _, variant := range scenarioVariants {
		if variant == nil {
			continue
		}
		if plan.Scenarios == nil {
			plan.Scenarios = make(map[string]map[specialist.Specialist]specialist.Result, len(scenarioVariants))
			plan.Comparison = make(map[string]ScenarioOutcome, len(scenarioVariants))
		}
		sEval := a.evaluate(input.Gate, variant.Results)
		plan.Scenarios[variant.ScenarioID] = variant.Results
		plan.Comparison[variant.ScenarioID] = ScenarioOutcome{
			Priority:      sEval.priority,
			Confidence:    sEval.confidence,
			RiskSeverity:  sEval.riskSeverity,
			EstimatedCost: sEval.cost,
		}
	}

	a.logger.Info("aggregated final plan",
		"run_id", input.RunID,
		"priority", plan.Priority,
		"confidence", plan.Confidence,
		"action_code", plan.ActionCode,
		"scenarios", len(plan.Scenarios))
	return plan
}

// evaluation is one variant's pass through the decision table.
type evaluation struct {
	priority     Priority
	confidence   Confidence
	riskSeverity string
	likelihood   float64
	cost         decimal.Decimal
	costBand     CostBand
	riskUsable   bool
	costUsable   bool
}

func (a *Aggregator) evaluate(gate disruption.GateDecision, results map[specialist.Specialist]specialist.Result) evaluation {
	eval := evaluation{
		// Gate-derived fallbacks; overwritten when the axes are usable.
		riskSeverity: specialist.SeverityForProbability(gate.RiskProbability),
		likelihood:   gate.RiskProbability,
		cost:         decimal.Zero,
	}

	if risk, ok := usableRisk(results); ok {
		eval.riskSeverity = risk.Severity
		eval.likelihood = risk.Likelihood
		eval.riskUsable = true
	}
	if cost, ok := usableCost(results); ok {
		eval.cost = cost.Total
		eval.costUsable = true
	}

	eval.costBand = a.bandFor(eval.cost)
	eval.priority = tablePriority(eval.riskSeverity, eval.costBand)

	// Critical override: high likelihood of worsening combined with
	// cost beyond budget outranks the table. It requires both axes at
	// full or degraded quality; fallback values never trigger it.
	if eval.riskUsable && eval.costUsable &&
		eval.likelihood >= a.cfg.HighRiskThreshold &&
		eval.cost.GreaterThan(a.cfg.BudgetThreshold) {
		eval.priority = PriorityCritical
	}

	eval.confidence = confidenceOf(results)
	return eval
}

// tablePriority is the documented decision table
// {risk severity} x {cost band} -> priority.
func tablePriority(severity string, band CostBand) Priority {
	switch severity {
	case specialist.SeverityCritical:
		if bandRank(band) >= bandRank(CostBandMedium) {
			return PriorityCritical
		}
		return PriorityHigh
	case specialist.SeverityHigh:
		if bandRank(band) >= bandRank(CostBandMedium) {
			return PriorityHigh
		}
		return PriorityMedium
	case specialist.SeverityMedium:
		return PriorityMedium
	default:
		if band == CostBandHigh {
			return PriorityMedium
		}
		return PriorityLow
	}
}

func (a *Aggregator) bandFor(total decimal.Decimal) CostBand {
	switch {
	case total.GreaterThanOrEqual(a.cfg.CostBandHigh):
		return CostBandHigh
	case total.GreaterThanOrEqual(a.cfg.CostBandMedium):
		return CostBandMedium
	default:
		return CostBandLow
	}
}

// confidenceOf grades a variant's result set. A missing entry counts as
// failed: the axis contributed nothing.
func confidenceOf(results map[specialist.Specialist]specialist.Result) Confidence {
	degraded := 0
	for _, name := range specialist.Specialists() {
		res, ok := results[name]
		if !ok || res.Status == specialist.StatusFailed {
			return ConfidenceLow
		}
		if res.Status == specialist.StatusDegraded {
			degraded++
		}
	}
	switch degraded {
	case 0:
		return ConfidenceHigh
	case len(specialist.Specialists()):
		// Not a single full-quality analysis backs the plan.
		return ConfidenceLow
	default:
		return ConfidenceMedium
	}
}

// interventionCode maps the reallocation and scheduling recommendations
// onto a single machine-readable code. Precedence runs most to least
// disruptive; monitoring with no crew action yields no code.
func interventionCode(results map[specialist.Specialist]specialist.Result) string {
	realloc, hasRealloc := usableReallocation(results)
	sched, hasSched := usableScheduling(results)

	if hasRealloc && realloc.Strategy == specialist.StrategyNextDay {
		return ActionCodeRebookNextDay
	}
	if hasSched && sched.CrewAction == specialist.CrewActionChange {
		return ActionCodeCrewChange
	}
	if hasRealloc && realloc.Strategy == specialist.StrategySameDay {
		return ActionCodeRebookSameDay
	}
	return ""
}

func allFailed(results map[specialist.Specialist]specialist.Result) bool {
	for _, name := range specialist.Specialists() {
		if res, ok := results[name]; ok && res.Status != specialist.StatusFailed {
			return false
		}
	}
	return true
}

// usableRisk returns the typed risk view when the specialist settled
// with a decodable payload. Failed results and undecodable payloads are
// not usable; callers fall back to gate-derived values.
func usableRisk(results map[specialist.Specialist]specialist.Result) (*specialist.RiskAssessment, bool) {
	res, ok := results[specialist.SpecialistRisk]
	if !ok || res.Status == specialist.StatusFailed {
		return nil, false
	}
	risk, err := specialist.DecodeRisk(res.Payload)
	if err != nil {
		return nil, false
	}
	return risk, true
}

func usableCost(results map[specialist.Specialist]specialist.Result) (*specialist.CostEstimate, bool) {
	res, ok := results[specialist.SpecialistCost]
	if !ok || res.Status == specialist.StatusFailed {
		return nil, false
	}
	cost, err := specialist.DecodeCost(res.Payload)
	if err != nil {
		return nil, false
	}
	return cost, true
}

func usableReallocation(results map[specialist.Specialist]specialist.Result) (*specialist.ReallocationPlan, bool) {
	res, ok := results[specialist.SpecialistReallocation]
	if !ok || res.Status == specialist.StatusFailed {
		return nil, false
	}
	plan, err := specialist.DecodeReallocation(res.Payload)
	if err != nil {
		return nil, false
	}
	return plan, true
}

func usableScheduling(results map[specialist.Specialist]specialist.Result) (*specialist.ScheduleAssessment, bool) {
	res, ok := results[specialist.SpecialistScheduling]
	if !ok || res.Status == specialist.StatusFailed {
		return nil, false
	}
	sched, err := specialist.DecodeScheduling(res.Payload)
	if err != nil {
		return nil, false
	}
	return sched, true
}

func rank(p Priority) int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

func bandRank(b CostBand) int {
	switch b {
	case CostBandHigh:
		return 2
	case CostBandMedium:
		return 1
	default:
		return 0
	}
}
