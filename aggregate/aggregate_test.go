package aggregate

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/c360studio/irops/disruption"
	"github.com/c360studio/irops/specialist"
)

func pay(t *testing.T, v any) map[string]any {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	return m
}

func okResult(t *testing.T, name specialist.Specialist, payload any) specialist.Result {
	t.Helper()
	return specialist.Result{Specialist: name, Status: specialist.StatusOK, Payload: pay(t, payload)}
}

func failedResult(name specialist.Specialist) specialist.Result {
	return specialist.Result{Specialist: name, Status: specialist.StatusFailed, FailureReason: "timeout"}
}

// fullBaseline is an all-OK result set for a severe weather delay:
// critical risk, same-day rebooking, cost past the budget threshold.
func fullBaseline(t *testing.T) map[specialist.Specialist]specialist.Result {
	t.Helper()
	return map[specialist.Specialist]specialist.Result{
		specialist.SpecialistRisk: okResult(t, specialist.SpecialistRisk, specialist.RiskAssessment{
			Likelihood:              0.91,
			Severity:                specialist.SeverityCritical,
			ExpectedDurationMinutes: 240,
		}),
		specialist.SpecialistReallocation: okResult(t, specialist.SpecialistReallocation, specialist.ReallocationPlan{
			Strategy:             specialist.StrategySameDay,
			RebookedPassengers:   312,
			ProtectedConnections: 14,
		}),
		specialist.SpecialistCost: okResult(t, specialist.SpecialistCost, specialist.CostEstimate{
			Compensation:    decimal.NewFromInt(39000),
			CrewCost:        decimal.NewFromInt(12000),
			OperationalCost: decimal.NewFromInt(14750),
			Total:           decimal.NewFromInt(65750),
			Currency:        "USD",
		}),
		specialist.SpecialistScheduling: okResult(t, specialist.SpecialistScheduling, specialist.ScheduleAssessment{
			CrewLegal:                      true,
			CrewAction:                     specialist.CrewActionExtendDuty,
			EstimatedDepartureDelayMinutes: 155,
		}),
	}
}

func testGate() disruption.GateDecision {
	return disruption.GateDecision{
		DisruptionDetected: true,
		RiskProbability:    0.91,
		Rationale:          "disruption detected: risk 0.91 exceeds threshold 0.70, dominant signal weather (0.90)",
	}
}

func fanout(baseline map[specialist.Specialist]specialist.Result, scenarios ...*specialist.VariantResult) *specialist.FanoutResult {
	return &specialist.FanoutResult{
		Baseline:  &specialist.VariantResult{Results: baseline},
		Scenarios: scenarios,
	}
}

const testNarrative = "Hold CX880 at the gate, rebook onto the evening LAX rotation, and protect the 14 tightest connections."

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.HighRiskThreshold != 0.75 {
		t.Errorf("HighRiskThreshold = %v, want 0.75", cfg.HighRiskThreshold)
	}
	if !cfg.BudgetThreshold.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("BudgetThreshold = %s, want 50000", cfg.BudgetThreshold)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero risk threshold", func(c *Config) { c.HighRiskThreshold = 0 }},
		{"risk threshold above one", func(c *Config) { c.HighRiskThreshold = 1.2 }},
		{"negative budget", func(c *Config) { c.BudgetThreshold = decimal.NewFromInt(-1) }},
		{"inverted bands", func(c *Config) { c.CostBandHigh = decimal.NewFromInt(5000) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestTablePriority(t *testing.T) {
	tests := []struct {
		severity string
		band     CostBand
		want     Priority
	}{
		{specialist.SeverityCritical, CostBandLow, PriorityHigh},
		{specialist.SeverityCritical, CostBandMedium, PriorityCritical},
		{specialist.SeverityCritical, CostBandHigh, PriorityCritical},
		{specialist.SeverityHigh, CostBandLow, PriorityMedium},
		{specialist.SeverityHigh, CostBandMedium, PriorityHigh},
		{specialist.SeverityHigh, CostBandHigh, PriorityHigh},
		{specialist.SeverityMedium, CostBandLow, PriorityMedium},
		{specialist.SeverityMedium, CostBandMedium, PriorityMedium},
		{specialist.SeverityMedium, CostBandHigh, PriorityMedium},
		{specialist.SeverityLow, CostBandLow, PriorityLow},
		{specialist.SeverityLow, CostBandMedium, PriorityLow},
		{specialist.SeverityLow, CostBandHigh, PriorityMedium},
	}
	for _, tt := range tests {
		t.Run(tt.severity+"/"+string(tt.band), func(t *testing.T) {
			if got := tablePriority(tt.severity, tt.band); got != tt.want {
				t.Errorf("tablePriority(%s, %s) = %s, want %s", tt.severity, tt.band, got, tt.want)
			}
		})
	}
}

func TestBandBoundaries(t *testing.T) {
	agg := New(DefaultConfig())
	tests := []struct {
		total string
		want  CostBand
	}{
		{"0", CostBandLow},
		{"9999.99", CostBandLow},
		{"10000", CostBandMedium},
		{"49999.99", CostBandMedium},
		{"50000", CostBandHigh},
		{"250000", CostBandHigh},
	}
	for _, tt := range tests {
		total, err := decimal.NewFromString(tt.total)
		if err != nil {
			t.Fatalf("parse %q: %v", tt.total, err)
		}
		if got := agg.bandFor(total); got != tt.want {
			t.Errorf("bandFor(%s) = %s, want %s", tt.total, got, tt.want)
		}
	}
}

func TestAggregateAllOK(t *testing.T) {
	agg := New(DefaultConfig())
	plan := agg.Aggregate(Input{
		RunID:     "run-1",
		Narrative: testNarrative,
		Gate:      testGate(),
		Fanout:    fanout(fullBaseline(t)),
	})

	if plan.RunID != "run-1" {
		t.Errorf("RunID = %q, want run-1", plan.RunID)
	}
	if plan.Priority != PriorityCritical {
		t.Errorf("Priority = %s, want critical", plan.Priority)
	}
	if plan.Confidence != ConfidenceHigh {
		t.Errorf("Confidence = %s, want high", plan.Confidence)
	}
	if plan.ActionCode != ActionCodeRebookSameDay {
		t.Errorf("ActionCode = %q, want %s", plan.ActionCode, ActionCodeRebookSameDay)
	}
	want := testNarrative + " (action: REBOOK_SAME_DAY)"
	if plan.RecommendedAction != want {
		t.Errorf("RecommendedAction = %q, want %q", plan.RecommendedAction, want)
	}
	if plan.Narrative != testNarrative {
		t.Errorf("Narrative mutated: %q", plan.Narrative)
	}
	if len(plan.Baseline) != 4 {
		t.Errorf("Baseline has %d results, want 4", len(plan.Baseline))
	}
	if plan.GeneratedAt.IsZero() {
		t.Error("GeneratedAt not stamped")
	}
	if plan.GeneratedAt.Location().String() != "UTC" {
		t.Errorf("GeneratedAt zone = %v, want UTC", plan.GeneratedAt.Location())
	}
}

func TestCriticalOverrideBoundaries(t *testing.T) {
	tests := []struct {
		name       string
		likelihood float64
		total      string
		want       Priority
	}{
		// High severity with a high cost band sits at high priority in
		// the table; the override promotes it only past both bounds.
		{"both past bounds", 0.75, "50000.01", PriorityCritical},
		{"cost exactly at budget", 0.75, "50000", PriorityHigh},
		{"likelihood below bound", 0.7499, "60000", PriorityHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, err := decimal.NewFromString(tt.total)
			if err != nil {
				t.Fatalf("parse %q: %v", tt.total, err)
			}
			baseline := fullBaseline(t)
			baseline[specialist.SpecialistRisk] = okResult(t, specialist.SpecialistRisk, specialist.RiskAssessment{
				Likelihood: tt.likelihood,
				Severity:   specialist.SeverityHigh,
			})
			baseline[specialist.SpecialistCost] = okResult(t, specialist.SpecialistCost, specialist.CostEstimate{
				OperationalCost: total,
				Total:           total,
				Currency:        "USD",
			})

			plan := New(DefaultConfig()).Aggregate(Input{
				RunID:     "run-override",
				Narrative: testNarrative,
				Gate:      testGate(),
				Fanout:    fanout(baseline),
			})
			if plan.Priority != tt.want {
				t.Errorf("Priority = %s, want %s", plan.Priority, tt.want)
			}
		})
	}
}

func TestOverrideNeedsUsableAxes(t *testing.T) {
	// Huge cost and a gate probability past the risk bound, but the
	// risk specialist failed: the override must stay quiet and the
	// table works from the gate-derived severity instead.
	baseline := fullBaseline(t)
	baseline[specialist.SpecialistRisk] = failedResult(specialist.SpecialistRisk)

	plan := New(DefaultConfig()).Aggregate(Input{
		RunID:     "run-fallback",
		Narrative: testNarrative,
		Gate:      testGate(),
		Fanout:    fanout(baseline),
	})

	// Gate 0.91 falls in the critical band; cost 65750 is the high
	// band; the table alone yields critical here, so check confidence
	// to prove the failed axis was noticed.
	if plan.Priority != PriorityCritical {
		t.Errorf("Priority = %s, want critical from table fallback", plan.Priority)
	}
	if plan.Confidence != ConfidenceLow {
		t.Errorf("Confidence = %s, want low with a failed baseline specialist", plan.Confidence)
	}
}

func TestConfidenceGrading(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[specialist.Specialist]specialist.Result)
		want   Confidence
	}{
		{"all ok", func(map[specialist.Specialist]specialist.Result) {}, ConfidenceHigh},
		{"one degraded", func(m map[specialist.Specialist]specialist.Result) {
			res := m[specialist.SpecialistScheduling]
			res.Status = specialist.StatusDegraded
			m[specialist.SpecialistScheduling] = res
		}, ConfidenceMedium},
		{"all degraded", func(m map[specialist.Specialist]specialist.Result) {
			for name, res := range m {
				res.Status = specialist.StatusDegraded
				m[name] = res
			}
		}, ConfidenceLow},
		{"one failed", func(m map[specialist.Specialist]specialist.Result) {
			m[specialist.SpecialistScheduling] = failedResult(specialist.SpecialistScheduling)
		}, ConfidenceLow},
		{"failed outranks degraded", func(m map[specialist.Specialist]specialist.Result) {
			res := m[specialist.SpecialistRisk]
			res.Status = specialist.StatusDegraded
			m[specialist.SpecialistRisk] = res
			m[specialist.SpecialistScheduling] = failedResult(specialist.SpecialistScheduling)
		}, ConfidenceLow},
		{"missing entry counts as failed", func(m map[specialist.Specialist]specialist.Result) {
			delete(m, specialist.SpecialistReallocation)
		}, ConfidenceLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			baseline := fullBaseline(t)
			tt.mutate(baseline)
			plan := New(DefaultConfig()).Aggregate(Input{
				RunID:     "run-confidence",
				Narrative: testNarrative,
				Gate:      testGate(),
				Fanout:    fanout(baseline),
			})
			if plan.Confidence != tt.want {
				t.Errorf("Confidence = %s, want %s", plan.Confidence, tt.want)
			}
		})
	}
}

func TestAllFailedBaselineStillYieldsPlan(t *testing.T) {
	baseline := map[specialist.Specialist]specialist.Result{}
	for _, name := range specialist.Specialists() {
		baseline[name] = failedResult(name)
	}

	plan := New(DefaultConfig()).Aggregate(Input{
		RunID:     "run-dark",
		Narrative: testNarrative,
		Gate:      testGate(),
		Fanout:    fanout(baseline),
	})

	if plan == nil {
		t.Fatal("expected a plan even with an all-failed baseline")
	}
	if plan.Confidence != ConfidenceLow {
		t.Errorf("Confidence = %s, want low", plan.Confidence)
	}
	if !strings.HasPrefix(plan.RecommendedAction, InsufficientDataMarker) {
		t.Errorf("RecommendedAction = %q, want %s marker", plan.RecommendedAction, InsufficientDataMarker)
	}
	if plan.ActionCode != "" {
		t.Errorf("ActionCode = %q, want empty", plan.ActionCode)
	}
	// The failed results are retained, not discarded.
	if len(plan.Baseline) != 4 {
		t.Errorf("Baseline has %d results, want 4", len(plan.Baseline))
	}
	// Gate 0.91 maps to critical severity; zero cost is the low band.
	if plan.Priority != PriorityHigh {
		t.Errorf("Priority = %s, want high from gate fallback", plan.Priority)
	}
}

func TestScenarioComparison(t *testing.T) {
	mild := map[specialist.Specialist]specialist.Result{
		specialist.SpecialistRisk: okResult(t, specialist.SpecialistRisk, specialist.RiskAssessment{
			Likelihood: 0.3,
			Severity:   specialist.SeverityLow,
		}),
		specialist.SpecialistReallocation: okResult(t, specialist.SpecialistReallocation, specialist.ReallocationPlan{
			Strategy: specialist.StrategyMonitor,
		}),
		specialist.SpecialistCost: okResult(t, specialist.SpecialistCost, specialist.CostEstimate{
			OperationalCost: decimal.NewFromInt(4500),
			Total:           decimal.NewFromInt(4500),
			Currency:        "USD",
		}),
		specialist.SpecialistScheduling: okResult(t, specialist.SpecialistScheduling, specialist.ScheduleAssessment{
			CrewLegal:  true,
			CrewAction: specialist.CrewActionNone,
		}),
	}
	severe := fullBaseline(t)
	severe[specialist.SpecialistScheduling] = failedResult(specialist.SpecialistScheduling)

	plan := New(DefaultConfig()).Aggregate(Input{
		RunID:     "run-compare",
		Narrative: testNarrative,
		Gate:      testGate(),
		Fanout: fanout(fullBaseline(t),
			&specialist.VariantResult{ScenarioID: "scn-mild", Results: mild},
			&specialist.VariantResult{ScenarioID: "scn-severe", Results: severe},
		),
	})

	if len(plan.Scenarios) != 2 || len(plan.Comparison) != 2 {
		t.Fatalf("got %d scenarios and %d comparisons, want 2 and 2", len(plan.Scenarios), len(plan.Comparison))
	}

	mildOutcome := plan.Comparison["scn-mild"]
	if mildOutcome.Priority != PriorityLow {
		t.Errorf("mild Priority = %s, want low", mildOutcome.Priority)
	}
	if mildOutcome.Confidence != ConfidenceHigh {
		t.Errorf("mild Confidence = %s, want high", mildOutcome.Confidence)
	}
	if !mildOutcome.EstimatedCost.Equal(decimal.NewFromInt(4500)) {
		t.Errorf("mild EstimatedCost = %s, want 4500", mildOutcome.EstimatedCost)
	}

	severeOutcome := plan.Comparison["scn-severe"]
	if severeOutcome.Priority != PriorityCritical {
		t.Errorf("severe Priority = %s, want critical", severeOutcome.Priority)
	}
	if severeOutcome.Confidence != ConfidenceLow {
		t.Errorf("severe Confidence = %s, want low", severeOutcome.Confidence)
	}
	if severeOutcome.RiskSeverity != specialist.SeverityCritical {
		t.Errorf("severe RiskSeverity = %s, want critical", severeOutcome.RiskSeverity)
	}

	// The scenarios never displace the baseline recommendation: the
	// top-level priority and confidence come from the baseline alone.
	if plan.Priority != PriorityCritical || plan.Confidence != ConfidenceHigh {
		t.Errorf("baseline verdict disturbed: priority %s confidence %s", plan.Priority, plan.Confidence)
	}
}

func TestCostFailedUsesLowestBand(t *testing.T) {
	baseline := fullBaseline(t)
	baseline[specialist.SpecialistCost] = failedResult(specialist.SpecialistCost)

	plan := New(DefaultConfig()).Aggregate(Input{
		RunID:     "run-nocost",
		Narrative: testNarrative,
		Gate:      testGate(),
		Fanout:    fanout(baseline),
	})

	// Critical severity with the low cost band lands on high, not
	// critical, and the override cannot fire without a cost figure.
	if plan.Priority != PriorityHigh {
		t.Errorf("Priority = %s, want high", plan.Priority)
	}
	if plan.Confidence != ConfidenceLow {
		t.Errorf("Confidence = %s, want low", plan.Confidence)
	}
}

func TestInterventionCodePrecedence(t *testing.T) {
	tests := []struct {
		name       string
		strategy   string
		crewAction string
		want       string
	}{
		{"next-day outranks crew change", specialist.StrategyNextDay, specialist.CrewActionChange, ActionCodeRebookNextDay},
		{"crew change outranks same-day", specialist.StrategyMonitor, specialist.CrewActionChange, ActionCodeCrewChange},
		{"same-day alone", specialist.StrategySameDay, specialist.CrewActionNone, ActionCodeRebookSameDay},
		{"no intervention", specialist.StrategyMonitor, specialist.CrewActionNone, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			baseline := fullBaseline(t)
			baseline[specialist.SpecialistReallocation] = okResult(t, specialist.SpecialistReallocation, specialist.ReallocationPlan{
				Strategy: tt.strategy,
			})
			baseline[specialist.SpecialistScheduling] = okResult(t, specialist.SpecialistScheduling, specialist.ScheduleAssessment{
				CrewLegal:  true,
				CrewAction: tt.crewAction,
			})

			plan := New(DefaultConfig()).Aggregate(Input{
				RunID:     "run-code",
				Narrative: testNarrative,
				Gate:      testGate(),
				Fanout:    fanout(baseline),
			})
			if plan.ActionCode != tt.want {
				t.Errorf("ActionCode = %q, want %q", plan.ActionCode, tt.want)
			}
			if tt.want == "" && plan.RecommendedAction != testNarrative {
				t.Errorf("RecommendedAction augmented without a code: %q", plan.RecommendedAction)
			}
		})
	}
}

func TestNoActionCodeBelowHighPriority(t *testing.T) {
	// Medium risk with a low-band cost sits at medium priority; even an
	// aggressive rebooking strategy must not surface a code there.
	baseline := fullBaseline(t)
	baseline[specialist.SpecialistRisk] = okResult(t, specialist.SpecialistRisk, specialist.RiskAssessment{
		Likelihood: 0.5,
		Severity:   specialist.SeverityMedium,
	})
	baseline[specialist.SpecialistCost] = okResult(t, specialist.SpecialistCost, specialist.CostEstimate{
		OperationalCost: decimal.NewFromInt(8000),
		Total:           decimal.NewFromInt(8000),
		Currency:        "USD",
	})
	baseline[specialist.SpecialistReallocation] = okResult(t, specialist.SpecialistReallocation, specialist.ReallocationPlan{
		Strategy: specialist.StrategyNextDay,
	})

	plan := New(DefaultConfig()).Aggregate(Input{
		RunID:     "run-medium",
		Narrative: testNarrative,
		Gate:      testGate(),
		Fanout:    fanout(baseline),
	})

	if plan.Priority != PriorityMedium {
		t.Fatalf("Priority = %s, want medium", plan.Priority)
	}
	if plan.ActionCode != "" {
		t.Errorf("ActionCode = %q, want empty below high priority", plan.ActionCode)
	}
	if plan.RecommendedAction != testNarrative {
		t.Errorf("RecommendedAction = %q, want unaugmented narrative", plan.RecommendedAction)
	}
}

func TestAggregateToleratesMissingFanout(t *testing.T) {
	plan := New(DefaultConfig()).Aggregate(Input{
		RunID:     "run-empty",
		Narrative: testNarrative,
		Gate:      testGate(),
	})
	if plan == nil {
		t.Fatal("expected a plan for nil fanout")
	}
	if plan.Confidence != ConfidenceLow {
		t.Errorf("Confidence = %s, want low", plan.Confidence)
	}
	if !strings.HasPrefix(plan.RecommendedAction, InsufficientDataMarker) {
		t.Errorf("RecommendedAction = %q, want %s marker", plan.RecommendedAction, InsufficientDataMarker)
	}
}
