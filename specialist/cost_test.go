package specialist

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/c360studio/irops/disruption"
	"github.com/c360studio/irops/reasoning"
	"github.com/c360studio/irops/reasoning/testutil"
)

func TestHeuristicCostCompensationBands(t *testing.T) {
	tests := []struct {
		name        string
		delay       int
		haul        disruption.HaulClass
		pax         int
		wantPerPax  int64
		wantComp    int64
		wantAccomm  int64
	}{
		{"long haul long delay", 200, disruption.HaulLong, 312, 600, 187200, 46800},
		{"medium haul long delay", 185, disruption.HaulMedium, 100, 400, 40000, 15000},
		{"short haul long delay", 190, disruption.HaulShort, 80, 250, 20000, 12000},
		{"two hour band", 150, disruption.HaulLong, 100, 125, 12500, 0},
		{"boundary at 180 pays full rate no hotel", 180, disruption.HaulLong, 10, 600, 6000, 0},
		{"under two hours owes nothing", 95, disruption.HaulLong, 312, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := testInput()
			input.Context.DelayMinutes = tt.delay
			input.Context.Haul = tt.haul
			input.Context.PassengersAffected = tt.pax
			got := heuristicCost(input)

			if !got.Compensation.Equal(decimal.NewFromInt(tt.wantComp)) {
				t.Errorf("Compensation = %s, want %d", got.Compensation, tt.wantComp)
			}
			if !got.Accommodation.Equal(decimal.NewFromInt(tt.wantAccomm)) {
				t.Errorf("Accommodation = %s, want %d", got.Accommodation, tt.wantAccomm)
			}
			if got.Currency != "USD" {
				t.Errorf("Currency = %q, want USD", got.Currency)
			}
		})
	}
}

func TestHeuristicCostCrewAndOperational(t *testing.T) {
	input := testInput()
	input.Context.DelayMinutes = 95
	got := heuristicCost(input)
	if !got.CrewCost.IsZero() {
		t.Errorf("CrewCost = %s, want 0 under two hours with crew ready", got.CrewCost)
	}
	if !got.OperationalCost.Equal(decimal.NewFromInt(14750)) {
		t.Errorf("OperationalCost = %s, want 14750 for a 95 minute delay", got.OperationalCost)
	}

	input.Context.CrewReady = false
	got = heuristicCost(input)
	if !got.CrewCost.Equal(decimal.NewFromInt(12000)) {
		t.Errorf("CrewCost = %s, want 12000 when crew unavailable", got.CrewCost)
	}

	input.Context.CrewReady = true
	input.Context.DelayMinutes = 600
	got = heuristicCost(input)
	if !got.OperationalCost.Equal(decimal.NewFromInt(30000)) {
		t.Errorf("OperationalCost = %s, want capped at 30000", got.OperationalCost)
	}
}

func TestHeuristicCostTotalIsComponentSum(t *testing.T) {
	input := testInput()
	input.Context.DelayMinutes = 200
	got := heuristicCost(input)

	if !got.Total.Equal(got.ComponentSum()) {
		t.Errorf("Total = %s, component sum = %s", got.Total, got.ComponentSum())
	}
}

func TestCostAdapterConsultRecomputesTotal(t *testing.T) {
	mock := &testutil.MockClient{Responses: []*reasoning.Response{{
		Content: `{"compensation": 100, "accommodation": 50, "crew_cost": 0, "operational_cost": 25, "total": 9999, "currency": "EUR"}`,
		Model:   "test-model",
	}}}
	adapter := NewCostAdapter(mock)

	got, err := adapter.Consult(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Consult() error = %v", err)
	}

	est, err := DecodeCost(got.Payload)
	if err != nil {
		t.Fatalf("DecodeCost() error = %v", err)
	}
	if !est.Total.Equal(decimal.NewFromInt(175)) {
		t.Errorf("Total = %s, want 175 recomputed from components", est.Total)
	}
}

func TestCostEstimateValidate(t *testing.T) {
	valid := CostEstimate{Currency: "USD"}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() error = %v for zero estimate", err)
	}

	negative := CostEstimate{Currency: "USD", CrewCost: decimal.NewFromInt(-5)}
	if err := negative.Validate(); err == nil {
		t.Error("Validate() accepted a negative component")
	}

	noCurrency := CostEstimate{}
	if err := noCurrency.Validate(); err == nil {
		t.Error("Validate() accepted a missing currency")
	}
}
