package specialist

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/c360studio/irops/disruption"
)

// CostEstimate is the cost specialist's output shape. All money is
// decimal in a single currency.
type CostEstimate struct {
	// Compensation is the regulatory passenger compensation exposure.
	Compensation decimal.Decimal `json:"compensation"`

	// Accommodation covers hotels and meals for stranded passengers.
	Accommodation decimal.Decimal `json:"accommodation"`

	// CrewCost covers callouts and overtime.
	CrewCost decimal.Decimal `json:"crew_cost"`

	// OperationalCost covers fuel, handling, and knock-on costs.
	OperationalCost decimal.Decimal `json:"operational_cost"`

	// Total is the sum of the component figures.
	Total decimal.Decimal `json:"total"`

	// Currency is the ISO code all figures share.
	Currency string `json:"currency"`

	// Breakdown explains how each figure was derived.
	Breakdown string `json:"breakdown,omitempty"`
}

// Validate rejects estimates outside the contract.
func (c CostEstimate) Validate() error {
	if c.Compensation.IsNegative() || c.Accommodation.IsNegative() ||
		c.CrewCost.IsNegative() || c.OperationalCost.IsNegative() {
		return fmt.Errorf("negative cost component")
	}
	if c.Currency == "" {
		return fmt.Errorf("missing currency")
	}
	return nil
}

// ComponentSum returns the sum of the component figures, ignoring the
// reported total.
func (c CostEstimate) ComponentSum() decimal.Decimal {
	return c.Compensation.Add(c.Accommodation).Add(c.CrewCost).Add(c.OperationalCost)
}

// CostAdapter estimates the financial impact of the disruption.
type CostAdapter struct {
	providerAdapter
}

// NewCostAdapter creates the cost specialist. A nil client selects
// heuristic-only mode.
func NewCostAdapter(client Completer) *CostAdapter {
	return &CostAdapter{providerAdapter{role: SpecialistCost, client: client}}
}

func (a *CostAdapter) Name() Specialist { return SpecialistCost }

func (a *CostAdapter) Consult(ctx context.Context, input Input) (*Assessment, error) {
	if a.client == nil {
		return a.Heuristic(input), nil
	}

	var wire CostEstimate
	if err := a.completeJSON(ctx, input, &wire); err != nil {
		return nil, err
	}
	if err := wire.Validate(); err != nil {
		return nil, disruption.NewError(disruption.KindProviderMalformedOutput, err)
	}
	// Models routinely get the arithmetic wrong; the component sum is
	// authoritative.
	if sum := wire.ComponentSum(); !sum.Equal(wire.Total) {
		wire.Total = sum
	}
	return &Assessment{Payload: payloadOf(wire), Reasoning: wire.Breakdown}, nil
}

// Heuristic applies the EU261/HKCAD-style compensation table plus flat
// accommodation, crew, and delay-scaled operational figures.
func (a *CostAdapter) Heuristic(input Input) *Assessment {
	wire := heuristicCost(input)
	return &Assessment{Payload: payloadOf(wire), Reasoning: wire.Breakdown}
}

func heuristicCost(input Input) CostEstimate {
	ctx := input.Context
	pax := decimal.NewFromInt(int64(ctx.PassengersAffected))

	perPax := decimal.Zero
	switch {
	case ctx.DelayMinutes >= 180:
		switch ctx.Haul {
		case disruption.HaulLong:
			perPax = decimal.NewFromInt(600)
		case disruption.HaulMedium:
			perPax = decimal.NewFromInt(400)
		default:
			perPax = decimal.NewFromInt(250)
		}
	case ctx.DelayMinutes >= 120:
		perPax = decimal.NewFromInt(125)
	}
	compensation := perPax.Mul(pax)

	accommodation := decimal.Zero
	if ctx.DelayMinutes > 180 {
		accommodation = decimal.NewFromInt(150).Mul(pax)
	}

	crewCost := decimal.Zero
	if ctx.DelayMinutes > 120 || !ctx.CrewReady {
		crewCost = decimal.NewFromInt(12000)
	}

	operationalUnits := 10000 + 50*ctx.DelayMinutes
	if operationalUnits > 30000 {
		operationalUnits = 30000
	}
	operational := decimal.NewFromInt(int64(operationalUnits))

	total := compensation.Add(accommodation).Add(crewCost).Add(operational)
	return CostEstimate{
		Compensation:    compensation,
		Accommodation:   accommodation,
		CrewCost:        crewCost,
		OperationalCost: operational,
		Total:           total,
		Currency:        "USD",
		Breakdown: fmt.Sprintf(
			"Compensation %s (%d pax x %s per passenger), accommodation %s, crew %s, operational %s.",
			compensation, ctx.PassengersAffected, perPax, accommodation, crewCost, operational),
	}
}
