package specialist

import (
	"context"
	"fmt"

	"github.com/c360studio/irops/disruption"
)

// Rebooking strategies, least to most aggressive.
const (
	StrategyMonitor = "monitor-and-assess"
	StrategySameDay = "same-day-alternate"
	StrategyNextDay = "next-day-alternate"
)

// ReallocationPlan is the reallocation specialist's output shape.
type ReallocationPlan struct {
	// Strategy is one of the Strategy* values.
	Strategy string `json:"strategy"`

	// Actions are concrete steps in execution order.
	Actions []string `json:"actions,omitempty"`

	// ProtectedConnections counts at-risk connections the plan saves.
	ProtectedConnections int `json:"protected_connections"`

	// RebookedPassengers counts passengers moved to alternatives.
	RebookedPassengers int `json:"rebooked_passengers"`

	// StrandedPassengers counts passengers without a same-day option;
	// they drive the cost specialist's hotel figures.
	StrandedPassengers int `json:"stranded_passengers"`

	// Notes records constraints or assumptions behind the plan.
	Notes string `json:"notes,omitempty"`
}

// Validate rejects plans outside the contract.
func (p ReallocationPlan) Validate() error {
	switch p.Strategy {
	case StrategyMonitor, StrategySameDay, StrategyNextDay:
	default:
		return fmt.Errorf("unknown strategy %q", p.Strategy)
	}
	if p.ProtectedConnections < 0 || p.RebookedPassengers < 0 || p.StrandedPassengers < 0 {
		return fmt.Errorf("negative passenger or connection count")
	}
	return nil
}

// RequiresOvernight reports whether the plan leaves passengers needing
// accommodation.
func (p ReallocationPlan) RequiresOvernight() bool {
	return p.Strategy == StrategyNextDay || p.StrandedPassengers > 0
}

// ReallocationAdapter plans passenger rebooking and connection
// protection.
type ReallocationAdapter struct {
	providerAdapter
}

// NewReallocationAdapter creates the reallocation specialist. A nil
// client selects heuristic-only mode.
func NewReallocationAdapter(client Completer) *ReallocationAdapter {
	return &ReallocationAdapter{providerAdapter{role: SpecialistReallocation, client: client}}
}

func (a *ReallocationAdapter) Name() Specialist { return SpecialistReallocation }

func (a *ReallocationAdapter) Consult(ctx context.Context, input Input) (*Assessment, error) {
	if a.client == nil {
		return a.Heuristic(input), nil
	}

	var wire ReallocationPlan
	if err := a.completeJSON(ctx, input, &wire); err != nil {
		return nil, err
	}
	if err := wire.Validate(); err != nil {
		return nil, disruption.NewError(disruption.KindProviderMalformedOutput, err)
	}
	return &Assessment{Payload: payloadOf(wire), Reasoning: wire.Notes}, nil
}

// Heuristic picks the strategy from the delay band: monitoring under an
// hour, same-day alternates past one hour, next-day with hotels past
// three hours.
func (a *ReallocationAdapter) Heuristic(input Input) *Assessment {
	wire := heuristicReallocation(input)
	return &Assessment{Payload: payloadOf(wire), Reasoning: wire.Notes}
}

func heuristicReallocation(input Input) ReallocationPlan {
	ctx := input.Context
	delay := ctx.DelayMinutes
	pax := ctx.PassengersAffected

	var plan ReallocationPlan
	switch {
	case delay > 180:
		plan.Strategy = StrategyNextDay
		plan.RebookedPassengers = pax
		plan.StrandedPassengers = pax
		plan.Actions = append(plan.Actions,
			fmt.Sprintf("Book hotels for %d passengers", pax),
			"Arrange meal vouchers")
	case delay > 60:
		plan.Strategy = StrategySameDay
		plan.RebookedPassengers = pax
		plan.ProtectedConnections = ctx.ConnectionsAtRisk / 2
	default:
		plan.Strategy = StrategyMonitor
		plan.ProtectedConnections = ctx.ConnectionsAtRisk
	}

	plan.Actions = append(plan.Actions,
		fmt.Sprintf("Search alternative flights for %d passengers", pax),
		"Notify passengers via SMS and email")
	plan.Notes = fmt.Sprintf(
		"Heuristic plan: a %d minute delay with %d passengers suggests the %s strategy.",
		delay, pax, plan.Strategy)
	return plan
}
