package specialist

import (
	"context"
	"fmt"

	"github.com/c360studio/irops/disruption"
)

// Crew actions, least to most disruptive.
const (
	CrewActionNone       = "none"
	CrewActionExtendDuty = "extend-duty"
	CrewActionChange     = "crew-change"
)

// TimelineEntry is one step of the recovery timeline.
type TimelineEntry struct {
	// OffsetMinutes is minutes from now.
	OffsetMinutes int `json:"offset_minutes"`

	Action string `json:"action"`
}

// ScheduleAssessment is the scheduling specialist's output shape.
type ScheduleAssessment struct {
	// CrewLegal is false when remaining duty time cannot cover the
	// delayed departure.
	CrewLegal bool `json:"crew_legal"`

	// CrewAction is one of the CrewAction* values.
	CrewAction string `json:"crew_action"`

	// EstimatedDepartureDelayMinutes is the projected total delay at
	// pushback.
	EstimatedDepartureDelayMinutes int `json:"estimated_departure_delay_minutes"`

	// Timeline lists recovery steps in offset order.
	Timeline []TimelineEntry `json:"timeline,omitempty"`

	// Notes records duty-time margins and rotation knock-on effects.
	Notes string `json:"notes,omitempty"`
}

// Validate rejects assessments outside the contract.
func (s ScheduleAssessment) Validate() error {
	switch s.CrewAction {
	case CrewActionNone, CrewActionExtendDuty, CrewActionChange:
	default:
		return fmt.Errorf("unknown crew action %q", s.CrewAction)
	}
	if s.EstimatedDepartureDelayMinutes < 0 {
		return fmt.Errorf("negative departure delay %d", s.EstimatedDepartureDelayMinutes)
	}
	return nil
}

// SchedulingAdapter checks crew legality and builds the recovery
// timeline.
type SchedulingAdapter struct {
	providerAdapter
}

// NewSchedulingAdapter creates the scheduling specialist. A nil client
// selects heuristic-only mode.
func NewSchedulingAdapter(client Completer) *SchedulingAdapter {
	return &SchedulingAdapter{providerAdapter{role: SpecialistScheduling, client: client}}
}

func (a *SchedulingAdapter) Name() Specialist { return SpecialistScheduling }

func (a *SchedulingAdapter) Consult(ctx context.Context, input Input) (*Assessment, error) {
	if a.client == nil {
		return a.Heuristic(input), nil
	}

	var wire ScheduleAssessment
	if err := a.completeJSON(ctx, input, &wire); err != nil {
		return nil, err
	}
	if err := wire.Validate(); err != nil {
		return nil, disruption.NewError(disruption.KindProviderMalformedOutput, err)
	}
	return &Assessment{Payload: payloadOf(wire), Reasoning: wire.Notes}, nil
}

// Heuristic escalates the crew action with the delay: none while margins
// hold, extend-duty past one hour, crew-change past two hours or on a
// projected duty overrun.
func (a *SchedulingAdapter) Heuristic(input Input) *Assessment {
	wire := heuristicScheduling(input)
	return &Assessment{Payload: payloadOf(wire), Reasoning: wire.Notes}
}

func heuristicScheduling(input Input) ScheduleAssessment {
	ctx := input.Context
	delay := ctx.DelayMinutes

	dutyOverrun := ctx.CrewDutyRemainingMinutes > 0 && ctx.CrewDutyRemainingMinutes < delay
	needChange := delay > 120 || dutyOverrun || !ctx.CrewReady

	action := CrewActionNone
	switch {
	case needChange:
		action = CrewActionChange
	case delay > 60:
		action = CrewActionExtendDuty
	}

	estimate := delay
	if action == CrewActionChange {
		estimate += 60
	}
	if ctx.ConnectionsAtRisk > 20 {
		estimate += 15
	}

	timeline := []TimelineEntry{
		{OffsetMinutes: 0, Action: "Confirm crew duty status with crew control"},
	}
	switch action {
	case CrewActionChange:
		timeline = append(timeline,
			TimelineEntry{OffsetMinutes: 30, Action: "Call out standby crew"},
			TimelineEntry{OffsetMinutes: 90, Action: "Standby crew sign-on and briefing"})
	case CrewActionExtendDuty:
		timeline = append(timeline,
			TimelineEntry{OffsetMinutes: 30, Action: "File duty extension with crew control"})
	}
	pushback := estimate
	if last := timeline[len(timeline)-1].OffsetMinutes; pushback <= last {
		pushback = last + 15
	}
	timeline = append(timeline, TimelineEntry{OffsetMinutes: pushback, Action: "Push back"})

	notes := "Crew within duty limits; monitoring only."
	if dutyOverrun {
		notes = "Crew duty time approaching limit; rest requirements must be maintained."
	} else if !ctx.CrewReady {
		notes = "Operating crew unavailable; standby callout required."
	}

	return ScheduleAssessment{
		CrewLegal:                      !dutyOverrun,
		CrewAction:                     action,
		EstimatedDepartureDelayMinutes: estimate,
		Timeline:                       timeline,
		Notes:                          notes,
	}
}
