// Package prompts holds the prompt text for the planner and specialist
// reasoning calls. Prompts are plain functions returning strings so the
// full text lives in source control and diffs like code.
package prompts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/c360studio/irops/disruption"
)

// SpecialistRoles defines the available specialist analysts.
var SpecialistRoles = map[string]string{
	"risk":         "Assesses disruption likelihood, severity, and expected duration",
	"reallocation": "Plans passenger rebooking and aircraft/gate resource moves",
	"cost":         "Estimates compensation, accommodation, and operational cost",
	"scheduling":   "Checks crew legality and builds the recovery timeline",
}

// SystemPromptForSpecialist returns the system prompt for a specialist by
// name, or empty for unknown specialists.
func SystemPromptForSpecialist(name string) string {
	switch name {
	case "risk":
		return RiskSystemPrompt()
	case "reallocation":
		return ReallocationSystemPrompt()
	case "cost":
		return CostSystemPrompt()
	case "scheduling":
		return SchedulingSystemPrompt()
	default:
		return ""
	}
}

// PromptForSpecialist returns the user prompt for a specialist by name,
// formatted for the given disruption context.
func PromptForSpecialist(name string, ctx disruption.Context) string {
	switch name {
	case "risk":
		return RiskPrompt(ctx)
	case "reallocation":
		return ReallocationPrompt(ctx)
	case "cost":
		return CostPrompt(ctx)
	case "scheduling":
		return SchedulingPrompt(ctx)
	default:
		return ""
	}
}

// FormatContext renders a disruption context as prompt text. Shared by the
// planner and all specialist prompts so every call sees the same picture.
func FormatContext(ctx disruption.Context) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Flight: %s %s → %s\n", ctx.Flight.Number, ctx.Flight.Origin, ctx.Flight.Destination)
	if !ctx.Flight.ScheduledDeparture.IsZero() {
		fmt.Fprintf(&b, "Scheduled departure: %s\n", ctx.Flight.ScheduledDeparture.Format("2006-01-02 15:04 MST"))
	}
	fmt.Fprintf(&b, "Haul class: %s\n", ctx.Haul)
	fmt.Fprintf(&b, "Current delay: %d minutes\n", ctx.DelayMinutes)
	fmt.Fprintf(&b, "Passengers affected: %d\n", ctx.PassengersAffected)
	fmt.Fprintf(&b, "Connections at risk: %d\n", ctx.ConnectionsAtRisk)
	fmt.Fprintf(&b, "Crew ready: %t (duty remaining: %d minutes)\n", ctx.CrewReady, ctx.CrewDutyRemainingMinutes)
	fmt.Fprintf(&b, "Aircraft ready: %t\n", ctx.AircraftReady)

	if len(ctx.Signals) > 0 {
		b.WriteString("Signals:\n")
		for _, name := range sortedSignalNames(ctx.Signals) {
			fmt.Fprintf(&b, "  %s: %.2f\n", name, ctx.Signals[name])
		}
	}

	if ctx.Overlay != nil {
		b.WriteString("What-if overlay applied:\n")
		b.WriteString(formatOverlay(*ctx.Overlay))
	}

	return b.String()
}

func formatOverlay(o disruption.ScenarioOverlay) string {
	var b strings.Builder
	if o.AdditionalDelayMinutes != 0 {
		fmt.Fprintf(&b, "  additional delay: %d minutes\n", o.AdditionalDelayMinutes)
	}
	if o.WeatherImpact != "" {
		fmt.Fprintf(&b, "  weather impact: %s\n", o.WeatherImpact)
	}
	if o.CrewUnavailable > 0 {
		fmt.Fprintf(&b, "  crew unavailable: %d\n", o.CrewUnavailable)
	}
	if o.AircraftIssue {
		b.WriteString("  aircraft issue: yes\n")
	}
	if o.PassengerCountChange != 0 {
		fmt.Fprintf(&b, "  passenger count change: %+d\n", o.PassengerCountChange)
	}
	if o.ConnectionPressure != "" {
		fmt.Fprintf(&b, "  connection pressure: %s\n", o.ConnectionPressure)
	}
	return b.String()
}

func sortedSignalNames(signals map[string]float64) []string {
	names := make([]string, 0, len(signals))
	for name := range signals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
