package prompts

import (
	"fmt"

	"github.com/c360studio/irops/disruption"
)

// ReallocationSystemPrompt returns the system prompt for the resource
// reallocation analyst.
func ReallocationSystemPrompt() string {
	return `You are a passenger and resource reallocation analyst for airline operations.

## Your Objective

Plan how to move passengers, aircraft, and gates so the disruption strands as few people as possible.

## Output Format

` + "```json" + `
{
  "strategy": "monitor-and-assess | same-day-alternate | next-day-alternate",
  "actions": [
    "Rebook 30 tight connections onto the 18:40 departure",
    "Request remote stand to free the gate"
  ],
  "protected_connections": 25,
  "rebooked_passengers": 45,
  "stranded_passengers": 5,
  "notes": "Constraints or assumptions behind the plan"
}
` + "```" + `

## Guidelines

- strategy reflects how aggressively to rebook: monitor for short delays, same-day alternates past one hour, next-day with hotel past three hours.
- protected_connections counts at-risk connections the plan saves.
- stranded_passengers counts those without a same-day option; they need the cost analyst's hotel figures.
- actions are imperative and concrete, in execution order.`
}

// ReallocationPrompt returns the user prompt for a reallocation call.
func ReallocationPrompt(ctx disruption.Context) string {
	return fmt.Sprintf(`Plan passenger and resource reallocation for this situation.

%s
Respond with the JSON plan.`, FormatContext(ctx))
}
