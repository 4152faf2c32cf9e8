// Package model provides capability-based model selection for the
// reasoning calls the engine makes. Stages request a capability
// (planning, analysis) rather than a model name; the registry resolves it
// to an endpoint with a fallback chain and tracks per-endpoint health so
// unavailable endpoints are skipped during fallback.
package model

import "strings"

// Capability represents a semantic capability for model selection.
type Capability string

const (
	// CapabilityPlanning is for the single planner call per run: narrative
	// plus what-if scenario proposals. Favors stronger models.
	CapabilityPlanning Capability = "planning"

	// CapabilityAnalysis is for specialist calls (risk, reallocation, cost,
	// scheduling). Many calls per run, so favors fast models.
	CapabilityAnalysis Capability = "analysis"

	// CapabilityFast is for short summaries and cheap classification.
	CapabilityFast Capability = "fast"
)

// SpecialistCapabilities maps specialist names to their default
// capability. Used when no explicit capability is configured.
var SpecialistCapabilities = map[string]Capability{
	"risk":         CapabilityAnalysis,
	"reallocation": CapabilityAnalysis,
	"cost":         CapabilityAnalysis,
	"scheduling":   CapabilityAnalysis,
}

// CapabilityForSpecialist returns the default capability for a specialist.
// Unknown specialists fall back to CapabilityAnalysis.
func CapabilityForSpecialist(name string) Capability {
	if c, ok := SpecialistCapabilities[name]; ok {
		return c
	}
	return CapabilityAnalysis
}

// IsValid checks if a capability string is a known capability.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityPlanning, CapabilityAnalysis, CapabilityFast:
		return true
	}
	return false
}

// String returns the string representation of the capability.
func (c Capability) String() string {
	return string(c)
}

// ParseCapability converts a string to a Capability, returning empty for
// invalid values. Case-insensitive.
func ParseCapability(s string) Capability {
	c := Capability(strings.ToLower(s))
	if c.IsValid() {
		return c
	}
	return ""
}
