// Package disruption defines the domain model for irregular-operations
// analysis: the immutable disruption context assembled from a raw
// operational snapshot, the detection gate that decides whether a context
// is worth escalating, and the scenario overlay mechanism used for
// what-if variants.
package disruption

import "time"

// Canonical signal names recognized by the gate. Values are scores in [0,1].
const (
	// SignalWeather reflects weather impact on the operation.
	SignalWeather = "weather"
	// SignalCrew reflects crew readiness risk (fatigue, duty limits, standby).
	SignalCrew = "crew"
	// SignalAircraft reflects aircraft availability risk (MX holds, tail swaps).
	SignalAircraft = "aircraft"
	// SignalDelayedRatio is the fraction of network flights currently delayed.
	SignalDelayedRatio = "delayed_ratio"
	// SignalCriticalRatio is the fraction of network flights in critical state.
	SignalCriticalRatio = "critical_ratio"
)

// HaulClass classifies route length for compensation purposes.
type HaulClass string

const (
	// HaulShort covers routes up to 1500 km.
	HaulShort HaulClass = "short"
	// HaulMedium covers routes between 1500 and 3500 km.
	HaulMedium HaulClass = "medium"
	// HaulLong covers routes beyond 3500 km.
	HaulLong HaulClass = "long"
)

// IsValid returns true if the haul class is one of the recognized bands.
func (h HaulClass) IsValid() bool {
	switch h {
	case HaulShort, HaulMedium, HaulLong:
		return true
	default:
		return false
	}
}

// FlightInfo identifies the disrupted flight.
type FlightInfo struct {
	// Number is the flight designator (e.g. "CX880").
	Number string `json:"number"`

	// Origin is the departure station IATA code.
	Origin string `json:"origin"`

	// Destination is the arrival station IATA code.
	Destination string `json:"destination"`

	// ScheduledDeparture is the planned departure time (UTC).
	ScheduledDeparture time.Time `json:"scheduled_departure"`
}

// Context is an immutable snapshot of one disruption event. It is created
// once by BuildContext and never mutated afterwards; what-if variants are
// new values produced by ApplyOverlay, not in-place edits.
type Context struct {
	// Flight identifies the disrupted flight.
	Flight FlightInfo `json:"flight"`

	// DelayMinutes is the current accumulated delay.
	DelayMinutes int `json:"delay_minutes"`

	// PassengersAffected is the number of passengers on the disrupted flight.
	PassengersAffected int `json:"passengers_affected"`

	// ConnectionsAtRisk is the number of tight onward connections.
	ConnectionsAtRisk int `json:"connections_at_risk"`

	// CrewReady indicates whether the operating crew is available and legal.
	CrewReady bool `json:"crew_ready"`

	// AircraftReady indicates whether the tail is released for service.
	AircraftReady bool `json:"aircraft_ready"`

	// CrewDutyRemainingMinutes is the remaining legal duty time for the
	// assigned crew. Zero means unknown.
	CrewDutyRemainingMinutes int `json:"crew_duty_remaining_minutes"`

	// Haul is the route length band, used for compensation estimates.
	Haul HaulClass `json:"haul"`

	// Signals holds named signal scores in [0,1], keyed by the Signal*
	// constants. Consumers must treat the map as read-only.
	Signals map[string]float64 `json:"signals"`

	// Overlay records the scenario deltas applied to produce this context.
	// Nil for the baseline context.
	Overlay *ScenarioOverlay `json:"overlay,omitempty"`
}

// Clone returns a deep copy of the context. The signal map and overlay are
// copied so the original is never aliased.
func (c Context) Clone() Context {
	out := c
	out.Signals = make(map[string]float64, len(c.Signals))
	for k, v := range c.Signals {
		out.Signals[k] = v
	}
	if c.Overlay != nil {
		overlay := *c.Overlay
		out.Overlay = &overlay
	}
	return out
}

// Signal returns the named signal score and whether it is present.
func (c Context) Signal(name string) (float64, bool) {
	v, ok := c.Signals[name]
	return v, ok
}

// IsVariant reports whether this context was produced by applying a
// scenario overlay.
func (c Context) IsVariant() bool {
	return c.Overlay != nil
}
