package disruption

// WeatherImpact levels accepted in a scenario overlay, mapped onto the
// weather signal score.
const (
	WeatherImpactNone     = "none"
	WeatherImpactMinor    = "minor"
	WeatherImpactModerate = "moderate"
	WeatherImpactSevere   = "severe"
)

// ConnectionPressure levels accepted in a scenario overlay, mapped onto a
// tight-connection count.
const (
	ConnectionPressureLow    = "low"
	ConnectionPressureMedium = "medium"
	ConnectionPressureHigh   = "high"
)

// ScenarioOverlay is a set of deltas applied to a base context to produce
// a hypothetical variant. Zero values leave the base untouched.
type ScenarioOverlay struct {
	// AdditionalDelayMinutes is added on top of the base delay.
	AdditionalDelayMinutes int `json:"delay_minutes,omitempty"`

	// WeatherImpact escalates the weather signal: minor 0.3, moderate 0.6,
	// severe 0.9. Empty or "none" leaves the signal unchanged.
	WeatherImpact string `json:"weather_impact,omitempty"`

	// CrewUnavailable simulates N crew members dropping out. Clears crew
	// readiness and sets the crew signal to 0.15 per head, capped at 0.9.
	CrewUnavailable int `json:"crew_unavailable,omitempty"`

	// AircraftIssue simulates a maintenance hold: clears aircraft readiness
	// and sets the aircraft signal to 0.8.
	AircraftIssue bool `json:"aircraft_issue,omitempty"`

	// PassengerCountChange adjusts the affected passenger count. The result
	// never drops below zero.
	PassengerCountChange int `json:"passenger_count_change,omitempty"`

	// ConnectionPressure simulates tight onward connections: low 5,
	// medium 15, high 30. High pressure also floors the weather signal at
	// 0.4 as a time-pressure proxy.
	ConnectionPressure string `json:"connection_pressure,omitempty"`
}

// IsZero reports whether the overlay changes nothing.
func (o ScenarioOverlay) IsZero() bool {
	return o == ScenarioOverlay{}
}

// ScenarioSpec describes one what-if scenario proposed by the planner.
// Each accepted spec spawns one independent specialist pass against the
// overlaid context.
type ScenarioSpec struct {
	// ID uniquely identifies the scenario within its run.
	ID string `json:"id"`

	// Overlay holds the deltas that define the scenario.
	Overlay ScenarioOverlay `json:"overlay"`

	// Description is a short operator-facing summary.
	Description string `json:"description"`
}

var weatherImpactScores = map[string]float64{
	WeatherImpactMinor:    0.3,
	WeatherImpactModerate: 0.6,
	WeatherImpactSevere:   0.9,
}

var connectionPressureCounts = map[string]int{
	ConnectionPressureLow:    5,
	ConnectionPressureMedium: 15,
	ConnectionPressureHigh:   30,
}

// ApplyOverlay derives a variant context from base. The base is never
// mutated; the returned context owns fresh copies of all mutable state and
// records the overlay that produced it.
func ApplyOverlay(base Context, overlay ScenarioOverlay) Context {
	out := base.Clone()

	if overlay.AdditionalDelayMinutes > 0 {
		out.DelayMinutes += overlay.AdditionalDelayMinutes
	}

	if score, ok := weatherImpactScores[overlay.WeatherImpact]; ok {
		out.Signals[SignalWeather] = score
	}

	if overlay.CrewUnavailable > 0 {
		out.CrewReady = false
		crewScore := float64(overlay.CrewUnavailable) * 0.15
		if crewScore > 0.9 {
			crewScore = 0.9
		}
		out.Signals[SignalCrew] = crewScore
	}

	if overlay.AircraftIssue {
		out.AircraftReady = false
		out.Signals[SignalAircraft] = 0.8
	}

	if overlay.PassengerCountChange != 0 {
		out.PassengersAffected += overlay.PassengerCountChange
		if out.PassengersAffected < 0 {
			out.PassengersAffected = 0
		}
	}

	if count, ok := connectionPressureCounts[overlay.ConnectionPressure]; ok {
		out.ConnectionsAtRisk = count
		if overlay.ConnectionPressure == ConnectionPressureHigh && out.Signals[SignalWeather] < 0.4 {
			out.Signals[SignalWeather] = 0.4
		}
	}

	applied := overlay
	out.Overlay = &applied
	return out
}
