package disruption

import (
	"sort"
	"time"
)

// Route distance bands (km) used to derive the haul class when the caller
// does not supply one. These follow the EU261 compensation bands.
const (
	shortHaulMaxKM  = 1500
	mediumHaulMaxKM = 3500
)

// Snapshot is the raw operational input supplied by the caller. It is
// validated and transformed into a Context before a run starts; the engine
// never touches a Snapshot after that.
type Snapshot struct {
	// FlightNumber is the disrupted flight designator. Required.
	FlightNumber string `json:"flight_number"`

	// Origin and Destination are station codes.
	Origin      string `json:"origin"`
	Destination string `json:"destination"`

	// ScheduledDeparture is the planned departure time. RFC 3339 in JSON.
	ScheduledDeparture time.Time `json:"scheduled_departure"`

	// DelayMinutes is the accumulated delay. Must be >= 0.
	DelayMinutes int `json:"delay_minutes"`

	// PassengerCount is the number of passengers booked. Must be >= 0.
	PassengerCount int `json:"passenger_count"`

	// TightConnections is the number of onward connections at risk.
	TightConnections int `json:"tight_connections"`

	// CrewReady and AircraftReady report resource availability.
	CrewReady     bool `json:"crew_ready"`
	AircraftReady bool `json:"aircraft_ready"`

	// CrewDutyRemainingMinutes is remaining legal duty time, zero if unknown.
	CrewDutyRemainingMinutes int `json:"crew_duty_remaining_minutes"`

	// HaulClass overrides the derived route band when set.
	HaulClass string `json:"haul_class,omitempty"`

	// DistanceKM is the route distance, used to derive the haul class.
	DistanceKM int `json:"distance_km"`

	// Signals holds named signal scores in [0,1] (weather, crew, aircraft).
	Signals map[string]float64 `json:"signals"`

	// Network-wide counts used to derive the delayed/critical ratio signals.
	DelayedFlights  int `json:"delayed_flights"`
	CriticalFlights int `json:"critical_flights"`
	TotalFlights    int `json:"total_flights"`
}

// BuildContext validates a raw snapshot and assembles the immutable
// disruption context. It is a pure transform with no side effects; the only
// failure mode is a malformed snapshot, reported as an invalid-context
// error before any workflow stage runs.
func BuildContext(snap Snapshot) (Context, error) {
	if snap.FlightNumber == "" {
		return Context{}, Errorf(KindInvalidContext, "flight_number is required")
	}
	if snap.DelayMinutes < 0 {
		return Context{}, Errorf(KindInvalidContext, "delay_minutes must be >= 0, got %d", snap.DelayMinutes)
	}
	if snap.PassengerCount < 0 {
		return Context{}, Errorf(KindInvalidContext, "passenger_count must be >= 0, got %d", snap.PassengerCount)
	}
	if snap.TightConnections < 0 {
		return Context{}, Errorf(KindInvalidContext, "tight_connections must be >= 0, got %d", snap.TightConnections)
	}
	if snap.TotalFlights < 0 || snap.DelayedFlights < 0 || snap.CriticalFlights < 0 {
		return Context{}, Errorf(KindInvalidContext, "flight counts must be >= 0")
	}

	for _, name := range sortedSignalNames(snap.Signals) {
		score := snap.Signals[name]
		if score < 0 || score > 1 {
			return Context{}, Errorf(KindInvalidContext, "signal %q out of range [0,1]: %v", name, score)
		}
	}

	haul, err := resolveHaul(snap.HaulClass, snap.DistanceKM)
	if err != nil {
		return Context{}, err
	}

	signals := make(map[string]float64, len(snap.Signals)+2)
	for k, v := range snap.Signals {
		signals[k] = v
	}
	if snap.TotalFlights > 0 {
		if _, ok := signals[SignalDelayedRatio]; !ok {
			signals[SignalDelayedRatio] = float64(snap.DelayedFlights) / float64(snap.TotalFlights)
		}
		if _, ok := signals[SignalCriticalRatio]; !ok {
			signals[SignalCriticalRatio] = float64(snap.CriticalFlights) / float64(snap.TotalFlights)
		}
	}

	return Context{
		Flight: FlightInfo{
			Number:             snap.FlightNumber,
			Origin:             snap.Origin,
			Destination:        snap.Destination,
			ScheduledDeparture: snap.ScheduledDeparture,
		},
		DelayMinutes:             snap.DelayMinutes,
		PassengersAffected:       snap.PassengerCount,
		ConnectionsAtRisk:        snap.TightConnections,
		CrewReady:                snap.CrewReady,
		AircraftReady:            snap.AircraftReady,
		CrewDutyRemainingMinutes: snap.CrewDutyRemainingMinutes,
		Haul:                     haul,
		Signals:                  signals,
	}, nil
}

// resolveHaul picks the explicit haul class when given, otherwise derives
// it from the route distance. Unknown classes are rejected rather than
// silently defaulted.
func resolveHaul(explicit string, distanceKM int) (HaulClass, error) {
	if explicit != "" {
		h := HaulClass(explicit)
		if !h.IsValid() {
			return "", Errorf(KindInvalidContext, "unknown haul_class %q", explicit)
		}
		return h, nil
	}
	if distanceKM < 0 {
		return "", Errorf(KindInvalidContext, "distance_km must be >= 0, got %d", distanceKM)
	}
	switch {
	case distanceKM > 0 && distanceKM <= shortHaulMaxKM:
		return HaulShort, nil
	case distanceKM > shortHaulMaxKM && distanceKM <= mediumHaulMaxKM:
		return HaulMedium, nil
	case distanceKM > mediumHaulMaxKM:
		return HaulLong, nil
	default:
		// No distance supplied. Short haul is the conservative floor for
		// compensation estimates.
		return HaulShort, nil
	}
}

// sortedSignalNames returns map keys in a stable order so validation and
// gate evaluation are deterministic.
func sortedSignalNames(signals map[string]float64) []string {
	names := make([]string, 0, len(signals))
	for name := range signals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
