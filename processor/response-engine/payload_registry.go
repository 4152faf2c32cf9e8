package responseengine

import (
	"github.com/c360studio/semstreams/component"
)

func init() {
	// Register RunRequest payload type
	if err := component.RegisterPayload(&component.PayloadRegistration{
		Domain:      "disruption",
		Category:    "submitted",
		Version:     "v1",
		Description: "Disruption run submission carrying an operational snapshot",
		Factory: func() any {
			return &RunRequest{}
		},
		Example: map[string]any{
			"request_id": "req-20260825-001",
			"snapshot": map[string]any{
				"flight_number":     "CX880",
				"origin":            "HKG",
				"destination":       "LAX",
				"delay_minutes":     95,
				"passenger_count":   310,
				"tight_connections": 14,
				"distance_km":       11650,
				"signals": map[string]any{
					"weather":  0.9,
					"crew":     0.7,
					"aircraft": 0.6,
				},
			},
		},
	}); err != nil {
		panic("failed to register RunRequest payload: " + err.Error())
	}

	// Register RunResponse payload type
	if err := component.RegisterPayload(&component.PayloadRegistration{
		Domain:      "disruption",
		Category:    "response",
		Version:     "v1",
		Description: "Disruption run response carrying the final recovery plan",
		Factory: func() any {
			return &RunResponse{}
		},
		Example: map[string]any{
			"request_id":       "req-20260825-001",
			"run_id":           "0b8f6c7e-2f3a-4a6d-9c1e-5d4b8a7f0e21",
			"state":            "done",
			"risk_probability": 0.81,
		},
	}); err != nil {
		panic("failed to register RunResponse payload: " + err.Error())
	}
}
