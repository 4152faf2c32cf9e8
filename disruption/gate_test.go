package disruption

import (
	"math"
	"reflect"
	"strings"
	"testing"
)

func gateContext(signals map[string]float64) Context {
	return Context{
		Flight:  FlightInfo{Number: "CX880"},
		Signals: signals,
	}
}

func TestGateDetection(t *testing.T) {
	tests := []struct {
		name         string
		signals      map[string]float64
		wantDetected bool
	}{
		{
			"all signals high",
			map[string]float64{SignalWeather: 0.9, SignalCrew: 0.8, SignalAircraft: 0.7},
			true,
		},
		{
			"all signals low",
			map[string]float64{SignalWeather: 0.1, SignalCrew: 0.1, SignalAircraft: 0.1},
			false,
		},
		{
			"boost signals push over threshold",
			map[string]float64{
				SignalWeather:       0.8,
				SignalCrew:          0.5,
				SignalAircraft:      0.5,
				SignalDelayedRatio:  0.4,
				SignalCriticalRatio: 0.2,
			},
			true,
		},
	}

	gate := NewGate(DefaultGateConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := gate.Evaluate(gateContext(tt.signals))
			if decision.DisruptionDetected != tt.wantDetected {
				t.Errorf("DisruptionDetected = %v (risk %.2f), want %v",
					decision.DisruptionDetected, decision.RiskProbability, tt.wantDetected)
			}
		})
	}
}

func TestGateStrictThreshold(t *testing.T) {
	// Power-of-two weights so the sum is exactly representable: risk lands
	// precisely on the threshold and the strict > comparison must not fire.
	gate := NewGate(GateConfig{
		SignalWeights:      map[string]float64{SignalWeather: 0.5, SignalCrew: 0.25},
		DetectionThreshold: 0.75,
	})

	decision := gate.Evaluate(gateContext(map[string]float64{
		SignalWeather: 1.0,
		SignalCrew:    1.0,
	}))

	if decision.RiskProbability != 0.75 {
		t.Fatalf("RiskProbability = %v, want exactly 0.75", decision.RiskProbability)
	}
	if decision.DisruptionDetected {
		t.Error("risk equal to threshold must not detect")
	}
}

func TestGateIdempotence(t *testing.T) {
	gate := NewGate(DefaultGateConfig())
	ctx := gateContext(map[string]float64{
		SignalWeather:       0.82,
		SignalCrew:          0.35,
		SignalAircraft:      0.6,
		SignalDelayedRatio:  0.25,
		SignalCriticalRatio: 0.1,
	})

	first := gate.Evaluate(ctx)
	second := gate.Evaluate(ctx)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated evaluation differs:\nfirst  = %+v\nsecond = %+v", first, second)
	}
}

func TestGateMissingSignalNoted(t *testing.T) {
	gate := NewGate(DefaultGateConfig())
	decision := gate.Evaluate(gateContext(map[string]float64{
		SignalWeather: 0.9,
		SignalCrew:    0.9,
		// aircraft and ratio signals absent
	}))

	if !strings.Contains(decision.Rationale, "signal aircraft unavailable") {
		t.Errorf("rationale missing note for absent signal: %q", decision.Rationale)
	}

	// Missing signals contribute zero: 0.9*0.4 + 0.9*0.3 = 0.63
	if math.Abs(decision.RiskProbability-0.63) > 1e-9 {
		t.Errorf("RiskProbability = %v, want 0.63", decision.RiskProbability)
	}
}

func TestGateRiskCeiling(t *testing.T) {
	gate := NewGate(DefaultGateConfig())
	decision := gate.Evaluate(gateContext(map[string]float64{
		SignalWeather:       1.0,
		SignalCrew:          1.0,
		SignalAircraft:      1.0,
		SignalDelayedRatio:  1.0,
		SignalCriticalRatio: 1.0,
	}))

	if decision.RiskProbability != riskCeiling {
		t.Errorf("RiskProbability = %v, want ceiling %v", decision.RiskProbability, riskCeiling)
	}
	if !decision.DisruptionDetected {
		t.Error("ceiling risk must still detect")
	}
}

func TestGateDominantSignalInRationale(t *testing.T) {
	gate := NewGate(DefaultGateConfig())
	decision := gate.Evaluate(gateContext(map[string]float64{
		SignalWeather:  0.95,
		SignalCrew:     0.7,
		SignalAircraft: 0.7,
	}))

	if !decision.DisruptionDetected {
		t.Fatalf("expected detection, risk = %.2f", decision.RiskProbability)
	}
	if !strings.Contains(decision.Rationale, "dominant signal weather") {
		t.Errorf("rationale = %q, want dominant signal named", decision.Rationale)
	}
	if len(decision.Evidence) == 0 {
		t.Error("expected per-signal evidence lines")
	}
}

func TestGateConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     GateConfig
		wantErr bool
	}{
		{"defaults", DefaultGateConfig(), false},
		{"zero threshold", GateConfig{SignalWeights: map[string]float64{SignalWeather: 1}, DetectionThreshold: 0}, true},
		{"threshold one", GateConfig{SignalWeights: map[string]float64{SignalWeather: 1}, DetectionThreshold: 1}, true},
		{"empty weights", GateConfig{SignalWeights: nil, DetectionThreshold: 0.7}, true},
		{"negative weight", GateConfig{SignalWeights: map[string]float64{SignalWeather: -0.4}, DetectionThreshold: 0.7}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
