package specialist

import (
	"strings"
	"testing"
)

func TestHeuristicReallocationStrategyBands(t *testing.T) {
	tests := []struct {
		name          string
		delay         int
		wantStrategy  string
		wantRebooked  int
		wantStranded  int
		wantProtected int
	}{
		{"short delay monitors", 45, StrategyMonitor, 0, 0, 28},
		{"boundary at one hour monitors", 60, StrategyMonitor, 0, 0, 28},
		{"mid delay rebooks same day", 95, StrategySameDay, 312, 0, 14},
		{"boundary at three hours stays same day", 180, StrategySameDay, 312, 0, 14},
		{"long delay goes next day", 200, StrategyNextDay, 312, 312, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := testInput()
			input.Context.DelayMinutes = tt.delay
			got := heuristicReallocation(input)

			if got.Strategy != tt.wantStrategy {
				t.Errorf("Strategy = %q, want %q", got.Strategy, tt.wantStrategy)
			}
			if got.RebookedPassengers != tt.wantRebooked {
				t.Errorf("RebookedPassengers = %d, want %d", got.RebookedPassengers, tt.wantRebooked)
			}
			if got.StrandedPassengers != tt.wantStranded {
				t.Errorf("StrandedPassengers = %d, want %d", got.StrandedPassengers, tt.wantStranded)
			}
			if got.ProtectedConnections != tt.wantProtected {
				t.Errorf("ProtectedConnections = %d, want %d", got.ProtectedConnections, tt.wantProtected)
			}
		})
	}
}

func TestHeuristicReallocationActions(t *testing.T) {
	input := testInput()
	input.Context.DelayMinutes = 240
	got := heuristicReallocation(input)

	joined := strings.Join(got.Actions, "\n")
	for _, want := range []string{
		"Book hotels for 312 passengers",
		"Arrange meal vouchers",
		"Search alternative flights for 312 passengers",
		"Notify passengers",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("actions missing %q:\n%s", want, joined)
		}
	}

	if !got.RequiresOvernight() {
		t.Error("RequiresOvernight() = false for a next-day plan")
	}
}

func TestReallocationPlanValidate(t *testing.T) {
	tests := []struct {
		name    string
		plan    ReallocationPlan
		wantErr bool
	}{
		{"valid", ReallocationPlan{Strategy: StrategySameDay, RebookedPassengers: 10}, false},
		{"unknown strategy", ReallocationPlan{Strategy: "teleport"}, true},
		{"negative count", ReallocationPlan{Strategy: StrategyMonitor, StrandedPassengers: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
