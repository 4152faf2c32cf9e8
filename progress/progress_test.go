package progress

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type recordingObserver struct {
	events []Event
}

func (r *recordingObserver) Observe(_ context.Context, e Event) {
	r.events = append(r.events, e)
}

func testEvent(stage, status string) Event {
	return Event{
		RunID:     "run-1",
		Stage:     stage,
		Status:    status,
		Timestamp: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
}

func TestMultiFansOut(t *testing.T) {
	first := &recordingObserver{}
	second := &recordingObserver{}
	m := Multi(first, nil, second)

	m.Observe(context.Background(), testEvent("gate", "gated"))
	m.Observe(context.Background(), testEvent("planner", "planning"))

	if len(first.events) != 2 || len(second.events) != 2 {
		t.Fatalf("got %d and %d events, want 2 and 2", len(first.events), len(second.events))
	}
	if first.events[0].Stage != "gate" || first.events[1].Stage != "planner" {
		t.Errorf("event order lost: %s, %s", first.events[0].Stage, first.events[1].Stage)
	}
}

func TestChannelObserverDelivers(t *testing.T) {
	o := NewChannelObserver(4, nil)

	o.Observe(context.Background(), testEvent("gate", "gated"))
	o.Observe(context.Background(), testEvent("planner", "planning"))

	got := []Event{<-o.Events(), <-o.Events()}
	if got[0].Stage != "gate" || got[1].Stage != "planner" {
		t.Errorf("got stages %s, %s; want gate, planner", got[0].Stage, got[1].Stage)
	}
	if o.DroppedEvents() != 0 {
		t.Errorf("DroppedEvents = %d, want 0", o.DroppedEvents())
	}
}

func TestChannelObserverDropsNewestWhenFull(t *testing.T) {
	o := NewChannelObserver(2, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	o.Observe(context.Background(), testEvent("gate", "gated"))
	o.Observe(context.Background(), testEvent("planner", "planning"))
	o.Observe(context.Background(), testEvent("fanout", "running"))

	if o.DroppedEvents() != 1 {
		t.Fatalf("DroppedEvents = %d, want 1", o.DroppedEvents())
	}
	// The queued events survive; the overflowing one is gone.
	got := []Event{<-o.Events(), <-o.Events()}
	if got[0].Stage != "gate" || got[1].Stage != "planner" {
		t.Errorf("got stages %s, %s; want gate, planner", got[0].Stage, got[1].Stage)
	}
	select {
	case e := <-o.Events():
		t.Errorf("unexpected extra event %s", e.Stage)
	default:
	}
}

func TestChannelObserverDefaultBuffer(t *testing.T) {
	o := NewChannelObserver(0, nil)
	if cap(o.events) != defaultChannelBuffer {
		t.Errorf("buffer cap = %d, want %d", cap(o.events), defaultChannelBuffer)
	}
}

func TestLogObserverWritesFields(t *testing.T) {
	var buf bytes.Buffer
	o := NewLogObserver(slog.New(slog.NewTextHandler(&buf, nil)))

	o.Observe(context.Background(), Event{
		RunID:      "run-9",
		Stage:      "specialist.risk",
		ScenarioID: "scn-1",
		Status:     "degraded",
		Timestamp:  time.Now(),
	})

	out := buf.String()
	for _, want := range []string{"run_id=run-9", "stage=specialist.risk", "scenario_id=scn-1", "status=degraded"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line missing %q: %s", want, out)
		}
	}
}

func TestNewNATSObserverRequiresClient(t *testing.T) {
	if _, err := NewNATSObserver(nil); err == nil {
		t.Error("expected error for nil client")
	}
}

func TestEventPayloadValidate(t *testing.T) {
	tests := []struct {
		name    string
		payload EventPayload
		wantErr bool
	}{
		{"valid", EventPayload{Event: testEvent("gate", "gated")}, false},
		{"missing run ID", EventPayload{Event: Event{Stage: "gate", Status: "gated"}}, true},
		{"missing stage", EventPayload{Event: Event{RunID: "run-1", Status: "gated"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
