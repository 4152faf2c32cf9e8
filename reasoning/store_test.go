package reasoning

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestCallMetaRoundtrip(t *testing.T) {
	ctx := context.Background()

	// Empty context returns zero meta
	meta := CallMetaFromContext(ctx)
	if meta.RunID != "" || meta.Stage != "" {
		t.Errorf("expected zero meta from empty context, got %+v", meta)
	}

	ctx = WithCallMeta(ctx, CallMeta{RunID: "run-123", Stage: "specialist.risk"})
	meta = CallMetaFromContext(ctx)
	if meta.RunID != "run-123" {
		t.Errorf("expected run-123, got %q", meta.RunID)
	}
	if meta.Stage != "specialist.risk" {
		t.Errorf("expected specialist.risk, got %q", meta.Stage)
	}
}

func TestSortByStartTime(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	records := []*CallRecord{
		{RequestID: "c", StartedAt: base.Add(2 * time.Second)},
		{RequestID: "a", StartedAt: base},
		{RequestID: "b", StartedAt: base.Add(time.Second)},
	}

	SortByStartTime(records)

	want := []string{"a", "b", "c"}
	for i, id := range want {
		if records[i].RequestID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, records[i].RequestID)
		}
	}
}

func TestCallPayloadValidate(t *testing.T) {
	tests := []struct {
		name    string
		payload *CallPayload
		wantErr bool
	}{
		{
			name:    "valid",
			payload: &CallPayload{Record: &CallRecord{RequestID: "req-1"}},
			wantErr: false,
		},
		{
			name:    "nil record",
			payload: &CallPayload{},
			wantErr: true,
		},
		{
			name:    "missing request ID",
			payload: &CallPayload{Record: &CallRecord{}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestCallPayloadJSONRoundtrip(t *testing.T) {
	started := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	original := &CallPayload{
		Record: &CallRecord{
			RequestID:  "req-1",
			RunID:      "run-9",
			Stage:      "planner",
			Capability: "planning",
			Model:      "claude-sonnet-4-20250514",
			Provider:   "anthropic",
			Messages:   []Message{{Role: "user", Content: "propose scenarios"}},
			Response:   `{"narrative": "hold and rebook"}`,
			StartedAt:  started,
			Retries:    1,
		},
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var restored CallPayload
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if restored.Record.RunID != "run-9" {
		t.Errorf("run_id lost: %q", restored.Record.RunID)
	}
	if restored.Record.Stage != "planner" {
		t.Errorf("stage lost: %q", restored.Record.Stage)
	}
	if len(restored.Record.Messages) != 1 {
		t.Errorf("messages lost: %d", len(restored.Record.Messages))
	}
}

func TestNewCallStoreRequiresClient(t *testing.T) {
	if _, err := NewCallStore(nil); err == nil {
		t.Error("expected error for nil NATS client")
	}
}

func TestCallStoreRespectsCancelledContext(t *testing.T) {
	// Store must short-circuit before touching NATS when the context is
	// already cancelled; a nil client would panic otherwise.
	s := &CallStore{subject: defaultCallSubject}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Store(ctx, &CallRecord{RequestID: "req-1"})
	if err == nil {
		t.Fatal("expected context error")
	}
	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
