package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
	"github.com/c360studio/semstreams/natsclient"

	"github.com/c360studio/irops/aggregate"
	"github.com/c360studio/irops/audit"
	"github.com/c360studio/irops/disruption"
)

func init() {
	err := component.RegisterPayload(&component.PayloadRegistration{
		Domain:      "plan",
		Category:    "completed",
		Version:     "v1",
		Description: "Completed run envelope: final plan plus audit trail",
		Factory:     func() any { return &CompletedPayload{} },
	})
	if err != nil {
		panic("failed to register CompletedPayload: " + err.Error())
	}
}

// CompletedType is the message type for completed-run payloads.
var CompletedType = message.Type{Domain: "plan", Category: "completed", Version: "v1"}

// CompletedPayload implements message.Payload for completed runs.
type CompletedPayload struct {
	Plan  *aggregate.FinalPlan `json:"plan"`
	Trail []audit.Entry        `json:"trail,omitempty"`
}

// Schema returns the message type.
func (p *CompletedPayload) Schema() message.Type {
	return CompletedType
}

// Validate ensures the payload has required fields.
func (p *CompletedPayload) Validate() error {
	if p.Plan == nil {
		return errors.New("final plan is required")
	}
	if p.Plan.RunID == "" {
		return errors.New("run ID is required")
	}
	return nil
}

// MarshalJSON implements json.Marshaler for the Payload interface.
func (p *CompletedPayload) MarshalJSON() ([]byte, error) {
	type Alias CompletedPayload
	return json.Marshal((*Alias)(p))
}

// UnmarshalJSON implements json.Unmarshaler for the Payload interface.
func (p *CompletedPayload) UnmarshalJSON(data []byte) error {
	type Alias CompletedPayload
	aux := (*Alias)(p)
	return json.Unmarshal(data, aux)
}

// defaultCompletedSubject is the JetStream subject completed runs are
// published to.
const defaultCompletedSubject = "irops.plan.completed"

// NATSStore publishes completed runs to NATS JetStream so downstream
// consumers (dashboards, record keepers) can pick them up durably.
type NATSStore struct {
	nc      *natsclient.Client
	logger  *slog.Logger
	subject string
}

// NATSStoreOption configures a NATSStore.
type NATSStoreOption func(*NATSStore)

// WithSubject overrides the subject completed runs are published to.
func WithSubject(subject string) NATSStoreOption {
	return func(s *NATSStore) {
		if subject != "" {
			s.subject = subject
		}
	}
}

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) NATSStoreOption {
	return func(s *NATSStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewNATSStore creates a JetStream-backed store.
func NewNATSStore(nc *natsclient.Client, opts ...NATSStoreOption) (*NATSStore, error) {
	if nc == nil {
		return nil, fmt.Errorf("NATS client required")
	}
	s := &NATSStore{
		nc:      nc,
		logger:  slog.Default(),
		subject: defaultCompletedSubject,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Save publishes the completed run. Every failure is classified as a
// persistence error for the caller to log.
func (s *NATSStore) Save(ctx context.Context, plan *aggregate.FinalPlan, trail []audit.Entry) error {
	if plan == nil {
		return disruption.Errorf(disruption.KindPersistenceFailed, "final plan is required")
	}
	if err := ctx.Err(); err != nil {
		return disruption.NewError(disruption.KindPersistenceFailed, err)
	}

	msg := message.NewBaseMessage(CompletedType, &CompletedPayload{Plan: plan, Trail: trail}, "engine")
	data, err := json.Marshal(msg)
	if err != nil {
		return disruption.Errorf(disruption.KindPersistenceFailed, "marshal completed run: %w", err)
	}

	js, err := s.nc.JetStream()
	if err != nil {
		return disruption.Errorf(disruption.KindPersistenceFailed, "get jetstream: %w", err)
	}
	if _, err := js.Publish(ctx, s.subject, data); err != nil {
		return disruption.Errorf(disruption.KindPersistenceFailed, "publish completed run: %w", err)
	}

	s.logger.Debug("Persisted completed run",
		"run_id", plan.RunID,
		"priority", plan.Priority,
		"confidence", plan.Confidence,
		"audit_entries", len(trail))
	return nil
}
