package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
	"github.com/c360studio/semstreams/natsclient"
)

func init() {
	err := component.RegisterPayload(&component.PayloadRegistration{
		Domain:      "run",
		Category:    "progress",
		Version:     "v1",
		Description: "Run progress event for live monitoring",
		Factory:     func() any { return &EventPayload{} },
	})
	if err != nil {
		panic("failed to register EventPayload: " + err.Error())
	}
}

// EventType is the message type for progress event payloads.
var EventType = message.Type{Domain: "run", Category: "progress", Version: "v1"}

// EventPayload implements message.Payload for progress events.
type EventPayload struct {
	Event Event `json:"event"`
}

// Schema returns the message type.
func (p *EventPayload) Schema() message.Type {
	return EventType
}

// Validate ensures the payload has required fields.
func (p *EventPayload) Validate() error {
	if p.Event.RunID == "" {
		return errors.New("run ID is required")
	}
	if p.Event.Stage == "" {
		return errors.New("stage is required")
	}
	return nil
}

// MarshalJSON implements json.Marshaler for the Payload interface.
func (p *EventPayload) MarshalJSON() ([]byte, error) {
	type Alias EventPayload
	return json.Marshal((*Alias)(p))
}

// UnmarshalJSON implements json.Unmarshaler for the Payload interface.
func (p *EventPayload) UnmarshalJSON(data []byte) error {
	type Alias EventPayload
	aux := (*Alias)(p)
	return json.Unmarshal(data, aux)
}

// defaultSubjectPrefix is where run progress events are published; the
// run ID is appended per event.
const defaultSubjectPrefix = "irops.run.progress"

// NATSObserver publishes each event to core NATS so dashboards can
// follow a run live. Publishes are fire-and-forget: failures are logged
// and the event is gone.
type NATSObserver struct {
	nc            *natsclient.Client
	logger        *slog.Logger
	subjectPrefix string
}

// NATSObserverOption configures a NATSObserver.
type NATSObserverOption func(*NATSObserver)

// WithSubjectPrefix overrides the subject prefix events are published
// under.
func WithSubjectPrefix(prefix string) NATSObserverOption {
	return func(o *NATSObserver) {
		if prefix != "" {
			o.subjectPrefix = prefix
		}
	}
}

// WithNATSLogger sets the logger for the NATS observer.
func WithNATSLogger(logger *slog.Logger) NATSObserverOption {
	return func(o *NATSObserver) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewNATSObserver creates a NATS-backed observer.
func NewNATSObserver(nc *natsclient.Client, opts ...NATSObserverOption) (*NATSObserver, error) {
	if nc == nil {
		return nil, fmt.Errorf("NATS client required")
	}
	o := &NATSObserver{
		nc:            nc,
		logger:        slog.Default(),
		subjectPrefix: defaultSubjectPrefix,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

func (o *NATSObserver) Observe(ctx context.Context, e Event) {
	baseMsg := message.NewBaseMessage(EventType, &EventPayload{Event: e}, "engine")
	data, err := json.Marshal(baseMsg)
	if err != nil {
		o.logger.Warn("Failed to marshal progress event",
			"run_id", e.RunID, "stage", e.Stage, "error", err)
		return
	}

	subject := fmt.Sprintf("%s.%s", o.subjectPrefix, e.RunID)
	if err := o.nc.Publish(ctx, subject, data); err != nil {
		o.logger.Warn("Failed to publish progress event",
			"run_id", e.RunID, "stage", e.Stage, "subject", subject, "error", err)
	}
}
