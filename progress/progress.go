// Package progress delivers stage-transition events to interested
// observers. Delivery is push-only with no acknowledgements: observers
// absorb their own failures and never stall the engine.
package progress

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Event is one stage-transition notification.
type Event struct {
	RunID string `json:"run_id"`

	// Stage names the emitting stage, e.g. "gate", "planner",
	// "specialist.risk", "engine".
	Stage string `json:"stage"`

	// ScenarioID is empty for baseline and run-level events.
	ScenarioID string `json:"scenario_id,omitempty"`

	// Status is the transition or outcome, e.g. "planning", "degraded",
	// "done".
	Status string `json:"status"`

	Timestamp time.Time `json:"timestamp"`
}

// Observer receives progress events. Implementations must return
// promptly; slow sinks buffer or drop internally.
type Observer interface {
	Observe(ctx context.Context, e Event)
}

type multi []Observer

// Multi fans events out to every given observer in order. Nil entries
// are skipped.
func Multi(observers ...Observer) Observer {
	filtered := make(multi, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	return filtered
}

func (m multi) Observe(ctx context.Context, e Event) {
	for _, o := range m {
		o.Observe(ctx, e)
	}
}

// LogObserver writes each event to structured logs.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver creates a log-backed observer. A nil logger selects
// slog.Default().
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger}
}

func (o *LogObserver) Observe(_ context.Context, e Event) {
	o.logger.Info("run progress",
		"run_id", e.RunID,
		"stage", e.Stage,
		"scenario_id", e.ScenarioID,
		"status", e.Status)
}

// defaultChannelBuffer absorbs a full run's event burst.
const defaultChannelBuffer = 64

// ChannelObserver buffers events for a consuming goroutine. When the
// buffer is full the incoming event is dropped and counted; queued
// events are never displaced.
type ChannelObserver struct {
	events chan Event
	logger *slog.Logger

	droppedEvents atomic.Int64
}

// NewChannelObserver creates a channel-backed observer. Sizes below one
// select the default buffer.
func NewChannelObserver(size int, logger *slog.Logger) *ChannelObserver {
	if size < 1 {
		size = defaultChannelBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChannelObserver{
		events: make(chan Event, size),
		logger: logger,
	}
}

func (o *ChannelObserver) Observe(_ context.Context, e Event) {
	select {
	case o.events <- e:
	default:
		dropped := o.droppedEvents.Add(1)
		o.logger.Warn("Progress channel full, dropping event",
			"run_id", e.RunID,
			"stage", e.Stage,
			"status", e.Status,
			"total_dropped", dropped)
	}
}

// Events returns the consuming side of the buffer.
func (o *ChannelObserver) Events() <-chan Event {
	return o.events
}

// DroppedEvents returns the number of events dropped due to a full
// buffer.
func (o *ChannelObserver) DroppedEvents() int64 {
	return o.droppedEvents.Load()
}
