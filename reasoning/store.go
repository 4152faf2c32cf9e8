package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/c360studio/semstreams/message"
	"github.com/c360studio/semstreams/natsclient"
)

var (
	globalCallStore   *CallStore
	globalCallStoreMu sync.RWMutex
	initOnce          sync.Once
	initErr           error // Package-level error for sync.Once pattern
)

// defaultCallSubject is the NATS subject reasoning call records are
// published to.
const defaultCallSubject = "irops.reasoning.call"

// CallRecord represents a single model API call with full context for run
// replay.
type CallRecord struct {
	// RequestID uniquely identifies this call.
	RequestID string `json:"request_id"`

	// RunID correlates this call with the orchestration run that made it.
	RunID string `json:"run_id"`

	// Stage names the pipeline stage that initiated the call, e.g.
	// "planner" or "specialist.risk".
	Stage string `json:"stage,omitempty"`

	// Capability is the semantic capability requested (planning, analysis).
	Capability string `json:"capability"`

	// Model is the actual model that was used for this call.
	Model string `json:"model"`

	// Provider is the model provider (anthropic, ollama, openai).
	Provider string `json:"provider"`

	// Messages is the input message history sent to the model.
	Messages []Message `json:"messages"`

	// Response is the generated content.
	Response string `json:"response"`

	// PromptTokens is the number of input/prompt tokens consumed.
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of output/completion tokens generated.
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the total tokens consumed (prompt + completion).
	TotalTokens int `json:"total_tokens"`

	// ContextBudget is the maximum context window size for this model
	// (optional).
	ContextBudget int `json:"context_budget,omitempty"`

	// FinishReason indicates why generation stopped (stop, length, etc.).
	FinishReason string `json:"finish_reason"`

	// StartedAt is when the call began.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the call finished.
	CompletedAt time.Time `json:"completed_at"`

	// DurationMs is the call duration in milliseconds.
	DurationMs int64 `json:"duration_ms"`

	// Error contains any error message if the call failed.
	Error string `json:"error,omitempty"`

	// Retries is the number of retry attempts made.
	Retries int `json:"retries"`

	// FallbacksUsed lists models tried before success (if fallback was
	// needed).
	FallbacksUsed []string `json:"fallbacks_used,omitempty"`
}

// CallStore publishes reasoning call records to NATS JetStream so runs can
// be replayed and audited after the fact.
type CallStore struct {
	nc      *natsclient.Client
	logger  *slog.Logger
	subject string
}

// CallStoreOption configures a CallStore.
type CallStoreOption func(*CallStore)

// WithCallSubject overrides the NATS subject call records are published to.
func WithCallSubject(subject string) CallStoreOption {
	return func(s *CallStore) {
		s.subject = subject
	}
}

// WithStoreLogger sets the logger for the call store.
func WithStoreLogger(logger *slog.Logger) CallStoreOption {
	return func(s *CallStore) {
		s.logger = logger
	}
}

// NewCallStore creates a new reasoning call store.
func NewCallStore(nc *natsclient.Client, opts ...CallStoreOption) (*CallStore, error) {
	if nc == nil {
		return nil, fmt.Errorf("NATS client required")
	}

	s := &CallStore{
		nc:      nc,
		logger:  slog.Default(),
		subject: defaultCallSubject,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// InitGlobalCallStore initializes the global call store. This should be
// called once during application startup after NATS connection. It's safe
// to call multiple times - subsequent calls return the cached result. If
// initialization fails, all callers receive the same error and
// GlobalCallStore() returns nil (which gracefully disables call recording).
func InitGlobalCallStore(nc *natsclient.Client, opts ...CallStoreOption) error {
	initOnce.Do(func() {
		store, err := NewCallStore(nc, opts...)
		if err != nil {
			initErr = err
			return
		}
		globalCallStoreMu.Lock()
		globalCallStore = store
		globalCallStoreMu.Unlock()
	})
	return initErr
}

// GlobalCallStore returns the global call store. Returns nil if
// InitGlobalCallStore hasn't been called. This follows the same pattern as
// model.Global() for consistency.
func GlobalCallStore() *CallStore {
	globalCallStoreMu.RLock()
	defer globalCallStoreMu.RUnlock()
	return globalCallStore
}

// Store publishes a call record to JetStream.
func (s *CallStore) Store(ctx context.Context, record *CallRecord) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if record.RequestID == "" {
		return fmt.Errorf("request_id is required")
	}

	payload := &CallPayload{Record: record}

	msg := message.NewBaseMessage(CallType, payload, "reasoning")
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal call record: %w", err)
	}

	// Use JetStream for reliable delivery
	js, err := s.nc.JetStream()
	if err != nil {
		return fmt.Errorf("get jetstream: %w", err)
	}

	if _, err := js.Publish(ctx, s.subject, data); err != nil {
		return fmt.Errorf("publish call record: %w", err)
	}

	s.logger.Debug("Published reasoning call",
		"request_id", record.RequestID,
		"run_id", record.RunID,
		"stage", record.Stage,
		"capability", record.Capability)

	return nil
}

// SortByStartTime sorts records chronologically by StartedAt. Exported for
// replaying a run's calls in order.
func SortByStartTime(records []*CallRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.Before(records[j].StartedAt)
	})
}

// CallMeta holds run correlation information extracted from context.
type CallMeta struct {
	RunID string
	Stage string
}

// callMetaKey is the context key for call metadata.
type callMetaKey struct{}

// WithCallMeta adds run correlation information to a context.
func WithCallMeta(ctx context.Context, meta CallMeta) context.Context {
	return context.WithValue(ctx, callMetaKey{}, meta)
}

// CallMetaFromContext extracts run correlation information from a context.
func CallMetaFromContext(ctx context.Context) CallMeta {
	if meta, ok := ctx.Value(callMetaKey{}).(CallMeta); ok {
		return meta
	}
	return CallMeta{}
}
