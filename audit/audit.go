// Package audit records every stage outcome of a run as an append-only
// trail. Appends are serialized through a single writer goroutine, so
// concurrent stages never tear entries and sequence numbers are
// monotonic in arrival order. A trail belongs to exactly one run and is
// injected into the engine; nothing in this package is a singleton.
package audit

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Outcome classifies how a stage finished.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeDegraded Outcome = "degraded"
	OutcomeFailed   Outcome = "failed"

	// OutcomeSkipped marks work that was dropped without running:
	// scenarios over the cap and specialists abandoned by cancellation.
	OutcomeSkipped Outcome = "skipped"
)

// Entry is one stage outcome. Entries are immutable once appended;
// failed and degraded entries are retained like any other.
type Entry struct {
	// Seq is the trail-assigned arrival number, monotonic from 1.
	Seq uint64 `json:"seq"`

	// RunID is stamped by the trail on append.
	RunID string `json:"run_id"`

	// Stage names the producing stage, e.g. "gate", "planner",
	// "specialist.risk", "aggregate".
	Stage string `json:"stage"`

	// ScenarioID is empty for baseline and run-level entries.
	ScenarioID string `json:"scenario_id,omitempty"`

	// Input is the stage's input summary.
	Input map[string]any `json:"input,omitempty"`

	// Output is the stage's output summary.
	Output map[string]any `json:"output,omitempty"`

	Outcome Outcome `json:"outcome"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// queueBuffer absorbs a full run's burst without blocking appenders.
const queueBuffer = 64

// Trail is the append-only audit record of one run.
type Trail struct {
	runID  string
	logger *slog.Logger

	queue chan Entry
	done  chan struct{}

	closeOnce sync.Once

	// sendMu orders appends against close: appenders hold the read
	// side across the send so the queue never closes under them.
	sendMu sync.RWMutex
	closed bool

	// entriesMu guards the slice between the writer and snapshots.
	entriesMu sync.Mutex
	entries   []Entry
	seq       uint64
}

// Option configures a Trail.
type Option func(*Trail)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(t *Trail) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New creates the trail for one run and starts its writer.
func New(runID string, opts ...Option) *Trail {
	t := &Trail{
		runID:  runID,
		logger: slog.Default(),
		queue:  make(chan Entry, queueBuffer),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	go t.write()
	return t
}

// RunID returns the run this trail records.
func (t *Trail) RunID() string { return t.runID }

// Append queues one entry. Safe for concurrent use; blocks only when
// the queue is saturated, never drops. Appends after Close are logged
// and discarded.
func (t *Trail) Append(e Entry) {
	t.sendMu.RLock()
	defer t.sendMu.RUnlock()
	if t.closed {
		t.logger.Warn("audit append after close discarded",
			"run_id", t.runID, "stage", e.Stage, "outcome", e.Outcome)
		return
	}
	t.queue <- e
}

// Close flushes the queue and stops the writer. Idempotent. The trail
// is complete once Close returns.
func (t *Trail) Close() {
	t.closeOnce.Do(func() {
		t.sendMu.Lock()
		t.closed = true
		t.sendMu.Unlock()
		close(t.queue)
		<-t.done
	})
}

// Len reports how many entries have been written so far.
func (t *Trail) Len() int {
	t.entriesMu.Lock()
	defer t.entriesMu.Unlock()
	return len(t.entries)
}

// Entries returns a copy of the trail in its total order: finishedAt
// ascending, ties broken by sequence number.
func (t *Trail) Entries() []Entry {
	t.entriesMu.Lock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	t.entriesMu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].FinishedAt.Equal(out[j].FinishedAt) {
			return out[i].FinishedAt.Before(out[j].FinishedAt)
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

// write is the single writer: it alone assigns sequence numbers and
// grows the slice.
func (t *Trail) write() {
	defer close(t.done)
	for e := range t.queue {
		t.seq++
		e.Seq = t.seq
		e.RunID = t.runID

		t.entriesMu.Lock()
		t.entries = append(t.entries, e)
		t.entriesMu.Unlock()
	}
}
