// Package responseengine provides the NATS processor that runs the
// disruption-response workflow. It consumes run submissions from a
// JetStream stream, executes the engine for each one, and publishes the
// final plan as a correlated response. A drop directory can be watched
// for snapshot files, which are submitted through the same stream.
package responseengine

import (
	"encoding/json"
	"fmt"

	"github.com/c360studio/irops/aggregate"
	"github.com/c360studio/irops/disruption"
	"github.com/c360studio/semstreams/message"
)

// RunRequest is the input message for a disruption-response run.
// Published to irops.disruption.submitted subjects.
type RunRequest struct {
	// RequestID uniquely identifies this run request. Responses are
	// published under this ID so submitters can correlate.
	RequestID string `json:"request_id"`

	// Snapshot is the raw operational state to analyze. It is validated
	// by the engine before the run starts.
	Snapshot disruption.Snapshot `json:"snapshot"`
}

// Schema implements message.Payload.
func (r *RunRequest) Schema() message.Type {
	return message.Type{Domain: "disruption", Category: "submitted", Version: "v1"}
}

// Validate implements message.Payload.
// Only envelope-level checks happen here; the engine performs the full
// snapshot validation and reports malformed input as an invalid context.
func (r *RunRequest) Validate() error {
	if r.RequestID == "" {
		return fmt.Errorf("request_id is required")
	}
	if r.Snapshot.FlightNumber == "" {
		return fmt.Errorf("snapshot.flight_number is required")
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (r *RunRequest) MarshalJSON() ([]byte, error) {
	type Alias RunRequest
	return json.Marshal((*Alias)(r))
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *RunRequest) UnmarshalJSON(data []byte) error {
	type Alias RunRequest
	return json.Unmarshal(data, (*Alias)(r))
}

// RunResponse is the output message for a completed run.
// Published to <output_subject_prefix>.<request_id> subjects and stored
// in the response KV bucket for later queries.
type RunResponse struct {
	// RequestID matches the request this response is for.
	RequestID string `json:"request_id"`

	// RunID is the engine-assigned run identifier. Empty when the
	// snapshot was rejected before a run started.
	RunID string `json:"run_id,omitempty"`

	// State is the terminal run state (done, terminated, aborted).
	State string `json:"state,omitempty"`

	// RiskProbability is the gate's combined risk score for the run.
	RiskProbability float64 `json:"risk_probability,omitempty"`

	// Plan is the final recovery plan. Nil for terminated runs and for
	// rejected snapshots.
	Plan *aggregate.FinalPlan `json:"plan,omitempty"`

	// Error describes why no plan was produced, when set.
	Error string `json:"error,omitempty"`
}

// Schema implements message.Payload.
func (r *RunResponse) Schema() message.Type {
	return message.Type{Domain: "disruption", Category: "response", Version: "v1"}
}

// Validate implements message.Payload.
func (r *RunResponse) Validate() error {
	if r.RequestID == "" {
		return fmt.Errorf("request_id is required")
	}
	if r.Error == "" && r.RunID == "" {
		return fmt.Errorf("run_id is required for successful responses")
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (r *RunResponse) MarshalJSON() ([]byte, error) {
	type Alias RunResponse
	return json.Marshal((*Alias)(r))
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *RunResponse) UnmarshalJSON(data []byte) error {
	type Alias RunResponse
	return json.Unmarshal(data, (*Alias)(r))
}
