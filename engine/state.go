package engine

// RunState represents the current state of a run in the workflow.
// Transitions are strictly forward; no state is ever revisited.
type RunState string

const (
	// StateInit indicates the run has been created but not yet gated.
	StateInit RunState = "init"
	// StateGated indicates the gate has produced its verdict.
	StateGated RunState = "gated"
	// StateTerminated indicates the gate found no disruption. A valid
	// terminal outcome, not an error.
	StateTerminated RunState = "terminated"
	// StatePlanning indicates the planner call is in flight.
	StatePlanning RunState = "planning"
	// StateFanout indicates specialist variants are executing.
	StateFanout RunState = "fanout"
	// StateAggregated indicates specialist results have been folded into
	// the final plan.
	StateAggregated RunState = "aggregated"
	// StateDone indicates the run completed with a final plan.
	StateDone RunState = "done"
	// StateAborted indicates caller cancellation ended the run early.
	StateAborted RunState = "aborted"
)

// String returns the string representation of the state.
func (s RunState) String() string {
	return string(s)
}

// IsValid returns true if the state is a recognized run state.
func (s RunState) IsValid() bool {
	switch s {
	case StateInit, StateGated, StateTerminated, StatePlanning,
		StateFanout, StateAggregated, StateDone, StateAborted:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if no further transitions are possible.
func (s RunState) IsTerminal() bool {
	switch s {
	case StateTerminated, StateDone, StateAborted:
		return true
	default:
		return false
	}
}

// CanTransitionTo returns true if the state can transition to the target
// state. Every non-terminal state may abort; everything else moves
// strictly forward.
func (s RunState) CanTransitionTo(target RunState) bool {
	switch s {
	case StateInit:
		return target == StateGated || target == StateAborted
	case StateGated:
		// gated → terminated (no disruption) or planning (escalate)
		return target == StateTerminated || target == StatePlanning || target == StateAborted
	case StatePlanning:
		return target == StateFanout || target == StateAborted
	case StateFanout:
		return target == StateAggregated || target == StateAborted
	case StateAggregated:
		return target == StateDone || target == StateAborted
	case StateTerminated, StateDone, StateAborted:
		return false // Terminal states
	default:
		return false
	}
}
