package pipeline

import "fmt"

// State is the coarse phase of an Orchestrator.
type State int

const (
	StateIdle State = iota
	StateProcessing
	StateMerging
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	case StateMerging:
		return "merging"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// BranchState tracks one of the two concurrent branches.
type BranchState int

const (
	BranchPending BranchState = iota
	BranchRunning
	BranchDone
	// BranchDegraded marks an audio branch that finished without narration.
	BranchDegraded
	BranchFailed
)

func (b BranchState) String() string {
	switch b {
	case BranchPending:
		return "pending"
	case BranchRunning:
		return "running"
	case BranchDone:
		return "done"
	case BranchDegraded:
		return "degraded"
	case BranchFailed:
		return "failed"
	default:
		return fmt.Sprintf("BranchState(%d)", int(b))
	}
}

// Status is a point-in-time snapshot of an Orchestrator. It is advisory and
// never drives control flow.
type Status struct {
	State State
	Video BranchState
	Audio BranchState
	Err   error
}
