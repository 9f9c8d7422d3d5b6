package entities

import "time"

// WorkflowState is a node of the update workflow state machine.
type WorkflowState string

const (
	StateIdle          WorkflowState = "idle"
	StateDiscovering   WorkflowState = "discovering"
	StateFiltering     WorkflowState = "filtering"
	StateBranchCreated WorkflowState = "branch-created"
	StatePatching      WorkflowState = "patching"
	StateValidating    WorkflowState = "validating"
	StateCommitting    WorkflowState = "committing"
	StatePushing       WorkflowState = "pushing"
	StatePublishing    WorkflowState = "publishing"
	StateRollingBack   WorkflowState = "rolling-back"
	StateDone          WorkflowState = "done"
	StateFailed        WorkflowState = "failed"
)

// WorkflowOutcome is the terminal result of a run.
type WorkflowOutcome string

const (
	OutcomePending             WorkflowOutcome = ""
	OutcomePublished           WorkflowOutcome = "published"
	OutcomeRejectedEmpty       WorkflowOutcome = "rejected-empty"
	OutcomeDryRun              WorkflowOutcome = "dry-run"
	OutcomeFailed              WorkflowOutcome = "failed"
	OutcomeFailedAndRolledBack WorkflowOutcome = "failed-and-rolled-back"
)

// Succeeded reports whether the outcome maps to a zero exit status.
func (o WorkflowOutcome) Succeeded() bool {
	switch o {
	case OutcomePublished, OutcomeRejectedEmpty, OutcomeDryRun:
		return true
	default:
		return false
	}
}

// StepRecord is one entry of the run's step log.
type StepRecord struct {
	State    WorkflowState
	Started  time.Time
	Finished time.Time
	Err      error
}

// WorkflowRun is the transient state of a single update cycle. It is owned by the
// orchestrator for the lifetime of the run and never persisted.
type WorkflowRun struct {
	BranchName     string
	DefaultBranch  string
	Batch          UpdateBatch
	State          WorkflowState
	Outcome        WorkflowOutcome
	Steps          []StepRecord
	PullRequestURL string

	// BranchCreated and Pushed track which side effects rollback has to undo.
	BranchCreated bool
	Pushed        bool

	// Degraded is set when the proposal could not be opened after a successful push.
	Degraded bool
	// RollbackErrors collects secondary failures swallowed while rolling back.
	RollbackErrors []error
	// Err is the failure that ended the run, if any.
	Err error
}

// NewWorkflowRun creates a run in the Idle state.
func NewWorkflowRun(defaultBranch string) *WorkflowRun {
	return &WorkflowRun{
		DefaultBranch: defaultBranch,
		State:         StateIdle,
	}
}

// Enter moves the run to the given state and opens a step record for it.
func (r *WorkflowRun) Enter(state WorkflowState, now time.Time) {
	r.State = state
	r.Steps = append(r.Steps, StepRecord{State: state, Started: now})
}

// Complete closes the current step record with the given error (nil on success).
func (r *WorkflowRun) Complete(err error, now time.Time) {
	if len(r.Steps) == 0 {
		return
	}
	last := &r.Steps[len(r.Steps)-1]
	last.Finished = now
	last.Err = err
}

// Finish sets the terminal state and outcome.
func (r *WorkflowRun) Finish(state WorkflowState, outcome WorkflowOutcome) {
	r.State = state
	r.Outcome = outcome
}

// CompletedStates returns the states whose step finished without error, in order.
func (r *WorkflowRun) CompletedStates() []WorkflowState {
	var states []WorkflowState
	for _, step := range r.Steps {
		if !step.Finished.IsZero() && step.Err == nil {
			states = append(states, step.State)
		}
	}
	return states
}
