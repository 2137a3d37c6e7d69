package scenario

import (
	"time"

	"github.com/example/trafficsim/internal/persona"
)

// Status is the terminal status of one session.
type Status string

// Session statuses.
const (
	// StatusSuccess means the core browsing phases (landing, browse,
	// search) all completed. Later phases may still have failed.
	StatusSuccess Status = "success"
	// StatusError means at least one core phase did not complete.
	StatusError Status = "error"
	// StatusCanceled means the session was cut short by shutdown before
	// the core phases could complete.
	StatusCanceled Status = "canceled"
)

// PhaseStatus is the outcome of one phase.
type PhaseStatus string

// Phase statuses.
const (
	// PhaseCompleted means the phase ran to the end.
	PhaseCompleted PhaseStatus = "completed"
	// PhaseSkipped means a precondition from an earlier phase was unmet.
	PhaseSkipped PhaseStatus = "skipped"
	// PhaseFailed means the phase hit a phase-local failure.
	PhaseFailed PhaseStatus = "failed"
)

// PhaseOutcome records how one phase ended.
type PhaseOutcome struct {
	// Phase is the phase name.
	Phase string
	// Status is the phase outcome.
	Status PhaseStatus
	// Duration is the phase's wall-clock time.
	Duration time.Duration
	// Err holds the failure, if any.
	Err error
}

// Result is the immutable outcome of one session. It is written by the
// session task and read by the orchestrator only after the task completes.
type Result struct {
	// SessionID uniquely identifies the session.
	SessionID string
	// Persona is the synthetic user the session ran as.
	Persona persona.Persona
	// StartTime is when the session began.
	StartTime time.Time
	// Phases holds the outcome of every phase, in execution order.
	Phases []PhaseOutcome
	// Endpoints lists the distinct backend endpoints the session touched,
	// in first-touch order.
	Endpoints []string
	// Status is the terminal session status.
	Status Status
	// Err holds the session-fatal error, if any.
	Err error
	// Duration is the session's total wall-clock time.
	Duration time.Duration
}

// Outcome returns the recorded outcome for the named phase.
func (r *Result) Outcome(phase string) (PhaseOutcome, bool) {
	for _, o := range r.Phases {
		if o.Phase == phase {
			return o, true
		}
	}
	return PhaseOutcome{}, false
}

// Completed reports whether the named phase completed.
func (r *Result) Completed(phase string) bool {
	o, ok := r.Outcome(phase)
	return ok && o.Status == PhaseCompleted
}
