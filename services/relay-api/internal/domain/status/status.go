// Package status defines the lifecycle of generation jobs.
package status

import "errors"

// Status represents the lifecycle status of a generation job.
type Status string

const (
	// Non-terminal states
	StatusQueued     Status = "queued"     // Waiting for a worker
	StatusProcessing Status = "processing" // Claimed by a worker

	// Terminal states (no further transitions allowed)
	StatusCompleted Status = "completed" // Output stored
	StatusFailed    Status = "failed"    // Gave up
)

// ErrInvalidTransition is returned when a status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsActive returns true if a worker may still pick the job up or is running it.
func (s Status) IsActive() bool {
	return s == StatusQueued || s == StatusProcessing
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// ValidTransitions defines allowed status transitions.
var ValidTransitions = map[Status][]Status{
	StatusQueued:     {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed, StatusQueued}, // back to queued on retry
	StatusCompleted:  {},
	StatusFailed:     {},
}

// CanTransitionTo checks if a transition from current status to target status is valid.
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range ValidTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// TransitionTo attempts to transition to the target status and returns error if invalid.
func (s Status) TransitionTo(target Status) (Status, error) {
	if !s.CanTransitionTo(target) {
		return s, ErrInvalidTransition
	}
	return target, nil
}
