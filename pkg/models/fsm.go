package models

import (
	"errors"
	"fmt"
)

// JobState is the process-wide processing state
type JobState string

const (
	JobStateIdle    JobState = "idle"    // No job running, log holds the most recent job's readings
	JobStateRunning JobState = "running" // A background task is driving the sensing engine
)

// ErrInvalidTransition is returned for transitions outside the state table
var ErrInvalidTransition = errors.New("invalid job state transition")

// validTransitions maps from-state to allowed to-states
var validTransitions = map[JobState]map[JobState]bool{
	JobStateIdle: {
		JobStateRunning: true, // Idle → Running (job accepted)
	},
	JobStateRunning: {
		JobStateIdle: true, // Running → Idle (engine run returned, success or failure)
	},
}

// ValidateTransition checks if a state transition is valid
func ValidateTransition(from, to JobState) error {
	allowed, ok := validTransitions[from]
	if !ok {
		return fmt.Errorf("%w: unknown source state %q", ErrInvalidTransition, from)
	}
	if !allowed[to] {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// IsActiveState returns true if a job is being processed
func IsActiveState(state JobState) bool {
	return state == JobStateRunning
}
