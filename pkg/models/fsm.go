package models

import (
	"fmt"
)

// validTransitions maps from-status to allowed to-statuses.
// Transitions are monotonic; the only backward edge is failed → pending,
// taken when a caller explicitly retries a task.
var validTransitions = map[TaskStatus]map[TaskStatus]bool{
	TaskStatusPending: {
		TaskStatusAssigned: true, // router found an eligible worker
		TaskStatusFailed:   true, // fail-fast: no eligible worker
		TaskStatusCanceled: true,
	},
	TaskStatusAssigned: {
		TaskStatusProcessing: true, // worker picked the task up
		TaskStatusFailed:     true, // worker died before starting
		TaskStatusCanceled:   true,
	},
	TaskStatusProcessing: {
		TaskStatusCompleted: true,
		TaskStatusFailed:    true,
		TaskStatusCanceled:  true,
	},
	TaskStatusFailed: {
		TaskStatusPending: true, // explicit retry
	},
	// Terminal states
	TaskStatusCompleted: {},
	TaskStatusCanceled:  {},
}

// ValidateTransition checks if a status transition is valid
func ValidateTransition(from, to TaskStatus) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("unknown source status: %s", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}

// IsTerminalStatus returns true if no further transitions are possible.
// failed is terminal for the submission attempt but re-enterable via retry.
func IsTerminalStatus(s TaskStatus) bool {
	return s == TaskStatusCompleted || s == TaskStatusCanceled
}

// IsActiveStatus returns true while the task occupies worker capacity
func IsActiveStatus(s TaskStatus) bool {
	return s == TaskStatusAssigned || s == TaskStatusProcessing
}

// CanRetry reports whether a task in this status may be explicitly retried
func CanRetry(s TaskStatus) bool {
	return s == TaskStatusFailed
}
