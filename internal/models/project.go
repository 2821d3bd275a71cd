package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Project statuses. Transitions are monotonic except pause/resume:
// in_progress <-> paused, in_progress -> completed | error.
// completed and error are terminal; a terminal project never advances again.
const (
	StatusInProgress = "in_progress"
	StatusPaused     = "paused"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

type Project struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Name         string
	SeedPrompt   string
	CurrentStep  int
	Status       string
	ErrorMessage sql.NullString
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsTerminal reports whether a project status permits no further advancement.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusError
}

// CanTransition reports whether a project status change is legal.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusInProgress:
		return to == StatusPaused || to == StatusCompleted || to == StatusError
	case StatusPaused:
		return to == StatusInProgress
	default:
		return false
	}
}
