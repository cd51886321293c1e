package events

import (
	"time"
)

// Event types published on assignment transitions
const (
	AssignmentStarted       = "started"
	AssignmentPaused        = "paused"
	AssignmentResumed       = "resumed"
	AssignmentCompleted     = "completed"
	AssignmentAutoCompleted = "auto_completed"
	AssignmentDeleted       = "deleted"
)

// AssignmentStartedPayload is the payload for an AssignmentStarted event
type AssignmentStartedPayload struct {
	AssignmentID       int       `json:"assignment_id"`
	Title              string    `json:"title"`
	MaxDurationMinutes int       `json:"max_duration_minutes"`
	StartTime          string    `json:"start_time"`
	EstimatedEndTime   string    `json:"estimated_end_time"`
	StartedAt          time.Time `json:"started_at"`
}

// AssignmentPausedPayload is the payload for an AssignmentPaused event
type AssignmentPausedPayload struct {
	AssignmentID int       `json:"assignment_id"`
	ElapsedTime  string    `json:"elapsed_time"`
	PauseCount   int       `json:"pause_count"`
	PausedAt     time.Time `json:"paused_at"`
}

// AssignmentResumedPayload is the payload for an AssignmentResumed event
type AssignmentResumedPayload struct {
	AssignmentID int       `json:"assignment_id"`
	NewEndTime   string    `json:"new_end_time"`
	ResumedAt    time.Time `json:"resumed_at"`
}

// AssignmentCompletedPayload is the payload for AssignmentCompleted and
// AssignmentAutoCompleted events
type AssignmentCompletedPayload struct {
	AssignmentID  int       `json:"assignment_id"`
	StartTime     string    `json:"start_time"`
	EndTime       string    `json:"end_time"`
	ElapsedTime   string    `json:"elapsed_time"`
	PauseCount    int       `json:"pause_count"`
	AutoCompleted bool      `json:"auto_completed"`
	CompletedAt   time.Time `json:"completed_at"`
}

// AssignmentDeletedPayload is the payload for an AssignmentDeleted event
type AssignmentDeletedPayload struct {
	AssignmentID int       `json:"assignment_id"`
	DeletedAt    time.Time `json:"deleted_at"`
}
