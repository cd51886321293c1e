package models

import "time"

// Assignment is the server's view of a timed task
type Assignment struct {
	ID                   int     `json:"id"`
	Title                string  `json:"title"`
	MaxDurationMinutes   int     `json:"max_duration_minutes"`
	StartTimeFormatted   *string `json:"start_time_formatted"`
	ElapsedTimeFormatted *string `json:"elapsed_time_formatted"`
	EndTimeFormatted     *string `json:"end_time_formatted"`
	PauseCount           int     `json:"pause_count"`
	IsStarted            bool    `json:"is_started"`
	IsPaused             bool    `json:"is_paused"`
	IsComplete           bool    `json:"is_complete"`
}

// MaxDuration returns the requested cap as a time.Duration
func (a Assignment) MaxDuration() time.Duration {
	return time.Duration(a.MaxDurationMinutes) * time.Minute
}

// Running reports whether the timer is started and not yet complete
func (a Assignment) Running() bool {
	return a.IsStarted && !a.IsComplete
}

// StartResult is returned by the start endpoint
type StartResult struct {
	StartTime        string `json:"start_time"`
	EstimatedEndTime string `json:"estimated_end_time"`
}

// PauseResult is returned by the pause endpoint
type PauseResult struct {
	ElapsedTime string `json:"elapsed_time"`
}

// ResumeResult is returned by the resume endpoint
type ResumeResult struct {
	NewEndTime string `json:"new_end_time"`
}

// CompleteResult is returned by the complete endpoint
type CompleteResult struct {
	ElapsedTime string `json:"elapsed_time"`
	EndTime     string `json:"end_time"`
}

// StringValue dereferences an optional server string
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
