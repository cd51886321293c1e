package view

import (
	"fmt"
	"sync"
	"time"

	"github.com/mcdev12/queuetimer/go/internal/models"
	"github.com/mcdev12/queuetimer/go/internal/reconciler"
)

// Mode is which screen is showing
type Mode string

const (
	ModeForm    Mode = "form"
	ModeTimer   Mode = "timer"
	ModeSummary Mode = "summary"
	ModeList    Mode = "list"
)

// ListItem is one row of the cached assignment list
type ListItem struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	MaxDuration string `json:"max_duration"`
	Status      string `json:"status"`
}

// State is everything a view needs to draw itself. It is passed by value to
// Render and to every Sink.
type State struct {
	Mode           Mode       `json:"mode"`
	AssignmentID   int        `json:"assignment_id,omitempty"`
	Title          string     `json:"title,omitempty"`
	Elapsed        string     `json:"elapsed,omitempty"`
	Remaining      string     `json:"remaining,omitempty"`
	MaxDuration    string     `json:"max_duration,omitempty"`
	StartTime      string     `json:"start_time,omitempty"`
	EndTime        string     `json:"end_time,omitempty"`
	PauseCount     int        `json:"pause_count"`
	Paused         bool       `json:"paused"`
	AutoCompleted  bool       `json:"auto_completed"`
	ConnectionLost bool       `json:"connection_lost"`
	Notice         string     `json:"notice,omitempty"`
	Items          []ListItem `json:"items,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Sink receives every new view state
type Sink interface {
	Update(State)
}

// SinkFunc adapts a function to a Sink
type SinkFunc func(State)

func (f SinkFunc) Update(s State) { f(s) }

// Fanout forwards each state to all of its sinks in order
type Fanout []Sink

func (f Fanout) Update(s State) {
	for _, sink := range f {
		if sink != nil {
			sink.Update(s)
		}
	}
}

// Latest remembers the most recent state
type Latest struct {
	mu    sync.RWMutex
	state State
}

func (l *Latest) Update(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = s
}

func (l *Latest) Get() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// FormatMinutes renders a minute count as HH:MM
func FormatMinutes(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// FromSnapshot builds the timer screen
func FromSnapshot(s reconciler.Snapshot) State {
	st := State{
		Mode:          ModeTimer,
		AssignmentID:  s.AssignmentID,
		Title:         s.Title,
		Elapsed:       s.Elapsed,
		StartTime:     s.StartTime,
		EndTime:       s.EstimatedEndTime,
		PauseCount:    s.PauseCount,
		Paused:        s.State == reconciler.StatePaused,
		AutoCompleted: s.AutoCompleted,
	}
	if s.MaxDurationMinutes > 0 {
		st.MaxDuration = FormatMinutes(s.MaxDurationMinutes)
		st.Remaining = reconciler.FormatElapsed(s.RemainingSeconds)
	}
	if s.AutoCompleted {
		st.Notice = "time is up, completing"
	}
	return st
}

// FromSummary builds the summary screen
func FromSummary(s reconciler.Summary) State {
	st := State{
		Mode:          ModeSummary,
		AssignmentID:  s.AssignmentID,
		Title:         s.Title,
		Elapsed:       s.ElapsedTime,
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		PauseCount:    s.PauseCount,
		AutoCompleted: s.AutoCompleted,
	}
	if s.AutoCompleted {
		st.Notice = "completed automatically at the duration limit"
	}
	return st
}

// FromAssignment builds the timer screen from server data, used by the polling variant.
func FromAssignment(a models.Assignment) State {
	st := State{
		Mode:         ModeTimer,
		AssignmentID: a.ID,
		Title:        a.Title,
		Elapsed:      models.StringValue(a.ElapsedTimeFormatted),
		MaxDuration:  FormatMinutes(a.MaxDurationMinutes),
		StartTime:    models.StringValue(a.StartTimeFormatted),
		EndTime:      models.StringValue(a.EndTimeFormatted),
		PauseCount:   a.PauseCount,
		Paused:       a.IsPaused,
	}
	if st.Elapsed == "" {
		st.Elapsed = reconciler.FormatElapsed(0)
	}
	if a.IsComplete {
		st.Mode = ModeSummary
	}
	return st
}

// FromList builds the list screen
func FromList(items []models.Assignment) State {
	st := State{Mode: ModeList, Items: make([]ListItem, 0, len(items))}
	for _, a := range items {
		st.Items = append(st.Items, ListItem{
			ID:          a.ID,
			Title:       a.Title,
			MaxDuration: FormatMinutes(a.MaxDurationMinutes),
			Status:      Status(a),
		})
	}
	return st
}

// Status is a one-word description of an assignment's lifecycle
func Status(a models.Assignment) string {
	switch {
	case a.IsComplete:
		return "complete"
	case a.IsPaused:
		return "paused"
	case a.IsStarted:
		return "running"
	default:
		return "not started"
	}
}
