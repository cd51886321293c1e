package reconciler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// ErrNoActiveTimer is returned for pause/resume when no started timer is being shown
var ErrNoActiveTimer = errors.New("no active timer")

// DefaultTickInterval is the single-timer display cadence
const DefaultTickInterval = time.Second

// State is the lifecycle of the displayed timer
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
)

// StartConfirmation is what the service echoed when a start was accepted
type StartConfirmation struct {
	AssignmentID       int
	Title              string
	MaxDurationMinutes int
	StartTime          string
	EstimatedEndTime   string
	PauseCount         int
}

// ResumeConfirmation carries the end time recalculated by the service
type ResumeConfirmation struct {
	NewEndTime string
}

// CompleteConfirmation carries the authoritative final values
type CompleteConfirmation struct {
	AssignmentID int
	StartTime    string
	EndTime      string
	ElapsedTime  string
	PauseCount   int
}

// Snapshot is an immutable copy of the displayed timer
type Snapshot struct {
	AssignmentID       int    `json:"assignment_id"`
	Title              string `json:"title"`
	State              State  `json:"state"`
	ElapsedSeconds     int    `json:"elapsed_seconds"`
	Elapsed            string `json:"elapsed"`
	RemainingSeconds   int    `json:"remaining_seconds"`
	MaxDurationMinutes int    `json:"max_duration_minutes"`
	StartTime          string `json:"start_time"`
	EstimatedEndTime   string `json:"estimated_end_time"`
	PauseCount         int    `json:"pause_count"`
	AutoCompleted      bool   `json:"auto_completed"`
}

// Summary is shown once a timer has completed
type Summary struct {
	AssignmentID  int    `json:"assignment_id"`
	Title         string `json:"title"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	ElapsedTime   string `json:"elapsed_time"`
	PauseCount    int    `json:"pause_count"`
	AutoCompleted bool   `json:"auto_completed"`
}

// Config wires the reconciler to a clock and its observers.
// OnUpdate and OnSummary must not call back into the reconciler.
type Config struct {
	Clock          Clock
	TickInterval   time.Duration
	OnUpdate       func(Snapshot)
	OnSummary      func(Summary)
	OnAutoComplete func(Snapshot)
}

// timer is the local snapshot of the running assignment
type timer struct {
	assignmentID int
	title        string
	localStart   time.Time
	paused       bool
	pauseStart   time.Time
	maxDuration  time.Duration
	elapsed      int
	startTime    string
	endTime      string
	pauseCount   int
	autoFired    bool
}

// Reconciler keeps a displayed elapsed time in step with a server-tracked timer
// using only the local clock between transitions.
type Reconciler struct {
	clock    Clock
	interval time.Duration

	onUpdate       func(Snapshot)
	onSummary      func(Summary)
	onAutoComplete func(Snapshot)

	mu    sync.Mutex
	cur   *timer
	state State
	task  *Task
	gen   uint64

	// serialises observer callbacks; always acquired while holding mu
	emitMu sync.Mutex
}

// New creates an idle reconciler
func New(cfg Config) *Reconciler {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	interval := cfg.TickInterval
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Reconciler{
		clock:          clock,
		interval:       interval,
		onUpdate:       cfg.OnUpdate,
		onSummary:      cfg.OnSummary,
		onAutoComplete: cfg.OnAutoComplete,
		state:          StateIdle,
	}
}

// OnStart begins tracking a newly started assignment. Any timer already shown is
// replaced and its ticking cancelled. Ticking stops when ctx ends.
func (r *Reconciler) OnStart(ctx context.Context, c StartConfirmation) Snapshot {
	r.mu.Lock()
	r.stopTaskLocked()

	r.cur = &timer{
		assignmentID: c.AssignmentID,
		title:        c.Title,
		localStart:   r.clock.Now(),
		maxDuration:  time.Duration(c.MaxDurationMinutes) * time.Minute,
		startTime:    c.StartTime,
		endTime:      c.EstimatedEndTime,
		pauseCount:   c.PauseCount,
	}
	r.state = StateRunning
	r.gen++
	gen := r.gen
	r.task = NewTask(r.clock, r.interval, func(time.Time) { r.tick(gen) })
	r.task.Start(ctx)

	snap := r.snapshotLocked()
	r.emitLocked(snap)

	log.Info().
		Int("assignment_id", c.AssignmentID).
		Int("max_duration_minutes", c.MaxDurationMinutes).
		Dur("tick_interval", r.interval).
		Msg("timer started")
	return snap
}

// Tick recomputes elapsed time from the reference start. It is what the repeating
// task calls; calling it directly is equivalent to an extra tick.
func (r *Reconciler) Tick() Snapshot {
	r.mu.Lock()
	return r.tickLocked()
}

func (r *Reconciler) tick(gen uint64) {
	r.mu.Lock()
	if gen != r.gen {
		// Stale tick from a timer that has been torn down
		r.mu.Unlock()
		return
	}
	r.tickLocked()
}

// tickLocked is entered with r.mu held and releases it before notifying observers.
func (r *Reconciler) tickLocked() Snapshot {
	t := r.cur
	if t == nil || t.autoFired {
		snap := r.snapshotLocked()
		r.mu.Unlock()
		return snap
	}

	if !t.paused {
		t.elapsed = r.elapsedLocked(r.clock.Now())
	}

	fire := false
	if t.maxDuration > 0 && !t.autoFired && t.elapsed >= int(t.maxDuration/time.Second) {
		t.autoFired = true
		fire = true
		r.stopTaskLocked()
	}

	snap := r.snapshotLocked()
	r.emitLocked(snap)

	if fire {
		log.Info().
			Int("assignment_id", snap.AssignmentID).
			Str("elapsed", snap.Elapsed).
			Msg("duration cap reached, auto-completing")
		if r.onAutoComplete != nil {
			r.onAutoComplete(snap)
		}
	}
	return snap
}

// OnPause freezes the display and records when the pause began.
func (r *Reconciler) OnPause() (Snapshot, error) {
	r.mu.Lock()
	t := r.cur
	if t == nil {
		r.mu.Unlock()
		return Snapshot{State: StateIdle}, ErrNoActiveTimer
	}
	if t.paused {
		snap := r.snapshotLocked()
		r.mu.Unlock()
		return snap, nil
	}

	now := r.clock.Now()
	if !t.autoFired {
		// Past the cap the display stays frozen at the value that fired
		t.elapsed = r.elapsedLocked(now)
	}
	t.paused = true
	t.pauseStart = now
	t.pauseCount++
	r.state = StatePaused

	snap := r.snapshotLocked()
	r.emitLocked(snap)

	log.Debug().Int("assignment_id", snap.AssignmentID).Str("elapsed", snap.Elapsed).Msg("timer paused")
	return snap, nil
}

// OnResume shifts the reference start forward by the time spent paused. Resuming
// a timer that is not paused leaves the start reference untouched.
func (r *Reconciler) OnResume(c ResumeConfirmation) (Snapshot, error) {
	r.mu.Lock()
	t := r.cur
	if t == nil {
		r.mu.Unlock()
		return Snapshot{State: StateIdle}, ErrNoActiveTimer
	}
	if c.NewEndTime != "" {
		t.endTime = c.NewEndTime
	}
	if !t.paused {
		snap := r.snapshotLocked()
		r.mu.Unlock()
		return snap, nil
	}

	pauseDuration := r.clock.Now().Sub(t.pauseStart)
	t.localStart = t.localStart.Add(pauseDuration)
	t.paused = false
	t.pauseStart = time.Time{}
	r.state = StateRunning

	snap := r.snapshotLocked()
	r.emitLocked(snap)

	log.Debug().
		Int("assignment_id", snap.AssignmentID).
		Dur("paused_for", pauseDuration).
		Msg("timer resumed")
	return snap, nil
}

// OnComplete stops ticking, discards the snapshot and surfaces the service's final values.
func (r *Reconciler) OnComplete(c CompleteConfirmation) Summary {
	r.mu.Lock()
	summary := Summary{
		AssignmentID: c.AssignmentID,
		StartTime:    c.StartTime,
		EndTime:      c.EndTime,
		ElapsedTime:  c.ElapsedTime,
		PauseCount:   c.PauseCount,
	}
	if t := r.cur; t != nil && (c.AssignmentID == 0 || c.AssignmentID == t.assignmentID) {
		summary.AssignmentID = t.assignmentID
		summary.Title = t.title
		summary.AutoCompleted = t.autoFired
		if summary.StartTime == "" {
			summary.StartTime = t.startTime
		}
		r.teardownLocked()
		r.state = StateCompleted
	}
	r.emitMu.Lock()
	r.mu.Unlock()

	log.Info().
		Int("assignment_id", summary.AssignmentID).
		Str("elapsed", summary.ElapsedTime).
		Int("pause_count", summary.PauseCount).
		Bool("auto_completed", summary.AutoCompleted).
		Msg("timer completed")

	if r.onSummary != nil {
		r.onSummary(summary)
	}
	r.emitMu.Unlock()
	return summary
}

// Reset discards the snapshot and cancels ticking.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	had := r.cur != nil
	r.teardownLocked()
	r.state = StateIdle
	r.mu.Unlock()

	if had {
		log.Debug().Msg("timer reset")
	}
}

// Snapshot returns the current view of the timer and whether one is active.
func (r *Reconciler) Snapshot() (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(), r.cur != nil
}

// ActiveID returns the id of the timer being tracked, or 0.
func (r *Reconciler) ActiveID() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur == nil {
		return 0
	}
	return r.cur.assignmentID
}

// Ticking reports whether the repeating task is live.
func (r *Reconciler) Ticking() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.task != nil && r.task.Running()
}

func (r *Reconciler) elapsedLocked(now time.Time) int {
	d := now.Sub(r.cur.localStart)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}

func (r *Reconciler) teardownLocked() {
	r.stopTaskLocked()
	r.cur = nil
	r.gen++
}

func (r *Reconciler) stopTaskLocked() {
	if r.task != nil {
		r.task.Stop()
		r.task = nil
	}
}

func (r *Reconciler) snapshotLocked() Snapshot {
	t := r.cur
	if t == nil {
		return Snapshot{State: r.state, Elapsed: FormatElapsed(0)}
	}
	snap := Snapshot{
		AssignmentID:       t.assignmentID,
		Title:              t.title,
		State:              r.state,
		ElapsedSeconds:     t.elapsed,
		Elapsed:            FormatElapsed(t.elapsed),
		MaxDurationMinutes: int(t.maxDuration / time.Minute),
		StartTime:          t.startTime,
		EstimatedEndTime:   t.endTime,
		PauseCount:         t.pauseCount,
		AutoCompleted:      t.autoFired,
	}
	if t.maxDuration > 0 {
		remaining := int(t.maxDuration/time.Second) - t.elapsed
		if remaining < 0 {
			remaining = 0
		}
		snap.RemainingSeconds = remaining
	}
	return snap
}

// emitLocked is entered with r.mu held. It takes emitMu before releasing r.mu so
// observers see snapshots in the order they were taken.
func (r *Reconciler) emitLocked(snap Snapshot) {
	r.emitMu.Lock()
	r.mu.Unlock()
	defer r.emitMu.Unlock()
	if r.onUpdate != nil {
		r.onUpdate(snap)
	}
}
