package assignments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/queuetimer/go/clients"
	"github.com/mcdev12/queuetimer/go/clients/queuetimer_client"
	"github.com/mcdev12/queuetimer/go/internal/events"
	"github.com/mcdev12/queuetimer/go/internal/models"
	"github.com/mcdev12/queuetimer/go/internal/reconciler"
	"github.com/mcdev12/queuetimer/go/internal/view"
	"github.com/rs/zerolog/log"
)

// ErrNoActiveTimer is returned when a transition needs a started timer and none is shown
var ErrNoActiveTimer = reconciler.ErrNoActiveTimer

// ErrTimerActive is returned when starting while another timer is still being shown
var ErrTimerActive = errors.New("a timer is already active")

// Gateway defines what the app layer needs from the remote service
type Gateway interface {
	CreateAssignment(ctx context.Context, req queuetimer_client.AssignmentRequest) (*models.Assignment, error)
	GetAssignment(ctx context.Context, id int) (*models.Assignment, error)
	UpdateAssignment(ctx context.Context, id int, req queuetimer_client.AssignmentRequest) (*models.Assignment, error)
	DeleteAssignment(ctx context.Context, id int) error
	StartAssignment(ctx context.Context, id int) (*models.StartResult, error)
	PauseAssignment(ctx context.Context, id int) (*models.PauseResult, error)
	ResumeAssignment(ctx context.Context, id int) (*models.ResumeResult, error)
	CompleteAssignment(ctx context.Context, id int) (*models.CompleteResult, error)
}

// Config wires the app to its collaborators. Publisher and Sink are optional.
type Config struct {
	Gateway      Gateway
	Cache        *Cache
	Publisher    events.Publisher
	Sink         view.Sink
	Clock        clockwork.Clock
	TickInterval time.Duration
}

// App coordinates the gateway, the local timer and the view. Remote calls
// always happen first; local state only changes once the service confirmed.
type App struct {
	gateway   Gateway
	cache     *Cache
	publisher events.Publisher
	sink      view.Sink
	clock     clockwork.Clock
	timer     *reconciler.Reconciler

	// serialises transitions so auto-completion never races a manual one
	mu sync.Mutex
	// context of the last Start, used for auto-completion calls
	runCtx context.Context
}

// NewApp creates a new assignments App
func NewApp(cfg Config) *App {
	a := &App{
		gateway:   cfg.Gateway,
		cache:     cfg.Cache,
		publisher: cfg.Publisher,
		sink:      cfg.Sink,
		clock:     cfg.Clock,
	}
	if a.clock == nil {
		a.clock = clockwork.NewRealClock()
	}
	if a.publisher == nil {
		a.publisher = events.NewLogPublisher()
	}
	if a.sink == nil {
		a.sink = view.SinkFunc(func(view.State) {})
	}

	a.timer = reconciler.New(reconciler.Config{
		Clock:        a.clock,
		TickInterval: cfg.TickInterval,
		OnUpdate: func(s reconciler.Snapshot) {
			a.show(view.FromSnapshot(s))
		},
		OnSummary: func(s reconciler.Summary) {
			a.show(view.FromSummary(s))
		},
		OnAutoComplete: a.autoComplete,
	})
	return a
}

// Timer exposes the local reconciler for read-only inspection
func (a *App) Timer() *reconciler.Reconciler {
	return a.timer
}

// Create validates and creates a new assignment, remembering its id locally.
func (a *App) Create(ctx context.Context, title, duration string) (*models.Assignment, error) {
	req, err := NewRequest(title, duration)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	assignment, err := a.gateway.CreateAssignment(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create assignment: %w", err)
	}

	if a.cache != nil {
		if err := a.cache.Add(assignment.ID); err != nil {
			log.Warn().Err(err).Int("assignment_id", assignment.ID).Msg("failed to cache assignment id")
		}
	}

	log.Info().
		Int("assignment_id", assignment.ID).
		Str("title", assignment.Title).
		Int("max_duration_minutes", assignment.MaxDurationMinutes).
		Msg("created assignment")
	a.show(view.FromAssignment(*assignment))
	return assignment, nil
}

// Get retrieves an assignment by id
func (a *App) Get(ctx context.Context, id int) (*models.Assignment, error) {
	assignment, err := a.gateway.GetAssignment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return assignment, nil
}

// Update validates and replaces the title and duration of an assignment
func (a *App) Update(ctx context.Context, id int, title, duration string) (*models.Assignment, error) {
	req, err := NewRequest(title, duration)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	assignment, err := a.gateway.UpdateAssignment(ctx, id, req)
	if err != nil {
		return nil, fmt.Errorf("failed to update assignment: %w", err)
	}

	log.Info().Int("assignment_id", id).Str("title", assignment.Title).Msg("updated assignment")
	return assignment, nil
}

// Delete removes an assignment. A timer showing it is torn down.
func (a *App) Delete(ctx context.Context, id int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.gateway.DeleteAssignment(ctx, id); err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	a.forget(ctx, id)

	log.Info().Int("assignment_id", id).Msg("deleted assignment")
	a.show(view.State{Mode: view.ModeForm})
	return nil
}

// List re-fetches every cached assignment. Ids the service no longer knows
// are dropped from the cache.
func (a *App) List(ctx context.Context) ([]models.Assignment, error) {
	if a.cache == nil {
		return nil, nil
	}
	ids, err := a.cache.IDs()
	if err != nil {
		return nil, err
	}

	list := make([]models.Assignment, 0, len(ids))
	for _, id := range ids {
		assignment, err := a.gateway.GetAssignment(ctx, id)
		if err != nil {
			if clients.StatusCode(err) == http.StatusNotFound {
				log.Debug().Int("assignment_id", id).Msg("dropping unknown assignment from cache")
				if err := a.cache.Remove(id); err != nil {
					log.Warn().Err(err).Int("assignment_id", id).Msg("failed to update assignment cache")
				}
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Int("assignment_id", id).Msg("failed to fetch cached assignment")
			continue
		}
		list = append(list, *assignment)
	}

	a.show(view.FromList(list))
	return list, nil
}

// Start starts an assignment on the service and begins local ticking.
// Ticking stops when ctx ends. The active timer must be completed or
// discarded first.
func (a *App) Start(ctx context.Context, id int) (reconciler.Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if active := a.timer.ActiveID(); active != 0 {
		return reconciler.Snapshot{}, fmt.Errorf("%w: assignment %d", ErrTimerActive, active)
	}
	assignment, err := a.gateway.GetAssignment(ctx, id)
	if err != nil {
		return reconciler.Snapshot{}, fmt.Errorf("failed to get assignment: %w", err)
	}
	result, err := a.gateway.StartAssignment(ctx, id)
	if err != nil {
		return reconciler.Snapshot{}, fmt.Errorf("failed to start assignment: %w", err)
	}

	a.runCtx = ctx
	snap := a.timer.OnStart(ctx, reconciler.StartConfirmation{
		AssignmentID:       id,
		Title:              assignment.Title,
		MaxDurationMinutes: assignment.MaxDurationMinutes,
		StartTime:          result.StartTime,
		EstimatedEndTime:   result.EstimatedEndTime,
		PauseCount:         assignment.PauseCount,
	})

	a.publish(ctx, events.AssignmentStarted, id, events.AssignmentStartedPayload{
		AssignmentID:       id,
		Title:              assignment.Title,
		MaxDurationMinutes: assignment.MaxDurationMinutes,
		StartTime:          result.StartTime,
		EstimatedEndTime:   result.EstimatedEndTime,
		StartedAt:          a.clock.Now(),
	})
	return snap, nil
}

// Pause pauses the active timer
func (a *App) Pause(ctx context.Context) (reconciler.Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.timer.ActiveID()
	if id == 0 {
		return reconciler.Snapshot{}, ErrNoActiveTimer
	}

	result, err := a.gateway.PauseAssignment(ctx, id)
	if err != nil {
		return reconciler.Snapshot{}, fmt.Errorf("failed to pause assignment: %w", err)
	}

	snap, err := a.timer.OnPause()
	if err != nil {
		return snap, err
	}

	a.publish(ctx, events.AssignmentPaused, id, events.AssignmentPausedPayload{
		AssignmentID: id,
		ElapsedTime:  result.ElapsedTime,
		PauseCount:   snap.PauseCount,
		PausedAt:     a.clock.Now(),
	})
	return snap, nil
}

// Resume resumes the active timer
func (a *App) Resume(ctx context.Context) (reconciler.Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.timer.ActiveID()
	if id == 0 {
		return reconciler.Snapshot{}, ErrNoActiveTimer
	}

	result, err := a.gateway.ResumeAssignment(ctx, id)
	if err != nil {
		return reconciler.Snapshot{}, fmt.Errorf("failed to resume assignment: %w", err)
	}

	snap, err := a.timer.OnResume(reconciler.ResumeConfirmation{NewEndTime: result.NewEndTime})
	if err != nil {
		return snap, err
	}

	a.publish(ctx, events.AssignmentResumed, id, events.AssignmentResumedPayload{
		AssignmentID: id,
		NewEndTime:   result.NewEndTime,
		ResumedAt:    a.clock.Now(),
	})
	return snap, nil
}

// Complete completes the active timer and returns the service's final values
func (a *App) Complete(ctx context.Context) (reconciler.Summary, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.timer.ActiveID()
	if id == 0 {
		return reconciler.Summary{}, ErrNoActiveTimer
	}
	return a.completeLocked(ctx, id, false)
}

// autoComplete runs on the tick goroutine once the duration cap is reached
func (a *App) autoComplete(snap reconciler.Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timer.ActiveID() != snap.AssignmentID {
		// Completed or replaced while waiting for the lock
		return
	}

	ctx := a.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := a.completeLocked(ctx, snap.AssignmentID, true); err != nil {
		log.Error().Err(err).Int("assignment_id", snap.AssignmentID).Msg("auto-completion failed")
		a.show(view.State{
			Mode:          view.ModeTimer,
			AssignmentID:  snap.AssignmentID,
			Title:         snap.Title,
			Elapsed:       snap.Elapsed,
			AutoCompleted: true,
			Notice:        "time is up but the service did not confirm completion",
		})
	}
}

func (a *App) completeLocked(ctx context.Context, id int, auto bool) (reconciler.Summary, error) {
	result, err := a.gateway.CompleteAssignment(ctx, id)
	if err != nil {
		return reconciler.Summary{}, fmt.Errorf("failed to complete assignment: %w", err)
	}

	confirm := reconciler.CompleteConfirmation{
		AssignmentID: id,
		EndTime:      result.EndTime,
		ElapsedTime:  result.ElapsedTime,
	}
	if snap, ok := a.timer.Snapshot(); ok {
		confirm.PauseCount = snap.PauseCount
	}
	// The completed record carries the authoritative pause count and start time
	if final, err := a.gateway.GetAssignment(ctx, id); err != nil {
		log.Warn().Err(err).Int("assignment_id", id).Msg("failed to fetch completed assignment, using local pause count")
	} else {
		confirm.PauseCount = final.PauseCount
		confirm.StartTime = models.StringValue(final.StartTimeFormatted)
	}

	summary := a.timer.OnComplete(confirm)

	eventType := events.AssignmentCompleted
	if auto {
		eventType = events.AssignmentAutoCompleted
	}
	a.publish(ctx, eventType, id, events.AssignmentCompletedPayload{
		AssignmentID:  id,
		StartTime:     summary.StartTime,
		EndTime:       summary.EndTime,
		ElapsedTime:   summary.ElapsedTime,
		PauseCount:    summary.PauseCount,
		AutoCompleted: auto,
		CompletedAt:   a.clock.Now(),
	})
	return summary, nil
}

// Discard deletes the active assignment on a best-effort basis, used when the
// user leaves a timer without completing it. Failures are only logged.
func (a *App) Discard(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.timer.ActiveID()
	if id == 0 {
		return
	}
	a.timer.Reset()

	if err := a.gateway.DeleteAssignment(ctx, id); err != nil {
		log.Warn().Err(err).Int("assignment_id", id).Msg("failed to discard assignment")
		return
	}
	a.forget(ctx, id)
	log.Info().Int("assignment_id", id).Msg("discarded assignment")
}

// Close stops any ticking without touching the service
func (a *App) Close() {
	a.timer.Reset()
}

// forget drops local traces of a deleted assignment
func (a *App) forget(ctx context.Context, id int) {
	if a.timer.ActiveID() == id {
		a.timer.Reset()
	}
	if a.cache != nil {
		if err := a.cache.Remove(id); err != nil {
			log.Warn().Err(err).Int("assignment_id", id).Msg("failed to update assignment cache")
		}
	}
	a.publish(ctx, events.AssignmentDeleted, id, events.AssignmentDeletedPayload{
		AssignmentID: id,
		DeletedAt:    a.clock.Now(),
	})
}

func (a *App) publish(ctx context.Context, eventType string, id int, payload any) {
	event, err := events.NewEvent(eventType, id, payload, a.clock.Now())
	if err == nil {
		err = a.publisher.Publish(ctx, event)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Str("event_type", eventType).Int("assignment_id", id).Msg("failed to publish event")
	}
}

func (a *App) show(s view.State) {
	s.UpdatedAt = a.clock.Now()
	a.sink.Update(s)
}
