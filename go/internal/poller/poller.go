package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/queuetimer/go/clients"
	"github.com/mcdev12/queuetimer/go/internal/models"
	"github.com/mcdev12/queuetimer/go/internal/reconciler"
	"github.com/mcdev12/queuetimer/go/internal/retry"
	"github.com/mcdev12/queuetimer/go/internal/view"
	"github.com/rs/zerolog/log"
)

// DefaultInterval is how often the active assignment is re-fetched
const DefaultInterval = 2 * time.Second

// ErrGone is returned when the polled assignment no longer exists
var ErrGone = errors.New("assignment no longer exists")

// Fetcher is what the poller needs from the gateway
type Fetcher interface {
	GetAssignment(ctx context.Context, id int) (*models.Assignment, error)
	CompleteAssignment(ctx context.Context, id int) (*models.CompleteResult, error)
}

type Config struct {
	Fetcher  Fetcher
	Clock    clockwork.Clock
	Interval time.Duration
	Policy   retry.Policy
	Sink     view.Sink
}

// Poller follows one started assignment by asking the service for it on a
// fixed cadence instead of keeping a local timer.
type Poller struct {
	fetcher  Fetcher
	clock    clockwork.Clock
	interval time.Duration
	policy   retry.Policy
	sink     view.Sink

	mu      sync.Mutex
	visible bool
	last    *models.Assignment
	lost    bool

	wake chan struct{}
}

func New(cfg Config) *Poller {
	p := &Poller{
		fetcher:  cfg.Fetcher,
		clock:    cfg.Clock,
		interval: cfg.Interval,
		policy:   cfg.Policy,
		sink:     cfg.Sink,
		visible:  true,
		wake:     make(chan struct{}, 1),
	}
	if p.clock == nil {
		p.clock = clockwork.NewRealClock()
	}
	if p.interval <= 0 {
		p.interval = DefaultInterval
	}
	if p.policy.Clock == nil {
		p.policy.Clock = p.clock
	}
	if p.sink == nil {
		p.sink = view.SinkFunc(func(view.State) {})
	}
	return p
}

// SetVisible pauses or resumes outward polling. Becoming visible polls at once.
func (p *Poller) SetVisible(visible bool) {
	p.mu.Lock()
	changed := p.visible != visible
	p.visible = visible
	p.mu.Unlock()

	if !changed {
		return
	}
	log.Debug().Bool("visible", visible).Msg("poller visibility changed")
	if visible {
		select {
		case p.wake <- struct{}{}:
		default:
		}
	}
}

func (p *Poller) Visible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible
}

// Last returns the most recent value the service reported
func (p *Poller) Last() (models.Assignment, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return models.Assignment{}, false
	}
	return *p.last, true
}

// ConnectionLost reports whether the last poll gave up after retrying
func (p *Poller) ConnectionLost() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lost
}

// Run polls assignment id until it is complete or ctx ends. An assignment whose
// reported elapsed time reaches its cap is completed once and polling stops.
// It returns the last value received.
func (p *Poller) Run(ctx context.Context, id int) (*models.Assignment, error) {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	log.Info().Int("assignment_id", id).Dur("interval", p.interval).Msg("polling assignment")

	if p.Visible() {
		if done, err := p.poll(ctx, id); done || err != nil {
			return p.result(err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return p.result(ctx.Err())
		case <-ticker.Chan():
			if !p.Visible() {
				continue
			}
		case <-p.wake:
			if !p.Visible() {
				continue
			}
		}

		if done, err := p.poll(ctx, id); done || err != nil {
			return p.result(err)
		}
	}
}

func (p *Poller) result(err error) (*models.Assignment, error) {
	last, ok := p.Last()
	if !ok {
		return nil, err
	}
	return &last, err
}

// poll fetches once through the retry policy. It reports done once the
// assignment is complete.
func (p *Poller) poll(ctx context.Context, id int) (bool, error) {
	var fetched *models.Assignment
	err := p.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		a, err := p.fetcher.GetAssignment(ctx, id)
		if err != nil {
			if code := clients.StatusCode(err); code >= 400 && code < 500 {
				return retry.Permanent(err)
			}
			log.Debug().Err(err).Int("attempt", attempt).Int("assignment_id", id).Msg("poll failed")
			return err
		}
		fetched = a
		return nil
	})

	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if clients.StatusCode(err) == 404 {
			return true, fmt.Errorf("%w: %d", ErrGone, id)
		}
		if code := clients.StatusCode(err); code >= 400 && code < 500 {
			return true, fmt.Errorf("failed to poll assignment %d: %w", id, err)
		}
		p.connectionLost(id, err)
		return false, nil
	}

	p.mu.Lock()
	wasLost := p.lost
	p.last = fetched
	p.lost = false
	p.mu.Unlock()

	if wasLost {
		log.Info().Int("assignment_id", id).Msg("connection restored")
	}
	if capReached(*fetched) {
		return true, p.autoComplete(ctx, *fetched)
	}
	p.show(view.FromAssignment(*fetched))
	return fetched.IsComplete, nil
}

// capReached reports whether a running assignment has used up its duration
func capReached(a models.Assignment) bool {
	if !a.Running() || a.MaxDuration() <= 0 {
		return false
	}
	elapsed, err := reconciler.ParseElapsed(models.StringValue(a.ElapsedTimeFormatted))
	if err != nil {
		return false
	}
	return time.Duration(elapsed)*time.Second >= a.MaxDuration()
}

func (p *Poller) autoComplete(ctx context.Context, a models.Assignment) error {
	log.Info().
		Int("assignment_id", a.ID).
		Str("elapsed", models.StringValue(a.ElapsedTimeFormatted)).
		Msg("duration cap reached, auto-completing")

	result, err := p.fetcher.CompleteAssignment(ctx, a.ID)
	if err != nil {
		st := view.FromAssignment(a)
		st.Notice = "time is up, but completing failed"
		p.show(st)
		return fmt.Errorf("failed to auto-complete assignment %d: %w", a.ID, err)
	}

	a.IsComplete = true
	if result.ElapsedTime != "" {
		a.ElapsedTimeFormatted = &result.ElapsedTime
	}
	if result.EndTime != "" {
		a.EndTimeFormatted = &result.EndTime
	}
	p.mu.Lock()
	p.last = &a
	p.mu.Unlock()

	st := view.FromAssignment(a)
	st.AutoCompleted = true
	st.Notice = "completed automatically at the duration limit"
	p.show(st)
	return nil
}

// connectionLost keeps the last known value on screen and flags it as stale
func (p *Poller) connectionLost(id int, err error) {
	p.mu.Lock()
	p.lost = true
	last := p.last
	p.mu.Unlock()

	log.Warn().Err(err).Int("assignment_id", id).Msg("connection lost, keeping last known value")

	st := view.State{Mode: view.ModeTimer, AssignmentID: id}
	if last != nil {
		st = view.FromAssignment(*last)
	}
	st.ConnectionLost = true
	p.show(st)
}

func (p *Poller) show(s view.State) {
	s.UpdatedAt = p.clock.Now()
	p.sink.Update(s)
}
