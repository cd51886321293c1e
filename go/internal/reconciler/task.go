package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) clockwork.Ticker
}

// Task is a cancellable repeating callback. Start and Stop are safe to call from any
// goroutine, including from inside the callback itself.
type Task struct {
	clock    Clock
	interval time.Duration
	fn       func(now time.Time)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTask creates a stopped task that will call fn every interval once started
func NewTask(clock Clock, interval time.Duration, fn func(now time.Time)) *Task {
	done := make(chan struct{})
	close(done)
	return &Task{
		clock:    clock,
		interval: interval,
		fn:       fn,
		done:     done,
	}
}

// Start begins ticking until Stop is called or ctx ends. It reports false if the
// task was already running.
func (t *Task) Start(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		return false
	}

	runCtx, cancel := context.WithCancel(ctx)
	// Create the ticker before returning so a fake clock sees it immediately
	ticker := t.clock.NewTicker(t.interval)
	done := make(chan struct{})

	t.cancel = cancel
	t.done = done

	go t.run(runCtx, ticker, done)
	return true
}

func (t *Task) run(ctx context.Context, ticker clockwork.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.Chan():
			if ctx.Err() != nil {
				return
			}
			t.fn(now)
		}
	}
}

// Stop cancels the task. It does not wait for an in-flight callback; use Done for that.
func (t *Task) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel == nil {
		return
	}
	t.cancel()
	t.cancel = nil
}

// Running reports whether Start has been called without a matching Stop
func (t *Task) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

// Done is closed once the ticking goroutine has exited
func (t *Task) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}
