package assignments

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/queuetimer/go/clients"
	"github.com/mcdev12/queuetimer/go/clients/queuetimer_client"
	"github.com/mcdev12/queuetimer/go/internal/events"
	"github.com/mcdev12/queuetimer/go/internal/models"
	"github.com/mcdev12/queuetimer/go/internal/reconciler"
	"github.com/mcdev12/queuetimer/go/internal/session"
	"github.com/mcdev12/queuetimer/go/internal/view"
)

var t0 = time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

// fakeGateway keeps assignments in memory and can be told to fail.
type fakeGateway struct {
	mu          sync.Mutex
	nextID      int
	assignments map[int]*models.Assignment
	calls       []string
	fail        map[string]error
	completed   chan int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		nextID:      1,
		assignments: map[int]*models.Assignment{},
		fail:        map[string]error{},
		completed:   make(chan int, 4),
	}
}

func (g *fakeGateway) record(call string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call)
	return g.fail[call]
}

func (g *fakeGateway) CreateAssignment(ctx context.Context, req queuetimer_client.AssignmentRequest) (*models.Assignment, error) {
	if err := g.record("create"); err != nil {
		return nil, err
	}
	minutes, _, _ := ParseDuration(req.Duration)
	g.mu.Lock()
	defer g.mu.Unlock()
	a := &models.Assignment{ID: g.nextID, Title: req.Title, MaxDurationMinutes: minutes}
	g.assignments[a.ID] = a
	g.nextID++
	cp := *a
	return &cp, nil
}

func (g *fakeGateway) GetAssignment(ctx context.Context, id int) (*models.Assignment, error) {
	if err := g.record("get"); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	a, ok := g.assignments[id]
	if !ok {
		return nil, &clients.APIError{StatusCode: http.StatusNotFound, Detail: "Assignment not found"}
	}
	cp := *a
	return &cp, nil
}

func (g *fakeGateway) UpdateAssignment(ctx context.Context, id int, req queuetimer_client.AssignmentRequest) (*models.Assignment, error) {
	if err := g.record("update"); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	a := g.assignments[id]
	a.Title = req.Title
	cp := *a
	return &cp, nil
}

func (g *fakeGateway) DeleteAssignment(ctx context.Context, id int) error {
	if err := g.record("delete"); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.assignments, id)
	return nil
}

func (g *fakeGateway) StartAssignment(ctx context.Context, id int) (*models.StartResult, error) {
	if err := g.record("start"); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.assignments[id].IsStarted = true
	g.assignments[id].StartTimeFormatted = strPtr("09:00:00")
	return &models.StartResult{StartTime: "09:00:00", EstimatedEndTime: "10:00:00"}, nil
}

func (g *fakeGateway) PauseAssignment(ctx context.Context, id int) (*models.PauseResult, error) {
	if err := g.record("pause"); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.assignments[id].IsPaused = true
	g.assignments[id].PauseCount++
	return &models.PauseResult{ElapsedTime: "00:00:10"}, nil
}

func (g *fakeGateway) ResumeAssignment(ctx context.Context, id int) (*models.ResumeResult, error) {
	if err := g.record("resume"); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.assignments[id].IsPaused = false
	return &models.ResumeResult{NewEndTime: "10:00:30"}, nil
}

func (g *fakeGateway) CompleteAssignment(ctx context.Context, id int) (*models.CompleteResult, error) {
	if err := g.record("complete"); err != nil {
		return nil, err
	}
	g.mu.Lock()
	g.assignments[id].IsComplete = true
	g.mu.Unlock()
	g.completed <- id
	return &models.CompleteResult{ElapsedTime: "00:00:50", EndTime: "09:01:20"}, nil
}

type recordingPublisher struct {
	mu    sync.Mutex
	types []string
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, event.EventType)
	return nil
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.types...)
}

type fixture struct {
	app       *App
	gateway   *fakeGateway
	clock     *clockwork.FakeClock
	publisher *recordingPublisher
	latest    *view.Latest
	cache     *Cache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		gateway:   newFakeGateway(),
		clock:     clockwork.NewFakeClockAt(t0),
		publisher: &recordingPublisher{},
		latest:    &view.Latest{},
		cache:     NewCache(session.NewFileStore(filepath.Join(t.TempDir(), "store.json"))),
	}
	f.app = NewApp(Config{
		Gateway:      f.gateway,
		Cache:        f.cache,
		Publisher:    f.publisher,
		Sink:         f.latest,
		Clock:        f.clock,
		TickInterval: time.Second,
	})
	t.Cleanup(f.app.Close)
	return f
}

func TestCreateValidatesBeforeCalling(t *testing.T) {
	f := newFixture(t)

	_, err := f.app.Create(context.Background(), "Essay", "25:00")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(f.gateway.calls) != 0 {
		t.Errorf("gateway called for invalid input: %v", f.gateway.calls)
	}

	a, err := f.app.Create(context.Background(), "  Essay ", "1:30")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.Title != "Essay" || a.MaxDurationMinutes != 90 {
		t.Errorf("created %+v", a)
	}
	ids, _ := f.cache.IDs()
	if diff := cmp.Diff([]int{a.ID}, ids); diff != "" {
		t.Errorf("cached ids (-want +got):\n%s", diff)
	}
}

func TestTimerLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, _ := f.app.Create(ctx, "Essay", "01:00")
	snap, err := f.app.Start(ctx, a.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if snap.State != reconciler.StateRunning || snap.Title != "Essay" || snap.MaxDurationMinutes != 60 {
		t.Errorf("start snapshot %+v", snap)
	}

	f.clock.Advance(10 * time.Second)
	if _, err := f.app.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if got := f.latest.Get(); !got.Paused || got.Elapsed != "00:00:10" {
		t.Errorf("view after pause = %+v", got)
	}

	f.clock.Advance(30 * time.Second)
	snap, err = f.app.Resume(ctx)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if snap.EstimatedEndTime != "10:00:30" {
		t.Errorf("end time after resume = %q", snap.EstimatedEndTime)
	}

	f.clock.Advance(10 * time.Second)
	if got := f.app.Timer().Tick(); got.Elapsed != "00:00:20" {
		t.Errorf("elapsed after resume = %q, want 00:00:20", got.Elapsed)
	}

	summary, err := f.app.Complete(ctx)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	want := reconciler.Summary{
		AssignmentID: a.ID,
		Title:        "Essay",
		StartTime:    "09:00:00",
		EndTime:      "09:01:20",
		ElapsedTime:  "00:00:50",
		PauseCount:   1,
	}
	if diff := cmp.Diff(want, summary); diff != "" {
		t.Errorf("summary (-want +got):\n%s", diff)
	}
	if f.app.Timer().Ticking() {
		t.Errorf("still ticking after completion")
	}
	if got := f.latest.Get(); got.Mode != view.ModeSummary {
		t.Errorf("view mode = %s, want summary", got.Mode)
	}

	wantEvents := []string{events.AssignmentStarted, events.AssignmentPaused, events.AssignmentResumed, events.AssignmentCompleted}
	if diff := cmp.Diff(wantEvents, f.publisher.Types()); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
}

func TestGatewayErrorLeavesTimerUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, _ := f.app.Create(ctx, "Essay", "01:00")
	if _, err := f.app.Start(ctx, a.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	f.gateway.fail["pause"] = &clients.APIError{StatusCode: http.StatusBadRequest, Detail: "Assignment already paused"}
	if _, err := f.app.Pause(ctx); err == nil {
		t.Fatalf("expected pause error")
	}
	snap, ok := f.app.Timer().Snapshot()
	if !ok || snap.State != reconciler.StateRunning || snap.PauseCount != 0 {
		t.Errorf("snapshot changed after failed pause: %+v", snap)
	}

	f.gateway.fail["complete"] = errors.New("connection refused")
	if _, err := f.app.Complete(ctx); err == nil {
		t.Fatalf("expected complete error")
	}
	if f.app.Timer().ActiveID() != a.ID {
		t.Errorf("timer discarded after failed completion")
	}
}

func TestStartRefusesWhileTimerActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, _ := f.app.Create(ctx, "Essay", "01:00")
	second, _ := f.app.Create(ctx, "Reading", "00:30")
	if _, err := f.app.Start(ctx, first.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	calls := len(f.gateway.calls)
	if _, err := f.app.Start(ctx, second.ID); !errors.Is(err, ErrTimerActive) {
		t.Fatalf("second Start = %v, want ErrTimerActive", err)
	}
	if got := len(f.gateway.calls); got != calls {
		t.Errorf("gateway called while a timer was active: %v", f.gateway.calls[calls:])
	}
	if f.app.Timer().ActiveID() != first.ID {
		t.Errorf("active timer replaced")
	}

	if _, err := f.app.Complete(ctx); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	<-f.gateway.completed
	if _, err := f.app.Start(ctx, second.ID); err != nil {
		t.Errorf("Start after completing = %v", err)
	}
}

func TestTransitionsWithoutTimer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.app.Pause(ctx); !errors.Is(err, ErrNoActiveTimer) {
		t.Errorf("Pause = %v", err)
	}
	if _, err := f.app.Resume(ctx); !errors.Is(err, ErrNoActiveTimer) {
		t.Errorf("Resume = %v", err)
	}
	if _, err := f.app.Complete(ctx); !errors.Is(err, ErrNoActiveTimer) {
		t.Errorf("Complete = %v", err)
	}
	if len(f.gateway.calls) != 0 {
		t.Errorf("gateway called without a timer: %v", f.gateway.calls)
	}
}

func TestAutoCompleteAtCap(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, _ := f.app.Create(ctx, "Quiz", "00:01")
	if _, err := f.app.Start(ctx, a.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	f.clock.Advance(time.Minute)

	select {
	case id := <-f.gateway.completed:
		if id != a.ID {
			t.Errorf("completed %d, want %d", id, a.ID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("auto-completion did not reach the service")
	}

	deadline := time.Now().Add(5 * time.Second)
	for f.app.Timer().ActiveID() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("timer not torn down after auto-completion")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// A manual completion afterwards finds nothing to complete
	if _, err := f.app.Complete(ctx); !errors.Is(err, ErrNoActiveTimer) {
		t.Errorf("Complete after auto-completion = %v", err)
	}
	types := f.publisher.Types()
	if types[len(types)-1] != events.AssignmentAutoCompleted {
		t.Errorf("last event = %s, want auto_completed", types[len(types)-1])
	}
	if got := f.latest.Get(); got.Mode != view.ModeSummary || !got.AutoCompleted {
		t.Errorf("view = %+v, want auto-completed summary", got)
	}
}

func TestDeleteTearsDownActiveTimer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, _ := f.app.Create(ctx, "Essay", "01:00")
	f.app.Start(ctx, a.ID)

	if err := f.app.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if f.app.Timer().ActiveID() != 0 || f.app.Timer().Ticking() {
		t.Errorf("timer still active after delete")
	}
	ids, _ := f.cache.IDs()
	if len(ids) != 0 {
		t.Errorf("cache = %v after delete", ids)
	}
}

func TestDiscardIsBestEffort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, _ := f.app.Create(ctx, "Essay", "01:00")
	f.app.Start(ctx, a.ID)
	f.gateway.fail["delete"] = errors.New("offline")

	f.app.Discard(ctx)

	if f.app.Timer().ActiveID() != 0 {
		t.Errorf("timer still active after discard")
	}
	ids, _ := f.cache.IDs()
	if diff := cmp.Diff([]int{a.ID}, ids); diff != "" {
		t.Errorf("cache should keep undeleted id (-want +got):\n%s", diff)
	}
}

func TestListDropsUnknownIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, _ := f.app.Create(ctx, "One", "00:30")
	b, _ := f.app.Create(ctx, "Two", "00:45")
	f.cache.Add(99)

	list, err := f.app.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var titles []string
	for _, item := range list {
		titles = append(titles, item.Title)
	}
	if diff := cmp.Diff([]string{"One", "Two"}, titles); diff != "" {
		t.Errorf("titles (-want +got):\n%s", diff)
	}
	ids, _ := f.cache.IDs()
	if diff := cmp.Diff([]int{a.ID, b.ID}, ids); diff != "" {
		t.Errorf("cache (-want +got):\n%s", diff)
	}
	if got := f.latest.Get(); got.Mode != view.ModeList || len(got.Items) != 2 {
		t.Errorf("view = %+v", got)
	}
}
