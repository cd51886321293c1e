package queuetimer_client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mcdev12/queuetimer/go/clients"
	"github.com/mcdev12/queuetimer/go/internal/models"
)

// fakeSessions hands out ids from a fixed sequence.
type fakeSessions struct {
	mu       sync.Mutex
	current  string
	next     []string
	renewals int
	renewErr error
}

func (f *fakeSessions) Ensure(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, nil
}

func (f *fakeSessions) Renew(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renewals++
	if f.renewErr != nil {
		return "", f.renewErr
	}
	f.current, f.next = f.next[0], f.next[1:]
	return f.current, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestAssignmentEndpoints(t *testing.T) {
	start := "10:00:00"
	var seen []string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/assignments/", func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path+" "+r.Header.Get(UserIDHeader))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/assignments/":
			var req AssignmentRequest
			json.NewDecoder(r.Body).Decode(&req)
			writeJSON(w, http.StatusOK, models.Assignment{ID: 7, Title: req.Title, MaxDurationMinutes: 90})
		case r.Method == http.MethodGet && r.URL.Path == "/api/assignments/7/":
			writeJSON(w, http.StatusOK, models.Assignment{ID: 7, Title: "Essay", MaxDurationMinutes: 90, StartTimeFormatted: &start, IsStarted: true})
		case r.Method == http.MethodPatch && r.URL.Path == "/api/assignments/7/":
			writeJSON(w, http.StatusOK, models.Assignment{ID: 7, Title: "Renamed", MaxDurationMinutes: 30})
		case r.Method == http.MethodDelete && r.URL.Path == "/api/assignments/7/":
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/api/assignments/start/7/":
			writeJSON(w, http.StatusOK, models.StartResult{StartTime: "10:00:00", EstimatedEndTime: "11:30:00"})
		case r.URL.Path == "/api/assignments/pause/7/":
			writeJSON(w, http.StatusOK, models.PauseResult{ElapsedTime: "00:10:00"})
		case r.URL.Path == "/api/assignments/resume/7/":
			writeJSON(w, http.StatusOK, models.ResumeResult{NewEndTime: "11:35:00"})
		case r.URL.Path == "/api/assignments/complete/7/":
			writeJSON(w, http.StatusOK, models.CompleteResult{ElapsedTime: "00:45:00", EndTime: "10:50:00"})
		default:
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Assignment not found"})
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewQueueTimerClient(srv.URL + "/api")
	c.SetSessionProvider(&fakeSessions{current: "sess-1"})
	ctx := context.Background()

	created, err := c.CreateAssignment(ctx, AssignmentRequest{Title: "Essay", Duration: "01:30"})
	if err != nil {
		t.Fatalf("CreateAssignment: %v", err)
	}
	if created.ID != 7 || created.Title != "Essay" {
		t.Errorf("created = %+v", created)
	}

	got, err := c.GetAssignment(ctx, 7)
	if err != nil {
		t.Fatalf("GetAssignment: %v", err)
	}
	want := &models.Assignment{ID: 7, Title: "Essay", MaxDurationMinutes: 90, StartTimeFormatted: &start, IsStarted: true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GetAssignment mismatch (-want +got):\n%s", diff)
	}

	if _, err := c.UpdateAssignment(ctx, 7, AssignmentRequest{Title: "Renamed", Duration: "00:30"}); err != nil {
		t.Fatalf("UpdateAssignment: %v", err)
	}
	startRes, err := c.StartAssignment(ctx, 7)
	if err != nil || startRes.EstimatedEndTime != "11:30:00" {
		t.Fatalf("StartAssignment = %+v, %v", startRes, err)
	}
	if res, err := c.PauseAssignment(ctx, 7); err != nil || res.ElapsedTime != "00:10:00" {
		t.Fatalf("PauseAssignment = %+v, %v", res, err)
	}
	if res, err := c.ResumeAssignment(ctx, 7); err != nil || res.NewEndTime != "11:35:00" {
		t.Fatalf("ResumeAssignment = %+v, %v", res, err)
	}
	if res, err := c.CompleteAssignment(ctx, 7); err != nil || res.EndTime != "10:50:00" {
		t.Fatalf("CompleteAssignment = %+v, %v", res, err)
	}
	if err := c.DeleteAssignment(ctx, 7); err != nil {
		t.Fatalf("DeleteAssignment: %v", err)
	}

	_, err = c.GetAssignment(ctx, 99)
	var apiErr *clients.APIError
	if !errors.As(err, &apiErr) || apiErr.Message() != "Assignment not found" {
		t.Fatalf("expected not found APIError, got %v", err)
	}

	for _, line := range seen {
		if line[len(line)-6:] != "sess-1" {
			t.Errorf("request without session header: %q", line)
		}
	}
}

func TestSessionRenewedOnceOnRejection(t *testing.T) {
	var headers []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(UserIDHeader)
		headers = append(headers, id)
		if id != "fresh" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Session expired"})
			return
		}
		writeJSON(w, http.StatusOK, models.Assignment{ID: 1, Title: "ok"})
	}))
	defer srv.Close()

	sessions := &fakeSessions{current: "stale", next: []string{"fresh"}}
	c := NewQueueTimerClient(srv.URL)
	c.SetSessionProvider(sessions)

	got, err := c.GetAssignment(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetAssignment: %v", err)
	}
	if got.Title != "ok" {
		t.Errorf("title = %q", got.Title)
	}
	if sessions.renewals != 1 {
		t.Errorf("renewals = %d, want 1", sessions.renewals)
	}
	if diff := cmp.Diff([]string{"stale", "fresh"}, headers); diff != "" {
		t.Errorf("headers (-want +got):\n%s", diff)
	}
}

func TestSessionRejectedAfterRenewal(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": map[string]string{"error": "Missing X-User-ID Header"}})
	}))
	defer srv.Close()

	sessions := &fakeSessions{current: "a", next: []string{"b", "c"}}
	c := NewQueueTimerClient(srv.URL)
	c.SetSessionProvider(sessions)

	_, err := c.StartAssignment(context.Background(), 3)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want exactly one retry", calls)
	}
	if sessions.renewals != 1 {
		t.Errorf("renewals = %d, want 1", sessions.renewals)
	}
}

func TestNonSessionErrorsAreNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Assignment already started"})
	}))
	defer srv.Close()

	sessions := &fakeSessions{current: "a"}
	c := NewQueueTimerClient(srv.URL)
	c.SetSessionProvider(sessions)

	_, err := c.StartAssignment(context.Background(), 3)
	if err == nil || errors.Is(err, ErrSessionExpired) {
		t.Fatalf("unexpected error %v", err)
	}
	if calls != 1 || sessions.renewals != 0 {
		t.Errorf("calls=%d renewals=%d, want 1 and 0", calls, sessions.renewals)
	}
}

func TestUsersEndpoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case UsersEndpoint:
			if r.Header.Get(UserIDHeader) != "" {
				t.Errorf("user creation must not carry a session header")
			}
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["timezone"] != "Europe/Paris" {
				t.Errorf("timezone = %q", body["timezone"])
			}
			writeJSON(w, http.StatusOK, models.Session{UserID: "4b0f2f5e-1111-4a2b-9c3d-0123456789ab"})
		case TestEndpoint:
			if r.Header.Get(UserIDHeader) != "good" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "unknown user"})
				return
			}
			writeJSON(w, http.StatusOK, models.ConnectionStatus{Status: "connected"})
		}
	}))
	defer srv.Close()

	c := NewQueueTimerClient(srv.URL)
	ctx := context.Background()

	session, err := c.CreateUser(ctx, "Europe/Paris")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if session.UserID == "" {
		t.Errorf("empty user id")
	}
	if err := c.TestSession(ctx, "good"); err != nil {
		t.Errorf("TestSession(good): %v", err)
	}
	if err := c.TestSession(ctx, "bad"); !IsSessionError(err) {
		t.Errorf("TestSession(bad) = %v, want session error", err)
	}
}

func TestRootURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{DefaultBaseURL, "http://127.0.0.1:8000"},
		{"http://timer.local/api/", "http://timer.local"},
		{"http://timer.local", "http://timer.local"},
	}
	for _, tt := range tests {
		if got := NewQueueTimerClient(tt.base).RootURL(); got != tt.want {
			t.Errorf("RootURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}
