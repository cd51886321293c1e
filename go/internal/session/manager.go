package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/queuetimer/go/clients/queuetimer_client"
	"github.com/mcdev12/queuetimer/go/internal/models"
	"github.com/rs/zerolog/log"
)

// SessionKey is where the session id lives in the local store
const SessionKey = "queuetimer.user_id"

// ErrInvalidSessionID is returned when the service hands back something that is not a UUID
var ErrInvalidSessionID = errors.New("invalid session id")

// UsersAPI defines what the manager needs from the remote service
type UsersAPI interface {
	CreateUser(ctx context.Context, timezone string) (*models.Session, error)
	TestSession(ctx context.Context, sessionID string) error
}

// Manager obtains, validates and persists the session identifier
type Manager struct {
	store    Store
	users    UsersAPI
	timezone string

	mu      sync.Mutex
	current string
}

// NewManager creates a session manager that registers new sessions in timezone
func NewManager(store Store, users UsersAPI, timezone string) *Manager {
	if timezone == "" {
		timezone = "UTC"
	}
	return &Manager{
		store:    store,
		users:    users,
		timezone: timezone,
	}
}

// Ensure returns a session id the service accepts, creating one when the stored
// id is missing, malformed or rejected. Any other failure while validating keeps
// the stored id and returns the error.
func (m *Manager) Ensure(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != "" {
		return m.current, nil
	}

	stored, ok, err := m.store.Get(SessionKey)
	if err != nil {
		return "", fmt.Errorf("failed to read stored session: %w", err)
	}

	if ok {
		if _, err := uuid.Parse(stored); err != nil {
			log.Warn().Str("session_id", stored).Msg("stored session id is not a UUID, replacing it")
		} else if err := m.users.TestSession(ctx, stored); err == nil {
			m.current = stored
			log.Debug().Str("session_id", stored).Msg("reusing stored session")
			return stored, nil
		} else if !queuetimer_client.IsSessionError(err) {
			return "", fmt.Errorf("failed to validate stored session: %w", err)
		} else {
			log.Info().Err(err).Msg("stored session rejected, creating a new one")
		}
	}

	return m.createLocked(ctx)
}

// Renew replaces the current session with a freshly issued one
func (m *Manager) Renew(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(ctx)
}

// Current returns the session id in use without contacting the service
func (m *Manager) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Forget drops the session locally
func (m *Manager) Forget() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = ""
	if err := m.store.Delete(SessionKey); err != nil {
		return fmt.Errorf("failed to delete stored session: %w", err)
	}
	return nil
}

func (m *Manager) createLocked(ctx context.Context) (string, error) {
	s, err := m.users.CreateUser(ctx, m.timezone)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	if _, err := uuid.Parse(s.UserID); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidSessionID, s.UserID)
	}
	if err := m.store.Set(SessionKey, s.UserID); err != nil {
		return "", fmt.Errorf("failed to persist session: %w", err)
	}
	m.current = s.UserID

	log.Info().Str("session_id", s.UserID).Str("timezone", m.timezone).Msg("created new session")
	return s.UserID, nil
}
