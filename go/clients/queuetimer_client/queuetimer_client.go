package queuetimer_client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mcdev12/queuetimer/go/clients"
	"github.com/rs/zerolog/log"
)

// ErrSessionExpired is returned when the service rejects the session even after renewal
var ErrSessionExpired = errors.New("session expired")

// SessionProvider supplies the session identifier attached to every call
type SessionProvider interface {
	Ensure(ctx context.Context) (string, error)
	Renew(ctx context.Context) (string, error)
}

type QueueTimerClient struct {
	*clients.BaseClient
	sessions SessionProvider
}

func NewQueueTimerClient(baseURL string) *QueueTimerClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &QueueTimerClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}
}

// SetSessionProvider enables automatic session attachment and renewal.
func (c *QueueTimerClient) SetSessionProvider(p SessionProvider) {
	c.sessions = p
}

// SetSessionID pins a fixed session id for clients without a provider.
func (c *QueueTimerClient) SetSessionID(id string) {
	c.SetHeader(UserIDHeader, id)
}

// IsSessionError reports whether err means the service did not accept the session id.
func IsSessionError(err error) bool {
	var apiErr *clients.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return true
	case http.StatusBadRequest:
		return strings.Contains(apiErr.Detail, UserIDHeader)
	}
	return false
}

// do performs an authenticated call. A rejected session is renewed once and the
// call is retried with the new id.
func (c *QueueTimerClient) do(ctx context.Context, method, endpoint string, body, out any) error {
	if c.sessions == nil {
		return c.DoJSON(ctx, method, endpoint, body, out, nil)
	}

	id, err := c.sessions.Ensure(ctx)
	if err != nil {
		return fmt.Errorf("failed to ensure session: %w", err)
	}

	err = c.DoJSON(ctx, method, endpoint, body, out, map[string]string{UserIDHeader: id})
	if !IsSessionError(err) {
		return err
	}

	log.Warn().
		Err(err).
		Str("method", method).
		Str("endpoint", endpoint).
		Msg("session rejected, renewing and retrying once")

	id, renewErr := c.sessions.Renew(ctx)
	if renewErr != nil {
		return fmt.Errorf("%w: renewal failed: %v", ErrSessionExpired, renewErr)
	}

	err = c.DoJSON(ctx, method, endpoint, body, out, map[string]string{UserIDHeader: id})
	if IsSessionError(err) {
		return fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	return err
}
