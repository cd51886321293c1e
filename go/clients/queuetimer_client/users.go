package queuetimer_client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mcdev12/queuetimer/go/internal/models"
)

type createUserRequest struct {
	Timezone string `json:"timezone"`
}

// CreateUser issues a new session. It is the only call made without a session header.
func (c *QueueTimerClient) CreateUser(ctx context.Context, timezone string) (*models.Session, error) {
	var session models.Session
	if err := c.DoJSON(ctx, http.MethodPost, UsersEndpoint, createUserRequest{Timezone: timezone}, &session, nil); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	if session.UserID == "" {
		return nil, fmt.Errorf("failed to create user: response carried no user_id")
	}
	return &session, nil
}

// TestSession checks that the service accepts the given session id.
func (c *QueueTimerClient) TestSession(ctx context.Context, sessionID string) error {
	var status models.ConnectionStatus
	url := c.RootURL() + TestEndpoint
	if err := c.DoJSON(ctx, http.MethodGet, url, nil, &status, map[string]string{UserIDHeader: sessionID}); err != nil {
		return fmt.Errorf("failed to test session: %w", err)
	}
	return nil
}

// RootURL is the service root: the configured base with the API prefix removed.
func (c *QueueTimerClient) RootURL() string {
	return strings.TrimSuffix(c.BaseURL(), APIPrefix)
}
