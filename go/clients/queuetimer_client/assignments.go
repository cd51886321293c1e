package queuetimer_client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mcdev12/queuetimer/go/internal/models"
)

// AssignmentRequest is the body for create and update. Duration is HH:MM.
type AssignmentRequest struct {
	Title    string `json:"title"`
	Duration string `json:"duration"`
}

func (c *QueueTimerClient) CreateAssignment(ctx context.Context, req AssignmentRequest) (*models.Assignment, error) {
	var assignment models.Assignment
	if err := c.do(ctx, http.MethodPost, AssignmentsEndpoint, req, &assignment); err != nil {
		return nil, fmt.Errorf("failed to create assignment: %w", err)
	}
	return &assignment, nil
}

func (c *QueueTimerClient) GetAssignment(ctx context.Context, id int) (*models.Assignment, error) {
	var assignment models.Assignment
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf(AssignmentEndpoint, id), nil, &assignment); err != nil {
		return nil, fmt.Errorf("failed to get assignment %d: %w", id, err)
	}
	return &assignment, nil
}

func (c *QueueTimerClient) UpdateAssignment(ctx context.Context, id int, req AssignmentRequest) (*models.Assignment, error) {
	var assignment models.Assignment
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf(AssignmentEndpoint, id), req, &assignment); err != nil {
		return nil, fmt.Errorf("failed to update assignment %d: %w", id, err)
	}
	return &assignment, nil
}

func (c *QueueTimerClient) DeleteAssignment(ctx context.Context, id int) error {
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf(AssignmentEndpoint, id), nil, nil); err != nil {
		return fmt.Errorf("failed to delete assignment %d: %w", id, err)
	}
	return nil
}

func (c *QueueTimerClient) StartAssignment(ctx context.Context, id int) (*models.StartResult, error) {
	var result models.StartResult
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf(StartAssignmentEndpoint, id), nil, &result); err != nil {
		return nil, fmt.Errorf("failed to start assignment %d: %w", id, err)
	}
	return &result, nil
}

func (c *QueueTimerClient) PauseAssignment(ctx context.Context, id int) (*models.PauseResult, error) {
	var result models.PauseResult
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf(PauseAssignmentEndpoint, id), nil, &result); err != nil {
		return nil, fmt.Errorf("failed to pause assignment %d: %w", id, err)
	}
	return &result, nil
}

func (c *QueueTimerClient) ResumeAssignment(ctx context.Context, id int) (*models.ResumeResult, error) {
	var result models.ResumeResult
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf(ResumeAssignmentEndpoint, id), nil, &result); err != nil {
		return nil, fmt.Errorf("failed to resume assignment %d: %w", id, err)
	}
	return &result, nil
}

func (c *QueueTimerClient) CompleteAssignment(ctx context.Context, id int) (*models.CompleteResult, error) {
	var result models.CompleteResult
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf(CompleteEndpoint, id), nil, &result); err != nil {
		return nil, fmt.Errorf("failed to complete assignment %d: %w", id, err)
	}
	return &result, nil
}
