package clients

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrTransport is returned when a request never produced an HTTP response
var ErrTransport = errors.New("transport failure")

// APIError is a non-2xx response from the remote service
type APIError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Detail     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("API returned status code: %d, detail: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("API returned status code: %d, response: %s", e.StatusCode, e.Body)
}

// Message is the text worth showing to a user.
func (e *APIError) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

func newAPIError(method, endpoint string, status int, body []byte) *APIError {
	return &APIError{
		Method:     method,
		Endpoint:   endpoint,
		StatusCode: status,
		Detail:     extractDetail(body),
		Body:       string(body),
	}
}

// extractDetail pulls a readable message out of a `detail` field. The service sends
// a plain string, an object carrying `error`, or a list of validation entries with `msg`.
func extractDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if len(envelope.Detail) == 0 {
		return envelope.Error
	}

	var text string
	if err := json.Unmarshal(envelope.Detail, &text); err == nil {
		return text
	}

	var obj map[string]any
	if err := json.Unmarshal(envelope.Detail, &obj); err == nil {
		if msg, ok := obj["error"].(string); ok {
			return msg
		}
		if msg, ok := obj["message"].(string); ok {
			return msg
		}
		return string(envelope.Detail)
	}

	var list []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &list); err == nil {
		msgs := make([]string, 0, len(list))
		for _, item := range list {
			if item.Msg != "" {
				msgs = append(msgs, item.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}

	return string(envelope.Detail)
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not an *APIError.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
