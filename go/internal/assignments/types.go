package assignments

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mcdev12/queuetimer/go/clients/queuetimer_client"
)

const (
	MaxTitleLength     = 50
	MaxDurationMinutes = 24 * 60
)

var durationPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// ValidationError is returned when input is rejected before any request is made
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ValidateTitle trims the title and checks its length
func ValidateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", &ValidationError{Field: "title", Message: "title is required"}
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", &ValidationError{Field: "title", Message: fmt.Sprintf("title must be at most %d characters", MaxTitleLength)}
	}
	return title, nil
}

// ParseDuration accepts H:MM or HH:MM up to 24:00 and returns the total minutes
// along with the zero-padded HH:MM form sent to the service.
func ParseDuration(s string) (int, string, error) {
	m := durationPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, "", &ValidationError{Field: "duration", Message: "duration must be HH:MM"}
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])

	switch {
	case hours > 24:
		return 0, "", &ValidationError{Field: "duration", Message: "hours must be at most 24"}
	case minutes > 59:
		return 0, "", &ValidationError{Field: "duration", Message: "minutes must be at most 59"}
	case hours == 0 && minutes == 0:
		return 0, "", &ValidationError{Field: "duration", Message: "duration must be greater than zero"}
	}

	total := hours*60 + minutes
	if total > MaxDurationMinutes {
		return 0, "", &ValidationError{Field: "duration", Message: "duration must be at most 24:00"}
	}
	return total, fmt.Sprintf("%02d:%02d", hours, minutes), nil
}

// NewRequest validates user input and builds the create/update body
func NewRequest(title, duration string) (queuetimer_client.AssignmentRequest, error) {
	t, err := ValidateTitle(title)
	if err != nil {
		return queuetimer_client.AssignmentRequest{}, err
	}
	_, d, err := ParseDuration(duration)
	if err != nil {
		return queuetimer_client.AssignmentRequest{}, err
	}
	return queuetimer_client.AssignmentRequest{Title: t, Duration: d}, nil
}
