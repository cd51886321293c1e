package reconciler

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatElapsed renders seconds as zero-padded HH:MM:SS. Negative input renders as zero.
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
}

// ParseElapsed reads an HH:MM:SS value as reported by the service back into seconds.
func ParseElapsed(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid elapsed time %q", s)
	}
	var fields [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || (i > 0 && n > 59) {
			return 0, fmt.Errorf("invalid elapsed time %q", s)
		}
		fields[i] = n
	}
	return fields[0]*3600 + fields[1]*60 + fields[2], nil
}
