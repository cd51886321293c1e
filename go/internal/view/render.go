package view

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	clockStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	labelStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	paneStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238")).Padding(0, 1)
)

// Render draws a state as terminal text
func Render(s State) string {
	var body string
	switch s.Mode {
	case ModeTimer:
		body = renderTimer(s)
	case ModeSummary:
		body = renderSummary(s)
	case ModeList:
		body = renderList(s)
	default:
		body = renderForm(s)
	}

	var footer []string
	if s.ConnectionLost {
		footer = append(footer, errorStyle.Render("connection lost, showing last known value"))
	}
	if s.Notice != "" {
		footer = append(footer, warnStyle.Render(s.Notice))
	}
	if len(footer) > 0 {
		body = lipgloss.JoinVertical(lipgloss.Left, body, strings.Join(footer, "\n"))
	}
	return paneStyle.Render(body)
}

func renderTimer(s State) string {
	status := successStyle.Render("running")
	if s.Paused {
		status = warnStyle.Render("paused")
	}

	lines := []string{
		titleStyle.Render(s.Title),
		clockStyle.Render(s.Elapsed) + " " + status,
	}
	if s.MaxDuration != "" {
		lines = append(lines, field("limit", s.MaxDuration)+"  "+field("remaining", s.Remaining))
	}
	if s.StartTime != "" {
		lines = append(lines, field("started", s.StartTime)+"  "+field("ends", s.EndTime))
	}
	lines = append(lines, field("pauses", fmt.Sprint(s.PauseCount)))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderSummary(s State) string {
	lines := []string{
		titleStyle.Render(s.Title) + " " + successStyle.Render("complete"),
		field("started", s.StartTime),
		field("ended", s.EndTime),
		field("elapsed", s.Elapsed),
		field("pauses", fmt.Sprint(s.PauseCount)),
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderList(s State) string {
	if len(s.Items) == 0 {
		return mutedStyle.Render("no assignments yet")
	}
	lines := make([]string, 0, len(s.Items)+1)
	lines = append(lines, labelStyle.Render(fmt.Sprintf("%-6s %-50s %-6s %s", "ID", "TITLE", "LIMIT", "STATUS")))
	for _, item := range s.Items {
		lines = append(lines, fmt.Sprintf("%-6d %-50s %-6s %s", item.ID, item.Title, item.MaxDuration, item.Status))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderForm(s State) string {
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("new assignment"),
		mutedStyle.Render("title: up to 50 characters"),
		mutedStyle.Render("duration: HH:MM, at most 24:00"),
	)
}

func field(label, value string) string {
	if value == "" {
		value = "--:--:--"
	}
	return labelStyle.Render(label+":") + " " + value
}

// Terminal writes a fresh rendering for every state
type Terminal struct {
	mu sync.Mutex
	w  io.Writer
}

func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

func (t *Terminal) Update(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.w, Render(s))
}
