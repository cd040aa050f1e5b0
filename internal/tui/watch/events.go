package watch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/hookgw/internal/events"
)

const (
	maxEventLog   = 50
	visibleEvents = 10
	detailWidth   = 60
)

// detailKeys are the payload fields shown after the run ID, in order.
var detailKeys = []string{"name", "outcome", "result", "reason", "mode"}

func renderEventStream(eventLog []events.Event, theme Theme, width int) string {
	body := theme.Dim.Render("  Waiting for events...")
	if len(eventLog) > 0 {
		n := min(len(eventLog), visibleEvents)
		lines := make([]string, 0, n)
		for _, e := range eventLog[:n] {
			lines = append(lines, formatEvent(e, theme))
		}
		body = lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
	}
	panel := lipgloss.JoinVertical(lipgloss.Left, theme.Title.Render("EVENT STREAM"), body)
	return theme.Border.Width(width - 4).Render(panel)
}

func eventStyle(eventType string, theme Theme) lipgloss.Style {
	switch eventType {
	case events.TypeHookCompleted:
		return theme.StatusOK
	case events.TypeHookDispatched:
		return theme.StatusRunning
	case events.TypeHookCallback:
		return theme.StatusBlocked
	case events.TypeHeartbeat:
		return theme.Highlight
	}
	return theme.Dim
}

func formatEvent(e events.Event, theme Theme) string {
	return theme.Dim.Render(e.At.Format("15:04:05")) + " " +
		eventStyle(e.Type, theme).Render(fmt.Sprintf("%-16s", e.Type)) + " " +
		describeEvent(e)
}

// describeEvent picks the few fields of an event worth a glance.
func describeEvent(e events.Event) string {
	var data map[string]any
	if err := json.Unmarshal(e.Data, &data); err != nil || len(data) == 0 {
		return truncate(string(e.Data), detailWidth)
	}
	str := func(key string) string {
		v, _ := data[key].(string)
		return v
	}

	var parts []string
	if kind := str("kind"); kind != "" {
		parts = append(parts, kind)
	}
	if runID := str("run_id"); runID != "" {
		parts = append(parts, "["+shortID(runID)+"]")
	}
	for _, key := range detailKeys {
		if v := str(key); v != "" {
			parts = append(parts, v)
		}
	}
	if text := str("text"); text != "" {
		parts = append(parts, truncate(text, detailWidth))
	}
	if len(parts) == 0 {
		return truncate(string(e.Data), detailWidth)
	}
	return strings.Join(parts, " ")
}
