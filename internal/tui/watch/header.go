package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// HealthState tracks gateway health from /healthz polling.
type HealthState struct {
	Status            string
	UptimeSeconds     int64
	InFlight          int64
	ConfigFingerprint string
	Connected         bool
	LastCheck         time.Time
}

func renderHeader(health HealthState, pulse Pulse, lastHeartbeat time.Time, running int, theme Theme, width int, now time.Time) string {
	innerWidth := width - 4

	statusText := theme.StatusOK.Render("HEALTHY")
	if !health.Connected {
		statusText = theme.StatusFailed.Render("CONNECTING")
	} else if health.Status != "ok" && health.Status != "" {
		statusText = theme.StatusFailed.Render("DEGRADED")
	}

	clock := theme.Dim.Render(now.Format("15:04:05"))
	titleText := " HOOKGW WATCH"
	pad := innerWidth - lipgloss.Width(titleText) - lipgloss.Width(clock) - 4
	if pad < 1 {
		pad = 1
	}
	titleLine := titleText + strings.Repeat(" ", pad) + clock + " "

	fingerprint := "-"
	if health.ConfigFingerprint != "" {
		fingerprint = shortID(health.ConfigFingerprint)
	}
	statsLine := fmt.Sprintf(" %s  up %s  in flight: %d  watching: %d  config: %s",
		statusText,
		formatDuration(time.Duration(health.UptimeSeconds)*time.Second),
		health.InFlight,
		running,
		fingerprint,
	)

	activityLine := fmt.Sprintf(" Last event: %s %s  Last heartbeat: %s",
		since(pulse.Last(), now),
		pulse.Render(theme),
		since(lastHeartbeat, now),
	)

	content := lipgloss.JoinVertical(lipgloss.Left, titleLine, statsLine, activityLine)
	return theme.Border.Width(innerWidth).Render(content)
}

func since(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return fmt.Sprintf("%s ago", now.Sub(t).Round(time.Second))
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
