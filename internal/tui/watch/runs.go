package watch

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/hookgw/internal/events"
)

const maxTrackedRuns = 50

// Run statuses shown in the runs table.
const (
	runRunning = "running"
	runOK      = "ok"
	runNotOK   = "not_ok"
	runError   = "error"
)

// RunState tracks one agent or ping run seen on the event stream.
type RunState struct {
	RunID     string
	Kind      string
	Name      string
	Status    string
	Summary   string
	Callback  string
	StartedAt time.Time
	EndedAt   time.Time
}

type runEventData struct {
	Kind    string `json:"kind"`
	RunID   string `json:"run_id"`
	Name    string `json:"name"`
	Outcome string `json:"outcome"`
	Summary string `json:"summary"`
	Result  string `json:"result"`
}

// applyRunEvent updates runs from a hook event. It reports whether runs changed.
func applyRunEvent(runs map[string]*RunState, e events.Event) bool {
	switch e.Type {
	case events.TypeHookDispatched, events.TypeHookCompleted, events.TypeHookCallback:
	default:
		return false
	}

	var data runEventData
	if err := json.Unmarshal(e.Data, &data); err != nil || data.RunID == "" {
		return false
	}

	run, ok := runs[data.RunID]
	if !ok {
		run = &RunState{RunID: data.RunID, Status: runRunning, StartedAt: e.At}
		runs[data.RunID] = run
	}

	switch e.Type {
	case events.TypeHookDispatched:
		run.Kind = data.Kind
		run.Name = data.Name
		run.StartedAt = e.At
	case events.TypeHookCompleted:
		if run.Kind == "" {
			run.Kind = data.Kind
		}
		run.Status = data.Outcome
		run.Summary = data.Summary
		run.EndedAt = e.At
	case events.TypeHookCallback:
		run.Callback = data.Result
	}

	pruneRuns(runs)
	return true
}

// pruneRuns drops the oldest finished runs once more than maxTrackedRuns are held.
func pruneRuns(runs map[string]*RunState) {
	if len(runs) <= maxTrackedRuns {
		return
	}
	ordered := sortedRuns(runs)
	for i := len(ordered) - 1; i >= 0 && len(runs) > maxTrackedRuns; i-- {
		if ordered[i].Status != runRunning {
			delete(runs, ordered[i].RunID)
		}
	}
}

// sortedRuns returns runs newest first.
func sortedRuns(runs map[string]*RunState) []*RunState {
	out := make([]*RunState, 0, len(runs))
	for _, r := range runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].RunID < out[j].RunID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

func countRunning(runs map[string]*RunState) int {
	n := 0
	for _, r := range runs {
		if r.Status == runRunning {
			n++
		}
	}
	return n
}

func newRunsTable() table.Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ST", Width: 2},
			{Title: "Kind", Width: 6},
			{Title: "Name", Width: 16},
			{Title: "Run", Width: 8},
			{Title: "Duration", Width: 10},
			{Title: "Callback", Width: 10},
			{Title: "Summary", Width: 40},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)
	return t
}

func runRows(runs map[string]*RunState, theme Theme, now time.Time) []table.Row {
	ordered := sortedRuns(runs)
	rows := make([]table.Row, 0, len(ordered))
	for _, r := range ordered {
		rows = append(rows, table.Row{
			statusSymbol(r.Status, theme),
			r.Kind,
			r.Name,
			shortID(r.RunID),
			runDuration(r, now),
			dash(r.Callback),
			truncate(r.Summary, 40),
		})
	}
	return rows
}

func statusSymbol(status string, theme Theme) string {
	switch status {
	case runRunning:
		return theme.StatusRunning.Render("◉")
	case runOK:
		return theme.StatusOK.Render("●")
	case runNotOK:
		return theme.StatusBlocked.Render("◑")
	case runError:
		return theme.StatusFailed.Render("∅")
	default:
		return "○"
	}
}

func runDuration(r *RunState, now time.Time) string {
	if r.StartedAt.IsZero() {
		return "-"
	}
	end := r.EndedAt
	if end.IsZero() {
		end = now
	}
	return end.Sub(r.StartedAt).Round(time.Millisecond).String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
