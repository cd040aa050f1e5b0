package watch

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/hookgw/internal/events"
)

// Model is the BubbleTea model for the watch TUI.
type Model struct {
	apiURL string
	token  string

	width  int
	height int

	health        HealthState
	runs          map[string]*RunState
	eventLog      []events.Event
	lastEventID   int64
	lastHeartbeat time.Time
	pulse         Pulse

	theme     Theme
	runsTable table.Model

	hubEvents chan events.Event

	lastError string
	now       func() time.Time
}

// New creates a watch model reading from the ops API at apiURL.
func New(apiURL, token string) *Model {
	return &Model{
		apiURL:    apiURL,
		token:     token,
		runs:      make(map[string]*RunState),
		hubEvents: make(chan events.Event, 100),
		theme:     NewDefaultTheme(),
		runsTable: newRunsTable(),
		now:       time.Now,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		subscribeToEvents(m.apiURL, m.token, 0, m.hubEvents),
		receiveNextEvent(m.hubEvents),
		func() tea.Msg { return fetchHealth(m.apiURL) },
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.runsTable.SetWidth(m.width - 6)

	case tickMsg:
		m.pulse.Decay(m.now())
		m.runsTable.SetRows(runRows(m.runs, m.theme, m.now()))
		return m, tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })

	case eventMsg:
		m.applyEvent(events.Event(msg))
		return m, receiveNextEvent(m.hubEvents)

	case healthMsg:
		m.health.Status = msg.Status
		m.health.UptimeSeconds = msg.UptimeSeconds
		m.health.InFlight = msg.InFlight
		m.health.ConfigFingerprint = msg.ConfigFingerprint
		m.health.Connected = true
		m.health.LastCheck = m.now()
		m.lastError = ""
		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return fetchHealth(m.apiURL)
		})

	case sseDisconnectedMsg:
		m.health.Connected = false
		m.lastError = "event stream disconnected, reconnecting..."
		if msg.Err != nil {
			m.lastError = fmt.Sprintf("event stream: %v, reconnecting...", msg.Err)
		}
		if msg.SkipID > m.lastEventID {
			m.lastEventID = msg.SkipID
		}
		// The pending receiveNextEvent keeps waiting on hubEvents and
		// picks up events from the new subscription.
		return m, tea.Tick(3*time.Second, func(t time.Time) tea.Msg {
			return reconnectMsg{}
		})

	case reconnectMsg:
		return m, subscribeToEvents(m.apiURL, m.token, m.lastEventID, m.hubEvents)

	case errMsg:
		m.lastError = msg.Error()
		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return fetchHealth(m.apiURL)
		})
	}

	m.runsTable, cmd = m.runsTable.Update(msg)
	return m, cmd
}

func (m *Model) applyEvent(e events.Event) {
	if e.ID > m.lastEventID {
		m.lastEventID = e.ID
	}

	m.eventLog = append([]events.Event{e}, m.eventLog...)
	if len(m.eventLog) > maxEventLog {
		m.eventLog = m.eventLog[:maxEventLog]
	}

	m.pulse.Hit(e.At)
	if e.Type == events.TypeHeartbeat {
		m.lastHeartbeat = e.At
	}
	if applyRunEvent(m.runs, e) {
		m.runsTable.SetRows(runRows(m.runs, m.theme, m.now()))
	}

	m.health.Connected = true
	m.lastError = ""
}

func (m Model) View() string {
	if m.width == 0 {
		return "Connecting to gateway..."
	}

	now := m.now()
	header := renderHeader(m.health, m.pulse, m.lastHeartbeat, countRunning(m.runs), m.theme, m.width, now)
	runs := m.theme.Border.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left, m.theme.Title.Render("HOOK RUNS"), m.runsTable.View()),
	)
	eventStream := renderEventStream(m.eventLog, m.theme, m.width)

	parts := []string{header, runs, eventStream}
	if m.lastError != "" {
		parts = append(parts, m.theme.StatusFailed.Render(fmt.Sprintf(" ⚠ %s", m.lastError)))
	}
	parts = append(parts, m.theme.Dim.Render(" [q] Quit • [↑/↓] Scroll runs"))

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}
