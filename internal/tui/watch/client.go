package watch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/hookgw/internal/api"
	"github.com/mattjoyce/hookgw/internal/events"
)

// --- Message types ---

type eventMsg events.Event

type healthMsg api.HealthzResponse

type tickMsg time.Time

type errMsg error

// sseDisconnectedMsg ends a subscription. SkipID is set when the stream broke
// on an unreadable frame so the reconnect resumes past it.
type sseDisconnectedMsg struct {
	Err    error
	SkipID int64
}
type reconnectMsg struct{}

// --- Commands ---

// subscribeToEvents streams /events into ch until the connection drops.
// Reconnects resume after lastID so the hub replays what was missed.
func subscribeToEvents(apiURL, token string, lastID int64, ch chan<- events.Event) tea.Cmd {
	return func() tea.Msg {
		req, err := http.NewRequest(http.MethodGet, apiURL+"/events", nil)
		if err != nil {
			return errMsg(err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		if lastID > 0 {
			req.Header.Set("Last-Event-ID", strconv.FormatInt(lastID, 10))
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return sseDisconnectedMsg{}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return errMsg(fmt.Errorf("events stream returned %d", resp.StatusCode))
		}

		skipID, err := readStream(resp.Body, ch)
		return sseDisconnectedMsg{Err: err, SkipID: skipID}
	}
}

const (
	initialLineBuffer = 64 * 1024
	maxFrameLine      = 4 * 1024 * 1024
)

// readStream parses SSE frames from r and forwards complete events to ch until
// r ends. On a read error it returns the error and the ID of the frame that was
// being read, if known.
func readStream(r io.Reader, ch chan<- events.Event) (int64, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initialLineBuffer), maxFrameLine)

	var cur events.Event
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(cur.Data) > 0 {
				cur.At = time.Now()
				ch <- cur
			}
			cur = events.Event{}
		case strings.HasPrefix(line, "id: "):
			if id, err := strconv.ParseInt(line[4:], 10, 64); err == nil {
				cur.ID = id
			}
		case strings.HasPrefix(line, "event: "):
			cur.Type = line[7:]
		case strings.HasPrefix(line, "data: "):
			cur.Data = []byte(line[6:])
		}
	}
	if err := scanner.Err(); err != nil {
		return cur.ID, fmt.Errorf("read event stream: %w", err)
	}
	return 0, nil
}

func receiveNextEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-ch)
	}
}

func fetchHealth(apiURL string) tea.Msg {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(apiURL + "/healthz")
	if err != nil {
		return errMsg(err)
	}
	defer resp.Body.Close()

	var h api.HealthzResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return errMsg(err)
	}
	return healthMsg(h)
}
