// Package runner executes agent turns by spawning the configured agent command.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/mattjoyce/hookgw/internal/hooks"
	"github.com/mattjoyce/hookgw/internal/log"
	"github.com/mattjoyce/hookgw/internal/protocol"
	"github.com/mattjoyce/hookgw/internal/runlog"
)

const (
	// maxStderrBytes caps the amount of stderr captured from the agent.
	maxStderrBytes = 64 * 1024

	// DefaultTimeout applies when neither the job nor the config sets one.
	DefaultTimeout = 10 * time.Minute
)

// terminationGracePeriod is the time we wait after SIGTERM before sending SIGKILL.
var terminationGracePeriod = 5 * time.Second

// maxStdoutBytes caps the response read from the agent. Output past it is
// discarded and the turn fails as malformed.
var maxStdoutBytes = 4 * 1024 * 1024

// ErrNoCommand is returned when agent.command is not configured.
var ErrNoCommand = errors.New("agent.command is not configured")

// RunRecorder persists turn lifecycle. See runlog.Store.
type RunRecorder interface {
	Start(ctx context.Context, r runlog.Run) error
	Finish(ctx context.Context, runID string, status runlog.Status, summary, lastError string, delivered bool) error
}

// Runner implements hooks.Executor.
type Runner struct {
	runs   RunRecorder
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Runner. runs may be nil.
func New(runs RunRecorder) *Runner {
	return &Runner{
		runs:   runs,
		logger: log.WithComponent("runner"),
		now:    time.Now,
	}
}

// Run spawns the agent for one turn and waits for its response.
func (r *Runner) Run(ctx context.Context, req hooks.ExecutionRequest) (hooks.ExecutionResult, error) {
	logger := r.logger.With("run_id", req.RunID, "job_id", req.Job.ID, "lane", req.Lane)
	if req.Config == nil {
		return hooks.ExecutionResult{}, errors.New("no configuration")
	}
	agent := req.Config.Agent
	if strings.TrimSpace(agent.Command) == "" {
		return hooks.ExecutionResult{}, ErrNoCommand
	}

	timeout := turnTimeout(req)
	started := r.now().UTC()
	r.start(ctx, req, started, logger)

	preq := &protocol.Request{
		Protocol:   protocol.Version,
		RunID:      req.RunID,
		Lane:       req.Lane,
		SessionKey: req.SessionKey,
		Message:    req.Message,
		Job:        req.Job,
		DeadlineAt: started.Add(timeout),
	}

	logger.Info("executing agent turn", "session_key", req.SessionKey, "timeout", timeout.String())
	resp, stderr, err := r.spawn(ctx, agent.Command, agent.Args, agent.Workdir, preq, timeout, logger)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("agent timed out after %s", timeout)
		}
		if stderr != "" {
			logger.Debug("agent stderr", "stderr", stderr)
		}
		logger.Warn("agent turn failed", "error", err)
		r.finish(ctx, req.RunID, runlog.StatusFailed, "", err.Error(), false, logger)
		return hooks.ExecutionResult{}, err
	}

	for _, entry := range resp.Logs {
		logAgentEntry(logger, entry)
	}

	res := resp.Result()
	status := runlog.StatusSucceeded
	if res.Status != hooks.StatusOK {
		status = runlog.StatusFailed
	}
	r.finish(ctx, req.RunID, status, hooks.Summarize(res), res.Error, res.Delivered, logger)
	logger.Info("agent turn finished", "status", res.Status, "delivered", res.Delivered)
	return res, nil
}

func turnTimeout(req hooks.ExecutionRequest) time.Duration {
	if ts := req.Job.Payload.TimeoutSeconds; ts != nil && *ts > 0 {
		return time.Duration(*ts) * time.Second
	}
	if req.Config.Agent.Timeout > 0 {
		return req.Config.Agent.Timeout
	}
	return DefaultTimeout
}

func (r *Runner) start(ctx context.Context, req hooks.ExecutionRequest, started time.Time, logger *slog.Logger) {
	if r.runs == nil {
		return
	}
	err := r.runs.Start(ctx, runlog.Run{
		RunID:      req.RunID,
		JobID:      req.Job.ID,
		JobName:    req.Job.Name,
		AgentID:    req.Job.AgentID,
		SessionKey: req.SessionKey,
		Lane:       req.Lane,
		Status:     runlog.StatusRunning,
		StartedAt:  started,
	})
	if err != nil {
		logger.Warn("failed to record run start", "error", err)
	}
}

func (r *Runner) finish(ctx context.Context, runID string, status runlog.Status, summary, lastError string, delivered bool, logger *slog.Logger) {
	if r.runs == nil {
		return
	}
	if err := r.runs.Finish(ctx, runID, status, summary, lastError, delivered); err != nil {
		logger.Warn("failed to record run finish", "error", err)
	}
}

// spawn starts the agent, writes the request to stdin and reads the response
// from stdout. On timeout or cancellation the process gets SIGTERM, then
// SIGKILL after the grace period.
func (r *Runner) spawn(
	ctx context.Context,
	command string,
	args []string,
	workdir string,
	req *protocol.Request,
	timeout time.Duration,
	logger *slog.Logger,
) (*protocol.Response, string, error) {
	timeoutTimer := time.NewTimer(timeout)
	defer timeoutTimer.Stop()

	// Not CommandContext: termination is managed below.
	cmd := exec.Command(command, args...)
	cmd.Dir = workdir
	cmd.Env = append(os.Environ(),
		"HOOKGW_RUN_ID="+req.RunID,
		"HOOKGW_LANE="+req.Lane,
		"HOOKGW_SESSION_KEY="+req.SessionKey,
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, "", fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout := &cappedBuffer{limit: maxStdoutBytes}
	stderr := &cappedBuffer{limit: maxStderrBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	logger.Debug("spawning agent", "command", command, "timeout", timeout)

	if err := cmd.Start(); err != nil {
		return nil, "", fmt.Errorf("start agent: %w", err)
	}

	writeErr := make(chan error, 1)
	go func() {
		defer stdin.Close()
		if err := protocol.EncodeRequest(stdin, req); err != nil {
			writeErr <- fmt.Errorf("encode request: %w", err)
			return
		}
		writeErr <- nil
	}()

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
	}()

	var stopErr error
	select {
	case <-timeoutTimer.C:
		logger.Warn("agent turn timed out, sending SIGTERM")
		stopErr = context.DeadlineExceeded
	case <-ctx.Done():
		logger.Warn("agent turn cancelled, sending SIGTERM")
		stopErr = ctx.Err()
	case err := <-waitErr:
		stderrStr := truncateStderr(stderr.String())

		resp, rawBytes, decodeErr := protocol.DecodeResponse(bytes.NewReader(stdout.Bytes()))
		if stdout.Overflowed() {
			resp, decodeErr = nil, fmt.Errorf("%w: output exceeds %d bytes", protocol.ErrMalformed, maxStdoutBytes)
			rawBytes = rawBytes[:min(len(rawBytes), 512)]
		}
		if err != nil {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) {
				return nil, stderrStr, fmt.Errorf("wait for agent: %w", err)
			}
			logger.Warn("agent exited with non-zero status", "exit_code", exitErr.ExitCode())
			if decodeErr != nil {
				return nil, stderrStr, fmt.Errorf("agent exited with status %d: %s", exitErr.ExitCode(), lastLine(stderrStr))
			}
		}
		if decodeErr != nil {
			logger.Error("failed to decode agent response", "error", decodeErr, "stdout", string(rawBytes))
			return nil, stderrStr, fmt.Errorf("decode response: %w", decodeErr)
		}
		if werr := <-writeErr; werr != nil {
			logger.Debug("agent closed stdin early", "error", werr)
		}
		return resp, stderrStr, nil
	}

	if cmd.Process != nil {
		if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
			logger.Error("failed to send SIGTERM", "error", err)
		}
	}

	grace := time.NewTimer(terminationGracePeriod)
	defer grace.Stop()

	select {
	case <-waitErr:
		logger.Info("agent exited after SIGTERM")
	case <-grace.C:
		logger.Warn("agent did not exit after SIGTERM, sending SIGKILL")
		if cmd.Process != nil {
			if err := cmd.Process.Kill(); err != nil {
				logger.Error("failed to send SIGKILL", "error", err)
			}
		}
		<-waitErr
	}

	return nil, truncateStderr(stderr.String()), stopErr
}

func logAgentEntry(logger *slog.Logger, entry protocol.LogEntry) {
	switch entry.Level {
	case "debug":
		logger.Debug(entry.Message, "source", "agent")
	case "warn":
		logger.Warn(entry.Message, "source", "agent")
	case "error":
		logger.Error(entry.Message, "source", "agent")
	default:
		logger.Info(entry.Message, "source", "agent")
	}
}

// cappedBuffer keeps the first limit bytes written to it and drops the rest.
// Writes never fail, so the child is not killed by a broken pipe.
type cappedBuffer struct {
	buf      bytes.Buffer
	limit    int
	overflow bool
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	room := c.limit - c.buf.Len()
	if room < len(p) {
		c.overflow = true
		if room > 0 {
			c.buf.Write(p[:room])
		}
		return len(p), nil
	}
	return c.buf.Write(p)
}

func (c *cappedBuffer) Bytes() []byte    { return c.buf.Bytes() }
func (c *cappedBuffer) String() string   { return c.buf.String() }
func (c *cappedBuffer) Overflowed() bool { return c.overflow }

// truncateStderr truncates stderr to maxStderrBytes.
func truncateStderr(s string) string {
	if len(s) > maxStderrBytes {
		return s[:maxStderrBytes]
	}
	return s
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	if s == "" {
		return "no stderr output"
	}
	return s
}
