package heartbeat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/hookgw/internal/config"
	"github.com/mattjoyce/hookgw/internal/events"
	"github.com/mattjoyce/hookgw/internal/hooks"
	"github.com/mattjoyce/hookgw/internal/hooks/mocks"
)

type fakeDrainer struct {
	pending map[string][]events.SystemEvent
	err     error
}

func (f *fakeDrainer) Drain(ctx context.Context, sessionKey string) ([]events.SystemEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := f.pending[sessionKey]
	delete(f.pending, sessionKey)
	return out, nil
}

func newTurn(t *testing.T, drainer Drainer) (*MainTurn, *mocks.MockExecutor, *mocks.MockConfigLoader) {
	t.Helper()
	ctrl := gomock.NewController(t)
	sessions := mocks.NewMockSessionResolver(ctrl)
	sessions.EXPECT().PrimarySessionKey().Return("agent:main:main").AnyTimes()
	executor := mocks.NewMockExecutor(ctrl)
	configs := mocks.NewMockConfigLoader(ctrl)

	return &MainTurn{
		Sessions: sessions,
		Queue:    drainer,
		Configs:  configs,
		Executor: executor,
		Hub:      events.NewHub(16),
		Logger:   discardLogger(),
		now:      func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) },
	}, executor, configs
}

func TestMainTurn_NothingPendingSkipsExecution(t *testing.T) {
	turn, _, _ := newTurn(t, &fakeDrainer{})
	require.NoError(t, turn.Handle(context.Background(), "interval"))
}

func TestMainTurn_RunsMainLaneTurn(t *testing.T) {
	drainer := &fakeDrainer{pending: map[string][]events.SystemEvent{
		"agent:main:main": {
			{ID: "1", SessionKey: "agent:main:main", Text: "New email"},
			{ID: "2", SessionKey: "agent:main:main", Text: "Hook Gmail: 3 unread"},
		},
	}}
	turn, executor, configs := newTurn(t, drainer)

	cfg := config.Defaults()
	cfg.Session.DefaultAgent = "ops"
	configs.EXPECT().Current().Return(cfg, nil)

	var got hooks.ExecutionRequest
	executor.EXPECT().Run(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, req hooks.ExecutionRequest) (hooks.ExecutionResult, error) {
			got = req
			return hooks.ExecutionResult{Status: "ok", Delivered: true}, nil
		})

	require.NoError(t, turn.Handle(context.Background(), "hook:wake"))

	assert.Equal(t, "main", got.Lane)
	assert.Equal(t, "agent:main:main", got.SessionKey)
	assert.Equal(t, "System events:\n- New email\n- Hook Gmail: 3 unread", got.Message)
	assert.Equal(t, "main", got.Job.SessionTarget)
	assert.Equal(t, "ops", got.Job.AgentID)
	assert.NotEmpty(t, got.RunID)
	assert.Same(t, cfg, got.Config)

	snap := turn.Hub.SnapshotSince(0)
	require.Len(t, snap, 2)
	assert.Equal(t, events.TypeSystemEvent, snap[0].Type)
}

func TestMainTurn_Errors(t *testing.T) {
	t.Run("drain", func(t *testing.T) {
		turn, _, _ := newTurn(t, &fakeDrainer{err: errors.New("db locked")})
		err := turn.Handle(context.Background(), "interval")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "drain system events")
	})

	t.Run("executor", func(t *testing.T) {
		drainer := &fakeDrainer{pending: map[string][]events.SystemEvent{
			"agent:main:main": {{ID: "1", Text: "x"}},
		}}
		turn, executor, configs := newTurn(t, drainer)
		configs.EXPECT().Current().Return(config.Defaults(), nil)
		executor.EXPECT().Run(gomock.Any(), gomock.Any()).Return(hooks.ExecutionResult{}, errors.New("spawn failed"))

		err := turn.Handle(context.Background(), "interval")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "spawn failed")
	})
}
