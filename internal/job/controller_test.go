package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/jobdeck/internal/common"
	"github.com/Veraticus/jobdeck/internal/model"
)

// manualConfig returns a config whose poller never fires during a test, so
// poll results are delivered by hand.
func manualConfig(kind model.JobKind) Config {
	cfg := DefaultConfig(kind)
	cfg.Interval = time.Hour
	return cfg
}

func newTestController(t *testing.T, cfg Config, opts ...Option) (*Controller, *fakeEndpoint, *recordingSink) {
	t.Helper()
	ep := newFakeEndpoint()
	sink := &recordingSink{}
	c, err := NewController(cfg, ep, sink, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, ep, sink
}

func running(total, completed int, msgs ...model.LogEntry) model.ProgressSnapshot {
	return model.ProgressSnapshot{Status: model.StatusRunning, Total: total, Completed: completed, Messages: msgs}
}

func info(text string) model.LogEntry {
	return model.LogEntry{Text: text, Level: model.LevelInfo}
}

func TestNewController_Validation(t *testing.T) {
	sink := &recordingSink{}

	_, err := NewController(Config{Kind: model.KindGeneration}, newFakeEndpoint(), sink)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)

	_, err = NewController(DefaultConfig(model.KindGeneration), nil, sink)
	assert.ErrorIs(t, err, common.ErrMissingConfig)

	_, err = NewController(DefaultConfig(model.KindGeneration), newFakeEndpoint(), nil)
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestController_SubmitRefusedWhileRunning(t *testing.T) {
	for _, kind := range model.AllKinds {
		t.Run(string(kind), func(t *testing.T) {
			c, ep, _ := newTestController(t, manualConfig(kind))
			ctx := context.Background()

			require.NoError(t, c.Submit(ctx, nil))
			assert.Equal(t, StateRunning, c.State())
			assert.False(t, c.CanSubmit())

			err := c.Submit(ctx, nil)
			require.Error(t, err)
			assert.True(t, IsRunning(err))

			require.NoError(t, c.RequestCancel(ctx))
			assert.Equal(t, StateCancelPending, c.State())
			assert.ErrorIs(t, c.Submit(ctx, nil), common.ErrJobRunning)

			submits, _, _ := ep.calls()
			assert.Equal(t, 1, submits, "refused submits must not reach the backend")
		})
	}
}

func TestController_RejectionIsOneErrorEntry(t *testing.T) {
	c, ep, sink := newTestController(t, manualConfig(model.KindGeneration))
	ep.acceptance = model.Acceptance{Reasons: []string{"Invalid email format", "Password too short"}}

	err := c.Submit(context.Background(), nil)

	var rejected *common.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, []string{"Invalid email format", "Password too short"}, rejected.Reasons)
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, []string{"Invalid email format; Password too short"}, sink.texts(model.LevelError))
	assert.Empty(t, c.RunID())
}

func TestController_SubmitTransportFailure(t *testing.T) {
	c, ep, sink := newTestController(t, manualConfig(model.KindCreditRefresh))
	ep.submitErr = errors.New("connection refused")

	err := c.Submit(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, StateIdle, c.State())
	assert.True(t, c.CanSubmit())
	assert.Len(t, sink.texts(model.LevelError), 1)
}

func TestController_GenerationRunToCompletion(t *testing.T) {
	events := &eventRecorder{}
	refreshes := 0
	c, _, sink := newTestController(t, manualConfig(model.KindGeneration),
		WithObserver(events), WithRefresher(func() { refreshes++ }))

	require.NoError(t, c.Submit(context.Background(), model.GenerationRequest{Count: 5}))
	runID := c.RunID()
	poller := c.run.poller

	c.OnPollResult(runID, running(5, 2))
	assert.Equal(t, "2/5", c.Progress().Label())
	assert.Equal(t, 40, c.Progress().Percent())
	assert.Equal(t, StateRunning, c.State())

	c.OnPollResult(runID, model.ProgressSnapshot{
		Status: model.StatusComplete, Total: 5, Completed: 5, SuccessCount: 5, FailCount: 0,
	})

	assert.True(t, poller.Stopped())
	assert.True(t, c.CanSubmit())
	assert.Equal(t, StateIdle, c.State())
	assert.True(t, sink.contains("Successful: 5, Failed: 0"))
	assert.Equal(t, []string{"✅ Generation complete!"}, sink.texts(model.LevelSuccess))
	assert.Equal(t, 1, refreshes, "reset triggers exactly one table refresh")

	summary, ok := c.LastSummary()
	require.True(t, ok)
	assert.Equal(t, model.StatusComplete, summary.Status)
	assert.Equal(t, 5, summary.Successful)
	assert.Equal(t, runID, summary.ID)

	assert.Equal(t, []State{StateSubmitting, StateRunning, StateComplete, StateIdle}, events.transitions())
}

func TestController_CancelThenStopped(t *testing.T) {
	c, ep, sink := newTestController(t, manualConfig(model.KindCreditRefresh))
	ctx := context.Background()

	require.NoError(t, c.Submit(ctx, nil))
	runID := c.RunID()

	require.NoError(t, c.RequestCancel(ctx))
	require.NoError(t, c.RequestCancel(ctx))
	_, _, cancels := ep.calls()
	assert.Equal(t, 1, cancels, "cancel is sent once")

	c.OnPollResult(runID, running(10, 3))
	c.OnPollResult(runID, running(10, 4))
	assert.Equal(t, StateCancelPending, c.State())

	c.OnPollResult(runID, model.ProgressSnapshot{Status: model.StatusStopped, Total: 10, Completed: 4, SuccessCount: 4})

	assert.Equal(t, StateIdle, c.State())
	assert.Empty(t, sink.texts(model.LevelError))
	assert.Contains(t, sink.texts(model.LevelWarning), "⚠ Credit update stopped by user.")
	assert.Contains(t, sink.texts(model.LevelWarning), "Stop request sent. Waiting for current account to finish...")

	summary, ok := c.LastSummary()
	require.True(t, ok)
	assert.Equal(t, model.StatusStopped, summary.Status)
}

func TestController_CancelFailureRevertsToRunning(t *testing.T) {
	c, ep, sink := newTestController(t, manualConfig(model.KindGeneration))
	ctx := context.Background()
	require.NoError(t, c.Submit(ctx, nil))

	ep.cancelErr = errors.New("timeout")
	require.Error(t, c.RequestCancel(ctx))
	assert.Equal(t, StateRunning, c.State())
	assert.Len(t, sink.texts(model.LevelError), 1)

	ep.cancelErr = nil
	require.NoError(t, c.RequestCancel(ctx))
	assert.Equal(t, StateCancelPending, c.State())
}

func TestController_CancelWhenIdle(t *testing.T) {
	c, ep, _ := newTestController(t, manualConfig(model.KindGeneration))
	assert.ErrorIs(t, c.RequestCancel(context.Background()), common.ErrNotRunning)
	_, _, cancels := ep.calls()
	assert.Zero(t, cancels)
}

func TestController_CompletionAfterCancelIsNormal(t *testing.T) {
	c, _, sink := newTestController(t, manualConfig(model.KindGeneration))
	ctx := context.Background()
	require.NoError(t, c.Submit(ctx, nil))
	runID := c.RunID()
	require.NoError(t, c.RequestCancel(ctx))

	c.OnPollResult(runID, model.ProgressSnapshot{Status: model.StatusComplete, Total: 2, Completed: 2, SuccessCount: 2})

	summary, ok := c.LastSummary()
	require.True(t, ok)
	assert.Equal(t, model.StatusComplete, summary.Status)
	assert.Empty(t, sink.texts(model.LevelError))
}

func TestController_TransientPollFailure(t *testing.T) {
	c, _, sink := newTestController(t, manualConfig(model.KindGeneration))
	require.NoError(t, c.Submit(context.Background(), nil))
	runID := c.RunID()

	c.OnPollFailure(runID, errors.New("network down"))
	c.OnPollResult(runID, running(5, 1))

	assert.Equal(t, StateRunning, c.State())
	assert.Equal(t, []string{"Status check failed: network down"}, sink.texts(model.LevelWarning))
	assert.Empty(t, sink.texts(model.LevelError))
}

func TestController_MaxPollFailures(t *testing.T) {
	cfg := manualConfig(model.KindGeneration)
	cfg.MaxPollFailures = 3
	c, _, sink := newTestController(t, cfg)
	require.NoError(t, c.Submit(context.Background(), nil))
	runID := c.RunID()

	c.OnPollFailure(runID, errors.New("down"))
	c.OnPollFailure(runID, errors.New("down"))
	c.OnPollResult(runID, running(5, 1))
	c.OnPollFailure(runID, errors.New("down"))
	c.OnPollFailure(runID, errors.New("down"))
	assert.Equal(t, StateRunning, c.State(), "a success resets the failure count")

	c.OnPollFailure(runID, errors.New("down"))
	assert.Equal(t, StateIdle, c.State())

	summary, ok := c.LastSummary()
	require.True(t, ok)
	assert.Equal(t, model.StatusError, summary.Status)
	assert.Len(t, sink.texts(model.LevelError), 1)
}

func TestController_MessageForwarding(t *testing.T) {
	t.Run("cumulative", func(t *testing.T) {
		cfg := manualConfig(model.KindGeneration)
		cfg.StartText = ""
		cfg.Messages = MessagesCumulative
		c, _, sink := newTestController(t, cfg)
		require.NoError(t, c.Submit(context.Background(), nil))
		runID := c.RunID()

		a, b, d := info("a"), info("b"), info("c")
		c.OnPollResult(runID, running(3, 0, a))
		c.OnPollResult(runID, running(3, 1, a, b))
		c.OnPollResult(runID, running(3, 1, a, b))
		c.OnPollResult(runID, running(3, 2, a, b, d))

		assert.Equal(t, []string{"a", "b", "c"}, sink.texts(model.LevelInfo))
	})

	t.Run("cumulative list restarted", func(t *testing.T) {
		cfg := manualConfig(model.KindGeneration)
		cfg.StartText = ""
		cfg.Messages = MessagesCumulative
		c, _, sink := newTestController(t, cfg)
		require.NoError(t, c.Submit(context.Background(), nil))
		runID := c.RunID()

		c.OnPollResult(runID, running(4, 1, info("a"), info("b"), info("c")))
		c.OnPollResult(runID, running(4, 2, info("d")))
		c.OnPollResult(runID, running(4, 3, info("d"), info("e")))

		assert.Equal(t, []string{"a", "b", "c", "d", "e"}, sink.texts(model.LevelInfo))
	})

	t.Run("drained", func(t *testing.T) {
		cfg := manualConfig(model.KindGeneration)
		cfg.StartText = ""
		cfg.Messages = MessagesDrained
		c, _, sink := newTestController(t, cfg)
		require.NoError(t, c.Submit(context.Background(), nil))
		runID := c.RunID()

		c.OnPollResult(runID, running(3, 0, info("a")))
		c.OnPollResult(runID, running(3, 1))
		c.OnPollResult(runID, running(3, 1, info("b")))

		assert.Equal(t, []string{"a", "b"}, sink.texts(model.LevelInfo))
	})

	for _, kind := range []model.JobKind{model.KindGeneration, model.KindCreditRefresh} {
		t.Run("default "+string(kind)+" reads a clearing backend", func(t *testing.T) {
			cfg := manualConfig(kind)
			cfg.StartText = ""
			c, _, sink := newTestController(t, cfg)
			require.NoError(t, c.Submit(context.Background(), nil))
			runID := c.RunID()

			c.OnPollResult(runID, running(4, 0, info("acct1 created"), info("acct2 started")))
			c.OnPollResult(runID, running(4, 1, info("acct2 created")))
			c.OnPollResult(runID, running(4, 2, info("acct3 created"), info("acct4 started")))

			assert.Equal(t, []string{"acct1 created", "acct2 started", "acct2 created", "acct3 created", "acct4 started"},
				sink.texts(model.LevelInfo))
		})
	}

	t.Run("levels are kept", func(t *testing.T) {
		c, _, sink := newTestController(t, manualConfig(model.KindGeneration))
		require.NoError(t, c.Submit(context.Background(), nil))

		c.OnPollResult(c.RunID(), running(1, 0, model.LogEntry{Text: "slow", Level: model.LevelWarning}))
		assert.Equal(t, []string{"slow"}, sink.texts(model.LevelWarning))
	})
}

func TestController_LateResultIgnored(t *testing.T) {
	c, _, sink := newTestController(t, manualConfig(model.KindGeneration))
	require.NoError(t, c.Submit(context.Background(), nil))
	runID := c.RunID()

	c.OnPollResult(runID, model.ProgressSnapshot{Status: model.StatusComplete, Total: 1, Completed: 1})
	before := len(sink.all())

	c.OnPollResult(runID, running(1, 0, info("late")))
	c.OnPollFailure(runID, errors.New("late failure"))

	assert.Len(t, sink.all(), before)
	assert.Equal(t, StateIdle, c.State())
}

func TestController_IdleWhileRunning(t *testing.T) {
	tests := []struct {
		kind   model.JobKind
		status model.JobStatus
	}{
		{model.KindGeneration, model.StatusError},
		{model.KindCreditRefresh, model.StatusError},
		{model.KindPaymentSession, model.StatusComplete},
		{model.KindPurchaseSession, model.StatusComplete},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			c, _, sink := newTestController(t, manualConfig(tt.kind))
			require.NoError(t, c.Submit(context.Background(), model.SessionRequest{Email: "a@b.c"}))

			c.OnPollResult(c.RunID(), model.ProgressSnapshot{Status: model.StatusIdle})

			summary, ok := c.LastSummary()
			require.True(t, ok)
			assert.Equal(t, tt.status, summary.Status)
			if tt.status == model.StatusError {
				assert.True(t, sink.contains("backend reported idle"))
			}
		})
	}
}

func TestController_CompletedNeverRegresses(t *testing.T) {
	c, _, _ := newTestController(t, manualConfig(model.KindCreditRefresh))
	require.NoError(t, c.Submit(context.Background(), nil))
	runID := c.RunID()

	c.OnPollResult(runID, running(10, 6))
	c.OnPollResult(runID, running(10, 4))

	assert.Equal(t, 6, c.Progress().Completed)
}

func TestController_RefreshOnPoll(t *testing.T) {
	refreshes := 0
	c, _, _ := newTestController(t, manualConfig(model.KindCreditRefresh), WithRefresher(func() { refreshes++ }))
	require.NoError(t, c.Submit(context.Background(), nil))

	c.OnPollResult(c.RunID(), running(3, 1))
	c.OnPollResult(c.RunID(), running(3, 2))
	assert.Equal(t, 2, refreshes)
}

func TestController_ResetDelay(t *testing.T) {
	cfg := manualConfig(model.KindGeneration)
	cfg.ResetDelay = 50 * time.Millisecond
	c, _, _ := newTestController(t, cfg)
	require.NoError(t, c.Submit(context.Background(), nil))

	c.OnPollResult(c.RunID(), model.ProgressSnapshot{Status: model.StatusError, Message: "boom"})
	assert.Equal(t, StateError, c.State())
	assert.True(t, c.CanSubmit())

	assert.Eventually(t, func() bool { return c.State() == StateIdle }, time.Second, 5*time.Millisecond)
}

func TestController_SubmitFromTerminalResetsFirst(t *testing.T) {
	cfg := manualConfig(model.KindGeneration)
	cfg.ResetDelay = time.Hour
	events := &eventRecorder{}
	c, _, _ := newTestController(t, cfg, WithObserver(events))
	require.NoError(t, c.Submit(context.Background(), nil))
	first := c.RunID()
	c.OnPollResult(first, model.ProgressSnapshot{Status: model.StatusComplete})
	require.Equal(t, StateComplete, c.State())

	require.NoError(t, c.Submit(context.Background(), nil))
	assert.NotEqual(t, first, c.RunID())
	assert.Equal(t, []State{
		StateSubmitting, StateRunning, StateComplete,
		StateIdle, StateSubmitting, StateRunning,
	}, events.transitions())
}

func TestController_PollsUntilTerminal(t *testing.T) {
	cfg := DefaultConfig(model.KindGeneration)
	cfg.Interval = 5 * time.Millisecond
	c, ep, _ := newTestController(t, cfg)
	ep.statuses = []statusResult{
		{snap: running(2, 1)},
		{err: errors.New("blip")},
		{snap: model.ProgressSnapshot{Status: model.StatusComplete, Total: 2, Completed: 2, SuccessCount: 2}},
	}

	require.NoError(t, c.Submit(context.Background(), nil))
	assert.Eventually(t, func() bool {
		_, ok := c.LastSummary()
		return ok && c.State() == StateIdle
	}, 2*time.Second, 5*time.Millisecond)

	_, polls, _ := ep.calls()
	time.Sleep(30 * time.Millisecond)
	_, after, _ := ep.calls()
	assert.Equal(t, polls, after, "no probes after the terminal status")
}

func TestSummaryLine(t *testing.T) {
	line := SummaryLine(model.RunSummary{
		Kind: model.KindCreditRefresh, Status: model.StatusComplete,
		Total: 4, Completed: 4, Successful: 3, Failed: 1,
	})
	assert.Contains(t, line, "(4/4, 3 ok, 1 failed)")

	line = SummaryLine(model.RunSummary{Kind: model.KindPaymentSession, Status: model.StatusError, Message: "boom"})
	assert.NotContains(t, line, "ok")
	assert.Contains(t, line, ": boom")
}
