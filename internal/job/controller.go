package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/jobdeck/internal/common"
	"github.com/Veraticus/jobdeck/internal/model"
)

// Endpoint is the backend surface for one job kind.
type Endpoint interface {
	Submit(ctx context.Context, req any) (model.Acceptance, error)
	Status(ctx context.Context) (model.ProgressSnapshot, error)
	Cancel(ctx context.Context) error
}

// Sink receives operator-facing console entries.
type Sink interface {
	Log(entry model.LogEntry)
}

// Option configures a Controller.
type Option func(*Controller)

// WithObserver registers an event observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		c.observers = append(c.observers, o)
	}
}

// WithRefresher sets the function called when the entity table should be
// reloaded. It must not block.
func WithRefresher(fn func()) Option {
	return func(c *Controller) {
		c.refresh = fn
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

type run struct {
	started    time.Time
	poller     *Poller
	id         string
	transcript []model.LogEntry
	snapshot   model.ProgressSnapshot
	forwarded  int
	failures   int
}

// Controller owns the lifecycle of one job of one kind: submit, poll,
// interpret, cancel, terminate, reset.
type Controller struct {
	endpoint Endpoint
	sink     Sink
	now      func() time.Time
	refresh  func()

	run        *run
	last       *model.RunSummary
	resetTimer *time.Timer
	observers  []Observer
	pending    []func()

	cfg   Config
	state State

	mu sync.Mutex
	// emitMu keeps side effects in the order their state changes happened.
	emitMu sync.Mutex
}

// NewController creates a controller for cfg.Kind.
func NewController(cfg Config, endpoint Endpoint, sink Sink, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if endpoint == nil {
		return nil, fmt.Errorf("%w: %s endpoint", common.ErrMissingConfig, cfg.Kind)
	}
	if sink == nil {
		return nil, fmt.Errorf("%w: %s console sink", common.ErrMissingConfig, cfg.Kind)
	}

	c := &Controller{
		cfg:      cfg,
		endpoint: endpoint,
		sink:     sink,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Kind returns the job kind this controller drives.
func (c *Controller) Kind() model.JobKind {
	return c.cfg.Kind
}

// Config returns the controller configuration.
func (c *Controller) Config() Config {
	return c.cfg
}

// AddObserver registers an observer after construction.
func (c *Controller) AddObserver(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Running reports whether a run owns this kind.
func (c *Controller) Running() bool {
	return c.State().Busy()
}

// CanSubmit reports whether Submit would be attempted.
func (c *Controller) CanSubmit() bool {
	return !c.State().Busy()
}

// RunID returns the id of the active run, or "" when there is none.
func (c *Controller) RunID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run == nil {
		return ""
	}
	return c.run.id
}

// Snapshot returns the latest snapshot of the active run.
func (c *Controller) Snapshot() (model.ProgressSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run == nil {
		return model.ProgressSnapshot{}, false
	}
	return c.run.snapshot, true
}

// Progress returns the displayed progress of the active run.
func (c *Controller) Progress() Progress {
	snap, _ := c.Snapshot()
	return Progress{Completed: snap.Completed, Total: snap.Total}
}

// LastSummary returns the summary of the most recently finished run.
func (c *Controller) LastSummary() (model.RunSummary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return model.RunSummary{}, false
	}
	return *c.last, true
}

// Submit starts a run. It is refused with common.ErrJobRunning while a run of
// this kind is active, without contacting the backend.
func (c *Controller) Submit(ctx context.Context, req any) error {
	c.mu.Lock()
	if c.state.Busy() {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", common.ErrJobRunning, c.cfg.Kind)
	}
	if c.state.Terminal() {
		c.resetLocked()
	}
	c.transitionLocked(StateSubmitting, nil)
	c.unlockAndFlush()

	acc, err := c.endpoint.Submit(ctx, req)

	c.mu.Lock()
	if err != nil {
		c.logLocked(model.LevelError, fmt.Sprintf("Failed to start %s: %v", c.cfg.Kind.Title(), err))
		c.transitionLocked(StateIdle, nil)
		c.unlockAndFlush()
		return fmt.Errorf("failed to submit %s job: %w", c.cfg.Kind, err)
	}
	if !acc.Accepted {
		rejected := &common.RejectedError{Reasons: acc.Reasons}
		c.logLocked(model.LevelError, rejected.Error())
		c.transitionLocked(StateIdle, nil)
		c.unlockAndFlush()
		return rejected
	}

	r := &run{
		id:      uuid.NewString(),
		started: c.now(),
	}
	r.snapshot = model.ProgressSnapshot{Status: model.StatusRunning}
	runID := r.id
	r.poller = NewPoller(c.cfg.Interval, func(pctx context.Context) {
		c.probe(pctx, runID)
	})
	c.run = r

	text := c.cfg.StartText
	if acc.Message != "" {
		text = acc.Message
	}
	if text != "" {
		c.logLocked(model.LevelInfo, text)
	}
	c.transitionLocked(StateRunning, nil)
	r.poller.Start(context.WithoutCancel(ctx))
	c.unlockAndFlush()

	slog.Info("Job started", "kind", c.cfg.Kind, "run_id", runID)
	return nil
}

// RequestCancel asks the backend to stop the active run. The cancel call is
// sent once; later calls while it is pending are no-ops. If the call fails the
// controller returns to running so the operator can retry.
func (c *Controller) RequestCancel(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateCancelPending {
		c.mu.Unlock()
		return nil
	}
	if c.state != StateRunning {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", common.ErrNotRunning, c.cfg.Kind, state)
	}
	runID := c.run.id
	c.transitionLocked(StateCancelPending, nil)
	c.unlockAndFlush()

	err := c.endpoint.Cancel(ctx)

	c.mu.Lock()
	if c.state != StateCancelPending || c.run == nil || c.run.id != runID {
		// The run ended while the cancel was in flight.
		c.unlockAndFlush()
		return err
	}
	if err != nil {
		c.logLocked(model.LevelError, fmt.Sprintf("Error sending stop request: %v", err))
		c.transitionLocked(StateRunning, nil)
		c.unlockAndFlush()
		return fmt.Errorf("failed to cancel %s job: %w", c.cfg.Kind, err)
	}
	if c.cfg.CancelText != "" {
		c.logLocked(model.LevelWarning, c.cfg.CancelText)
	}
	c.unlockAndFlush()
	return nil
}

func (c *Controller) probe(ctx context.Context, runID string) {
	snap, err := c.endpoint.Status(ctx)
	if err != nil {
		c.OnPollFailure(runID, err)
		return
	}
	c.OnPollResult(runID, snap)
}

// OnPollResult applies a status result to the run it was fetched for. Results
// for a run that is no longer active are ignored.
func (c *Controller) OnPollResult(runID string, snap model.ProgressSnapshot) {
	c.mu.Lock()
	if !c.activeLocked(runID) {
		c.mu.Unlock()
		slog.Debug("Ignoring late poll result", "kind", c.cfg.Kind, "run_id", runID)
		return
	}
	r := c.run
	r.failures = 0

	c.forwardLocked(snap.Messages)

	if snap.Completed < r.snapshot.Completed {
		snap.Completed = r.snapshot.Completed
	}
	if snap.Status == model.StatusIdle {
		snap.Status = c.cfg.IdleMeans
		if snap.Status == model.StatusError && snap.Message == "" {
			snap.Message = "backend reported idle"
		}
	}
	r.snapshot = snap

	if snap.Status.IsTerminal() {
		c.finishLocked(snap)
		c.unlockAndFlush()
		return
	}

	c.publishLocked(Event{Type: EventPoll, From: c.state, To: c.state, Snapshot: snap})
	if c.cfg.RefreshOnPoll {
		c.refreshLocked()
	}
	c.unlockAndFlush()
}

// OnPollFailure records a failed status probe. It warns once per failure and
// ends the run as an error after MaxPollFailures consecutive failures.
func (c *Controller) OnPollFailure(runID string, err error) {
	c.mu.Lock()
	if !c.activeLocked(runID) {
		c.mu.Unlock()
		return
	}
	r := c.run
	r.failures++
	c.logLocked(model.LevelWarning, fmt.Sprintf("Status check failed: %v", err))
	c.publishLocked(Event{Type: EventPollFailure, From: c.state, To: c.state, Snapshot: r.snapshot, Err: err})
	slog.Warn("Status check failed", "kind", c.cfg.Kind, "run_id", runID, "failures", r.failures, "error", err)

	if c.cfg.MaxPollFailures > 0 && r.failures >= c.cfg.MaxPollFailures {
		snap := r.snapshot
		snap.Status = model.StatusError
		snap.Message = fmt.Sprintf("lost contact with backend after %d failed status checks", r.failures)
		c.finishLocked(snap)
	}
	c.unlockAndFlush()
}

// Reset clears a finished run and re-enables submission. It is a no-op unless
// the controller is in a terminal state.
func (c *Controller) Reset() {
	c.mu.Lock()
	if c.state.Terminal() {
		c.resetLocked()
	}
	c.unlockAndFlush()
}

// Close stops any active poller and pending reset. The backend job is left alone.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run != nil && c.run.poller != nil {
		c.run.poller.Stop()
	}
	if c.resetTimer != nil {
		c.resetTimer.Stop()
		c.resetTimer = nil
	}
}

func (c *Controller) activeLocked(runID string) bool {
	return c.run != nil && c.run.id == runID && (c.state == StateRunning || c.state == StateCancelPending)
}

func (c *Controller) forwardLocked(msgs []model.LogEntry) {
	r := c.run
	if c.cfg.Messages == MessagesDrained {
		for _, m := range msgs {
			c.logLocked(m.Level, m.Text)
		}
		return
	}
	if len(msgs) < r.forwarded {
		// The backend restarted its list; everything in it is new.
		slog.Debug("Message list shrank, resynchronizing", "kind", c.cfg.Kind, "had", r.forwarded, "got", len(msgs))
		r.forwarded = 0
	}
	for _, m := range msgs[r.forwarded:] {
		c.logLocked(m.Level, m.Text)
	}
	r.forwarded = len(msgs)
}

func (c *Controller) finishLocked(snap model.ProgressSnapshot) {
	r := c.run
	r.poller.Stop()

	switch snap.Status {
	case model.StatusComplete:
		c.logLocked(model.LevelSuccess, c.cfg.CompleteText)
		c.countsLocked(snap)
	case model.StatusStopped:
		c.logLocked(model.LevelWarning, c.cfg.StoppedText)
		c.countsLocked(snap)
	default:
		msg := snap.Message
		if msg == "" {
			msg = "unknown error"
		}
		c.logLocked(model.LevelError, "Error: "+msg)
	}

	summary := &model.RunSummary{
		ID:         r.id,
		Kind:       c.cfg.Kind,
		Status:     snap.Status,
		Message:    snap.Message,
		Total:      snap.Total,
		Completed:  snap.Completed,
		Successful: snap.SuccessCount,
		Failed:     snap.FailCount,
		StartedAt:  r.started,
		FinishedAt: c.now(),
	}
	c.last = summary
	c.transitionLocked(terminalState(snap.Status), summary)

	slog.Info("Job finished", "kind", c.cfg.Kind, "run_id", r.id, "status", snap.Status,
		"duration", summary.Duration())

	if c.cfg.ResetDelay <= 0 {
		c.resetLocked()
		return
	}
	runID := r.id
	c.resetTimer = time.AfterFunc(c.cfg.ResetDelay, func() {
		c.mu.Lock()
		if c.state.Terminal() && c.run != nil && c.run.id == runID {
			c.resetLocked()
		}
		c.unlockAndFlush()
	})
}

func (c *Controller) countsLocked(snap model.ProgressSnapshot) {
	if c.cfg.Kind.IsSession() {
		return
	}
	c.logLocked(model.LevelInfo, fmt.Sprintf("Successful: %d, Failed: %d", snap.SuccessCount, snap.FailCount))
}

func (c *Controller) resetLocked() {
	if c.resetTimer != nil {
		c.resetTimer.Stop()
		c.resetTimer = nil
	}
	if c.run != nil && c.run.poller != nil {
		c.run.poller.Stop()
	}
	c.transitionLocked(StateIdle, nil)
	c.run = nil
	c.refreshLocked()
}

func (c *Controller) transitionLocked(to State, summary *model.RunSummary) {
	from := c.state
	c.state = to
	ev := Event{Type: EventTransition, From: from, To: to, Summary: summary}
	if c.run != nil {
		ev.Snapshot = c.run.snapshot
		if summary != nil {
			ev.Transcript = slices.Clone(c.run.transcript)
		}
	}
	c.publishLocked(ev)
	slog.Debug("Job state changed", "kind", c.cfg.Kind, "from", from, "to", to)
}

func (c *Controller) publishLocked(ev Event) {
	ev.Time = c.now()
	ev.Kind = c.cfg.Kind
	if c.run != nil {
		ev.RunID = c.run.id
	}
	observers := slices.Clone(c.observers)
	c.pending = append(c.pending, func() {
		for _, o := range observers {
			o.OnJobEvent(ev)
		}
	})
}

func (c *Controller) logLocked(level model.Level, text string) {
	entry := model.LogEntry{Text: text, Level: level}
	if c.run != nil {
		c.run.transcript = append(c.run.transcript, entry)
	}
	sink := c.sink
	c.pending = append(c.pending, func() {
		sink.Log(entry)
	})
}

func (c *Controller) refreshLocked() {
	if c.refresh == nil {
		return
	}
	fn := c.refresh
	c.pending = append(c.pending, fn)
}

// unlockAndFlush releases mu and runs queued side effects outside it, in order.
func (c *Controller) unlockAndFlush() {
	pending := c.pending
	c.pending = nil
	c.emitMu.Lock()
	c.mu.Unlock()
	defer c.emitMu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

// IsRunning reports whether err means a job of the kind is already running.
func IsRunning(err error) bool {
	return errors.Is(err, common.ErrJobRunning)
}

// SummaryLine renders a one-line description of a finished run.
func SummaryLine(s model.RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", s.Kind.Title(), s.Status)
	if !s.Kind.IsSession() {
		fmt.Fprintf(&b, " (%d/%d, %d ok, %d failed)", s.Completed, s.Total, s.Successful, s.Failed)
	}
	if s.Message != "" && s.Status == model.StatusError {
		fmt.Fprintf(&b, ": %s", s.Message)
	}
	return b.String()
}
