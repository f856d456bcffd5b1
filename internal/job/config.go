// Package job implements the per-kind job controller, its poller and the
// registry that answers "is a job of this kind running".
package job

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/jobdeck/internal/common"
	"github.com/Veraticus/jobdeck/internal/model"
)

// MessageMode describes how a status endpoint delivers console messages.
type MessageMode int

const (
	// MessagesCumulative means every status response carries the full message
	// list of the run so far; only the unseen suffix is forwarded.
	MessagesCumulative MessageMode = iota
	// MessagesDrained means the backend clears its list after each read, so
	// every delivered message is new.
	MessagesDrained
)

func (m MessageMode) String() string {
	if m == MessagesDrained {
		return "drained"
	}
	return "cumulative"
}

// ParseMessageMode parses "cumulative" or "drained".
func ParseMessageMode(s string) (MessageMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cumulative":
		return MessagesCumulative, nil
	case "drained":
		return MessagesDrained, nil
	default:
		return MessagesCumulative, fmt.Errorf("%w: message mode %q", common.ErrInvalidConfig, s)
	}
}

// DefaultMaxPollFailures is the number of consecutive failed status checks
// after which a run is abandoned as an error.
const DefaultMaxPollFailures = 30

// Config parametrizes a Controller for one job kind.
type Config struct {
	Kind model.JobKind

	// Interval between status probes.
	Interval time.Duration
	Messages MessageMode

	// IdleMeans is the status an idle poll result is read as while a run is active.
	IdleMeans model.JobStatus

	// RefreshOnPoll asks for a table refresh after every running poll.
	RefreshOnPoll bool

	// MaxPollFailures ends the run after this many consecutive failures. Zero retries forever.
	MaxPollFailures int

	// ResetDelay is how long the terminal state stays visible before reset.
	ResetDelay time.Duration

	StartText    string
	CompleteText string
	StoppedText  string
	CancelText   string
}

// DefaultConfig returns the stock configuration for a job kind.
func DefaultConfig(kind model.JobKind) Config {
	cfg := Config{
		Kind:            kind,
		Messages:        MessagesCumulative,
		MaxPollFailures: DefaultMaxPollFailures,
		IdleMeans:       model.StatusError,
	}

	switch kind {
	case model.KindGeneration:
		cfg.Interval = time.Second
		cfg.Messages = MessagesDrained
		cfg.StartText = "Generation started"
		cfg.CompleteText = "✅ Generation complete!"
		cfg.StoppedText = "⚠ Generation stopped by user."
		cfg.CancelText = "Stop request sent. Waiting for current account to finish..."
	case model.KindCreditRefresh:
		cfg.Interval = 1500 * time.Millisecond
		cfg.Messages = MessagesDrained
		cfg.RefreshOnPoll = true
		cfg.StartText = "Credit update started"
		cfg.CompleteText = "✓ Credit update complete!"
		cfg.StoppedText = "⚠ Credit update stopped by user."
		cfg.CancelText = "Stop request sent. Waiting for current account to finish..."
	case model.KindPaymentSession:
		cfg.Interval = 2 * time.Second
		cfg.IdleMeans = model.StatusComplete
		cfg.StartText = "Payment session started"
		cfg.CompleteText = "✓ Payment session finished."
		cfg.StoppedText = "⚠ Account skipped."
		cfg.CancelText = "Skip request sent. Closing browser..."
	case model.KindPurchaseSession:
		cfg.Interval = 5 * time.Second
		cfg.IdleMeans = model.StatusComplete
		cfg.StartText = "Purchase session started"
		cfg.CompleteText = "✓ Purchase session closed."
		cfg.StoppedText = "⚠ Purchase session stopped by user."
		cfg.CancelText = "Stop request sent. Closing browser..."
	}
	return cfg
}

// Validate checks the configuration for values the controller cannot run with.
func (c Config) Validate() error {
	if _, err := model.ParseJobKind(string(c.Kind)); err != nil {
		return fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: %s poll interval must be positive", common.ErrInvalidConfig, c.Kind)
	}
	if c.MaxPollFailures < 0 {
		return fmt.Errorf("%w: max poll failures must not be negative", common.ErrInvalidConfig)
	}
	if c.IdleMeans != model.StatusComplete && c.IdleMeans != model.StatusError {
		return fmt.Errorf("%w: idle must mean complete or error, got %q", common.ErrInvalidConfig, c.IdleMeans)
	}
	return nil
}
