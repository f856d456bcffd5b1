package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/Veraticus/jobdeck/internal/job"
	"github.com/Veraticus/jobdeck/internal/model"
)

// ProgressRenderer prints a job's console entries and a progress bar to a
// terminal. It is both the controller's sink and one of its observers.
type ProgressRenderer struct {
	writer  io.Writer
	bar     *progressbar.ProgressBar
	done    chan model.RunSummary
	kind    model.JobKind
	noBar   bool
	mu      sync.Mutex
	settled bool
}

// NewProgressRenderer creates a renderer for one job kind. With showBar
// false only console entries are printed.
func NewProgressRenderer(writer io.Writer, kind model.JobKind, showBar bool) *ProgressRenderer {
	if writer == nil {
		writer = os.Stdout
	}
	return &ProgressRenderer{
		writer: writer,
		kind:   kind,
		noBar:  !showBar,
		done:   make(chan model.RunSummary, 1),
	}
}

// Log implements job.Sink.
func (r *ProgressRenderer) Log(entry model.LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bar != nil {
		if err := r.bar.Clear(); err != nil {
			slog.Debug("Failed to clear progress bar", "error", err)
		}
	}
	if _, err := fmt.Fprintln(r.writer, FormatEntry(entry)); err != nil {
		slog.Warn("Failed to write console entry", "error", err)
	}
	if r.bar != nil && !r.settled {
		if err := r.bar.RenderBlank(); err != nil {
			slog.Debug("Failed to redraw progress bar", "error", err)
		}
	}
}

// OnJobEvent implements job.Observer.
func (r *ProgressRenderer) OnJobEvent(ev job.Event) {
	if ev.Kind != r.kind {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case ev.Type == job.EventTransition && ev.To == job.StateRunning && ev.From != job.StateCancelPending:
		r.settled = false
	case ev.Type == job.EventPoll:
		r.updateLocked(ev.Snapshot)
	case ev.Type == job.EventTransition && ev.To.Terminal() && ev.Summary != nil:
		r.finishLocked(*ev.Summary)
	}
}

func (r *ProgressRenderer) updateLocked(snap model.ProgressSnapshot) {
	if r.noBar || r.settled || snap.Total <= 0 {
		return
	}
	if r.bar == nil {
		r.bar = r.newBar(snap.Total)
	} else if r.bar.GetMax() != snap.Total {
		r.bar.ChangeMax(snap.Total)
	}
	if snap.CurrentEntity != "" {
		r.bar.Describe(fmt.Sprintf("[cyan]%s[reset] %s", r.kind.Title(), snap.CurrentEntity))
	}
	if err := r.bar.Set(snap.Completed); err != nil {
		slog.Debug("Failed to update progress bar", "error", err)
	}
}

func (r *ProgressRenderer) newBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(r.writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(fmt.Sprintf("[cyan][bold]%s[reset]", r.kind.Title())),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func (r *ProgressRenderer) finishLocked(summary model.RunSummary) {
	if r.settled {
		return
	}
	r.settled = true
	if r.bar != nil {
		if err := r.bar.Exit(); err != nil {
			slog.Debug("Failed to close progress bar", "error", err)
		}
		if _, err := fmt.Fprintln(r.writer); err != nil {
			slog.Debug("Failed to write newline after progress bar", "error", err)
		}
		r.bar = nil
	}
	select {
	case r.done <- summary:
	default:
	}
}

// Wait blocks until the run ends and returns its summary.
func (r *ProgressRenderer) Wait(ctx context.Context) (model.RunSummary, error) {
	select {
	case s := <-r.done:
		return s, nil
	case <-ctx.Done():
		return model.RunSummary{}, ctx.Err()
	}
}

// PrintSummary writes the boxed end-of-run summary.
func PrintSummary(w io.Writer, s model.RunSummary) {
	body := fmt.Sprintf("  • Status: %s\n  • Duration: %s", s.Status, s.Duration().Round(time.Millisecond))
	if !s.Kind.IsSession() {
		body = fmt.Sprintf("  • Processed: %d/%d\n  • Successful: %d\n  • Failed: %d\n", s.Completed, s.Total, s.Successful, s.Failed) + body
	}
	if s.Message != "" && s.Status == model.StatusError {
		body += "\n  • Error: " + s.Message
	}
	if _, err := fmt.Fprintln(w, RenderBox(s.Kind.Title()+" run "+shortID(s.ID), body)); err != nil {
		slog.Warn("Failed to write run summary", "error", err)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
