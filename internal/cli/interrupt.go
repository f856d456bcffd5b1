package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// InterruptHandler turns Ctrl-C into a graceful job stop. The first signal
// runs the stop callback; a second one cancels the returned context.
type InterruptHandler struct {
	writer     io.Writer
	interrupts int
	mu         sync.Mutex
}

// NewInterruptHandler creates a new interrupt handler.
func NewInterruptHandler(writer io.Writer) *InterruptHandler {
	if writer == nil {
		writer = os.Stdout
	}
	return &InterruptHandler{
		writer: writer,
	}
}

// HandleInterrupts sets up signal handling and returns a context that is
// canceled when the operator insists on quitting. A nil onFirst cancels on
// the first signal.
func (h *InterruptHandler) HandleInterrupts(ctx context.Context, onFirst func()) context.Context {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	return h.watch(ctx, sigChan, onFirst, func() { signal.Stop(sigChan) })
}

func (h *InterruptHandler) watch(ctx context.Context, sigs <-chan os.Signal, onFirst func(), release func()) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer release()
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigs:
				if h.interrupt(onFirst) {
					cancel()
					return
				}
			}
		}
	}()
	return ctx
}

// interrupt reports whether the context should be canceled.
func (h *InterruptHandler) interrupt(onFirst func()) bool {
	h.mu.Lock()
	h.interrupts++
	first := h.interrupts == 1
	h.mu.Unlock()

	if first && onFirst != nil {
		h.write("\n" + FormatWarning("Interrupt received, stopping the job.") +
			"\n" + FormatInfo("Press Ctrl-C again to quit without waiting.") + "\n")
		onFirst()
		return false
	}

	h.write("\n" + FormatWarning("Interrupted!") +
		"\n" + FormatInfo("The backend may still be working; check it with: jobdeck console") + "\n")
	return true
}

func (h *InterruptHandler) write(msg string) {
	if _, err := fmt.Fprint(h.writer, msg); err != nil {
		// Best effort - we're shutting down anyway
		fmt.Fprintf(os.Stderr, "Failed to write interrupt message: %v\n", err)
	}
}

// WasInterrupted returns true if at least one interrupt was received.
func (h *InterruptHandler) WasInterrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interrupts > 0
}
