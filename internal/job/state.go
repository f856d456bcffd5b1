package job

import (
	"time"

	"github.com/Veraticus/jobdeck/internal/model"
)

// State is the client-side lifecycle state of a controller.
type State int

// Controller states.
const (
	StateIdle State = iota
	StateSubmitting
	StateRunning
	StateCancelPending
	StateComplete
	StateStopped
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateRunning:
		return "running"
	case StateCancelPending:
		return "cancel_pending"
	case StateComplete:
		return "complete"
	case StateStopped:
		return "stopped"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Busy reports whether a run owns the kind. Submit is refused while busy.
func (s State) Busy() bool {
	return s == StateSubmitting || s == StateRunning || s == StateCancelPending
}

// Terminal reports whether the run has ended and awaits reset.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateStopped || s == StateError
}

func terminalState(status model.JobStatus) State {
	switch status {
	case model.StatusComplete:
		return StateComplete
	case model.StatusStopped:
		return StateStopped
	default:
		return StateError
	}
}

// EventType distinguishes controller events.
type EventType int

// Event types.
const (
	// EventTransition is published on every state change.
	EventTransition EventType = iota
	// EventPoll is published for every running status result.
	EventPoll
	// EventPollFailure is published for every failed status probe.
	EventPollFailure
)

// Event describes something that happened to a controller.
type Event struct {
	Time     time.Time
	Err      error
	Summary  *model.RunSummary
	Kind     model.JobKind
	RunID    string
	Snapshot model.ProgressSnapshot

	// Transcript holds every console entry of the run; set on the terminal transition.
	Transcript []model.LogEntry

	Type EventType
	From State
	To   State
}

// Observer receives controller events. Observers run on the controller's
// emit path and must not call back into the controller's mutating methods.
type Observer interface {
	OnJobEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnJobEvent calls f.
func (f ObserverFunc) OnJobEvent(e Event) { f(e) }
