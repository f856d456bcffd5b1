package model

import (
	"fmt"
	"log/slog"
	"strings"
)

// JobKind identifies one of the four long-running workflows.
type JobKind string

// Supported job kinds.
const (
	KindGeneration      JobKind = "generation"
	KindCreditRefresh   JobKind = "credits"
	KindPaymentSession  JobKind = "payment"
	KindPurchaseSession JobKind = "purchase"
)

// AllKinds lists every job kind in display order.
var AllKinds = []JobKind{
	KindGeneration,
	KindCreditRefresh,
	KindPaymentSession,
	KindPurchaseSession,
}

// ParseJobKind converts a string into a JobKind.
func ParseJobKind(s string) (JobKind, error) {
	switch JobKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindGeneration:
		return KindGeneration, nil
	case KindCreditRefresh:
		return KindCreditRefresh, nil
	case KindPaymentSession:
		return KindPaymentSession, nil
	case KindPurchaseSession:
		return KindPurchaseSession, nil
	}
	return "", fmt.Errorf("unknown job kind: %q", s)
}

// Title returns the human readable name of the kind.
func (k JobKind) Title() string {
	switch k {
	case KindGeneration:
		return "Generation"
	case KindCreditRefresh:
		return "Credit Refresh"
	case KindPaymentSession:
		return "Payment Session"
	case KindPurchaseSession:
		return "Purchase Session"
	default:
		return string(k)
	}
}

// IsSession reports whether the kind models an interactive browser session
// rather than a batch job.
func (k JobKind) IsSession() bool {
	return k == KindPaymentSession || k == KindPurchaseSession
}

// JobStatus is the server-authoritative status of a job.
type JobStatus string

// Job statuses.
const (
	StatusIdle     JobStatus = "idle"
	StatusRunning  JobStatus = "running"
	StatusComplete JobStatus = "complete"
	StatusStopped  JobStatus = "stopped"
	StatusError    JobStatus = "error"
)

// IsTerminal reports whether no further progress happens without a new submission.
func (s JobStatus) IsTerminal() bool {
	return s == StatusComplete || s == StatusStopped || s == StatusError
}

// NormalizeStatus maps the wire status strings used by the backend onto JobStatus.
// In-progress sub-statuses the backend uses for sessions collapse to running.
func NormalizeStatus(raw string) JobStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "idle":
		return StatusIdle
	case "running", "started", "logging_in", "browser_open", "initializing", "ready":
		return StatusRunning
	case "complete", "completed", "success", "done":
		return StatusComplete
	case "stopped", "cancelled", "canceled":
		return StatusStopped
	case "error", "failed":
		return StatusError
	default:
		slog.Debug("Unknown job status, treating as running", "status", raw)
		return StatusRunning
	}
}

// Level is the severity of a console entry.
type Level string

// Console levels.
const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelSuccess Level = "success"
	LevelSystem  Level = "system"
)

// ParseLevel maps a wire message type onto a Level. Unknown types are info.
func ParseLevel(s string) Level {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelWarning, "warn":
		return LevelWarning
	case LevelError:
		return LevelError
	case LevelSuccess:
		return LevelSuccess
	case LevelSystem:
		return LevelSystem
	default:
		return LevelInfo
	}
}

// LogEntry is a single console message.
type LogEntry struct {
	Text  string `json:"text"`
	Level Level  `json:"type"`
}

// ProgressSnapshot is one polled view of a running job.
type ProgressSnapshot struct {
	Status        JobStatus
	Message       string
	CurrentEntity string
	Messages      []LogEntry
	Total         int
	Completed     int
	SuccessCount  int
	FailCount     int
}
