package model

import "time"

// RunSummary is the outcome of one job run as shown to the operator and kept in history.
type RunSummary struct {
	StartedAt  time.Time
	FinishedAt time.Time
	ID         string
	Kind       JobKind
	Status     JobStatus
	Message    string
	Total      int
	Completed  int
	Successful int
	Failed     int
}

// Duration returns how long the run took.
func (r RunSummary) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
