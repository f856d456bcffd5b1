package job

import (
	"context"
	"strings"
	"sync"

	"github.com/Veraticus/jobdeck/internal/model"
)

type statusResult struct {
	err  error
	snap model.ProgressSnapshot
}

type fakeEndpoint struct {
	submitErr   error
	cancelErr   error
	acceptance  model.Acceptance
	statuses    []statusResult
	submitCalls int
	statusCalls int
	cancelCalls int
	mu          sync.Mutex
}

func newFakeEndpoint() *fakeEndpoint {
	return &fakeEndpoint{acceptance: model.Acceptance{Accepted: true}}
}

func (f *fakeEndpoint) Submit(_ context.Context, _ any) (model.Acceptance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	return f.acceptance, f.submitErr
}

// Status pops the next scripted result, repeating the last one once exhausted.
func (f *fakeEndpoint) Status(_ context.Context) (model.ProgressSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if len(f.statuses) == 0 {
		return model.ProgressSnapshot{Status: model.StatusRunning}, nil
	}
	next := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return next.snap, next.err
}

func (f *fakeEndpoint) Cancel(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls++
	return f.cancelErr
}

func (f *fakeEndpoint) calls() (submit, status, cancel int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitCalls, f.statusCalls, f.cancelCalls
}

type recordingSink struct {
	entries []model.LogEntry
	mu      sync.Mutex
}

func (s *recordingSink) Log(e model.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

func (s *recordingSink) all() []model.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.LogEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *recordingSink) texts(level model.Level) []string {
	var out []string
	for _, e := range s.all() {
		if e.Level == level {
			out = append(out, e.Text)
		}
	}
	return out
}

func (s *recordingSink) contains(substr string) bool {
	for _, e := range s.all() {
		if strings.Contains(e.Text, substr) {
			return true
		}
	}
	return false
}

type eventRecorder struct {
	events []Event
	mu     sync.Mutex
}

func (r *eventRecorder) OnJobEvent(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) transitions() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []State
	for _, e := range r.events {
		if e.Type == EventTransition {
			out = append(out, e.To)
		}
	}
	return out
}
