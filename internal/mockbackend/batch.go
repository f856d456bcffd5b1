package mockbackend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Veraticus/jobdeck/internal/common"
	"github.com/Veraticus/jobdeck/internal/model"
	"github.com/Veraticus/jobdeck/internal/validate"
)

const (
	statusIdle     = "idle"
	statusRunning  = "running"
	statusComplete = "complete"
	statusStopped  = "stopped"
)

// batch is the server-side state of a generation or credit refresh job.
type batch struct {
	status        string
	message       string
	current       string
	messages      []model.LogEntry
	total         int
	completed     int
	successful    int
	failed        int
	stopRequested bool
	drained       bool
}

type batchView struct {
	CurrentEmail *string          `json:"current_email"`
	Status       string           `json:"status"`
	Message      string           `json:"message"`
	Messages     []model.LogEntry `json:"messages"`
	Completed    int              `json:"completed"`
	Total        int              `json:"total"`
	Successful   int              `json:"successful"`
	Failed       int              `json:"failed"`
}

func newBatch(drained bool) *batch {
	return &batch{status: statusIdle, drained: drained}
}

func (b *batch) running() bool {
	return b.status == statusRunning
}

func (b *batch) start(total int, message string) {
	*b = batch{
		status:  statusRunning,
		message: message,
		total:   total,
		drained: b.drained,
	}
}

func (b *batch) add(level model.Level, format string, args ...any) {
	b.messages = append(b.messages, model.LogEntry{Text: fmt.Sprintf(format, args...), Level: level})
}

// view renders the status response, draining messages in drained mode.
func (b *batch) view() batchView {
	v := batchView{
		Status:     b.status,
		Message:    b.message,
		Messages:   append([]model.LogEntry{}, b.messages...),
		Completed:  b.completed,
		Total:      b.total,
		Successful: b.successful,
		Failed:     b.failed,
	}
	if b.current != "" {
		current := b.current
		v.CurrentEmail = &current
	}
	if b.drained {
		b.messages = nil
	}
	return v
}

func (b *batch) finish(label string) {
	b.current = ""
	if b.stopRequested {
		b.status = statusStopped
		b.message = label + " stopped by user"
		return
	}
	b.status = statusComplete
	b.message = label + " complete!"
	b.add(model.LevelSuccess, "Complete! %d successful, %d failed.", b.successful, b.failed)
}

func (s *Server) shouldFail(i int) bool {
	return s.failEvery > 0 && (i+1)%s.failEvery == 0
}

func (s *Server) startGeneration(w http.ResponseWriter, r *http.Request) {
	var req model.GenerationRequest
	if !decode(r, &req) {
		fail(w, "Invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Count < 1 {
		req.Count = 1
	}

	s.mu.Lock()
	if s.generation.running() {
		s.mu.Unlock()
		fail(w, "Generation already running")
		return
	}
	if err := validate.Generation(req, s.locations > 0); err != nil {
		s.mu.Unlock()
		var verr *common.ValidationError
		if errors.As(err, &verr) {
			failAll(w, verr.Problems)
			return
		}
		fail(w, err.Error())
		return
	}

	available := s.availableLocked(req.Email, req.IsGmail)
	if req.Count > len(available) {
		s.mu.Unlock()
		failAll(w, []string{fmt.Sprintf("Requested %d accounts but only %d email variations are available", req.Count, len(available))})
		return
	}
	emails := available[:req.Count]
	s.generation.start(len(emails), "Starting generation...")
	s.generation.add(model.LevelInfo, "Generating %d account(s) from %s", len(emails), req.Email)
	s.mu.Unlock()

	s.spawn(func(ctx context.Context) { s.runGeneration(ctx, req, emails) })
	started(w)
}

func (s *Server) runGeneration(ctx context.Context, req model.GenerationRequest, emails []string) {
	address := req.FullAddress
	if address == "" {
		address = "100 Preset Way"
	}

	for i, email := range emails {
		s.mu.Lock()
		if s.generation.stopRequested {
			s.generation.add(model.LevelWarning, "Stop requested. Finishing...")
			s.mu.Unlock()
			break
		}
		s.generation.current = email
		s.generation.add(model.LevelInfo, "[%d/%d] Registering %s...", i+1, len(emails), email)
		s.mu.Unlock()

		if !s.sleep(ctx) {
			return
		}

		s.mu.Lock()
		if s.shouldFail(i) {
			s.generation.failed++
			s.generation.add(model.LevelError, "✗ %s: registration failed", email)
		} else {
			s.generation.successful++
			s.accounts = append(s.accounts, model.AccountRow{
				Email:        email,
				FullName:     fmt.Sprintf("Mock User %d", len(s.accounts)+1),
				RemainCredit: "0",
				FullAddress:  address,
			})
			s.generation.add(model.LevelSuccess, "✓ %s registered", email)
		}
		s.generation.completed = i + 1
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.generation.finish("Generation")
	s.mu.Unlock()
}

func (s *Server) generationStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	v := s.generation.view()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) stopGeneration(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.generation.stopRequested = true
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stop_requested"})
}

func (s *Server) startCredits(w http.ResponseWriter, _ *http.Request) {
	s.beginCredits(w, "")
}

func (s *Server) startCreditsFrom(w http.ResponseWriter, r *http.Request) {
	var req model.CreditRefreshRequest
	if !decode(r, &req) || strings.TrimSpace(req.StartEmail) == "" {
		fail(w, "start_email is required")
		return
	}
	s.beginCredits(w, strings.TrimSpace(req.StartEmail))
}

func (s *Server) beginCredits(w http.ResponseWriter, startEmail string) {
	s.mu.Lock()
	if s.credits.running() {
		s.mu.Unlock()
		fail(w, "Credit update already running")
		return
	}

	start := 0
	if startEmail != "" {
		start = -1
		for i, row := range s.accounts {
			if strings.EqualFold(row.Email, startEmail) {
				start = i
				break
			}
		}
		if start < 0 {
			s.mu.Unlock()
			fail(w, fmt.Sprintf("Account %s not found", startEmail))
			return
		}
	}

	emails := make([]string, 0, len(s.accounts)-start)
	for _, row := range s.accounts[start:] {
		emails = append(emails, row.Email)
	}
	s.credits.start(len(emails), "Starting credit update...")
	s.credits.add(model.LevelInfo, "Found %d accounts to process", len(emails))
	s.mu.Unlock()

	s.spawn(func(ctx context.Context) { s.runCredits(ctx, emails) })
	started(w)
}

func (s *Server) runCredits(ctx context.Context, emails []string) {
	for i, email := range emails {
		s.mu.Lock()
		if s.credits.stopRequested {
			s.credits.add(model.LevelWarning, "Stop requested. Finishing current account...")
			s.mu.Unlock()
			break
		}
		s.credits.current = email
		s.credits.completed = i
		s.credits.add(model.LevelInfo, "[%d/%d] Processing %s...", i+1, len(emails), email)
		s.mu.Unlock()

		if !s.sleep(ctx) {
			return
		}

		s.mu.Lock()
		if s.shouldFail(i) {
			s.credits.failed++
			s.credits.add(model.LevelError, "✗ %s: sign-in failed", email)
		} else {
			credit := fmt.Sprintf("%.2f", float64(5*(i+1)))
			for j := range s.accounts {
				if s.accounts[j].Email == email {
					s.accounts[j].RemainCredit = credit
				}
			}
			s.credits.successful++
			s.credits.add(model.LevelSuccess, "✓ %s: $%s", email, credit)
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	if !s.credits.stopRequested {
		s.credits.completed = s.credits.total
	}
	s.credits.finish("Credit update")
	s.mu.Unlock()
}

func (s *Server) creditsStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	v := s.credits.view()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) stopCredits(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.credits.stopRequested = true
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stop_requested"})
}
