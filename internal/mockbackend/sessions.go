package mockbackend

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/Veraticus/jobdeck/internal/model"
	"github.com/Veraticus/jobdeck/internal/validate"
)

// paymentState is the single payment setup slot.
type paymentState struct {
	status  string
	message string
	email   string
}

func (p *paymentState) active() bool {
	return p.status != "" && p.status != statusIdle
}

func (s *Server) findAccountLocked(email string) int {
	for i, row := range s.accounts {
		if strings.EqualFold(row.Email, email) {
			return i
		}
	}
	return -1
}

func (s *Server) paymentStats(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := model.PaymentStats{Total: len(s.accounts)}
	for _, row := range s.accounts {
		if row.HasPayment() {
			continue
		}
		stats.NoPayment++
		if stats.NextAccount == nil && !s.skipped[row.Email] {
			stats.NextAccount = &model.PaymentAccount{Email: row.Email, FullName: row.FullName}
		}
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) startPayment(w http.ResponseWriter, r *http.Request) {
	var req model.SessionRequest
	if !decode(r, &req) || strings.TrimSpace(req.Email) == "" {
		fail(w, "Email is required")
		return
	}
	email := strings.TrimSpace(req.Email)

	s.mu.Lock()
	if s.payment.active() {
		current := s.payment.email
		s.mu.Unlock()
		fail(w, fmt.Sprintf("Payment session already active for %s", current))
		return
	}
	if s.findAccountLocked(email) < 0 {
		s.mu.Unlock()
		fail(w, fmt.Sprintf("Account %s not found", email))
		return
	}
	s.payment = paymentState{status: "logging_in", message: "Logging in...", email: email}
	s.mu.Unlock()

	s.spawn(func(ctx context.Context) {
		if !s.sleep(ctx) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.payment.email == email && s.payment.status == "logging_in" {
			s.payment.status = "browser_open"
			s.payment.message = "Browser open. Enter card details."
		}
	})
	ok(w, "Logging in and navigating to payment page...")
}

func (s *Server) paymentStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	p := s.payment
	s.mu.Unlock()

	status := p.status
	if status == "" {
		status = statusIdle
	}
	body := map[string]any{"status": status, "message": p.message, "current_email": nil}
	if p.email != "" {
		body["current_email"] = p.email
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) setAlias(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email     string `json:"email"`
		CardAlias string `json:"card_alias"`
	}
	if !decode(r, &req) {
		fail(w, "Invalid request body")
		return
	}
	if err := validate.CardAlias(req.Email, req.CardAlias); err != nil {
		fail(w, "Email and card_alias are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findAccountLocked(req.Email)
	if i < 0 {
		fail(w, fmt.Sprintf("Account %s not found", req.Email))
		return
	}
	s.accounts[i].Card = strings.TrimSpace(req.CardAlias)
	if strings.EqualFold(s.payment.email, req.Email) {
		s.payment = paymentState{status: statusIdle, message: "Card alias set"}
	}
	ok(w, fmt.Sprintf("Card alias set for %s", req.Email))
}

func (s *Server) skipPayment(w http.ResponseWriter, r *http.Request) {
	var req model.SessionRequest
	if !decode(r, &req) || strings.TrimSpace(req.Email) == "" {
		fail(w, "Email is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipped[req.Email] = true
	if strings.EqualFold(s.payment.email, req.Email) {
		s.payment = paymentState{status: statusIdle, message: "Account skipped"}
	}
	ok(w, "Account skipped")
}

func (s *Server) purchaseAccounts(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	all := append([]model.AccountRow{}, s.accounts...)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"all_accounts":      all,
		"eligible_accounts": model.EligibleForPurchase(all),
	})
}

func (s *Server) startPurchase(w http.ResponseWriter, r *http.Request) {
	var req model.SessionRequest
	if !decode(r, &req) || strings.TrimSpace(req.Email) == "" {
		fail(w, "Email required")
		return
	}
	email := strings.TrimSpace(req.Email)

	s.mu.Lock()
	if _, exists := s.sessions[email]; exists {
		s.mu.Unlock()
		fail(w, "Session already active for this email")
		return
	}
	if s.findAccountLocked(email) < 0 {
		s.mu.Unlock()
		fail(w, "Account not found")
		return
	}
	s.sessions[email] = model.SessionInitializing
	s.mu.Unlock()

	s.spawn(func(ctx context.Context) {
		if !s.sleep(ctx) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.sessions[email] == model.SessionInitializing {
			s.sessions[email] = model.SessionReady
		}
	})
	ok(w, "")
}

func (s *Server) purchaseSessions(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	list := make([]model.SessionRecord, 0, len(s.sessions))
	for email, state := range s.sessions {
		list = append(list, model.SessionRecord{Email: email, Status: state})
	}
	s.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Email < list[j].Email })
	writeJSON(w, http.StatusOK, map[string]any{"sessions": list})
}

func (s *Server) stopPurchase(w http.ResponseWriter, r *http.Request) {
	var req model.SessionRequest
	if !decode(r, &req) {
		fail(w, "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[req.Email]; !exists {
		fail(w, "Session not found")
		return
	}
	delete(s.sessions, req.Email)
	ok(w, "")
}
