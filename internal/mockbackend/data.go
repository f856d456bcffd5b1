package mockbackend

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Veraticus/jobdeck/internal/model"
	"github.com/Veraticus/jobdeck/internal/validate"
)

// maxGapBits caps the dot positions considered so variation lists stay small.
const maxGapBits = 12

// dotVariations lists every way of placing dots between the characters of
// the local part. Dots in the input are ignored.
func dotVariations(email string) []string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return nil
	}
	local := strings.ReplaceAll(strings.ToLower(email[:at]), ".", "")
	domain := strings.ToLower(email[at+1:])
	if local == "" {
		return nil
	}

	chars := []rune(local)
	gaps := min(len(chars)-1, maxGapBits)
	out := make([]string, 0, 1<<gaps)
	for mask := 0; mask < 1<<gaps; mask++ {
		var b strings.Builder
		for i, ch := range chars {
			b.WriteRune(ch)
			if i < gaps && mask&(1<<i) != 0 {
				b.WriteByte('.')
			}
		}
		b.WriteByte('@')
		b.WriteString(domain)
		out = append(out, b.String())
	}
	return out
}

func (s *Server) existingLocked() map[string]bool {
	seen := make(map[string]bool, len(s.accounts))
	for _, row := range s.accounts {
		seen[strings.ToLower(row.Email)] = true
	}
	return seen
}

// availableLocked returns the unused addresses a generation for email may register.
func (s *Server) availableLocked(email string, aliasable bool) []string {
	existing := s.existingLocked()
	candidates := []string{strings.ToLower(email)}
	if aliasable {
		candidates = dotVariations(email)
	}
	available := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if !existing[c] {
			available = append(available, c)
		}
	}
	return available
}

func (s *Server) calculateMax(w http.ResponseWriter, r *http.Request) {
	var req model.SessionRequest
	if !decode(r, &req) || len(validate.Email(req.Email)) > 0 {
		writeJSON(w, http.StatusOK, map[string]any{"max": 0, "error": "Invalid email"})
		return
	}
	email := strings.TrimSpace(req.Email)
	aliasable := strings.HasSuffix(strings.ToLower(email), "@gmail.com") ||
		strings.HasSuffix(strings.ToLower(email), "@googlemail.com")

	s.mu.Lock()
	available := s.availableLocked(email, aliasable)
	s.mu.Unlock()

	possible := 1
	if aliasable {
		possible = len(dotVariations(email))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"max":                 len(available),
		"total_possible":      possible,
		"is_gmail":            aliasable,
		"duplicates_filtered": possible - len(available),
	})
}

func (s *Server) getData(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	rows := append([]model.AccountRow{}, s.accounts...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) getLocations(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	n := s.locations
	s.mu.Unlock()

	locations := make([]map[string]string, 0, n)
	for i := range n {
		locations = append(locations, map[string]string{
			"geolocation": fmt.Sprintf("29.%06d, -98.642559", 452137+i),
			"address":     fmt.Sprintf("%d Preset Way", 100+i),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"locations":     locations,
		"count":         n,
		"has_locations": n > 0,
	})
}

func (s *Server) getMerchandise(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	items := append([]model.Merchandise{}, s.merchandise...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"merchandise": items})
}

func (s *Server) addMerchandise(w http.ResponseWriter, r *http.Request) {
	var item model.Merchandise
	if !decode(r, &item) || validate.Merchandise(item) != nil {
		fail(w, "Name and URL required")
		return
	}
	s.mu.Lock()
	s.merchandise = append(s.merchandise, model.Merchandise{
		Name: strings.TrimSpace(item.Name),
		URL:  strings.TrimSpace(item.URL),
	})
	s.mu.Unlock()
	ok(w, "")
}

func (s *Server) getConfig(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	base := s.baseURL
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"base_url": base})
}

func (s *Server) setConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BaseURL string `json:"base_url"`
	}
	if !decode(r, &req) {
		fail(w, "Invalid request body")
		return
	}
	s.mu.Lock()
	if req.BaseURL != "" {
		s.baseURL = strings.TrimRight(req.BaseURL, "/")
	}
	cfg := map[string]string{"base_url": s.baseURL}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "config": cfg})
}

// SampleAccounts returns a small account table for demos.
func SampleAccounts() []model.AccountRow {
	return []model.AccountRow{
		{Email: "ada.lovelace@gmail.com", FullName: "Ada Lovelace", Card: "visa-0142", RemainCredit: "12.50", FullAddress: "12 Analytical St"},
		{Email: "grace.hopper@gmail.com", FullName: "Grace Hopper", RemainCredit: "0", FullAddress: "1 Cobol Ct"},
		{Email: "alan.turing@example.com", FullName: "Alan Turing", Card: "mc-7781", RemainCredit: "3.00", FullAddress: "4 Enigma Rd"},
		{Email: "edsger@example.com", FullName: "Edsger Dijkstra", RemainCredit: "", FullAddress: "9 Shortest Path"},
	}
}
