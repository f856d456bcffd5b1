// Package validate checks operator input before it is sent to the backend.
package validate

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/Veraticus/jobdeck/internal/common"
	"github.com/Veraticus/jobdeck/internal/model"
)

// MinPasswordLength is the shortest password the site accepts.
const MinPasswordLength = 8

var geolocationPattern = regexp.MustCompile(`^-?\d+\.?\d*,\s*-?\d+\.?\d*$`)

// Email checks that the address is non-empty and contains an @.
func Email(email string) []string {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return []string{"Valid email address is required"}
	}
	return nil
}

// Password checks length and character classes.
func Password(password string) []string {
	var problems []string
	if len(password) < MinPasswordLength {
		problems = append(problems, "Password must be at least 8 characters")
	}
	var lower, upper, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !lower {
		problems = append(problems, "Password must contain at least 1 lowercase letter")
	}
	if !upper {
		problems = append(problems, "Password must contain at least 1 uppercase letter")
	}
	if !digit {
		problems = append(problems, "Password must contain at least 1 number")
	}
	return problems
}

// Geolocation checks the "lat, long" format. Empty is allowed.
func Geolocation(geo string) []string {
	geo = strings.TrimSpace(geo)
	if geo == "" || geolocationPattern.MatchString(geo) {
		return nil
	}
	return []string{`Geolocation must be in format: "29.452137, -98.642559"`}
}

// Generation validates a generation request. hasLocations reports whether the
// backend has preset locations; without them a custom location is required.
func Generation(req model.GenerationRequest, hasLocations bool) error {
	var problems []string
	problems = append(problems, Email(req.Email)...)
	problems = append(problems, Password(req.Password)...)
	problems = append(problems, Geolocation(req.Geolocation)...)

	hasGeo := strings.TrimSpace(req.Geolocation) != ""
	hasAddress := strings.TrimSpace(req.FullAddress) != ""
	if hasGeo != hasAddress {
		problems = append(problems, "If adding a new location, both Geolocation AND Full Address are required")
	}
	if !hasLocations && !(hasGeo && hasAddress) {
		problems = append(problems, "No locations available. Please add a location or provide one manually.")
	}
	if req.Count < 1 {
		problems = append(problems, "Count must be at least 1")
	}
	return common.NewValidationError(problems)
}

// CardAlias validates a payment card alias assignment.
func CardAlias(email, alias string) error {
	var problems []string
	if strings.TrimSpace(email) == "" {
		problems = append(problems, "Email is required")
	}
	if strings.TrimSpace(alias) == "" {
		problems = append(problems, "Card alias is required")
	}
	return common.NewValidationError(problems)
}

// Merchandise validates a merchandise item.
func Merchandise(item model.Merchandise) error {
	var problems []string
	if strings.TrimSpace(item.Name) == "" {
		problems = append(problems, "Name is required")
	}
	raw := strings.TrimSpace(item.URL)
	if raw == "" {
		problems = append(problems, "URL is required")
	} else if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
		problems = append(problems, "URL must be absolute, e.g. https://example.com/item")
	}
	return common.NewValidationError(problems)
}

// Session validates a session request.
func Session(req model.SessionRequest) error {
	return common.NewValidationError(Email(req.Email))
}
