package model

import (
	"strconv"
	"strings"
)

// AccountRow is one row of the account table as returned by the backend.
type AccountRow struct {
	Email        string `json:"email"`
	FullName     string `json:"full_name"`
	Card         string `json:"card"`
	RemainCredit string `json:"remain_credit"`
	FullAddress  string `json:"full_address"`
}

// HasPayment reports whether a card alias is assigned.
func (a AccountRow) HasPayment() bool {
	return strings.TrimSpace(a.Card) != ""
}

// HasCredit reports whether the remaining credit parses as a positive number.
func (a AccountRow) HasCredit() bool {
	credit, err := strconv.ParseFloat(strings.TrimSpace(a.RemainCredit), 64)
	return err == nil && credit > 0
}

// AccountStats summarizes an account set.
type AccountStats struct {
	Total       int
	WithCredit  int
	WithPayment int
}

// SummarizeAccounts computes stats over a full account set.
func SummarizeAccounts(rows []AccountRow) AccountStats {
	stats := AccountStats{Total: len(rows)}
	for _, row := range rows {
		if row.HasCredit() {
			stats.WithCredit++
		}
		if row.HasPayment() {
			stats.WithPayment++
		}
	}
	return stats
}

// EligibleForPurchase returns the accounts that have a card assigned.
func EligibleForPurchase(rows []AccountRow) []AccountRow {
	eligible := make([]AccountRow, 0, len(rows))
	for _, row := range rows {
		if row.HasPayment() {
			eligible = append(eligible, row)
		}
	}
	return eligible
}

// QuotaResult is the server-derived maximum submission count for one identity.
type QuotaResult struct {
	Max                int `json:"max"`
	DuplicatesFiltered int `json:"duplicates_filtered"`
}

// SessionState is the state of an open browser session.
type SessionState string

// Session states.
const (
	SessionInitializing SessionState = "initializing"
	SessionReady        SessionState = "ready"
)

// SessionRecord describes a browser session open on the backend.
type SessionRecord struct {
	Email  string       `json:"email"`
	Status SessionState `json:"status"`
}

// Ready reports whether the session finished initializing.
func (s SessionRecord) Ready() bool {
	return s.Status == SessionReady
}

// Merchandise is a purchasable item the operator can copy into a session.
type Merchandise struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// LocationInfo reports whether preset locations are available for generation.
type LocationInfo struct {
	HasLocations bool `json:"has_locations"`
	Count        int  `json:"count"`
}

// PaymentAccount is the next account suggested for payment setup.
type PaymentAccount struct {
	Email       string `json:"email"`
	FullName    string `json:"full_name"`
	PhoneNumber string `json:"phone_number"`
}

// PaymentStats summarizes payment setup progress.
type PaymentStats struct {
	NextAccount *PaymentAccount `json:"next_account"`
	Total       int             `json:"total"`
	NoPayment   int             `json:"no_payment"`
}
