package tui

import (
	"github.com/Veraticus/jobdeck/internal/model"
)

// topic names a source of change signals.
type topic int

const (
	topicConsole topic = iota
	topicJobs
	topicAccounts
	topicQuota
	topicCount
)

// changedMsg tells the model to re-read one source. The payload is read from
// the source itself, so coalesced signals lose nothing.
type changedMsg struct {
	topic topic
}

// Job action results.
type submitDoneMsg struct {
	err  error
	kind model.JobKind
}

type cancelDoneMsg struct {
	err  error
	kind model.JobKind
}

// Data loading messages.
type locationsLoadedMsg struct {
	err  error
	info model.LocationInfo
}

type paymentStatsLoadedMsg struct {
	err   error
	stats model.PaymentStats
}

type sessionsLoadedMsg struct {
	err      error
	sessions []model.SessionRecord
}

type merchandiseLoadedMsg struct {
	err   error
	items []model.Merchandise
}

// actionDoneMsg reports a one-shot operator action such as setting a card alias.
type actionDoneMsg struct {
	err     error
	success string
	reload  reload
}

// reload is a set of data sources to reload after an action.
type reload int

const (
	reloadAccounts reload = 1 << iota
	reloadMerchandise
	reloadPaymentStats
	reloadSessions
)
