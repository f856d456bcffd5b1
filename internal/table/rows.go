// Package table turns backend entity sets into displayable rows. It keeps no
// state between renders: every call rebuilds the rows from the full input.
package table

import (
	"github.com/charmbracelet/bubbles/table"

	"github.com/Veraticus/jobdeck/internal/model"
)

// Empty-state rows.
const (
	EmptyAccounts    = "No accounts found."
	EmptySessions    = "No active sessions."
	EmptyMerchandise = "No merchandise saved."
)

// Annotation markers.
const (
	CurrentMarker   = "▶ "
	NoPaymentMarker = "no payment"
	CreditMarker    = " ✓"
)

// Marks are the render-time annotations of one account row.
type Marks struct {
	Current   bool
	NoPayment bool
	HasCredit bool
}

// MarksFor computes the annotations of row given the identity currently being
// worked on by a running job.
func MarksFor(row model.AccountRow, current string) Marks {
	return Marks{
		Current:   current != "" && row.Email == current,
		NoPayment: !row.HasPayment(),
		HasCredit: row.HasCredit(),
	}
}

// AccountColumns are the columns of the account table.
func AccountColumns() []table.Column {
	return []table.Column{
		{Title: "Email", Width: 34},
		{Title: "Name", Width: 22},
		{Title: "Card", Width: 14},
		{Title: "Credit", Width: 10},
		{Title: "Address", Width: 36},
	}
}

// AccountRows renders every account. current is the email of the entity a
// running job is processing, or "".
func AccountRows(rows []model.AccountRow, current string) []table.Row {
	if len(rows) == 0 {
		return []table.Row{emptyRow(EmptyAccounts, len(AccountColumns()))}
	}

	out := make([]table.Row, 0, len(rows))
	for _, row := range rows {
		marks := MarksFor(row, current)

		email := row.Email
		if marks.Current {
			email = CurrentMarker + email
		}
		card := row.Card
		if marks.NoPayment {
			card = NoPaymentMarker
		}
		credit := row.RemainCredit
		if marks.HasCredit {
			credit += CreditMarker
		}

		out = append(out, table.Row{email, row.FullName, card, credit, row.FullAddress})
	}
	return out
}

// SessionColumns are the columns of the purchase session table.
func SessionColumns() []table.Column {
	return []table.Column{
		{Title: "Email", Width: 34},
		{Title: "Status", Width: 20},
	}
}

// SessionLabel is the display text of a session state.
func SessionLabel(s model.SessionRecord) string {
	if s.Ready() {
		return "Ready for Purchase"
	}
	return "Initializing..."
}

// SessionRows renders open purchase sessions.
func SessionRows(sessions []model.SessionRecord) []table.Row {
	if len(sessions) == 0 {
		return []table.Row{emptyRow(EmptySessions, len(SessionColumns()))}
	}
	out := make([]table.Row, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, table.Row{s.Email, SessionLabel(s)})
	}
	return out
}

// MerchandiseColumns are the columns of the merchandise table.
func MerchandiseColumns() []table.Column {
	return []table.Column{
		{Title: "Name", Width: 28},
		{Title: "URL", Width: 60},
	}
}

// MerchandiseRows renders saved merchandise.
func MerchandiseRows(items []model.Merchandise) []table.Row {
	if len(items) == 0 {
		return []table.Row{emptyRow(EmptyMerchandise, len(MerchandiseColumns()))}
	}
	out := make([]table.Row, 0, len(items))
	for _, item := range items {
		out = append(out, table.Row{item.Name, item.URL})
	}
	return out
}

// IsEmptyRow reports whether row is an empty-state placeholder.
func IsEmptyRow(row table.Row) bool {
	if len(row) == 0 {
		return false
	}
	switch row[0] {
	case EmptyAccounts, EmptySessions, EmptyMerchandise:
		return true
	}
	return false
}

func emptyRow(text string, width int) table.Row {
	row := make(table.Row, width)
	row[0] = text
	return row
}
