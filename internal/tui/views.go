package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/jobdeck/internal/cli"
	"github.com/Veraticus/jobdeck/internal/model"
	"github.com/Veraticus/jobdeck/internal/table"
)

// View renders the console.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	sections := []string{
		m.renderHeader(),
		m.renderTabs(),
		m.renderBody(),
		m.panels[m.tab].View(),
	}
	if m.prompt != nil {
		sections = append(sections, m.prompt.View())
	}
	sections = append(sections, m.renderConsole(), m.help.View(m.keymap))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	title := m.theme.Title.Render(cli.DeckIcon + " jobdeck")

	var stats string
	switch {
	case m.snapshot.Err != nil:
		stats = m.theme.StatusError.Render("Accounts unavailable: " + m.snapshot.Err.Error())
	case m.snapshot.Seq == 0:
		stats = m.theme.StatusPending.Render("Loading accounts...")
	default:
		stats = m.theme.Subtitle.Render(fmt.Sprintf("%d accounts · %d with credit",
			m.snapshot.Stats.Total, m.snapshot.Stats.WithCredit))
	}

	right := ""
	if m.cfg.BackendURL != "" {
		right = lipgloss.NewStyle().Foreground(m.theme.Muted).Render(m.cfg.BackendURL)
	}

	left := title + "  " + stats
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return left
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) renderTabs() string {
	tabs := make([]string, len(model.AllKinds))
	for i, kind := range model.AllKinds {
		label := kind.Title()
		if m.panels[i].State().Busy() {
			label += " ●"
		}
		if i == m.tab {
			tabs[i] = m.theme.ActiveTab.Render(label)
		} else {
			tabs[i] = m.theme.InactiveTab.Render(label)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderBody() string {
	switch m.Kind() {
	case model.KindGeneration:
		return m.form.View()
	case model.KindCreditRefresh:
		return m.accounts.View()
	case model.KindPaymentSession:
		return lipgloss.JoinVertical(lipgloss.Left, m.renderPaymentStats(), m.accounts.View())
	case model.KindPurchaseSession:
		return lipgloss.JoinVertical(lipgloss.Left,
			m.eligible.View(),
			table.Render(table.SessionColumns(), table.SessionRows(m.sessions)),
			m.renderMerchandise(),
		)
	}
	return ""
}

func (m Model) renderPaymentStats() string {
	line := fmt.Sprintf("%d of %d accounts without payment", m.stats.NoPayment, m.stats.Total)
	if m.stats.NextAccount != nil {
		line += " · next: " + m.stats.NextAccount.Email
	}
	return m.theme.Subtitle.Render(line)
}

func (m Model) renderMerchandise() string {
	if len(m.merch) == 0 {
		return m.theme.StatusPending.Render(table.EmptyMerchandise)
	}
	item := m.merch[m.merchIndex]
	return fmt.Sprintf("%s %s %s",
		m.theme.Bold.Render(fmt.Sprintf("Merch %d/%d:", m.merchIndex+1, len(m.merch))),
		item.Name,
		lipgloss.NewStyle().Foreground(m.theme.Muted).Render(item.URL),
	)
}

func (m Model) renderConsole() string {
	return m.theme.BorderedBox.
		Width(max(20, m.width-2)).
		Render(m.viewport.View())
}
