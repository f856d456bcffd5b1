package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/jobdeck/internal/model"
	"github.com/Veraticus/jobdeck/internal/tui/components"
	"github.com/Veraticus/jobdeck/internal/validate"
)

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keymap.ForceQuit) {
		m.quitting = true
		return m, tea.Quit
	}

	if m.prompt != nil {
		p, cmd := m.prompt.Update(msg)
		m.prompt = &p
		return m, cmd
	}

	if m.form.Focused() {
		return m.handleFormKey(msg)
	}

	switch {
	case key.Matches(msg, m.keymap.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keymap.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		return m, nil
	case key.Matches(msg, m.keymap.NextTab):
		return m.switchTab(1)
	case key.Matches(msg, m.keymap.PrevTab):
		return m.switchTab(-1)
	case key.Matches(msg, m.keymap.Refresh):
		return m, m.refreshAll()
	case key.Matches(msg, m.keymap.ClearConsole):
		m.deps.Console.Clear()
		return m, nil
	case key.Matches(msg, m.keymap.PageUp):
		m.scrollConsole(-1)
		return m, nil
	case key.Matches(msg, m.keymap.PageDown):
		m.scrollConsole(1)
		return m, nil
	case key.Matches(msg, m.keymap.Up), key.Matches(msg, m.keymap.Down):
		var cmd tea.Cmd
		if m.Kind() == model.KindPurchaseSession {
			m.eligible, cmd = m.eligible.Update(msg)
		} else {
			m.accounts, cmd = m.accounts.Update(msg)
		}
		return m, cmd
	}

	switch m.Kind() {
	case model.KindGeneration:
		return m.generationKey(msg)
	case model.KindCreditRefresh:
		return m.creditsKey(msg)
	case model.KindPaymentSession:
		return m.paymentKey(msg)
	case model.KindPurchaseSession:
		return m.purchaseKey(msg)
	}
	return m, nil
}

// handleFormKey routes keys while a text field owns the keyboard.
func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch {
	case keyMatches(msg, m.keymap.Blur):
		m.form, cmd = m.form.Blur()
		return m, cmd
	case keyMatches(msg, m.keymap.NextTab):
		return m.switchTab(1)
	case keyMatches(msg, m.keymap.PrevTab):
		return m.switchTab(-1)
	case keyMatches(msg, m.keymap.Submit):
		return m, m.submitGeneration()
	case keyMatches(msg, m.keymap.Stop):
		return m, m.cancelJob(model.KindGeneration)
	case keyMatches(msg, m.keymap.Alias):
		m.form, cmd = m.form.ToggleAlias()
		return m, cmd
	case keyMatches(msg, m.keymap.Refresh):
		return m, m.refreshAll()
	case keyMatches(msg, m.keymap.ClearConsole):
		m.deps.Console.Clear()
		return m, nil
	case keyMatches(msg, m.keymap.PageUp):
		m.scrollConsole(-1)
		return m, nil
	case keyMatches(msg, m.keymap.PageDown):
		m.scrollConsole(1)
		return m, nil
	}
	m.form, cmd = m.form.Update(msg)
	return m, cmd
}

func (m Model) generationKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch {
	case key.Matches(msg, m.keymap.Edit):
		m.form, cmd = m.form.Focus()
		return m, cmd
	case key.Matches(msg, m.keymap.Start), key.Matches(msg, m.keymap.Submit):
		return m, m.submitGeneration()
	case key.Matches(msg, m.keymap.Stop):
		return m, m.cancelJob(model.KindGeneration)
	case key.Matches(msg, m.keymap.Alias):
		m.form, cmd = m.form.ToggleAlias()
		return m, cmd
	}
	return m, nil
}

func (m Model) creditsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Start):
		return m, m.submitJob(model.KindCreditRefresh, model.CreditRefreshRequest{})
	case key.Matches(msg, m.keymap.StartFrom):
		row, ok := m.selectedAccount()
		if !ok {
			m.deps.Console.Warning("Select an account to start from.")
			return m, nil
		}
		return m, m.submitJob(model.KindCreditRefresh, model.CreditRefreshRequest{StartEmail: row.Email})
	case key.Matches(msg, m.keymap.Stop):
		return m, m.cancelJob(model.KindCreditRefresh)
	}
	return m, nil
}

func (m Model) paymentKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Start):
		row, ok := m.selectedAccount()
		if !ok {
			m.deps.Console.Warning("Select an account first.")
			return m, nil
		}
		return m.startSession(model.KindPaymentSession, row.Email)
	case key.Matches(msg, m.keymap.StartNext):
		if m.stats.NextAccount == nil {
			m.deps.Console.Info("Every account already has a payment method.")
			return m, nil
		}
		return m.startSession(model.KindPaymentSession, m.stats.NextAccount.Email)
	case key.Matches(msg, m.keymap.Stop):
		return m, m.cancelJob(model.KindPaymentSession)
	case key.Matches(msg, m.keymap.SetAlias):
		row, ok := m.selectedAccount()
		if !ok {
			m.deps.Console.Warning("Select an account first.")
			return m, nil
		}
		m.aliasFor = row.Email
		return m.openPrompt(components.NewPromptModel(promptAlias, "Card alias for "+row.Email, m.theme, "Alias"))
	}
	return m, nil
}

func (m Model) purchaseKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Start):
		row, ok := m.selectedAccount()
		if !ok {
			m.deps.Console.Warning("No eligible account selected. Accounts need a card first.")
			return m, nil
		}
		return m.startSession(model.KindPurchaseSession, row.Email)
	case key.Matches(msg, m.keymap.Stop):
		return m, m.cancelJob(model.KindPurchaseSession)
	case key.Matches(msg, m.keymap.AddMerch):
		return m.openPrompt(components.NewPromptModel(promptMerch, "Add merchandise", m.theme, "Name", "URL"))
	case key.Matches(msg, m.keymap.PrevMerch):
		m.merchIndex = max(0, m.merchIndex-1)
		return m, nil
	case key.Matches(msg, m.keymap.NextMerch):
		m.merchIndex = max(0, min(len(m.merch)-1, m.merchIndex+1))
		return m, nil
	case key.Matches(msg, m.keymap.CopyURL):
		if len(m.merch) == 0 {
			m.deps.Console.Warning("No merchandise to copy.")
			return m, nil
		}
		return m, m.copyToClipboard(m.merch[m.merchIndex].URL)
	}
	return m, nil
}

func (m Model) startSession(kind model.JobKind, email string) (tea.Model, tea.Cmd) {
	req := model.SessionRequest{Email: email}
	if err := validate.Session(req); err != nil {
		m.deps.Console.Error(err.Error())
		return m, nil
	}
	return m, m.submitJob(kind, req)
}

func (m Model) openPrompt(p components.PromptModel) (tea.Model, tea.Cmd) {
	p, cmd := p.Focus()
	m.prompt = &p
	return m, cmd
}

// submitGeneration validates the form locally before anything reaches the
// backend. Every problem is reported as a single console entry.
func (m Model) submitGeneration() tea.Cmd {
	req, err := m.form.Request()
	if err == nil {
		err = validate.Generation(req, m.locations.HasLocations)
	}
	if err == nil {
		err = m.deps.Quota.Allow(req.Email, req.IsGmail, req.Count)
	}
	if err != nil {
		m.deps.Console.Error(err.Error())
		return nil
	}
	return m.submitJob(model.KindGeneration, req)
}

func (m Model) handlePrompt(msg components.PromptSubmittedMsg) tea.Cmd {
	switch msg.ID {
	case promptAlias:
		alias := msg.Values[0]
		if err := validate.CardAlias(m.aliasFor, alias); err != nil {
			m.deps.Console.Error(err.Error())
			return nil
		}
		return m.setCardAlias(m.aliasFor, alias)
	case promptMerch:
		item := model.Merchandise{Name: msg.Values[0], URL: msg.Values[1]}
		if err := validate.Merchandise(item); err != nil {
			m.deps.Console.Error(err.Error())
			return nil
		}
		return m.addMerchandise(item)
	}
	return nil
}

func (m Model) refreshAll() tea.Cmd {
	return tea.Batch(
		m.refreshAccounts(),
		m.loadLocations(),
		m.loadPaymentStats(),
		m.loadSessions(),
		m.loadMerchandise(),
	)
}

func (m *Model) scrollConsole(dir int) {
	m.viewport.SetYOffset(m.viewport.YOffset + dir*max(1, m.viewport.Height/2))
}
