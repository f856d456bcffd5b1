package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/jobdeck/internal/model"
)

// Every backend call runs inside a command so Update never blocks.

func (m Model) submitJob(kind model.JobKind, req any) tea.Cmd {
	ctrl, err := m.deps.Registry.Get(kind)
	if err != nil {
		return func() tea.Msg { return submitDoneMsg{kind: kind, err: err} }
	}
	timeout := m.cfg.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return submitDoneMsg{kind: kind, err: ctrl.Submit(ctx, req)}
	}
}

func (m Model) cancelJob(kind model.JobKind) tea.Cmd {
	ctrl, err := m.deps.Registry.Get(kind)
	if err != nil {
		return func() tea.Msg { return cancelDoneMsg{kind: kind, err: err} }
	}
	timeout := m.cfg.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return cancelDoneMsg{kind: kind, err: ctrl.RequestCancel(ctx)}
	}
}

func (m Model) refreshAccounts() tea.Cmd {
	src := m.deps.Accounts
	timeout := m.cfg.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		// The result arrives through the source's update signal.
		_ = src.Refresh(ctx)
		return nil
	}
}

func (m Model) loadLocations() tea.Cmd {
	be, timeout := m.deps.Backend, m.cfg.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		info, err := be.Locations(ctx)
		return locationsLoadedMsg{info: info, err: err}
	}
}

func (m Model) loadPaymentStats() tea.Cmd {
	be, timeout := m.deps.Backend, m.cfg.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		stats, err := be.PaymentStats(ctx)
		return paymentStatsLoadedMsg{stats: stats, err: err}
	}
}

func (m Model) loadSessions() tea.Cmd {
	be, timeout := m.deps.Backend, m.cfg.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		sessions, err := be.Sessions(ctx)
		return sessionsLoadedMsg{sessions: sessions, err: err}
	}
}

func (m Model) loadMerchandise() tea.Cmd {
	be, timeout := m.deps.Backend, m.cfg.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		items, err := be.Merchandise(ctx)
		return merchandiseLoadedMsg{items: items, err: err}
	}
}

func (m Model) setCardAlias(email, alias string) tea.Cmd {
	be, timeout := m.deps.Backend, m.cfg.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := be.SetCardAlias(ctx, email, alias); err != nil {
			return actionDoneMsg{err: fmt.Errorf("failed to set card alias for %s: %w", email, err)}
		}
		return actionDoneMsg{
			success: fmt.Sprintf("Card alias %q saved for %s.", alias, email),
			reload:  reloadAccounts | reloadPaymentStats,
		}
	}
}

func (m Model) addMerchandise(item model.Merchandise) tea.Cmd {
	be, timeout := m.deps.Backend, m.cfg.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := be.AddMerchandise(ctx, item); err != nil {
			return actionDoneMsg{err: fmt.Errorf("failed to add merchandise: %w", err)}
		}
		return actionDoneMsg{success: fmt.Sprintf("Merchandise %q added.", item.Name), reload: reloadMerchandise}
	}
}

func (m Model) copyToClipboard(text string) tea.Cmd {
	write := m.cfg.Clipboard
	return func() tea.Msg {
		if err := write(text); err != nil {
			return actionDoneMsg{err: fmt.Errorf("failed to copy to clipboard: %w", err)}
		}
		return actionDoneMsg{success: "Copied " + text}
	}
}

func (m Model) reloadCmds(r reload) []tea.Cmd {
	var cmds []tea.Cmd
	if r&reloadAccounts != 0 {
		cmds = append(cmds, m.refreshAccounts())
	}
	if r&reloadMerchandise != 0 {
		cmds = append(cmds, m.loadMerchandise())
	}
	if r&reloadPaymentStats != 0 {
		cmds = append(cmds, m.loadPaymentStats())
	}
	if r&reloadSessions != 0 {
		cmds = append(cmds, m.loadSessions())
	}
	return cmds
}
