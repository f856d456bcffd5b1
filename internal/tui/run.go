package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run drives the console until the operator quits or ctx is cancelled.
// Background jobs keep running on the backend after the console exits.
func Run(ctx context.Context, m Model, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)
	p := tea.NewProgram(m, opts...)

	disconnect := m.connect(p.Send)
	defer disconnect()

	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("console exited: %w", err)
	}
	return nil
}

// connect routes change signals from every source into send.
func (m Model) connect(send func(tea.Msg)) (disconnect func()) {
	n := m.deps.Notifier
	n.Attach(send)
	unsubscribe := m.deps.Console.Subscribe(n.ConsoleEntry)
	m.deps.Registry.Observe(n)
	return func() {
		unsubscribe()
		n.Detach()
	}
}
