package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/jobdeck/internal/tui/themes"
)

// PromptModel collects one or more values inline.
type PromptModel struct {
	theme  themes.Theme
	id     string
	title  string
	labels []string
	inputs []textinput.Model
	focus  int
}

// NewPromptModel creates a prompt with one input per label.
func NewPromptModel(id, title string, theme themes.Theme, labels ...string) PromptModel {
	inputs := make([]textinput.Model, len(labels))
	for i, label := range labels {
		in := textinput.New()
		in.Prompt = label + ": "
		in.Width = 48
		inputs[i] = in
	}
	return PromptModel{id: id, title: title, theme: theme, labels: labels, inputs: inputs}
}

// ID identifies the prompt in its result messages.
func (m PromptModel) ID() string {
	return m.id
}

// Focus focuses the first input.
func (m PromptModel) Focus() (PromptModel, tea.Cmd) {
	if len(m.inputs) == 0 {
		return m, nil
	}
	m.focus = 0
	return m, m.inputs[0].Focus()
}

// Values returns the trimmed values.
func (m PromptModel) Values() []string {
	out := make([]string, len(m.inputs))
	for i, in := range m.inputs {
		out[i] = strings.TrimSpace(in.Value())
	}
	return out
}

// Update handles typing. Enter advances and submits on the last input; Esc cancels.
func (m PromptModel) Update(msg tea.Msg) (PromptModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			return m, emit(PromptCancelledMsg{ID: m.id})
		case "enter":
			if m.focus == len(m.inputs)-1 {
				return m, emit(PromptSubmittedMsg{ID: m.id, Values: m.Values()})
			}
			m.inputs[m.focus].Blur()
			m.focus++
			return m, m.inputs[m.focus].Focus()
		}
	}
	if len(m.inputs) == 0 {
		return m, nil
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

// View renders the prompt.
func (m PromptModel) View() string {
	lines := []string{m.theme.Title.Render(m.title)}
	for _, in := range m.inputs {
		lines = append(lines, in.View())
	}
	lines = append(lines, m.theme.StatusPending.Render("Enter to confirm, Esc to cancel"))
	return m.theme.RoundedBox.Render(strings.Join(lines, "\n"))
}
