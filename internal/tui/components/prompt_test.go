package components

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tuitest "github.com/Veraticus/jobdeck/internal/tui/testing"
	"github.com/Veraticus/jobdeck/internal/tui/themes"
)

func TestPrompt_SubmitsAllValues(t *testing.T) {
	p := NewPromptModel("merch", "Add merchandise", themes.Default, "Name", "URL")
	p, _ = p.Focus()
	assert.Equal(t, "merch", p.ID())

	var cmd tea.Cmd
	for _, k := range tuitest.Type("Shoes") {
		p, _ = p.Update(k)
	}
	p, cmd = p.Update(tuitest.KeyEnter())
	for _, msg := range collect(cmd) {
		_, submitted := msg.(PromptSubmittedMsg)
		require.False(t, submitted, "enter on the first input should advance")
	}
	for _, k := range tuitest.Type("https://shop.example/shoes") {
		p, _ = p.Update(k)
	}
	_, cmd = p.Update(tuitest.KeyEnter())

	assert.Equal(t, []tea.Msg{PromptSubmittedMsg{
		ID:     "merch",
		Values: []string{"Shoes", "https://shop.example/shoes"},
	}}, collect(cmd))
}

func TestPrompt_EscCancels(t *testing.T) {
	p := NewPromptModel("alias", "Card alias", themes.Default, "Alias")
	p, _ = p.Focus()

	_, cmd := p.Update(tuitest.KeyEsc())
	assert.Equal(t, []tea.Msg{PromptCancelledMsg{ID: "alias"}}, collect(cmd))
}

func TestPrompt_View(t *testing.T) {
	p := NewPromptModel("alias", "Card alias for a@example.com", themes.Default, "Alias")
	view := tuitest.StripANSI(p.View())
	assert.True(t, tuitest.ContainsInOrder(view, "Card alias for a@example.com", "Alias:", "Enter to confirm"))
}
