// Package cli provides styled terminal output for the headless commands.
package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/jobdeck/internal/model"
)

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠"
	InfoIcon    = "ℹ"
	DeckIcon    = "▣"
)

var (
	accent = lipgloss.Color("#7AA2F7")

	// levelStyles colors console entries by level. Info entries stay plain.
	levelStyles = map[model.Level]lipgloss.Style{
		model.LevelSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("#4ECDC4")),
		model.LevelWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFE66D")),
		model.LevelError:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
		model.LevelSystem:  lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")),
	}
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#95E1D3"))

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent)
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	boxStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#333")).
			Padding(1, 2)
)

// FormatSuccess formats a command outcome line.
func FormatSuccess(message string) string {
	return levelStyles[model.LevelSuccess].Render(SuccessIcon + " " + message)
}

// FormatWarning formats a warning line.
func FormatWarning(message string) string {
	return levelStyles[model.LevelWarning].Render(WarningIcon + " " + message)
}

// FormatInfo formats a notice line.
func FormatInfo(message string) string {
	return noticeStyle.Render(InfoIcon + " " + message)
}

// FormatPrompt formats a question awaiting an answer.
func FormatPrompt(prompt string) string {
	return promptStyle.Render(prompt + " → ")
}

// FormatEntry renders a console entry in its level's color. Entries that
// already carry a status glyph are not given a second one.
func FormatEntry(entry model.LogEntry) string {
	text := entry.Text
	if entry.Level == model.LevelError && !strings.HasPrefix(text, ErrorIcon) {
		text = ErrorIcon + " " + text
	}
	style, ok := levelStyles[entry.Level]
	if !ok {
		return text
	}
	return style.Render(text)
}

// RenderBox renders content under a title in a bordered box.
func RenderBox(title, content string) string {
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), content))
}
