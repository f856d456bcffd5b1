package console

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Veraticus/jobdeck/internal/model"
	"github.com/charmbracelet/lipgloss"
)

// TimeFormat is the timestamp layout used in rendered lines.
const TimeFormat = "15:04:05"

// Styles maps levels to lipgloss styles.
type Styles struct {
	Info    lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Success lipgloss.Style
	System  lipgloss.Style
}

// DefaultStyles returns the standard console palette.
func DefaultStyles() Styles {
	return Styles{
		Info:    lipgloss.NewStyle().Foreground(lipgloss.Color("#3b82f6")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("#f59e0b")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444")).Bold(true),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("#10b981")),
		System:  lipgloss.NewStyle().Foreground(lipgloss.Color("#737373")).Italic(true),
	}
}

func (s Styles) forLevel(level model.Level) lipgloss.Style {
	switch level {
	case model.LevelWarning:
		return s.Warning
	case model.LevelError:
		return s.Error
	case model.LevelSuccess:
		return s.Success
	case model.LevelSystem:
		return s.System
	default:
		return s.Info
	}
}

// Format renders an entry as plain text.
func Format(e Entry) string {
	return fmt.Sprintf("[%s] %s", e.Time.Format(TimeFormat), e.Text)
}

// Styled renders an entry with the style for its level.
func Styled(e Entry, styles Styles) string {
	return styles.forLevel(e.Level).Render(Format(e))
}

// RenderAll renders entries one per line.
func RenderAll(entries []Entry, styles Styles) string {
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = Styled(e, styles)
	}
	return strings.Join(lines, "\n")
}

// LinePrinter returns a subscriber that writes each entry to w.
func LinePrinter(w io.Writer, styles Styles) func(Entry) {
	return func(e Entry) {
		if _, err := fmt.Fprintln(w, Styled(e, styles)); err != nil {
			slog.Warn("Failed to write console line", "error", err)
		}
	}
}
