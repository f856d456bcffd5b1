package table

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
)

// Render draws rows as a bordered table for headless output.
func Render(columns []table.Column, rows []table.Row) string {
	headers := make([]string, len(columns))
	for i, c := range columns {
		headers[i] = c.Title
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	emptyStyle := cellStyle.Faint(true).Italic(true)

	t := ltable.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == ltable.HeaderRow {
				return headerStyle
			}
			if row >= 0 && row < len(rows) && IsEmptyRow(rows[row]) {
				return emptyStyle
			}
			return cellStyle
		})
	for _, r := range rows {
		t.Row(r...)
	}
	return t.Render()
}
