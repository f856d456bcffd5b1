package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/jobdeck/internal/job"
	"github.com/Veraticus/jobdeck/internal/model"
	"github.com/Veraticus/jobdeck/internal/tui/themes"
)

// JobPanelModel shows the state and progress of one job kind.
type JobPanelModel struct {
	theme    themes.Theme
	summary  *model.RunSummary
	snapshot model.ProgressSnapshot
	bar      progress.Model
	spinner  spinner.Model
	kind     model.JobKind
	state    job.State
	width    int
	active   bool
}

// NewJobPanelModel creates a panel for kind.
func NewJobPanelModel(kind model.JobKind, theme themes.Theme) JobPanelModel {
	bar := progress.New(progress.WithSolidFill(string(theme.Primary)))
	bar.ShowPercentage = false
	bar.Width = 40

	spin := spinner.New(spinner.WithSpinner(spinner.Dot))
	spin.Style = lipgloss.NewStyle().Foreground(theme.Primary)

	return JobPanelModel{
		kind:    kind,
		theme:   theme,
		bar:     bar,
		spinner: spin,
	}
}

// SetJob replaces the displayed job data. active reports whether a run
// snapshot exists.
func (m JobPanelModel) SetJob(state job.State, snap model.ProgressSnapshot, active bool, summary *model.RunSummary) JobPanelModel {
	m.state = state
	m.snapshot = snap
	m.active = active
	m.summary = summary
	return m
}

// State returns the displayed controller state.
func (m JobPanelModel) State() job.State {
	return m.state
}

// Progress returns the displayed progress.
func (m JobPanelModel) Progress() job.Progress {
	if !m.active {
		return job.Progress{}
	}
	return job.Progress{Completed: m.snapshot.Completed, Total: m.snapshot.Total}
}

// Tick starts the busy spinner.
func (m JobPanelModel) Tick() tea.Cmd {
	return m.spinner.Tick
}

// Resize sets the panel width.
func (m *JobPanelModel) Resize(width int) {
	m.width = width
	m.bar.Width = max(10, min(width-24, 60))
}

// Update handles spinner ticks. The spinner stops ticking while idle.
func (m JobPanelModel) Update(msg tea.Msg) (JobPanelModel, tea.Cmd) {
	if tick, ok := msg.(spinner.TickMsg); ok && m.state.Busy() {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(tick)
		return m, cmd
	}
	return m, nil
}

// View renders the panel.
func (m JobPanelModel) View() string {
	lines := []string{m.renderHeader()}

	if m.active && !m.kind.IsSession() {
		p := m.Progress()
		lines = append(lines, fmt.Sprintf("%s %s (%d%%)", m.bar.ViewAs(p.Fraction()), p.Label(), p.Percent()))
	}
	if m.active && m.snapshot.CurrentEntity != "" {
		lines = append(lines, m.theme.Subtitle.Render("Current: ")+m.snapshot.CurrentEntity)
	}
	if !m.state.Busy() && m.summary != nil {
		lines = append(lines, m.theme.StatusPending.Render("Last run: "+job.SummaryLine(*m.summary)))
	}
	return strings.Join(lines, "\n")
}

func (m JobPanelModel) renderHeader() string {
	title := m.theme.Bold.Render(m.kind.Title())
	var status string
	switch m.state {
	case job.StateSubmitting:
		status = m.spinner.View() + " " + m.theme.StatusInfo.Render("Starting...")
	case job.StateRunning:
		status = m.spinner.View() + " " + m.theme.StatusInfo.Render("Running")
	case job.StateCancelPending:
		status = m.spinner.View() + " " + m.theme.StatusWarning.Render("Stopping...")
	case job.StateComplete:
		status = m.theme.StatusSuccess.Render("✓ Complete")
	case job.StateStopped:
		status = m.theme.StatusWarning.Render("■ Stopped")
	case job.StateError:
		status = m.theme.StatusError.Render("✗ Error")
	default:
		status = m.theme.StatusPending.Render("Idle")
	}
	return title + "  " + status
}
