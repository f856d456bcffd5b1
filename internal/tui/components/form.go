package components

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/jobdeck/internal/common"
	"github.com/Veraticus/jobdeck/internal/model"
	"github.com/Veraticus/jobdeck/internal/quota"
	"github.com/Veraticus/jobdeck/internal/tui/themes"
)

// Form field indexes.
const (
	FieldEmail = iota
	FieldPassword
	FieldGeolocation
	FieldAddress
	FieldCount
	fieldCount
)

var fieldLabels = [fieldCount]string{
	"Email",
	"Password",
	"Geolocation",
	"Full address",
	"Count",
}

// GenerationFormModel is the account generation form.
type GenerationFormModel struct {
	theme     themes.Theme
	aliasable *bool
	quota     quota.State
	inputs    []textinput.Model
	locations model.LocationInfo
	focus     int
	focused   bool
	disabled  bool
}

// NewGenerationFormModel creates an empty form.
func NewGenerationFormModel(theme themes.Theme) GenerationFormModel {
	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		in := textinput.New()
		in.Prompt = ""
		in.Width = 40
		inputs[i] = in
	}
	inputs[FieldEmail].Placeholder = "name@gmail.com"
	inputs[FieldEmail].CharLimit = 254
	inputs[FieldPassword].Placeholder = "at least 8 chars, upper, lower, digit"
	inputs[FieldPassword].EchoMode = textinput.EchoPassword
	inputs[FieldPassword].EchoCharacter = '•'
	inputs[FieldGeolocation].Placeholder = "29.452137, -98.642559"
	inputs[FieldAddress].Placeholder = "street, city, state zip"
	inputs[FieldCount].Placeholder = "1"
	inputs[FieldCount].CharLimit = 3
	inputs[FieldCount].SetValue("1")

	return GenerationFormModel{
		theme:  theme,
		inputs: inputs,
	}
}

// Focused reports whether a field has keyboard focus.
func (m GenerationFormModel) Focused() bool {
	return m.focused
}

// FocusedField returns the index of the active field.
func (m GenerationFormModel) FocusedField() int {
	return m.focus
}

// Focus gives the active field keyboard focus.
func (m GenerationFormModel) Focus() (GenerationFormModel, tea.Cmd) {
	if m.disabled {
		return m, nil
	}
	m.focused = true
	return m, m.inputs[m.focus].Focus()
}

// Blur removes keyboard focus from the form.
func (m GenerationFormModel) Blur() (GenerationFormModel, tea.Cmd) {
	m.focused = false
	m.inputs[m.focus].Blur()
	if m.focus == FieldEmail {
		return m, emit(IdentityBlurredMsg{})
	}
	return m, nil
}

// SetDisabled locks the form while a generation run is active.
func (m GenerationFormModel) SetDisabled(disabled bool) GenerationFormModel {
	m.disabled = disabled
	if disabled {
		m.focused = false
		m.inputs[m.focus].Blur()
	}
	return m
}

// SetLocations records the backend's preset location availability.
func (m GenerationFormModel) SetLocations(info model.LocationInfo) GenerationFormModel {
	m.locations = info
	return m
}

// SetQuota records the quota for the entered identity and clamps the count.
func (m GenerationFormModel) SetQuota(state quota.State) GenerationFormModel {
	m.quota = state
	if state.Status != quota.Ready || !strings.EqualFold(state.Email, m.Email()) {
		return m
	}
	if n, err := strconv.Atoi(strings.TrimSpace(m.inputs[FieldCount].Value())); err == nil && n > state.Result.Max {
		m.inputs[FieldCount].SetValue(strconv.Itoa(state.Result.Max))
	}
	return m
}

// SetValue sets a field's value.
func (m GenerationFormModel) SetValue(field int, value string) GenerationFormModel {
	m.inputs[field].SetValue(value)
	return m
}

// Email returns the trimmed email.
func (m GenerationFormModel) Email() string {
	return strings.TrimSpace(m.inputs[FieldEmail].Value())
}

// Aliasable reports whether dot aliasing applies, honoring the operator override.
func (m GenerationFormModel) Aliasable() bool {
	if m.aliasable != nil {
		return *m.aliasable
	}
	return quota.IsAliasable(m.Email())
}

// ToggleAlias flips the aliasing override.
func (m GenerationFormModel) ToggleAlias() (GenerationFormModel, tea.Cmd) {
	v := !m.Aliasable()
	m.aliasable = &v
	return m, m.identityChanged()
}

// Request builds the generation request. An unparsable count is reported as
// a validation problem.
func (m GenerationFormModel) Request() (model.GenerationRequest, error) {
	req := model.GenerationRequest{
		Email:       m.Email(),
		Password:    m.inputs[FieldPassword].Value(),
		Geolocation: strings.TrimSpace(m.inputs[FieldGeolocation].Value()),
		FullAddress: strings.TrimSpace(m.inputs[FieldAddress].Value()),
		IsGmail:     m.Aliasable(),
	}
	raw := strings.TrimSpace(m.inputs[FieldCount].Value())
	if raw == "" {
		raw = "1"
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return req, common.NewValidationError([]string{"Count must be a number"})
	}
	req.Count = n
	return req, nil
}

// Update handles field navigation and typing.
func (m GenerationFormModel) Update(msg tea.Msg) (GenerationFormModel, tea.Cmd) {
	if !m.focused {
		return m, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "up":
			return m.move(-1)
		case "down":
			return m.move(1)
		case "enter":
			if m.focus == FieldCount {
				return m, emit(FormSubmittedMsg{})
			}
			return m.move(1)
		}
	}

	before := m.Email()
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	if m.focus == FieldEmail && m.Email() != before {
		return m, tea.Batch(cmd, m.identityChanged())
	}
	return m, cmd
}

func (m GenerationFormModel) move(delta int) (GenerationFormModel, tea.Cmd) {
	next := (m.focus + delta + fieldCount) % fieldCount
	if next == m.focus {
		return m, nil
	}
	leaving := m.focus
	m.inputs[m.focus].Blur()
	m.focus = next
	cmds := []tea.Cmd{m.inputs[m.focus].Focus()}
	if leaving == FieldEmail {
		cmds = append(cmds, emit(IdentityBlurredMsg{}))
	}
	return m, tea.Batch(cmds...)
}

func (m GenerationFormModel) identityChanged() tea.Cmd {
	return emit(IdentityChangedMsg{Email: m.Email(), Aliasable: m.Aliasable()})
}

// View renders the form.
func (m GenerationFormModel) View() string {
	label := lipgloss.NewStyle().Width(14).Foreground(m.theme.Muted)
	active := label.Foreground(m.theme.Primary).Bold(true)

	rows := make([]string, 0, fieldCount+2)
	for i, in := range m.inputs {
		l := label
		if m.focused && i == m.focus {
			l = active
		}
		row := l.Render(fieldLabels[i]) + in.View()
		switch i {
		case FieldEmail:
			row += "  " + m.renderAliasing()
		case FieldCount:
			row += "  " + m.renderQuota()
		}
		rows = append(rows, row)
	}
	rows = append(rows, m.renderLocations())
	if m.disabled {
		rows = append(rows, m.theme.StatusPending.Render("Form locked while generation runs."))
	}
	return strings.Join(rows, "\n")
}

func (m GenerationFormModel) renderAliasing() string {
	if m.Aliasable() {
		return m.theme.StatusPending.Render("dot aliasing on")
	}
	return m.theme.StatusPending.Render("dot aliasing off")
}

func (m GenerationFormModel) renderQuota() string {
	state := m.quota
	if !strings.EqualFold(state.Email, m.Email()) {
		state = quota.State{Status: quota.NeedsIdentity}
		if m.Email() != "" {
			state.Status = quota.Calculating
		}
	}
	hint := state.Hint()
	switch state.Status {
	case quota.Exhausted, quota.Failed:
		return m.theme.StatusError.Render(hint)
	case quota.Ready:
		return m.theme.StatusSuccess.Render(hint)
	default:
		return m.theme.StatusPending.Render(hint)
	}
}

func (m GenerationFormModel) renderLocations() string {
	if m.locations.HasLocations {
		return m.theme.Subtitle.Render(fmt.Sprintf("Location optional: %d preset locations available.", m.locations.Count))
	}
	return m.theme.StatusWarning.Render("Location required: no preset locations available.")
}

func emit(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}
