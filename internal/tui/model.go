// Package tui is the interactive operator console.
package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	btable "github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/jobdeck/internal/common"
	"github.com/Veraticus/jobdeck/internal/console"
	"github.com/Veraticus/jobdeck/internal/model"
	"github.com/Veraticus/jobdeck/internal/table"
	"github.com/Veraticus/jobdeck/internal/tui/components"
	"github.com/Veraticus/jobdeck/internal/tui/themes"
)

// Prompt ids.
const (
	promptAlias = "alias"
	promptMerch = "merch"
)

// Model holds the console state.
type Model struct {
	theme      themes.Theme
	deps       Deps
	prompt     *components.PromptModel
	aliasFor   string
	cfg        Config
	keymap     KeyMap
	help       help.Model
	form       components.GenerationFormModel
	accounts   btable.Model
	eligible   btable.Model
	viewport   viewport.Model
	styles     console.Styles
	panels     [4]components.JobPanelModel
	snapshot   table.Snapshot
	sessions   []model.SessionRecord
	merch      []model.Merchandise
	stats      model.PaymentStats
	locations  model.LocationInfo
	tab        int
	merchIndex int
	width      int
	height     int
	showHelp   bool
	quitting   bool
}

// New creates the console model.
func New(deps Deps, opts ...Option) (Model, error) {
	if err := deps.validate(); err != nil {
		return Model{}, err
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	m := Model{
		deps:     deps,
		cfg:      cfg,
		theme:    cfg.Theme,
		styles:   cfg.Theme.ConsoleStyles(),
		keymap:   DefaultKeyMap(),
		help:     help.New(),
		form:     components.NewGenerationFormModel(cfg.Theme),
		accounts: newTable(cfg.Theme, table.AccountColumns()),
		eligible: newTable(cfg.Theme, table.AccountColumns()),
		viewport: viewport.New(cfg.Width, 8),
		width:    cfg.Width,
		height:   cfg.Height,
		// Assume presets exist until the backend says otherwise.
		locations: model.LocationInfo{HasLocations: true},
	}
	for i, kind := range model.AllKinds {
		m.panels[i] = components.NewJobPanelModel(kind, cfg.Theme)
	}
	m.resize()
	m.syncConsole()
	m.syncJobs()
	m.syncAccounts()
	m.form = m.form.SetQuota(deps.Quota.State())
	return m, nil
}

func newTable(theme themes.Theme, columns []btable.Column) btable.Model {
	t := btable.New(btable.WithColumns(columns), btable.WithFocused(true))
	styles := btable.DefaultStyles()
	styles.Header = styles.Header.
		BorderForeground(theme.Border).
		BorderBottom(true).
		Bold(true)
	styles.Selected = theme.Selected
	t.SetStyles(styles)
	return t
}

// Init loads the reference data.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.refreshAccounts(),
		m.loadLocations(),
		m.loadPaymentStats(),
		m.loadSessions(),
		m.loadMerchandise(),
	)
}

// Kind returns the job kind of the active tab.
func (m Model) Kind() model.JobKind {
	return model.AllKinds[m.tab]
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case changedMsg:
		m.deps.Notifier.ack(msg.topic)
		switch msg.topic {
		case topicConsole:
			m.syncConsole()
		case topicJobs:
			cmds = append(cmds, m.syncJobs()...)
		case topicAccounts:
			m.syncAccounts()
		case topicQuota:
			m.form = m.form.SetQuota(m.deps.Quota.State())
		}

	case spinner.TickMsg:
		for i := range m.panels {
			var cmd tea.Cmd
			m.panels[i], cmd = m.panels[i].Update(msg)
			cmds = append(cmds, cmd)
		}

	case components.IdentityChangedMsg:
		m.deps.Quota.Input(msg.Email, msg.Aliasable)

	case components.IdentityBlurredMsg:
		m.deps.Quota.Blur()

	case components.FormSubmittedMsg:
		cmds = append(cmds, m.submitGeneration())

	case components.PromptSubmittedMsg:
		m.prompt = nil
		cmds = append(cmds, m.handlePrompt(msg))

	case components.PromptCancelledMsg:
		m.prompt = nil

	case submitDoneMsg:
		if errors.Is(msg.err, common.ErrJobRunning) {
			m.deps.Console.Warning(msg.kind.Title() + " is already running.")
		}

	case cancelDoneMsg:
		if errors.Is(msg.err, common.ErrNotRunning) {
			m.deps.Console.Warning("No " + strings.ToLower(msg.kind.Title()) + " is running.")
		}

	case locationsLoadedMsg:
		if msg.err != nil {
			m.deps.Console.Warning("Failed to load locations: " + msg.err.Error())
		} else {
			m.locations = msg.info
			m.form = m.form.SetLocations(msg.info)
		}

	case paymentStatsLoadedMsg:
		if msg.err != nil {
			m.deps.Console.Warning("Failed to load payment stats: " + msg.err.Error())
		} else {
			m.stats = msg.stats
		}

	case sessionsLoadedMsg:
		if msg.err != nil {
			m.deps.Console.Warning("Failed to load sessions: " + msg.err.Error())
		} else {
			m.sessions = msg.sessions
		}

	case merchandiseLoadedMsg:
		if msg.err != nil {
			m.deps.Console.Warning("Failed to load merchandise: " + msg.err.Error())
		} else {
			m.merch = msg.items
			m.merchIndex = min(m.merchIndex, max(0, len(m.merch)-1))
		}

	case actionDoneMsg:
		if msg.err != nil {
			m.deps.Console.Error(msg.err.Error())
		} else if msg.success != "" {
			m.deps.Console.Success(msg.success)
		}
		cmds = append(cmds, m.reloadCmds(msg.reload)...)
	}

	return m, tea.Batch(cmds...)
}

// syncConsole re-renders the console viewport, following the tail when the
// operator has not scrolled up.
func (m *Model) syncConsole() {
	follow := m.viewport.AtBottom() || m.viewport.TotalLineCount() == 0
	m.viewport.SetContent(console.RenderAll(m.deps.Console.Entries(), m.styles))
	if follow {
		m.viewport.GotoBottom()
	}
}

// syncJobs reads every controller and returns the follow-up loads for runs
// that just started or ended.
func (m *Model) syncJobs() []tea.Cmd {
	var cmds []tea.Cmd
	for i, kind := range model.AllKinds {
		ctrl, err := m.deps.Registry.Get(kind)
		if err != nil {
			continue
		}
		wasBusy := m.panels[i].State().Busy()
		state := ctrl.State()
		snap, active := ctrl.Snapshot()
		var summary *model.RunSummary
		if s, ok := ctrl.LastSummary(); ok {
			summary = &s
		}
		m.panels[i] = m.panels[i].SetJob(state, snap, active, summary)

		switch {
		case !wasBusy && state.Busy():
			cmds = append(cmds, m.panels[i].Tick())
		case wasBusy && !state.Busy():
			switch kind {
			case model.KindPaymentSession:
				cmds = append(cmds, m.loadPaymentStats())
			case model.KindPurchaseSession:
				cmds = append(cmds, m.loadSessions())
			}
		}
		if kind == model.KindPurchaseSession && state.Busy() {
			cmds = append(cmds, m.loadSessions())
		}
	}
	m.form = m.form.SetDisabled(m.deps.Registry.Running(model.KindGeneration))
	m.syncAccounts()
	return cmds
}

// syncAccounts rebuilds the account tables from the latest snapshot.
func (m *Model) syncAccounts() {
	m.snapshot = m.deps.Accounts.Snapshot()
	m.accounts.SetRows(table.AccountRows(m.snapshot.Rows, m.currentEntity()))
	m.eligible.SetRows(table.AccountRows(model.EligibleForPurchase(m.snapshot.Rows), m.currentEntity()))
}

// currentEntity is the account the active tab's job is working on.
func (m Model) currentEntity() string {
	ctrl, err := m.deps.Registry.Get(m.Kind())
	if err != nil {
		return ""
	}
	snap, ok := ctrl.Snapshot()
	if !ok {
		return ""
	}
	return snap.CurrentEntity
}

func (m *Model) resize() {
	m.help.Width = m.width
	consoleHeight := max(5, m.height/3)
	m.viewport.Width = max(20, m.width-4)
	m.viewport.Height = consoleHeight
	bodyHeight := max(5, m.height-consoleHeight-14)
	m.accounts.SetHeight(bodyHeight)
	m.accounts.SetWidth(max(20, m.width-2))
	m.eligible.SetHeight(max(3, bodyHeight/2))
	m.eligible.SetWidth(max(20, m.width-2))
	for i := range m.panels {
		m.panels[i].Resize(m.width)
	}
}

// selectedAccount returns the account under the active table's cursor.
func (m Model) selectedAccount() (model.AccountRow, bool) {
	rows := m.snapshot.Rows
	t := m.accounts
	if m.Kind() == model.KindPurchaseSession {
		rows = model.EligibleForPurchase(rows)
		t = m.eligible
	}
	i := t.Cursor()
	if i < 0 || i >= len(rows) {
		return model.AccountRow{}, false
	}
	return rows[i], true
}

func (m Model) switchTab(delta int) (Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.form.Focused() {
		m.form, cmd = m.form.Blur()
	}
	m.tab = (m.tab + delta + len(model.AllKinds)) % len(model.AllKinds)
	m.syncAccounts()
	switch m.Kind() {
	case model.KindPaymentSession:
		return m, tea.Batch(cmd, m.loadPaymentStats())
	case model.KindPurchaseSession:
		return m, tea.Batch(cmd, m.loadSessions(), m.loadMerchandise())
	}
	return m, cmd
}

// keyMatches reports whether msg matches binding using only its control keys,
// so plain letters keep reaching a focused text field.
func keyMatches(msg tea.KeyMsg, b key.Binding) bool {
	if msg.Type == tea.KeyRunes {
		return false
	}
	return key.Matches(msg, b)
}
