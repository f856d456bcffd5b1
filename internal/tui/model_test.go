package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/jobdeck/internal/console"
	"github.com/Veraticus/jobdeck/internal/job"
	"github.com/Veraticus/jobdeck/internal/model"
	"github.com/Veraticus/jobdeck/internal/quota"
	"github.com/Veraticus/jobdeck/internal/table"
	"github.com/Veraticus/jobdeck/internal/tui/components"
	tuitest "github.com/Veraticus/jobdeck/internal/tui/testing"
)

const waitTimeout = 2 * time.Second

type fakeBackend struct {
	stats     model.PaymentStats
	accounts  []model.AccountRow
	merch     []model.Merchandise
	sessions  []model.SessionRecord
	aliases   map[string]string
	added     []model.Merchandise
	locations model.LocationInfo
	max       int
	mu        sync.Mutex
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		accounts: []model.AccountRow{
			{Email: "alice@example.com", FullName: "Alice", Card: "visa-1", RemainCredit: "5.00"},
			{Email: "bob@example.com", FullName: "Bob"},
		},
		merch:     []model.Merchandise{{Name: "Shoes", URL: "https://shop.example/shoes"}},
		locations: model.LocationInfo{HasLocations: true, Count: 2},
		stats: model.PaymentStats{
			NextAccount: &model.PaymentAccount{Email: "bob@example.com"},
			Total:       2,
			NoPayment:   1,
		},
		aliases: map[string]string{},
		max:     5,
	}
}

func (f *fakeBackend) Accounts(context.Context) ([]model.AccountRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.AccountRow(nil), f.accounts...), nil
}

func (f *fakeBackend) CalculateMax(context.Context, string) (model.QuotaResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return model.QuotaResult{Max: f.max}, nil
}

func (f *fakeBackend) Locations(context.Context) (model.LocationInfo, error) {
	return f.locations, nil
}

func (f *fakeBackend) PaymentStats(context.Context) (model.PaymentStats, error) {
	return f.stats, nil
}

func (f *fakeBackend) Sessions(context.Context) ([]model.SessionRecord, error) {
	return f.sessions, nil
}

func (f *fakeBackend) Merchandise(context.Context) ([]model.Merchandise, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Merchandise(nil), f.merch...), nil
}

func (f *fakeBackend) AddMerchandise(_ context.Context, item model.Merchandise) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, item)
	f.merch = append(f.merch, item)
	return nil
}

func (f *fakeBackend) SetCardAlias(_ context.Context, email, alias string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aliases[email] = alias
	return nil
}

func (f *fakeBackend) alias(email string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.aliases[email]
}

// fakeEndpoint accepts every submit and reports a running job.
type fakeEndpoint struct {
	submits []any
	cancels int
	mu      sync.Mutex
}

func (e *fakeEndpoint) Submit(_ context.Context, req any) (model.Acceptance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.submits = append(e.submits, req)
	return model.Acceptance{Accepted: true}, nil
}

func (e *fakeEndpoint) Status(context.Context) (model.ProgressSnapshot, error) {
	return model.ProgressSnapshot{Status: model.StatusRunning}, nil
}

func (e *fakeEndpoint) Cancel(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancels++
	return nil
}

func (e *fakeEndpoint) requests() []any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]any(nil), e.submits...)
}

type harness struct {
	backend   *fakeBackend
	console   *console.Console
	registry  *job.Registry
	guard     *quota.Guard
	endpoints map[model.JobKind]*fakeEndpoint
	driver    *tuitest.Driver
	copied    string
	mu        sync.Mutex
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		backend:   newFakeBackend(),
		console:   console.New(),
		registry:  job.NewRegistry(),
		endpoints: map[model.JobKind]*fakeEndpoint{},
	}
	notifier := NewNotifier()

	for _, kind := range model.AllKinds {
		cfg := job.DefaultConfig(kind)
		cfg.Interval = time.Hour
		ep := &fakeEndpoint{}
		ctrl, err := job.NewController(cfg, ep, h.console)
		require.NoError(t, err)
		require.NoError(t, h.registry.Register(ctrl))
		h.endpoints[kind] = ep
	}
	t.Cleanup(h.registry.Close)

	h.guard = quota.NewGuard(h.backend,
		quota.WithDebounce(time.Millisecond),
		quota.WithOnChange(notifier.QuotaChanged),
	)
	t.Cleanup(h.guard.Close)

	m, err := New(Deps{
		Registry: h.registry,
		Console:  h.console,
		Accounts: table.NewSource(h.backend, notifier.AccountsUpdated),
		Quota:    h.guard,
		Backend:  h.backend,
		Notifier: notifier,
	},
		WithSize(140, 48),
		WithBackendURL("http://127.0.0.1:5011"),
		WithClipboard(func(s string) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.copied = s
			return nil
		}),
	)
	require.NoError(t, err)

	h.driver = tuitest.NewDriver(m)
	t.Cleanup(m.connect(h.driver.Post))
	h.driver.Init()
	require.True(t, h.waitView("2 accounts"), "accounts never loaded:\n%s", h.driver.View())
	return h
}

func (h *harness) model() Model {
	return h.driver.Model.(Model)
}

func (h *harness) waitView(text string) bool {
	return h.driver.WaitFor(func(m tea.Model) bool {
		return strings.Contains(tuitest.StripANSI(m.View()), text)
	}, waitTimeout)
}

func (h *harness) waitState(kind model.JobKind, state job.State) bool {
	i := kindIndex(kind)
	return h.driver.WaitFor(func(m tea.Model) bool {
		return m.(Model).panels[i].State() == state
	}, waitTimeout)
}

func (h *harness) consoleTexts() []string {
	var out []string
	for _, e := range h.console.Entries() {
		out = append(out, e.Text)
	}
	return out
}

func (h *harness) gotoTab(kind model.JobKind) {
	for h.model().Kind() != kind {
		h.driver.Send(tuitest.KeyTab())
	}
}

func kindIndex(kind model.JobKind) int {
	for i, k := range model.AllKinds {
		if k == kind {
			return i
		}
	}
	return -1
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Deps{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry is required")
}

func TestModel_HeaderShowsStats(t *testing.T) {
	h := newHarness(t)

	view := h.driver.View()
	assert.Contains(t, view, "2 accounts · 1 with credit")
	assert.Contains(t, view, "http://127.0.0.1:5011")
	assert.True(t, tuitest.ContainsInOrder(view, "Generation", "Credit Refresh", "Payment Session", "Purchase Session"))
}

func TestModel_TabsCycle(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, model.KindGeneration, h.model().Kind())

	h.driver.Send(tuitest.KeyTab())
	assert.Equal(t, model.KindCreditRefresh, h.model().Kind())

	h.driver.Send(tuitest.Key(tea.KeyShiftTab), tuitest.Key(tea.KeyShiftTab))
	assert.Equal(t, model.KindPurchaseSession, h.model().Kind())
}

func TestModel_CreditRefreshStartAndDuplicate(t *testing.T) {
	h := newHarness(t)
	h.gotoTab(model.KindCreditRefresh)

	h.driver.Send(tuitest.KeyPress("s"))
	require.True(t, h.waitState(model.KindCreditRefresh, job.StateRunning))
	assert.Equal(t, []any{model.CreditRefreshRequest{}}, h.endpoints[model.KindCreditRefresh].requests())

	h.driver.Send(tuitest.KeyPress("s"))
	assert.Contains(t, h.consoleTexts(), "Credit Refresh is already running.")
	assert.Len(t, h.endpoints[model.KindCreditRefresh].requests(), 1)

	h.driver.Send(tuitest.KeyPress("x"))
	require.True(t, h.waitState(model.KindCreditRefresh, job.StateCancelPending))
}

func TestModel_CreditRefreshFromSelectedRow(t *testing.T) {
	h := newHarness(t)
	h.gotoTab(model.KindCreditRefresh)

	h.driver.Send(tuitest.KeyDown(), tuitest.KeyPress("f"))
	require.True(t, h.waitState(model.KindCreditRefresh, job.StateRunning))
	assert.Equal(t,
		[]any{model.CreditRefreshRequest{StartEmail: "bob@example.com"}},
		h.endpoints[model.KindCreditRefresh].requests())
}

func TestModel_GenerationValidationIsOneEntry(t *testing.T) {
	h := newHarness(t)
	before := h.console.Len()

	h.driver.Send(tuitest.KeyPress("s"))

	texts := h.consoleTexts()[before:]
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "Valid email address is required")
	assert.Contains(t, texts[0], "Password must be at least 8 characters")
	assert.Empty(t, h.endpoints[model.KindGeneration].requests())
}

func TestModel_GenerationSubmitAfterQuota(t *testing.T) {
	h := newHarness(t)

	h.driver.Send(tuitest.KeyPress("i"))
	require.True(t, h.model().form.Focused())
	h.driver.Send(tuitest.Type("a.b@gmail.com")...)
	h.driver.Send(tuitest.KeyDown())
	h.driver.Send(tuitest.Type("Secret123")...)

	require.True(t, h.waitView("Max: 5"), "quota never resolved:\n%s", h.driver.View())

	h.driver.Send(tuitest.Key(tea.KeyCtrlS))
	require.True(t, h.waitState(model.KindGeneration, job.StateRunning))

	reqs := h.endpoints[model.KindGeneration].requests()
	require.Len(t, reqs, 1)
	req, ok := reqs[0].(model.GenerationRequest)
	require.True(t, ok)
	assert.Equal(t, "a.b@gmail.com", req.Email)
	assert.Equal(t, "Secret123", req.Password)
	assert.Equal(t, 1, req.Count)
	assert.True(t, req.IsGmail)

	// The form locks while the run is active.
	assert.False(t, h.model().form.Focused())
	assert.Contains(t, h.driver.View(), "Form locked while generation runs.")
}

func TestModel_GenerationOverQuotaRefused(t *testing.T) {
	h := newHarness(t)
	h.backend.mu.Lock()
	h.backend.max = 2
	h.backend.mu.Unlock()

	h.driver.Send(tuitest.KeyPress("i"))
	h.driver.Send(tuitest.Type("a.b@gmail.com")...)
	require.True(t, h.waitView("Max: 2"))

	m := h.model()
	m.form = m.form.SetValue(components.FieldPassword, "Secret123").SetValue(components.FieldCount, "3")
	h.driver.Model = m
	before := h.console.Len()
	h.driver.Send(tuitest.Key(tea.KeyCtrlS))

	texts := h.consoleTexts()[before:]
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "exceeds quota")
	assert.Empty(t, h.endpoints[model.KindGeneration].requests())
}

func TestModel_PaymentNextAccount(t *testing.T) {
	h := newHarness(t)
	h.gotoTab(model.KindPaymentSession)
	require.True(t, h.waitView("next: bob@example.com"))

	h.driver.Send(tuitest.KeyPress("n"))
	require.True(t, h.waitState(model.KindPaymentSession, job.StateRunning))
	assert.Equal(t,
		[]any{model.SessionRequest{Email: "bob@example.com"}},
		h.endpoints[model.KindPaymentSession].requests())
}

func TestModel_PaymentSetAlias(t *testing.T) {
	h := newHarness(t)
	h.gotoTab(model.KindPaymentSession)

	h.driver.Send(tuitest.KeyPress("a"))
	require.NotNil(t, h.model().prompt)
	assert.Contains(t, h.driver.View(), "Card alias for alice@example.com")

	// Letters go to the prompt, not the key map.
	h.driver.Send(tuitest.Type("amex-2")...)
	h.driver.Send(tuitest.KeyEnter())

	assert.Nil(t, h.model().prompt)
	assert.Equal(t, "amex-2", h.backend.alias("alice@example.com"))
	assert.Contains(t, h.consoleTexts(), `Card alias "amex-2" saved for alice@example.com.`)
}

func TestModel_PromptCancel(t *testing.T) {
	h := newHarness(t)
	h.gotoTab(model.KindPurchaseSession)

	h.driver.Send(tuitest.KeyPress("m"))
	require.NotNil(t, h.model().prompt)
	h.driver.Send(tuitest.KeyEsc())
	assert.Nil(t, h.model().prompt)
}

func TestModel_PurchaseMerchandise(t *testing.T) {
	h := newHarness(t)
	h.gotoTab(model.KindPurchaseSession)
	require.True(t, h.waitView("Merch 1/1:"))

	h.driver.Send(tuitest.KeyPress("c"))
	h.mu.Lock()
	assert.Equal(t, "https://shop.example/shoes", h.copied)
	h.mu.Unlock()

	h.driver.Send(tuitest.KeyPress("m"))
	h.driver.Send(tuitest.Type("Hat")...)
	h.driver.Send(tuitest.KeyEnter())
	h.driver.Send(tuitest.Type("https://shop.example/hat")...)
	h.driver.Send(tuitest.KeyEnter())

	require.True(t, h.waitView("Merch 1/2:"))
	h.driver.Send(tuitest.KeyPress("]"))
	assert.Contains(t, h.driver.View(), "Merch 2/2: Hat")
}

func TestModel_PurchaseRejectsBadMerchandise(t *testing.T) {
	h := newHarness(t)
	h.gotoTab(model.KindPurchaseSession)

	h.driver.Send(tuitest.KeyPress("m"), tuitest.KeyEnter(), tuitest.KeyEnter())
	assert.Empty(t, h.backend.added)
	last := h.consoleTexts()[h.console.Len()-1]
	assert.Contains(t, last, "Name is required")
}

func TestModel_PurchaseStartsForEligibleAccount(t *testing.T) {
	h := newHarness(t)
	h.gotoTab(model.KindPurchaseSession)

	h.driver.Send(tuitest.KeyPress("s"))
	require.True(t, h.waitState(model.KindPurchaseSession, job.StateRunning))
	assert.Equal(t,
		[]any{model.SessionRequest{Email: "alice@example.com"}},
		h.endpoints[model.KindPurchaseSession].requests())
}

func TestModel_ClearConsole(t *testing.T) {
	h := newHarness(t)
	h.console.Info("hello")

	h.driver.Send(tuitest.Key(tea.KeyCtrlL))
	assert.Equal(t, []string{"Console cleared."}, h.consoleTexts())
	require.True(t, h.waitView("Console cleared."))
}

func TestModel_Quit(t *testing.T) {
	h := newHarness(t)
	h.driver.Send(tuitest.KeyPress("q"))
	assert.True(t, h.driver.Quit)
	assert.Empty(t, h.model().View())
}

func TestModel_FormSwallowsLetters(t *testing.T) {
	h := newHarness(t)
	h.driver.Send(tuitest.KeyPress("i"), tuitest.KeyPress("q"))
	assert.False(t, h.driver.Quit)
	assert.Equal(t, "q", h.model().form.Email())

	h.driver.Send(tuitest.Key(tea.KeyCtrlC))
	assert.True(t, h.driver.Quit)
}

func TestModel_LoadFailureIsWarning(t *testing.T) {
	h := newHarness(t)
	h.driver.Send(locationsLoadedMsg{err: errors.New("boom")})
	assert.Contains(t, h.consoleTexts(), "Failed to load locations: boom")
}
