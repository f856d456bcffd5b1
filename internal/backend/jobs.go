package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/Veraticus/jobdeck/internal/model"
)

// GenerationEndpoint drives account generation.
type GenerationEndpoint struct {
	client *Client
}

// NewGenerationEndpoint creates the generation endpoint.
func NewGenerationEndpoint(c *Client) *GenerationEndpoint {
	return &GenerationEndpoint{client: c}
}

// Submit starts a generation batch. The request must be a model.GenerationRequest.
func (e *GenerationEndpoint) Submit(ctx context.Context, req any) (model.Acceptance, error) {
	gen, ok := req.(model.GenerationRequest)
	if !ok {
		return model.Acceptance{}, fmt.Errorf("generation: unexpected request type %T", req)
	}
	var resp actionResponse
	if err := e.client.postJSON(ctx, "/api/generate", gen, &resp); err != nil {
		return model.Acceptance{}, err
	}
	return resp.acceptance(), nil
}

// Status polls generation progress.
func (e *GenerationEndpoint) Status(ctx context.Context) (model.ProgressSnapshot, error) {
	var resp statusResponse
	if err := e.client.getJSON(ctx, "/api/generate/status", &resp); err != nil {
		return model.ProgressSnapshot{}, err
	}
	return resp.snapshot(), nil
}

// Cancel requests a graceful stop.
func (e *GenerationEndpoint) Cancel(ctx context.Context) error {
	return e.client.postJSON(ctx, "/api/generate/stop", nil, nil)
}

// CreditEndpoint drives the credit refresh batch.
type CreditEndpoint struct {
	client *Client
}

// NewCreditEndpoint creates the credit refresh endpoint.
func NewCreditEndpoint(c *Client) *CreditEndpoint {
	return &CreditEndpoint{client: c}
}

// Submit starts a refresh of every account, or from StartEmail onward.
func (e *CreditEndpoint) Submit(ctx context.Context, req any) (model.Acceptance, error) {
	var body model.CreditRefreshRequest
	switch r := req.(type) {
	case nil:
	case model.CreditRefreshRequest:
		body = r
	default:
		return model.Acceptance{}, fmt.Errorf("credits: unexpected request type %T", req)
	}

	path := "/api/credits/update-all"
	if body.StartEmail != "" {
		path = "/api/credits/update-from"
	}
	var resp actionResponse
	if err := e.client.postJSON(ctx, path, body, &resp); err != nil {
		return model.Acceptance{}, err
	}
	return resp.acceptance(), nil
}

// Status polls credit refresh progress.
func (e *CreditEndpoint) Status(ctx context.Context) (model.ProgressSnapshot, error) {
	var resp statusResponse
	if err := e.client.getJSON(ctx, "/api/credits/status", &resp); err != nil {
		return model.ProgressSnapshot{}, err
	}
	return resp.snapshot(), nil
}

// Cancel asks the backend to stop after the current account.
func (e *CreditEndpoint) Cancel(ctx context.Context) error {
	var resp actionResponse
	if err := e.client.postJSON(ctx, "/api/credits/stop", nil, &resp); err != nil {
		return err
	}
	return resp.err()
}

// sessionLog accumulates synthesized messages so session endpoints report a
// cumulative message list like the batch endpoints do.
type sessionLog struct {
	email     string
	lastState string
	messages  []model.LogEntry
	cancelled bool
}

func (l *sessionLog) reset(email string) {
	*l = sessionLog{email: email}
}

func (l *sessionLog) add(level model.Level, format string, args ...any) {
	l.messages = append(l.messages, model.LogEntry{Text: fmt.Sprintf(format, args...), Level: level})
}

func (l *sessionLog) snapshot(status model.JobStatus, message string) model.ProgressSnapshot {
	msgs := make([]model.LogEntry, len(l.messages))
	copy(msgs, l.messages)
	return model.ProgressSnapshot{
		Status:        status,
		Message:       message,
		CurrentEntity: l.email,
		Messages:      msgs,
		Total:         1,
	}
}

// PaymentEndpoint drives the interactive payment setup session for one account.
type PaymentEndpoint struct {
	client *Client
	log    sessionLog
	mu     sync.Mutex
}

// NewPaymentEndpoint creates the payment session endpoint.
func NewPaymentEndpoint(c *Client) *PaymentEndpoint {
	return &PaymentEndpoint{client: c}
}

// Submit opens a payment session. The request must be a model.SessionRequest.
func (e *PaymentEndpoint) Submit(ctx context.Context, req any) (model.Acceptance, error) {
	sess, ok := req.(model.SessionRequest)
	if !ok {
		return model.Acceptance{}, fmt.Errorf("payment: unexpected request type %T", req)
	}
	var resp actionResponse
	if err := e.client.postJSON(ctx, "/api/payment/start", sess, &resp); err != nil {
		return model.Acceptance{}, err
	}
	acc := resp.acceptance()
	if acc.Accepted {
		e.mu.Lock()
		e.log.reset(sess.Email)
		e.mu.Unlock()
	}
	return acc, nil
}

// Status polls the payment session and narrates its sub-state changes. A
// failure is left to the controller's terminal summary.
func (e *PaymentEndpoint) Status(ctx context.Context) (model.ProgressSnapshot, error) {
	var resp statusResponse
	if err := e.client.getJSON(ctx, "/api/payment/status", &resp); err != nil {
		return model.ProgressSnapshot{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	status := model.NormalizeStatus(resp.Status)
	if resp.Status != e.log.lastState {
		e.log.lastState = resp.Status
		switch resp.Status {
		case "logging_in":
			e.log.add(model.LevelInfo, "Logging in as %s...", e.log.email)
		case "browser_open":
			e.log.add(model.LevelSuccess, "Browser opened and logged in successfully!")
			e.log.add(model.LevelInfo, "Please manually enter credit card details on the website.")
		}
	}
	if status == model.StatusIdle && e.log.cancelled {
		status = model.StatusStopped
	}
	snap := e.log.snapshot(status, resp.Message)
	if status == model.StatusIdle || status.IsTerminal() {
		snap.Completed = 1
	}
	return snap, nil
}

// Cancel skips the account, closing its browser.
func (e *PaymentEndpoint) Cancel(ctx context.Context) error {
	return e.log.cancel(ctx, &e.mu, e.client, "/api/payment/skip")
}

// cancel marks the session cancelled before the request goes out so a poll
// racing the response already reads the closed session as stopped.
func (l *sessionLog) cancel(ctx context.Context, mu *sync.Mutex, client *Client, path string) error {
	mu.Lock()
	email := l.email
	l.cancelled = true
	mu.Unlock()

	if err := client.sessionAction(ctx, path, email); err != nil {
		mu.Lock()
		l.cancelled = false
		mu.Unlock()
		return err
	}
	return nil
}

// PurchaseEndpoint drives a purchase browser session for one account.
type PurchaseEndpoint struct {
	client *Client
	log    sessionLog
	mu     sync.Mutex
}

// NewPurchaseEndpoint creates the purchase session endpoint.
func NewPurchaseEndpoint(c *Client) *PurchaseEndpoint {
	return &PurchaseEndpoint{client: c}
}

// Submit opens a purchase session. The request must be a model.SessionRequest.
func (e *PurchaseEndpoint) Submit(ctx context.Context, req any) (model.Acceptance, error) {
	sess, ok := req.(model.SessionRequest)
	if !ok {
		return model.Acceptance{}, fmt.Errorf("purchase: unexpected request type %T", req)
	}
	var resp actionResponse
	if err := e.client.postJSON(ctx, "/api/purchase/start", sess, &resp); err != nil {
		return model.Acceptance{}, err
	}
	acc := resp.acceptance()
	if acc.Accepted {
		e.mu.Lock()
		e.log.reset(sess.Email)
		e.mu.Unlock()
	}
	return acc, nil
}

// Status finds the session in the open-session list. A missing session is idle.
func (e *PurchaseEndpoint) Status(ctx context.Context) (model.ProgressSnapshot, error) {
	sessions, err := e.client.Sessions(ctx)
	if err != nil {
		return model.ProgressSnapshot{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var found *model.SessionRecord
	for i := range sessions {
		if sessions[i].Email == e.log.email {
			found = &sessions[i]
			break
		}
	}

	if found == nil {
		status := model.StatusIdle
		if e.log.cancelled {
			status = model.StatusStopped
		}
		snap := e.log.snapshot(status, "Session closed")
		snap.Completed = 1
		return snap, nil
	}

	if string(found.Status) != e.log.lastState {
		e.log.lastState = string(found.Status)
		switch found.Status {
		case model.SessionInitializing:
			e.log.add(model.LevelInfo, "Opening browser for %s...", e.log.email)
		case model.SessionReady:
			e.log.add(model.LevelSuccess, "Session ready for %s. Complete the purchase in the browser.", e.log.email)
		}
	}
	return e.log.snapshot(model.StatusRunning, string(found.Status)), nil
}

// Cancel closes the session's browser.
func (e *PurchaseEndpoint) Cancel(ctx context.Context) error {
	return e.log.cancel(ctx, &e.mu, e.client, "/api/purchase/stop")
}
