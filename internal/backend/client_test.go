package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/jobdeck/internal/common"
	"github.com/Veraticus/jobdeck/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL + "/")
	require.NoError(t, err)
	return c
}

func TestNewClient(t *testing.T) {
	_, err := NewClient("")
	assert.ErrorIs(t, err, common.ErrMissingConfig)

	_, err = NewClient("ftp://host")
	assert.ErrorIs(t, err, common.ErrInvalidConfig)

	c, err := NewClient("http://127.0.0.1:5011/", WithTimeout(time.Second))
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:5011", c.BaseURL())
	assert.Equal(t, time.Second, c.httpClient.Timeout)
}

func TestClient_StatusSnapshot(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/credits/status", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"status": "running", "total": 5, "completed": 2, "successful": 1, "failed": 1,
			"current_email": "a@x.com", "stop_requested": false,
			"messages": [{"text": "hi", "type": "success"}, {"text": "odd", "type": "purple"}]
		}`))
	})

	snap, err := NewCreditEndpoint(c).Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.StatusRunning, snap.Status)
	assert.Equal(t, 5, snap.Total)
	assert.Equal(t, 2, snap.Completed)
	assert.Equal(t, "a@x.com", snap.CurrentEntity)
	assert.Equal(t, []model.LogEntry{
		{Text: "hi", Level: model.LevelSuccess},
		{Text: "odd", Level: model.LevelInfo},
	}, snap.Messages)
}

func TestClient_SubmitAcceptance(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		accepted bool
		reasons  []string
	}{
		{"started", `{"status":"started"}`, true, nil},
		{"success", `{"status":"success","message":"ok"}`, true, nil},
		{"errors list", `{"status":"error","errors":["a","b"]}`, false, []string{"a", "b"}},
		{"message", `{"status":"error","message":"busy"}`, false, []string{"busy"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			acc, err := NewGenerationEndpoint(c).Submit(context.Background(), model.GenerationRequest{})
			require.NoError(t, err)
			assert.Equal(t, tt.accepted, acc.Accepted)
			assert.Equal(t, tt.reasons, acc.Reasons)
		})
	}
}

func TestClient_SubmitWrongRequestType(t *testing.T) {
	c := newTestClient(t, func(http.ResponseWriter, *http.Request) {})
	_, err := NewGenerationEndpoint(c).Submit(context.Background(), "nope")
	assert.Error(t, err)
}

func TestClient_CreditSubmitPath(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"started"}`))
	})
	ep := NewCreditEndpoint(c)
	_, err := ep.Submit(context.Background(), nil)
	require.NoError(t, err)
	_, err = ep.Submit(context.Background(), model.CreditRefreshRequest{StartEmail: "b@x.com"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/api/credits/update-all", "/api/credits/update-from"}, paths)
}

func TestClient_Errors(t *testing.T) {
	t.Run("server error is retryable", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		})
		_, err := c.Accounts(context.Background())
		require.Error(t, err)
		assert.True(t, common.IsRetryable(err))
		var httpErr *HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
	})

	t.Run("client error is not", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			http.NotFound(w, nil)
		})
		_, err := c.Accounts(context.Background())
		require.Error(t, err)
		assert.False(t, common.IsRetryable(err))
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		c, err := NewClient(url)
		require.NoError(t, err)
		_, err = c.Accounts(context.Background())
		assert.ErrorIs(t, err, common.ErrBackendUnavailable)
	})

	t.Run("timeout", func(t *testing.T) {
		c := newTestClient(t, func(_ http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		})
		c.httpClient.Timeout = 20 * time.Millisecond
		_, err := NewGenerationEndpoint(c).Status(context.Background())
		assert.ErrorIs(t, err, common.ErrBackendUnavailable)
	})
}

func TestPurchaseEndpoint_SessionLifecycle(t *testing.T) {
	sessions := `{"sessions":[{"email":"a@x.com","status":"initializing"}]}`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/purchase/start", "/api/purchase/stop":
			_, _ = w.Write([]byte(`{"status":"success"}`))
		case "/api/purchase/sessions":
			_, _ = w.Write([]byte(sessions))
		}
	})
	ep := NewPurchaseEndpoint(c)
	ctx := context.Background()

	acc, err := ep.Submit(ctx, model.SessionRequest{Email: "a@x.com"})
	require.NoError(t, err)
	require.True(t, acc.Accepted)

	snap, err := ep.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRunning, snap.Status)
	assert.Len(t, snap.Messages, 1)

	sessions = `{"sessions":[{"email":"a@x.com","status":"ready"}]}`
	snap, err = ep.Status(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Messages, 2, "messages accumulate across polls")

	sessions = `{"sessions":[]}`
	snap, err = ep.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusIdle, snap.Status)

	require.NoError(t, ep.Cancel(ctx))
	snap, err = ep.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusStopped, snap.Status)
}

func TestPaymentEndpoint_Narration(t *testing.T) {
	status := `{"status":"logging_in"}`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/payment/start":
			_, _ = w.Write([]byte(`{"status":"success","message":"Logging in and navigating to payment page..."}`))
		case "/api/payment/status":
			_, _ = w.Write([]byte(status))
		}
	})
	ep := NewPaymentEndpoint(c)
	ctx := context.Background()

	acc, err := ep.Submit(ctx, model.SessionRequest{Email: "a@x.com"})
	require.NoError(t, err)
	assert.Equal(t, "Logging in and navigating to payment page...", acc.Message)

	snap, err := ep.Status(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Messages, 1)

	status = `{"status":"browser_open"}`
	snap, err = ep.Status(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Messages, 3)
	assert.Equal(t, model.StatusRunning, snap.Status)

	snap, err = ep.Status(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Messages, 3, "unchanged sub-state adds nothing")

	status = `{"status":"idle"}`
	snap, err = ep.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusIdle, snap.Status)
}

func TestPaymentEndpoint_FailureNotNarrated(t *testing.T) {
	status := `{"status":"logging_in"}`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/payment/start":
			_, _ = w.Write([]byte(`{"status":"success"}`))
		case "/api/payment/status":
			_, _ = w.Write([]byte(status))
		}
	})
	ep := NewPaymentEndpoint(c)
	ctx := context.Background()

	_, err := ep.Submit(ctx, model.SessionRequest{Email: "a@x.com"})
	require.NoError(t, err)
	_, err = ep.Status(ctx)
	require.NoError(t, err)

	status = `{"status":"error","message":"card declined"}`
	snap, err := ep.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, snap.Status)
	assert.Equal(t, "card declined", snap.Message)
	require.Len(t, snap.Messages, 1)
	assert.NotContains(t, snap.Messages[0].Text, "card declined")
}

func TestClient_SessionActions(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/api/purchase/stop" {
			_, _ = w.Write([]byte(`{"status":"error","message":"no session for a@x.com"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"success"}`))
	})

	require.NoError(t, c.SkipPayment(context.Background(), "a@x.com"))

	err := c.StopPurchase(context.Background(), "a@x.com")
	var rejected *common.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, []string{"no session for a@x.com"}, rejected.Reasons)

	assert.Equal(t, []string{"/api/payment/skip", "/api/purchase/stop"}, paths)
}
