package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/jobdeck/internal/backend"
	"github.com/Veraticus/jobdeck/internal/common"
	"github.com/Veraticus/jobdeck/internal/config"
	"github.com/Veraticus/jobdeck/internal/history"
	"github.com/Veraticus/jobdeck/internal/job"
	"github.com/Veraticus/jobdeck/internal/mockbackend"
	"github.com/Veraticus/jobdeck/internal/model"
)

// useMockBackend points the package settings at a fresh mock backend.
func useMockBackend(t *testing.T, opts ...mockbackend.Option) *backend.Client {
	t.Helper()
	opts = append([]mockbackend.Option{
		mockbackend.WithStepDelay(5 * time.Millisecond),
		mockbackend.WithAccounts(mockbackend.SampleAccounts()),
	}, opts...)
	srv := mockbackend.New(opts...)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})

	v := viper.New()
	config.SetDefaults(v)
	v.Set("backend.url", ts.URL)
	v.Set("history.path", filepath.Join(t.TempDir(), "history.db"))
	s, err := config.Load(v)
	require.NoError(t, err)
	for kind, cfg := range s.Jobs {
		cfg.Interval = 5 * time.Millisecond
		cfg.ResetDelay = 0
		s.Jobs[kind] = cfg
	}

	prev := settings
	settings = s
	t.Cleanup(func() { settings = prev })

	client, err := newClient()
	require.NoError(t, err)
	return client
}

func TestRunJob_CreditRefresh(t *testing.T) {
	client := useMockBackend(t)
	var out, errOut bytes.Buffer

	summary, err := runJob(context.Background(), jobRun{
		out:    &out,
		errOut: &errOut,
		client: client,
		kind:   model.KindCreditRefresh,
		req:    model.CreditRefreshRequest{},
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusComplete, summary.Status)
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 4, summary.Successful)
	assert.Contains(t, out.String(), "Found 4 accounts to process")
	assert.Contains(t, out.String(), "Processed: 4/4")
}

func TestRunJob_FailuresAreCounted(t *testing.T) {
	client := useMockBackend(t, mockbackend.WithFailEvery(2))
	var out bytes.Buffer

	summary, err := runJob(context.Background(), jobRun{
		out:    &out,
		errOut: &out,
		client: client,
		kind:   model.KindCreditRefresh,
		req:    model.CreditRefreshRequest{},
	})
	require.NoError(t, err)

	assert.Equal(t, summary.Total, summary.Successful+summary.Failed)
	assert.Positive(t, summary.Failed)
	assert.Contains(t, out.String(), "sign-in failed")
}

func TestRunJob_StartRejected(t *testing.T) {
	client := useMockBackend(t)
	var out bytes.Buffer

	_, err := runJob(context.Background(), jobRun{
		out:    &out,
		errOut: &out,
		client: client,
		kind:   model.KindCreditRefresh,
		req:    model.CreditRefreshRequest{StartEmail: "nobody@example.com"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRunJob_RecordsHistory(t *testing.T) {
	client := useMockBackend(t)
	ctx := context.Background()

	store, err := history.OpenAndMigrate(ctx, settings.HistoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	var out bytes.Buffer
	summary, err := runJob(ctx, jobRun{
		out:       &out,
		errOut:    &out,
		client:    client,
		kind:      model.KindCreditRefresh,
		req:       model.CreditRefreshRequest{},
		observers: []job.Observer{store},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		runs, err := store.ListRuns(ctx, history.ListOptions{Kind: model.KindCreditRefresh})
		return err == nil && len(runs) == 1 && runs[0].ID == summary.ID
	}, 2*time.Second, 10*time.Millisecond)

	transcript, err := store.Transcript(ctx, summary.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, transcript)
}

func TestCheckGeneration(t *testing.T) {
	client := useMockBackend(t)
	ctx := context.Background()

	valid := model.GenerationRequest{
		Email:    "new.user@gmail.com",
		Password: "Secret123",
		Count:    2,
		IsGmail:  true,
	}
	require.NoError(t, checkGeneration(ctx, client, valid))

	plain := valid
	plain.Email = "ops@example.com"
	plain.IsGmail = false
	err := checkGeneration(ctx, client, plain)
	require.ErrorIs(t, err, common.ErrQuotaExceeded)
	assert.Contains(t, err.Error(), "Max: 1")

	invalid := valid
	invalid.Password = ""
	invalid.Count = 0
	err = checkGeneration(ctx, client, invalid)
	var verr *common.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, err.Error(), "Count must be at least 1")
}

func TestParseAliasing(t *testing.T) {
	tests := []struct {
		mode    string
		email   string
		want    bool
		wantErr bool
	}{
		{mode: "auto", email: "jane.doe@gmail.com", want: true},
		{mode: "", email: "ops@example.com", want: false},
		{mode: "on", email: "ops@example.com", want: true},
		{mode: "OFF", email: "jane.doe@gmail.com", want: false},
		{mode: "maybe", email: "ops@example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.mode+"/"+tt.email, func(t *testing.T) {
			got, err := parseAliasing(tt.mode, tt.email)
			if tt.wantErr {
				var uerr *common.UserError
				assert.ErrorAs(t, err, &uerr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFetchPaymentStats(t *testing.T) {
	client := useMockBackend(t)

	stats, err := fetchPaymentStats(context.Background(), client)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.NoPayment)
	require.NotNil(t, stats.NextAccount)
	assert.Equal(t, "grace.hopper@gmail.com", stats.NextAccount.Email)
}
