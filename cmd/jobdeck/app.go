package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/jobdeck/internal/backend"
	"github.com/Veraticus/jobdeck/internal/history"
	"github.com/Veraticus/jobdeck/internal/job"
	"github.com/Veraticus/jobdeck/internal/model"
)

// newClient creates the backend client from the resolved settings.
func newClient() (*backend.Client, error) {
	return backend.NewClient(settings.BackendURL, backend.WithTimeout(settings.BackendTimeout))
}

// newEndpoint returns the backend surface of kind.
func newEndpoint(c *backend.Client, kind model.JobKind) (job.Endpoint, error) {
	switch kind {
	case model.KindGeneration:
		return backend.NewGenerationEndpoint(c), nil
	case model.KindCreditRefresh:
		return backend.NewCreditEndpoint(c), nil
	case model.KindPaymentSession:
		return backend.NewPaymentEndpoint(c), nil
	case model.KindPurchaseSession:
		return backend.NewPurchaseEndpoint(c), nil
	default:
		return nil, fmt.Errorf("unknown job kind %q", kind)
	}
}

// newController builds the controller of kind with its configured timings.
func newController(c *backend.Client, kind model.JobKind, sink job.Sink, opts ...job.Option) (*job.Controller, error) {
	ep, err := newEndpoint(c, kind)
	if err != nil {
		return nil, err
	}
	cfg, ok := settings.Jobs[kind]
	if !ok {
		cfg = job.DefaultConfig(kind)
	}
	return job.NewController(cfg, ep, sink, opts...)
}

// openHistory opens the run history. History is optional: a failure is
// logged and nil is returned.
func openHistory(ctx context.Context) *history.Store {
	store, err := history.OpenAndMigrate(ctx, settings.HistoryPath)
	if err != nil {
		slog.Warn("Run history disabled", "path", settings.HistoryPath, "error", err)
		return nil
	}
	return store
}
