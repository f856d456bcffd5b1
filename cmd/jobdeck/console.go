package main

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"github.com/oklog/run"
	"github.com/spf13/cobra"

	"github.com/Veraticus/jobdeck/internal/console"
	"github.com/Veraticus/jobdeck/internal/job"
	"github.com/Veraticus/jobdeck/internal/metrics"
	"github.com/Veraticus/jobdeck/internal/model"
	"github.com/Veraticus/jobdeck/internal/quota"
	"github.com/Veraticus/jobdeck/internal/refresh"
	"github.com/Veraticus/jobdeck/internal/table"
	"github.com/Veraticus/jobdeck/internal/tui"
	"github.com/Veraticus/jobdeck/internal/tui/themes"
)

func consoleCmd() *cobra.Command {
	var themeName string

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Open the interactive console",
		Long: `Open the full-screen console with one tab per job kind, the account
table, and the shared console log.

Jobs started here keep running on the backend if the console exits.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConsole(cmd.Context(), themeName)
		},
	}

	cmd.Flags().StringVar(&themeName, "theme", "", "color theme (default: tui.theme)")
	return cmd
}

func runConsole(ctx context.Context, themeName string) error {
	closeLog, err := logToFile()
	if err != nil {
		return err
	}
	defer closeLog()

	if themeName == "" {
		themeName = settings.Theme
	}
	theme, err := themes.Get(themeName)
	if err != nil {
		return err
	}

	client, err := newClient()
	if err != nil {
		return err
	}

	con := console.New()
	notifier := tui.NewNotifier()
	accounts := table.NewSource(client, notifier.AccountsUpdated)

	guard := quota.NewGuard(client,
		quota.WithDebounce(settings.QuotaDebounce),
		quota.WithTTL(settings.QuotaTTL),
		quota.WithOnChange(notifier.QuotaChanged),
	)
	defer guard.Close()

	registry := job.NewRegistry()
	defer registry.Close()
	for _, kind := range model.AllKinds {
		ctrl, err := newController(client, kind, con, job.WithRefresher(accounts.RefreshAsync))
		if err != nil {
			return err
		}
		if err := registry.Register(ctrl); err != nil {
			return err
		}
	}
	registry.Observe(guard)

	collector := metrics.NewCollector()
	registry.Observe(collector)

	if store := openHistory(ctx); store != nil {
		defer func() { _ = store.Close() }()
		registry.Observe(store)
	}

	m, err := tui.New(tui.Deps{
		Registry: registry,
		Console:  con,
		Accounts: accounts,
		Quota:    guard,
		Backend:  client,
		Notifier: notifier,
	},
		tui.WithTheme(theme),
		tui.WithBackendURL(client.BaseURL()),
		tui.WithTimeout(settings.BackendTimeout),
	)
	if err != nil {
		return err
	}
	con.System(fmt.Sprintf("jobdeck %s connected to %s", version, client.BaseURL()))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g run.Group
	{
		g.Add(func() error {
			return tui.Run(ctx, m)
		}, func(error) {
			cancel()
		})
	}
	{
		busy := func() bool {
			return registry.AnyRunning(model.KindGeneration, model.KindCreditRefresh, model.KindPaymentSession)
		}
		loop := refresh.NewLoop(settings.RefreshInterval, accounts.Refresh, busy)
		g.Add(func() error {
			return loop.Run(ctx)
		}, func(error) {
			cancel()
		})
	}
	if settings.MetricsAddr != "" {
		srv, err := metrics.NewServer(settings.MetricsAddr, collector)
		if err != nil {
			return err
		}
		g.Add(srv.Run, func(error) {
			srv.Stop()
		})
	}
	g.Add(run.SignalHandler(ctx, syscall.SIGTERM))

	err = g.Run()
	var sig run.SignalError
	if errors.As(err, &sig) {
		return nil
	}
	return err
}
