package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/jobdeck/internal/cli"
	"github.com/Veraticus/jobdeck/internal/mockbackend"
)

func mockBackendCmd() *cobra.Command {
	var (
		empty      bool
		addr       string
		step       time.Duration
		locations  int
		failEvery  int
		cumulative bool
	)

	cmd := &cobra.Command{
		Use:   "mock-backend",
		Short: "Serve a simulated automation backend for demos and testing",
		Long: `Serve every backend endpoint with simulated jobs and sample accounts.

Point the console at it with --backend http://127.0.0.1:5011 (the default).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := []mockbackend.Option{
				mockbackend.WithStepDelay(step),
				mockbackend.WithLocations(locations),
				mockbackend.WithFailEvery(failEvery),
				mockbackend.WithLogger(slog.Default()),
			}
			if !empty {
				opts = append(opts, mockbackend.WithAccounts(mockbackend.SampleAccounts()))
			}
			if cumulative {
				opts = append(opts, mockbackend.WithCumulativeMessages())
			}
			mock := mockbackend.New(opts...)
			defer mock.Close()

			srv := &http.Server{
				Addr:              addr,
				Handler:           mock.Router(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			ctx := cmd.Context()
			ctx = cli.NewInterruptHandler(cmd.ErrOrStderr()).HandleInterrupts(ctx, nil)
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Mock backend listening on http://"+addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("mock backend failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:5011", "listen address")
	cmd.Flags().DurationVar(&step, "step", mockbackend.DefaultStepDelay, "simulated duration of one unit of work")
	cmd.Flags().IntVar(&locations, "locations", 1, "number of preset locations (0 requires a custom location)")
	cmd.Flags().IntVar(&failEvery, "fail-every", 0, "fail every Nth unit of work (0 never fails)")
	cmd.Flags().BoolVar(&empty, "empty", false, "start without sample accounts")
	cmd.Flags().BoolVar(&cumulative, "cumulative", false, "return the whole message list on every status read (pair with jobs.<kind>.messages=cumulative)")
	return cmd
}
