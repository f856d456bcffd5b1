package main

import (
	"fmt"
	"strconv"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/jobdeck/internal/cli"
	"github.com/Veraticus/jobdeck/internal/common"
	"github.com/Veraticus/jobdeck/internal/model"
	"github.com/Veraticus/jobdeck/internal/quota"
	"github.com/Veraticus/jobdeck/internal/table"
	"github.com/Veraticus/jobdeck/internal/validate"
)

func accountsCmd() *cobra.Command {
	var eligible bool

	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List accounts with their card and remaining credit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var (
				rows  []model.AccountRow
				stats model.PaymentStats
			)
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				var err error
				rows, err = common.RetryRead(gctx, "load accounts", common.DefaultReadPolicy, client.Accounts)
				return err
			})
			g.Go(func() error {
				var err error
				stats, err = fetchPaymentStats(gctx, client)
				return err
			})
			if err := g.Wait(); err != nil {
				return err
			}

			shown := rows
			if eligible {
				shown = model.EligibleForPurchase(rows)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, table.Render(table.AccountColumns(), table.AccountRows(shown, "")))

			summary := model.SummarizeAccounts(rows)
			fmt.Fprintln(out, cli.RenderBox("Accounts", fmt.Sprintf(
				"  • Total: %d\n  • With credit: %d\n  • With payment: %d\n  • Without payment: %d",
				summary.Total, summary.WithCredit, summary.WithPayment, stats.NoPayment)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&eligible, "eligible", false, "only accounts with a card (purchase eligible)")
	return cmd
}

func quotaCmd() *cobra.Command {
	var aliasing string

	cmd := &cobra.Command{
		Use:   "quota EMAIL",
		Short: "Show how many accounts an email identity can still generate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			aliasable, err := parseAliasing(aliasing, args[0])
			if err != nil {
				return err
			}
			client, err := newClient()
			if err != nil {
				return err
			}
			guard := quota.NewGuard(client, quota.WithTTL(settings.QuotaTTL))
			defer guard.Close()

			state, err := guard.Resolve(cmd.Context(), args[0], aliasable)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch state.Status {
			case quota.Exhausted:
				fmt.Fprintln(out, cli.FormatWarning(state.Hint()))
			default:
				fmt.Fprintln(out, cli.FormatInfo(state.Hint()))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&aliasing, "aliasing", "auto", "dot aliasing (auto, on, off)")
	return cmd
}

func locationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "locations",
		Short: "Show whether preset locations are available for generation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			info, err := client.Locations(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if info.HasLocations {
				fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("%d preset locations available; a custom location is optional.", info.Count)))
			} else {
				fmt.Fprintln(out, cli.FormatWarning("No preset locations; generation needs --geo and --address."))
			}
			return nil
		},
	}
}

func sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List open purchase sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			sessions, err := client.Sessions(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), table.Render(table.SessionColumns(), table.SessionRows(sessions)))
			return nil
		},
	}
}

func merchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merch",
		Short: "Manage saved merchandise links",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved merchandise",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			items, err := client.Merchandise(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), table.Render(table.MerchandiseColumns(), table.MerchandiseRows(items)))
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add NAME URL",
		Short: "Save a merchandise link",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			item := model.Merchandise{Name: args[0], URL: args[1]}
			if err := validate.Merchandise(item); err != nil {
				return err
			}
			client, err := newClient()
			if err != nil {
				return err
			}
			if err := client.AddMerchandise(cmd.Context(), item); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Merchandise %q added.", item.Name)))
			return nil
		},
	}

	copyURL := &cobra.Command{
		Use:   "copy NUMBER",
		Short: "Copy the URL of a saved item (numbered from 1) to the clipboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return common.NewUserError("item number must be a positive integer", err)
			}
			client, err := newClient()
			if err != nil {
				return err
			}
			items, err := client.Merchandise(cmd.Context())
			if err != nil {
				return err
			}
			if n > len(items) {
				return common.NewUserError(fmt.Sprintf("only %d items saved", len(items)), common.ErrNotFound)
			}
			url := items[n-1].URL
			if err := clipboard.WriteAll(url); err != nil {
				return fmt.Errorf("failed to copy to clipboard: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Copied "+url))
			return nil
		},
	}

	cmd.AddCommand(list, add, copyURL)
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the resolved local settings and the backend's site URL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			body := fmt.Sprintf("  • Backend: %s\n  • Timeout: %s\n  • Refresh: %s\n  • History: %s\n  • Log file: %s\n  • Theme: %s",
				settings.BackendURL, settings.BackendTimeout, settings.RefreshInterval,
				settings.HistoryPath, settings.LogFile, settings.Theme)
			if settings.MetricsAddr != "" {
				body += "\n  • Metrics: " + settings.MetricsAddr
			}
			fmt.Fprintln(out, cli.RenderBox("Local", body))

			client, err := newClient()
			if err != nil {
				return err
			}
			remote, err := client.Config(cmd.Context())
			if err != nil {
				fmt.Fprintln(out, cli.FormatWarning("Backend unreachable: "+err.Error()))
				return nil
			}
			fmt.Fprintln(out, cli.RenderBox("Backend", "  • Site URL: "+remote.BaseURL))
			return nil
		},
	}

	setBaseURL := &cobra.Command{
		Use:   "set-base-url URL",
		Short: "Change the site URL the backend automates against",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			cfg, err := client.SetBaseURL(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Backend site URL set to "+cfg.BaseURL))
			return nil
		},
	}

	cmd.AddCommand(show, setBaseURL)
	return cmd
}
