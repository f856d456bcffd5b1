package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/jobdeck/internal/backend"
	"github.com/Veraticus/jobdeck/internal/cli"
	"github.com/Veraticus/jobdeck/internal/common"
	"github.com/Veraticus/jobdeck/internal/job"
	"github.com/Veraticus/jobdeck/internal/model"
	"github.com/Veraticus/jobdeck/internal/quota"
	"github.com/Veraticus/jobdeck/internal/validate"
)

// jobRun is one headless job invocation.
type jobRun struct {
	out     io.Writer
	errOut  io.Writer
	client  *backend.Client
	req     any
	kind    model.JobKind
	showBar bool
	// observers are notified of every controller event.
	observers []job.Observer
}

// runJob submits one job, renders its progress until it ends and prints the
// summary. The first Ctrl-C asks the backend to stop; the second one gives up
// waiting.
func runJob(ctx context.Context, r jobRun) (model.RunSummary, error) {
	renderer := cli.NewProgressRenderer(r.out, r.kind, r.showBar)
	opts := []job.Option{job.WithObserver(renderer)}
	for _, o := range r.observers {
		opts = append(opts, job.WithObserver(o))
	}

	ctrl, err := newController(r.client, r.kind, renderer, opts...)
	if err != nil {
		return model.RunSummary{}, err
	}
	defer ctrl.Close()

	handler := cli.NewInterruptHandler(r.errOut)
	ctx = handler.HandleInterrupts(ctx, func() {
		go func() {
			if err := ctrl.RequestCancel(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("Failed to stop job", "kind", r.kind, "error", err)
			}
		}()
	})

	if err := ctrl.Submit(ctx, r.req); err != nil {
		return model.RunSummary{}, err
	}

	summary, err := renderer.Wait(ctx)
	if err != nil {
		return model.RunSummary{}, fmt.Errorf("stopped waiting for %s: %w", strings.ToLower(r.kind.Title()), err)
	}
	cli.PrintSummary(r.out, summary)

	if summary.Status == model.StatusError {
		return summary, fmt.Errorf("%s failed: %s", strings.ToLower(r.kind.Title()), summary.Message)
	}
	return summary, nil
}

// runJobCmd wires a job command to runJob with history recording.
func runJobCmd(cmd *cobra.Command, client *backend.Client, kind model.JobKind, req any) error {
	noProgress, _ := cmd.Flags().GetBool("no-progress")

	r := jobRun{
		out:     cmd.OutOrStdout(),
		errOut:  cmd.ErrOrStderr(),
		client:  client,
		kind:    kind,
		req:     req,
		showBar: !noProgress,
	}
	if store := openHistory(cmd.Context()); store != nil {
		defer func() { _ = store.Close() }()
		r.observers = append(r.observers, store)
	}

	_, err := runJob(cmd.Context(), r)
	return err
}

func addJobFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("no-progress", false, "print console lines only, without a progress bar")
}

func generateCmd() *cobra.Command {
	var (
		req   model.GenerationRequest
		gmail string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate accounts from one email identity",
		Long: `Generate accounts from one email identity.

For Gmail addresses each account uses a dot variation of the identity, so the
count is limited to the variations not used yet. The limit is checked before
anything is submitted.`,
		Example: `  jobdeck generate --email jane.doe@gmail.com --password 'Secret123' --count 3
  jobdeck generate --email ops@example.com --password 'Secret123' \
    --geo "29.452137, -98.642559" --address "1 Main St, San Antonio, TX 78201"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}

			req.IsGmail, err = parseAliasing(gmail, req.Email)
			if err != nil {
				return err
			}
			if err := checkGeneration(cmd.Context(), client, req); err != nil {
				return err
			}
			return runJobCmd(cmd, client, model.KindGeneration, req)
		},
	}

	cmd.Flags().StringVar(&req.Email, "email", "", "email identity")
	cmd.Flags().StringVar(&req.Password, "password", "", "password for the new accounts")
	cmd.Flags().StringVar(&req.Geolocation, "geo", "", `custom location, "lat, long"`)
	cmd.Flags().StringVar(&req.FullAddress, "address", "", "full address of the custom location")
	cmd.Flags().IntVar(&req.Count, "count", 1, "number of accounts")
	cmd.Flags().StringVar(&gmail, "aliasing", "auto", "dot aliasing (auto, on, off)")
	addJobFlags(cmd)
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

// parseAliasing resolves the --aliasing flag for email.
func parseAliasing(mode, email string) (bool, error) {
	switch strings.ToLower(mode) {
	case "auto", "":
		return quota.IsAliasable(email), nil
	case "on", "true", "yes":
		return true, nil
	case "off", "false", "no":
		return false, nil
	default:
		return false, common.NewUserError(fmt.Sprintf("invalid --aliasing %q (use auto, on or off)", mode), nil)
	}
}

// checkGeneration validates req and checks it against the identity's quota.
func checkGeneration(ctx context.Context, client *backend.Client, req model.GenerationRequest) error {
	locations, err := client.Locations(ctx)
	if err != nil {
		return err
	}
	if err := validate.Generation(req, locations.HasLocations); err != nil {
		return err
	}

	guard := quota.NewGuard(client, quota.WithTTL(settings.QuotaTTL))
	defer guard.Close()
	state, err := guard.Resolve(ctx, req.Email, req.IsGmail)
	if err != nil {
		return err
	}
	if err := guard.Allow(req.Email, req.IsGmail, req.Count); err != nil {
		return fmt.Errorf("%s: %w", state.Hint(), err)
	}
	return nil
}

func creditsCmd() *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "credits",
		Short: "Refresh the remaining credit of every account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			return runJobCmd(cmd, client, model.KindCreditRefresh, model.CreditRefreshRequest{StartEmail: strings.TrimSpace(from)})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "start with this account and continue in table order")
	addJobFlags(cmd)
	return cmd
}

func paymentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payment",
		Short: "Set up payment methods",
	}

	start := &cobra.Command{
		Use:   "start EMAIL",
		Short: "Open a payment session for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return startSession(cmd, model.KindPaymentSession, args[0])
		},
	}
	addJobFlags(start)

	var yes bool
	next := &cobra.Command{
		Use:   "next",
		Short: "Open a payment session for the next account without one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			stats, err := fetchPaymentStats(cmd.Context(), client)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if stats.NextAccount == nil {
				fmt.Fprintln(out, cli.FormatSuccess("Every account has a payment method."))
				return nil
			}
			fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("%d of %d accounts without payment.", stats.NoPayment, stats.Total)))

			if !yes {
				reader := cli.NewNonBlockingReader(cmd.InOrStdin())
				ok, err := cli.Confirm(cmd.Context(), reader, out, "Open a payment session for "+stats.NextAccount.Email+"?", true)
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
			}
			return runJobCmd(cmd, client, model.KindPaymentSession, model.SessionRequest{Email: stats.NextAccount.Email})
		},
	}
	next.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	addJobFlags(next)

	skip := &cobra.Command{
		Use:   "skip EMAIL",
		Short: "Close the payment session of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			if err := client.SkipPayment(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning("Account skipped."))
			return nil
		},
	}

	alias := &cobra.Command{
		Use:   "alias EMAIL ALIAS",
		Short: "Record the card alias of an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validate.CardAlias(args[0], args[1]); err != nil {
				return err
			}
			client, err := newClient()
			if err != nil {
				return err
			}
			if err := client.SetCardAlias(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Card alias %q saved for %s.", args[1], args[0])))
			return nil
		},
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show how many accounts still need a payment method",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			s, err := fetchPaymentStats(cmd.Context(), client)
			if err != nil {
				return err
			}
			body := fmt.Sprintf("  • Accounts: %d\n  • Without payment: %d", s.Total, s.NoPayment)
			if s.NextAccount != nil {
				body += "\n  • Next: " + s.NextAccount.Email
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox("Payment", body))
			return nil
		},
	}

	cmd.AddCommand(start, next, skip, alias, stats)
	return cmd
}

func purchaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purchase",
		Short: "Run purchase browser sessions",
	}

	start := &cobra.Command{
		Use:   "start EMAIL",
		Short: "Open a purchase session for an account with a card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return startSession(cmd, model.KindPurchaseSession, args[0])
		},
	}
	addJobFlags(start)

	stop := &cobra.Command{
		Use:   "stop EMAIL",
		Short: "Close the purchase session of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			if err := client.StopPurchase(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning("Purchase session stopped."))
			return nil
		},
	}

	cmd.AddCommand(start, stop, sessionsCmd())
	return cmd
}

// startSession checks the account and runs a session job for it.
func startSession(cmd *cobra.Command, kind model.JobKind, email string) error {
	req := model.SessionRequest{Email: strings.TrimSpace(email)}
	if err := validate.Session(req); err != nil {
		return err
	}
	client, err := newClient()
	if err != nil {
		return err
	}
	if kind == model.KindPurchaseSession {
		if err := checkEligible(cmd.Context(), client, req.Email); err != nil {
			return err
		}
	}
	return runJobCmd(cmd, client, kind, req)
}

func checkEligible(ctx context.Context, client *backend.Client, email string) error {
	_, eligible, err := client.PurchaseAccounts(ctx)
	if err != nil {
		return err
	}
	for _, row := range eligible {
		if strings.EqualFold(row.Email, email) {
			return nil
		}
	}
	return common.NewUserError(email+" has no card; add a payment method first", common.ErrNotFound)
}

func fetchPaymentStats(ctx context.Context, client *backend.Client) (model.PaymentStats, error) {
	return common.RetryRead(ctx, "load payment stats", common.DefaultReadPolicy, client.PaymentStats)
}
