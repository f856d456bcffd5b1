package main

import (
	"fmt"
	"strconv"
	"time"

	btable "github.com/charmbracelet/bubbles/table"
	"github.com/spf13/cobra"

	"github.com/Veraticus/jobdeck/internal/cli"
	"github.com/Veraticus/jobdeck/internal/history"
	"github.com/Veraticus/jobdeck/internal/model"
	"github.com/Veraticus/jobdeck/internal/table"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect finished job runs",
	}

	var (
		kind  string
		limit int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := history.ListOptions{Limit: limit}
			if kind != "" {
				k, err := model.ParseJobKind(kind)
				if err != nil {
					return err
				}
				opts.Kind = k
			}

			store, err := history.OpenAndMigrate(cmd.Context(), settings.HistoryPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			runs, err := store.ListRuns(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No runs recorded yet."))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), table.Render(runColumns(), runRows(runs)))
			return nil
		},
	}
	list.Flags().StringVar(&kind, "kind", "", "only runs of this kind (generation, credits, payment, purchase)")
	list.Flags().IntVar(&limit, "limit", 20, "maximum number of runs")

	show := &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show one run and its console transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := history.OpenAndMigrate(cmd.Context(), settings.HistoryPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			run, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			transcript, err := store.Transcript(cmd.Context(), run.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			cli.PrintSummary(out, run)
			for _, entry := range transcript {
				fmt.Fprintln(out, cli.FormatEntry(entry))
			}
			return nil
		},
	}

	var olderThan time.Duration
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs older than a cutoff",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := history.OpenAndMigrate(cmd.Context(), settings.HistoryPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			n, err := store.Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Deleted %d runs.", n)))
			return nil
		},
	}
	prune.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "age of the oldest run to keep")

	cmd.AddCommand(list, show, prune)
	return cmd
}

func runColumns() []btable.Column {
	return []btable.Column{
		{Title: "Run", Width: 8},
		{Title: "Kind", Width: 16},
		{Title: "Status", Width: 9},
		{Title: "Started", Width: 19},
		{Title: "Duration", Width: 10},
		{Title: "Done", Width: 9},
	}
}

func runRows(runs []model.RunSummary) []btable.Row {
	rows := make([]btable.Row, 0, len(runs))
	for _, r := range runs {
		done := "-"
		if !r.Kind.IsSession() {
			done = strconv.Itoa(r.Completed) + "/" + strconv.Itoa(r.Total)
		}
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		rows = append(rows, btable.Row{
			id,
			r.Kind.Title(),
			string(r.Status),
			r.StartedAt.Local().Format(time.DateTime),
			r.Duration().Round(time.Second).String(),
			done,
		})
	}
	return rows
}
