package main

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"text/tabwriter"
	"time"

	"distill/internal/database"

	"github.com/spf13/cobra"
)

func historyCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent summaries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			summaries, err := a.db.ListSummaries(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATED\tKIND\tPARTIAL\tHANDLE")

			for _, s := range summaries {
				fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%s\n",
					s.ID,
					s.CreatedAt.Local().Format(time.DateTime),
					s.Kind,
					s.Partial,
					truncate(s.Handle, 60))
			}

			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of summaries to list")

	return cmd
}

func showCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a stored summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}

			s, err := a.db.GetSummary(cmd.Context(), id)
			if errors.Is(err, database.ErrNotFound) {
				return fmt.Errorf("summary %d not found", id)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, s.FinalText)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "---")
			fmt.Fprintf(out, "source: %s %s\n", s.Kind, s.Handle)
			fmt.Fprintf(out, "run: %s, model: %s, chunks: %d, partial: %t\n", s.RunID, s.Model, s.ChunkCount, s.Partial)
			fmt.Fprintf(out, "created: %s\n", s.CreatedAt.Local().Format(time.DateTime))

			for _, key := range slices.Sorted(maps.Keys(s.Metadata)) {
				fmt.Fprintf(out, "%s: %s\n", key, truncate(s.Metadata[key], 200))
			}

			return nil
		},
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}

	return string(r[:n-1]) + "…"
}
