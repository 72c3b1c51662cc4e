package main

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"distill/internal/domain"
	"distill/internal/extractor"

	"github.com/spf13/cobra"
)

func watchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Manage sources that serve re-summarizes on change",
	}

	cmd.AddCommand(watchAddCmd(a), watchListCmd(a), watchRemoveCmd(a))

	return cmd
}

func watchAddCmd(a *app) *cobra.Command {
	var kindFlag string

	cmd := &cobra.Command{
		Use:   "add <input>",
		Short: "Watch a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := extractor.Detect(args[0])
			if kindFlag != "" {
				var err error
				if kind, err = domain.ParseSourceKind(kindFlag); err != nil {
					return err
				}
			}

			if kind == domain.SourceText {
				return errors.New("raw text cannot be watched")
			}

			id, err := a.db.AddWatch(cmd.Context(), kind, args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "watch %d: %s %s\n", id, kind, args[0])

			return nil
		},
	}

	cmd.Flags().StringVar(&kindFlag, "kind", "", "source kind (detected when empty)")

	return cmd
}

func watchListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List watched sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			watches, err := a.db.ListWatches(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tLAST RUN\tHANDLE")

			for _, watch := range watches {
				lastRun := "never"
				if !watch.LastRunAt.IsZero() {
					lastRun = watch.LastRunAt.Local().Format(time.DateTime)
				}

				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", watch.ID, watch.Kind, lastRun, watch.Handle)
			}

			return w.Flush()
		},
	}
}

func watchRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Stop watching a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}

			return a.db.RemoveWatch(cmd.Context(), id)
		},
	}
}
