package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
)

func newRefreshCommand(ctx *commandContext) *cobra.Command {
	refreshCmd := &cobra.Command{
		Use:   "refresh",
		Short: "Reconcile the local result table with the engine",
	}

	refreshCmd.AddCommand(newRefreshOneCommand(ctx))
	refreshCmd.AddCommand(newRefreshIncompleteCommand(ctx))
	refreshCmd.AddCommand(newRefreshAllCommand(ctx))

	return refreshCmd
}

func newRefreshOneCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "one <result-id>",
		Short: "Refresh the status of a single result row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid result ID %q", args[0])
			}
			return ctx.withServices(func(app *appServices) error {
				row, err := app.reconcile.RefreshOne(cmd.Context(), id)
				if err != nil {
					return err
				}
				if row == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Result %d removed: its output no longer exists on the engine\n", id)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Result %d is now %s\n", row.ID, displayStatus(row.Status))
				return nil
			})
		},
	}
	return cmd
}

func newRefreshIncompleteCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "incomplete",
		Short: "Refresh every incomplete result past the status window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(app *appServices) error {
				tally, err := app.reconcile.RefreshIncomplete(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Refreshed %d rows, %d failed\n", tally.Succeeded, tally.Failed())
				return tallyError(tally)
			})
		},
	}
	return cmd
}

func newRefreshAllCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "all",
		Short: "Run a full reconciliation sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(app *appServices) error {
				// Concurrent sweeps would race on the mark-and-sweep phase.
				lock := flock.New(filepath.Join(app.cfg.Paths.DataDir, "sweep.lock"))
				locked, err := lock.TryLock()
				if err != nil {
					return fmt.Errorf("acquire sweep lock: %w", err)
				}
				if !locked {
					return fmt.Errorf("another sweep is already running")
				}
				defer func() { _ = lock.Unlock() }()

				report, err := app.reconcile.RefreshAll(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(),
					"Sweep complete: %d assets visited, %d skipped, %d rows updated, %d rows removed\n",
					report.AssetsVisited, report.AssetsSkipped, report.RowsUpserted, report.RowsDeleted)
				return nil
			})
		},
	}
	return cmd
}
