package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"loom/internal/results"
)

var statusCaser = cases.Title(language.English)

func displayStatus(status results.Status) string {
	return statusCaser.String(strings.ReplaceAll(strings.ToLower(string(status)), "_", " "))
}

func newResultsCommand(ctx *commandContext) *cobra.Command {
	resultsCmd := &cobra.Command{
		Use:   "results",
		Short: "Inspect and curate the local result table",
	}

	resultsCmd.AddCommand(newResultsListCommand(ctx))
	resultsCmd.AddCommand(newResultsSearchCommand(ctx))
	resultsCmd.AddCommand(newResultsSetFinalCommand(ctx))
	resultsCmd.AddCommand(newResultsFinalCommand(ctx))
	resultsCmd.AddCommand(newResultsStatsCommand(ctx))

	return resultsCmd
}

func resultRows(rows []*results.Result) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		relevant := ""
		if r.Relevant {
			relevant = "yes"
		}
		final := ""
		if r.IsFinal {
			final = "yes"
		}
		out = append(out, []string{
			strconv.FormatInt(r.ID, 10),
			r.AssetName,
			r.WorkflowName,
			r.StepName,
			r.OutputName,
			displayStatus(r.Status),
			relevant,
			final,
		})
	}
	return out
}

var resultHeaders = []string{"ID", "Asset", "Workflow", "Step", "Output", "Status", "Relevant", "Final"}

func newResultsListCommand(ctx *commandContext) *cobra.Command {
	var assetID int64

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List result rows for an asset",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(app *appServices) error {
				rows, err := app.results.FindByAsset(cmd.Context(), assetID)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(resultHeaders, resultRows(rows)))
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&assetID, "asset", 0, "Asset ID")
	_ = cmd.MarkFlagRequired("asset")
	return cmd
}

func newResultsSearchCommand(ctx *commandContext) *cobra.Command {
	var (
		workflowID string
		stepName   string
		outputName string
		relevance  string
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search result rows by workflow, step, and output",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := results.SearchQuery{
				WorkflowID: workflowID,
				StepName:   stepName,
				OutputName: outputName,
			}
			switch relevance {
			case "":
			case "relevant":
				v := true
				query.Relevant = &v
			case "irrelevant":
				v := false
				query.Relevant = &v
			default:
				return fmt.Errorf("invalid --relevance %q, expected relevant or irrelevant", relevance)
			}
			return ctx.withServices(func(app *appServices) error {
				rows, err := app.results.Search(cmd.Context(), query)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(resultHeaders, resultRows(rows)))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&workflowID, "workflow", results.Wildcard, "Workflow ID to match, * for any")
	cmd.Flags().StringVar(&stepName, "step", results.Wildcard, "Step name to match, * for any")
	cmd.Flags().StringVar(&outputName, "output", results.Wildcard, "Output name to match, * for any")
	cmd.Flags().StringVar(&relevance, "relevance", "", "Restrict to relevant or irrelevant rows")
	return cmd
}

func newResultsSetFinalCommand(ctx *commandContext) *cobra.Command {
	var clear bool

	cmd := &cobra.Command{
		Use:   "set-final <result-id>",
		Short: "Mark a result row as final (or clear the flag)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid result ID %q", args[0])
			}
			return ctx.withServices(func(app *appServices) error {
				row, err := app.results.SetFinal(cmd.Context(), id, !clear)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Result %d final=%t (%s / %s)\n",
					row.ID, row.IsFinal, row.StepName, row.OutputName)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clear, "clear", false, "Clear the final flag instead of setting it")
	return cmd
}

func newResultsFinalCommand(ctx *commandContext) *cobra.Command {
	var assetID int64

	cmd := &cobra.Command{
		Use:   "final",
		Short: "List the curated final results for an asset",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(app *appServices) error {
				rows, err := app.reconcile.FinalResults(cmd.Context(), assetID)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(resultHeaders, resultRows(rows)))
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&assetID, "asset", 0, "Asset ID")
	_ = cmd.MarkFlagRequired("asset")
	return cmd
}

func newResultsStatsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show result counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(app *appServices) error {
				stats, err := app.results.Stats(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(stats))
				for status, count := range stats {
					rows = append(rows, []string{displayStatus(status), strconv.Itoa(count)})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Status", "Count"}, rows))
				return nil
			})
		},
	}
	return cmd
}
