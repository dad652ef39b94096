package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"loom/internal/results"
)

func newRelevanceCommand(ctx *commandContext) *cobra.Command {
	var (
		workflowID string
		stepName   string
		outputName string
		matches    []string
	)

	relevanceCmd := &cobra.Command{
		Use:   "relevance",
		Short: "Toggle result relevance and engine visibility",
	}

	makeRun := func(relevant bool) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(app *appServices) error {
				criteria, err := relevanceCriteria(matches, workflowID, stepName, outputName)
				if err != nil {
					return err
				}
				tally, err := app.reconcile.SetRelevant(cmd.Context(), criteria, relevant)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Toggled %d rows, %d failed\n", tally.Succeeded, tally.Failed())
				return tallyError(tally)
			})
		}
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Mark matching rows relevant and visible on the engine",
		RunE:  makeRun(true),
	}
	hideCmd := &cobra.Command{
		Use:   "hide",
		Short: "Mark matching rows irrelevant and hidden on the engine",
		RunE:  makeRun(false),
	}

	relevanceCmd.PersistentFlags().StringVar(&workflowID, "workflow", results.Wildcard, "Workflow ID to match, * for any")
	relevanceCmd.PersistentFlags().StringVar(&stepName, "step", results.Wildcard, "Step name to match, * for any")
	relevanceCmd.PersistentFlags().StringVar(&outputName, "output", results.Wildcard, "Output name to match, * for any")
	relevanceCmd.PersistentFlags().StringArrayVar(&matches, "match", nil, "workflow:step:output criterion, repeatable; overrides the single flags")

	relevanceCmd.AddCommand(showCmd)
	relevanceCmd.AddCommand(hideCmd)
	return relevanceCmd
}

// relevanceCriteria builds the query list. Repeated --match criteria take
// precedence over the single workflow/step/output flags; rows matching any
// criterion are toggled.
func relevanceCriteria(matches []string, workflowID, stepName, outputName string) ([]results.SearchQuery, error) {
	if len(matches) == 0 {
		return []results.SearchQuery{{
			WorkflowID: workflowID,
			StepName:   stepName,
			OutputName: outputName,
		}}, nil
	}
	var criteria []results.SearchQuery
	for _, match := range matches {
		parts := strings.Split(match, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid --match %q, expected workflow:step:output", match)
		}
		criteria = append(criteria, results.SearchQuery{
			WorkflowID: parts[0],
			StepName:   parts[1],
			OutputName: parts[2],
		})
	}
	return criteria, nil
}
