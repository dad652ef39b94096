package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newWorkflowsCommand(ctx *commandContext) *cobra.Command {
	workflowsCmd := &cobra.Command{
		Use:   "workflows",
		Short: "Inspect engine workflows",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the workflows visible on the engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(app *appServices) error {
				listed, err := app.workflows.List(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(listed))
				for _, wf := range listed {
					rows = append(rows, []string{wf.ID, wf.Name})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Name"}, rows))
				return nil
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear-cache",
		Short: "Drop memoized workflow names",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(app *appServices) error {
				app.workflows.ClearCaches()
				fmt.Fprintln(cmd.OutOrStdout(), "Workflow name cache cleared")
				return nil
			})
		},
	}

	workflowsCmd.AddCommand(listCmd)
	workflowsCmd.AddCommand(clearCmd)
	return workflowsCmd
}
