package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"loom/internal/jobs"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	submitCmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit workflow invocations",
	}

	submitCmd.AddCommand(newSubmitOneCommand(ctx))
	submitCmd.AddCommand(newSubmitBatchCommand(ctx))
	submitCmd.AddCommand(newSubmitBundleCommand(ctx))

	return submitCmd
}

func newSubmitOneCommand(ctx *commandContext) *cobra.Command {
	var (
		assetID    int64
		workflowID string
		inputIDs   []int64
		paramFlags []string
	)

	cmd := &cobra.Command{
		Use:   "asset",
		Short: "Submit one workflow invocation for an asset",
		RunE: func(cmd *cobra.Command, args []string) error {
			if assetID == 0 && len(inputIDs) == 0 {
				return fmt.Errorf("either --asset or --input is required")
			}
			params, err := parseParamFlags(paramFlags)
			if err != nil {
				return err
			}
			return ctx.withServices(func(app *appServices) error {
				sub := app.jobs.Submit(cmd.Context(), jobs.SubmitRequest{
					AssetID:       assetID,
					WorkflowID:    workflowID,
					SupplementIDs: inputIDs,
					Parameters:    params,
				})
				if sub.Err != nil {
					return sub.Err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Submitted invocation %s for asset %d (container %s)\n",
					sub.InvocationID, sub.AssetID, sub.ContainerRef)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&assetID, "asset", 0, "Asset ID, omit to derive it from --input rows")
	cmd.Flags().StringVar(&workflowID, "workflow", "", "Workflow ID")
	cmd.Flags().Int64SliceVar(&inputIDs, "input", nil, "Result row IDs bound to the remaining input slots, in order")
	cmd.Flags().StringArrayVar(&paramFlags, "param", nil, "Step parameter override as step:name=value")
	_ = cmd.MarkFlagRequired("workflow")
	return cmd
}

func newSubmitBatchCommand(ctx *commandContext) *cobra.Command {
	var (
		workflowID string
		paramFlags []string
	)

	cmd := &cobra.Command{
		Use:   "batch <asset-id>...",
		Short: "Submit a workflow for several assets, isolating failures",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid asset ID %q", arg)
				}
				ids = append(ids, id)
			}
			params, err := parseParamFlags(paramFlags)
			if err != nil {
				return err
			}
			return ctx.withServices(func(app *appServices) error {
				submissions, tally := app.jobs.SubmitBatch(cmd.Context(), workflowID, ids, params)
				printSubmissions(cmd, submissions)
				return tallyError(tally)
			})
		},
	}

	cmd.Flags().StringVar(&workflowID, "workflow", "", "Workflow ID")
	cmd.Flags().StringArrayVar(&paramFlags, "param", nil, "Step parameter override as step:name=value")
	_ = cmd.MarkFlagRequired("workflow")
	return cmd
}

func newSubmitBundleCommand(ctx *commandContext) *cobra.Command {
	var (
		workflowID string
		paramFlags []string
	)

	cmd := &cobra.Command{
		Use:   "bundle <name>",
		Short: "Submit a workflow for every asset in a bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParamFlags(paramFlags)
			if err != nil {
				return err
			}
			return ctx.withServices(func(app *appServices) error {
				submissions, tally, err := app.jobs.SubmitBundle(cmd.Context(), workflowID, args[0], params)
				if err != nil {
					return err
				}
				printSubmissions(cmd, submissions)
				return tallyError(tally)
			})
		},
	}

	cmd.Flags().StringVar(&workflowID, "workflow", "", "Workflow ID")
	cmd.Flags().StringArrayVar(&paramFlags, "param", nil, "Step parameter override as step:name=value")
	_ = cmd.MarkFlagRequired("workflow")
	return cmd
}

func printSubmissions(cmd *cobra.Command, submissions []*jobs.Submission) {
	rows := make([][]string, 0, len(submissions))
	for _, sub := range submissions {
		outcome := "submitted"
		if sub.Err != nil {
			outcome = sub.Err.Error()
		}
		rows = append(rows, []string{
			strconv.FormatInt(sub.AssetID, 10),
			sub.InvocationID,
			outcome,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Asset", "Invocation", "Outcome"}, rows))
}

// parseParamFlags decodes step:name=value flags into the nested parameter
// map the orchestrator expects.
func parseParamFlags(flags []string) (map[string]map[string]string, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	params := make(map[string]map[string]string)
	for _, flag := range flags {
		stepAndRest := strings.SplitN(flag, ":", 2)
		if len(stepAndRest) != 2 {
			return nil, fmt.Errorf("invalid --param %q, expected step:name=value", flag)
		}
		nameAndValue := strings.SplitN(stepAndRest[1], "=", 2)
		if len(nameAndValue) != 2 {
			return nil, fmt.Errorf("invalid --param %q, expected step:name=value", flag)
		}
		step := stepAndRest[0]
		if params[step] == nil {
			params[step] = make(map[string]string)
		}
		params[step][nameAndValue[0]] = nameAndValue[1]
	}
	return params, nil
}
