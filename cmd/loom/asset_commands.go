package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"loom/internal/assets"
)

func newAssetCommand(ctx *commandContext) *cobra.Command {
	assetCmd := &cobra.Command{
		Use:   "assets",
		Short: "Manage local assets",
	}

	assetCmd.AddCommand(newAssetAddCommand(ctx))
	assetCmd.AddCommand(newAssetListCommand(ctx))
	assetCmd.AddCommand(newAssetBundleCommand(ctx))
	assetCmd.AddCommand(newAssetTrainingCommand(ctx))
	assetCmd.AddCommand(newAssetInvocationsCommand(ctx))
	assetCmd.AddCommand(newAssetOutputCommand(ctx))

	return assetCmd
}

func newAssetAddCommand(ctx *commandContext) *cobra.Command {
	var asset assets.Asset

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a media asset",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(app *appServices) error {
				if err := app.assets.Create(cmd.Context(), &asset); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered asset %d (%s)\n", asset.ID, asset.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&asset.Name, "name", "", "Asset display name")
	cmd.Flags().StringVar(&asset.Pathname, "path", "", "Media path relative to the media directory")
	cmd.Flags().StringVar(&asset.MediaInfoPath, "media-info", "", "Path to the media info file")
	cmd.Flags().Int64Var(&asset.UnitID, "unit", 0, "Unit ID")
	cmd.Flags().StringVar(&asset.UnitName, "unit-name", "", "Unit name")
	cmd.Flags().Int64Var(&asset.CollectionID, "collection", 0, "Collection ID")
	cmd.Flags().StringVar(&asset.CollectionName, "collection-name", "", "Collection name")
	cmd.Flags().StringVar(&asset.TaskManager, "task-manager", "", "Task manager for human-in-the-loop steps")
	cmd.Flags().Int64Var(&asset.ItemID, "item", 0, "Item ID")
	cmd.Flags().StringVar(&asset.ItemName, "item-name", "", "Item name")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func newAssetListCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List staged assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(app *appServices) error {
				staged, err := app.assets.ListStaged(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(staged))
				for _, a := range staged {
					rows = append(rows, []string{
						strconv.FormatInt(a.ID, 10), a.Name, a.CollectionName, a.ContainerRef,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Name", "Collection", "Container"}, rows))
				return nil
			})
		},
	}
	return cmd
}

func newAssetBundleCommand(ctx *commandContext) *cobra.Command {
	bundleCmd := &cobra.Command{
		Use:   "bundle",
		Short: "Manage asset bundles",
	}

	addCmd := &cobra.Command{
		Use:   "add <bundle> <asset-id>...",
		Short: "Add assets to a bundle",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(app *appServices) error {
				for _, arg := range args[1:] {
					id, err := strconv.ParseInt(arg, 10, 64)
					if err != nil {
						return fmt.Errorf("invalid asset ID %q", arg)
					}
					if err := app.assets.AddToBundle(cmd.Context(), args[0], id); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %d assets to bundle %s\n", len(args)-1, args[0])
				return nil
			})
		},
	}

	listCmd := &cobra.Command{
		Use:   "list <bundle>",
		Short: "List the assets in a bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(app *appServices) error {
				members, err := app.assets.ListBundle(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(members))
				for _, a := range members {
					rows = append(rows, []string{strconv.FormatInt(a.ID, 10), a.Name, a.ItemName})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Name", "Item"}, rows))
				return nil
			})
		},
	}

	bundleCmd.AddCommand(addCmd)
	bundleCmd.AddCommand(listCmd)
	return bundleCmd
}

func newAssetTrainingCommand(ctx *commandContext) *cobra.Command {
	var (
		collectionID int64
		name         string
		pathname     string
	)

	cmd := &cobra.Command{
		Use:   "training",
		Short: "Register a training asset for a collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(app *appServices) error {
				if err := app.assets.RegisterTrainingAsset(cmd.Context(), collectionID, name, pathname); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered training asset %q for collection %d\n", name, collectionID)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&collectionID, "collection", 0, "Collection ID")
	cmd.Flags().StringVar(&name, "name", "", "Logical training set name")
	cmd.Flags().StringVar(&pathname, "path", "", "Training file path")
	_ = cmd.MarkFlagRequired("collection")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func newAssetInvocationsCommand(ctx *commandContext) *cobra.Command {
	var workflowID string

	cmd := &cobra.Command{
		Use:   "invocations <asset-id>",
		Short: "List engine invocations recorded against an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			assetID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid asset ID %q", args[0])
			}
			return ctx.withServices(func(app *appServices) error {
				invs, err := app.jobs.ListInvocations(cmd.Context(), assetID, workflowID)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(invs))
				for _, inv := range invs {
					rows = append(rows, []string{inv.ID, inv.WorkflowID, inv.State})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Invocation", "Workflow", "State"}, rows))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&workflowID, "workflow", "", "Restrict to one workflow")
	return cmd
}

func newAssetOutputCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "output <asset-id> <output-id>",
		Short: "Show the live engine state of one output",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			assetID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid asset ID %q", args[0])
			}
			return ctx.withServices(func(app *appServices) error {
				output, err := app.jobs.ShowOutput(cmd.Context(), assetID, args[1])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Output:  %s (%s)\n", output.Name, output.ID)
				fmt.Fprintf(out, "State:   %s\n", output.State)
				fmt.Fprintf(out, "Visible: %t\n", output.Visible)
				fmt.Fprintf(out, "File:    %s (%s)\n", output.FileName, output.FileExt)
				return nil
			})
		},
	}
	return cmd
}
