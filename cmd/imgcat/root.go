package main

import (
	"github.com/spf13/cobra"
)

const (
	groupReconcile = "reconcile"
	groupInspect   = "inspect"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:   "imgcat",
		Short: "Versioned imaging catalog reconciler",
		Long: `imgcat keeps a versioned version/collection/patient/study/series/instance
catalog in step with its upstream sources and propagates content hashes up
the tree so any change is visible at the version root.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupReconcile, Title: "Reconciliation:"},
		&cobra.Group{ID: groupInspect, Title: "Inspection and publishing:"},
	)
	for _, cmd := range []*cobra.Command{
		newRunCommand(ctx),
		newRefreshCommand(ctx),
		newPruneCommand(ctx),
	} {
		cmd.GroupID = groupReconcile
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{
		newStatusCommand(ctx),
		newExportCommand(ctx),
		newPreflightCommand(ctx),
		newServeCommand(ctx),
	} {
		cmd.GroupID = groupInspect
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
