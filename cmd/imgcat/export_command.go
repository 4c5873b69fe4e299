package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"imgcat/internal/export"
	"imgcat/internal/logging"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export [version]",
		Short: "Write the index objects of a done version to the export sink",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			version, err := versionArg(cfg, args)
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			sink, err := export.OpenSink(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer sink.Close()

			sum, err := export.New(cfg, store, sink, logger).Export(cmd.Context(), version)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported version %d to %s: %d written, %d already present\n",
				version, sink.Location(), sum.Written, sum.Skipped)
			return nil
		},
	}
}
