package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"imgcat/internal/api"
	"imgcat/internal/catalog"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status [version]",
		Short: "Show recorded versions, or the per-level counts of one version",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				records, err := store.Versions(cmd.Context())
				if err != nil {
					return err
				}
				versions := make([]api.Version, 0, len(records))
				for _, rec := range records {
					versions = append(versions, api.FromEntity(rec))
				}
				if jsonOutput {
					return writeJSON(cmd, api.VersionListResponse{Versions: versions})
				}
				renderVersionList(out, versions)
				return nil
			}

			n, err := versionArg(nil, args)
			if err != nil {
				return err
			}
			record, err := store.Version(cmd.Context(), n)
			if errors.Is(err, catalog.ErrNotFound) {
				return fmt.Errorf("version %d has not been started", n)
			}
			if err != nil {
				return err
			}
			counts, err := store.LevelCounts(cmd.Context(), record.ID)
			if err != nil {
				return err
			}
			sum := api.VersionSummary{Version: api.FromEntity(record), Levels: api.FromLevelCounts(counts[1:])}
			if jsonOutput {
				return writeJSON(cmd, sum)
			}
			renderVersionSummary(out, sum)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of a table")
	return cmd
}
