package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"imgcat/internal/catalog"
	"imgcat/internal/journal"
)

func newPruneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prune <version>",
		Short: "Discard an unfinished version",
		Long: `Delete the entities created or revised by an unfinished version, undo the
retirements it stamped, and clear its run journal. Done versions are refused.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := versionArg(cfg, args)
			if err != nil {
				return err
			}
			lock, err := acquireRunLock(cfg)
			if err != nil {
				return err
			}
			defer lock.Unlock()

			removed, err := store.PruneVersion(cmd.Context(), n)
			switch {
			case errors.Is(err, catalog.ErrVersionDone):
				return fmt.Errorf("version %d is done and cannot be pruned", n)
			case err != nil:
				return err
			}
			if err := journal.Remove(cfg, journal.RunName(n)); err != nil {
				return fmt.Errorf("clear run journal: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned version %d: %d entities removed\n", n, removed)
			return nil
		},
	}
}
