package main

import (
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"imgcat/internal/catalog"
	"imgcat/internal/journal"
	"imgcat/internal/logging"
	"imgcat/internal/reconcile"
)

func newRefreshCommand(ctx *commandContext) *cobra.Command {
	var restart bool

	cmd := &cobra.Command{
		Use:   "refresh-hashes",
		Short: "Recompute combined hashes from children, level by level",
		Long: `Walk every done entity from series up to versions and rewrite combined
hashes that no longer match their children. Completed shards are journaled,
so an interrupted pass resumes; a finished pass clears its journals.
--restart discards the progress of an interrupted pass first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			lock, err := acquireRunLock(cfg)
			if err != nil {
				return err
			}
			defer lock.Unlock()

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			if restart {
				for _, level := range catalog.Levels[:len(catalog.Levels)-1] {
					if err := journal.Remove(cfg, journal.RefreshName(string(level))); err != nil {
						return err
					}
				}
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			results, err := reconcile.RefreshHashes(signalCtx, cfg, store, journal.NewDir(cfg), logger)

			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{titleCase(string(r.Level)), strconv.FormatInt(r.Scanned, 10), strconv.FormatInt(r.Changed, 10)})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(out, "Hash refresh",
				[]string{"Level", "Scanned", "Changed"}, rows,
				[]columnAlignment{alignLeft, alignRight, alignRight}))
			return err
		},
	}

	cmd.Flags().BoolVar(&restart, "restart", false, "Discard the progress of an interrupted pass and scan every shard again")
	return cmd
}
