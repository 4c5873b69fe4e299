package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"imgcat/internal/catalog"
	"imgcat/internal/config"
	"imgcat/internal/journal"
	"imgcat/internal/logging"
	"imgcat/internal/preflight"
	"imgcat/internal/reconcile"
	"imgcat/internal/source"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		collections   []string
		previous      int
		skipPreflight bool
		jsonOutput    bool
	)

	cmd := &cobra.Command{
		Use:   "run [version]",
		Short: "Reconcile a catalog version against its sources",
		Long: `Create or resume a catalog version and reconcile every collection
against the configured sources. Collections finished by an earlier attempt
are skipped. The version is marked done once every collection is built.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			version, err := versionArg(cfg, args)
			if err != nil {
				return err
			}
			if version != cfg.Run.Version {
				cfg.Run.Version = version
				cfg.Run.PreviousVersion = version - 1
			}
			if cmd.Flags().Changed("previous") {
				cfg.Run.PreviousVersion = previous
			}
			if cfg.Run.PreviousVersion >= cfg.Run.Version {
				return fmt.Errorf("previous version %d must be lower than %d", cfg.Run.PreviousVersion, cfg.Run.Version)
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			result, runErr := runReconcile(signalCtx, cfg, collections, skipPreflight)
			if result == nil {
				return runErr
			}
			sum := summarizeRun(result)
			if jsonOutput {
				if err := writeJSON(cmd, sum); err != nil {
					return err
				}
			} else {
				renderRunReport(cmd.OutOrStdout(), sum)
			}
			if runErr != nil {
				return fmt.Errorf("%d subtree(s) failed; re-run to resume: %w", len(sum.Failures), runErr)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&collections, "collection", nil, "Only build these collections (repeatable)")
	cmd.Flags().IntVar(&previous, "previous", 0, "Previous version to carry forward (default version-1; 0 starts empty)")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Do not run preflight checks first")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the report as JSON")
	return cmd
}

func runReconcile(ctx context.Context, cfg *config.Config, collections []string, skipPreflight bool) (*reconcile.Result, error) {
	lock, err := acquireRunLock(cfg)
	if err != nil {
		return nil, err
	}
	defer lock.Unlock()

	runID := uuid.NewString()
	logger, closer, err := logging.NewRunLogger(cfg, runID)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	defer closer.Close()
	ctx = logging.WithRunID(ctx, runID)

	store, err := catalog.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer store.Close()

	sources, err := source.Open(cfg, store, logger)
	if err != nil {
		return nil, err
	}

	if !skipPreflight {
		results := preflight.RunAll(ctx, cfg, store, sources)
		for _, r := range results {
			if !r.Passed {
				logging.ErrorWithContext(logger, "preflight check failed", "preflight_failed",
					logging.String("check", r.Name),
					logging.String("detail", r.Detail),
					logging.String(logging.FieldErrorHint, "run imgcat preflight for details"),
				)
			}
		}
		if preflight.Failed(results) {
			return nil, errors.New("preflight checks failed")
		}
	}

	jrnl, err := journal.Open(cfg, journal.RunName(cfg.Run.Version))
	if err != nil {
		return nil, err
	}
	defer jrnl.Close()

	runner := reconcile.NewRunner(cfg, store, sources, jrnl, logger)
	return runner.Run(ctx, reconcile.RunOptions{Collections: collections})
}
