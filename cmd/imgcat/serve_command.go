package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"imgcat/internal/api"
	"imgcat/internal/logging"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve Prometheus metrics and version status over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			if strings.TrimSpace(bind) == "" {
				bind = cfg.Metrics.Bind
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			srv := api.NewServer(bind, store, logger)
			if err := srv.Start(signalCtx); err != nil {
				return err
			}
			<-signalCtx.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (default metrics.bind)")
	return cmd
}
