package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"imgcat/internal/logging"
	"imgcat/internal/preflight"
	"imgcat/internal/source"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check catalog, directories, and sources before a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			sources, err := source.Open(cfg, store, logging.NewNop())
			if err != nil {
				return err
			}

			results := preflight.RunAll(cmd.Context(), cfg, store, sources)
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				status := "ok"
				if !r.Passed {
					status = "FAIL"
				}
				rows = append(rows, []string{r.Name, status, r.Detail})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(out, "Preflight", []string{"Check", "Status", "Detail"}, rows, nil))
			if preflight.Failed(results) {
				return errors.New("preflight checks failed")
			}
			return nil
		},
	}
}
