package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"imgcat/internal/config"
	"imgcat/internal/fileutil"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "Create or check the configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}
	cmd.AddCommand(newConfigInitCommand(), newConfigValidateCommand(ctx))
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		targetPath string
		overwrite  bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the sample configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveInitPath(targetPath)
			if err != nil {
				return err
			}
			exists, err := fileutil.Exists(target)
			if err != nil {
				return fmt.Errorf("check config path: %w", err)
			}
			if exists && !overwrite {
				return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the [[sources]] tables before the first run; their order fixes every hash vector.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func resolveInitPath(flagValue string) (string, error) {
	if strings.TrimSpace(flagValue) == "" {
		path, err := config.DefaultConfigPath()
		if err != nil {
			return "", fmt.Errorf("determine default config path: %w", err)
		}
		return path, nil
	}
	path, err := config.ExpandPath(flagValue)
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return path, nil
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration and list its sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(ctx.configPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}

			out := cmd.OutOrStdout()
			if exists {
				fmt.Fprintf(out, "Config path: %s\n", path)
			} else {
				fmt.Fprintf(out, "Config path: %s (missing, defaults used)\n", path)
			}
			rows := make([][]string, 0, len(cfg.Sources))
			for i, src := range cfg.Sources {
				location := src.URL
				if location == "" {
					location = src.Path
				}
				if src.Kind == config.SourceKindCatalog {
					location = fmt.Sprintf("catalog v%d", src.CatalogVersion)
				}
				rows = append(rows, []string{fmt.Sprint(i), src.Name, src.Kind, location, strings.Join(skippedIn(cfg, src.Name), ", ")})
			}
			fmt.Fprintln(out, renderTable(out, "Sources",
				[]string{"#", "Name", "Kind", "Location", "Skipped in"}, rows,
				[]columnAlignment{alignRight}))
			fmt.Fprintf(out, "Sources: %s\n", strings.Join(cfg.SourceNames(), ", "))
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

// skippedIn lists the collections whose skip list names source.
func skippedIn(cfg *config.Config, source string) []string {
	var collections []string
	for collection, names := range cfg.Skip {
		for _, name := range names {
			if name == source {
				collections = append(collections, collection)
			}
		}
	}
	slices.Sort(collections)
	return collections
}
