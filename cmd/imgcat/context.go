package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"imgcat/internal/catalog"
	"imgcat/internal/config"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) openStore() (*config.Config, *catalog.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := catalog.Open(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open catalog: %w", err)
	}
	return cfg, store, nil
}

// acquireRunLock takes the single-writer lock in the data directory. Only
// one mutating command (run, refresh-hashes, prune) may work on a catalog at
// a time.
func acquireRunLock(cfg *config.Config) (*flock.Flock, error) {
	lock := flock.New(filepath.Join(cfg.Paths.DataDir, "imgcat.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another imgcat process holds %s", lock.Path())
	}
	return lock, nil
}

// versionArg parses an optional positional version, falling back to
// run.version.
func versionArg(cfg *config.Config, args []string) (int, error) {
	if len(args) == 0 {
		if cfg.Run.Version <= 0 {
			return 0, errors.New("version argument required (run.version is not set)")
		}
		return cfg.Run.Version, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid version %q", args[0])
	}
	return n, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
