package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateRun(); err != nil {
		return err
	}
	if err := c.validateSources(); err != nil {
		return err
	}
	if err := c.validateSkip(); err != nil {
		return err
	}
	if err := c.validateJournal(); err != nil {
		return err
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCatalog() error {
	switch c.Catalog.Driver {
	case CatalogDriverSQLite:
	case CatalogDriverPostgres:
		if c.Catalog.DSN == "" {
			return errors.New("catalog.dsn is required for the postgres driver (or set IMGCAT_CATALOG_DSN)")
		}
	default:
		return fmt.Errorf("catalog.driver: unsupported value %q (expected sqlite or postgres)", c.Catalog.Driver)
	}
	return nil
}

func (c *Config) validateRun() error {
	if c.Run.Version < 0 {
		return errors.New("run.version must be >= 0")
	}
	if c.Run.PreviousVersion < 0 {
		return errors.New("run.previous_version must be >= 0")
	}
	if c.Run.Version > 0 && c.Run.PreviousVersion >= c.Run.Version {
		return errors.New("run.previous_version must be lower than run.version")
	}
	if err := ensurePositiveMap(map[string]int{
		"run.workers":          c.Run.Workers,
		"run.batch_size":       c.Run.BatchSize,
		"run.retry_attempts":   c.Run.RetryAttempts,
		"run.retry_initial_ms": c.Run.RetryInitialMillis,
		"run.retry_max_ms":     c.Run.RetryMaxMillis,
	}); err != nil {
		return err
	}
	if c.Run.RetryMaxMillis < c.Run.RetryInitialMillis {
		return errors.New("run.retry_max_ms must be >= run.retry_initial_ms")
	}
	return nil
}

func (c *Config) validateSources() error {
	seen := make(map[string]struct{}, len(c.Sources))
	for i, src := range c.Sources {
		if src.Name == "" {
			return fmt.Errorf("sources[%d].name must be set", i)
		}
		if _, dup := seen[src.Name]; dup {
			return fmt.Errorf("sources[%d].name %q is configured more than once", i, src.Name)
		}
		seen[src.Name] = struct{}{}
		switch src.Kind {
		case SourceKindHTTP:
			if src.URL == "" {
				return fmt.Errorf("sources[%d].url must be set for kind http", i)
			}
		case SourceKindManifest:
			if strings.TrimSpace(src.Path) == "" {
				return fmt.Errorf("sources[%d].path must be set for kind manifest", i)
			}
		case SourceKindCatalog:
			if src.CatalogVersion <= 0 {
				return fmt.Errorf("sources[%d].catalog_version must be positive for kind catalog", i)
			}
		default:
			return fmt.Errorf("sources[%d].kind: unsupported value %q (expected http, manifest, or catalog)", i, src.Kind)
		}
	}
	return nil
}

func (c *Config) validateSkip() error {
	known := make(map[string]struct{}, len(c.Sources))
	for _, src := range c.Sources {
		known[src.Name] = struct{}{}
	}
	for collection, names := range c.Skip {
		for _, name := range names {
			if _, ok := known[name]; !ok {
				return fmt.Errorf("skip.%s references unknown source %q", collection, name)
			}
		}
	}
	return nil
}

func (c *Config) validateJournal() error {
	switch c.Journal.Kind {
	case JournalKindFile, JournalKindBadger:
		return nil
	default:
		return fmt.Errorf("journal.kind: unsupported value %q (expected file or badger)", c.Journal.Kind)
	}
}

func (c *Config) validateExport() error {
	switch c.Export.Sink {
	case ExportSinkDir:
		if c.Export.Dir == "" {
			return errors.New("export.dir must be set when export.sink is dir")
		}
	case ExportSinkGCS:
		if c.Export.Bucket == "" {
			return errors.New("export.bucket must be set when export.sink is gcs")
		}
	default:
		return fmt.Errorf("export.sink: unsupported value %q (expected dir or gcs)", c.Export.Sink)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
