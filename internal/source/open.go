package source

import (
	"fmt"
	"log/slog"
	"time"

	"imgcat/internal/catalog"
	"imgcat/internal/config"
)

// Open builds the adapter of every configured source, in configuration order,
// and wraps them in a Set using the run's retry policy. store backs sources
// of kind catalog and may be nil when none is configured.
func Open(cfg *config.Config, store *catalog.Store, logger *slog.Logger) (*Set, error) {
	adapters := make([]Adapter, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		adapter, err := openAdapter(src, store)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter)
	}
	return NewSet(adapters, PolicyFromConfig(cfg), logger), nil
}

// PolicyFromConfig converts the run retry settings.
func PolicyFromConfig(cfg *config.Config) RetryPolicy {
	return RetryPolicy{
		Attempts: cfg.Run.RetryAttempts,
		Initial:  time.Duration(cfg.Run.RetryInitialMillis) * time.Millisecond,
		Max:      time.Duration(cfg.Run.RetryMaxMillis) * time.Millisecond,
	}
}

func openAdapter(src config.Source, store *catalog.Store) (Adapter, error) {
	switch src.Kind {
	case config.SourceKindHTTP:
		return NewHTTPAdapter(HTTPOptions{
			Name:              src.Name,
			URL:               src.URL,
			Token:             src.Token,
			Timeout:           time.Duration(src.TimeoutSeconds) * time.Second,
			RequestsPerSecond: src.RequestsPerSecond,
		}), nil
	case config.SourceKindManifest:
		return LoadManifest(src.Name, src.Path)
	case config.SourceKindCatalog:
		if store == nil {
			return nil, fmt.Errorf("source %s: catalog store unavailable", src.Name)
		}
		return NewCatalogAdapter(src.Name, store, src.CatalogVersion), nil
	default:
		return nil, fmt.Errorf("source %s: unsupported kind %q", src.Name, src.Kind)
	}
}
