package preflight

import (
	"context"

	"imgcat/internal/catalog"
	"imgcat/internal/config"
	"imgcat/internal/source"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every applicable check. store and sources may be nil when
// they could not be opened; the caller reports that failure itself.
func RunAll(ctx context.Context, cfg *config.Config, store *catalog.Store, sources *source.Set) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	if store != nil {
		results = append(results, CheckCatalog(ctx, store))
	}

	results = append(results, CheckDirectoryAccess("Journal directory", cfg.Journal.Dir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	if cfg.Export.Sink == config.ExportSinkDir {
		results = append(results, CheckDirectoryAccess("Export directory", cfg.Export.Dir))
	}

	if store != nil {
		results = append(results, CheckPreviousVersion(ctx, cfg, store))
	}
	if sources != nil {
		for _, adapter := range sources.Adapters() {
			results = append(results, CheckSource(ctx, adapter))
		}
	}
	return results
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}
