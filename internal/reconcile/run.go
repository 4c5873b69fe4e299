package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"imgcat/internal/catalog"
	"imgcat/internal/config"
	"imgcat/internal/journal"
	"imgcat/internal/logging"
	"imgcat/internal/source"
)

// RunOptions narrows a reconciliation run.
type RunOptions struct {
	// Collections limits the run to these collection identifiers. The
	// version is completed only when every collection is done.
	Collections []string
}

// Result summarises a reconciliation run.
type Result struct {
	Version *catalog.Entity
	Report  *Report
	// Complete reports whether the version record is done.
	Complete bool
}

// Runner reconciles one version of the catalog.
type Runner struct {
	cfg     *config.Config
	store   *catalog.Store
	sources *source.Set
	journal journal.Journal
	logger  *slog.Logger
}

// NewRunner wires the collaborators of a run. jrnl may be nil.
func NewRunner(cfg *config.Config, store *catalog.Store, sources *source.Set, jrnl journal.Journal, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:     cfg,
		store:   store,
		sources: sources,
		journal: jrnl,
		logger:  logging.NewComponentLogger(logger, "reconcile"),
	}
}

// Run creates or resumes the configured version, expands its collection
// list, builds every collection partition in parallel, and completes the
// version record once all collections are done. Subtree failures are
// reported in the result and returned joined; the run itself still finishes.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	version := r.cfg.Run.Version
	if version <= 0 {
		return nil, errors.New("run.version must be set")
	}
	if prev := r.cfg.Run.PreviousVersion; prev > 0 {
		record, err := r.store.Version(ctx, prev)
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			logging.WarnWithContext(r.logger, "previous version not found; starting from an empty catalog", "previous_version_missing",
				logging.Int("previous_version", prev),
				logging.String(logging.FieldImpact, "every entity is created new"),
			)
		case err != nil:
			return nil, err
		case !record.Done:
			return nil, fmt.Errorf("previous version %d: %w", prev, ErrIncomplete)
		}
	}

	record, created, err := r.store.EnsureVersion(ctx, version, r.cfg.Run.PreviousVersion, r.sources.Len())
	if err != nil {
		return nil, err
	}
	report := NewReport()
	result := &Result{Version: record, Report: report, Complete: record.Done}
	if record.Done {
		r.logger.Info("version already complete", logging.Version(version))
		return result, nil
	}
	r.logger.Info("reconciling version",
		logging.Version(version),
		logging.Int("previous_version", r.cfg.Run.PreviousVersion),
		logging.Bool("created", created),
		logging.Int("sources", r.sources.Len()),
	)

	engine := NewEngine(r.cfg, r.store, r.sources, report, r.logger)
	versionScope := source.VersionScope()
	if err := engine.Expand(ctx, record.ID, versionScope); err != nil {
		return result, engine.fail(versionScope, err)
	}

	collections, err := r.store.LiveChildren(ctx, record.ID)
	if err != nil {
		return result, err
	}
	wanted := make(map[string]bool, len(opts.Collections))
	for _, c := range opts.Collections {
		wanted[strings.ToLower(c)] = true
	}

	var partitions []Partition
	for _, coll := range collections {
		if coll.Done {
			continue
		}
		if len(wanted) > 0 && !wanted[strings.ToLower(coll.Identifier)] {
			continue
		}
		id, scope := coll.ID, versionScope.Child(coll.Identifier)
		partitions = append(partitions, Partition{
			Key: coll.Identifier,
			Run: func(ctx context.Context) error {
				ctx = logging.WithCollection(ctx, scope.Collection())
				return engine.Build(ctx, id, scope)
			},
		})
	}

	coord := NewCoordinator("reconcile", r.cfg.Run.Workers, r.journal, r.logger)
	runErr := coord.Run(ctx, partitions)

	if runErr == nil {
		ready, err := r.allDone(ctx, record.ID)
		switch {
		case err != nil:
			runErr = err
		case ready:
			runErr = engine.Build(ctx, record.ID, versionScope)
		default:
			r.logger.Info("collections remain undone; version left open",
				logging.Version(version))
		}
	}
	if refreshed, err := r.store.Version(ctx, version); err == nil {
		result.Version = refreshed
		result.Complete = refreshed.Done
	}
	r.logger.Info("reconciliation finished",
		logging.Version(version),
		logging.Bool("complete", result.Complete),
		logging.Int("failures", len(report.Failures())),
	)
	return result, runErr
}

func (r *Runner) allDone(ctx context.Context, versionID string) (bool, error) {
	collections, err := r.store.LiveChildren(ctx, versionID)
	if err != nil {
		return false, err
	}
	for _, c := range collections {
		if !c.Done {
			return false, nil
		}
	}
	return true, nil
}
