package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"imgcat/internal/catalog"
	"imgcat/internal/config"
	"imgcat/internal/diff"
	"imgcat/internal/logging"
	"imgcat/internal/source"
)

// Engine expands and builds the catalog tree of one version.
type Engine struct {
	store   *catalog.Store
	sources *source.Set
	cfg     *config.Config
	version int
	report  *Report
	logger  *slog.Logger
	now     func() time.Time
}

// NewEngine binds the store and sources to the version configured in cfg.
func NewEngine(cfg *config.Config, store *catalog.Store, sources *source.Set, report *Report, logger *slog.Logger) *Engine {
	if report == nil {
		report = NewReport()
	}
	return &Engine{
		store:   store,
		sources: sources,
		cfg:     cfg,
		version: cfg.Run.Version,
		report:  report,
		logger:  logging.NewComponentLogger(logger, "engine"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Report returns the report the engine records into.
func (e *Engine) Report() *Report { return e.report }

// skipFunc returns the skip policy for the children of scope. Children of
// the version are collections, each with its own vector.
func (e *Engine) skipFunc(scope source.Scope) source.SkipFunc {
	if scope.Level == catalog.LevelVersion {
		return func(collection string) []bool { return e.cfg.SkipVector(collection) }
	}
	return source.Uniform(e.cfg.SkipVector(scope.Collection()))
}

// Expand diffs the children of the entity at scope once per version. New
// children are appended, revised children are cloned and their originals
// retired, unchanged children are re-stamped done, and absent children are
// retired with their subtree. The whole transition commits atomically with
// the expanded flag; an already expanded entity is left untouched.
func (e *Engine) Expand(ctx context.Context, id string, scope source.Scope) error {
	node, err := e.store.Entity(ctx, id)
	if err != nil {
		return err
	}
	if node.Expanded {
		return nil
	}
	if !node.Live() {
		return fmt.Errorf("expand retired %s %s: %w", node.Level, node.Identifier, catalog.ErrRetired)
	}

	skip := e.skipFunc(scope)
	listing, err := e.sources.ListChildren(ctx, scope, skip)
	if err != nil {
		return err
	}

	childLevel := node.Level.Child()
	var delta Counts
	err = e.store.WithTx(ctx, func(tx *catalog.Tx) error {
		delta = Counts{}
		parent, err := tx.Entity(ctx, id)
		if err != nil {
			return err
		}
		if parent.Expanded {
			return nil
		}

		children := make(map[string]*catalog.Entity)
		if !parent.IsNew {
			live, err := tx.LiveChildren(ctx, id)
			if err != nil {
				return err
			}
			for _, c := range live {
				if _, dup := children[c.Identifier]; dup {
					return fmt.Errorf("%s %s has two live children %q: %w", parent.Level, parent.Identifier, c.Identifier, source.ErrDuplicateIdentifier)
				}
				children[c.Identifier] = c
			}
		}

		res := diff.Classify(children, listing, skip)
		now := e.now()

		for _, ident := range res.New {
			child := e.newChild(childLevel, listing[ident], now)
			if err := tx.AppendChild(ctx, id, child); err != nil {
				return err
			}
			delta.New++
		}

		for _, child := range res.Existing {
			rep := listing[child.Identifier]
			childSkip := skip(child.Identifier)
			fetched := make([]string, e.sources.Len())
			if rep != nil {
				fetched = rep.Hashes
			}
			revised := diff.Revised(child.SourceHashes(), fetched, childSkip)
			if !diff.Any(revised) {
				child.MaxTimestamp = now
				child.Done = true
				child.Expanded = true
				if err := tx.Update(ctx, child); err != nil {
					return err
				}
				delta.Unchanged++
				continue
			}
			if err := e.revise(ctx, tx, id, child, rep, revised, childSkip, now); err != nil {
				return err
			}
			delta.Revised++
		}

		for _, child := range res.Retired {
			if _, err := tx.RetireTree(ctx, child.ID, e.version); err != nil {
				return err
			}
			if err := tx.Unlink(ctx, id, child.ID); err != nil {
				return err
			}
			delta.Retired++
		}

		parent.Expanded = true
		return tx.Update(ctx, parent)
	})
	if err != nil {
		return err
	}

	e.report.classified(childLevel, delta)
	e.logger.Debug("expanded",
		logging.String(logging.FieldLevel, string(node.Level)),
		logging.String(logging.FieldIdentifier, scope.String()),
		logging.Int("new", delta.New),
		logging.Int("revised", delta.Revised),
		logging.Int("retired", delta.Retired),
		logging.Int("unchanged", delta.Unchanged),
	)
	return nil
}

// newChild builds a child created in this version. Instances have no
// children of their own, so they are complete on creation.
func (e *Engine) newChild(level catalog.Level, rep *source.Reported, now time.Time) *catalog.Entity {
	child := catalog.NewEntity(level, rep.Identifier, e.sources.Len(), e.version, now)
	copy(child.Sources, rep.Sources)
	if level == catalog.LevelInstance {
		fillInstance(child, rep.Hashes, rep.URI)
	}
	return child
}

// revise clones child under parentID and retires the original. The clone
// takes the fresh presence flags of every source that was asked and keeps
// the stored flags of skipped sources.
func (e *Engine) revise(ctx context.Context, tx *catalog.Tx, parentID string, child *catalog.Entity, rep *source.Reported, revised, skip []bool, now time.Time) error {
	clone, err := tx.Clone(ctx, child, e.version, revised)
	if err != nil {
		return err
	}
	for i := range clone.Sources {
		switch {
		case source.Skipped(skip, i):
			clone.Sources[i] = child.Sources[i]
		case rep != nil:
			clone.Sources[i] = rep.Sources[i]
		}
	}
	clone.MaxTimestamp = now
	if clone.Level == catalog.LevelInstance {
		hashes := append([]string(nil), child.SourceHashes()...)
		uri := child.ContentURI
		if rep != nil {
			for i := range hashes {
				if !source.Skipped(skip, i) {
					hashes[i] = rep.Hashes[i]
				}
			}
			if rep.URI != "" {
				uri = rep.URI
			}
		}
		fillInstance(clone, hashes, uri)
	}
	if err := tx.Update(ctx, clone); err != nil {
		return err
	}
	if err := tx.Unlink(ctx, parentID, child.ID); err != nil {
		return err
	}
	if err := tx.Link(ctx, parentID, clone.ID); err != nil {
		return err
	}
	return tx.Retire(ctx, child.ID, e.version)
}

// fillInstance sets the per-source digests of an instance. Its combined
// digest is the first digest any source reports.
func fillInstance(inst *catalog.Entity, perSource []string, uri string) {
	combined := ""
	for _, h := range perSource {
		if h != "" {
			combined = h
			break
		}
	}
	inst.Hashes = append(append([]string(nil), perSource...), combined)
	inst.ContentURI = uri
	inst.Instances = 1
	inst.Done = true
	inst.Expanded = true
}
