package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"imgcat/internal/catalog"
	"imgcat/internal/hashtree"
	"imgcat/internal/logging"
	"imgcat/internal/source"
)

// Build completes the entity at scope depth-first: it expands the entity if
// needed, builds every live child that is not done, then recomputes and
// verifies the entity's hashes and marks it done. A failing child does not
// stop its siblings, but the entity itself is left undone and the failures
// are returned joined. Each entity commits in its own transaction, so built
// children survive a failed parent.
func (e *Engine) Build(ctx context.Context, id string, scope source.Scope) error {
	node, err := e.store.Entity(ctx, id)
	if err != nil {
		return e.fail(scope, err)
	}
	if node.Done {
		return nil
	}
	if node.Level == catalog.LevelInstance {
		return e.fail(scope, fmt.Errorf("instance %s is not done: %w", node.Identifier, ErrIncomplete))
	}
	if !node.Expanded {
		if err := e.Expand(ctx, id, scope); err != nil {
			return e.fail(scope, err)
		}
	}

	children, err := e.store.LiveChildren(ctx, id)
	if err != nil {
		return e.fail(scope, err)
	}
	var errs []error
	for _, child := range children {
		if child.Done {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := e.Build(ctx, child.ID, scope.Child(child.Identifier)); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	if err := e.complete(ctx, id, scope); err != nil {
		return e.fail(scope, err)
	}
	return nil
}

// complete aggregates the children of a fully built entity and marks it
// done after checking the per-source digests against the sources. The
// version has no upstream digest and is not checked.
func (e *Engine) complete(ctx context.Context, id string, scope source.Scope) error {
	var (
		expected []string
		skip     []bool
	)
	if scope.Level != catalog.LevelVersion {
		skip = e.cfg.SkipVector(scope.Collection())
		var err error
		if expected, err = e.sources.FetchHashes(ctx, scope, skip); err != nil {
			return err
		}
	}

	return e.store.WithTx(ctx, func(tx *catalog.Tx) error {
		node, err := tx.Entity(ctx, id)
		if err != nil {
			return err
		}
		if node.Done {
			return nil
		}
		children, err := tx.LiveChildren(ctx, id)
		if err != nil {
			return err
		}

		present := append([]bool(nil), node.Sources...)
		hashChildren := make([]hashtree.Child, 0, len(children))
		var (
			latest    time.Time
			instances int
		)
		for _, c := range children {
			if !c.Done {
				return fmt.Errorf("%s %s is not done: %w", c.Level, c.Identifier, ErrIncomplete)
			}
			for i := range present {
				if i < len(c.Sources) && c.Sources[i] {
					present[i] = true
				}
			}
			instances += c.Instances
			if c.MaxTimestamp.After(latest) {
				latest = c.MaxTimestamp
			}
			hashChildren = append(hashChildren, hashtree.Child{Hashes: c.Hashes, Sources: c.Sources})
		}
		hashes := hashtree.Aggregate(hashChildren, present)

		for i := range expected {
			if source.Skipped(skip, i) {
				continue
			}
			if hashes[i] != expected[i] {
				return fmt.Errorf("source %s: computed %q, source reports %q: %w",
					e.sources.Names()[i], hashes[i], expected[i], ErrHashMismatch)
			}
		}

		node.Hashes = hashes
		node.Sources = present
		node.Instances = instances
		if !latest.IsZero() {
			node.MaxTimestamp = latest
		}
		node.Done = true
		return tx.Update(ctx, node)
	})
}

// fail wraps err with the subtree location, records it, and logs it. Errors
// that already carry a location pass through unchanged.
func (e *Engine) fail(scope source.Scope, err error) error {
	var existing *SubtreeError
	if errors.As(err, &existing) {
		return err
	}
	se := &SubtreeError{Level: scope.Level, Chain: append([]string(nil), scope.Path...), Err: err}
	e.report.failed(se)
	logging.ErrorWithContext(e.logger, "subtree failed", "subtree_failed",
		logging.String(logging.FieldLevel, string(scope.Level)),
		logging.String(logging.FieldCollection, scope.Collection()),
		logging.Chain(se.Chain),
		logging.String("kind", se.Kind()),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "re-run the collection partition once the cause is fixed"),
	)
	return se
}
