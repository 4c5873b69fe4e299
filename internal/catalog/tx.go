package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrRetired is returned when an update targets an entity whose history is frozen.
var ErrRetired = errors.New("catalog: entity is retired")

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx is one unit of catalog work. Every mutation of the reconciliation engine
// goes through a Tx so that a failed subtree leaves no partial state.
type Tx struct {
	tx    *sql.Tx
	store *Store
}

// Commit makes the transaction's changes durable.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit catalog tx: %w", err)
	}
	return nil
}

// Rollback discards the transaction's changes.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// Entity loads one entity by surrogate id.
func (t *Tx) Entity(ctx context.Context, id string) (*Entity, error) {
	return getEntity(ctx, t.store, t.tx, id)
}

// LiveChildren returns the non-retired children linked to parentID ordered by identifier.
func (t *Tx) LiveChildren(ctx context.Context, parentID string) ([]*Entity, error) {
	return listChildren(ctx, t.store, t.tx, parentID, true)
}

// Children returns every child ever linked to parentID, retired or not.
func (t *Tx) Children(ctx context.Context, parentID string) ([]*Entity, error) {
	return listChildren(ctx, t.store, t.tx, parentID, false)
}

// Insert writes a new entity row.
func (t *Tx) Insert(ctx context.Context, e *Entity) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	args, err := entityArgs(e)
	if err != nil {
		return err
	}
	query := "INSERT INTO entities (" + entityColumns + ") VALUES (" + makePlaceholders(len(args)) + ")"
	if _, err := t.tx.ExecContext(ctx, t.store.rebind(query), args...); err != nil {
		return fmt.Errorf("insert %s %s: %w", e.Level, e.Identifier, err)
	}
	return nil
}

// Link records child as a child of parent. Linking twice is a no-op.
func (t *Tx) Link(ctx context.Context, parentID, childID string) error {
	_, err := t.tx.ExecContext(ctx,
		t.store.rebind("INSERT INTO entity_links (parent_id, child_id) VALUES (?, ?) ON CONFLICT DO NOTHING"),
		parentID, childID)
	if err != nil {
		return fmt.Errorf("link %s -> %s: %w", parentID, childID, err)
	}
	return nil
}

// Unlink removes child from parent's child set without touching either row.
func (t *Tx) Unlink(ctx context.Context, parentID, childID string) error {
	_, err := t.tx.ExecContext(ctx,
		t.store.rebind("DELETE FROM entity_links WHERE parent_id = ? AND child_id = ?"),
		parentID, childID)
	if err != nil {
		return fmt.Errorf("unlink %s -> %s: %w", parentID, childID, err)
	}
	return nil
}

// AppendChild inserts child and links it under parentID.
func (t *Tx) AppendChild(ctx context.Context, parentID string, child *Entity) error {
	if err := t.Insert(ctx, child); err != nil {
		return err
	}
	return t.Link(ctx, parentID, child.ID)
}

// Clone copies e into a new entity with a fresh surrogate id. The clone keeps
// the identifier, lifecycle origin, and child links of e, is stamped revised
// in version, and starts with cleared hashes and source flags so the build
// pass recomputes them. e itself is not modified.
func (t *Tx) Clone(ctx context.Context, e *Entity, version int, revised []bool) (*Entity, error) {
	clone := *e
	clone.ID = uuid.NewString()
	clone.Hashes = make([]string, len(e.Hashes))
	clone.Sources = make([]bool, len(e.Sources))
	clone.Revised = append([]bool(nil), revised...)
	clone.RevVersion = version
	clone.FinalVersion = 0
	clone.Done = false
	clone.Expanded = false
	clone.IsNew = false
	if err := t.Insert(ctx, &clone); err != nil {
		return nil, err
	}
	if err := t.copyLinks(ctx, e.ID, clone.ID); err != nil {
		return nil, err
	}
	return &clone, nil
}

func (t *Tx) copyLinks(ctx context.Context, fromID, toID string) error {
	_, err := t.tx.ExecContext(ctx,
		t.store.rebind("INSERT INTO entity_links (parent_id, child_id) SELECT ?, child_id FROM entity_links WHERE parent_id = ?"),
		toID, fromID)
	if err != nil {
		return fmt.Errorf("copy links %s -> %s: %w", fromID, toID, err)
	}
	return nil
}

// Retire stamps final_version on a live entity. Already retired entities keep
// their original stamp.
func (t *Tx) Retire(ctx context.Context, id string, version int) error {
	_, err := t.tx.ExecContext(ctx,
		t.store.rebind("UPDATE entities SET final_version = ? WHERE id = ? AND final_version = 0"),
		version, id)
	if err != nil {
		return fmt.Errorf("retire %s: %w", id, err)
	}
	return nil
}

// RetireTree retires id and every live descendant reachable through links.
func (t *Tx) RetireTree(ctx context.Context, id string, version int) (int64, error) {
	res, err := t.tx.ExecContext(ctx, t.store.rebind(`WITH RECURSIVE tree(id) AS (
            SELECT CAST(? AS TEXT)
            UNION
            SELECT l.child_id FROM entity_links l JOIN tree ON l.parent_id = tree.id
        )
        UPDATE entities SET final_version = ?
        WHERE final_version = 0 AND id IN (SELECT id FROM tree)`), id, version)
	if err != nil {
		return 0, fmt.Errorf("retire tree %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Update persists the mutable fields of a live entity. Retired entities are
// immutable and yield ErrRetired.
func (t *Tx) Update(ctx context.Context, e *Entity) error {
	if e == nil {
		return errors.New("entity is nil")
	}
	args, err := entityArgs(e)
	if err != nil {
		return err
	}
	// args[0] is the id; the remaining columns are rewritten.
	res, err := t.tx.ExecContext(ctx, t.store.rebind(`UPDATE entities SET
            level = ?, identifier = ?, hashes = ?, sources = ?, revised = ?,
            min_timestamp = ?, max_timestamp = ?, init_version = ?, rev_version = ?,
            final_version = ?, done = ?, expanded = ?, is_new = ?, content_uri = ?, instances = ?
        WHERE id = ? AND final_version = 0`), append(args[1:], e.ID)...)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", e.Level, e.Identifier, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update %s %s: %w", e.Level, e.Identifier, ErrRetired)
	}
	return nil
}

// SetCombinedHash rewrites only the trailing combined digest of a live
// entity. Retired entities are immutable and yield ErrRetired.
func (t *Tx) SetCombinedHash(ctx context.Context, e *Entity, hash string) error {
	hashes := append([]string(nil), e.Hashes...)
	if len(hashes) == 0 {
		hashes = []string{hash}
	} else {
		hashes[len(hashes)-1] = hash
	}
	updated := *e
	updated.Hashes = hashes
	args, err := entityArgs(&updated)
	if err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, t.store.rebind("UPDATE entities SET hashes = ? WHERE id = ? AND final_version = 0"), args[3], e.ID)
	if err != nil {
		return fmt.Errorf("set combined hash of %s: %w", e.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set combined hash of %s %s: %w", e.Level, e.Identifier, ErrRetired)
	}
	e.Hashes = hashes
	return nil
}

func getEntity(ctx context.Context, s *Store, q querier, id string) (*Entity, error) {
	row := q.QueryRowContext(ctx, s.rebind("SELECT "+entityColumns+" FROM entities WHERE id = ?"), id)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get entity %s: %w", id, err)
	}
	return e, nil
}

func listChildren(ctx context.Context, s *Store, q querier, parentID string, liveOnly bool) ([]*Entity, error) {
	query := "SELECT " + entityColumnsQualified + " FROM entity_links l JOIN entities e ON e.id = l.child_id WHERE l.parent_id = ?"
	if liveOnly {
		query += " AND e.final_version = 0"
	}
	query += " ORDER BY e.identifier, e.id"
	rows, err := q.QueryContext(ctx, s.rebind(query), parentID)
	if err != nil {
		return nil, fmt.Errorf("list children of %s: %w", parentID, err)
	}
	children, err := scanEntities(rows)
	if err != nil {
		return nil, fmt.Errorf("scan children of %s: %w", parentID, err)
	}
	return children, nil
}
