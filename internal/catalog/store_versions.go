package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Entity loads one entity outside of a transaction.
func (s *Store) Entity(ctx context.Context, id string) (*Entity, error) {
	return getEntity(ctx, s, s.db, id)
}

// LiveChildren lists live children outside of a transaction.
func (s *Store) LiveChildren(ctx context.Context, parentID string) ([]*Entity, error) {
	return listChildren(ctx, s, s.db, parentID, true)
}

// Children lists every linked child outside of a transaction.
func (s *Store) Children(ctx context.Context, parentID string) ([]*Entity, error) {
	return listChildren(ctx, s, s.db, parentID, false)
}

// Version returns the version record for number n.
func (s *Store) Version(ctx context.Context, n int) (*Entity, error) {
	return getVersion(ctx, s, s.db, n)
}

func getVersion(ctx context.Context, s *Store, q querier, n int) (*Entity, error) {
	row := q.QueryRowContext(ctx,
		s.rebind("SELECT "+entityColumns+" FROM entities WHERE level = ? AND identifier = ? ORDER BY init_version DESC LIMIT 1"),
		string(LevelVersion), strconv.Itoa(n))
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("version %d: %w", n, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get version %d: %w", n, err)
	}
	return e, nil
}

// Versions lists every version record, newest first.
func (s *Store) Versions(ctx context.Context) ([]*Entity, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind("SELECT "+entityColumns+" FROM entities WHERE level = ? ORDER BY init_version DESC"),
		string(LevelVersion))
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return scanEntities(rows)
}

// EnsureVersion returns the record for version n, creating it when absent.
// A new record links every live collection of version previous (when that
// version exists) and is not marked new, so its expansion diffs against the
// prior snapshot. Without a previous version the record starts new and empty.
func (s *Store) EnsureVersion(ctx context.Context, n, previous, numSources int) (*Entity, bool, error) {
	var (
		record  *Entity
		created bool
	)
	err := s.WithTx(ctx, func(tx *Tx) error {
		existing, err := getVersion(ctx, s, tx.tx, n)
		if err == nil {
			record = existing
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		record = NewEntity(LevelVersion, strconv.Itoa(n), numSources, n, time.Now().UTC())
		var prior *Entity
		if previous > 0 {
			prior, err = getVersion(ctx, s, tx.tx, previous)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
		}
		if prior != nil {
			record.IsNew = false
			record.MinTimestamp = prior.MinTimestamp
		}
		if err := tx.Insert(ctx, record); err != nil {
			return err
		}
		if prior != nil {
			if _, err := tx.tx.ExecContext(ctx, s.rebind(`INSERT INTO entity_links (parent_id, child_id)
                SELECT ?, l.child_id FROM entity_links l JOIN entities e ON e.id = l.child_id
                WHERE l.parent_id = ? AND e.final_version = 0`), record.ID, prior.ID); err != nil {
				return fmt.Errorf("link collections of version %d: %w", previous, err)
			}
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return record, created, nil
}

// EntityIDsByPrefix lists ids of live entities of one level whose surrogate
// id starts with prefix.
func (s *Store) EntityIDsByPrefix(ctx context.Context, level Level, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind("SELECT id FROM entities WHERE level = ? AND final_version = 0 AND id LIKE ? ORDER BY id"),
		string(level), prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("list %s ids with prefix %q: %w", level, prefix, err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LevelCounts counts the entities per level reachable from root. Links are
// a snapshot, so under a version record they are exactly its members even
// after later versions retire some of them.
func (s *Store) LevelCounts(ctx context.Context, rootID string) ([]LevelCount, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`WITH RECURSIVE tree(id) AS (
            SELECT CAST(? AS TEXT)
            UNION
            SELECT l.child_id FROM entity_links l
            JOIN tree ON l.parent_id = tree.id
        )
        SELECT e.level, COUNT(1), SUM(e.done) FROM entities e
        WHERE e.id IN (SELECT id FROM tree)
        GROUP BY e.level`), rootID)
	if err != nil {
		return nil, fmt.Errorf("count levels under %s: %w", rootID, err)
	}
	defer rows.Close()

	byLevel := make(map[Level]LevelCount)
	for rows.Next() {
		var (
			level string
			live  int
			done  sql.NullInt64
		)
		if err := rows.Scan(&level, &live, &done); err != nil {
			return nil, err
		}
		byLevel[Level(level)] = LevelCount{Level: Level(level), Live: live, Done: int(done.Int64)}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	counts := make([]LevelCount, 0, len(Levels))
	for _, lvl := range Levels {
		c := byLevel[lvl]
		c.Level = lvl
		counts = append(counts, c)
	}
	return counts, nil
}

// ErrVersionDone is returned when pruning a version that completed.
var ErrVersionDone = errors.New("catalog: version is done")

// PruneVersion removes the work of an unfinished version n: entities created
// or cloned in n are deleted with their links, and retirements stamped with n
// are undone. Completed versions are refused.
func (s *Store) PruneVersion(ctx context.Context, n int) (int64, error) {
	var deleted int64
	err := s.WithTx(ctx, func(tx *Tx) error {
		record, err := getVersion(ctx, s, tx.tx, n)
		if err != nil {
			return err
		}
		if record.Done {
			return fmt.Errorf("prune version %d: %w", n, ErrVersionDone)
		}
		statements := []string{
			"DELETE FROM entity_links WHERE parent_id IN (SELECT id FROM entities WHERE rev_version = ?)",
			"DELETE FROM entity_links WHERE child_id IN (SELECT id FROM entities WHERE rev_version = ?)",
		}
		for _, stmt := range statements {
			if _, err := tx.tx.ExecContext(ctx, s.rebind(stmt), n); err != nil {
				return fmt.Errorf("prune links of version %d: %w", n, err)
			}
		}
		res, err := tx.tx.ExecContext(ctx, s.rebind("DELETE FROM entities WHERE rev_version = ?"), n)
		if err != nil {
			return fmt.Errorf("prune entities of version %d: %w", n, err)
		}
		deleted, _ = res.RowsAffected()
		if _, err := tx.tx.ExecContext(ctx, s.rebind("UPDATE entities SET final_version = 0 WHERE final_version = ?"), n); err != nil {
			return fmt.Errorf("undo retirements of version %d: %w", n, err)
		}
		return nil
	})
	return deleted, err
}
