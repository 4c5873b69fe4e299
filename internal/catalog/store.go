package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"imgcat/internal/config"
)

// ErrNotFound is returned when a requested entity or version does not exist.
var ErrNotFound = errors.New("catalog: not found")

// Store manages catalog persistence backed by SQLite or PostgreSQL.
type Store struct {
	db     *sql.DB
	driver string
	dsn    string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "could not serialize access")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// Open connects to the catalog configured in cfg and initializes the schema.
func Open(cfg *config.Config) (*Store, error) {
	if cfg.Catalog.Driver == config.CatalogDriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Catalog.DSN), 0o755); err != nil {
			return nil, fmt.Errorf("ensure catalog directory: %w", err)
		}
	}
	return OpenDSN(context.Background(), cfg.Catalog.Driver, cfg.Catalog.DSN)
}

// OpenDSN connects to a catalog using an explicit driver and DSN.
func OpenDSN(ctx context.Context, driver, dsn string) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case config.CatalogDriverSQLite:
		// Pragmas in the DSN apply to every pooled connection. Transactions
		// take the write lock at BEGIN: a deferred transaction that reads and
		// then writes cannot wait out a concurrent writer and fails with
		// SQLITE_BUSY regardless of busy_timeout.
		db, err = sql.Open("sqlite", "file:"+dsn+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(30000)&_txlock=immediate")
	case config.CatalogDriverPostgres:
		db, err = sql.Open("postgres", dsn)
	default:
		return nil, fmt.Errorf("catalog: unsupported driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s catalog: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s catalog: %w", driver, err)
	}

	store := &Store{db: db, driver: driver, dsn: dsn}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the catalog is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Driver returns the configured driver name.
func (s *Store) Driver() string {
	return s.driver
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.driver != config.CatalogDriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Begin starts a transaction. Callers must Commit or Rollback.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin catalog tx: %w", err)
	}
	return &Tx{tx: tx, store: s}, nil
}

// WithTx runs fn inside a transaction and commits when fn succeeds. A busy
// database restarts the whole transaction.
func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) error {
	return retryOnBusy(ctx, func() error {
		tx, err := s.Begin(ctx)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}
