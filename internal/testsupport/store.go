package testsupport

import (
	"context"
	"testing"
	"time"

	"imgcat/internal/catalog"
	"imgcat/internal/config"
)

// MustOpenStore opens a catalog.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustInsertChild creates a live child under parentID and returns it.
// The child is stamped with version and is neither new nor done.
func MustInsertChild(t testing.TB, store *catalog.Store, parentID string, level catalog.Level, identifier string, numSources, version int) *catalog.Entity {
	t.Helper()

	child := catalog.NewEntity(level, identifier, numSources, version, time.Now().UTC())
	child.IsNew = false
	err := store.WithTx(context.Background(), func(tx *catalog.Tx) error {
		return tx.AppendChild(context.Background(), parentID, child)
	})
	if err != nil {
		t.Fatalf("append %s %s: %v", level, identifier, err)
	}
	return child
}

// MustVersion creates or loads the record of version n.
func MustVersion(t testing.TB, store *catalog.Store, n, previous, numSources int) *catalog.Entity {
	t.Helper()

	record, _, err := store.EnsureVersion(context.Background(), n, previous, numSources)
	if err != nil {
		t.Fatalf("EnsureVersion(%d): %v", n, err)
	}
	return record
}
