package reconcile_test

import (
	"context"
	"errors"
	"testing"

	"imgcat/internal/catalog"
	"imgcat/internal/config"
	"imgcat/internal/journal"
	"imgcat/internal/logging"
	"imgcat/internal/reconcile"
	"imgcat/internal/testsupport"
)

func changedAt(results []reconcile.RefreshResult, level catalog.Level) reconcile.RefreshResult {
	for _, r := range results {
		if r.Level == level {
			return r
		}
	}
	return reconcile.RefreshResult{Level: level}
}

func TestRefreshHashesRepairsCombinedDigests(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithManifestSources("a"))
	writeManifest(t, cfg, "a", manifestV1A)
	store := testsupport.MustOpenStore(t, cfg)
	mustRun(t, cfg, store)
	cfg.Run.BatchSize = 2

	ctx := context.Background()
	se1 := mustPath(t, store, 1, "c1", "p1", "s1", "se1")
	want := se1.CombinedHash()
	if err := store.WithTx(ctx, func(tx *catalog.Tx) error {
		return tx.SetCombinedHash(ctx, se1, "stale")
	}); err != nil {
		t.Fatalf("SetCombinedHash failed: %v", err)
	}

	results, err := reconcile.RefreshHashes(ctx, cfg, store, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("RefreshHashes failed: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("expected one result per level, got %d", len(results))
	}
	series := changedAt(results, catalog.LevelSeries)
	if series.Scanned != 3 || series.Changed != 1 {
		t.Fatalf("unexpected series result: %+v", series)
	}
	for _, level := range []catalog.Level{catalog.LevelStudy, catalog.LevelPatient, catalog.LevelCollection, catalog.LevelVersion} {
		if got := changedAt(results, level); got.Changed != 0 {
			t.Fatalf("expected no changes at %s, got %+v", level, got)
		}
	}
	if got := mustPath(t, store, 1, "c1", "p1", "s1", "se1").CombinedHash(); got != want {
		t.Fatalf("expected series digest restored to %q, got %q", want, got)
	}
}

func markStale(t *testing.T, store *catalog.Store, e *catalog.Entity) {
	t.Helper()
	ctx := context.Background()
	if err := store.WithTx(ctx, func(tx *catalog.Tx) error {
		return tx.SetCombinedHash(ctx, e, "stale")
	}); err != nil {
		t.Fatalf("SetCombinedHash failed: %v", err)
	}
}

func TestRefreshHashesResumesInterruptedPass(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithManifestSources("a"), testsupport.WithJournalKind(config.JournalKindBadger))
	writeManifest(t, cfg, "a", manifestV1A)
	store := testsupport.MustOpenStore(t, cfg)
	mustRun(t, cfg, store)
	ctx := context.Background()

	// A pass that stopped after finishing the series level.
	jrnl, err := journal.Open(cfg, journal.RefreshName(string(catalog.LevelSeries)))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	for _, shard := range []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9", "a", "b", "c", "d", "e", "f"} {
		if err := jrnl.Append(shard); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if err := jrnl.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	results, err := reconcile.RefreshHashes(ctx, cfg, store, journal.NewDir(cfg), logging.NewNop())
	if err != nil {
		t.Fatalf("RefreshHashes failed: %v", err)
	}
	if got := changedAt(results, catalog.LevelSeries); got.Scanned != 0 {
		t.Fatalf("expected journaled series shards skipped, got %+v", got)
	}
	if got := changedAt(results, catalog.LevelStudy); got.Scanned != 3 {
		t.Fatalf("expected 3 studies scanned, got %+v", got)
	}
}

func TestRefreshHashesRepeatedPassesScanEverything(t *testing.T) {
	for _, kind := range []string{config.JournalKindFile, config.JournalKindBadger} {
		t.Run(kind, func(t *testing.T) {
			cfg := testsupport.NewConfig(t, testsupport.WithManifestSources("a"), testsupport.WithJournalKind(kind))
			writeManifest(t, cfg, "a", manifestV1A)
			store := testsupport.MustOpenStore(t, cfg)
			mustRun(t, cfg, store)
			ctx := context.Background()
			journals := journal.NewDir(cfg)

			first, err := reconcile.RefreshHashes(ctx, cfg, store, journals, logging.NewNop())
			if err != nil {
				t.Fatalf("first refresh failed: %v", err)
			}
			if got := changedAt(first, catalog.LevelSeries); got.Scanned != 3 || got.Changed != 0 {
				t.Fatalf("unexpected first series result: %+v", got)
			}

			se1 := mustPath(t, store, 1, "c1", "p1", "s1", "se1")
			want := se1.CombinedHash()
			markStale(t, store, se1)

			second, err := reconcile.RefreshHashes(ctx, cfg, store, journals, logging.NewNop())
			if err != nil {
				t.Fatalf("second refresh failed: %v", err)
			}
			if got := changedAt(second, catalog.LevelSeries); got.Scanned != 3 || got.Changed != 1 {
				t.Fatalf("unexpected second series result: %+v", got)
			}
			if got := mustPath(t, store, 1, "c1", "p1", "s1", "se1").CombinedHash(); got != want {
				t.Fatalf("expected series digest restored to %q, got %q", want, got)
			}
		})
	}
}

func TestRefreshHashesLeavesRetiredEntities(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithManifestSources("a"))
	writeManifest(t, cfg, "a", manifestV1A)
	store := testsupport.MustOpenStore(t, cfg)
	mustRun(t, cfg, store)
	ctx := context.Background()

	oldP4 := mustPath(t, store, 1, "c1", "p4")
	writeManifest(t, cfg, "a", manifestV2A)
	cfg.Run.Version, cfg.Run.PreviousVersion = 2, 1
	mustRun(t, cfg, store)

	retired, err := store.Entity(ctx, oldP4.ID)
	if err != nil {
		t.Fatalf("Entity failed: %v", err)
	}
	if retired.Live() {
		t.Fatalf("expected p4 retired, got %+v", retired)
	}
	err = store.WithTx(ctx, func(tx *catalog.Tx) error {
		return tx.SetCombinedHash(ctx, retired, "stale")
	})
	if !errors.Is(err, catalog.ErrRetired) {
		t.Fatalf("expected ErrRetired, got %v", err)
	}

	results, err := reconcile.RefreshHashes(ctx, cfg, store, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("RefreshHashes failed: %v", err)
	}
	// p1, the revised clone of p2, and p3.
	if got := changedAt(results, catalog.LevelPatient); got.Scanned != 3 || got.Changed != 0 {
		t.Fatalf("unexpected patient result: %+v", got)
	}
	after, err := store.Entity(ctx, oldP4.ID)
	if err != nil {
		t.Fatalf("Entity failed: %v", err)
	}
	if after.CombinedHash() != oldP4.CombinedHash() {
		t.Fatalf("expected retired p4 digest kept, got %q", after.CombinedHash())
	}
}
