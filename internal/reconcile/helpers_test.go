package reconcile_test

import (
	"context"
	"sync"
	"testing"

	"imgcat/internal/catalog"
	"imgcat/internal/config"
	"imgcat/internal/hashtree"
	"imgcat/internal/logging"
	"imgcat/internal/reconcile"
	"imgcat/internal/source"
	"imgcat/internal/testsupport"
)

const manifestV1A = `collections:
  - id: c1
    patients:
      - id: p1
        studies:
          - id: s1
            series:
              - id: se1
                instances:
                  - {id: i1, hash: h1, uri: "file:///data/i1.dcm"}
                  - {id: i2, hash: h2}
      - id: p2
        studies:
          - id: s2
            series:
              - id: se2
                instances:
                  - {id: i3, hash: h3}
      - id: p4
        studies:
          - id: s4
            series:
              - id: se4
                instances:
                  - {id: i4, hash: h4}
`

const manifestV1B = `collections:
  - id: c1
    patients:
      - id: p1
        studies:
          - id: s1
            series:
              - id: se1
                instances:
                  - {id: i1, hash: h1}
                  - {id: i2, hash: h2}
`

// manifestV2A keeps p1, changes the content of p2, adds p3, and drops p4.
const manifestV2A = `collections:
  - id: c1
    patients:
      - id: p1
        studies:
          - id: s1
            series:
              - id: se1
                instances:
                  - {id: i1, hash: h1, uri: "file:///data/i1.dcm"}
                  - {id: i2, hash: h2}
      - id: p2
        studies:
          - id: s2
            series:
              - id: se2
                instances:
                  - {id: i3, hash: h3x}
      - id: p3
        studies:
          - id: s3
            series:
              - id: se3
                instances:
                  - {id: i5, hash: h5}
`

// countingAdapter records how often each scope was listed.
type countingAdapter struct {
	source.Adapter

	mu    sync.Mutex
	lists map[string]int
}

func newCountingAdapter(inner source.Adapter) *countingAdapter {
	return &countingAdapter{Adapter: inner, lists: make(map[string]int)}
}

func (c *countingAdapter) ListChildren(ctx context.Context, scope source.Scope) ([]source.Child, error) {
	c.mu.Lock()
	c.lists[scope.String()]++
	c.mu.Unlock()
	return c.Adapter.ListChildren(ctx, scope)
}

func (c *countingAdapter) listed(scope string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lists[scope]
}

func writeManifest(t *testing.T, cfg *config.Config, name, content string) {
	t.Helper()
	testsupport.WriteFile(t, testsupport.ManifestPath(cfg, name), content)
}

func mustSources(t *testing.T, cfg *config.Config, store *catalog.Store) *source.Set {
	t.Helper()
	set, err := source.Open(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("source.Open failed: %v", err)
	}
	return set
}

// countingSources loads every manifest source of cfg behind a counter.
func countingSources(t *testing.T, cfg *config.Config) (*source.Set, []*countingAdapter) {
	t.Helper()
	var (
		adapters []source.Adapter
		counters []*countingAdapter
	)
	for _, src := range cfg.Sources {
		inner, err := source.LoadManifest(src.Name, src.Path)
		if err != nil {
			t.Fatalf("LoadManifest(%s) failed: %v", src.Name, err)
		}
		c := newCountingAdapter(inner)
		adapters = append(adapters, c)
		counters = append(counters, c)
	}
	return source.NewSet(adapters, source.PolicyFromConfig(cfg), logging.NewNop()), counters
}

func runVersion(t *testing.T, cfg *config.Config, store *catalog.Store, set *source.Set, opts reconcile.RunOptions) (*reconcile.Result, error) {
	t.Helper()
	runner := reconcile.NewRunner(cfg, store, set, nil, logging.NewNop())
	return runner.Run(context.Background(), opts)
}

func mustRun(t *testing.T, cfg *config.Config, store *catalog.Store) *reconcile.Result {
	t.Helper()
	result, err := runVersion(t, cfg, store, mustSources(t, cfg, store), reconcile.RunOptions{})
	if err != nil {
		t.Fatalf("run of version %d failed: %v", cfg.Run.Version, err)
	}
	if !result.Complete {
		t.Fatalf("expected version %d to complete", cfg.Run.Version)
	}
	return result
}

// mustChild returns the live child of parentID called ident.
func mustChild(t *testing.T, store *catalog.Store, parentID, ident string) *catalog.Entity {
	t.Helper()
	children, err := store.LiveChildren(context.Background(), parentID)
	if err != nil {
		t.Fatalf("LiveChildren failed: %v", err)
	}
	for _, c := range children {
		if c.Identifier == ident {
			return c
		}
	}
	t.Fatalf("no live child %q under %s", ident, parentID)
	return nil
}

// mustPath walks identifiers down from the version record.
func mustPath(t *testing.T, store *catalog.Store, version int, path ...string) *catalog.Entity {
	t.Helper()
	node, err := store.Version(context.Background(), version)
	if err != nil {
		t.Fatalf("Version(%d) failed: %v", version, err)
	}
	for _, ident := range path {
		node = mustChild(t, store, node.ID, ident)
	}
	return node
}

// assertConsistent checks that every live entity under id is done and that
// its combined digest is the combination of its children's.
func assertConsistent(t *testing.T, store *catalog.Store, id string) {
	t.Helper()
	node, err := store.Entity(context.Background(), id)
	if err != nil {
		t.Fatalf("Entity failed: %v", err)
	}
	if !node.Done {
		t.Fatalf("%s %s is not done", node.Level, node.Identifier)
	}
	if node.Level == catalog.LevelInstance {
		return
	}
	children, err := store.LiveChildren(context.Background(), id)
	if err != nil {
		t.Fatalf("LiveChildren failed: %v", err)
	}
	digests := make([]string, 0, len(children))
	for _, c := range children {
		digests = append(digests, c.CombinedHash())
		assertConsistent(t, store, c.ID)
	}
	if want := hashtree.Combine(digests); node.CombinedHash() != want {
		t.Fatalf("%s %s combined hash %q, want %q", node.Level, node.Identifier, node.CombinedHash(), want)
	}
}
