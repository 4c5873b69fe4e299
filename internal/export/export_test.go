package export_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"imgcat/internal/catalog"
	"imgcat/internal/config"
	"imgcat/internal/export"
	"imgcat/internal/logging"
	"imgcat/internal/reconcile"
	"imgcat/internal/source"
	"imgcat/internal/testsupport"
)

const manifest = `collections:
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
`

func buildVersion(t *testing.T) (*config.Config, *catalog.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithManifestSources("a"))
	testsupport.WriteFile(t, testsupport.ManifestPath(cfg, "a"), manifest)
	store := testsupport.MustOpenStore(t, cfg)
	set, err := source.Open(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("source.Open failed: %v", err)
	}
	result, err := reconcile.NewRunner(cfg, store, set, nil, logging.NewNop()).Run(context.Background(), reconcile.RunOptions{})
	if err != nil || !result.Complete {
		t.Fatalf("run failed: %v", err)
	}
	return cfg, store
}

func readObject(t *testing.T, dir, name string) export.Object {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	var obj export.Object
	if err := json.Unmarshal(data, &obj); err != nil {
		t.Fatalf("decode %s: %v", name, err)
	}
	return obj
}

func TestExportWritesIndexObjects(t *testing.T) {
	cfg, store := buildVersion(t)
	sink, err := export.NewDirSink(cfg.Export.Dir, "")
	if err != nil {
		t.Fatalf("NewDirSink failed: %v", err)
	}
	x := export.New(cfg, store, sink, logging.NewNop())

	sum, err := x.Export(context.Background(), 1)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	// version + collection + 2 patients + 2 studies + 2 series
	if sum.Written != 8 || sum.Skipped != 0 {
		t.Fatalf("unexpected summary %+v", sum)
	}

	root := readObject(t, cfg.Export.Dir, export.VersionObject(1))
	if root.Level != "version" || len(root.Children) != 1 || root.Children[0].Identifier != "c1" {
		t.Fatalf("unexpected version object %+v", root)
	}
	c1, err := store.Entity(context.Background(), root.Children[0].SurrogateID)
	if err != nil {
		t.Fatalf("Entity failed: %v", err)
	}
	if root.Children[0].Hash != c1.CombinedHash() || root.Children[0].Object != export.EntityObject(c1.ID) {
		t.Fatalf("unexpected collection reference %+v", root.Children[0])
	}

	coll := readObject(t, cfg.Export.Dir, root.Children[0].Object)
	if coll.SourceHashes["a"] == "" || len(coll.Children) != 2 {
		t.Fatalf("unexpected collection object %+v", coll)
	}

	var series export.Object
	for _, p := range coll.Children {
		patient := readObject(t, cfg.Export.Dir, p.Object)
		study := readObject(t, cfg.Export.Dir, patient.Children[0].Object)
		if obj := readObject(t, cfg.Export.Dir, study.Children[0].Object); obj.Identifier == "se1" {
			series = obj
		}
	}
	if len(series.Children) != 2 || series.Instances != 2 {
		t.Fatalf("expected series se1 with two instances, got %+v", series)
	}
	for _, inst := range series.Children {
		if inst.Object != "" {
			t.Fatalf("instances have no object of their own, got %q", inst.Object)
		}
		if inst.Identifier == "i1" && inst.URI != "file:///data/i1.dcm" {
			t.Fatalf("expected instance uri, got %q", inst.URI)
		}
	}
}

func TestExportSkipsExistingObjects(t *testing.T) {
	cfg, store := buildVersion(t)
	sink, err := export.NewDirSink(cfg.Export.Dir, "idc")
	if err != nil {
		t.Fatalf("NewDirSink failed: %v", err)
	}
	x := export.New(cfg, store, sink, logging.NewNop())
	ctx := context.Background()
	if _, err := x.Export(ctx, 1); err != nil {
		t.Fatalf("first export failed: %v", err)
	}

	sum, err := x.Export(ctx, 1)
	if err != nil {
		t.Fatalf("second export failed: %v", err)
	}
	if sum.Written != 0 || sum.Skipped != 1 {
		t.Fatalf("expected only the version object checked, got %+v", sum)
	}

	// An interrupted export leaves subtrees without the root.
	if err := os.Remove(filepath.Join(cfg.Export.Dir, "idc", export.VersionObject(1))); err != nil {
		t.Fatalf("remove root: %v", err)
	}
	sum, err = x.Export(ctx, 1)
	if err != nil {
		t.Fatalf("third export failed: %v", err)
	}
	if sum.Written != 1 || sum.Skipped != 1 {
		t.Fatalf("expected root rewritten over an existing collection, got %+v", sum)
	}
}

func TestExportRefusesOpenVersion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.MustVersion(t, store, 1, 0, 0)
	sink, err := export.NewDirSink(cfg.Export.Dir, "")
	if err != nil {
		t.Fatalf("NewDirSink failed: %v", err)
	}

	_, err = export.New(cfg, store, sink, logging.NewNop()).Export(context.Background(), 1)
	if !errors.Is(err, export.ErrVersionNotDone) {
		t.Fatalf("expected ErrVersionNotDone, got %v", err)
	}
}

func TestOpenSinkSelectsDirectory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	sink, err := export.OpenSink(context.Background(), cfg)
	if err != nil {
		t.Fatalf("OpenSink failed: %v", err)
	}
	defer sink.Close()
	if sink.Location() != cfg.Export.Dir {
		t.Fatalf("expected directory sink at %s, got %s", cfg.Export.Dir, sink.Location())
	}
}
