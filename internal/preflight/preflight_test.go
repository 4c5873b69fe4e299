package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"imgcat/internal/config"
	"imgcat/internal/source"
	"imgcat/internal/testsupport"
)

type fakeAdapter struct {
	err error
}

func (f fakeAdapter) Name() string { return "fake" }

func (f fakeAdapter) ListChildren(context.Context, source.Scope) ([]source.Child, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []source.Child{{Identifier: "c1"}}, nil
}

func (f fakeAdapter) FetchHash(context.Context, source.Scope) (string, bool, error) {
	return "", false, nil
}

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckSource(t *testing.T) {
	if r := CheckSource(context.Background(), fakeAdapter{}); !r.Passed {
		t.Fatalf("expected pass, got: %s", r.Detail)
	}
	r := CheckSource(context.Background(), fakeAdapter{err: context.DeadlineExceeded})
	if r.Passed || r.Detail != "listing timed out (source unresponsive)" {
		t.Fatalf("unexpected result %+v", r)
	}
	if r := CheckSource(context.Background(), fakeAdapter{err: errors.New("boom")}); r.Passed || r.Detail != "boom" {
		t.Fatalf("unexpected result %+v", r)
	}
}

func TestCheckPreviousVersion(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithVersion(2, 1))
	store := testsupport.MustOpenStore(t, cfg)

	if r := CheckPreviousVersion(context.Background(), cfg, store); !r.Passed {
		t.Fatalf("expected missing predecessor to pass, got: %s", r.Detail)
	}
	testsupport.MustVersion(t, store, 1, 0, 0)
	if r := CheckPreviousVersion(context.Background(), cfg, store); r.Passed {
		t.Fatal("expected unfinished predecessor to fail")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil, nil, nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	set := source.NewSet([]source.Adapter{fakeAdapter{}}, source.RetryPolicy{}, nil)

	results := RunAll(context.Background(), cfg, store, set)
	// catalog, journal, log, export, version state, one source
	if len(results) != 6 {
		t.Fatalf("expected 6 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
	if Failed(results) {
		t.Fatal("expected no failures")
	}
}

func TestRunAll_SkipsExportDirForBucketSink(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Export.Sink = config.ExportSinkGCS
	for _, r := range RunAll(context.Background(), cfg, nil, nil) {
		if r.Name == "Export directory" {
			t.Fatal("expected no export directory check for the bucket sink")
		}
	}
}
