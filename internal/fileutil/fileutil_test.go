package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "obj.idc")

	if err := WriteAtomic(target, []byte("first"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteAtomic(target, []byte("second"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Fatalf("content mismatch: got %q", got)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp files cleaned up, found %d entries", len(entries))
	}
}

func TestWriteAtomicMode(t *testing.T) {
	target := filepath.Join(t.TempDir(), "obj.idc")
	if err := WriteAtomic(target, []byte("data"), 0o600); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(target)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected mode 0600, got %o", info.Mode().Perm())
	}
}

func TestWriteVerified(t *testing.T) {
	target := filepath.Join(t.TempDir(), "obj.idc")
	if err := WriteVerified(target, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "payload" {
		t.Fatalf("content mismatch: got %q", got)
	}
}

func TestWriteAtomicMissingDir(t *testing.T) {
	target := filepath.Join(t.TempDir(), "missing", "obj.idc")
	if err := WriteAtomic(target, []byte("x"), 0o644); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	ok, err := Exists(filepath.Join(dir, "nope"))
	if err != nil || ok {
		t.Fatalf("expected missing file, got ok=%v err=%v", ok, err)
	}
	ok, err = Exists(dir)
	if err != nil || !ok {
		t.Fatalf("expected existing dir, got ok=%v err=%v", ok, err)
	}
}
