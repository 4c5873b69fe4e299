package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"imgcat/internal/config"
)

// WriteFile writes content to path, creating parent directories. Leading
// tabs are stripped from every line so YAML fixtures can be indented with
// the surrounding Go code.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimLeft(line, "\t")
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ManifestPath returns the manifest file read by a source added through
// WithManifestSources.
func ManifestPath(cfg *config.Config, name string) string {
	return filepath.Join(BaseDir(cfg), name+".yaml")
}
