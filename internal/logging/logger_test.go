package logging_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"imgcat/internal/config"
	"imgcat/internal/logging"
)

func TestConsoleLoggerFoldsCollectionIntoHeader(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := logging.WithCollection(context.Background(), "lidc-idri")
	logging.WithContext(ctx, logging.NewComponentLogger(logger, "builder")).Info("series built", logging.Int("instances", 3))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)
	if !strings.Contains(text, "[builder] lidc-idri - series built") {
		t.Fatalf("expected header with component and collection, got %q", text)
	}
	if !strings.Contains(text, "    - instances: 3") {
		t.Fatalf("expected indented field, got %q", text)
	}
	if strings.Contains(text, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", text)
	}
}

func TestJSONLoggerUsesTSKey(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hello")
	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), `"ts":`) || !strings.Contains(string(content), `"level":"info"`) {
		t.Fatalf("unexpected json output: %s", content)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestRunLoggerWritesRunFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Level = "info"

	logger, closer, err := logging.NewRunLogger(&cfg, "run-1")
	if err != nil {
		t.Fatalf("NewRunLogger: %v", err)
	}
	logging.ErrorWithContext(logger, "subtree failed", "subtree_failed", logging.Error(errors.New("boom")))
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "imgcat-run-1.log"))
	if err != nil {
		t.Fatalf("read run log: %v", err)
	}
	for _, want := range []string{`"run_id":"run-1"`, `"event_type":"subtree_failed"`, `"error_hint":`} {
		if !strings.Contains(string(content), want) {
			t.Fatalf("expected %s in run log, got %s", want, content)
		}
	}
}

func TestContextFieldsEmpty(t *testing.T) {
	if fields := logging.ContextFields(context.Background()); len(fields) != 0 {
		t.Fatalf("expected no fields, got %v", fields)
	}
}
