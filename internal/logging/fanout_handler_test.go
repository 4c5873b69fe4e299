package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("disk full") }

func TestNewMultiHandlerCollapses(t *testing.T) {
	if _, ok := newMultiHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when every sink is nil")
	}
	inner := slog.NewJSONHandler(&bytes.Buffer{}, nil)
	if h := newMultiHandler(nil, inner); h != inner {
		t.Fatal("expected a single sink to be returned unwrapped")
	}
}

func TestMultiHandlerRespectsSinkLevels(t *testing.T) {
	var console, runFile bytes.Buffer
	logger := slog.New(newMultiHandler(
		slog.NewJSONHandler(&console, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&runFile, &slog.HandlerOptions{Level: slog.LevelDebug}),
	))
	logger.Debug("listing children")
	logger.Info("collection built")

	if strings.Contains(console.String(), "listing children") {
		t.Fatalf("console received debug record: %s", console.String())
	}
	if !strings.Contains(runFile.String(), "listing children") || !strings.Contains(runFile.String(), "collection built") {
		t.Fatalf("run file missing records: %s", runFile.String())
	}
}

func TestMultiHandlerKeepsWritingAfterFailure(t *testing.T) {
	var buf bytes.Buffer
	h := newMultiHandler(
		failingHandler{slog.NewJSONHandler(&bytes.Buffer{}, nil)},
		slog.NewJSONHandler(&buf, nil),
	)
	err := h.Handle(context.Background(), slog.NewRecord(time.Time{}, slog.LevelInfo, "version done", 0))
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected joined sink error, got %v", err)
	}
	if !strings.Contains(buf.String(), "version done") {
		t.Fatalf("second sink skipped: %s", buf.String())
	}
}

func TestTeeLoggerCarriesAttrs(t *testing.T) {
	var baseBuf, teeBuf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&baseBuf, nil))
	logger := TeeLogger(base, newRunIDHandler(slog.NewJSONHandler(&teeBuf, nil), "r1")).With(FieldCollection, "c1")
	logger.InfoContext(context.Background(), "hello")

	if !strings.Contains(baseBuf.String(), `"collection":"c1"`) {
		t.Fatalf("base missing attr: %s", baseBuf.String())
	}
	if strings.Contains(baseBuf.String(), "run_id") {
		t.Fatalf("base should not carry run_id: %s", baseBuf.String())
	}
	if !strings.Contains(teeBuf.String(), `"run_id":"r1"`) || !strings.Contains(teeBuf.String(), `"collection":"c1"`) {
		t.Fatalf("tee missing attrs: %s", teeBuf.String())
	}
}

func TestWithDefaultsKeepsCallerValues(t *testing.T) {
	attrs := withDefaults([]Attr{String(FieldErrorHint, "fix the manifest")},
		String(FieldEventType, "subtree_failed"),
		String(FieldErrorHint, "re-run"),
	)
	if len(attrs) != 2 || attrs[0].Value.String() != "fix the manifest" {
		t.Fatalf("unexpected attrs: %v", attrs)
	}
}
