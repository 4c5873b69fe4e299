// Package journal records completed units of work so an interrupted pass can
// resume without repeating them.
//
// A journal is append-only: entries are never rewritten or removed while a
// pass is in progress. A finished pass may remove its journals as a whole.
// Two backends exist: a newline-delimited file guarded by an exclusive file
// lock, and an embedded Badger database. Entries are scoped by journal name,
// so one directory can hold the journals of several passes.
package journal

import (
	"errors"
	"fmt"
	"strings"

	"imgcat/internal/config"
)

// ErrClosed is returned when appending to a closed journal.
var ErrClosed = errors.New("journal: closed")

// Journal is the completion log of one pass. Implementations are safe for
// concurrent use by coordinator workers.
type Journal interface {
	// Contains reports whether id was recorded, by this process or an
	// earlier one.
	Contains(id string) bool
	// Append durably records id. Recording an id twice is harmless.
	Append(id string) error
	// Len returns the number of distinct recorded ids.
	Len() int
	Close() error
}

// Open opens the journal called name using the configured backend.
func Open(cfg *config.Config, name string) (Journal, error) {
	if strings.ContainsAny(name, `/\`) || strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("journal: invalid name %q", name)
	}
	switch cfg.Journal.Kind {
	case config.JournalKindFile:
		return OpenFile(cfg.Journal.Dir, name)
	case config.JournalKindBadger:
		return OpenBadger(cfg.Journal.Dir, name)
	default:
		return nil, fmt.Errorf("journal: unsupported kind %q", cfg.Journal.Kind)
	}
}

// RunName names the journal of a reconciliation run of version.
func RunName(version int) string {
	return fmt.Sprintf("run-v%d", version)
}

// RefreshName names the journal of a hash refresh pass over level.
func RefreshName(level string) string {
	return "refresh-" + level
}

// Remove discards every entry of the journal called name.
func Remove(cfg *config.Config, name string) error {
	switch cfg.Journal.Kind {
	case config.JournalKindFile:
		return removeFile(cfg.Journal.Dir, name)
	case config.JournalKindBadger:
		j, err := OpenBadger(cfg.Journal.Dir, name)
		if err != nil {
			return err
		}
		dropErr := j.drop()
		if err := j.Close(); err != nil && dropErr == nil {
			dropErr = err
		}
		return dropErr
	default:
		return fmt.Errorf("journal: unsupported kind %q", cfg.Journal.Kind)
	}
}

// Dir opens and removes the journals of the configured backend by name.
type Dir struct {
	cfg *config.Config
}

// NewDir binds journal naming to cfg.Journal.
func NewDir(cfg *config.Config) *Dir {
	return &Dir{cfg: cfg}
}

func (d *Dir) Open(name string) (Journal, error) { return Open(d.cfg, name) }

func (d *Dir) Remove(name string) error { return Remove(d.cfg, name) }
