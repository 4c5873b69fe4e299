package preflight

import (
	"context"
	"errors"
	"fmt"

	"imgcat/internal/catalog"
	"imgcat/internal/config"
)

// CheckPreviousVersion reports whether the configured run can start: the
// previous version, when set, must be done, and the target version must not
// already be complete.
func CheckPreviousVersion(ctx context.Context, cfg *config.Config, store *catalog.Store) Result {
	const name = "Version state"

	if cfg.Run.Version <= 0 {
		return Result{Name: name, Detail: "run.version not set"}
	}
	if prev := cfg.Run.PreviousVersion; prev > 0 {
		record, err := store.Version(ctx, prev)
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			return Result{Name: name, Passed: true, Detail: fmt.Sprintf("previous version %d missing; starting empty", prev)}
		case err != nil:
			return Result{Name: name, Detail: err.Error()}
		case !record.Done:
			return Result{Name: name, Detail: fmt.Sprintf("previous version %d is not done", prev)}
		}
	}
	record, err := store.Version(ctx, cfg.Run.Version)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("version %d not started", cfg.Run.Version)}
	case err != nil:
		return Result{Name: name, Detail: err.Error()}
	case record.Done:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("version %d already done", cfg.Run.Version)}
	default:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("version %d in progress; run resumes", cfg.Run.Version)}
	}
}
