package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"imgcat/internal/catalog"
	"imgcat/internal/source"
)

var (
	// ErrHashMismatch reports that the hash recomputed from the children
	// disagrees with a source's digest. The subtree is not committed.
	ErrHashMismatch = errors.New("reconcile: hash mismatch")
	// ErrIncomplete reports work that cannot proceed because a prerequisite
	// is not done: a child at build time or the previous version at run time.
	ErrIncomplete = errors.New("reconcile: incomplete")
)

// SubtreeError locates a failed subtree by its identifier chain, from the
// collection down to the failing entity.
type SubtreeError struct {
	Level catalog.Level
	Chain []string
	Err   error
}

func (e *SubtreeError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Level, strings.Join(e.Chain, "/"), e.Err)
}

func (e *SubtreeError) Unwrap() error { return e.Err }

// Kind classifies the underlying failure for reports and metrics.
func (e *SubtreeError) Kind() string {
	switch {
	case errors.Is(e.Err, ErrHashMismatch):
		return "hash_mismatch"
	case errors.Is(e.Err, source.ErrDuplicateIdentifier):
		return "duplicate_identifier"
	case errors.Is(e.Err, source.ErrTransient):
		return "transient"
	case errors.Is(e.Err, ErrIncomplete):
		return "incomplete"
	default:
		return "error"
	}
}

// Subtrees flattens err into the SubtreeErrors it carries, looking through
// errors.Join trees.
func Subtrees(err error) []*SubtreeError {
	if err == nil {
		return nil
	}
	if se, ok := err.(*SubtreeError); ok {
		return []*SubtreeError{se}
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []*SubtreeError
		for _, inner := range joined.Unwrap() {
			out = append(out, Subtrees(inner)...)
		}
		return out
	}
	if wrapped := errors.Unwrap(err); wrapped != nil {
		return Subtrees(wrapped)
	}
	return nil
}
