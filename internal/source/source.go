package source

import (
	"context"
	"errors"
	"strings"

	"imgcat/internal/catalog"
)

var (
	// ErrTransient marks failures worth retrying: network errors, timeouts,
	// throttling, and server errors. It is distinct from an empty listing.
	ErrTransient = errors.New("source: transient failure")
	// ErrDuplicateIdentifier reports a source listing the same child twice
	// under one parent. It is a data inconsistency and is never retried.
	ErrDuplicateIdentifier = errors.New("source: duplicate identifier")
)

// Scope addresses one entity of the hierarchy by its natural identifiers.
// Path holds identifiers from the collection down; the version scope has an
// empty path.
type Scope struct {
	Level catalog.Level
	Path  []string
}

// VersionScope addresses the whole archive.
func VersionScope() Scope {
	return Scope{Level: catalog.LevelVersion}
}

// Child returns the scope of a child of s.
func (s Scope) Child(identifier string) Scope {
	path := make([]string, len(s.Path), len(s.Path)+1)
	copy(path, s.Path)
	return Scope{Level: s.Level.Child(), Path: append(path, identifier)}
}

// Identifier returns the natural key of the addressed entity.
func (s Scope) Identifier() string {
	if len(s.Path) == 0 {
		return ""
	}
	return s.Path[len(s.Path)-1]
}

// Collection returns the collection the scope belongs to, or "" at the
// version level.
func (s Scope) Collection() string {
	if len(s.Path) == 0 {
		return ""
	}
	return s.Path[0]
}

func (s Scope) String() string {
	if len(s.Path) == 0 {
		return string(s.Level)
	}
	return string(s.Level) + ":" + strings.Join(s.Path, "/")
}

// Child is one entry of a single adapter's listing.
type Child struct {
	Identifier string
	// Hash is the source's digest of the child; instances carry their content
	// hash.
	Hash string
	// URI locates instance content; empty above the instance level.
	URI string
}

// Adapter is the capability set of one upstream source. Implementations must
// be safe for concurrent use and side-effect free: identical remote state
// yields identical results. An empty listing is valid. Retryable failures
// wrap ErrTransient.
type Adapter interface {
	Name() string
	ListChildren(ctx context.Context, scope Scope) ([]Child, error)
	// FetchHash returns the source's digest of the entity at scope; present
	// is false when the source does not hold it.
	FetchHash(ctx context.Context, scope Scope) (hash string, present bool, err error)
}

// Reported merges what every source says about one child.
type Reported struct {
	Identifier string
	// Hashes holds one digest per source; "" when the source lacks the child
	// or was skipped.
	Hashes  []string
	Sources []bool
	URI     string
}

// Any reports whether at least one source holds the child.
func (r *Reported) Any() bool {
	for _, present := range r.Sources {
		if present {
			return true
		}
	}
	return false
}

// Listing maps child identifiers to their merged report.
type Listing map[string]*Reported

// SkipFunc returns, per source index, whether the source is skipped for the
// named child. Below the version level every child shares its collection's
// vector.
type SkipFunc func(identifier string) []bool

// Uniform returns a SkipFunc yielding skip for every child.
func Uniform(skip []bool) SkipFunc {
	return func(string) []bool { return skip }
}

// Skipped reports whether index i is set in skip.
func Skipped(skip []bool, i int) bool {
	return i < len(skip) && skip[i]
}
