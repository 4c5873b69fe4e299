package catalog

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Level names one tier of the catalog hierarchy.
type Level string

const (
	LevelVersion    Level = "version"
	LevelCollection Level = "collection"
	LevelPatient    Level = "patient"
	LevelStudy      Level = "study"
	LevelSeries     Level = "series"
	LevelInstance   Level = "instance"
)

// Levels lists the hierarchy from coarsest to finest.
var Levels = []Level{LevelVersion, LevelCollection, LevelPatient, LevelStudy, LevelSeries, LevelInstance}

// Child returns the level below l, or "" for instances.
func (l Level) Child() Level {
	for i, lvl := range Levels {
		if lvl == l && i+1 < len(Levels) {
			return Levels[i+1]
		}
	}
	return ""
}

// Parent returns the level above l, or "" for versions.
func (l Level) Parent() Level {
	for i, lvl := range Levels {
		if lvl == l && i > 0 {
			return Levels[i-1]
		}
	}
	return ""
}

// Valid reports whether l is a known level.
func (l Level) Valid() bool {
	for _, lvl := range Levels {
		if lvl == l {
			return true
		}
	}
	return false
}

// Entity is one row of the catalog arena. Parent/child relations live in the
// link table and are resolved through a Tx, never through pointers.
type Entity struct {
	ID         string
	Level      Level
	Identifier string
	// Hashes holds one digest per source followed by the combined digest.
	Hashes []string
	// Sources flags which sources currently hold the entity.
	Sources []bool
	// Revised flags which sources disagreed when the entity was cloned.
	Revised      []bool
	MinTimestamp time.Time
	MaxTimestamp time.Time
	InitVersion  int
	RevVersion   int
	// FinalVersion is the version that retired the entity; 0 while live.
	FinalVersion int
	Done         bool
	Expanded     bool
	IsNew        bool
	ContentURI   string
	// Instances counts the instances in the subtree; 1 for an instance.
	Instances    int
}

// Live reports whether the entity has not been retired.
func (e *Entity) Live() bool {
	return e.FinalVersion == 0
}

// CombinedHash returns the trailing all-sources digest.
func (e *Entity) CombinedHash() string {
	if len(e.Hashes) == 0 {
		return ""
	}
	return e.Hashes[len(e.Hashes)-1]
}

// SourceHashes returns the per-source digests without the combined digest.
func (e *Entity) SourceHashes() []string {
	if len(e.Hashes) == 0 {
		return nil
	}
	return e.Hashes[:len(e.Hashes)-1]
}

// VersionNumber parses the identifier of a version record.
func (e *Entity) VersionNumber() int {
	n, _ := strconv.Atoi(e.Identifier)
	return n
}

// NewEntity builds a freshly created entity stamped with version. Hash and
// flag vectors are sized for numSources.
func NewEntity(level Level, identifier string, numSources, version int, now time.Time) *Entity {
	return &Entity{
		ID:           uuid.NewString(),
		Level:        level,
		Identifier:   identifier,
		Hashes:       make([]string, numSources+1),
		Sources:      make([]bool, numSources),
		Revised:      make([]bool, numSources),
		MinTimestamp: now,
		MaxTimestamp: now,
		InitVersion:  version,
		RevVersion:   version,
		IsNew:        true,
	}
}

// LevelCount summarizes the member entities of one level under a version.
type LevelCount struct {
	Level Level
	Live  int
	Done  int
}
