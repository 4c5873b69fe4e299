// Package diff classifies the children of one parent against what the
// sources currently report.
package diff

import (
	"slices"

	"imgcat/internal/catalog"
	"imgcat/internal/source"
)

// Result partitions the union of catalog and reported children. New holds
// identifiers; Existing and Retired hold catalog entities. All three are
// sorted by identifier.
type Result struct {
	New      []string
	Existing []*catalog.Entity
	Retired  []*catalog.Entity
}

// Classify compares the live catalog children of a parent with the merged
// source listing. A catalog child stays existing when a source still reports
// it or when any source holding it is skipped, since a skipped source cannot
// be asked.
func Classify(children map[string]*catalog.Entity, reported source.Listing, skip source.SkipFunc) Result {
	var res Result
	for id := range reported {
		if _, ok := children[id]; !ok {
			res.New = append(res.New, id)
		}
	}
	for id, e := range children {
		if _, ok := reported[id]; ok || skipCovered(e, skip(id)) {
			res.Existing = append(res.Existing, e)
			continue
		}
		res.Retired = append(res.Retired, e)
	}
	slices.Sort(res.New)
	byIdentifier := func(a, b *catalog.Entity) int {
		switch {
		case a.Identifier < b.Identifier:
			return -1
		case a.Identifier > b.Identifier:
			return 1
		}
		return 0
	}
	slices.SortFunc(res.Existing, byIdentifier)
	slices.SortFunc(res.Retired, byIdentifier)
	return res
}

func skipCovered(e *catalog.Entity, skip []bool) bool {
	for i, present := range e.Sources {
		if present && source.Skipped(skip, i) {
			return true
		}
	}
	return false
}

// Revised compares stored and fetched per-source digests. An entry is true
// when the digests differ and the source is not skipped.
func Revised(stored, fetched []string, skip []bool) []bool {
	n := max(len(stored), len(fetched))
	out := make([]bool, n)
	for i := range n {
		if source.Skipped(skip, i) {
			continue
		}
		out[i] = at(stored, i) != at(fetched, i)
	}
	return out
}

// Any reports whether any entry of revised is set.
func Any(revised []bool) bool {
	return slices.Contains(revised, true)
}

func at(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}
