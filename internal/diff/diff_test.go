package diff_test

import (
	"testing"

	"imgcat/internal/catalog"
	"imgcat/internal/diff"
	"imgcat/internal/source"
)

func entity(id string, sources ...bool) *catalog.Entity {
	return &catalog.Entity{ID: "sid-" + id, Level: catalog.LevelPatient, Identifier: id, Sources: sources}
}

func reported(ids ...string) source.Listing {
	listing := make(source.Listing)
	for _, id := range ids {
		listing[id] = &source.Reported{Identifier: id, Hashes: []string{"h"}, Sources: []bool{true}}
	}
	return listing
}

func identifiers(es []*catalog.Entity) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.Identifier)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestClassifyNewExistingRetired(t *testing.T) {
	children := map[string]*catalog.Entity{"A": entity("A", true), "B": entity("B", true)}
	res := diff.Classify(children, reported("A", "C"), source.Uniform([]bool{false}))

	if !equal(res.New, []string{"C"}) {
		t.Fatalf("new = %v, want [C]", res.New)
	}
	if got := identifiers(res.Existing); !equal(got, []string{"A"}) {
		t.Fatalf("existing = %v, want [A]", got)
	}
	if got := identifiers(res.Retired); !equal(got, []string{"B"}) {
		t.Fatalf("retired = %v, want [B]", got)
	}
}

func TestClassifyIsCompleteAndDisjoint(t *testing.T) {
	children := map[string]*catalog.Entity{
		"A": entity("A", true, false),
		"B": entity("B", false, true),
		"D": entity("D", true, true),
	}
	listing := reported("A", "C", "E")
	cases := []struct {
		name string
		skip []bool
	}{
		{"no skip", []bool{false, false}},
		{"skip second", []bool{false, true}},
		{"skip both", []bool{true, true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := diff.Classify(children, listing, source.Uniform(tc.skip))
			seen := make(map[string]int)
			for _, id := range res.New {
				seen[id]++
			}
			for _, id := range identifiers(res.Existing) {
				seen[id]++
			}
			for _, id := range identifiers(res.Retired) {
				seen[id]++
			}
			for _, id := range []string{"A", "B", "C", "D", "E"} {
				if seen[id] != 1 {
					t.Fatalf("identifier %s classified %d times", id, seen[id])
				}
			}
			if len(seen) != 5 {
				t.Fatalf("unexpected identifiers: %v", seen)
			}
		})
	}
}

func TestClassifySkipCoveredStaysExisting(t *testing.T) {
	children := map[string]*catalog.Entity{"B": entity("B", false, true)}
	res := diff.Classify(children, reported(), source.Uniform([]bool{false, true}))
	if len(res.Retired) != 0 || len(res.Existing) != 1 {
		t.Fatalf("expected B kept through skipped source, got %+v", res)
	}

	// A skipped source that never held the entity does not protect it.
	children = map[string]*catalog.Entity{"A": entity("A", true, false)}
	res = diff.Classify(children, reported(), source.Uniform([]bool{false, true}))
	if len(res.Retired) != 1 {
		t.Fatalf("expected A retired, got %+v", res)
	}
}

func TestClassifyUsesPerChildSkip(t *testing.T) {
	children := map[string]*catalog.Entity{
		"c1": entity("c1", false, true),
		"c2": entity("c2", false, true),
	}
	skip := func(id string) []bool {
		if id == "c1" {
			return []bool{false, true}
		}
		return []bool{false, false}
	}
	res := diff.Classify(children, reported(), skip)
	if got := identifiers(res.Existing); !equal(got, []string{"c1"}) {
		t.Fatalf("existing = %v, want [c1]", got)
	}
	if got := identifiers(res.Retired); !equal(got, []string{"c2"}) {
		t.Fatalf("retired = %v, want [c2]", got)
	}
}

func TestRevised(t *testing.T) {
	cases := []struct {
		name    string
		stored  []string
		fetched []string
		skip    []bool
		want    []bool
		any     bool
	}{
		{"unchanged", []string{"h1", "h2"}, []string{"h1", "h2"}, nil, []bool{false, false}, false},
		{"second source changed", []string{"h1", "h2"}, []string{"h1", "h2x"}, []bool{false, false}, []bool{false, true}, true},
		{"changed source skipped", []string{"h1", "h2"}, []string{"h1", "h2x"}, []bool{false, true}, []bool{false, false}, false},
		{"source dropped entity", []string{"h1", "h2"}, []string{"h1", ""}, nil, []bool{false, true}, true},
		{"source gained entity", []string{"h1", ""}, []string{"h1", "h2"}, nil, []bool{false, true}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := diff.Revised(tc.stored, tc.fetched, tc.skip)
			if len(got) != len(tc.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tc.want))
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("revised[%d] = %v, want %v", i, got[i], tc.want[i])
				}
			}
			if diff.Any(got) != tc.any {
				t.Fatalf("Any = %v, want %v", diff.Any(got), tc.any)
			}
		})
	}
}
