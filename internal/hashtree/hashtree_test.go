package hashtree_test

import (
	"testing"

	"imgcat/internal/hashtree"
)

func TestCombineIsOrderIndependent(t *testing.T) {
	a := hashtree.Combine([]string{"aa", "bb", "cc"})
	b := hashtree.Combine([]string{"cc", "aa", "bb"})
	if a != b {
		t.Fatalf("expected permutation to combine equally: %s vs %s", a, b)
	}
}

func TestCombineEmptyIsConstant(t *testing.T) {
	if got := hashtree.Combine(nil); got != hashtree.Empty {
		t.Fatalf("expected empty constant, got %s", got)
	}
	if got := hashtree.Combine([]string{}); got != hashtree.Empty {
		t.Fatalf("expected empty constant for empty slice, got %s", got)
	}
}

func TestCombineKeepsDuplicates(t *testing.T) {
	once := hashtree.Combine([]string{"aa"})
	twice := hashtree.Combine([]string{"aa", "aa"})
	if once == twice {
		t.Fatal("expected duplicate digests to change the result")
	}
}

func TestCombineDoesNotMutateInput(t *testing.T) {
	in := []string{"cc", "aa"}
	hashtree.Combine(in)
	if in[0] != "cc" || in[1] != "aa" {
		t.Fatalf("input reordered: %v", in)
	}
}

func TestAggregatePerSource(t *testing.T) {
	children := []hashtree.Child{
		{Hashes: []string{"a0", "", "ac"}, Sources: []bool{true, false}},
		{Hashes: []string{"b0", "b1", "bc"}, Sources: []bool{true, true}},
	}
	got := hashtree.Aggregate(children, []bool{false, false})
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0] != hashtree.Combine([]string{"a0", "b0"}) {
		t.Fatalf("unexpected source 0 hash %s", got[0])
	}
	if got[1] != hashtree.Combine([]string{"b1"}) {
		t.Fatalf("unexpected source 1 hash %s", got[1])
	}
	if got[2] != hashtree.Combine([]string{"ac", "bc"}) {
		t.Fatalf("unexpected combined hash %s", got[2])
	}
}

func TestAggregateNoChildren(t *testing.T) {
	got := hashtree.Aggregate(nil, []bool{true, false})
	if got[0] != hashtree.Empty || got[1] != "" {
		t.Fatalf("expected empty constant only for the held source, got %v", got)
	}
	if got[2] != hashtree.Empty {
		t.Fatalf("expected empty constant, got %s", got[2])
	}
}
