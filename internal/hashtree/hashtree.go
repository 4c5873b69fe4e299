// Package hashtree combines child digests into Merkle parent digests.
package hashtree

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
)

// Empty is the digest of an entity with no children: the SHA-256 of empty
// input.
const Empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// Combine returns the hex SHA-256 of the concatenated, sorted digests.
// Input order is irrelevant and duplicates are kept.
func Combine(digests []string) string {
	sorted := slices.Clone(digests)
	slices.Sort(sorted)
	h := sha256.New()
	for _, d := range sorted {
		h.Write([]byte(d))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Child is the hash view of one child needed to aggregate its parent.
type Child struct {
	// Hashes holds one digest per source followed by the combined digest.
	Hashes []string
	// Sources flags which sources hold the child.
	Sources []bool
}

// Aggregate computes a parent's hash vector from its children. present
// flags the sources holding the parent itself and sizes the vector. Entry s
// combines the children present in s; it is "" when neither the parent nor
// any child is in s, and Empty when the parent is in s with no children
// there. The trailing entry combines every child's combined digest.
func Aggregate(children []Child, present []bool) []string {
	numSources := len(present)
	out := make([]string, numSources+1)
	all := make([]string, 0, len(children))
	for s := range numSources {
		var digests []string
		for _, c := range children {
			if s < len(c.Sources) && c.Sources[s] && s < len(c.Hashes) {
				digests = append(digests, c.Hashes[s])
			}
		}
		if len(digests) > 0 || present[s] {
			out[s] = Combine(digests)
		}
	}
	for _, c := range children {
		if len(c.Hashes) > 0 {
			all = append(all, c.Hashes[len(c.Hashes)-1])
		}
	}
	out[numSources] = Combine(all)
	return out
}
