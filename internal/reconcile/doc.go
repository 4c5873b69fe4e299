// Package reconcile brings one version of the catalog in line with its
// sources.
//
// A run expands the version's collection list, then builds each collection
// as an independent partition: every entity is expanded once (its children
// diffed against the sources and classified new, revised, retired, or
// unchanged), its children are built depth-first, and its per-source and
// combined digests are recomputed from the children and verified against the
// sources before it is marked done. Expansion and completion each commit in
// one transaction, so a crashed run resumes from the last committed entity.
//
// RefreshHashes is a separate maintenance pass that recomputes combined
// digests level by level.
package reconcile
