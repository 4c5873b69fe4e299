// Package catalog persists the versioned imaging catalog.
//
// Every level of the hierarchy (version, collection, patient, study, series,
// instance) is a row of a single entity arena addressed by surrogate id.
// Parent/child relations are rows of a link table, so a revised entity can be
// cloned by copying its links while the retired original keeps its own. Rows
// are never mutated once retired; PruneVersion is the only path that deletes.
//
// SQLite (WAL, busy timeout) is the default backend; PostgreSQL is selected
// through catalog.driver. Reconciliation mutates the catalog through Tx so
// that a failed subtree leaves no partial state behind.
package catalog
