// Package source adapts upstream sources of truth to the reconciliation
// engine.
//
// Each source implements Adapter: list the children of a scope and report the
// source's digest of a scope. Three variants exist, selected by the kind of a
// [[sources]] entry: a remote catalog service over HTTP, a YAML manifest
// snapshot, and a completed version of the catalog itself.
//
// Set combines the adapters in configuration order. It honours per-collection
// skip vectors, retries transient failures with exponential backoff, and
// rejects listings that name the same child twice.
package source
