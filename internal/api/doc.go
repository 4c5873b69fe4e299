// Package api serves read-only catalog status over HTTP and defines the
// transport types shared with the CLI.
//
// # Routes
//
// GET /api/versions lists version records, newest first.
//
// GET /api/versions/{n} summarizes one version with per-level live and done
// counts.
//
// GET /metrics exposes the Prometheus registry.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Levels are exposed as lowercase strings and
// timestamps use RFC3339 with milliseconds.
package api
