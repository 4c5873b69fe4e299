// Package preflight provides readiness checks for the catalog store, the
// directories a run writes to, and the configured sources.
//
// These checks run in two contexts:
//   - "imgcat preflight" runs RunAll and prints every result.
//   - "imgcat run" calls RunAll before reconciling and refuses to start when
//     any check fails, so a run never dies halfway on a missing directory.
//
// Directory checks for the export sink only apply to the directory sink.
package preflight
