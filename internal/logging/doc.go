// Package logging assembles structured slog loggers and formatting helpers used
// across imgcat.
//
// It owns the configurable console/JSON handlers, the per-run log file that
// tags every record with the run identifier, and context helpers so workers can
// tag log lines with the collection and partition they own. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
