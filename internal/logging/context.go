package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID identifies one reconciliation run.
	FieldRunID = "run_id"
	// FieldVersion is the archive version being reconciled.
	FieldVersion = "version"
	// FieldCollection is the collection identifier owning the current subtree.
	FieldCollection = "collection"
	// FieldPartition names the unit of work a coordinator worker owns.
	FieldPartition = "partition"
	// FieldLevel is the catalog level (collection, patient, study, series).
	FieldLevel = "level"
	// FieldIdentifier is the natural key of the entity being processed.
	FieldIdentifier = "identifier"
	// FieldChain is the identifier chain from collection down to the failing entity.
	FieldChain = "chain"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step to an operator.
	FieldErrorHint = "error_hint"
	// FieldImpact states the user-facing consequence of a warning.
	FieldImpact = "impact"
)

type contextKey string

const (
	runIDKey      contextKey = "run_id"
	collectionKey contextKey = "collection"
	partitionKey  contextKey = "partition"
)

// WithRunID annotates context with the run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// WithCollection annotates context with the collection being processed.
func WithCollection(ctx context.Context, collection string) context.Context {
	if collection == "" {
		return ctx
	}
	return context.WithValue(ctx, collectionKey, collection)
}

// WithPartition annotates context with the coordinator partition label.
func WithPartition(ctx context.Context, partition string) context.Context {
	if partition == "" {
		return ctx
	}
	return context.WithValue(ctx, partitionKey, partition)
}

func stringFromContext(ctx context.Context, key contextKey) (string, bool) {
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := stringFromContext(ctx, runIDKey); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if collection, ok := stringFromContext(ctx, collectionKey); ok {
		fields = append(fields, slog.String(FieldCollection, collection))
	}
	if partition, ok := stringFromContext(ctx, partitionKey); ok {
		fields = append(fields, slog.String(FieldPartition, partition))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
