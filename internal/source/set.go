package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"imgcat/internal/catalog"
	"imgcat/internal/logging"
	"imgcat/internal/metrics"
)

// RetryPolicy bounds retries of transient adapter failures.
type RetryPolicy struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
}

// Set binds the ordered adapters of a run. The position of an adapter is its
// index in every hash and flag vector.
type Set struct {
	adapters []Adapter
	policy   RetryPolicy
	logger   *slog.Logger
}

// NewSet wraps adapters in vector order.
func NewSet(adapters []Adapter, policy RetryPolicy, logger *slog.Logger) *Set {
	if policy.Attempts <= 0 {
		policy.Attempts = 1
	}
	return &Set{
		adapters: adapters,
		policy:   policy,
		logger:   logging.NewComponentLogger(logger, "sources"),
	}
}

// Len returns the number of sources.
func (s *Set) Len() int {
	return len(s.adapters)
}

// Names returns the adapter names in vector order.
func (s *Set) Names() []string {
	names := make([]string, len(s.adapters))
	for i, a := range s.adapters {
		names[i] = a.Name()
	}
	return names
}

// Adapters returns the adapters in vector order.
func (s *Set) Adapters() []Adapter {
	return append([]Adapter(nil), s.adapters...)
}

// ListChildren merges every source's children of scope. Below the version
// level sources skipped for the scope's collection are not called. At the
// version level each source is asked once and its report is dropped for the
// collections that skip it. Children reported by no remaining source are
// omitted.
func (s *Set) ListChildren(ctx context.Context, scope Scope, skip SkipFunc) (Listing, error) {
	var callSkip []bool
	if scope.Level != catalog.LevelVersion {
		callSkip = skip(scope.Identifier())
	}

	listing := make(Listing)
	for i, adapter := range s.adapters {
		if Skipped(callSkip, i) {
			continue
		}
		children, err := call(ctx, s, adapter.Name(), "list", scope, func() ([]Child, error) {
			return adapter.ListChildren(ctx, scope)
		})
		if err != nil {
			return nil, err
		}

		seen := make(map[string]struct{}, len(children))
		for _, child := range children {
			if _, dup := seen[child.Identifier]; dup {
				return nil, fmt.Errorf("%s listed %q twice under %s: %w", adapter.Name(), child.Identifier, scope, ErrDuplicateIdentifier)
			}
			seen[child.Identifier] = struct{}{}
			if Skipped(skip(child.Identifier), i) {
				continue
			}
			rep, ok := listing[child.Identifier]
			if !ok {
				rep = &Reported{
					Identifier: child.Identifier,
					Hashes:     make([]string, len(s.adapters)),
					Sources:    make([]bool, len(s.adapters)),
				}
				listing[child.Identifier] = rep
			}
			rep.Hashes[i] = child.Hash
			rep.Sources[i] = true
			if rep.URI == "" {
				rep.URI = child.URI
			}
		}
	}
	return listing, nil
}

// FetchHashes asks every non-skipped source for its digest of the entity at
// scope. Skipped and absent sources yield "".
func (s *Set) FetchHashes(ctx context.Context, scope Scope, skip []bool) ([]string, error) {
	hashes := make([]string, len(s.adapters))
	for i, adapter := range s.adapters {
		if Skipped(skip, i) {
			continue
		}
		type result struct {
			hash    string
			present bool
		}
		res, err := call(ctx, s, adapter.Name(), "hash", scope, func() (result, error) {
			h, ok, err := adapter.FetchHash(ctx, scope)
			return result{hash: h, present: ok}, err
		})
		if err != nil {
			return nil, err
		}
		if res.present {
			hashes[i] = res.hash
		}
	}
	return hashes, nil
}

// call runs fn with bounded exponential backoff. Only errors wrapping
// ErrTransient are retried.
func call[T any](ctx context.Context, s *Set, name, operation string, scope Scope, fn func() (T, error)) (T, error) {
	start := time.Now()
	defer func() {
		metrics.SourceLatency.WithLabelValues(name, operation).Observe(time.Since(start).Seconds())
	}()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.policy.Initial
	if s.policy.Max > 0 {
		b.MaxInterval = s.policy.Max
	}

	value, err := backoff.Retry(ctx, func() (T, error) {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		if errors.Is(err, ErrTransient) {
			metrics.SourceRequests.WithLabelValues(name, operation, metrics.OutcomeTransient).Inc()
			return v, err
		}
		return v, backoff.Permanent(err)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(s.policy.Attempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			logging.WarnWithContext(s.logger, "source call failed; retrying", "source_retry",
				logging.String("source", name),
				logging.String("operation", operation),
				logging.String("scope", scope.String()),
				logging.Duration("retry_in", next),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check source availability and credentials"),
			)
		}),
	)
	if err != nil {
		metrics.SourceRequests.WithLabelValues(name, operation, metrics.OutcomeError).Inc()
		var zero T
		return zero, fmt.Errorf("%s %s %s: %w", name, operation, scope, err)
	}
	metrics.SourceRequests.WithLabelValues(name, operation, metrics.OutcomeOK).Inc()
	return value, nil
}
