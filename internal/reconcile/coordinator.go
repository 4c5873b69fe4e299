package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"imgcat/internal/journal"
	"imgcat/internal/logging"
	"imgcat/internal/metrics"
)

// Partition is an independent unit of work owned by exactly one worker.
type Partition struct {
	// Key identifies the partition in the journal.
	Key string
	Run func(ctx context.Context) error
}

// Coordinator drains partitions with a fixed pool of workers. Partitions
// found in the journal are skipped; completed partitions are appended to it.
type Coordinator struct {
	pass    string
	workers int
	journal journal.Journal
	logger  *slog.Logger
}

// NewCoordinator builds a coordinator for one pass. jrnl may be nil to run
// without resumption.
func NewCoordinator(pass string, workers int, jrnl journal.Journal, logger *slog.Logger) *Coordinator {
	if workers <= 0 {
		workers = 1
	}
	return &Coordinator{
		pass:    pass,
		workers: workers,
		journal: jrnl,
		logger:  logging.NewComponentLogger(logger, "coordinator"),
	}
}

// Run processes every partition and returns the joined partition failures.
// A worker always finishes its in-flight partition; cancellation stops
// dispatch of new ones. A journal write failure aborts the pass.
func (c *Coordinator) Run(ctx context.Context, partitions []Partition) error {
	work := make(chan Partition)
	g, gctx := errgroup.WithContext(ctx)

	var (
		mu     sync.Mutex
		failed []error
	)

	g.Go(func() error {
		// Closing the channel is the sentinel that lets workers exit.
		defer close(work)
		for _, p := range partitions {
			if c.journal != nil && c.journal.Contains(p.Key) {
				metrics.PartitionsSkipped.WithLabelValues(c.pass).Inc()
				c.logger.Info("partition already complete; skipping",
					logging.String(logging.FieldPartition, p.Key))
				continue
			}
			if gctx.Err() != nil {
				return nil
			}
			select {
			case work <- p:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	for w := 0; w < c.workers; w++ {
		g.Go(func() error {
			for p := range work {
				if ctx.Err() != nil {
					continue
				}
				pctx := logging.WithPartition(ctx, p.Key)
				start := time.Now()
				err := p.Run(pctx)
				metrics.PartitionDuration.WithLabelValues(c.pass).Observe(time.Since(start).Seconds())
				if err != nil {
					mu.Lock()
					failed = append(failed, fmt.Errorf("partition %s: %w", p.Key, err))
					mu.Unlock()
					logging.WarnWithContext(c.logger, "partition failed", "partition_failed",
						logging.String(logging.FieldPartition, p.Key),
						logging.Error(err),
						logging.String(logging.FieldImpact, "partition left incomplete; other partitions continue"),
					)
					continue
				}
				if c.journal != nil {
					if err := c.journal.Append(p.Key); err != nil {
						return fmt.Errorf("journal partition %s: %w", p.Key, err)
					}
				}
				c.logger.Info("partition complete",
					logging.String(logging.FieldPartition, p.Key),
					logging.Duration("elapsed", time.Since(start)))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		failed = append(failed, err)
	}
	return errors.Join(failed...)
}
