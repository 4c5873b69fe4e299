package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"imgcat/internal/catalog"
	"imgcat/internal/config"
	"imgcat/internal/hashtree"
	"imgcat/internal/journal"
	"imgcat/internal/logging"
	"imgcat/internal/metrics"
)

// hexShards are the surrogate id prefixes of the refresh partitions.
var hexShards = []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9", "a", "b", "c", "d", "e", "f"}

// refreshLevels run bottom-up so every parent sees refreshed children.
var refreshLevels = []catalog.Level{
	catalog.LevelSeries,
	catalog.LevelStudy,
	catalog.LevelPatient,
	catalog.LevelCollection,
	catalog.LevelVersion,
}

// RefreshResult counts the entities of one level visited by the refresh pass.
type RefreshResult struct {
	Level   catalog.Level
	Scanned int64
	Changed int64
}

// Journals opens the per-level journals of a refresh pass and discards them
// once the pass has covered every level.
type Journals interface {
	Open(name string) (journal.Journal, error)
	Remove(name string) error
}

// RefreshHashes recomputes the combined digest of every live, done entity
// from its linked children, one level at a time from series up to versions.
// Retired entities are history and keep their digests. Each level is split
// into sixteen shards by the first hex digit of the surrogate id and the
// shards run in parallel; shards already in the level's journal are skipped,
// so an interrupted pass resumes. Once every level is refreshed the journals
// are removed and the next pass starts from scratch. Only digests that
// changed are written, in transactions of at most batch_size entities.
func RefreshHashes(ctx context.Context, cfg *config.Config, store *catalog.Store, journals Journals, logger *slog.Logger) ([]RefreshResult, error) {
	logger = logging.NewComponentLogger(logger, "refresh")
	var results []RefreshResult
	for _, level := range refreshLevels {
		var jrnl journal.Journal
		if journals != nil {
			var err error
			if jrnl, err = journals.Open(journal.RefreshName(string(level))); err != nil {
				return results, err
			}
		}

		var scanned, changed atomic.Int64
		partitions := make([]Partition, 0, len(hexShards))
		for _, shard := range hexShards {
			partitions = append(partitions, Partition{
				Key: shard,
				Run: func(ctx context.Context) error {
					s, c, err := refreshShard(ctx, store, level, shard, cfg.Run.BatchSize)
					scanned.Add(s)
					changed.Add(c)
					return err
				},
			})
		}
		coord := NewCoordinator("refresh-"+string(level), cfg.Run.Workers, jrnl, logger)
		err := coord.Run(ctx, partitions)
		if jrnl != nil {
			if cerr := jrnl.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}

		res := RefreshResult{Level: level, Scanned: scanned.Load(), Changed: changed.Load()}
		results = append(results, res)
		metrics.HashesRefreshed.WithLabelValues(string(level)).Add(float64(res.Changed))
		logger.Info("refreshed level",
			logging.String(logging.FieldLevel, string(level)),
			logging.Int64("scanned", res.Scanned),
			logging.Int64("changed", res.Changed),
		)
		if err != nil {
			return results, fmt.Errorf("refresh %s: %w", level, err)
		}
	}
	if journals != nil {
		for _, level := range refreshLevels {
			if err := journals.Remove(journal.RefreshName(string(level))); err != nil {
				return results, fmt.Errorf("clear refresh journal of %s: %w", level, err)
			}
		}
		logger.Debug("refresh pass complete; journals cleared")
	}
	return results, nil
}

func refreshShard(ctx context.Context, store *catalog.Store, level catalog.Level, shard string, batchSize int) (int64, int64, error) {
	ids, err := store.EntityIDsByPrefix(ctx, level, shard)
	if err != nil {
		return 0, 0, err
	}
	if batchSize <= 0 {
		batchSize = len(ids)
	}
	var scanned, changed int64
	for start := 0; start < len(ids); start += batchSize {
		end := min(start+batchSize, len(ids))
		batch := ids[start:end]
		var batchChanged int64
		err := store.WithTx(ctx, func(tx *catalog.Tx) error {
			batchChanged = 0
			for _, id := range batch {
				e, err := tx.Entity(ctx, id)
				if err != nil {
					return err
				}
				if !e.Done || !e.Live() {
					continue
				}
				children, err := tx.Children(ctx, id)
				if err != nil {
					return err
				}
				digests := make([]string, 0, len(children))
				for _, c := range children {
					digests = append(digests, c.CombinedHash())
				}
				if combined := hashtree.Combine(digests); combined != e.CombinedHash() {
					if err := tx.SetCombinedHash(ctx, e, combined); err != nil {
						return err
					}
					batchChanged++
				}
			}
			return nil
		})
		if err != nil {
			return scanned, changed, err
		}
		scanned += int64(len(batch))
		changed += batchChanged
	}
	return scanned, changed, nil
}
