// Package export publishes the index of a finished catalog version as JSON
// objects, one per entity above the instance level plus one per version.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"imgcat/internal/catalog"
	"imgcat/internal/config"
	"imgcat/internal/logging"
	"imgcat/internal/metrics"
	"imgcat/internal/reconcile"
)

// ErrVersionNotDone is returned when exporting a version that is still being
// reconciled.
var ErrVersionNotDone = errors.New("export: version is not done")

// Object is the JSON body of one index object.
type Object struct {
	Level        string            `json:"level"`
	Identifier   string            `json:"identifier"`
	SurrogateID  string            `json:"surrogate_id"`
	Hash         string            `json:"hash"`
	SourceHashes map[string]string `json:"source_hashes,omitempty"`
	InitVersion  int               `json:"init_version"`
	RevVersion   int               `json:"rev_version"`
	Instances    int               `json:"instances"`
	Children     []ObjectChild     `json:"children"`
}

// ObjectChild references one child from its parent's object.
type ObjectChild struct {
	Identifier  string `json:"identifier"`
	SurrogateID string `json:"surrogate_id"`
	Hash        string `json:"hash"`
	// Object names the child's own index object; empty for instances.
	Object string `json:"object,omitempty"`
	URI    string `json:"uri,omitempty"`
}

// Summary counts the objects handled by one export.
type Summary struct {
	Written int64
	Skipped int64
}

// Exporter writes the index objects of a version to a sink.
type Exporter struct {
	store   *catalog.Store
	sink    Sink
	sources []string
	workers int
	logger  *slog.Logger

	written atomic.Int64
	skipped atomic.Int64
}

// New binds an exporter to store and sink.
func New(cfg *config.Config, store *catalog.Store, sink Sink, logger *slog.Logger) *Exporter {
	return &Exporter{
		store:   store,
		sink:    sink,
		sources: cfg.SourceNames(),
		workers: cfg.Run.Workers,
		logger:  logging.NewComponentLogger(logger, "export"),
	}
}

// VersionObject names the root object of version n.
func VersionObject(n int) string {
	return fmt.Sprintf("%d.idc", n)
}

// EntityObject names the object of the entity with surrogate id.
func EntityObject(id string) string {
	return id + ".idc"
}

// Export writes every missing object of version n. Children are written
// before their parent, so an existing object implies its whole subtree
// exists and the walk stops there.
func (x *Exporter) Export(ctx context.Context, n int) (Summary, error) {
	x.written.Store(0)
	x.skipped.Store(0)
	record, err := x.store.Version(ctx, n)
	if err != nil {
		return Summary{}, err
	}
	if !record.Done {
		return Summary{}, fmt.Errorf("version %d: %w", n, ErrVersionNotDone)
	}

	root := VersionObject(n)
	exists, err := x.sink.Exists(ctx, root)
	if err != nil {
		return x.summary(), err
	}
	if exists {
		x.skip(root)
		return x.summary(), nil
	}

	collections, err := x.store.Children(ctx, record.ID)
	if err != nil {
		return x.summary(), err
	}
	partitions := make([]reconcile.Partition, 0, len(collections))
	for _, coll := range collections {
		partitions = append(partitions, reconcile.Partition{
			Key: coll.Identifier,
			Run: func(ctx context.Context) error {
				return x.exportEntity(ctx, coll)
			},
		})
	}
	coord := reconcile.NewCoordinator("export", x.workers, nil, x.logger)
	if err := coord.Run(ctx, partitions); err != nil {
		return x.summary(), err
	}

	if err := x.put(ctx, root, record, collections); err != nil {
		return x.summary(), err
	}
	sum := x.summary()
	x.logger.Info("export complete",
		logging.Version(n),
		logging.String("sink", x.sink.Location()),
		logging.Int64("written", sum.Written),
		logging.Int64("skipped", sum.Skipped),
	)
	return sum, nil
}

func (x *Exporter) exportEntity(ctx context.Context, e *catalog.Entity) error {
	name := EntityObject(e.ID)
	exists, err := x.sink.Exists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		x.skip(name)
		return nil
	}
	children, err := x.store.Children(ctx, e.ID)
	if err != nil {
		return err
	}
	if e.Level != catalog.LevelSeries {
		for _, child := range children {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := x.exportEntity(ctx, child); err != nil {
				return err
			}
		}
	}
	return x.put(ctx, name, e, children)
}

func (x *Exporter) put(ctx context.Context, name string, e *catalog.Entity, children []*catalog.Entity) error {
	obj := Object{
		Level:       string(e.Level),
		Identifier:  e.Identifier,
		SurrogateID: e.ID,
		Hash:        e.CombinedHash(),
		InitVersion: e.InitVersion,
		RevVersion:  e.RevVersion,
		Instances:   e.Instances,
		Children:    make([]ObjectChild, 0, len(children)),
	}
	for i, h := range e.SourceHashes() {
		if h == "" || i >= len(x.sources) {
			continue
		}
		if obj.SourceHashes == nil {
			obj.SourceHashes = make(map[string]string)
		}
		obj.SourceHashes[x.sources[i]] = h
	}
	for _, c := range children {
		child := ObjectChild{
			Identifier:  c.Identifier,
			SurrogateID: c.ID,
			Hash:        c.CombinedHash(),
			URI:         c.ContentURI,
		}
		if c.Level != catalog.LevelInstance {
			child.Object = EntityObject(c.ID)
		}
		obj.Children = append(obj.Children, child)
	}

	data, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := x.sink.Put(ctx, name, data); err != nil {
		metrics.ObjectsExported.WithLabelValues(metrics.OutcomeError).Inc()
		return err
	}
	x.written.Add(1)
	metrics.ObjectsExported.WithLabelValues("written").Inc()
	return nil
}

func (x *Exporter) skip(name string) {
	x.skipped.Add(1)
	metrics.ObjectsExported.WithLabelValues("skipped").Inc()
	x.logger.Debug("object exists; skipping", logging.String("object", name))
}

func (x *Exporter) summary() Summary {
	return Summary{Written: x.written.Load(), Skipped: x.skipped.Load()}
}
