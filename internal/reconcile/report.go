package reconcile

import (
	"sync"

	"imgcat/internal/catalog"
	"imgcat/internal/metrics"
)

// Counts tallies classification outcomes for one level.
type Counts struct {
	New       int
	Revised   int
	Retired   int
	Unchanged int
	Failed    int
}

// LevelCounts pairs a level with its tallies.
type LevelCounts struct {
	Level catalog.Level
	Counts
}

// Failure describes a failed subtree for the run summary.
type Failure struct {
	Level catalog.Level `json:"level"`
	Chain []string      `json:"chain"`
	Kind  string        `json:"kind"`
	Err   string        `json:"error"`
}

// Report accumulates the outcome of a run. It is safe for concurrent use by
// coordinator workers.
type Report struct {
	mu       sync.Mutex
	counts   map[catalog.Level]*Counts
	failures []Failure
}

// NewReport returns an empty report.
func NewReport() *Report {
	return &Report{counts: make(map[catalog.Level]*Counts)}
}

func (r *Report) level(l catalog.Level) *Counts {
	c, ok := r.counts[l]
	if !ok {
		c = &Counts{}
		r.counts[l] = c
	}
	return c
}

func (r *Report) classified(l catalog.Level, delta Counts) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.level(l)
	c.New += delta.New
	c.Revised += delta.Revised
	c.Retired += delta.Retired
	c.Unchanged += delta.Unchanged

	lvl := string(l)
	metrics.Entities.WithLabelValues(lvl, "new").Add(float64(delta.New))
	metrics.Entities.WithLabelValues(lvl, "revised").Add(float64(delta.Revised))
	metrics.Entities.WithLabelValues(lvl, "retired").Add(float64(delta.Retired))
	metrics.Entities.WithLabelValues(lvl, "unchanged").Add(float64(delta.Unchanged))
}

func (r *Report) failed(err *SubtreeError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.level(err.Level).Failed++
	r.failures = append(r.failures, Failure{
		Level: err.Level,
		Chain: append([]string(nil), err.Chain...),
		Kind:  err.Kind(),
		Err:   err.Err.Error(),
	})
	metrics.BuildFailures.WithLabelValues(string(err.Level), err.Kind()).Inc()
}

// Levels returns tallies for every level below the version, coarsest first.
func (r *Report) Levels() []LevelCounts {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]LevelCounts, 0, len(catalog.Levels)-1)
	for _, l := range catalog.Levels[1:] {
		var c Counts
		if existing, ok := r.counts[l]; ok {
			c = *existing
		}
		out = append(out, LevelCounts{Level: l, Counts: c})
	}
	return out
}

// Level returns the tallies of one level.
func (r *Report) Level(l catalog.Level) Counts {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counts[l]; ok {
		return *c
	}
	return Counts{}
}

// Failures returns the failed subtrees in the order they were recorded.
func (r *Report) Failures() []Failure {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Failure(nil), r.failures...)
}
