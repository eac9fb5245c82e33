// Package metrics exposes Prometheus instrumentation for the object store,
// hash tree, refs and commit pipeline.
//
// Every method is safe to call on a nil *Collector, so components take an
// optional collector without guarding each call site.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "strata"

// Collector groups the counters and histograms recorded by strata.
type Collector struct {
	objectReads     *prometheus.CounterVec
	objectWrites    *prometheus.CounterVec
	objectBytes     prometheus.Counter
	treeNormalize   prometheus.Counter
	treeSplits      prometheus.Counter
	refUpdates      *prometheus.CounterVec
	commits         prometheus.Counter
	commitDuration  prometheus.Histogram
	objectsPromoted prometheus.Counter
}

// New registers a Collector's metrics with reg. A nil reg registers nothing
// but still returns a working collector, which is what tests use.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		objectReads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "object_reads_total",
			Help:      "Objects read from the object store, by type and result.",
		}, []string{"type", "result"}),
		objectWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "object_writes_total",
			Help:      "Object puts, by type and whether the object was new.",
		}, []string{"type", "result"}),
		objectBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "object_written_bytes_total",
			Help:      "Uncompressed envelope bytes written for new objects.",
		}),
		treeNormalize: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tree_normalizations_total",
			Help:      "Hash tree nodes normalized.",
		}),
		treeSplits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tree_splits_total",
			Help:      "Leaf nodes that overflowed into buckets.",
		}),
		refUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ref_updates_total",
			Help:      "Ref compare-and-swap attempts, by result.",
		}, []string{"result"}),
		commits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Commits created.",
		}),
		commitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "commit_duration_seconds",
			Help:      "Time spent building and recording a commit.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		objectsPromoted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "objects_promoted_total",
			Help:      "Objects copied from the staging overlay into the repository store.",
		}),
	}
}

// ObjectRead records a read of an object of the given type. found is false
// for misses.
func (c *Collector) ObjectRead(objType string, found bool) {
	if c == nil {
		return
	}
	result := "hit"
	if !found {
		result = "miss"
	}
	c.objectReads.WithLabelValues(objType, result).Inc()
}

// ObjectWrite records a put. size is only counted for new objects.
func (c *Collector) ObjectWrite(objType string, created bool, size int) {
	if c == nil {
		return
	}
	result := "existing"
	if created {
		result = "new"
		c.objectBytes.Add(float64(size))
	}
	c.objectWrites.WithLabelValues(objType, result).Inc()
}

func (c *Collector) TreeNormalized() {
	if c == nil {
		return
	}
	c.treeNormalize.Inc()
}

func (c *Collector) TreeSplit() {
	if c == nil {
		return
	}
	c.treeSplits.Inc()
}

// RefUpdate records a ref CAS attempt. conflict marks a failed precondition.
func (c *Collector) RefUpdate(conflict bool) {
	if c == nil {
		return
	}
	result := "ok"
	if conflict {
		result = "conflict"
	}
	c.refUpdates.WithLabelValues(result).Inc()
}

// CommitCreated records a successful commit started at start.
func (c *Collector) CommitCreated(start time.Time) {
	if c == nil {
		return
	}
	c.commits.Inc()
	c.commitDuration.Observe(time.Since(start).Seconds())
}

func (c *Collector) ObjectsPromoted(n int) {
	if c == nil {
		return
	}
	c.objectsPromoted.Add(float64(n))
}
