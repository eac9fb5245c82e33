package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObjectRead("tree", true)
		c.ObjectWrite("blob", true, 10)
		c.TreeNormalized()
		c.TreeSplit()
		c.RefUpdate(true)
		c.CommitCreated(time.Now())
		c.ObjectsPromoted(3)
	})
}

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.ObjectWrite("blob", true, 100)
	c.ObjectWrite("blob", false, 100)
	c.ObjectWrite("tree", true, 20)
	c.ObjectRead("tree", false)
	c.RefUpdate(false)
	c.RefUpdate(true)
	c.RefUpdate(true)
	c.CommitCreated(time.Now())

	assert.Equal(t, 1.0, testutil.ToFloat64(c.objectWrites.WithLabelValues("blob", "new")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.objectWrites.WithLabelValues("blob", "existing")))
	assert.Equal(t, 120.0, testutil.ToFloat64(c.objectBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.objectReads.WithLabelValues("tree", "miss")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.refUpdates.WithLabelValues("conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.commits))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["strata_commits_total"])
	assert.True(t, names["strata_ref_updates_total"])
}

func TestNewWithNilRegisterer(t *testing.T) {
	c := New(nil)
	c.TreeSplit()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.treeSplits))
}
