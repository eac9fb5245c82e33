package repo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/strata/pkg/object"
)

func logIDs(t *testing.T, r *Repo, opts LogOptions) []object.ID {
	t.Helper()
	var out []object.ID
	for e, err := range r.Log(context.Background(), opts) {
		require.NoError(t, err)
		assert.Equal(t, e.ID, e.Commit.ID)
		out = append(out, e.ID)
	}
	return out
}

// history builds three commits touching roads, rivers and roads again.
func history(t *testing.T) (*Repo, []*object.Commit) {
	t.Helper()
	r := newTestRepo(t)
	insert(t, r, "roads/r1", "name: A1\n")
	c1 := commitAll(t, r, "roads")
	insert(t, r, "rivers/v1", "name: Thames\n")
	c2 := commitAll(t, r, "rivers")
	insert(t, r, "roads/r2", "name: B2\n")
	c3 := commitAll(t, r, "more roads")
	return r, []*object.Commit{c1, c2, c3}
}

func TestLogEmptyHistory(t *testing.T) {
	r := newTestRepo(t)
	assert.Empty(t, logIDs(t, r, LogOptions{}))
}

func TestLogFilters(t *testing.T) {
	r, cs := history(t)
	c1, c2, c3 := cs[0], cs[1], cs[2]
	at := func(c *object.Commit) time.Time { return time.UnixMilli(c.Timestamp) }

	tests := []struct {
		name string
		opts LogOptions
		want []object.ID
	}{
		{"all", LogOptions{}, []object.ID{c3.ID, c2.ID, c1.ID}},
		{"limit", LogOptions{Limit: 2}, []object.ID{c3.ID, c2.ID}},
		{"until", LogOptions{Until: c2.ID}, []object.ID{c2.ID, c1.ID}},
		{"since", LogOptions{Since: c1.ID}, []object.ID{c3.ID, c2.ID}},
		{"min time", LogOptions{MinTime: at(c2)}, []object.ID{c3.ID, c2.ID}},
		{"max time", LogOptions{MaxTime: at(c2)}, []object.ID{c2.ID, c1.ID}},
		{"time window", LogOptions{MinTime: at(c2), MaxTime: at(c2)}, []object.ID{c2.ID}},
		{"path", LogOptions{Paths: []string{"rivers"}}, []object.ID{c2.ID}},
		{"paths", LogOptions{Paths: []string{"roads/r1", "rivers/v1"}}, []object.ID{c2.ID, c1.ID}},
		{"path and limit", LogOptions{Paths: []string{"roads"}, Limit: 1}, []object.ID{c3.ID}},
		{"missing path", LogOptions{Paths: []string{"lakes"}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, logIDs(t, r, tt.opts))
		})
	}
}

func TestLogCanceled(t *testing.T) {
	r, _ := history(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var got error
	for _, err := range r.Log(ctx, LogOptions{}) {
		got = err
	}
	assert.ErrorIs(t, got, context.Canceled)
}

func TestLogEarlyStop(t *testing.T) {
	r, cs := history(t)
	for e, err := range r.Log(context.Background(), LogOptions{}) {
		require.NoError(t, err)
		assert.Equal(t, cs[2].ID, e.ID)
		break
	}
}
