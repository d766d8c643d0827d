package vecdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecdb-io/vecdb/distance"
	"github.com/vecdb-io/vecdb/wal"
)

func TestWALRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	db := newDurableTestDB(t, dir)

	keep, err := db.CreateCollection(ctx, "keep", 3, distance.MetricDot)
	require.NoError(t, err)
	gone, err := db.CreateCollection(ctx, "gone", 2, distance.MetricCosine)
	require.NoError(t, err)

	require.NoError(t, keep.Upsert(ctx, "a", []float32{1, 0, 0}, map[string]string{"tag": "first"}))
	require.NoError(t, keep.Upsert(ctx, "b", []float32{1, 0, 0}, nil))
	require.NoError(t, keep.Upsert(ctx, "c", []float32{0, 0, 1}, nil))
	require.NoError(t, keep.Delete(ctx, "c"))
	require.NoError(t, gone.Upsert(ctx, "g", []float32{3, 4}, nil))
	require.NoError(t, db.DropCollection(ctx, "gone"))

	require.NoError(t, db.Close())

	restored := newDurableTestDB(t, dir, WithRestore(true))

	infos := restored.Collections()
	require.Len(t, infos, 1)
	assert.Equal(t, "keep", infos[0].Name)
	assert.Equal(t, 2, infos[0].Count)

	c, err := restored.Collection("keep")
	require.NoError(t, err)

	e, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 0, 0}, e.Vector)
	assert.Equal(t, "first", e.Metadata["tag"])

	_, ok = c.Get("c")
	assert.False(t, ok)

	// Insertion-order tie-breaking survives the round trip.
	results, err := c.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, resultIDs(results))

	// The restored database keeps logging; a second restart sees new writes.
	require.NoError(t, c.Upsert(ctx, "d", []float32{0, 1, 0}, nil))
	require.NoError(t, restored.Close())

	again := newDurableTestDB(t, dir, WithRestore(true))
	c2, err := again.Collection("keep")
	require.NoError(t, err)
	assert.Equal(t, 3, c2.Size())
}

func TestCosineRestoreNormalizes(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	db := newDurableTestDB(t, dir)
	c, err := db.CreateCollection(ctx, "docs", 2, distance.MetricCosine)
	require.NoError(t, err)
	require.NoError(t, c.Upsert(ctx, "a", []float32{3, 4}, nil))
	require.NoError(t, db.Close())

	restored := newDurableTestDB(t, dir, WithRestore(true))
	rc, err := restored.Collection("docs")
	require.NoError(t, err)

	before, _ := c.Get("a")
	after, ok := rc.Get("a")
	require.True(t, ok)
	assert.Equal(t, before.Vector, after.Vector)
	assert.InDelta(t, 0.6, after.Vector[0], 1e-6)
}

func TestStartWithoutRestoreIsEmpty(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	db := newDurableTestDB(t, dir)
	_, err := db.CreateCollection(ctx, "docs", 2, distance.MetricDot)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Without the restore flag the database starts empty but keeps the log.
	fresh := newDurableTestDB(t, dir)
	assert.Empty(t, fresh.Collections())

	_, err = fresh.CreateCollection(ctx, "other", 2, distance.MetricDot)
	require.NoError(t, err)
	require.NoError(t, fresh.Close())

	// A restore now replays the full history, which contains a duplicate
	// create only if the same name was reused; here both creates apply.
	restored := newDurableTestDB(t, dir, WithRestore(true))
	assert.Len(t, restored.Collections(), 2)
}

func TestRestoreTornTail(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	db := newDurableTestDB(t, dir)
	c, err := db.CreateCollection(ctx, "docs", 2, distance.MetricDot)
	require.NoError(t, err)
	require.NoError(t, c.Upsert(ctx, "a", []float32{1, 0}, nil))
	require.NoError(t, c.Upsert(ctx, "b", []float32{0, 1}, nil))
	require.NoError(t, db.Close())

	// Simulate a crash mid-append by chopping bytes off the last record.
	walPath := filepath.Join(dir, wal.FileName)
	st, err := os.Stat(walPath)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(walPath, st.Size()-5))

	restored := newDurableTestDB(t, dir, WithRestore(true))
	rc, err := restored.Collection("docs")
	require.NoError(t, err)

	// The torn record is gone; everything before it survived.
	_, ok := rc.Get("a")
	assert.True(t, ok)
	_, ok = rc.Get("b")
	assert.False(t, ok)
}

func TestRestoreCorruptLog(t *testing.T) {
	dir := t.TempDir()

	// Hand-craft a log whose entries are well-formed but semantically
	// impossible: an upsert into a collection that was never created.
	w, err := wal.New(func(o *wal.Options) {
		o.Path = dir
		o.DurabilityMode = wal.DurabilitySync
	})
	require.NoError(t, err)
	require.NoError(t, w.Append(&wal.Entry{
		Type:       wal.OpUpsert,
		Collection: "ghost",
		ID:         "a",
		Vector:     []float32{1, 2},
	}))
	require.NoError(t, w.Close())

	_, err = New(WithLogger(NoopLogger()), WithWAL(dir), WithRestore(true))
	assert.ErrorIs(t, err, ErrCorruptLog)
}

func TestRestoreCorruptLogBadMetric(t *testing.T) {
	dir := t.TempDir()

	w, err := wal.New(func(o *wal.Options) {
		o.Path = dir
		o.DurabilityMode = wal.DurabilitySync
	})
	require.NoError(t, err)
	require.NoError(t, w.Append(&wal.Entry{
		Type:       wal.OpCreateCollection,
		Collection: "docs",
		Dimension:  2,
		Metric:     "manhattan",
	}))
	require.NoError(t, w.Close())

	_, err = New(WithLogger(NoopLogger()), WithWAL(dir), WithRestore(true))
	assert.ErrorIs(t, err, ErrCorruptLog)
}

func TestRestoreEmptyLog(t *testing.T) {
	db := newDurableTestDB(t, t.TempDir(), WithRestore(true))
	assert.Empty(t, db.Collections())
}
