package vecdb

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecdb-io/vecdb/distance"
)

func TestUpsert(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	c, err := db.CreateCollection(ctx, "docs", 3, distance.MetricDot)
	require.NoError(t, err)

	t.Run("InsertAndGet", func(t *testing.T) {
		require.NoError(t, c.Upsert(ctx, "a", []float32{1, 2, 3}, map[string]string{"lang": "en"}))

		e, ok := c.Get("a")
		require.True(t, ok)
		assert.Equal(t, []float32{1, 2, 3}, e.Vector)
		assert.Equal(t, map[string]string{"lang": "en"}, e.Metadata)
		assert.Equal(t, 1, c.Size())
	})

	t.Run("UpdateReplacesEverything", func(t *testing.T) {
		require.NoError(t, c.Upsert(ctx, "a", []float32{4, 5, 6}, map[string]string{"source": "web"}))

		e, ok := c.Get("a")
		require.True(t, ok)
		assert.Equal(t, []float32{4, 5, 6}, e.Vector)
		// Metadata is replaced wholesale, not merged.
		assert.Equal(t, map[string]string{"source": "web"}, e.Metadata)
		assert.Equal(t, 1, c.Size())
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		err := c.Upsert(ctx, "b", []float32{1, 2}, nil)

		var dimErr *ErrDimensionMismatch
		require.ErrorAs(t, err, &dimErr)
		assert.Equal(t, 3, dimErr.Expected)
		assert.Equal(t, 2, dimErr.Actual)
		assert.Equal(t, 1, c.Size())
	})

	t.Run("NilMetadata", func(t *testing.T) {
		require.NoError(t, c.Upsert(ctx, "c", []float32{0, 0, 1}, nil))

		e, ok := c.Get("c")
		require.True(t, ok)
		assert.Empty(t, e.Metadata)
	})

	t.Run("CallerMutationIsolation", func(t *testing.T) {
		vec := []float32{7, 8, 9}
		meta := map[string]string{"k": "v"}
		require.NoError(t, c.Upsert(ctx, "d", vec, meta))

		vec[0] = 99
		meta["k"] = "changed"

		e, ok := c.Get("d")
		require.True(t, ok)
		assert.Equal(t, float32(7), e.Vector[0])
		assert.Equal(t, "v", e.Metadata["k"])
	})
}

func TestCosineNormalization(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	c, err := db.CreateCollection(ctx, "docs", 2, distance.MetricCosine)
	require.NoError(t, err)

	require.NoError(t, c.Upsert(ctx, "a", []float32{3, 4}, nil))

	e, ok := c.Get("a")
	require.True(t, ok)
	assert.InDelta(t, 0.6, e.Vector[0], 1e-6)
	assert.InDelta(t, 0.8, e.Vector[1], 1e-6)

	norm := math.Sqrt(float64(e.Vector[0]*e.Vector[0] + e.Vector[1]*e.Vector[1]))
	assert.InDelta(t, 1.0, norm, 1e-6)

	err = c.Upsert(ctx, "zero", []float32{0, 0}, nil)
	assert.ErrorIs(t, err, ErrZeroVector)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	c, err := db.CreateCollection(ctx, "docs", 2, distance.MetricDot)
	require.NoError(t, err)
	require.NoError(t, c.Upsert(ctx, "a", []float32{1, 0}, nil))

	require.NoError(t, c.Delete(ctx, "a"))
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())

	// Deleting an absent id succeeds quietly.
	assert.NoError(t, c.Delete(ctx, "a"))
	assert.NoError(t, c.Delete(ctx, "never-existed"))
}

func TestBatchUpsert(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	c, err := db.CreateCollection(ctx, "docs", 2, distance.MetricDot)
	require.NoError(t, err)

	t.Run("Success", func(t *testing.T) {
		err := c.BatchUpsert(ctx, []Embedding{
			{ID: "a", Vector: []float32{1, 0}, Metadata: map[string]string{"n": "1"}},
			{ID: "b", Vector: []float32{0, 1}},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, c.Size())

		e, ok := c.Get("a")
		require.True(t, ok)
		assert.Equal(t, "1", e.Metadata["n"])
	})

	t.Run("AllOrNothing", func(t *testing.T) {
		err := c.BatchUpsert(ctx, []Embedding{
			{ID: "c", Vector: []float32{1, 1}},
			{ID: "bad", Vector: []float32{1}},
		})

		var dimErr *ErrDimensionMismatch
		require.ErrorAs(t, err, &dimErr)

		// Nothing from the failed batch was applied.
		_, ok := c.Get("c")
		assert.False(t, ok)
		assert.Equal(t, 2, c.Size())
	})

	t.Run("Empty", func(t *testing.T) {
		assert.NoError(t, c.BatchUpsert(ctx, nil))
	})
}

func TestGetMissing(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	c, err := db.CreateCollection(ctx, "docs", 2, distance.MetricDot)
	require.NoError(t, err)

	_, ok := c.Get("nope")
	assert.False(t, ok)
}
