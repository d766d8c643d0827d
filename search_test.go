package vecdb

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecdb-io/vecdb/distance"
)

func resultIDs(results []SearchResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids
}

func TestSearchDot(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	c, err := db.CreateCollection(ctx, "docs", 3, distance.MetricDot)
	require.NoError(t, err)

	require.NoError(t, c.Upsert(ctx, "x", []float32{1, 0, 0}, map[string]string{"axis": "x"}))
	require.NoError(t, c.Upsert(ctx, "y", []float32{0, 2, 0}, nil))
	require.NoError(t, c.Upsert(ctx, "z", []float32{0, 0, 3}, nil))

	results, err := c.Search(ctx, []float32{0, 1, 1}, 2)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, []string{"z", "y"}, resultIDs(results))
	assert.InDelta(t, 3.0, results[0].Score, 1e-6)
	assert.InDelta(t, 2.0, results[1].Score, 1e-6)
}

func TestSearchEuclidean(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	c, err := db.CreateCollection(ctx, "docs", 2, distance.MetricEuclidean)
	require.NoError(t, err)

	require.NoError(t, c.Upsert(ctx, "near", []float32{1, 1}, nil))
	require.NoError(t, c.Upsert(ctx, "far", []float32{10, 10}, nil))
	require.NoError(t, c.Upsert(ctx, "exact", []float32{0, 0}, nil))

	results, err := c.Search(ctx, []float32{0, 0}, 3)
	require.NoError(t, err)

	// Lower squared distance ranks first.
	assert.Equal(t, []string{"exact", "near", "far"}, resultIDs(results))
	assert.InDelta(t, 0.0, results[0].Score, 1e-6)
	assert.InDelta(t, 2.0, results[1].Score, 1e-6)
	assert.InDelta(t, 200.0, results[2].Score, 1e-6)
}

func TestSearchCosine(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	c, err := db.CreateCollection(ctx, "docs", 2, distance.MetricCosine)
	require.NoError(t, err)

	// Same direction, wildly different magnitudes.
	require.NoError(t, c.Upsert(ctx, "same-dir", []float32{100, 0}, nil))
	require.NoError(t, c.Upsert(ctx, "orthogonal", []float32{0, 1}, nil))
	require.NoError(t, c.Upsert(ctx, "opposite", []float32{-1, 0}, nil))

	results, err := c.Search(ctx, []float32{2, 0}, 3)
	require.NoError(t, err)

	assert.Equal(t, []string{"same-dir", "orthogonal", "opposite"}, resultIDs(results))
	// Self-similarity is 1.0 regardless of magnitude.
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.InDelta(t, 0.0, results[1].Score, 1e-6)
	assert.InDelta(t, -1.0, results[2].Score, 1e-6)

	_, err = c.Search(ctx, []float32{0, 0}, 1)
	assert.ErrorIs(t, err, ErrZeroVector)
}

func TestSearchTieBreaking(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	c, err := db.CreateCollection(ctx, "c1", 3, distance.MetricDot)
	require.NoError(t, err)

	// Identical vectors score identically; the earlier insertion wins.
	require.NoError(t, c.Upsert(ctx, "a", []float32{1, 0, 0}, nil))
	require.NoError(t, c.Upsert(ctx, "b", []float32{1, 0, 0}, nil))

	results, err := c.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, resultIDs(results))

	results, err = c.Search(ctx, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, resultIDs(results))

	// Re-upserting keeps the original insertion position.
	require.NoError(t, c.Upsert(ctx, "a", []float32{1, 0, 0}, map[string]string{"v": "2"}))

	results, err = c.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, resultIDs(results))
}

func TestSearchEdgeCases(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	c, err := db.CreateCollection(ctx, "docs", 2, distance.MetricDot)
	require.NoError(t, err)

	t.Run("EmptyCollection", func(t *testing.T) {
		results, err := c.Search(ctx, []float32{1, 0}, 5)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("InvalidK", func(t *testing.T) {
		_, err := c.Search(ctx, []float32{1, 0}, 0)
		assert.ErrorIs(t, err, ErrInvalidK)

		_, err = c.Search(ctx, []float32{1, 0}, -3)
		assert.ErrorIs(t, err, ErrInvalidK)
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		_, err := c.Search(ctx, []float32{1, 0, 0}, 1)

		var dimErr *ErrDimensionMismatch
		require.ErrorAs(t, err, &dimErr)
		assert.Equal(t, 2, dimErr.Expected)
		assert.Equal(t, 3, dimErr.Actual)
	})

	t.Run("KExceedsSize", func(t *testing.T) {
		require.NoError(t, c.Upsert(ctx, "a", []float32{1, 0}, nil))
		require.NoError(t, c.Upsert(ctx, "b", []float32{0, 1}, nil))

		results, err := c.Search(ctx, []float32{1, 1}, 100)
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("MetadataCopied", func(t *testing.T) {
		require.NoError(t, c.Upsert(ctx, "m", []float32{5, 5}, map[string]string{"k": "v"}))

		results, err := c.Search(ctx, []float32{1, 1}, 1)
		require.NoError(t, err)
		require.Equal(t, "m", results[0].ID)

		results[0].Metadata["k"] = "mutated"

		e, ok := c.Get("m")
		require.True(t, ok)
		assert.Equal(t, "v", e.Metadata["k"])
	})
}

func TestSearchLargeCollection(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	c, err := db.CreateCollection(ctx, "docs", 1, distance.MetricDot)
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		require.NoError(t, c.Upsert(ctx, fmt.Sprintf("v%04d", i), []float32{float32(i)}, nil))
	}

	results, err := c.Search(ctx, []float32{1}, 3)
	require.NoError(t, err)

	assert.Equal(t, []string{"v0999", "v0998", "v0997"}, resultIDs(results))
}
