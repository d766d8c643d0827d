package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	t.Run("PutGet", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "a/b", []byte("hello")))

		data, err := store.Get(ctx, "a/b")
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), data)

		// Mutating the returned slice must not affect the stored blob.
		data[0] = 'X'
		data2, err := store.Get(ctx, "a/b")
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), data2)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "a/c", []byte("x")))
		require.NoError(t, store.Put(ctx, "z", []byte("y")))

		names, err := store.List(ctx, "a/")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a/b", "a/c"}, names)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "a/b"))
		_, err := store.Get(ctx, "a/b")
		assert.ErrorIs(t, err, ErrNotFound)

		// Deleting a missing blob is not an error.
		assert.NoError(t, store.Delete(ctx, "a/b"))
	})
}
