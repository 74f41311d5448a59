package vectorstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "analyst-backend/pkg/errors"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "vectors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_SearchRanksByCosineSimilarity(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	require.NoError(t, store.Upsert(ctx, "aligned", "same direction", []float32{1, 0}))
	require.NoError(t, store.Upsert(ctx, "diagonal", "partly aligned", []float32{1, 1}))
	require.NoError(t, store.Upsert(ctx, "orthogonal", "unrelated", []float32{0, 1}))

	matches, err := store.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, "aligned", matches[0].ID)
	assert.Equal(t, "diagonal", matches[1].ID)
	assert.Equal(t, "orthogonal", matches[2].ID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	assert.InDelta(t, 0.0, matches[2].Score, 1e-6)
}

func TestStore_SearchHonorsLimit(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	require.NoError(t, store.Upsert(ctx, "a", "a", []float32{1, 0}))
	require.NoError(t, store.Upsert(ctx, "b", "b", []float32{0.9, 0.1}))
	require.NoError(t, store.Upsert(ctx, "c", "c", []float32{0.8, 0.2}))

	matches, err := store.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestStore_UpsertReplacesExistingChunk(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	require.NoError(t, store.Upsert(ctx, "chunk", "old text", []float32{0, 1}))
	require.NoError(t, store.Upsert(ctx, "chunk", "new text", []float32{1, 0}))

	matches, err := store.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "new text", matches[0].Text)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
}

func TestStore_UpsertValidation(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	assert.True(t, pkgerrors.IsValidation(store.Upsert(ctx, "", "text", []float32{1})))
	assert.True(t, pkgerrors.IsValidation(store.Upsert(ctx, "id", "text", nil)))
}

func TestStore_SearchSkipsDegenerateVectors(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	require.NoError(t, store.Upsert(ctx, "zero", "zero vector", []float32{0, 0}))
	require.NoError(t, store.Upsert(ctx, "mismatched", "wrong width", []float32{1, 0, 0}))
	require.NoError(t, store.Upsert(ctx, "usable", "fine", []float32{1, 0}))

	matches, err := store.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "usable", matches[0].ID)
}
