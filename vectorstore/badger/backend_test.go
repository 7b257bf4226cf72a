package badger

import (
	"context"
	"testing"

	"github.com/poiesic/ragdesk/core"
	storagebadger "github.com/poiesic/ragdesk/storage/badger"
	"github.com/poiesic/ragdesk/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupBackend(t *testing.T) *Backend {
	t.Helper()
	db, err := storagebadger.OpenBackend("", true)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	b, err := New(db)
	require.NoError(t, err)
	return b
}

func chunk(docID string, i int, vector ...float32) core.Chunk {
	return core.Chunk{
		ID:         core.ChunkID(docID, i),
		DocumentID: docID,
		Index:      i,
		Text:       "text " + core.ChunkID(docID, i),
		Vector:     vector,
		Metadata:   map[string]string{core.MetaDocumentID: docID},
	}
}

func TestNewRequiresDB(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, vectorstore.ErrBackendRequired)
}

func TestCollections(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	ok, err := b.HasCollection(ctx, "workspace_a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.CreateCollection(ctx, "workspace_a"))
	require.NoError(t, b.CreateCollection(ctx, "workspace_a"))

	ok, err = b.HasCollection(ctx, "workspace_a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUpsertRequiresCollection(t *testing.T) {
	b := setupBackend(t)
	err := b.Upsert(context.Background(), "workspace_missing", []core.Chunk{chunk("d", 0, 1, 0)})
	assert.ErrorIs(t, err, vectorstore.ErrCollectionNotFound)
}

func TestQueryRanksByCosine(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)
	require.NoError(t, b.CreateCollection(ctx, "workspace_a"))
	require.NoError(t, b.Upsert(ctx, "workspace_a", []core.Chunk{
		chunk("d1", 0, 1, 0),
		chunk("d1", 1, 0, 1),
		chunk("d2", 0, 3, 3),
	}))

	matches, err := b.Query(ctx, "workspace_a", []float32{2, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "d1_0", matches[0].ID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	assert.Equal(t, "d2_0", matches[1].ID)
	assert.Equal(t, "text d1_0", matches[0].Text)
	assert.Equal(t, "d1", matches[0].Metadata[core.MetaDocumentID])
}

func TestQueryTiesOrderedByID(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)
	require.NoError(t, b.CreateCollection(ctx, "workspace_a"))
	require.NoError(t, b.Upsert(ctx, "workspace_a", []core.Chunk{
		chunk("c", 0, 1, 1),
		chunk("a", 0, 1, 1),
		chunk("b", 0, 1, 1),
	}))

	matches, err := b.Query(ctx, "workspace_a", []float32{1, 1}, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, []string{"a_0", "b_0", "c_0"}, []string{matches[0].ID, matches[1].ID, matches[2].ID})
}

func TestQueryMissingCollection(t *testing.T) {
	b := setupBackend(t)
	_, err := b.Query(context.Background(), "workspace_none", []float32{1}, 3)
	assert.ErrorIs(t, err, vectorstore.ErrCollectionNotFound)
}

func TestDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)
	require.NoError(t, b.CreateCollection(ctx, "workspace_a"))
	require.NoError(t, b.Upsert(ctx, "workspace_a", []core.Chunk{chunk("d", 0, 1, 0)}))

	err := b.Upsert(ctx, "workspace_a", []core.Chunk{chunk("d", 1, 1, 0, 0)})
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)

	_, err = b.Query(ctx, "workspace_a", []float32{1, 0, 0}, 1)
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)

	err = b.Upsert(ctx, "workspace_a", []core.Chunk{chunk("d", 2)})
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)
}

func TestUpsertLargeBatch(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)
	require.NoError(t, b.CreateCollection(ctx, "workspace_a"))

	chunks := make([]core.Chunk, upsertBatch*2+5)
	for i := range chunks {
		chunks[i] = chunk("big", i, 1, float32(i))
	}
	require.NoError(t, b.Upsert(ctx, "workspace_a", chunks))

	stored, err := b.DocumentChunks(ctx, "workspace_a", "big")
	require.NoError(t, err)
	require.Len(t, stored, len(chunks))
	for i, c := range stored {
		assert.Equal(t, i, c.Index)
	}
	assert.Equal(t, []float32{1, 12}, stored[12].Vector)
}

func TestUpsertMismatchAfterFirstBatchWritesNothing(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)
	require.NoError(t, b.CreateCollection(ctx, "workspace_a"))

	chunks := make([]core.Chunk, upsertBatch+10)
	for i := range chunks {
		chunks[i] = chunk("big", i, 1, 0)
	}
	chunks[upsertBatch+3].Vector = []float32{1, 0, 0, 0}

	err := b.Upsert(ctx, "workspace_a", chunks)
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)

	stored, err := b.DocumentChunks(ctx, "workspace_a", "big")
	require.NoError(t, err)
	assert.Empty(t, stored)

	// The collection is still empty, so a different dimension is accepted.
	require.NoError(t, b.Upsert(ctx, "workspace_a", []core.Chunk{chunk("small", 0, 1, 0, 0)}))
}

func TestDocumentChunksAndDelete(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)
	require.NoError(t, b.CreateCollection(ctx, "workspace_a"))
	require.NoError(t, b.CreateCollection(ctx, "workspace_b"))
	require.NoError(t, b.Upsert(ctx, "workspace_a", []core.Chunk{
		chunk("d1", 0, 1, 0),
		chunk("d1", 1, 0, 1),
		chunk("d2", 0, 1, 1),
	}))
	require.NoError(t, b.Upsert(ctx, "workspace_b", []core.Chunk{chunk("d1", 0, 1, 0)}))

	stored, err := b.DocumentChunks(ctx, "workspace_a", "d1")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "d1_0", stored[0].ID)
	assert.Equal(t, "text d1_1", stored[1].Text)

	require.NoError(t, b.Delete(ctx, "workspace_a", []string{"d1_0", "d1_1", "unknown_0"}))

	matches, err := b.Query(ctx, "workspace_a", []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "d2_0", matches[0].ID)

	stored, err = b.DocumentChunks(ctx, "workspace_b", "d1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "d1_0", stored[0].ID)

	_, err = b.DocumentChunks(ctx, "workspace_missing", "d1")
	assert.ErrorIs(t, err, vectorstore.ErrCollectionNotFound)
}

func TestCosine(t *testing.T) {
	a := []float32{1, 0}
	assert.InDelta(t, 1.0, cosine(a, norm(a), []float32{5, 0}), 1e-6)
	assert.InDelta(t, 0.0, cosine(a, norm(a), []float32{0, 2}), 1e-6)
	assert.InDelta(t, -1.0, cosine(a, norm(a), []float32{-1, 0}), 1e-6)
	assert.Equal(t, float32(0), cosine(a, norm(a), []float32{0, 0}))
}
