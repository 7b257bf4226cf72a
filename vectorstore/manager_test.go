package vectorstore_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/poiesic/ragdesk/core"
	storagebadger "github.com/poiesic/ragdesk/storage/badger"
	"github.com/poiesic/ragdesk/vectorstore"
	vbadger "github.com/poiesic/ragdesk/vectorstore/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingBackend counts collection creations and can fail on demand.
type countingBackend struct {
	vectorstore.Backend
	creates atomic.Int32
	fail    error
}

func (c *countingBackend) CreateCollection(ctx context.Context, name string) error {
	c.creates.Add(1)
	return c.Backend.CreateCollection(ctx, name)
}

func (c *countingBackend) Upsert(ctx context.Context, name string, chunks []core.Chunk) error {
	if c.fail != nil {
		return c.fail
	}
	return c.Backend.Upsert(ctx, name, chunks)
}

func setupManager(t *testing.T) (*vectorstore.Manager, *countingBackend) {
	t.Helper()
	db, err := storagebadger.OpenBackend("", true)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	inner, err := vbadger.New(db)
	require.NoError(t, err)
	backend := &countingBackend{Backend: inner}

	m, err := vectorstore.NewManager(backend)
	require.NoError(t, err)
	return m, backend
}

func TestNewManagerRequiresBackend(t *testing.T) {
	_, err := vectorstore.NewManager(nil)
	assert.ErrorIs(t, err, vectorstore.ErrBackendRequired)
}

func TestCollectionName(t *testing.T) {
	assert.Equal(t, "workspace_acme", vectorstore.CollectionName("acme"))
}

func TestGetOrCreateCollection(t *testing.T) {
	ctx := context.Background()

	t.Run("idempotent", func(t *testing.T) {
		m, backend := setupManager(t)
		c1, err := m.GetOrCreateCollection(ctx, "acme")
		require.NoError(t, err)
		c2, err := m.GetOrCreateCollection(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, c1, c2)
		assert.Equal(t, "workspace_acme", c1.Name)
		assert.Equal(t, int32(1), backend.creates.Load())
	})

	t.Run("concurrent callers create once", func(t *testing.T) {
		m, backend := setupManager(t)
		var wg sync.WaitGroup
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := m.GetOrCreateCollection(ctx, "busy")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), backend.creates.Load())

		ok, err := m.HasCollection(ctx, "busy")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("invalid workspace", func(t *testing.T) {
		m, _ := setupManager(t)
		_, err := m.GetOrCreateCollection(ctx, "bad id!")
		assert.ErrorIs(t, err, core.ErrInvalidWorkspaceID)
	})
}

func TestAddChunks(t *testing.T) {
	ctx := context.Background()

	t.Run("ids and metadata", func(t *testing.T) {
		m, _ := setupManager(t)
		ids, err := m.AddChunks(ctx, "acme", "doc1",
			[]string{"alpha", "beta"},
			[][]float32{{1, 0}, {0, 1}},
			map[string]string{"filename": "a.txt"})
		require.NoError(t, err)
		assert.Equal(t, []string{"doc1_0", "doc1_1"}, ids)

		matches, err := m.Query(ctx, "acme", []float32{0, 1}, 1)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "beta", matches[0].Text)
		assert.Equal(t, map[string]string{
			"filename":           "a.txt",
			core.MetaDocumentID: "doc1",
			core.MetaChunkIndex: "1",
		}, matches[0].Metadata)
	})

	t.Run("caller metadata is not mutated", func(t *testing.T) {
		m, _ := setupManager(t)
		meta := map[string]string{"filename": "a.txt"}
		_, err := m.AddChunks(ctx, "acme", "doc1", []string{"a"}, [][]float32{{1}}, meta)
		require.NoError(t, err)
		assert.Len(t, meta, 1)
	})

	t.Run("length mismatch", func(t *testing.T) {
		m, backend := setupManager(t)
		_, err := m.AddChunks(ctx, "acme", "doc1", []string{"a", "b"}, [][]float32{{1}}, nil)

		var storeErr *vectorstore.StoreError
		require.ErrorAs(t, err, &storeErr)
		assert.ErrorIs(t, err, vectorstore.ErrLengthMismatch)
		assert.Equal(t, "workspace_acme", storeErr.Collection)
		assert.Equal(t, int32(0), backend.creates.Load())
	})

	t.Run("backend failure is a store error", func(t *testing.T) {
		m, backend := setupManager(t)
		backend.fail = errors.New("disk full")
		_, err := m.AddChunks(ctx, "acme", "doc1", []string{"a"}, [][]float32{{1}}, nil)

		var storeErr *vectorstore.StoreError
		require.ErrorAs(t, err, &storeErr)
		assert.Equal(t, "add", storeErr.Op)
	})

	t.Run("no chunks", func(t *testing.T) {
		m, _ := setupManager(t)
		ids, err := m.AddChunks(ctx, "acme", "doc1", nil, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("documents share a workspace", func(t *testing.T) {
		m, _ := setupManager(t)
		_, err := m.AddChunks(ctx, "acme", "doc1", []string{"a"}, [][]float32{{1, 0}}, nil)
		require.NoError(t, err)
		_, err = m.AddChunks(ctx, "acme", "doc2", []string{"b"}, [][]float32{{1, 0}}, nil)
		require.NoError(t, err)

		matches, err := m.Query(ctx, "acme", []float32{1, 0}, 10)
		require.NoError(t, err)
		assert.Len(t, matches, 2)
	})
}

func TestQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("absent collection is empty", func(t *testing.T) {
		m, _ := setupManager(t)
		matches, err := m.Query(ctx, "nobody", []float32{1}, 3)
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("workspaces are isolated", func(t *testing.T) {
		m, _ := setupManager(t)
		_, err := m.AddChunks(ctx, "a", "doc1", []string{"secret"}, [][]float32{{1}}, nil)
		require.NoError(t, err)

		matches, err := m.Query(ctx, "b", []float32{1}, 3)
		require.NoError(t, err)
		assert.Empty(t, matches)
	})
}

func TestDeleteDocument(t *testing.T) {
	ctx := context.Background()
	m, _ := setupManager(t)

	n, err := m.DeleteDocument(ctx, "acme", "doc1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = m.AddChunks(ctx, "acme", "doc1", []string{"a", "b", "c"}, [][]float32{{1, 0}, {1, 1}, {0, 1}}, nil)
	require.NoError(t, err)
	_, err = m.AddChunks(ctx, "acme", "doc2", []string{"d"}, [][]float32{{1, 0}}, nil)
	require.NoError(t, err)

	n, err = m.DeleteDocument(ctx, "acme", "doc1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	matches, err := m.Query(ctx, "acme", []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "doc2", matches[0].DocumentID)

	n, err = m.DeleteDocument(ctx, "acme", "doc1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDocumentChunks(t *testing.T) {
	ctx := context.Background()
	m, _ := setupManager(t)

	chunks, err := m.DocumentChunks(ctx, "acme", "doc1")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	texts := make([]string, 12)
	vectors := make([][]float32, 12)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk %d", i)
		vectors[i] = []float32{1, float32(i)}
	}
	_, err = m.AddChunks(ctx, "acme", "doc1", texts, vectors, map[string]string{core.MetaFilename: "a.txt"})
	require.NoError(t, err)

	chunks, err = m.DocumentChunks(ctx, "acme", "doc1")
	require.NoError(t, err)
	require.Len(t, chunks, 12)
	for i, c := range chunks {
		assert.Equal(t, texts[i], c.Text)
		assert.Equal(t, "a.txt", c.Metadata[core.MetaFilename])
	}

	chunks, err = m.DocumentChunks(ctx, "other", "doc1")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
