package badger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/ragdesk/core"
	"github.com/poiesic/ragdesk/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDocument(id, workspace string) *core.Document {
	return &core.Document{
		ID:          id,
		WorkspaceID: workspace,
		UserID:      "u1",
		Filename:    id + ".txt",
		FileType:    "txt",
	}
}

func setupRepos(t *testing.T) *Repositories {
	t.Helper()
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Backend.Close() })
	return repos
}

func TestDocumentRepository_AddGet(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()

	added, err := repos.Documents.AddDocument(ctx, newTestDocument("d1", "ws"))
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, added.Status)
	assert.False(t, added.CreatedAt.IsZero())

	got, err := repos.Documents.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, added, got)

	_, err = repos.Documents.AddDocument(ctx, newTestDocument("d1", "ws"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	_, err = repos.Documents.GetDocument(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDocumentRepository_AddRejectsInvalid(t *testing.T) {
	repos := setupRepos(t)

	_, err := repos.Documents.AddDocument(context.Background(), newTestDocument("d1", "bad/ws"))
	assert.ErrorIs(t, err, core.ErrInvalidWorkspaceID)
}

func TestDocumentRepository_ListNewestFirst(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Microsecond)

	for i, id := range []string{"old", "mid", "new"} {
		doc := newTestDocument(id, "ws")
		doc.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		_, err := repos.Documents.AddDocument(ctx, doc)
		require.NoError(t, err)
	}
	_, err := repos.Documents.AddDocument(ctx, newTestDocument("other", "ws2"))
	require.NoError(t, err)

	docs, err := repos.Documents.ListDocuments(ctx, "ws", 0)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "new", docs[0].ID)
	assert.Equal(t, "mid", docs[1].ID)
	assert.Equal(t, "old", docs[2].ID)

	limited, err := repos.Documents.ListDocuments(ctx, "ws", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	_, err = repos.Documents.MarkDocumentDeleted(ctx, "mid")
	require.NoError(t, err)
	docs, err = repos.Documents.ListDocuments(ctx, "ws", 0)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestDocumentRepository_StatusMachine(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()
	_, err := repos.Documents.AddDocument(ctx, newTestDocument("d1", "ws"))
	require.NoError(t, err)

	doc, err := repos.Documents.UpdateDocumentStatus(ctx, "d1", storage.StatusUpdate{Status: core.StatusProcessing})
	require.NoError(t, err)
	assert.Equal(t, core.StatusProcessing, doc.Status)

	_, err = repos.Documents.UpdateDocumentStatus(ctx, "d1", storage.StatusUpdate{Status: core.StatusPending})
	assert.ErrorIs(t, err, core.ErrInvalidStatusTransition)

	_, err = repos.Documents.UpdateDocumentStatus(ctx, "d1", storage.StatusUpdate{Status: core.StatusEmbedding})
	require.NoError(t, err)

	doc, err = repos.Documents.UpdateDocumentStatus(ctx, "d1", storage.StatusUpdate{Status: core.StatusCompleted, ChunkCount: 7})
	require.NoError(t, err)
	assert.Equal(t, 7, doc.ChunkCount)

	_, err = repos.Documents.UpdateDocumentStatus(ctx, "d1", storage.StatusUpdate{Status: core.StatusFailed, Reason: "late"})
	assert.ErrorIs(t, err, core.ErrInvalidStatusTransition)

	stored, err := repos.Documents.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, stored.Status)
	assert.Empty(t, stored.StatusReason)

	_, err = repos.Documents.UpdateDocumentStatus(ctx, "missing", storage.StatusUpdate{Status: core.StatusProcessing})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDocumentRepository_ConcurrentTerminalWrites(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()
	_, err := repos.Documents.AddDocument(ctx, newTestDocument("d1", "ws"))
	require.NoError(t, err)

	// Racing writers try to finish the document in different ways; exactly one wins.
	var wg sync.WaitGroup
	results := make([]error, 6)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			update := storage.StatusUpdate{Status: core.StatusCompleted, ChunkCount: i}
			if i%2 == 1 {
				update = storage.StatusUpdate{Status: core.StatusFailed, Reason: "racer"}
			}
			_, results[i] = repos.Documents.UpdateDocumentStatus(ctx, "d1", update)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, core.ErrInvalidStatusTransition)
		}
	}
	assert.Equal(t, 1, succeeded)

	doc, err := repos.Documents.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, doc.Status.Terminal())
}

func TestDocumentRepository_ListByStatus(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := repos.Documents.AddDocument(ctx, newTestDocument(id, "ws"))
		require.NoError(t, err)
	}
	_, err := repos.Documents.UpdateDocumentStatus(ctx, "b", storage.StatusUpdate{Status: core.StatusProcessing})
	require.NoError(t, err)
	_, err = repos.Documents.UpdateDocumentStatus(ctx, "c", storage.StatusUpdate{Status: core.StatusFailed, Reason: "x"})
	require.NoError(t, err)

	docs, err := repos.Documents.ListDocumentsByStatus(ctx, core.StatusPending, core.StatusProcessing)
	require.NoError(t, err)
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestDocumentRepository_Delete(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()
	_, err := repos.Documents.AddDocument(ctx, newTestDocument("d1", "ws"))
	require.NoError(t, err)

	marked, err := repos.Documents.MarkDocumentDeleted(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, marked.Deleted())

	again, err := repos.Documents.MarkDocumentDeleted(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, marked.DeletedAt, again.DeletedAt)

	require.NoError(t, repos.Documents.DeleteDocument(ctx, "d1"))
	_, err = repos.Documents.GetDocument(ctx, "d1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, repos.Documents.DeleteDocument(ctx, "d1"), storage.ErrNotFound)
}
