package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"testing"

	"github.com/poiesic/ragdesk/ai"
	"github.com/poiesic/ragdesk/ai/mock"
	"github.com/poiesic/ragdesk/core"
	"github.com/poiesic/ragdesk/storage"
	"github.com/poiesic/ragdesk/storage/badger"
	"github.com/poiesic/ragdesk/vectorstore"
	vbadger "github.com/poiesic/ragdesk/vectorstore/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memFiles serves uploaded files from memory.
type memFiles struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (m *memFiles) put(path, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = []byte(content)
}

func (m *memFiles) read(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, fs.ErrNotExist)
	}
	return content, nil
}

// storeFunc adapts a function to VectorStore.
type storeFunc func(ctx context.Context, workspaceID, documentID string, chunks []string, embeddings [][]float32, metadata map[string]string) ([]string, error)

func (f storeFunc) AddChunks(ctx context.Context, workspaceID, documentID string, chunks []string, embeddings [][]float32, metadata map[string]string) ([]string, error) {
	return f(ctx, workspaceID, documentID, chunks, embeddings, metadata)
}

func (f storeFunc) DeleteDocument(context.Context, string, string) (int, error) {
	return 0, nil
}

// halfStore commits the first half of every write and then fails.
type halfStore struct {
	*vectorstore.Manager
}

func (h halfStore) AddChunks(ctx context.Context, workspaceID, documentID string, chunks []string, embeddings [][]float32, metadata map[string]string) ([]string, error) {
	n := len(chunks) / 2
	if _, err := h.Manager.AddChunks(ctx, workspaceID, documentID, chunks[:n], embeddings[:n], metadata); err != nil {
		return nil, err
	}
	return nil, errors.New("connection reset")
}

type fixture struct {
	repos    *badger.Repositories
	manager  *vectorstore.Manager
	embedder *mock.MockEmbedder
	files    *memFiles
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Backend.Close() })

	backend, err := vbadger.New(repos.Backend)
	require.NoError(t, err)
	manager, err := vectorstore.NewManager(backend)
	require.NoError(t, err)

	return &fixture{
		repos:    repos,
		manager:  manager,
		embedder: mock.NewMockEmbedder(),
		files:    &memFiles{files: make(map[string][]byte)},
	}
}

func (f *fixture) pipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	return f.pipelineWithStore(t, f.manager, opts...)
}

func (f *fixture) pipelineWithStore(t *testing.T, store VectorStore, opts ...Option) *Pipeline {
	t.Helper()
	opts = append([]Option{WithReadFile(f.files.read), WithPoolSize(2)}, opts...)
	p, err := NewPipeline(f.repos.Documents, f.embedder, store, opts...)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func (f *fixture) document(t *testing.T, id string) *core.Document {
	t.Helper()
	doc, err := f.repos.Documents.GetDocument(context.Background(), id)
	require.NoError(t, err)
	return doc
}

func ref(path string) DocumentRef {
	return DocumentRef{
		WorkspaceID: "acme",
		UserID:      "u1",
		Filename:    path,
		FilePath:    "/uploads/" + path,
	}
}

func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(w, " ")
}

func TestNewPipeline(t *testing.T) {
	f := setupFixture(t)

	t.Run("valid configuration", func(t *testing.T) {
		p, err := NewPipeline(f.repos.Documents, f.embedder, f.manager)
		require.NoError(t, err)
		p.Release()
	})

	t.Run("with options", func(t *testing.T) {
		p, err := NewPipeline(f.repos.Documents, f.embedder, f.manager,
			WithPoolSize(0), WithLogger(nil), WithChunking(100, 10), WithEmbedBatchSize(0))
		require.NoError(t, err)
		assert.Equal(t, 100, p.proc.chunker.Size())
		assert.Equal(t, 1, p.proc.batchSize)
		p.Release()
	})

	t.Run("invalid chunking", func(t *testing.T) {
		_, err := NewPipeline(f.repos.Documents, f.embedder, f.manager, WithChunking(10, 10))
		assert.Error(t, err)
	})

	t.Run("nil document repository", func(t *testing.T) {
		_, err := NewPipeline(nil, f.embedder, f.manager)
		assert.Equal(t, ErrDocumentRepositoryRequired, err)
	})

	t.Run("nil embedder", func(t *testing.T) {
		_, err := NewPipeline(f.repos.Documents, nil, f.manager)
		assert.Equal(t, ErrEmbedderRequired, err)
	})

	t.Run("nil store", func(t *testing.T) {
		_, err := NewPipeline(f.repos.Documents, f.embedder, nil)
		assert.Equal(t, ErrVectorStoreRequired, err)
	})
}

func TestIngest_ReturnsPending(t *testing.T) {
	f := setupFixture(t)
	f.files.put("/uploads/notes.txt", "hello world")

	release := make(chan struct{})
	f.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		<-release
		return [][]float32{mock.Vector(texts[0])}, nil
	}
	p := f.pipeline(t)

	doc, err := p.Ingest(context.Background(), ref("notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, doc.Status)
	assert.Equal(t, "txt", doc.FileType)
	assert.NotEmpty(t, doc.ID)

	close(release)
	p.Wait()
	assert.Equal(t, core.StatusCompleted, f.document(t, doc.ID).Status)
}

func TestIngest_IndexesChunks(t *testing.T) {
	f := setupFixture(t)
	f.files.put("/uploads/report.md", words(1200))
	p := f.pipeline(t)

	r := ref("report.md")
	r.Metadata = map[string]string{"source": "upload"}
	doc, err := p.Ingest(context.Background(), r)
	require.NoError(t, err)
	p.Wait()

	got := f.document(t, doc.ID)
	assert.Equal(t, core.StatusCompleted, got.Status)
	assert.Equal(t, 3, got.ChunkCount)
	assert.Empty(t, got.StatusReason)

	matches, err := f.manager.Query(context.Background(), "acme", mock.Vector("w0 w1 w2"), 10)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	for _, m := range matches {
		assert.Equal(t, doc.ID, m.DocumentID)
		assert.Equal(t, "report.md", m.Metadata[core.MetaFilename])
		assert.Equal(t, "md", m.Metadata[core.MetaFileType])
		assert.Equal(t, "u1", m.Metadata[core.MetaUserID])
		assert.Equal(t, "upload", m.Metadata["source"])
		assert.Equal(t, doc.ID, m.Metadata[core.MetaDocumentID])
	}
}

func TestIngest_SuppliedID(t *testing.T) {
	f := setupFixture(t)
	f.files.put("/uploads/a.txt", "text")
	p := f.pipeline(t)

	r := ref("a.txt")
	r.ID = "doc-42"
	doc, err := p.Ingest(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, "doc-42", doc.ID)

	_, err = p.Ingest(context.Background(), r)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
	p.Wait()
}

func TestIngest_Validation(t *testing.T) {
	f := setupFixture(t)
	p := f.pipeline(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		modify func(*DocumentRef)
	}{
		{"bad workspace", func(r *DocumentRef) { r.WorkspaceID = "no spaces" }},
		{"missing user", func(r *DocumentRef) { r.UserID = "" }},
		{"missing filename", func(r *DocumentRef) { r.Filename = "" }},
		{"missing path", func(r *DocumentRef) { r.FilePath = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ref("a.txt")
			tt.modify(&r)
			_, err := p.Ingest(ctx, r)
			assert.ErrorIs(t, err, core.ErrInvalidDocument)
		})
	}

	docs, err := f.repos.Documents.ListDocuments(ctx, "acme", 0)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestIngest_EmptyFileCompletesWithoutChunks(t *testing.T) {
	f := setupFixture(t)
	f.files.put("/uploads/empty.txt", "   \n ")
	p := f.pipeline(t)

	doc, err := p.Ingest(context.Background(), ref("empty.txt"))
	require.NoError(t, err)
	p.Wait()

	got := f.document(t, doc.ID)
	assert.Equal(t, core.StatusCompleted, got.Status)
	assert.Equal(t, 0, got.ChunkCount)
	assert.Equal(t, 0, f.embedder.CallCount())
}

func TestIngest_UnsupportedTypeIndexesPlaceholder(t *testing.T) {
	f := setupFixture(t)
	f.files.put("/uploads/photo.png", "\x89PNG")
	p := f.pipeline(t)

	doc, err := p.Ingest(context.Background(), ref("photo.png"))
	require.NoError(t, err)
	p.Wait()

	got := f.document(t, doc.ID)
	assert.Equal(t, core.StatusCompleted, got.Status)
	assert.Equal(t, 1, got.ChunkCount)

	matches, err := f.manager.Query(context.Background(), "acme", mock.Vector("photo"), 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "File: photo.png", matches[0].Text)
}

func TestIngest_Failures(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(f *fixture) VectorStore
		reason string
	}{
		{
			name: "missing file",
			setup: func(f *fixture) VectorStore {
				return f.manager
			},
			reason: "read file:",
		},
		{
			name: "embedding failure",
			setup: func(f *fixture) VectorStore {
				f.files.put("/uploads/doc.txt", "some text")
				f.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
					return nil, ai.NewEmbeddingError("mock", ai.ErrProviderUnavailable)
				}
				return f.manager
			},
			reason: "embed:",
		},
		{
			name: "embedding count mismatch",
			setup: func(f *fixture) VectorStore {
				f.files.put("/uploads/doc.txt", "some text")
				f.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
					return nil, nil
				}
				return f.manager
			},
			reason: "embed:",
		},
		{
			name: "store failure",
			setup: func(f *fixture) VectorStore {
				f.files.put("/uploads/doc.txt", "some text")
				return storeFunc(func(context.Context, string, string, []string, [][]float32, map[string]string) ([]string, error) {
					return nil, &vectorstore.StoreError{Op: "add", Collection: "workspace_acme", Err: errors.New("disk full")}
				})
			},
			reason: "store vectors:",
		},
		{
			name: "panic",
			setup: func(f *fixture) VectorStore {
				f.files.put("/uploads/doc.txt", "some text")
				f.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
					panic("embedder exploded")
				}
				return f.manager
			},
			reason: "panic: embedder exploded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupFixture(t)
			p := f.pipelineWithStore(t, tt.setup(f))

			doc, err := p.Ingest(context.Background(), ref("doc.txt"))
			require.NoError(t, err)
			p.Wait()

			got := f.document(t, doc.ID)
			assert.Equal(t, core.StatusFailed, got.Status)
			assert.Contains(t, got.StatusReason, tt.reason)
			assert.Equal(t, 0, got.ChunkCount)
		})
	}
}

func TestIngest_StoreFailureLeavesNoChunks(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture) VectorStore
	}{
		{
			name: "dimension changes after first batch",
			setup: func(f *fixture) VectorStore {
				embedded := 0
				f.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
					vectors := make([][]float32, len(texts))
					for i, text := range texts {
						if embedded < 256 {
							vectors[i] = mock.Vector(text)
						} else {
							vectors[i] = []float32{1, 0, 0, 0}
						}
						embedded++
					}
					return vectors, nil
				}
				return f.manager
			},
		},
		{
			name: "write fails part way",
			setup: func(f *fixture) VectorStore {
				return halfStore{f.manager}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := setupFixture(t)
			f.files.put("/uploads/doc.txt", words(600))
			p := f.pipelineWithStore(t, tt.setup(f), WithChunking(2, 0))

			doc, err := p.Ingest(ctx, ref("doc.txt"))
			require.NoError(t, err)
			p.Wait()

			got := f.document(t, doc.ID)
			assert.Equal(t, core.StatusFailed, got.Status)
			assert.Contains(t, got.StatusReason, "store vectors:")

			stored, err := f.manager.DocumentChunks(ctx, "acme", doc.ID)
			require.NoError(t, err)
			assert.Empty(t, stored)

			matches, err := f.manager.Query(ctx, "acme", mock.Vector("w1"), 10)
			require.NoError(t, err)
			assert.Empty(t, matches)
		})
	}
}

func TestIngest_StatusIsEmbeddingWhileStoring(t *testing.T) {
	f := setupFixture(t)
	f.files.put("/uploads/doc.txt", "some text")

	var seen core.DocumentStatus
	store := storeFunc(func(ctx context.Context, workspaceID, documentID string, chunks []string, embeddings [][]float32, metadata map[string]string) ([]string, error) {
		doc, err := f.repos.Documents.GetDocument(ctx, documentID)
		if err != nil {
			return nil, err
		}
		seen = doc.Status
		return f.manager.AddChunks(ctx, workspaceID, documentID, chunks, embeddings, metadata)
	})
	p := f.pipelineWithStore(t, store)

	doc, err := p.Ingest(context.Background(), ref("doc.txt"))
	require.NoError(t, err)
	p.Wait()

	assert.Equal(t, core.StatusEmbedding, seen)
	assert.Equal(t, core.StatusCompleted, f.document(t, doc.ID).Status)
}

func TestIngest_Concurrent(t *testing.T) {
	f := setupFixture(t)
	p := f.pipeline(t, WithPoolSize(4))
	ctx := context.Background()

	ids := make([]string, 20)
	for i := range ids {
		name := fmt.Sprintf("doc%d.txt", i)
		f.files.put("/uploads/"+name, words(600))
		doc, err := p.Ingest(ctx, ref(name))
		require.NoError(t, err)
		ids[i] = doc.ID
	}
	p.Wait()

	for _, id := range ids {
		got := f.document(t, id)
		assert.Equal(t, core.StatusCompleted, got.Status)
		assert.Equal(t, 2, got.ChunkCount)
	}

	matches, err := f.manager.Query(ctx, "acme", mock.Vector("w1"), 100)
	require.NoError(t, err)
	assert.Len(t, matches, 40)
}

func TestIngest_AfterRelease(t *testing.T) {
	f := setupFixture(t)
	f.files.put("/uploads/a.txt", "text")
	p, err := NewPipeline(f.repos.Documents, f.embedder, f.manager, WithReadFile(f.files.read))
	require.NoError(t, err)
	p.Release()

	doc, err := p.Ingest(context.Background(), ref("a.txt"))
	assert.ErrorIs(t, err, ErrPipelineClosed)
	require.NotNil(t, doc)
	assert.Equal(t, core.StatusFailed, f.document(t, doc.ID).Status)
}

func TestRecover(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	docs := f.repos.Documents

	add := func(id string, status core.DocumentStatus) {
		_, err := docs.AddDocument(ctx, &core.Document{
			ID: id, WorkspaceID: "acme", UserID: "u1",
			Filename: id + ".txt", FilePath: "/uploads/" + id + ".txt",
			FileType: "txt", Status: core.StatusPending,
		})
		require.NoError(t, err)
		if status == core.StatusEmbedding {
			_, err = docs.UpdateDocumentStatus(ctx, id, storage.StatusUpdate{Status: core.StatusProcessing})
			require.NoError(t, err)
		}
		if status != core.StatusPending {
			_, err = docs.UpdateDocumentStatus(ctx, id, storage.StatusUpdate{Status: status})
			require.NoError(t, err)
		}
	}
	add("processing", core.StatusProcessing)
	add("embedding", core.StatusEmbedding)
	add("pending", core.StatusPending)
	add("deleted", core.StatusPending)
	add("done", core.StatusCompleted)
	_, err := docs.MarkDocumentDeleted(ctx, "deleted")
	require.NoError(t, err)
	f.files.put("/uploads/pending.txt", "resumed text")

	p := f.pipeline(t)
	report, err := p.Recover(ctx)
	require.NoError(t, err)
	p.Wait()

	assert.Equal(t, RecoverReport{Failed: 2, Resubmitted: 1}, report)

	for _, id := range []string{"processing", "embedding"} {
		got := f.document(t, id)
		assert.Equal(t, core.StatusFailed, got.Status)
		assert.Equal(t, "interrupted", got.StatusReason)
	}
	assert.Equal(t, core.StatusCompleted, f.document(t, "pending").Status)
	assert.Equal(t, core.StatusPending, f.document(t, "deleted").Status)
	assert.Equal(t, core.StatusCompleted, f.document(t, "done").Status)
}

func TestProcessSkipsClaimedDocuments(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	p := f.pipeline(t)

	_, err := f.repos.Documents.AddDocument(ctx, &core.Document{
		ID: "d1", WorkspaceID: "acme", UserID: "u1", Filename: "a.txt",
		FilePath: "/uploads/a.txt", FileType: "txt", Status: core.StatusPending,
	})
	require.NoError(t, err)
	_, err = f.repos.Documents.UpdateDocumentStatus(ctx, "d1", storage.StatusUpdate{Status: core.StatusProcessing})
	require.NoError(t, err)

	assert.ErrorIs(t, p.proc.process(ctx, "d1"), errAbandoned)
	assert.ErrorIs(t, p.proc.process(ctx, "missing"), errAbandoned)
	assert.Equal(t, core.StatusProcessing, f.document(t, "d1").Status)
}
