package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/ragdesk/ai"
	"github.com/poiesic/ragdesk/chunker"
	"github.com/poiesic/ragdesk/core"
	"github.com/poiesic/ragdesk/extract"
	"github.com/poiesic/ragdesk/storage"
)

// DefaultEmbedBatchSize is how many chunks are sent per embedding request.
const DefaultEmbedBatchSize = 32

// Extractor turns file bytes into text. *extract.Extractor implements it.
type Extractor interface {
	Extract(ctx context.Context, filename string, content []byte) extract.Result
}

// VectorStore receives the chunks of processed documents and discards them
// when a write fails part way. *vectorstore.Manager implements it.
type VectorStore interface {
	AddChunks(ctx context.Context, workspaceID, documentID string, chunks []string, embeddings [][]float32, metadata map[string]string) ([]string, error)
	DeleteDocument(ctx context.Context, workspaceID, documentID string) (int, error)
}

// DocumentRef describes an uploaded file to ingest. The file must already
// be stored at FilePath.
type DocumentRef struct {
	ID          string // Optional; generated when empty
	WorkspaceID string
	UserID      string
	Filename    string
	FilePath    string
	Size        int64
	Metadata    map[string]string
}

// Pipeline processes uploaded documents in the background.
type Pipeline struct {
	documents storage.DocumentRepository
	pool      *ants.Pool
	proc      *documentProcessor
	wg        sync.WaitGroup
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent processing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		// Release old pool
		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithChunking sets the chunk size and overlap, in words.
// Default is chunker.DefaultSize and chunker.DefaultOverlap.
func WithChunking(size, overlap int) Option {
	return func(p *Pipeline) error {
		c, err := chunker.New(size, overlap)
		if err != nil {
			return err
		}
		p.proc.chunker = c
		return nil
	}
}

// WithExtractor replaces the default extract.Extractor.
func WithExtractor(extractor Extractor) Option {
	return func(p *Pipeline) error {
		if extractor != nil {
			p.proc.extractor = extractor
		}
		return nil
	}
}

// WithReadFile replaces os.ReadFile for loading uploaded files.
func WithReadFile(readFile func(name string) ([]byte, error)) Option {
	return func(p *Pipeline) error {
		if readFile != nil {
			p.proc.readFile = readFile
		}
		return nil
	}
}

// WithEmbedBatchSize sets how many chunks are embedded per request.
func WithEmbedBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.proc.batchSize = size
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	documents storage.DocumentRepository,
	embedder ai.Embedder,
	store VectorStore,
	opts ...Option,
) (*Pipeline, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if store == nil {
		return nil, ErrVectorStoreRequired
	}

	// Default pool size
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	defaultChunker, err := chunker.New(chunker.DefaultSize, chunker.DefaultOverlap)
	if err != nil {
		pool.Release()
		return nil, err
	}

	// Create pipeline with defaults
	p := &Pipeline{
		documents: documents,
		pool:      pool,
		logger:    slog.Default(),
		proc: &documentProcessor{
			documents: documents,
			chunker:   defaultChunker,
			embedder:  embedder,
			store:     store,
			readFile:  os.ReadFile,
			batchSize: DefaultEmbedBatchSize,
		},
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	p.logger = p.logger.With("component", "ingestion")
	p.proc.logger = p.logger
	if p.proc.extractor == nil {
		p.proc.extractor = extract.New(extract.WithLogger(p.logger))
	}

	return p, nil
}

// Ingest records a pending document for ref and schedules its processing.
// It returns without waiting; poll the document's status to follow progress.
func (p *Pipeline) Ingest(ctx context.Context, ref DocumentRef) (*core.Document, error) {
	if ref.ID == "" {
		ref.ID = core.NewID()
	}
	doc := &core.Document{
		ID:          ref.ID,
		WorkspaceID: ref.WorkspaceID,
		UserID:      ref.UserID,
		Filename:    ref.Filename,
		FilePath:    ref.FilePath,
		Size:        ref.Size,
		FileType:    core.FileTypeOf(ref.Filename),
		Status:      core.StatusPending,
		Metadata:    maps.Clone(ref.Metadata),
	}
	if err := core.ValidateDocument(doc); err != nil {
		return nil, err
	}
	if doc.FilePath == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidDocument, ErrFilePathRequired)
	}

	added, err := p.documents.AddDocument(ctx, doc)
	if err != nil {
		return nil, err
	}
	p.logger.Info("document accepted", "document_id", added.ID, "workspace_id", added.WorkspaceID, "file_type", added.FileType)

	if err := p.submit(added.ID); err != nil {
		return added, err
	}
	return added, nil
}

// submit schedules a job for the pending document id. If the pool refuses
// the job the document is failed.
func (p *Pipeline) submit(id string) error {
	p.wg.Add(1)
	err := p.pool.Submit(func() {
		defer p.wg.Done()
		p.run(id)
	})
	if err != nil {
		p.wg.Done()
		if errors.Is(err, ants.ErrPoolClosed) {
			err = ErrPipelineClosed
		}
		p.proc.fail(context.Background(), id, "schedule: "+err.Error())
		return err
	}
	return nil
}

// run executes one job. The job deliberately ignores the caller's context.
func (p *Pipeline) run(id string) {
	ctx := context.Background()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("document job panicked", "document_id", id, "panic", r)
			p.proc.fail(ctx, id, fmt.Sprintf("panic: %v", r))
		}
	}()

	err := p.proc.process(ctx, id)
	if err == nil || errors.Is(err, errAbandoned) {
		return
	}
	p.proc.fail(ctx, id, err.Error())
}

// RecoverReport summarizes a Recover pass.
type RecoverReport struct {
	Failed      int // Documents stranded mid-processing and marked failed
	Resubmitted int // Pending documents scheduled again
}

// Recover repairs documents left behind by an earlier process.
// Documents stranded in processing or embedding are failed as interrupted,
// and pending documents are scheduled again. Call it once at start-up,
// before new documents are ingested.
func (p *Pipeline) Recover(ctx context.Context) (RecoverReport, error) {
	var report RecoverReport

	stranded, err := p.documents.ListDocumentsByStatus(ctx, core.StatusProcessing, core.StatusEmbedding)
	if err != nil {
		return report, err
	}
	for _, doc := range stranded {
		_, err := p.documents.UpdateDocumentStatus(ctx, doc.ID, storage.StatusUpdate{
			Status: core.StatusFailed,
			Reason: ErrInterrupted.Error(),
		})
		if errors.Is(err, core.ErrInvalidStatusTransition) {
			continue
		}
		if err != nil {
			return report, err
		}
		report.Failed++
	}

	pending, err := p.documents.ListDocumentsByStatus(ctx, core.StatusPending)
	if err != nil {
		return report, err
	}
	for _, doc := range pending {
		if err := p.submit(doc.ID); err != nil {
			return report, err
		}
		report.Resubmitted++
	}

	if report.Failed > 0 || report.Resubmitted > 0 {
		p.logger.Info("recovered documents", "failed", report.Failed, "resubmitted", report.Resubmitted)
	}
	return report, nil
}

// Wait blocks until every submitted job has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Release waits for in-flight jobs and releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	p.wg.Wait()
	if p.pool != nil {
		p.pool.Release()
	}
}
