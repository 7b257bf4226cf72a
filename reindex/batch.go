package reindex

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/poiesic/ragdesk/ai"
	"github.com/poiesic/ragdesk/core"
	"github.com/poiesic/ragdesk/storage"
)

// DocumentProcessor re-embeds the chunks of one document.
type DocumentProcessor struct {
	documents DocumentGetter
	store     ChunkStore
	embedder  ai.Embedder
	batchSize int
}

// NewDocumentProcessor creates a new document processor.
// batchSize: chunks per embedding request; values <= 0 send all chunks at once
func NewDocumentProcessor(documents DocumentGetter, store ChunkStore, embedder ai.Embedder, batchSize int) *DocumentProcessor {
	return &DocumentProcessor{
		documents: documents,
		store:     store,
		embedder:  embedder,
		batchSize: batchSize,
	}
}

// Process embeds doc's stored chunk texts again and overwrites the chunks.
// It returns the number of chunks rewritten. Nothing is written unless
// every batch embedded successfully.
//
// A document deleted while its chunks are re-embedded yields ErrDocumentGone.
// If the deletion lands while the chunks are written, the rewritten chunks
// are removed again.
func (p *DocumentProcessor) Process(ctx context.Context, doc *core.Document) (int, error) {
	chunks, err := p.store.DocumentChunks(ctx, doc.WorkspaceID, doc.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to read chunks: %w", err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	size := p.batchSize
	if size <= 0 {
		size = len(texts)
	}
	embeddings := make([][]float32, 0, len(texts))
	for batch := range slices.Chunk(texts, size) {
		vectors, err := p.embedder.EmbedTexts(ctx, batch)
		if err != nil {
			return 0, err
		}
		if len(vectors) != len(batch) {
			return 0, fmt.Errorf("%w: got %d for %d inputs", ai.ErrEmbeddingCount, len(vectors), len(batch))
		}
		embeddings = append(embeddings, vectors...)
	}

	if err := p.checkLive(ctx, doc.ID); err != nil {
		return 0, err
	}
	// Chunk metadata differs only in chunk_index, which AddChunks rewrites.
	if _, err := p.store.AddChunks(ctx, doc.WorkspaceID, doc.ID, texts, embeddings, chunks[0].Metadata); err != nil {
		return 0, fmt.Errorf("failed to write chunks: %w", err)
	}
	// Deletion marks the document before removing its chunks, so a delete
	// that raced the write is visible here.
	if err := p.checkLive(ctx, doc.ID); err != nil {
		if _, derr := p.store.DeleteDocument(context.WithoutCancel(ctx), doc.WorkspaceID, doc.ID); derr != nil {
			return 0, errors.Join(err, fmt.Errorf("failed to remove rewritten chunks: %w", derr))
		}
		return 0, err
	}
	return len(chunks), nil
}

// checkLive returns ErrDocumentGone when id was deleted or marked deleted.
func (p *DocumentProcessor) checkLive(ctx context.Context, id string) error {
	doc, err := p.documents.GetDocument(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrDocumentGone
	}
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}
	if doc.Deleted() {
		return ErrDocumentGone
	}
	return nil
}
