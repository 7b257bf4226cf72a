// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/poiesic/ragdesk/ai"
	"github.com/poiesic/ragdesk/chunker"
	"github.com/poiesic/ragdesk/core"
	"github.com/poiesic/ragdesk/extract"
	"github.com/poiesic/ragdesk/storage"
)

// documentProcessor runs the stages of one document job.
type documentProcessor struct {
	documents storage.DocumentRepository
	extractor Extractor
	chunker   *chunker.Chunker
	embedder  ai.Embedder
	store     VectorStore
	readFile  func(name string) ([]byte, error)
	batchSize int
	logger    *slog.Logger
}

// process moves the document with id from pending to completed.
// It returns errAbandoned when the document is gone, deleted or already
// picked up, and a *stageError for everything that should fail it.
func (dp *documentProcessor) process(ctx context.Context, id string) error {
	doc, err := dp.documents.GetDocument(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return errAbandoned
	}
	if err != nil {
		return &stageError{stage: "load", err: err}
	}
	if doc.Deleted() || doc.Status != core.StatusPending {
		dp.logger.Debug("skipping document", "document_id", id, "status", doc.Status, "deleted", doc.Deleted())
		return errAbandoned
	}
	logger := dp.logger.With("document_id", doc.ID, "workspace_id", doc.WorkspaceID)

	if err := dp.advance(ctx, doc.ID, core.StatusProcessing); err != nil {
		return err
	}

	content, err := dp.readFile(doc.FilePath)
	if err != nil {
		return &stageError{stage: "read file", err: err}
	}
	result := dp.extractor.Extract(ctx, doc.Filename, content)
	if result.Degraded {
		logger.Warn("indexing placeholder text", "err", result.Err)
	}

	chunks := dp.chunker.Split(result.Text)
	logger.Debug("split document", "chunks", len(chunks))
	if len(chunks) == 0 {
		return dp.complete(ctx, doc.ID, 0)
	}

	if err := dp.advance(ctx, doc.ID, core.StatusEmbedding); err != nil {
		return err
	}
	vectors, err := dp.embed(ctx, chunks)
	if err != nil {
		return &stageError{stage: "embed", err: err}
	}

	meta := make(map[string]string, len(doc.Metadata)+3)
	maps.Copy(meta, doc.Metadata)
	meta[core.MetaFilename] = doc.Filename
	meta[core.MetaFileType] = doc.FileType
	meta[core.MetaUserID] = doc.UserID

	ids, err := dp.store.AddChunks(ctx, doc.WorkspaceID, doc.ID, chunks, vectors, meta)
	if err != nil {
		dp.discardChunks(ctx, doc)
		return &stageError{stage: "store vectors", err: err}
	}
	logger.Info("document indexed", "chunks", len(ids))
	return dp.complete(ctx, doc.ID, len(ids))
}

// discardChunks removes whatever part of doc's chunks reached the store
// before a write failed, so a failed document is never searchable.
func (dp *documentProcessor) discardChunks(ctx context.Context, doc *core.Document) {
	n, err := dp.store.DeleteDocument(context.WithoutCancel(ctx), doc.WorkspaceID, doc.ID)
	if err != nil {
		dp.logger.Error("failed to discard partial chunks", "document_id", doc.ID, "err", err)
		return
	}
	if n > 0 {
		dp.logger.Warn("discarded partial chunks", "document_id", doc.ID, "chunks", n)
	}
}

func (dp *documentProcessor) embed(ctx context.Context, chunks []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for batch := range slices.Chunk(chunks, dp.batchSize) {
		v, err := dp.embedder.EmbedTexts(ctx, batch)
		if err != nil {
			return nil, err
		}
		if len(v) != len(batch) {
			return nil, fmt.Errorf("%w: got %d for %d chunks", ai.ErrEmbeddingCount, len(v), len(batch))
		}
		vectors = append(vectors, v...)
	}
	return vectors, nil
}

// advance moves a running document forward. Losing the race to another
// writer abandons the job.
func (dp *documentProcessor) advance(ctx context.Context, id string, status core.DocumentStatus) error {
	_, err := dp.documents.UpdateDocumentStatus(ctx, id, storage.StatusUpdate{Status: status})
	if errors.Is(err, core.ErrInvalidStatusTransition) || errors.Is(err, storage.ErrNotFound) {
		dp.logger.Warn("document changed underneath job", "document_id", id, "to", status, "err", err)
		return errAbandoned
	}
	if err != nil {
		return &stageError{stage: "update status", err: err}
	}
	return nil
}

func (dp *documentProcessor) complete(ctx context.Context, id string, chunkCount int) error {
	_, err := dp.documents.UpdateDocumentStatus(ctx, id, storage.StatusUpdate{
		Status:     core.StatusCompleted,
		ChunkCount: chunkCount,
	})
	if errors.Is(err, core.ErrInvalidStatusTransition) || errors.Is(err, storage.ErrNotFound) {
		dp.logger.Warn("document changed underneath job", "document_id", id, "err", err)
		return errAbandoned
	}
	if err != nil {
		return &stageError{stage: "complete", err: err}
	}
	return nil
}

// fail records reason as the document's terminal state.
func (dp *documentProcessor) fail(ctx context.Context, id, reason string) {
	_, err := dp.documents.UpdateDocumentStatus(ctx, id, storage.StatusUpdate{
		Status: core.StatusFailed,
		Reason: reason,
	})
	if err != nil {
		dp.logger.Error("failed to record document failure", "document_id", id, "reason", reason, "err", err)
		return
	}
	dp.logger.Warn("document failed", "document_id", id, "reason", reason)
}

var _ Extractor = (*extract.Extractor)(nil)
