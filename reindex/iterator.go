package reindex

import (
	"context"
	"slices"

	"github.com/poiesic/ragdesk/core"
)

// DefaultBatchSize is the default number of documents handed to ForEach at once.
const DefaultBatchSize = 32

// DocumentIterator walks a workspace's completed documents in batches.
type DocumentIterator struct {
	documents   DocumentLister
	workspaceID string
	batchSize   int
}

// NewDocumentIterator creates a new document iterator.
// batchSize: number of documents per batch; values <= 0 use DefaultBatchSize
func NewDocumentIterator(documents DocumentLister, workspaceID string, batchSize int) *DocumentIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &DocumentIterator{
		documents:   documents,
		workspaceID: workspaceID,
		batchSize:   batchSize,
	}
}

func (it *DocumentIterator) completed(ctx context.Context) ([]*core.Document, error) {
	docs, err := it.documents.ListDocuments(ctx, it.workspaceID, 0)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(docs, func(d *core.Document) bool {
		return d.Status != core.StatusCompleted
	}), nil
}

// Count returns the number of documents ForEach would visit.
func (it *DocumentIterator) Count(ctx context.Context) (int, error) {
	docs, err := it.completed(ctx)
	return len(docs), err
}

// ForEach calls fn with successive batches of completed documents.
// Iteration stops on the first error from fn. Context cancellation is
// checked between batches.
func (it *DocumentIterator) ForEach(ctx context.Context, fn func([]*core.Document) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	docs, err := it.completed(ctx)
	if err != nil {
		return err
	}
	for batch := range slices.Chunk(docs, it.batchSize) {
		if err := fn(batch); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}
