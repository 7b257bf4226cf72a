package vectorstore

import (
	"context"

	"github.com/poiesic/ragdesk/core"
)

// Backend stores chunks in named collections.
// Implementations must be safe for concurrent use.
type Backend interface {
	// CreateCollection creates name if it does not exist.
	CreateCollection(ctx context.Context, name string) error

	// HasCollection reports whether name exists.
	HasCollection(ctx context.Context, name string) (bool, error)

	// Upsert writes chunks into name, replacing chunks with the same id.
	Upsert(ctx context.Context, name string, chunks []core.Chunk) error

	// Query returns up to limit chunks nearest to vector by cosine similarity,
	// best first. Missing collections return ErrCollectionNotFound.
	Query(ctx context.Context, name string, vector []float32, limit int) ([]core.ChunkMatch, error)

	// DocumentChunks returns every chunk in name whose document_id is
	// documentID, ordered by chunk index.
	DocumentChunks(ctx context.Context, name, documentID string) ([]core.Chunk, error)

	// Delete removes the chunks with the given ids. Unknown ids are ignored.
	Delete(ctx context.Context, name string, ids []string) error

	// Close releases backend resources.
	Close() error
}
