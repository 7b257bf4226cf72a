package reindex

import "errors"

var (
	// ErrDocumentRepositoryRequired is returned when no document lister is given.
	ErrDocumentRepositoryRequired = errors.New("document repository is required")

	// ErrChunkStoreRequired is returned when no chunk store is given.
	ErrChunkStoreRequired = errors.New("chunk store is required")

	// ErrEmbedderRequired is returned when no embedder is given.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrDocumentGone is returned when a document is deleted during its reindex.
	ErrDocumentGone = errors.New("document was deleted")
)
