package ingestion

import (
	"errors"
	"fmt"
)

var (
	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrVectorStoreRequired is returned when a vector store is not provided.
	ErrVectorStoreRequired = errors.New("vector store required")

	// ErrFilePathRequired is returned when a document reference has no file path.
	ErrFilePathRequired = errors.New("file path required")

	// ErrPipelineClosed is returned when work is submitted after Release.
	ErrPipelineClosed = errors.New("pipeline closed")

	// ErrInterrupted is the failure reason of documents stranded by a shutdown.
	ErrInterrupted = errors.New("interrupted")

	// errAbandoned stops a job without marking the document failed.
	errAbandoned = errors.New("job abandoned")
)

// stageError records which stage of a job failed.
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string {
	return fmt.Sprintf("%s: %v", e.stage, e.err)
}

func (e *stageError) Unwrap() error {
	return e.err
}
