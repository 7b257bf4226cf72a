package vectorstore

import (
	"errors"
	"fmt"
)

var (
	// ErrLengthMismatch indicates chunks and embeddings of different lengths.
	ErrLengthMismatch = errors.New("chunks and embeddings differ in length")

	// ErrDimensionMismatch indicates a vector whose length differs from the collection's.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrCollectionNotFound indicates an operation on a collection that does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrBackendRequired indicates a nil backend was provided.
	ErrBackendRequired = errors.New("vector backend is required")
)

// StoreError reports a failed vector store operation.
type StoreError struct {
	Op         string
	Collection string
	Err        error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("vector store %s on %s: %v", e.Op, e.Collection, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeError(op, collection string, err error) error {
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Collection: collection, Err: err}
}
