// Package reindex rebuilds the vectors of a workspace's documents with the
// current embedding model.
//
// Chunk texts are read back from the vector store, embedded again in
// batches and written over the old chunks under the same ids. Source files
// are not re-read and chunk boundaries do not change, so a reindex must use
// a model of the same dimension as the one that built the collection.
package reindex
