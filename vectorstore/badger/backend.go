// Package badger implements vectorstore.Backend inside the BadgerDB that
// holds ragdesk's metadata.
//
// Each collection has a header key recording its vector dimension, and each
// chunk is stored under "vchk:<collection>:<chunk id>". Queries scan the
// whole collection and rank by cosine similarity, which is adequate for the
// per-workspace document counts ragdesk targets.
package badger

import (
	"cmp"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragdesk/core"
	"github.com/poiesic/ragdesk/storage"
	storagebadger "github.com/poiesic/ragdesk/storage/badger"
	"github.com/poiesic/ragdesk/vectorstore"
)

const (
	collectionPrefix = "vcol:"
	chunkPrefix      = "vchk:"

	// upsertBatch bounds chunks per transaction to stay under Badger's txn size limit.
	upsertBatch = 256
)

func collectionKey(name string) []byte {
	return []byte(collectionPrefix + name)
}

func chunkCollectionPrefix(name string) []byte {
	return []byte(chunkPrefix + name + ":")
}

func chunkKey(name, id string) []byte {
	return append(chunkCollectionPrefix(name), id...)
}

// Backend stores vectors in a shared storage/badger Backend.
type Backend struct {
	db     *storagebadger.Backend
	logger *slog.Logger
}

var _ vectorstore.Backend = (*Backend)(nil)

// New creates a vector backend over db. Closing the vector backend does not
// close db; its owner does.
func New(db *storagebadger.Backend) (*Backend, error) {
	if db == nil {
		return nil, vectorstore.ErrBackendRequired
	}
	return &Backend{
		db:     db,
		logger: slog.Default().With("component", "badger-vectors"),
	}, nil
}

// readDimension returns the recorded dimension of name, 0 while the
// collection is still empty.
func readDimension(tx *badger.Txn, name string) (int, error) {
	item, err := tx.Get(collectionKey(name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, vectorstore.ErrCollectionNotFound
	}
	if err != nil {
		return 0, err
	}
	var dim int
	err = item.Value(func(val []byte) error {
		if len(val) != 4 {
			return fmt.Errorf("%w: collection header", storage.ErrTruncatedData)
		}
		dim = int(binary.BigEndian.Uint32(val))
		return nil
	})
	return dim, err
}

func writeDimension(tx *badger.Txn, name string, dim int) error {
	val := binary.BigEndian.AppendUint32(nil, uint32(dim))
	return tx.Set(collectionKey(name), val)
}

// CreateCollection records an empty header for name. An existing
// collection is left as it is.
func (b *Backend) CreateCollection(ctx context.Context, name string) error {
	return b.db.Update(ctx, func(tx *badger.Txn) error {
		_, err := readDimension(tx, name)
		if err == nil {
			return nil
		}
		if !errors.Is(err, vectorstore.ErrCollectionNotFound) {
			return err
		}
		return writeDimension(tx, name, 0)
	})
}

// HasCollection reports whether name has a header.
func (b *Backend) HasCollection(ctx context.Context, name string) (bool, error) {
	var found bool
	err := b.db.View(func(tx *badger.Txn) error {
		_, err := readDimension(tx, name)
		if errors.Is(err, vectorstore.ErrCollectionNotFound) {
			return nil
		}
		found = err == nil
		return err
	})
	return found, err
}

// Upsert writes chunks in transactions of upsertBatch. All vectors must
// share the collection's dimension, which the first write fixes. Vectors are
// checked against each other and the collection before the first batch
// commits.
func (b *Backend) Upsert(ctx context.Context, name string, chunks []core.Chunk) error {
	if err := b.checkDimensions(name, chunks); err != nil {
		return err
	}
	for batch := range slices.Chunk(chunks, upsertBatch) {
		if err := b.upsert(ctx, name, batch); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) checkDimensions(name string, chunks []core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	var dim int
	err := b.db.View(func(tx *badger.Txn) error {
		var err error
		dim, err = readDimension(tx, name)
		return err
	})
	if err != nil {
		return err
	}
	if dim == 0 {
		dim = len(chunks[0].Vector)
	}
	for i := range chunks {
		n := len(chunks[i].Vector)
		if n == 0 {
			return fmt.Errorf("%w: chunk %s has no vector", vectorstore.ErrDimensionMismatch, chunks[i].ID)
		}
		if n != dim {
			return fmt.Errorf("%w: chunk %s has %d, expected %d", vectorstore.ErrDimensionMismatch, chunks[i].ID, n, dim)
		}
	}
	return nil
}

func (b *Backend) upsert(ctx context.Context, name string, chunks []core.Chunk) error {
	return b.db.Update(ctx, func(tx *badger.Txn) error {
		dim, err := readDimension(tx, name)
		if err != nil {
			return err
		}
		for i := range chunks {
			n := len(chunks[i].Vector)
			if n == 0 {
				return fmt.Errorf("%w: chunk %s has no vector", vectorstore.ErrDimensionMismatch, chunks[i].ID)
			}
			if dim == 0 {
				dim = n
				if err := writeDimension(tx, name, dim); err != nil {
					return err
				}
			}
			if n != dim {
				return fmt.Errorf("%w: chunk %s has %d, collection has %d", vectorstore.ErrDimensionMismatch, chunks[i].ID, n, dim)
			}
			if err := tx.Set(chunkKey(name, chunks[i].ID), storage.MarshalChunk(&chunks[i])); err != nil {
				return err
			}
		}
		return nil
	})
}

// Query ranks every chunk in name by cosine similarity to vector.
// Equal scores are ordered by chunk id.
func (b *Backend) Query(ctx context.Context, name string, vector []float32, limit int) ([]core.ChunkMatch, error) {
	var matches []core.ChunkMatch
	err := b.db.View(func(tx *badger.Txn) error {
		dim, err := readDimension(tx, name)
		if err != nil {
			return err
		}
		if dim != 0 && len(vector) != dim {
			return fmt.Errorf("%w: query has %d, collection has %d", vectorstore.ErrDimensionMismatch, len(vector), dim)
		}
		queryNorm := norm(vector)
		return b.db.ScanPrefix(tx, chunkCollectionPrefix(name), func(_, val []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			chunk, err := storage.UnmarshalChunk(val)
			if err != nil {
				return err
			}
			matches = append(matches, core.ChunkMatch{
				Chunk: *chunk,
				Score: cosine(vector, queryNorm, chunk.Vector),
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(matches, func(a, b core.ChunkMatch) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// DocumentChunks returns the chunks of documentID in name, ordered by
// chunk index.
func (b *Backend) DocumentChunks(ctx context.Context, name, documentID string) ([]core.Chunk, error) {
	var chunks []core.Chunk
	err := b.db.View(func(tx *badger.Txn) error {
		if _, err := readDimension(tx, name); err != nil {
			return err
		}
		return b.db.ScanPrefix(tx, chunkCollectionPrefix(name), func(_, val []byte) error {
			chunk, err := storage.UnmarshalChunk(val)
			if err != nil {
				return err
			}
			if chunk.Metadata[core.MetaDocumentID] == documentID {
				chunks = append(chunks, *chunk)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	// Keys sort by id, so "d_10" precedes "d_2".
	slices.SortFunc(chunks, func(a, b core.Chunk) int {
		return cmp.Compare(a.Index, b.Index)
	})
	return chunks, nil
}

// Delete removes the chunks with ids from name. Unknown ids are ignored.
func (b *Backend) Delete(ctx context.Context, name string, ids []string) error {
	err := b.db.Update(ctx, func(tx *badger.Txn) error {
		for _, id := range ids {
			if err := tx.Delete(chunkKey(name, id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		b.logger.Debug("deleted chunks", "collection", name, "count", len(ids))
	}
	return err
}

// Close is a no-op; the shared database is closed by its owner.
func (b *Backend) Close() error {
	return nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// cosine returns the cosine similarity of a and b given a's precomputed
// norm. Zero vectors score 0.
func cosine(a []float32, aNorm float64, b []float32) float32 {
	bNorm := norm(b)
	if aNorm == 0 || bNorm == 0 {
		return 0
	}
	var dot float64
	for i := range min(len(a), len(b)) {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(dot / (aNorm * bNorm))
}
