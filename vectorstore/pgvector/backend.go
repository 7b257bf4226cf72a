// Package pgvector implements vectorstore.Backend on PostgreSQL with the
// pgvector extension.
//
// Each collection is a table holding the chunk text, its metadata as JSONB
// and a vector column with an HNSW cosine index. HNSW needs no training
// data, so the index is built with the empty table. Similarity is
// 1 - cosine distance.
package pgvector

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/poiesic/ragdesk/core"
	"github.com/poiesic/ragdesk/vectorstore"
)

const (
	// DefaultDimensions matches nomic-embed-text.
	DefaultDimensions = 768
	// DefaultEfSearch is pgvector's default HNSW candidate list size.
	DefaultEfSearch = 40
	maxEfSearch     = 1000
)

var (
	// ErrConnStringRequired indicates an empty connection string.
	ErrConnStringRequired = errors.New("connection string is required")
	// ErrInvalidDimensions indicates a non-positive vector dimension.
	ErrInvalidDimensions = errors.New("dimensions must be positive")
)

// Config configures a Backend.
type Config struct {
	ConnString string
	Dimensions int
	// EfSearch is the HNSW candidate list size for queries. Queries asking
	// for more results raise it to their limit.
	EfSearch int
}

// Backend stores collections as pgvector tables.
type Backend struct {
	config Config
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ vectorstore.Backend = (*Backend)(nil)

// New connects to PostgreSQL and enables the vector extension.
func New(ctx context.Context, config Config) (*Backend, error) {
	if config.ConnString == "" {
		return nil, ErrConnStringRequired
	}
	if config.Dimensions == 0 {
		config.Dimensions = DefaultDimensions
	}
	if config.Dimensions < 0 {
		return nil, ErrInvalidDimensions
	}
	if config.EfSearch <= 0 {
		config.EfSearch = DefaultEfSearch
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create vector extension: %w", err)
	}

	return &Backend{
		config: config,
		pool:   pool,
		logger: slog.Default().With("component", "pgvector"),
	}, nil
}

func table(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// CreateCollection creates the table of name and its indexes.
func (b *Backend) CreateCollection(ctx context.Context, name string) error {
	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			metadata JSONB
		)`, table(name), b.config.Dimensions)
	if _, err := b.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	indexes := []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)",
			pgx.Identifier{name + "_embedding_idx"}.Sanitize(), table(name)),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (document_id)",
			pgx.Identifier{name + "_document_idx"}.Sanitize(), table(name)),
	}
	for _, stmt := range indexes {
		if _, err := b.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	b.logger.Debug("created collection", "collection", name)
	return nil
}

func (b *Backend) HasCollection(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := b.pool.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", table(name)).Scan(&exists)
	return exists, err
}

func (b *Backend) Upsert(ctx context.Context, name string, chunks []core.Chunk) error {
	for i := range chunks {
		if len(chunks[i].Vector) != b.config.Dimensions {
			return fmt.Errorf("%w: chunk %s has %d, collection has %d",
				vectorstore.ErrDimensionMismatch, chunks[i].ID, len(chunks[i].Vector), b.config.Dimensions)
		}
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, document_id, chunk_index, content, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`, table(name))

	batch := &pgx.Batch{}
	for _, c := range chunks {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return err
		}
		batch.Queue(stmt, c.ID, c.DocumentID, c.Index, c.Text, pgvector.NewVector(c.Vector), meta)
	}

	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return translate(fmt.Errorf("failed to insert chunks: %w", err))
	}
	return tx.Commit(ctx)
}

// Query returns the limit chunks nearest to vector. The HNSW candidate
// list is widened to limit for the query's transaction so that an index
// scan can return every requested row.
func (b *Backend) Query(ctx context.Context, name string, vector []float32, limit int) ([]core.ChunkMatch, error) {
	if len(vector) != b.config.Dimensions {
		return nil, fmt.Errorf("%w: query has %d, collection has %d", vectorstore.ErrDimensionMismatch, len(vector), b.config.Dimensions)
	}

	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", efSearch(b.config.EfSearch, limit))); err != nil {
		return nil, fmt.Errorf("failed to set ef_search: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, document_id, chunk_index, content, metadata, 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`, table(name))

	rows, err := tx.Query(ctx, query, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, translate(fmt.Errorf("failed to query chunks: %w", err))
	}
	defer rows.Close()

	var matches []core.ChunkMatch
	for rows.Next() {
		var m core.ChunkMatch
		var meta []byte
		var score float64
		if err := rows.Scan(&m.ID, &m.DocumentID, &m.Index, &m.Text, &meta, &score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &m.Metadata); err != nil {
				return nil, err
			}
		}
		m.Score = float32(score)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err)
	}

	// Rows come back in distance order; equal scores are ordered by id.
	slices.SortStableFunc(matches, func(a, b core.ChunkMatch) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return matches, nil
}

// efSearch returns the candidate list size for a query of limit rows.
func efSearch(configured, limit int) int {
	return min(max(configured, limit), maxEfSearch)
}

func (b *Backend) DocumentChunks(ctx context.Context, name, documentID string) ([]core.Chunk, error) {
	query := fmt.Sprintf(`
		SELECT id, document_id, chunk_index, content, metadata, embedding
		FROM %s
		WHERE document_id = $1
		ORDER BY chunk_index`, table(name))
	rows, err := b.pool.Query(ctx, query, documentID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var chunks []core.Chunk
	for rows.Next() {
		var c core.Chunk
		var meta []byte
		var vec pgvector.Vector
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Text, &meta, &vec); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &c.Metadata); err != nil {
				return nil, err
			}
		}
		c.Vector = vec.Slice()
		chunks = append(chunks, c)
	}
	return chunks, translate(rows.Err())
}

func (b *Backend) Delete(ctx context.Context, name string, ids []string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, table(name))
	_, err := b.pool.Exec(ctx, query, ids)
	return translate(err)
}

func (b *Backend) Close() error {
	b.pool.Close()
	return nil
}
