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

package reindex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/ragdesk/ai"
	"github.com/poiesic/ragdesk/core"
)

// Config holds configuration for a reindex run.
type Config struct {
	// BatchSize is the number of chunks sent in each embedding request
	BatchSize int

	// ReportInterval is how often to report progress (number of documents)
	ReportInterval int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      32,
		ReportInterval: 10,
	}
}

// ChunkStore reads, rewrites and removes a document's chunks.
// *vectorstore.Manager implements it.
type ChunkStore interface {
	DocumentChunks(ctx context.Context, workspaceID, documentID string) ([]core.Chunk, error)
	AddChunks(ctx context.Context, workspaceID, documentID string, chunks []string, embeddings [][]float32, metadata map[string]string) ([]string, error)
	DeleteDocument(ctx context.Context, workspaceID, documentID string) (int, error)
}

// DocumentLister lists a workspace's documents.
type DocumentLister interface {
	ListDocuments(ctx context.Context, workspaceID string, limit int) ([]*core.Document, error)
}

// DocumentGetter loads one document.
type DocumentGetter interface {
	GetDocument(ctx context.Context, id string) (*core.Document, error)
}

// DocumentSource lists documents and reloads them before their chunks are
// rewritten. storage.DocumentRepository implements it.
type DocumentSource interface {
	DocumentLister
	DocumentGetter
}

// Report summarizes a reindex run.
type Report struct {
	Documents int      // Documents rewritten
	Chunks    int      // Chunks re-embedded
	Skipped   int      // Documents deleted while the run was in progress
	Failed    []string // Ids of documents that could not be reindexed
}

// Reindexer re-embeds every completed document of a workspace.
type Reindexer struct {
	documents DocumentLister
	config    *Config
	progress  io.Writer
	processor *DocumentProcessor
	logger    *slog.Logger
}

// NewReindexer creates a new reindexer.
// progress: where to write progress output (typically os.Stderr)
func NewReindexer(documents DocumentSource, store ChunkStore, embedder ai.Embedder, config *Config, progress io.Writer) (*Reindexer, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if store == nil {
		return nil, ErrChunkStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}
	return &Reindexer{
		documents: documents,
		config:    config,
		progress:  progress,
		processor: NewDocumentProcessor(documents, store, embedder, config.BatchSize),
		logger:    slog.Default().With("component", "reindex"),
	}, nil
}

// Run reindexes the completed documents of workspaceID.
//
// A document that fails is recorded in Report.Failed and the run moves on.
// Run itself fails only when documents cannot be listed or ctx is done.
func (r *Reindexer) Run(ctx context.Context, workspaceID string) (*Report, error) {
	if err := core.ValidateWorkspaceID(workspaceID); err != nil {
		return nil, err
	}
	iterator := NewDocumentIterator(r.documents, workspaceID, DefaultBatchSize)

	total, err := iterator.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	report := &Report{}
	if total == 0 {
		fmt.Fprintf(r.progress, "No completed documents in workspace %s\n", workspaceID)
		return report, nil
	}

	fmt.Fprintf(r.progress, "Reindexing %d documents in workspace %s\n", total, workspaceID)
	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	err = iterator.ForEach(ctx, func(docs []*core.Document) error {
		for _, doc := range docs {
			n, err := r.processor.Process(ctx, doc)
			switch {
			case errors.Is(err, ErrDocumentGone):
				r.logger.Debug("document deleted during reindex", "document_id", doc.ID)
				report.Skipped++
			case err != nil:
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.logger.Error("failed to reindex document", "document_id", doc.ID, "err", err)
				report.Failed = append(report.Failed, doc.ID)
			default:
				report.Documents++
				report.Chunks += n
			}
			tracker.Increment(1)
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	tracker.Finish()
	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reindex complete. %d documents, %d chunks in %v (%d failed)\n",
		report.Documents, report.Chunks, elapsed.Round(time.Millisecond), len(report.Failed))
	return report, nil
}
