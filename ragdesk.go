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

// Package ragdesk wires the document ingestion, retrieval and chat
// components into a single Service.
package ragdesk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/poiesic/ragdesk/ai"
	"github.com/poiesic/ragdesk/ai/ollama"
	"github.com/poiesic/ragdesk/ai/openai"
	"github.com/poiesic/ragdesk/chat"
	"github.com/poiesic/ragdesk/config"
	"github.com/poiesic/ragdesk/core"
	"github.com/poiesic/ragdesk/ingestion"
	"github.com/poiesic/ragdesk/reindex"
	"github.com/poiesic/ragdesk/search"
	"github.com/poiesic/ragdesk/storage"
	"github.com/poiesic/ragdesk/storage/badger"
	"github.com/poiesic/ragdesk/vectorstore"
	vbadger "github.com/poiesic/ragdesk/vectorstore/badger"
	"github.com/poiesic/ragdesk/vectorstore/pgvector"
)

var (
	// ErrInvalidConfig wraps configuration validation failures.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrDocumentBusy is returned when deleting a document that is still being processed.
	ErrDocumentBusy = errors.New("document is still being processed")
)

// Service is a running ragdesk instance.
type Service struct {
	config   *config.Config
	backend  *badger.Backend
	repos    *badger.Repositories
	provider ai.Provider
	store    *vectorstore.Manager
	pipeline *ingestion.Pipeline
	searcher *search.Searcher
	chat     *chat.Orchestrator
	logger   *slog.Logger

	removeFile func(name string) error

	closeOnce sync.Once
	closeErr  error
}

// Option configures a Service.
type Option func(*options)

type options struct {
	provider ai.Provider
	vectors  vectorstore.Backend
	inMemory bool
	logger   *slog.Logger
}

// WithProvider uses provider instead of building one from the config.
// The Service closes it on Close.
func WithProvider(provider ai.Provider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// WithVectorBackend uses backend instead of the configured vector store.
// The Service closes it on Close.
func WithVectorBackend(backend vectorstore.Backend) Option {
	return func(o *options) {
		o.vectors = backend
	}
}

// WithInMemory keeps the metadata store in memory; DataDir is not touched.
func WithInMemory() Option {
	return func(o *options) {
		o.inMemory = true
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Open builds every component from cfg and recovers documents left
// unfinished by an earlier process. A nil cfg uses config.Default().
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		joined := make([]error, len(errs))
		for i, e := range errs {
			joined[i] = e
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(joined...))
	}

	s := &Service{
		config:     cfg,
		logger:     o.logger.With("component", "ragdesk"),
		removeFile: os.Remove,
	}
	if err := s.open(ctx, o); err != nil {
		if s.store == nil && o.vectors != nil {
			o.vectors.Close()
		}
		s.Close()
		return nil, err
	}

	if _, err := s.pipeline.Recover(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to recover documents: %w", err)
	}
	return s, nil
}

func (s *Service) open(ctx context.Context, o *options) error {
	cfg := s.config
	s.provider = o.provider

	backend, err := badger.OpenBackend(filepath.Join(cfg.DataDir, "db"), o.inMemory)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.backend = backend
	s.repos = badger.NewRepositories(backend)

	if s.provider == nil {
		if s.provider, err = newProvider(cfg.AIConfig()); err != nil {
			return fmt.Errorf("failed to create AI provider: %w", err)
		}
	}

	vectors := o.vectors
	if vectors == nil {
		if vectors, err = s.newVectorBackend(ctx); err != nil {
			return fmt.Errorf("failed to open vector store: %w", err)
		}
	}
	if s.store, err = vectorstore.NewManager(vectors, vectorstore.WithLogger(o.logger)); err != nil {
		return err
	}

	s.pipeline, err = ingestion.NewPipeline(s.repos.Documents, s.provider.Embedder(), s.store,
		ingestion.WithPoolSize(cfg.Ingestion.PoolSize),
		ingestion.WithChunking(cfg.Ingestion.ChunkSize, cfg.Ingestion.ChunkOverlap),
		ingestion.WithEmbedBatchSize(cfg.Ingestion.EmbedBatchSize),
		ingestion.WithLogger(o.logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create ingestion pipeline: %w", err)
	}

	s.searcher, err = search.NewSearcher(s.store, s.provider.Embedder(),
		search.WithBudget(cfg.Retrieval.ContextBudget),
		search.WithLogger(o.logger),
	)
	if err != nil {
		return err
	}

	s.chat, err = chat.NewOrchestrator(s.searcher, s.provider.Generator(), s.repos.Tasks, s.repos.Chats, s.repos.Documents,
		chat.WithContextLimit(cfg.Retrieval.Limit),
		chat.WithLogger(o.logger),
	)
	return err
}

func newProvider(cfg *ai.Config) (ai.Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case ai.ProviderOpenAI:
		return openai.NewProvider(cfg)
	default:
		return ollama.NewProvider(cfg)
	}
}

func (s *Service) newVectorBackend(ctx context.Context) (vectorstore.Backend, error) {
	vs := s.config.VectorStore
	switch vs.Backend {
	case config.BackendPGVector:
		return pgvector.New(ctx, pgvector.Config{
			ConnString: vs.DSN,
			Dimensions: vs.Dimensions,
			EfSearch:   vs.EfSearch,
		})
	default:
		return vbadger.New(s.backend)
	}
}

// Ingest records an uploaded file and queues it for processing.
// The returned document is pending; poll Document for progress.
func (s *Service) Ingest(ctx context.Context, ref ingestion.DocumentRef) (*core.Document, error) {
	return s.pipeline.Ingest(ctx, ref)
}

// Document returns a document by id. Documents being deleted are not found.
func (s *Service) Document(ctx context.Context, id string) (*core.Document, error) {
	doc, err := s.repos.Documents.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Deleted() {
		return nil, fmt.Errorf("%w: document %s is being deleted", storage.ErrNotFound, id)
	}
	return doc, nil
}

// Documents lists a workspace's documents, newest first. A limit <= 0 returns all.
func (s *Service) Documents(ctx context.Context, workspaceID string, limit int) ([]*core.Document, error) {
	if err := core.ValidateWorkspaceID(workspaceID); err != nil {
		return nil, err
	}
	return s.repos.Documents.ListDocuments(ctx, workspaceID, limit)
}

// Search returns the workspace context for query, as handed to the model.
// A limit <= 0 uses the configured retrieval limit.
func (s *Service) Search(ctx context.Context, query, workspaceID string, limit int) (string, error) {
	if err := core.ValidateWorkspaceID(workspaceID); err != nil {
		return "", err
	}
	if limit <= 0 {
		limit = s.config.Retrieval.Limit
	}
	return s.searcher.Search(ctx, query, workspaceID, limit)
}

// Chat answers message and runs any tool it asks for.
func (s *Service) Chat(ctx context.Context, message, userID, workspaceID string) (*chat.Result, error) {
	return s.chat.Chat(ctx, message, userID, workspaceID)
}

// DeleteDocument removes a document, its vectors and its stored file.
//
// Documents still being processed are refused with ErrDocumentBusy. The
// document is marked deleted before anything is removed, so a failure part
// way leaves it hidden and the call can be repeated.
func (s *Service) DeleteDocument(ctx context.Context, id string) error {
	doc, err := s.repos.Documents.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if !doc.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrDocumentBusy, id, doc.Status)
	}
	logger := s.logger.With("document_id", id, "workspace_id", doc.WorkspaceID)

	if _, err := s.repos.Documents.MarkDocumentDeleted(ctx, id); err != nil {
		return fmt.Errorf("failed to mark document deleted: %w", err)
	}

	n, err := s.store.DeleteDocument(ctx, doc.WorkspaceID, id)
	if err != nil {
		logger.Error("failed to delete document vectors", "err", err)
		return err
	}

	if doc.FilePath != "" {
		if err := s.removeFile(doc.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("failed to remove document file", "path", doc.FilePath, "err", err)
		}
	}

	if err := s.repos.Documents.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	logger.Info("deleted document", "chunks", n)
	return nil
}

// Reindex re-embeds a workspace's completed documents with the current
// embedding model, writing progress to progress.
func (s *Service) Reindex(ctx context.Context, workspaceID string, progress io.Writer) (*reindex.Report, error) {
	r, err := reindex.NewReindexer(s.repos.Documents, s.store, s.provider.Embedder(), &reindex.Config{
		BatchSize:      s.config.Ingestion.EmbedBatchSize,
		ReportInterval: 1,
	}, progress)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, workspaceID)
}

// Wait blocks until every queued document has been processed.
func (s *Service) Wait() {
	s.pipeline.Wait()
}

// Close waits for queued documents and releases every resource.
// Later calls return the first call's result.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.close()
	})
	return s.closeErr
}

func (s *Service) close() error {
	var errs []error
	if s.pipeline != nil {
		s.pipeline.Release()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("error closing vector store", "err", err)
			errs = append(errs, err)
		}
	}
	if s.provider != nil {
		if err := s.provider.Close(); err != nil {
			s.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if s.backend != nil {
		if err := s.backend.Close(); err != nil {
			s.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
