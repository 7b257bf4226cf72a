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

package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"sync"

	"github.com/poiesic/ragdesk/core"
	"golang.org/x/sync/singleflight"
)

// CollectionPrefix is prepended to workspace ids to form collection names.
const CollectionPrefix = "workspace_"

// Collection identifies the vector collection of one workspace.
type Collection struct {
	WorkspaceID string
	Name        string
}

// CollectionName returns the collection name for workspaceID.
func CollectionName(workspaceID string) string {
	return CollectionPrefix + workspaceID
}

// Manager provides per-workspace collection access over a Backend.
type Manager struct {
	backend Backend
	logger  *slog.Logger

	group singleflight.Group
	mu    sync.RWMutex
	known map[string]struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager over backend.
func NewManager(backend Backend, opts ...Option) (*Manager, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}
	m := &Manager{
		backend: backend,
		logger:  slog.Default(),
		known:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "vectorstore")
	return m, nil
}

// GetOrCreateCollection returns the collection of workspaceID, creating it
// on first use. Concurrent first calls for one workspace create it once.
func (m *Manager) GetOrCreateCollection(ctx context.Context, workspaceID string) (*Collection, error) {
	if err := core.ValidateWorkspaceID(workspaceID); err != nil {
		return nil, err
	}
	name := CollectionName(workspaceID)
	coll := &Collection{WorkspaceID: workspaceID, Name: name}

	if m.isKnown(name) {
		return coll, nil
	}

	_, err, _ := m.group.Do(name, func() (any, error) {
		if m.isKnown(name) {
			return nil, nil
		}
		if err := m.backend.CreateCollection(ctx, name); err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.known[name] = struct{}{}
		m.mu.Unlock()
		m.logger.Debug("collection ready", "collection", name)
		return nil, nil
	})
	if err != nil {
		return nil, storeError("create collection", name, err)
	}
	return coll, nil
}

// HasCollection reports whether workspaceID already has a collection.
func (m *Manager) HasCollection(ctx context.Context, workspaceID string) (bool, error) {
	if err := core.ValidateWorkspaceID(workspaceID); err != nil {
		return false, err
	}
	name := CollectionName(workspaceID)
	if m.isKnown(name) {
		return true, nil
	}
	ok, err := m.backend.HasCollection(ctx, name)
	if err != nil {
		return false, storeError("has collection", name, err)
	}
	if ok {
		m.mu.Lock()
		m.known[name] = struct{}{}
		m.mu.Unlock()
	}
	return ok, nil
}

// AddChunks stores chunks of documentID with their embeddings in the
// workspace collection and returns the chunk ids, in order.
// Every chunk's metadata is metadata plus document_id and chunk_index.
func (m *Manager) AddChunks(ctx context.Context, workspaceID, documentID string, chunks []string, embeddings [][]float32, metadata map[string]string) ([]string, error) {
	name := CollectionName(workspaceID)
	if len(chunks) != len(embeddings) {
		return nil, storeError("add", name, fmt.Errorf("%w: %d chunks, %d embeddings", ErrLengthMismatch, len(chunks), len(embeddings)))
	}
	if documentID == "" {
		return nil, core.ErrEmptyID
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	coll, err := m.GetOrCreateCollection(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(chunks))
	records := make([]core.Chunk, len(chunks))
	for i, text := range chunks {
		meta := make(map[string]string, len(metadata)+2)
		maps.Copy(meta, metadata)
		meta[core.MetaDocumentID] = documentID
		meta[core.MetaChunkIndex] = strconv.Itoa(i)

		ids[i] = core.ChunkID(documentID, i)
		records[i] = core.Chunk{
			ID:         ids[i],
			DocumentID: documentID,
			Index:      i,
			Text:       text,
			Vector:     embeddings[i],
			Metadata:   meta,
		}
	}

	if err := m.backend.Upsert(ctx, coll.Name, records); err != nil {
		return nil, storeError("add", coll.Name, err)
	}
	m.logger.Debug("added chunks", "collection", coll.Name, "document_id", documentID, "count", len(ids))
	return ids, nil
}

// Query returns up to limit chunks of the workspace nearest to embedding.
// A workspace without a collection yields no matches.
func (m *Manager) Query(ctx context.Context, workspaceID string, embedding []float32, limit int) ([]core.ChunkMatch, error) {
	name := CollectionName(workspaceID)
	if limit <= 0 {
		return nil, nil
	}
	ok, err := m.HasCollection(ctx, workspaceID)
	if err != nil || !ok {
		return nil, err
	}
	matches, err := m.backend.Query(ctx, name, embedding, limit)
	if errors.Is(err, ErrCollectionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("query", name, err)
	}
	return matches, nil
}

// DeleteDocument removes every chunk of documentID from the workspace
// collection and returns how many were removed.
func (m *Manager) DeleteDocument(ctx context.Context, workspaceID, documentID string) (int, error) {
	name := CollectionName(workspaceID)
	chunks, err := m.DocumentChunks(ctx, workspaceID, documentID)
	if err != nil || len(chunks) == 0 {
		return 0, err
	}
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	if err := m.backend.Delete(ctx, name, ids); err != nil {
		return 0, storeError("delete", name, err)
	}
	m.logger.Debug("deleted chunks", "collection", name, "document_id", documentID, "count", len(ids))
	return len(ids), nil
}

// DocumentChunks returns a document's stored chunks in index order.
// An absent collection yields no chunks.
func (m *Manager) DocumentChunks(ctx context.Context, workspaceID, documentID string) ([]core.Chunk, error) {
	name := CollectionName(workspaceID)
	ok, err := m.HasCollection(ctx, workspaceID)
	if err != nil || !ok {
		return nil, err
	}
	chunks, err := m.backend.DocumentChunks(ctx, name, documentID)
	if errors.Is(err, ErrCollectionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("list chunks", name, err)
	}
	return chunks, nil
}

// Close closes the backend.
func (m *Manager) Close() error {
	return m.backend.Close()
}

func (m *Manager) isKnown(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.known[name]
	return ok
}
