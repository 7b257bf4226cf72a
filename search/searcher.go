package search

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/ragdesk/ai"
	"github.com/poiesic/ragdesk/core"
)

const (
	// DefaultLimit is the number of chunks retrieved when the caller asks for none.
	DefaultLimit = 3

	// DefaultBudget caps the assembled context, in characters.
	DefaultBudget = 2000
)

// Store is the part of the vector store the searcher needs.
// *vectorstore.Manager implements it.
type Store interface {
	HasCollection(ctx context.Context, workspaceID string) (bool, error)
	Query(ctx context.Context, workspaceID string, embedding []float32, limit int) ([]core.ChunkMatch, error)
}

// Searcher retrieves context for queries from workspace collections.
type Searcher struct {
	store    Store
	embedder ai.Embedder
	budget   int
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithBudget sets the maximum context length in characters.
// Default is DefaultBudget.
func WithBudget(chars int) Option {
	return func(s *Searcher) error {
		if chars <= 0 {
			return ErrInvalidBudget
		}
		s.budget = chars
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(store Store, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		store:    store,
		embedder: embedder,
		budget:   DefaultBudget,
		logger:   slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "searcher")

	return s, nil
}

// Budget returns the context budget in characters.
func (s *Searcher) Budget() int {
	return s.budget
}

// Search returns the text of the limit chunks of workspaceID nearest to
// query, joined with newlines and truncated to the budget.
// A limit of zero or less means DefaultLimit.
func (s *Searcher) Search(ctx context.Context, query, workspaceID string, limit int) (string, error) {
	return s.SearchWithMonitor(ctx, query, workspaceID, limit, nil)
}

// SearchWithMonitor is Search with a monitor receiving callbacks at each stage.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query, workspaceID string, limit int, monitor SearchMonitor) (string, error) {
	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	monitor.Start(query, workspaceID)

	matches, err := s.matches(ctx, query, workspaceID, limit, monitor)
	if err != nil {
		return "", err
	}

	joined := Join(matches)
	result := Truncate(joined, s.budget)
	if len(result) < len(joined) {
		monitor.Truncated(utf8.RuneCountInString(joined), s.budget)
	}
	monitor.Finish(result)
	return result, nil
}

// Join concatenates the text of matches in order, one per line.
func Join(matches []core.ChunkMatch) string {
	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Text
	}
	return strings.Join(texts, "\n")
}

// Matches returns the ranked chunks behind Search, with their scores.
func (s *Searcher) Matches(ctx context.Context, query, workspaceID string, limit int) ([]core.ChunkMatch, error) {
	return s.matches(ctx, query, workspaceID, limit, &noopMonitor{})
}

func (s *Searcher) matches(ctx context.Context, query, workspaceID string, limit int, monitor SearchMonitor) ([]core.ChunkMatch, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	ok, err := s.store.HasCollection(ctx, workspaceID)
	if err != nil {
		s.logger.Error("error checking collection", "workspace_id", workspaceID, "err", err)
		return nil, err
	}
	if !ok {
		s.logger.Debug("workspace has no collection", "workspace_id", workspaceID)
		monitor.NoCollection(workspaceID)
		return nil, nil
	}

	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}
	monitor.AfterEmbedding(len(embedding))

	matches, err := s.store.Query(ctx, workspaceID, embedding, limit)
	if err != nil {
		s.logger.Error("error querying for similar chunks", "workspace_id", workspaceID, "err", err)
		return nil, err
	}
	monitor.AfterQuery(matches)
	s.logger.Debug("retrieved chunks", "workspace_id", workspaceID, "count", len(matches))
	return matches, nil
}

// Truncate returns the first chars characters of s.
func Truncate(s string, chars int) string {
	if chars <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == chars {
			return s[:pos]
		}
		i++
	}
	return s
}
