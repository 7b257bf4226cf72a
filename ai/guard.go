package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// guard applies the per-request policy shared by every provider:
// rate limiting, a timeout per attempt, and retries while the provider is unavailable.
type guard struct {
	limiter     *rate.Limiter
	timeout     time.Duration
	maxAttempts int
	retryDelay  time.Duration
}

func newGuard(cfg *Config, limited bool) guard {
	g := guard{
		timeout:     cfg.Timeout,
		maxAttempts: max(cfg.MaxAttempts, 1),
		retryDelay:  cfg.RetryDelay,
	}
	if limited && cfg.RequestsPerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return g
}

func (g guard) run(ctx context.Context, op func(ctx context.Context) error) error {
	return RetryWithBackoff(ctx, func() error {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return Permanent(err)
			}
		}
		attemptCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		err := op(attemptCtx)
		if err != nil && !IsUnavailable(err) {
			return Permanent(err)
		}
		return err
	}, g.maxAttempts, g.retryDelay)
}

type guardedEmbedder struct {
	inner  Embedder
	model  string
	guard  guard
	logger *slog.Logger
}

// GuardEmbedder wraps inner with cfg's rate limit, timeout and retry policy.
// Every error it returns is an *EmbeddingError, and empty vectors are
// reported as ErrEmptyEmbedding rather than passed on.
func GuardEmbedder(inner Embedder, cfg *Config) Embedder {
	return &guardedEmbedder{
		inner:  inner,
		model:  cfg.EmbeddingModel,
		guard:  newGuard(cfg, true),
		logger: slog.Default().With("component", "embedder", "model", cfg.EmbeddingModel),
	}
}

func (e *guardedEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := e.guard.run(ctx, func(ctx context.Context) error {
		var err error
		vector, err = e.inner.EmbedText(ctx, text)
		if err != nil {
			return err
		}
		if len(vector) == 0 {
			return ErrEmptyEmbedding
		}
		return nil
	})
	if err != nil {
		e.logger.Error("failed to generate embedding", "length", len(text), "err", err)
		return nil, NewEmbeddingError(e.model, err)
	}
	return vector, nil
}

func (e *guardedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var vectors [][]float32
	err := e.guard.run(ctx, func(ctx context.Context) error {
		var err error
		vectors, err = e.inner.EmbedTexts(ctx, texts)
		if err != nil {
			return err
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("%w: got %d for %d inputs", ErrEmbeddingCount, len(vectors), len(texts))
		}
		for i, v := range vectors {
			if len(v) == 0 {
				return fmt.Errorf("%w: input %d", ErrEmptyEmbedding, i)
			}
		}
		return nil
	})
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, NewEmbeddingError(e.model, err)
	}
	return vectors, nil
}

type guardedGenerator struct {
	inner  Generator
	model  string
	guard  guard
	logger *slog.Logger
}

// GuardGenerator wraps inner with cfg's timeout and retry policy.
// Every error it returns is a *GenerationError.
func GuardGenerator(inner Generator, cfg *Config) Generator {
	return &guardedGenerator{
		inner:  inner,
		model:  cfg.GenerationModel,
		guard:  newGuard(cfg, false),
		logger: slog.Default().With("component", "generator", "model", cfg.GenerationModel),
	}
}

func (g *guardedGenerator) Generate(ctx context.Context, prompt string) (*Generation, error) {
	var gen *Generation
	err := g.guard.run(ctx, func(ctx context.Context) error {
		var err error
		gen, err = g.inner.Generate(ctx, prompt)
		if err == nil && gen == nil {
			return Permanent(ErrEmptyGeneration)
		}
		return err
	})
	if err != nil {
		g.logger.Error("generation failed", "prompt_length", len(prompt), "err", err)
		return nil, NewGenerationError(g.model, err)
	}
	gen.Text = strings.TrimSpace(gen.Text)
	if gen.Model == "" {
		gen.Model = g.model
	}
	return gen, nil
}
