// Package langchain adapts langchaingo clients to the ai interfaces.
//
// Both the ollama and openai providers construct langchaingo clients and
// hand them to the adapters here; only client construction differs.
package langchain

import (
	"context"
	"log/slog"

	"github.com/poiesic/ragdesk/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
)

// Embedder implements ai.Embedder over a langchaingo embeddings.Embedder.
type Embedder struct {
	embedder embeddings.Embedder
	model    string
	logger   *slog.Logger
}

// NewEmbedder wraps client, which must already be configured with the embedding model.
func NewEmbedder(client embeddings.EmbedderClient, model string) (*Embedder, error) {
	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}
	return &Embedder{
		embedder: embedder,
		model:    model,
		logger:   slog.Default().With("component", "langchain-embedder", "model", model),
	}, nil
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	e.logger.Debug("generating embedding for single text", "length", len(text))

	vectors, err := e.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, ai.NewEmbeddingError(e.model, err)
	}
	if len(vectors) == 0 {
		return nil, ai.NewEmbeddingError(e.model, ai.ErrEmptyEmbedding)
	}
	return vectors[0], nil
}

// EmbedTexts generates vector embeddings for multiple text strings in a batch.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, ai.NewEmbeddingError(e.model, err)
	}
	return vectors, nil
}

// Generator implements ai.Generator over a langchaingo model.
type Generator struct {
	model       llms.Model
	name        string
	temperature float64
	maxTokens   int
	logger      *slog.Logger
}

// NewGenerator wraps model. Every request is non-streaming and uses the
// given temperature and token cap.
func NewGenerator(model llms.Model, name string, temperature float64, maxTokens int) *Generator {
	return &Generator{
		model:       model,
		name:        name,
		temperature: temperature,
		maxTokens:   maxTokens,
		logger:      slog.Default().With("component", "langchain-generator", "model", name),
	}
}

// Generate returns the model's reply to prompt.
func (g *Generator) Generate(ctx context.Context, prompt string) (*ai.Generation, error) {
	g.logger.Debug("generating reply", "prompt_length", len(prompt))

	text, err := llms.GenerateFromSinglePrompt(ctx, g.model, prompt,
		llms.WithTemperature(g.temperature),
		llms.WithMaxTokens(g.maxTokens),
	)
	if err != nil {
		return nil, ai.NewGenerationError(g.name, err)
	}
	return &ai.Generation{Text: text, Model: g.name}, nil
}
