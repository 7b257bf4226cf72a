// Package ollama provides AI service implementations backed by a native Ollama server.
//
// Unlike ai/openai, which talks to Ollama through its /v1 compatibility
// layer, this package uses Ollama's own API. It is the default provider.
package ollama

import (
	"log/slog"

	"github.com/poiesic/ragdesk/ai"
	"github.com/poiesic/ragdesk/ai/langchain"
	"github.com/tmc/langchaingo/llms/ollama"
)

// Provider implements ai.Provider against an Ollama server.
type Provider struct {
	embedder  ai.Embedder
	generator ai.Generator
	logger    *slog.Logger
}

// NewProvider validates config and creates embedding and generation clients.
// Nothing is contacted until the first request.
func NewProvider(config *ai.Config) (ai.Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedClient, err := ollama.New(
		ollama.WithServerURL(config.EmbeddingHost),
		ollama.WithModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}
	embedder, err := langchain.NewEmbedder(embedClient, config.EmbeddingModel)
	if err != nil {
		return nil, err
	}

	genClient, err := ollama.New(
		ollama.WithServerURL(config.GenerationHost),
		ollama.WithModel(config.GenerationModel),
	)
	if err != nil {
		return nil, err
	}
	generator := langchain.NewGenerator(genClient, config.GenerationModel, config.Temperature, config.MaxTokens)

	logger := slog.Default().With("component", "ollama-provider")
	logger.Debug("created provider",
		"embedding_host", config.EmbeddingHost,
		"embedding_model", config.EmbeddingModel,
		"generation_host", config.GenerationHost,
		"generation_model", config.GenerationModel)

	return &Provider{
		embedder:  ai.GuardEmbedder(embedder, config),
		generator: ai.GuardGenerator(generator, config),
		logger:    logger,
	}, nil
}

func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

func (p *Provider) Generator() ai.Generator {
	return p.generator
}

func (p *Provider) Close() error {
	p.logger.Debug("closing ollama provider")
	return nil
}
