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

package openai

import (
	"log/slog"

	"github.com/poiesic/ragdesk/ai"
	"github.com/poiesic/ragdesk/ai/langchain"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider talks to OpenAI or any server exposing its /v1 API.
type Provider struct {
	embedder  ai.Embedder
	generator ai.Generator
	logger    *slog.Logger
}

// token returns the bearer token for config. Local compatible servers
// ignore it but the client refuses an empty one.
func token(config *ai.Config) string {
	if config.APIKey == "" {
		return "none"
	}
	return config.APIKey
}

// NewProvider validates config and creates one client per service, so
// embedding and generation may point at different hosts.
func NewProvider(config *ai.Config) (ai.Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedClient, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(token(config)),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}
	embedder, err := langchain.NewEmbedder(embedClient, config.EmbeddingModel)
	if err != nil {
		return nil, err
	}

	genClient, err := openai.New(
		openai.WithBaseURL(config.GenerationHost),
		openai.WithToken(token(config)),
		openai.WithModel(config.GenerationModel),
	)
	if err != nil {
		return nil, err
	}

	return &Provider{
		embedder:  ai.GuardEmbedder(embedder, config),
		generator: ai.GuardGenerator(langchain.NewGenerator(genClient, config.GenerationModel, config.Temperature, config.MaxTokens), config),
		logger:    slog.Default().With("component", "openai-provider", "generation_model", config.GenerationModel),
	}, nil
}

func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

func (p *Provider) Generator() ai.Generator {
	return p.generator
}

// Close is a no-op; the HTTP clients hold no resources.
func (p *Provider) Close() error {
	p.logger.Debug("closing provider")
	return nil
}
