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

// Package ai provides abstractions for the model services used by ragdesk.
//
// The package defines the interfaces the rest of the module depends on:
//
//   - Embedder: turns text into vectors for indexing and retrieval
//   - Generator: produces chat replies from a prompt
//   - Provider: aggregates both for convenient initialization
//
// # Implementation Packages
//
//   - ai/ollama: native Ollama API (default)
//   - ai/openai: OpenAI-compatible APIs
//   - ai/langchain: shared langchaingo adapters used by both
//   - ai/mock: test doubles for unit testing without external dependencies
//
// Production constructors return interface types. Mock constructors return
// concrete types so tests can inject behavior and inspect calls.
//
// # Failure Contract
//
// Providers never substitute placeholder vectors or canned replies for a
// failed request. Every failure surfaces as an *EmbeddingError or a
// *GenerationError. When the service could not be reached or timed out the
// wrapped error matches ErrProviderUnavailable, and the request has already
// been retried according to Config.MaxAttempts.
//
// # Configuration
//
//	cfg := ai.NewConfig(
//	    ai.WithHost("http://localhost:11434"),
//	    ai.WithGenerationModel("mistral"),
//	    ai.WithRateLimit(10),
//	)
package ai
