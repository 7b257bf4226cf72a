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

// Package config loads ragdesk's YAML configuration.
//
// Values are resolved in three layers: built-in defaults, then the YAML
// file, then environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/poiesic/ragdesk/ai"
	"gopkg.in/yaml.v3"
)

// Vector store backends.
const (
	BackendBadger   = "badger"
	BackendPGVector = "pgvector"
)

// Environment variables that override file values.
const (
	EnvOllamaURL        = "OLLAMA_URL"
	EnvOllamaModel      = "OLLAMA_MODEL"
	EnvOllamaEmbedModel = "OLLAMA_EMBED_MODEL"
	EnvDatabaseURL      = "DATABASE_URL"
	EnvDataDir          = "RAGDESK_DATA_DIR"
)

// Config is the root configuration.
type Config struct {
	// DataDir holds the Badger database.
	DataDir     string            `yaml:"data_dir"`
	AI          AIConfig          `yaml:"ai"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Ingestion   IngestionConfig   `yaml:"ingestion"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
}

// AIConfig configures the model provider.
type AIConfig struct {
	Provider string `yaml:"provider"`
	// Host is used for whichever of EmbeddingHost and GenerationHost is unset.
	Host              string        `yaml:"host"`
	EmbeddingHost     string        `yaml:"embedding_host,omitempty"`
	GenerationHost    string        `yaml:"generation_host,omitempty"`
	EmbeddingModel    string        `yaml:"embedding_model"`
	GenerationModel   string        `yaml:"generation_model"`
	APIKeyEnv         string        `yaml:"api_key_env,omitempty"`
	Temperature       float64       `yaml:"temperature"`
	MaxTokens         int           `yaml:"max_tokens"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second,omitempty"`
	MaxAttempts       int           `yaml:"max_attempts"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
}

// VectorStoreConfig selects where chunk vectors live.
type VectorStoreConfig struct {
	Backend string `yaml:"backend"`
	// DSN is the PostgreSQL connection string for the pgvector backend.
	DSN        string `yaml:"dsn,omitempty"`
	Dimensions int    `yaml:"dimensions,omitempty"`
	// EfSearch is the HNSW candidate list size used by pgvector queries.
	EfSearch int `yaml:"ef_search,omitempty"`
}

// IngestionConfig tunes the ingestion pipeline.
type IngestionConfig struct {
	PoolSize       int `yaml:"pool_size"`
	ChunkSize      int `yaml:"chunk_size"`
	ChunkOverlap   int `yaml:"chunk_overlap"`
	EmbedBatchSize int `yaml:"embed_batch_size"`
}

// RetrievalConfig tunes chat retrieval.
type RetrievalConfig struct {
	Limit         int `yaml:"limit"`
	ContextBudget int `yaml:"context_budget"`
}

// Default returns the built-in configuration without environment overrides.
func Default() *Config {
	a := ai.DefaultConfig()
	return &Config{
		DataDir: "data",
		AI: AIConfig{
			Provider:        a.Provider,
			Host:            a.EmbeddingHost,
			EmbeddingModel:  a.EmbeddingModel,
			GenerationModel: a.GenerationModel,
			Temperature:     a.Temperature,
			MaxTokens:       a.MaxTokens,
			Timeout:         a.Timeout,
			MaxAttempts:     a.MaxAttempts,
			RetryDelay:      a.RetryDelay,
		},
		VectorStore: VectorStoreConfig{Backend: BackendBadger},
		Ingestion: IngestionConfig{
			PoolSize:       max(runtime.NumCPU()/2, 1),
			ChunkSize:      500,
			ChunkOverlap:   50,
			EmbedBatchSize: 32,
		},
		Retrieval: RetrievalConfig{
			Limit:         3,
			ContextBudget: 2000,
		},
	}
}

// Load reads the config at path over the defaults and applies environment
// overrides. Keys absent from the file keep their default. An empty path
// searches ./ragdesk.yaml and then ~/.config/ragdesk/config.yaml; when
// neither exists the defaults are used.
func Load(path string) (*Config, error) {
	if path == "" {
		path = findConfig()
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file %s: %w", path, err)
		}
	}

	mergeWithEnv(cfg)
	if cfg.AI.APIKeyEnv == "" && cfg.AI.Provider == ai.ProviderOpenAI {
		cfg.AI.APIKeyEnv = "OPENAI_API_KEY"
	}
	return cfg, nil
}

// Save writes cfg to path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func findConfig() string {
	locations := []string{"ragdesk.yaml", "ragdesk.yml"}
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations, filepath.Join(home, ".config", "ragdesk", "config.yaml"))
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

func mergeWithEnv(cfg *Config) {
	if v := os.Getenv(EnvOllamaURL); v != "" {
		cfg.AI.Host = v
		cfg.AI.EmbeddingHost = ""
		cfg.AI.GenerationHost = ""
	}
	if v := os.Getenv(EnvOllamaModel); v != "" {
		cfg.AI.GenerationModel = v
	}
	if v := os.Getenv(EnvOllamaEmbedModel); v != "" {
		cfg.AI.EmbeddingModel = v
	}
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		cfg.VectorStore.DSN = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.DataDir = v
	}
}

// AIConfig returns the provider configuration as an *ai.Config.
// The API key is read from the environment variable named by APIKeyEnv.
func (c *Config) AIConfig() *ai.Config {
	a := c.AI
	embedHost, genHost := a.EmbeddingHost, a.GenerationHost
	if embedHost == "" {
		embedHost = a.Host
	}
	if genHost == "" {
		genHost = a.Host
	}
	opts := []ai.ConfigOption{
		ai.WithProvider(a.Provider),
		ai.WithEmbeddingHost(embedHost),
		ai.WithGenerationHost(genHost),
		ai.WithEmbeddingModel(a.EmbeddingModel),
		ai.WithGenerationModel(a.GenerationModel),
		ai.WithTemperature(a.Temperature),
		ai.WithMaxTokens(a.MaxTokens),
		ai.WithTimeout(a.Timeout),
		ai.WithRateLimit(a.RequestsPerSecond),
		ai.WithRetry(a.MaxAttempts, a.RetryDelay),
	}
	if a.APIKeyEnv != "" {
		opts = append(opts, ai.WithAPIKey(os.Getenv(a.APIKeyEnv)))
	}
	return ai.NewConfig(opts...)
}

// ValidationError describes one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Validate reports every invalid setting. A nil result means the config is usable.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.DataDir == "" {
		add("data_dir", "is required")
	}
	if err := c.AIConfig().Validate(); err != nil {
		add("ai", "%v", err)
	}

	switch c.VectorStore.Backend {
	case BackendBadger:
	case BackendPGVector:
		if c.VectorStore.DSN == "" {
			add("vector_store.dsn", "is required for the %s backend (or set %s)", BackendPGVector, EnvDatabaseURL)
		}
	default:
		add("vector_store.backend", "must be %q or %q, got %q", BackendBadger, BackendPGVector, c.VectorStore.Backend)
	}
	if c.VectorStore.Dimensions < 0 {
		add("vector_store.dimensions", "must not be negative")
	}
	if c.VectorStore.EfSearch < 0 {
		add("vector_store.ef_search", "must not be negative")
	}

	in := c.Ingestion
	if in.PoolSize <= 0 {
		add("ingestion.pool_size", "must be positive")
	}
	if in.ChunkSize <= 0 {
		add("ingestion.chunk_size", "must be positive")
	}
	if in.ChunkOverlap < 0 || (in.ChunkSize > 0 && in.ChunkOverlap >= in.ChunkSize) {
		add("ingestion.chunk_overlap", "must be at least 0 and less than chunk_size (%d)", in.ChunkSize)
	}
	if in.EmbedBatchSize <= 0 {
		add("ingestion.embed_batch_size", "must be positive")
	}

	if c.Retrieval.Limit <= 0 {
		add("retrieval.limit", "must be positive")
	}
	if c.Retrieval.ContextBudget <= 0 {
		add("retrieval.context_budget", "must be positive")
	}
	return errs
}
