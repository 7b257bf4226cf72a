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

package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

var (
	// ErrProviderUnavailable indicates the model service could not be reached or timed out.
	// Errors matching it are retried.
	ErrProviderUnavailable = errors.New("ai provider unavailable")

	// ErrEmptyEmbedding indicates the provider returned no vector for an input.
	ErrEmptyEmbedding = errors.New("provider returned an empty embedding")

	// ErrEmptyGeneration indicates the provider returned no reply.
	ErrEmptyGeneration = errors.New("provider returned no generation")

	// ErrEmbeddingCount indicates a batch reply whose length differs from the request.
	ErrEmbeddingCount = errors.New("provider returned the wrong number of embeddings")

	// ErrInvalidMaxAttempts indicates an invalid retry attempt count.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrInvalidConfig indicates the AI configuration is incomplete or inconsistent.
	ErrInvalidConfig = errors.New("invalid ai config")
)

// EmbeddingError reports a failed embedding request.
type EmbeddingError struct {
	Model string
	Err   error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding with %s: %v", e.Model, e.Err)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}

// GenerationError reports a failed generation request.
type GenerationError struct {
	Model string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation with %s: %v", e.Model, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// NewEmbeddingError wraps err for model, marking transport failures as ErrProviderUnavailable.
// An err that already is an *EmbeddingError is returned unchanged.
func NewEmbeddingError(model string, err error) error {
	var embedErr *EmbeddingError
	if errors.As(err, &embedErr) {
		return err
	}
	return &EmbeddingError{Model: model, Err: classify(err)}
}

// NewGenerationError wraps err for model, marking transport failures as ErrProviderUnavailable.
// An err that already is a *GenerationError is returned unchanged.
func NewGenerationError(model string, err error) error {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return err
	}
	return &GenerationError{Model: model, Err: classify(err)}
}

// IsUnavailable reports whether err means the provider could not be reached.
func IsUnavailable(err error) bool {
	if errors.Is(err, ErrProviderUnavailable) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func classify(err error) error {
	if IsUnavailable(err) && !errors.Is(err, ErrProviderUnavailable) {
		return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	return err
}
