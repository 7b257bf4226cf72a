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

// Package chunker splits extracted text into overlapping windows of
// whitespace-delimited tokens.
package chunker

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultSize is the number of tokens per chunk.
	DefaultSize = 500
	// DefaultOverlap is the number of tokens shared by consecutive chunks.
	DefaultOverlap = 50
)

// ErrInvalidConfig indicates a size/overlap pair that cannot make progress.
var ErrInvalidConfig = errors.New("invalid chunker config")

// Chunker holds a validated window configuration.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker. overlap must be non-negative and smaller than size.
func New(size, overlap int) (*Chunker, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the window size in tokens.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the number of tokens shared between consecutive windows.
func (c *Chunker) Overlap() int { return c.overlap }

// Split breaks text into windows. See the package-level Split.
func (c *Chunker) Split(text string) []string {
	return split(strings.Fields(text), c.size, c.overlap)
}

// Split breaks text into windows of at most size tokens, starting a new
// window every size-overlap tokens. Tokens are rejoined with single spaces.
// The last window ends at the final token; text without tokens yields no chunks.
func Split(text string, size, overlap int) ([]string, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}
	return split(strings.Fields(text), size, overlap), nil
}

func validate(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: size %d must be positive", ErrInvalidConfig, size)
	}
	if overlap < 0 {
		return fmt.Errorf("%w: overlap %d must not be negative", ErrInvalidConfig, overlap)
	}
	if overlap >= size {
		return fmt.Errorf("%w: overlap %d must be smaller than size %d", ErrInvalidConfig, overlap, size)
	}
	return nil
}

func split(tokens []string, size, overlap int) []string {
	if len(tokens) == 0 {
		return nil
	}
	stride := size - overlap
	chunks := make([]string, 0, len(tokens)/stride+1)
	for start := 0; start < len(tokens); start += stride {
		end := min(start+size, len(tokens))
		chunks = append(chunks, strings.Join(tokens[start:end], " "))
		if end == len(tokens) {
			break
		}
	}
	return chunks
}
