package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsUnavailable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"sentinel", ErrProviderUnavailable, true},
		{"deadline", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("post: %w", context.DeadlineExceeded), true},
		{"connection refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"connection reset", syscall.ECONNRESET, true},
		{"net error", &net.OpError{Op: "dial", Err: errors.New("no route")}, true},
		{"canceled", context.Canceled, false},
		{"other", errors.New("model not found"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUnavailable(tt.err))
		})
	}
}

func TestNewEmbeddingError(t *testing.T) {
	t.Run("classifies transport failures", func(t *testing.T) {
		err := NewEmbeddingError("nomic", syscall.ECONNREFUSED)

		var embedErr *EmbeddingError
		assert.ErrorAs(t, err, &embedErr)
		assert.Equal(t, "nomic", embedErr.Model)
		assert.ErrorIs(t, err, ErrProviderUnavailable)
		assert.ErrorIs(t, err, syscall.ECONNREFUSED)
	})

	t.Run("keeps other failures", func(t *testing.T) {
		cause := errors.New("bad request")
		err := NewEmbeddingError("nomic", cause)
		assert.ErrorIs(t, err, cause)
		assert.NotErrorIs(t, err, ErrProviderUnavailable)
		assert.Contains(t, err.Error(), "nomic")
	})

	t.Run("does not double wrap", func(t *testing.T) {
		inner := NewEmbeddingError("inner", errors.New("x"))
		assert.Same(t, inner, NewEmbeddingError("outer", inner))
	})
}

func TestNewGenerationError(t *testing.T) {
	err := NewGenerationError("mistral", context.DeadlineExceeded)

	var genErr *GenerationError
	assert.ErrorAs(t, err, &genErr)
	assert.Equal(t, "mistral", genErr.Model)
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	assert.Same(t, err, NewGenerationError("other", err))
}
