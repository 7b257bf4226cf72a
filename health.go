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

package ragdesk

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// ErrDatabaseClosed is reported by Health once the service is closed.
var ErrDatabaseClosed = errors.New("database is closed")

// Check is the outcome of one dependency check.
type Check struct {
	Name    string
	Err     error
	Elapsed time.Duration
}

// Health holds the checks run by Service.Health, in order.
type Health struct {
	Checks []Check
}

// OK reports whether every check passed.
func (h *Health) OK() bool {
	for _, c := range h.Checks {
		if c.Err != nil {
			return false
		}
	}
	return true
}

// Health checks the database, the vector store and both model services.
// The model checks send one short request each.
func (s *Service) Health(ctx context.Context) *Health {
	h := &Health{}
	run := func(name string, fn func() error) {
		start := time.Now()
		err := fn()
		h.Checks = append(h.Checks, Check{Name: name, Err: err, Elapsed: time.Since(start)})
		if err != nil {
			s.logger.Warn("health check failed", "check", name, "err", err)
		}
	}

	run("database", func() error {
		if s.backend.IsClosed() {
			return ErrDatabaseClosed
		}
		return s.backend.View(func(*badger.Txn) error { return nil })
	})
	run("vector store", func() error {
		_, err := s.store.HasCollection(ctx, "health")
		return err
	})
	run("embedder", func() error {
		_, err := s.provider.Embedder().EmbedText(ctx, "health check")
		return err
	})
	run("generator", func() error {
		_, err := s.provider.Generator().Generate(ctx, "Reply with OK.")
		return err
	})
	return h
}
