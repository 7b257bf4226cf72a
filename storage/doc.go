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

// Package storage provides the metadata store abstraction for ragdesk.
//
// Documents, tasks and chat turns are kept behind repository interfaces so
// that the ingestion pipeline and chat orchestrator never depend on a
// concrete backend. The badger subpackage is the embedded implementation.
//
// # Architecture
//
//   - DocumentRepository: document rows and their status machine
//   - TaskRepository: user tasks, including ones created from chat
//   - ChatRepository: immutable chat turns
//
// Records are encoded with mus-go (see serialization.go); the same codec
// encodes vector chunks for the embedded vector backend.
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//	docs := badger.NewDocumentRepository(backend)
//
// # Thread Safety
//
// All repository implementations must be thread-safe. Document status
// updates are compare-and-set: the stored status is re-read and checked in
// the writing transaction.
package storage
