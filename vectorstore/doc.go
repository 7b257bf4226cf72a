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

// Package vectorstore keeps one similarity-searchable collection of chunk
// embeddings per workspace.
//
// A Manager maps workspace ids to collection names ("workspace_<id>") and
// delegates storage to a Backend:
//
//   - vectorstore/badger: brute-force cosine search inside the metadata BadgerDB
//   - vectorstore/pgvector: PostgreSQL with the pgvector extension
//
// Chunk ids are "<documentID>_<index>", so documents sharing a workspace
// never collide. Every chunk carries document_id and chunk_index metadata,
// which DeleteDocument uses to find a document's vectors.
//
// # Usage
//
//	manager := vectorstore.NewManager(backend)
//	ids, err := manager.AddChunks(ctx, "acme", docID, texts, vectors, map[string]string{"filename": "q3.pdf"})
//	matches, err := manager.Query(ctx, "acme", queryVector, 3)
//	removed, err := manager.DeleteDocument(ctx, "acme", docID)
package vectorstore
