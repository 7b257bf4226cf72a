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

// Package ingestion turns uploaded files into searchable workspace chunks.
//
// Pipeline.Ingest records a pending document and returns at once. A worker
// from the pipeline's pool then moves the document through
//
//	pending -> processing -> embedding -> completed
//
// reading and extracting the file, splitting it into overlapping chunks,
// embedding them and storing the vectors in the workspace collection. Any
// failure, including a panic, ends the document in failed with a reason.
// Jobs run on a background context, so a caller going away does not stop
// them; Wait blocks until every submitted job has finished.
//
// # Usage
//
//	pipeline, err := ingestion.NewPipeline(repos.Documents, provider.Embedder(), manager,
//	    ingestion.WithPoolSize(4),
//	)
//	if err != nil {
//	    return err
//	}
//	defer pipeline.Release()
//
//	doc, err := pipeline.Ingest(ctx, ingestion.DocumentRef{
//	    WorkspaceID: "acme",
//	    UserID:      "u1",
//	    Filename:    "q3.pdf",
//	    FilePath:    "/var/uploads/q3.pdf",
//	})
//	// doc.Status == core.StatusPending
package ingestion
