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

package core

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Metadata keys attached to every stored chunk.
const (
	MetaDocumentID = "document_id"
	MetaChunkIndex = "chunk_index"
	MetaFilename   = "filename"
	MetaFileType   = "file_type"
	MetaUserID     = "user_id"
)

// NewID returns a fresh random identifier for documents, tasks and chat turns.
func NewID() string {
	return uuid.NewString()
}

// Document is the metadata row for an uploaded file.
// The bytes themselves live at FilePath, written by the upload collaborator.
type Document struct {
	ID           string
	WorkspaceID  string
	UserID       string
	Filename     string
	FilePath     string
	Size         int64
	FileType     string
	Status       DocumentStatus
	StatusReason string // Why processing failed; empty otherwise
	ChunkCount   int
	Metadata     map[string]string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    time.Time // Non-zero while a delete is in progress
}

// Deleted reports whether the document has been marked for deletion.
func (d *Document) Deleted() bool {
	return !d.DeletedAt.IsZero()
}

// FileTypeOf derives the lower-case extension of filename without the dot.
// Files without an extension are typed "unknown".
func FileTypeOf(filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		return "unknown"
	}
	return ext
}

// Chunk is one window of document text stored in a workspace collection.
type Chunk struct {
	ID         string
	DocumentID string
	Index      int
	Text       string
	Vector     []float32
	Metadata   map[string]string
}

// ChunkID builds the collection-wide identifier of the index-th chunk of a document.
func ChunkID(documentID string, index int) string {
	return documentID + "_" + strconv.Itoa(index)
}

// ChunkMatch is a chunk returned from a similarity query.
type ChunkMatch struct {
	Chunk
	Score float32
}

// ChatTurn is one persisted user message and the assistant's reply.
type ChatTurn struct {
	ID          string
	UserID      string
	WorkspaceID string
	Message     string
	Response    string
	ToolsCalled []string // In invocation order
	Metadata    map[string]string
	CreatedAt   time.Time
}

// Task is a user to-do item, possibly created from chat.
type Task struct {
	ID              string
	UserID          string
	Title           string
	Description     string
	DueDate         time.Time // Zero when no due date is set
	Priority        TaskPriority
	Status          TaskStatus
	LinkedDocuments []string
	CreatedByAI     bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TaskPriority ranks a task.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// TaskStatus tracks task progress.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

// ApplyDefaults fills priority and status when they are unset.
func (t *Task) ApplyDefaults() {
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Status == "" {
		t.Status = TaskTodo
	}
}
