package storage

import (
	"context"

	"github.com/poiesic/ragdesk/core"
)

// StatusUpdate describes a document status change.
type StatusUpdate struct {
	Status     core.DocumentStatus
	Reason     string // Failure reason; recorded only for failed
	ChunkCount int    // Recorded only for completed
}

// DocumentRepository provides operations for document metadata rows.
// Implementations must be thread-safe.
type DocumentRepository interface {
	// AddDocument inserts a new document.
	// Sets CreatedAt and UpdatedAt if not already set.
	// Returns ErrDuplicateKey if a document with the same ID exists.
	AddDocument(ctx context.Context, doc *core.Document) (*core.Document, error)

	// GetDocument retrieves a single document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id string) (*core.Document, error)

	// ListDocuments returns a workspace's documents, most recently created first.
	// Documents marked deleted are skipped. A limit <= 0 returns all.
	ListDocuments(ctx context.Context, workspaceID string, limit int) ([]*core.Document, error)

	// ListDocumentsByStatus returns every non-deleted document in one of the given states.
	ListDocumentsByStatus(ctx context.Context, statuses ...core.DocumentStatus) ([]*core.Document, error)

	// UpdateDocumentStatus atomically moves a document to a new status.
	// The transition is checked against the stored status inside the same
	// transaction; concurrent writers are retried. Returns
	// core.ErrInvalidStatusTransition for backward moves or moves out of a
	// terminal state and ErrNotFound for unknown documents.
	UpdateDocumentStatus(ctx context.Context, id string, update StatusUpdate) (*core.Document, error)

	// MarkDocumentDeleted records that a delete is in progress.
	// Marking an already-marked document is a no-op.
	MarkDocumentDeleted(ctx context.Context, id string) (*core.Document, error)

	// DeleteDocument removes the metadata row and its indices.
	// Returns ErrNotFound if the document doesn't exist.
	DeleteDocument(ctx context.Context, id string) error
}

// TaskRepository provides operations for tasks.
type TaskRepository interface {
	// AddTask inserts a task, applying default priority and status.
	AddTask(ctx context.Context, task *core.Task) (*core.Task, error)

	// GetTask retrieves a task by ID.
	// Returns ErrNotFound if the task doesn't exist.
	GetTask(ctx context.Context, id string) (*core.Task, error)

	// ListTasks returns a user's tasks, most recently created first.
	// A limit <= 0 returns all.
	ListTasks(ctx context.Context, userID string, limit int) ([]*core.Task, error)

	// UpdateTask replaces an existing task and bumps UpdatedAt.
	// Returns ErrNotFound if the task doesn't exist.
	UpdateTask(ctx context.Context, task *core.Task) (*core.Task, error)

	// DeleteTask removes a task.
	// Returns ErrNotFound if the task doesn't exist.
	DeleteTask(ctx context.Context, id string) error
}

// ChatRepository provides operations for chat turns.
// Turns are immutable once added.
type ChatRepository interface {
	// AddChatTurn persists a turn. Sets CreatedAt if not already set.
	AddChatTurn(ctx context.Context, turn *core.ChatTurn) (*core.ChatTurn, error)

	// GetChatTurn retrieves a turn by ID.
	// Returns ErrNotFound if the turn doesn't exist.
	GetChatTurn(ctx context.Context, id string) (*core.ChatTurn, error)

	// ListChatTurns returns a user's turns, most recent first.
	// A limit <= 0 returns all.
	ListChatTurns(ctx context.Context, userID string, limit int) ([]*core.ChatTurn, error)
}
