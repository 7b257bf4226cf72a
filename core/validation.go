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
	"fmt"
)

// MaxWorkspaceIDLength keeps "workspace_" + id within the identifier limits of every vector backend.
const MaxWorkspaceIDLength = 53

// ValidateWorkspaceID checks that id can be embedded in a collection name.
// Allowed characters are ASCII letters, digits, '_' and '-'.
func ValidateWorkspaceID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidWorkspaceID)
	}
	if len(id) > MaxWorkspaceIDLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidWorkspaceID, MaxWorkspaceIDLength)
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return fmt.Errorf("%w: character %q not allowed", ErrInvalidWorkspaceID, r)
		}
	}
	return nil
}

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - ID, UserID and Filename must not be empty
//   - WorkspaceID must be a valid workspace id
//   - Status must be a known status
//
// NOT validated (populated by the pipeline):
//   - ChunkCount
//   - StatusReason
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}
	if doc.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyID)
	}
	if doc.UserID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyUserID)
	}
	if doc.Filename == "" {
		return fmt.Errorf("%w: filename: %w", ErrInvalidDocument, ErrEmptyContent)
	}
	if err := ValidateWorkspaceID(doc.WorkspaceID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if !doc.Status.Valid() {
		return fmt.Errorf("%w: %w: %q", ErrInvalidDocument, ErrInvalidStatus, doc.Status)
	}
	return nil
}

// ValidateTask validates a Task. Defaults must already be applied.
func ValidateTask(task *Task) error {
	if task == nil {
		return fmt.Errorf("%w: task is nil", ErrInvalidTask)
	}
	if task.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidTask, ErrEmptyID)
	}
	if task.UserID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidTask, ErrEmptyUserID)
	}
	if task.Title == "" {
		return fmt.Errorf("%w: title: %w", ErrInvalidTask, ErrEmptyContent)
	}
	switch task.Priority {
	case PriorityLow, PriorityMedium, PriorityHigh:
	default:
		return fmt.Errorf("%w: %w: %q", ErrInvalidTask, ErrInvalidPriority, task.Priority)
	}
	switch task.Status {
	case TaskTodo, TaskInProgress, TaskDone:
	default:
		return fmt.Errorf("%w: %w: %q", ErrInvalidTask, ErrInvalidTaskStatus, task.Status)
	}
	return nil
}

// ValidateChatTurn validates a ChatTurn before it is persisted.
func ValidateChatTurn(turn *ChatTurn) error {
	if turn == nil {
		return fmt.Errorf("%w: chat turn is nil", ErrInvalidChatTurn)
	}
	if turn.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChatTurn, ErrEmptyID)
	}
	if turn.UserID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChatTurn, ErrEmptyUserID)
	}
	if turn.Message == "" {
		return fmt.Errorf("%w: message: %w", ErrInvalidChatTurn, ErrEmptyContent)
	}
	return nil
}
