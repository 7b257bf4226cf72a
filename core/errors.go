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

import "errors"

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidTask indicates a Task failed validation.
	ErrInvalidTask = errors.New("invalid task")

	// ErrInvalidChatTurn indicates a ChatTurn failed validation.
	ErrInvalidChatTurn = errors.New("invalid chat turn")

	// ErrInvalidWorkspaceID indicates a workspace id cannot name a collection.
	ErrInvalidWorkspaceID = errors.New("invalid workspace id")

	// ErrInvalidStatus indicates an unknown document status.
	ErrInvalidStatus = errors.New("invalid document status")

	// ErrInvalidStatusTransition indicates a status change that would move a document backward
	// or out of a terminal state.
	ErrInvalidStatusTransition = errors.New("invalid status transition")

	// ErrEmptyContent indicates a required text field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyID indicates an entity has no identifier.
	ErrEmptyID = errors.New("id cannot be empty")

	// ErrEmptyUserID indicates an entity is not owned by any user.
	ErrEmptyUserID = errors.New("user id cannot be empty")

	// ErrInvalidPriority indicates an unknown task priority.
	ErrInvalidPriority = errors.New("invalid task priority")

	// ErrInvalidTaskStatus indicates an unknown task status.
	ErrInvalidTaskStatus = errors.New("invalid task status")
)
