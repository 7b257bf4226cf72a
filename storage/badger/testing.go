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

package badger

// Repositories bundles the metadata repositories sharing one backend.
type Repositories struct {
	Backend   *Backend
	Documents *DocumentRepository
	Tasks     *TaskRepository
	Chats     *ChatRepository
}

// NewRepositories creates every metadata repository over backend.
func NewRepositories(backend *Backend) *Repositories {
	return &Repositories{
		Backend:   backend,
		Documents: NewDocumentRepository(backend),
		Tasks:     NewTaskRepository(backend),
		Chats:     NewChatRepository(backend),
	}
}

// NewMemoryRepositories creates in-memory repositories for testing.
// Caller must close the backend when done.
func NewMemoryRepositories() (*Repositories, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}
	return NewRepositories(backend), nil
}
