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
	"fmt"

	"github.com/poiesic/ragdesk/core"
	"github.com/poiesic/ragdesk/storage"
)

// TaskFilter narrows Tasks. Zero fields match every task.
type TaskFilter struct {
	Status   core.TaskStatus
	Priority core.TaskPriority
	Limit    int // Applied after filtering; <= 0 returns all
}

func (f TaskFilter) match(t *core.Task) bool {
	return (f.Status == "" || t.Status == f.Status) &&
		(f.Priority == "" || t.Priority == f.Priority)
}

// TaskUpdate lists the task fields to change. Empty fields are left as they are.
type TaskUpdate struct {
	Title    string
	Status   core.TaskStatus
	Priority core.TaskPriority
}

// Usage counts a user's assistant activity.
type Usage struct {
	Chats       int
	Tasks       int
	TasksByAI   int
	OpenTasks   int
	ToolsCalled map[string]int
}

// Tasks lists a user's tasks matching filter, newest first.
func (s *Service) Tasks(ctx context.Context, userID string, filter TaskFilter) ([]*core.Task, error) {
	if userID == "" {
		return nil, core.ErrEmptyUserID
	}
	if filter.Status == "" && filter.Priority == "" {
		return s.repos.Tasks.ListTasks(ctx, userID, filter.Limit)
	}
	all, err := s.repos.Tasks.ListTasks(ctx, userID, 0)
	if err != nil {
		return nil, err
	}
	var tasks []*core.Task
	for _, t := range all {
		if !filter.match(t) {
			continue
		}
		tasks = append(tasks, t)
		if filter.Limit > 0 && len(tasks) == filter.Limit {
			break
		}
	}
	return tasks, nil
}

// AddTask creates a task for task.UserID. Priority and status default to
// medium and todo.
func (s *Service) AddTask(ctx context.Context, task *core.Task) (*core.Task, error) {
	if task.ID == "" {
		task.ID = core.NewID()
	}
	return s.repos.Tasks.AddTask(ctx, task)
}

// Task returns one of userID's tasks. Tasks owned by other users are not found.
func (s *Service) Task(ctx context.Context, userID, id string) (*core.Task, error) {
	task, err := s.repos.Tasks.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.UserID != userID {
		return nil, fmt.Errorf("%w: task %s", storage.ErrNotFound, id)
	}
	return task, nil
}

// UpdateTask applies update to one of userID's tasks.
func (s *Service) UpdateTask(ctx context.Context, userID, id string, update TaskUpdate) (*core.Task, error) {
	task, err := s.Task(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if update.Title != "" {
		task.Title = update.Title
	}
	if update.Status != "" {
		task.Status = update.Status
	}
	if update.Priority != "" {
		task.Priority = update.Priority
	}
	return s.repos.Tasks.UpdateTask(ctx, task)
}

// DeleteTask removes one of userID's tasks.
func (s *Service) DeleteTask(ctx context.Context, userID, id string) error {
	if _, err := s.Task(ctx, userID, id); err != nil {
		return err
	}
	return s.repos.Tasks.DeleteTask(ctx, id)
}

// ChatHistory lists a user's chat turns, newest first. A limit <= 0 returns all.
func (s *Service) ChatHistory(ctx context.Context, userID string, limit int) ([]*core.ChatTurn, error) {
	if userID == "" {
		return nil, core.ErrEmptyUserID
	}
	return s.repos.Chats.ListChatTurns(ctx, userID, limit)
}

// ChatTurn returns one of userID's chat turns.
func (s *Service) ChatTurn(ctx context.Context, userID, id string) (*core.ChatTurn, error) {
	turn, err := s.repos.Chats.GetChatTurn(ctx, id)
	if err != nil {
		return nil, err
	}
	if turn.UserID != userID {
		return nil, fmt.Errorf("%w: chat turn %s", storage.ErrNotFound, id)
	}
	return turn, nil
}

// Usage totals userID's chats and tasks.
func (s *Service) Usage(ctx context.Context, userID string) (*Usage, error) {
	turns, err := s.ChatHistory(ctx, userID, 0)
	if err != nil {
		return nil, err
	}
	tasks, err := s.repos.Tasks.ListTasks(ctx, userID, 0)
	if err != nil {
		return nil, err
	}

	u := &Usage{
		Chats:       len(turns),
		Tasks:       len(tasks),
		ToolsCalled: make(map[string]int),
	}
	for _, turn := range turns {
		for _, tool := range turn.ToolsCalled {
			u.ToolsCalled[tool]++
		}
	}
	for _, t := range tasks {
		if t.CreatedByAI {
			u.TasksByAI++
		}
		if t.Status != core.TaskDone {
			u.OpenTasks++
		}
	}
	return u, nil
}
