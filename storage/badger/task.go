package badger

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragdesk/core"
	"github.com/poiesic/ragdesk/storage"
)

// TaskRepository implements storage.TaskRepository for BadgerDB.
type TaskRepository struct {
	backend *Backend
}

var _ storage.TaskRepository = (*TaskRepository)(nil)

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(backend *Backend) *TaskRepository {
	return &TaskRepository{backend: backend}
}

// AddTask inserts a task, applying default priority and status.
func (r *TaskRepository) AddTask(ctx context.Context, task *core.Task) (*core.Task, error) {
	if task.ID == "" {
		task.ID = core.NewID()
	}
	task.ApplyDefaults()
	if err := core.ValidateTask(task); err != nil {
		return nil, err
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = timestamp()
	}
	task.UpdatedAt = task.CreatedAt

	err := r.backend.Update(ctx, func(tx *badger.Txn) error {
		key := makeRecordKey(taskPrefix, task.ID)
		_, found, err := readValue(tx, key, storage.UnmarshalTask)
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%w: task %s", storage.ErrDuplicateKey, task.ID)
		}
		if err := tx.Set(key, storage.MarshalTask(task)); err != nil {
			return err
		}
		return tx.Set(makeOwnerKey(taskOwnerPrefix, task.UserID, task.CreatedAt, task.ID), []byte(task.ID))
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// GetTask retrieves a task by ID.
func (r *TaskRepository) GetTask(ctx context.Context, id string) (*core.Task, error) {
	var result *core.Task
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		result, err = r.readTask(tx, id)
		return err
	})
	return result, err
}

// ListTasks returns a user's tasks, most recently created first.
func (r *TaskRepository) ListTasks(ctx context.Context, userID string, limit int) ([]*core.Task, error) {
	var results []*core.Task
	err := r.backend.View(func(tx *badger.Txn) error {
		return scanPrefix(tx, makeOwnerPrefix(taskOwnerPrefix, userID), true, func(_, val []byte) error {
			task, found, err := readValue(tx, makeRecordKey(taskPrefix, string(val)), storage.UnmarshalTask)
			if err != nil {
				return err
			}
			if !found || task.UserID != userID {
				return nil
			}
			results = append(results, task)
			if limit > 0 && len(results) >= limit {
				return errStopScan
			}
			return nil
		})
	})
	return results, err
}

// UpdateTask replaces an existing task and bumps UpdatedAt.
// Ownership and creation time are preserved.
func (r *TaskRepository) UpdateTask(ctx context.Context, task *core.Task) (*core.Task, error) {
	task.ApplyDefaults()
	err := r.backend.Update(ctx, func(tx *badger.Txn) error {
		old, err := r.readTask(tx, task.ID)
		if err != nil {
			return err
		}
		task.UserID = old.UserID
		task.CreatedAt = old.CreatedAt
		task.UpdatedAt = timestamp()
		if err := core.ValidateTask(task); err != nil {
			return err
		}
		return tx.Set(makeRecordKey(taskPrefix, task.ID), storage.MarshalTask(task))
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// DeleteTask removes a task.
func (r *TaskRepository) DeleteTask(ctx context.Context, id string) error {
	return r.backend.Update(ctx, func(tx *badger.Txn) error {
		task, err := r.readTask(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(makeOwnerKey(taskOwnerPrefix, task.UserID, task.CreatedAt, task.ID)); err != nil {
			return err
		}
		return tx.Delete(makeRecordKey(taskPrefix, task.ID))
	})
}

func (r *TaskRepository) readTask(tx *badger.Txn, id string) (*core.Task, error) {
	task, found, err := readValue(tx, makeRecordKey(taskPrefix, id), storage.UnmarshalTask)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: task %s", storage.ErrNotFound, id)
	}
	return task, nil
}
