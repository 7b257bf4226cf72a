package badger

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragdesk/core"
	"github.com/poiesic/ragdesk/storage"
)

// ChatRepository implements storage.ChatRepository for BadgerDB.
type ChatRepository struct {
	backend *Backend
}

var _ storage.ChatRepository = (*ChatRepository)(nil)

// NewChatRepository creates a new ChatRepository.
func NewChatRepository(backend *Backend) *ChatRepository {
	return &ChatRepository{backend: backend}
}

// AddChatTurn persists a turn.
func (r *ChatRepository) AddChatTurn(ctx context.Context, turn *core.ChatTurn) (*core.ChatTurn, error) {
	if turn.ID == "" {
		turn.ID = core.NewID()
	}
	if err := core.ValidateChatTurn(turn); err != nil {
		return nil, err
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = timestamp()
	}

	err := r.backend.Update(ctx, func(tx *badger.Txn) error {
		key := makeRecordKey(chatTurnPrefix, turn.ID)
		_, found, err := readValue(tx, key, storage.UnmarshalChatTurn)
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%w: chat turn %s", storage.ErrDuplicateKey, turn.ID)
		}
		if err := tx.Set(key, storage.MarshalChatTurn(turn)); err != nil {
			return err
		}
		return tx.Set(makeOwnerKey(chatTurnOwnerPrefix, turn.UserID, turn.CreatedAt, turn.ID), []byte(turn.ID))
	})
	if err != nil {
		return nil, err
	}
	return turn, nil
}

// GetChatTurn retrieves a turn by ID.
func (r *ChatRepository) GetChatTurn(ctx context.Context, id string) (*core.ChatTurn, error) {
	var result *core.ChatTurn
	err := r.backend.View(func(tx *badger.Txn) error {
		turn, found, err := readValue(tx, makeRecordKey(chatTurnPrefix, id), storage.UnmarshalChatTurn)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: chat turn %s", storage.ErrNotFound, id)
		}
		result = turn
		return nil
	})
	return result, err
}

// ListChatTurns returns a user's turns, most recent first.
func (r *ChatRepository) ListChatTurns(ctx context.Context, userID string, limit int) ([]*core.ChatTurn, error) {
	var results []*core.ChatTurn
	err := r.backend.View(func(tx *badger.Txn) error {
		return scanPrefix(tx, makeOwnerPrefix(chatTurnOwnerPrefix, userID), true, func(_, val []byte) error {
			turn, found, err := readValue(tx, makeRecordKey(chatTurnPrefix, string(val)), storage.UnmarshalChatTurn)
			if err != nil {
				return err
			}
			if !found || turn.UserID != userID {
				return nil
			}
			results = append(results, turn)
			if limit > 0 && len(results) >= limit {
				return errStopScan
			}
			return nil
		})
	})
	return results, err
}
