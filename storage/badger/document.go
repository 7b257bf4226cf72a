package badger

import (
	"context"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragdesk/core"
	"github.com/poiesic/ragdesk/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) *DocumentRepository {
	return &DocumentRepository{backend: backend}
}

// AddDocument inserts a new document.
func (r *DocumentRepository) AddDocument(ctx context.Context, doc *core.Document) (*core.Document, error) {
	if doc.Status == "" {
		doc.Status = core.StatusPending
	}
	if err := core.ValidateDocument(doc); err != nil {
		return nil, err
	}
	now := timestamp()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}

	err := r.backend.Update(ctx, func(tx *badger.Txn) error {
		key := makeRecordKey(documentPrefix, doc.ID)
		_, found, err := readValue(tx, key, storage.UnmarshalDocument)
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%w: document %s", storage.ErrDuplicateKey, doc.ID)
		}
		return r.writeDocument(tx, doc)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetDocument retrieves a single document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	var result *core.Document
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		result, err = r.readDocument(tx, id)
		return err
	})
	return result, err
}

// ListDocuments returns a workspace's documents, most recently created first.
func (r *DocumentRepository) ListDocuments(ctx context.Context, workspaceID string, limit int) ([]*core.Document, error) {
	var results []*core.Document
	err := r.backend.View(func(tx *badger.Txn) error {
		prefix := makeOwnerPrefix(documentOwnerPrefix, workspaceID)
		return scanPrefix(tx, prefix, true, func(_, val []byte) error {
			doc, found, err := readValue(tx, makeRecordKey(documentPrefix, string(val)), storage.UnmarshalDocument)
			if err != nil {
				return err
			}
			if !found || doc.WorkspaceID != workspaceID || doc.Deleted() {
				return nil
			}
			results = append(results, doc)
			if limit > 0 && len(results) >= limit {
				return errStopScan
			}
			return nil
		})
	})
	return results, err
}

// ListDocumentsByStatus returns every non-deleted document in one of the given states,
// oldest first.
func (r *DocumentRepository) ListDocumentsByStatus(ctx context.Context, statuses ...core.DocumentStatus) ([]*core.Document, error) {
	var results []*core.Document
	err := r.backend.View(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(documentPrefix+":"), false, func(_, val []byte) error {
			doc, err := storage.UnmarshalDocument(val)
			if err != nil {
				return err
			}
			if !doc.Deleted() && slices.Contains(statuses, doc.Status) {
				results = append(results, doc)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(results, func(a, b *core.Document) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return results, nil
}

// UpdateDocumentStatus atomically moves a document to a new status.
func (r *DocumentRepository) UpdateDocumentStatus(ctx context.Context, id string, update storage.StatusUpdate) (*core.Document, error) {
	var result *core.Document
	err := r.backend.Update(ctx, func(tx *badger.Txn) error {
		doc, err := r.readDocument(tx, id)
		if err != nil {
			return err
		}
		if err := core.CheckTransition(doc.Status, update.Status); err != nil {
			return fmt.Errorf("document %s: %w", id, err)
		}

		doc.Status = update.Status
		switch update.Status {
		case core.StatusFailed:
			doc.StatusReason = update.Reason
		case core.StatusCompleted:
			doc.ChunkCount = update.ChunkCount
		}
		doc.UpdatedAt = timestamp()

		result = doc
		return r.writeDocument(tx, doc)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkDocumentDeleted records that a delete is in progress.
func (r *DocumentRepository) MarkDocumentDeleted(ctx context.Context, id string) (*core.Document, error) {
	var result *core.Document
	err := r.backend.Update(ctx, func(tx *badger.Txn) error {
		doc, err := r.readDocument(tx, id)
		if err != nil {
			return err
		}
		result = doc
		if doc.Deleted() {
			return nil
		}
		doc.DeletedAt = timestamp()
		doc.UpdatedAt = doc.DeletedAt
		return r.writeDocument(tx, doc)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteDocument removes the metadata row and its indices.
func (r *DocumentRepository) DeleteDocument(ctx context.Context, id string) error {
	return r.backend.Update(ctx, func(tx *badger.Txn) error {
		doc, err := r.readDocument(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(makeOwnerKey(documentOwnerPrefix, doc.WorkspaceID, doc.CreatedAt, doc.ID)); err != nil {
			return err
		}
		return tx.Delete(makeRecordKey(documentPrefix, doc.ID))
	})
}

func (r *DocumentRepository) readDocument(tx *badger.Txn, id string) (*core.Document, error) {
	doc, found, err := readValue(tx, makeRecordKey(documentPrefix, id), storage.UnmarshalDocument)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: document %s", storage.ErrNotFound, id)
	}
	return doc, nil
}

// writeDocument stores the primary record and its workspace index entry.
func (r *DocumentRepository) writeDocument(tx *badger.Txn, doc *core.Document) error {
	if err := tx.Set(makeRecordKey(documentPrefix, doc.ID), storage.MarshalDocument(doc)); err != nil {
		return err
	}
	return tx.Set(makeOwnerKey(documentOwnerPrefix, doc.WorkspaceID, doc.CreatedAt, doc.ID), []byte(doc.ID))
}
