package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"ragdesk/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(doc *model.Document) error {
	if err := r.db.Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(id string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("id = ?", id).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) ListByOwner(userID uint) ([]model.Document, error) {
	var list []model.Document
	if err := r.db.Where("owner_user_id = ?", userID).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return list, nil
}

// ClaimProcessing flips the document from pending to processing. The guard
// on the current status serializes ingestion attempts per document: of two
// workers holding the same job, exactly one claims it.
func (r *DocumentRepository) ClaimProcessing(id string) (bool, error) {
	res := r.db.Model(&model.Document{}).
		Where("id = ? AND status = ?", id, model.StatusPending).
		Update("status", model.StatusProcessing)
	if res.Error != nil {
		return false, fmt.Errorf("claim document for processing failed: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ResetPending re-queues the document for ingestion unless an attempt is
// currently running.
func (r *DocumentRepository) ResetPending(id string) (bool, error) {
	res := r.db.Model(&model.Document{}).
		Where("id = ? AND status <> ?", id, model.StatusProcessing).
		Updates(map[string]interface{}{"status": model.StatusPending, "error_message": ""})
	if res.Error != nil {
		return false, fmt.Errorf("reset document to pending failed: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *DocumentRepository) MarkFailed(id, message string) error {
	err := r.db.Model(&model.Document{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": model.StatusFailed, "error_message": message}).Error
	if err != nil {
		return fmt.Errorf("mark document failed failed: %w", err)
	}
	return nil
}

// CommitChunks atomically swaps the document's chunk set for the given one
// and marks it ready. The old rows and the new rows never coexist outside
// the transaction, which is what keeps a half-ingested document invisible.
func (r *DocumentRepository) CommitChunks(doc *model.Document, chunks []model.Chunk) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", doc.ID).Delete(&model.Chunk{}).Error; err != nil {
			return fmt.Errorf("delete old chunks failed: %w", err)
		}
		if len(chunks) > 0 {
			if err := tx.Create(&chunks).Error; err != nil {
				return fmt.Errorf("insert chunks failed: %w", err)
			}
		}
		updates := map[string]interface{}{
			"status":        model.StatusReady,
			"error_message": "",
			"chunk_count":   len(chunks),
			"page_count":    doc.PageCount,
		}
		if err := tx.Model(&model.Document{}).Where("id = ?", doc.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("update document failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit chunks failed: %w", err)
	}
	return nil
}

// DeleteWithChunks removes the document and all its chunks in one
// transaction.
func (r *DocumentRepository) DeleteWithChunks(id string) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&model.Chunk{}).Error; err != nil {
			return fmt.Errorf("delete chunks failed: %w", err)
		}
		if err := tx.Where("id = ?", id).Delete(&model.Document{}).Error; err != nil {
			return fmt.Errorf("delete document failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete document with chunks failed: %w", err)
	}
	return nil
}
