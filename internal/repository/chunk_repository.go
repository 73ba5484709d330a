package repository

import (
	"fmt"

	"gorm.io/gorm"

	"ragdesk/internal/model"
)

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

func (r *ChunkRepository) ListByDocumentID(documentID string) ([]model.Chunk, error) {
	var chunks []model.Chunk
	if err := r.db.Where("document_id = ?", documentID).Order("seq ASC").Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list chunks by document failed: %w", err)
	}
	return chunks, nil
}

// ListAll returns every committed chunk row. Chunk rows only exist for
// successfully committed ingestions, so this is exactly the set the vector
// index is rebuilt from at startup.
func (r *ChunkRepository) ListAll() ([]model.Chunk, error) {
	var chunks []model.Chunk
	if err := r.db.Order("document_id, seq ASC").Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list all chunks failed: %w", err)
	}
	return chunks, nil
}
