package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"ragdesk/internal/model"
)

type ChatSessionRepository struct {
	db *gorm.DB
}

func NewChatSessionRepository(db *gorm.DB) *ChatSessionRepository {
	return &ChatSessionRepository{db: db}
}

func (r *ChatSessionRepository) Create(session *model.ChatSession) error {
	if err := r.db.Create(session).Error; err != nil {
		return fmt.Errorf("create chat session failed: %w", err)
	}
	return nil
}

func (r *ChatSessionRepository) GetByIDAndUserID(id, userID uint) (*model.ChatSession, error) {
	var session model.ChatSession
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query chat session failed: %w", err)
	}
	return &session, nil
}

func (r *ChatSessionRepository) ListByUserID(userID uint) ([]model.ChatSession, error) {
	var list []model.ChatSession
	if err := r.db.Where("user_id = ?", userID).Order("updated_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list chat sessions failed: %w", err)
	}
	return list, nil
}

func (r *ChatSessionRepository) UpdateTitle(id uint, title string) error {
	if err := r.db.Model(&model.ChatSession{}).Where("id = ?", id).Update("title", title).Error; err != nil {
		return fmt.Errorf("update chat session title failed: %w", err)
	}
	return nil
}
