package repository

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ragdesk/internal/model"
)

type TurnRepository struct {
	db *gorm.DB
}

func NewTurnRepository(db *gorm.DB) *TurnRepository {
	return &TurnRepository{db: db}
}

// Append persists a completed turn with the next turn index for its
// session. The index is allocated under a lock inside the transaction, and
// the unique (session_id, turn_index) constraint backs it up.
func (r *TurnRepository) Append(turn *model.ConversationTurn) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var next int
		err := tx.Model(&model.ConversationTurn{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("session_id = ?", turn.SessionID).
			Select("COALESCE(MAX(turn_index), -1) + 1").
			Scan(&next).Error
		if err != nil {
			return fmt.Errorf("allocate turn index failed: %w", err)
		}
		turn.TurnIndex = next
		if err := tx.Create(turn).Error; err != nil {
			return fmt.Errorf("insert turn failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("append turn failed: %w", err)
	}
	return nil
}

func (r *TurnRepository) ListBySessionID(sessionID uint, limit int) ([]model.ConversationTurn, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}

	var turns []model.ConversationTurn
	if err := r.db.Where("session_id = ?", sessionID).Order("turn_index ASC").Limit(limit).Find(&turns).Error; err != nil {
		return nil, fmt.Errorf("list turns failed: %w", err)
	}
	return turns, nil
}

// ListRecent returns the last n turns of the session in ascending turn
// order.
func (r *TurnRepository) ListRecent(sessionID uint, n int) ([]model.ConversationTurn, error) {
	if n <= 0 {
		return nil, nil
	}

	var turns []model.ConversationTurn
	if err := r.db.Where("session_id = ?", sessionID).Order("turn_index DESC").Limit(n).Find(&turns).Error; err != nil {
		return nil, fmt.Errorf("list recent turns failed: %w", err)
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}
