package repository

import (
	"context"
	"fmt"

	"drawsync/internal/models"

	"gorm.io/gorm"
)

// ChatRepositoryImpl archives chat events. The hub keeps its own bounded
// in-memory history for replay; this archive exists so the REST history
// endpoint can serve chat from before the current process lifetime.
// Strokes are intentionally never archived - the stroke log is ephemeral.
type ChatRepositoryImpl struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepositoryImpl {
	return &ChatRepositoryImpl{db: db}
}

// Store persists one chat record
func (r *ChatRepositoryImpl) Store(ctx context.Context, record *models.ChatRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to store chat record: %w", err)
	}
	return nil
}

// ListByRoom returns a room's archived chat oldest-first, so the result
// matches the order a live replay would use.
func (r *ChatRepositoryImpl) ListByRoom(ctx context.Context, roomID string, limit, offset int) ([]*models.ChatRecord, error) {
	var records []*models.ChatRecord

	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("sent_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list chat records: %w", err)
	}

	return records, nil
}
