package repository

import (
	"context"
	"fmt"

	"drawsync/internal/models"

	"gorm.io/gorm"
)

// RoomRepositoryImpl handles the persisted room directory using GORM.
// The hub never reads from here; rooms listed over REST and live rooms in
// the hub share ids but have independent lifecycles.
type RoomRepositoryImpl struct {
	db *gorm.DB
}

func NewRoomRepository(db *gorm.DB) *RoomRepositoryImpl {
	return &RoomRepositoryImpl{db: db}
}

// Create inserts a new room. The KSUID is generated in the BeforeCreate hook.
func (r *RoomRepositoryImpl) Create(ctx context.Context, create *models.RoomCreate, createdBy string) (*models.Room, error) {
	room := &models.Room{
		Name:      create.Name,
		CreatedBy: createdBy,
	}

	if err := r.db.WithContext(ctx).Create(room).Error; err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	return room, nil
}

// GetByID retrieves a room by id. Soft-deleted rooms are excluded.
func (r *RoomRepositoryImpl) GetByID(ctx context.Context, id string) (*models.Room, error) {
	var room models.Room

	err := r.db.WithContext(ctx).First(&room, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("room not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	return &room, nil
}

// List returns rooms newest-first with pagination. KSUIDs are
// time-ordered, so sorting by id is sorting by creation time.
func (r *RoomRepositoryImpl) List(ctx context.Context, limit, offset int) ([]*models.Room, error) {
	var rooms []*models.Room

	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rooms).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	return rooms, nil
}

// Delete soft-deletes a room directory entry
func (r *RoomRepositoryImpl) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.Room{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete room: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("room not found: %s", id)
	}
	return nil
}
