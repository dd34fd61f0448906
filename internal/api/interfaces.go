package api

import (
	"context"

	"drawsync/internal/models"
)

// Consumer-driven interfaces: this package calls the repositories, so
// the contracts it needs are declared here, not where they are
// implemented.

// RoomRepository is what the handlers need from the room directory
type RoomRepository interface {
	Create(ctx context.Context, create *models.RoomCreate, createdBy string) (*models.Room, error)
	GetByID(ctx context.Context, id string) (*models.Room, error)
	List(ctx context.Context, limit, offset int) ([]*models.Room, error)
}

// ChatRepository is what the handlers need from the chat archive
type ChatRepository interface {
	ListByRoom(ctx context.Context, roomID string, limit, offset int) ([]*models.ChatRecord, error)
}
