package services

import (
	"context"

	"drawsync/internal/models"
)

// Interfaces live with their consumer, not their implementation. This
// package consumes the repositories, so the repository contracts it
// needs are declared here.

// ChatRepository defines what the archiver needs from chat storage
type ChatRepository interface {
	Store(ctx context.Context, record *models.ChatRecord) error
}

// RoomRepository defines what services need from the room directory
type RoomRepository interface {
	Create(ctx context.Context, create *models.RoomCreate, createdBy string) (*models.Room, error)
	GetByID(ctx context.Context, id string) (*models.Room, error)
	List(ctx context.Context, limit, offset int) ([]*models.Room, error)
}
