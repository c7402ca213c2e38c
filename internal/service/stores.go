package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"willcloud/internal/domain"
)

// FileStore is the files collection of the record store.
type FileStore interface {
	Create(ctx context.Context, file *domain.File) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.File, error)
	ListByOwner(ctx context.Context, userID string) ([]domain.File, error)
	Delete(ctx context.Context, file *domain.File) error
	TouchLastAccessed(ctx context.Context, id uuid.UUID, at time.Time) error
}

// UserStore is the users collection of the record store.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}
