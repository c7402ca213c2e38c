package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"

	"willcloud/internal/domain"
)

type UserRepository struct {
	db           *sqlx.DB
	defaultLimit int64
}

func NewUserRepository(db *sqlx.DB, defaultLimit int64) *UserRepository {
	if defaultLimit <= 0 {
		defaultLimit = domain.DefaultStorageLimit
	}
	return &UserRepository{db: db, defaultLimit: defaultLimit}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User

	err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// GetOrCreate loads the user record, creating it with the default limit on
// first sign-in.
func (r *UserRepository) GetOrCreate(ctx context.Context, id, email string) (*domain.User, error) {
	user, err := r.GetByID(ctx, id)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	log.Printf("[UserRepository] creating user %s with limit %d bytes", id, r.defaultLimit)

	user = &domain.User{
		ID:           id,
		Email:        email,
		StorageLimit: r.defaultLimit,
	}
	if err := r.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
        INSERT INTO users (id, email, full_name, storage_used, storage_limit)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email
        RETURNING storage_used, storage_limit, created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		user.ID,
		user.Email,
		user.FullName,
		user.StorageUsed,
		user.StorageLimit,
	).Scan(&user.StorageUsed, &user.StorageLimit, &user.CreatedAt, &user.UpdatedAt)
}

// UpdateUsedSpace adds deltaBytes to storage_used, flooring the result at 0.
func (r *UserRepository) UpdateUsedSpace(ctx context.Context, userID string, deltaBytes int64) error {
	return updateUsedSpace(ctx, r.db, userID, deltaBytes)
}

func updateUsedSpace(ctx context.Context, db sqlx.ExecerContext, userID string, deltaBytes int64) error {
	query := `
        UPDATE users
        SET storage_used = GREATEST(0, storage_used + $1),
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $2`

	result, err := db.ExecContext(ctx, query, deltaBytes, userID)
	if err != nil {
		return fmt.Errorf("failed to update used space: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("user not found: %s", userID)
	}

	return nil
}
