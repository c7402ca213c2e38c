package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"willcloud/internal/domain"
)

var ErrNotFound = errors.New("record not found")

type FileRepository struct {
	db *sqlx.DB
}

func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

// Create inserts the metadata row and charges its size to the owner's
// storage_used in a single transaction.
func (r *FileRepository) Create(ctx context.Context, file *domain.File) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
        INSERT INTO files (id, user_id, filename, file_size, mime_type, storage_path)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING uploaded_at`

	err = tx.QueryRowContext(
		ctx,
		query,
		file.ID,
		file.UserID,
		file.Filename,
		file.FileSize,
		file.MIMEType,
		file.StoragePath,
	).Scan(&file.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to insert file metadata: %w", err)
	}

	if err := updateUsedSpace(ctx, tx, file.UserID, file.FileSize); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *FileRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.File, error) {
	var file domain.File
	query := `SELECT * FROM files WHERE id = $1`

	err := r.db.GetContext(ctx, &file, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}

	return &file, nil
}

// ListByOwner returns every file of the user, most recent upload first.
func (r *FileRepository) ListByOwner(ctx context.Context, userID string) ([]domain.File, error) {
	files := []domain.File{}
	query := `SELECT * FROM files WHERE user_id = $1 ORDER BY uploaded_at DESC`

	if err := r.db.SelectContext(ctx, &files, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	return files, nil
}

// Delete removes the metadata row and releases its size from the owner's
// storage_used (floored at zero) in a single transaction.
func (r *FileRepository) Delete(ctx context.Context, file *domain.File) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, file.ID)
	if err != nil {
		return fmt.Errorf("failed to delete file metadata: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	if err := updateUsedSpace(ctx, tx, file.UserID, -file.FileSize); err != nil {
		return err
	}

	return tx.Commit()
}

// TouchLastAccessed moves last_accessed forward to at; it never moves it back.
func (r *FileRepository) TouchLastAccessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
        UPDATE files
        SET last_accessed = GREATEST(COALESCE(last_accessed, $1), $1)
        WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to update last accessed: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}
