package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"willcloud/internal/auth"
	"willcloud/internal/domain"
	"willcloud/internal/repository"
	"willcloud/internal/storage"
)

// DeliverFunc hands a downloaded blob to the caller, typically by writing it
// to an HTTP response as an attachment.
type DeliverFunc func(file *domain.File, blob storage.Object) error

type ListingService struct {
	files   FileStore
	storage storage.Storage
	now     func() time.Time
}

func NewListingService(files FileStore, store storage.Storage) *ListingService {
	return &ListingService{
		files:   files,
		storage: store,
		now:     time.Now,
	}
}

// List returns all files of the session user, most recent upload first.
func (s *ListingService) List(ctx context.Context, sess *auth.Session) ([]domain.File, error) {
	if sess == nil {
		return nil, ErrNoUser
	}

	files, err := s.files.ListByOwner(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	return files, nil
}

// GetFile loads a metadata row that must belong to the session user.
func (s *ListingService) GetFile(ctx context.Context, sess *auth.Session, id uuid.UUID) (*domain.File, error) {
	if sess == nil {
		return nil, ErrNoUser
	}

	file, err := s.files.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	if file.UserID != sess.UserID {
		return nil, ErrAccessDenied
	}

	return file, nil
}

// Download fetches the blob and passes it to deliver. Only after delivery
// succeeds is last_accessed touched, and a failure there is only logged.
func (s *ListingService) Download(ctx context.Context, sess *auth.Session, id uuid.UUID, deliver DeliverFunc) (*domain.File, error) {
	file, err := s.GetFile(ctx, sess, id)
	if err != nil {
		return nil, err
	}

	blob, err := s.storage.Download(ctx, file.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w: %v", file.Filename, ErrS3Operation, err)
	}
	defer blob.Close()

	if err := deliver(file, blob); err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", file.Filename, err)
	}

	if err := s.files.TouchLastAccessed(ctx, file.ID, s.now()); err != nil {
		log.Printf("[Listing] failed to update last accessed for %s: %v", file.ID, err)
	}

	return file, nil
}

// Delete removes the blob, then the metadata row together with the quota
// decrement. confirmation must repeat the filename. A failed blob removal
// leaves the row and the quota untouched.
func (s *ListingService) Delete(ctx context.Context, sess *auth.Session, id uuid.UUID, confirmation string) (*domain.File, error) {
	file, err := s.GetFile(ctx, sess, id)
	if err != nil {
		return nil, err
	}

	if confirmation != file.Filename {
		return nil, fmt.Errorf("%w: delete %s?", ErrNotConfirmed, file.Filename)
	}

	if err := s.storage.Remove(ctx, file.StoragePath); err != nil {
		return nil, fmt.Errorf("failed to delete %s: %w: %v", file.Filename, ErrS3Operation, err)
	}

	if err := s.files.Delete(ctx, file); err != nil {
		// The blob is gone; the row stays listed until removed by hand.
		log.Printf("[Listing] blob %s removed but metadata row %s remains: %v", file.StoragePath, file.ID, err)
		return nil, fmt.Errorf("failed to delete %s: %w: %v", file.Filename, ErrDatabaseError, err)
	}

	log.Printf("[Listing] deleted %s (%d bytes) for %s", file.Filename, file.FileSize, file.UserID)
	return file, nil
}
