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
	"willcloud/internal/storage"
)

// UploadObserver receives the advisory progress of a batch.
type UploadObserver interface {
	// MarkUploading is called before a file's blob is written.
	MarkUploading(filename string)
	// ClearUploading is always called once a marked file is done, err is nil on success.
	ClearUploading(filename string, err error)
	// Refresh is called after each fully stored file.
	Refresh(ctx context.Context)
}

type noopObserver struct{}

func (noopObserver) MarkUploading(string)         {}
func (noopObserver) ClearUploading(string, error) {}
func (noopObserver) Refresh(context.Context)      {}

type UploadService struct {
	files   FileStore
	users   UserStore
	storage storage.Storage
	now     func() time.Time
}

func NewUploadService(files FileStore, users UserStore, store storage.Storage) *UploadService {
	return &UploadService{
		files:   files,
		users:   users,
		storage: store,
		now:     time.Now,
	}
}

// StoragePath builds the object key {user_id}/{unix_millis}-{filename}. Two
// files with the same name in the same millisecond share a key.
func StoragePath(userID string, at time.Time, filename string) string {
	return fmt.Sprintf("%s/%d-%s", userID, at.UnixMilli(), filename)
}

// UploadBatch stores files one after another in input order. The quota is
// checked against the snapshot taken when the batch starts; it is not
// refreshed as earlier files of the same batch succeed.
func (s *UploadService) UploadBatch(ctx context.Context, sess *auth.Session, files []domain.LocalFile, observer UploadObserver) (*domain.BatchResult, error) {
	if observer == nil {
		observer = noopObserver{}
	}

	snapshot, err := s.snapshot(ctx, sess)
	if err != nil {
		return nil, err
	}

	result := &domain.BatchResult{Results: make([]domain.FileUploadResult, 0, len(files))}

	for _, f := range files {
		entry := domain.FileUploadResult{Filename: f.Name}

		file, err := s.uploadOne(ctx, snapshot, f, observer)
		switch {
		case errors.Is(err, ErrQuotaExceeded):
			log.Printf("[Upload] %s skipped: %d + %d exceeds limit %d", f.Name, snapshot.StorageUsed, f.Size, snapshot.StorageLimit)
			entry.Error = quotaExceededMessage
			result.Error = quotaExceededMessage
			result.Failed++
		case err != nil:
			log.Printf("[Upload] %s failed: %v", f.Name, err)
			entry.Error = err.Error()
			result.Error = fmt.Sprintf("Failed to upload %s: %v", f.Name, err)
			result.Failed++
		default:
			entry.File = file
			result.Uploaded++
		}

		result.Results = append(result.Results, entry)
	}

	return result, nil
}

// snapshot reads the user's quota figures once per batch, falling back to the
// record loaded at sign-in.
func (s *UploadService) snapshot(ctx context.Context, sess *auth.Session) (domain.User, error) {
	if sess == nil {
		return domain.User{}, ErrNoUser
	}

	user, err := s.users.GetByID(ctx, sess.UserID)
	if err == nil {
		return *user, nil
	}

	if sess.User == nil {
		return domain.User{}, fmt.Errorf("%w: %v", ErrNoUser, err)
	}

	log.Printf("[Upload] using sign-in quota snapshot for %s: %v", sess.UserID, err)
	return *sess.User, nil
}

func (s *UploadService) uploadOne(ctx context.Context, snapshot domain.User, f domain.LocalFile, observer UploadObserver) (file *domain.File, err error) {
	if !CheckSpaceAvailable(&snapshot, f.Size) {
		return nil, ErrQuotaExceeded
	}

	observer.MarkUploading(f.Name)
	defer func() { observer.ClearUploading(f.Name, err) }()

	path := StoragePath(snapshot.ID, s.now(), f.Name)

	body, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer body.Close()

	if err := s.storage.Upload(ctx, path, body, f.Size, f.ContentType()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrS3Operation, err)
	}

	file = &domain.File{
		ID:          uuid.New(),
		UserID:      snapshot.ID,
		Filename:    f.Name,
		FileSize:    f.Size,
		MIMEType:    f.ContentType(),
		StoragePath: path,
	}

	// Metadata row and quota increment commit together; on failure the blob
	// would be orphaned, so it is removed.
	if err := s.files.Create(ctx, file); err != nil {
		if rmErr := s.storage.Remove(ctx, path); rmErr != nil {
			log.Printf("[Upload] failed to remove orphaned blob %s: %v", path, rmErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	log.Printf("[Upload] stored %s (%d bytes) at %s", f.Name, f.Size, path)
	observer.Refresh(ctx)

	return file, nil
}
