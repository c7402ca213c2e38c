package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"willcloud/internal/auth"
	"willcloud/internal/domain"
	"willcloud/internal/repository"
	"willcloud/internal/storage"
)

// memStore backs FileStore and UserStore with maps, charging file sizes to
// the owner the way the Postgres repositories do.
type memStore struct {
	mu    sync.Mutex
	users map[string]*domain.User
	files map[uuid.UUID]domain.File
	clock time.Time

	createErr  error
	listErr    error
	deleteErr  error
	touchErr   error
	userErr    error
	touched    []uuid.UUID
	userReads  int
	listCalls  int
	deleteRuns int
}

func newMemStore(users ...domain.User) *memStore {
	s := &memStore{
		users: make(map[string]*domain.User),
		files: make(map[uuid.UUID]domain.File),
		clock: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	for _, u := range users {
		u := u
		s.users[u.ID] = &u
	}
	return s
}

func (s *memStore) Create(ctx context.Context, file *domain.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	user, ok := s.users[file.UserID]
	if !ok {
		return errors.New("user not found")
	}
	s.clock = s.clock.Add(time.Second)
	file.UploadedAt = s.clock
	s.files[file.ID] = *file
	user.StorageUsed += file.FileSize
	return nil
}

func (s *memStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &f, nil
}

func (s *memStore) ListByOwner(ctx context.Context, userID string) ([]domain.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := []domain.File{}
	for _, f := range s.files {
		if f.UserID == userID {
			out = append(out, f)
		}
	}
	slices.SortFunc(out, func(a, b domain.File) int { return b.UploadedAt.Compare(a.UploadedAt) })
	return out, nil
}

func (s *memStore) Delete(ctx context.Context, file *domain.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteRuns++
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.files[file.ID]; !ok {
		return repository.ErrNotFound
	}
	delete(s.files, file.ID)
	if user, ok := s.users[file.UserID]; ok {
		user.StorageUsed = max(0, user.StorageUsed-file.FileSize)
	}
	return nil
}

func (s *memStore) TouchLastAccessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.touchErr != nil {
		return s.touchErr
	}
	s.touched = append(s.touched, id)
	return nil
}

// userStore exposes the users side of memStore; its GetByID differs from the
// files one.
type userStore struct{ *memStore }

func (u userStore) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.userReads++
	if u.userErr != nil {
		return nil, u.userErr
	}
	user, ok := u.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *memStore) user(id string) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.users[id]
}

func (s *memStore) put(file domain.File) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[file.ID] = file
}

type memBucket struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
	getErr    error
	removeErr error
	removed   []string
}

func newMemBucket() *memBucket {
	return &memBucket{objects: make(map[string][]byte)}
}

func (b *memBucket) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if b.uploadErr != nil {
		return b.uploadErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return nil
}

func (b *memBucket) Download(ctx context.Context, key string) (storage.Object, error) {
	if b.getErr != nil {
		return nil, b.getErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return storage.NewObject(io.NopCloser(bytes.NewReader(data)), int64(len(data)), "application/octet-stream"), nil
}

func (b *memBucket) Remove(ctx context.Context, key string) error {
	if b.removeErr != nil {
		return b.removeErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	b.removed = append(b.removed, key)
	return nil
}

func (b *memBucket) has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok
}

func (b *memBucket) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

type recordingObserver struct {
	marked    []string
	cleared   []string
	failed    []string
	refreshes int
}

func (o *recordingObserver) MarkUploading(name string) { o.marked = append(o.marked, name) }

func (o *recordingObserver) ClearUploading(name string, err error) {
	o.cleared = append(o.cleared, name)
	if err != nil {
		o.failed = append(o.failed, name)
	}
}

func (o *recordingObserver) Refresh(context.Context) { o.refreshes++ }

func localFile(name string, content string, mime string) domain.LocalFile {
	return domain.LocalFile{
		Name:     name,
		Size:     int64(len(content)),
		MIMEType: mime,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader([]byte(content))), nil
		},
	}
}

func sizedFile(name string, size int) domain.LocalFile {
	return localFile(name, string(bytes.Repeat([]byte("x"), size)), "text/plain")
}

func testSession(user domain.User) *auth.Session {
	u := user
	return &auth.Session{
		ID:     "session-" + user.ID,
		UserID: user.ID,
		Email:  user.Email,
		User:   &u,
	}
}

func (u userStore) GetOrCreate(ctx context.Context, id, email string) (*domain.User, error) {
	u.mu.Lock()
	if _, ok := u.users[id]; !ok {
		u.users[id] = &domain.User{ID: id, Email: email, StorageLimit: domain.DefaultStorageLimit}
	}
	u.mu.Unlock()
	return u.GetByID(ctx, id)
}
