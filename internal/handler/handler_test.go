package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"willcloud/internal/auth"
	"willcloud/internal/domain"
	"willcloud/internal/repository"
	"willcloud/internal/service"
	"willcloud/internal/storage"
)

const testSecret = "handler-secret"

type memFiles struct {
	mu    sync.Mutex
	files map[uuid.UUID]domain.File
	users map[string]*domain.User
	clock time.Time
}

func (m *memFiles) Create(ctx context.Context, file *domain.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Add(time.Second)
	file.UploadedAt = m.clock
	m.files[file.ID] = *file
	m.users[file.UserID].StorageUsed += file.FileSize
	return nil
}

func (m *memFiles) GetByID(ctx context.Context, id uuid.UUID) (*domain.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &f, nil
}

func (m *memFiles) ListByOwner(ctx context.Context, userID string) ([]domain.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.File{}
	for _, f := range m.files {
		if f.UserID == userID {
			out = append(out, f)
		}
	}
	slices.SortFunc(out, func(a, b domain.File) int { return b.UploadedAt.Compare(a.UploadedAt) })
	return out, nil
}

func (m *memFiles) Delete(ctx context.Context, file *domain.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, file.ID)
	u := m.users[file.UserID]
	u.StorageUsed = max(0, u.StorageUsed-file.FileSize)
	return nil
}

func (m *memFiles) TouchLastAccessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	return nil
}

type memUsers struct{ *memFiles }

func (m memUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (m memUsers) GetOrCreate(ctx context.Context, id, email string) (*domain.User, error) {
	m.mu.Lock()
	if _, ok := m.users[id]; !ok {
		m.users[id] = &domain.User{ID: id, Email: email, StorageLimit: 1000}
	}
	m.mu.Unlock()
	return m.GetByID(ctx, id)
}

type memBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (b *memBucket) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
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
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return storage.NewObject(io.NopCloser(bytes.NewReader(data)), int64(len(data)), ""), nil
}

func (b *memBucket) Remove(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

type testServer struct {
	*httptest.Server
	sessions *service.Sessions
	bucket   *memBucket
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	files := &memFiles{
		files: map[uuid.UUID]domain.File{},
		users: map[string]*domain.User{},
		clock: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	users := memUsers{files}
	bucket := &memBucket{objects: map[string][]byte{}}

	provider := auth.NewProvider(auth.NewVerifier(&auth.Config{TokenSecret: testSecret}), auth.NewMemoryRevocations(), users)
	sessions := service.NewSessions(provider,
		service.NewUploadService(files, users, bucket),
		service.NewListingService(files, bucket),
		users, time.Hour)

	router := NewRouter(Handlers{
		Session: NewSessionHandler(sessions),
		File:    NewFileHandler(sessions, 10<<20),
		Quota:   NewStorageQuotaHandler(sessions, service.NewStorageQuotaService(users)),
		Events:  NewEventsHandler(sessions),
	}, []string{"*"})

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		sessions.Close()
	})
	return &testServer{Server: srv, sessions: sessions, bucket: bucket}
}

func (s *testServer) do(t *testing.T, method, path, token string, body io.Reader, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, body)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *testServer) signIn(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.GenerateToken(userID, userID+"@example.com", []byte(testSecret), time.Hour)
	require.NoError(t, err)

	resp := s.do(t, http.MethodPost, "/v1/session", token, nil, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return token
}

func (s *testServer) upload(t *testing.T, token string, files map[string]string) domain.BatchResult {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	resp := s.do(t, http.MethodPost, "/v1/files", token, &body, http.Header{"Content-Type": {mw.FormDataContentType()}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result domain.BatchResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(t, http.MethodGet, "/health", "", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequiresSession(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, "/v1/files", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := auth.GenerateToken("u1", "u1@example.com", []byte(testSecret), time.Hour)
	require.NoError(t, err)
	resp = s.do(t, http.MethodGet, "/v1/dashboard", token, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/v1/session", "garbage", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUploadListDownloadDelete(t *testing.T) {
	s := newTestServer(t)
	token := s.signIn(t, "u1")

	result := s.upload(t, token, map[string]string{"a.txt": "hello", "b.txt": "world!"})
	require.Equal(t, 2, result.Uploaded)

	resp := s.do(t, http.MethodGet, "/v1/files", token, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Files []domain.FileSummary `json:"files"`
		Error string               `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Files, 2)
	assert.Equal(t, "b.txt", list.Files[0].Filename)
	assert.Equal(t, "6 Bytes", list.Files[0].SizeLabel)

	target := list.Files[1]
	resp = s.do(t, http.MethodGet, "/v1/files/"+target.ID.String(), token, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename="a.txt"`, resp.Header.Get("Content-Disposition"))
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	resp = s.do(t, http.MethodDelete, "/v1/files/"+target.ID.String(), token, nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = s.do(t, http.MethodDelete, "/v1/files/"+target.ID.String(), token, nil, http.Header{confirmHeader: {"a.txt"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/v1/quota", token, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var quota domain.QuotaInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&quota))
	assert.Equal(t, int64(6), quota.UsedSpace)
	assert.Equal(t, int64(1000), quota.TotalSpace)

	resp = s.do(t, http.MethodGet, "/v1/files/"+target.ID.String(), token, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUploadOverQuota(t *testing.T) {
	s := newTestServer(t)
	token := s.signIn(t, "u1")

	result := s.upload(t, token, map[string]string{"big.bin": strings.Repeat("x", 1001)})
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, "Storage limit exceeded. Please delete some files first.", result.Error)

	resp := s.do(t, http.MethodGet, "/v1/dashboard", token, nil, nil)
	var view service.DashboardView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, result.Error, view.Error)
	assert.Empty(t, view.Files)
}

func TestOtherUsersFileIsForbidden(t *testing.T) {
	s := newTestServer(t)
	owner := s.signIn(t, "u1")
	other := s.signIn(t, "u2")

	result := s.upload(t, owner, map[string]string{"mine.txt": "x"})
	id := result.Results[0].File.ID.String()

	resp := s.do(t, http.MethodGet, "/v1/files/"+id, other, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/v1/files/not-a-uuid", owner, nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSignOut(t *testing.T) {
	s := newTestServer(t)
	token := s.signIn(t, "u1")

	resp := s.do(t, http.MethodDelete, "/v1/session", token, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Zero(t, s.sessions.Len())

	resp = s.do(t, http.MethodGet, "/v1/dashboard", token, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRefreshDashboard(t *testing.T) {
	s := newTestServer(t)
	token := s.signIn(t, "u1")

	resp := s.do(t, http.MethodPost, "/v1/dashboard/refresh", token, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view service.DashboardView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, 1, view.RefreshTrigger)
	assert.Equal(t, "u1@example.com", view.DisplayName)
}

func TestEventsStream(t *testing.T) {
	s := newTestServer(t)
	token := s.signIn(t, "u1")

	wsURL := "ws" + strings.TrimPrefix(s.URL, "http") + "/v1/events?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	s.upload(t, token, map[string]string{"a.txt": "hello"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got []domain.EventType
	for len(got) < 3 {
		var event domain.Event
		require.NoError(t, conn.ReadJSON(&event))
		got = append(got, event.Type)
	}
	assert.Equal(t, []domain.EventType{
		domain.EventUploadStarted,
		domain.EventFilesChanged,
		domain.EventUploadFinished,
	}, got)
}

func TestEventsRequireSession(t *testing.T) {
	s := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(s.URL, "http") + "/v1/events"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestContentDisposition(t *testing.T) {
	assert.Equal(t, `attachment; filename="a.txt"`, contentDisposition("a.txt"))
	assert.Equal(t, `attachment; filename="say \"hi\".txt"`, contentDisposition(`say "hi".txt`))
	assert.Equal(t, `attachment; filename="download"; filename*=UTF-8''%D0%BE%D1%82%D1%87%D0%B5%D1%82.pdf`, contentDisposition("отчет.pdf"))
}
