package service

import (
	"context"
	"errors"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"willcloud/internal/auth"
	"willcloud/internal/domain"
)

// DefaultReloadInterval is how often a dashboard forces a full reload.
const DefaultReloadInterval = 30 * time.Second

const subscriberBuffer = 16

// DashboardView is the state a client renders.
type DashboardView struct {
	User           *domain.User         `json:"user"`
	DisplayName    string               `json:"display_name"`
	Quota          domain.QuotaInfo     `json:"quota"`
	Files          []domain.FileSummary `json:"files"`
	Loading        bool                 `json:"loading"`
	Uploading      []string             `json:"uploading"`
	DeletingID     string               `json:"deleting_id,omitempty"`
	Error          string               `json:"error,omitempty"`
	RefreshTrigger int                  `json:"refresh_trigger"`
}

// Dashboard holds the per-session client state: the current user record, the
// displayed file list, advisory progress flags and the refresh trigger.
type Dashboard struct {
	session  *auth.Session
	uploads  *UploadService
	listing  *ListingService
	users    UserStore
	interval time.Duration
	now      func() time.Time

	mu          sync.RWMutex
	user        *domain.User
	files       []domain.File
	loading     bool
	uploading   []string
	deletingID  string
	lastError   string
	trigger     int
	subscribers map[chan domain.Event]struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

func NewDashboard(sess *auth.Session, uploads *UploadService, listing *ListingService, users UserStore, interval time.Duration) *Dashboard {
	if interval <= 0 {
		interval = DefaultReloadInterval
	}
	return &Dashboard{
		session:     sess,
		uploads:     uploads,
		listing:     listing,
		users:       users,
		interval:    interval,
		now:         time.Now,
		user:        sess.User,
		files:       []domain.File{},
		subscribers: make(map[chan domain.Event]struct{}),
	}
}

func (d *Dashboard) Session() *auth.Session {
	return d.session
}

// View returns a copy of the current state.
func (d *Dashboard) View() DashboardView {
	d.mu.RLock()
	defer d.mu.RUnlock()

	view := DashboardView{
		Quota:          QuotaInfoFor(d.user),
		Files:          Summarize(d.files, d.now()),
		Loading:        d.loading,
		Uploading:      slices.Clone(d.uploading),
		DeletingID:     d.deletingID,
		Error:          d.lastError,
		RefreshTrigger: d.trigger,
	}
	if view.Uploading == nil {
		view.Uploading = []string{}
	}
	if d.user != nil {
		user := *d.user
		view.User = &user
		view.DisplayName = user.DisplayName()
	}
	return view
}

// Start runs the periodic full reload until Stop is called, the parent
// context ends or the session token expires. onEnd runs once the loop exits.
func (d *Dashboard) Start(parent context.Context, onEnd func()) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if d.session.ExpiresAt.IsZero() {
		ctx, cancel = context.WithCancel(parent)
	} else {
		ctx, cancel = context.WithDeadline(parent, d.session.ExpiresAt)
	}

	d.mu.Lock()
	d.cancel = cancel
	d.done = make(chan struct{})
	done := d.done
	d.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		d.run(ctx)
		if onEnd != nil {
			onEnd()
		}
	}()
}

// Stop ends the reload loop and waits for it to exit.
func (d *Dashboard) Stop() {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (d *Dashboard) run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Dashboard] reload loop for %s stopped", d.session.UserID)
			return
		case <-ticker.C:
			d.Reload(ctx)
		}
	}
}

// Reload re-reads the user record and the whole file list.
func (d *Dashboard) Reload(ctx context.Context) {
	d.reloadUser(ctx)
	d.FetchFiles(ctx)
	d.publish(domain.Event{Type: domain.EventDashboardReloaded})
}

// Refresh bumps the refresh trigger and re-fetches the listing and quota.
func (d *Dashboard) Refresh(ctx context.Context) {
	d.mu.Lock()
	d.trigger++
	d.mu.Unlock()

	d.reloadUser(ctx)
	d.FetchFiles(ctx)
}

// FetchFiles replaces the displayed list. On failure the prior list stays
// displayed and nothing is retried.
func (d *Dashboard) FetchFiles(ctx context.Context) error {
	d.mu.Lock()
	d.loading = true
	d.mu.Unlock()

	files, err := d.listing.List(ctx, d.session)

	d.mu.Lock()
	d.loading = false
	if err == nil {
		d.files = files
	}
	d.mu.Unlock()

	if err != nil {
		log.Printf("[Dashboard] error fetching files for %s: %v", d.session.UserID, err)
		return err
	}

	d.publish(domain.Event{Type: domain.EventFilesChanged})
	return nil
}

func (d *Dashboard) reloadUser(ctx context.Context) {
	user, err := d.users.GetByID(ctx, d.session.UserID)
	if err != nil {
		log.Printf("[Dashboard] error reloading user %s: %v", d.session.UserID, err)
		return
	}

	d.mu.Lock()
	d.user = user
	d.mu.Unlock()
}

// Upload runs a batch and keeps its last message as the dashboard error.
func (d *Dashboard) Upload(ctx context.Context, files []domain.LocalFile) (*domain.BatchResult, error) {
	d.mu.Lock()
	d.lastError = ""
	d.mu.Unlock()

	result, err := d.uploads.UploadBatch(ctx, d.session, files, d)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.lastError = result.Error
	d.mu.Unlock()

	return result, nil
}

// Download streams a file through deliver.
func (d *Dashboard) Download(ctx context.Context, id uuid.UUID, deliver DeliverFunc) (*domain.File, error) {
	return d.listing.Download(ctx, d.session, id, deliver)
}

// Delete removes a file and drops it from the displayed list without a
// re-fetch.
func (d *Dashboard) Delete(ctx context.Context, id uuid.UUID, confirmation string) (*domain.File, error) {
	d.mu.Lock()
	d.deletingID = id.String()
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.deletingID = ""
		d.mu.Unlock()
	}()

	file, err := d.listing.Delete(ctx, d.session, id, confirmation)
	if err != nil {
		if !errors.Is(err, ErrNotConfirmed) {
			d.mu.Lock()
			d.lastError = err.Error()
			d.mu.Unlock()
		}
		return nil, err
	}

	d.mu.Lock()
	d.files = slices.DeleteFunc(d.files, func(f domain.File) bool { return f.ID == file.ID })
	d.mu.Unlock()

	d.reloadUser(ctx)
	d.publish(domain.Event{Type: domain.EventFileDeleted, FileID: file.ID.String(), Filename: file.Filename})

	return file, nil
}

// MarkUploading implements UploadObserver.
func (d *Dashboard) MarkUploading(filename string) {
	d.mu.Lock()
	d.uploading = append(d.uploading, filename)
	d.mu.Unlock()

	d.publish(domain.Event{Type: domain.EventUploadStarted, Filename: filename})
}

// ClearUploading implements UploadObserver. Every entry with the name is
// removed, as the client list is keyed by filename.
func (d *Dashboard) ClearUploading(filename string, err error) {
	d.mu.Lock()
	d.uploading = slices.DeleteFunc(d.uploading, func(name string) bool { return name == filename })
	d.mu.Unlock()

	if err != nil {
		d.publish(domain.Event{Type: domain.EventUploadFailed, Filename: filename, Message: err.Error()})
		return
	}
	d.publish(domain.Event{Type: domain.EventUploadFinished, Filename: filename})
}

// Subscribe registers for events. Slow subscribers miss events rather than
// blocking the dashboard. The returned func unsubscribes.
func (d *Dashboard) Subscribe() (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, subscriberBuffer)

	d.mu.Lock()
	d.subscribers[ch] = struct{}{}
	d.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subscribers, ch)
			d.mu.Unlock()
			close(ch)
		})
	}
}

func (d *Dashboard) publish(event domain.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	event.Trigger = d.trigger
	event.At = d.now()

	for ch := range d.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
