package domain

import "time"

type EventType string

const (
	EventFilesChanged      EventType = "files.changed"
	EventUploadStarted     EventType = "upload.started"
	EventUploadFinished    EventType = "upload.finished"
	EventUploadFailed      EventType = "upload.failed"
	EventFileDeleted       EventType = "file.deleted"
	EventDashboardReloaded EventType = "dashboard.reloaded"
)

// Event is pushed to a session's subscribers whenever dashboard state changes.
type Event struct {
	Type     EventType `json:"type"`
	Filename string    `json:"filename,omitempty"`
	FileID   string    `json:"file_id,omitempty"`
	Message  string    `json:"message,omitempty"`
	Trigger  int       `json:"trigger"`
	At       time.Time `json:"at"`
}
