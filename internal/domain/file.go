package domain

import (
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

const DefaultMIMEType = "application/octet-stream"

type File struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	UserID       string     `json:"user_id" db:"user_id"`
	Filename     string     `json:"filename" db:"filename"`
	FileSize     int64      `json:"file_size" db:"file_size"`
	MIMEType     string     `json:"mime_type" db:"mime_type"`
	StoragePath  string     `json:"storage_path" db:"storage_path"`
	UploadedAt   time.Time  `json:"uploaded_at" db:"uploaded_at"`
	LastAccessed *time.Time `json:"last_accessed,omitempty" db:"last_accessed"`
}

// LocalFile is one entry of an upload batch as received from the client.
type LocalFile struct {
	Name     string
	Size     int64
	MIMEType string
	Open     func() (io.ReadCloser, error)
}

// ContentType returns the declared MIME type or the generic binary type.
func (f LocalFile) ContentType() string {
	if f.MIMEType == "" {
		return DefaultMIMEType
	}
	return f.MIMEType
}

// FileKind groups MIME types the way the file list renders icons.
type FileKind string

const (
	KindImage    FileKind = "image"
	KindVideo    FileKind = "video"
	KindAudio    FileKind = "audio"
	KindDocument FileKind = "document"
	KindArchive  FileKind = "archive"
	KindOther    FileKind = "file"
)

func KindOf(mimeType string) FileKind {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return KindImage
	case strings.HasPrefix(mimeType, "video/"):
		return KindVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return KindAudio
	case strings.HasPrefix(mimeType, "text/") || strings.Contains(mimeType, "pdf"):
		return KindDocument
	case strings.Contains(mimeType, "zip") || strings.Contains(mimeType, "rar"):
		return KindArchive
	}
	return KindOther
}

// FileSummary is a listing row prepared for display.
type FileSummary struct {
	File
	Kind          FileKind `json:"kind"`
	SizeLabel     string   `json:"size_label"`
	UploadedLabel string   `json:"uploaded_label"`
}

// FileUploadResult is the outcome of one file in an upload batch.
type FileUploadResult struct {
	Filename string `json:"filename"`
	File     *File  `json:"file,omitempty"`
	Error    string `json:"error,omitempty"`
}

// BatchResult describes a whole upload batch. Error holds the last
// user-visible message, matching what the upload banner shows.
type BatchResult struct {
	Results  []FileUploadResult `json:"results"`
	Uploaded int                `json:"uploaded"`
	Failed   int                `json:"failed"`
	Error    string             `json:"error,omitempty"`
}
