package storage

import (
	"context"
	"errors"
	"io"
)

var ErrObjectNotFound = errors.New("object not found")

// Object is a blob being read back from the bucket. Callers must close it.
type Object interface {
	io.ReadCloser
	ContentLength() int64
	ContentType() string
}

// Storage is the object store bucket the workflows write blobs into. Keys are
// opaque; the {user_id}/ prefix is a convention of the callers.
type Storage interface {
	// Upload writes size bytes from body under key.
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	// Download opens the blob stored under key.
	Download(ctx context.Context, key string) (Object, error)
	// Remove deletes the blob; removing a missing key succeeds.
	Remove(ctx context.Context, key string) error
}

type object struct {
	io.ReadCloser
	contentLength int64
	contentType   string
}

// NewObject wraps a reader with its length and content type.
func NewObject(rc io.ReadCloser, contentLength int64, contentType string) Object {
	return &object{ReadCloser: rc, contentLength: contentLength, contentType: contentType}
}

func (o *object) ContentLength() int64 {
	return o.contentLength
}

func (o *object) ContentType() string {
	return o.contentType
}
