package service

import "errors"

var (
	ErrQuotaExceeded = errors.New("storage limit exceeded")
	ErrFileNotFound  = errors.New("file not found")
	ErrAccessDenied  = errors.New("access denied")
	ErrNotConfirmed  = errors.New("deletion not confirmed")
	ErrNoUser        = errors.New("no current user")
	ErrS3Operation   = errors.New("s3 operation failed")
	ErrDatabaseError = errors.New("database operation failed")
)

// quotaExceededMessage is what the upload banner shows for a skipped file.
const quotaExceededMessage = "Storage limit exceeded. Please delete some files first."
