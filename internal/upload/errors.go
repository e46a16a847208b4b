package upload

import (
	"errors"
	"fmt"
)

// Client-fault errors. They are answered with 4xx and never logged as
// server errors.
var (
	ErrUnauthenticated      = errors.New("authentication required")
	ErrNoFile               = errors.New("no file uploaded")
	ErrMalformedUpload      = errors.New("malformed multipart body")
	ErrUnsupportedMediaType = fmt.Errorf("only %s files are allowed", allowedList())
	ErrPayloadTooLarge      = errors.New("file too large")
)

// StorageError reports a failure of the object storage backend. The backend
// message is kept for logs and never sent to clients.
type StorageError struct {
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store %q: %v", e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsClientError reports whether err is caused by the request itself.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrNoFile) ||
		errors.Is(err, ErrMalformedUpload) ||
		errors.Is(err, ErrUnsupportedMediaType) ||
		errors.Is(err, ErrPayloadTooLarge)
}
