// Package storage abstracts the object store holding uploaded photos.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/handscan/handscan/internal/conf"
	"github.com/handscan/handscan/internal/errors"
	"github.com/handscan/handscan/internal/privacy"
)

// Provider names accepted in storage.provider.
const (
	ProviderS3     = "s3"
	ProviderMemory = "memory"
)

// ErrObjectNotFound is returned by Head when the key does not exist.
var ErrObjectNotFound = errors.NewStd("object not found")

// ObjectInfo is the metadata of a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
}

// Storage is a bucket-bound object store.
type Storage interface {
	// Provider returns the provider name recorded on assets.
	Provider() string

	// PresignedUploadURL returns a URL the client can PUT the object to.
	PresignedUploadURL(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)

	// PresignedReadURL returns a time-limited GET URL.
	PresignedReadURL(ctx context.Context, key string, ttl time.Duration) (string, error)

	// Head returns object metadata or ErrObjectNotFound.
	Head(ctx context.Context, key string) (*ObjectInfo, error)

	// Download copies the object to localPath and returns the byte count.
	Download(ctx context.Context, key, localPath string) (int64, error)
}

// New builds the Storage selected by settings.Provider.
func New(settings *conf.StorageSettings) (Storage, error) {
	switch settings.Provider {
	case ProviderS3:
		return NewS3(settings)
	case ProviderMemory, "":
		bucket := settings.Bucket
		if bucket == "" {
			bucket = "handscan"
		}
		return NewMemory(bucket), nil
	default:
		return nil, errors.Newf("unsupported storage provider %q", settings.Provider).
			Component("storage").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// storageError wraps a transport failure with the s3_error code. Signed
// URLs in the transport error are scrubbed.
func storageError(err error, operation, key string) error {
	return errors.New(fmt.Errorf("%s %s: %w", operation, key, privacy.WrapError(err))).
		Component("storage").
		Category(errors.CategoryStorage).
		Code("s3_error").
		Context("operation", operation).
		Build()
}
