package storage

import (
	"context"
	"crypto/md5" //nolint:gosec // ETag compatible checksum, not a security control
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"sync"
	"time"
)

// Memory is an in-process Storage used by tests and local development.
// Presigned URLs use the memory:// scheme; uploads go through Put.
type Memory struct {
	bucket string

	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
	etag        string
	modified    time.Time
}

// NewMemory creates an empty in-memory bucket.
func NewMemory(bucket string) *Memory {
	return &Memory{bucket: bucket, objects: make(map[string]memoryObject)}
}

func (m *Memory) Provider() string { return ProviderMemory }

// Put stores data under key, as a client PUT to the presigned URL would.
func (m *Memory) Put(key string, data []byte, contentType string) {
	sum := md5.Sum(data) //nolint:gosec // see import
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{
		data:        append([]byte(nil), data...),
		contentType: contentType,
		etag:        hex.EncodeToString(sum[:]),
		modified:    time.Now(),
	}
}

func (m *Memory) presign(method, key string, ttl time.Duration) string {
	q := url.Values{}
	q.Set("method", method)
	q.Set("expires", fmt.Sprintf("%d", time.Now().Add(ttl).Unix()))
	return (&url.URL{Scheme: "memory", Host: m.bucket, Path: "/" + key, RawQuery: q.Encode()}).String()
}

func (m *Memory) PresignedUploadURL(ctx context.Context, key, _ string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", storageError(err, "presign_put", key)
	}
	return m.presign("PUT", key, ttl), nil
}

func (m *Memory) PresignedReadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", storageError(err, "presign_get", key)
	}
	return m.presign("GET", key, ttl), nil
}

func (m *Memory) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageError(err, "head", key)
	}
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrObjectNotFound
	}
	return &ObjectInfo{
		Key:          key,
		Size:         int64(len(obj.data)),
		ETag:         obj.etag,
		ContentType:  obj.contentType,
		LastModified: obj.modified,
	}, nil
}

func (m *Memory) Download(ctx context.Context, key, localPath string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, storageError(err, "download", key)
	}
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return 0, ErrObjectNotFound
	}
	if err := os.WriteFile(localPath, obj.data, 0o600); err != nil {
		return 0, storageError(err, "download", key)
	}
	return int64(len(obj.data)), nil
}
