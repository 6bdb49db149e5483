package storage

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/handscan/handscan/internal/conf"
	"github.com/handscan/handscan/internal/errors"
)

// S3 stores objects in an S3 compatible bucket (AWS, R2, MinIO).
type S3 struct {
	client *minio.Client
	bucket string
}

// NewS3 creates an S3 store. No request is made until first use.
func NewS3(settings *conf.StorageSettings) (*S3, error) {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(settings.Endpoint, "https://"), "http://")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(settings.AccessKey, settings.SecretKey, ""),
		Secure: settings.UseSSL,
		Region: settings.Region,
	})
	if err != nil {
		return nil, errors.New(err).
			Component("storage").
			Category(errors.CategoryConfiguration).
			Context("endpoint", endpoint).
			Build()
	}
	return &S3{client: client, bucket: settings.Bucket}, nil
}

func (s *S3) Provider() string { return ProviderS3 }

func (s *S3) PresignedUploadURL(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	headers := http.Header{}
	if contentType != "" {
		headers.Set("Content-Type", contentType)
	}
	u, err := s.client.PresignHeader(ctx, http.MethodPut, s.bucket, key, ttl, nil, headers)
	if err != nil {
		return "", storageError(err, "presign_put", key)
	}
	return u.String(), nil
}

func (s *S3) PresignedReadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, nil)
	if err != nil {
		return "", storageError(err, "presign_get", key)
	}
	return u.String(), nil
}

func (s *S3) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, storageError(err, "head", key)
	}
	return &ObjectInfo{
		Key:          key,
		Size:         info.Size,
		ETag:         strings.Trim(info.ETag, `"`),
		ContentType:  info.ContentType,
		LastModified: info.LastModified,
	}, nil
}

func (s *S3) Download(ctx context.Context, key, localPath string) (int64, error) {
	if err := s.client.FGetObject(ctx, s.bucket, key, localPath, minio.GetObjectOptions{}); err != nil {
		if isNotFound(err) {
			return 0, ErrObjectNotFound
		}
		return 0, storageError(err, "download", key)
	}
	info, err := s.Head(ctx, key)
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey"
}
