package media

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/ravigill3969/image-converter/backend/config"
)

// ClientMinio is the part of *minio.Client the store uses.
type ClientMinio interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

type MinioStore struct {
	client  ClientMinio
	bucket  string
	baseURL string

	// open reads an object back. Tests swap it since *minio.Object has no
	// public constructor.
	open func(ctx context.Context, key string) (io.ReadCloser, error)
}

func NewMinioStore(cfg config.MinioProperties) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return NewMinioStoreWithClient(client, cfg.Bucket, fmt.Sprintf("%s://%s", scheme, cfg.Endpoint)), nil
}

func NewMinioStoreWithClient(client ClientMinio, bucket, baseURL string) *MinioStore {
	s := &MinioStore{client: client, bucket: bucket, baseURL: baseURL}
	s.open = func(ctx context.Context, key string) (io.ReadCloser, error) {
		return s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	}
	return s
}

func (s *MinioStore) Bucket() string { return s.bucket }

func (s *MinioStore) Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to upload to minio: %w", err)
	}
	return fmt.Sprintf("%s/%s/%s", s.baseURL, s.bucket, key), nil
}

func (s *MinioStore) Download(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get minio object %s: %w", key, err)
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

func (s *MinioStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete minio object %s: %w", key, err)
	}
	return nil
}

func (s *MinioStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	reqParams := make(url.Values)
	reqParams.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", baseName(key)))

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, reqParams)
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return u.String(), nil
}
