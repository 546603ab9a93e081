package media

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/ravigill3969/image-converter/backend/apperr"
	"github.com/ravigill3969/image-converter/backend/models"
	"github.com/sirupsen/logrus"
)

// Service bounds every store and transformer call by the upstream timeout
// and turns failures into apperr Upstream errors.
type Service struct {
	store       Store
	transformer Transformer
	timeout     time.Duration
	archiveTTL  time.Duration
	log         logrus.FieldLogger
	nowF        func() time.Time
}

func NewService(store Store, transformer Transformer, timeout, archiveTTL time.Duration, log logrus.FieldLogger) *Service {
	return &Service{
		store:       store,
		transformer: transformer,
		timeout:     timeout,
		archiveTTL:  archiveTTL,
		log:         log.WithField("component", "media"),
		nowF:        time.Now,
	}
}

// ArchiveEntry is one file of a download-all archive.
type ArchiveEntry struct {
	Name string
	Key  string
}

func (s *Service) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	url, err := s.store.Upload(ctx, key, contentType, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", apperr.NewUpstream("Failed to upload image", err)
	}
	return url, nil
}

func (s *Service) Transform(ctx context.Context, req TransformRequest) (*TransformResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.transformer.Transform(ctx, req)
	if err != nil {
		return nil, apperr.NewUpstream("Failed to process image", err)
	}
	return res, nil
}

// Delete removes every key and keeps going past failures. The returned
// error joins all of them.
func (s *Service) Delete(ctx context.Context, keys ...string) error {
	var errs []error
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.deleteOne(ctx, key); err != nil {
			errs = append(errs, err)
			continue
		}
		s.log.WithField("key", key).Debug("deleted media object")
	}
	if err := errors.Join(errs...); err != nil {
		return apperr.NewUpstream("Failed to delete image", err)
	}
	return nil
}

func (s *Service) deleteOne(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.Delete(ctx, key)
}

// Archive zips entries into one object under archiveKey and returns a
// presigned link to it.
func (s *Service) Archive(ctx context.Context, archiveKey string, entries []ArchiveEntry) (*models.ArchiveLink, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	used := make(map[string]int)

	for _, e := range entries {
		data, err := s.download(ctx, e.Key)
		if err != nil {
			return nil, apperr.NewUpstream("Failed to build archive", err)
		}

		w, err := zw.Create(uniqueName(used, e.Name))
		if err != nil {
			return nil, fmt.Errorf("zip entry: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("zip write: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip close: %w", err)
	}

	if _, err := s.Upload(ctx, archiveKey, "application/zip", buf.Bytes()); err != nil {
		return nil, err
	}

	presignCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	link, err := s.store.PresignGet(presignCtx, archiveKey, s.archiveTTL)
	if err != nil {
		return nil, apperr.NewUpstream("Failed to build archive", err)
	}

	return &models.ArchiveLink{
		URL:       link,
		ExpiresAt: s.nowF().Add(s.archiveTTL).UTC(),
		Files:     len(entries),
	}, nil
}

func (s *Service) download(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.Download(ctx, key)
}

// ArchiveKey is where the download-all archive of user is written. Each
// request overwrites the previous archive.
func ArchiveKey(user models.UserIdentity) string {
	return UserFolder(user) + "archive.zip"
}

func baseName(key string) string {
	return path.Base(key)
}

// uniqueName keeps zip entry names distinct: a second "cat.png" becomes
// "cat (1).png".
func uniqueName(used map[string]int, name string) string {
	n := used[name]
	used[name] = n + 1
	if n == 0 {
		return name
	}
	ext := path.Ext(name)
	return fmt.Sprintf("%s (%d)%s", name[:len(name)-len(ext)], n, ext)
}
