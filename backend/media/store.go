// Package media talks to the object store and the image transformation
// service. Every call here is an upstream call.
package media

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/ravigill3969/image-converter/backend/models"
)

// Store is an S3 compatible bucket.
type Store interface {
	// Upload writes body under key and returns the public URL of the object.
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Bucket() string
}

// UserFolder is the per-user prefix every object of user lives under.
func UserFolder(user models.UserIdentity) string {
	return fmt.Sprintf("users/%s/", user)
}

func ObjectKey(user models.UserIdentity, id uuid.UUID, ext string) string {
	return fmt.Sprintf("%s%s.%s", UserFolder(user), id, ext)
}
