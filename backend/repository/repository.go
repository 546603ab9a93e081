// Package repository persists image metadata. Binary assets live in the media
// store; rows here only carry their keys and URLs.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ravigill3969/image-converter/backend/models"
)

// ImageRepository is the persistence port of the tracker. Lookups return
// (nil, nil) when no row matches; expiry filtering is left to the caller.
type ImageRepository interface {
	FindOriginalByUser(ctx context.Context, user models.UserIdentity) (*models.OriginalImage, error)
	// ReplaceOriginal stores img as the user's only original. Any prior
	// original and its derived images are removed in the same transaction
	// and their media keys returned.
	ReplaceOriginal(ctx context.Context, img *models.OriginalImage) ([]string, error)
	// DeleteOriginal removes the user's original and everything derived from it.
	DeleteOriginal(ctx context.Context, user models.UserIdentity) ([]string, error)

	GetDerived(ctx context.Context, id uuid.UUID) (*models.DerivedImage, error)
	// PutDerived fails with NotFound when d.OriginalID is no longer the
	// user's original.
	PutDerived(ctx context.Context, d *models.DerivedImage) error
	FindDerivedByUser(ctx context.Context, user models.UserIdentity) ([]models.DerivedImage, error)
	DeleteDerived(ctx context.Context, id uuid.UUID) error

	SyncExpiry(ctx context.Context, user models.UserIdentity, expiresAt time.Time) error
	DeleteExpired(ctx context.Context, now time.Time) (*PurgeResult, error)
}

type PurgeResult struct {
	Originals int
	Derived   int
	MediaKeys []string
	// Users whose original was removed.
	Users []models.UserIdentity
}

func (r *PurgeResult) Total() int {
	return r.Originals + r.Derived
}
