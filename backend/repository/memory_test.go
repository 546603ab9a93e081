package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ravigill3969/image-converter/backend/apperr"
	"github.com/ravigill3969/image-converter/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func newOriginal(user models.UserIdentity, key string, expires time.Time) *models.OriginalImage {
	return &models.OriginalImage{
		ID:                       uuid.New(),
		UserID:                   user,
		SessionKey:               "sess-" + string(user),
		DisplayName:              "cat.png",
		ContentType:              "image/png",
		MediaKey:                 key,
		URL:                      "https://cdn.example/" + key,
		SessionKeyExpirationDate: expires,
		CreatedAt:                testNow,
	}
}

func newDerived(orig *models.OriginalImage, keys ...string) *models.DerivedImage {
	q := 80
	d := &models.DerivedImage{
		ID:                       uuid.New(),
		OriginalID:               orig.ID,
		UserID:                   orig.UserID,
		SessionKey:               orig.SessionKey,
		Kind:                     models.TransformConvert,
		DisplayName:              orig.DisplayName,
		Quality:                  &q,
		SessionKeyExpirationDate: orig.SessionKeyExpirationDate,
		CreatedAt:                testNow,
	}
	for _, k := range keys {
		d.Variants = append(d.Variants, models.Variant{
			ID:          uuid.New(),
			Format:      models.FormatWEBP,
			ContentType: "image/webp",
			MediaKey:    k,
			URL:         "https://cdn.example/" + k,
		})
	}
	return d
}

func TestMemoryReplaceOriginalKeepsOne(t *testing.T) {
	repo := NewMemoryImageRepository()
	ctx := context.Background()
	expires := testNow.Add(30 * time.Minute)

	first := newOriginal("user-a", "a/1.png", expires)
	_, err := repo.ReplaceOriginal(ctx, first)
	require.NoError(t, err)
	require.NoError(t, repo.PutDerived(ctx, newDerived(first, "a/1.webp")))

	second := newOriginal("user-a", "a/2.png", expires)
	replaced, err := repo.ReplaceOriginal(ctx, second)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a/1.png", "a/1.webp"}, replaced)

	got, err := repo.FindOriginalByUser(ctx, "user-a")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	derived, err := repo.FindDerivedByUser(ctx, "user-a")
	require.NoError(t, err)
	assert.Empty(t, derived)
}

func TestMemoryPutDerivedNeedsCurrentOriginal(t *testing.T) {
	repo := NewMemoryImageRepository()
	ctx := context.Background()

	stale := newOriginal("user-a", "a/1.png", testNow.Add(time.Hour))
	err := repo.PutDerived(ctx, newDerived(stale, "a/1.webp"))
	assert.True(t, errors.Is(err, apperr.NotFound))
}

func TestMemoryDeleteExpiredIsIdempotent(t *testing.T) {
	repo := NewMemoryImageRepository()
	ctx := context.Background()

	old := newOriginal("user-a", "a/1.png", testNow.Add(-time.Minute))
	_, err := repo.ReplaceOriginal(ctx, old)
	require.NoError(t, err)
	require.NoError(t, repo.PutDerived(ctx, newDerived(old, "a/1.webp", "a/1.gif")))

	live := newOriginal("user-b", "b/1.png", testNow.Add(time.Minute))
	_, err = repo.ReplaceOriginal(ctx, live)
	require.NoError(t, err)

	res, err := repo.DeleteExpired(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Originals)
	assert.Equal(t, 1, res.Derived)
	assert.Equal(t, 2, res.Total())
	assert.ElementsMatch(t, []string{"a/1.png", "a/1.webp", "a/1.gif"}, res.MediaKeys)
	assert.Equal(t, []models.UserIdentity{"user-a"}, res.Users)

	res, err = repo.DeleteExpired(ctx, testNow)
	require.NoError(t, err)
	assert.Zero(t, res.Total())

	got, err := repo.FindOriginalByUser(ctx, "user-b")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestMemorySyncExpiry(t *testing.T) {
	repo := NewMemoryImageRepository()
	ctx := context.Background()

	orig := newOriginal("user-a", "a/1.png", testNow)
	_, err := repo.ReplaceOriginal(ctx, orig)
	require.NoError(t, err)
	d := newDerived(orig, "a/1.webp")
	require.NoError(t, repo.PutDerived(ctx, d))

	later := testNow.Add(time.Hour)
	require.NoError(t, repo.SyncExpiry(ctx, "user-a", later))

	got, _ := repo.FindOriginalByUser(ctx, "user-a")
	assert.Equal(t, later, got.SessionKeyExpirationDate)
	gotD, _ := repo.GetDerived(ctx, d.ID)
	assert.Equal(t, later, gotD.SessionKeyExpirationDate)
}

func TestMemoryDeleteDerivedUnknown(t *testing.T) {
	repo := NewMemoryImageRepository()
	err := repo.DeleteDerived(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, apperr.NotFound))
}
