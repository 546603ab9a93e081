package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ravigill3969/image-converter/backend/apperr"
	"github.com/ravigill3969/image-converter/backend/models"
)

// MemoryImageRepository keeps everything in process. It backs development
// runs without DATABASE_URL and the tracker tests.
type MemoryImageRepository struct {
	mu        sync.Mutex
	originals map[models.UserIdentity]models.OriginalImage
	derived   map[uuid.UUID]models.DerivedImage
}

func NewMemoryImageRepository() *MemoryImageRepository {
	return &MemoryImageRepository{
		originals: make(map[models.UserIdentity]models.OriginalImage),
		derived:   make(map[uuid.UUID]models.DerivedImage),
	}
}

func (m *MemoryImageRepository) FindOriginalByUser(_ context.Context, user models.UserIdentity) (*models.OriginalImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.originals[user]
	if !ok {
		return nil, nil
	}
	return &img, nil
}

func (m *MemoryImageRepository) ReplaceOriginal(_ context.Context, img *models.OriginalImage) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := m.removeUserLocked(img.UserID)
	m.originals[img.UserID] = *img
	return keys, nil
}

func (m *MemoryImageRepository) DeleteOriginal(_ context.Context, user models.UserIdentity) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeUserLocked(user), nil
}

func (m *MemoryImageRepository) GetDerived(_ context.Context, id uuid.UUID) (*models.DerivedImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.derived[id]
	if !ok {
		return nil, nil
	}
	return cloneDerived(d), nil
}

func (m *MemoryImageRepository) PutDerived(_ context.Context, d *models.DerivedImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	orig, ok := m.originals[d.UserID]
	if !ok || orig.ID != d.OriginalID {
		return apperr.NewNotFound("Original image not found")
	}
	m.derived[d.ID] = *cloneDerived(*d)
	return nil
}

func (m *MemoryImageRepository) FindDerivedByUser(_ context.Context, user models.UserIdentity) ([]models.DerivedImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []models.DerivedImage
	for _, d := range m.derived {
		if d.UserID == user {
			list = append(list, *cloneDerived(d))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

func (m *MemoryImageRepository) DeleteDerived(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.derived[id]; !ok {
		return apperr.NewNotFound("Image not found")
	}
	delete(m.derived, id)
	return nil
}

func (m *MemoryImageRepository) SyncExpiry(_ context.Context, user models.UserIdentity, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if img, ok := m.originals[user]; ok {
		img.SessionKeyExpirationDate = expiresAt
		m.originals[user] = img
	}
	for id, d := range m.derived {
		if d.UserID == user {
			d.SessionKeyExpirationDate = expiresAt
			m.derived[id] = d
		}
	}
	return nil
}

func (m *MemoryImageRepository) DeleteExpired(_ context.Context, now time.Time) (*PurgeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := &PurgeResult{}

	expiredOriginals := make(map[uuid.UUID]bool)
	for user, img := range m.originals {
		if img.SessionKeyExpirationDate.Before(now) {
			expiredOriginals[img.ID] = true
			result.Originals++
			result.MediaKeys = append(result.MediaKeys, img.MediaKey)
			result.Users = append(result.Users, user)
			delete(m.originals, user)
		}
	}
	for id, d := range m.derived {
		if d.SessionKeyExpirationDate.Before(now) || expiredOriginals[d.OriginalID] {
			result.Derived++
			result.MediaKeys = append(result.MediaKeys, d.MediaKeys()...)
			delete(m.derived, id)
		}
	}
	return result, nil
}

func (m *MemoryImageRepository) removeUserLocked(user models.UserIdentity) []string {
	var keys []string
	if img, ok := m.originals[user]; ok {
		keys = append(keys, img.MediaKey)
		delete(m.originals, user)
	}
	for id, d := range m.derived {
		if d.UserID == user {
			keys = append(keys, d.MediaKeys()...)
			delete(m.derived, id)
		}
	}
	return keys
}

func cloneDerived(d models.DerivedImage) *models.DerivedImage {
	out := d
	out.Variants = append([]models.Variant(nil), d.Variants...)
	if d.Quality != nil {
		q := *d.Quality
		out.Quality = &q
	}
	if d.Edit != nil {
		e := *d.Edit
		out.Edit = &e
	}
	return &out
}
