package apikeys

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ravigill3969/image-converter/backend/models"
)

type MemoryRepository struct {
	mu   sync.Mutex
	keys map[string]models.APIKey
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{keys: make(map[string]models.APIKey)}
}

func (m *MemoryRepository) Create(_ context.Context, key *models.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key.Prefix] = *key
	return nil
}

func (m *MemoryRepository) FindByPrefix(_ context.Context, prefix string) (*models.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[prefix]
	if !ok {
		return nil, nil
	}
	return &k, nil
}

func (m *MemoryRepository) List(_ context.Context) ([]models.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.APIKey, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryRepository) Revoke(_ context.Context, prefix string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[prefix]
	if !ok || k.Revoked() {
		return notFound()
	}
	k.RevokedAt = &at
	m.keys[prefix] = k
	return nil
}

func (m *MemoryRepository) TouchLastUsed(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for prefix, k := range m.keys {
		if k.ID == id {
			k.LastUsedAt = &at
			m.keys[prefix] = k
			return nil
		}
	}
	return nil
}
