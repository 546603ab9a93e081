package models

import (
	"time"

	"github.com/google/uuid"
)

// APIKey is a stored machine credential. Only the bcrypt hash of the raw key
// is kept; Prefix is the public part used for lookup.
type APIKey struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Prefix     string     `json:"prefix"`
	HashedKey  string     `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}

func (k *APIKey) Revoked() bool {
	return k.RevokedAt != nil
}

// IssuedAPIKey is returned exactly once, when the key is created.
type IssuedAPIKey struct {
	Key    *APIKey `json:"key"`
	RawKey string  `json:"raw_key"`
}
