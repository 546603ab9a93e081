package models

import "time"

// UserSession binds an opaque session key to an anonymous user id.
// ExpiresAt is always RefreshedAt plus the session TTL.
type UserSession struct {
	Key         string       `json:"key"`
	UserID      UserIdentity `json:"user_id"`
	CreatedAt   time.Time    `json:"created_at"`
	RefreshedAt time.Time    `json:"refreshed_at"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

func (s *UserSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
