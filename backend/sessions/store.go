// Package sessions keeps anonymous user sessions in Redis with a sliding TTL.
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ravigill3969/image-converter/backend/apperr"
	"github.com/ravigill3969/image-converter/backend/models"
	"github.com/ravigill3969/image-converter/backend/utils"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix      = "session:"
	sessionKeySize = 32
	redisTimeout   = 5 * time.Second
)

type Store struct {
	rdb  redis.Cmdable
	ttl  time.Duration
	nowF func() time.Time
}

func NewStore(rdb redis.Cmdable, ttl time.Duration) *Store {
	return &Store{
		rdb:  rdb,
		ttl:  ttl,
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// Create starts a new anonymous session with a fresh user id.
func (s *Store) Create(ctx context.Context) (*models.UserSession, error) {
	key, err := utils.GenerateKey(sessionKeySize)
	if err != nil {
		return nil, fmt.Errorf("generate session key: %w", err)
	}
	now := s.nowF()
	sess := &models.UserSession{
		Key:         key,
		UserID:      models.UserIdentity(uuid.NewString()),
		CreatedAt:   now,
		RefreshedAt: now,
		ExpiresAt:   now.Add(s.ttl),
	}

	raw, err := json.Marshal(sess)
	if err != nil {
		return nil, err
	}

	opCtx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	if err := s.rdb.Set(opCtx, keyPrefix+key, raw, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

// Get loads the session for key. A missing or expired session is
// Unauthenticated.
func (s *Store) Get(ctx context.Context, key string) (*models.UserSession, error) {
	if key == "" {
		return nil, apperr.NewUnauthenticated("Session required")
	}

	opCtx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	raw, err := s.rdb.Get(opCtx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperr.NewUnauthenticated("Session expired")
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var sess models.UserSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if sess.Expired(s.nowF()) {
		_ = s.Delete(ctx, key)
		return nil, apperr.NewUnauthenticated("Session expired")
	}
	return &sess, nil
}

// Refresh slides the expiry to now+ttl. It never resurrects a session that
// Redis already dropped.
func (s *Store) Refresh(ctx context.Context, sess *models.UserSession) (*models.UserSession, error) {
	now := s.nowF()
	next := *sess
	next.RefreshedAt = now
	next.ExpiresAt = now.Add(s.ttl)

	raw, err := json.Marshal(&next)
	if err != nil {
		return nil, err
	}

	opCtx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	ok, err := s.rdb.SetXX(opCtx, keyPrefix+sess.Key, raw, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	if !ok {
		return nil, apperr.NewUnauthenticated("Session expired")
	}
	return &next, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	opCtx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	return s.rdb.Del(opCtx, keyPrefix+key).Err()
}
