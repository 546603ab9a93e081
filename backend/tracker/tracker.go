// Package tracker binds an anonymous session to at most one original image
// and the images derived from it. Everything it owns expires with the
// session.
package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ravigill3969/image-converter/backend/media"
	"github.com/ravigill3969/image-converter/backend/models"
	"github.com/ravigill3969/image-converter/backend/repository"
	"github.com/sirupsen/logrus"
)

type SessionStore interface {
	Create(ctx context.Context) (*models.UserSession, error)
	Get(ctx context.Context, key string) (*models.UserSession, error)
	Refresh(ctx context.Context, sess *models.UserSession) (*models.UserSession, error)
}

type TokenCodec interface {
	Encode(sess *models.UserSession) (string, error)
	Decode(token string) (string, error)
}

type MediaService interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
	Transform(ctx context.Context, req media.TransformRequest) (*media.TransformResult, error)
	Delete(ctx context.Context, keys ...string) error
	Archive(ctx context.Context, archiveKey string, entries []media.ArchiveEntry) (*models.ArchiveLink, error)
}

type Tracker struct {
	sessions  SessionStore
	tokens    TokenCodec
	repo      repository.ImageRepository
	media     MediaService
	maxUpload int64
	log       logrus.FieldLogger
	nowF      func() time.Time
}

func New(sessions SessionStore, tokens TokenCodec, repo repository.ImageRepository, mediaSvc MediaService,
	maxUploadBytes int64, log logrus.FieldLogger) *Tracker {
	return &Tracker{
		sessions:  sessions,
		tokens:    tokens,
		repo:      repo,
		media:     mediaSvc,
		maxUpload: maxUploadBytes,
		log:       log.WithField("component", "tracker"),
		nowF:      func() time.Time { return time.Now().UTC() },
	}
}

// StartSession creates a fresh anonymous identity and its signed token.
func (t *Tracker) StartSession(ctx context.Context) (*models.UserSession, string, error) {
	sess, err := t.sessions.Create(ctx)
	if err != nil {
		return nil, "", err
	}
	token, err := t.tokens.Encode(sess)
	if err != nil {
		return nil, "", err
	}
	t.log.WithField("user_id", sess.UserID).Debug("session started")
	return sess, token, nil
}

// ResolveUserIdentity maps a session token to its live session. Missing,
// forged, unknown and expired tokens are all Unauthenticated.
func (t *Tracker) ResolveUserIdentity(ctx context.Context, token string) (*models.UserSession, error) {
	key, err := t.tokens.Decode(token)
	if err != nil {
		return nil, err
	}
	return t.sessions.Get(ctx, key)
}

// Touch slides the session expiry and carries it onto every row the user
// owns. It returns the refreshed session and a token for the new expiry.
func (t *Tracker) Touch(ctx context.Context, sess *models.UserSession) (*models.UserSession, string, error) {
	refreshed, err := t.sessions.Refresh(ctx, sess)
	if err != nil {
		return nil, "", err
	}
	if err := t.repo.SyncExpiry(ctx, refreshed.UserID, refreshed.ExpiresAt); err != nil {
		return nil, "", fmt.Errorf("sync asset expiry: %w", err)
	}
	token, err := t.tokens.Encode(refreshed)
	if err != nil {
		return nil, "", err
	}
	return refreshed, token, nil
}

// deleteBestEffort removes media objects whose rows are already gone. A
// failure leaves an orphan object behind and is only logged.
func (t *Tracker) deleteBestEffort(ctx context.Context, reason string, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := t.media.Delete(ctx, keys...); err != nil {
		t.log.WithError(err).WithFields(logrus.Fields{
			"reason": reason,
			"keys":   len(keys),
		}).Error("failed to delete media objects")
	}
}

func newID() uuid.UUID {
	return uuid.New()
}
