// Package apikeys issues and checks the shared-secret keys used by the admin
// surface. A raw key looks like "<prefix>.<secret>"; only a bcrypt hash of
// the secret is stored.
package apikeys

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ravigill3969/image-converter/backend/apperr"
	"github.com/ravigill3969/image-converter/backend/models"
	"github.com/ravigill3969/image-converter/backend/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	prefixBytes = 4
	secretBytes = 32
)

type Repository interface {
	Create(ctx context.Context, key *models.APIKey) error
	// FindByPrefix returns (nil, nil) when no key has prefix.
	FindByPrefix(ctx context.Context, prefix string) (*models.APIKey, error)
	List(ctx context.Context) ([]models.APIKey, error)
	// Revoke fails with NotFound when there is no active key with prefix.
	Revoke(ctx context.Context, prefix string, at time.Time) error
	TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error
}

type Service struct {
	repo Repository
	cost int
	log  logrus.FieldLogger
	nowF func() time.Time

	// dummyHash is compared against when the prefix is unknown so a miss
	// costs as much as a hit.
	dummyHash []byte
}

func NewService(repo Repository, bcryptCost int, log logrus.FieldLogger) (*Service, error) {
	dummy, err := bcrypt.GenerateFromPassword([]byte("unknown-api-key"), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("init api key service: %w", err)
	}
	return &Service{
		repo:      repo,
		cost:      bcryptCost,
		log:       log.WithField("component", "apikeys"),
		nowF:      func() time.Time { return time.Now().UTC() },
		dummyHash: dummy,
	}, nil
}

// Generate returns a fresh prefix and secret.
func Generate() (prefix, secret string, err error) {
	prefix, err = utils.GenerateKey(prefixBytes)
	if err != nil {
		return "", "", err
	}
	secret, err = utils.GenerateKey(secretBytes)
	if err != nil {
		return "", "", err
	}
	return prefix, secret, nil
}

// Create stores a new key and returns the raw value. It is never available
// again after this call.
func (s *Service) Create(ctx context.Context, name string) (*models.IssuedAPIKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.NewValidation("name", "Key name is required")
	}

	prefix, secret, err := Generate()
	if err != nil {
		return nil, fmt.Errorf("generate api key: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash api key: %w", err)
	}

	key := &models.APIKey{
		ID:        uuid.New(),
		Name:      name,
		Prefix:    prefix,
		HashedKey: string(hash),
		CreatedAt: s.nowF(),
	}
	if err := s.repo.Create(ctx, key); err != nil {
		return nil, fmt.Errorf("store api key: %w", err)
	}

	s.log.WithFields(logrus.Fields{"prefix": prefix, "name": name}).Info("api key created")
	return &models.IssuedAPIKey{Key: key, RawKey: prefix + "." + secret}, nil
}

// Authenticate resolves raw to its active key.
func (s *Service) Authenticate(ctx context.Context, raw string) (*models.APIKey, error) {
	prefix, secret, ok := splitKey(raw)
	if !ok {
		return nil, apperr.NewUnauthenticated("Invalid API key")
	}

	key, err := s.repo.FindByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("find api key: %w", err)
	}
	if key == nil {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(secret))
		s.log.WithField("fingerprint", utils.Fingerprint(raw)).Debug("unknown api key")
		return nil, apperr.NewUnauthenticated("Invalid API key")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(key.HashedKey), []byte(secret)); err != nil {
		s.log.WithField("prefix", prefix).Warn("api key secret mismatch")
		return nil, apperr.NewUnauthenticated("Invalid API key")
	}
	if key.Revoked() {
		s.log.WithField("prefix", prefix).Warn("revoked api key presented")
		return nil, apperr.NewUnauthenticated("API key revoked")
	}

	now := s.nowF()
	if err := s.repo.TouchLastUsed(ctx, key.ID, now); err != nil {
		s.log.WithError(err).WithField("prefix", prefix).Warn("failed to record api key use")
	} else {
		key.LastUsedAt = &now
	}
	return key, nil
}

// Rotate issues a replacement for current and revokes current.
func (s *Service) Rotate(ctx context.Context, current *models.APIKey) (*models.IssuedAPIKey, error) {
	issued, err := s.Create(ctx, current.Name)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Revoke(ctx, current.Prefix, s.nowF()); err != nil {
		if rbErr := s.repo.Revoke(ctx, issued.Key.Prefix, s.nowF()); rbErr != nil {
			s.log.WithError(rbErr).WithField("prefix", issued.Key.Prefix).Error("failed to revoke replacement key")
		}
		return nil, fmt.Errorf("revoke rotated key: %w", err)
	}

	s.log.WithFields(logrus.Fields{"old_prefix": current.Prefix, "new_prefix": issued.Key.Prefix}).Info("api key rotated")
	return issued, nil
}

func (s *Service) Revoke(ctx context.Context, prefix string) error {
	if err := s.repo.Revoke(ctx, prefix, s.nowF()); err != nil {
		return err
	}
	s.log.WithField("prefix", prefix).Info("api key revoked")
	return nil
}

func (s *Service) List(ctx context.Context) ([]models.APIKey, error) {
	return s.repo.List(ctx)
}

func splitKey(raw string) (prefix, secret string, ok bool) {
	prefix, secret, found := strings.Cut(strings.TrimSpace(raw), ".")
	if !found || len(prefix) != prefixBytes*2 || len(secret) != secretBytes*2 {
		return "", "", false
	}
	return prefix, secret, true
}

var errNotFound = errors.New("api key not found")

func notFound() error {
	return &apperr.Error{Kind: apperr.KindNotFound, Message: "API key not found", Err: errNotFound}
}
