package apikeys

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/ravigill3969/image-converter/backend/apperr"
	"github.com/ravigill3969/image-converter/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keyCols = []string{"id", "name", "prefix", "hashed_key", "created_at", "last_used_at", "revoked_at"}

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func TestPostgresCreate(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	key := &models.APIKey{ID: uuid.New(), Name: "ops", Prefix: "abcd1234", HashedKey: "$2a$hash", CreatedAt: now}

	mock.ExpectExec("INSERT INTO api_keys").
		WithArgs(sqlmock.AnyArg(), "ops", "abcd1234", "$2a$hash", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), key))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindByPrefix(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery("FROM api_keys WHERE prefix = \\$1").
		WithArgs("abcd1234").
		WillReturnRows(sqlmock.NewRows(keyCols).AddRow(id.String(), "ops", "abcd1234", "$2a$hash", now, nil, now))

	key, err := repo.FindByPrefix(context.Background(), "abcd1234")
	require.NoError(t, err)
	assert.Equal(t, id, key.ID)
	assert.Nil(t, key.LastUsedAt)
	assert.True(t, key.Revoked())
}

func TestPostgresFindByPrefixMissing(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("FROM api_keys").WillReturnRows(sqlmock.NewRows(keyCols))

	key, err := repo.FindByPrefix(context.Background(), "abcd1234")
	require.NoError(t, err)
	assert.Nil(t, key)
}

func TestPostgresRevoke(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectExec("UPDATE api_keys SET revoked_at").
		WithArgs("abcd1234", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE api_keys SET revoked_at").
		WithArgs("abcd1234", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Revoke(context.Background(), "abcd1234", now))
	err := repo.Revoke(context.Background(), "abcd1234", now)
	assert.True(t, errors.Is(err, apperr.NotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresList(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery("FROM api_keys ORDER BY created_at").
		WillReturnRows(sqlmock.NewRows(keyCols).
			AddRow(uuid.NewString(), "a", "aaaaaaaa", "h1", now, now, nil).
			AddRow(uuid.NewString(), "b", "bbbbbbbb", "h2", now, nil, nil))

	keys, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.NotNil(t, keys[0].LastUsedAt)
	assert.False(t, keys[1].Revoked())
}
