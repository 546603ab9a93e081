package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/ravigill3969/image-converter/backend/apperr"
	"github.com/ravigill3969/image-converter/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*PostgresImageRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresImageRepository(db), mock
}

func expectLock(mock sqlmock.Sqlmock, user string) {
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock(hashtext($1))`)).
		WithArgs(user).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

var originalCols = []string{"id", "user_id", "session_key", "display_name", "content_type", "media_key",
	"url", "file_size_bytes", "session_key_expiration_date", "created_at"}

var derivedCols = []string{"id", "original_id", "user_id", "session_key", "kind", "display_name", "quality",
	"edit_options", "session_key_expiration_date", "created_at"}

func TestPostgresFindOriginalByUser(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()
	expires := testNow.Add(30 * time.Minute)

	mock.ExpectQuery("SELECT .+ FROM original_images WHERE user_id = \\$1").
		WithArgs("user-a").
		WillReturnRows(sqlmock.NewRows(originalCols).
			AddRow(id.String(), "user-a", "sess", "cat.png", "image/png", "users/user-a/cat.png",
				"https://cdn/cat.png", int64(42), expires, testNow))

	img, err := repo.FindOriginalByUser(context.Background(), "user-a")
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.Equal(t, id, img.ID)
	assert.Equal(t, "users/user-a/cat.png", img.MediaKey)
	assert.Equal(t, expires, img.SessionKeyExpirationDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindOriginalMissing(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT .+ FROM original_images").
		WithArgs("user-a").
		WillReturnRows(sqlmock.NewRows(originalCols))

	img, err := repo.FindOriginalByUser(context.Background(), "user-a")
	require.NoError(t, err)
	assert.Nil(t, img)
}

func TestPostgresReplaceOriginal(t *testing.T) {
	repo, mock := newMockRepo(t)
	img := newOriginal("user-a", "users/user-a/new.png", testNow.Add(30*time.Minute))

	mock.ExpectBegin()
	expectLock(mock, "user-a")
	mock.ExpectQuery("SELECT media_key FROM original_images WHERE user_id = \\$1").
		WithArgs("user-a").
		WillReturnRows(sqlmock.NewRows([]string{"media_key"}).
			AddRow("users/user-a/old.png").
			AddRow("users/user-a/old.webp"))
	mock.ExpectExec("DELETE FROM original_images WHERE user_id = \\$1").
		WithArgs("user-a").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO original_images").
		WithArgs(sqlmock.AnyArg(), "user-a", img.SessionKey, img.DisplayName, img.ContentType,
			img.MediaKey, img.URL, img.FileSize, img.SessionKeyExpirationDate, img.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	replaced, err := repo.ReplaceOriginal(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, []string{"users/user-a/old.png", "users/user-a/old.webp"}, replaced)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReplaceOriginalRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)
	img := newOriginal("user-a", "users/user-a/new.png", testNow)

	mock.ExpectBegin()
	expectLock(mock, "user-a")
	mock.ExpectQuery("SELECT media_key").WillReturnRows(sqlmock.NewRows([]string{"media_key"}))
	mock.ExpectExec("DELETE FROM original_images").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO original_images").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := repo.ReplaceOriginal(context.Background(), img)
	assert.ErrorContains(t, err, "insert original")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPutDerived(t *testing.T) {
	repo, mock := newMockRepo(t)
	orig := newOriginal("user-a", "users/user-a/cat.png", testNow)
	d := newDerived(orig, "users/user-a/cat.webp", "users/user-a/cat.gif")

	mock.ExpectBegin()
	expectLock(mock, "user-a")
	mock.ExpectQuery("SELECT id FROM original_images WHERE id = \\$1 AND user_id = \\$2").
		WithArgs(sqlmock.AnyArg(), "user-a").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(orig.ID.String()))
	mock.ExpectExec("INSERT INTO derived_images").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "user-a", d.SessionKey, "convert", d.DisplayName,
			int64(80), nil, d.SessionKeyExpirationDate, d.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	for i, v := range d.Variants {
		mock.ExpectExec("INSERT INTO derived_variants").
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "WEBP", "image/webp", v.MediaKey, v.URL, i).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, repo.PutDerived(context.Background(), d))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPutDerivedReplacedOriginal(t *testing.T) {
	repo, mock := newMockRepo(t)
	orig := newOriginal("user-a", "users/user-a/cat.png", testNow)

	mock.ExpectBegin()
	expectLock(mock, "user-a")
	mock.ExpectQuery("SELECT id FROM original_images").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := repo.PutDerived(context.Background(), newDerived(orig, "k"))
	assert.True(t, errors.Is(err, apperr.NotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPutDerivedForeignKeyViolation(t *testing.T) {
	repo, mock := newMockRepo(t)
	orig := newOriginal("user-a", "users/user-a/cat.png", testNow)

	mock.ExpectBegin()
	expectLock(mock, "user-a")
	mock.ExpectQuery("SELECT id FROM original_images").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(orig.ID.String()))
	mock.ExpectExec("INSERT INTO derived_images").
		WillReturnError(&pq.Error{Code: foreignKeyViolation})
	mock.ExpectRollback()

	err := repo.PutDerived(context.Background(), newDerived(orig, "k"))
	assert.True(t, errors.Is(err, apperr.NotFound))
}

func TestPostgresGetDerivedWithVariants(t *testing.T) {
	repo, mock := newMockRepo(t)
	id, origID, variantID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectQuery("SELECT .+ FROM derived_images WHERE id = \\$1").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(derivedCols).
			AddRow(id.String(), origID.String(), "user-a", "sess", "edit", "cat.png", nil,
				[]byte(`{"width":100,"grayscale":true}`), testNow, testNow))
	mock.ExpectQuery("FROM derived_variants").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "derived_id", "format", "content_type", "media_key", "url"}).
			AddRow(variantID.String(), id.String(), "PNG", "image/png", "users/user-a/e.png", "https://cdn/e.png"))

	d, err := repo.GetDerived(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Nil(t, d.Quality)
	require.NotNil(t, d.Edit)
	assert.Equal(t, 100, d.Edit.Width)
	assert.True(t, d.Edit.Grayscale)
	require.Len(t, d.Variants, 1)
	assert.Equal(t, "users/user-a/e.png", d.Variants[0].MediaKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteDerivedUnknown(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("DELETE FROM derived_images WHERE id = \\$1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteDerived(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, apperr.NotFound))
}

func TestPostgresSyncExpiry(t *testing.T) {
	repo, mock := newMockRepo(t)
	later := testNow.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE original_images SET session_key_expiration_date").
		WithArgs("user-a", later).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE derived_images SET session_key_expiration_date").
		WithArgs("user-a", later).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	require.NoError(t, repo.SyncExpiry(context.Background(), "user-a", later))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteExpired(t *testing.T) {
	repo, mock := newMockRepo(t)
	origID, derivedA, derivedB, orphan := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("DELETE FROM original_images WHERE session_key_expiration_date < \\$1\\s+RETURNING id, user_id, media_key").
		WithArgs(testNow).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "media_key", "id", "media_key"}).
			AddRow(origID.String(), "user-a", "a.png", derivedA.String(), "a.webp").
			AddRow(origID.String(), "user-a", "a.png", derivedA.String(), "a.gif").
			AddRow(origID.String(), "user-a", "a.png", derivedB.String(), nil))
	mock.ExpectQuery("DELETE FROM derived_images WHERE session_key_expiration_date < \\$1\\s+RETURNING id").
		WithArgs(testNow).
		WillReturnRows(sqlmock.NewRows([]string{"id", "media_key"}).
			AddRow(orphan.String(), "b.jpeg"))
	mock.ExpectCommit()

	res, err := repo.DeleteExpired(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Originals)
	assert.Equal(t, 3, res.Derived)
	assert.Equal(t, []string{"a.png", "a.webp", "a.gif", "b.jpeg"}, res.MediaKeys)
	assert.Equal(t, []models.UserIdentity{"user-a"}, res.Users)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteExpiredKeysOnlyFromDeletedRows(t *testing.T) {
	repo, mock := newMockRepo(t)

	// Nothing matched: a concurrent refresh moved every row past now.
	mock.ExpectBegin()
	mock.ExpectQuery("DELETE FROM original_images").
		WithArgs(testNow).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "media_key", "id", "media_key"}))
	mock.ExpectQuery("DELETE FROM derived_images").
		WithArgs(testNow).
		WillReturnRows(sqlmock.NewRows([]string{"id", "media_key"}))
	mock.ExpectCommit()

	res, err := repo.DeleteExpired(context.Background(), testNow)
	require.NoError(t, err)
	assert.Zero(t, res.Total())
	assert.Empty(t, res.MediaKeys)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteExpiredRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("DELETE FROM original_images").
		WithArgs(testNow).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "media_key", "id", "media_key"}))
	mock.ExpectQuery("DELETE FROM derived_images").
		WithArgs(testNow).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := repo.DeleteExpired(context.Background(), testNow)
	assert.ErrorContains(t, err, "delete expired derived")
	assert.NoError(t, mock.ExpectationsWereMet())
}
