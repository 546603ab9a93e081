package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/ravigill3969/image-converter/backend/apperr"
	"github.com/ravigill3969/image-converter/backend/models"
)

const foreignKeyViolation = "23503"

const originalColumns = `id, user_id, session_key, display_name, content_type, media_key, url,
	file_size_bytes, session_key_expiration_date, created_at`

const derivedColumns = `id, original_id, user_id, session_key, kind, display_name, quality,
	edit_options, session_key_expiration_date, created_at`

type PostgresImageRepository struct {
	db *sql.DB
}

func NewPostgresImageRepository(db *sql.DB) *PostgresImageRepository {
	return &PostgresImageRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresImageRepository) FindOriginalByUser(ctx context.Context, user models.UserIdentity) (*models.OriginalImage, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+originalColumns+` FROM original_images WHERE user_id = $1`, string(user))

	img, err := scanOriginal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find original: %w", err)
	}
	return img, nil
}

func (r *PostgresImageRepository) ReplaceOriginal(ctx context.Context, img *models.OriginalImage) ([]string, error) {
	var replaced []string
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockUser(ctx, tx, img.UserID); err != nil {
			return err
		}

		keys, err := userMediaKeys(ctx, tx, img.UserID)
		if err != nil {
			return err
		}
		replaced = keys

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM original_images WHERE user_id = $1`, string(img.UserID)); err != nil {
			return fmt.Errorf("delete previous original: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO original_images (`+originalColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			img.ID, string(img.UserID), img.SessionKey, img.DisplayName, img.ContentType,
			img.MediaKey, img.URL, img.FileSize, img.SessionKeyExpirationDate, img.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert original: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return replaced, nil
}

func (r *PostgresImageRepository) DeleteOriginal(ctx context.Context, user models.UserIdentity) ([]string, error) {
	var removed []string
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockUser(ctx, tx, user); err != nil {
			return err
		}

		keys, err := userMediaKeys(ctx, tx, user)
		if err != nil {
			return err
		}
		removed = keys

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM original_images WHERE user_id = $1`, string(user)); err != nil {
			return fmt.Errorf("delete original: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func (r *PostgresImageRepository) GetDerived(ctx context.Context, id uuid.UUID) (*models.DerivedImage, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+derivedColumns+` FROM derived_images WHERE id = $1`, id)

	d, err := scanDerived(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get derived: %w", err)
	}

	list := []models.DerivedImage{*d}
	if err := r.loadVariants(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func (r *PostgresImageRepository) PutDerived(ctx context.Context, d *models.DerivedImage) error {
	var editJSON any
	if d.Edit != nil {
		raw, err := json.Marshal(d.Edit)
		if err != nil {
			return fmt.Errorf("encode edit options: %w", err)
		}
		editJSON = string(raw)
	}
	var quality any
	if d.Quality != nil {
		quality = int64(*d.Quality)
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockUser(ctx, tx, d.UserID); err != nil {
			return err
		}

		var current uuid.UUID
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM original_images WHERE id = $1 AND user_id = $2`,
			d.OriginalID, string(d.UserID)).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NewNotFound("Original image not found")
		}
		if err != nil {
			return fmt.Errorf("check original: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO derived_images (`+derivedColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			d.ID, d.OriginalID, string(d.UserID), d.SessionKey, string(d.Kind), d.DisplayName,
			quality, editJSON, d.SessionKeyExpirationDate, d.CreatedAt)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
				return apperr.NewNotFound("Original image not found")
			}
			return fmt.Errorf("insert derived: %w", err)
		}

		for i, v := range d.Variants {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO derived_variants (id, derived_id, format, content_type, media_key, url, position)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				v.ID, d.ID, string(v.Format), v.ContentType, v.MediaKey, v.URL, i)
			if err != nil {
				return fmt.Errorf("insert variant %s: %w", v.Format, err)
			}
		}
		return nil
	})
}

func (r *PostgresImageRepository) FindDerivedByUser(ctx context.Context, user models.UserIdentity) ([]models.DerivedImage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+derivedColumns+` FROM derived_images WHERE user_id = $1 ORDER BY created_at`, string(user))
	if err != nil {
		return nil, fmt.Errorf("find derived: %w", err)
	}
	defer rows.Close()

	var list []models.DerivedImage
	for rows.Next() {
		d, err := scanDerived(rows)
		if err != nil {
			return nil, fmt.Errorf("scan derived: %w", err)
		}
		list = append(list, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadVariants(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *PostgresImageRepository) DeleteDerived(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM derived_images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete derived: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NewNotFound("Image not found")
	}
	return nil
}

func (r *PostgresImageRepository) SyncExpiry(ctx context.Context, user models.UserIdentity, expiresAt time.Time) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE original_images SET session_key_expiration_date = $2 WHERE user_id = $1`,
			string(user), expiresAt); err != nil {
			return fmt.Errorf("sync original expiry: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE derived_images SET session_key_expiration_date = $2 WHERE user_id = $1`,
			string(user), expiresAt); err != nil {
			return fmt.Errorf("sync derived expiry: %w", err)
		}
		return nil
	})
}

// DeleteExpired removes every row whose session ended before now. Media keys
// come from the DELETE statements themselves, so a row whose expiry moved
// forward in the meantime keeps its objects.
func (r *PostgresImageRepository) DeleteExpired(ctx context.Context, now time.Time) (*PurgeResult, error) {
	result := &PurgeResult{}
	derived := make(map[uuid.UUID]struct{})
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := deleteExpiredOriginals(ctx, tx, now, result, derived); err != nil {
			return err
		}
		return deleteExpiredDerived(ctx, tx, now, result, derived)
	})
	if err != nil {
		return nil, err
	}
	result.Derived = len(derived)
	return result, nil
}

// deleteExpiredOriginals deletes expired originals. Their derived rows go
// with them through the cascade; the outer SELECT still sees those rows.
func deleteExpiredOriginals(ctx context.Context, tx *sql.Tx, now time.Time, result *PurgeResult, derived map[uuid.UUID]struct{}) error {
	rows, err := tx.QueryContext(ctx, `
		WITH gone AS (
			DELETE FROM original_images WHERE session_key_expiration_date < $1
			RETURNING id, user_id, media_key
		)
		SELECT gone.id, gone.user_id, gone.media_key, d.id, v.media_key
		FROM gone
		LEFT JOIN derived_images d ON d.original_id = gone.id
		LEFT JOIN derived_variants v ON v.derived_id = d.id
		ORDER BY gone.id, d.id, v.position`, now)
	if err != nil {
		return fmt.Errorf("delete expired originals: %w", err)
	}
	defer rows.Close()

	seen := make(map[uuid.UUID]struct{})
	for rows.Next() {
		var (
			id         uuid.UUID
			user, key  string
			derivedID  uuid.NullUUID
			variantKey sql.NullString
		)
		if err := rows.Scan(&id, &user, &key, &derivedID, &variantKey); err != nil {
			return fmt.Errorf("scan expired original: %w", err)
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			result.Originals++
			result.Users = append(result.Users, models.UserIdentity(user))
			result.MediaKeys = append(result.MediaKeys, key)
		}
		if derivedID.Valid {
			derived[derivedID.UUID] = struct{}{}
		}
		if variantKey.Valid {
			result.MediaKeys = append(result.MediaKeys, variantKey.String)
		}
	}
	return rows.Err()
}

func deleteExpiredDerived(ctx context.Context, tx *sql.Tx, now time.Time, result *PurgeResult, derived map[uuid.UUID]struct{}) error {
	rows, err := tx.QueryContext(ctx, `
		WITH gone AS (
			DELETE FROM derived_images WHERE session_key_expiration_date < $1
			RETURNING id
		)
		SELECT gone.id, v.media_key
		FROM gone
		LEFT JOIN derived_variants v ON v.derived_id = gone.id
		ORDER BY gone.id, v.position`, now)
	if err != nil {
		return fmt.Errorf("delete expired derived: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id         uuid.UUID
			variantKey sql.NullString
		)
		if err := rows.Scan(&id, &variantKey); err != nil {
			return fmt.Errorf("scan expired derived: %w", err)
		}
		derived[id] = struct{}{}
		if variantKey.Valid {
			result.MediaKeys = append(result.MediaKeys, variantKey.String)
		}
	}
	return rows.Err()
}

func (r *PostgresImageRepository) loadVariants(ctx context.Context, list []models.DerivedImage) error {
	if len(list) == 0 {
		return nil
	}

	ids := make([]string, len(list))
	index := make(map[uuid.UUID]int, len(list))
	for i := range list {
		ids[i] = list[i].ID.String()
		index[list[i].ID] = i
		list[i].Variants = []models.Variant{}
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, derived_id, format, content_type, media_key, url
		FROM derived_variants
		WHERE derived_id = ANY($1::uuid[])
		ORDER BY derived_id, position`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			v         models.Variant
			derivedID uuid.UUID
			format    string
		)
		if err := rows.Scan(&v.ID, &derivedID, &format, &v.ContentType, &v.MediaKey, &v.URL); err != nil {
			return fmt.Errorf("scan variant: %w", err)
		}
		v.Format = models.OutputFormat(format)
		if i, ok := index[derivedID]; ok {
			list[i].Variants = append(list[i].Variants, v)
		}
	}
	return rows.Err()
}

func scanOriginal(row rowScanner) (*models.OriginalImage, error) {
	var (
		img  models.OriginalImage
		user string
	)
	err := row.Scan(&img.ID, &user, &img.SessionKey, &img.DisplayName, &img.ContentType,
		&img.MediaKey, &img.URL, &img.FileSize, &img.SessionKeyExpirationDate, &img.CreatedAt)
	if err != nil {
		return nil, err
	}
	img.UserID = models.UserIdentity(user)
	return &img, nil
}

func scanDerived(row rowScanner) (*models.DerivedImage, error) {
	var (
		d        models.DerivedImage
		user     string
		kind     string
		quality  sql.NullInt64
		editJSON []byte
	)
	err := row.Scan(&d.ID, &d.OriginalID, &user, &d.SessionKey, &kind, &d.DisplayName,
		&quality, &editJSON, &d.SessionKeyExpirationDate, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	d.UserID = models.UserIdentity(user)
	d.Kind = models.TransformKind(kind)
	if quality.Valid {
		q := int(quality.Int64)
		d.Quality = &q
	}
	if len(editJSON) > 0 {
		var opts models.EditOptions
		if err := json.Unmarshal(editJSON, &opts); err != nil {
			return nil, fmt.Errorf("decode edit options: %w", err)
		}
		d.Edit = &opts
	}
	return &d, nil
}

func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// lockUser serializes writes of one user until the transaction ends, so
// concurrent uploads leave exactly one original behind.
func lockUser(ctx context.Context, tx *sql.Tx, user models.UserIdentity) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, string(user)); err != nil {
		return fmt.Errorf("lock user rows: %w", err)
	}
	return nil
}

func userMediaKeys(ctx context.Context, tx *sql.Tx, user models.UserIdentity) ([]string, error) {
	return collectKeys(ctx, tx, `
		SELECT media_key FROM original_images WHERE user_id = $1
		UNION ALL
		SELECT v.media_key FROM derived_variants v
		JOIN derived_images d ON d.id = v.derived_id
		WHERE d.user_id = $1`, string(user))
}

func collectKeys(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]string, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("collect media keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
