package apikeys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ravigill3969/image-converter/backend/models"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, key *models.APIKey) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO api_keys (id, name, prefix, hashed_key, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		key.ID, key.Name, key.Prefix, key.HashedKey, key.CreatedAt)
	return err
}

func (r *PostgresRepository) FindByPrefix(ctx context.Context, prefix string) (*models.APIKey, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, prefix, hashed_key, created_at, last_used_at, revoked_at
		FROM api_keys WHERE prefix = $1`, prefix)

	key, err := scanKey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return key, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]models.APIKey, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, prefix, hashed_key, created_at, last_used_at, revoked_at
		FROM api_keys ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []models.APIKey
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, *k)
	}
	return keys, rows.Err()
}

func (r *PostgresRepository) Revoke(ctx context.Context, prefix string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE api_keys SET revoked_at = $2 WHERE prefix = $1 AND revoked_at IS NULL`, prefix, at)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound()
	}
	return nil
}

func (r *PostgresRepository) TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`, id, at)
	return err
}

func scanKey(row interface{ Scan(...any) error }) (*models.APIKey, error) {
	var (
		k        models.APIKey
		lastUsed sql.NullTime
		revoked  sql.NullTime
	)
	if err := row.Scan(&k.ID, &k.Name, &k.Prefix, &k.HashedKey, &k.CreatedAt, &lastUsed, &revoked); err != nil {
		return nil, err
	}
	if lastUsed.Valid {
		k.LastUsedAt = &lastUsed.Time
	}
	if revoked.Valid {
		k.RevokedAt = &revoked.Time
	}
	return &k, nil
}
