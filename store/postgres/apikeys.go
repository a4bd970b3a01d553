package postgres

import (
	"context"
	"database/sql"

	"github.com/MrEthical07/goIdent"
)

const apiKeyColumns = `
	id, user_id, name, key_hash, key_prefix, status, scopes,
	expires_at, rate_limit_per_hour, ip_whitelist, referrer_whitelist,
	use_count, last_used_at, created_at`

func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*goIdent.APIKey, error) {
	const q = `
		SELECT ` + apiKeyColumns + `
		FROM api_keys
		WHERE key_hash = $1`
	return scanAPIKey(s.pool.QueryRow(ctx, q, keyHash))
}

func (s *Store) SaveAPIKey(ctx context.Context, k *goIdent.APIKey) error {
	const q = `
		INSERT INTO api_keys (` + apiKeyColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (key_hash) DO UPDATE SET
			status = EXCLUDED.status,
			use_count = EXCLUDED.use_count,
			last_used_at = EXCLUDED.last_used_at`
	_, err := s.pool.Exec(ctx, q,
		k.ID, k.UserID, k.Name, k.KeyHash, k.Prefix, int16(k.Status), k.Scopes,
		nullTime(k.ExpiresAt), k.RateLimitPerHour, k.IPWhitelist, k.ReferrerWhitelist,
		k.UseCount, nullTime(k.LastUsedAt), k.CreatedAt,
	)
	return err
}

func (s *Store) FindAPIKeysByUser(ctx context.Context, userID string) ([]*goIdent.APIKey, error) {
	const q = `
		SELECT ` + apiKeyColumns + `
		FROM api_keys
		WHERE user_id = $1
		ORDER BY created_at`
	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*goIdent.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func scanAPIKey(row rowScanner) (*goIdent.APIKey, error) {
	var (
		k          goIdent.APIKey
		status     int16
		expiresAt  sql.NullTime
		lastUsedAt sql.NullTime
	)
	err := row.Scan(
		&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.Prefix, &status, &k.Scopes,
		&expiresAt, &k.RateLimitPerHour, &k.IPWhitelist, &k.ReferrerWhitelist,
		&k.UseCount, &lastUsedAt, &k.CreatedAt,
	)
	if err != nil {
		if noRows(err) {
			return nil, goIdent.ErrNotFound
		}
		return nil, err
	}
	k.Status = goIdent.APIKeyStatus(status)
	k.ExpiresAt = fromNullTime(expiresAt)
	k.LastUsedAt = fromNullTime(lastUsedAt)
	return &k, nil
}
