package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/MrEthical07/goIdent"
)

const refreshColumns = `
	id, user_id, token_hash, family_id, parent_id,
	device_id, device_name, device_type, device_ip, device_user_agent,
	expires_at, created_at, last_used_at, use_count,
	revoked, revoked_at, revoked_reason`

func (s *Store) GetRefreshToken(ctx context.Context, tokenHash string) (*goIdent.RefreshToken, error) {
	const q = `
		SELECT ` + refreshColumns + `
		FROM refresh_tokens
		WHERE token_hash = $1`
	return scanRefreshToken(s.pool.QueryRow(ctx, q, tokenHash))
}

func (s *Store) SaveRefreshToken(ctx context.Context, t *goIdent.RefreshToken) error {
	const q = `
		INSERT INTO refresh_tokens (` + refreshColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (token_hash) DO UPDATE SET
			last_used_at = EXCLUDED.last_used_at,
			use_count = EXCLUDED.use_count,
			revoked = EXCLUDED.revoked,
			revoked_at = EXCLUDED.revoked_at,
			revoked_reason = EXCLUDED.revoked_reason`
	_, err := s.pool.Exec(ctx, q, refreshArgs(t)...)
	return err
}

// RotateRefreshToken revokes the predecessor and inserts the successor in one
// transaction. The "AND NOT revoked" guard is what makes two concurrent
// rotations of the same token mutually exclusive: the loser's UPDATE matches
// zero rows.
func (s *Store) RotateRefreshToken(ctx context.Context, tokenHash string, successor *goIdent.RefreshToken) (*goIdent.RefreshToken, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const revoke = `
		UPDATE refresh_tokens SET
			revoked = TRUE,
			revoked_at = NOW(),
			revoked_reason = 'rotation',
			last_used_at = NOW(),
			use_count = use_count + 1
		WHERE token_hash = $1 AND NOT revoked
		RETURNING ` + refreshColumns
	revoked, err := scanRefreshToken(tx.QueryRow(ctx, revoke, tokenHash))
	if err != nil {
		if errors.Is(err, goIdent.ErrNotFound) {
			// Distinguish a missing row from an already-revoked one.
			const probe = `SELECT revoked FROM refresh_tokens WHERE token_hash = $1`
			var isRevoked bool
			probeErr := tx.QueryRow(ctx, probe, tokenHash).Scan(&isRevoked)
			if probeErr == nil && isRevoked {
				return nil, goIdent.ErrTokenRevoked
			}
			return nil, goIdent.ErrNotFound
		}
		return nil, err
	}

	const insert = `
		INSERT INTO refresh_tokens (` + refreshColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`
	if _, err := tx.Exec(ctx, insert, refreshArgs(successor)...); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return revoked, nil
}

func (s *Store) FindRefreshTokensByUser(ctx context.Context, userID string) ([]*goIdent.RefreshToken, error) {
	const q = `
		SELECT ` + refreshColumns + `
		FROM refresh_tokens
		WHERE user_id = $1
		ORDER BY created_at`
	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*goIdent.RefreshToken
	for rows.Next() {
		t, err := scanRefreshToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) RevokeRefreshTokensByFamily(ctx context.Context, familyID, reason string) error {
	const q = `
		UPDATE refresh_tokens SET revoked = TRUE, revoked_at = NOW(), revoked_reason = $2
		WHERE family_id = $1 AND NOT revoked`
	_, err := s.pool.Exec(ctx, q, familyID, reason)
	return err
}

func (s *Store) RevokeRefreshTokensByUser(ctx context.Context, userID, reason string) error {
	const q = `
		UPDATE refresh_tokens SET revoked = TRUE, revoked_at = NOW(), revoked_reason = $2
		WHERE user_id = $1 AND NOT revoked`
	_, err := s.pool.Exec(ctx, q, userID, reason)
	return err
}

func refreshArgs(t *goIdent.RefreshToken) []any {
	return []any{
		t.ID, t.UserID, t.TokenHash, t.FamilyID, t.ParentID,
		t.Device.ID, t.Device.Name, t.Device.Type, t.Device.IP, t.Device.UserAgent,
		t.ExpiresAt, t.CreatedAt, nullTime(t.LastUsedAt), t.UseCount,
		t.Revoked, nullTime(t.RevokedAt), t.RevokedReason,
	}
}

func scanRefreshToken(row rowScanner) (*goIdent.RefreshToken, error) {
	var (
		t          goIdent.RefreshToken
		lastUsedAt sql.NullTime
		revokedAt  sql.NullTime
	)
	err := row.Scan(
		&t.ID, &t.UserID, &t.TokenHash, &t.FamilyID, &t.ParentID,
		&t.Device.ID, &t.Device.Name, &t.Device.Type, &t.Device.IP, &t.Device.UserAgent,
		&t.ExpiresAt, &t.CreatedAt, &lastUsedAt, &t.UseCount,
		&t.Revoked, &revokedAt, &t.RevokedReason,
	)
	if err != nil {
		if noRows(err) {
			return nil, goIdent.ErrNotFound
		}
		return nil, err
	}
	t.LastUsedAt = fromNullTime(lastUsedAt)
	t.RevokedAt = fromNullTime(revokedAt)
	return &t, nil
}
