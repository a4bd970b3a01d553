package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/MrEthical07/goIdent"
)

func (s *Store) GetBackupCodeHashes(ctx context.Context, userID string) ([]string, error) {
	const q = `SELECT code_hash FROM backup_codes WHERE user_id = $1 ORDER BY position`
	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, err
		}
		out = append(out, hash)
	}
	return out, rows.Err()
}

func (s *Store) ReplaceBackupCodes(ctx context.Context, userID string, hashes []string) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const clear = `DELETE FROM backup_codes WHERE user_id = $1`
	if _, err := tx.Exec(ctx, clear, userID); err != nil {
		return err
	}

	const insert = `INSERT INTO backup_codes (user_id, position, code_hash) VALUES ($1, $2, $3)`
	for i, hash := range hashes {
		if _, err := tx.Exec(ctx, insert, userID, i, hash); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// ConsumeBackupCode locks the user's rows, matches in application code (the
// hashes are salted so the store cannot compare them), and deletes at most
// one. FOR UPDATE serializes concurrent consumers on the same user.
func (s *Store) ConsumeBackupCode(ctx context.Context, userID string, match func(hash string) bool) (bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	const q = `
		SELECT position, code_hash FROM backup_codes
		WHERE user_id = $1
		ORDER BY position
		FOR UPDATE`
	rows, err := tx.Query(ctx, q, userID)
	if err != nil {
		return false, err
	}

	matchedPos := -1
	for rows.Next() {
		var (
			pos  int
			hash string
		)
		if err := rows.Scan(&pos, &hash); err != nil {
			rows.Close()
			return false, err
		}
		if match(hash) {
			matchedPos = pos
			break
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, err
	}
	if matchedPos < 0 {
		return false, nil
	}

	const del = `DELETE FROM backup_codes WHERE user_id = $1 AND position = $2`
	if _, err := tx.Exec(ctx, del, userID, matchedPos); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

var _ goIdent.CredentialStore = (*Store)(nil)
