package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/MrEthical07/goIdent"
)

const userColumns = `
	id, email, username, first_name, last_name,
	password_hash, role, status,
	failed_logins, lockout_until,
	two_factor_secret, two_factor_enabled,
	last_login_at, last_login_ip, login_count,
	created_at, updated_at`

func (s *Store) GetUserByIdentifier(ctx context.Context, identifier string) (*goIdent.User, error) {
	const q = `
		SELECT ` + userColumns + `
		FROM users
		WHERE lower(email) = lower($1) OR lower(username) = lower($1)`
	return s.scanUser(s.pool.QueryRow(ctx, q, identifier))
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*goIdent.User, error) {
	const q = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1`
	return s.scanUser(s.pool.QueryRow(ctx, q, id))
}

func (s *Store) CreateUser(ctx context.Context, u *goIdent.User) error {
	const q = `
		INSERT INTO users (
			id, email, username, first_name, last_name,
			password_hash, role, status,
			failed_logins, lockout_until,
			two_factor_secret, two_factor_enabled,
			last_login_at, last_login_ip, login_count,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`
	_, err := s.pool.Exec(ctx, q,
		u.ID, u.Email, u.Username, u.FirstName, u.LastName,
		u.PasswordHash, u.Role, int16(u.Status),
		u.FailedLogins, nullTime(u.LockoutUntil),
		u.TwoFactorSecret, u.TwoFactorEnabled,
		nullTime(u.LastLoginAt), u.LastLoginIP, u.LoginCount,
		u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return mapUniqueViolation(err)
	}
	return nil
}

func (s *Store) SaveUser(ctx context.Context, u *goIdent.User) error {
	const q = `
		UPDATE users SET
			email = $2, username = $3, first_name = $4, last_name = $5,
			password_hash = $6, role = $7, status = $8,
			failed_logins = $9, lockout_until = $10,
			two_factor_secret = $11, two_factor_enabled = $12,
			last_login_at = $13, last_login_ip = $14, login_count = $15,
			updated_at = $16
		WHERE id = $1`
	ct, err := s.pool.Exec(ctx, q,
		u.ID,
		u.Email, u.Username, u.FirstName, u.LastName,
		u.PasswordHash, u.Role, int16(u.Status),
		u.FailedLogins, nullTime(u.LockoutUntil),
		u.TwoFactorSecret, u.TwoFactorEnabled,
		nullTime(u.LastLoginAt), u.LastLoginIP, u.LoginCount,
		u.UpdatedAt,
	)
	if err != nil {
		return mapUniqueViolation(err)
	}
	if ct.RowsAffected() == 0 {
		return goIdent.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanUser(row rowScanner) (*goIdent.User, error) {
	var (
		u           goIdent.User
		status      int16
		lockout     sql.NullTime
		lastLoginAt sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.Username, &u.FirstName, &u.LastName,
		&u.PasswordHash, &u.Role, &status,
		&u.FailedLogins, &lockout,
		&u.TwoFactorSecret, &u.TwoFactorEnabled,
		&lastLoginAt, &u.LastLoginIP, &u.LoginCount,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if noRows(err) {
			return nil, goIdent.ErrNotFound
		}
		return nil, err
	}
	u.Status = goIdent.AccountStatus(status)
	u.LockoutUntil = fromNullTime(lockout)
	u.LastLoginAt = fromNullTime(lastLoginAt)
	return &u, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func fromNullTime(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time
}
