package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrEthical07/goIdent"
)

// Store is a PostgreSQL-backed [goIdent.CredentialStore].
type Store struct {
	pool *pgxpool.Pool
}

// Options tunes the underlying pool. Zero values keep pgxpool defaults.
type Options struct {
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
}

// New connects to dsn and pings once so misconfiguration surfaces at startup
// rather than on the first login.
func New(ctx context.Context, dsn string, opts Options) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		cfg.MinConns = opts.MinConns
	}
	if opts.ConnMaxLifetime > 0 {
		cfg.MaxConnLifetime = opts.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool wraps an existing pool; the caller keeps ownership of it.
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ping reports connectivity.
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close closes the pool. Idempotent.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// ConsumeTokenID burns jti for ttl using the used_token_ids unique key.
func (s *Store) ConsumeTokenID(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	// Opportunistic cleanup keeps the table bounded without a reaper job.
	const sweep = `DELETE FROM used_token_ids WHERE expires_at <= NOW()`
	if _, err := s.pool.Exec(ctx, sweep); err != nil {
		return false, err
	}

	const q = `
		INSERT INTO used_token_ids (jti, expires_at)
		VALUES ($1, NOW() + $2::interval)
		ON CONFLICT (jti) DO NOTHING`
	ct, err := s.pool.Exec(ctx, q, jti, ttl.String())
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// mapUniqueViolation translates a 23505 on the users table into the matching
// duplicate sentinel.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}
	switch {
	case strings.Contains(pgErr.ConstraintName, "email"):
		return goIdent.ErrDuplicateEmail
	case strings.Contains(pgErr.ConstraintName, "username"):
		return goIdent.ErrDuplicateUsername
	default:
		return err
	}
}

func noRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }
