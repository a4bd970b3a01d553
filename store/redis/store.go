package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goIdent"
)

const (
	keyUser         = "goident:u:"   // + user id -> JSON user
	keyUserEmail    = "goident:ue:"  // + lower(email) -> user id
	keyUserUsername = "goident:un:"  // + lower(username) -> user id
	keyRefresh      = "goident:rt:"  // + token hash -> JSON refresh token
	keyRefreshUser  = "goident:rtu:" // + user id -> set of token hashes
	keyRefreshFam   = "goident:rtf:" // + family id -> set of token hashes
	keyAPIKey       = "goident:ak:"  // + key hash -> JSON api key
	keyAPIKeyUser   = "goident:aku:" // + user id -> set of key hashes
	keyBackupCodes  = "goident:bc:"  // + user id -> JSON []string of hashes
	keyTokenID      = "goident:jti:" // + jti -> "1" with TTL
)

// revokedRetention keeps revoked refresh-token records alive past their expiry
// so a replayed token is recognized instead of reading as unknown.
const revokedRetention = 24 * time.Hour

const watchRetries = 4

// Store is a Redis-backed [goIdent.CredentialStore].
type Store struct {
	client redis.UniversalClient
	clock  goIdent.Clock
}

// New wraps an existing client; the caller keeps ownership of it.
func New(client redis.UniversalClient) *Store {
	return NewWithClock(client, goIdent.SystemClock{})
}

// NewWithClock injects a clock for tests.
func NewWithClock(client redis.UniversalClient, clock goIdent.Clock) *Store {
	return &Store{client: client, clock: clock}
}

func (s *Store) ConsumeTokenID(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return s.client.SetNX(ctx, keyTokenID+jti, "1", ttl).Result()
}

func getJSON[T any](ctx context.Context, c redis.Cmdable, key string) (*T, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, goIdent.ErrNotFound
		}
		return nil, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func marshal(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func lower(s string) string { return strings.ToLower(s) }
