package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goIdent"
)

func (s *Store) GetRefreshToken(ctx context.Context, tokenHash string) (*goIdent.RefreshToken, error) {
	return getJSON[goIdent.RefreshToken](ctx, s.client, keyRefresh+tokenHash)
}

func (s *Store) SaveRefreshToken(ctx context.Context, t *goIdent.RefreshToken) error {
	data, err := marshal(t)
	if err != nil {
		return err
	}
	ttl := s.recordTTL(t)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, keyRefresh+t.TokenHash, data, ttl)
		pipe.SAdd(ctx, keyRefreshUser+t.UserID, t.TokenHash)
		pipe.SAdd(ctx, keyRefreshFam+t.FamilyID, t.TokenHash)
		return nil
	})
	return err
}

// RotateRefreshToken runs as a WATCH transaction on the predecessor key: a
// concurrent rotation invalidates the transaction and the retry observes the
// already-revoked record.
func (s *Store) RotateRefreshToken(ctx context.Context, tokenHash string, successor *goIdent.RefreshToken) (*goIdent.RefreshToken, error) {
	successorData, err := marshal(successor)
	if err != nil {
		return nil, err
	}

	key := keyRefresh + tokenHash
	var revoked *goIdent.RefreshToken

	for i := 0; i < watchRetries; i++ {
		revoked = nil
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := getJSON[goIdent.RefreshToken](ctx, tx, key)
			if err != nil {
				return err
			}
			if current.Revoked {
				return goIdent.ErrTokenRevoked
			}

			now := s.clock.Now()
			current.Revoked = true
			current.RevokedAt = now
			current.RevokedReason = "rotation"
			current.LastUsedAt = now
			current.UseCount++

			currentData, err := marshal(current)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, currentData, s.recordTTL(current))
				pipe.Set(ctx, keyRefresh+successor.TokenHash, successorData, s.recordTTL(successor))
				pipe.SAdd(ctx, keyRefreshUser+successor.UserID, successor.TokenHash)
				pipe.SAdd(ctx, keyRefreshFam+successor.FamilyID, successor.TokenHash)
				return nil
			})
			if err != nil {
				return err
			}
			revoked = current
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return revoked, nil
	}
	return nil, redis.TxFailedErr
}

func (s *Store) FindRefreshTokensByUser(ctx context.Context, userID string) ([]*goIdent.RefreshToken, error) {
	return s.tokensBySet(ctx, keyRefreshUser+userID)
}

func (s *Store) RevokeRefreshTokensByFamily(ctx context.Context, familyID, reason string) error {
	tokens, err := s.tokensBySet(ctx, keyRefreshFam+familyID)
	if err != nil {
		return err
	}
	return s.revokeAll(ctx, tokens, reason)
}

func (s *Store) RevokeRefreshTokensByUser(ctx context.Context, userID, reason string) error {
	tokens, err := s.tokensBySet(ctx, keyRefreshUser+userID)
	if err != nil {
		return err
	}
	return s.revokeAll(ctx, tokens, reason)
}

func (s *Store) tokensBySet(ctx context.Context, setKey string) ([]*goIdent.RefreshToken, error) {
	hashes, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, err
	}

	var out []*goIdent.RefreshToken
	for _, hash := range hashes {
		t, err := getJSON[goIdent.RefreshToken](ctx, s.client, keyRefresh+hash)
		if errors.Is(err, goIdent.ErrNotFound) {
			// Record aged out; drop the dangling index entry.
			s.client.SRem(ctx, setKey, hash)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) revokeAll(ctx context.Context, tokens []*goIdent.RefreshToken, reason string) error {
	now := s.clock.Now()
	for _, t := range tokens {
		if t.Revoked {
			continue
		}
		t.Revoked = true
		t.RevokedAt = now
		t.RevokedReason = reason
		data, err := marshal(t)
		if err != nil {
			return err
		}
		if err := s.client.Set(ctx, keyRefresh+t.TokenHash, data, s.recordTTL(t)).Err(); err != nil {
			return err
		}
	}
	return nil
}

// recordTTL returns how long a refresh record should stay in Redis: until it
// expires, plus the replay-detection retention window.
func (s *Store) recordTTL(t *goIdent.RefreshToken) time.Duration {
	ttl := t.ExpiresAt.Sub(s.clock.Now()) + revokedRetention
	if ttl < time.Minute {
		ttl = time.Minute
	}
	return ttl
}
