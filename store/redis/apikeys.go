package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goIdent"
)

func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*goIdent.APIKey, error) {
	return getJSON[goIdent.APIKey](ctx, s.client, keyAPIKey+keyHash)
}

func (s *Store) SaveAPIKey(ctx context.Context, k *goIdent.APIKey) error {
	data, err := marshal(k)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, keyAPIKey+k.KeyHash, data, 0)
		pipe.SAdd(ctx, keyAPIKeyUser+k.UserID, k.KeyHash)
		return nil
	})
	return err
}

func (s *Store) FindAPIKeysByUser(ctx context.Context, userID string) ([]*goIdent.APIKey, error) {
	setKey := keyAPIKeyUser + userID
	hashes, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, err
	}

	var out []*goIdent.APIKey
	for _, hash := range hashes {
		k, err := getJSON[goIdent.APIKey](ctx, s.client, keyAPIKey+hash)
		if errors.Is(err, goIdent.ErrNotFound) {
			s.client.SRem(ctx, setKey, hash)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}
