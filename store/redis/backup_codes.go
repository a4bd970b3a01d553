package redis

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goIdent"
)

func (s *Store) GetBackupCodeHashes(ctx context.Context, userID string) ([]string, error) {
	data, err := s.client.Get(ctx, keyBackupCodes+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var hashes []string
	if err := json.Unmarshal(data, &hashes); err != nil {
		return nil, err
	}
	return hashes, nil
}

func (s *Store) ReplaceBackupCodes(ctx context.Context, userID string, hashes []string) error {
	key := keyBackupCodes + userID
	if len(hashes) == 0 {
		return s.client.Del(ctx, key).Err()
	}
	data, err := marshal(hashes)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, 0).Err()
}

// ConsumeBackupCode reads the hash list under WATCH, matches in application
// code, and writes back the shortened list in the transaction. A concurrent
// consume of the same user invalidates the transaction and the retry sees the
// code already gone.
func (s *Store) ConsumeBackupCode(ctx context.Context, userID string, match func(hash string) bool) (bool, error) {
	key := keyBackupCodes + userID
	var consumed bool

	for i := 0; i < watchRetries; i++ {
		consumed = false
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return nil
				}
				return err
			}
			var hashes []string
			if err := json.Unmarshal(data, &hashes); err != nil {
				return err
			}

			matched := -1
			for i, hash := range hashes {
				if match(hash) {
					matched = i
					break
				}
			}
			if matched < 0 {
				return nil
			}

			remaining := append(hashes[:matched:matched], hashes[matched+1:]...)
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if len(remaining) == 0 {
					pipe.Del(ctx, key)
					return nil
				}
				out, err := json.Marshal(remaining)
				if err != nil {
					return err
				}
				pipe.Set(ctx, key, out, 0)
				return nil
			})
			if err != nil {
				return err
			}
			consumed = true
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, err
		}
		return consumed, nil
	}
	return false, redis.TxFailedErr
}

var _ goIdent.CredentialStore = (*Store)(nil)
