package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goIdent"
)

func (s *Store) GetUserByIdentifier(ctx context.Context, identifier string) (*goIdent.User, error) {
	id, err := s.client.Get(ctx, keyUserEmail+lower(identifier)).Result()
	if errors.Is(err, redis.Nil) {
		id, err = s.client.Get(ctx, keyUserUsername+lower(identifier)).Result()
	}
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, goIdent.ErrNotFound
		}
		return nil, err
	}
	return getJSON[goIdent.User](ctx, s.client, keyUser+id)
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*goIdent.User, error) {
	return getJSON[goIdent.User](ctx, s.client, keyUser+id)
}

// CreateUser claims both identity index keys with SETNX before writing the
// record, so two concurrent registrations of one email cannot both succeed.
func (s *Store) CreateUser(ctx context.Context, u *goIdent.User) error {
	data, err := marshal(u)
	if err != nil {
		return err
	}

	emailKey := keyUserEmail + lower(u.Email)
	claimed, err := s.client.SetNX(ctx, emailKey, u.ID, 0).Result()
	if err != nil {
		return err
	}
	if !claimed {
		return goIdent.ErrDuplicateEmail
	}

	usernameKey := keyUserUsername + lower(u.Username)
	claimed, err = s.client.SetNX(ctx, usernameKey, u.ID, 0).Result()
	if err != nil {
		return err
	}
	if !claimed {
		// Roll back the email claim so the address stays registrable.
		s.client.Del(ctx, emailKey)
		return goIdent.ErrDuplicateUsername
	}

	return s.client.Set(ctx, keyUser+u.ID, data, 0).Err()
}

func (s *Store) SaveUser(ctx context.Context, u *goIdent.User) error {
	key := keyUser + u.ID
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return goIdent.ErrNotFound
	}
	data, err := marshal(u)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, 0).Err()
}
