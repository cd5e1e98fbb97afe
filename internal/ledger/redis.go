package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const userKeyPrefix = "user:"

// RedisStore persists user records as JSON values under user:<id> keys.
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, id string) (*UserRecord, error) {
	data, err := s.client.Get(ctx, userKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrUnknownUser
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}

	rec := &UserRecord{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", id, err)
	}
	return rec, nil
}

func (s *RedisStore) Put(ctx context.Context, rec *UserRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode user %s: %w", rec.ID, err)
	}
	if err := s.client.Set(ctx, userKeyPrefix+rec.ID, data, 0).Err(); err != nil {
		return fmt.Errorf("set user %s: %w", rec.ID, err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]UserRecord, error) {
	var out []UserRecord

	iter := s.client.Scan(ctx, 0, userKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			// Deleted between scan and read; skip.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", iter.Val(), err)
		}

		var rec UserRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w", iter.Val(), err)
		}
		out = append(out, rec)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}
	return out, nil
}
