package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Redis persists a snapshot under a single key. Useful when several dashboard
// instances need to share one registry and call log.
type Redis struct {
	rdb *redis.Client
	key string
}

func NewRedis(rdb *redis.Client, key string) *Redis {
	return &Redis{rdb: rdb, key: key}
}

func (r *Redis) Load(ctx context.Context, v any) error {
	data, err := r.rdb.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return persistErr("GET "+r.key, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return persistErr("decode "+r.key, err)
	}
	return nil
}

func (r *Redis) Save(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return persistErr("encode "+r.key, err)
	}
	// SET is atomic; readers see either the old snapshot or the new one.
	if err := r.rdb.Set(ctx, r.key, data, 0).Err(); err != nil {
		return persistErr("SET "+r.key, err)
	}
	return nil
}
