package slot

import (
	"context"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisPrefix namespaces slot keys in a shared Redis.
const RedisPrefix = "slot:"

type redisBackend struct {
	client redis.Cmdable
	key    string
}

// NewRedis returns a Slot stored under RedisPrefix+key. The value has no TTL.
func NewRedis(log *slog.Logger, client redis.Cmdable, key string) (Slot, error) {
	if client == nil {
		return nil, errors.New("slot: nil redis client")
	}
	key, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}
	return newCodecSlot(log, key, &redisBackend{client: client, key: RedisPrefix + key}), nil
}

func (r *redisBackend) get(ctx context.Context) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (r *redisBackend) set(ctx context.Context, b []byte) error {
	return r.client.Set(ctx, r.key, b, 0).Err()
}

func (r *redisBackend) del(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}

func (r *redisBackend) describe() string { return "redis:" + r.key }
