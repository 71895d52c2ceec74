package fastcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores cache entries in Redis under a key prefix. Intended for
// embedding the engine in a server-side host (kiosk fleets, BFF processes)
// where "durable across restarts" means an external store rather than the
// local filesystem.
type RedisBackend struct {
	client redis.UniversalClient
	prefix string
}

var _ Backend = (*RedisBackend)(nil)

// NewRedisBackend creates a RedisBackend using the given client and prefix.
func NewRedisBackend(client redis.UniversalClient, prefix string) (*RedisBackend, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if prefix == "" {
		prefix = "authclient"
	}
	return &RedisBackend{client: client, prefix: prefix}, nil
}

func (b *RedisBackend) Get(key string) ([]byte, bool, error) {
	raw, err := b.client.Get(context.Background(), b.prefix+":"+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return raw, true, nil
}

func (b *RedisBackend) Set(key string, raw []byte) error {
	if err := b.client.Set(context.Background(), b.prefix+":"+key, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (b *RedisBackend) Delete(key string) error {
	if err := b.client.Del(context.Background(), b.prefix+":"+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
