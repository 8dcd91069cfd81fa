package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis keeps keys in one set, shared by every watcher pointed at the server.
type Redis struct {
	client *redis.Client
	key    string
}

func OpenRedis(ctx context.Context, addr, key string) (*Redis, error) {
	if key == "" {
		key = "thsrbook:notified"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis %s: %w", addr, err)
	}
	return &Redis{client: client, key: key}, nil
}

func (r *Redis) Has(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, r.key, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis sismember: %w", err)
	}
	return ok, nil
}

func (r *Redis) Add(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	members := make([]interface{}, len(keys))
	for i, k := range keys {
		members[i] = k
	}
	if err := r.client.SAdd(ctx, r.key, members...).Err(); err != nil {
		return fmt.Errorf("redis sadd: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
