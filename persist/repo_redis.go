package persist

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/jrsteele09/go-console-session/internal/errors"
	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "console:"

// RedisRepo stores keys in Redis so several console processes can share one operator's state.
type RedisRepo struct {
	client redis.Cmdable
	prefix string
}

var _ Repo = (*RedisRepo)(nil)

func NewRedisRepo(client redis.Cmdable, prefix string) *RedisRepo {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisRepo{client: client, prefix: prefix}
}

// NewRedisRepoFromURL parses a redis:// URL and builds a client for it.
func NewRedisRepoFromURL(redisURL, prefix string) (*RedisRepo, *redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("[NewRedisRepoFromURL] parse url: %w", err)
	}
	client := redis.NewClient(opts)
	return NewRedisRepo(client, prefix), client, nil
}

func (r *RedisRepo) key(key string) string {
	return r.prefix + key
}

func (r *RedisRepo) Get(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", errors.New("key cannot be empty")
	}
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("[RedisRepo Get] %s: %w", key, apperrors.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("[RedisRepo Get] %s: %w", key, err)
	}
	return v, nil
}

func (r *RedisRepo) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("[RedisRepo Set] %s: %w", key, err)
	}
	return nil
}

func (r *RedisRepo) Delete(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("[RedisRepo Delete] %s: %w", key, err)
	}
	return nil
}

// Take uses GETDEL so concurrent consoles sharing the prefix cannot both read the value.
func (r *RedisRepo) Take(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", errors.New("key cannot be empty")
	}
	v, err := r.client.GetDel(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("[RedisRepo Take] %s: %w", key, apperrors.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("[RedisRepo Take] %s: %w", key, err)
	}
	return v, nil
}
