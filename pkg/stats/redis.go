package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the key the snapshot is stored under.
const DefaultRedisKey = "graph-explorer:stats"

// RedisStore shares the snapshot between server processes.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore stores the snapshot under key, or DefaultRedisKey when empty.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

// NewRedisClient parses url and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func (r *RedisStore) Load(ctx context.Context) (GraphStats, bool, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return GraphStats{}, false, nil
	}
	if err != nil {
		return GraphStats{}, false, err
	}

	var s GraphStats
	if err := json.Unmarshal(data, &s); err != nil {
		return GraphStats{}, false, fmt.Errorf("decode cached stats: %w", err)
	}
	return s, true, nil
}

func (r *RedisStore) Save(ctx context.Context, s GraphStats, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	return r.client.Set(ctx, r.key, data, ttl).Err()
}

func (r *RedisStore) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}
