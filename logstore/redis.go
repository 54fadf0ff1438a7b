package logstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore keeps entries in a capped Redis list, newest at the head.
// LPUSH followed by LTRIM gives FIFO eviction at capacity.
type RedisStore struct {
	client *redis.Client
	key    string
	cap    int
}

// NewRedisStore builds a store writing to the given list key with at most
// capacity entries.
func NewRedisStore(client *redis.Client, key string, capacity int) *RedisStore {
	if key == "" {
		key = "gopanel:log"
	}
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &RedisStore{client: client, key: key, cap: capacity}
}

func (s *RedisStore) Append(ctx context.Context, e Entry) error {
	e = stamp(e)
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, s.key, string(data))
	pipe.LTrim(ctx, s.key, 0, int64(s.cap-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	return nil
}

// Entries returns stored entries newest-first.
func (s *RedisStore) Entries(ctx context.Context, limit, offset int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	raw, err := s.client.LRange(ctx, s.key, int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	out := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStore, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// NewRedisClient connects to Redis from a URL and verifies the link.
func NewRedisClient(ctx context.Context, url string, log *zap.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	log.Info("redis connected", zap.String("addr", opts.Addr))
	return client, nil
}
