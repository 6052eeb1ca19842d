package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/agenthands/nutrigraph/internal/platform/logger"
)

// RedisStore keeps each list as a JSON array string, the same encoding the
// browser used in local storage.
type RedisStore struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewRedisStore(ctx context.Context, addr string, db int, log *logger.Logger) (*RedisStore, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{
		log: logger.OrNop(log).With("store", "redis"),
		rdb: rdb,
	}, nil
}

func (s *RedisStore) Load(ctx context.Context, key string) ([]string, error) {
	raw, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return decodeEntries(raw)
}

func (s *RedisStore) Save(ctx context.Context, key string, entries []string) error {
	raw, err := encodeEntries(entries)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, key, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func encodeEntries(entries []string) (string, error) {
	if entries == nil {
		entries = []string{}
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("failed to encode history: %w", err)
	}
	return string(b), nil
}

func decodeEntries(raw string) ([]string, error) {
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	return out, nil
}
