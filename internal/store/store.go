// Package store persists the search history list under a fixed key.
package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/agenthands/nutrigraph/internal/config"
	"github.com/agenthands/nutrigraph/internal/platform/logger"
)

// HistoryStore is a small durable key/value store for string lists. Writes are
// last-writer-wins.
type HistoryStore interface {
	Load(ctx context.Context, key string) ([]string, error)
	Save(ctx context.Context, key string, entries []string) error
	Close() error
}

// New opens the store selected in cfg.
func New(ctx context.Context, cfg config.HistoryConfig, log *logger.Logger) (HistoryStore, error) {
	switch strings.ToLower(cfg.Store) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisDB, log)
	case "sql":
		return OpenSQLStore(cfg.SQLDriver, cfg.SQLDSN, log)
	default:
		return nil, fmt.Errorf("unknown history store %q", cfg.Store)
	}
}

type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]string)}
}

func (s *MemoryStore) Load(ctx context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.data[key]...), nil
}

func (s *MemoryStore) Save(ctx context.Context, key string, entries []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]string(nil), entries...)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
