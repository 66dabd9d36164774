// Package redis stores documents as JSON strings under "<prefix>:<collection>:<id>".
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ai-search-guru/getcito/config"
	"github.com/ai-search-guru/getcito/repositories"
)

// Store is a Redis implementation of repositories.DocumentStore
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

var _ repositories.DocumentStore = (*Store)(nil)

// New connects to Redis and verifies connectivity
func New(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     20,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: failed to connect to %s: %w", cfg.Addr, err)
	}

	logger.Info("redis document store connected", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return &Store{
		client: client,
		prefix: cfg.KeyPrefix,
		ttl:    cfg.TTL,
		logger: logger,
	}, nil
}

func (s *Store) key(collection, id string) string {
	if s.prefix == "" {
		return fmt.Sprintf("%s:%s", collection, id)
	}
	return fmt.Sprintf("%s:%s:%s", s.prefix, collection, id)
}

// Set stores the document. A zero TTL means the key does not expire.
func (s *Store) Set(ctx context.Context, collection, id string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("redis: encode %s/%s: %w", collection, id, err)
	}

	key := s.key(collection, id)
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %q: %w", key, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string, dest any) error {
	key := s.key(collection, id)
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return repositories.ErrDocumentNotFound
	}
	if err != nil {
		return fmt.Errorf("redis: get %q: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("redis: decode %q: %w", key, err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	s.logger.Info("closing redis connection")
	return s.client.Close()
}
