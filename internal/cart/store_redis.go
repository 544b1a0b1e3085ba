package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var _ Store = (*RedisStore)(nil)

// RedisStore keeps one session's cart under shoppingCart:<session>. A single
// SET replaces the payload, so a write is never observed half-done.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStore creates a store for sessionID. A zero ttl keeps the key forever.
func NewRedisStore(client *redis.Client, sessionID string, ttl time.Duration, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		key:    fmt.Sprintf("%s:%s", StorageKey, sessionID),
		ttl:    ttl,
		logger: logger.Named("RedisCartStore"),
	}
}

func NewRedisFactory(client *redis.Client, ttl time.Duration, logger *zap.Logger) StoreFactory {
	return func(sessionID string) Store {
		return NewRedisStore(client, sessionID, ttl, logger)
	}
}

func (s *RedisStore) Key() string { return s.key }

func (s *RedisStore) Load(ctx context.Context) ([]Item, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		s.logger.Error("Failed to load cart", zap.String("key", s.key), zap.Error(err))
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	return Decode(data)
}

func (s *RedisStore) Save(ctx context.Context, items []Item) error {
	data, err := Encode(items)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		s.logger.Error("Failed to save cart", zap.String("key", s.key), zap.Error(err))
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	s.logger.Debug("Cart saved", zap.String("key", s.key), zap.Int("items", len(items)))
	return nil
}
