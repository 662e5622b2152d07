package cache

import (
	"context"
	"fmt"
	"time"
)

// TokenStore хранит идентификаторы одноразовых токенов.
type TokenStore struct {
	cache  *Cache
	prefix string
}

// NewTokenStore создаёт хранилище с префиксом ключей.
func NewTokenStore(c *Cache, prefix string) *TokenStore {
	return &TokenStore{cache: c, prefix: prefix}
}

func (s *TokenStore) key(id string) string {
	return s.prefix + ":" + id
}

// Remember запоминает идентификатор на ttl.
func (s *TokenStore) Remember(ctx context.Context, id string, ttl time.Duration) error {
	const op = "cache.TokenStore.Remember"
	if err := s.cache.Db.Set(ctx, s.key(id), 1, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Consume атомарно удаляет идентификатор. true только у первого вызова
// для ещё не истёкшего идентификатора.
func (s *TokenStore) Consume(ctx context.Context, id string) (bool, error) {
	const op = "cache.TokenStore.Consume"
	n, err := s.cache.Db.Del(ctx, s.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}
