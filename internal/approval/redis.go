package approval

import (
	"context"
	"fmt"
	"time"

	"github.com/magabrotheeeer/campus-pass/internal/cache"
)

const keyPrefix = "approval:"

// RedisStore хранит коды в redis с серверным TTL.
type RedisStore struct {
	cache *cache.Cache
}

func NewRedisStore(c *cache.Cache) *RedisStore {
	return &RedisStore{cache: c}
}

func key(passID string) string {
	return keyPrefix + passID
}

func (s *RedisStore) Put(ctx context.Context, passID, code string, ttl time.Duration) error {
	const op = "approval.RedisStore.Put"
	if err := s.cache.Set(ctx, key(passID), code, ttl); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *RedisStore) Match(ctx context.Context, passID, code string) (bool, error) {
	const op = "approval.RedisStore.Match"
	var stored string
	found, err := s.cache.Get(ctx, key(passID), &stored)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return found && stored == code, nil
}

func (s *RedisStore) Delete(ctx context.Context, passID, code string) error {
	const op = "approval.RedisStore.Delete"
	if _, err := s.cache.CompareAndDelete(ctx, key(passID), code); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *RedisStore) Discard(ctx context.Context, passID string) error {
	const op = "approval.RedisStore.Discard"
	if err := s.cache.Invalidate(ctx, key(passID)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
