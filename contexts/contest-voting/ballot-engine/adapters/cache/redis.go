package cache

import (
	"context"
	"errors"
	"time"

	"contestvote/contexts/contest-voting/ballot-engine/domain/entities"
	"contestvote/contexts/contest-voting/ballot-engine/ports"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// RedisResultCache shares category results across API replicas.
type RedisResultCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisResultCache(client redis.Cmdable, ttl time.Duration) *RedisResultCache {
	return &RedisResultCache{client: client, ttl: ttl}
}

func (c *RedisResultCache) GetCategoryResult(ctx context.Context, categoryID string) (entities.CategoryResult, bool, error) {
	raw, err := c.client.Get(ctx, string(cacheKey(categoryID))).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return entities.CategoryResult{}, false, nil
		}
		return entities.CategoryResult{}, false, err
	}
	var result entities.CategoryResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return entities.CategoryResult{}, false, err
	}
	return result, true, nil
}

func (c *RedisResultCache) SetCategoryResult(ctx context.Context, result entities.CategoryResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, string(cacheKey(result.CategoryID)), raw, c.ttl).Err()
}

func (c *RedisResultCache) Invalidate(ctx context.Context, categoryID string) error {
	return c.client.Del(ctx, string(cacheKey(categoryID))).Err()
}

var _ ports.ResultCache = (*RedisResultCache)(nil)
