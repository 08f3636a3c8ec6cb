package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"contestvote/contexts/contest-voting/ballot-engine/domain/entities"
	"contestvote/contexts/contest-voting/ballot-engine/ports"

	"github.com/coocood/freecache"
	json "github.com/goccy/go-json"
)

const keyPrefix = "ballot-engine:category-result:"

// LocalResultCache keeps encoded category results in a freecache segment
// owned by this process.
type LocalResultCache struct {
	cache *freecache.Cache
	ttl   time.Duration
}

// NewLocalResultCache allocates sizeMB megabytes (freecache enforces a
// 512KB minimum).
func NewLocalResultCache(sizeMB int, ttl time.Duration) *LocalResultCache {
	if sizeMB <= 0 {
		sizeMB = 16
	}
	return &LocalResultCache{
		cache: freecache.NewCache(sizeMB * 1024 * 1024),
		ttl:   ttl,
	}
}

func (c *LocalResultCache) GetCategoryResult(_ context.Context, categoryID string) (entities.CategoryResult, bool, error) {
	raw, err := c.cache.Get(cacheKey(categoryID))
	if err != nil {
		if errors.Is(err, freecache.ErrNotFound) {
			return entities.CategoryResult{}, false, nil
		}
		return entities.CategoryResult{}, false, err
	}
	var result entities.CategoryResult
	if err := json.Unmarshal(raw, &result); err != nil {
		c.cache.Del(cacheKey(categoryID))
		return entities.CategoryResult{}, false, err
	}
	return result, true, nil
}

func (c *LocalResultCache) SetCategoryResult(_ context.Context, result entities.CategoryResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.cache.Set(cacheKey(result.CategoryID), raw, ttlSeconds(c.ttl))
}

func (c *LocalResultCache) Invalidate(_ context.Context, categoryID string) error {
	c.cache.Del(cacheKey(categoryID))
	return nil
}

func cacheKey(categoryID string) []byte {
	return []byte(keyPrefix + strings.TrimSpace(categoryID))
}

// ttlSeconds rounds up to whole seconds; 0 means no expiry in freecache.
func ttlSeconds(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	seconds := int(ttl / time.Second)
	if ttl%time.Second != 0 {
		seconds++
	}
	return seconds
}

var _ ports.ResultCache = (*LocalResultCache)(nil)
