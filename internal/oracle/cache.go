// internal/oracle/cache.go
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"credit-audit/internal/common/database"
	apperrors "credit-audit/internal/common/errors"
	"credit-audit/internal/common/logger"
	"credit-audit/internal/models"
)

// Cache stores successful oracle results in redis so repeated runs against
// the same profiles reuse prior responses instead of burning API calls.
// Cache misses and redis outages degrade to a live call, never an error.
type Cache struct {
	redis *database.RedisClient
	ttl   time.Duration
	log   logger.Logger
}

func NewCache(redis *database.RedisClient, ttl time.Duration, log logger.Logger) *Cache {
	return &Cache{redis: redis, ttl: ttl, log: log}
}

func cacheKey(module string, profile models.Profile) string {
	return fmt.Sprintf("oracle:%s:%s", module, profile.Hash())
}

// Get returns the cached result for (module, profile), if any.
func (c *Cache) Get(ctx context.Context, module string, profile models.Profile) (*models.OracleResult, bool) {
	raw, err := c.redis.Get(ctx, cacheKey(module, profile))
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			cacheErr := apperrors.NewCacheUnavailableError(err.Error())
			c.log.Warn(cacheErr.Message, map[string]interface{}{
				"module": module,
				"error":  cacheErr.Details,
			})
		}
		return nil, false
	}
	var result models.OracleResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		c.log.Warn("Dropping undecodable cache entry", map[string]interface{}{
			"module": module,
			"error":  err.Error(),
		})
		_ = c.redis.Del(ctx, cacheKey(module, profile))
		return nil, false
	}
	return &result, true
}

// Put stores a result. Only successful results are worth caching; the
// client enforces that, Put just writes what it is given.
func (c *Cache) Put(ctx context.Context, module string, profile models.Profile, result *models.OracleResult) {
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, cacheKey(module, profile), string(raw), c.ttl); err != nil {
		c.log.Warn("Cache write failed", map[string]interface{}{
			"module": module,
			"error":  err.Error(),
		})
	}
}
