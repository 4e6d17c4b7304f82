package executor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"pm-intelligence/internal/common/database"
	"pm-intelligence/internal/common/logger"
	"pm-intelligence/internal/models"
)

const CacheKeyPrefix = "pm:query:"

// ResultCache stores rows of successful queries. Implementations fail open:
// a cache error is a miss.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]models.Row, bool)
	Set(ctx context.Context, key string, rows []models.Row)
}

// CacheKey hashes the query text and its parameters. Map keys are encoded
// in sorted order, so equal parameters give equal keys.
func CacheKey(q models.Query) string {
	params, _ := json.Marshal(q.Params)
	h := sha256.New()
	h.Write([]byte(q.Cypher))
	h.Write([]byte{0})
	h.Write(params)
	return CacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewRedisCache(client redis.Cmdable, ttl time.Duration, log logger.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: logger.ForComponent(log, "query-cache"),
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]models.Row, bool) {
	var rows []models.Row
	found, err := database.GetJSON(ctx, c.client, key, &rows)
	if err != nil {
		c.logger.Warn("cache read failed", map[string]interface{}{"key": key, "error": err})
		return nil, false
	}
	return rows, found
}

func (c *RedisCache) Set(ctx context.Context, key string, rows []models.Row) {
	if err := database.SetJSON(ctx, c.client, key, rows, c.ttl); err != nil {
		c.logger.Warn("cache write failed", map[string]interface{}{"key": key, "error": err})
	}
}
