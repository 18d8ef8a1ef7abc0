package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheKey is the Redis key holding externally produced metric values
const CacheKey = "metrics"

// cacheTimestampField is written by producers alongside values and is not a metric
const cacheTimestampField = "t"

// MetricCache supplies extra samples to merge into each push
type MetricCache interface {
	Load(ctx context.Context) (map[string]float64, error)
}

// RedisCache reads a JSON object of metric values from one Redis key
type RedisCache struct {
	client redis.UniversalClient
	key    string
}

// RedisOptions configures the cache connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisCache connects to Redis. The connection is lazy; the first
// Load surfaces connectivity errors.
func NewRedisCache(opts RedisOptions) *RedisCache {
	return NewRedisCacheWithClient(redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	}))
}

// NewRedisCacheWithClient wraps an existing client
func NewRedisCacheWithClient(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client, key: CacheKey}
}

// Load fetches and decodes the cached values. A missing key yields an
// empty map.
func (c *RedisCache) Load(ctx context.Context) (map[string]float64, error) {
	raw, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return map[string]float64{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metric cache: %w", err)
	}
	return DecodeCache(raw)
}

// Close releases the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// DecodeCache turns a cached JSON object into samples. Numeric and
// boolean values are kept, numeric strings are parsed, the timestamp
// field and everything else is dropped.
func DecodeCache(raw []byte) (map[string]float64, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode metric cache: %w", err)
	}

	out := make(map[string]float64, len(doc))
	for k, v := range doc {
		if k == cacheTimestampField {
			continue
		}
		switch val := v.(type) {
		case float64:
			out[SanitizeName(k)] = val
		case bool:
			if val {
				out[SanitizeName(k)] = 1
			} else {
				out[SanitizeName(k)] = 0
			}
		case string:
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				out[SanitizeName(k)] = f
			}
		}
	}
	return out, nil
}
