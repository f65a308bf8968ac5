package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"secure-ehr-gateway/internal/models"
)

const (
	digestKeyPrefix = "ehr:digest:"
	rootKey         = "ehr:merkle-root"
)

// RedisCache keeps the manifest in Redis so it survives process restarts and
// can be shared by several gateway instances.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// NewRedisClient instantiates a Redis client from REDIS_ADDR, REDIS_PASSWORD
// and REDIS_DB. Returns nil when REDIS_ADDR is unset or the server does not
// answer; callers fall back to the in-process cache.
func NewRedisClient() *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return nil
	}
	dbNum := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if n, err := strconv.Atoi(dbStr); err == nil {
			dbNum = n
		}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       dbNum,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil
	}
	return client
}

// Put implements Cache.
func (c *RedisCache) Put(ctx context.Context, digest models.BucketDigest) error {
	payload, err := json.Marshal(digest)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, digestKeyPrefix+strconv.Itoa(digest.Bucket), payload, 0).Err()
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, bucket int) (*models.BucketDigest, error) {
	payload, err := c.client.Get(ctx, digestKeyPrefix+strconv.Itoa(bucket)).Bytes()
	if err == redis.Nil {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("manifest cache: %w", err)
	}
	var digest models.BucketDigest
	if err := json.Unmarshal(payload, &digest); err != nil {
		return nil, fmt.Errorf("manifest cache: %w", err)
	}
	return &digest, nil
}

// PutRoot implements Cache.
func (c *RedisCache) PutRoot(ctx context.Context, root []byte) error {
	return c.client.Set(ctx, rootKey, root, 0).Err()
}

// Root implements Cache.
func (c *RedisCache) Root(ctx context.Context) ([]byte, error) {
	root, err := c.client.Get(ctx, rootKey).Bytes()
	if err == redis.Nil {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("manifest cache: %w", err)
	}
	return root, nil
}
