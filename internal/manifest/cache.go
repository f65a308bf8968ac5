// Package manifest is the client's trusted copy of the completeness digests:
// the independent channel the verifier checks storage-returned results
// against. The stored digests in MySQL are keyed and thus unforgeable, but a
// semi-trusted backend could replay an old one; digests the client has cached
// here close that window.
package manifest

import (
	"context"
	"errors"
	"sync"

	"secure-ehr-gateway/internal/models"
)

// ErrMiss is returned when the cache holds no entry for a bucket.
var ErrMiss = errors.New("manifest cache miss")

// Cache holds bucket digests and the Merkle root of the full row set.
type Cache interface {
	Put(ctx context.Context, digest models.BucketDigest) error
	Get(ctx context.Context, bucket int) (*models.BucketDigest, error)
	PutRoot(ctx context.Context, root []byte) error
	Root(ctx context.Context) ([]byte, error)
}

// MemoryCache is the in-process fallback used when no Redis is configured,
// and in tests.
type MemoryCache struct {
	mu      sync.RWMutex
	digests map[int]models.BucketDigest
	root    []byte
}

// NewMemoryCache returns an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{digests: make(map[int]models.BucketDigest)}
}

// Put implements Cache.
func (c *MemoryCache) Put(ctx context.Context, digest models.BucketDigest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.digests[digest.Bucket] = digest
	return nil
}

// Get implements Cache.
func (c *MemoryCache) Get(ctx context.Context, bucket int) (*models.BucketDigest, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	digest, ok := c.digests[bucket]
	if !ok {
		return nil, ErrMiss
	}
	return &digest, nil
}

// PutRoot implements Cache.
func (c *MemoryCache) PutRoot(ctx context.Context, root []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.root = append([]byte(nil), root...)
	return nil
}

// Root implements Cache.
func (c *MemoryCache) Root(ctx context.Context) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.root == nil {
		return nil, ErrMiss
	}
	return append([]byte(nil), c.root...), nil
}
