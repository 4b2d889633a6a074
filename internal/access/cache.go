package access

import (
	"context"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

// DefaultCacheSize is the number of accesses kept by the in-process cache.
const DefaultCacheSize = 4096

type (
	// An LRUCache keeps the most recently granted accesses in memory.
	LRUCache struct {
		lru *lru.Cache
	}

	// A RedisCache shares granted accesses between gateway instances.
	RedisCache struct {
		client redis.Cmdable
		prefix string
	}
)

// NewLRUCache returns a new in-process cache holding up to size accesses.
func NewLRUCache(size int) (*LRUCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}

	c, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrap(err, "could not create access cache")
	}
	return &LRUCache{lru: c}, nil
}

// Granted implements Cache.
func (c *LRUCache) Granted(_ context.Context, address, contentID string) (bool, error) {
	return c.lru.Contains(key(address, contentID)), nil
}

// Grant implements Cache.
func (c *LRUCache) Grant(_ context.Context, address, contentID string) error {
	c.lru.Add(key(address, contentID), struct{}{})
	return nil
}

// NewRedisCache returns a cache stored in redis.
// A comma separated list of addresses connects to a cluster.
func NewRedisCache(addr, password string) *RedisCache {
	var client redis.Cmdable
	if strings.Contains(addr, ",") {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:       strings.Split(addr, ","),
			Password:    password,
			DialTimeout: time.Second,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:        addr,
			Password:    password,
			DialTimeout: time.Second,
		})
	}

	return &RedisCache{
		client: client,
		prefix: "paygate:access:",
	}
}

// Granted implements Cache.
func (c *RedisCache) Granted(ctx context.Context, address, contentID string) (bool, error) {
	n, err := c.client.Exists(ctx, c.prefix+key(address, contentID)).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis")
	}
	return n == 1, nil
}

// Grant implements Cache.
func (c *RedisCache) Grant(ctx context.Context, address, contentID string) error {
	err := c.client.Set(ctx, c.prefix+key(address, contentID), time.Now().Unix(), 0).Err()
	return errors.Wrap(err, "redis")
}

func key(address, contentID string) string {
	return address + "/" + contentID
}
