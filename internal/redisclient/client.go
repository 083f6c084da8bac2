package redisclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

type Client struct {
	rdb    *redis.Client
	locker *redislock.Client
}

// NewClient creates a new Redis client and checks the connection
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return newClient(rdb), nil
}

func newClient(rdb *redis.Client) *Client {
	return &Client{rdb: rdb, locker: redislock.New(rdb)}
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping reports whether Redis is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// stockTTL bounds how long a stale fill can be served
const stockTTL = 5 * time.Minute

func stockKey(productID int64) string {
	return fmt.Sprintf("inventory:stock:%d", productID)
}

// GetStock reads the cached remaining stock of a product. found is false on a miss.
func (c *Client) GetStock(ctx context.Context, productID int64) (int, bool, error) {
	raw, err := c.rdb.Get(ctx, stockKey(productID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	qty, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt stock entry for product %d: %w", productID, err)
	}
	return qty, true, nil
}

// SetStock caches the remaining stock of a product for stockTTL
func (c *Client) SetStock(ctx context.Context, productID int64, qty int) error {
	return c.rdb.Set(ctx, stockKey(productID), qty, stockTTL).Err()
}

// DeleteStock drops a product's cache entry
func (c *Client) DeleteStock(ctx context.Context, productID int64) error {
	return c.rdb.Del(ctx, stockKey(productID)).Err()
}

// ReserveKey stores an idempotency key with TTL. It returns false when the key already exists.
func (c *Client) ReserveKey(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("idempotency:%s", key), "1", ttl).Result()
}

// ReleaseKey forgets an idempotency key so the request can be retried
func (c *Client) ReleaseKey(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("idempotency:%s", key)).Err()
}

// TryLock obtains a distributed lock without waiting. ok is false when someone else holds it.
func (c *Client) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context), bool, error) {
	lock, err := c.locker.Obtain(ctx, fmt.Sprintf("lock:%s", key), ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return func(ctx context.Context) {
		_ = lock.Release(ctx)
	}, true, nil
}
