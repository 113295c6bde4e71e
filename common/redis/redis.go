package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/llmify/llmstxt-service/common/config"
	"github.com/redis/go-redis/v9"
)

// RedisClient wraps go-redis with the handful of operations the pipeline
// needs: plain keys for job state, hashes for the summary cache, sorted
// sets for queue ordering.
type RedisClient struct {
	client *redis.Client
}

// NewClient creates a new Redis client instance
func NewClient(cfg config.Config) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{
		client: client,
	}, nil
}

// Close closes the Redis client connection
func (c *RedisClient) Close() error {
	return c.client.Close()
}

// Set sets a key-value pair with optional expiration
func (c *RedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.client.Set(ctx, key, value, expiration).Err()
}

// Get retrieves a value by key
func (c *RedisClient) Get(ctx context.Context, key string) (string, error) {
	return c.client.Get(ctx, key).Result()
}

// Delete removes a key
func (c *RedisClient) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// Exists checks if a key exists
func (c *RedisClient) Exists(ctx context.Context, key string) (bool, error) {
	result, err := c.client.Exists(ctx, key).Result()
	return result > 0, err
}

// SetNX sets a key-value pair only if the key does not exist
func (c *RedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, value, expiration).Result()
}

// HSet sets fields on a hash
func (c *RedisClient) HSet(ctx context.Context, key string, values map[string]interface{}) error {
	return c.client.HSet(ctx, key, values).Err()
}

// HMGet reads multiple hash fields in one round trip. Missing fields come
// back as nil entries in the same positions as the requested fields.
func (c *RedisClient) HMGet(ctx context.Context, key string, fields ...string) ([]interface{}, error) {
	return c.client.HMGet(ctx, key, fields...).Result()
}

// HGet reads a single hash field
func (c *RedisClient) HGet(ctx context.Context, key, field string) (string, error) {
	return c.client.HGet(ctx, key, field).Result()
}

// Expire refreshes the TTL on a key
func (c *RedisClient) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Expire(ctx, key, ttl).Err()
}

// ZAdd adds a member to a sorted set with the given score
func (c *RedisClient) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return c.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

// ZRem removes a member from a sorted set
func (c *RedisClient) ZRem(ctx context.Context, key, member string) error {
	return c.client.ZRem(ctx, key, member).Err()
}

// ZRank returns the 0-indexed rank of a member, or redis.Nil when absent
func (c *RedisClient) ZRank(ctx context.Context, key, member string) (int64, error) {
	return c.client.ZRank(ctx, key, member).Result()
}

// GetClient returns the underlying Redis client
func (c *RedisClient) GetClient() *redis.Client {
	return c.client
}
