package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"boutik/backend/internal/domain"
)

const idempotencyKeyPrefix = "sale:idem:"

type RedisSaleIdempotencyStore struct {
	client *redis.Client
}

func NewRedisSaleIdempotencyStore(addr string, password string, db int) *RedisSaleIdempotencyStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisSaleIdempotencyStore{client: client}
}

func (c *RedisSaleIdempotencyStore) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisSaleIdempotencyStore) Close() error {
	return c.client.Close()
}

func (c *RedisSaleIdempotencyStore) Get(ctx context.Context, key string) (*domain.Sale, bool, error) {
	val, err := c.client.Get(ctx, idempotencyKeyPrefix+key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var sale domain.Sale
	if err := json.Unmarshal([]byte(val), &sale); err != nil {
		return nil, false, err
	}
	return &sale, true, nil
}

func (c *RedisSaleIdempotencyStore) Set(ctx context.Context, key string, sale *domain.Sale, ttl time.Duration) error {
	if sale == nil {
		return nil
	}
	payload, err := json.Marshal(sale)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, idempotencyKeyPrefix+key, payload, ttl).Err()
}
