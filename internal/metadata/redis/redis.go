// Package redis provides a Redis-backed metadata cache for multi-instance
// deployments where the in-process cache would refetch per replica.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vbonduro/auctionhouse/internal/domain"
)

const keyPrefix = "metadata:"

type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(addr string, ttl time.Duration) *Cache {
	return &Cache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

func (c *Cache) Get(ctx context.Context, uri string) (*domain.Metadata, error) {
	data, err := c.client.Get(ctx, keyPrefix+uri).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata cache: %w", err)
	}
	var md domain.Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("failed to decode cached metadata: %w", err)
	}
	return &md, nil
}

func (c *Cache) Set(ctx context.Context, uri string, md *domain.Metadata) error {
	data, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+uri, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write metadata cache: %w", err)
	}
	return nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}
