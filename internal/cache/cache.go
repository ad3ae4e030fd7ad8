// Package cache реализует кэш публичного каталога поверх Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyCategories        = "catalog:categories"
	keyProducts          = "catalog:products"
	keyProductsByCatalog = "catalog:products:category:%d"

	defaultTTL = 30 * time.Second
)

// ErrMiss возвращается, когда значение отсутствует в кэше.
var ErrMiss = errors.New("cache miss")

// Cache хранит сериализованные ответы публичных операций каталога.
// Нулевой кэш (nil) безопасен: чтение всегда промахивается, запись — no-op.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New создаёт кэш каталога поверх Redis по указанному адресу.
func New(addr string) *Cache {
	return &Cache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    defaultTTL,
	}
}

// Close закрывает соединение с Redis.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Cache) getList(ctx context.Context, key string, out any) error {
	if c == nil {
		return ErrMiss
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		return fmt.Errorf("redis get: %w", err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal cached value: %w", err)
	}

	return nil
}

func (c *Cache) setList(ctx context.Context, key string, value any) error {
	if c == nil {
		return nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}

	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// GetCategories читает закэшированный список категорий.
func (c *Cache) GetCategories(ctx context.Context, out any) error {
	return c.getList(ctx, keyCategories, out)
}

// SetCategories сохраняет список категорий.
func (c *Cache) SetCategories(ctx context.Context, value any) error {
	return c.setList(ctx, keyCategories, value)
}

// GetProducts читает закэшированный список товаров.
func (c *Cache) GetProducts(ctx context.Context, out any) error {
	return c.getList(ctx, keyProducts, out)
}

// SetProducts сохраняет список товаров.
func (c *Cache) SetProducts(ctx context.Context, value any) error {
	return c.setList(ctx, keyProducts, value)
}

// GetProductsByCategory читает закэшированный список товаров категории.
func (c *Cache) GetProductsByCategory(ctx context.Context, categoryID int64, out any) error {
	return c.getList(ctx, fmt.Sprintf(keyProductsByCatalog, categoryID), out)
}

// SetProductsByCategory сохраняет список товаров категории.
func (c *Cache) SetProductsByCategory(ctx context.Context, categoryID int64, value any) error {
	return c.setList(ctx, fmt.Sprintf(keyProductsByCatalog, categoryID), value)
}

// InvalidateCatalog сбрасывает кэш каталога после административной записи.
func (c *Cache) InvalidateCatalog(ctx context.Context) error {
	if c == nil {
		return nil
	}

	keys := []string{keyCategories, keyProducts}

	iter := c.client.Scan(ctx, 0, "catalog:products:category:*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan catalog keys: %w", err)
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}
