package translate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Key identifies one cached translation.
type Key struct {
	Text   string
	Target string
	Source string
}

func (k Key) String() string {
	sum := sha256.Sum256([]byte(k.Text))
	return k.Source + ":" + k.Target + ":" + hex.EncodeToString(sum[:])
}

// Cache stores finished translations. Backend failures behave like misses.
type Cache interface {
	Get(ctx context.Context, key Key) (string, bool)
	Set(ctx context.Context, key Key, value string)
}

// LRUCache is a bounded in-process cache with a per-entry TTL.
type LRUCache struct {
	lru *expirable.LRU[Key, string]
}

// NewLRUCache keeps at most size entries for ttl; zero values disable the
// corresponding bound.
func NewLRUCache(size int, ttl time.Duration) *LRUCache {
	return &LRUCache{lru: expirable.NewLRU[Key, string](size, nil, ttl)}
}

func (c *LRUCache) Get(_ context.Context, key Key) (string, bool) { return c.lru.Get(key) }

func (c *LRUCache) Set(_ context.Context, key Key, value string) { c.lru.Add(key, value) }

func (c *LRUCache) Len() int { return c.lru.Len() }

type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// RedisCache shares translations between instances.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client, prefix: cfg.Prefix, ttl: cfg.TTL}, nil
}

func (c *RedisCache) key(k Key) string { return c.prefix + ":" + k.String() }

func (c *RedisCache) Get(ctx context.Context, key Key) (string, bool) {
	v, err := c.client.Get(ctx, c.key(key)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("module", "translate.cache").Msg("redis get failed")
		}
		return "", false
	}
	return v, true
}

func (c *RedisCache) Set(ctx context.Context, key Key, value string) {
	if err := c.client.Set(ctx, c.key(key), value, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("module", "translate.cache").Msg("redis set failed")
	}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Tiered reads through a local cache in front of a shared one.
type Tiered struct {
	Local  Cache
	Shared Cache
}

func (t Tiered) Get(ctx context.Context, key Key) (string, bool) {
	if v, ok := t.Local.Get(ctx, key); ok {
		return v, true
	}
	v, ok := t.Shared.Get(ctx, key)
	if ok {
		t.Local.Set(ctx, key, v)
	}
	return v, ok
}

func (t Tiered) Set(ctx context.Context, key Key, value string) {
	t.Local.Set(ctx, key, value)
	t.Shared.Set(ctx, key, value)
}
