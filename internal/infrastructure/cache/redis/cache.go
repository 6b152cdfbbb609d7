package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/kirillkom/knowledge-gateway/internal/core/domain"
	"github.com/kirillkom/knowledge-gateway/internal/core/ports"
)

// Compile-time check: Cache implements ports.ResultCache.
var _ ports.ResultCache = (*Cache)(nil)

const defaultKeyPrefix = "kgw:search:"

// Config holds connection parameters for the result cache.
type Config struct {
	Addrs     []string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
}

// Cache stores serialized search responses keyed by query fingerprint.
type Cache struct {
	client rueidis.Client
	prefix string
}

func New(cfg Config) (*Cache, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis client: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Cache{client: client, prefix: prefix}, nil
}

func (c *Cache) Get(ctx context.Context, fingerprint string) (*domain.SearchResponse, error) {
	cmd := c.client.B().Get().Key(c.key(fingerprint)).Build()
	data, err := c.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, domain.WrapError(domain.ErrCacheMiss, "result cache get", err)
		}
		return nil, fmt.Errorf("result cache get: %w", err)
	}

	var resp domain.SearchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		// A poisoned entry reads as a miss; the next Put overwrites it.
		return nil, domain.WrapError(domain.ErrCacheMiss, "result cache decode", err)
	}
	return &resp, nil
}

func (c *Cache) Put(ctx context.Context, fingerprint string, resp domain.SearchResponse, ttl time.Duration) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal cached response: %w", err)
	}

	var cmd rueidis.Completed
	if ttl > 0 {
		cmd = c.client.B().Set().Key(c.key(fingerprint)).Value(string(data)).Ex(ttl).Build()
	} else {
		cmd = c.client.B().Set().Key(c.key(fingerprint)).Value(string(data)).Build()
	}
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("result cache put: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	cmd := c.client.B().Ping().Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (c *Cache) Close() {
	c.client.Close()
}

func (c *Cache) key(fingerprint string) string {
	return c.prefix + fingerprint
}
