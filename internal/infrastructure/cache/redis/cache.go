package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"dexsync/internal/application/port"
)

// Cache is the redis-backed variant of the read cache, for setups where
// several readers share one sync engine. Keys expire server-side on the
// configured TTL.
type Cache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func New(rdb *redis.Client, prefix string, ttl time.Duration) *Cache {
	if prefix == "" {
		prefix = "dexsync"
	}
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Cache{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *Cache) key(account, query string) string {
	return fmt.Sprintf("%s:%s:%s", c.prefix, account, query)
}

func (c *Cache) Get(ctx context.Context, account, query string) ([]byte, bool) {
	b, err := c.rdb.Get(ctx, c.key(account, query)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("account", account).Str("query", query).Msg("cache get failed")
		}
		return nil, false
	}
	return b, true
}

func (c *Cache) Set(ctx context.Context, account, query string, val []byte) error {
	return c.rdb.Set(ctx, c.key(account, query), val, c.ttl).Err()
}

func (c *Cache) InvalidateAccount(ctx context.Context, account string) error {
	pattern := fmt.Sprintf("%s:%s:*", c.prefix, account)
	iter := c.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

var _ port.Cache = (*Cache)(nil)
