package regnumber

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"backoffice_backend/platform/config"

	"github.com/redis/go-redis/v9"
)

// RedisGenerator keeps counters in Redis with INCR.
type RedisGenerator struct {
	client *redis.Client
	prefix string
	now    clock
}

// NewRedisGenerator connects to the Redis instance configured in cfg.
func NewRedisGenerator(cfg config.RedisConfig) (*RedisGenerator, error) {
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.GetRedisTLSInsecure() {
		if opt.TLSConfig == nil {
			opt.TLSConfig = &tls.Config{}
		}
		opt.TLSConfig.InsecureSkipVerify = true
	}
	return NewRedisGeneratorWithClient(redis.NewClient(opt)), nil
}

// NewRedisGeneratorWithClient wraps an existing client.
func NewRedisGeneratorWithClient(client *redis.Client) *RedisGenerator {
	return &RedisGenerator{client: client, prefix: "regnumber", now: time.Now}
}

// Next increments the counter for kind in the current year.
func (g *RedisGenerator) Next(ctx context.Context, kind Kind) (string, error) {
	year := g.now().Year()
	key := fmt.Sprintf("%s:%s:%d", g.prefix, kind, year)

	n, err := g.client.Incr(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("incr %s: %w", key, err)
	}
	return Format(kind, year, int(n)), nil
}

// Close releases the Redis connection.
func (g *RedisGenerator) Close() error {
	return g.client.Close()
}

var _ Generator = (*RedisGenerator)(nil)
