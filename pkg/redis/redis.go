package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/config"
)

// Client wraps go-redis for the summary cache and the fixed-window rate limiter.
// Every method is safe on a nil *Client: the server runs without redis.
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewClient connects and pings redis
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connect: %w", err)
	}

	logger.Info("redis connected", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// ── doctor credit summary cache ──

const summaryPrefix = "ledger:summary:"

// GetSummary returns the cached summary payload; ok is false on miss.
func (c *Client) GetSummary(ctx context.Context, doctorID string) (payload []byte, ok bool, err error) {
	if c == nil {
		return nil, false, nil
	}
	b, err := c.rdb.Get(ctx, summaryPrefix+doctorID).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// SetSummary stores a summary payload for ttl
func (c *Client) SetSummary(ctx context.Context, doctorID string, payload []byte, ttl time.Duration) error {
	if c == nil || ttl <= 0 {
		return nil
	}
	return c.rdb.Set(ctx, summaryPrefix+doctorID, payload, ttl).Err()
}

// InvalidateSummary drops the cached summary after a ledger append
func (c *Client) InvalidateSummary(ctx context.Context, doctorID string) error {
	if c == nil {
		return nil
	}
	return c.rdb.Del(ctx, summaryPrefix+doctorID).Err()
}

// ── rate limiting ──

const rateLimitPrefix = "ratelimit:"

// CheckRateLimit counts one hit against key in a fixed window.
// Returns allowed=false once more than limit hits landed in the current window.
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, retryAfter time.Duration, err error) {
	if c == nil || limit <= 0 {
		return true, 0, nil
	}

	fullKey := rateLimitPrefix + key
	pipe := c.rdb.TxPipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.ExpireNX(ctx, fullKey, window)
	ttl := pipe.TTL(ctx, fullKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, 0, err
	}

	if incr.Val() > int64(limit) {
		return false, ttl.Val(), nil
	}
	return true, 0, nil
}

// Close closes the connection
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
