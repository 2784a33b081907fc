// Package redis provides the Redis connection used by Progress Hub and the
// distributed per-day lock that serializes summary recomputation across
// service instances.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/progress-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds Redis connection configuration.
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int

	PoolSize     int
	MinIdleConns int
	MaxRetries   int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolTimeout  time.Duration

	// ConnectAttempts is how many times the initial ping is tried.
	ConnectAttempts uint

	// KeyPrefix namespaces every key written by this service.
	KeyPrefix string
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            6379,
		PoolSize:        10,
		MinIdleConns:    2,
		MaxRetries:      3,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		PoolTimeout:     4 * time.Second,
		ConnectAttempts: 5,
		KeyPrefix:       "progress:",
	}
}

// Addr returns the Redis address in "host:port" format.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ErrConnection is returned when Redis cannot be reached.
var ErrConnection = errors.New("redis: connection failed")

// Key prefixes, appended to Config.KeyPrefix.
const (
	PrefixLock = "lock:"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client wraps a go-redis client with the service key namespace.
type Client struct {
	rdb    *redis.Client
	prefix string
}

// NewClient connects and pings Redis, retrying with backoff.
func NewClient(ctx context.Context, cfg Config, log *logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.Nop()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  cfg.PoolTimeout,
	})

	attempts := cfg.ConnectAttempts
	if attempts == 0 {
		attempts = 1
	}

	err := retry.Do(
		func() error { return rdb.Ping(ctx).Err() },
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("redis not ready, retrying",
				logger.Int("attempt", int(n)+1),
				logger.String("addr", cfg.Addr()),
				logger.Err(err),
			)
		}),
	)
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	return &Client{rdb: rdb, prefix: cfg.KeyPrefix}, nil
}

// Wrap adapts an existing go-redis client.
func Wrap(rdb *redis.Client, keyPrefix string) *Client {
	return &Client{rdb: rdb, prefix: keyPrefix}
}

// Redis returns the underlying go-redis client.
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks if Redis is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Key namespaces a key with the configured prefix.
func (c *Client) Key(parts ...string) string {
	key := c.prefix
	for _, p := range parts {
		key += p
	}
	return key
}
