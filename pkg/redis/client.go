// Package redis wraps go-redis with the key layout and the few primitives
// the catalog relies on: the product cache, cron locks, and idempotency
// records.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// Key layout: sf:<kind>:<parts...>
const (
	keyNamespace  = "sf"
	productPrefix = "product"
	lockPrefix    = "lock"
	idemPrefix    = "idem"
)

// Nil is returned by Get when the key does not exist.
var Nil = redis.Nil

var errNotInitialized = errors.New("redis client not initialized")

// compareAndDelete removes KEYS[1] only while it still holds ARGV[1].
const compareAndDelete = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// IdempotencyStore is the subset the idempotency middleware needs.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Pinger exposes the health-check surface.
type Pinger interface {
	Ping(context.Context) error
}

type Client struct {
	store cmdable
	raw   *redis.Client
}

// New dials redis and pings it once; an unreachable server fails startup.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"redis_addr": opts.Addr,
			"redis_db":   opts.DB,
			"pool_size":  opts.PoolSize,
		}), "redis connection established")
	}
	return &Client{store: raw, raw: raw}, nil
}

// optionsFromConfig prefers a URL; discrete settings fill whatever the URL
// leaves unset.
func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	if !cfg.Configured() {
		return nil, errors.New("redis url or address is required")
	}
	opts := &redis.Options{Addr: cfg.Address, Password: cfg.Password}
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	}
	fillInt(&opts.DB, cfg.DB)
	fillInt(&opts.PoolSize, cfg.PoolSize)
	fillInt(&opts.MinIdleConns, cfg.MinIdleConns)
	fillDuration(&opts.DialTimeout, cfg.DialTimeout)
	fillDuration(&opts.ReadTimeout, cfg.ReadTimeout)
	fillDuration(&opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

func fillInt(dst *int, v int) {
	if *dst == 0 {
		*dst = v
	}
}

func fillDuration(dst *time.Duration, v time.Duration) {
	if *dst == 0 {
		*dst = v
	}
}

func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c.store == nil {
		return errNotInitialized
	}
	return c.store.Set(ctx, key, value, ttl).Err()
}

// Get returns Nil when key is absent.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c.store == nil {
		return "", errNotInitialized
	}
	return c.store.Get(ctx, key).Result()
}

func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if c.store == nil {
		return false, errNotInitialized
	}
	return c.store.SetNX(ctx, key, value, ttl).Result()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if c.store == nil {
		return errNotInitialized
	}
	if len(keys) == 0 {
		return nil
	}
	return c.store.Del(ctx, keys...).Err()
}

// DelIfEqual atomically deletes key when its value is still value. It
// reports whether a key was removed.
func (c *Client) DelIfEqual(ctx context.Context, key, value string) (bool, error) {
	if c.store == nil {
		return false, errNotInitialized
	}
	n, err := c.store.Eval(ctx, compareAndDelete, []string{key}, value).Int64()
	if err != nil {
		return false, fmt.Errorf("compare and delete %s: %w", key, err)
	}
	return n == 1, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if c.store == nil {
		return errNotInitialized
	}
	return c.store.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

func (c *Client) ProductKey(id uint) string {
	return joinKey(productPrefix, strconv.FormatUint(uint64(id), 10))
}

func (c *Client) LockKey(name string) string {
	return joinKey(lockPrefix, name)
}

// IdempotencyKey scopes a client-supplied Idempotency-Key to one route.
func (c *Client) IdempotencyKey(scope, id string) string {
	return joinKey(idemPrefix, scope, id)
}

// joinKey drops empty parts so a missing segment never yields "a::b".
func joinKey(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}
