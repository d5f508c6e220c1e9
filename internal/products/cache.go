package product

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// AggregateCache stores rendered aggregates keyed by product id. Lookups that
// fail for any reason count as misses.
type AggregateCache interface {
	Get(ctx context.Context, id uint) (*ProductDTO, bool)
	Set(ctx context.Context, dto *ProductDTO)
	Invalidate(ctx context.Context, id uint)
}

type redisStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	ProductKey(id uint) string
}

type redisCache struct {
	store redisStore
	ttl   time.Duration
	logg  *logger.Logger
}

// NewRedisCache builds an aggregate cache over the shared redis client.
func NewRedisCache(store redisStore, ttl time.Duration, logg *logger.Logger) (AggregateCache, error) {
	if store == nil {
		return nil, errors.New("redis store required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &redisCache{store: store, ttl: ttl, logg: logg}, nil
}

func (c *redisCache) Get(ctx context.Context, id uint) (*ProductDTO, bool) {
	raw, err := c.store.Get(ctx, c.store.ProductKey(id))
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logg.WarnErr(ctx, "product cache read failed", err)
		}
		return nil, false
	}
	var dto ProductDTO
	if err := json.Unmarshal([]byte(raw), &dto); err != nil {
		c.logg.WarnErr(ctx, "product cache entry undecodable", err)
		return nil, false
	}
	return &dto, true
}

func (c *redisCache) Set(ctx context.Context, dto *ProductDTO) {
	if dto == nil {
		return
	}
	payload, err := json.Marshal(dto)
	if err != nil {
		c.logg.WarnErr(ctx, "product cache encode failed", err)
		return
	}
	if err := c.store.Set(ctx, c.store.ProductKey(dto.ID), payload, c.ttl); err != nil {
		c.logg.WarnErr(ctx, "product cache write failed", err)
	}
}

func (c *redisCache) Invalidate(ctx context.Context, id uint) {
	if err := c.store.Del(ctx, c.store.ProductKey(id)); err != nil {
		c.logg.WarnErr(ctx, "product cache invalidation failed", err)
	}
}

type noopCache struct{}

// NoopCache disables aggregate caching.
func NoopCache() AggregateCache { return noopCache{} }

func (noopCache) Get(context.Context, uint) (*ProductDTO, bool) { return nil, false }
func (noopCache) Set(context.Context, *ProductDTO)              {}
func (noopCache) Invalidate(context.Context, uint)              {}
