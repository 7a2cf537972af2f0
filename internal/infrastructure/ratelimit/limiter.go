// Package ratelimit limits role change events per member with ulule/limiter.
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/dggpoliticalaction/greeter/internal/application/ports"
)

const storePrefix = "greeter:role_events"

// Limiter allows at most amount events per key within each interval.
type Limiter struct {
	instance *limiter.Limiter
	log      zerolog.Logger
}

// NewMemoryLimiter returns a Limiter with an in-memory store (single instance).
func NewMemoryLimiter(amount int, interval time.Duration, log zerolog.Logger) *Limiter {
	store := memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: storePrefix, CleanUpInterval: time.Minute})
	return newLimiter(store, amount, interval, log)
}

// NewRedisLimiter returns a Limiter whose counters live in Redis, shared between instances.
func NewRedisLimiter(client *redis.Client, amount int, interval time.Duration, log zerolog.Logger) (*Limiter, error) {
	store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: storePrefix})
	if err != nil {
		return nil, err
	}
	return newLimiter(store, amount, interval, log), nil
}

func newLimiter(store limiter.Store, amount int, interval time.Duration, log zerolog.Logger) *Limiter {
	rate := limiter.Rate{Period: interval, Limit: int64(amount)}
	return &Limiter{
		instance: limiter.New(store, rate),
		log:      log.With().Str("component", "ratelimit").Logger(),
	}
}

// Allow counts one event for key. Store errors let the event through.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	lctx, err := l.instance.Get(ctx, key)
	if err != nil {
		l.log.Warn().Err(err).Str("key", key).Msg("rate limit store failed; allowing event")
		return true
	}
	return !lctx.Reached
}

var _ ports.EventLimiter = (*Limiter)(nil)
