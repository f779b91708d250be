// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package realtime

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/metricus/metricus/internal/config"
	"github.com/metricus/metricus/internal/logging"
	"github.com/metricus/metricus/internal/models"
)

// Redis key layout. Minute buckets expire on their own; the active-user
// sorted set is trimmed on read.
const (
	keyActiveUsers   = "metricus:rt:active"
	keyOrdersPrefix  = "metricus:rt:orders:"  // + unix minute
	keyRevenuePrefix = "metricus:rt:revenue:" // + unix minute
	keyEventsPrefix  = "metricus:rt:events:"  // + unix second

	epsWindow = 10 * time.Second
)

// Counters maintains the live dashboard numbers on ingest. When disabled
// (no Redis configured) every method is an inert no-op, so callers never
// branch on availability.
type Counters struct {
	client     *redis.Client
	enabled    bool
	activeTTL  time.Duration
	counterTTL time.Duration
	now        func() time.Time
}

// New builds the counters. With cfg.Enabled false the returned instance is
// inert and holds no connection.
func New(cfg config.RealtimeConfig) *Counters {
	c := &Counters{
		enabled:    cfg.Enabled,
		activeTTL:  cfg.ActiveTTL,
		counterTTL: cfg.CounterTTL,
		now:        time.Now,
	}
	if c.activeTTL <= 0 {
		c.activeTTL = 5 * time.Minute
	}
	if c.counterTTL <= 0 {
		c.counterTTL = 2 * time.Hour
	}
	if !cfg.Enabled {
		return c
	}
	c.client = redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		DB:       cfg.RedisDB,
		Password: cfg.Password,
	})
	return c
}

// Enabled reports whether live counters are active.
func (c *Counters) Enabled() bool {
	return c.enabled
}

// Ping verifies the Redis connection, a no-op when disabled.
func (c *Counters) Ping(ctx context.Context) error {
	if !c.enabled {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Close releases the Redis connection.
func (c *Counters) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// RecordEvent marks the event's user active and bumps the per-second event
// counter. Failures are logged, never surfaced; live counters are advisory.
func (c *Counters) RecordEvent(ctx context.Context, ev *models.Event) {
	if !c.enabled {
		return
	}
	now := c.now()
	pipe := c.client.Pipeline()
	if ev.UserID != nil {
		pipe.ZAdd(ctx, keyActiveUsers, redis.Z{
			Score:  float64(now.Unix()),
			Member: ev.UserID.String(),
		})
		pipe.Expire(ctx, keyActiveUsers, c.activeTTL)
	}
	secKey := keyEventsPrefix + strconv.FormatInt(now.Unix(), 10)
	pipe.Incr(ctx, secKey)
	pipe.Expire(ctx, secKey, 2*epsWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		logging.Debug().Err(err).Msg("Failed to record realtime event")
	}
}

// RecordOrder bumps the completed-order counters for the current minute.
// Non-completed orders contribute nothing.
func (c *Counters) RecordOrder(ctx context.Context, o *models.Order) {
	if !c.enabled || !o.IsCompleted() {
		return
	}
	minute := c.now().Truncate(time.Minute).Unix()
	suffix := strconv.FormatInt(minute, 10)
	amount, _ := o.Amount.Float64()

	pipe := c.client.Pipeline()
	pipe.Incr(ctx, keyOrdersPrefix+suffix)
	pipe.Expire(ctx, keyOrdersPrefix+suffix, c.counterTTL)
	pipe.IncrByFloat(ctx, keyRevenuePrefix+suffix, amount)
	pipe.Expire(ctx, keyRevenuePrefix+suffix, c.counterTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		logging.Debug().Err(err).Msg("Failed to record realtime order")
	}
}

// Metrics reads the live numbers. A disabled instance returns zeroes.
func (c *Counters) Metrics(ctx context.Context) (models.RealtimeMetrics, error) {
	var m models.RealtimeMetrics
	if !c.enabled {
		return m, nil
	}
	now := c.now()

	// Active users: trim expired members, then count the rest.
	cutoff := strconv.FormatInt(now.Add(-c.activeTTL).Unix(), 10)
	if err := c.client.ZRemRangeByScore(ctx, keyActiveUsers, "-inf", "("+cutoff).Err(); err != nil {
		return m, fmt.Errorf("failed to trim active users: %w", err)
	}
	active, err := c.client.ZCard(ctx, keyActiveUsers).Result()
	if err != nil {
		return m, fmt.Errorf("failed to count active users: %w", err)
	}
	m.ActiveUsersNow = active

	// Orders and revenue over the trailing 60 minute buckets.
	orderKeys := make([]string, 0, 60)
	revenueKeys := make([]string, 0, 60)
	base := now.Truncate(time.Minute)
	for i := 0; i < 60; i++ {
		suffix := strconv.FormatInt(base.Add(-time.Duration(i)*time.Minute).Unix(), 10)
		orderKeys = append(orderKeys, keyOrdersPrefix+suffix)
		revenueKeys = append(revenueKeys, keyRevenuePrefix+suffix)
	}
	orders, err := sumKeys(ctx, c.client, orderKeys)
	if err != nil {
		return m, fmt.Errorf("failed to sum order counters: %w", err)
	}
	revenue, err := sumKeys(ctx, c.client, revenueKeys)
	if err != nil {
		return m, fmt.Errorf("failed to sum revenue counters: %w", err)
	}
	m.OrdersLastHour = int64(orders)
	m.RevenueLastHour = revenue

	// Events per second over the trailing window, current second excluded
	// since it is still filling.
	eventKeys := make([]string, 0, int(epsWindow.Seconds()))
	for i := 1; i <= int(epsWindow.Seconds()); i++ {
		eventKeys = append(eventKeys, keyEventsPrefix+strconv.FormatInt(now.Unix()-int64(i), 10))
	}
	events, err := sumKeys(ctx, c.client, eventKeys)
	if err != nil {
		return m, fmt.Errorf("failed to sum event counters: %w", err)
	}
	m.EventsPerSecond = events / epsWindow.Seconds()
	return m, nil
}

// sumKeys MGETs the keys and sums the numeric values, treating missing
// keys as zero.
func sumKeys(ctx context.Context, client *redis.Client, keys []string) (float64, error) {
	values, err := client.MGet(ctx, keys...).Result()
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			continue
		}
		sum += f
	}
	return sum, nil
}
