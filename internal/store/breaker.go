// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package store

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/metricus/metricus/internal/logging"
	"github.com/metricus/metricus/internal/models"
)

// BreakerReader wraps a Reader with a circuit breaker so a wedged or
// failing database degrades refresh cycles fast instead of stacking up
// slow queries behind each other.
type BreakerReader struct {
	inner  Reader
	events *gobreaker.CircuitBreaker[[]models.Event]
	orders *gobreaker.CircuitBreaker[[]models.Order]
	users  *gobreaker.CircuitBreaker[[]models.User]
}

// NewBreakerReader wraps reader. The breaker opens after 5 consecutive
// failures and probes again after 30 seconds.
func NewBreakerReader(reader Reader) *BreakerReader {
	settings := func(name string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:    name,
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logging.Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("Store circuit breaker state changed")
			},
		}
	}
	return &BreakerReader{
		inner:  reader,
		events: gobreaker.NewCircuitBreaker[[]models.Event](settings("store.events")),
		orders: gobreaker.NewCircuitBreaker[[]models.Order](settings("store.orders")),
		users:  gobreaker.NewCircuitBreaker[[]models.User](settings("store.users")),
	}
}

func (b *BreakerReader) QueryEvents(ctx context.Context, tr models.TimeRange) ([]models.Event, error) {
	return b.events.Execute(func() ([]models.Event, error) {
		return b.inner.QueryEvents(ctx, tr)
	})
}

func (b *BreakerReader) QueryOrders(ctx context.Context, tr models.TimeRange) ([]models.Order, error) {
	return b.orders.Execute(func() ([]models.Order, error) {
		return b.inner.QueryOrders(ctx, tr)
	})
}

func (b *BreakerReader) QueryUsers(ctx context.Context) ([]models.User, error) {
	return b.users.Execute(func() ([]models.User, error) {
		return b.inner.QueryUsers(ctx)
	})
}

var _ Reader = (*BreakerReader)(nil)
