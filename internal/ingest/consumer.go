// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	json "github.com/goccy/go-json"

	"github.com/metricus/metricus/internal/logging"
	"github.com/metricus/metricus/internal/metrics"
	"github.com/metricus/metricus/internal/models"
	"github.com/metricus/metricus/internal/store"
)

// Recorder receives successfully persisted records, for live counters.
// Implementations must tolerate being called concurrently.
type Recorder interface {
	RecordEvent(ctx context.Context, ev *models.Event)
	RecordOrder(ctx context.Context, o *models.Order)
}

// Consumer drains the intake topics into the store. Each event also upserts
// its user: accounts are created on the first observed event that
// references them, and last-seen advances with every subsequent one.
type Consumer struct {
	router   *message.Router
	sub      message.Subscriber
	st       *store.Store
	recorder Recorder
}

// NewConsumer wires the router and handlers. recorder may be nil when live
// counters are disabled.
func NewConsumer(sub message.Subscriber, st *store.Store, recorder Recorder) (*Consumer, error) {
	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: 30 * time.Second,
	}, watermill.NopLogger{})
	if err != nil {
		return nil, fmt.Errorf("failed to build ingest router: %w", err)
	}
	router.AddMiddleware(
		middleware.Recoverer,
		middleware.Retry{
			MaxRetries:      3,
			InitialInterval: 100 * time.Millisecond,
		}.Middleware,
	)

	c := &Consumer{
		router:   router,
		sub:      sub,
		st:       st,
		recorder: recorder,
	}
	router.AddNoPublisherHandler("persist-events", TopicEvents, sub, c.handleEvent)
	router.AddNoPublisherHandler("persist-orders", TopicOrders, sub, c.handleOrder)
	return c, nil
}

func (c *Consumer) handleEvent(msg *message.Message) error {
	var ev models.Event
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		// Undecodable payloads are dropped; retrying cannot fix them.
		metrics.RejectedRecords.WithLabelValues("event", "decode").Inc()
		logging.Warn().Err(err).Str("message_id", msg.UUID).Msg("Dropping undecodable event payload")
		return nil
	}

	ctx := msg.Context()
	if err := c.st.AppendEvent(ctx, &ev); err != nil {
		if errors.Is(err, store.ErrInvalidRecord) {
			metrics.RejectedRecords.WithLabelValues("event", "invalid").Inc()
			logging.Warn().Err(err).Str("event_id", ev.ID.String()).Msg("Dropping invalid event")
			return nil
		}
		return err
	}

	if ev.UserID != nil {
		user := models.User{
			ID:                *ev.UserID,
			FirstSeenAt:       ev.CreatedAt,
			LastSeenAt:        ev.CreatedAt,
			AcquisitionSource: ev.Referrer(),
		}
		if err := c.st.UpsertUser(ctx, &user); err != nil {
			logging.Warn().Err(err).Str("user_id", user.ID.String()).Msg("Failed to upsert user from event")
		}
	}

	if c.recorder != nil {
		c.recorder.RecordEvent(ctx, &ev)
	}
	return nil
}

func (c *Consumer) handleOrder(msg *message.Message) error {
	var o models.Order
	if err := json.Unmarshal(msg.Payload, &o); err != nil {
		metrics.RejectedRecords.WithLabelValues("order", "decode").Inc()
		logging.Warn().Err(err).Str("message_id", msg.UUID).Msg("Dropping undecodable order payload")
		return nil
	}

	ctx := msg.Context()
	if err := c.st.AppendOrder(ctx, &o); err != nil {
		if errors.Is(err, store.ErrInvalidRecord) {
			metrics.RejectedRecords.WithLabelValues("order", "invalid").Inc()
			logging.Warn().Err(err).Str("order_id", o.ID.String()).Msg("Dropping invalid order")
			return nil
		}
		return err
	}

	// Orders also advance the customer's last-seen stamp.
	user := models.User{ID: o.UserID, FirstSeenAt: o.CreatedAt, LastSeenAt: o.CreatedAt}
	if err := c.st.UpsertUser(ctx, &user); err != nil {
		logging.Warn().Err(err).Str("user_id", o.UserID.String()).Msg("Failed to upsert user from order")
	}

	if c.recorder != nil {
		c.recorder.RecordOrder(ctx, &o)
	}
	return nil
}

// Serve implements suture.Service: it runs the router until the context is
// cancelled.
func (c *Consumer) Serve(ctx context.Context) error {
	return c.router.Run(ctx)
}

// Running returns a channel closed once all handlers are consuming. Tests
// wait on it before publishing.
func (c *Consumer) Running() <-chan struct{} {
	return c.router.Running()
}

// String implements suture's service naming.
func (c *Consumer) String() string {
	return "ingest-consumer"
}
