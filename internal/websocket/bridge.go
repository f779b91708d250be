// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package websocket

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	json "github.com/goccy/go-json"

	"github.com/metricus/metricus/internal/logging"
	"github.com/metricus/metricus/internal/refresh"
)

// Bridge subscribes to refresh-completed messages and fans them out to
// connected dashboard clients, so browsers re-fetch immediately after a
// snapshot publish instead of polling.
type Bridge struct {
	sub message.Subscriber
	hub *Hub
}

// NewBridge wires a subscriber to the hub.
func NewBridge(sub message.Subscriber, hub *Hub) *Bridge {
	return &Bridge{sub: sub, hub: hub}
}

// Serve consumes the refresh topic until the context is canceled. Suture
// restarts it on failure.
func (b *Bridge) Serve(ctx context.Context) error {
	messages, err := b.sub.Subscribe(ctx, refresh.TopicRefreshCompleted)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return ctx.Err()
			}
			b.handle(msg)
		}
	}
}

func (b *Bridge) String() string {
	return "websocket-bridge"
}

func (b *Bridge) handle(msg *message.Message) {
	defer msg.Ack()

	var event refresh.RefreshCompletedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		logging.Warn().Err(err).Str("message_id", msg.UUID).Msg("Undecodable refresh event, dropping")
		return
	}
	b.hub.BroadcastJSON(MessageTypeRefreshCompleted, event)
	logging.Debug().
		Time("computed_at", event.ComputedAt).
		Bool("partial", event.Partial).
		Int("clients", b.hub.ClientCount()).
		Msg("Broadcast refresh_completed")
}
