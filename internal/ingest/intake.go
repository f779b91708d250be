// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package ingest

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/metricus/metricus/internal/config"
	"github.com/metricus/metricus/internal/metrics"
	"github.com/metricus/metricus/internal/models"
)

// Intake topics.
const (
	TopicEvents = "ingest.events"
	TopicOrders = "ingest.orders"
)

// NewPubSub builds the in-process message channel between HTTP intake and
// the persistence workers.
func NewPubSub(cfg config.IngestConfig) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: int64(cfg.BufferSize),
	}, watermill.NopLogger{})
}

// Intake accepts validated records from the API layer and hands them to the
// pipeline. Publishing is buffered; the HTTP handler returns as soon as the
// record is queued.
type Intake struct {
	pub message.Publisher
}

// NewIntake builds an Intake over pub.
func NewIntake(pub message.Publisher) *Intake {
	return &Intake{pub: pub}
}

// PublishEvent queues one event for persistence.
func (i *Intake) PublishEvent(ev *models.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	if err := i.pub.Publish(TopicEvents, msg); err != nil {
		return fmt.Errorf("failed to queue event: %w", err)
	}
	metrics.IngestedRecords.WithLabelValues("event").Inc()
	return nil
}

// PublishOrder queues one order for persistence.
func (i *Intake) PublishOrder(o *models.Order) error {
	payload, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to encode order: %w", err)
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	if err := i.pub.Publish(TopicOrders, msg); err != nil {
		return fmt.Errorf("failed to queue order: %w", err)
	}
	metrics.IngestedRecords.WithLabelValues("order").Inc()
	return nil
}
