// Package audit records the audit trail carried by domain events into
// audit_logs and, when configured, a BigQuery table.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/tracebridge-backend/pkg/db/models"
	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
	"github.com/angelmondragon/tracebridge-backend/pkg/logger"
	"github.com/angelmondragon/tracebridge-backend/pkg/outbox"
	"github.com/angelmondragon/tracebridge-backend/pkg/outbox/payloads"
)

// ConsumerName scopes idempotency keys and consumer metrics.
const ConsumerName = "audit-recorder"

type decoder interface {
	Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (interface{}, error)
}

type onceRunner interface {
	Once(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (bool, error)
}

// Sink receives a copy of every recorded row.
type Sink interface {
	InsertAudit(ctx context.Context, rows ...any) error
}

type consumerMetrics interface {
	Consumed(consumer, outcome string)
}

// ConsumerParams wires the recorder. Sink and Metrics are optional.
type ConsumerParams struct {
	Repo         Repository
	Decoders     decoder
	Idempotency  onceRunner
	Subscription *pubsub.Subscriber
	Sink         Sink
	Metrics      consumerMetrics
	Logger       *logger.Logger
}

// Consumer turns audited domain events into audit_logs rows.
type Consumer struct {
	repo         Repository
	decoders     decoder
	idempotency  onceRunner
	subscription *pubsub.Subscriber
	sink         Sink
	metrics      consumerMetrics
	logg         *logger.Logger
	newID        func() uuid.UUID
}

// NewConsumer validates the wiring.
func NewConsumer(params ConsumerParams) (*Consumer, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("audit repository required")
	case params.Decoders == nil:
		return nil, fmt.Errorf("payload decoders required")
	case params.Idempotency == nil:
		return nil, fmt.Errorf("idempotency manager required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         params.Repo,
		decoders:     params.Decoders,
		idempotency:  params.Idempotency,
		subscription: params.Subscription,
		sink:         params.Sink,
		metrics:      params.Metrics,
		logg:         params.Logger,
		newID:        uuid.New,
	}, nil
}

// Run receives from the audit subscription until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	if c.subscription == nil {
		return errors.New("audit subscription not configured")
	}
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		eventType := enums.OutboxEventType(msg.Attributes["event_type"])
		if err := c.Handle(ctx, eventType, msg.Data); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// Handle records one message body. A returned error means the message should
// be redelivered; malformed or unaudited events are dropped.
func (c *Consumer) Handle(ctx context.Context, eventType enums.OutboxEventType, data []byte) error {
	logCtx := c.logg.WithField(ctx, "event_type", string(eventType))

	envelope, err := outbox.DecodeEnvelope(data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		c.observe("drop")
		return nil
	}
	logCtx = c.logg.WithField(logCtx, "event_id", envelope.EventID)
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		c.observe("drop")
		return nil
	}

	version := envelope.Version
	if version == 0 {
		version = 1
	}
	decoded, err := c.decoders.Decode(eventType, version, envelope.Data)
	if err != nil {
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "event payload not decodable; dropping")
		c.observe("drop")
		return nil
	}
	audited, ok := decoded.(payloads.Audited)
	if !ok || audited.Trail().Empty() {
		c.observe("skip")
		return nil
	}
	trail := audited.Trail()

	entry := models.AuditLog{
		ID:         c.newID(),
		EventID:    eventID,
		EventType:  string(eventType),
		EntityType: trail.EntityType,
		EntityID:   trail.EntityID,
		Action:     trail.Action,
		Changes:    trail.Changes,
		CreatedAt:  envelope.OccurredAt.UTC(),
	}
	if trail.TenantID != uuid.Nil {
		tenantID := trail.TenantID
		entry.TenantID = &tenantID
	}
	if envelope.Actor != nil && envelope.Actor.UserID != uuid.Nil {
		userID := envelope.Actor.UserID
		entry.ActorUserID = &userID
	}

	skipped, err := c.idempotency.Once(ctx, ConsumerName, eventID, func(ctx context.Context) error {
		if _, err := c.repo.Insert(ctx, &entry); err != nil {
			return fmt.Errorf("insert audit log: %w", err)
		}
		if c.sink != nil {
			if err := c.sink.InsertAudit(ctx, rowFromLog(entry)); err != nil {
				return fmt.Errorf("stream audit row: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		c.logg.Error(logCtx, "audit recording failed", err)
		c.observe("nack")
		return err
	}
	if skipped {
		c.logg.Info(logCtx, "event already recorded")
		c.observe("duplicate")
		return nil
	}

	c.logg.Info(c.logg.WithFields(logCtx, map[string]any{
		"entity_type": trail.EntityType,
		"entity_id":   trail.EntityID.String(),
		"action":      string(trail.Action),
	}), "audit entry recorded")
	c.observe("ack")
	return nil
}

func (c *Consumer) observe(outcome string) {
	if c.metrics != nil {
		c.metrics.Consumed(ConsumerName, outcome)
	}
}
