// Package notifications delivers supplier invitations emitted through the
// outbox.
package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
	"github.com/angelmondragon/tracebridge-backend/pkg/logger"
	"github.com/angelmondragon/tracebridge-backend/pkg/outbox"
	"github.com/angelmondragon/tracebridge-backend/pkg/outbox/payloads"
)

// ConsumerName scopes idempotency keys and consumer metrics.
const ConsumerName = "invite-dispatcher"

type decoder interface {
	Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (interface{}, error)
}

type onceRunner interface {
	Once(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (bool, error)
}

type consumerMetrics interface {
	Consumed(consumer, outcome string)
}

// DispatcherParams wires the dispatcher. Metrics is optional.
type DispatcherParams struct {
	Mailer       Mailer
	Decoders     decoder
	Idempotency  onceRunner
	Subscription *pubsub.Subscriber
	Metrics      consumerMetrics
	Logger       *logger.Logger
}

// Dispatcher sends an invitation for every connection_invite_requested event.
type Dispatcher struct {
	mailer       Mailer
	decoders     decoder
	idempotency  onceRunner
	subscription *pubsub.Subscriber
	metrics      consumerMetrics
	logg         *logger.Logger
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	switch {
	case params.Mailer == nil:
		return nil, fmt.Errorf("mailer required")
	case params.Decoders == nil:
		return nil, fmt.Errorf("payload decoders required")
	case params.Idempotency == nil:
		return nil, fmt.Errorf("idempotency manager required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &Dispatcher{
		mailer:       params.Mailer,
		decoders:     params.Decoders,
		idempotency:  params.Idempotency,
		subscription: params.Subscription,
		metrics:      params.Metrics,
		logg:         params.Logger,
	}, nil
}

// Run receives from the notification subscription until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	if d.subscription == nil {
		return errors.New("notification subscription not configured")
	}
	return d.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if err := d.Handle(ctx, enums.OutboxEventType(msg.Attributes["event_type"]), msg.Data); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// Handle delivers one invitation. Delivery failures are logged and the
// message is acked; only idempotency store errors ask for redelivery.
func (d *Dispatcher) Handle(ctx context.Context, eventType enums.OutboxEventType, data []byte) error {
	if eventType != enums.EventConnectionInviteRequest {
		d.observe("skip")
		return nil
	}
	logCtx := d.logg.WithField(ctx, "event_type", string(eventType))

	envelope, err := outbox.DecodeEnvelope(data)
	if err != nil {
		d.logg.Error(logCtx, "failed to decode envelope", err)
		d.observe("drop")
		return nil
	}
	logCtx = d.logg.WithField(logCtx, "event_id", envelope.EventID)
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		d.logg.Error(logCtx, "invalid event id", err)
		d.observe("drop")
		return nil
	}
	decoded, err := d.decoders.Decode(eventType, 1, envelope.Data)
	if err != nil {
		d.logg.Error(logCtx, "failed to parse invite payload", err)
		d.observe("drop")
		return nil
	}
	event, ok := decoded.(*payloads.InviteRequestedEvent)
	if !ok || event.Email == "" || event.Link == "" {
		d.logg.Warn(logCtx, "invite payload incomplete; dropping")
		d.observe("drop")
		return nil
	}
	logCtx = d.logg.WithField(logCtx, "connection_id", event.ConnectionID.String())

	var sendErr error
	skipped, err := d.idempotency.Once(ctx, ConsumerName, eventID, func(ctx context.Context) error {
		sendErr = d.mailer.SendInvite(ctx, Invite{
			Email:     event.Email,
			Link:      event.Link,
			BrandName: event.BrandName,
			Note:      event.Note,
			Reinvite:  event.Reinvite,
		})
		return nil
	})
	if err != nil {
		d.logg.Error(logCtx, "idempotency check failed", err)
		d.observe("nack")
		return err
	}
	if skipped {
		d.logg.Info(logCtx, "invite already dispatched")
		d.observe("duplicate")
		return nil
	}
	if sendErr != nil {
		d.logg.Error(logCtx, "invite delivery failed", sendErr)
		d.observe("failed")
		return nil
	}
	d.observe("ack")
	return nil
}

func (d *Dispatcher) observe(outcome string) {
	if d.metrics != nil {
		d.metrics.Consumed(ConsumerName, outcome)
	}
}
