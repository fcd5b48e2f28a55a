// Package registry describes every outbox event type: which aggregate emits
// it, which topic carries it and which payload struct it decodes into.
package registry

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/tracebridge-backend/pkg/config"
	"github.com/angelmondragon/tracebridge-backend/pkg/db/models"
	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
	"github.com/angelmondragon/tracebridge-backend/pkg/outbox"
	"github.com/angelmondragon/tracebridge-backend/pkg/outbox/payloads"
)

// EventDescriptor is the publishing contract of one event type.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	NewPayload    func() any
}

// ResolvedEvent is an outbox row checked against its descriptor and decoded.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type family struct {
	aggregate  enums.OutboxAggregateType
	newPayload func() any
	events     []enums.OutboxEventType
}

func newPayload[T any]() func() any {
	return func() any { return new(T) }
}

// catalog groups event types by aggregate and payload shape.
var catalog = []family{
	{
		aggregate:  enums.AggregateConnection,
		newPayload: newPayload[payloads.ConnectionEvent](),
		events: []enums.OutboxEventType{
			enums.EventConnectionInitiated,
			enums.EventConnectionLinked,
			enums.EventConnectionResponded,
			enums.EventConnectionReinvited,
			enums.EventConnectionSuspended,
		},
	},
	{
		aggregate:  enums.AggregateConnection,
		newPayload: newPayload[payloads.InviteRequestedEvent](),
		events:     []enums.OutboxEventType{enums.EventConnectionInviteRequest},
	},
	{
		aggregate:  enums.AggregateConnectionProfile,
		newPayload: newPayload[payloads.ConnectionEvent](),
		events:     []enums.OutboxEventType{enums.EventProfileUpdated},
	},
	{
		aggregate:  enums.AggregateProduct,
		newPayload: newPayload[payloads.ProductCreatedEvent](),
		events:     []enums.OutboxEventType{enums.EventProductCreated},
	},
	{
		aggregate:  enums.AggregateContributionRequest,
		newPayload: newPayload[payloads.ContributionEvent](),
		events: []enums.OutboxEventType{
			enums.EventContributionAssigned,
			enums.EventContributionTransition,
			enums.EventContributionDraftSaved,
			enums.EventContributionReviewed,
			enums.EventContributionCommented,
		},
	},
}

// EventRegistry resolves outbox rows into typed payloads.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NewEventRegistry routes every event to the single domain topic; subscribers
// filter on the event_type attribute.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.DomainTopic == "" {
		return nil, fmt.Errorf("domain topic is required")
	}
	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	for _, fam := range catalog {
		for _, eventType := range fam.events {
			reg.entries[eventType] = EventDescriptor{
				EventType:     eventType,
				AggregateType: fam.aggregate,
				Topic:         cfg.DomainTopic,
				NewPayload:    fam.newPayload,
			}
		}
	}
	return reg, nil
}

func (r *EventRegistry) Descriptor(eventType enums.OutboxEventType) (EventDescriptor, bool) {
	desc, ok := r.entries[eventType]
	return desc, ok
}

// Resolve checks the row against its descriptor and decodes the payload.
// Every failure is non-retryable: the row will not change on its own.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, permanent("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, permanent("aggregate mismatch: %s is emitted by %s, row has %s", event.EventType, desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, permanent("missing aggregate_id")
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, permanent("decode envelope: %w", err)
	}
	payload, err := decodeInto(desc.NewPayload(), envelope.Data)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s: %w", event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}

// Decoders builds the consumer side of the registry: a version 1 decoder per
// event producing the same payload types the publisher resolves.
func (r *EventRegistry) Decoders() *DecoderRegistry {
	decoders := NewDecoderRegistry()
	for eventType, desc := range r.entries {
		newPayload := desc.NewPayload
		decoders.Register(eventType, 1, func(data json.RawMessage) (any, error) {
			return decodeInto(newPayload(), data)
		})
	}
	return decoders
}
