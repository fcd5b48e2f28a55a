package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
)

// ActorRef identifies the user and tenant that produced the event.
type ActorRef struct {
	UserID     uuid.UUID        `json:"userId"`
	TenantID   uuid.UUID        `json:"tenantId"`
	TenantType enums.TenantType `json:"tenantType,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope parses a message body produced by Service.Emit.
func DecodeEnvelope(data []byte) (PayloadEnvelope, error) {
	var envelope PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return PayloadEnvelope{}, err
	}
	return envelope, nil
}
