package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
)

// AuditLog is written by the audit consumer, one row per outbox event.
type AuditLog struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	EventID     uuid.UUID         `gorm:"column:event_id;type:uuid;not null;uniqueIndex:ux_audit_logs_event_id"`
	EventType   string            `gorm:"column:event_type;not null"`
	ActorUserID *uuid.UUID        `gorm:"column:actor_user_id;type:uuid"`
	TenantID    *uuid.UUID        `gorm:"column:tenant_id;type:uuid;index"`
	EntityType  string            `gorm:"column:entity_type;not null"`
	EntityID    uuid.UUID         `gorm:"column:entity_id;type:uuid;not null;index"`
	Action      enums.AuditAction `gorm:"column:action;type:audit_action;not null"`
	Changes     json.RawMessage   `gorm:"column:changes;type:jsonb"`
	CreatedAt   time.Time         `gorm:"column:created_at"`
}
