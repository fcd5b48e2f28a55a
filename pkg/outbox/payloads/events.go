package payloads

import (
	"encoding/json"

	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
	"github.com/google/uuid"
)

// AuditTrail is the audit portion carried by every domain event that must
// land in audit_logs.
type AuditTrail struct {
	EntityType string            `json:"entity_type"`
	EntityID   uuid.UUID         `json:"entity_id"`
	TenantID   uuid.UUID         `json:"tenant_id"`
	Action     enums.AuditAction `json:"action"`
	Changes    json.RawMessage   `json:"changes,omitempty"`
}

// Trail exposes the audit portion of an event.
func (a AuditTrail) Trail() AuditTrail {
	return a
}

// Empty reports whether no audit entry should be written.
func (a AuditTrail) Empty() bool {
	return a.EntityType == "" || a.EntityID == uuid.Nil
}

// Audited is implemented by payloads embedding AuditTrail.
type Audited interface {
	Trail() AuditTrail
}

// NewAuditTrail builds a trail, encoding changes as JSON. Unencodable changes
// are dropped rather than failing the producer.
func NewAuditTrail(entityType string, entityID, tenantID uuid.UUID, action enums.AuditAction, changes map[string]any) AuditTrail {
	trail := AuditTrail{
		EntityType: entityType,
		EntityID:   entityID,
		TenantID:   tenantID,
		Action:     action,
	}
	if len(changes) > 0 {
		if raw, err := json.Marshal(changes); err == nil {
			trail.Changes = raw
		}
	}
	return trail
}

// ConnectionEvent is emitted on every connection lifecycle mutation.
type ConnectionEvent struct {
	AuditTrail        `json:"audit"`
	ConnectionID      uuid.UUID  `json:"connection_id"`
	ProfileID         uuid.UUID  `json:"profile_id"`
	RequesterTenantID uuid.UUID  `json:"requester_tenant_id"`
	TargetTenantID    *uuid.UUID `json:"target_tenant_id,omitempty"`
	FromStatus        string     `json:"from_status,omitempty"`
	ToStatus          string     `json:"to_status"`
	RetryCount        int        `json:"retry_count"`
}

// InviteRequestedEvent asks the dispatcher to deliver an invitation link.
type InviteRequestedEvent struct {
	ConnectionID uuid.UUID `json:"connection_id"`
	BrandName    string    `json:"brand_name"`
	Email        string    `json:"email"`
	Link         string    `json:"link"`
	Note         *string   `json:"note,omitempty"`
	Reinvite     bool      `json:"reinvite"`
}

// ProductCreatedEvent records a new product shell.
type ProductCreatedEvent struct {
	AuditTrail `json:"audit"`
	ProductID  uuid.UUID `json:"product_id"`
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
}

// ContributionEvent is emitted for assignment, actions, drafts, reviews and
// comments on a contribution request.
type ContributionEvent struct {
	AuditTrail       `json:"audit"`
	RequestID        uuid.UUID `json:"request_id"`
	ProductID        uuid.UUID `json:"product_id"`
	VersionID        uuid.UUID `json:"version_id"`
	BrandTenantID    uuid.UUID `json:"brand_tenant_id"`
	SupplierTenantID uuid.UUID `json:"supplier_tenant_id"`
	FromStatus       string    `json:"from_status,omitempty"`
	ToStatus         string    `json:"to_status"`
	Action           string    `json:"action,omitempty"`
}
