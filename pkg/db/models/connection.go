package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
)

// Connection is the handshake between a brand (requester) and a supplier
// (target). The target may be unknown until the invitee registers.
type Connection struct {
	ID                uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	RequesterTenantID uuid.UUID              `gorm:"column:requester_tenant_id;type:uuid;not null;index"`
	TargetTenantID    *uuid.UUID             `gorm:"column:target_tenant_id;type:uuid;index"`
	Kind              enums.RelationshipKind `gorm:"column:kind;type:relationship_kind;not null"`
	Status            enums.ConnectionStatus `gorm:"column:status;type:connection_status;not null"`
	InvitationToken   *string                `gorm:"column:invitation_token;uniqueIndex:ux_connections_invitation_token"`
	InvitationEmail   *string                `gorm:"column:invitation_email"`
	RetryCount        int                    `gorm:"column:retry_count;not null;default:0"`
	Note              *string                `gorm:"column:note"`
	CreatedAt         time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// ConnectionProfile is the brand's address-book entry for a connection. The
// target/status/slug/retry fields mirror the Connection and are rewritten in the
// same transaction as every connection mutation.
type ConnectionProfile struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OwnerTenantID    uuid.UUID              `gorm:"column:owner_tenant_id;type:uuid;not null;uniqueIndex:ux_connection_profiles_owner_name,priority:1"`
	ConnectionID     uuid.UUID              `gorm:"column:connection_id;type:uuid;not null;uniqueIndex:ux_connection_profiles_connection"`
	TargetTenantID   *uuid.UUID             `gorm:"column:target_tenant_id;type:uuid"`
	ConnectionStatus enums.ConnectionStatus `gorm:"column:connection_status;type:connection_status;not null"`
	Slug             *string                `gorm:"column:slug"`
	RetryCount       int                    `gorm:"column:retry_count;not null;default:0"`
	Name             string                 `gorm:"column:name;not null;uniqueIndex:ux_connection_profiles_owner_name,priority:2"`
	Description      *string                `gorm:"column:description"`
	ContactName      *string                `gorm:"column:contact_name"`
	ContactEmail     *string                `gorm:"column:contact_email"`
	ContactPhone     *string                `gorm:"column:contact_phone"`
	LocationCountry  *string                `gorm:"column:location_country"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
