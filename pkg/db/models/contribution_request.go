package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
)

// ContributionRequest asks a connected supplier to fill in a product version.
// InitialVersionID never changes; CurrentVersionID follows revisions.
type ContributionRequest struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ConnectionID     uuid.UUID           `gorm:"column:connection_id;type:uuid;not null;index"`
	ProductID        uuid.UUID           `gorm:"column:product_id;type:uuid;not null;index"`
	BrandTenantID    uuid.UUID           `gorm:"column:brand_tenant_id;type:uuid;not null"`
	SupplierTenantID uuid.UUID           `gorm:"column:supplier_tenant_id;type:uuid;not null;index"`
	InitialVersionID uuid.UUID           `gorm:"column:initial_version_id;type:uuid;not null"`
	CurrentVersionID uuid.UUID           `gorm:"column:current_version_id;type:uuid;not null;index"`
	Status           enums.RequestStatus `gorm:"column:status;type:request_status;not null"`
	DueDate          *time.Time          `gorm:"column:due_date"`
	Note             *string             `gorm:"column:note"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// RequestComment is an append-only activity entry on a request.
type RequestComment struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	RequestID      uuid.UUID         `gorm:"column:request_id;type:uuid;not null;index"`
	AuthorUserID   *uuid.UUID        `gorm:"column:author_user_id;type:uuid"`
	AuthorTenantID uuid.UUID         `gorm:"column:author_tenant_id;type:uuid;not null"`
	Kind           enums.CommentKind `gorm:"column:kind;type:comment_kind;not null"`
	Body           string            `gorm:"column:body;not null"`
	CreatedAt      time.Time         `gorm:"column:created_at"`
}
