package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
)

// Tenant is an organisation on either side of a collaboration.
type Tenant struct {
	ID              uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Handle          string           `gorm:"column:handle;not null;uniqueIndex:ux_tenants_handle"`
	Name            string           `gorm:"column:name;not null"`
	Type            enums.TenantType `gorm:"column:type;type:tenant_type;not null"`
	LocationCountry *string          `gorm:"column:location_country"`
	CreatedAt       time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
