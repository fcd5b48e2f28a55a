package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
)

// Product is a brand-owned shell. Technical data lives on ProductVersion.
type Product struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	TenantID           uuid.UUID           `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:ux_products_tenant_sku,priority:1"`
	SKU                string              `gorm:"column:sku;not null;uniqueIndex:ux_products_tenant_sku,priority:2"`
	Name               string              `gorm:"column:name;not null"`
	Description        *string             `gorm:"column:description"`
	Status             enums.ProductStatus `gorm:"column:status;type:product_status;not null"`
	PendingVersionName *string             `gorm:"column:pending_version_name"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
