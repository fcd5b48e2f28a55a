package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
)

// SupplierArtifact is a file in a supplier's vault, stored in GCS.
type SupplierArtifact struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	TenantID    uuid.UUID          `gorm:"column:tenant_id;type:uuid;not null;index"`
	StorageKey  string             `gorm:"column:storage_key;not null"`
	FileURL     string             `gorm:"column:file_url;not null"`
	FileName    string             `gorm:"column:file_name;not null"`
	DisplayName string             `gorm:"column:display_name;not null"`
	ContentType string             `gorm:"column:content_type;not null"`
	SizeBytes   int64              `gorm:"column:size_bytes;not null;default:0"`
	Kind        enums.ArtifactKind `gorm:"column:kind;type:artifact_kind;not null"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// CertificateDefinition is a catalogue entry for a certificate type. A nil
// TenantID marks a system entry visible to every tenant.
type CertificateDefinition struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	TenantID    *uuid.UUID `gorm:"column:tenant_id;type:uuid;uniqueIndex:ux_certificate_definitions_tenant_name,priority:1"`
	Name        string     `gorm:"column:name;not null;uniqueIndex:ux_certificate_definitions_tenant_name,priority:2"`
	Issuer      *string    `gorm:"column:issuer"`
	Description *string    `gorm:"column:description"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// VisibleTo reports whether the tenant may reference the definition.
func (d CertificateDefinition) VisibleTo(tenantID uuid.UUID) bool {
	return d.TenantID == nil || *d.TenantID == tenantID
}
