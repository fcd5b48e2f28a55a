package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
)

// ProductVersion holds the technical payload of one (sequence, revision) of a
// product. Rows are frozen once they leave DRAFT.
type ProductVersion struct {
	ID                   uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	ProductID            uuid.UUID            `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_product_versions_seq_rev,priority:1"`
	SupplierTenantID     *uuid.UUID           `gorm:"column:supplier_tenant_id;type:uuid"`
	VersionSequence      int                  `gorm:"column:version_sequence;not null;uniqueIndex:ux_product_versions_seq_rev,priority:2"`
	Revision             int                  `gorm:"column:revision;not null;default:0;uniqueIndex:ux_product_versions_seq_rev,priority:3"`
	VersionName          string               `gorm:"column:version_name;not null"`
	Status               enums.VersionStatus  `gorm:"column:status;type:version_status;not null"`
	ManufacturingCountry *string              `gorm:"column:manufacturing_country"`
	MassKg               decimal.NullDecimal  `gorm:"column:mass_kg;type:numeric(14,4)"`
	TotalCarbonFootprint decimal.NullDecimal  `gorm:"column:total_carbon_footprint;type:numeric(14,4)"`
	TotalEnergyMJ        decimal.NullDecimal  `gorm:"column:total_energy_mj;type:numeric(14,4)"`
	TotalWaterUsage      decimal.NullDecimal  `gorm:"column:total_water_usage;type:numeric(14,4)"`
	Materials            []VersionMaterial    `gorm:"foreignKey:VersionID;constraint:OnDelete:CASCADE"`
	SupplyNodes          []VersionSupplyNode  `gorm:"foreignKey:VersionID;constraint:OnDelete:CASCADE"`
	Certificates         []VersionCertificate `gorm:"foreignKey:VersionID;constraint:OnDelete:CASCADE"`
	CreatedAt            time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// VersionMaterial is one bill-of-materials line. LineageID survives cloning
// and full-replace edits; ID is unique per version.
type VersionMaterial struct {
	ID                         uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	VersionID                  uuid.UUID           `gorm:"column:version_id;type:uuid;not null;index"`
	LineageID                  uuid.UUID           `gorm:"column:lineage_id;type:uuid;not null;index"`
	Position                   int                 `gorm:"column:position;not null;default:0"`
	MaterialName               string              `gorm:"column:material_name;not null"`
	Percentage                 decimal.NullDecimal `gorm:"column:percentage;type:numeric(7,4)"`
	OriginCountry              *string             `gorm:"column:origin_country"`
	TransportMethod            *string             `gorm:"column:transport_method"`
	BatchNumber                *string             `gorm:"column:batch_number"`
	SourceMaterialDefinitionID *uuid.UUID          `gorm:"column:source_material_definition_id;type:uuid"`
	CreatedAt                  time.Time           `gorm:"column:created_at;autoCreateTime"`
}

// VersionSupplyNode is one step of the supply chain.
type VersionSupplyNode struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	VersionID       uuid.UUID `gorm:"column:version_id;type:uuid;not null;index"`
	LineageID       uuid.UUID `gorm:"column:lineage_id;type:uuid;not null;index"`
	Position        int       `gorm:"column:position;not null;default:0"`
	Role            string    `gorm:"column:role;not null"`
	CompanyName     string    `gorm:"column:company_name;not null"`
	LocationCountry *string   `gorm:"column:location_country"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}

// VersionCertificate snapshots a certificate bound to a vault artifact.
type VersionCertificate struct {
	ID                uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	VersionID         uuid.UUID  `gorm:"column:version_id;type:uuid;not null;index"`
	LineageID         uuid.UUID  `gorm:"column:lineage_id;type:uuid;not null;index"`
	Position          int        `gorm:"column:position;not null;default:0"`
	CertificateTypeID *uuid.UUID `gorm:"column:certificate_type_id;type:uuid"`
	SourceArtifactID  *uuid.UUID `gorm:"column:source_artifact_id;type:uuid"`
	FileURL           *string    `gorm:"column:file_url"`
	FileName          *string    `gorm:"column:file_name"`
	FileType          *string    `gorm:"column:file_type"`
	SnapshotName      string     `gorm:"column:snapshot_name;not null"`
	SnapshotIssuer    *string    `gorm:"column:snapshot_issuer"`
	ValidUntil        *time.Time `gorm:"column:valid_until"`
	ReferenceNumber   *string    `gorm:"column:reference_number"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
}
