package versions

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tracebridge-backend/pkg/db/models"
	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
)

// Summary identifies a version without its technical payload.
type Summary struct {
	ID               uuid.UUID           `json:"id"`
	VersionSequence  int                 `json:"version_sequence"`
	Revision         int                 `json:"revision"`
	VersionName      string              `json:"version_name"`
	Status           enums.VersionStatus `json:"status"`
	SupplierTenantID *uuid.UUID          `json:"supplier_tenant_id,omitempty"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// Payload is the full technical content of a version.
type Payload struct {
	Summary
	ManufacturingCountry *string             `json:"manufacturing_country,omitempty"`
	MassKg               decimal.NullDecimal `json:"mass_kg"`
	TotalCarbonFootprint decimal.NullDecimal `json:"total_carbon_footprint"`
	TotalEnergyMJ        decimal.NullDecimal `json:"total_energy_mj"`
	TotalWaterUsage      decimal.NullDecimal `json:"total_water_usage"`
	Materials            []Material          `json:"materials"`
	SupplyNodes          []SupplyNode        `json:"supply_nodes"`
	Certificates         []Certificate       `json:"certificates"`
}

// Material is one bill-of-materials line.
type Material struct {
	ID                         uuid.UUID           `json:"id"`
	LineageID                  uuid.UUID           `json:"lineage_id"`
	MaterialName               string              `json:"material_name"`
	Percentage                 decimal.NullDecimal `json:"percentage"`
	OriginCountry              *string             `json:"origin_country,omitempty"`
	TransportMethod            *string             `json:"transport_method,omitempty"`
	BatchNumber                *string             `json:"batch_number,omitempty"`
	SourceMaterialDefinitionID *uuid.UUID          `json:"source_material_definition_id,omitempty"`
}

// SupplyNode is one supply-chain step.
type SupplyNode struct {
	ID              uuid.UUID `json:"id"`
	LineageID       uuid.UUID `json:"lineage_id"`
	Role            string    `json:"role"`
	CompanyName     string    `json:"company_name"`
	LocationCountry *string   `json:"location_country,omitempty"`
}

// Certificate is a certificate link bound to a vault artifact.
type Certificate struct {
	ID                uuid.UUID  `json:"id"`
	LineageID         uuid.UUID  `json:"lineage_id"`
	CertificateTypeID *uuid.UUID `json:"certificate_type_id,omitempty"`
	ArtifactID        *uuid.UUID `json:"artifact_id,omitempty"`
	FileURL           *string    `json:"file_url,omitempty"`
	FileName          *string    `json:"file_name,omitempty"`
	FileType          *string    `json:"file_type,omitempty"`
	Name              string     `json:"name"`
	Issuer            *string    `json:"issuer,omitempty"`
	ValidUntil        *time.Time `json:"valid_until,omitempty"`
	ReferenceNumber   *string    `json:"reference_number,omitempty"`
}

// SummaryFromModel maps the version header.
func SummaryFromModel(v models.ProductVersion) Summary {
	return Summary{
		ID:               v.ID,
		VersionSequence:  v.VersionSequence,
		Revision:         v.Revision,
		VersionName:      v.VersionName,
		Status:           v.Status,
		SupplierTenantID: v.SupplierTenantID,
		UpdatedAt:        v.UpdatedAt,
	}
}

// PayloadFromModel maps a version loaded with its children.
func PayloadFromModel(v models.ProductVersion) Payload {
	out := Payload{
		Summary:              SummaryFromModel(v),
		ManufacturingCountry: v.ManufacturingCountry,
		MassKg:               v.MassKg,
		TotalCarbonFootprint: v.TotalCarbonFootprint,
		TotalEnergyMJ:        v.TotalEnergyMJ,
		TotalWaterUsage:      v.TotalWaterUsage,
		Materials:            make([]Material, 0, len(v.Materials)),
		SupplyNodes:          make([]SupplyNode, 0, len(v.SupplyNodes)),
		Certificates:         make([]Certificate, 0, len(v.Certificates)),
	}
	for _, m := range v.Materials {
		out.Materials = append(out.Materials, Material{
			ID:                         m.ID,
			LineageID:                  m.LineageID,
			MaterialName:               m.MaterialName,
			Percentage:                 m.Percentage,
			OriginCountry:              m.OriginCountry,
			TransportMethod:            m.TransportMethod,
			BatchNumber:                m.BatchNumber,
			SourceMaterialDefinitionID: m.SourceMaterialDefinitionID,
		})
	}
	for _, n := range v.SupplyNodes {
		out.SupplyNodes = append(out.SupplyNodes, SupplyNode{
			ID:              n.ID,
			LineageID:       n.LineageID,
			Role:            n.Role,
			CompanyName:     n.CompanyName,
			LocationCountry: n.LocationCountry,
		})
	}
	for _, c := range v.Certificates {
		out.Certificates = append(out.Certificates, Certificate{
			ID:                c.ID,
			LineageID:         c.LineageID,
			CertificateTypeID: c.CertificateTypeID,
			ArtifactID:        c.SourceArtifactID,
			FileURL:           c.FileURL,
			FileName:          c.FileName,
			FileType:          c.FileType,
			Name:              c.SnapshotName,
			Issuer:            c.SnapshotIssuer,
			ValidUntil:        c.ValidUntil,
			ReferenceNumber:   c.ReferenceNumber,
		})
	}
	return out
}
