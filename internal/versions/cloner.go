package versions

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/tracebridge-backend/pkg/db/models"
	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
)

// IDSource mints row and lineage identifiers.
type IDSource interface {
	NewID() uuid.UUID
}

// CloneSpec places a cloned version in the product's (sequence, revision) grid.
type CloneSpec struct {
	ProductID  uuid.UUID
	Sequence   int
	Revision   int
	SupplierID *uuid.UUID
	Name       string
}

// DefaultName is the version label used when the product has no pending name.
func DefaultName(sequence int) string {
	return fmt.Sprintf("v%d", sequence)
}

// Clone builds a new DRAFT version from source. A nil source yields an empty
// shell. Children are deep-copied with fresh row ids while lineage ids and
// artifact bindings are carried over unchanged. source is never modified.
func Clone(source *models.ProductVersion, spec CloneSpec, ids IDSource) *models.ProductVersion {
	name := spec.Name
	if name == "" {
		name = DefaultName(spec.Sequence)
	}
	out := &models.ProductVersion{
		ID:               ids.NewID(),
		ProductID:        spec.ProductID,
		SupplierTenantID: copyUUID(spec.SupplierID),
		VersionSequence:  spec.Sequence,
		Revision:         spec.Revision,
		VersionName:      name,
		Status:           enums.VersionStatusDraft,
	}
	if source == nil {
		return out
	}

	out.ManufacturingCountry = copyString(source.ManufacturingCountry)
	out.MassKg = source.MassKg
	out.TotalCarbonFootprint = source.TotalCarbonFootprint
	out.TotalEnergyMJ = source.TotalEnergyMJ
	out.TotalWaterUsage = source.TotalWaterUsage

	if len(source.Materials) > 0 {
		out.Materials = make([]models.VersionMaterial, 0, len(source.Materials))
		for _, m := range source.Materials {
			out.Materials = append(out.Materials, models.VersionMaterial{
				ID:                         ids.NewID(),
				VersionID:                  out.ID,
				LineageID:                  m.LineageID,
				Position:                   m.Position,
				MaterialName:               m.MaterialName,
				Percentage:                 m.Percentage,
				OriginCountry:              copyString(m.OriginCountry),
				TransportMethod:            copyString(m.TransportMethod),
				BatchNumber:                copyString(m.BatchNumber),
				SourceMaterialDefinitionID: copyUUID(m.SourceMaterialDefinitionID),
			})
		}
	}
	if len(source.SupplyNodes) > 0 {
		out.SupplyNodes = make([]models.VersionSupplyNode, 0, len(source.SupplyNodes))
		for _, n := range source.SupplyNodes {
			out.SupplyNodes = append(out.SupplyNodes, models.VersionSupplyNode{
				ID:              ids.NewID(),
				VersionID:       out.ID,
				LineageID:       n.LineageID,
				Position:        n.Position,
				Role:            n.Role,
				CompanyName:     n.CompanyName,
				LocationCountry: copyString(n.LocationCountry),
			})
		}
	}
	if len(source.Certificates) > 0 {
		out.Certificates = make([]models.VersionCertificate, 0, len(source.Certificates))
		for _, c := range source.Certificates {
			out.Certificates = append(out.Certificates, models.VersionCertificate{
				ID:                ids.NewID(),
				VersionID:         out.ID,
				LineageID:         c.LineageID,
				Position:          c.Position,
				CertificateTypeID: copyUUID(c.CertificateTypeID),
				SourceArtifactID:  copyUUID(c.SourceArtifactID),
				FileURL:           copyString(c.FileURL),
				FileName:          copyString(c.FileName),
				FileType:          copyString(c.FileType),
				SnapshotName:      c.SnapshotName,
				SnapshotIssuer:    copyString(c.SnapshotIssuer),
				ValidUntil:        copyTime(c.ValidUntil),
				ReferenceNumber:   copyString(c.ReferenceNumber),
			})
		}
	}
	return out
}
