package contributions

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tracebridge-backend/internal/artifacts"
	"github.com/angelmondragon/tracebridge-backend/internal/versions"
	"github.com/angelmondragon/tracebridge-backend/pkg/auth"
	"github.com/angelmondragon/tracebridge-backend/pkg/db/models"
	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tracebridge-backend/pkg/errors"
	"github.com/angelmondragon/tracebridge-backend/pkg/outbox/payloads"
)

var hundred = decimal.NewFromInt(100)

// preparedCertificate is a certificate entry whose file and definition were
// resolved before the transaction opened.
type preparedCertificate struct {
	input     CertificateInput
	name      string
	issuer    *string
	file      artifacts.ArtifactRef
	inherited bool
}

func (s *service) SaveDraftData(ctx context.Context, actor auth.Actor, requestID uuid.UUID, input DraftInput, uploads map[string]Upload) (*versions.Payload, error) {
	if err := actor.Require(enums.TenantTypeSupplier); err != nil {
		return nil, err
	}

	request, err := s.loadForSupplier(ctx, s.repo, actor, requestID)
	if err != nil {
		return nil, err
	}
	draft, err := s.editableVersion(ctx, s.versions, request)
	if err != nil {
		return nil, err
	}
	if err := validateDraft(input, uploads); err != nil {
		return nil, err
	}

	certs, stored, err := s.prepareCertificates(ctx, actor.TenantID, draft, input.Certificates, uploads)
	if err != nil {
		s.reportOrphans(ctx, requestID, stored)
		return nil, err
	}

	var versionID uuid.UUID
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		vrepo := s.versions.WithTx(tx)

		current, err := repo.FindRequest(ctx, requestID)
		if err != nil {
			return lookupErr(err, "request")
		}
		if !containsRequest(editableRequestStatuses, current.Status) {
			return s.conflict("save_draft", "data locked: request is %s", current.Status)
		}
		version, err := vrepo.FindWithChildren(ctx, current.CurrentVersionID)
		if err != nil {
			return lookupErr(err, "version")
		}
		if !version.Status.IsEditable() {
			return s.conflict("save_draft", "data locked: version is %s", version.Status)
		}

		now := s.clock.Now()
		ok, err := repo.TransitionRequest(ctx, current.ID, []enums.RequestStatus{current.Status}, map[string]any{"updated_at": now})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch request")
		}
		if !ok {
			return s.conflict("save_draft", "data locked: request was modified concurrently")
		}

		updates := scalarUpdates(input)
		updates["updated_at"] = now
		if err := vrepo.UpdateScalars(ctx, version.ID, updates); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return s.conflict("save_draft", "data locked: version is no longer a draft")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update version fields")
		}

		if input.Materials != nil {
			if err := vrepo.ReplaceMaterials(ctx, version.ID, s.buildMaterials(version, input.Materials)); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace materials")
			}
		}
		if input.SupplyNodes != nil {
			if err := vrepo.ReplaceSupplyNodes(ctx, version.ID, s.buildSupplyNodes(version, input.SupplyNodes)); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace supply nodes")
			}
		}
		if input.Certificates != nil {
			if err := stillBound(version, certs); err != nil {
				return err
			}
			if err := vrepo.ReplaceCertificates(ctx, version.ID, s.buildCertificates(version, certs)); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace certificates")
			}
		}

		versionID = version.ID
		trail := payloads.NewAuditTrail(entityVersion, version.ID, actor.TenantID, enums.AuditActionUpdate, draftChanges(input, len(stored)))
		return s.emitRequest(ctx, tx, actor, enums.EventContributionDraftSaved, current, current.Status, "save_draft", trail)
	})
	if err != nil {
		s.reportOrphans(ctx, requestID, stored)
		return nil, err
	}

	saved, err := s.versions.FindWithChildren(ctx, versionID)
	if err != nil {
		return nil, lookupErr(err, "version")
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"request_id": requestID.String(),
		"version_id": versionID.String(),
		"uploads":    len(stored),
	})
	s.logg.Info(logCtx, "draft saved")

	payload := versions.PayloadFromModel(*saved)
	return &payload, nil
}

// reportOrphans logs vault files stored for a save that did not commit.
func (s *service) reportOrphans(ctx context.Context, requestID uuid.UUID, stored []artifacts.ArtifactRef) {
	if len(stored) == 0 {
		return
	}
	ids := make([]string, len(stored))
	for i, ref := range stored {
		ids[i] = ref.ID.String()
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"request_id":   requestID.String(),
		"artifact_ids": strings.Join(ids, ","),
	})
	s.logg.Warn(logCtx, "draft save failed after uploads; vault files kept without certificate links")
}

// editableVersion is the pre-transaction lock check. The transaction repeats
// it against committed state.
func (s *service) editableVersion(ctx context.Context, vrepo versions.Repository, request *models.ContributionRequest) (*models.ProductVersion, error) {
	if !containsRequest(editableRequestStatuses, request.Status) {
		return nil, s.conflict("save_draft", "data locked: request is %s", request.Status)
	}
	version, err := vrepo.FindWithChildren(ctx, request.CurrentVersionID)
	if err != nil {
		return nil, lookupErr(err, "version")
	}
	if !version.Status.IsEditable() {
		return nil, s.conflict("save_draft", "data locked: version is %s", version.Status)
	}
	return version, nil
}

// boundFiles lists the files the version's certificates already point at.
// They were bound by an earlier save or carried over by a clone, possibly
// from another supplier's vault.
func boundFiles(version *models.ProductVersion) map[uuid.UUID]artifacts.ArtifactRef {
	bound := make(map[uuid.UUID]artifacts.ArtifactRef)
	for _, c := range version.Certificates {
		if c.SourceArtifactID == nil {
			continue
		}
		bound[*c.SourceArtifactID] = artifacts.ArtifactRef{
			ID:          *c.SourceArtifactID,
			URL:         deref(c.FileURL),
			FileName:    deref(c.FileName),
			ContentType: deref(c.FileType),
			Kind:        enums.ArtifactKindCertificate,
		}
	}
	return bound
}

// stillBound checks that files accepted as already bound are still bound on
// the version read inside the transaction.
func stillBound(version *models.ProductVersion, certs []preparedCertificate) error {
	bound := boundFiles(version)
	for i, c := range certs {
		if !c.inherited {
			continue
		}
		if _, ok := bound[c.file.ID]; !ok {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "certificates[%d]: file not found in your vault", i)
		}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// prepareCertificates resolves definitions and files, storing new uploads. A
// file already bound to the draft is reused as is. Any other artifact must be
// in the supplier's vault. The refs stored so far are returned with any error
// so the caller can report them.
func (s *service) prepareCertificates(ctx context.Context, tenantID uuid.UUID, draft *models.ProductVersion, inputs []CertificateInput, uploads map[string]Upload) ([]preparedCertificate, []artifacts.ArtifactRef, error) {
	if inputs == nil {
		return nil, nil, nil
	}
	bound := boundFiles(draft)
	prepared := make([]preparedCertificate, len(inputs))
	for i, in := range inputs {
		p := preparedCertificate{input: in, name: strings.TrimSpace(in.Name)}
		if in.CertificateTypeID != nil {
			def, err := s.versions.FindCertificateDefinition(ctx, *in.CertificateTypeID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, nil, pkgerrors.Newf(pkgerrors.CodeValidation, "certificates[%d]: unknown certificate type", i)
				}
				return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load certificate definition")
			}
			if !def.VisibleTo(tenantID) {
				return nil, nil, pkgerrors.Newf(pkgerrors.CodeValidation, "certificates[%d]: unknown certificate type", i)
			}
			if p.name == "" {
				p.name = def.Name
			}
			p.issuer = def.Issuer
		}
		if in.ArtifactID != nil {
			if ref, ok := bound[*in.ArtifactID]; ok {
				p.file = ref
				p.inherited = true
			} else {
				ref, err := s.artifacts.Resolve(ctx, *in.ArtifactID, tenantID)
				if err != nil {
					if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
						return nil, nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "certificates[%d]: file not found in your vault", i)
					}
					return nil, nil, err
				}
				p.file = *ref
			}
		}
		prepared[i] = p
	}

	var stored []artifacts.ArtifactRef
	byRef := make(map[string]artifacts.ArtifactRef)
	for i := range prepared {
		ref := strings.TrimSpace(prepared[i].input.UploadRef)
		if ref == "" {
			continue
		}
		if existing, ok := byRef[ref]; ok {
			prepared[i].file = existing
			continue
		}
		upload := uploads[ref]
		saved, err := s.artifacts.Store(ctx, tenantID, upload.FileName, upload.ContentType, upload.Body)
		if err != nil {
			return nil, stored, err
		}
		stored = append(stored, saved)
		byRef[ref] = saved
		prepared[i].file = saved
	}
	return prepared, stored, nil
}

func (s *service) buildMaterials(version *models.ProductVersion, inputs []MaterialInput) []models.VersionMaterial {
	lineage := versions.NewLineageMap(versions.MaterialRefs(version.Materials))
	rows := make([]models.VersionMaterial, len(inputs))
	for i, in := range inputs {
		rows[i] = models.VersionMaterial{
			ID:                         s.clock.NewID(),
			VersionID:                  version.ID,
			LineageID:                  lineage.Resolve(in.ID, s.clock),
			Position:                   i,
			MaterialName:               strings.TrimSpace(in.MaterialName),
			Percentage:                 nullDecimal(in.Percentage),
			OriginCountry:              trimmedPtr(in.OriginCountry),
			TransportMethod:            trimmedPtr(in.TransportMethod),
			BatchNumber:                trimmedPtr(in.BatchNumber),
			SourceMaterialDefinitionID: in.SourceMaterialDefinitionID,
		}
	}
	return rows
}

func (s *service) buildSupplyNodes(version *models.ProductVersion, inputs []SupplyNodeInput) []models.VersionSupplyNode {
	lineage := versions.NewLineageMap(versions.SupplyNodeRefs(version.SupplyNodes))
	rows := make([]models.VersionSupplyNode, len(inputs))
	for i, in := range inputs {
		rows[i] = models.VersionSupplyNode{
			ID:              s.clock.NewID(),
			VersionID:       version.ID,
			LineageID:       lineage.Resolve(in.ID, s.clock),
			Position:        i,
			Role:            strings.TrimSpace(in.Role),
			CompanyName:     strings.TrimSpace(in.CompanyName),
			LocationCountry: trimmedPtr(in.LocationCountry),
		}
	}
	return rows
}

func (s *service) buildCertificates(version *models.ProductVersion, prepared []preparedCertificate) []models.VersionCertificate {
	lineage := versions.NewLineageMap(versions.CertificateRefs(version.Certificates))
	rows := make([]models.VersionCertificate, len(prepared))
	for i, p := range prepared {
		artifactID := p.file.ID
		url := p.file.URL
		fileName := p.file.FileName
		fileType := p.file.ContentType
		rows[i] = models.VersionCertificate{
			ID:                s.clock.NewID(),
			VersionID:         version.ID,
			LineageID:         lineage.Resolve(p.input.ID, s.clock),
			Position:          i,
			CertificateTypeID: p.input.CertificateTypeID,
			SourceArtifactID:  &artifactID,
			FileURL:           &url,
			FileName:          &fileName,
			FileType:          &fileType,
			SnapshotName:      p.name,
			SnapshotIssuer:    p.issuer,
			ValidUntil:        p.input.ValidUntil,
			ReferenceNumber:   trimmedPtr(p.input.ReferenceNumber),
		}
	}
	return rows
}

func validateDraft(input DraftInput, uploads map[string]Upload) error {
	for field, value := range map[string]*decimal.Decimal{
		"mass_kg":                input.MassKg,
		"total_carbon_footprint": input.TotalCarbonFootprint,
		"total_energy_mj":        input.TotalEnergyMJ,
		"total_water_usage":      input.TotalWaterUsage,
	} {
		if value != nil && value.IsNegative() {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "%s must not be negative", field)
		}
	}
	for i, m := range input.Materials {
		if strings.TrimSpace(m.MaterialName) == "" {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "materials[%d]: material_name is required", i)
		}
		if m.Percentage != nil && (m.Percentage.IsNegative() || m.Percentage.GreaterThan(hundred)) {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "materials[%d]: percentage must be between 0 and 100", i)
		}
	}
	for i, n := range input.SupplyNodes {
		if strings.TrimSpace(n.Role) == "" || strings.TrimSpace(n.CompanyName) == "" {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "supply_nodes[%d]: role and company_name are required", i)
		}
	}
	for i, c := range input.Certificates {
		ref := strings.TrimSpace(c.UploadRef)
		if (ref == "") == (c.ArtifactID == nil) {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "certificates[%d]: exactly one of upload_ref or artifact_id is required", i)
		}
		if ref != "" {
			if upload, ok := uploads[ref]; !ok || upload.Body == nil {
				return pkgerrors.Newf(pkgerrors.CodeValidation, "certificates[%d]: no file uploaded as %q", i, ref)
			}
		}
		if c.CertificateTypeID == nil && strings.TrimSpace(c.Name) == "" {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "certificates[%d]: name or certificate_type_id is required", i)
		}
	}
	return nil
}

func scalarUpdates(input DraftInput) map[string]any {
	updates := make(map[string]any)
	if input.ManufacturingCountry != nil {
		updates["manufacturing_country"] = trimmedPtr(input.ManufacturingCountry)
	}
	if input.MassKg != nil {
		updates["mass_kg"] = nullDecimal(input.MassKg)
	}
	if input.TotalCarbonFootprint != nil {
		updates["total_carbon_footprint"] = nullDecimal(input.TotalCarbonFootprint)
	}
	if input.TotalEnergyMJ != nil {
		updates["total_energy_mj"] = nullDecimal(input.TotalEnergyMJ)
	}
	if input.TotalWaterUsage != nil {
		updates["total_water_usage"] = nullDecimal(input.TotalWaterUsage)
	}
	return updates
}

func draftChanges(input DraftInput, uploads int) map[string]any {
	changes := scalarUpdates(input)
	if input.Materials != nil {
		changes["materials"] = len(input.Materials)
	}
	if input.SupplyNodes != nil {
		changes["supply_nodes"] = len(input.SupplyNodes)
	}
	if input.Certificates != nil {
		changes["certificates"] = len(input.Certificates)
	}
	if uploads > 0 {
		changes["uploads"] = uploads
	}
	return changes
}

func nullDecimal(v *decimal.Decimal) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *v, Valid: true}
}
