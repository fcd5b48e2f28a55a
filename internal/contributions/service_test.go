package contributions

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/tracebridge-backend/internal/artifacts"
	"github.com/angelmondragon/tracebridge-backend/internal/clock"
	"github.com/angelmondragon/tracebridge-backend/internal/dbtest"
	"github.com/angelmondragon/tracebridge-backend/internal/versions"
	"github.com/angelmondragon/tracebridge-backend/pkg/auth"
	"github.com/angelmondragon/tracebridge-backend/pkg/db/models"
	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tracebridge-backend/pkg/errors"
	"github.com/angelmondragon/tracebridge-backend/pkg/logger"
	"github.com/angelmondragon/tracebridge-backend/pkg/outbox"
	"github.com/angelmondragon/tracebridge-backend/pkg/pagination"
)

type tickingClock struct {
	clock.System
	at time.Time
}

func (c *tickingClock) Now() time.Time {
	c.at = c.at.Add(time.Millisecond)
	return c.at
}

// memoryVault stands in for the artifact store and counts uploads.
type memoryVault struct {
	refs   map[uuid.UUID]artifacts.ArtifactRef
	stores int
	// limit fails every Store after that many succeeded when non-zero.
	limit int
}

func (v *memoryVault) Store(_ context.Context, tenantID uuid.UUID, fileName, contentType string, body io.Reader) (artifacts.ArtifactRef, error) {
	if _, err := io.ReadAll(body); err != nil {
		return artifacts.ArtifactRef{}, err
	}
	if v.limit > 0 && v.stores >= v.limit {
		return artifacts.ArtifactRef{}, pkgerrors.New(pkgerrors.CodeDependency, "bucket unavailable")
	}
	v.stores++
	id := uuid.New()
	ref := artifacts.ArtifactRef{
		ID:          id,
		TenantID:    tenantID,
		URL:         "https://cdn.tracebridge.test/vault/" + id.String(),
		FileName:    fileName,
		ContentType: contentType,
		Kind:        enums.ArtifactKindCertificate,
	}
	v.refs[id] = ref
	return ref, nil
}

func (v *memoryVault) Resolve(_ context.Context, artifactID, tenantID uuid.UUID) (*artifacts.ArtifactRef, error) {
	ref, ok := v.refs[artifactID]
	if !ok || ref.TenantID != tenantID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "artifact not found")
	}
	return &ref, nil
}

type recordingMetrics struct {
	transitions []string
	conflicts   []string
}

func (m *recordingMetrics) Transition(entity, from, to string) {
	m.transitions = append(m.transitions, entity+":"+from+"->"+to)
}

func (m *recordingMetrics) Conflict(entity, operation string) {
	m.conflicts = append(m.conflicts, entity+":"+operation)
}

type fixture struct {
	svc      Service
	conn     *gorm.DB
	versions versions.Repository
	vault    *memoryVault
	metrics  *recordingMetrics
	logs     *bytes.Buffer
	brand    models.Tenant
	supplier models.Tenant
	conn1    models.Connection
	profile  models.ConnectionProfile
	product  models.Product
	certDef  models.CertificateDefinition
}

var productCreatedAt = time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client, conn := dbtest.Open(t)
	logs := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "contributions-test", Output: logs})

	f := &fixture{
		conn:     conn,
		versions: versions.NewRepository(conn),
		vault:    &memoryVault{refs: map[uuid.UUID]artifacts.ArtifactRef{}},
		metrics:  &recordingMetrics{},
		logs:     logs,
		brand:    dbtest.SeedTenant(t, conn, "north-apparel", "North Apparel", enums.TenantTypeBrand),
		supplier: dbtest.SeedTenant(t, conn, "acme-textiles", "Acme Textiles", enums.TenantTypeSupplier),
	}
	f.conn1, f.profile = f.seedConnection(t, f.brand.ID, "Acme", enums.ConnectionStatusActive)
	f.product = f.seedProduct(t, f.brand.ID, "TEE-001")

	issuer := "Control Union"
	f.certDef = models.CertificateDefinition{ID: uuid.New(), Name: "GOTS", Issuer: &issuer}
	require.NoError(t, conn.Create(&f.certDef).Error)

	svc, err := NewService(ServiceParams{
		Repo:      NewRepository(conn),
		Versions:  f.versions,
		Tx:        client,
		Artifacts: f.vault,
		Outbox:    outbox.NewService(outbox.NewRepository(conn), logg),
		Clock:     &tickingClock{at: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		Metrics:   f.metrics,
		Logger:    logg,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) seedConnection(t *testing.T, owner uuid.UUID, name string, status enums.ConnectionStatus) (models.Connection, models.ConnectionProfile) {
	t.Helper()
	target := f.supplier.ID
	slug := f.supplier.Handle
	c := models.Connection{
		ID:                uuid.New(),
		RequesterTenantID: owner,
		TargetTenantID:    &target,
		Kind:              enums.RelationshipKindSupplier,
		Status:            status,
	}
	require.NoError(t, f.conn.Create(&c).Error)
	p := models.ConnectionProfile{
		ID:               uuid.New(),
		OwnerTenantID:    owner,
		ConnectionID:     c.ID,
		TargetTenantID:   &target,
		ConnectionStatus: status,
		Slug:             &slug,
		Name:             name,
	}
	require.NoError(t, f.conn.Create(&p).Error)
	return c, p
}

func (f *fixture) seedProduct(t *testing.T, owner uuid.UUID, sku string) models.Product {
	t.Helper()
	p := models.Product{
		ID:        uuid.New(),
		TenantID:  owner,
		SKU:       sku,
		Name:      "Organic tee",
		Status:    enums.ProductStatusDraft,
		CreatedAt: productCreatedAt,
		UpdatedAt: productCreatedAt,
	}
	require.NoError(t, f.conn.Create(&p).Error)
	return p
}

func (f *fixture) brandActor() auth.Actor {
	return auth.Actor{UserID: uuid.New(), TenantID: f.brand.ID, TenantType: enums.TenantTypeBrand}
}

func (f *fixture) supplierActor() auth.Actor {
	return auth.Actor{UserID: uuid.New(), TenantID: f.supplier.ID, TenantType: enums.TenantTypeSupplier}
}

func (f *fixture) assign(t *testing.T) *RequestDTO {
	t.Helper()
	req, err := f.svc.Assign(context.Background(), f.brandActor(), f.product.ID, AssignInput{ProfileID: f.profile.ID})
	require.NoError(t, err)
	return req
}

func (f *fixture) act(t *testing.T, requestID uuid.UUID, action enums.RequestAction) *RequestDTO {
	t.Helper()
	req, err := f.svc.HandleAction(context.Background(), f.supplierActor(), requestID, ActionInput{Action: action})
	require.NoError(t, err)
	return req
}

func (f *fixture) loadVersion(t *testing.T, id uuid.UUID) *models.ProductVersion {
	t.Helper()
	v, err := f.versions.FindWithChildren(context.Background(), id)
	require.NoError(t, err)
	return v
}

func (f *fixture) loadRequest(t *testing.T, id uuid.UUID) models.ContributionRequest {
	t.Helper()
	var r models.ContributionRequest
	require.NoError(t, f.conn.First(&r, "id = ?", id).Error)
	return r
}

func (f *fixture) countEvents(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, code), "expected %s, got %v", code, err)
}

func strPtr(s string) *string { return &s }

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func sampleDraft() DraftInput {
	return DraftInput{
		ManufacturingCountry: strPtr("PT"),
		MassKg:               dec("0.180"),
		Materials: []MaterialInput{
			{MaterialName: "Organic cotton", Percentage: dec("95"), OriginCountry: strPtr("IN")},
			{MaterialName: "Elastane", Percentage: dec("5")},
		},
		SupplyNodes: []SupplyNodeInput{
			{Role: "Spinning", CompanyName: "Fios do Norte", LocationCountry: strPtr("PT")},
		},
		Certificates: []CertificateInput{
			{CertificateTypeID: nil, UploadRef: "file-0", Name: "OEKO-TEX 100"},
		},
	}
}

func sampleUploads() map[string]Upload {
	return map[string]Upload{
		"file-0": {FileName: "oeko.pdf", ContentType: "application/pdf", Body: strings.NewReader("%PDF")},
	}
}

func TestAssignCreatesEmptyFirstVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.svc.Assign(ctx, f.brandActor(), f.product.ID, AssignInput{ProfileID: f.profile.ID, Note: strPtr("  please fill by Friday ")})
	require.NoError(t, err)

	assert.Equal(t, enums.RequestStatusSent, req.Status)
	assert.Equal(t, req.InitialVersionID, req.CurrentVersionID)
	assert.Equal(t, f.supplier.ID, req.SupplierTenantID)
	assert.Equal(t, f.conn1.ID, req.ConnectionID)

	v := f.loadVersion(t, req.CurrentVersionID)
	assert.Equal(t, 1, v.VersionSequence)
	assert.Equal(t, 0, v.Revision)
	assert.Equal(t, "v1", v.VersionName)
	assert.Equal(t, enums.VersionStatusDraft, v.Status)
	assert.Empty(t, v.Materials)
	assert.Empty(t, v.Certificates)
	require.NotNil(t, v.SupplierTenantID)
	assert.Equal(t, f.supplier.ID, *v.SupplierTenantID)

	detail, err := f.svc.GetDetail(ctx, f.supplierActor(), req.ID)
	require.NoError(t, err)
	require.Len(t, detail.Activity, 1)
	assert.Equal(t, enums.CommentKindNote, detail.Activity[0].Kind)
	assert.Equal(t, "please fill by Friday", detail.Activity[0].Body)
	assert.Nil(t, detail.Payload, "payload is withheld while the request is SENT")
	assert.Equal(t, "TEE-001", detail.Product.SKU)

	assert.EqualValues(t, 1, f.countEvents(t, enums.EventContributionAssigned))
}

func TestAssignConsumesPendingVersionName(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", f.product.ID).
		Update("pending_version_name", "SS26 launch").Error)

	req := f.assign(t)
	v := f.loadVersion(t, req.CurrentVersionID)
	assert.Equal(t, "SS26 launch", v.VersionName)

	var product models.Product
	require.NoError(t, f.conn.First(&product, "id = ?", f.product.ID).Error)
	assert.Nil(t, product.PendingVersionName)
}

func TestAssignPreconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("inactive connection", func(t *testing.T) {
		f := newFixture(t)
		_, pending := f.seedConnection(t, f.brand.ID, "Acme pending", enums.ConnectionStatusPending)
		_, err := f.svc.Assign(ctx, f.brandActor(), f.product.ID, AssignInput{ProfileID: pending.ID})
		requireCode(t, err, pkgerrors.CodeStateConflict)
	})

	t.Run("foreign product", func(t *testing.T) {
		f := newFixture(t)
		other := dbtest.SeedTenant(t, f.conn, "south-apparel", "South Apparel", enums.TenantTypeBrand)
		foreign := f.seedProduct(t, other.ID, "OTHER-1")
		_, err := f.svc.Assign(ctx, f.brandActor(), foreign.ID, AssignInput{ProfileID: f.profile.ID})
		requireCode(t, err, pkgerrors.CodeForbidden)
	})

	t.Run("missing product", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Assign(ctx, f.brandActor(), uuid.New(), AssignInput{ProfileID: f.profile.ID})
		requireCode(t, err, pkgerrors.CodeNotFound)
	})

	t.Run("foreign profile", func(t *testing.T) {
		f := newFixture(t)
		other := dbtest.SeedTenant(t, f.conn, "south-apparel", "South Apparel", enums.TenantTypeBrand)
		_, foreignProfile := f.seedConnection(t, other.ID, "Acme", enums.ConnectionStatusActive)
		_, err := f.svc.Assign(ctx, f.brandActor(), f.product.ID, AssignInput{ProfileID: foreignProfile.ID})
		requireCode(t, err, pkgerrors.CodeNotFound)
	})

	t.Run("supplier cannot assign", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Assign(ctx, f.supplierActor(), f.product.ID, AssignInput{ProfileID: f.profile.ID})
		requireCode(t, err, pkgerrors.CodeForbidden)
	})
}

func TestAssignTwiceConflictsUntilTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.assign(t)
	_, err := f.svc.Assign(ctx, f.brandActor(), f.product.ID, AssignInput{ProfileID: f.profile.ID})
	requireCode(t, err, pkgerrors.CodeConflict)

	_, err = f.svc.Cancel(ctx, f.brandActor(), first.ID, "wrong product")
	require.NoError(t, err)

	second := f.assign(t)
	v := f.loadVersion(t, second.CurrentVersionID)
	assert.Equal(t, 2, v.VersionSequence)
	assert.Equal(t, 0, v.Revision)
}

func TestReviewCycleAndSecondAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.assign(t)
	rev0ID := req.CurrentVersionID
	req = f.act(t, req.ID, enums.RequestActionAccept)
	assert.Equal(t, enums.RequestStatusInProgress, req.Status)

	payload, err := f.svc.SaveDraftData(ctx, f.supplierActor(), req.ID, sampleDraft(), sampleUploads())
	require.NoError(t, err)
	require.Len(t, payload.Materials, 2)
	require.Len(t, payload.Certificates, 1)
	assert.Equal(t, "OEKO-TEX 100", payload.Certificates[0].Name)
	require.NotNil(t, payload.Certificates[0].ArtifactID)
	assert.Equal(t, 1, f.vault.stores)

	req = f.act(t, req.ID, enums.RequestActionSubmit)
	assert.Equal(t, enums.RequestStatusSubmitted, req.Status)

	_, err = f.svc.SaveDraftData(ctx, f.supplierActor(), req.ID, DraftInput{MassKg: dec("1")}, nil)
	requireCode(t, err, pkgerrors.CodeStateConflict)

	_, err = f.svc.ReviewSubmission(ctx, f.brandActor(), req.ID, ReviewInput{Action: enums.ReviewActionRequestChanges})
	requireCode(t, err, pkgerrors.CodeValidation)

	req, err = f.svc.ReviewSubmission(ctx, f.brandActor(), req.ID, ReviewInput{Action: enums.ReviewActionRequestChanges, Comment: strPtr("fix weight")})
	require.NoError(t, err)
	assert.Equal(t, enums.RequestStatusChangesRequested, req.Status)
	assert.Equal(t, rev0ID, req.InitialVersionID)
	assert.NotEqual(t, rev0ID, req.CurrentVersionID)

	rev0 := f.loadVersion(t, rev0ID)
	rev1 := f.loadVersion(t, req.CurrentVersionID)
	assert.Equal(t, enums.VersionStatusRejected, rev0.Status)
	assert.Equal(t, enums.VersionStatusDraft, rev1.Status)
	assert.Equal(t, rev0.VersionSequence, rev1.VersionSequence)
	assert.Equal(t, rev0.Revision+1, rev1.Revision)
	require.Len(t, rev1.Materials, len(rev0.Materials))
	for i := range rev0.Materials {
		assert.Equal(t, rev0.Materials[i].LineageID, rev1.Materials[i].LineageID)
		assert.NotEqual(t, rev0.Materials[i].ID, rev1.Materials[i].ID)
	}
	require.Len(t, rev1.Certificates, 1)
	assert.Equal(t, rev0.Certificates[0].LineageID, rev1.Certificates[0].LineageID)
	assert.Equal(t, rev0.Certificates[0].SourceArtifactID, rev1.Certificates[0].SourceArtifactID)

	req, err = f.svc.HandleAction(ctx, f.supplierActor(), req.ID, ActionInput{Action: enums.RequestActionSubmit})
	require.NoError(t, err)
	assert.Equal(t, enums.RequestStatusSubmitted, req.Status)

	req, err = f.svc.ReviewSubmission(ctx, f.brandActor(), req.ID, ReviewInput{Action: enums.ReviewActionApprove})
	require.NoError(t, err)
	assert.Equal(t, enums.RequestStatusCompleted, req.Status)
	approved := f.loadVersion(t, req.CurrentVersionID)
	assert.Equal(t, enums.VersionStatusApproved, approved.Status)
	assert.Equal(t, 1, approved.Revision)

	var product models.Product
	require.NoError(t, f.conn.First(&product, "id = ?", f.product.ID).Error)
	assert.True(t, product.UpdatedAt.After(productCreatedAt), "approval touches the product")

	next := f.assign(t)
	v2 := f.loadVersion(t, next.CurrentVersionID)
	assert.Equal(t, 2, v2.VersionSequence)
	assert.Equal(t, 0, v2.Revision)
	assert.Equal(t, enums.VersionStatusDraft, v2.Status)
	require.Len(t, v2.Materials, len(approved.Materials))
	for i := range approved.Materials {
		assert.Equal(t, approved.Materials[i].LineageID, v2.Materials[i].LineageID)
	}
	require.Len(t, v2.Certificates, 1)
	assert.Equal(t, approved.Certificates[0].SourceArtifactID, v2.Certificates[0].SourceArtifactID)
	assert.Equal(t, 1, f.vault.stores, "cloning never re-uploads files")

	assert.Contains(t, f.metrics.transitions, "contribution_request:SUBMITTED->COMPLETED")
	assert.Contains(t, f.metrics.transitions, "product_version:SUBMITTED->REJECTED")
}

func TestSaveDraftPreservesLineageByItemID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.assign(t)
	f.act(t, req.ID, enums.RequestActionAccept)

	first, err := f.svc.SaveDraftData(ctx, f.supplierActor(), req.ID, sampleDraft(), sampleUploads())
	require.NoError(t, err)
	cotton := first.Materials[0]
	certificate := first.Certificates[0]

	second, err := f.svc.SaveDraftData(ctx, f.supplierActor(), req.ID, DraftInput{
		Materials: []MaterialInput{
			{ID: cotton.ID.String(), MaterialName: "Organic cotton", Percentage: dec("90")},
			{MaterialName: "Recycled polyester", Percentage: dec("10")},
		},
		Certificates: []CertificateInput{
			{ID: certificate.LineageID.String(), ArtifactID: certificate.ArtifactID, CertificateTypeID: &f.certDef.ID},
		},
	}, nil)
	require.NoError(t, err)

	require.Len(t, second.Materials, 2)
	assert.Equal(t, cotton.LineageID, second.Materials[0].LineageID)
	assert.NotEqual(t, cotton.ID, second.Materials[0].ID)
	assert.NotEqual(t, first.Materials[1].LineageID, second.Materials[1].LineageID)
	assert.True(t, second.Materials[0].Percentage.Decimal.Equal(decimal.NewFromInt(90)))

	require.Len(t, second.Certificates, 1)
	assert.Equal(t, certificate.LineageID, second.Certificates[0].LineageID)
	assert.Equal(t, certificate.ArtifactID, second.Certificates[0].ArtifactID)
	assert.Equal(t, "GOTS", second.Certificates[0].Name)
	require.NotNil(t, second.Certificates[0].Issuer)
	assert.Equal(t, "Control Union", *second.Certificates[0].Issuer)
	assert.Equal(t, 1, f.vault.stores, "binding an existing artifact does not upload")

	require.Len(t, second.SupplyNodes, 1, "omitted collections are left untouched")
	assert.Equal(t, "PT", *second.ManufacturingCountry)
}

func TestSaveDraftValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.assign(t)

	_, err := f.svc.SaveDraftData(ctx, f.supplierActor(), req.ID, sampleDraft(), sampleUploads())
	requireCode(t, err, pkgerrors.CodeStateConflict)

	f.act(t, req.ID, enums.RequestActionAccept)

	cases := map[string]DraftInput{
		"negative mass":     {MassKg: dec("-1")},
		"percentage > 100":  {Materials: []MaterialInput{{MaterialName: "Cotton", Percentage: dec("101")}}},
		"unnamed material":  {Materials: []MaterialInput{{MaterialName: " "}}},
		"node without role": {SupplyNodes: []SupplyNodeInput{{CompanyName: "Mill"}}},
		"missing upload":    {Certificates: []CertificateInput{{UploadRef: "nope", Name: "GOTS"}}},
		"both file refs":    {Certificates: []CertificateInput{{UploadRef: "file-0", ArtifactID: &f.certDef.ID, Name: "GOTS"}}},
		"unnamed cert":      {Certificates: []CertificateInput{{UploadRef: "file-0"}}},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.SaveDraftData(ctx, f.supplierActor(), req.ID, input, sampleUploads())
			requireCode(t, err, pkgerrors.CodeValidation)
		})
	}

	_, err = f.svc.SaveDraftData(ctx, f.supplierActor(), req.ID, DraftInput{
		Certificates: []CertificateInput{{ArtifactID: ptrUUID(uuid.New()), Name: "GOTS"}},
	}, nil)
	requireCode(t, err, pkgerrors.CodeNotFound)

	unknownType := uuid.New()
	_, err = f.svc.SaveDraftData(ctx, f.supplierActor(), req.ID, DraftInput{
		Certificates: []CertificateInput{{UploadRef: "file-0", CertificateTypeID: &unknownType}},
	}, sampleUploads())
	requireCode(t, err, pkgerrors.CodeValidation)

	otherSupplier := dbtest.SeedTenant(t, f.conn, "loom-works", "Loom Works", enums.TenantTypeSupplier)
	private := models.CertificateDefinition{ID: uuid.New(), TenantID: &otherSupplier.ID, Name: "Loom QC"}
	require.NoError(t, f.conn.Create(&private).Error)
	_, err = f.svc.SaveDraftData(ctx, f.supplierActor(), req.ID, DraftInput{
		Certificates: []CertificateInput{{UploadRef: "file-0", CertificateTypeID: &private.ID}},
	}, sampleUploads())
	requireCode(t, err, pkgerrors.CodeValidation)
	assert.Zero(t, f.vault.stores, "nothing is uploaded when validation fails")
}

func ptrUUID(id uuid.UUID) *uuid.UUID { return &id }

func TestHandleActionRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.assign(t)

	_, err := f.svc.HandleAction(ctx, f.supplierActor(), req.ID, ActionInput{Action: enums.RequestActionSubmit})
	requireCode(t, err, pkgerrors.CodeStateConflict)

	_, err = f.svc.HandleAction(ctx, f.brandActor(), req.ID, ActionInput{Action: enums.RequestActionAccept})
	requireCode(t, err, pkgerrors.CodeForbidden)

	stranger := auth.Actor{UserID: uuid.New(), TenantID: uuid.New(), TenantType: enums.TenantTypeSupplier}
	_, err = f.svc.HandleAction(ctx, stranger, req.ID, ActionInput{Action: enums.RequestActionAccept})
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.HandleAction(ctx, f.supplierActor(), req.ID, ActionInput{Action: "approve"})
	requireCode(t, err, pkgerrors.CodeValidation)

	f.act(t, req.ID, enums.RequestActionAccept)
	f.act(t, req.ID, enums.RequestActionSubmit)

	_, err = f.svc.HandleAction(ctx, f.supplierActor(), req.ID, ActionInput{Action: enums.RequestActionSubmit})
	requireCode(t, err, pkgerrors.CodeStateConflict)
	_, err = f.svc.HandleAction(ctx, f.supplierActor(), req.ID, ActionInput{Action: enums.RequestActionDecline})
	requireCode(t, err, pkgerrors.CodeStateConflict)

	stored := f.loadRequest(t, req.ID)
	assert.Equal(t, enums.RequestStatusSubmitted, stored.Status)
	assert.Contains(t, f.metrics.conflicts, "contribution_request:submit")
}

func TestDeclineRejectsVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.assign(t)

	out, err := f.svc.HandleAction(ctx, f.supplierActor(), req.ID, ActionInput{Action: enums.RequestActionDecline, Note: strPtr("no capacity this season")})
	require.NoError(t, err)
	assert.Equal(t, enums.RequestStatusDeclined, out.Status)
	assert.Equal(t, enums.VersionStatusRejected, f.loadVersion(t, req.CurrentVersionID).Status)

	detail, err := f.svc.GetDetail(ctx, f.brandActor(), req.ID)
	require.NoError(t, err)
	require.Len(t, detail.Activity, 2)
	assert.Equal(t, enums.CommentKindStatusChange, detail.Activity[0].Kind)
	assert.Equal(t, "no capacity this season", detail.Activity[1].Body)
	assert.NotNil(t, detail.Payload)

	_, err = f.svc.Cancel(ctx, f.brandActor(), req.ID, "too late")
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestCancelRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.assign(t)

	_, err := f.svc.Cancel(ctx, f.brandActor(), req.ID, "   ")
	requireCode(t, err, pkgerrors.CodeValidation)

	f.act(t, req.ID, enums.RequestActionAccept)
	f.act(t, req.ID, enums.RequestActionSubmit)
	_, err = f.svc.Cancel(ctx, f.brandActor(), req.ID, "changed plans")
	requireCode(t, err, pkgerrors.CodeStateConflict)

	_, err = f.svc.ReviewSubmission(ctx, f.brandActor(), req.ID, ReviewInput{Action: enums.ReviewActionRequestChanges, Comment: strPtr("add certificates")})
	require.NoError(t, err)

	out, err := f.svc.Cancel(ctx, f.brandActor(), req.ID, "changed plans")
	require.NoError(t, err)
	assert.Equal(t, enums.RequestStatusCancelled, out.Status)
	assert.Equal(t, enums.VersionStatusCancelled, f.loadVersion(t, out.CurrentVersionID).Status)
	assert.Equal(t, enums.VersionStatusRejected, f.loadVersion(t, out.InitialVersionID).Status)

	detail, err := f.svc.GetDetail(ctx, f.brandActor(), req.ID)
	require.NoError(t, err)
	last := detail.Activity[len(detail.Activity)-1]
	assert.Equal(t, enums.CommentKindCancellation, last.Kind)
	assert.Equal(t, "changed plans", last.Body)
}

func TestReviewRequiresOwnershipAndSubmission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.assign(t)

	_, err := f.svc.ReviewSubmission(ctx, f.brandActor(), req.ID, ReviewInput{Action: enums.ReviewActionApprove})
	requireCode(t, err, pkgerrors.CodeStateConflict)

	otherBrand := auth.Actor{UserID: uuid.New(), TenantID: uuid.New(), TenantType: enums.TenantTypeBrand}
	_, err = f.svc.ReviewSubmission(ctx, otherBrand, req.ID, ReviewInput{Action: enums.ReviewActionApprove})
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestCommentsAreLimitedToParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.assign(t)

	c, err := f.svc.AddComment(ctx, f.supplierActor(), req.ID, "Which colourway?")
	require.NoError(t, err)
	assert.Equal(t, f.supplier.ID, c.AuthorTenantID)

	_, err = f.svc.AddComment(ctx, f.brandActor(), req.ID, "  ")
	requireCode(t, err, pkgerrors.CodeValidation)

	stranger := auth.Actor{UserID: uuid.New(), TenantID: uuid.New(), TenantType: enums.TenantTypeBrand}
	_, err = f.svc.AddComment(ctx, stranger, req.ID, "hello")
	requireCode(t, err, pkgerrors.CodeNotFound)
	_, err = f.svc.GetDetail(ctx, stranger, req.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)

	assert.EqualValues(t, 1, f.countEvents(t, enums.EventContributionCommented))
}

func TestListForSupplierPages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		f.product = f.seedProduct(t, f.brand.ID, "SKU-"+string(rune('A'+i)))
		f.assign(t)
	}

	page, err := f.svc.ListForSupplier(ctx, f.supplierActor(), pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)
	assert.Equal(t, "SKU-C", page.Items[0].ProductSKU)
	assert.Equal(t, "North Apparel", page.Items[0].BrandName)

	rest, err := f.svc.ListForSupplier(ctx, f.supplierActor(), pagination.Params{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	assert.Equal(t, "SKU-A", rest.Items[0].ProductSKU)
	assert.Empty(t, rest.NextCursor)

	_, err = f.svc.ListForSupplier(ctx, f.brandActor(), pagination.Params{})
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestCollaborationStatusAndLatestVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	status, err := f.svc.CollaborationStatus(ctx, f.brandActor(), f.product.ID)
	require.NoError(t, err)
	assert.Nil(t, status.LatestVersion)
	_, err = f.svc.LatestVersion(ctx, f.brandActor(), f.product.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)

	req := f.assign(t)
	f.act(t, req.ID, enums.RequestActionAccept)
	_, err = f.svc.SaveDraftData(ctx, f.supplierActor(), req.ID, sampleDraft(), sampleUploads())
	require.NoError(t, err)

	status, err = f.svc.CollaborationStatus(ctx, f.brandActor(), f.product.ID)
	require.NoError(t, err)
	require.NotNil(t, status.LatestVersion)
	require.NotNil(t, status.Request)
	require.NotNil(t, status.Supplier)
	assert.Equal(t, req.ID, status.Request.ID)
	assert.Equal(t, enums.RequestStatusInProgress, status.Request.Status)
	assert.Equal(t, "Acme", status.Supplier.ProfileName)

	latest, err := f.svc.LatestVersion(ctx, f.brandActor(), f.product.ID)
	require.NoError(t, err)
	assert.Len(t, latest.Materials, 2)

	_, err = f.svc.LatestVersion(ctx, f.supplierActor(), f.product.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestSaveDraftKeepsCertificatesInheritedFromAnotherSupplier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.assign(t)
	f.act(t, req.ID, enums.RequestActionAccept)
	_, err := f.svc.SaveDraftData(ctx, f.supplierActor(), req.ID, sampleDraft(), sampleUploads())
	require.NoError(t, err)
	f.act(t, req.ID, enums.RequestActionSubmit)
	_, err = f.svc.ReviewSubmission(ctx, f.brandActor(), req.ID, ReviewInput{Action: enums.ReviewActionApprove})
	require.NoError(t, err)

	first := f.supplier
	f.supplier = dbtest.SeedTenant(t, f.conn, "loom-works", "Loom Works", enums.TenantTypeSupplier)
	f.conn1, f.profile = f.seedConnection(t, f.brand.ID, "Loom", enums.ConnectionStatusActive)

	next := f.assign(t)
	assert.Equal(t, f.supplier.ID, next.SupplierTenantID)
	f.act(t, next.ID, enums.RequestActionAccept)
	inherited := f.loadVersion(t, next.CurrentVersionID).Certificates[0]
	require.NotNil(t, inherited.SourceArtifactID)
	assert.Equal(t, first.ID, f.vault.refs[*inherited.SourceArtifactID].TenantID)

	saved, err := f.svc.SaveDraftData(ctx, f.supplierActor(), next.ID, DraftInput{
		Certificates: []CertificateInput{
			{ID: inherited.LineageID.String(), ArtifactID: inherited.SourceArtifactID, Name: "OEKO-TEX 100"},
		},
	}, nil)
	require.NoError(t, err)
	require.Len(t, saved.Certificates, 1)
	assert.Equal(t, inherited.LineageID, saved.Certificates[0].LineageID)
	assert.Equal(t, inherited.SourceArtifactID, saved.Certificates[0].ArtifactID)
	assert.Equal(t, 1, f.vault.stores)

	// Another supplier's file that the draft does not already carry stays private.
	foreign, err := f.vault.Store(ctx, first.ID, "gots.pdf", "application/pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)
	_, err = f.svc.SaveDraftData(ctx, f.supplierActor(), next.ID, DraftInput{
		Certificates: []CertificateInput{{ArtifactID: &foreign.ID, Name: "GOTS"}},
	}, nil)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestSaveDraftChecksLockBeforeValidating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.assign(t)
	f.act(t, req.ID, enums.RequestActionAccept)
	f.act(t, req.ID, enums.RequestActionSubmit)

	_, err := f.svc.SaveDraftData(ctx, f.supplierActor(), req.ID, DraftInput{MassKg: dec("-5")}, nil)
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestSaveDraftReportsUploadsStoredBeforeAFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.assign(t)
	f.act(t, req.ID, enums.RequestActionAccept)
	f.vault.limit = 1

	uploads := sampleUploads()
	uploads["file-1"] = Upload{FileName: "gots.pdf", ContentType: "application/pdf", Body: strings.NewReader("%PDF")}
	_, err := f.svc.SaveDraftData(ctx, f.supplierActor(), req.ID, DraftInput{
		Certificates: []CertificateInput{
			{UploadRef: "file-0", Name: "OEKO-TEX 100"},
			{UploadRef: "file-1", Name: "GOTS"},
		},
	}, uploads)
	requireCode(t, err, pkgerrors.CodeDependency)

	require.Len(t, f.vault.refs, 1)
	for id := range f.vault.refs {
		assert.Contains(t, f.logs.String(), id.String())
	}
	assert.Contains(t, f.logs.String(), "draft save failed after uploads")
}
