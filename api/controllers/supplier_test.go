package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tracebridge-backend/internal/artifacts"
	"github.com/angelmondragon/tracebridge-backend/internal/certificates"
	"github.com/angelmondragon/tracebridge-backend/internal/dashboard"
	"github.com/angelmondragon/tracebridge-backend/pkg/auth"
	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tracebridge-backend/pkg/errors"
	"github.com/angelmondragon/tracebridge-backend/pkg/pagination"
)

type stubCatalogue struct {
	certificates.Service

	created   certificates.CreateInput
	updated   certificates.UpdateInput
	deleted   uuid.UUID
	deleteErr error
}

func (s *stubCatalogue) Create(_ context.Context, _ auth.Actor, input certificates.CreateInput) (*certificates.DefinitionDTO, error) {
	s.created = input
	return &certificates.DefinitionDTO{ID: uuid.New(), Name: input.Name}, nil
}

func (s *stubCatalogue) Update(_ context.Context, _ auth.Actor, id uuid.UUID, input certificates.UpdateInput) (*certificates.DefinitionDTO, error) {
	s.updated = input
	return &certificates.DefinitionDTO{ID: id}, nil
}

func (s *stubCatalogue) Delete(_ context.Context, _ auth.Actor, id uuid.UUID) error {
	s.deleted = id
	return s.deleteErr
}

type stubVault struct {
	artifacts.Service
	tenant uuid.UUID
	params pagination.Params
}

func (s *stubVault) List(_ context.Context, tenantID uuid.UUID, params pagination.Params) (*artifacts.ArtifactPage, error) {
	s.tenant, s.params = tenantID, params
	return &artifacts.ArtifactPage{Artifacts: []artifacts.ArtifactRef{}}, nil
}

type stubDashboard struct{}

func (stubDashboard) Stats(context.Context, auth.Actor) (*dashboard.Stats, error) {
	return &dashboard.Stats{PendingInvites: 2, RequestsByStatus: map[enums.RequestStatus]int64{enums.RequestStatusSent: 1}}, nil
}

func TestCreateCertificateDefinitionValidatesBody(t *testing.T) {
	svc := &stubCatalogue{}

	req := withRequestContext(httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"name":"X"}`)), supplierActor(), nil)
	rec := httptest.NewRecorder()
	CreateCertificateDefinition(svc, testLogger()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = withRequestContext(httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"name":"Acme QC","issuer":"Acme Labs"}`)), supplierActor(), nil)
	rec = httptest.NewRecorder()
	CreateCertificateDefinition(svc, testLogger()).ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Acme QC", svc.created.Name)
	require.NotNil(t, svc.created.Issuer)
	assert.Equal(t, "Acme Labs", *svc.created.Issuer)
}

func TestUpdateAndDeleteCertificateDefinition(t *testing.T) {
	svc := &stubCatalogue{}
	id := uuid.New()

	req := withRequestContext(httptest.NewRequest(http.MethodPatch, "/", bytes.NewBufferString(`{"description":"audit"}`)), supplierActor(), map[string]string{"definitionId": id.String()})
	rec := httptest.NewRecorder()
	UpdateCertificateDefinition(svc, testLogger()).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Nil(t, svc.updated.Name)
	require.NotNil(t, svc.updated.Description)

	req = withRequestContext(httptest.NewRequest(http.MethodDelete, "/", nil), supplierActor(), map[string]string{"definitionId": "nope"})
	rec = httptest.NewRecorder()
	DeleteCertificateDefinition(svc, testLogger()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.deleteErr = pkgerrors.New(pkgerrors.CodeStateConflict, "in use")
	req = withRequestContext(httptest.NewRequest(http.MethodDelete, "/", nil), supplierActor(), map[string]string{"definitionId": id.String()})
	rec = httptest.NewRecorder()
	DeleteCertificateDefinition(svc, testLogger()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, id, svc.deleted)
}

func TestListVaultScopesToActorTenant(t *testing.T) {
	svc := &stubVault{}
	actor := supplierActor()

	req := withRequestContext(httptest.NewRequest(http.MethodGet, "/?limit=5", nil), actor, nil)
	rec := httptest.NewRecorder()
	ListVault(svc, testLogger()).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, actor.TenantID, svc.tenant)
	assert.Equal(t, 5, svc.params.Limit)

	req = withRequestContext(httptest.NewRequest(http.MethodGet, "/?limit=500", nil), actor, nil)
	rec = httptest.NewRecorder()
	ListVault(svc, testLogger()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSupplierDashboardRendersStats(t *testing.T) {
	req := withRequestContext(httptest.NewRequest(http.MethodGet, "/", nil), supplierActor(), nil)
	rec := httptest.NewRecorder()
	SupplierDashboard(stubDashboard{}, testLogger()).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data dashboard.Stats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 2, body.Data.PendingInvites)
	assert.EqualValues(t, 1, body.Data.RequestsByStatus[enums.RequestStatusSent])
}
