package controllers

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tracebridge-backend/api/middleware"
	"github.com/angelmondragon/tracebridge-backend/internal/contributions"
	"github.com/angelmondragon/tracebridge-backend/internal/versions"
	"github.com/angelmondragon/tracebridge-backend/pkg/auth"
	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tracebridge-backend/pkg/errors"
	"github.com/angelmondragon/tracebridge-backend/pkg/logger"
)

type stubContributions struct {
	contributions.Service

	draftInput  contributions.DraftInput
	draftFiles  map[string][]byte
	actionInput contributions.ActionInput
	reviewInput contributions.ReviewInput
	actionErr   error
	lastActor   auth.Actor
	lastRequest uuid.UUID
}

func (s *stubContributions) SaveDraftData(ctx context.Context, actor auth.Actor, requestID uuid.UUID, input contributions.DraftInput, uploads map[string]contributions.Upload) (*versions.Payload, error) {
	s.lastActor = actor
	s.lastRequest = requestID
	s.draftInput = input
	s.draftFiles = map[string][]byte{}
	for ref, upload := range uploads {
		data, err := io.ReadAll(upload.Body)
		if err != nil {
			return nil, err
		}
		s.draftFiles[ref] = data
	}
	return &versions.Payload{}, nil
}

func (s *stubContributions) HandleAction(ctx context.Context, actor auth.Actor, requestID uuid.UUID, input contributions.ActionInput) (*contributions.RequestDTO, error) {
	s.actionInput = input
	if s.actionErr != nil {
		return nil, s.actionErr
	}
	return &contributions.RequestDTO{ID: requestID, Status: enums.RequestStatusInProgress}, nil
}

func (s *stubContributions) ReviewSubmission(ctx context.Context, actor auth.Actor, requestID uuid.UUID, input contributions.ReviewInput) (*contributions.RequestDTO, error) {
	s.reviewInput = input
	return &contributions.RequestDTO{ID: requestID, Status: enums.RequestStatusCompleted}, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("error"), Output: io.Discard})
}

func withRequestContext(req *http.Request, actor *auth.Actor, params map[string]string) *http.Request {
	ctx := req.Context()
	routeCtx := chi.NewRouteContext()
	for k, v := range params {
		routeCtx.URLParams.Add(k, v)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
	if actor != nil {
		ctx = middleware.WithActor(ctx, *actor)
	}
	return req.WithContext(ctx)
}

func supplierActor() *auth.Actor {
	return &auth.Actor{UserID: uuid.New(), TenantID: uuid.New(), TenantType: enums.TenantTypeSupplier}
}

func TestSaveDraftMultipart(t *testing.T) {
	svc := &stubContributions{}
	requestID := uuid.New()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("payload", `{"manufacturing_country":"PT","certificates":[{"upload_ref":"cert-1","name":"GOTS"}]}`))
	part, err := mw.CreateFormFile("cert-1", "gots.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.7 fake"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, "/api/v1/requests/"+requestID.String()+"/draft", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req = withRequestContext(req, supplierActor(), map[string]string{"requestId": requestID.String()})

	rec := httptest.NewRecorder()
	SaveDraft(svc, 1<<20, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, requestID, svc.lastRequest)
	require.NotNil(t, svc.draftInput.ManufacturingCountry)
	assert.Equal(t, "PT", *svc.draftInput.ManufacturingCountry)
	require.Len(t, svc.draftInput.Certificates, 1)
	assert.Equal(t, "cert-1", svc.draftInput.Certificates[0].UploadRef)
	assert.Equal(t, []byte("%PDF-1.7 fake"), svc.draftFiles["cert-1"])
}

func TestSaveDraftJSONBody(t *testing.T) {
	svc := &stubContributions{}
	requestID := uuid.New()

	req := httptest.NewRequest(http.MethodPut, "/", bytes.NewBufferString(`{"materials":[]}`))
	req.Header.Set("Content-Type", "application/json")
	req = withRequestContext(req, supplierActor(), map[string]string{"requestId": requestID.String()})

	rec := httptest.NewRecorder()
	SaveDraft(svc, 0, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotNil(t, svc.draftInput.Materials)
	assert.Empty(t, svc.draftInput.Materials)
}

func TestSaveDraftRejectsMissingPayloadPart(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req = withRequestContext(req, supplierActor(), map[string]string{"requestId": uuid.NewString()})

	rec := httptest.NewRecorder()
	SaveDraft(&stubContributions{}, 1<<20, testLogger()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaveDraftRejectsOversizedUpload(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("payload", `{}`))
	part, err := mw.CreateFormFile("cert-1", "big.pdf")
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte("a"), 4096))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req = withRequestContext(req, supplierActor(), map[string]string{"requestId": uuid.NewString()})

	rec := httptest.NewRecorder()
	SaveDraft(&stubContributions{}, 1024, testLogger()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestActionValidation(t *testing.T) {
	requestID := uuid.New()

	t.Run("missing actor", func(t *testing.T) {
		req := withRequestContext(httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"action":"accept"}`)), nil, map[string]string{"requestId": requestID.String()})
		rec := httptest.NewRecorder()
		RequestAction(&stubContributions{}, testLogger()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid request id", func(t *testing.T) {
		req := withRequestContext(httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"action":"accept"}`)), supplierActor(), map[string]string{"requestId": "nope"})
		rec := httptest.NewRecorder()
		RequestAction(&stubContributions{}, testLogger()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown action", func(t *testing.T) {
		req := withRequestContext(httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"action":"approve"}`)), supplierActor(), map[string]string{"requestId": requestID.String()})
		rec := httptest.NewRecorder()
		RequestAction(&stubContributions{}, testLogger()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("accept", func(t *testing.T) {
		svc := &stubContributions{}
		req := withRequestContext(httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"action":"accept","note":"on it"}`)), supplierActor(), map[string]string{"requestId": requestID.String()})
		rec := httptest.NewRecorder()
		RequestAction(svc, testLogger()).ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, enums.RequestActionAccept, svc.actionInput.Action)
		require.NotNil(t, svc.actionInput.Note)
		assert.Equal(t, "on it", *svc.actionInput.Note)
	})

	t.Run("state conflict surfaces as 422", func(t *testing.T) {
		svc := &stubContributions{actionErr: pkgerrors.New(pkgerrors.CodeStateConflict, "request is not in SENT")}
		req := withRequestContext(httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"action":"accept"}`)), supplierActor(), map[string]string{"requestId": requestID.String()})
		rec := httptest.NewRecorder()
		RequestAction(svc, testLogger()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestReviewRequestParsesDecision(t *testing.T) {
	svc := &stubContributions{}
	brand := &auth.Actor{UserID: uuid.New(), TenantID: uuid.New(), TenantType: enums.TenantTypeBrand}
	req := withRequestContext(httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"action":"request_changes","comment":"missing GOTS scope"}`)), brand, map[string]string{"requestId": uuid.NewString()})

	rec := httptest.NewRecorder()
	ReviewRequest(svc, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, enums.ReviewActionRequestChanges, svc.reviewInput.Action)
}
