package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tracebridge-backend/pkg/auth"
	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tracebridge-backend/pkg/errors"
)

// mapStore keeps values in memory and ignores ttls.
type mapStore map[string]string

func (m mapStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m mapStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m[key], _ = value.(string)
	return nil
}

func (m mapStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, taken := m[key]; taken {
		return false, nil
	}
	return true, m.Set(ctx, key, value, ttl)
}

func (m mapStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m, key)
	}
	return nil
}

func (mapStore) IdempotencyKey(scope, id string) string {
	return "test:idem:" + scope + ":" + id
}

// idemCall describes one request routed through the middleware.
type idemCall struct {
	method  string
	path    string
	pattern string
	key     string
	body    string
	actor   *auth.Actor
}

func (c idemCall) request() *http.Request {
	method := c.method
	if method == "" {
		method = http.MethodPost
	}
	pattern := c.pattern
	if pattern == "" {
		pattern = c.path
	}
	req := httptest.NewRequest(method, c.path, strings.NewReader(c.body))
	if c.key != "" {
		req.Header.Set(IdempotencyHeader, c.key)
	}
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rc)
	if c.actor != nil {
		ctx = WithActor(ctx, *c.actor)
	}
	return req.WithContext(ctx)
}

func (c idemCall) serve(mw func(http.Handler) http.Handler, next http.Handler) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, c.request())
	return rec
}

func countingHandler(calls *int, status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		*calls++
		if body != "" {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Error.Code
}

func TestRouteTTLSelection(t *testing.T) {
	cases := map[string]struct {
		method  string
		pattern string
		want    time.Duration
	}{
		"assign":       {http.MethodPost, "/api/v1/products/{productId}/assign", criticalIdempotencyTTL},
		"review":       {http.MethodPost, "/api/v1/requests/{requestId}/review", criticalIdempotencyTTL},
		"disconnect":   {http.MethodPost, "/api/v1/profiles/{profileId}/disconnect", criticalIdempotencyTTL},
		"initiate":     {http.MethodPost, "/api/v1/connections", defaultIdempotencyTTL},
		"respond":      {http.MethodPost, "/api/v1/connections/{connectionId}/respond", defaultIdempotencyTTL},
		"comment":      {http.MethodPost, "/api/v1/requests/{requestId}/comments", defaultIdempotencyTTL},
		"draft upload": {http.MethodPut, "/api/v1/requests/{requestId}/draft", 0},
		"profile read": {http.MethodGet, "/api/v1/profiles/{profileId}", 0},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			ttl, ok := routeTTL(tc.method, tc.pattern)
			assert.Equal(t, tc.want != 0, ok)
			assert.Equal(t, tc.want, ttl)
		})
	}
}

func TestIdempotencyMiddlewareRequiresHeader(t *testing.T) {
	var calls int
	rec := idemCall{path: "/api/v1/connections", body: `{"name":"Acme"}`}.
		serve(Idempotency(mapStore{}, nil), countingHandler(&calls, http.StatusCreated, ""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, calls)
}

func TestIdempotencyMiddlewareIgnoresUnlistedRoutes(t *testing.T) {
	var calls int
	rec := idemCall{method: http.MethodGet, path: "/api/v1/profiles/p1", pattern: "/api/v1/profiles/{profileId}"}.
		serve(Idempotency(mapStore{}, nil), countingHandler(&calls, http.StatusOK, ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, calls)
}

func TestIdempotencyMiddlewareReplaysStoredResponse(t *testing.T) {
	mw := Idempotency(mapStore{}, nil)
	var calls int
	next := countingHandler(&calls, http.StatusAccepted, `{"ok":true}`)
	call := idemCall{path: "/api/v1/connections", key: "abc", body: `{"name":"Acme"}`}

	first := call.serve(mw, next)
	require.Equal(t, http.StatusAccepted, first.Code)
	assert.Empty(t, first.Header().Get(idempotentReplayHeader))

	replay := call.serve(mw, next)
	assert.Equal(t, http.StatusAccepted, replay.Code)
	assert.Equal(t, "application/json", replay.Header().Get("Content-Type"))
	assert.Equal(t, "true", replay.Header().Get(idempotentReplayHeader))
	assert.JSONEq(t, `{"ok":true}`, replay.Body.String())
	assert.Equal(t, 1, calls)
}

func TestIdempotencyMiddlewareDetectsBodyChange(t *testing.T) {
	mw := Idempotency(mapStore{}, nil)
	var calls int
	next := countingHandler(&calls, http.StatusOK, "")

	idemCall{path: "/api/v1/connections", key: "xyz", body: `{"name":"Acme"}`}.serve(mw, next)
	rec := idemCall{path: "/api/v1/connections", key: "xyz", body: `{"name":"Other"}`}.serve(mw, next)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, rec))
	assert.Equal(t, 1, calls)
}

func TestIdempotencyScopeSeparatesTenants(t *testing.T) {
	mw := Idempotency(mapStore{}, nil)
	var calls int
	next := countingHandler(&calls, http.StatusCreated, "")

	for range 2 {
		actor := auth.Actor{UserID: uuid.New(), TenantID: uuid.New(), TenantType: enums.TenantTypeBrand}
		idemCall{path: "/api/v1/products", key: "same-key", body: `{"sku":"TEE-001"}`, actor: &actor}.serve(mw, next)
	}
	assert.Equal(t, 2, calls)
}

func TestIdempotencyMiddlewareRejectsConcurrentDuplicate(t *testing.T) {
	mw := Idempotency(mapStore{}, nil)
	call := idemCall{path: "/api/v1/products", key: "busy", body: `{}`}

	var nested *httptest.ResponseRecorder
	var outer http.Handler
	outer = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		nested = call.serve(mw, outer)
		w.WriteHeader(http.StatusCreated)
	})
	call.serve(mw, outer)

	require.NotNil(t, nested)
	assert.Equal(t, http.StatusConflict, nested.Code)
	assert.Equal(t, string(pkgerrors.CodeConflict), errorCode(t, nested))
}

func TestIdempotencyMiddlewareReleasesKeyOnServerError(t *testing.T) {
	mw := Idempotency(mapStore{}, nil)
	call := idemCall{
		path:    "/api/v1/requests/r1/review",
		pattern: "/api/v1/requests/{requestId}/review",
		key:     "retry-me",
		body:    `{"decision":"APPROVE"}`,
	}
	var calls int

	call.serve(mw, countingHandler(&calls, http.StatusServiceUnavailable, ""))
	ok := countingHandler(&calls, http.StatusOK, `{"status":"APPROVED"}`)
	call.serve(mw, ok)
	require.Equal(t, 2, calls)

	replay := call.serve(mw, ok)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "true", replay.Header().Get(idempotentReplayHeader))
}
