package artifacts

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/tracebridge-backend/internal/clock"
	"github.com/angelmondragon/tracebridge-backend/internal/dbtest"
	"github.com/angelmondragon/tracebridge-backend/pkg/config"
	"github.com/angelmondragon/tracebridge-backend/pkg/db/models"
	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tracebridge-backend/pkg/errors"
	"github.com/angelmondragon/tracebridge-backend/pkg/logger"
	"github.com/angelmondragon/tracebridge-backend/pkg/pagination"
	"github.com/angelmondragon/tracebridge-backend/pkg/storage/gcs"
)

type fakeObjects struct {
	uploaded map[string][]byte
	types    map[string]string
	deleted  []string
	failWith error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{uploaded: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeObjects) Upload(_ context.Context, bucket, object, contentType string, body io.Reader) (*gcs.ObjectAttrs, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.uploaded[object] = data
	f.types[object] = contentType
	return &gcs.ObjectAttrs{Bucket: "vault", Name: object, ContentType: contentType, Size: int64(len(data))}, nil
}

func (f *fakeObjects) DeleteObject(_ context.Context, _, object string) error {
	f.deleted = append(f.deleted, object)
	delete(f.uploaded, object)
	return nil
}

func (f *fakeObjects) ObjectURL(_, object string) string {
	return "https://cdn.tracebridge.test/vault/" + object
}

func newTestService(t *testing.T, objects *fakeObjects, cfg config.ArtifactsConfig) (Service, *gorm.DB) {
	t.Helper()
	_, conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "artifacts-test", Output: io.Discard})
	svc, err := NewService(NewRepository(conn), objects, clock.Fixed{At: time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)}, cfg, logg)
	require.NoError(t, err)
	return svc, conn
}

func defaultConfig() config.ArtifactsConfig {
	return config.ArtifactsConfig{
		MaxUploadMB:       1,
		AllowedExtensions: []string{"pdf", "png", "jpg", "jpeg", "webp"},
		ObjectPrefix:      "artifacts",
	}
}

func TestStorePersistsObjectAndRecord(t *testing.T) {
	objects := newFakeObjects()
	svc, conn := newTestService(t, objects, defaultConfig())
	tenant := uuid.New()

	ref, err := svc.Store(context.Background(), tenant, "GOTS Certificate 2026.PDF", "", strings.NewReader("%PDF-1.7 body"))
	require.NoError(t, err)

	key := "artifacts/" + tenant.String() + "/" + ref.ID.String() + ".pdf"
	assert.Equal(t, []byte("%PDF-1.7 body"), objects.uploaded[key])
	assert.Equal(t, "application/pdf", objects.types[key])
	assert.Equal(t, "https://cdn.tracebridge.test/vault/"+key, ref.URL)
	assert.Equal(t, "GOTS-Certificate-2026.PDF", ref.FileName)
	assert.Equal(t, int64(len("%PDF-1.7 body")), ref.SizeBytes)

	var record models.SupplierArtifact
	require.NoError(t, conn.First(&record, "id = ?", ref.ID).Error)
	assert.Equal(t, tenant, record.TenantID)
	assert.Equal(t, key, record.StorageKey)
	assert.Equal(t, enums.ArtifactKindCertificate, record.Kind)
}

func TestStoreRejectsInput(t *testing.T) {
	cases := []struct {
		name     string
		tenant   uuid.UUID
		fileName string
		body     io.Reader
	}{
		{name: "missing tenant", tenant: uuid.Nil, fileName: "a.pdf", body: strings.NewReader("x")},
		{name: "blank name", tenant: uuid.New(), fileName: "  ", body: strings.NewReader("x")},
		{name: "no extension", tenant: uuid.New(), fileName: "certificate", body: strings.NewReader("x")},
		{name: "executable", tenant: uuid.New(), fileName: "payload.exe", body: strings.NewReader("x")},
		{name: "nil body", tenant: uuid.New(), fileName: "a.pdf", body: nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			objects := newFakeObjects()
			svc, _ := newTestService(t, objects, defaultConfig())
			_, err := svc.Store(context.Background(), tc.tenant, tc.fileName, "", tc.body)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
			assert.Empty(t, objects.uploaded)
		})
	}
}

func TestStoreEnforcesSizeLimit(t *testing.T) {
	objects := newFakeObjects()
	svc, conn := newTestService(t, objects, defaultConfig())

	oversized := bytes.Repeat([]byte("a"), (1<<20)+1)
	_, err := svc.Store(context.Background(), uuid.New(), "big.png", "image/png", bytes.NewReader(oversized))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Len(t, objects.deleted, 1)

	var count int64
	require.NoError(t, conn.Model(&models.SupplierArtifact{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestStoreUploadFailureIsDependency(t *testing.T) {
	objects := newFakeObjects()
	objects.failWith = errors.New("gcs down")
	svc, _ := newTestService(t, objects, defaultConfig())

	_, err := svc.Store(context.Background(), uuid.New(), "a.pdf", "application/pdf", strings.NewReader("x"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestExistsChecksOwnership(t *testing.T) {
	objects := newFakeObjects()
	svc, _ := newTestService(t, objects, defaultConfig())
	owner := uuid.New()

	ref, err := svc.Store(context.Background(), owner, "scan.jpg", "image/jpeg", strings.NewReader("jpeg"))
	require.NoError(t, err)

	ok, err := svc.Exists(context.Background(), ref.ID, owner)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Exists(context.Background(), ref.ID, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.Exists(context.Background(), uuid.New(), owner)
	require.NoError(t, err)
	assert.False(t, ok)

	resolved, err := svc.Resolve(context.Background(), ref.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, ref.URL, resolved.URL)
}

func TestListPagesOwnVaultNewestFirst(t *testing.T) {
	svc, conn := newTestService(t, newFakeObjects(), defaultConfig())
	owner, other := uuid.New(), uuid.New()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	seed := func(tenant uuid.UUID, name string, at time.Time) uuid.UUID {
		id := uuid.New()
		require.NoError(t, conn.Create(&models.SupplierArtifact{
			ID: id, TenantID: tenant, StorageKey: name, FileURL: "https://cdn.test/" + name,
			FileName: name, DisplayName: name, ContentType: "application/pdf",
			Kind: enums.ArtifactKindCertificate, CreatedAt: at,
		}).Error)
		return id
	}
	oldest := seed(owner, "a.pdf", base)
	middle := seed(owner, "b.pdf", base.Add(time.Hour))
	newest := seed(owner, "c.pdf", base.Add(2*time.Hour))
	seed(other, "foreign.pdf", base.Add(3*time.Hour))

	first, err := svc.List(context.Background(), owner, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Artifacts, 2)
	assert.Equal(t, newest, first.Artifacts[0].ID)
	assert.Equal(t, middle, first.Artifacts[1].ID)
	assert.Equal(t, "https://cdn.test/c.pdf", first.Artifacts[0].URL)
	require.NotEmpty(t, first.NextCursor)

	second, err := svc.List(context.Background(), owner, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Artifacts, 1)
	assert.Equal(t, oldest, second.Artifacts[0].ID)
	assert.Empty(t, second.NextCursor)

	_, err = svc.List(context.Background(), owner, pagination.Params{Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
	_, err = svc.List(context.Background(), uuid.Nil, pagination.Params{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "report.pdf", sanitizeFileName("../../etc/report.pdf"))
	assert.Equal(t, "scan.png", sanitizeFileName(`C:\uploads\scan.png`))
	assert.Equal(t, "", sanitizeFileName("..."))
}
