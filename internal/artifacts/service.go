package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tracebridge-backend/internal/clock"
	"github.com/angelmondragon/tracebridge-backend/pkg/config"
	"github.com/angelmondragon/tracebridge-backend/pkg/db/models"
	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tracebridge-backend/pkg/errors"
	"github.com/angelmondragon/tracebridge-backend/pkg/logger"
	"github.com/angelmondragon/tracebridge-backend/pkg/pagination"
	"github.com/angelmondragon/tracebridge-backend/pkg/storage/gcs"
)

// ObjectStore is the slice of the GCS client the vault writes through.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, object, contentType string, body io.Reader) (*gcs.ObjectAttrs, error)
	DeleteObject(ctx context.Context, bucket, object string) error
	ObjectURL(bucket, object string) string
}

// ArtifactRef identifies a stored vault file.
type ArtifactRef struct {
	ID          uuid.UUID          `json:"id"`
	TenantID    uuid.UUID          `json:"tenant_id"`
	URL         string             `json:"url"`
	FileName    string             `json:"file_name"`
	ContentType string             `json:"content_type"`
	SizeBytes   int64              `json:"size_bytes"`
	Kind        enums.ArtifactKind `json:"kind"`
	CreatedAt   time.Time          `json:"created_at"`
}

// ArtifactPage is one page of a supplier's vault.
type ArtifactPage struct {
	Artifacts  []ArtifactRef `json:"artifacts"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// Service stores supplier files and answers ownership lookups.
type Service interface {
	Store(ctx context.Context, tenantID uuid.UUID, fileName, contentType string, body io.Reader) (ArtifactRef, error)
	Exists(ctx context.Context, artifactID, tenantID uuid.UUID) (bool, error)
	Resolve(ctx context.Context, artifactID, tenantID uuid.UUID) (*ArtifactRef, error)
	List(ctx context.Context, tenantID uuid.UUID, params pagination.Params) (*ArtifactPage, error)
}

type service struct {
	repo    Repository
	objects ObjectStore
	clock   clock.Clock
	cfg     config.ArtifactsConfig
	logg    *logger.Logger
}

// NewService wires the vault to its record store and bucket.
func NewService(repo Repository, objects ObjectStore, clk clock.Clock, cfg config.ArtifactsConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("artifact repository required")
	}
	if objects == nil {
		return nil, fmt.Errorf("object store required")
	}
	if clk == nil {
		return nil, fmt.Errorf("clock required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if len(cfg.AllowedExtensions) == 0 {
		return nil, fmt.Errorf("at least one allowed extension required")
	}
	return &service{repo: repo, objects: objects, clock: clk, cfg: cfg, logg: logg}, nil
}

var errTooLarge = errors.New("artifact exceeds upload limit")

func (s *service) Store(ctx context.Context, tenantID uuid.UUID, fileName, contentType string, body io.Reader) (ArtifactRef, error) {
	if tenantID == uuid.Nil {
		return ArtifactRef{}, pkgerrors.New(pkgerrors.CodeValidation, "tenant identity missing")
	}
	if body == nil {
		return ArtifactRef{}, pkgerrors.New(pkgerrors.CodeValidation, "file content is required")
	}
	name := sanitizeFileName(fileName)
	if name == "" {
		return ArtifactRef{}, pkgerrors.New(pkgerrors.CodeValidation, "file name is required")
	}
	ext := extensionOf(name)
	if !allowedExtension(s.cfg.AllowedExtensions, ext) {
		return ArtifactRef{}, pkgerrors.Newf(pkgerrors.CodeValidation, "file type %q not allowed; use %s", ext, strings.Join(s.cfg.AllowedExtensions, ", "))
	}
	ct, err := resolveContentType(contentType, ext)
	if err != nil {
		return ArtifactRef{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid content type")
	}

	id := s.clock.NewID()
	key := s.objectKey(tenantID, id, ext)
	counter := &limitedReader{r: body, max: s.cfg.MaxUploadBytes()}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"tenant_id":   tenantID.String(),
		"artifact_id": id.String(),
		"storage_key": key,
	})

	attrs, err := s.objects.Upload(ctx, "", key, ct, counter)
	if err != nil {
		if errors.Is(err, errTooLarge) || counter.exceeded {
			s.discardObject(logCtx, key)
			return ArtifactRef{}, pkgerrors.Newf(pkgerrors.CodeValidation, "file must be at most %d MB", s.cfg.MaxUploadMB)
		}
		return ArtifactRef{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload artifact")
	}
	size := counter.n
	if attrs != nil && attrs.Size > 0 {
		size = attrs.Size
	}

	record := &models.SupplierArtifact{
		ID:          id,
		TenantID:    tenantID,
		StorageKey:  key,
		FileURL:     s.objects.ObjectURL("", key),
		FileName:    name,
		DisplayName: name,
		ContentType: ct,
		SizeBytes:   size,
		Kind:        enums.ArtifactKindCertificate,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		s.discardObject(logCtx, key)
		return ArtifactRef{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist artifact record")
	}

	s.logg.Info(logCtx, "artifact stored")
	return refFromModel(record), nil
}

func (s *service) Exists(ctx context.Context, artifactID, tenantID uuid.UUID) (bool, error) {
	if _, err := s.Resolve(ctx, artifactID, tenantID); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *service) Resolve(ctx context.Context, artifactID, tenantID uuid.UUID) (*ArtifactRef, error) {
	if artifactID == uuid.Nil || tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "artifact not found")
	}
	record, err := s.repo.FindOwned(ctx, artifactID, tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "artifact not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load artifact")
	}
	ref := refFromModel(record)
	return &ref, nil
}

func (s *service) List(ctx context.Context, tenantID uuid.UUID, params pagination.Params) (*ArtifactPage, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant identity missing")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.ListByTenant(ctx, tenantID, params.Limit, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list artifacts")
	}
	page := &ArtifactPage{Artifacts: make([]ArtifactRef, 0, len(rows)), NextCursor: pagination.Encode(next)}
	for i := range rows {
		page.Artifacts = append(page.Artifacts, refFromModel(&rows[i]))
	}
	return page, nil
}

func (s *service) objectKey(tenantID, id uuid.UUID, ext string) string {
	prefix := strings.Trim(s.cfg.ObjectPrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s.%s", tenantID, id, ext)
	}
	return fmt.Sprintf("%s/%s/%s.%s", prefix, tenantID, id, ext)
}

func (s *service) discardObject(ctx context.Context, key string) {
	if err := s.objects.DeleteObject(ctx, "", key); err != nil {
		s.logg.Error(ctx, "artifact object left orphaned", err)
	}
}

func refFromModel(m *models.SupplierArtifact) ArtifactRef {
	return ArtifactRef{
		ID:          m.ID,
		TenantID:    m.TenantID,
		URL:         m.FileURL,
		FileName:    m.FileName,
		ContentType: m.ContentType,
		SizeBytes:   m.SizeBytes,
		Kind:        m.Kind,
		CreatedAt:   m.CreatedAt,
	}
}

// limitedReader counts bytes and fails once max is passed. A max of zero
// disables the limit.
type limitedReader struct {
	r        io.Reader
	max      int64
	n        int64
	exceeded bool
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.n += int64(n)
	if l.max > 0 && l.n > l.max {
		l.exceeded = true
		return n, errTooLarge
	}
	return n, err
}
