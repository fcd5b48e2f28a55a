package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tracebridge-backend/pkg/db/models"
	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tracebridge-backend/pkg/errors"
	"github.com/angelmondragon/tracebridge-backend/pkg/logger"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
	defaultCacheTTL    = 5 * time.Minute
)

// Tenant is the directory view of an organisation.
type Tenant struct {
	ID              uuid.UUID        `json:"id"`
	Handle          string           `json:"handle"`
	Name            string           `json:"name"`
	Type            enums.TenantType `json:"type"`
	LocationCountry *string          `json:"location_country,omitempty"`
}

// SearchInput filters the directory listing.
type SearchInput struct {
	Query string
	Type  enums.TenantType
	Limit int
}

// Service resolves tenants for the workflow engines.
type Service interface {
	ResolveByHandle(ctx context.Context, handle string) (*Tenant, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	Search(ctx context.Context, input SearchInput) ([]Tenant, error)
}

type cache interface {
	CacheKey(parts ...string) string
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

type service struct {
	repo  Repository
	cache cache
	ttl   time.Duration
	logg  *logger.Logger
}

// NewService builds the directory. cache may be nil.
func NewService(repo Repository, c cache, ttl time.Duration, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("tenant repository required")
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &service{repo: repo, cache: c, ttl: ttl, logg: logg}, nil
}

func (s *service) ResolveByHandle(ctx context.Context, handle string) (*Tenant, error) {
	normalized := strings.ToLower(strings.TrimSpace(handle))
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "handle is required")
	}

	var key string
	if s.cache != nil {
		key = s.cache.CacheKey("directory", "handle", normalized)
		var cached Tenant
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.warn(ctx, "directory cache read failed", err)
		} else if hit {
			return &cached, nil
		}
	}

	row, err := s.repo.FindByHandle(ctx, normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "tenant %q not found", normalized)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve tenant handle")
	}
	tenant := toTenant(*row)

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, tenant, s.ttl); err != nil {
			s.warn(ctx, "directory cache write failed", err)
		}
	}
	return &tenant, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tenant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tenant")
	}
	tenant := toTenant(*row)
	return &tenant, nil
}

func (s *service) Search(ctx context.Context, input SearchInput) ([]Tenant, error) {
	if input.Type != "" && !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid tenant type")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	rows, err := s.repo.Search(ctx, input.Query, input.Type, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search tenants")
	}
	out := make([]Tenant, 0, len(rows))
	for _, row := range rows {
		out = append(out, toTenant(row))
	}
	return out, nil
}

func (s *service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
}

func toTenant(row models.Tenant) Tenant {
	return Tenant{
		ID:              row.ID,
		Handle:          row.Handle,
		Name:            row.Name,
		Type:            row.Type,
		LocationCountry: row.LocationCountry,
	}
}
