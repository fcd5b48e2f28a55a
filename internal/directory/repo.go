package directory

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tracebridge-backend/internal/repo"
	"github.com/angelmondragon/tracebridge-backend/pkg/db/models"
	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
)

// Repository reads tenants.
type Repository interface {
	FindByHandle(ctx context.Context, handle string) (*models.Tenant, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	Search(ctx context.Context, query string, tenantType enums.TenantType, limit int) ([]models.Tenant, error)
}

type repository struct {
	base repo.Base
}

// NewRepository binds a tenant repository to the connection.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) FindByHandle(ctx context.Context, handle string) (*models.Tenant, error) {
	var tenant models.Tenant
	err := r.base.DB(ctx).
		Where("lower(handle) = ?", strings.ToLower(handle)).
		First(&tenant).Error
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	return repo.First[models.Tenant](ctx, r.base, "id = ?", id)
}

func (r *repository) Search(ctx context.Context, query string, tenantType enums.TenantType, limit int) ([]models.Tenant, error) {
	q := r.base.DB(ctx).Model(&models.Tenant{})
	if tenantType != "" {
		q = q.Where("type = ?", tenantType)
	}
	if trimmed := strings.TrimSpace(query); trimmed != "" {
		pattern := "%" + strings.ToLower(trimmed) + "%"
		q = q.Where("lower(name) LIKE ? OR lower(handle) LIKE ?", pattern, pattern)
	}
	var tenants []models.Tenant
	err := q.Order("name ASC").Order("id ASC").Limit(limit).Find(&tenants).Error
	return tenants, err
}
