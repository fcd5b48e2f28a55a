package artifacts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tracebridge-backend/internal/repo"
	"github.com/angelmondragon/tracebridge-backend/pkg/db/models"
	"github.com/angelmondragon/tracebridge-backend/pkg/pagination"
)

// Repository persists supplier vault records.
type Repository interface {
	Create(ctx context.Context, artifact *models.SupplierArtifact) error
	FindOwned(ctx context.Context, id, tenantID uuid.UUID) (*models.SupplierArtifact, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByTenant(ctx context.Context, tenantID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.SupplierArtifact, *pagination.Cursor, error)
}

type repository struct {
	base repo.Base
}

// NewRepository binds vault persistence to the connection.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) Create(ctx context.Context, artifact *models.SupplierArtifact) error {
	return r.base.DB(ctx).Create(artifact).Error
}

func (r *repository) FindOwned(ctx context.Context, id, tenantID uuid.UUID) (*models.SupplierArtifact, error) {
	var artifact models.SupplierArtifact
	err := r.base.DB(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&artifact).Error
	if err != nil {
		return nil, err
	}
	return &artifact, nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.base.DB(ctx).Where("id = ?", id).Delete(&models.SupplierArtifact{}).Error
}

// ListByTenant pages the vault newest first.
func (r *repository) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.SupplierArtifact, *pagination.Cursor, error) {
	q := r.base.DB(ctx).Model(&models.SupplierArtifact{}).Where("tenant_id = ?", tenantID)
	q = pagination.After(q, cursor, "created_at", "id")

	var rows []models.SupplierArtifact
	if err := q.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(rows, limit, func(a models.SupplierArtifact) pagination.Cursor {
		return pagination.Cursor{CreatedAt: a.CreatedAt, ID: a.ID}
	})
	return page, next, nil
}
