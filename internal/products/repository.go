package product

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tracebridge-backend/internal/repo"
	"github.com/angelmondragon/tracebridge-backend/pkg/db/models"
	"github.com/angelmondragon/tracebridge-backend/pkg/pagination"
)

// ProductRepository persists brand product shells.
type ProductRepository interface {
	WithTx(tx *gorm.DB) ProductRepository
	CreateProduct(ctx context.Context, product *models.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	SKUExists(ctx context.Context, tenantID uuid.UUID, sku string) (bool, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, filters ProductListFilters, limit int, cursor *pagination.Cursor) ([]models.Product, *pagination.Cursor, error)
}

type productRepository struct {
	base repo.Base
}

// NewRepository binds product persistence to the connection.
func NewRepository(db *gorm.DB) ProductRepository {
	return &productRepository{base: repo.NewBase(db)}
}

func (r *productRepository) WithTx(tx *gorm.DB) ProductRepository {
	return &productRepository{base: r.base.WithTx(tx)}
}

func (r *productRepository) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.base.DB(ctx).Create(product).Error
}

func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return repo.First[models.Product](ctx, r.base, "id = ?", id)
}

func (r *productRepository) SKUExists(ctx context.Context, tenantID uuid.UUID, sku string) (bool, error) {
	var count int64
	err := r.base.DB(ctx).Model(&models.Product{}).
		Where("tenant_id = ? AND sku = ?", tenantID, sku).
		Count(&count).Error
	return count > 0, err
}

func (r *productRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID, filters ProductListFilters, limit int, cursor *pagination.Cursor) ([]models.Product, *pagination.Cursor, error) {
	q := r.base.DB(ctx).Model(&models.Product{}).Where("tenant_id = ?", tenantID)
	if filters.Status != nil {
		q = q.Where("status = ?", *filters.Status)
	}
	if query := strings.TrimSpace(filters.Query); query != "" {
		pattern := "%" + strings.ToLower(query) + "%"
		q = q.Where("lower(name) LIKE ? OR lower(sku) LIKE ?", pattern, pattern)
	}
	q = pagination.After(q, cursor, "created_at", "id")

	var products []models.Product
	if err := q.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&products).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(products, limit, func(p models.Product) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	return page, next, nil
}
