package contributions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tracebridge-backend/internal/repo"
	"github.com/angelmondragon/tracebridge-backend/pkg/db/models"
	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
	"github.com/angelmondragon/tracebridge-backend/pkg/pagination"
)

// Repository persists contribution requests and their activity log. Product,
// profile and connection rows are read here but only the product's
// pending_version_name and updated_at columns are ever written.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateRequest(ctx context.Context, request *models.ContributionRequest) error
	FindRequest(ctx context.Context, id uuid.UUID) (*models.ContributionRequest, error)
	TransitionRequest(ctx context.Context, id uuid.UUID, from []enums.RequestStatus, updates map[string]any) (bool, error)
	HasActiveRequestForVersion(ctx context.Context, versionID uuid.UUID) (bool, error)
	LatestRequestForVersion(ctx context.Context, versionID uuid.UUID) (*models.ContributionRequest, error)
	AddComment(ctx context.Context, comment *models.RequestComment) error
	ListComments(ctx context.Context, requestID uuid.UUID) ([]models.RequestComment, error)
	ListForSupplier(ctx context.Context, supplierID uuid.UUID, limit int, cursor *pagination.Cursor) ([]InboxRow, *pagination.Cursor, error)

	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ClearPendingVersionName(ctx context.Context, productID uuid.UUID, at time.Time) error
	TouchProduct(ctx context.Context, productID uuid.UUID, at time.Time) error
	FindProfile(ctx context.Context, id uuid.UUID) (*models.ConnectionProfile, error)
	FindProfileByConnection(ctx context.Context, connectionID uuid.UUID) (*models.ConnectionProfile, error)
	FindConnection(ctx context.Context, id uuid.UUID) (*models.Connection, error)
}

// InboxRow is one line of a supplier's request inbox.
type InboxRow struct {
	RequestID        uuid.UUID
	ProductID        uuid.UUID
	ProductSKU       string
	ProductName      string
	BrandTenantID    uuid.UUID
	BrandName        string
	CurrentVersionID uuid.UUID
	Status           enums.RequestStatus
	DueDate          *time.Time
	UpdatedAt        time.Time
}

type repository struct {
	base repo.Base
}

// NewRepository binds request persistence to the connection.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{base: r.base.WithTx(tx)}
}

func (r *repository) CreateRequest(ctx context.Context, request *models.ContributionRequest) error {
	return r.base.DB(ctx).Create(request).Error
}

func (r *repository) FindRequest(ctx context.Context, id uuid.UUID) (*models.ContributionRequest, error) {
	return repo.First[models.ContributionRequest](ctx, r.base, "id = ?", id)
}

func (r *repository) TransitionRequest(ctx context.Context, id uuid.UUID, from []enums.RequestStatus, updates map[string]any) (bool, error) {
	return repo.TransitionStatus(ctx, r.base, &models.ContributionRequest{}, id, from, updates)
}

func (r *repository) HasActiveRequestForVersion(ctx context.Context, versionID uuid.UUID) (bool, error) {
	var count int64
	err := r.base.DB(ctx).
		Model(&models.ContributionRequest{}).
		Where("current_version_id = ? AND status IN ?", versionID, enums.ActiveRequestStatuses).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) LatestRequestForVersion(ctx context.Context, versionID uuid.UUID) (*models.ContributionRequest, error) {
	var request models.ContributionRequest
	err := r.base.DB(ctx).
		Where("current_version_id = ?", versionID).
		Order("created_at DESC").
		First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) AddComment(ctx context.Context, comment *models.RequestComment) error {
	return r.base.DB(ctx).Create(comment).Error
}

func (r *repository) ListComments(ctx context.Context, requestID uuid.UUID) ([]models.RequestComment, error) {
	var comments []models.RequestComment
	err := r.base.DB(ctx).
		Where("request_id = ?", requestID).
		Order("created_at ASC").
		Find(&comments).Error
	return comments, err
}

// ListForSupplier pages the supplier's requests, most recently touched first.
func (r *repository) ListForSupplier(ctx context.Context, supplierID uuid.UUID, limit int, cursor *pagination.Cursor) ([]InboxRow, *pagination.Cursor, error) {
	q := r.base.DB(ctx).
		Table("contribution_requests AS r").
		Select(`r.id AS request_id, r.product_id, p.sku AS product_sku, p.name AS product_name,
			r.brand_tenant_id, t.name AS brand_name, r.current_version_id, r.status, r.due_date, r.updated_at`).
		Joins("JOIN products p ON p.id = r.product_id").
		Joins("JOIN tenants t ON t.id = r.brand_tenant_id").
		Where("r.supplier_tenant_id = ?", supplierID)
	q = pagination.After(q, cursor, "r.updated_at", "r.id")

	var rows []InboxRow
	if err := q.Order("r.updated_at DESC, r.id DESC").Limit(pagination.LimitWithBuffer(limit)).Scan(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(rows, limit, func(r InboxRow) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.UpdatedAt, ID: r.RequestID}
	})
	return page, next, nil
}

func (r *repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return repo.First[models.Product](ctx, r.base, "id = ?", id)
}

func (r *repository) ClearPendingVersionName(ctx context.Context, productID uuid.UUID, at time.Time) error {
	return r.base.DB(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{"pending_version_name": nil, "updated_at": at}).Error
}

func (r *repository) TouchProduct(ctx context.Context, productID uuid.UUID, at time.Time) error {
	return r.base.DB(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Update("updated_at", at).Error
}

func (r *repository) FindProfile(ctx context.Context, id uuid.UUID) (*models.ConnectionProfile, error) {
	return repo.First[models.ConnectionProfile](ctx, r.base, "id = ?", id)
}

func (r *repository) FindProfileByConnection(ctx context.Context, connectionID uuid.UUID) (*models.ConnectionProfile, error) {
	return repo.First[models.ConnectionProfile](ctx, r.base, "connection_id = ?", connectionID)
}

func (r *repository) FindConnection(ctx context.Context, id uuid.UUID) (*models.Connection, error) {
	return repo.First[models.Connection](ctx, r.base, "id = ?", id)
}
