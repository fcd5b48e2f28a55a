package versions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/tracebridge-backend/internal/repo"
	"github.com/angelmondragon/tracebridge-backend/pkg/db/models"
	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
)

// Repository persists product versions and their child collections.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, version *models.ProductVersion) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ProductVersion, error)
	FindWithChildren(ctx context.Context, id uuid.UUID) (*models.ProductVersion, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.ProductVersion, error)
	LatestApproved(ctx context.Context, productID uuid.UUID) (*models.ProductVersion, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from []enums.VersionStatus, to enums.VersionStatus, at time.Time) (bool, error)
	UpdateScalars(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ReplaceMaterials(ctx context.Context, versionID uuid.UUID, rows []models.VersionMaterial) error
	ReplaceSupplyNodes(ctx context.Context, versionID uuid.UUID, rows []models.VersionSupplyNode) error
	ReplaceCertificates(ctx context.Context, versionID uuid.UUID, rows []models.VersionCertificate) error
	FindCertificateDefinition(ctx context.Context, id uuid.UUID) (*models.CertificateDefinition, error)
}

type repository struct {
	base repo.Base
}

// NewRepository binds version persistence to the connection.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{base: r.base.WithTx(tx)}
}

// Create inserts the version and all of its children.
func (r *repository) Create(ctx context.Context, version *models.ProductVersion) error {
	return r.base.DB(ctx).Create(version).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ProductVersion, error) {
	return repo.First[models.ProductVersion](ctx, r.base, "id = ?", id)
}

func (r *repository) FindWithChildren(ctx context.Context, id uuid.UUID) (*models.ProductVersion, error) {
	var version models.ProductVersion
	err := r.base.DB(ctx).
		Preload("Materials", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("SupplyNodes", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Certificates", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", id).
		First(&version).Error
	if err != nil {
		return nil, err
	}
	return &version, nil
}

// ListByProduct returns the product's versions newest first: highest sequence,
// then highest revision.
func (r *repository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.ProductVersion, error) {
	var versions []models.ProductVersion
	err := r.base.DB(ctx).
		Where("product_id = ?", productID).
		Order("version_sequence DESC").
		Order("revision DESC").
		Find(&versions).Error
	return versions, err
}

func (r *repository) LatestApproved(ctx context.Context, productID uuid.UUID) (*models.ProductVersion, error) {
	var version models.ProductVersion
	err := r.base.DB(ctx).
		Preload("Materials", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("SupplyNodes", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Certificates", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("product_id = ? AND status = ?", productID, enums.VersionStatusApproved).
		Order("version_sequence DESC").
		Order("revision DESC").
		First(&version).Error
	if err != nil {
		return nil, err
	}
	return &version, nil
}

func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from []enums.VersionStatus, to enums.VersionStatus, at time.Time) (bool, error) {
	return repo.TransitionStatus(ctx, r.base, &models.ProductVersion{}, id, from, map[string]any{
		"status":     to,
		"updated_at": at,
	})
}

// UpdateScalars writes scalar columns while the version is still a draft.
func (r *repository) UpdateScalars(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	res := r.base.DB(ctx).
		Model(&models.ProductVersion{}).
		Omit(clause.Associations).
		Where("id = ? AND status = ?", id, enums.VersionStatusDraft).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) ReplaceMaterials(ctx context.Context, versionID uuid.UUID, rows []models.VersionMaterial) error {
	db := r.base.DB(ctx)
	if err := db.Where("version_id = ?", versionID).Delete(&models.VersionMaterial{}).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return db.Create(&rows).Error
}

func (r *repository) ReplaceSupplyNodes(ctx context.Context, versionID uuid.UUID, rows []models.VersionSupplyNode) error {
	db := r.base.DB(ctx)
	if err := db.Where("version_id = ?", versionID).Delete(&models.VersionSupplyNode{}).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return db.Create(&rows).Error
}

func (r *repository) ReplaceCertificates(ctx context.Context, versionID uuid.UUID, rows []models.VersionCertificate) error {
	db := r.base.DB(ctx)
	if err := db.Where("version_id = ?", versionID).Delete(&models.VersionCertificate{}).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return db.Create(&rows).Error
}

func (r *repository) FindCertificateDefinition(ctx context.Context, id uuid.UUID) (*models.CertificateDefinition, error) {
	return repo.First[models.CertificateDefinition](ctx, r.base, "id = ?", id)
}
