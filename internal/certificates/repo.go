package certificates

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tracebridge-backend/internal/repo"
	"github.com/angelmondragon/tracebridge-backend/pkg/db/models"
)

// Repository persists the certificate definition catalogue.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListVisible(ctx context.Context, tenantID uuid.UUID, query string) ([]models.CertificateDefinition, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.CertificateDefinition, error)
	FindByName(ctx context.Context, tenantID uuid.UUID, name string, exclude uuid.UUID) (*models.CertificateDefinition, error)
	Create(ctx context.Context, def *models.CertificateDefinition) error
	Update(ctx context.Context, def *models.CertificateDefinition) error
	Delete(ctx context.Context, id uuid.UUID) error
	InUse(ctx context.Context, id uuid.UUID) (bool, error)
}

type repository struct {
	base repo.Base
}

// NewRepository binds catalogue persistence to the connection.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{base: r.base.WithTx(tx)}
}

// ListVisible returns system entries and the tenant's own, by name.
func (r *repository) ListVisible(ctx context.Context, tenantID uuid.UUID, query string) ([]models.CertificateDefinition, error) {
	q := r.base.DB(ctx).Model(&models.CertificateDefinition{}).
		Where("tenant_id IS NULL OR tenant_id = ?", tenantID)
	if query = strings.TrimSpace(query); query != "" {
		pattern := "%" + strings.ToLower(query) + "%"
		q = q.Where("lower(name) LIKE ? OR lower(coalesce(issuer, '')) LIKE ?", pattern, pattern)
	}
	var defs []models.CertificateDefinition
	if err := q.Order("lower(name) ASC, id ASC").Find(&defs).Error; err != nil {
		return nil, err
	}
	return defs, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CertificateDefinition, error) {
	return repo.First[models.CertificateDefinition](ctx, r.base, "id = ?", id)
}

// FindByName matches case-insensitively against the tenant's entries and the
// system ones. exclude skips the entry being renamed.
func (r *repository) FindByName(ctx context.Context, tenantID uuid.UUID, name string, exclude uuid.UUID) (*models.CertificateDefinition, error) {
	q := r.base.DB(ctx).
		Where("(tenant_id IS NULL OR tenant_id = ?) AND lower(name) = ?", tenantID, strings.ToLower(name))
	if exclude != uuid.Nil {
		q = q.Where("id <> ?", exclude)
	}
	var def models.CertificateDefinition
	if err := q.Order("tenant_id NULLS FIRST").First(&def).Error; err != nil {
		return nil, err
	}
	return &def, nil
}

func (r *repository) Create(ctx context.Context, def *models.CertificateDefinition) error {
	return r.base.DB(ctx).Create(def).Error
}

func (r *repository) Update(ctx context.Context, def *models.CertificateDefinition) error {
	return r.base.DB(ctx).Model(&models.CertificateDefinition{}).
		Where("id = ?", def.ID).
		Updates(map[string]any{
			"name":        def.Name,
			"issuer":      def.Issuer,
			"description": def.Description,
			"updated_at":  def.UpdatedAt,
		}).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.base.DB(ctx).Where("id = ?", id).Delete(&models.CertificateDefinition{}).Error
}

// InUse reports whether any version certificate references the definition.
func (r *repository) InUse(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.base.DB(ctx).Model(&models.VersionCertificate{}).
		Where("certificate_type_id = ?", id).
		Count(&count).Error
	return count > 0, err
}
