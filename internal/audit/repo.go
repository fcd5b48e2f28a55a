package audit

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/tracebridge-backend/internal/repo"
	"github.com/angelmondragon/tracebridge-backend/pkg/db/models"
)

// Repository persists audit_logs rows.
type Repository interface {
	// Insert writes the row unless one already exists for the same event id.
	// It reports whether a row was written.
	Insert(ctx context.Context, entry *models.AuditLog) (bool, error)
	ListForEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]models.AuditLog, error)
}

type repository struct {
	base repo.Base
}

// NewRepository binds audit persistence to the connection.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) Insert(ctx context.Context, entry *models.AuditLog) (bool, error) {
	res := r.base.DB(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(entry)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ListForEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]models.AuditLog, error) {
	var rows []models.AuditLog
	err := r.base.DB(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	return rows, err
}
