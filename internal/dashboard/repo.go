package dashboard

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tracebridge-backend/internal/repo"
	"github.com/angelmondragon/tracebridge-backend/pkg/db/models"
	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
)

// Repository answers the aggregate counts behind the supplier dashboard.
type Repository interface {
	ConnectionsByStatus(ctx context.Context, supplierID uuid.UUID) (map[enums.ConnectionStatus]int64, error)
	RequestsByStatus(ctx context.Context, supplierID uuid.UUID) (map[enums.RequestStatus]int64, error)
}

type repository struct {
	base repo.Base
}

// NewRepository binds dashboard queries to the connection.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

type statusCount struct {
	Status string `gorm:"column:status"`
	Total  int64  `gorm:"column:total"`
}

func countByStatus[S ~string](q *gorm.DB) (map[S]int64, error) {
	var rows []statusCount
	if err := q.Select("status, count(*) AS total").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[S]int64, len(rows))
	for _, row := range rows {
		out[S(row.Status)] = row.Total
	}
	return out, nil
}

// ConnectionsByStatus counts connections targeting the supplier.
func (r *repository) ConnectionsByStatus(ctx context.Context, supplierID uuid.UUID) (map[enums.ConnectionStatus]int64, error) {
	return countByStatus[enums.ConnectionStatus](r.base.DB(ctx).Model(&models.Connection{}).
		Where("target_tenant_id = ?", supplierID))
}

// RequestsByStatus counts contribution requests assigned to the supplier.
func (r *repository) RequestsByStatus(ctx context.Context, supplierID uuid.UUID) (map[enums.RequestStatus]int64, error) {
	return countByStatus[enums.RequestStatus](r.base.DB(ctx).Model(&models.ContributionRequest{}).
		Where("supplier_tenant_id = ?", supplierID))
}
