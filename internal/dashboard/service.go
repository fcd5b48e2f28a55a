package dashboard

import (
	"context"
	"fmt"

	"github.com/angelmondragon/tracebridge-backend/pkg/auth"
	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tracebridge-backend/pkg/errors"
	"github.com/angelmondragon/tracebridge-backend/pkg/logger"
)

// Statuses in which the supplier still owes work.
var activeStatuses = []enums.RequestStatus{
	enums.RequestStatusSent,
	enums.RequestStatusInProgress,
	enums.RequestStatusChangesRequested,
}

// Service computes the supplier dashboard.
type Service interface {
	Stats(ctx context.Context, actor auth.Actor) (*Stats, error)
}

type service struct {
	repo Repository
	logg *logger.Logger
}

func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("dashboard repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) Stats(ctx context.Context, actor auth.Actor) (*Stats, error) {
	if err := actor.Require(enums.TenantTypeSupplier); err != nil {
		return nil, err
	}

	logCtx := s.logg.WithField(ctx, "tenant_id", actor.TenantID.String())
	connections, err := s.repo.ConnectionsByStatus(ctx, actor.TenantID)
	if err != nil {
		s.logg.Error(logCtx, "dashboard connection counts failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count connections")
	}
	requests, err := s.repo.RequestsByStatus(ctx, actor.TenantID)
	if err != nil {
		s.logg.Error(logCtx, "dashboard request counts failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count requests")
	}

	stats := &Stats{
		PendingInvites:   connections[enums.ConnectionStatusPending],
		ConnectedBrands:  connections[enums.ConnectionStatusActive],
		AwaitingReview:   requests[enums.RequestStatusSubmitted],
		CompletedTasks:   requests[enums.RequestStatusCompleted],
		RequestsByStatus: make(map[enums.RequestStatus]int64),
	}
	for _, status := range enums.RequestStatuses() {
		stats.RequestsByStatus[status] = requests[status]
	}
	for _, status := range activeStatuses {
		stats.ActiveTasks += requests[status]
	}
	return stats, nil
}
