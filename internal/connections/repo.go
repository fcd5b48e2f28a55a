package connections

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tracebridge-backend/internal/repo"
	"github.com/angelmondragon/tracebridge-backend/pkg/db/models"
	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
	"github.com/angelmondragon/tracebridge-backend/pkg/pagination"
)

// Repository persists connections and their address-book profiles.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateConnection(ctx context.Context, conn *models.Connection) error
	CreateProfile(ctx context.Context, profile *models.ConnectionProfile) error
	FindConnection(ctx context.Context, id uuid.UUID) (*models.Connection, error)
	FindProfile(ctx context.Context, id uuid.UUID) (*models.ConnectionProfile, error)
	FindProfileByConnection(ctx context.Context, connectionID uuid.UUID) (*models.ConnectionProfile, error)
	ProfileNameTaken(ctx context.Context, ownerID uuid.UUID, name string, excludeID *uuid.UUID) (bool, error)
	FindPendingByToken(ctx context.Context, token string) (*models.Connection, error)
	FindPendingForLink(ctx context.Context, token, email string) ([]models.Connection, error)
	TransitionConnection(ctx context.Context, id uuid.UUID, from []enums.ConnectionStatus, updates map[string]any) (bool, error)
	RotateInvite(ctx context.Context, id uuid.UUID, from []enums.ConnectionStatus, maxRetries int, updates map[string]any) (bool, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ListProfiles(ctx context.Context, ownerID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.ConnectionProfile, *pagination.Cursor, error)
	ListIncoming(ctx context.Context, targetID uuid.UUID) ([]IncomingRow, error)
}

// IncomingRow is a connection targeting a supplier joined with its requester.
type IncomingRow struct {
	ConnectionID    uuid.UUID
	RequesterID     uuid.UUID
	RequesterName   string
	RequesterHandle string
	Status          enums.ConnectionStatus
	Note            *string
	CreatedAt       time.Time
}

type repository struct {
	base repo.Base
}

// NewRepository binds the connection repository to the connection.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{base: r.base.WithTx(tx)}
}

func (r *repository) CreateConnection(ctx context.Context, conn *models.Connection) error {
	return r.base.DB(ctx).Create(conn).Error
}

func (r *repository) CreateProfile(ctx context.Context, profile *models.ConnectionProfile) error {
	return r.base.DB(ctx).Create(profile).Error
}

func (r *repository) FindConnection(ctx context.Context, id uuid.UUID) (*models.Connection, error) {
	return repo.First[models.Connection](ctx, r.base, "id = ?", id)
}

func (r *repository) FindProfile(ctx context.Context, id uuid.UUID) (*models.ConnectionProfile, error) {
	return repo.First[models.ConnectionProfile](ctx, r.base, "id = ?", id)
}

func (r *repository) FindProfileByConnection(ctx context.Context, connectionID uuid.UUID) (*models.ConnectionProfile, error) {
	return repo.First[models.ConnectionProfile](ctx, r.base, "connection_id = ?", connectionID)
}

func (r *repository) ProfileNameTaken(ctx context.Context, ownerID uuid.UUID, name string, excludeID *uuid.UUID) (bool, error) {
	q := r.base.DB(ctx).Model(&models.ConnectionProfile{}).
		Where("owner_tenant_id = ? AND name = ?", ownerID, name)
	if excludeID != nil {
		q = q.Where("id <> ?", *excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) FindPendingByToken(ctx context.Context, token string) (*models.Connection, error) {
	var conn models.Connection
	err := r.base.DB(ctx).
		Where("invitation_token = ? AND status = ?", token, enums.ConnectionStatusPending).
		First(&conn).Error
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

// FindPendingForLink returns PENDING connections carrying the token or addressed
// to the email. Either argument may be empty.
func (r *repository) FindPendingForLink(ctx context.Context, token, email string) ([]models.Connection, error) {
	q := r.base.DB(ctx).Where("status = ?", enums.ConnectionStatusPending)
	token = strings.TrimSpace(token)
	email = strings.ToLower(strings.TrimSpace(email))
	switch {
	case token != "" && email != "":
		q = q.Where("invitation_token = ? OR lower(invitation_email) = ?", token, email)
	case token != "":
		q = q.Where("invitation_token = ?", token)
	case email != "":
		q = q.Where("lower(invitation_email) = ?", email)
	default:
		return nil, nil
	}
	var conns []models.Connection
	err := q.Order("created_at ASC").Order("id ASC").Find(&conns).Error
	return conns, err
}

func (r *repository) TransitionConnection(ctx context.Context, id uuid.UUID, from []enums.ConnectionStatus, updates map[string]any) (bool, error) {
	return repo.TransitionStatus(ctx, r.base, &models.Connection{}, id, from, updates)
}

// RotateInvite is TransitionConnection with an additional retry_count ceiling,
// so two concurrent reinvites cannot both pass the limit.
func (r *repository) RotateInvite(ctx context.Context, id uuid.UUID, from []enums.ConnectionStatus, maxRetries int, updates map[string]any) (bool, error) {
	res := r.base.DB(ctx).
		Model(&models.Connection{}).
		Where("id = ? AND status IN ? AND retry_count < ?", id, from, maxRetries).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) UpdateProfile(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	res := r.base.DB(ctx).Model(&models.ConnectionProfile{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) ListProfiles(ctx context.Context, ownerID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.ConnectionProfile, *pagination.Cursor, error) {
	q := r.base.DB(ctx).Model(&models.ConnectionProfile{}).Where("owner_tenant_id = ?", ownerID)
	q = pagination.After(q, cursor, "created_at", "id")

	var profiles []models.ConnectionProfile
	if err := q.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&profiles).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(profiles, limit, func(p models.ConnectionProfile) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	return page, next, nil
}

func (r *repository) ListIncoming(ctx context.Context, targetID uuid.UUID) ([]IncomingRow, error) {
	var rows []IncomingRow
	err := r.base.DB(ctx).
		Table("connections AS c").
		Select(`c.id AS connection_id, t.id AS requester_id, t.name AS requester_name,
			t.handle AS requester_handle, c.status AS status, c.note AS note, c.created_at AS created_at`).
		Joins("JOIN tenants AS t ON t.id = c.requester_tenant_id").
		Where("c.target_tenant_id = ?", targetID).
		Order("c.created_at DESC").
		Order("c.id DESC").
		Scan(&rows).Error
	return rows, err
}
