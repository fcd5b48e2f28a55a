package connections

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tracebridge-backend/internal/clock"
	"github.com/angelmondragon/tracebridge-backend/internal/directory"
	"github.com/angelmondragon/tracebridge-backend/pkg/auth"
	"github.com/angelmondragon/tracebridge-backend/pkg/config"
	dbpkg "github.com/angelmondragon/tracebridge-backend/pkg/db"
	"github.com/angelmondragon/tracebridge-backend/pkg/db/models"
	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tracebridge-backend/pkg/errors"
	"github.com/angelmondragon/tracebridge-backend/pkg/logger"
	"github.com/angelmondragon/tracebridge-backend/pkg/outbox"
	"github.com/angelmondragon/tracebridge-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/tracebridge-backend/pkg/pagination"
)

const (
	entityConnection = "connection"
	entityProfile    = "connection_profile"
)

// Service manages the brand to supplier handshake and the brand's address book.
type Service interface {
	Initiate(ctx context.Context, actor auth.Actor, input InitiateInput) (*ProfileDTO, error)
	LinkOnRegistration(ctx context.Context, tenantID uuid.UUID, token, email string) (int, error)
	Respond(ctx context.Context, actor auth.Actor, connectionID uuid.UUID, response enums.ConnectionResponse) (*ConnectionDTO, error)
	Reinvite(ctx context.Context, actor auth.Actor, profileID uuid.UUID, input ReinviteInput) (*ProfileDTO, error)
	Disconnect(ctx context.Context, actor auth.Actor, profileID uuid.UUID) (*ProfileDTO, error)
	ValidateInviteToken(ctx context.Context, token string) (*InviteDetails, error)
	ListProfiles(ctx context.Context, actor auth.Actor, params pagination.Params) (*ProfileList, error)
	GetProfile(ctx context.Context, actor auth.Actor, profileID uuid.UUID) (*ProfileDTO, error)
	UpdateProfile(ctx context.Context, actor auth.Actor, profileID uuid.UUID, input UpdateProfileInput) (*ProfileDTO, error)
	ListIncoming(ctx context.Context, actor auth.Actor) ([]IncomingConnection, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type tenantDirectory interface {
	ResolveByHandle(ctx context.Context, handle string) (*directory.Tenant, error)
	GetByID(ctx context.Context, id uuid.UUID) (*directory.Tenant, error)
}

type inviteLinker interface {
	InviteLink(token string) string
}

type rateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type transitionRecorder interface {
	Transition(entity, from, to string)
	Conflict(entity, operation string)
}

// ServiceParams wires the connection service. Limiter and Metrics are optional.
type ServiceParams struct {
	Repo      Repository
	Tx        txRunner
	Directory tenantDirectory
	Outbox    outboxPublisher
	Clock     clock.Clock
	Links     inviteLinker
	Limiter   rateLimiter
	Metrics   transitionRecorder
	Logger    *logger.Logger
	Workflow  config.WorkflowConfig
}

type service struct {
	repo      Repository
	tx        txRunner
	directory tenantDirectory
	outbox    outboxPublisher
	clock     clock.Clock
	links     inviteLinker
	limiter   rateLimiter
	metrics   transitionRecorder
	logg      *logger.Logger
	workflow  config.WorkflowConfig
}

// NewService validates dependencies and builds the connection service.
func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("connection repository required")
	}
	if p.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Directory == nil {
		return nil, fmt.Errorf("tenant directory required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if p.Clock == nil {
		return nil, fmt.Errorf("clock required")
	}
	if p.Links == nil {
		return nil, fmt.Errorf("invite link builder required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.Workflow.MaxReinvites <= 0 {
		p.Workflow.MaxReinvites = 3
	}
	return &service{
		repo:      p.Repo,
		tx:        p.Tx,
		directory: p.Directory,
		outbox:    p.Outbox,
		clock:     p.Clock,
		links:     p.Links,
		limiter:   p.Limiter,
		metrics:   p.Metrics,
		logg:      p.Logger,
		workflow:  p.Workflow,
	}, nil
}

func (s *service) Initiate(ctx context.Context, actor auth.Actor, input InitiateInput) (*ProfileDTO, error) {
	if err := actor.Require(enums.TenantTypeBrand); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	handle := trimmed(input.TargetHandle)
	email := normalizeEmail(input.InviteEmail)
	if (handle == "") == (email == "") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "exactly one of target handle or invite email is required")
	}

	kind := enums.RelationshipKindSupplier
	var (
		target      *directory.Tenant
		inviteEmail string
	)
	if handle != "" {
		resolved, err := s.directory.ResolveByHandle(ctx, handle)
		if err != nil {
			return nil, err
		}
		if resolved.Type != kind.TargetTenantType() {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "tenant %s is not a %s", resolved.Handle, kind.TargetTenantType())
		}
		if resolved.ID == actor.TenantID {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot connect to your own tenant")
		}
		target = resolved
		inviteEmail = normalizeEmail(input.ContactEmail)
	} else {
		if !validEmail(email) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invite email is invalid")
		}
		inviteEmail = email
	}

	var brand *directory.Tenant
	if inviteEmail != "" {
		if err := s.allowInvite(ctx, actor.TenantID); err != nil {
			return nil, err
		}
		var err error
		if brand, err = s.directory.GetByID(ctx, actor.TenantID); err != nil {
			return nil, err
		}
	}

	token, err := s.clock.NewToken()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate invitation token")
	}
	now := s.clock.Now()

	conn := models.Connection{
		ID:                s.clock.NewID(),
		RequesterTenantID: actor.TenantID,
		Kind:              kind,
		Status:            enums.ConnectionStatusPending,
		InvitationToken:   &token,
		InvitationEmail:   optional(inviteEmail),
		Note:              trimmedPtr(input.Note),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	var slug *string
	if target != nil {
		targetID := target.ID
		conn.TargetTenantID = &targetID
		targetHandle := target.Handle
		slug = &targetHandle
	}

	profile := models.ConnectionProfile{
		ID:              s.clock.NewID(),
		OwnerTenantID:   actor.TenantID,
		ConnectionID:    conn.ID,
		Name:            name,
		Description:     trimmedPtr(input.Description),
		ContactName:     trimmedPtr(input.ContactName),
		ContactEmail:    optional(normalizeEmail(input.ContactEmail)),
		ContactPhone:    trimmedPtr(input.ContactPhone),
		LocationCountry: trimmedPtr(input.LocationCountry),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	mirrorOnto(&profile, conn, slug)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		taken, err := repo.ProfileNameTaken(ctx, actor.TenantID, name, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check profile name")
		}
		if taken {
			return duplicateName(name)
		}
		if err := repo.CreateConnection(ctx, &conn); err != nil {
			return mapWriteErr(err, name, "create connection")
		}
		if err := repo.CreateProfile(ctx, &profile); err != nil {
			return mapWriteErr(err, name, "create connection profile")
		}

		trail := payloads.NewAuditTrail(entityProfile, profile.ID, actor.TenantID, enums.AuditActionCreate, map[string]any{
			"name":              name,
			"connection_status": conn.Status,
			"target_handle":     handle,
			"invite_email":      inviteEmail,
		})
		if err := s.emitConnection(ctx, tx, actor.OutboxRef(), enums.EventConnectionInitiated, &conn, profile.ID, "", trail); err != nil {
			return err
		}
		if inviteEmail != "" {
			return s.emitInvite(ctx, tx, actor.OutboxRef(), &conn, brand.Name, false)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition("", conn.Status)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"connection_id": conn.ID.String(),
		"profile_id":    profile.ID.String(),
		"by_email":      handle == "",
	})
	s.logg.Info(logCtx, "connection initiated")

	dto := ProfileFromModel(profile)
	return &dto, nil
}

func (s *service) LinkOnRegistration(ctx context.Context, tenantID uuid.UUID, token, email string) (int, error) {
	token = strings.TrimSpace(token)
	email = strings.ToLower(strings.TrimSpace(email))
	if tenantID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	if token == "" && email == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "token or email is required")
	}
	tenant, err := s.directory.GetByID(ctx, tenantID)
	if err != nil {
		return 0, err
	}

	linked := 0
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		pending, err := repo.FindPendingForLink(ctx, token, email)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find pending invitations")
		}
		for i := range pending {
			conn := pending[i]
			if conn.TargetTenantID != nil && *conn.TargetTenantID != tenantID {
				continue
			}
			if conn.RequesterTenantID == tenantID {
				continue
			}
			now := s.clock.Now()
			ok, err := repo.TransitionConnection(ctx, conn.ID, []enums.ConnectionStatus{enums.ConnectionStatusPending}, map[string]any{
				"target_tenant_id": tenantID,
				"updated_at":       now,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link connection")
			}
			if !ok {
				continue
			}
			id := tenantID
			conn.TargetTenantID = &id
			conn.UpdatedAt = now

			profile, err := s.syncProfile(ctx, repo, &conn, &tenant.Handle)
			if err != nil {
				return err
			}
			trail := payloads.NewAuditTrail(entityConnection, conn.ID, tenantID, enums.AuditActionUpdate, map[string]any{
				"target_tenant_id": tenantID,
			})
			actorRef := &outbox.ActorRef{TenantID: tenantID, TenantType: tenant.Type}
			if err := s.emitConnectionOnce(ctx, tx, actorRef, &conn, profile.ID, trail); err != nil {
				return err
			}
			linked++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if linked > 0 {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"tenant_id": tenantID.String(),
			"linked":    linked,
		})
		s.logg.Info(logCtx, "pending invitations linked to new tenant")
	}
	return linked, nil
}

func (s *service) Respond(ctx context.Context, actor auth.Actor, connectionID uuid.UUID, response enums.ConnectionResponse) (*ConnectionDTO, error) {
	if err := actor.Require(""); err != nil {
		return nil, err
	}
	if !response.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "response must be %q or %q", enums.ConnectionResponseAccept, enums.ConnectionResponseDecline)
	}
	next := enums.ConnectionStatusRejected
	if response == enums.ConnectionResponseAccept {
		next = enums.ConnectionStatusActive
	}

	responder, err := s.directory.GetByID(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}

	var (
		conn *models.Connection
		from enums.ConnectionStatus
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		conn, err = repo.FindConnection(ctx, connectionID)
		if err != nil {
			return lookupErr(err, "connection")
		}
		if conn.TargetTenantID == nil || *conn.TargetTenantID != actor.TenantID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the invited supplier can respond to this connection")
		}
		from = conn.Status
		if from != enums.ConnectionStatusPending || !CanTransition(from, next) {
			return s.conflict("respond", "connection is %s and can no longer be answered", from)
		}

		now := s.clock.Now()
		ok, err := repo.TransitionConnection(ctx, conn.ID, []enums.ConnectionStatus{enums.ConnectionStatusPending}, map[string]any{
			"status":           next,
			"invitation_token": nil,
			"updated_at":       now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update connection status")
		}
		if !ok {
			return s.conflict("respond", "connection was answered concurrently")
		}
		conn.Status = next
		conn.InvitationToken = nil
		conn.UpdatedAt = now

		profile, err := s.syncProfile(ctx, repo, conn, &responder.Handle)
		if err != nil {
			return err
		}
		trail := payloads.NewAuditTrail(entityConnection, conn.ID, actor.TenantID, enums.AuditActionUpdate, map[string]any{
			"old_status": from,
			"new_status": next,
		})
		return s.emitConnection(ctx, tx, actor.OutboxRef(), enums.EventConnectionResponded, conn, profile.ID, from, trail)
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(from, next)
	logCtx := s.logg.WithTransition(s.logg.WithField(ctx, "connection_id", conn.ID.String()), entityConnection, string(from), string(next))
	s.logg.Info(logCtx, "connection answered")

	dto := connectionFromModel(*conn)
	return &dto, nil
}

func (s *service) Reinvite(ctx context.Context, actor auth.Actor, profileID uuid.UUID, input ReinviteInput) (*ProfileDTO, error) {
	if err := actor.Require(enums.TenantTypeBrand); err != nil {
		return nil, err
	}
	email := normalizeEmail(input.Email)
	if input.Email != nil && !validEmail(email) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is invalid")
	}
	// Rejections are settled before a rate limit slot is spent.
	if _, conn, err := s.loadOwned(ctx, s.repo, actor, profileID); err != nil {
		return nil, err
	} else if err := s.reinvitable(conn); err != nil {
		return nil, err
	}
	if err := s.allowInvite(ctx, actor.TenantID); err != nil {
		return nil, err
	}
	brand, err := s.directory.GetByID(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}
	token, err := s.clock.NewToken()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate invitation token")
	}

	var (
		profile *models.ConnectionProfile
		from    enums.ConnectionStatus
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		owned, conn, err := s.loadOwned(ctx, repo, actor, profileID)
		if err != nil {
			return err
		}
		from = conn.Status
		if err := s.reinvitable(conn); err != nil {
			return err
		}
		if email != "" {
			conn.InvitationEmail = &email
		}
		if conn.InvitationEmail == nil && conn.TargetTenantID == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "an email is required to reinvite an unregistered supplier")
		}
		if note := trimmedPtr(input.Note); note != nil {
			conn.Note = note
		}

		now := s.clock.Now()
		updates := map[string]any{
			"status":           enums.ConnectionStatusPending,
			"invitation_token": token,
			"invitation_email": conn.InvitationEmail,
			"note":             conn.Note,
			"retry_count":      conn.RetryCount + 1,
			"updated_at":       now,
		}
		ok, err := repo.RotateInvite(ctx, conn.ID, []enums.ConnectionStatus{enums.ConnectionStatusPending, enums.ConnectionStatusRejected}, s.workflow.MaxReinvites, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate invitation")
		}
		if !ok {
			return s.conflict("reinvite", "connection changed concurrently")
		}
		conn.Status = enums.ConnectionStatusPending
		conn.InvitationToken = &token
		conn.RetryCount++
		conn.UpdatedAt = now

		profile, err = s.syncProfile(ctx, repo, conn, owned.Slug)
		if err != nil {
			return err
		}

		trail := payloads.NewAuditTrail(entityConnection, conn.ID, actor.TenantID, enums.AuditActionUpdate, map[string]any{
			"old_status":  from,
			"new_status":  conn.Status,
			"retry_count": conn.RetryCount,
		})
		if err := s.emitConnection(ctx, tx, actor.OutboxRef(), enums.EventConnectionReinvited, conn, profile.ID, from, trail); err != nil {
			return err
		}
		if conn.InvitationEmail != nil {
			return s.emitInvite(ctx, tx, actor.OutboxRef(), conn, brand.Name, true)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(from, enums.ConnectionStatusPending)
	logCtx := s.logg.WithTransition(s.logg.WithField(ctx, "connection_id", profile.ConnectionID.String()), entityConnection, string(from), string(enums.ConnectionStatusPending))
	s.logg.Info(logCtx, "connection reinvited")

	dto := ProfileFromModel(*profile)
	return &dto, nil
}

func (s *service) Disconnect(ctx context.Context, actor auth.Actor, profileID uuid.UUID) (*ProfileDTO, error) {
	if err := actor.Require(enums.TenantTypeBrand); err != nil {
		return nil, err
	}

	var (
		profile *models.ConnectionProfile
		from    enums.ConnectionStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		owned, conn, err := s.loadOwned(ctx, repo, actor, profileID)
		if err != nil {
			return err
		}
		from = conn.Status
		if !CanTransition(from, enums.ConnectionStatusSuspended) {
			return s.conflict("disconnect", "connection is already %s", from)
		}

		now := s.clock.Now()
		ok, err := repo.TransitionConnection(ctx, conn.ID, sourcesFor(enums.ConnectionStatusSuspended), map[string]any{
			"status":           enums.ConnectionStatusSuspended,
			"invitation_token": nil,
			"updated_at":       now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "suspend connection")
		}
		if !ok {
			return s.conflict("disconnect", "connection changed concurrently")
		}
		conn.Status = enums.ConnectionStatusSuspended
		conn.InvitationToken = nil
		conn.UpdatedAt = now

		profile, err = s.syncProfile(ctx, repo, conn, owned.Slug)
		if err != nil {
			return err
		}
		trail := payloads.NewAuditTrail(entityProfile, profile.ID, actor.TenantID, enums.AuditActionUpdate, map[string]any{
			"old_status": from,
			"new_status": conn.Status,
		})
		return s.emitConnection(ctx, tx, actor.OutboxRef(), enums.EventConnectionSuspended, conn, profile.ID, from, trail)
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(from, enums.ConnectionStatusSuspended)
	logCtx := s.logg.WithTransition(s.logg.WithField(ctx, "connection_id", profile.ConnectionID.String()), entityConnection, string(from), string(enums.ConnectionStatusSuspended))
	s.logg.Info(logCtx, "connection suspended")

	dto := ProfileFromModel(*profile)
	return &dto, nil
}

func (s *service) ValidateInviteToken(ctx context.Context, token string) (*InviteDetails, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "token is required")
	}
	conn, err := s.repo.FindPendingByToken(ctx, token)
	if err != nil {
		return nil, lookupErr(err, "invitation")
	}
	brand, err := s.directory.GetByID(ctx, conn.RequesterTenantID)
	if err != nil {
		return nil, err
	}
	return &InviteDetails{
		ConnectionID:    conn.ID,
		BrandName:       brand.Name,
		BrandHandle:     brand.Handle,
		InvitationEmail: conn.InvitationEmail,
		Note:            conn.Note,
	}, nil
}

func (s *service) ListProfiles(ctx context.Context, actor auth.Actor, params pagination.Params) (*ProfileList, error) {
	if err := actor.Require(enums.TenantTypeBrand); err != nil {
		return nil, err
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.ListProfiles(ctx, actor.TenantID, params.Limit, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list profiles")
	}
	out := &ProfileList{
		Profiles:   make([]ProfileDTO, 0, len(rows)),
		NextCursor: pagination.Encode(next),
	}
	for _, row := range rows {
		out.Profiles = append(out.Profiles, ProfileFromModel(row))
	}
	return out, nil
}

func (s *service) GetProfile(ctx context.Context, actor auth.Actor, profileID uuid.UUID) (*ProfileDTO, error) {
	if err := actor.Require(enums.TenantTypeBrand); err != nil {
		return nil, err
	}
	profile, err := s.repo.FindProfile(ctx, profileID)
	if err != nil {
		return nil, lookupErr(err, "profile")
	}
	if profile.OwnerTenantID != actor.TenantID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
	}
	dto := ProfileFromModel(*profile)
	return &dto, nil
}

func (s *service) UpdateProfile(ctx context.Context, actor auth.Actor, profileID uuid.UUID, input UpdateProfileInput) (*ProfileDTO, error) {
	if err := actor.Require(enums.TenantTypeBrand); err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		updates["name"] = name
	}
	if input.ContactEmail != nil {
		email := normalizeEmail(input.ContactEmail)
		if email != "" && !validEmail(email) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "contact email is invalid")
		}
		updates["contact_email"] = optional(email)
	}
	setOptional(updates, "description", input.Description)
	setOptional(updates, "contact_name", input.ContactName)
	setOptional(updates, "contact_phone", input.ContactPhone)
	setOptional(updates, "location_country", input.LocationCountry)

	var profile *models.ConnectionProfile
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindProfile(ctx, profileID)
		if err != nil {
			return lookupErr(err, "profile")
		}
		if current.OwnerTenantID != actor.TenantID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
		}
		if len(updates) == 0 {
			profile = current
			return nil
		}
		if name, ok := updates["name"].(string); ok && name != current.Name {
			taken, err := repo.ProfileNameTaken(ctx, actor.TenantID, name, &current.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check profile name")
			}
			if taken {
				return duplicateName(name)
			}
		}
		updates["updated_at"] = s.clock.Now()
		if err := repo.UpdateProfile(ctx, current.ID, updates); err != nil {
			return mapWriteErr(err, current.Name, "update profile")
		}
		if profile, err = repo.FindProfile(ctx, current.ID); err != nil {
			return lookupErr(err, "profile")
		}

		changes := make(map[string]any, len(updates))
		for k, v := range updates {
			if k != "updated_at" {
				changes[k] = v
			}
		}
		trail := payloads.NewAuditTrail(entityProfile, profile.ID, actor.TenantID, enums.AuditActionUpdate, changes)
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventProfileUpdated,
			AggregateType: enums.AggregateConnectionProfile,
			AggregateID:   profile.ID,
			Actor:         actor.OutboxRef(),
			OccurredAt:    s.clock.Now(),
			Data: payloads.ConnectionEvent{
				AuditTrail:        trail,
				ConnectionID:      profile.ConnectionID,
				ProfileID:         profile.ID,
				RequesterTenantID: profile.OwnerTenantID,
				TargetTenantID:    profile.TargetTenantID,
				ToStatus:          string(profile.ConnectionStatus),
				RetryCount:        profile.RetryCount,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	dto := ProfileFromModel(*profile)
	return &dto, nil
}

func (s *service) ListIncoming(ctx context.Context, actor auth.Actor) ([]IncomingConnection, error) {
	if err := actor.Require(enums.TenantTypeSupplier); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListIncoming(ctx, actor.TenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list incoming connections")
	}
	out := make([]IncomingConnection, 0, len(rows))
	for _, row := range rows {
		out = append(out, incomingFromRow(row))
	}
	return out, nil
}

// loadOwned returns the actor's profile and its connection. Profiles owned by
// other tenants are reported as missing.
func (s *service) loadOwned(ctx context.Context, repo Repository, actor auth.Actor, profileID uuid.UUID) (*models.ConnectionProfile, *models.Connection, error) {
	profile, err := repo.FindProfile(ctx, profileID)
	if err != nil {
		return nil, nil, lookupErr(err, "profile")
	}
	if profile.OwnerTenantID != actor.TenantID {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
	}
	conn, err := repo.FindConnection(ctx, profile.ConnectionID)
	if err != nil {
		return nil, nil, lookupErr(err, "connection")
	}
	return profile, conn, nil
}

// syncProfile rewrites the mirrored profile columns from conn. slug is kept
// when nil.
func (s *service) syncProfile(ctx context.Context, repo Repository, conn *models.Connection, slug *string) (*models.ConnectionProfile, error) {
	profile, err := repo.FindProfileByConnection(ctx, conn.ID)
	if err != nil {
		return nil, lookupErr(err, "profile")
	}
	mirrorOnto(profile, *conn, slug)
	profile.UpdatedAt = conn.UpdatedAt
	if err := repo.UpdateProfile(ctx, profile.ID, mirrorUpdates(profile)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mirror connection onto profile")
	}
	return profile, nil
}

func (s *service) emitConnection(ctx context.Context, tx *gorm.DB, actor *outbox.ActorRef, eventType enums.OutboxEventType, conn *models.Connection, profileID uuid.UUID, from enums.ConnectionStatus, trail payloads.AuditTrail) error {
	return s.outbox.Emit(ctx, tx, connectionEvent(eventType, conn, profileID, from, actor, trail, s.clock))
}

// emitConnectionOnce guards the linked event so a retried registration hook does
// not queue it twice.
func (s *service) emitConnectionOnce(ctx context.Context, tx *gorm.DB, actor *outbox.ActorRef, conn *models.Connection, profileID uuid.UUID, trail payloads.AuditTrail) error {
	return s.outbox.EmitIfNotExists(ctx, tx, connectionEvent(enums.EventConnectionLinked, conn, profileID, conn.Status, actor, trail, s.clock))
}

func connectionEvent(eventType enums.OutboxEventType, conn *models.Connection, profileID uuid.UUID, from enums.ConnectionStatus, actor *outbox.ActorRef, trail payloads.AuditTrail, c clock.Clock) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateConnection,
		AggregateID:   conn.ID,
		Actor:         actor,
		OccurredAt:    c.Now(),
		Data: payloads.ConnectionEvent{
			AuditTrail:        trail,
			ConnectionID:      conn.ID,
			ProfileID:         profileID,
			RequesterTenantID: conn.RequesterTenantID,
			TargetTenantID:    conn.TargetTenantID,
			FromStatus:        string(from),
			ToStatus:          string(conn.Status),
			RetryCount:        conn.RetryCount,
		},
	}
}

func (s *service) emitInvite(ctx context.Context, tx *gorm.DB, actor *outbox.ActorRef, conn *models.Connection, brandName string, reinvite bool) error {
	if conn.InvitationToken == nil || conn.InvitationEmail == nil {
		return nil
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventConnectionInviteRequest,
		AggregateType: enums.AggregateConnection,
		AggregateID:   conn.ID,
		Actor:         actor,
		OccurredAt:    s.clock.Now(),
		Data: payloads.InviteRequestedEvent{
			ConnectionID: conn.ID,
			BrandName:    brandName,
			Email:        *conn.InvitationEmail,
			Link:         s.links.InviteLink(*conn.InvitationToken),
			Note:         conn.Note,
			Reinvite:     reinvite,
		},
	})
}

// allowInvite applies the per-brand invitation rate limit. Limiter failures
// are logged and the invite is let through.
func (s *service) reinvitable(conn *models.Connection) error {
	if !CanTransition(conn.Status, enums.ConnectionStatusPending) {
		return s.conflict("reinvite", "cannot reinvite a %s connection", conn.Status)
	}
	if conn.RetryCount >= s.workflow.MaxReinvites {
		return pkgerrors.Newf(pkgerrors.CodeLimitExceeded, "reinvite limit of %d reached", s.workflow.MaxReinvites)
	}
	return nil
}

func (s *service) allowInvite(ctx context.Context, tenantID uuid.UUID) error {
	if s.limiter == nil || s.workflow.InviteRateLimit <= 0 {
		return nil
	}
	allowed, _, err := s.limiter.FixedWindowAllow(ctx, "invites:"+tenantID.String(), s.workflow.InviteRateLimit, s.workflow.InviteRateWindow)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "invite rate limiter unavailable")
		return nil
	}
	if !allowed {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "too many invitations, try again later")
	}
	return nil
}

func (s *service) conflict(operation, format string, args ...any) error {
	if s.metrics != nil {
		s.metrics.Conflict(entityConnection, operation)
	}
	return pkgerrors.Newf(pkgerrors.CodeStateConflict, format, args...)
}

func (s *service) recordTransition(from, to enums.ConnectionStatus) {
	if s.metrics != nil {
		s.metrics.Transition(entityConnection, string(from), string(to))
	}
}

// mirrorOnto copies the denormalized connection columns onto profile.
func mirrorOnto(profile *models.ConnectionProfile, conn models.Connection, slug *string) {
	profile.TargetTenantID = conn.TargetTenantID
	profile.ConnectionStatus = conn.Status
	profile.RetryCount = conn.RetryCount
	if slug != nil {
		value := *slug
		profile.Slug = &value
	}
}

func mirrorUpdates(profile *models.ConnectionProfile) map[string]any {
	return map[string]any{
		"target_tenant_id":  profile.TargetTenantID,
		"connection_status": profile.ConnectionStatus,
		"slug":              profile.Slug,
		"retry_count":       profile.RetryCount,
		"updated_at":        profile.UpdatedAt,
	}
}

func lookupErr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "%s not found", what)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+what)
}

func mapWriteErr(err error, name, action string) error {
	if dbpkg.IsUniqueViolation(err, "") {
		return duplicateName(name)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

func duplicateName(name string) error {
	return pkgerrors.Newf(pkgerrors.CodeConflict, "a supplier named %q already exists in your address book", name)
}

func setOptional(updates map[string]any, column string, value *string) {
	if value == nil {
		return
	}
	updates[column] = trimmedPtr(value)
}

func trimmed(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

func trimmedPtr(value *string) *string {
	return optional(trimmed(value))
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func normalizeEmail(value *string) string {
	return strings.ToLower(trimmed(value))
}

var emailRules = validator.New(validator.WithRequiredStructEnabled())

// validEmail applies the same rule as the request validators.
func validEmail(email string) bool {
	return emailRules.Var(email, "required,email") == nil
}
