package contributions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tracebridge-backend/internal/artifacts"
	"github.com/angelmondragon/tracebridge-backend/internal/clock"
	"github.com/angelmondragon/tracebridge-backend/internal/versions"
	"github.com/angelmondragon/tracebridge-backend/pkg/auth"
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
	entityRequest = "contribution_request"
	entityVersion = "product_version"
	entityComment = "request_comment"

	maxCommentLength = 4000
)

// Service drives contribution requests from assignment to review.
type Service interface {
	Assign(ctx context.Context, actor auth.Actor, productID uuid.UUID, input AssignInput) (*RequestDTO, error)
	GetDetail(ctx context.Context, actor auth.Actor, requestID uuid.UUID) (*RequestDetail, error)
	HandleAction(ctx context.Context, actor auth.Actor, requestID uuid.UUID, input ActionInput) (*RequestDTO, error)
	SaveDraftData(ctx context.Context, actor auth.Actor, requestID uuid.UUID, input DraftInput, uploads map[string]Upload) (*versions.Payload, error)
	ReviewSubmission(ctx context.Context, actor auth.Actor, requestID uuid.UUID, input ReviewInput) (*RequestDTO, error)
	Cancel(ctx context.Context, actor auth.Actor, requestID uuid.UUID, reason string) (*RequestDTO, error)
	AddComment(ctx context.Context, actor auth.Actor, requestID uuid.UUID, body string) (*CommentDTO, error)
	ListForSupplier(ctx context.Context, actor auth.Actor, params pagination.Params) (*InboxList, error)
	CollaborationStatus(ctx context.Context, actor auth.Actor, productID uuid.UUID) (*CollaborationStatus, error)
	LatestVersion(ctx context.Context, actor auth.Actor, productID uuid.UUID) (*versions.Payload, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type artifactStore interface {
	Store(ctx context.Context, tenantID uuid.UUID, fileName, contentType string, body io.Reader) (artifacts.ArtifactRef, error)
	Resolve(ctx context.Context, artifactID, tenantID uuid.UUID) (*artifacts.ArtifactRef, error)
}

type transitionRecorder interface {
	Transition(entity, from, to string)
	Conflict(entity, operation string)
}

// ServiceParams wires the workflow engine. Metrics is optional.
type ServiceParams struct {
	Repo      Repository
	Versions  versions.Repository
	Tx        txRunner
	Artifacts artifactStore
	Outbox    outboxPublisher
	Clock     clock.Clock
	Metrics   transitionRecorder
	Logger    *logger.Logger
}

type service struct {
	repo      Repository
	versions  versions.Repository
	tx        txRunner
	artifacts artifactStore
	outbox    outboxPublisher
	clock     clock.Clock
	metrics   transitionRecorder
	logg      *logger.Logger
}

// NewService validates dependencies and builds the workflow engine.
func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("contribution repository required")
	}
	if p.Versions == nil {
		return nil, fmt.Errorf("version repository required")
	}
	if p.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Artifacts == nil {
		return nil, fmt.Errorf("artifact store required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if p.Clock == nil {
		return nil, fmt.Errorf("clock required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      p.Repo,
		versions:  p.Versions,
		tx:        p.Tx,
		artifacts: p.Artifacts,
		outbox:    p.Outbox,
		clock:     p.Clock,
		metrics:   p.Metrics,
		logg:      p.Logger,
	}, nil
}

func (s *service) Assign(ctx context.Context, actor auth.Actor, productID uuid.UUID, input AssignInput) (*RequestDTO, error) {
	if err := actor.Require(enums.TenantTypeBrand); err != nil {
		return nil, err
	}
	if input.ProfileID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "profile_id is required")
	}
	note := trimmedPtr(input.Note)

	var (
		request *models.ContributionRequest
		version *models.ProductVersion
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		vrepo := s.versions.WithTx(tx)

		product, err := loadOwnedProduct(ctx, repo, actor, productID)
		if err != nil {
			return err
		}
		profile, err := repo.FindProfile(ctx, input.ProfileID)
		if err != nil {
			return lookupErr(err, "profile")
		}
		if profile.OwnerTenantID != actor.TenantID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
		}
		conn, err := repo.FindConnection(ctx, profile.ConnectionID)
		if err != nil {
			return lookupErr(err, "connection")
		}
		if conn.Status != enums.ConnectionStatusActive || conn.TargetTenantID == nil {
			return s.conflict("assign", "connection with %s is %s; only active suppliers can receive requests", profile.Name, conn.Status)
		}

		existing, err := vrepo.ListByProduct(ctx, product.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list product versions")
		}
		next := 1
		if len(existing) > 0 {
			open, err := repo.HasActiveRequestForVersion(ctx, existing[0].ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check open requests")
			}
			if open {
				return duplicateAssignment()
			}
			next = existing[0].VersionSequence + 1
		}

		golden, err := vrepo.LatestApproved(ctx, product.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load approved version")
		}

		now := s.clock.Now()
		name := versions.DefaultName(next)
		if pending := trimmed(product.PendingVersionName); pending != "" {
			name = pending
			if err := repo.ClearPendingVersionName(ctx, product.ID, now); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume pending version name")
			}
		}

		supplierID := *conn.TargetTenantID
		version = versions.Clone(golden, versions.CloneSpec{
			ProductID:  product.ID,
			Sequence:   next,
			Revision:   0,
			SupplierID: &supplierID,
			Name:       name,
		}, s.clock)
		if err := vrepo.Create(ctx, version); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return duplicateAssignment()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create version")
		}

		request = &models.ContributionRequest{
			ID:               s.clock.NewID(),
			ConnectionID:     conn.ID,
			ProductID:        product.ID,
			BrandTenantID:    actor.TenantID,
			SupplierTenantID: supplierID,
			InitialVersionID: version.ID,
			CurrentVersionID: version.ID,
			Status:           enums.RequestStatusSent,
			DueDate:          input.DueDate,
			Note:             note,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := repo.CreateRequest(ctx, request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create request")
		}
		if note != nil {
			if _, err := s.addActivity(ctx, repo, request.ID, actor, enums.CommentKindNote, *note); err != nil {
				return err
			}
		}

		trail := payloads.NewAuditTrail(entityRequest, request.ID, actor.TenantID, enums.AuditActionCreate, map[string]any{
			"product_id":         product.ID,
			"version_id":         version.ID,
			"version_sequence":   version.VersionSequence,
			"supplier_tenant_id": supplierID,
			"cloned_from":        clonedFrom(golden),
		})
		return s.emitRequest(ctx, tx, actor, enums.EventContributionAssigned, request, "", "assign", trail)
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition("", enums.RequestStatusSent)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"request_id":       request.ID.String(),
		"product_id":       request.ProductID.String(),
		"version_id":       version.ID.String(),
		"version_sequence": version.VersionSequence,
	})
	s.logg.Info(logCtx, "contribution request assigned")

	dto := requestFromModel(*request)
	return &dto, nil
}

func (s *service) GetDetail(ctx context.Context, actor auth.Actor, requestID uuid.UUID) (*RequestDetail, error) {
	request, err := s.repo.FindRequest(ctx, requestID)
	if err != nil {
		return nil, lookupErr(err, "request")
	}
	if !participant(request, actor) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
	}
	product, err := s.repo.FindProduct(ctx, request.ProductID)
	if err != nil {
		return nil, lookupErr(err, "product")
	}
	version, err := s.versions.FindWithChildren(ctx, request.CurrentVersionID)
	if err != nil {
		return nil, lookupErr(err, "version")
	}
	comments, err := s.repo.ListComments(ctx, request.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list activity")
	}

	detail := &RequestDetail{
		Request:  requestFromModel(*request),
		Product:  ProductRef{ID: product.ID, SKU: product.SKU, Name: product.Name},
		Version:  versions.SummaryFromModel(*version),
		Activity: make([]CommentDTO, 0, len(comments)),
	}
	for _, c := range comments {
		detail.Activity = append(detail.Activity, commentFromModel(c))
	}
	if request.Status != enums.RequestStatusSent {
		payload := versions.PayloadFromModel(*version)
		detail.Payload = &payload
	}
	return detail, nil
}

func (s *service) HandleAction(ctx context.Context, actor auth.Actor, requestID uuid.UUID, input ActionInput) (*RequestDTO, error) {
	if err := actor.Require(enums.TenantTypeSupplier); err != nil {
		return nil, err
	}
	rule, ok := actionRules[input.Action]
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown action %q", input.Action)
	}
	note := trimmedPtr(input.Note)

	var (
		request     *models.ContributionRequest
		from        enums.RequestStatus
		versionFrom enums.VersionStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		vrepo := s.versions.WithTx(tx)

		loaded, err := s.loadForSupplier(ctx, repo, actor, requestID)
		if err != nil {
			return err
		}
		from = loaded.Status
		if !containsRequest(rule.requestFrom, from) {
			return s.conflict(string(input.Action), "cannot %s a request that is %s", input.Action, from)
		}
		version, err := vrepo.FindByID(ctx, loaded.CurrentVersionID)
		if err != nil {
			return lookupErr(err, "version")
		}
		versionFrom = version.Status
		if !containsVersion(rule.versionFrom, versionFrom) {
			return s.conflict(string(input.Action), "cannot %s while the version is %s", input.Action, versionFrom)
		}

		now := s.clock.Now()
		if err := s.moveRequest(ctx, repo, loaded, from, rule.requestTo, now, nil); err != nil {
			return err
		}
		if err := s.moveVersion(ctx, vrepo, version, rule.versionTo, now); err != nil {
			return err
		}

		if _, err := s.addActivity(ctx, repo, loaded.ID, actor, enums.CommentKindStatusChange, rule.label); err != nil {
			return err
		}
		if note != nil {
			if _, err := s.addActivity(ctx, repo, loaded.ID, actor, enums.CommentKindNote, *note); err != nil {
				return err
			}
		}

		request = loaded
		trail := payloads.NewAuditTrail(entityRequest, loaded.ID, actor.TenantID, enums.AuditActionUpdate, map[string]any{
			"action":         input.Action,
			"old_status":     from,
			"new_status":     rule.requestTo,
			"version_status": rule.versionTo,
		})
		return s.emitRequest(ctx, tx, actor, enums.EventContributionTransition, loaded, from, string(input.Action), trail)
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(from, request.Status)
	logCtx := s.logg.WithTransition(s.logg.WithField(ctx, "request_id", request.ID.String()), entityRequest, string(from), string(request.Status))
	s.logg.Info(logCtx, "contribution request "+string(input.Action))

	dto := requestFromModel(*request)
	return &dto, nil
}

func (s *service) ReviewSubmission(ctx context.Context, actor auth.Actor, requestID uuid.UUID, input ReviewInput) (*RequestDTO, error) {
	if err := actor.Require(enums.TenantTypeBrand); err != nil {
		return nil, err
	}
	comment := trimmedPtr(input.Comment)
	switch input.Action {
	case enums.ReviewActionApprove:
	case enums.ReviewActionRequestChanges:
		if comment == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "a comment is required when requesting changes")
		}
	default:
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown review action %q", input.Action)
	}
	if comment != nil && len(*comment) > maxCommentLength {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "comment must be at most %d characters", maxCommentLength)
	}

	var (
		request  *models.ContributionRequest
		revision *models.ProductVersion
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		vrepo := s.versions.WithTx(tx)

		loaded, err := s.loadForBrand(ctx, repo, actor, requestID)
		if err != nil {
			return err
		}
		if loaded.Status != enums.RequestStatusSubmitted {
			return s.conflict("review", "only submitted requests can be reviewed; request is %s", loaded.Status)
		}
		version, err := vrepo.FindWithChildren(ctx, loaded.CurrentVersionID)
		if err != nil {
			return lookupErr(err, "version")
		}
		if version.Status != enums.VersionStatusSubmitted {
			return s.conflict("review", "version is %s and cannot be reviewed", version.Status)
		}

		now := s.clock.Now()
		changes := map[string]any{"action": input.Action, "old_status": loaded.Status, "version_id": version.ID}
		switch input.Action {
		case enums.ReviewActionApprove:
			if err := s.moveVersion(ctx, vrepo, version, enums.VersionStatusApproved, now); err != nil {
				return err
			}
			if err := s.moveRequest(ctx, repo, loaded, enums.RequestStatusSubmitted, enums.RequestStatusCompleted, now, nil); err != nil {
				return err
			}
			if err := repo.TouchProduct(ctx, loaded.ProductID, now); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch product")
			}
			if _, err := s.addActivity(ctx, repo, loaded.ID, actor, enums.CommentKindStatusChange, "Submission approved"); err != nil {
				return err
			}
			if comment != nil {
				if _, err := s.addActivity(ctx, repo, loaded.ID, actor, enums.CommentKindNote, *comment); err != nil {
					return err
				}
			}
		case enums.ReviewActionRequestChanges:
			if err := s.moveVersion(ctx, vrepo, version, enums.VersionStatusRejected, now); err != nil {
				return err
			}
			revision = versions.Clone(version, versions.CloneSpec{
				ProductID:  version.ProductID,
				Sequence:   version.VersionSequence,
				Revision:   version.Revision + 1,
				SupplierID: version.SupplierTenantID,
				Name:       version.VersionName,
			}, s.clock)
			if err := vrepo.Create(ctx, revision); err != nil {
				if dbpkg.IsUniqueViolation(err, "") {
					return s.conflict("review", "a newer revision already exists")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create revision")
			}
			extra := map[string]any{"current_version_id": revision.ID}
			if err := s.moveRequest(ctx, repo, loaded, enums.RequestStatusSubmitted, enums.RequestStatusChangesRequested, now, extra); err != nil {
				return err
			}
			loaded.CurrentVersionID = revision.ID
			if _, err := s.addActivity(ctx, repo, loaded.ID, actor, enums.CommentKindChangesRequested, *comment); err != nil {
				return err
			}
			changes["revision_id"] = revision.ID
			changes["revision"] = revision.Revision
		}
		changes["new_status"] = loaded.Status

		request = loaded
		trail := payloads.NewAuditTrail(entityRequest, loaded.ID, actor.TenantID, enums.AuditActionUpdate, changes)
		return s.emitRequest(ctx, tx, actor, enums.EventContributionReviewed, loaded, enums.RequestStatusSubmitted, string(input.Action), trail)
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(enums.RequestStatusSubmitted, request.Status)
	logCtx := s.logg.WithTransition(s.logg.WithField(ctx, "request_id", request.ID.String()), entityRequest, string(enums.RequestStatusSubmitted), string(request.Status))
	if revision != nil {
		logCtx = s.logg.WithField(logCtx, "revision", revision.Revision)
	}
	s.logg.Info(logCtx, "submission reviewed")

	dto := requestFromModel(*request)
	return &dto, nil
}

func (s *service) Cancel(ctx context.Context, actor auth.Actor, requestID uuid.UUID, reason string) (*RequestDTO, error) {
	if err := actor.Require(enums.TenantTypeBrand); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a cancellation reason is required")
	}
	if len(reason) > maxCommentLength {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "reason must be at most %d characters", maxCommentLength)
	}

	var (
		request *models.ContributionRequest
		from    enums.RequestStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		vrepo := s.versions.WithTx(tx)

		loaded, err := s.loadForBrand(ctx, repo, actor, requestID)
		if err != nil {
			return err
		}
		from = loaded.Status
		if !containsRequest(cancellableRequestStatuses, from) {
			return s.conflict("cancel", "request is %s and can no longer be cancelled", from)
		}
		version, err := vrepo.FindByID(ctx, loaded.CurrentVersionID)
		if err != nil {
			return lookupErr(err, "version")
		}
		if version.Status == enums.VersionStatusSubmitted || version.Status == enums.VersionStatusApproved {
			return s.conflict("cancel", "version is %s and can no longer be cancelled", version.Status)
		}

		now := s.clock.Now()
		if err := s.moveRequest(ctx, repo, loaded, from, enums.RequestStatusCancelled, now, nil); err != nil {
			return err
		}
		versionFrom := version.Status
		if versionFrom == enums.VersionStatusDraft || versionFrom == enums.VersionStatusRejected {
			if err := s.moveVersion(ctx, vrepo, version, enums.VersionStatusCancelled, now); err != nil {
				return err
			}
		}
		if _, err := s.addActivity(ctx, repo, loaded.ID, actor, enums.CommentKindCancellation, reason); err != nil {
			return err
		}

		request = loaded
		trail := payloads.NewAuditTrail(entityRequest, loaded.ID, actor.TenantID, enums.AuditActionUpdate, map[string]any{
			"action":         "cancel",
			"old_status":     from,
			"new_status":     enums.RequestStatusCancelled,
			"version_status": version.Status,
			"reason":         reason,
		})
		return s.emitRequest(ctx, tx, actor, enums.EventContributionTransition, loaded, from, "cancel", trail)
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(from, enums.RequestStatusCancelled)
	logCtx := s.logg.WithTransition(s.logg.WithField(ctx, "request_id", request.ID.String()), entityRequest, string(from), string(enums.RequestStatusCancelled))
	s.logg.Info(logCtx, "contribution request cancelled")

	dto := requestFromModel(*request)
	return &dto, nil
}

func (s *service) AddComment(ctx context.Context, actor auth.Actor, requestID uuid.UUID, body string) (*CommentDTO, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "comment body is required")
	}
	if len(body) > maxCommentLength {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "comment must be at most %d characters", maxCommentLength)
	}

	var comment *models.RequestComment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		request, err := repo.FindRequest(ctx, requestID)
		if err != nil {
			return lookupErr(err, "request")
		}
		if !participant(request, actor) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
		}
		comment, err = s.addActivity(ctx, repo, request.ID, actor, enums.CommentKindNote, body)
		if err != nil {
			return err
		}
		trail := payloads.NewAuditTrail(entityComment, comment.ID, actor.TenantID, enums.AuditActionCreate, map[string]any{
			"request_id": request.ID,
		})
		return s.emitRequest(ctx, tx, actor, enums.EventContributionCommented, request, "", "comment", trail)
	})
	if err != nil {
		return nil, err
	}
	dto := commentFromModel(*comment)
	return &dto, nil
}

func (s *service) ListForSupplier(ctx context.Context, actor auth.Actor, params pagination.Params) (*InboxList, error) {
	if err := actor.Require(enums.TenantTypeSupplier); err != nil {
		return nil, err
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.ListForSupplier(ctx, actor.TenantID, params.Limit, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list requests")
	}
	out := &InboxList{Items: make([]InboxItem, 0, len(rows)), NextCursor: pagination.Encode(next)}
	for _, row := range rows {
		out.Items = append(out.Items, inboxFromRow(row))
	}
	return out, nil
}

func (s *service) CollaborationStatus(ctx context.Context, actor auth.Actor, productID uuid.UUID) (*CollaborationStatus, error) {
	if err := actor.Require(enums.TenantTypeBrand); err != nil {
		return nil, err
	}
	product, err := loadOwnedProduct(ctx, s.repo, actor, productID)
	if err != nil {
		return nil, err
	}
	out := &CollaborationStatus{ProductID: product.ID}

	existing, err := s.versions.ListByProduct(ctx, product.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list product versions")
	}
	if len(existing) == 0 {
		return out, nil
	}
	summary := versions.SummaryFromModel(existing[0])
	out.LatestVersion = &summary

	request, err := s.repo.LatestRequestForVersion(ctx, existing[0].ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return out, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load latest request")
	}
	dto := requestFromModel(*request)
	out.Request = &dto

	profile, err := s.repo.FindProfileByConnection(ctx, request.ConnectionID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load supplier profile")
	default:
		out.Supplier = &SupplierRef{
			TenantID:    profile.TargetTenantID,
			ProfileID:   profile.ID,
			ProfileName: profile.Name,
			Slug:        profile.Slug,
		}
	}
	return out, nil
}

func (s *service) LatestVersion(ctx context.Context, actor auth.Actor, productID uuid.UUID) (*versions.Payload, error) {
	if err := actor.Require(enums.TenantTypeBrand); err != nil {
		return nil, err
	}
	product, err := loadOwnedProduct(ctx, s.repo, actor, productID)
	if err != nil {
		return nil, err
	}
	existing, err := s.versions.ListByProduct(ctx, product.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list product versions")
	}
	if len(existing) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product has no versions yet")
	}
	version, err := s.versions.FindWithChildren(ctx, existing[0].ID)
	if err != nil {
		return nil, lookupErr(err, "version")
	}
	payload := versions.PayloadFromModel(*version)
	return &payload, nil
}

func loadOwnedProduct(ctx context.Context, repo Repository, actor auth.Actor, productID uuid.UUID) (*models.Product, error) {
	product, err := repo.FindProduct(ctx, productID)
	if err != nil {
		return nil, lookupErr(err, "product")
	}
	if product.TenantID != actor.TenantID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "product belongs to another tenant")
	}
	return product, nil
}

func (s *service) loadForSupplier(ctx context.Context, repo Repository, actor auth.Actor, requestID uuid.UUID) (*models.ContributionRequest, error) {
	request, err := repo.FindRequest(ctx, requestID)
	if err != nil {
		return nil, lookupErr(err, "request")
	}
	if request.SupplierTenantID != actor.TenantID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "request is assigned to another supplier")
	}
	return request, nil
}

func (s *service) loadForBrand(ctx context.Context, repo Repository, actor auth.Actor, requestID uuid.UUID) (*models.ContributionRequest, error) {
	request, err := repo.FindRequest(ctx, requestID)
	if err != nil {
		return nil, lookupErr(err, "request")
	}
	if request.BrandTenantID != actor.TenantID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "request belongs to another brand")
	}
	return request, nil
}

// moveRequest compare-and-sets the request status and applies extra columns.
func (s *service) moveRequest(ctx context.Context, repo Repository, request *models.ContributionRequest, from, to enums.RequestStatus, at time.Time, extra map[string]any) error {
	if !CanTransitionRequest(from, to) {
		return s.conflict("transition", "request cannot move from %s to %s", from, to)
	}
	updates := map[string]any{"status": to, "updated_at": at}
	for k, v := range extra {
		updates[k] = v
	}
	ok, err := repo.TransitionRequest(ctx, request.ID, []enums.RequestStatus{from}, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update request status")
	}
	if !ok {
		return s.conflict("transition", "request was modified concurrently")
	}
	request.Status = to
	request.UpdatedAt = at
	return nil
}

func (s *service) moveVersion(ctx context.Context, vrepo versions.Repository, version *models.ProductVersion, to enums.VersionStatus, at time.Time) error {
	from := version.Status
	if !CanTransitionVersion(from, to) {
		return s.conflict("transition", "version cannot move from %s to %s", from, to)
	}
	ok, err := vrepo.TransitionStatus(ctx, version.ID, []enums.VersionStatus{from}, to, at)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update version status")
	}
	if !ok {
		return s.conflict("transition", "version was modified concurrently")
	}
	version.Status = to
	version.UpdatedAt = at
	if s.metrics != nil {
		s.metrics.Transition(entityVersion, string(from), string(to))
	}
	return nil
}

func (s *service) addActivity(ctx context.Context, repo Repository, requestID uuid.UUID, actor auth.Actor, kind enums.CommentKind, body string) (*models.RequestComment, error) {
	comment := &models.RequestComment{
		ID:             s.clock.NewID(),
		RequestID:      requestID,
		AuthorUserID:   actor.UserRef(),
		AuthorTenantID: actor.TenantID,
		Kind:           kind,
		Body:           body,
		CreatedAt:      s.clock.Now(),
	}
	if err := repo.AddComment(ctx, comment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record activity")
	}
	return comment, nil
}

func (s *service) emitRequest(ctx context.Context, tx *gorm.DB, actor auth.Actor, eventType enums.OutboxEventType, request *models.ContributionRequest, from enums.RequestStatus, action string, trail payloads.AuditTrail) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateContributionRequest,
		AggregateID:   request.ID,
		Actor:         actor.OutboxRef(),
		OccurredAt:    s.clock.Now(),
		Data: payloads.ContributionEvent{
			AuditTrail:       trail,
			RequestID:        request.ID,
			ProductID:        request.ProductID,
			VersionID:        request.CurrentVersionID,
			BrandTenantID:    request.BrandTenantID,
			SupplierTenantID: request.SupplierTenantID,
			FromStatus:       string(from),
			ToStatus:         string(request.Status),
			Action:           action,
		},
	})
}

func (s *service) conflict(operation, format string, args ...any) error {
	if s.metrics != nil {
		s.metrics.Conflict(entityRequest, operation)
	}
	return pkgerrors.Newf(pkgerrors.CodeStateConflict, format, args...)
}

func (s *service) recordTransition(from, to enums.RequestStatus) {
	if s.metrics != nil {
		s.metrics.Transition(entityRequest, string(from), string(to))
	}
}

func participant(request *models.ContributionRequest, actor auth.Actor) bool {
	return actor.TenantID != uuid.Nil &&
		(request.BrandTenantID == actor.TenantID || request.SupplierTenantID == actor.TenantID)
}

func clonedFrom(golden *models.ProductVersion) any {
	if golden == nil {
		return nil
	}
	return golden.ID
}

func duplicateAssignment() error {
	return pkgerrors.New(pkgerrors.CodeConflict, "product already has an open contribution request")
}

func lookupErr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "%s not found", what)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+what)
}

func trimmed(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

func trimmedPtr(value *string) *string {
	v := trimmed(value)
	if v == "" {
		return nil
	}
	return &v
}
