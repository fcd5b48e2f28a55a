package certificates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tracebridge-backend/internal/clock"
	"github.com/angelmondragon/tracebridge-backend/pkg/auth"
	"github.com/angelmondragon/tracebridge-backend/pkg/db"
	"github.com/angelmondragon/tracebridge-backend/pkg/db/models"
	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tracebridge-backend/pkg/errors"
	"github.com/angelmondragon/tracebridge-backend/pkg/logger"
)

const (
	minNameLength     = 2
	maxNameLength     = 150
	maxIssuerLength   = 150
	maxDescriptionLen = 500

	uniqueTenantName = "ux_certificate_definitions_tenant_name"
)

// Service manages the certificate definition catalogue. Every tenant reads
// the system entries plus its own; only suppliers write custom ones.
type Service interface {
	List(ctx context.Context, actor auth.Actor, query string) ([]DefinitionDTO, error)
	Create(ctx context.Context, actor auth.Actor, input CreateInput) (*DefinitionDTO, error)
	Update(ctx context.Context, actor auth.Actor, id uuid.UUID, input UpdateInput) (*DefinitionDTO, error)
	Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo  Repository
	tx    txRunner
	clock clock.Clock
	logg  *logger.Logger
}

// NewService builds the catalogue service.
func NewService(repo Repository, tx txRunner, c clock.Clock, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("certificate repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if c == nil {
		return nil, fmt.Errorf("clock required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, clock: c, logg: logg}, nil
}

func (s *service) List(ctx context.Context, actor auth.Actor, query string) ([]DefinitionDTO, error) {
	if err := actor.Require(""); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListVisible(ctx, actor.TenantID, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list certificate definitions")
	}
	out := make([]DefinitionDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapDefinition(row))
	}
	return out, nil
}

func (s *service) Create(ctx context.Context, actor auth.Actor, input CreateInput) (*DefinitionDTO, error) {
	if err := actor.Require(enums.TenantTypeSupplier); err != nil {
		return nil, err
	}
	name, err := cleanName(input.Name)
	if err != nil {
		return nil, err
	}
	issuer, description, err := cleanDetails(input.Issuer, input.Description)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	tenantID := actor.TenantID
	def := models.CertificateDefinition{
		ID:          s.clock.NewID(),
		TenantID:    &tenantID,
		Name:        name,
		Issuer:      issuer,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := s.ensureNameFree(ctx, repo, tenantID, name, uuid.Nil); err != nil {
			return err
		}
		if err := repo.Create(ctx, &def); err != nil {
			if db.IsUniqueViolation(err, uniqueTenantName) {
				return nameTaken(name, false)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create certificate definition")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.fields(ctx, actor, def.ID), "certificate definition created")
	dto := mapDefinition(def)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, actor auth.Actor, id uuid.UUID, input UpdateInput) (*DefinitionDTO, error) {
	if err := actor.Require(enums.TenantTypeSupplier); err != nil {
		return nil, err
	}
	var (
		name string
		err  error
	)
	if input.Name != nil {
		if name, err = cleanName(*input.Name); err != nil {
			return nil, err
		}
	}
	issuer, description, err := cleanDetails(input.Issuer, input.Description)
	if err != nil {
		return nil, err
	}

	var def *models.CertificateDefinition
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		def, err = s.loadOwned(ctx, repo, actor, id, "edit")
		if err != nil {
			return err
		}
		if name != "" && name != def.Name {
			if err := s.ensureNameFree(ctx, repo, actor.TenantID, name, def.ID); err != nil {
				return err
			}
			def.Name = name
		}
		if input.Issuer != nil {
			def.Issuer = issuer
		}
		if input.Description != nil {
			def.Description = description
		}
		def.UpdatedAt = s.clock.Now()
		if err := repo.Update(ctx, def); err != nil {
			if db.IsUniqueViolation(err, uniqueTenantName) {
				return nameTaken(def.Name, false)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update certificate definition")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.fields(ctx, actor, def.ID), "certificate definition updated")
	dto := mapDefinition(*def)
	return &dto, nil
}

// Delete removes a custom definition no version certificate references.
func (s *service) Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	if err := actor.Require(enums.TenantTypeSupplier); err != nil {
		return err
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		def, err := s.loadOwned(ctx, repo, actor, id, "delete")
		if err != nil {
			return err
		}
		used, err := repo.InUse(ctx, def.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check certificate definition usage")
		}
		if used {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "certificate definition %q is used by product versions", def.Name)
		}
		if err := repo.Delete(ctx, def.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete certificate definition")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logg.Info(s.fields(ctx, actor, id), "certificate definition deleted")
	return nil
}

// loadOwned hides other tenants' entries and refuses writes to system ones.
func (s *service) loadOwned(ctx context.Context, repo Repository, actor auth.Actor, id uuid.UUID, verb string) (*models.CertificateDefinition, error) {
	def, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "certificate definition not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load certificate definition")
	}
	if !def.VisibleTo(actor.TenantID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "certificate definition not found")
	}
	if def.TenantID == nil {
		return nil, pkgerrors.Newf(pkgerrors.CodeForbidden, "cannot %s a system certificate definition", verb)
	}
	return def, nil
}

func (s *service) ensureNameFree(ctx context.Context, repo Repository, tenantID uuid.UUID, name string, exclude uuid.UUID) error {
	existing, err := repo.FindByName(ctx, tenantID, name, exclude)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	case err != nil:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check certificate name")
	default:
		return nameTaken(name, existing.TenantID == nil)
	}
}

func (s *service) fields(ctx context.Context, actor auth.Actor, id uuid.UUID) context.Context {
	return s.logg.WithFields(ctx, map[string]any{
		"tenant_id":     actor.TenantID.String(),
		"definition_id": id.String(),
	})
}

func nameTaken(name string, system bool) error {
	owner := "your catalogue"
	if system {
		owner = "the system catalogue"
	}
	return pkgerrors.Newf(pkgerrors.CodeConflict, "certificate name %q already exists in %s", name, owner).
		WithDetails(map[string]any{"field": "name"})
}

func cleanName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if n := utf8.RuneCountInString(name); n < minNameLength || n > maxNameLength {
		return "", pkgerrors.Newf(pkgerrors.CodeValidation, "name must be between %d and %d characters", minNameLength, maxNameLength).
			WithDetails(map[string]any{"field": "name"})
	}
	return name, nil
}

func cleanDetails(issuer, description *string) (*string, *string, error) {
	i := optional(issuer)
	if i != nil && utf8.RuneCountInString(*i) > maxIssuerLength {
		return nil, nil, pkgerrors.Newf(pkgerrors.CodeValidation, "issuer must be at most %d characters", maxIssuerLength)
	}
	d := optional(description)
	if d != nil && utf8.RuneCountInString(*d) > maxDescriptionLen {
		return nil, nil, pkgerrors.Newf(pkgerrors.CodeValidation, "description must be at most %d characters", maxDescriptionLen)
	}
	return i, d, nil
}

// optional trims the value; blank becomes nil.
func optional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
