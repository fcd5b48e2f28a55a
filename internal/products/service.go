package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tracebridge-backend/internal/clock"
	"github.com/angelmondragon/tracebridge-backend/pkg/auth"
	"github.com/angelmondragon/tracebridge-backend/pkg/db"
	"github.com/angelmondragon/tracebridge-backend/pkg/db/models"
	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tracebridge-backend/pkg/errors"
	"github.com/angelmondragon/tracebridge-backend/pkg/outbox"
	"github.com/angelmondragon/tracebridge-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/tracebridge-backend/pkg/pagination"
)

const maxSKULength = 64

// Service exposes brand product management operations.
type Service interface {
	CreateProduct(ctx context.Context, actor auth.Actor, input CreateProductInput) (*ProductDTO, error)
	GetProduct(ctx context.Context, actor auth.Actor, productID uuid.UUID) (*ProductDTO, error)
	ListProducts(ctx context.Context, actor auth.Actor, input ListProductsInput) (*ProductListResult, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	repo   ProductRepository
	tx     txRunner
	outbox outboxPublisher
	clock  clock.Clock
}

// NewService builds the product service.
func NewService(repo ProductRepository, tx txRunner, publisher outboxPublisher, c clock.Clock) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if c == nil {
		return nil, fmt.Errorf("clock required")
	}
	return &service{repo: repo, tx: tx, outbox: publisher, clock: c}, nil
}

func (s *service) CreateProduct(ctx context.Context, actor auth.Actor, input CreateProductInput) (*ProductDTO, error) {
	if err := actor.Require(enums.TenantTypeBrand); err != nil {
		return nil, err
	}
	sku := strings.TrimSpace(input.SKU)
	name := strings.TrimSpace(input.Name)
	if sku == "" || name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku and name are required")
	}
	if len(sku) > maxSKULength {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "sku must be at most %d characters", maxSKULength)
	}

	now := s.clock.Now()
	product := models.Product{
		ID:                 s.clock.NewID(),
		TenantID:           actor.TenantID,
		SKU:                sku,
		Name:               name,
		Description:        trimmedPtr(input.Description),
		Status:             enums.ProductStatusDraft,
		PendingVersionName: trimmedPtr(input.PendingVersionName),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		exists, err := repo.SKUExists(ctx, actor.TenantID, sku)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check sku")
		}
		if exists {
			return pkgerrors.Newf(pkgerrors.CodeConflict, "sku %q already exists", sku)
		}
		if err := repo.CreateProduct(ctx, &product); err != nil {
			if db.IsUniqueViolation(err, "ux_products_tenant_sku") {
				return pkgerrors.Newf(pkgerrors.CodeConflict, "sku %q already exists", sku)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventProductCreated,
			AggregateType: enums.AggregateProduct,
			AggregateID:   product.ID,
			Actor:         actor.OutboxRef(),
			OccurredAt:    now,
			Data: payloads.ProductCreatedEvent{
				AuditTrail: payloads.NewAuditTrail("product", product.ID, actor.TenantID, enums.AuditActionCreate, map[string]any{
					"sku":  sku,
					"name": name,
				}),
				ProductID: product.ID,
				SKU:       sku,
				Name:      name,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	dto := mapProductDTO(product)
	return &dto, nil
}

func (s *service) GetProduct(ctx context.Context, actor auth.Actor, productID uuid.UUID) (*ProductDTO, error) {
	if err := actor.Require(enums.TenantTypeBrand); err != nil {
		return nil, err
	}
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product.TenantID != actor.TenantID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	dto := mapProductDTO(*product)
	return &dto, nil
}

func (s *service) ListProducts(ctx context.Context, actor auth.Actor, input ListProductsInput) (*ProductListResult, error) {
	if err := actor.Require(enums.TenantTypeBrand); err != nil {
		return nil, err
	}
	if input.Filters.Status != nil && !input.Filters.Status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid status %q", *input.Filters.Status)
	}
	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.ListByTenant(ctx, actor.TenantID, input.Filters, input.Pagination.Limit, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	result := &ProductListResult{Products: make([]ProductDTO, 0, len(rows))}
	for _, row := range rows {
		result.Products = append(result.Products, mapProductDTO(row))
	}
	result.NextCursor = pagination.Encode(next)
	return result, nil
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
