package product

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tracebridge-backend/pkg/db/models"
	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
)

// CreateProductInput holds the validated payload to create a product shell.
type CreateProductInput struct {
	SKU                string
	Name               string
	Description        *string
	PendingVersionName *string
}

// ProductDTO is the API view of a product shell.
type ProductDTO struct {
	ID                 uuid.UUID           `json:"id"`
	SKU                string              `json:"sku"`
	Name               string              `json:"name"`
	Description        *string             `json:"description,omitempty"`
	Status             enums.ProductStatus `json:"status"`
	PendingVersionName *string             `json:"pending_version_name,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// ProductListResult is a page of products.
type ProductListResult struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

func mapProductDTO(p models.Product) ProductDTO {
	return ProductDTO{
		ID:                 p.ID,
		SKU:                p.SKU,
		Name:               p.Name,
		Description:        p.Description,
		Status:             p.Status,
		PendingVersionName: p.PendingVersionName,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}
