package product

import (
	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
	"github.com/angelmondragon/tracebridge-backend/pkg/pagination"
)

// ProductListFilters describe the supported filter knobs for the brand catalog.
type ProductListFilters struct {
	Status *enums.ProductStatus `json:"status,omitempty"`
	Query  string               `json:"q,omitempty"`
}

// ListProductsInput captures the inputs needed to paginate/filter a brand's products.
type ListProductsInput struct {
	Filters    ProductListFilters
	Pagination pagination.Params
}
