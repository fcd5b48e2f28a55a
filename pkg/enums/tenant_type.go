package enums

import (
	"slices"
	"strings"
)

// TenantType distinguishes the two sides of a collaboration.
type TenantType string

const (
	TenantTypeBrand    TenantType = "BRAND"
	TenantTypeSupplier TenantType = "SUPPLIER"
)

var validTenantTypes = []TenantType{
	TenantTypeBrand,
	TenantTypeSupplier,
}

// String implements fmt.Stringer.
func (t TenantType) String() string {
	return string(t)
}

// IsValid reports whether the value matches a known TenantType.
func (t TenantType) IsValid() bool {
	return slices.Contains(validTenantTypes, t)
}

// ParseTenantType converts raw input into a TenantType. Matching is case-insensitive.
func ParseTenantType(value string) (TenantType, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	return parse(normalized, validTenantTypes, "tenant type")
}
