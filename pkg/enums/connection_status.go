package enums

import "slices"

// ConnectionStatus captures the lifecycle of a brand to supplier relationship.
type ConnectionStatus string

const (
	ConnectionStatusPending   ConnectionStatus = "PENDING"
	ConnectionStatusActive    ConnectionStatus = "ACTIVE"
	ConnectionStatusRejected  ConnectionStatus = "REJECTED"
	ConnectionStatusSuspended ConnectionStatus = "SUSPENDED"
)

var validConnectionStatuses = []ConnectionStatus{
	ConnectionStatusPending,
	ConnectionStatusActive,
	ConnectionStatusRejected,
	ConnectionStatusSuspended,
}

// String implements fmt.Stringer.
func (s ConnectionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches a known ConnectionStatus.
func (s ConnectionStatus) IsValid() bool {
	return slices.Contains(validConnectionStatuses, s)
}

// ParseConnectionStatus converts raw input into a ConnectionStatus.
func ParseConnectionStatus(value string) (ConnectionStatus, error) {
	return parse(value, validConnectionStatuses, "connection status")
}

// RelationshipKind names the tenant type a connection expects on its target side.
type RelationshipKind string

const (
	RelationshipKindSupplier RelationshipKind = "SUPPLIER"
)

// TargetTenantType returns the tenant type the target of this relationship must have.
func (k RelationshipKind) TargetTenantType() TenantType {
	switch k {
	case RelationshipKindSupplier:
		return TenantTypeSupplier
	default:
		return ""
	}
}

// ConnectionResponse is the target tenant's answer to a pending connection.
type ConnectionResponse string

const (
	ConnectionResponseAccept  ConnectionResponse = "accept"
	ConnectionResponseDecline ConnectionResponse = "decline"
)

// IsValid reports whether the response is accept or decline.
func (r ConnectionResponse) IsValid() bool {
	return r == ConnectionResponseAccept || r == ConnectionResponseDecline
}
