package enums

import "slices"

// VersionStatus tracks a product version snapshot from draft to review outcome.
type VersionStatus string

const (
	VersionStatusDraft     VersionStatus = "DRAFT"
	VersionStatusSubmitted VersionStatus = "SUBMITTED"
	VersionStatusApproved  VersionStatus = "APPROVED"
	VersionStatusRejected  VersionStatus = "REJECTED"
	VersionStatusCancelled VersionStatus = "CANCELLED"
)

var validVersionStatuses = []VersionStatus{
	VersionStatusDraft,
	VersionStatusSubmitted,
	VersionStatusApproved,
	VersionStatusRejected,
	VersionStatusCancelled,
}

// String implements fmt.Stringer.
func (s VersionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches a known VersionStatus.
func (s VersionStatus) IsValid() bool {
	return slices.Contains(validVersionStatuses, s)
}

// IsEditable reports whether technical data may still be written.
func (s VersionStatus) IsEditable() bool {
	return s == VersionStatusDraft
}

// ParseVersionStatus converts raw input into a VersionStatus.
func ParseVersionStatus(value string) (VersionStatus, error) {
	return parse(value, validVersionStatuses, "version status")
}
