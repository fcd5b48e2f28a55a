package enums

import "slices"

// AuditAction is the verb stored on an audit log row.
type AuditAction string

const (
	AuditActionCreate AuditAction = "CREATE"
	AuditActionUpdate AuditAction = "UPDATE"
	AuditActionDelete AuditAction = "DELETE"
)

var validAuditActions = []AuditAction{
	AuditActionCreate,
	AuditActionUpdate,
	AuditActionDelete,
}

func (a AuditAction) IsValid() bool {
	return slices.Contains(validAuditActions, a)
}
