package auth

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tracebridge-backend/pkg/errors"
	"github.com/angelmondragon/tracebridge-backend/pkg/outbox"
)

// Actor is the user and tenant on whose behalf an operation runs. Every
// workflow operation receives it explicitly.
type Actor struct {
	UserID     uuid.UUID
	TenantID   uuid.UUID
	TenantType enums.TenantType
}

// Require validates the actor and, when tenantType is set, that the actor's
// tenant has that type.
func (a Actor) Require(tenantType enums.TenantType) error {
	if a.TenantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeForbidden, "tenant context missing")
	}
	if tenantType != "" && a.TenantType != tenantType {
		return pkgerrors.Newf(pkgerrors.CodeForbidden, "operation requires a %s tenant", tenantType)
	}
	return nil
}

// UserRef returns the user id or nil when unknown (system actors).
func (a Actor) UserRef() *uuid.UUID {
	if a.UserID == uuid.Nil {
		return nil
	}
	id := a.UserID
	return &id
}

// OutboxRef maps the actor onto the outbox envelope.
func (a Actor) OutboxRef() *outbox.ActorRef {
	return &outbox.ActorRef{UserID: a.UserID, TenantID: a.TenantID, TenantType: a.TenantType}
}
