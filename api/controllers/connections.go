package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/tracebridge-backend/api/responses"
	"github.com/angelmondragon/tracebridge-backend/api/validators"
	"github.com/angelmondragon/tracebridge-backend/internal/connections"
	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tracebridge-backend/pkg/errors"
	"github.com/angelmondragon/tracebridge-backend/pkg/logger"
)

type initiateConnectionRequest struct {
	TargetHandle    *string `json:"target_handle,omitempty" validate:"omitempty,min=2,max=64"`
	InviteEmail     *string `json:"invite_email,omitempty" validate:"omitempty,email"`
	Name            string  `json:"name" validate:"required,max=200"`
	Description     *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	Note            *string `json:"note,omitempty" validate:"omitempty,max=2000"`
	ContactName     *string `json:"contact_name,omitempty" validate:"omitempty,max=200"`
	ContactEmail    *string `json:"contact_email,omitempty" validate:"omitempty,email"`
	ContactPhone    *string `json:"contact_phone,omitempty" validate:"omitempty,max=40"`
	LocationCountry *string `json:"location_country,omitempty" validate:"omitempty,len=2"`
}

func (r initiateConnectionRequest) toInput() connections.InitiateInput {
	return connections.InitiateInput{
		TargetHandle:    trimmedPtr(r.TargetHandle),
		InviteEmail:     trimmedPtr(r.InviteEmail),
		Name:            validators.SanitizeString(r.Name, 200),
		Description:     r.Description,
		Note:            r.Note,
		ContactName:     trimmedPtr(r.ContactName),
		ContactEmail:    trimmedPtr(r.ContactEmail),
		ContactPhone:    trimmedPtr(r.ContactPhone),
		LocationCountry: trimmedPtr(r.LocationCountry),
	}
}

// InitiateConnection starts a brand to supplier connection by handle or email.
func InitiateConnection(svc connections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "connection")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body initiateConnectionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if (body.TargetHandle == nil) == (body.InviteEmail == nil) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "exactly one of target_handle or invite_email is required"))
			return
		}

		profile, err := svc.Initiate(r.Context(), actor, body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, profile)
	}
}

// ListIncomingConnections returns the pending requests addressed to the supplier.
func ListIncomingConnections(svc connections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "connection")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		incoming, err := svc.ListIncoming(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, incoming)
	}
}

type respondConnectionRequest struct {
	Response string `json:"response" validate:"required,oneof=accept decline"`
}

// RespondConnection accepts or declines a pending connection.
func RespondConnection(svc connections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "connection")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		connectionID, err := validators.ParseUUIDParam(r, "connectionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body respondConnectionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		conn, err := svc.Respond(r.Context(), actor, connectionID, enums.ConnectionResponse(body.Response))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, conn)
	}
}

// PublicInvite shows an invitee which brand invited them.
func PublicInvite(svc connections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "connection")
			return
		}
		token := strings.TrimSpace(chi.URLParam(r, "token"))
		if token == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invite token required"))
			return
		}

		details, err := svc.ValidateInviteToken(r.Context(), token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, details)
	}
}

type linkRegistrationRequest struct {
	TenantID uuid.UUID `json:"tenant_id"`
	Token    string    `json:"token,omitempty" validate:"omitempty,max=256"`
	Email    string    `json:"email,omitempty" validate:"omitempty,email"`
}

// LinkRegistration attaches pending invitations to a freshly registered tenant.
func LinkRegistration(svc connections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "connection")
			return
		}

		var body linkRegistrationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if body.TenantID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "tenant_id is required"))
			return
		}
		if strings.TrimSpace(body.Token) == "" && strings.TrimSpace(body.Email) == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "token or email is required"))
			return
		}

		linked, err := svc.LinkOnRegistration(r.Context(), body.TenantID, body.Token, body.Email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int{"linked": linked})
	}
}
