package controllers

import (
	"net/http"

	"github.com/angelmondragon/tracebridge-backend/api/responses"
	"github.com/angelmondragon/tracebridge-backend/api/validators"
	"github.com/angelmondragon/tracebridge-backend/internal/connections"
	"github.com/angelmondragon/tracebridge-backend/pkg/logger"
)

// ListProfiles pages through the brand's supplier address book.
func ListProfiles(svc connections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "connection")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListProfiles(r.Context(), actor, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// GetProfile returns one address-book entry.
func GetProfile(svc connections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "connection")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		profileID, err := validators.ParseUUIDParam(r, "profileId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.GetProfile(r.Context(), actor, profileID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

type updateProfileRequest struct {
	Name            *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description     *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	ContactName     *string `json:"contact_name,omitempty" validate:"omitempty,max=200"`
	ContactEmail    *string `json:"contact_email,omitempty" validate:"omitempty,email"`
	ContactPhone    *string `json:"contact_phone,omitempty" validate:"omitempty,max=40"`
	LocationCountry *string `json:"location_country,omitempty" validate:"omitempty,len=2"`
}

// UpdateProfile edits the CRM fields of a profile.
func UpdateProfile(svc connections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "connection")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		profileID, err := validators.ParseUUIDParam(r, "profileId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateProfileRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.UpdateProfile(r.Context(), actor, profileID, connections.UpdateProfileInput{
			Name:            trimmedPtr(body.Name),
			Description:     body.Description,
			ContactName:     trimmedPtr(body.ContactName),
			ContactEmail:    trimmedPtr(body.ContactEmail),
			ContactPhone:    trimmedPtr(body.ContactPhone),
			LocationCountry: trimmedPtr(body.LocationCountry),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

type reinviteRequest struct {
	Email *string `json:"email,omitempty" validate:"omitempty,email"`
	Note  *string `json:"note,omitempty" validate:"omitempty,max=2000"`
}

// ReinviteProfile resends a pending invitation, optionally to a new address.
func ReinviteProfile(svc connections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "connection")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		profileID, err := validators.ParseUUIDParam(r, "profileId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body reinviteRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		profile, err := svc.Reinvite(r.Context(), actor, profileID, connections.ReinviteInput{
			Email: trimmedPtr(body.Email),
			Note:  body.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

// DisconnectProfile suspends an active connection.
func DisconnectProfile(svc connections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "connection")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		profileID, err := validators.ParseUUIDParam(r, "profileId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.Disconnect(r.Context(), actor, profileID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}
