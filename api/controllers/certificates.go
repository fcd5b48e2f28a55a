package controllers

import (
	"net/http"

	"github.com/angelmondragon/tracebridge-backend/api/responses"
	"github.com/angelmondragon/tracebridge-backend/api/validators"
	"github.com/angelmondragon/tracebridge-backend/internal/certificates"
	"github.com/angelmondragon/tracebridge-backend/pkg/logger"
)

type createDefinitionRequest struct {
	Name        string  `json:"name" validate:"required,min=2,max=150"`
	Issuer      *string `json:"issuer,omitempty" validate:"omitempty,max=150"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
}

type updateDefinitionRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=2,max=150"`
	Issuer      *string `json:"issuer,omitempty" validate:"omitempty,max=150"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
}

// ListCertificateDefinitions returns the system catalogue plus the tenant's own entries.
func ListCertificateDefinitions(svc certificates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "certificate")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		defs, err := svc.List(r.Context(), actor, validators.SanitizeString(r.URL.Query().Get("q"), 100))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, defs)
	}
}

func CreateCertificateDefinition(svc certificates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "certificate")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		var body createDefinitionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		def, err := svc.Create(r.Context(), actor, certificates.CreateInput{
			Name:        body.Name,
			Issuer:      body.Issuer,
			Description: body.Description,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, def)
	}
}

func UpdateCertificateDefinition(svc certificates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "certificate")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "definitionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body updateDefinitionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		def, err := svc.Update(r.Context(), actor, id, certificates.UpdateInput{
			Name:        body.Name,
			Issuer:      body.Issuer,
			Description: body.Description,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, def)
	}
}

// DeleteCertificateDefinition fails while product versions still reference the entry.
func DeleteCertificateDefinition(svc certificates.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "certificate")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "definitionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), actor, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"id": id, "deleted": true})
	}
}
