package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/tracebridge-backend/api/responses"
	"github.com/angelmondragon/tracebridge-backend/api/validators"
	"github.com/angelmondragon/tracebridge-backend/internal/directory"
	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tracebridge-backend/pkg/errors"
	"github.com/angelmondragon/tracebridge-backend/pkg/logger"
)

// DirectorySearch lists tenants by name or handle fragment.
func DirectorySearch(svc directory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "directory")
			return
		}
		if _, ok := requireActor(w, r, logg); !ok {
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := directory.SearchInput{
			Query: validators.SanitizeString(r.URL.Query().Get("q"), 100),
			Limit: limit,
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
			tenantType, err := enums.ParseTenantType(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tenant type"))
				return
			}
			input.Type = tenantType
		}

		tenants, err := svc.Search(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, tenants)
	}
}
