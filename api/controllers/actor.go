package controllers

import (
	"net/http"

	"github.com/angelmondragon/tracebridge-backend/api/middleware"
	"github.com/angelmondragon/tracebridge-backend/api/responses"
	"github.com/angelmondragon/tracebridge-backend/api/validators"
	"github.com/angelmondragon/tracebridge-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/tracebridge-backend/pkg/errors"
	"github.com/angelmondragon/tracebridge-backend/pkg/logger"
)

func requireActor(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (auth.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor context missing"))
		return auth.Actor{}, false
	}
	return actor, true
}

func serviceUnavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger, name string) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.Newf(pkgerrors.CodeInternal, "%s service unavailable", name))
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	v := validators.SanitizeString(*value, 0)
	return &v
}
