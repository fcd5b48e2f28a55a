package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/angelmondragon/tracebridge-backend/api/responses"
	pkgerrors "github.com/angelmondragon/tracebridge-backend/pkg/errors"
	"github.com/angelmondragon/tracebridge-backend/pkg/logger"
)

const registrationSecretHeader = "X-Registration-Secret"

// RegistrationHook admits only callers presenting the shared registration secret.
// An unset secret closes the endpoint.
func RegistrationHook(secret string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := strings.TrimSpace(r.Header.Get(registrationSecretHeader))
			if secret == "" || presented == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "registration hook credentials invalid"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
