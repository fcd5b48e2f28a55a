package middleware

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// CORS admits the configured dashboard origins.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type", IdempotencyHeader, chimw.RequestIDHeader, registrationSecretHeader,
		},
		ExposedHeaders:   []string{chimw.RequestIDHeader, idempotentReplayHeader},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
