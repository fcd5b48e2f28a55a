package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/tracebridge-backend/api/controllers"
	"github.com/angelmondragon/tracebridge-backend/api/middleware"
	"github.com/angelmondragon/tracebridge-backend/internal/artifacts"
	"github.com/angelmondragon/tracebridge-backend/internal/certificates"
	"github.com/angelmondragon/tracebridge-backend/internal/connections"
	"github.com/angelmondragon/tracebridge-backend/internal/contributions"
	"github.com/angelmondragon/tracebridge-backend/internal/dashboard"
	"github.com/angelmondragon/tracebridge-backend/internal/directory"
	products "github.com/angelmondragon/tracebridge-backend/internal/products"
	"github.com/angelmondragon/tracebridge-backend/pkg/config"
	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
	"github.com/angelmondragon/tracebridge-backend/pkg/logger"
	"github.com/angelmondragon/tracebridge-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/tracebridge-backend/pkg/redis"
)

// redisStore is the slice of the Redis client the HTTP layer needs.
type redisStore interface {
	pkgredis.IdempotencyStore
	middleware.WindowLimiter
}

// Params wires the router to its services and infrastructure.
type Params struct {
	Config        *config.Config
	Logger        *logger.Logger
	Redis         redisStore
	Readiness     map[string]controllers.Pinger
	Gatherer      prometheus.Gatherer
	HTTPMetrics   *metrics.HTTPMetrics
	Connections   connections.Service
	Contributions contributions.Service
	Products      products.Service
	Directory     directory.Service
	Certificates  certificates.Service
	Vault         artifacts.Service
	Dashboard     dashboard.Service
}

// NewRouter assembles the public, internal and tenant-scoped routes.
func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		chimw.RealIP,
		middleware.RequestID(logg),
		middleware.Logging(logg, p.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	inviteLookupPolicy := middleware.PolicyFromConfig("invite_lookup", cfg.RateLimit, "token")
	registrationPolicy := middleware.PolicyFromConfig("registration_link", cfg.RateLimit, "")

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, p.Readiness, logg))
	})
	if p.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(p.Gatherer))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.With(middleware.PublicRateLimit(inviteLookupPolicy, p.Redis, logg)).
			Get("/invites/{token}", controllers.PublicInvite(p.Connections, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.With(
			middleware.PublicRateLimit(registrationPolicy, p.Redis, logg),
			middleware.RegistrationHook(cfg.JWT.RegistrationHookSecret, logg),
		).Post("/registrations/link", controllers.LinkRegistration(p.Connections, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(p.Redis, logg))

			r.Get("/directory", controllers.DirectorySearch(p.Directory, logg))
			r.Get("/requests/{requestId}", controllers.GetRequest(p.Contributions, logg))
			r.Post("/requests/{requestId}/comments", controllers.AddComment(p.Contributions, logg))
			r.Get("/certificate-definitions", controllers.ListCertificateDefinitions(p.Certificates, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireTenantType(enums.TenantTypeBrand, logg))

				r.Post("/connections", controllers.InitiateConnection(p.Connections, logg))

				r.Get("/profiles", controllers.ListProfiles(p.Connections, logg))
				r.Get("/profiles/{profileId}", controllers.GetProfile(p.Connections, logg))
				r.Patch("/profiles/{profileId}", controllers.UpdateProfile(p.Connections, logg))
				r.Post("/profiles/{profileId}/reinvite", controllers.ReinviteProfile(p.Connections, logg))
				r.Post("/profiles/{profileId}/disconnect", controllers.DisconnectProfile(p.Connections, logg))

				r.Post("/products", controllers.CreateProduct(p.Products, logg))
				r.Get("/products", controllers.ListProducts(p.Products, logg))
				r.Get("/products/{productId}", controllers.GetProduct(p.Products, logg))
				r.Post("/products/{productId}/assign", controllers.AssignProduct(p.Contributions, logg))
				r.Get("/products/{productId}/collaboration", controllers.ProductCollaboration(p.Contributions, logg))
				r.Get("/products/{productId}/versions/latest", controllers.ProductLatestVersion(p.Contributions, logg))

				r.Post("/requests/{requestId}/review", controllers.ReviewRequest(p.Contributions, logg))
				r.Post("/requests/{requestId}/cancel", controllers.CancelRequest(p.Contributions, logg))
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireTenantType(enums.TenantTypeSupplier, logg))

				r.Get("/connections/incoming", controllers.ListIncomingConnections(p.Connections, logg))
				r.Post("/connections/{connectionId}/respond", controllers.RespondConnection(p.Connections, logg))
				r.Get("/requests", controllers.ListRequests(p.Contributions, logg))
				r.Post("/requests/{requestId}/actions", controllers.RequestAction(p.Contributions, logg))
				r.Put("/requests/{requestId}/draft", controllers.SaveDraft(p.Contributions, cfg.Artifacts.MaxUploadBytes(), logg))

				r.Post("/certificate-definitions", controllers.CreateCertificateDefinition(p.Certificates, logg))
				r.Patch("/certificate-definitions/{definitionId}", controllers.UpdateCertificateDefinition(p.Certificates, logg))
				r.Delete("/certificate-definitions/{definitionId}", controllers.DeleteCertificateDefinition(p.Certificates, logg))
				r.Get("/vault", controllers.ListVault(p.Vault, logg))
				r.Get("/dashboard", controllers.SupplierDashboard(p.Dashboard, logg))
			})
		})
	})

	return r
}
