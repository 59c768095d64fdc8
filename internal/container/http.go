package container

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jaevor/go-nanoid"
	"github.com/samber/do"
	"github.com/serroba/associates-api/internal/associates"
	"github.com/serroba/associates-api/internal/audit"
	"github.com/serroba/associates-api/internal/handlers"
	"github.com/serroba/associates-api/internal/health"
	"github.com/serroba/associates-api/internal/messaging"
	"github.com/serroba/associates-api/internal/metrics"
	"github.com/serroba/associates-api/internal/middleware"
	"github.com/serroba/associates-api/internal/ratelimit"
	"go.uber.org/zap"
)

const eventIDLength = 21

// HTTPPackage provides the router and the huma API with every route
// registered, plus Prometheus metrics served at /metrics.
func HTTPPackage(injector *do.Injector) {
	do.Provide(injector, func(_ *do.Injector) (*metrics.Metrics, error) {
		return metrics.New(), nil
	})

	do.Provide(injector, func(i *do.Injector) (*chi.Mux, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		router := chi.NewMux()
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.Origins(),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
			ExposedHeaders: []string{
				"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset",
				"Retry-After", middleware.RequestIDHeader,
			},
		}))
		router.Use(middleware.ValidJSON(logger))

		return router, nil
	})

	do.Provide(injector, newAPI)
}

func newAPI(i *do.Injector) (huma.API, error) {
	opts := do.MustInvoke[*Options](i)
	logger := do.MustInvoke[*zap.Logger](i)
	router := do.MustInvoke[*chi.Mux](i)
	limiter := do.MustInvoke[*ratelimit.PolicyLimiter](i)

	newID, err := nanoid.Standard(eventIDLength)
	if err != nil {
		return nil, err
	}

	handlers.UseErrorEnvelope()

	config := huma.DefaultConfig("Associates API", "1.0.0")
	// Responses are plain envelopes without a $schema link.
	config.CreateHooks = nil

	api := humachi.New(router, config)

	m := do.MustInvoke[*metrics.Metrics](i)
	router.Handle("/metrics", m.Handler())

	clientIP := middleware.NewClientIP(opts.TrustProxy)
	api.UseMiddleware(m.Middleware)
	api.UseMiddleware(middleware.RequestMeta(api, clientIP))
	api.UseMiddleware(middleware.PolicyRateLimiter(
		api, limiter, ratelimit.NewOperationScopeResolver(), clientIP, logger,
	))

	friends := handlers.NewFriendsHandler(
		do.MustInvoke[*associates.Mutator](i),
		do.MustInvoke[messaging.Publish[audit.ChangeEvent]](i),
		newID,
		logger,
	)
	handlers.RegisterRoutes(api, friends)
	health.RegisterRoutes(api, do.MustInvoke[*health.Handler](i))

	if opts.StaticDir != "" {
		router.Handle("/*", http.FileServer(http.Dir(opts.StaticDir)))
	}

	return api, nil
}
