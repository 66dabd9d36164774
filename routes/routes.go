package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ai-search-guru/getcito/app"
	"github.com/ai-search-guru/getcito/handlers"
	"github.com/ai-search-guru/getcito/middleware"
	"github.com/ai-search-guru/getcito/utils"
)

// defaultRequestTimeout applies when no configuration is wired
const defaultRequestTimeout = 100 * time.Second

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout(deps)))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(deps),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	health := handlers.NewHealthHandler(deps.Store, deps.Manager, deps.Logger)
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	query := handlers.NewQueryHandler(deps.QueryService, deps.Manager, deps.Logger)
	r.Route("/query", func(r chi.Router) {
		if deps.AuthMiddleware != nil {
			r.Use(deps.AuthMiddleware.RequireAuth)
		}
		r.Post("/", query.HandleCreateQuery)
		r.Get("/", query.HandleListProviders)
		r.Get("/{id}", query.HandleGetQuery)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	return otelhttp.NewHandler(r, "getcito-api",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// requestTimeout outlasts the slowest provider so a fan-out is never cut short
func requestTimeout(deps *app.Dependencies) time.Duration {
	if deps.Config != nil {
		return deps.Config.RequestTimeout()
	}
	return defaultRequestTimeout
}

func allowedOrigins(deps *app.Dependencies) []string {
	if deps.Config != nil && len(deps.Config.Server.AllowedOrigins) > 0 {
		return deps.Config.Server.AllowedOrigins
	}
	return []string{"http://localhost:*"}
}
