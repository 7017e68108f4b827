package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/cloud-tracker/app"
	"github.com/example/cloud-tracker/handlers"
	"github.com/example/cloud-tracker/middleware"
)

// SetupRoutes configures all application routes and middleware.
// Everything except the ops endpoints passes through the JWT filter;
// the filter's exemption policy decides which of those skip authentication.
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.PeerAddr)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	public := handlers.NewPublicHandler(app.Version)
	health := handlers.NewHealthHandler(deps.DB.DB, deps.Redis, deps.Logger)
	auth := handlers.NewAuthHandler(deps.UserService, deps.Logger)
	users := handlers.NewUserHandler(deps.UserService, deps.Logger)
	roles := handlers.NewIAMRoleHandler(deps.IAMRoleService, deps.Logger)

	// Ops endpoints
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)
	if deps.Config.Observability.MetricsEnabled {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(deps.JWTFilter.Handler)

		// Public pages
		r.Get("/", public.HandleIndex)
		r.Get("/index.html", public.HandleIndex)
		r.Get("/welcome.html", public.HandleIndex)
		r.Get("/error", public.HandleError)
		r.Get("/webjars/*", public.HandleNotFound)

		// Credentials
		r.Post("/signup", auth.HandleSignup)
		r.With(deps.SigninLimiter.Handler).Post("/signin", auth.HandleSignin)
		r.Post("/refresh", auth.HandleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(deps.Authorizer.RequireAuthenticated)

			r.Route("/user", func(r chi.Router) {
				r.Get("/me", users.HandleMe)
				r.Get("/name", users.HandleName)
				r.Get("/email", users.HandleEmail)
				r.Get("/profile-picture", users.HandleProfilePicture)
				r.Put("/profile-picture", users.HandleSaveProfilePicture)
				r.Put("/profile", users.HandleEditProfile)
				r.Put("/password", users.HandleEditPassword)
			})

			r.Route("/role", func(r chi.Router) {
				r.Post("/", roles.HandleAddRole)
				r.Get("/", roles.HandleGetRole)
				r.Get("/all", roles.HandleListRoles)
				r.Get("/data", roles.HandleCostQuery)
				r.Get("/cost", roles.HandleBlendedCost)
				r.Get("/ec2", roles.HandleEC2Usage)
			})
		})

		r.NotFound(public.HandleNotFound)
		r.MethodNotAllowed(public.HandleMethodNotAllowed)
	})

	return r
}
