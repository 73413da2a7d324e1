package api

import (
	"github.com/gorilla/mux"

	"github.com/garnizeh/hrbot/internal/config"
	"github.com/garnizeh/hrbot/internal/metrics"
	"github.com/garnizeh/hrbot/pkg/repository"
)

// Deps are the collaborators behind the HTTP API. Events and Reloader may be
// nil.
type Deps struct {
	Store    repository.Store
	Events   ReviewEvents
	Reloader SchemaReloader
}

func SetupRoutes(cfg *config.Config, version, buildTime string, deps Deps) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)

	repo := deps.Store

	// Create handlers
	systemHandler := &SystemHandler{DB: repo}
	authHandler := NewAuthHandler(repo, cfg.JWTSecret, cfg.TokenDuration)
	appsHandler := NewApplicationsHandler(repo, deps.Events, cfg.Screening.Enabled)
	screeningHandler := NewScreeningHandler(repo, repo, deps.Reloader)

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods("GET")
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")
	r.HandleFunc("/v1/auth/signin", authHandler.Signin).Methods("POST")

	// API v1 Protected routes
	apiV1 := r.PathPrefix("/v1").Subrouter()
	apiV1.Use(JWTAuthMiddlewareWithSecret(cfg.JWTSecret))

	// Auth endpoints
	authV1 := apiV1.PathPrefix("/auth").Subrouter()
	authV1.HandleFunc("/signout", authHandler.Signout).Methods("POST")
	authV1.HandleFunc("/me", authHandler.Me).Methods("GET")

	// Review endpoints
	apiV1.HandleFunc("/applications", appsHandler.ListApplications).Methods("GET")
	apiV1.HandleFunc("/applications/stats", appsHandler.Stats).Methods("GET")
	apiV1.HandleFunc("/applications/{id:[0-9]+}", appsHandler.GetApplication).Methods("GET")
	apiV1.HandleFunc("/applications/{id:[0-9]+}/status", appsHandler.UpdateStatus).Methods("POST")
	apiV1.HandleFunc("/applications/{id:[0-9]+}/notes", appsHandler.UpdateNotes).Methods("PUT")
	apiV1.HandleFunc("/applications/{id:[0-9]+}/screening", appsHandler.RequestScreening).Methods("POST")

	// Screening configuration
	scr := apiV1.PathPrefix("/screening").Subrouter()
	scr.HandleFunc("/schemas", screeningHandler.ListSchemasHandler).Methods("GET")
	scr.HandleFunc("/schemas", screeningHandler.CreateOrUpdateSchemaHandler).Methods("POST")
	scr.HandleFunc("/schemas/reload", screeningHandler.ReloadHandler).Methods("POST")
	scr.HandleFunc("/templates", screeningHandler.GetTemplateHandler).Methods("GET")
	scr.HandleFunc("/templates", screeningHandler.CreateOrUpdateTemplateHandler).Methods("POST")

	return r
}
