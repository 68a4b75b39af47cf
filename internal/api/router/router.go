// Package router provides HTTP routing configuration using Chi.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nightshade-os/wifi-keystore/internal/api/handler"
	"github.com/nightshade-os/wifi-keystore/internal/api/middleware"
	"github.com/nightshade-os/wifi-keystore/pkg/keystore"
)

// Config holds router configuration.
type Config struct {
	Store   keystore.KeyStore
	Version string
	Backend string // key store backend name, reported by /health
}

// New creates a new Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health endpoints
	healthHandler := handler.NewHealthHandler(cfg.Version, cfg.Backend)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	entriesHandler := handler.NewEntriesHandler(cfg.Store)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/entries/{alias}", func(r chi.Router) {
			r.Put("/key", entriesHandler.SetKey)
			r.Put("/certificate", entriesHandler.SetCertificate)
			r.Get("/certificate", entriesHandler.GetCertificate)
			r.Delete("/", entriesHandler.Delete)
		})
	})

	return r
}
