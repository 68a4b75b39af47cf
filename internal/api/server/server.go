package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nightshade-os/wifi-keystore/internal/api/router"
	"github.com/nightshade-os/wifi-keystore/pkg/keystore"
)

// Server represents the key store HTTP server.
type Server struct {
	cfg     *Config
	store   keystore.KeyStore
	backend string
	version string
	srv     *http.Server
}

// New creates a new Server over the given key store backend.
func New(cfg *Config, store keystore.KeyStore, backend, version string) *Server {
	return &Server{
		cfg:     cfg,
		store:   store,
		backend: backend,
		version: version,
	}
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	routerCfg := &router.Config{
		Store:   s.store,
		Version: s.version,
		Backend: s.backend,
	}

	s.srv = &http.Server{
		Addr:         s.cfg.Address(),
		Handler:      router.New(routerCfg),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	s.printStartupInfo()

	errChan := make(chan error, 1)
	go func() {
		if s.cfg.TLSCert != "" && s.cfg.TLSKey != "" {
			errChan <- s.srv.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
		} else {
			errChan <- s.srv.ListenAndServe()
		}
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-sigChan:
		log.Printf("Received signal %v, shutting down...", sig)
		return s.shutdown()
	}

	return nil
}

// shutdown gracefully stops the server.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	log.Println("Server stopped gracefully")
	return nil
}

// printStartupInfo prints server startup information.
func (s *Server) printStartupInfo() {
	fmt.Println()
	fmt.Println("WiFi Key Store Server")
	fmt.Println("=====================")
	fmt.Printf("  Version:  %s\n", s.version)
	fmt.Printf("  Backend:  %s\n", s.backend)
	fmt.Printf("  Address:  http://%s\n", s.cfg.Address())
	if s.cfg.TLSCert != "" {
		fmt.Println("  TLS:      enabled")
	}
	fmt.Println()
	fmt.Println("Endpoints:")
	fmt.Println("  GET    /health")
	fmt.Println("  GET    /ready")
	fmt.Println("  PUT    /api/v1/entries/{alias}/key")
	fmt.Println("  PUT    /api/v1/entries/{alias}/certificate")
	fmt.Println("  GET    /api/v1/entries/{alias}/certificate")
	fmt.Println("  DELETE /api/v1/entries/{alias}")
	fmt.Println()
	fmt.Println("Use Ctrl+C to stop")
	fmt.Println()
}
