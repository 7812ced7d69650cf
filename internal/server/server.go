// Package server exposes the run orchestrator and the editor convenience
// operations over HTTP.
package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/sevir/hueste/internal/config"
	"github.com/sevir/hueste/internal/orchestrator"
)

// Server is the HTTP front door for the orchestrator.
type Server struct {
	orchestrator *orchestrator.Orchestrator
	addr         string
	version      string
	commit       string
	httpServer   *http.Server
	config       *config.Config
}

// Config holds server configuration.
type Config struct {
	Addr         string
	Orchestrator *orchestrator.Orchestrator
	Version      string
	Commit       string
	AppConfig    *config.Config
}

// New creates a new server.
func New(cfg Config) *Server {
	s := &Server{
		orchestrator: cfg.Orchestrator,
		addr:         cfg.Addr,
		version:      cfg.Version,
		commit:       cfg.Commit,
		config:       cfg.AppConfig,
	}

	s.httpServer = &http.Server{
		Addr:        cfg.Addr,
		Handler:     s.corsMiddleware(s.newGinEngine()),
		ReadTimeout: 30 * time.Second,
		// No write timeout: run streams stay open for the life of the child
		// process.
		WriteTimeout: 0,
	}

	return s
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Printf("hueste server starting on %s", s.addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
