// Package api provides the HTTP server and handlers.
package api

import (
	"encoding/json"
	"io/fs"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/blockdeck/blockdeck/internal/diagram"
	"github.com/blockdeck/blockdeck/internal/events"
	"github.com/blockdeck/blockdeck/internal/logging"
	"github.com/blockdeck/blockdeck/internal/marketplace"
	"github.com/blockdeck/blockdeck/internal/metrics"
	"github.com/blockdeck/blockdeck/internal/registry"
	"github.com/blockdeck/blockdeck/internal/session"
	"github.com/blockdeck/blockdeck/internal/storage"
	"github.com/blockdeck/blockdeck/webapp"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// Server is the HTTP server.
type Server struct {
	registry *registry.Registry
	source   storage.Backend
	sessions *session.Store

	// SSE
	broadcaster *events.Broadcaster

	// Optional subsystems; routes are skipped when nil.
	templates *marketplace.Store
	diagrams  *diagram.Generator
}

// NewServer creates a new server. templates and diagrams may be nil;
// their routes are not registered in that case.
func NewServer(
	reg *registry.Registry,
	source storage.Backend,
	sessions *session.Store,
	broadcaster *events.Broadcaster,
	templates *marketplace.Store,
	diagrams *diagram.Generator,
) *Server {
	return &Server{
		registry:    reg,
		source:      source,
		sessions:    sessions,
		broadcaster: broadcaster,
		templates:   templates,
		diagrams:    diagrams,
	}
}

// Handler returns the HTTP handler with logging and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	// Catalog
	mux.HandleFunc("GET /api/v1/blocks", s.handleListBlocks)
	mux.HandleFunc("GET /api/v1/blocks/{name}", s.handleGetBlock)
	mux.HandleFunc("GET /api/v1/blocks/{name}/files/{path...}", s.handleBlockFile)

	// Preview sessions
	mux.HandleFunc("POST /api/v1/previews", s.handleOpenPreview)
	mux.HandleFunc("GET /api/v1/previews/{id}", s.handleGetPreview)
	mux.HandleFunc("PUT /api/v1/previews/{id}/file", s.handleSelectFile)
	mux.HandleFunc("PUT /api/v1/previews/{id}/screen", s.handleSetScreen)
	mux.HandleFunc("DELETE /api/v1/previews/{id}", s.handleClosePreview)
	mux.HandleFunc("GET /api/v1/previews/{id}/events", s.handlePreviewEvents)

	// Marketplace
	if s.templates != nil {
		mux.HandleFunc("GET /api/v1/templates", s.handleListTemplates)
		mux.HandleFunc("GET /api/v1/templates/{slug}", s.handleGetTemplate)
		mux.HandleFunc("POST /api/v1/templates/{slug}/download", s.handleTemplateDownload)
	}

	// Diagram generation
	if s.diagrams != nil {
		mux.HandleFunc("POST /api/v1/diagram", s.handleDiagram)
	}

	// Web app shell
	// WEBAPP_DIR overrides embedded assets for live-reload during development
	var appHandler http.Handler
	if dir := os.Getenv("WEBAPP_DIR"); dir != "" {
		log.Printf("[webapp] serving from disk: %s", dir)
		appHandler = http.StripPrefix("/app/", http.FileServer(http.Dir(dir)))
	} else {
		appFS, _ := fs.Sub(webapp.Assets, ".")
		appHandler = http.StripPrefix("/app/", http.FileServer(http.FS(appFS)))
	}
	mux.Handle("/app/", appHandler)
	mux.HandleFunc("GET /app", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/app/", http.StatusMovedPermanently)
	})
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/app/", http.StatusMovedPermanently)
	})

	return metrics.Middleware(logging.Middleware(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "version": "1.0"})
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func (s *Server) sendJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// queryInt parses an integer query parameter, returning 0 when absent
// or malformed.
func queryInt(r *http.Request, key string) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
