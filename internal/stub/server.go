// Package stub is a development double of the oracle backend. It serves the
// capability probe and a scripted companion socket so the client can be run
// and tested without the real service.
package stub

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/selene-app/selene/internal/middleware"
)

// Server holds the stub's toggles.
type Server struct {
	// HasAPIKey is what the capability probe reports.
	HasAPIKey bool
}

// NewServer creates a stub that reports a usable credential.
func NewServer() *Server {
	return &Server{HasAPIKey: true}
}

// Router builds the stub's HTTP surface.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	r.Get("/auth/api-key/status", s.handleAPIKeyStatus)
	r.Get("/ws/companion", s.handleCompanion)
	return r
}

func (s *Server) handleAPIKeyStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]bool{"has_api_key": s.HasAPIKey}); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}
