package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"capsule-go/internal/capsule"
)

// Server exposes the capsule service over HTTP.
type Server struct {
	service *capsule.Service
	logger  capsule.Logger
}

// NewRouter builds the API router. All /api routes require a bearer
// token signed with jwtSecret.
func NewRouter(service *capsule.Service, jwtSecret string, logger capsule.Logger) http.Handler {
	s := &Server{service: service, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(Authenticator(jwtSecret))

		r.Route("/capsules", func(r chi.Router) {
			r.Post("/", s.handleCreate)
			r.Get("/", s.handleList)
			r.Route("/{capsuleID}", func(r chi.Router) {
				r.Get("/", s.handleGet)
				r.Delete("/", s.handleDelete)
				r.Post("/reveal", s.handleReveal)
				r.Post("/cancel", s.handleCancel)
			})
		})

		r.Get("/attachments/{attachmentID}", s.handleDownload)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeError maps service errors onto HTTP statuses. Unrecognized errors
// become a generic 500 so storage details never leak to clients.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, capsule.ErrValidation):
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, capsule.ErrPermissionDenied):
		writeErrorMessage(w, http.StatusForbidden, "permission denied")
	case errors.Is(err, capsule.ErrNotFound):
		writeErrorMessage(w, http.StatusNotFound, "not found")
	case errors.Is(err, capsule.ErrLocked):
		writeErrorMessage(w, http.StatusLocked, "capsule is locked")
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeErrorMessage(w, http.StatusInternalServerError, "internal error")
	}
}
