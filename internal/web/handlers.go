package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/core"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/schema"
)

// HealthResponse is the body of /healthz.
type HealthResponse struct {
	Status  string             `json:"status"`
	Queue   int                `json:"queue"`
	Limiter core.LimiterStatus `json:"limiter"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Queue:   s.service.Queue().Len(),
		Limiter: s.service.Limiter().Status(),
	})
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]schema.Column{
		"columns": s.template.Columns(),
	})
}

// parseIntParam parses a positive integer query parameter.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

func fileID(r *http.Request) string {
	return chi.URLParam(r, "id")
}
