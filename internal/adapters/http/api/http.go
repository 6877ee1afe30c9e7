// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/playstyle/internal/adapters/repository"
	"github.com/okian/playstyle/internal/domain/model"
)

// Dependencies required by HTTP handlers. Reads always target the latest
// stored run.
type Dependencies interface {
	LatestRun(ctx context.Context) (*model.Run, error)
	// Profiles and FindProfile return the run the rows were read from.
	Profiles(ctx context.Context, f repository.Filter) (*model.Run, []model.Profile, error)
	FindProfile(ctx context.Context, key string) (*model.Run, model.Profile, error)
	ClusterSizes(ctx context.Context) ([]repository.ClusterSize, error)
}

// Server wires HTTP routes for the profile API.
type Server struct {
	healthHandler   *HealthHandler
	runsHandler     *RunsHandler
	profilesHandler *ProfilesHandler
	clustersHandler *ClustersHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		runsHandler:     NewRunsHandler(deps),
		profilesHandler: NewProfilesHandler(deps),
		clustersHandler: NewClustersHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("GET /metrics", s.healthHandler.MetricsHandler())
	mux.HandleFunc("GET /runs/latest", MetricsMiddleware(s.runsHandler.HandleLatest, "runs_latest"))
	mux.HandleFunc("GET /profiles", MetricsMiddleware(s.profilesHandler.HandleList, "profiles"))
	mux.HandleFunc("GET /profiles/{key}", MetricsMiddleware(s.profilesHandler.HandleGet, "profile"))
	mux.HandleFunc("GET /clusters", MetricsMiddleware(s.clustersHandler.HandleList, "clusters"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeLookupError maps a read failure to 404 or 500.
func writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", err)
		return
	}
	writeError(w, http.StatusInternalServerError, "internal_error", err)
}
