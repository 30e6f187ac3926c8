package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Nativu5/netpulse/pkg/config"
	"github.com/Nativu5/netpulse/pkg/domain"
	"github.com/Nativu5/netpulse/pkg/manager"
	"github.com/Nativu5/netpulse/pkg/sched"
	"github.com/Nativu5/netpulse/pkg/store"
	"github.com/Nativu5/netpulse/pkg/telemetry"
)

// Server is the NetPulse HTTP surface: job submission and queries on
// top of the dispatch manager.
type Server struct {
	manager *manager.Manager
	cfg     *config.Config
	logger  telemetry.Logger
}

func NewServer(m *manager.Manager, cfg *config.Config, logger telemetry.Logger) *Server {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Server{manager: m, cfg: cfg, logger: logger}
}

// Handler builds the routed, middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /jobs", s.handleSubmit)
	mux.HandleFunc("POST /jobs/batch", s.handleSubmitBatch)
	mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	mux.HandleFunc("GET /nodes", s.handleListNodes)
	mux.HandleFunc("DELETE /nodes/{id}", s.handleDeleteNode)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	var h http.Handler = mux
	h = RateLimit(s.cfg.Server.RateLimit, h)
	h = RequireAPIKey(s.cfg.Server.APIKey, h)
	return h
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req domain.JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if req.Host == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "host is required")
		return
	}

	job, err := s.manager.Dispatch(r.Context(), &req)
	if err != nil {
		s.writeDispatchError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleSubmitBatch(w http.ResponseWriter, r *http.Request) {
	var reqs []*domain.JobRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	for _, req := range reqs {
		if req.Host == "" {
			writeError(w, http.StatusBadRequest, "bad_request", "host is required on every request")
			return
		}
	}

	jobs, err := s.manager.DispatchBatch(r.Context(), reqs)
	if err != nil {
		s.writeDispatchError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, jobs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := domain.JobID(r.PathValue("id"))

	job, err := s.manager.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.manager.ListNodes(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
		return
	}
	if nodes == nil {
		nodes = []domain.WorkerNode{}
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (s *Server) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	id := domain.NodeID(r.PathValue("id"))

	if err := s.manager.DeleteNode(r.Context(), id); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeDispatchError maps scheduler errors onto stable API codes.
// Capacity exhaustion and unmet requirements both answer 503 but keep
// distinct codes for observability.
func (s *Server) writeDispatchError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, sched.ErrNoEligibleNode):
		writeError(w, http.StatusServiceUnavailable, "no_eligible_node", err.Error())
	case errors.Is(err, sched.ErrNoCapacity):
		writeError(w, http.StatusServiceUnavailable, "capacity_exhausted", err.Error())
	case errors.Is(err, sched.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, 499, "canceled", "request canceled")
	default:
		s.logger.Error(r.Context(), "dispatch failed", map[string]any{"error": err.Error()})
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	}
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, apiError{Code: code, Message: msg})
}
