// Package engine exposes the scheduling and settlement core over HTTP. It
// is a thin boundary: handlers translate requests into store and scheduler
// calls and map the typed error taxonomy onto status codes.
package engine

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/heliogrid/heliogrid/internal/core/domain"
	"github.com/heliogrid/heliogrid/internal/core/ports"
	"github.com/heliogrid/heliogrid/internal/core/runspec"
	"github.com/heliogrid/heliogrid/internal/core/services"
)

type Server struct {
	logger    *slog.Logger
	store     ports.Store
	scheduler *services.Scheduler
	bus       *services.EventBus
}

func NewServer(logger *slog.Logger, store ports.Store, scheduler *services.Scheduler, bus *services.EventBus) *Server {
	return &Server{
		logger:    logger,
		store:     store,
		scheduler: scheduler,
		bus:       bus,
	}
}

// Handler returns the engine's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs", s.handleCreateJob)
	mux.HandleFunc("GET /jobs", s.handleListJobs)
	mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	mux.HandleFunc("GET /jobs/{id}/payments", s.handleJobPayments)
	mux.HandleFunc("POST /jobs/assign", s.handleAssign)
	mux.HandleFunc("POST /jobs/report", s.handleReport)
	mux.HandleFunc("POST /providers/register", s.handleRegisterProvider)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /events", s.handleEventsSSE)
	mux.Handle("GET /metrics", promhttp.Handler())
	return logging(s.logger, mux)
}

type createJobRequest struct {
	UserID      string `json:"userId"`
	DockerImage string `json:"dockerImage"`
	Command     string `json:"command,omitempty"`
}

// handleCreateJob submits a job. The image reference is syntax-checked
// before the store ever sees it.
// POST /jobs
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "userId is required")
		return
	}
	if !runspec.ValidateImageRef(req.DockerImage) {
		respondError(w, http.StatusBadRequest, "malformed docker image reference")
		return
	}

	job, err := s.store.CreateJob(r.Context(), req.UserID, req.DockerImage, req.Command)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	services.JobsCreatedTotal.Inc()
	respondJSON(w, http.StatusCreated, job)
}

// GET /jobs/{id}
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := s.store.GetJob(r.Context(), domain.JobID(id))
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// GET /jobs?userId=&status=&limit=
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ports.JobFilter{
		UserID: q.Get("userId"),
		Status: domain.JobStatus(q.Get("status")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		respondError(w, http.StatusBadRequest, "unknown status filter")
		return
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	jobs, err := s.store.ListJobs(r.Context(), filter)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	if jobs == nil {
		jobs = []domain.Job{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"jobs": jobs, "count": len(jobs)})
}

// GET /jobs/{id}/payments
func (s *Server) handleJobPayments(w http.ResponseWriter, r *http.Request) {
	id := domain.JobID(r.PathValue("id"))
	if _, err := s.store.GetJob(r.Context(), id); err != nil {
		s.respondStoreError(w, err)
		return
	}
	payments, err := s.store.ListPaymentsForJob(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	if payments == nil {
		payments = []domain.Payment{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"payments": payments, "count": len(payments)})
}

type registerProviderRequest struct {
	ProviderID string          `json:"providerId,omitempty"`
	OwnerID    string          `json:"ownerId,omitempty"`
	GPUSpecs   json.RawMessage `json:"gpuSpecs,omitempty"`
}

// POST /providers/register
func (s *Server) handleRegisterProvider(w http.ResponseWriter, r *http.Request) {
	var req registerProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	var ownerID *string
	if req.OwnerID != "" {
		ownerID = &req.OwnerID
	}

	provider, created, err := s.store.RegisterProvider(r.Context(), domain.ProviderID(req.ProviderID), ownerID, req.GPUSpecs)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	status := "updated"
	if created {
		status = "created"
	}
	s.logger.Info("provider registered", "provider_id", provider.ID, "status", status)
	respondJSON(w, http.StatusOK, map[string]string{
		"providerId": string(provider.ID),
		"status":     status,
	})
}

type assignRequest struct {
	ProviderID string `json:"providerId"`
}

// handleAssign is the provider-pull path: the node asks for its next job and
// receives the normalized container config alongside it.
// POST /jobs/assign
func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ProviderID == "" {
		respondError(w, http.StatusBadRequest, "providerId is required")
		return
	}

	job, cfg, err := s.scheduler.Assign(r.Context(), domain.ProviderID(req.ProviderID))
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	if job == nil {
		respondJSON(w, http.StatusOK, map[string]bool{"noJob": true})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"job":             job,
		"containerConfig": cfg,
		"runCommand":      cfg.RenderRunCommand(),
	})
}

type reportRequest struct {
	JobID                string   `json:"jobId"`
	ProviderID           string   `json:"providerId"`
	Status               string   `json:"status"`
	ExecutionTimeMinutes *float64 `json:"executionTimeMinutes,omitempty"`
}

// POST /jobs/report
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.JobID == "" || req.ProviderID == "" {
		respondError(w, http.StatusBadRequest, "jobId and providerId are required")
		return
	}

	job, err := s.scheduler.ReportStatus(r.Context(),
		domain.JobID(req.JobID),
		domain.ProviderID(req.ProviderID),
		domain.JobStatus(req.Status),
		req.ExecutionTimeMinutes,
	)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "job": job})
}

// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondStoreError maps the typed error taxonomy onto HTTP statuses.
// Unrecognized errors are internal: logged here, opaque to the caller.
func (s *Server) respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrJobNotFound), errors.Is(err, domain.ErrProviderNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		respondError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("internal error", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, map[string]string{"error": message})
}
