package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bobmcallan/fundhub/internal/models"
)

// recoverRequest is the operator override body.
type recoverRequest struct {
	To string `json:"to"`
}

// handleJobRecover handles POST /api/admin/jobs/{id}/recover.
func (s *Server) handleJobRecover(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/recover") {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	id := PathParam(r, "/api/admin/jobs/", "/recover")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Job id is required")
		return
	}

	var req recoverRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}
	if req.To == "" {
		req.To = models.JobStatusQueued
	}

	job, err := s.app.JobService.Recover(r.Context(), id, req.To)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	job.Payload = nil

	WriteData(w, http.StatusOK, "Job recovered", job)
}

// handleJobRecoverAll handles POST /api/admin/jobs/recover-all.
func (s *Server) handleJobRecoverAll(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req recoverRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}
	if req.To == "" {
		req.To = models.JobStatusQueued
	}

	count, err := s.app.JobService.RecoverAll(r.Context(), req.To)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteData(w, http.StatusOK, "Recovery applied", map[string]interface{}{
		"recovered": count,
		"to":        req.To,
	})
}
