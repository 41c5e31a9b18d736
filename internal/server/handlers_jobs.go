package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/bobmcallan/fundhub/internal/common"
	"github.com/bobmcallan/fundhub/internal/interfaces"
	"github.com/bobmcallan/fundhub/internal/models"
)

// readWorkbookUpload parses the multipart form shared by the sync and async
// upload endpoints.
func (s *Server) readWorkbookUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (*models.WorkbookIngestPayload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Invalid multipart form: %v", err))
		return nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteJobError(w, models.NewJobError(models.ErrKindValidation, "file field is required"))
		return nil, false
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Error reading upload: %v", err))
		return nil, false
	}

	parseMethod := r.FormValue("parse_method")
	if parseMethod != "" && parseMethod != models.ParseMethodManual && parseMethod != models.ParseMethodLLM {
		WriteJobError(w, models.NewJobError(models.ErrKindValidation, fmt.Sprintf("unknown parse method %q", parseMethod)))
		return nil, false
	}

	return &models.WorkbookIngestPayload{
		FileName:    header.Filename,
		Content:     content,
		ParseMethod: parseMethod,
		Pinned:      r.FormValue("pinned") == "true",
	}, true
}

// handleUploadExcelSync handles POST /api/upload/excel: small workbooks
// parsed inline, response carries the full ingest result.
func (s *Server) handleUploadExcelSync(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	maxBytes := int64(s.app.Config.Ingest.MaxSyncFileSizeMB) << 20
	payload, ok := s.readWorkbookUpload(w, r, maxBytes)
	if !ok {
		return
	}

	result, jobErr := s.app.IngestService.IngestWorkbook(r.Context(), payload, nil)
	if jobErr != nil {
		WriteJSON(w, statusForErrorKind(jobErr.Kind), Response{Status: "error", Error: jobErr, Data: result})
		return
	}

	WriteData(w, http.StatusOK, "Workbook ingested", result)
}

// handleUploadExcelAsync handles POST /api/jobs/upload-excel-async: the
// workbook is packed into a durable job and processed by the worker pool.
func (s *Server) handleUploadExcelAsync(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	payload, ok := s.readWorkbookUpload(w, r, 100<<20)
	if !ok {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Error encoding payload: %v", err))
		return
	}

	job, err := s.app.JobService.Submit(r.Context(), models.JobKindWorkbookIngest, data, interfaces.SubmitOptions{
		CallbackURL: r.FormValue("callback_url"),
		UserID:      resolveUserID(r),
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteData(w, http.StatusAccepted, "Workbook queued for processing", map[string]interface{}{
		"job_id": job.ID,
		"status": job.Status,
	})
}

// resolveUserID prefers the explicit form/query value over the header
// context.
func resolveUserID(r *http.Request) string {
	if v := r.FormValue("user_id"); v != "" {
		return v
	}
	return common.ResolveUserID(r.Context())
}

// handleJobList handles GET /api/jobs?status=&kind=&limit=.
func (s *Server) handleJobList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	filter := interfaces.JobFilter{
		Status: r.URL.Query().Get("status"),
		Kind:   r.URL.Query().Get("kind"),
		UserID: r.URL.Query().Get("user_id"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}

	jobs, err := s.app.JobService.List(r.Context(), filter)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Error listing jobs: %v", err))
		return
	}

	// Payloads can carry whole workbooks; strip them from listings.
	for _, job := range jobs {
		job.Payload = nil
	}

	WriteData(w, http.StatusOK, "", map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// loadJob fetches the job from the path id or writes the error response.
func (s *Server) loadJob(w http.ResponseWriter, r *http.Request, suffix string) (*models.Job, bool) {
	id := PathParam(r, "/api/jobs/", suffix)
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Job id is required")
		return nil, false
	}

	job, err := s.app.JobService.Get(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Error loading job: %v", err))
		return nil, false
	}
	if job == nil {
		WriteJobError(w, models.NewJobError(models.ErrKindNotFound, fmt.Sprintf("job %s not found", id)))
		return nil, false
	}
	return job, true
}

// handleJobStatus handles GET /api/jobs/{id}/status.
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	job, ok := s.loadJob(w, r, "/status")
	if !ok {
		return
	}
	job.Payload = nil

	WriteData(w, http.StatusOK, "", job)
}

// handleJobResult handles GET /api/jobs/{id}/result. A job that has not
// reached a terminal state yet is a 409.
func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	job, ok := s.loadJob(w, r, "/result")
	if !ok {
		return
	}

	if !models.IsTerminal(job.Status) {
		WriteJobError(w, models.NewJobError(models.ErrKindConflict, fmt.Sprintf("job %s is still %s", job.ID, job.Status)))
		return
	}

	WriteData(w, http.StatusOK, "", map[string]interface{}{
		"job_id": job.ID,
		"status": job.Status,
		"result": job.Result,
		"error":  job.Error,
	})
}

// handleJobCancel handles POST /api/jobs/{id}/cancel.
func (s *Server) handleJobCancel(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	id := PathParam(r, "/api/jobs/", "/cancel")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Job id is required")
		return
	}

	job, err := s.app.JobService.Cancel(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	job.Payload = nil

	WriteData(w, http.StatusOK, "Cancellation requested", job)
}
