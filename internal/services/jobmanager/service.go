package jobmanager

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/fundhub/internal/interfaces"
	"github.com/bobmcallan/fundhub/internal/models"
)

// Submit validates the kind and payload and enqueues a new job.
func (jm *JobManager) Submit(ctx context.Context, kind string, payload []byte, opts interfaces.SubmitOptions) (*models.Job, error) {
	if !models.KnownJobKind(kind) {
		return nil, models.NewJobError(models.ErrKindValidation, fmt.Sprintf("unknown job kind %q", kind))
	}
	if err := validatePayload(kind, payload); err != nil {
		return nil, models.NewJobError(models.ErrKindValidation, err.Error())
	}
	if opts.CallbackURL != "" {
		if err := validateCallbackURL(opts.CallbackURL); err != nil {
			return nil, models.NewJobError(models.ErrKindValidation, err.Error())
		}
	}

	job := &models.Job{
		ID:          uuid.New().String(),
		Kind:        kind,
		Payload:     payload,
		Status:      models.JobStatusQueued,
		CreatedAt:   time.Now(),
		CallbackURL: opts.CallbackURL,
		UserID:      opts.UserID,
	}

	if err := jm.storage.JobStore().Insert(ctx, job); err != nil {
		return nil, models.NewJobError(models.ErrKindStoreUnavailable, err.Error())
	}

	jm.logger.Info().
		Str("job_id", job.ID).
		Str("kind", kind).
		Str("user_id", opts.UserID).
		Msg("Job submitted")

	return job, nil
}

// validatePayload checks the kind-specific payload shape before the job is
// accepted, so malformed submissions fail at the API instead of in a worker.
func validatePayload(kind string, payload []byte) error {
	switch kind {
	case models.JobKindWorkbookIngest:
		var p models.WorkbookIngestPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("invalid workbook payload: %v", err)
		}
		if len(p.Content) == 0 && p.Path == "" {
			return fmt.Errorf("workbook payload requires content or path")
		}
		if p.ParseMethod != "" && p.ParseMethod != models.ParseMethodManual && p.ParseMethod != models.ParseMethodLLM {
			return fmt.Errorf("unknown parse method %q", p.ParseMethod)
		}
	case models.JobKindFetchHoldingsOne:
		var p models.FetchHoldingsPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("invalid holdings payload: %v", err)
		}
		if p.Symbol == "" {
			return fmt.Errorf("symbol is required")
		}
	case models.JobKindFetchHoldingsAll:
		if len(payload) == 0 {
			return nil
		}
		var p models.FetchHoldingsPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("invalid holdings payload: %v", err)
		}
		if p.Limit < 0 {
			return fmt.Errorf("limit must not be negative")
		}
	}
	return nil
}

// Get returns a job by id, nil when absent.
func (jm *JobManager) Get(ctx context.Context, id string) (*models.Job, error) {
	return jm.storage.JobStore().Get(ctx, id)
}

// List returns jobs matching the filter, newest first.
func (jm *JobManager) List(ctx context.Context, filter interfaces.JobFilter) ([]*models.Job, error) {
	return jm.storage.JobStore().List(ctx, filter)
}

// Cancel requests cooperative cancellation. A queued job is cancelled
// terminally right away; a running job is flagged and its worker stops at
// the next suspension point.
func (jm *JobManager) Cancel(ctx context.Context, id string) (*models.Job, error) {
	job, err := jm.storage.JobStore().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, models.NewJobError(models.ErrKindNotFound, fmt.Sprintf("job %s not found", id))
	}
	if models.IsTerminal(job.Status) {
		return nil, models.NewJobError(models.ErrKindConflict, fmt.Sprintf("job %s already %s", id, job.Status))
	}

	if job.Status == models.JobStatusQueued {
		ok, err := jm.storage.JobStore().MarkCancelledIfQueued(ctx, id, time.Now())
		if err != nil {
			return nil, err
		}
		if ok {
			jm.logger.Info().Str("job_id", id).Msg("Queued job cancelled")
			return jm.storage.JobStore().Get(ctx, id)
		}
		// Claimed between Get and the cancel; fall through to the running path.
	}

	if err := jm.storage.JobStore().RequestCancel(ctx, id); err != nil {
		return nil, err
	}
	jm.logger.Info().Str("job_id", id).Msg("Cancellation requested for running job")
	return jm.storage.JobStore().Get(ctx, id)
}

// Recover forces a stuck job to queued or failed. Terminal jobs conflict.
func (jm *JobManager) Recover(ctx context.Context, id, to string) (*models.Job, error) {
	if to != models.JobStatusQueued && to != models.JobStatusFailed {
		return nil, models.NewJobError(models.ErrKindValidation, fmt.Sprintf("recovery target must be queued or failed, got %q", to))
	}

	job, err := jm.storage.JobStore().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, models.NewJobError(models.ErrKindNotFound, fmt.Sprintf("job %s not found", id))
	}
	if models.IsTerminal(job.Status) {
		return nil, models.NewJobError(models.ErrKindConflict, fmt.Sprintf("job %s already %s", id, job.Status))
	}

	var jobErr *models.JobError
	if to == models.JobStatusFailed {
		jobErr = models.NewJobError(models.ErrKindManualOverride, "forced to failed by operator")
	}
	ok, err := jm.storage.JobStore().ForceState(ctx, id, to, jobErr, time.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewJobError(models.ErrKindConflict, fmt.Sprintf("job %s reached a terminal state first", id))
	}

	jm.logger.Info().Str("job_id", id).Str("to", to).Msg("Job recovered by operator")
	return jm.storage.JobStore().Get(ctx, id)
}

// RecoverAll applies Recover to every running job whose lease has expired.
func (jm *JobManager) RecoverAll(ctx context.Context, to string) (int, error) {
	if to != models.JobStatusQueued && to != models.JobStatusFailed {
		return 0, models.NewJobError(models.ErrKindValidation, fmt.Sprintf("recovery target must be queued or failed, got %q", to))
	}

	stuck, err := jm.storage.JobStore().ListStuck(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, job := range stuck {
		var jobErr *models.JobError
		if to == models.JobStatusFailed {
			jobErr = models.NewJobError(models.ErrKindManualOverride, "forced to failed by operator")
		}
		ok, err := jm.storage.JobStore().ForceState(ctx, job.ID, to, jobErr, time.Now())
		if err != nil {
			jm.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Bulk recovery failed for job")
			continue
		}
		if ok {
			recovered++
		}
	}

	if recovered > 0 {
		jm.logger.Info().Int("count", recovered).Str("to", to).Msg("Bulk recovery applied")
	}
	return recovered, nil
}

// Compile-time check
var _ interfaces.JobService = (*JobManager)(nil)
