package surrealdb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bobmcallan/fundhub/internal/common"
	"github.com/bobmcallan/fundhub/internal/interfaces"
	"github.com/bobmcallan/fundhub/internal/models"
	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// jobSelectFields lists the fields to select from jobs, aliasing job_id to id for struct mapping.
const jobSelectFields = "job_id as id, kind, payload, status, progress, result, error, attempts, worker_id, lease_expires_at, created_at, started_at, completed_at, callback_url, user_id, cancel_requested, webhook_error"

// runnableCond matches jobs a worker may claim: queued, or running with an
// expired lease. Callers bind $queued, $running and $now.
const runnableCond = "(status = $queued OR (status = $running AND lease_expires_at < $now))"

// jobDoc is the stored shape of a job. Payload and result are JSON text so
// the document survives the CBOR round trip unaltered.
type jobDoc struct {
	ID              string             `json:"id"`
	Kind            string             `json:"kind"`
	Payload         string             `json:"payload"`
	Status          string             `json:"status"`
	Progress        models.JobProgress `json:"progress"`
	Result          string             `json:"result"`
	Error           *models.JobError   `json:"error,omitempty"`
	Attempts        int                `json:"attempts"`
	WorkerID        string             `json:"worker_id"`
	LeaseExpiresAt  time.Time          `json:"lease_expires_at"`
	CreatedAt       time.Time          `json:"created_at"`
	StartedAt       time.Time          `json:"started_at"`
	CompletedAt     time.Time          `json:"completed_at"`
	CallbackURL     string             `json:"callback_url"`
	UserID          string             `json:"user_id"`
	CancelRequested bool               `json:"cancel_requested"`
	WebhookError    string             `json:"webhook_error"`
}

func (d *jobDoc) toJob() *models.Job {
	job := &models.Job{
		ID:              d.ID,
		Kind:            d.Kind,
		Status:          d.Status,
		Progress:        d.Progress,
		Error:           d.Error,
		Attempts:        d.Attempts,
		WorkerID:        d.WorkerID,
		LeaseExpiresAt:  d.LeaseExpiresAt,
		CreatedAt:       d.CreatedAt,
		StartedAt:       d.StartedAt,
		CompletedAt:     d.CompletedAt,
		CallbackURL:     d.CallbackURL,
		UserID:          d.UserID,
		CancelRequested: d.CancelRequested,
		WebhookError:    d.WebhookError,
	}
	if d.Payload != "" {
		job.Payload = json.RawMessage(d.Payload)
	}
	if d.Result != "" {
		job.Result = json.RawMessage(d.Result)
	}
	return job
}

// JobStore implements interfaces.JobStore using SurrealDB.
type JobStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewJobStore creates a new JobStore.
func NewJobStore(db *surrealdb.DB, logger *common.Logger) *JobStore {
	return &JobStore{db: db, logger: logger}
}

func (s *JobStore) Insert(ctx context.Context, job *models.Job) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = models.JobStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	sql := `UPSERT $rid SET
		job_id = $job_id, kind = $kind, payload = $payload, status = $status,
		progress = $progress, result = $result, error = $error, attempts = $attempts,
		worker_id = $worker_id, lease_expires_at = $lease_expires_at,
		created_at = $created_at, started_at = $started_at, completed_at = $completed_at,
		callback_url = $callback_url, user_id = $user_id,
		cancel_requested = $cancel_requested, webhook_error = $webhook_error`
	vars := map[string]any{
		"rid":              surrealmodels.NewRecordID("jobs", job.ID),
		"job_id":           job.ID,
		"kind":             job.Kind,
		"payload":          string(job.Payload),
		"status":           job.Status,
		"progress":         job.Progress,
		"result":           string(job.Result),
		"error":            job.Error,
		"attempts":         job.Attempts,
		"worker_id":        job.WorkerID,
		"lease_expires_at": job.LeaseExpiresAt,
		"created_at":       job.CreatedAt,
		"started_at":       job.StartedAt,
		"completed_at":     job.CompletedAt,
		"callback_url":     job.CallbackURL,
		"user_id":          job.UserID,
		"cancel_requested": job.CancelRequested,
		"webhook_error":    job.WebhookError,
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

func (s *JobStore) Get(ctx context.Context, id string) (*models.Job, error) {
	sql := "SELECT " + jobSelectFields + " FROM jobs WHERE job_id = $id LIMIT 1"
	jobs, err := s.queryJobs(ctx, sql, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return jobs[0], nil
}

func (s *JobStore) List(ctx context.Context, filter interfaces.JobFilter) ([]*models.Job, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	sql := "SELECT " + jobSelectFields + " FROM jobs"
	where := ""
	vars := map[string]any{"limit": limit}
	if filter.Status != "" {
		where += " AND status = $status"
		vars["status"] = filter.Status
	}
	if filter.Kind != "" {
		where += " AND kind = $kind"
		vars["kind"] = filter.Kind
	}
	if filter.UserID != "" {
		where += " AND user_id = $user_id"
		vars["user_id"] = filter.UserID
	}
	if where != "" {
		sql += " WHERE" + where[4:]
	}
	sql += " ORDER BY created_at DESC LIMIT $limit"

	return s.queryJobs(ctx, sql, vars)
}

func (s *JobStore) ClaimOne(ctx context.Context, kinds []string, workerID string, now time.Time, leaseTTL time.Duration) (*models.Job, error) {
	// Two-step claim: SELECT the oldest runnable job, then a conditional
	// UPDATE that only succeeds while the job is still runnable. Losing the
	// race yields an empty update; the caller just polls again.
	selectSQL := "SELECT " + jobSelectFields + " FROM jobs WHERE kind IN $kinds AND " + runnableCond + " ORDER BY created_at ASC LIMIT 1"
	vars := map[string]any{
		"kinds":   kinds,
		"queued":  models.JobStatusQueued,
		"running": models.JobStatusRunning,
		"now":     now,
	}

	candidates, err := s.queryJobs(ctx, selectSQL, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to select candidate job: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	candidate := candidates[0]

	startedAt := candidate.StartedAt
	if startedAt.IsZero() {
		startedAt = now
	}
	lease := now.Add(leaseTTL)

	updateSQL := `UPDATE $rid SET status = $running, worker_id = $worker_id,
		attempts = attempts + 1, started_at = $started_at, lease_expires_at = $lease
		WHERE ` + runnableCond + ` RETURN job_id AS id`
	updateVars := map[string]any{
		"rid":        surrealmodels.NewRecordID("jobs", candidate.ID),
		"queued":     models.JobStatusQueued,
		"running":    models.JobStatusRunning,
		"worker_id":  workerID,
		"started_at": startedAt,
		"lease":      lease,
		"now":        now,
	}

	updated, err := surrealdb.Query[[]jobDoc](ctx, s.db, updateSQL, updateVars)
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	if updated == nil || len(*updated) == 0 || len((*updated)[0].Result) == 0 {
		// Lost the race to another worker
		return nil, nil
	}

	candidate.Status = models.JobStatusRunning
	candidate.WorkerID = workerID
	candidate.Attempts++
	candidate.StartedAt = startedAt
	candidate.LeaseExpiresAt = lease
	return candidate, nil
}

func (s *JobStore) Heartbeat(ctx context.Context, id, workerID string, now time.Time, leaseTTL time.Duration) (bool, bool, error) {
	sql := `UPDATE $rid SET lease_expires_at = $lease
		WHERE status = $running AND worker_id = $worker_id
		RETURN job_id AS id, cancel_requested`
	vars := map[string]any{
		"rid":       surrealmodels.NewRecordID("jobs", id),
		"lease":     now.Add(leaseTTL),
		"running":   models.JobStatusRunning,
		"worker_id": workerID,
	}

	results, err := surrealdb.Query[[]jobDoc](ctx, s.db, sql, vars)
	if err != nil {
		return false, false, fmt.Errorf("failed to heartbeat job: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return false, false, nil
	}
	return true, (*results)[0].Result[0].CancelRequested, nil
}

func (s *JobStore) UpdateProgress(ctx context.Context, id, workerID string, progress models.JobProgress) error {
	sql := `UPDATE $rid SET progress = $progress
		WHERE status = $running AND worker_id = $worker_id`
	vars := map[string]any{
		"rid":       surrealmodels.NewRecordID("jobs", id),
		"progress":  progress,
		"running":   models.JobStatusRunning,
		"worker_id": workerID,
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	return nil
}

func (s *JobStore) Finalize(ctx context.Context, id, workerID, status string, result []byte, jobErr *models.JobError, now time.Time) (bool, error) {
	sql := `UPDATE $rid SET status = $status, result = $result, error = $error,
		completed_at = $now
		WHERE status = $running AND worker_id = $worker_id
		RETURN job_id AS id`
	vars := map[string]any{
		"rid":       surrealmodels.NewRecordID("jobs", id),
		"status":    status,
		"result":    string(result),
		"error":     jobErr,
		"now":       now,
		"running":   models.JobStatusRunning,
		"worker_id": workerID,
	}

	results, err := surrealdb.Query[[]jobDoc](ctx, s.db, sql, vars)
	if err != nil {
		return false, fmt.Errorf("failed to finalize job: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return false, nil
	}
	return true, nil
}

func (s *JobStore) RequestCancel(ctx context.Context, id string) error {
	sql := `UPDATE $rid SET cancel_requested = true
		WHERE status IN [$queued, $running]`
	vars := map[string]any{
		"rid":     surrealmodels.NewRecordID("jobs", id),
		"queued":  models.JobStatusQueued,
		"running": models.JobStatusRunning,
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to request cancel: %w", err)
	}
	return nil
}

func (s *JobStore) MarkCancelledIfQueued(ctx context.Context, id string, now time.Time) (bool, error) {
	sql := `UPDATE $rid SET status = $cancelled, completed_at = $now
		WHERE status = $queued
		RETURN job_id AS id`
	vars := map[string]any{
		"rid":       surrealmodels.NewRecordID("jobs", id),
		"cancelled": models.JobStatusCancelled,
		"queued":    models.JobStatusQueued,
		"now":       now,
	}

	results, err := surrealdb.Query[[]jobDoc](ctx, s.db, sql, vars)
	if err != nil {
		return false, fmt.Errorf("failed to cancel queued job: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return false, nil
	}
	return true, nil
}

func (s *JobStore) RequeueExpired(ctx context.Context, now time.Time) ([]string, error) {
	// Progress is retained so a requeued job resumes reporting from where
	// the dead worker left off.
	sql := `UPDATE jobs SET status = $queued, worker_id = "", lease_expires_at = $zero
		WHERE status = $running AND lease_expires_at < $now
		RETURN job_id AS id`
	vars := map[string]any{
		"queued":  models.JobStatusQueued,
		"running": models.JobStatusRunning,
		"zero":    time.Time{},
		"now":     now,
	}

	results, err := surrealdb.Query[[]jobDoc](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to requeue expired jobs: %w", err)
	}

	var ids []string
	if results != nil && len(*results) > 0 {
		for _, doc := range (*results)[0].Result {
			ids = append(ids, doc.ID)
		}
	}
	return ids, nil
}

func (s *JobStore) ListStuck(ctx context.Context, cutoff time.Time) ([]*models.Job, error) {
	sql := "SELECT " + jobSelectFields + " FROM jobs WHERE status = $running AND lease_expires_at < $cutoff ORDER BY created_at ASC"
	vars := map[string]any{
		"running": models.JobStatusRunning,
		"cutoff":  cutoff,
	}
	return s.queryJobs(ctx, sql, vars)
}

func (s *JobStore) ForceState(ctx context.Context, id, status string, jobErr *models.JobError, now time.Time) (bool, error) {
	var sql string
	vars := map[string]any{
		"rid":     surrealmodels.NewRecordID("jobs", id),
		"queued":  models.JobStatusQueued,
		"running": models.JobStatusRunning,
		"error":   jobErr,
	}

	switch status {
	case models.JobStatusQueued:
		sql = `UPDATE $rid SET status = $queued, worker_id = "", lease_expires_at = $zero, error = $error
			WHERE status IN [$queued, $running]
			RETURN job_id AS id`
		vars["zero"] = time.Time{}
	case models.JobStatusFailed:
		sql = `UPDATE $rid SET status = $failed, completed_at = $now, error = $error
			WHERE status IN [$queued, $running]
			RETURN job_id AS id`
		vars["failed"] = models.JobStatusFailed
		vars["now"] = now
	default:
		return false, fmt.Errorf("unsupported force state: %s", status)
	}

	results, err := surrealdb.Query[[]jobDoc](ctx, s.db, sql, vars)
	if err != nil {
		return false, fmt.Errorf("failed to force job state: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return false, nil
	}
	return true, nil
}

func (s *JobStore) SetWebhookError(ctx context.Context, id, message string) error {
	sql := "UPDATE $rid SET webhook_error = $message"
	vars := map[string]any{
		"rid":     surrealmodels.NewRecordID("jobs", id),
		"message": message,
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to set webhook error: %w", err)
	}
	return nil
}

// queryJobs is a helper that runs a query and returns a slice of Job pointers.
func (s *JobStore) queryJobs(ctx context.Context, sql string, vars map[string]any) ([]*models.Job, error) {
	results, err := surrealdb.Query[[]jobDoc](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}

	var jobs []*models.Job
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			jobs = append(jobs, (*results)[0].Result[i].toJob())
		}
	}
	return jobs, nil
}

// Compile-time check
var _ interfaces.JobStore = (*JobStore)(nil)
