// Package jobmanager runs the durable job subsystem: a worker pool claiming
// jobs from the store under short leases, heartbeat-driven cancellation, and
// a recovery loop that requeues jobs whose worker died.
package jobmanager

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/fundhub/internal/common"
	"github.com/bobmcallan/fundhub/internal/interfaces"
	"github.com/bobmcallan/fundhub/internal/models"
)

// idleSleep is how long a processor waits after an empty claim before
// polling again.
const idleSleep = 1 * time.Second

// JobManager owns the worker pool and implements the JobService surface.
type JobManager struct {
	storage interfaces.StorageManager
	logger  *common.Logger
	config  common.JobsConfig
	webhook *webhookDispatcher

	handlers map[string]interfaces.JobHandler
	kinds    []string

	workerBase string
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewJobManager creates a job manager. Handlers are registered before Start.
func NewJobManager(storage interfaces.StorageManager, logger *common.Logger, config common.JobsConfig) *JobManager {
	host, _ := os.Hostname()
	if host == "" {
		host = "fundhub"
	}
	return &JobManager{
		storage:    storage,
		logger:     logger,
		config:     config,
		webhook:    newWebhookDispatcher(storage.JobStore(), logger),
		handlers:   make(map[string]interfaces.JobHandler),
		workerBase: fmt.Sprintf("%s-%s", host, uuid.New().String()[:8]),
	}
}

// Register binds a handler to a job kind. Unregistered kinds are never
// claimed by this process.
func (jm *JobManager) Register(kind string, handler interfaces.JobHandler) {
	jm.handlers[kind] = handler
	jm.kinds = append(jm.kinds, kind)
}

// safeGo launches a goroutine with panic recovery and logging.
func (jm *JobManager) safeGo(name string, fn func()) {
	jm.wg.Add(1)
	go func() {
		defer jm.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				jm.logger.Error().
					Str("goroutine", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(debug.Stack())).
					Msg("Recovered from panic in job manager goroutine")
			}
		}()
		fn()
	}()
}

// Start runs the startup recovery sweep, then launches the recovery loop and
// the processor pool. Safe to call multiple times.
func (jm *JobManager) Start() {
	if jm.cancel != nil {
		jm.Stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	jm.cancel = cancel

	// Requeue jobs orphaned by a previous crash before workers start.
	if ids, err := jm.storage.JobStore().RequeueExpired(ctx, time.Now()); err != nil {
		jm.logger.Warn().Err(err).Msg("Startup recovery sweep failed")
	} else if len(ids) > 0 {
		jm.logger.Info().Int("count", len(ids)).Strs("job_ids", ids).Msg("Requeued orphaned jobs at startup")
	}

	jm.safeGo("recovery", func() { jm.recoveryLoop(ctx) })

	concurrency := jm.config.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	for i := 0; i < concurrency; i++ {
		workerID := fmt.Sprintf("%s-w%d", jm.workerBase, i)
		jm.safeGo(workerID, func() { jm.processLoop(ctx, workerID) })
	}

	jm.logger.Info().
		Int("concurrency", concurrency).
		Dur("lease_ttl", jm.config.GetLeaseTTL()).
		Dur("heartbeat_interval", jm.config.GetHeartbeatInterval()).
		Msg("Job manager started")
}

// Stop cancels all loops and waits for in-flight jobs to finish their
// current suspension point.
func (jm *JobManager) Stop() {
	if jm.cancel != nil {
		jm.cancel()
		jm.cancel = nil
	}
	jm.wg.Wait()
	jm.logger.Info().Msg("Job manager stopped")
}

// processLoop continuously claims and executes jobs for one worker identity.
func (jm *JobManager) processLoop(ctx context.Context, workerID string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := jm.storage.JobStore().ClaimOne(ctx, jm.kinds, workerID, time.Now(), jm.config.GetLeaseTTL())
		if err != nil {
			jm.logger.Warn().Str("worker_id", workerID).Err(err).Msg("Claim error")
			jm.sleep(ctx, idleSleep)
			continue
		}
		if job == nil {
			jm.sleep(ctx, idleSleep)
			continue
		}

		jm.runJob(ctx, job, workerID)
	}
}

func (jm *JobManager) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// runJob executes one claimed job: a heartbeat goroutine keeps the lease
// alive and trips the job context when cancellation is requested or
// ownership is lost, then the handler result is finalized exactly once.
func (jm *JobManager) runJob(ctx context.Context, job *models.Job, workerID string) {
	jobCtx, cancelJob := context.WithCancel(ctx)
	defer cancelJob()

	var leaseLost atomic.Bool
	var cancelRequested atomic.Bool

	hbDone := make(chan struct{})
	go func() {
		defer close(hbDone)
		ticker := time.NewTicker(jm.config.GetHeartbeatInterval())
		defer ticker.Stop()
		for {
			select {
			case <-jobCtx.Done():
				return
			case <-ticker.C:
			}
			ok, cancelled, err := jm.storage.JobStore().Heartbeat(ctx, job.ID, workerID, time.Now(), jm.config.GetLeaseTTL())
			if err != nil {
				jm.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Heartbeat failed")
				continue
			}
			if !ok {
				leaseLost.Store(true)
				cancelJob()
				return
			}
			if cancelled {
				cancelRequested.Store(true)
				cancelJob()
				return
			}
		}
	}()

	progress := func(pctx context.Context, p models.JobProgress) {
		if p.Total > 0 {
			p.Percentage = float64(p.Completed+p.Failed) / float64(p.Total) * 100
		}
		if err := jm.storage.JobStore().UpdateProgress(pctx, job.ID, workerID, p); err != nil {
			jm.logger.Debug().Str("job_id", job.ID).Err(err).Msg("Progress write failed")
		}
	}

	start := time.Now()
	jm.logger.Info().
		Str("job_id", job.ID).
		Str("kind", job.Kind).
		Str("worker_id", workerID).
		Int("attempt", job.Attempts).
		Msg("Job started")

	handler := jm.handlers[job.Kind]
	var result []byte
	var jobErr *models.JobError
	if handler == nil {
		jobErr = models.NewJobError(models.ErrKindValidation, fmt.Sprintf("no handler registered for kind %s", job.Kind))
	} else {
		result, jobErr = runHandler(jobCtx, handler, job, progress)
	}

	cancelJob()
	<-hbDone

	if leaseLost.Load() {
		// Another worker owns the job now; abandon without finalizing.
		jm.logger.Warn().
			Str("job_id", job.ID).
			Str("worker_id", workerID).
			Msg("Lease lost mid-run, abandoning job")
		return
	}

	status := models.JobStatusCompleted
	switch {
	case cancelRequested.Load():
		status = models.JobStatusCancelled
		result = nil
		jobErr = models.NewJobError(models.ErrKindCancelled, "cancelled by request")
	case jobErr != nil:
		status = models.JobStatusFailed
		result = nil
	}

	ok, err := jm.storage.JobStore().Finalize(ctx, job.ID, workerID, status, result, jobErr, time.Now())
	if err != nil {
		jm.logger.Error().Str("job_id", job.ID).Err(err).Msg("Finalize failed")
		return
	}
	if !ok {
		jm.logger.Warn().Str("job_id", job.ID).Msg("Job finalized elsewhere, result discarded")
		return
	}

	event := jm.logger.Info()
	if status == models.JobStatusFailed {
		event = jm.logger.Warn().Str("error_kind", jobErr.Kind).Str("error", jobErr.Message)
	}
	event.
		Str("job_id", job.ID).
		Str("kind", job.Kind).
		Str("status", status).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("Job finished")

	if job.CallbackURL != "" {
		final, err := jm.storage.JobStore().Get(ctx, job.ID)
		if err != nil || final == nil {
			jm.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Could not load job for webhook")
			return
		}
		jm.webhook.Dispatch(ctx, final)
	}
}

// runHandler invokes the handler with panic containment so one bad job
// cannot take a worker loop down with it.
func runHandler(ctx context.Context, handler interfaces.JobHandler, job *models.Job, progress interfaces.ProgressFunc) (result []byte, jobErr *models.JobError) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			jobErr = models.NewJobError(models.ErrKindInternal, fmt.Sprintf("handler panic: %v", r))
		}
	}()
	return handler(ctx, job, progress)
}
