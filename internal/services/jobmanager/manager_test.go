package jobmanager

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/bobmcallan/fundhub/internal/common"
	"github.com/bobmcallan/fundhub/internal/interfaces"
	"github.com/bobmcallan/fundhub/internal/models"
)

// --- mocks ---

// mockJobStore is an in-memory JobStore with the same ownership semantics
// as the real one.
type mockJobStore struct {
	mu   sync.Mutex
	jobs map[string]*models.Job
}

func newMockJobStore() *mockJobStore {
	return &mockJobStore{jobs: make(map[string]*models.Job)}
}

func (m *mockJobStore) clone(j *models.Job) *models.Job {
	c := *j
	return &c
}

func (m *mockJobStore) Insert(_ context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = m.clone(job)
	return nil
}

func (m *mockJobStore) Get(_ context.Context, id string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	return m.clone(j), nil
}

func (m *mockJobStore) List(_ context.Context, filter interfaces.JobFilter) ([]*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Job
	for _, j := range m.jobs {
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		if filter.Kind != "" && j.Kind != filter.Kind {
			continue
		}
		if filter.UserID != "" && j.UserID != filter.UserID {
			continue
		}
		out = append(out, m.clone(j))
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *mockJobStore) runnable(j *models.Job, now time.Time) bool {
	if j.Status == models.JobStatusQueued {
		return true
	}
	return j.Status == models.JobStatusRunning && j.LeaseExpiresAt.Before(now)
}

func (m *mockJobStore) ClaimOne(_ context.Context, kinds []string, workerID string, now time.Time, leaseTTL time.Duration) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kindSet := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		kindSet[k] = true
	}

	var oldest *models.Job
	for _, j := range m.jobs {
		if !kindSet[j.Kind] || !m.runnable(j, now) {
			continue
		}
		if oldest == nil || j.CreatedAt.Before(oldest.CreatedAt) {
			oldest = j
		}
	}
	if oldest == nil {
		return nil, nil
	}

	oldest.Status = models.JobStatusRunning
	oldest.WorkerID = workerID
	oldest.Attempts++
	oldest.LeaseExpiresAt = now.Add(leaseTTL)
	if oldest.StartedAt.IsZero() {
		oldest.StartedAt = now
	}
	return m.clone(oldest), nil
}

func (m *mockJobStore) Heartbeat(_ context.Context, id, workerID string, now time.Time, leaseTTL time.Duration) (bool, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != models.JobStatusRunning || j.WorkerID != workerID {
		return false, false, nil
	}
	j.LeaseExpiresAt = now.Add(leaseTTL)
	return true, j.CancelRequested, nil
}

func (m *mockJobStore) UpdateProgress(_ context.Context, id, workerID string, progress models.JobProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != models.JobStatusRunning || j.WorkerID != workerID {
		return nil
	}
	j.Progress = progress
	return nil
}

func (m *mockJobStore) Finalize(_ context.Context, id, workerID, status string, result []byte, jobErr *models.JobError, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != models.JobStatusRunning || j.WorkerID != workerID {
		return false, nil
	}
	j.Status = status
	j.Result = result
	j.Error = jobErr
	j.CompletedAt = now
	j.WorkerID = ""
	return true, nil
}

func (m *mockJobStore) RequestCancel(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || models.IsTerminal(j.Status) {
		return nil
	}
	j.CancelRequested = true
	return nil
}

func (m *mockJobStore) MarkCancelledIfQueued(_ context.Context, id string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != models.JobStatusQueued {
		return false, nil
	}
	j.Status = models.JobStatusCancelled
	j.Error = models.NewJobError(models.ErrKindCancelled, "cancelled before start")
	j.CompletedAt = now
	return true, nil
}

func (m *mockJobStore) RequeueExpired(_ context.Context, now time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, j := range m.jobs {
		if j.Status == models.JobStatusRunning && j.LeaseExpiresAt.Before(now) {
			j.Status = models.JobStatusQueued
			j.WorkerID = ""
			j.LeaseExpiresAt = time.Time{}
			ids = append(ids, j.ID)
		}
	}
	return ids, nil
}

func (m *mockJobStore) ListStuck(_ context.Context, cutoff time.Time) ([]*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Job
	for _, j := range m.jobs {
		if j.Status == models.JobStatusRunning && j.LeaseExpiresAt.Before(cutoff) {
			out = append(out, m.clone(j))
		}
	}
	return out, nil
}

func (m *mockJobStore) ForceState(_ context.Context, id, status string, jobErr *models.JobError, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || models.IsTerminal(j.Status) {
		return false, nil
	}
	j.Status = status
	j.WorkerID = ""
	j.LeaseExpiresAt = time.Time{}
	j.Error = jobErr
	if status == models.JobStatusFailed {
		j.CompletedAt = now
	}
	return true, nil
}

func (m *mockJobStore) SetWebhookError(_ context.Context, id, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		j.WebhookError = message
	}
	return nil
}

type mockStorageManager struct {
	jobs *mockJobStore
}

func (m *mockStorageManager) JobStore() interfaces.JobStore             { return m.jobs }
func (m *mockStorageManager) PortfolioStore() interfaces.PortfolioStore { return nil }
func (m *mockStorageManager) ETFStore() interfaces.ETFStore             { return nil }
func (m *mockStorageManager) HoldingsStore() interfaces.HoldingsStore   { return nil }
func (m *mockStorageManager) Ping(_ context.Context) error              { return nil }
func (m *mockStorageManager) Close() error                              { return nil }

func testConfig() common.JobsConfig {
	return common.JobsConfig{
		WorkerConcurrency: 2,
		LeaseTTL:          "500ms",
		HeartbeatInterval: "20ms",
		RecoveryInterval:  "50ms",
	}
}

func newTestManager() (*JobManager, *mockJobStore) {
	store := newMockJobStore()
	jm := NewJobManager(&mockStorageManager{jobs: store}, common.NewSilentLogger(), testConfig())
	return jm, store
}

// waitForStatus polls until the job reaches status or the deadline passes.
func waitForStatus(t *testing.T, store *mockJobStore, id, status string) *models.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, _ := store.Get(context.Background(), id)
		if job != nil && job.Status == status {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, _ := store.Get(context.Background(), id)
	t.Fatalf("job %s never reached %s, last: %+v", id, status, job)
	return nil
}

// --- tests ---

func TestManager_RunsJobToCompletion(t *testing.T) {
	jm, store := newTestManager()
	jm.Register(models.JobKindFetchHoldingsAll, func(_ context.Context, _ *models.Job, progress interfaces.ProgressFunc) ([]byte, *models.JobError) {
		progress(context.Background(), models.JobProgress{Total: 2, Completed: 2})
		return []byte(`{"processed":2}`), nil
	})

	job, err := jm.Submit(context.Background(), models.JobKindFetchHoldingsAll, []byte(`{}`), interfaces.SubmitOptions{})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	jm.Start()
	defer jm.Stop()

	final := waitForStatus(t, store, job.ID, models.JobStatusCompleted)
	if string(final.Result) != `{"processed":2}` {
		t.Errorf("wrong result: %s", final.Result)
	}
	if final.Progress.Completed != 2 {
		t.Errorf("expected progress retained, got %+v", final.Progress)
	}
	if final.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", final.Attempts)
	}
	if final.CompletedAt.IsZero() {
		t.Error("expected completed_at set")
	}
}

func TestManager_HandlerErrorMarksFailed(t *testing.T) {
	jm, store := newTestManager()
	jm.Register(models.JobKindFetchHoldingsOne, func(_ context.Context, _ *models.Job, _ interfaces.ProgressFunc) ([]byte, *models.JobError) {
		return nil, models.NewJobError(models.ErrKindUpstreamHTTP, "upstream said no")
	})

	job, _ := jm.Submit(context.Background(), models.JobKindFetchHoldingsOne, []byte(`{"symbol":"NIFTYBEES"}`), interfaces.SubmitOptions{})

	jm.Start()
	defer jm.Stop()

	final := waitForStatus(t, store, job.ID, models.JobStatusFailed)
	if final.Error == nil || final.Error.Kind != models.ErrKindUpstreamHTTP {
		t.Errorf("expected upstream_http error, got %+v", final.Error)
	}
	if final.Result != nil {
		t.Error("failed job must not carry a result")
	}
}

func TestManager_HandlerPanicFailsJob(t *testing.T) {
	jm, store := newTestManager()
	jm.Register(models.JobKindFetchHoldingsOne, func(_ context.Context, job *models.Job, _ interfaces.ProgressFunc) ([]byte, *models.JobError) {
		var p models.FetchHoldingsPayload
		json.Unmarshal(job.Payload, &p)
		if p.Symbol == "A" {
			panic("boom")
		}
		return []byte(`{}`), nil
	})

	first, _ := jm.Submit(context.Background(), models.JobKindFetchHoldingsOne, []byte(`{"symbol":"A"}`), interfaces.SubmitOptions{})

	jm.Start()
	defer jm.Stop()

	// The panicked job fails; the worker pool survives and runs later jobs.
	failed := waitForStatus(t, store, first.ID, models.JobStatusFailed)
	if failed.Error == nil || failed.Error.Kind != models.ErrKindInternal {
		t.Errorf("expected internal error for panic, got %+v", failed.Error)
	}

	second, _ := jm.Submit(context.Background(), models.JobKindFetchHoldingsOne, []byte(`{"symbol":"B"}`), interfaces.SubmitOptions{})
	waitForStatus(t, store, second.ID, models.JobStatusCompleted)
}

func TestManager_CancelRunningJobStopsHandler(t *testing.T) {
	jm, store := newTestManager()
	started := make(chan struct{})
	jm.Register(models.JobKindWorkbookIngest, func(ctx context.Context, _ *models.Job, _ interfaces.ProgressFunc) ([]byte, *models.JobError) {
		close(started)
		<-ctx.Done()
		return nil, models.NewJobError(models.ErrKindCancelled, "stopped")
	})

	job, _ := jm.Submit(context.Background(), models.JobKindWorkbookIngest, []byte(`{"file_name":"a.xlsx","content":"aGk="}`), interfaces.SubmitOptions{})

	jm.Start()
	defer jm.Stop()

	<-started
	if _, err := jm.Cancel(context.Background(), job.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	final := waitForStatus(t, store, job.ID, models.JobStatusCancelled)
	if final.Error == nil || final.Error.Kind != models.ErrKindCancelled {
		t.Errorf("expected cancelled error, got %+v", final.Error)
	}
}

func TestManager_RecoveryRequeuesExpiredLease(t *testing.T) {
	jm, store := newTestManager()
	jm.Register(models.JobKindFetchHoldingsOne, func(_ context.Context, _ *models.Job, _ interfaces.ProgressFunc) ([]byte, *models.JobError) {
		return []byte(`{}`), nil
	})

	// Simulate a job abandoned by a dead worker.
	dead := &models.Job{
		ID:             "orphan-1",
		Kind:           models.JobKindFetchHoldingsOne,
		Payload:        []byte(`{"symbol":"X"}`),
		Status:         models.JobStatusRunning,
		WorkerID:       "dead-worker",
		Attempts:       1,
		LeaseExpiresAt: time.Now().Add(-time.Minute),
		CreatedAt:      time.Now().Add(-time.Hour),
		StartedAt:      time.Now().Add(-time.Hour),
	}
	store.Insert(context.Background(), dead)

	jm.Start()
	defer jm.Stop()

	final := waitForStatus(t, store, "orphan-1", models.JobStatusCompleted)
	if final.Attempts != 2 {
		t.Errorf("expected second attempt after requeue, got %d", final.Attempts)
	}
}

func TestManager_UnregisteredKindNotClaimed(t *testing.T) {
	jm, store := newTestManager()
	jm.Register(models.JobKindFetchHoldingsOne, func(_ context.Context, _ *models.Job, _ interfaces.ProgressFunc) ([]byte, *models.JobError) {
		return []byte(`{}`), nil
	})

	other, _ := jm.Submit(context.Background(), models.JobKindFetchHoldingsAll, []byte(`{}`), interfaces.SubmitOptions{})

	jm.Start()
	defer jm.Stop()

	time.Sleep(100 * time.Millisecond)
	job, _ := store.Get(context.Background(), other.ID)
	if job.Status != models.JobStatusQueued {
		t.Errorf("expected unhandled kind to stay queued, got %s", job.Status)
	}
}
