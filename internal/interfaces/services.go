// Package interfaces defines service contracts for FundHub
package interfaces

import (
	"context"

	"github.com/bobmcallan/fundhub/internal/models"
)

// ProgressFunc lets a running handler report per-item progress. Calls are
// best-effort; a failed write never aborts the handler.
type ProgressFunc func(ctx context.Context, progress models.JobProgress)

// JobHandler executes one claimed job. The context is cancelled when the
// job is cancelled or the lease is lost; handlers must return promptly
// after that. A non-nil JobError marks the job failed, otherwise the
// returned bytes become the job result.
type JobHandler func(ctx context.Context, job *models.Job, progress ProgressFunc) (result []byte, jobErr *models.JobError)

// SubmitOptions carries optional submission metadata.
type SubmitOptions struct {
	CallbackURL string
	UserID      string
}

// JobService is the submission and inspection surface over the job
// subsystem.
type JobService interface {
	// Submit validates kind and payload and enqueues a new job.
	Submit(ctx context.Context, kind string, payload []byte, opts SubmitOptions) (*models.Job, error)

	Get(ctx context.Context, id string) (*models.Job, error)
	List(ctx context.Context, filter JobFilter) ([]*models.Job, error)

	// Cancel requests cooperative cancellation. Queued jobs are cancelled
	// immediately; running jobs are flagged and stop at the next
	// suspension point. Terminal jobs return a conflict error.
	Cancel(ctx context.Context, id string) (*models.Job, error)

	// Recover forces a stuck job to queued or failed with a
	// manual_override error. Terminal jobs are left untouched.
	Recover(ctx context.Context, id, to string) (*models.Job, error)

	// RecoverAll applies Recover to every expired-lease running job.
	RecoverAll(ctx context.Context, to string) (int, error)
}

// IngestService turns an uploaded workbook into stored portfolios.
type IngestService interface {
	// IngestWorkbook runs the full per-sheet pipeline. Used by the async
	// job handler and, with a background progress sink, the sync upload
	// endpoint.
	IngestWorkbook(ctx context.Context, payload *models.WorkbookIngestPayload, progress ProgressFunc) (*models.WorkbookIngestResult, *models.JobError)
}

// HoldingsService fetches and caches ETF constituent holdings.
type HoldingsService interface {
	// FetchOne refreshes the snapshot for a single symbol.
	FetchOne(ctx context.Context, symbol string, progress ProgressFunc) (*models.HoldingsFetchResult, *models.JobError)

	// FetchAll walks every ETF with a known ISIN in symbol order,
	// truncated by limit when positive.
	FetchAll(ctx context.Context, limit int, progress ProgressFunc) (*models.HoldingsFetchResult, *models.JobError)
}
