// Package interfaces defines service contracts for FundHub
package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/fundhub/internal/models"
)

// StorageManager coordinates all storage backends
type StorageManager interface {
	JobStore() JobStore
	PortfolioStore() PortfolioStore
	ETFStore() ETFStore
	HoldingsStore() HoldingsStore

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// JobStore is the durable job queue. Claim, heartbeat and finalize are
// single-statement server-side updates so that ownership transitions stay
// atomic under concurrent workers and crashes.
type JobStore interface {
	Insert(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, id string) (*models.Job, error)
	List(ctx context.Context, filter JobFilter) ([]*models.Job, error)

	// ClaimOne atomically moves one runnable job (queued, or running with an
	// expired lease) to running for workerID, incrementing attempts and
	// setting lease_expires_at = now + leaseTTL. Returns nil when nothing is
	// runnable.
	ClaimOne(ctx context.Context, kinds []string, workerID string, now time.Time, leaseTTL time.Duration) (*models.Job, error)

	// Heartbeat extends the lease while workerID still owns the job. It
	// returns the current cancel_requested flag; ok is false when ownership
	// was lost.
	Heartbeat(ctx context.Context, id, workerID string, now time.Time, leaseTTL time.Duration) (ok bool, cancelRequested bool, err error)

	UpdateProgress(ctx context.Context, id, workerID string, progress models.JobProgress) error

	// Finalize writes the terminal status, result or error and completed_at
	// in one statement, only while workerID owns the job and the job is
	// still running. ok is false when the job was already finalized or
	// ownership was lost.
	Finalize(ctx context.Context, id, workerID, status string, result []byte, jobErr *models.JobError, now time.Time) (ok bool, err error)

	// RequestCancel flags a running or queued job for cancellation.
	RequestCancel(ctx context.Context, id string) error

	// MarkCancelledIfQueued terminally cancels a job that was never claimed.
	// ok is false when the job had already left queued.
	MarkCancelledIfQueued(ctx context.Context, id string, now time.Time) (ok bool, err error)

	// RequeueExpired returns expired-lease running jobs to queued, clearing
	// worker_id and lease while retaining progress. Returns the ids moved.
	RequeueExpired(ctx context.Context, now time.Time) ([]string, error)

	// ListStuck returns running jobs whose lease expired before cutoff.
	ListStuck(ctx context.Context, cutoff time.Time) ([]*models.Job, error)

	// ForceState is the operator override: push a job to queued or failed
	// regardless of ownership. Terminal jobs are left untouched.
	ForceState(ctx context.Context, id, status string, jobErr *models.JobError, now time.Time) (ok bool, err error)

	SetWebhookError(ctx context.Context, id, message string) error
}

// JobFilter narrows List queries on the job store.
type JobFilter struct {
	Status string
	Kind   string
	UserID string
	Limit  int
}

// PortfolioStore persists extracted fund statements.
type PortfolioStore interface {
	// Upsert inserts or replaces by natural key (mutual_fund_name,
	// portfolio_date), preserving created_at and bumping updated_at.
	// Returns the stored document id.
	Upsert(ctx context.Context, portfolio *models.Portfolio) (string, error)
	GetByID(ctx context.Context, id string) (*models.Portfolio, error)
	GetByNaturalKey(ctx context.Context, fundName, portfolioDate string) (*models.Portfolio, error)
	List(ctx context.Context, filter models.PortfolioFilter) ([]*models.Portfolio, error)
	SearchByFundName(ctx context.Context, query string) ([]*models.Portfolio, error)
	HoldingsByISIN(ctx context.Context, isin string) ([]*models.HoldingMatch, error)
	FundStatistics(ctx context.Context, fundName string) (*models.FundStatistics, error)
}

// ETFStore reads the externally seeded ETF metadata collection. Core job
// handlers never write it; LoadFromJSON exists for operator seeding only.
type ETFStore interface {
	GetBySymbol(ctx context.Context, symbol string) (*models.ETFMetadata, error)
	ListWithISIN(ctx context.Context, limit int) ([]*models.ETFMetadata, error)
	Search(ctx context.Context, query string, limit int) ([]*models.ETFMetadata, error)
	Stats(ctx context.Context) (*models.ETFStats, error)
	LoadFromJSON(ctx context.Context, data []byte) (int, error)
}

// HoldingsStore persists ETF holdings snapshots keyed by symbol.
type HoldingsStore interface {
	Upsert(ctx context.Context, snapshot *models.ETFHoldingsSnapshot) error
	GetBySymbol(ctx context.Context, symbol string) (*models.ETFHoldingsSnapshot, error)
	Stats(ctx context.Context, now time.Time, freshnessTTL time.Duration) (*models.HoldingsCacheStats, error)
}
