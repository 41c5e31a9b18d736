package models

import (
	"encoding/json"
	"time"
)

// Job is a durable record of asynchronous work. The job store is the single
// source of truth for its state; only the claiming worker (or recovery)
// mutates a job after creation.
type Job struct {
	ID              string          `json:"id"`
	Kind            string          `json:"kind"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	Status          string          `json:"status"`
	Progress        JobProgress     `json:"progress"`
	Result          json.RawMessage `json:"result,omitempty"`
	Error           *JobError       `json:"error,omitempty"`
	Attempts        int             `json:"attempts"`
	WorkerID        string          `json:"worker_id,omitempty"`
	LeaseExpiresAt  time.Time       `json:"lease_expires_at,omitzero"`
	CreatedAt       time.Time       `json:"created_at"`
	StartedAt       time.Time       `json:"started_at,omitzero"`
	CompletedAt     time.Time       `json:"completed_at,omitzero"`
	CallbackURL     string          `json:"callback_url,omitempty"`
	UserID          string          `json:"user_id,omitempty"`
	CancelRequested bool            `json:"cancel_requested"`
	WebhookError    string          `json:"webhook_error,omitempty"`
}

// JobProgress tracks per-item completion within a running job.
// Percentage is monotonically nondecreasing within a single running episode.
type JobProgress struct {
	Total       int     `json:"total"`
	Completed   int     `json:"completed"`
	Failed      int     `json:"failed"`
	CurrentItem string  `json:"current_item,omitempty"`
	Percentage  float64 `json:"percentage"`
}

// JobError is the typed error recorded on a failed job.
type JobError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *JobError) Error() string {
	if e == nil {
		return ""
	}
	return e.Kind + ": " + e.Message
}

// NewJobError builds a JobError with the given taxonomy kind.
func NewJobError(kind, message string) *JobError {
	return &JobError{Kind: kind, Message: message}
}

// Job kind constants
const (
	JobKindWorkbookIngest   = "workbook_ingest"
	JobKindFetchHoldingsOne = "fetch_holdings_one"
	JobKindFetchHoldingsAll = "fetch_holdings_all"
)

// Job status constants
const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
)

// Error taxonomy kinds
const (
	ErrKindValidation           = "validation"
	ErrKindNotFound             = "not_found"
	ErrKindConflict             = "conflict"
	ErrKindStoreUnavailable     = "store_unavailable"
	ErrKindUpstreamTimeout      = "upstream_timeout"
	ErrKindUpstreamHTTP         = "upstream_http"
	ErrKindUpstreamParse        = "upstream_parse"
	ErrKindParseSheet           = "parse_sheet"
	ErrKindParseTotalFailure    = "parse_total_failure"
	ErrKindUpstreamTotalFailure = "upstream_total_failure"
	ErrKindCancelled            = "cancelled"
	ErrKindLeaseLost            = "lease_lost"
	ErrKindManualOverride       = "manual_override"
	ErrKindInternal             = "internal"
)

// IsTerminal reports whether a status is a write-once terminal state.
func IsTerminal(status string) bool {
	return status == JobStatusCompleted || status == JobStatusFailed || status == JobStatusCancelled
}

// KnownJobKind reports whether kind is one of the registered job kinds.
func KnownJobKind(kind string) bool {
	switch kind {
	case JobKindWorkbookIngest, JobKindFetchHoldingsOne, JobKindFetchHoldingsAll:
		return true
	}
	return false
}

// WorkbookIngestPayload is the input for a workbook_ingest job.
// Content carries the workbook bytes (base64 over the wire); Path may be
// used instead when the workbook is already on local disk.
type WorkbookIngestPayload struct {
	FileName    string `json:"file_name"`
	Content     []byte `json:"content,omitempty"`
	Path        string `json:"path,omitempty"`
	ParseMethod string `json:"parse_method"`
	Pinned      bool   `json:"pinned,omitempty"`
}

// Parse method constants for workbook ingestion.
const (
	ParseMethodManual = "manual"
	ParseMethodLLM    = "llm"
)

// SheetError records a per-sheet parse failure inside an ingest result.
type SheetError struct {
	SheetName string `json:"sheet_name"`
	Error     string `json:"error"`
}

// WorkbookIngestResult summarizes a completed workbook_ingest job.
type WorkbookIngestResult struct {
	TotalSheets  int          `json:"total_sheets"`
	Parsed       int          `json:"parsed"`
	Failed       int          `json:"failed"`
	PortfolioIDs []string     `json:"portfolio_ids"`
	SheetErrors  []SheetError `json:"sheet_errors,omitempty"`
}

// FetchHoldingsPayload is the input for fetch_holdings_one / fetch_holdings_all.
// Symbol is required for the single-symbol kind; Limit truncates fleet fetches.
type FetchHoldingsPayload struct {
	Symbol string `json:"symbol,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// SymbolError records a per-symbol failure inside a holdings fetch result.
type SymbolError struct {
	Symbol string `json:"symbol"`
	Error  string `json:"error"`
}

// HoldingsFetchResult summarizes a completed holdings fetch job.
type HoldingsFetchResult struct {
	Processed int           `json:"processed"`
	Fetched   int           `json:"fetched"`
	CacheHits int           `json:"cache_hits"`
	Failed    int           `json:"failed"`
	Errors    []SymbolError `json:"errors,omitempty"`
}
