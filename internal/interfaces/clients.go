// Package interfaces defines service contracts for FundHub
package interfaces

import (
	"context"

	"github.com/bobmcallan/fundhub/internal/models"
)

// HoldingsClient fetches ETF constituent holdings from the upstream
// provider. Implementations own rate limiting; one client instance is
// shared process-wide so the gate applies across all workers.
type HoldingsClient interface {
	// GetSchemeHoldings retrieves the current holdings for an ETF by ISIN.
	GetSchemeHoldings(ctx context.Context, isin string) (*models.ETFHoldingsSnapshot, error)
}

// PortfolioParser extracts a fund statement from a tabular sheet. Used by
// the LLM-backed parser; the manual parser satisfies it too so the ingest
// pipeline can fall back without caring which one it holds.
type PortfolioParser interface {
	// ParseSheet extracts fund name, date and holdings from sheet rows.
	ParseSheet(ctx context.Context, sheetName string, rows [][]string) (*models.Portfolio, error)

	// Available reports whether the parser can currently serve requests
	// (e.g. an API key is configured and the client initialized).
	Available() bool
}
