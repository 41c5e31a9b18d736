package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/fundhub/internal/common"
	"github.com/bobmcallan/fundhub/internal/interfaces"
	"github.com/bobmcallan/fundhub/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

const holdingsSelectFields = "symbol, isin, name, holdings, total_holdings, fetched_at, source, source_etag"

// HoldingsStore implements interfaces.HoldingsStore using SurrealDB.
// Snapshots are keyed by symbol; storing one never touches the etfs
// metadata collection.
type HoldingsStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewHoldingsStore creates a new HoldingsStore.
func NewHoldingsStore(db *surrealdb.DB, logger *common.Logger) *HoldingsStore {
	return &HoldingsStore{db: db, logger: logger}
}

func (s *HoldingsStore) Upsert(ctx context.Context, snapshot *models.ETFHoldingsSnapshot) error {
	if snapshot.Symbol == "" {
		return fmt.Errorf("snapshot symbol is required")
	}
	if snapshot.FetchedAt.IsZero() {
		snapshot.FetchedAt = time.Now()
	}

	sql := `UPSERT $rid SET
		symbol = $symbol, isin = $isin, name = $name, holdings = $holdings,
		total_holdings = $total_holdings, fetched_at = $fetched_at,
		source = $source, source_etag = $source_etag`
	vars := map[string]any{
		"rid":            surrealmodels.NewRecordID("etf_holdings", snapshot.Symbol),
		"symbol":         snapshot.Symbol,
		"isin":           snapshot.ISIN,
		"name":           snapshot.Name,
		"holdings":       snapshot.Holdings,
		"total_holdings": len(snapshot.Holdings),
		"fetched_at":     snapshot.FetchedAt,
		"source":         snapshot.Source,
		"source_etag":    snapshot.SourceETag,
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to upsert holdings snapshot: %w", err)
	}
	return nil
}

func (s *HoldingsStore) GetBySymbol(ctx context.Context, symbol string) (*models.ETFHoldingsSnapshot, error) {
	sql := "SELECT " + holdingsSelectFields + " FROM etf_holdings WHERE symbol = $symbol LIMIT 1"
	results, err := surrealdb.Query[[]models.ETFHoldingsSnapshot](ctx, s.db, sql, map[string]any{"symbol": symbol})
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings snapshot: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

func (s *HoldingsStore) Stats(ctx context.Context, now time.Time, freshnessTTL time.Duration) (*models.HoldingsCacheStats, error) {
	sql := "SELECT " + holdingsSelectFields + " FROM etf_holdings"
	results, err := surrealdb.Query[[]models.ETFHoldingsSnapshot](ctx, s.db, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings snapshots: %w", err)
	}

	stats := &models.HoldingsCacheStats{}
	if results == nil || len(*results) == 0 {
		return stats, nil
	}

	for i := range (*results)[0].Result {
		snap := &(*results)[0].Result[i]
		stats.TotalSnapshots++
		if common.IsFreshAt(snap.FetchedAt, now, freshnessTTL) {
			stats.FreshToday++
		} else {
			stats.Stale++
		}
		if stats.OldestFetch.IsZero() || snap.FetchedAt.Before(stats.OldestFetch) {
			stats.OldestFetch = snap.FetchedAt
		}
		if snap.FetchedAt.After(stats.NewestFetch) {
			stats.NewestFetch = snap.FetchedAt
		}
	}
	return stats, nil
}

// Compile-time check
var _ interfaces.HoldingsStore = (*HoldingsStore)(nil)
