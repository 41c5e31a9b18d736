package surrealdb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bobmcallan/fundhub/internal/common"
	"github.com/bobmcallan/fundhub/internal/interfaces"
	"github.com/bobmcallan/fundhub/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

const etfSelectFields = "symbol, name, isin, asset_class, market_cap_category, created_at, updated_at"

// ETFStore implements interfaces.ETFStore using SurrealDB. The collection
// is operator-seeded; job handlers only read it.
type ETFStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewETFStore creates a new ETFStore.
func NewETFStore(db *surrealdb.DB, logger *common.Logger) *ETFStore {
	return &ETFStore{db: db, logger: logger}
}

func (s *ETFStore) GetBySymbol(ctx context.Context, symbol string) (*models.ETFMetadata, error) {
	sql := "SELECT " + etfSelectFields + " FROM etfs WHERE symbol = $symbol LIMIT 1"
	etfs, err := s.queryETFs(ctx, sql, map[string]any{"symbol": symbol})
	if err != nil {
		return nil, err
	}
	if len(etfs) == 0 {
		return nil, nil
	}
	return etfs[0], nil
}

// ListWithISIN returns ETFs that carry an ISIN, in symbol order so fleet
// fetches iterate deterministically.
func (s *ETFStore) ListWithISIN(ctx context.Context, limit int) ([]*models.ETFMetadata, error) {
	sql := "SELECT " + etfSelectFields + ` FROM etfs WHERE isin != "" AND isin != NONE ORDER BY symbol ASC`
	vars := map[string]any{}
	if limit > 0 {
		sql += " LIMIT $limit"
		vars["limit"] = limit
	}
	return s.queryETFs(ctx, sql, vars)
}

func (s *ETFStore) Search(ctx context.Context, query string, limit int) ([]*models.ETFMetadata, error) {
	if limit <= 0 {
		limit = 50
	}
	sql := "SELECT " + etfSelectFields + " FROM etfs WHERE string::lowercase(symbol) CONTAINS string::lowercase($query) OR string::lowercase(name) CONTAINS string::lowercase($query) ORDER BY symbol ASC LIMIT $limit"
	return s.queryETFs(ctx, sql, map[string]any{"query": query, "limit": limit})
}

func (s *ETFStore) Stats(ctx context.Context) (*models.ETFStats, error) {
	etfs, err := s.queryETFs(ctx, "SELECT "+etfSelectFields+" FROM etfs", nil)
	if err != nil {
		return nil, err
	}

	stats := &models.ETFStats{
		Total:      len(etfs),
		ByCategory: make(map[string]int),
	}
	for _, etf := range etfs {
		if etf.ISIN != "" {
			stats.WithISIN++
		}
		if etf.MarketCapCategory != "" {
			stats.ByCategory[etf.MarketCapCategory]++
		}
	}
	return stats, nil
}

// LoadFromJSON seeds the metadata collection from a JSON document holding
// either a bare array of ETFs or an object with an "etfs" array. Returns
// the number of records written.
func (s *ETFStore) LoadFromJSON(ctx context.Context, data []byte) (int, error) {
	var etfs []models.ETFMetadata
	if err := json.Unmarshal(data, &etfs); err != nil {
		var wrapper struct {
			ETFs []models.ETFMetadata `json:"etfs"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return 0, fmt.Errorf("failed to parse ETF seed data: %w", err)
		}
		etfs = wrapper.ETFs
	}

	count := 0
	now := time.Now()
	for i := range etfs {
		etf := &etfs[i]
		if etf.Symbol == "" {
			continue
		}

		sql := `UPSERT $rid SET
			symbol = $symbol, name = $name, isin = $isin,
			asset_class = $asset_class, market_cap_category = $market_cap_category,
			created_at = created_at ?? $now, updated_at = $now`
		vars := map[string]any{
			"rid":                 surrealmodels.NewRecordID("etfs", etf.Symbol),
			"symbol":              etf.Symbol,
			"name":                etf.Name,
			"isin":                etf.ISIN,
			"asset_class":         etf.AssetClass,
			"market_cap_category": etf.MarketCapCategory,
			"now":                 now,
		}
		if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
			return count, fmt.Errorf("failed to seed ETF %s: %w", etf.Symbol, err)
		}
		count++
	}

	s.logger.Info().Int("count", count).Msg("ETF metadata seeded")
	return count, nil
}

func (s *ETFStore) queryETFs(ctx context.Context, sql string, vars map[string]any) ([]*models.ETFMetadata, error) {
	results, err := surrealdb.Query[[]models.ETFMetadata](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to query ETFs: %w", err)
	}

	var etfs []*models.ETFMetadata
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			etfs = append(etfs, &(*results)[0].Result[i])
		}
	}
	return etfs, nil
}

// Compile-time check
var _ interfaces.ETFStore = (*ETFStore)(nil)
