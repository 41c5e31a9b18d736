package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/fundhub/internal/common"
	"github.com/bobmcallan/fundhub/internal/interfaces"
	"github.com/bobmcallan/fundhub/internal/models"
	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
)

// portfolioSelectFields aliases portfolio_id to id for struct mapping.
const portfolioSelectFields = "portfolio_id as id, mutual_fund_name, portfolio_date, total_holdings, portfolio_holdings, created_at, updated_at"

// PortfolioStore implements interfaces.PortfolioStore using SurrealDB.
type PortfolioStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewPortfolioStore creates a new PortfolioStore.
func NewPortfolioStore(db *surrealdb.DB, logger *common.Logger) *PortfolioStore {
	return &PortfolioStore{db: db, logger: logger}
}

// Upsert writes a portfolio by natural key in a single server-side
// statement. An existing record keeps its portfolio_id and created_at; only
// updated_at and the data fields move. Returns the stored portfolio_id.
func (s *PortfolioStore) Upsert(ctx context.Context, portfolio *models.Portfolio) (string, error) {
	if portfolio.ID == "" {
		portfolio.ID = uuid.New().String()
	}
	now := time.Now()

	sql := `UPSERT portfolios SET
		portfolio_id = portfolio_id ?? $id,
		mutual_fund_name = $name,
		portfolio_date = $date,
		total_holdings = $total,
		portfolio_holdings = $holdings,
		created_at = created_at ?? $now,
		updated_at = $now
		WHERE mutual_fund_name = $name AND portfolio_date = $date
		RETURN portfolio_id AS id`
	vars := map[string]any{
		"id":       portfolio.ID,
		"name":     portfolio.MutualFundName,
		"date":     portfolio.PortfolioDate,
		"total":    len(portfolio.PortfolioHoldings),
		"holdings": portfolio.PortfolioHoldings,
		"now":      now,
	}

	results, err := surrealdb.Query[[]models.Portfolio](ctx, s.db, sql, vars)
	if err != nil {
		return "", fmt.Errorf("failed to upsert portfolio: %w", err)
	}
	if results != nil && len(*results) > 0 && len((*results)[0].Result) > 0 {
		stored := (*results)[0].Result[0]
		if stored.ID != "" {
			return stored.ID, nil
		}
	}
	return portfolio.ID, nil
}

func (s *PortfolioStore) GetByID(ctx context.Context, id string) (*models.Portfolio, error) {
	sql := "SELECT " + portfolioSelectFields + " FROM portfolios WHERE portfolio_id = $id LIMIT 1"
	portfolios, err := s.queryPortfolios(ctx, sql, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if len(portfolios) == 0 {
		return nil, nil
	}
	return portfolios[0], nil
}

func (s *PortfolioStore) GetByNaturalKey(ctx context.Context, fundName, portfolioDate string) (*models.Portfolio, error) {
	sql := "SELECT " + portfolioSelectFields + " FROM portfolios WHERE mutual_fund_name = $name AND portfolio_date = $date LIMIT 1"
	portfolios, err := s.queryPortfolios(ctx, sql, map[string]any{"name": fundName, "date": portfolioDate})
	if err != nil {
		return nil, err
	}
	if len(portfolios) == 0 {
		return nil, nil
	}
	return portfolios[0], nil
}

func (s *PortfolioStore) List(ctx context.Context, filter models.PortfolioFilter) ([]*models.Portfolio, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	sql := "SELECT " + portfolioSelectFields + " FROM portfolios"
	vars := map[string]any{"limit": limit}
	if filter.FundName != "" {
		sql += " WHERE mutual_fund_name = $name"
		vars["name"] = filter.FundName
	}
	sql += " ORDER BY updated_at DESC LIMIT $limit"

	return s.queryPortfolios(ctx, sql, vars)
}

func (s *PortfolioStore) SearchByFundName(ctx context.Context, query string) ([]*models.Portfolio, error) {
	sql := "SELECT " + portfolioSelectFields + " FROM portfolios WHERE string::lowercase(mutual_fund_name) CONTAINS string::lowercase($query) ORDER BY updated_at DESC"
	return s.queryPortfolios(ctx, sql, map[string]any{"query": query})
}

// HoldingsByISIN scans every portfolio holding the given ISIN and flattens
// the matching lines.
func (s *PortfolioStore) HoldingsByISIN(ctx context.Context, isin string) ([]*models.HoldingMatch, error) {
	sql := "SELECT " + portfolioSelectFields + " FROM portfolios WHERE $isin IN portfolio_holdings.isin_code"
	portfolios, err := s.queryPortfolios(ctx, sql, map[string]any{"isin": isin})
	if err != nil {
		return nil, err
	}

	var matches []*models.HoldingMatch
	for _, p := range portfolios {
		for _, h := range p.PortfolioHoldings {
			if h.ISINCode != isin {
				continue
			}
			matches = append(matches, &models.HoldingMatch{
				PortfolioID:    p.ID,
				MutualFundName: p.MutualFundName,
				PortfolioDate:  p.PortfolioDate,
				Holding:        h,
			})
		}
	}
	return matches, nil
}

// FundStatistics aggregates over all stored portfolios of one fund.
// Portfolio dates are free-form text, so the date range is lexical, the
// same way the source data orders them.
func (s *PortfolioStore) FundStatistics(ctx context.Context, fundName string) (*models.FundStatistics, error) {
	sql := "SELECT " + portfolioSelectFields + " FROM portfolios WHERE mutual_fund_name = $name"
	portfolios, err := s.queryPortfolios(ctx, sql, map[string]any{"name": fundName})
	if err != nil {
		return nil, err
	}
	if len(portfolios) == 0 {
		return nil, nil
	}

	stats := &models.FundStatistics{
		FundName:       fundName,
		PortfolioCount: len(portfolios),
		EarliestDate:   portfolios[0].PortfolioDate,
		LatestDate:     portfolios[0].PortfolioDate,
		MinHoldings:    portfolios[0].TotalHoldings,
		MaxHoldings:    portfolios[0].TotalHoldings,
	}
	for _, p := range portfolios {
		stats.TotalHoldings += p.TotalHoldings
		if p.PortfolioDate < stats.EarliestDate {
			stats.EarliestDate = p.PortfolioDate
		}
		if p.PortfolioDate > stats.LatestDate {
			stats.LatestDate = p.PortfolioDate
		}
		if p.TotalHoldings < stats.MinHoldings {
			stats.MinHoldings = p.TotalHoldings
		}
		if p.TotalHoldings > stats.MaxHoldings {
			stats.MaxHoldings = p.TotalHoldings
		}
	}
	stats.AvgHoldings = float64(stats.TotalHoldings) / float64(stats.PortfolioCount)
	return stats, nil
}

// queryPortfolios is a helper that runs a query and returns Portfolio pointers.
func (s *PortfolioStore) queryPortfolios(ctx context.Context, sql string, vars map[string]any) ([]*models.Portfolio, error) {
	results, err := surrealdb.Query[[]models.Portfolio](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}

	var portfolios []*models.Portfolio
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			portfolios = append(portfolios, &(*results)[0].Result[i])
		}
	}
	return portfolios, nil
}

// Compile-time check
var _ interfaces.PortfolioStore = (*PortfolioStore)(nil)
