// Package surrealdb implements FundHub storage on SurrealDB.
package surrealdb

import (
	"context"
	"fmt"

	"github.com/bobmcallan/fundhub/internal/common"
	"github.com/bobmcallan/fundhub/internal/interfaces"
	"github.com/surrealdb/surrealdb.go"
)

// Manager implements interfaces.StorageManager using SurrealDB.
type Manager struct {
	db     *surrealdb.DB
	logger *common.Logger

	jobStore       *JobStore
	portfolioStore *PortfolioStore
	etfStore       *ETFStore
	holdingsStore  *HoldingsStore
}

// indexDefs holds the index DDL applied at startup. The unique natural key
// on portfolios is what makes concurrent upserts for the same fund and date
// converge to one record.
var indexDefs = []string{
	"DEFINE INDEX IF NOT EXISTS idx_jobs_job_id ON TABLE jobs COLUMNS job_id UNIQUE",
	"DEFINE INDEX IF NOT EXISTS idx_jobs_status ON TABLE jobs COLUMNS status",
	"DEFINE INDEX IF NOT EXISTS idx_jobs_kind ON TABLE jobs COLUMNS kind",
	"DEFINE INDEX IF NOT EXISTS idx_jobs_status_lease ON TABLE jobs COLUMNS status, lease_expires_at",
	"DEFINE INDEX IF NOT EXISTS idx_jobs_created_at ON TABLE jobs COLUMNS created_at",
	"DEFINE INDEX IF NOT EXISTS idx_jobs_callback_url ON TABLE jobs COLUMNS callback_url",
	"DEFINE INDEX IF NOT EXISTS idx_portfolios_natural_key ON TABLE portfolios COLUMNS mutual_fund_name, portfolio_date UNIQUE",
	"DEFINE INDEX IF NOT EXISTS idx_portfolios_fund_name ON TABLE portfolios COLUMNS mutual_fund_name",
	"DEFINE INDEX IF NOT EXISTS idx_portfolios_date ON TABLE portfolios COLUMNS portfolio_date",
	"DEFINE INDEX IF NOT EXISTS idx_portfolios_holdings_isin ON TABLE portfolios COLUMNS portfolio_holdings[*].isin_code",
	"DEFINE INDEX IF NOT EXISTS idx_portfolios_updated_at ON TABLE portfolios COLUMNS updated_at",
	"DEFINE INDEX IF NOT EXISTS idx_etfs_symbol ON TABLE etfs COLUMNS symbol UNIQUE",
	"DEFINE INDEX IF NOT EXISTS idx_etf_holdings_symbol ON TABLE etf_holdings COLUMNS symbol UNIQUE",
}

// NewManager creates a new StorageManager connected to SurrealDB.
func NewManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	ctx := context.Background()

	db, err := surrealdb.New(config.Storage.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": config.Storage.Username,
		"pass": config.Storage.Password,
	}); err != nil {
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, config.Storage.Namespace, config.Storage.Database); err != nil {
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	// Define tables to ensure they exist (SurrealDB v3 errors on querying non-existent tables)
	tables := []string{"jobs", "portfolios", "etfs", "etf_holdings"}
	for _, table := range tables {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return nil, fmt.Errorf("failed to define table %s: %w", table, err)
		}
	}

	for _, ddl := range indexDefs {
		if _, err := surrealdb.Query[any](ctx, db, ddl, nil); err != nil {
			return nil, fmt.Errorf("failed to define index: %w", err)
		}
	}

	m := &Manager{
		db:     db,
		logger: logger,
	}

	m.jobStore = NewJobStore(db, logger)
	m.portfolioStore = NewPortfolioStore(db, logger)
	m.etfStore = NewETFStore(db, logger)
	m.holdingsStore = NewHoldingsStore(db, logger)

	logger.Info().
		Str("address", config.Storage.Address).
		Str("namespace", config.Storage.Namespace).
		Str("database", config.Storage.Database).
		Msg("SurrealDB storage manager initialized")

	return m, nil
}

func (m *Manager) JobStore() interfaces.JobStore {
	return m.jobStore
}

func (m *Manager) PortfolioStore() interfaces.PortfolioStore {
	return m.portfolioStore
}

func (m *Manager) ETFStore() interfaces.ETFStore {
	return m.etfStore
}

func (m *Manager) HoldingsStore() interfaces.HoldingsStore {
	return m.holdingsStore
}

// Ping verifies the connection by running a trivial query.
func (m *Manager) Ping(ctx context.Context) error {
	if _, err := surrealdb.Query[any](ctx, m.db, "RETURN 1", nil); err != nil {
		return fmt.Errorf("storage ping failed: %w", err)
	}
	return nil
}

func (m *Manager) Close() error {
	m.db.Close(context.Background())
	return nil
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)
