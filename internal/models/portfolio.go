// Package models defines data structures for FundHub
package models

import "time"

// PortfolioHolding is a single instrument line inside a fund statement.
// Values stay stringly typed to preserve source precision and units
// (e.g. "0.0159%").
type PortfolioHolding struct {
	NameOfInstrument string `json:"name_of_instrument"`
	ISINCode         string `json:"isin_code"`
	PercentageToNAV  string `json:"percentage_to_nav"`
}

// Portfolio is an extracted mutual fund statement. The pair
// (MutualFundName, PortfolioDate) is the natural key; for workbook-ingested
// portfolios the ID equals the sheet identity.
type Portfolio struct {
	ID                string             `json:"id"`
	MutualFundName    string             `json:"mutual_fund_name"`
	PortfolioDate     string             `json:"portfolio_date"`
	TotalHoldings     int                `json:"total_holdings"`
	PortfolioHoldings []PortfolioHolding `json:"portfolio_holdings"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// PortfolioFilter narrows List queries on the portfolio repository.
type PortfolioFilter struct {
	FundName string
	Limit    int
}

// HoldingMatch is a cross-portfolio ISIN lookup hit.
type HoldingMatch struct {
	PortfolioID    string           `json:"portfolio_id"`
	MutualFundName string           `json:"mutual_fund_name"`
	PortfolioDate  string           `json:"portfolio_date"`
	Holding        PortfolioHolding `json:"holding"`
}

// FundStatistics aggregates the stored portfolios of one fund.
type FundStatistics struct {
	FundName       string  `json:"fund_name"`
	PortfolioCount int     `json:"portfolio_count"`
	EarliestDate   string  `json:"earliest_date"`
	LatestDate     string  `json:"latest_date"`
	TotalHoldings  int     `json:"total_holdings"`
	AvgHoldings    float64 `json:"avg_holdings"`
	MinHoldings    int     `json:"min_holdings"`
	MaxHoldings    int     `json:"max_holdings"`
}
