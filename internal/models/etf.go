package models

import "time"

// ETFMetadata describes a listed ETF. The collection is seeded externally
// and is read-only to the job handlers; fetching holdings never writes it.
type ETFMetadata struct {
	Symbol            string    `json:"symbol"`
	Name              string    `json:"name"`
	ISIN              string    `json:"isin,omitempty"`
	AssetClass        string    `json:"asset_class,omitempty"`
	MarketCapCategory string    `json:"market_cap_category,omitempty"`
	CreatedAt         time.Time `json:"created_at,omitzero"`
	UpdatedAt         time.Time `json:"updated_at,omitzero"`
}

// ETFHoldingRecord is one constituent stock inside an ETF holdings snapshot.
type ETFHoldingRecord struct {
	StockName   string  `json:"stock_name"`
	ISINCode    string  `json:"isin_code,omitempty"`
	Percentage  float64 `json:"percentage,omitempty"`
	MarketValue float64 `json:"market_value,omitempty"`
	Quantity    int64   `json:"quantity,omitempty"`
}

// ETFHoldingsSnapshot is the last known constituent list for one ETF,
// keyed by symbol in its own collection.
type ETFHoldingsSnapshot struct {
	Symbol        string             `json:"symbol"`
	ISIN          string             `json:"isin"`
	Name          string             `json:"name,omitempty"`
	Holdings      []ETFHoldingRecord `json:"holdings"`
	TotalHoldings int                `json:"total_holdings"`
	FetchedAt     time.Time          `json:"fetched_at"`
	Source        string             `json:"source,omitempty"`
	SourceETag    string             `json:"source_etag,omitempty"`
}

// ETFStats summarizes the metadata collection.
type ETFStats struct {
	Total      int            `json:"total"`
	WithISIN   int            `json:"with_isin"`
	ByCategory map[string]int `json:"by_category,omitempty"`
}

// HoldingsCacheStats summarizes snapshot freshness across the holdings
// collection.
type HoldingsCacheStats struct {
	TotalSnapshots int       `json:"total_snapshots"`
	FreshToday     int       `json:"fresh_today"`
	Stale          int       `json:"stale"`
	OldestFetch    time.Time `json:"oldest_fetch,omitzero"`
	NewestFetch    time.Time `json:"newest_fetch,omitzero"`
}
