// Package common provides shared utilities for FundHub
package common

import "time"

// FreshnessHoldings is the default freshness window for ETF holdings
// snapshots when no TTL is configured.
const FreshnessHoldings = 24 * time.Hour

// IsFreshAt reports freshness against an explicit clock, for callers that
// carry their own notion of now.
func IsFreshAt(updated, now time.Time, ttl time.Duration) bool {
	if updated.IsZero() {
		return false
	}
	return now.Sub(updated) < ttl
}
