package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/bobmcallan/fundhub/internal/models"
)

// Canonical column names the manual parser extracts.
const (
	colName       = "name"
	colISIN       = "isin"
	colPercentage = "percentage"
)

// defaultSynonyms maps lowercased sheet headers to canonical columns. Fund
// houses vary the wording; configuration can extend this dictionary.
var defaultSynonyms = map[string]string{
	"name of the instrument": colName,
	"name of instrument":     colName,
	"instrument name":        colName,
	"security name":          colName,
	"company":                colName,
	"holding":                colName,
	"isin":                   colISIN,
	"isin code":              colISIN,
	"% to nav":               colPercentage,
	"% of nav":               colPercentage,
	"percentage to nav":      colPercentage,
	"% to net assets":        colPercentage,
	"weight":                 colPercentage,
}

// skipPrefixes marks aggregate rows that are not holdings.
var skipPrefixes = []string{"total", "sub total", "subtotal", "grand total", "net assets"}

// ManualParser extracts a fund statement from a sheet by recognizing the
// holdings table header.
type ManualParser struct {
	synonyms map[string]string
}

// NewManualParser builds a parser with the default synonym dictionary
// extended by extra (configured) entries.
func NewManualParser(extra map[string]string) *ManualParser {
	synonyms := make(map[string]string, len(defaultSynonyms)+len(extra))
	for k, v := range defaultSynonyms {
		synonyms[k] = v
	}
	for k, v := range extra {
		synonyms[strings.ToLower(strings.TrimSpace(k))] = strings.ToLower(strings.TrimSpace(v))
	}
	return &ManualParser{synonyms: synonyms}
}

func normalizeHeader(cell string) string {
	return strings.ToLower(strings.TrimSpace(cell))
}

// findHeaderRow returns the first row that maps to both a name and a
// percentage column, and the column index per canonical name.
func (p *ManualParser) findHeaderRow(rows [][]string) (int, map[string]int) {
	for i, row := range rows {
		cols := make(map[string]int)
		for j, cell := range row {
			if canonical, ok := p.synonyms[normalizeHeader(cell)]; ok {
				if _, taken := cols[canonical]; !taken {
					cols[canonical] = j
				}
			}
		}
		if _, hasName := cols[colName]; hasName {
			if _, hasPct := cols[colPercentage]; hasPct {
				return i, cols
			}
		}
	}
	return -1, nil
}

// extractFundName returns the first non-empty cell above the header block.
func extractFundName(rows [][]string, headerRow int) string {
	for i := 0; i < headerRow; i++ {
		for _, cell := range rows[i] {
			if s := strings.TrimSpace(cell); s != "" {
				return s
			}
		}
	}
	return ""
}

// extractPortfolioDate scans the preamble for an "as on"/"as at" marker and
// returns the trailing text. Falls back to the current month so the natural
// key stays usable.
func extractPortfolioDate(rows [][]string, headerRow int) string {
	markers := []string{"as on", "as at", "as of"}
	for i := 0; i < headerRow; i++ {
		for _, cell := range rows[i] {
			lower := strings.ToLower(cell)
			for _, marker := range markers {
				if idx := strings.Index(lower, marker); idx >= 0 {
					date := strings.TrimSpace(cell[idx+len(marker):])
					date = strings.TrimLeft(date, ":- ")
					if date != "" {
						return date
					}
				}
			}
		}
	}
	return time.Now().Format("January 2006")
}

func isSkipRow(name string) bool {
	lower := strings.ToLower(name)
	for _, prefix := range skipPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// ParseSheet extracts the fund statement from one sheet's cell grid.
func (p *ManualParser) ParseSheet(sheetName string, rows [][]string) (*models.Portfolio, error) {
	headerRow, cols := p.findHeaderRow(rows)
	if headerRow < 0 {
		return nil, fmt.Errorf("sheet %q has no recognizable holdings table", sheetName)
	}

	fundName := extractFundName(rows, headerRow)
	if fundName == "" {
		fundName = sheetName
	}

	portfolio := &models.Portfolio{
		MutualFundName: fundName,
		PortfolioDate:  extractPortfolioDate(rows, headerRow),
	}

	nameIdx := cols[colName]
	isinIdx, hasISIN := cols[colISIN]
	pctIdx := cols[colPercentage]

	for _, row := range rows[headerRow+1:] {
		name := cellAt(row, nameIdx)
		pct := cellAt(row, pctIdx)
		if name == "" && pct == "" {
			continue
		}
		if name == "" || isSkipRow(name) {
			continue
		}
		holding := models.PortfolioHolding{
			NameOfInstrument: name,
			PercentageToNAV:  pct,
		}
		if hasISIN {
			holding.ISINCode = cellAt(row, isinIdx)
		}
		portfolio.PortfolioHoldings = append(portfolio.PortfolioHoldings, holding)
	}

	if len(portfolio.PortfolioHoldings) == 0 {
		return nil, fmt.Errorf("sheet %q holdings table is empty", sheetName)
	}
	portfolio.TotalHoldings = len(portfolio.PortfolioHoldings)

	return portfolio, nil
}
