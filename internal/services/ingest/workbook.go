// Package ingest turns uploaded fund disclosure workbooks into stored
// portfolios, one per sheet.
package ingest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/bobmcallan/fundhub/internal/models"
)

// workbook is a fully decoded spreadsheet: raw content hash plus the cell
// grid of every sheet.
type workbook struct {
	SHA    string
	Sheets []sheet
}

type sheet struct {
	Index int
	Name  string
	Rows  [][]string
}

// decodeWorkbook reads the payload's inline content or file path and
// extracts all sheets.
func decodeWorkbook(payload *models.WorkbookIngestPayload) (*workbook, error) {
	data := payload.Content
	if len(data) == 0 {
		if payload.Path == "" {
			return nil, fmt.Errorf("workbook payload has neither content nor path")
		}
		var err error
		data, err = os.ReadFile(payload.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read workbook file: %w", err)
		}
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sum := sha256.Sum256(data)
	wb := &workbook{SHA: hex.EncodeToString(sum[:])}

	for i, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q: %w", name, err)
		}
		wb.Sheets = append(wb.Sheets, sheet{Index: i, Name: name, Rows: rows})
	}

	return wb, nil
}

// sheetID derives the stable per-sheet portfolio id from the workbook hash,
// sheet position and sheet name. Re-uploading the same workbook converges
// on the same ids.
func sheetID(workbookSHA string, index int, name string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%s", workbookSHA, index, name)))
	return hex.EncodeToString(sum[:])[:24]
}
