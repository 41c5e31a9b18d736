package gemini

import (
	"context"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
)

func TestBuildSheetPrompt(t *testing.T) {
	rows := [][]string{
		{"Motilal Oswal Nifty Smallcap 250 Index Fund", "", ""},
		{"Portfolio as on March 31, 2025", "", ""},
		{"Name of the Instrument", "ISIN", "% to NAV"},
		{"Multi Commodity Exchange of India Limited", "INE745G01035", "0.0159%"},
	}

	prompt := buildSheetPrompt("Sheet1", rows)

	if !strings.Contains(prompt, "Sheet name: Sheet1") {
		t.Error("expected sheet name in prompt")
	}
	if !strings.Contains(prompt, "Multi Commodity Exchange of India Limited\tINE745G01035\t0.0159%") {
		t.Error("expected tab-separated holding row in prompt")
	}
	if strings.Contains(prompt, "rows omitted") {
		t.Error("small sheet should not be truncated")
	}
}

func TestBuildSheetPrompt_TruncatesLargeSheets(t *testing.T) {
	rows := make([][]string, maxPromptRows+50)
	for i := range rows {
		rows[i] = []string{"Instrument", "INE000A01001", "0.1%"}
	}

	prompt := buildSheetPrompt("Big", rows)

	if !strings.Contains(prompt, "50 more rows omitted") {
		t.Error("expected truncation marker for oversized sheet")
	}
}

func TestLLMPortfolioValidation(t *testing.T) {
	v := validator.New()

	valid := llmPortfolio{
		MutualFundName: "Fund A",
		PortfolioDate:  "March 2025",
		Holdings:       []llmHolding{{NameOfInstrument: "X", ISINCode: "INE000A01001", PercentageToNAV: "1%"}},
	}
	if err := v.Struct(&valid); err != nil {
		t.Errorf("expected valid response to pass: %v", err)
	}

	missingName := valid
	missingName.MutualFundName = ""
	if err := v.Struct(&missingName); err == nil {
		t.Error("expected validation error for missing fund name")
	}

	noHoldings := valid
	noHoldings.Holdings = nil
	if err := v.Struct(&noHoldings); err == nil {
		t.Error("expected validation error for empty holdings")
	}

	blankHolding := valid
	blankHolding.Holdings = []llmHolding{{ISINCode: "INE000A01001"}}
	if err := v.Struct(&blankHolding); err == nil {
		t.Error("expected validation error for holding without instrument name")
	}
}

func TestParseSheet_Unavailable(t *testing.T) {
	client, err := NewClient(context.Background(), "")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if client.Available() {
		t.Error("expected client without key to be unavailable")
	}
	if _, err := client.ParseSheet(context.Background(), "Sheet1", nil); err == nil {
		t.Error("expected error from unconfigured client")
	}
}
