// Package gemini provides an LLM-backed portfolio sheet parser on the
// Google Gemini API
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"google.golang.org/genai"

	"github.com/bobmcallan/fundhub/internal/common"
	"github.com/bobmcallan/fundhub/internal/interfaces"
	"github.com/bobmcallan/fundhub/internal/models"
)

const (
	DefaultModel = "gemini-2.0-flash"

	// maxPromptRows caps how many sheet rows go into the prompt. Fund
	// statements put the header block and holdings table well inside this.
	maxPromptRows = 600
)

// Client implements the PortfolioParser interface using Gemini.
type Client struct {
	client   *genai.Client
	model    string
	logger   *common.Logger
	validate *validator.Validate
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithModel sets the model to use
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Gemini client. An empty apiKey returns a client
// whose Available() is false so callers can fall back to manual parsing.
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		model:    DefaultModel,
		logger:   common.NewSilentLogger(),
		validate: validator.New(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if apiKey == "" {
		return c, nil
	}

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	c.client = genaiClient

	return c, nil
}

// Available reports whether the client can serve parse requests.
func (c *Client) Available() bool {
	return c.client != nil
}

// llmPortfolio is the constrained response shape requested from the model.
type llmPortfolio struct {
	MutualFundName string       `json:"mutual_fund_name" validate:"required"`
	PortfolioDate  string       `json:"portfolio_date" validate:"required"`
	Holdings       []llmHolding `json:"holdings" validate:"required,min=1,dive"`
}

type llmHolding struct {
	NameOfInstrument string `json:"name_of_instrument" validate:"required"`
	ISINCode         string `json:"isin_code"`
	PercentageToNAV  string `json:"percentage_to_nav"`
}

// responseSchema constrains generation to the llmPortfolio JSON shape.
var responseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"mutual_fund_name": {Type: genai.TypeString},
		"portfolio_date":   {Type: genai.TypeString},
		"holdings": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"name_of_instrument": {Type: genai.TypeString},
					"isin_code":          {Type: genai.TypeString},
					"percentage_to_nav":  {Type: genai.TypeString},
				},
				Required: []string{"name_of_instrument"},
			},
		},
	},
	Required: []string{"mutual_fund_name", "portfolio_date", "holdings"},
}

// ParseSheet extracts a fund statement from tabular sheet rows.
func (c *Client) ParseSheet(ctx context.Context, sheetName string, rows [][]string) (*models.Portfolio, error) {
	if c.client == nil {
		return nil, fmt.Errorf("gemini client not configured")
	}

	prompt := buildSheetPrompt(sheetName, rows)
	c.logger.Debug().Str("model", c.model).Str("sheet", sheetName).Int("rows", len(rows)).Msg("Parsing sheet with Gemini")

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema,
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	text, err := extractTextFromResponse(result)
	if err != nil {
		return nil, err
	}

	var parsed llmPortfolio
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, fmt.Errorf("model returned invalid JSON: %w", err)
	}
	if err := c.validate.Struct(&parsed); err != nil {
		return nil, fmt.Errorf("model response failed validation: %w", err)
	}

	portfolio := &models.Portfolio{
		MutualFundName: strings.TrimSpace(parsed.MutualFundName),
		PortfolioDate:  strings.TrimSpace(parsed.PortfolioDate),
	}
	for _, h := range parsed.Holdings {
		portfolio.PortfolioHoldings = append(portfolio.PortfolioHoldings, models.PortfolioHolding{
			NameOfInstrument: strings.TrimSpace(h.NameOfInstrument),
			ISINCode:         strings.TrimSpace(h.ISINCode),
			PercentageToNAV:  strings.TrimSpace(h.PercentageToNAV),
		})
	}
	portfolio.TotalHoldings = len(portfolio.PortfolioHoldings)

	return portfolio, nil
}

// buildSheetPrompt renders sheet rows as tab-separated text with extraction
// instructions.
func buildSheetPrompt(sheetName string, rows [][]string) string {
	var sb strings.Builder
	sb.WriteString("Extract the mutual fund portfolio disclosure from the spreadsheet below.\n")
	sb.WriteString("Return the fund name, the portfolio date as written (e.g. \"March 2025\"),\n")
	sb.WriteString("and every instrument holding with its ISIN code and percentage to NAV.\n")
	sb.WriteString("Keep percentage values exactly as printed, including any % sign.\n")
	sb.WriteString("Skip subtotal, total and section header rows.\n\n")
	sb.WriteString("Sheet name: ")
	sb.WriteString(sheetName)
	sb.WriteString("\n\n")

	n := len(rows)
	if n > maxPromptRows {
		n = maxPromptRows
	}
	for i := 0; i < n; i++ {
		sb.WriteString(strings.Join(rows[i], "\t"))
		sb.WriteString("\n")
	}
	if len(rows) > n {
		fmt.Fprintf(&sb, "... (%d more rows omitted)\n", len(rows)-n)
	}

	return sb.String()
}

// extractTextFromResponse extracts text from a generate content response
func extractTextFromResponse(result *genai.GenerateContentResponse) (string, error) {
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}

	text := ""
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
	}

	return text, nil
}

// Ensure Client implements PortfolioParser
var _ interfaces.PortfolioParser = (*Client)(nil)
