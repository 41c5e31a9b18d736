// Package moneycontrol provides a client for the moneycontrol ETF holdings API
package moneycontrol

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/fundhub/internal/common"
	"github.com/bobmcallan/fundhub/internal/interfaces"
	"github.com/bobmcallan/fundhub/internal/models"
)

const (
	DefaultBaseURL     = "https://mf.moneycontrol.com"
	DefaultTimeout     = 30 * time.Second
	DefaultMinInterval = time.Second
)

// flexFloat64 handles JSON values that may be either a number or a string
// (the upstream serves holding percentages both ways).
type flexFloat64 float64

func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat64(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
		if s == "" || s == "N/A" {
			*f = 0
			return nil
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat64(num)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

// flexInt64 handles quantities served as number or string.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(data []byte) error {
	var num int64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexInt64(num)
		return nil
	}
	var fl float64
	if err := json.Unmarshal(data, &fl); err == nil {
		*f = flexInt64(fl)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexInt64(n)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into int64", string(data))
}

// Client implements the HoldingsClient interface. A single instance is
// shared process-wide; its limiter is the rate gate between all upstream
// calls regardless of which worker makes them.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMinInterval sets the minimum gap between upstream calls
func WithMinInterval(interval time.Duration) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new moneycontrol client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Every(DefaultMinInterval), 1),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an upstream API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("moneycontrol API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// holdingResponse mirrors one upstream holding entry. The provider has
// shipped both long and short field names, so both are accepted.
type holdingResponse struct {
	Name           string      `json:"name"`
	StockName      string      `json:"stock_name"`
	ISINCode       string      `json:"isin_code"`
	ISIN           string      `json:"isin"`
	HoldingPer     flexFloat64 `json:"holdingPer"`
	Percentage     flexFloat64 `json:"percentage"`
	InvestedAmount flexFloat64 `json:"investedAmount"`
	MarketValue    flexFloat64 `json:"market_value"`
	Quantity       flexInt64   `json:"quantity"`
}

func (h *holdingResponse) toRecord() models.ETFHoldingRecord {
	rec := models.ETFHoldingRecord{
		StockName: h.Name,
		ISINCode:  h.ISINCode,
	}
	if rec.StockName == "" {
		rec.StockName = h.StockName
	}
	if rec.StockName == "" {
		rec.StockName = "Unknown"
	}
	if rec.ISINCode == "" {
		rec.ISINCode = h.ISIN
	}
	rec.Percentage = float64(h.HoldingPer)
	if rec.Percentage == 0 {
		rec.Percentage = float64(h.Percentage)
	}
	rec.MarketValue = float64(h.InvestedAmount)
	if rec.MarketValue == 0 {
		rec.MarketValue = float64(h.MarketValue)
	}
	rec.Quantity = int64(h.Quantity)
	return rec
}

// GetSchemeHoldings retrieves the current constituent holdings for an ETF
// by ISIN. The call blocks on the shared rate gate first.
func (c *Client) GetSchemeHoldings(ctx context.Context, isin string) (*models.ETFHoldingsSnapshot, error) {
	if isin == "" {
		return nil, fmt.Errorf("isin is required")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("isin", isin)
	params.Set("key", "Stocks")
	endpoint := "/service/etf/v1/getSchemeHoldingData"
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("isin", isin).Msg("moneycontrol holdings request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   endpoint,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	entries, err := parseHoldingsBody(body)
	if err != nil {
		return nil, err
	}

	snapshot := &models.ETFHoldingsSnapshot{
		ISIN:       isin,
		FetchedAt:  time.Now(),
		Source:     "moneycontrol",
		SourceETag: resp.Header.Get("ETag"),
	}
	for i := range entries {
		snapshot.Holdings = append(snapshot.Holdings, entries[i].toRecord())
	}
	snapshot.TotalHoldings = len(snapshot.Holdings)

	return snapshot, nil
}

// parseHoldingsBody accepts both shapes the upstream has served: a bare
// array of holdings, or an object with the array under "data".
func parseHoldingsBody(body []byte) ([]holdingResponse, error) {
	var entries []holdingResponse
	if err := json.Unmarshal(body, &entries); err == nil {
		return entries, nil
	}

	var wrapper struct {
		Data []holdingResponse `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("failed to decode holdings response: %w", err)
	}
	return wrapper.Data, nil
}

// Compile-time check
var _ interfaces.HoldingsClient = (*Client)(nil)
