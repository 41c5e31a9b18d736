package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bobmcallan/fundhub/internal/models"
)

func TestHandlePortfolioCreate(t *testing.T) {
	stored := &models.Portfolio{
		ID:             "p1",
		MutualFundName: "Alpha Fund",
		PortfolioDate:  "March 31, 2025",
		TotalHoldings:  1,
	}
	storage := newMockStorage()
	storage.portfolios.upsert = func(ctx context.Context, p *models.Portfolio) (string, error) {
		if p.TotalHoldings != 1 {
			t.Errorf("expected total_holdings recomputed to 1, got %d", p.TotalHoldings)
		}
		return "p1", nil
	}
	storage.portfolios.getByID = func(ctx context.Context, id string) (*models.Portfolio, error) {
		return stored, nil
	}
	srv := newTestServer(storage, nil, nil)

	body := `{
		"mutual_fund_name": "Alpha Fund",
		"portfolio_date": "March 31, 2025",
		"total_holdings": 99,
		"portfolio_holdings": [{"name_of_the_instrument": "Reliance Industries", "isin_code": "INE002A01018"}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/portfolios", strings.NewReader(body))
	rec := doRequest(srv, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp Response
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Status != "success" {
		t.Errorf("expected success envelope, got %q", resp.Status)
	}
}

func TestHandlePortfolioCreate_MissingFields(t *testing.T) {
	srv := newTestServer(nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/portfolios", strings.NewReader(`{"portfolio_date": "March 2025"}`))
	rec := doRequest(srv, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rec.Code)
	}
}

func TestHandlePortfolioGet_NotFound(t *testing.T) {
	srv := newTestServer(nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/portfolios/missing", nil)
	rec := doRequest(srv, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestHandlePortfolioList_Filters(t *testing.T) {
	var gotFilter models.PortfolioFilter
	storage := newMockStorage()
	storage.portfolios.list = func(ctx context.Context, filter models.PortfolioFilter) ([]*models.Portfolio, error) {
		gotFilter = filter
		return []*models.Portfolio{{ID: "p1"}, {ID: "p2"}}, nil
	}
	srv := newTestServer(storage, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/portfolios?fund_name=Alpha&limit=5", nil)
	rec := doRequest(srv, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if gotFilter.FundName != "Alpha" || gotFilter.Limit != 5 {
		t.Errorf("filter not propagated: %+v", gotFilter)
	}

	var resp Response
	json.NewDecoder(rec.Body).Decode(&resp)
	data := resp.Data.(map[string]interface{})
	if data["count"].(float64) != 2 {
		t.Errorf("expected count 2, got %v", data["count"])
	}
}

func TestHandlePortfolioSearch_RequiresQuery(t *testing.T) {
	srv := newTestServer(nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/portfolios/search", nil)
	rec := doRequest(srv, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rec.Code)
	}
}

func TestHandleHoldingsByISIN(t *testing.T) {
	storage := newMockStorage()
	storage.portfolios.holdingsByISIN = func(ctx context.Context, isin string) ([]*models.HoldingMatch, error) {
		if isin != "INE002A01018" {
			t.Errorf("unexpected isin %q", isin)
		}
		return []*models.HoldingMatch{
			{PortfolioID: "p1", MutualFundName: "Alpha Fund"},
		}, nil
	}
	srv := newTestServer(storage, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/holdings/INE002A01018", nil)
	rec := doRequest(srv, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp Response
	json.NewDecoder(rec.Body).Decode(&resp)
	data := resp.Data.(map[string]interface{})
	if data["count"].(float64) != 1 {
		t.Errorf("expected one match, got %v", data["count"])
	}
}

func TestHandleFundStatistics(t *testing.T) {
	storage := newMockStorage()
	storage.portfolios.fundStatistics = func(ctx context.Context, fundName string) (*models.FundStatistics, error) {
		return &models.FundStatistics{FundName: fundName, PortfolioCount: 3}, nil
	}
	srv := newTestServer(storage, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/funds/AlphaFund/statistics", nil)
	rec := doRequest(srv, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp Response
	json.NewDecoder(rec.Body).Decode(&resp)
	data := resp.Data.(map[string]interface{})
	if data["portfolio_count"].(float64) != 3 {
		t.Errorf("expected portfolio_count 3, got %v", data["portfolio_count"])
	}
}

func TestHandleFundStatistics_NotFound(t *testing.T) {
	srv := newTestServer(nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/funds/Nobody/statistics", nil)
	rec := doRequest(srv, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}
