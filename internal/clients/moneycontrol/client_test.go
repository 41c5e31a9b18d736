package moneycontrol

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetSchemeHoldings_ParsesWrappedResponse(t *testing.T) {
	var capturedQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": [
			{"name": "Reliance Industries", "isin_code": "INE002A01018", "holdingPer": "10.52", "investedAmount": 125000.5, "quantity": 4200},
			{"name": "HDFC Bank", "isin_code": "INE040A01034", "holdingPer": 9.18}
		]}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithMinInterval(time.Millisecond))
	snap, err := client.GetSchemeHoldings(context.Background(), "INF789F1AUS7")
	if err != nil {
		t.Fatalf("GetSchemeHoldings failed: %v", err)
	}

	if capturedQuery != "isin=INF789F1AUS7&key=Stocks" {
		t.Errorf("unexpected query: %s", capturedQuery)
	}
	if snap.ISIN != "INF789F1AUS7" {
		t.Errorf("expected ISIN on snapshot, got %s", snap.ISIN)
	}
	if snap.TotalHoldings != 2 {
		t.Fatalf("expected 2 holdings, got %d", snap.TotalHoldings)
	}
	if snap.Holdings[0].StockName != "Reliance Industries" {
		t.Errorf("wrong first holding: %s", snap.Holdings[0].StockName)
	}
	// String percentage parsed
	if snap.Holdings[0].Percentage != 10.52 {
		t.Errorf("expected percentage 10.52, got %f", snap.Holdings[0].Percentage)
	}
	if snap.Holdings[0].MarketValue != 125000.5 {
		t.Errorf("expected market value 125000.5, got %f", snap.Holdings[0].MarketValue)
	}
	if snap.Holdings[0].Quantity != 4200 {
		t.Errorf("expected quantity 4200, got %d", snap.Holdings[0].Quantity)
	}
	if snap.Holdings[1].Percentage != 9.18 {
		t.Errorf("expected percentage 9.18, got %f", snap.Holdings[1].Percentage)
	}
	if snap.FetchedAt.IsZero() {
		t.Error("expected fetched_at set")
	}
	if snap.Source != "moneycontrol" {
		t.Errorf("expected source moneycontrol, got %s", snap.Source)
	}
}

func TestGetSchemeHoldings_ParsesBareArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"stock_name": "Infosys", "isin": "INE009A01021", "percentage": "3.4%"}]`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithMinInterval(time.Millisecond))
	snap, err := client.GetSchemeHoldings(context.Background(), "INF204KB14I2")
	if err != nil {
		t.Fatalf("GetSchemeHoldings failed: %v", err)
	}
	if snap.TotalHoldings != 1 {
		t.Fatalf("expected 1 holding, got %d", snap.TotalHoldings)
	}
	// Short field names and percent suffix accepted
	if snap.Holdings[0].StockName != "Infosys" {
		t.Errorf("wrong stock name: %s", snap.Holdings[0].StockName)
	}
	if snap.Holdings[0].ISINCode != "INE009A01021" {
		t.Errorf("wrong isin: %s", snap.Holdings[0].ISINCode)
	}
	if snap.Holdings[0].Percentage != 3.4 {
		t.Errorf("expected percentage 3.4, got %f", snap.Holdings[0].Percentage)
	}
}

func TestGetSchemeHoldings_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithMinInterval(time.Millisecond))
	_, err := client.GetSchemeHoldings(context.Background(), "BAD")
	if err == nil {
		t.Fatal("expected error for 404")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", apiErr.StatusCode)
	}
}

func TestGetSchemeHoldings_RequiresISIN(t *testing.T) {
	client := NewClient()
	if _, err := client.GetSchemeHoldings(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty isin")
	}
}

func TestGetSchemeHoldings_RateGateSpacing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	interval := 50 * time.Millisecond
	client := NewClient(WithBaseURL(srv.URL), WithMinInterval(interval))

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := client.GetSchemeHoldings(context.Background(), "INF789F1AUS7"); err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
	}
	elapsed := time.Since(start)

	// Burst 1: three calls need at least two full intervals between them.
	if elapsed < 2*interval {
		t.Errorf("expected >= %v between three calls, got %v", 2*interval, elapsed)
	}
}
