package surrealdb

import (
	"context"
	"testing"
)

const etfSeedJSON = `[
	{"symbol": "UTINIFTETF", "name": "UTI Nifty 50 ETF", "isin": "INF789F1AUS7", "market_cap_category": "Large Cap"},
	{"symbol": "NIFTYBEES", "name": "Nippon India Nifty 50 BeES", "isin": "INF204KB14I2", "market_cap_category": "Large Cap"},
	{"symbol": "NOISIN", "name": "Unlisted ETF"}
]`

func seedETFs(t *testing.T, store *ETFStore) {
	t.Helper()
	count, err := store.LoadFromJSON(context.Background(), []byte(etfSeedJSON))
	if err != nil {
		t.Fatalf("LoadFromJSON failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 seeded ETFs, got %d", count)
	}
}

func TestETFStore_LoadFromJSONAndGet(t *testing.T) {
	db := testDB(t)
	store := NewETFStore(db, testLogger())
	ctx := context.Background()

	seedETFs(t, store)

	got, err := store.GetBySymbol(ctx, "UTINIFTETF")
	if err != nil {
		t.Fatalf("GetBySymbol failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected ETF")
	}
	if got.ISIN != "INF789F1AUS7" {
		t.Errorf("expected ISIN INF789F1AUS7, got %s", got.ISIN)
	}

	missing, _ := store.GetBySymbol(ctx, "NOPE")
	if missing != nil {
		t.Error("expected nil for unknown symbol")
	}
}

func TestETFStore_LoadFromJSON_WrapperObject(t *testing.T) {
	db := testDB(t)
	store := NewETFStore(db, testLogger())

	count, err := store.LoadFromJSON(context.Background(), []byte(`{"etfs": [{"symbol": "GOLDBEES", "name": "Gold BeES"}]}`))
	if err != nil {
		t.Fatalf("LoadFromJSON failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 seeded ETF, got %d", count)
	}
}

func TestETFStore_LoadFromJSON_Idempotent(t *testing.T) {
	db := testDB(t)
	store := NewETFStore(db, testLogger())
	ctx := context.Background()

	seedETFs(t, store)
	seedETFs(t, store)

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("expected 3 ETFs after double seed, got %d", stats.Total)
	}
}

func TestETFStore_ListWithISIN(t *testing.T) {
	db := testDB(t)
	store := NewETFStore(db, testLogger())
	ctx := context.Background()

	seedETFs(t, store)

	etfs, err := store.ListWithISIN(ctx, 0)
	if err != nil {
		t.Fatalf("ListWithISIN failed: %v", err)
	}
	if len(etfs) != 2 {
		t.Fatalf("expected 2 ETFs with ISIN, got %d", len(etfs))
	}
	// Symbol order for deterministic fleet iteration
	if etfs[0].Symbol != "NIFTYBEES" || etfs[1].Symbol != "UTINIFTETF" {
		t.Errorf("expected symbol order [NIFTYBEES UTINIFTETF], got [%s %s]", etfs[0].Symbol, etfs[1].Symbol)
	}

	limited, _ := store.ListWithISIN(ctx, 1)
	if len(limited) != 1 {
		t.Errorf("expected 1 with limit, got %d", len(limited))
	}
}

func TestETFStore_Search(t *testing.T) {
	db := testDB(t)
	store := NewETFStore(db, testLogger())
	ctx := context.Background()

	seedETFs(t, store)

	hits, err := store.Search(ctx, "nifty", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("expected 2 hits for nifty, got %d", len(hits))
	}
}

func TestETFStore_Stats(t *testing.T) {
	db := testDB(t)
	store := NewETFStore(db, testLogger())
	ctx := context.Background()

	seedETFs(t, store)

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("expected total 3, got %d", stats.Total)
	}
	if stats.WithISIN != 2 {
		t.Errorf("expected 2 with ISIN, got %d", stats.WithISIN)
	}
	if stats.ByCategory["Large Cap"] != 2 {
		t.Errorf("expected 2 Large Cap, got %d", stats.ByCategory["Large Cap"])
	}
}
