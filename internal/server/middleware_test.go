package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bobmcallan/fundhub/internal/common"
)

func TestCorrelationIDMiddleware_GeneratesID(t *testing.T) {
	handler := correlationIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Correlation-ID"); len(got) != 8 {
		t.Errorf("expected generated 8-char correlation id, got %q", got)
	}
}

func TestCorrelationIDMiddleware_PropagatesHeader(t *testing.T) {
	handler := correlationIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "req-abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Correlation-ID"); got != "req-abc" {
		t.Errorf("expected req-abc, got %q", got)
	}
}

func TestUserContextMiddleware(t *testing.T) {
	var gotUserID string
	handler := userContextMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = common.ResolveUserID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	req.Header.Set("X-FundHub-User-ID", "user-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if gotUserID != "user-42" {
		t.Errorf("expected user-42, got %q", gotUserID)
	}
}

func TestUserContextMiddleware_Anonymous(t *testing.T) {
	var gotUserID string
	handler := userContextMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = common.ResolveUserID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if gotUserID != "" {
		t.Errorf("expected empty user id, got %q", gotUserID)
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight should not reach the handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/portfolios", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS origin header")
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := recoveryMiddleware(common.NewSilentLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
}
