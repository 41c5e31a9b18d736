package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bobmcallan/fundhub/internal/interfaces"
	"github.com/bobmcallan/fundhub/internal/models"
)

// handleETFFetchHoldings handles POST /api/etf/fetch-holdings/{symbol}:
// submits a single-symbol refresh job.
func (s *Server) handleETFFetchHoldings(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	symbol := PathParam(r, "/api/etf/fetch-holdings/", "")
	if symbol == "" {
		WriteError(w, http.StatusBadRequest, "Symbol is required")
		return
	}

	payload, _ := json.Marshal(models.FetchHoldingsPayload{Symbol: symbol})
	job, err := s.app.JobService.Submit(r.Context(), models.JobKindFetchHoldingsOne, payload, interfaces.SubmitOptions{
		CallbackURL: r.URL.Query().Get("callback_url"),
		UserID:      resolveUserID(r),
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteData(w, http.StatusAccepted, fmt.Sprintf("Holdings fetch queued for %s", symbol), map[string]interface{}{
		"job_id": job.ID,
		"status": job.Status,
	})
}

// handleETFFetchAllHoldings handles POST /api/etf/fetch-all-holdings?limit=.
func (s *Server) handleETFFetchAllHoldings(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			WriteJobError(w, models.NewJobError(models.ErrKindValidation, "limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	payload, _ := json.Marshal(models.FetchHoldingsPayload{Limit: limit})
	job, err := s.app.JobService.Submit(r.Context(), models.JobKindFetchHoldingsAll, payload, interfaces.SubmitOptions{
		CallbackURL: r.URL.Query().Get("callback_url"),
		UserID:      resolveUserID(r),
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteData(w, http.StatusAccepted, "Fleet holdings fetch queued", map[string]interface{}{
		"job_id": job.ID,
		"status": job.Status,
	})
}

// handleETFHoldingsGet handles GET /api/etf/holdings/{symbol}: the cached
// snapshot.
func (s *Server) handleETFHoldingsGet(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	symbol := PathParam(r, "/api/etf/holdings/", "")
	if symbol == "" {
		WriteError(w, http.StatusBadRequest, "Symbol is required")
		return
	}

	snapshot, err := s.app.Storage.HoldingsStore().GetBySymbol(r.Context(), symbol)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Error loading holdings: %v", err))
		return
	}
	if snapshot == nil {
		WriteJobError(w, models.NewJobError(models.ErrKindNotFound, fmt.Sprintf("no cached holdings for %s", symbol)))
		return
	}

	WriteData(w, http.StatusOK, "", snapshot)
}

// handleETFStats handles GET /api/etf/stats.
func (s *Server) handleETFStats(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	stats, err := s.app.Storage.ETFStore().Stats(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Error computing ETF stats: %v", err))
		return
	}

	WriteData(w, http.StatusOK, "", stats)
}

// handleETFCacheStats handles GET /api/etf/cache-stats: snapshot freshness
// across the holdings cache.
func (s *Server) handleETFCacheStats(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	stats, err := s.app.Storage.HoldingsStore().Stats(r.Context(), time.Now(), s.app.Config.Holdings.GetFreshnessTTL())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Error computing cache stats: %v", err))
		return
	}

	WriteData(w, http.StatusOK, "", stats)
}

// handleETFSearch handles GET /api/etf/search?query=&limit=.
func (s *Server) handleETFSearch(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	query := r.URL.Query().Get("query")
	if query == "" {
		WriteJobError(w, models.NewJobError(models.ErrKindValidation, "query parameter is required"))
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	etfs, err := s.app.Storage.ETFStore().Search(r.Context(), query, limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Search error: %v", err))
		return
	}

	WriteData(w, http.StatusOK, "", map[string]interface{}{
		"etfs":  etfs,
		"count": len(etfs),
	})
}

// handleETFLoadFromJSON handles POST /api/etf/load-from-json: operator
// seeding of the ETF metadata collection.
func (s *Server) handleETFLoadFromJSON(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Error reading body: %v", err))
		return
	}

	count, err := s.app.Storage.ETFStore().LoadFromJSON(r.Context(), data)
	if err != nil {
		WriteJobError(w, models.NewJobError(models.ErrKindValidation, fmt.Sprintf("invalid ETF seed data: %v", err)))
		return
	}

	WriteData(w, http.StatusOK, fmt.Sprintf("Loaded %d ETFs", count), map[string]interface{}{
		"loaded": count,
	})
}
