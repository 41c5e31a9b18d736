package server

import (
	"net/http"
	"strings"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)

	// Portfolios
	mux.HandleFunc("/api/portfolios/search", s.handlePortfolioSearch)
	mux.HandleFunc("/api/portfolios/", s.handlePortfolioGet)
	mux.HandleFunc("/api/portfolios", s.routePortfolios)
	mux.HandleFunc("/api/holdings/", s.handleHoldingsByISIN)
	mux.HandleFunc("/api/funds/", s.routeFunds)

	// Uploads and jobs
	mux.HandleFunc("/api/upload/excel", s.handleUploadExcelSync)
	mux.HandleFunc("/api/jobs/upload-excel-async", s.handleUploadExcelAsync)
	mux.HandleFunc("/api/jobs/", s.routeJobs)
	mux.HandleFunc("/api/jobs", s.handleJobList)

	// ETF
	mux.HandleFunc("/api/etf/fetch-holdings/", s.handleETFFetchHoldings)
	mux.HandleFunc("/api/etf/fetch-all-holdings", s.handleETFFetchAllHoldings)
	mux.HandleFunc("/api/etf/holdings/", s.handleETFHoldingsGet)
	mux.HandleFunc("/api/etf/stats", s.handleETFStats)
	mux.HandleFunc("/api/etf/cache-stats", s.handleETFCacheStats)
	mux.HandleFunc("/api/etf/search", s.handleETFSearch)
	mux.HandleFunc("/api/etf/load-from-json", s.handleETFLoadFromJSON)

	// Admin
	mux.HandleFunc("/api/admin/jobs/recover-all", s.handleJobRecoverAll)
	mux.HandleFunc("/api/admin/jobs/", s.handleJobRecover)
}

// routePortfolios dispatches /api/portfolios by method.
func (s *Server) routePortfolios(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handlePortfolioList(w, r)
	case http.MethodPost:
		s.handlePortfolioCreate(w, r)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// routeFunds dispatches /api/funds/{name}/statistics.
func (s *Server) routeFunds(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/statistics") {
		s.handleFundStatistics(w, r)
		return
	}
	WriteError(w, http.StatusNotFound, "Not found")
}

// routeJobs dispatches /api/jobs/{id}/{status|result|cancel}.
func (s *Server) routeJobs(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasSuffix(r.URL.Path, "/status"):
		s.handleJobStatus(w, r)
	case strings.HasSuffix(r.URL.Path, "/result"):
		s.handleJobResult(w, r)
	case strings.HasSuffix(r.URL.Path, "/cancel"):
		s.handleJobCancel(w, r)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}
