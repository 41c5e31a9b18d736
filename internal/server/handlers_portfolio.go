package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/bobmcallan/fundhub/internal/models"
)

// handlePortfolioCreate handles POST /api/portfolios.
func (s *Server) handlePortfolioCreate(w http.ResponseWriter, r *http.Request) {
	var portfolio models.Portfolio
	if !DecodeJSON(w, r, &portfolio) {
		return
	}

	if portfolio.MutualFundName == "" || portfolio.PortfolioDate == "" {
		WriteJobError(w, models.NewJobError(models.ErrKindValidation, "mutual_fund_name and portfolio_date are required"))
		return
	}
	portfolio.TotalHoldings = len(portfolio.PortfolioHoldings)

	id, err := s.app.Storage.PortfolioStore().Upsert(r.Context(), &portfolio)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Error storing portfolio: %v", err))
		return
	}

	stored, err := s.app.Storage.PortfolioStore().GetByID(r.Context(), id)
	if err != nil || stored == nil {
		WriteError(w, http.StatusInternalServerError, "Error loading stored portfolio")
		return
	}

	WriteData(w, http.StatusCreated, "Portfolio stored", stored)
}

// handlePortfolioList handles GET /api/portfolios?fund_name=&limit=.
func (s *Server) handlePortfolioList(w http.ResponseWriter, r *http.Request) {
	filter := models.PortfolioFilter{
		FundName: r.URL.Query().Get("fund_name"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}

	portfolios, err := s.app.Storage.PortfolioStore().List(r.Context(), filter)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Error listing portfolios: %v", err))
		return
	}

	WriteData(w, http.StatusOK, "", map[string]interface{}{
		"portfolios": portfolios,
		"count":      len(portfolios),
	})
}

// handlePortfolioSearch handles GET /api/portfolios/search?fund_name=.
func (s *Server) handlePortfolioSearch(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	query := r.URL.Query().Get("fund_name")
	if query == "" {
		WriteJobError(w, models.NewJobError(models.ErrKindValidation, "fund_name query parameter is required"))
		return
	}

	portfolios, err := s.app.Storage.PortfolioStore().SearchByFundName(r.Context(), query)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Search error: %v", err))
		return
	}

	WriteData(w, http.StatusOK, "", map[string]interface{}{
		"portfolios": portfolios,
		"count":      len(portfolios),
	})
}

// handlePortfolioGet handles GET /api/portfolios/{id}.
func (s *Server) handlePortfolioGet(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	id := PathParam(r, "/api/portfolios/", "")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Portfolio id is required")
		return
	}

	portfolio, err := s.app.Storage.PortfolioStore().GetByID(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Error loading portfolio: %v", err))
		return
	}
	if portfolio == nil {
		WriteJobError(w, models.NewJobError(models.ErrKindNotFound, fmt.Sprintf("portfolio %s not found", id)))
		return
	}

	WriteData(w, http.StatusOK, "", portfolio)
}

// handleHoldingsByISIN handles GET /api/holdings/{isin}: every portfolio
// holding that instrument.
func (s *Server) handleHoldingsByISIN(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	isin := PathParam(r, "/api/holdings/", "")
	if isin == "" {
		WriteError(w, http.StatusBadRequest, "ISIN is required")
		return
	}

	matches, err := s.app.Storage.PortfolioStore().HoldingsByISIN(r.Context(), isin)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Error searching holdings: %v", err))
		return
	}

	WriteData(w, http.StatusOK, "", map[string]interface{}{
		"isin":    isin,
		"matches": matches,
		"count":   len(matches),
	})
}

// handleFundStatistics handles GET /api/funds/{name}/statistics.
func (s *Server) handleFundStatistics(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	name := PathParam(r, "/api/funds/", "/statistics")
	if name == "" {
		WriteError(w, http.StatusBadRequest, "Fund name is required")
		return
	}

	stats, err := s.app.Storage.PortfolioStore().FundStatistics(r.Context(), name)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Error computing statistics: %v", err))
		return
	}
	if stats == nil {
		WriteJobError(w, models.NewJobError(models.ErrKindNotFound, fmt.Sprintf("no portfolios for fund %s", name)))
		return
	}

	WriteData(w, http.StatusOK, "", stats)
}
