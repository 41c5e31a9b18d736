package server

import (
	"net/http"
	"time"

	"github.com/bobmcallan/fundhub/internal/common"
)

// handleHealth reports service and storage health. A failing store ping
// returns 503 so load balancers stop routing here.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	if err := s.app.Storage.Ping(r.Context()); err != nil {
		s.logger.Warn().Err(err).Msg("Health check: storage unreachable")
		WriteJSON(w, http.StatusServiceUnavailable, Response{
			Status: "error",
			Error:  "storage unreachable",
		})
		return
	}

	WriteData(w, http.StatusOK, "", map[string]interface{}{
		"status":  "healthy",
		"uptime":  time.Since(s.app.StartupTime).String(),
		"version": common.GetVersion(),
	})
}

// handleVersion reports build information.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteData(w, http.StatusOK, "", map[string]interface{}{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}
