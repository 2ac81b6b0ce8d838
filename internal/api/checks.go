package api

import (
	"net/http"
	"strconv"

	"sitewatch/internal/domain"
)

// handleRecentChecks lists the newest check results across the caller's sites.
// Params: authenticated GET /api/checks/recent request with optional ?limit=.
// Returns: 200 with check results, newest first.
func (s *Server) handleRecentChecks(w http.ResponseWriter, r *http.Request) {
	limit := s.recentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	checks, err := s.store.RecentChecks(r.Context(), userFromContext(r.Context()), limit)
	if err != nil {
		s.logger.Error("recent checks failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "recent checks failed")
		return
	}
	if checks == nil {
		checks = []domain.CheckResult{}
	}
	writeJSON(w, http.StatusOK, checks)
}

// handleSiteChecks lists check history for one owned site.
// Params: authenticated GET /api/checks/site/{id} request with optional ?limit=.
// Returns: 200 with check results, newest first.
func (s *Server) handleSiteChecks(w http.ResponseWriter, r *http.Request) {
	site, ok := s.ownedSite(w, r)
	if !ok {
		return
	}

	limit := s.recentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	checks, err := s.store.SiteChecks(r.Context(), site.ID, limit)
	if err != nil {
		s.logger.Error("site checks failed", "site_id", site.ID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "site checks failed")
		return
	}
	if checks == nil {
		checks = []domain.CheckResult{}
	}
	writeJSON(w, http.StatusOK, checks)
}

// handleSiteUptime reports windowed uptime for one owned site.
// Params: authenticated GET /api/checks/site/{id}/uptime request.
// Returns: 200 with the uptime report.
func (s *Server) handleSiteUptime(w http.ResponseWriter, r *http.Request) {
	site, ok := s.ownedSite(w, r)
	if !ok {
		return
	}

	report, err := s.stats.SiteUptime(r.Context(), site.ID)
	if err != nil {
		s.logger.Error("site uptime failed", "site_id", site.ID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "site uptime failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleStats reports the caller's dashboard summary.
// Params: authenticated GET /api/stats request.
// Returns: 200 with the windowed summary.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	summary, err := s.stats.Summary(r.Context(), userFromContext(r.Context()))
	if err != nil {
		s.logger.Error("stats summary failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "stats summary failed")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
