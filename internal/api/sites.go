package api

import (
	"errors"
	"net/http"
	"strconv"

	"sitewatch/internal/domain"
	"sitewatch/internal/store"
)

// siteRequest is the mutable subset of a site accepted from clients.
// Params: probe target, timing, thresholds, and enable flag.
// Returns: input for create and update handlers.
type siteRequest struct {
	Name           string              `json:"name"`
	URL            string              `json:"url"`
	CheckInterval  int                 `json:"checkInterval"`
	Timeout        int                 `json:"timeout"`
	Thresholds     domain.Thresholds   `json:"thresholds"`
	QueryParams    []domain.QueryParam `json:"queryParams"`
	HealthEndpoint string              `json:"healthEndpoint"`
	Enabled        *bool               `json:"enabled"`
}

// handleCreateSite registers a new monitored site.
// Params: authenticated POST /api/sites request.
// Returns: 201 with the stored site, 400 on validation failure.
func (s *Server) handleCreateSite(w http.ResponseWriter, r *http.Request) {
	var req siteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	now := s.clk.Now()
	site := domain.Site{
		UserID:         userFromContext(r.Context()),
		Name:           req.Name,
		URL:            req.URL,
		CheckInterval:  req.CheckInterval,
		Timeout:        req.Timeout,
		Thresholds:     req.Thresholds,
		QueryParams:    req.QueryParams,
		HealthEndpoint: req.HealthEndpoint,
		Enabled:        req.Enabled == nil || *req.Enabled,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	domain.ApplySiteDefaults(&site)
	if err := domain.ValidateSite(site); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.store.CreateSite(r.Context(), site)
	if err != nil {
		s.logger.Error("create site failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "create site failed")
		return
	}

	if created.Enabled {
		s.sched.Register(created, created.Interval())
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleListSites lists the caller's sites.
// Params: authenticated GET /api/sites request.
// Returns: 200 with the site list.
func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.store.ListSites(r.Context(), userFromContext(r.Context()))
	if err != nil {
		s.logger.Error("list sites failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "list sites failed")
		return
	}
	if sites == nil {
		sites = []domain.Site{}
	}
	writeJSON(w, http.StatusOK, sites)
}

// handleCountSites counts the caller's sites.
// Params: authenticated GET /api/sites/count request.
// Returns: 200 with {"count": n}.
func (s *Server) handleCountSites(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.CountSites(r.Context(), userFromContext(r.Context()))
	if err != nil {
		s.logger.Error("count sites failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "count sites failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

// handleGetSite loads one owned site.
// Params: authenticated GET /api/sites/{id} request.
// Returns: 200 with the site, 404 when absent or owned by another user.
func (s *Server) handleGetSite(w http.ResponseWriter, r *http.Request) {
	site, ok := s.ownedSite(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, site)
}

// handleUpdateSite replaces the mutable fields of one owned site.
// Params: authenticated PUT /api/sites/{id} request.
// Returns: 200 with the updated site, 400/404 on failure.
func (s *Server) handleUpdateSite(w http.ResponseWriter, r *http.Request) {
	existing, ok := s.ownedSite(w, r)
	if !ok {
		return
	}

	var req siteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	updated := existing
	updated.Name = req.Name
	updated.URL = req.URL
	updated.CheckInterval = req.CheckInterval
	updated.Timeout = req.Timeout
	updated.Thresholds = req.Thresholds
	updated.QueryParams = req.QueryParams
	updated.HealthEndpoint = req.HealthEndpoint
	if req.Enabled != nil {
		updated.Enabled = *req.Enabled
	}
	updated.UpdatedAt = s.clk.Now()

	domain.ApplySiteDefaults(&updated)
	if err := domain.ValidateSite(updated); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stored, err := s.store.UpdateSite(r.Context(), updated)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "site not found")
		return
	}
	if err != nil {
		s.logger.Error("update site failed", "site_id", existing.ID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "update site failed")
		return
	}

	if stored.Enabled {
		s.sched.Register(stored, stored.Interval())
	} else {
		s.sched.Unregister(stored.ID)
	}
	writeJSON(w, http.StatusOK, stored)
}

// handleDeleteSite removes one owned site with its history.
// Params: authenticated DELETE /api/sites/{id} request.
// Returns: 204 on success, 404 when absent.
func (s *Server) handleDeleteSite(w http.ResponseWriter, r *http.Request) {
	site, ok := s.ownedSite(w, r)
	if !ok {
		return
	}

	if err := s.store.DeleteSite(r.Context(), site.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "site not found")
			return
		}
		s.logger.Error("delete site failed", "site_id", site.ID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "delete site failed")
		return
	}

	s.sched.Unregister(site.ID)
	w.WriteHeader(http.StatusNoContent)
}

// ownedSite loads the path site and enforces ownership.
// Params: response writer and request with an {id} path value.
// Returns: site and true, or false after writing a 400/404 response.
// Foreign sites yield 404 to avoid leaking their existence.
func (s *Server) ownedSite(w http.ResponseWriter, r *http.Request) (domain.Site, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid site id")
		return domain.Site{}, false
	}

	site, err := s.store.GetSite(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "site not found")
		return domain.Site{}, false
	}
	if err != nil {
		s.logger.Error("load site failed", "site_id", id, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "load site failed")
		return domain.Site{}, false
	}
	if site.UserID != userFromContext(r.Context()) {
		writeError(w, http.StatusNotFound, "site not found")
		return domain.Site{}, false
	}
	return site, true
}
