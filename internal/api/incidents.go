package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"sitewatch/internal/domain"
	"sitewatch/internal/ingest"
	"sitewatch/internal/ledger"
	"sitewatch/internal/store"
)

// handleActiveIncidents lists the caller's open incidents.
// Params: authenticated GET /api/incidents/active request.
// Returns: 200 with open incidents, oldest first.
func (s *Server) handleActiveIncidents(w http.ResponseWriter, r *http.Request) {
	incidents, err := s.ledger.ListActive(r.Context(), userFromContext(r.Context()))
	if err != nil {
		s.logger.Error("list active incidents failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "list active incidents failed")
		return
	}
	if incidents == nil {
		incidents = []domain.Incident{}
	}
	writeJSON(w, http.StatusOK, incidents)
}

// handleResolveIncident closes one owned incident by operator request.
// Params: authenticated POST /api/incidents/{id}/resolve request.
// Returns: 200 with the resolved incident, 404 when absent, 409 when already resolved.
func (s *Server) handleResolveIncident(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid incident id")
		return
	}

	incident, err := s.store.GetIncident(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "incident not found")
		return
	}
	if err != nil {
		s.logger.Error("load incident failed", "incident_id", id, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "load incident failed")
		return
	}

	site, err := s.store.GetSite(r.Context(), incident.SiteID)
	if err != nil || site.UserID != userFromContext(r.Context()) {
		writeError(w, http.StatusNotFound, "incident not found")
		return
	}

	resolved, err := s.ledger.ResolveByID(r.Context(), id)
	if errors.Is(err, ledger.ErrNotActive) {
		writeError(w, http.StatusConflict, "incident already resolved")
		return
	}
	if err != nil {
		s.logger.Error("resolve incident failed", "incident_id", id, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "resolve incident failed")
		return
	}

	s.logger.Info("incident resolved by operator", "incident_id", resolved.ID, "site_id", resolved.SiteID, "type", string(resolved.Type))
	writeJSON(w, http.StatusOK, resolved)
}

// handleWorkerResult accepts one check result from a remote probe worker.
// Params: POST /api/worker/check-result request with a check result payload.
// Returns: 202 once accepted, 400 on invalid payload, 404 for unknown sites.
func (s *Server) handleWorkerResult(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	result, err := ingest.DecodeCheckResult(payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.recorder.Record(r.Context(), result); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "site not found")
			return
		}
		s.logger.Error("record worker result failed", "site_id", result.SiteID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "record check result failed")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
