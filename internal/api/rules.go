package api

import (
	"errors"
	"net/http"
	"strconv"

	"sitewatch/internal/domain"
	"sitewatch/internal/store"
)

// ruleRequest is the mutable subset of a notification rule accepted from clients.
// Params: scope, incident type, channel list, and per-rule overrides.
// Returns: input for create and update handlers.
type ruleRequest struct {
	SiteID       int64                  `json:"siteId"`
	Type         domain.IncidentType    `json:"type"`
	Enabled      *bool                  `json:"enabled"`
	Channels     []domain.NotifyChannel `json:"channels"`
	WebhookURL   string                 `json:"webhookUrl"`
	SlackChannel string                 `json:"slackChannel"`
}

// handleCreateRule stores a new notification rule.
// Params: authenticated POST /api/rules request.
// Returns: 201 with the stored rule, 400 on validation failure.
func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	rule := domain.NotificationRule{
		UserID:       userFromContext(r.Context()),
		SiteID:       req.SiteID,
		Type:         req.Type,
		Enabled:      req.Enabled == nil || *req.Enabled,
		Channels:     req.Channels,
		WebhookURL:   req.WebhookURL,
		SlackChannel: req.SlackChannel,
	}
	if err := domain.ValidateNotificationRule(rule); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.store.CreateRule(r.Context(), rule)
	if err != nil {
		s.logger.Error("create rule failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "create rule failed")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleListRules lists the caller's notification rules.
// Params: authenticated GET /api/rules request.
// Returns: 200 with the rule list.
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.store.ListRules(r.Context(), userFromContext(r.Context()))
	if err != nil {
		s.logger.Error("list rules failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "list rules failed")
		return
	}
	if rules == nil {
		rules = []domain.NotificationRule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

// handleUpdateRule replaces one owned notification rule.
// Params: authenticated PUT /api/rules/{id} request.
// Returns: 200 with the updated rule, 400/404 on failure.
func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	existing, ok := s.ownedRule(w, r)
	if !ok {
		return
	}

	var req ruleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	updated := existing
	updated.SiteID = req.SiteID
	updated.Type = req.Type
	updated.Channels = req.Channels
	updated.WebhookURL = req.WebhookURL
	updated.SlackChannel = req.SlackChannel
	if req.Enabled != nil {
		updated.Enabled = *req.Enabled
	}
	if err := domain.ValidateNotificationRule(updated); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stored, err := s.store.UpdateRule(r.Context(), updated)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "rule not found")
		return
	}
	if err != nil {
		s.logger.Error("update rule failed", "rule_id", existing.ID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "update rule failed")
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

// handleDeleteRule removes one owned notification rule.
// Params: authenticated DELETE /api/rules/{id} request.
// Returns: 204 on success, 404 when absent.
func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	rule, ok := s.ownedRule(w, r)
	if !ok {
		return
	}

	if err := s.store.DeleteRule(r.Context(), rule.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "rule not found")
			return
		}
		s.logger.Error("delete rule failed", "rule_id", rule.ID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "delete rule failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownedRule loads the path rule and enforces ownership.
// Params: response writer and request with an {id} path value.
// Returns: rule and true, or false after writing a 400/404 response.
func (s *Server) ownedRule(w http.ResponseWriter, r *http.Request) (domain.NotificationRule, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid rule id")
		return domain.NotificationRule{}, false
	}

	rule, err := s.store.GetRule(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "rule not found")
		return domain.NotificationRule{}, false
	}
	if err != nil {
		s.logger.Error("load rule failed", "rule_id", id, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "load rule failed")
		return domain.NotificationRule{}, false
	}
	if rule.UserID != userFromContext(r.Context()) {
		writeError(w, http.StatusNotFound, "rule not found")
		return domain.NotificationRule{}, false
	}
	return rule, true
}
