package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"sitewatch/internal/domain"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testSite(userID, name string) domain.Site {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return domain.Site{
		UserID:        userID,
		Name:          name,
		URL:           "https://" + name + ".example.com",
		CheckInterval: 300,
		Timeout:       10,
		Thresholds:    domain.Thresholds{UptimePercent: 99, MaxLatency: 2000, SEOScore: 80},
		QueryParams:   []domain.QueryParam{{Key: "region", Value: "eu"}},
		Enabled:       true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestSiteLifecycle(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateSite(ctx, testSite("user-1", "docs"))
	if err != nil {
		t.Fatalf("create site: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("expected assigned id")
	}

	loaded, err := s.GetSite(ctx, created.ID)
	if err != nil {
		t.Fatalf("get site: %v", err)
	}
	if loaded.Name != "docs" || loaded.Thresholds.MaxLatency != 2000 {
		t.Fatalf("unexpected site: %+v", loaded)
	}
	if len(loaded.QueryParams) != 1 || loaded.QueryParams[0].Key != "region" {
		t.Fatalf("query params not round-tripped: %+v", loaded.QueryParams)
	}

	loaded.Name = "docs-v2"
	loaded.Enabled = false
	if _, err := s.UpdateSite(ctx, loaded); err != nil {
		t.Fatalf("update site: %v", err)
	}
	updated, err := s.GetSite(ctx, created.ID)
	if err != nil {
		t.Fatalf("get updated site: %v", err)
	}
	if updated.Name != "docs-v2" || updated.Enabled {
		t.Fatalf("update not applied: %+v", updated)
	}

	count, err := s.CountSites(ctx, "user-1")
	if err != nil || count != 1 {
		t.Fatalf("expected one site, got %d (%v)", count, err)
	}
	if count, _ := s.CountSites(ctx, "user-2"); count != 0 {
		t.Fatalf("count must be scoped to the owner")
	}

	if err := s.DeleteSite(ctx, created.ID); err != nil {
		t.Fatalf("delete site: %v", err)
	}
	if _, err := s.GetSite(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteSite(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestEnabledSitesAtBoot(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	enabled := testSite("user-1", "on")
	disabled := testSite("user-1", "off")
	disabled.Enabled = false

	if _, err := s.CreateSite(ctx, enabled); err != nil {
		t.Fatalf("create enabled: %v", err)
	}
	if _, err := s.CreateSite(ctx, disabled); err != nil {
		t.Fatalf("create disabled: %v", err)
	}

	sites, err := s.ListEnabledSites(ctx)
	if err != nil {
		t.Fatalf("list enabled: %v", err)
	}
	if len(sites) != 1 || sites[0].Name != "on" {
		t.Fatalf("expected only the enabled site, got %+v", sites)
	}
}

func TestCheckHistoryQueries(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	mine, err := s.CreateSite(ctx, testSite("user-1", "mine"))
	if err != nil {
		t.Fatalf("create site: %v", err)
	}
	theirs, err := s.CreateSite(ctx, testSite("user-2", "theirs"))
	if err != nil {
		t.Fatalf("create site: %v", err)
	}

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	code := 200
	score := 85
	for i := 0; i < 3; i++ {
		result := domain.CheckResult{
			SiteID:       mine.ID,
			Timestamp:    base.Add(time.Duration(i) * time.Minute),
			Status:       domain.CheckStatusUp,
			ResponseTime: 100 + i,
			StatusCode:   &code,
			SEOScore:     &score,
		}
		if _, err := s.SaveCheckResult(ctx, result); err != nil {
			t.Fatalf("save check: %v", err)
		}
	}
	other := domain.CheckResult{
		SiteID:       theirs.ID,
		Timestamp:    base.Add(time.Hour),
		Status:       domain.CheckStatusDown,
		ResponseTime: 0,
		Error:        "connection refused",
	}
	if _, err := s.SaveCheckResult(ctx, other); err != nil {
		t.Fatalf("save other check: %v", err)
	}

	recent, err := s.RecentChecks(ctx, "user-1", 2)
	if err != nil {
		t.Fatalf("recent checks: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected limit applied, got %d rows", len(recent))
	}
	if recent[0].ResponseTime != 102 {
		t.Fatalf("expected newest first, got %+v", recent[0])
	}
	if recent[0].StatusCode == nil || *recent[0].StatusCode != 200 {
		t.Fatalf("status code not round-tripped: %+v", recent[0])
	}

	window, err := s.SiteChecksSince(ctx, mine.ID, base.Add(time.Minute))
	if err != nil {
		t.Fatalf("site checks since: %v", err)
	}
	if len(window) != 2 || window[0].ResponseTime != 101 {
		t.Fatalf("unexpected window rows: %+v", window)
	}

	all, err := s.ChecksSince(ctx, "user-1", base)
	if err != nil {
		t.Fatalf("checks since: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("cross-user rows leaked into the window: %+v", all)
	}
}

func TestIncidentSingleActivePerPair(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	site, err := s.CreateSite(ctx, testSite("user-1", "docs"))
	if err != nil {
		t.Fatalf("create site: %v", err)
	}

	started := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	opened, err := s.OpenIncident(ctx, domain.Incident{
		SiteID:    site.ID,
		Type:      domain.IncidentPageDown,
		StartedAt: started,
		Message:   "probe returned 503",
	})
	if err != nil {
		t.Fatalf("open incident: %v", err)
	}
	if opened.Status != domain.IncidentActive {
		t.Fatalf("expected ACTIVE status, got %q", opened.Status)
	}

	_, err = s.OpenIncident(ctx, domain.Incident{
		SiteID:    site.ID,
		Type:      domain.IncidentPageDown,
		StartedAt: started.Add(time.Minute),
	})
	if !errors.Is(err, ErrActiveExists) {
		t.Fatalf("expected ErrActiveExists, got %v", err)
	}

	// Another type on the same site opens independently.
	if _, err := s.OpenIncident(ctx, domain.Incident{
		SiteID:    site.ID,
		Type:      domain.IncidentSlow4G,
		StartedAt: started,
	}); err != nil {
		t.Fatalf("open second type: %v", err)
	}

	active, err := s.ActiveIncident(ctx, site.ID, domain.IncidentPageDown)
	if err != nil || active.ID != opened.ID {
		t.Fatalf("active incident lookup failed: %+v %v", active, err)
	}

	resolvedAt := started.Add(10 * time.Minute)
	resolved, err := s.ResolveIncident(ctx, opened.ID, resolvedAt)
	if err != nil {
		t.Fatalf("resolve incident: %v", err)
	}
	if resolved.Status != domain.IncidentResolved || resolved.ResolvedAt == nil {
		t.Fatalf("unexpected resolved incident: %+v", resolved)
	}
	if !resolved.ResolvedAt.Equal(resolvedAt) {
		t.Fatalf("resolved_at mismatch: %v", resolved.ResolvedAt)
	}

	if _, err := s.ResolveIncident(ctx, opened.ID, resolvedAt); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double resolve, got %v", err)
	}

	// After resolving, a fresh incident of the same type can open.
	if _, err := s.OpenIncident(ctx, domain.Incident{
		SiteID:    site.ID,
		Type:      domain.IncidentPageDown,
		StartedAt: resolvedAt.Add(time.Minute),
	}); err != nil {
		t.Fatalf("reopen after resolve: %v", err)
	}

	open, err := s.ListActiveIncidents(ctx, "user-1")
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(open) != 2 {
		t.Fatalf("expected two open incidents, got %+v", open)
	}
	if other, _ := s.ListActiveIncidents(ctx, "user-2"); len(other) != 0 {
		t.Fatalf("active incidents must be scoped to the owner")
	}
}

func TestRuleRoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateRule(ctx, domain.NotificationRule{
		UserID:       "user-1",
		Type:         domain.IncidentPageDown,
		Enabled:      true,
		Channels:     []domain.NotifyChannel{domain.ChannelEmail, domain.ChannelSlack},
		SlackChannel: "#ops",
	})
	if err != nil {
		t.Fatalf("create rule: %v", err)
	}

	loaded, err := s.GetRule(ctx, created.ID)
	if err != nil {
		t.Fatalf("get rule: %v", err)
	}
	if len(loaded.Channels) != 2 || loaded.Channels[1] != domain.ChannelSlack {
		t.Fatalf("channels not round-tripped: %+v", loaded.Channels)
	}

	loaded.Enabled = false
	loaded.Channels = []domain.NotifyChannel{domain.ChannelWebhook}
	loaded.WebhookURL = "https://hooks.example.com/x"
	if _, err := s.UpdateRule(ctx, loaded); err != nil {
		t.Fatalf("update rule: %v", err)
	}

	enabled, err := s.ListEnabledRules(ctx)
	if err != nil {
		t.Fatalf("list enabled rules: %v", err)
	}
	if len(enabled) != 0 {
		t.Fatalf("disabled rule must not be listed: %+v", enabled)
	}

	mine, err := s.ListRules(ctx, "user-1")
	if err != nil || len(mine) != 1 {
		t.Fatalf("list rules: %+v %v", mine, err)
	}
	if mine[0].WebhookURL != "https://hooks.example.com/x" {
		t.Fatalf("update not applied: %+v", mine[0])
	}

	if err := s.DeleteRule(ctx, created.ID); err != nil {
		t.Fatalf("delete rule: %v", err)
	}
	if _, err := s.GetRule(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestDeleteSiteCascades(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	site, err := s.CreateSite(ctx, testSite("user-1", "docs"))
	if err != nil {
		t.Fatalf("create site: %v", err)
	}
	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if _, err := s.SaveCheckResult(ctx, domain.CheckResult{
		SiteID: site.ID, Timestamp: ts, Status: domain.CheckStatusUp, ResponseTime: 100,
	}); err != nil {
		t.Fatalf("save check: %v", err)
	}
	if _, err := s.OpenIncident(ctx, domain.Incident{
		SiteID: site.ID, Type: domain.IncidentPageDown, StartedAt: ts,
	}); err != nil {
		t.Fatalf("open incident: %v", err)
	}

	if err := s.DeleteSite(ctx, site.ID); err != nil {
		t.Fatalf("delete site: %v", err)
	}
	checks, err := s.SiteChecks(ctx, site.ID, 10)
	if err != nil {
		t.Fatalf("site checks: %v", err)
	}
	if len(checks) != 0 {
		t.Fatalf("checks must cascade on site delete: %+v", checks)
	}
	if open, _ := s.ListActiveIncidents(ctx, "user-1"); len(open) != 0 {
		t.Fatalf("incidents must cascade on site delete: %+v", open)
	}
}
