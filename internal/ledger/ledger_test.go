package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sitewatch/internal/domain"
	"sitewatch/internal/store"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

func newTestLedger(t *testing.T) (*Ledger, *store.SQLite, int64) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	site, err := st.CreateSite(context.Background(), domain.Site{
		UserID: "user-1", Name: "docs", URL: "https://example.com",
		CheckInterval: 300, Timeout: 10, Enabled: true,
		Thresholds: domain.Thresholds{UptimePercent: 99, MaxLatency: 2000, SEOScore: 80},
		CreatedAt:  now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("create site: %v", err)
	}
	return New(st, fixedClock{now: now}), st, site.ID
}

func TestOpenAndResolve(t *testing.T) {
	t.Parallel()
	ledger, _, siteID := newTestLedger(t)
	ctx := context.Background()

	// Lifecycle stamps come from the triggering result, not the wall clock.
	downAt := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	upAt := time.Date(2026, 7, 1, 9, 5, 0, 0, time.UTC)

	opened, err := ledger.Open(ctx, siteID, domain.IncidentPageDown, "probe returned 503", downAt)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if opened.Status != domain.IncidentActive || opened.Message != "probe returned 503" {
		t.Fatalf("unexpected incident: %+v", opened)
	}
	if !opened.StartedAt.Equal(downAt) {
		t.Fatalf("startedAt = %v, want result timestamp %v", opened.StartedAt, downAt)
	}

	if _, err := ledger.Open(ctx, siteID, domain.IncidentPageDown, "again", downAt); !errors.Is(err, ErrActiveExists) {
		t.Fatalf("expected ErrActiveExists, got %v", err)
	}

	_, active, err := ledger.Active(ctx, siteID, domain.IncidentPageDown)
	if err != nil || !active {
		t.Fatalf("expected active incident, got active=%v err=%v", active, err)
	}

	resolved, err := ledger.Resolve(ctx, siteID, domain.IncidentPageDown, upAt)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != domain.IncidentResolved || resolved.ResolvedAt == nil {
		t.Fatalf("unexpected resolved incident: %+v", resolved)
	}
	if !resolved.ResolvedAt.Equal(upAt) {
		t.Fatalf("resolvedAt = %v, want result timestamp %v", resolved.ResolvedAt, upAt)
	}
	if !resolved.ResolvedAt.After(resolved.StartedAt) {
		t.Fatalf("resolvedAt %v not after startedAt %v", resolved.ResolvedAt, resolved.StartedAt)
	}

	if _, err := ledger.Resolve(ctx, siteID, domain.IncidentPageDown, upAt); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive on second resolve, got %v", err)
	}

	if _, err := ledger.Open(ctx, siteID, domain.IncidentPageDown, "reopened", upAt.Add(time.Minute)); err != nil {
		t.Fatalf("reopen after resolve: %v", err)
	}
}

func TestRefreshUpdatesActiveMessage(t *testing.T) {
	t.Parallel()
	ledger, _, siteID := newTestLedger(t)
	ctx := context.Background()

	at := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	opened, err := ledger.Open(ctx, siteID, domain.IncidentPageDown, "probe returned 503", at)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	refreshed, err := ledger.Refresh(ctx, siteID, domain.IncidentPageDown, "probe timed out")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.ID != opened.ID || refreshed.Message != "probe timed out" {
		t.Fatalf("unexpected refreshed incident: %+v", refreshed)
	}
	if refreshed.Status != domain.IncidentActive || !refreshed.StartedAt.Equal(opened.StartedAt) {
		t.Fatalf("refresh must not alter lifecycle fields: %+v", refreshed)
	}

	if _, err := ledger.Resolve(ctx, siteID, domain.IncidentPageDown, at.Add(time.Minute)); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := ledger.Refresh(ctx, siteID, domain.IncidentPageDown, "late"); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive after resolve, got %v", err)
	}
}

func TestResolveByID(t *testing.T) {
	t.Parallel()
	ledger, _, siteID := newTestLedger(t)
	ctx := context.Background()

	opened, err := ledger.Open(ctx, siteID, domain.IncidentSlow4G, "latency above ceiling", time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	resolved, err := ledger.ResolveByID(ctx, opened.ID)
	if err != nil {
		t.Fatalf("resolve by id: %v", err)
	}
	if resolved.Status != domain.IncidentResolved {
		t.Fatalf("unexpected status: %+v", resolved)
	}

	if _, err := ledger.ResolveByID(ctx, opened.ID); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive on resolved incident, got %v", err)
	}
	if _, err := ledger.ResolveByID(ctx, 9999); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestConcurrentOpenSingleWinner(t *testing.T) {
	t.Parallel()
	ledger, _, siteID := newTestLedger(t)
	ctx := context.Background()

	const workers = 16
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		opened int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.Open(ctx, siteID, domain.IncidentPageDown, "race", time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)); err == nil {
				mu.Lock()
				opened++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if opened != 1 {
		t.Fatalf("expected exactly one successful open, got %d", opened)
	}

	list, err := ledger.ListActive(ctx, "user-1")
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one active incident, got %+v (%v)", list, err)
	}
}

func TestPairsAreIndependent(t *testing.T) {
	t.Parallel()
	ledger, _, siteID := newTestLedger(t)
	ctx := context.Background()

	at := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	if _, err := ledger.Open(ctx, siteID, domain.IncidentPageDown, "down", at); err != nil {
		t.Fatalf("open page down: %v", err)
	}
	if _, err := ledger.Open(ctx, siteID, domain.IncidentSEODrop, "score fell", at); err != nil {
		t.Fatalf("open seo drop: %v", err)
	}

	list, err := ledger.ListActive(ctx, "user-1")
	if err != nil || len(list) != 2 {
		t.Fatalf("expected two independent incidents, got %+v (%v)", list, err)
	}
}
