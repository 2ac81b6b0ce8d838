package stats

import (
	"context"
	"fmt"
	"time"

	"sitewatch/internal/clock"
	"sitewatch/internal/domain"
	"sitewatch/internal/store"
)

// UptimeReport carries per-site aggregates over the stats window.
// Params: site binding, window size, and derived aggregates.
// Returns: read-only snapshot recomputed per request.
type UptimeReport struct {
	SiteID              int64   `json:"siteId"`
	WindowHours         int     `json:"windowHours"`
	TotalChecks         int64   `json:"totalChecks"`
	Uptime              float64 `json:"uptime"`
	AverageResponseTime float64 `json:"averageResponseTime"`
}

// Aggregator recomputes dashboard aggregates from stored check history.
// Params: store, clock, and the rolling window size.
// Returns: on-demand summaries with no cached state.
type Aggregator struct {
	store  store.Store
	clk    clock.Clock
	window time.Duration
}

// New creates an aggregator with a fixed window.
// Params: st persistence backend; clk supplies the window anchor; windowHours rolling span.
// Returns: ready aggregator.
func New(st store.Store, clk clock.Clock, windowHours int) *Aggregator {
	return &Aggregator{
		store:  st,
		clk:    clk,
		window: time.Duration(windowHours) * time.Hour,
	}
}

// Summary aggregates all sites of one user over the window.
// Params: ctx request context; userID owner identity.
// Returns: dashboard summary or store error.
func (a *Aggregator) Summary(ctx context.Context, userID string) (domain.StatsSummary, error) {
	sites, err := a.store.ListSites(ctx, userID)
	if err != nil {
		return domain.StatsSummary{}, fmt.Errorf("list sites: %w", err)
	}

	active := 0
	for _, site := range sites {
		if site.Enabled {
			active++
		}
	}

	results, err := a.store.ChecksSince(ctx, userID, a.clk.Now().Add(-a.window))
	if err != nil {
		return domain.StatsSummary{}, fmt.Errorf("load window: %w", err)
	}

	return domain.ComputeStats(len(sites), active, results), nil
}

// SiteUptime aggregates one site over the window.
// Params: ctx request context; siteID target site.
// Returns: uptime report or store error.
func (a *Aggregator) SiteUptime(ctx context.Context, siteID int64) (UptimeReport, error) {
	results, err := a.store.SiteChecksSince(ctx, siteID, a.clk.Now().Add(-a.window))
	if err != nil {
		return UptimeReport{}, fmt.Errorf("load site window: %w", err)
	}

	summary := domain.ComputeStats(0, 0, results)
	return UptimeReport{
		SiteID:              siteID,
		WindowHours:         int(a.window / time.Hour),
		TotalChecks:         summary.TotalChecks,
		Uptime:              summary.Uptime,
		AverageResponseTime: summary.AverageResponseTime,
	}, nil
}
