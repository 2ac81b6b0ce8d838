package store

import (
	"context"
	"errors"
	"time"

	"sitewatch/internal/domain"
)

var (
	// ErrNotFound indicates an absent row.
	ErrNotFound = errors.New("not found")
	// ErrActiveExists indicates an ACTIVE incident already open for the (site, type) pair.
	ErrActiveExists = errors.New("active incident exists")
)

// Store provides persistence for sites, check history, incidents, and rules.
// Params: CRUD operations per aggregate plus window queries for stats.
// Returns: backend persistence behavior.
type Store interface {
	CreateSite(ctx context.Context, site domain.Site) (domain.Site, error)
	GetSite(ctx context.Context, id int64) (domain.Site, error)
	ListSites(ctx context.Context, userID string) ([]domain.Site, error)
	ListEnabledSites(ctx context.Context) ([]domain.Site, error)
	CountSites(ctx context.Context, userID string) (int, error)
	UpdateSite(ctx context.Context, site domain.Site) (domain.Site, error)
	DeleteSite(ctx context.Context, id int64) error

	SaveCheckResult(ctx context.Context, result domain.CheckResult) (domain.CheckResult, error)
	RecentChecks(ctx context.Context, userID string, limit int) ([]domain.CheckResult, error)
	SiteChecks(ctx context.Context, siteID int64, limit int) ([]domain.CheckResult, error)
	SiteChecksSince(ctx context.Context, siteID int64, since time.Time) ([]domain.CheckResult, error)
	ChecksSince(ctx context.Context, userID string, since time.Time) ([]domain.CheckResult, error)

	OpenIncident(ctx context.Context, incident domain.Incident) (domain.Incident, error)
	GetIncident(ctx context.Context, id int64) (domain.Incident, error)
	ActiveIncident(ctx context.Context, siteID int64, incidentType domain.IncidentType) (domain.Incident, error)
	ResolveIncident(ctx context.Context, id int64, resolvedAt time.Time) (domain.Incident, error)
	RefreshIncidentMessage(ctx context.Context, id int64, message string) (domain.Incident, error)
	ListActiveIncidents(ctx context.Context, userID string) ([]domain.Incident, error)

	CreateRule(ctx context.Context, rule domain.NotificationRule) (domain.NotificationRule, error)
	GetRule(ctx context.Context, id int64) (domain.NotificationRule, error)
	ListRules(ctx context.Context, userID string) ([]domain.NotificationRule, error)
	ListEnabledRules(ctx context.Context) ([]domain.NotificationRule, error)
	UpdateRule(ctx context.Context, rule domain.NotificationRule) (domain.NotificationRule, error)
	DeleteRule(ctx context.Context, id int64) error

	Close() error
}
