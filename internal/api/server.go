package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"sitewatch/internal/clock"
	"sitewatch/internal/config"
	"sitewatch/internal/domain"
	"sitewatch/internal/ledger"
	"sitewatch/internal/stats"
	"sitewatch/internal/store"
)

// SiteScheduler is the scheduler surface the API needs for site CRUD.
// Params: registration lifecycle per site.
// Returns: probe timer control.
type SiteScheduler interface {
	Register(site domain.Site, interval time.Duration)
	Unregister(siteID int64)
}

// ResultRecorder accepts externally submitted check results.
// Params: one validated result per call.
// Returns: processing error surfaced to the submitter.
type ResultRecorder interface {
	Record(ctx context.Context, result domain.CheckResult) error
}

// Server is the HTTP configuration and read API.
// Params: storage, ledger, stats, scheduler control, and auth settings.
// Returns: request handlers over one ServeMux.
type Server struct {
	logger      *slog.Logger
	store       store.Store
	ledger      *ledger.Ledger
	stats       *stats.Aggregator
	sched       SiteScheduler
	recorder    ResultRecorder
	clk         clock.Clock
	jwtSecret   string
	healthPath  string
	readyPath   string
	recentLimit int
	ready       func() bool
}

// New creates the API server.
// Params: cfg api section; component dependencies; recentLimit default page size; ready readiness probe.
// Returns: server ready to build its handler.
func New(
	cfg config.APIConfig,
	logger *slog.Logger,
	st store.Store,
	lg *ledger.Ledger,
	agg *stats.Aggregator,
	sched SiteScheduler,
	recorder ResultRecorder,
	clk clock.Clock,
	recentLimit int,
	ready func() bool,
) *Server {
	return &Server{
		logger:      logger,
		store:       st,
		ledger:      lg,
		stats:       agg,
		sched:       sched,
		recorder:    recorder,
		clk:         clk,
		jwtSecret:   cfg.JWTSecret,
		healthPath:  cfg.HealthPath,
		readyPath:   cfg.ReadyPath,
		recentLimit: recentLimit,
		ready:       ready,
	}
}

// Handler builds the route table.
// Params: none.
// Returns: ServeMux with method-scoped patterns.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+s.healthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET "+s.readyPath, func(w http.ResponseWriter, _ *http.Request) {
		if s.ready != nil && !s.ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not-ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// Remote workers authenticate at the transport layer, not with user tokens.
	mux.HandleFunc("POST /api/worker/check-result", s.handleWorkerResult)

	mux.HandleFunc("GET /api/sites", s.requireAuth(s.handleListSites))
	mux.HandleFunc("POST /api/sites", s.requireAuth(s.handleCreateSite))
	mux.HandleFunc("GET /api/sites/count", s.requireAuth(s.handleCountSites))
	mux.HandleFunc("GET /api/sites/{id}", s.requireAuth(s.handleGetSite))
	mux.HandleFunc("PUT /api/sites/{id}", s.requireAuth(s.handleUpdateSite))
	mux.HandleFunc("DELETE /api/sites/{id}", s.requireAuth(s.handleDeleteSite))

	mux.HandleFunc("GET /api/rules", s.requireAuth(s.handleListRules))
	mux.HandleFunc("POST /api/rules", s.requireAuth(s.handleCreateRule))
	mux.HandleFunc("PUT /api/rules/{id}", s.requireAuth(s.handleUpdateRule))
	mux.HandleFunc("DELETE /api/rules/{id}", s.requireAuth(s.handleDeleteRule))

	mux.HandleFunc("GET /api/checks/recent", s.requireAuth(s.handleRecentChecks))
	mux.HandleFunc("GET /api/checks/site/{id}", s.requireAuth(s.handleSiteChecks))
	mux.HandleFunc("GET /api/checks/site/{id}/uptime", s.requireAuth(s.handleSiteUptime))

	mux.HandleFunc("GET /api/stats", s.requireAuth(s.handleStats))

	mux.HandleFunc("GET /api/incidents/active", s.requireAuth(s.handleActiveIncidents))
	mux.HandleFunc("POST /api/incidents/{id}/resolve", s.requireAuth(s.handleResolveIncident))

	return s.withRequestLog(mux)
}
