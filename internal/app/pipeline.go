package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sitewatch/internal/checker"
	"sitewatch/internal/domain"
	"sitewatch/internal/evaluator"
	"sitewatch/internal/notify"
	"sitewatch/internal/store"
)

// ingestTimeout bounds processing of one queued worker result.
const ingestTimeout = 30 * time.Second

// Pipeline carries one check result from probe to persisted transitions.
// Params: store, checker, evaluator, and notification router.
// Returns: the single processing path shared by scheduler, API, and NATS ingest.
type Pipeline struct {
	store   store.Store
	checker *checker.Checker
	eval    *evaluator.Evaluator
	router  *notify.Router
	logger  *slog.Logger
}

// NewPipeline creates the shared result-processing pipeline.
// Params: st persistence; chk HTTP prober; eval transition engine; router delivery fanout; logger.
// Returns: ready pipeline.
func NewPipeline(st store.Store, chk *checker.Checker, eval *evaluator.Evaluator, router *notify.Router, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		store:   st,
		checker: chk,
		eval:    eval,
		router:  router,
		logger:  logger,
	}
}

// Probe runs one scheduled probe end to end.
// Params: ctx scheduler lifetime context; site the probe target.
// Returns: nothing, failures are logged.
func (p *Pipeline) Probe(ctx context.Context, site domain.Site) {
	result, err := p.checker.Probe(ctx, site)
	if err != nil {
		// Shutdown interrupted the probe, there is no outcome to record.
		p.logger.Debug("probe interrupted", "site_id", site.ID, "error", err.Error())
		return
	}
	if err := p.Record(ctx, result); err != nil {
		p.logger.Error("probe result processing failed",
			"site_id", site.ID, "status", string(result.Status), "error", err.Error())
	}
}

// Record persists one check result, evaluates thresholds, and dispatches transitions.
// Params: ctx caller context; result probe outcome from any source.
// Returns: store.ErrNotFound for unknown sites, or the first persistence error.
// Notification delivery is best-effort and never fails the record.
func (p *Pipeline) Record(ctx context.Context, result domain.CheckResult) error {
	site, err := p.store.GetSite(ctx, result.SiteID)
	if err != nil {
		return fmt.Errorf("load site %d: %w", result.SiteID, err)
	}

	stored, err := p.store.SaveCheckResult(ctx, result)
	if err != nil {
		return fmt.Errorf("save check result: %w", err)
	}

	transitions, err := p.eval.Evaluate(ctx, site, stored)
	if len(transitions) > 0 {
		p.router.Dispatch(ctx, site, transitions)
	}
	if err != nil {
		return fmt.Errorf("evaluate result: %w", err)
	}
	return nil
}

// Push processes one queued worker result.
// Params: result decoded NATS submission.
// Returns: processing error, which requeues the message.
func (p *Pipeline) Push(result domain.CheckResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()
	return p.Record(ctx, result)
}
