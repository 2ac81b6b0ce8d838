package evaluator

import (
	"context"
	"errors"
	"fmt"

	"sitewatch/internal/domain"
	"sitewatch/internal/ledger"
)

// verdict is the outcome of testing one result against one category.
// Params: clean/violated/skip constants.
// Returns: state-machine input per category.
type verdict int

const (
	// verdictClean resolves an open incident.
	verdictClean verdict = iota
	// verdictViolated opens an incident when none is active.
	verdictViolated
	// verdictSkip leaves the state untouched when the result carries no signal.
	verdictSkip
)

// Evaluator turns check results into incident transitions.
// Params: ledger enforcing the single-active invariant.
// Returns: opened/resolved transitions per evaluated result.
type Evaluator struct {
	ledger *ledger.Ledger
}

// New creates an evaluator over one ledger.
// Params: lg incident ledger.
// Returns: ready evaluator.
func New(lg *ledger.Ledger) *Evaluator {
	return &Evaluator{ledger: lg}
}

// Evaluate applies one check result to every threshold category of the site.
// Params: ctx request context; site carries thresholds; result the probe outcome.
// Returns: transitions that actually changed state, in stable category order.
// A violation with an incident already open produces no transition; a clean
// result with no open incident produces no transition.
func (e *Evaluator) Evaluate(ctx context.Context, site domain.Site, result domain.CheckResult) ([]domain.Transition, error) {
	var transitions []domain.Transition

	for _, incidentType := range domain.IncidentTypes() {
		outcome, message := classify(site, result, incidentType)

		switch outcome {
		case verdictSkip:
			continue

		case verdictViolated:
			incident, err := e.ledger.Open(ctx, site.ID, incidentType, message, result.Timestamp)
			if errors.Is(err, ledger.ErrActiveExists) {
				// Ongoing incident, keep its message current without a transition.
				if _, err := e.ledger.Refresh(ctx, site.ID, incidentType, message); err != nil && !errors.Is(err, ledger.ErrNotActive) {
					return transitions, fmt.Errorf("refresh %s: %w", incidentType, err)
				}
				continue
			}
			if err != nil {
				return transitions, fmt.Errorf("open %s: %w", incidentType, err)
			}
			transitions = append(transitions, domain.Transition{
				Kind:     domain.TransitionOpened,
				Incident: incident,
			})

		case verdictClean:
			incident, err := e.ledger.Resolve(ctx, site.ID, incidentType, result.Timestamp)
			if errors.Is(err, ledger.ErrNotActive) {
				continue
			}
			if err != nil {
				return transitions, fmt.Errorf("resolve %s: %w", incidentType, err)
			}
			transitions = append(transitions, domain.Transition{
				Kind:     domain.TransitionResolved,
				Incident: incident,
			})
		}
	}

	return transitions, nil
}

// classify decides whether one result violates one threshold category.
// Params: site thresholds, probe result, and the category under test.
// Returns: verdict and a message describing the trigger.
// Latency categories are judged on UP results only, a DOWN or TIMEOUT result
// carries no latency signal. SEO is judged only when the result has a score.
func classify(site domain.Site, result domain.CheckResult, incidentType domain.IncidentType) (verdict, string) {
	switch incidentType {
	case domain.IncidentPageDown:
		if result.Status == domain.CheckStatusDown || result.Status == domain.CheckStatusTimeout {
			if result.Error != "" {
				return verdictViolated, fmt.Sprintf("site is %s: %s", result.Status, result.Error)
			}
			return verdictViolated, fmt.Sprintf("site is %s", result.Status)
		}
		return verdictClean, ""

	case domain.IncidentHealthFail:
		if site.HealthEndpoint == "" {
			return verdictClean, ""
		}
		if result.Status != domain.CheckStatusUp {
			return verdictViolated, fmt.Sprintf("health endpoint %s is failing, probe status %s", site.HealthEndpoint, result.Status)
		}
		return verdictClean, ""

	case domain.IncidentSlow4G:
		if result.Status != domain.CheckStatusUp {
			return verdictSkip, ""
		}
		if result.ResponseTime > site.Thresholds.MaxLatency {
			return verdictViolated, fmt.Sprintf("response time %dms exceeded %dms", result.ResponseTime, site.Thresholds.MaxLatency)
		}
		return verdictClean, ""

	case domain.IncidentSlow3G:
		if result.Status != domain.CheckStatusUp {
			return verdictSkip, ""
		}
		if result.ResponseTime > 2*site.Thresholds.MaxLatency {
			return verdictViolated, fmt.Sprintf("response time %dms exceeded %dms", result.ResponseTime, 2*site.Thresholds.MaxLatency)
		}
		return verdictClean, ""

	case domain.IncidentSEODrop:
		if result.SEOScore == nil {
			return verdictSkip, ""
		}
		if *result.SEOScore < site.Thresholds.SEOScore {
			return verdictViolated, fmt.Sprintf("seo score %d fell below %d", *result.SEOScore, site.Thresholds.SEOScore)
		}
		return verdictClean, ""

	default:
		return verdictSkip, ""
	}
}
