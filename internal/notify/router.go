package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"sitewatch/internal/domain"
	"sitewatch/internal/store"
)

// TransitionSender is the dispatcher surface the router needs.
// Params: channel availability lookup and one-shot delivery.
// Returns: delivery behavior with retries applied downstream.
type TransitionSender interface {
	Configured(channel domain.NotifyChannel) bool
	Send(ctx context.Context, channel domain.NotifyChannel, notification Notification) error
}

// Router fans incident transitions out to matching rule channels.
// Params: rule source, dispatcher, and logger.
// Returns: best-effort delivery, failures are logged and never block the pipeline.
type Router struct {
	store      store.Store
	dispatcher TransitionSender
	logger     *slog.Logger
}

// NewRouter creates a router over one store and dispatcher.
// Params: st rule source; dispatcher channel delivery; logger.
// Returns: ready router.
func NewRouter(st store.Store, dispatcher TransitionSender, logger *slog.Logger) *Router {
	return &Router{store: st, dispatcher: dispatcher, logger: logger}
}

// Dispatch delivers every transition to the channels of every matching rule.
// Params: ctx caller context; site the incidents belong to; transitions from one evaluation.
// Returns: nothing, per-channel outcomes are logged.
func (r *Router) Dispatch(ctx context.Context, site domain.Site, transitions []domain.Transition) {
	if len(transitions) == 0 {
		return
	}

	rules, err := r.store.ListEnabledRules(ctx)
	if err != nil {
		r.logger.Error("load notification rules", "error", err.Error())
		return
	}

	for _, transition := range transitions {
		notification := buildNotification(site, transition)

		for _, rule := range rules {
			if rule.UserID != site.UserID || !rule.Matches(transition.Incident) {
				continue
			}

			for _, channel := range rule.Channels {
				if !r.dispatcher.Configured(channel) {
					r.logger.Warn("rule references unconfigured channel",
						"rule_id", rule.ID, "channel", channel)
					continue
				}

				scoped := notification
				scoped.WebhookURL = rule.WebhookURL
				scoped.SlackChannel = rule.SlackChannel

				if err := r.dispatcher.Send(ctx, channel, scoped); err != nil {
					r.logger.Error("notification delivery failed",
						"correlation_id", notification.CorrelationID,
						"rule_id", rule.ID,
						"channel", channel,
						"incident_id", transition.Incident.ID,
						"error", err.Error())
					continue
				}
				r.logger.Info("notification delivered",
					"correlation_id", notification.CorrelationID,
					"rule_id", rule.ID,
					"channel", channel,
					"incident_id", transition.Incident.ID,
					"event", string(transition.Kind))
			}
		}
	}
}

// buildNotification converts one transition into the outbound payload.
// Params: site identity and the transition carrying the incident.
// Returns: notification with a fresh correlation ID.
func buildNotification(site domain.Site, transition domain.Transition) Notification {
	incident := transition.Incident
	return Notification{
		CorrelationID: uuid.NewString(),
		Event:         string(transition.Kind),
		IncidentID:    incident.ID,
		IncidentType:  incident.Type,
		SiteID:        site.ID,
		SiteName:      site.Name,
		SiteURL:       site.URL,
		StartedAt:     incident.StartedAt,
		ResolvedAt:    incident.ResolvedAt,
		Detail:        incident.Message,
	}
}
