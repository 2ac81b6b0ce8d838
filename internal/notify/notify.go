package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"sitewatch/internal/config"
	"sitewatch/internal/domain"
	"sitewatch/internal/templatefmt"
)

// defaultTemplate renders notifications when a channel has no custom template.
const defaultTemplate = `[{{ .Event }}] {{ .IncidentType }} on {{ .SiteName }} ({{ .SiteURL }}): {{ .Detail }}`

// Notification is one outbound incident message.
// Params: incident snapshot, site identity, and per-rule delivery overrides.
// Returns: payload rendered and delivered per channel.
type Notification struct {
	CorrelationID string              `json:"correlationId"`
	Event         string              `json:"event"`
	IncidentID    int64               `json:"incidentId"`
	IncidentType  domain.IncidentType `json:"incidentType"`
	SiteID        int64               `json:"siteId"`
	SiteName      string              `json:"siteName"`
	SiteURL       string              `json:"siteUrl"`
	StartedAt     time.Time           `json:"startedAt"`
	ResolvedAt    *time.Time          `json:"resolvedAt,omitempty"`
	Detail        string              `json:"detail"`
	Message       string              `json:"message"`

	// Per-rule delivery overrides, not part of the wire payload.
	WebhookURL   string `json:"-"`
	SlackChannel string `json:"-"`
}

// ChannelSender sends one outbound notification to one channel.
// Params: context and notification payload.
// Returns: transport error when send fails.
type ChannelSender interface {
	Channel() domain.NotifyChannel
	Send(ctx context.Context, notification Notification) error
}

// Dispatcher delivers notifications with configured retries and backoff.
// Params: sender set, per-channel retry policies, and compiled templates.
// Returns: send helper for the router.
type Dispatcher struct {
	senders      map[domain.NotifyChannel]ChannelSender
	retries      map[domain.NotifyChannel]config.NotifyRetry
	templates    map[domain.NotifyChannel]*template.Template
	templateErrs map[domain.NotifyChannel]error
	logger       *slog.Logger
}

// NewDispatcher builds a dispatcher from the enabled channels.
// Params: cfg notify section; logger for retry diagnostics.
// Returns: dispatcher with one sender per enabled channel.
func NewDispatcher(cfg config.NotifyConfig, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		senders:      make(map[domain.NotifyChannel]ChannelSender),
		retries:      make(map[domain.NotifyChannel]config.NotifyRetry),
		templates:    make(map[domain.NotifyChannel]*template.Template),
		templateErrs: make(map[domain.NotifyChannel]error),
		logger:       logger,
	}

	if cfg.Email.Enabled {
		d.register(NewEmailSender(cfg.Email), cfg.Email.Retry, cfg.Email.Template)
	}
	if cfg.Slack.Enabled {
		d.register(NewSlackSender(cfg.Slack), cfg.Slack.Retry, cfg.Slack.Template)
	}
	if cfg.Webhook.Enabled {
		d.register(NewWebhookSender(cfg.Webhook), cfg.Webhook.Retry, "")
	}
	if cfg.Telegram.Enabled {
		d.register(NewTelegramSender(cfg.Telegram), cfg.Telegram.Retry, cfg.Telegram.Template)
	}
	return d
}

// register wires one sender with its retry policy and message template.
// Params: sender implementation, retry policy, and optional template body.
// Returns: nothing, parse errors surface at send time.
func (d *Dispatcher) register(sender ChannelSender, retry config.NotifyRetry, templateBody string) {
	channel := sender.Channel()
	d.senders[channel] = sender
	d.retries[channel] = retry

	body := strings.TrimSpace(templateBody)
	if body == "" {
		body = defaultTemplate
	}
	compiled, err := templatefmt.ParseNotificationTemplate("notify."+strings.ToLower(string(channel)), body)
	if err != nil {
		d.templateErrs[channel] = err
		return
	}
	d.templates[channel] = compiled
}

// Configured reports whether a sender exists for the channel.
// Params: channel key from a rule.
// Returns: true when the channel is enabled in config.
func (d *Dispatcher) Configured(channel domain.NotifyChannel) bool {
	_, ok := d.senders[channel]
	return ok
}

// Send renders and delivers one notification to one channel.
// Params: ctx caller context; channel destination; notification payload.
// Returns: final error after the channel retry policy is exhausted.
func (d *Dispatcher) Send(ctx context.Context, channel domain.NotifyChannel, notification Notification) error {
	sender, ok := d.senders[channel]
	if !ok {
		return fmt.Errorf("notify channel %q is not configured", channel)
	}
	if err := d.templateErrs[channel]; err != nil {
		return fmt.Errorf("notify template for channel %q is invalid: %w", channel, err)
	}

	var rendered strings.Builder
	if err := d.templates[channel].Execute(&rendered, notification); err != nil {
		return fmt.Errorf("render notification for channel %q: %w", channel, err)
	}
	notification.Message = rendered.String()

	return d.sendWithRetry(ctx, sender, notification, d.retries[channel])
}

// sendWithRetry delivers one notification under the channel retry policy.
// Params: sender, payload, and retry policy.
// Returns: nil on delivery, final error after attempts are exhausted.
func (d *Dispatcher) sendWithRetry(ctx context.Context, sender ChannelSender, notification Notification, retry config.NotifyRetry) error {
	if !retry.Enabled {
		return sender.Send(ctx, notification)
	}

	attempt := 0
	backoff := time.Duration(retry.InitialMS) * time.Millisecond
	maxBackoff := time.Duration(retry.MaxMS) * time.Millisecond
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		attempt++
		err := sender.Send(ctx, notification)
		if err == nil {
			if retry.LogEachAttempt && attempt > 1 {
				d.logger.Info("notify send recovered after retries",
					"channel", sender.Channel(), "attempt", attempt)
			}
			return nil
		}
		if retry.LogEachAttempt {
			d.logger.Warn("notify send attempt failed",
				"channel", sender.Channel(), "attempt", attempt, "error", err.Error())
		}

		if retry.MaxAttempts > 0 && attempt >= retry.MaxAttempts {
			return fmt.Errorf("channel %s failed after %d attempts: %w", sender.Channel(), attempt, err)
		}

		if timer == nil {
			timer = time.NewTimer(backoff)
		} else {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(backoff)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		if strings.EqualFold(retry.Backoff, "exponential") {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}
