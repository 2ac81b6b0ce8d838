package domain

import "strings"

// NotifyChannel identifies one delivery transport.
// Params: EMAIL/SLACK/WEBHOOK/TELEGRAM constants.
// Returns: channel key matched against configured senders.
type NotifyChannel string

const (
	// ChannelEmail delivers over SMTP.
	ChannelEmail NotifyChannel = "EMAIL"
	// ChannelSlack delivers to a Slack incoming webhook.
	ChannelSlack NotifyChannel = "SLACK"
	// ChannelWebhook delivers a JSON payload to a generic HTTP endpoint.
	ChannelWebhook NotifyChannel = "WEBHOOK"
	// ChannelTelegram delivers through the Telegram Bot API.
	ChannelTelegram NotifyChannel = "TELEGRAM"
)

// NotificationRule maps incident transitions to delivery channels.
// Params: optional site scope, incident type, and channel list.
// Returns: user-owned routing input for the notifier.
type NotificationRule struct {
	ID           int64           `json:"id"`
	UserID       string          `json:"userId"`
	SiteID       int64           `json:"siteId,omitempty"`
	Type         IncidentType    `json:"type"`
	Enabled      bool            `json:"enabled"`
	Channels     []NotifyChannel `json:"channels"`
	WebhookURL   string          `json:"webhookUrl,omitempty"`
	SlackChannel string          `json:"slackChannel,omitempty"`
}

// Matches reports whether the rule applies to one incident.
// Params: incident to test; a zero SiteID rule matches all sites.
// Returns: true when enabled, type matches, and site scope matches.
func (r NotificationRule) Matches(incident Incident) bool {
	if !r.Enabled {
		return false
	}
	if r.Type != incident.Type {
		return false
	}
	return r.SiteID == 0 || r.SiteID == incident.SiteID
}

// ValidateNotificationRule checks rule fields at configuration time.
// Params: candidate rule from a create/update request.
// Returns: first ValidationError or nil.
func ValidateNotificationRule(rule NotificationRule) error {
	if !ValidIncidentType(rule.Type) {
		return ValidationError{Field: "type", Reason: "unknown incident type"}
	}
	if len(rule.Channels) == 0 {
		return ValidationError{Field: "channels", Reason: "at least one channel is required"}
	}
	seen := make(map[NotifyChannel]struct{}, len(rule.Channels))
	for _, channel := range rule.Channels {
		switch channel {
		case ChannelEmail, ChannelSlack, ChannelWebhook, ChannelTelegram:
		default:
			return ValidationError{Field: "channels", Reason: "unknown channel " + string(channel)}
		}
		if _, dup := seen[channel]; dup {
			return ValidationError{Field: "channels", Reason: "duplicate channel " + string(channel)}
		}
		seen[channel] = struct{}{}
	}
	if hasChannel(rule.Channels, ChannelWebhook) && strings.TrimSpace(rule.WebhookURL) == "" {
		return ValidationError{Field: "webhookUrl", Reason: "webhook url is required for WEBHOOK channel"}
	}
	if rule.WebhookURL != "" && !strings.HasPrefix(rule.WebhookURL, "http://") && !strings.HasPrefix(rule.WebhookURL, "https://") {
		return ValidationError{Field: "webhookUrl", Reason: "webhook url must start with http:// or https://"}
	}
	return nil
}

func hasChannel(channels []NotifyChannel, wanted NotifyChannel) bool {
	for _, channel := range channels {
		if channel == wanted {
			return true
		}
	}
	return false
}
