package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"sitewatch/internal/config"
	"sitewatch/internal/domain"
)

// EmailSender delivers notifications over SMTP.
// Params: server address, credentials, and fixed sender/recipients.
// Returns: EMAIL channel sender.
type EmailSender struct {
	cfg  config.EmailNotifier
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailSender creates the SMTP sender.
// Params: cfg email notifier section.
// Returns: initialized sender.
func NewEmailSender(cfg config.EmailNotifier) *EmailSender {
	return &EmailSender{cfg: cfg, send: smtp.SendMail}
}

// Channel returns the sender channel key.
// Params: none.
// Returns: EMAIL.
func (s *EmailSender) Channel() domain.NotifyChannel {
	return domain.ChannelEmail
}

// Send delivers one notification as a plain-text mail.
// Params: ctx caller context; notification rendered payload.
// Returns: SMTP error when delivery fails.
func (s *EmailSender) Send(ctx context.Context, notification Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := fmt.Sprintf("sitewatch %s: %s on %s",
		notification.Event, notification.IncidentType, notification.SiteName)

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(s.cfg.To, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(notification.Message)
	msg.WriteString("\r\n")

	var auth smtp.Auth
	if strings.TrimSpace(s.cfg.Username) != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	if err := s.send(addr, auth, s.cfg.From, s.cfg.To, msg.Bytes()); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// SlackSender posts notifications to a Slack incoming webhook.
// Params: webhook URL and default channel from config.
// Returns: SLACK channel sender.
type SlackSender struct {
	cfg    config.SlackNotifier
	client *http.Client
}

// NewSlackSender creates the Slack webhook sender.
// Params: cfg slack notifier section.
// Returns: initialized sender.
func NewSlackSender(cfg config.SlackNotifier) *SlackSender {
	return &SlackSender{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
	}
}

// Channel returns the sender channel key.
// Params: none.
// Returns: SLACK.
func (s *SlackSender) Channel() domain.NotifyChannel {
	return domain.ChannelSlack
}

// Send posts one message to the incoming webhook.
// Params: ctx caller context; notification carries message and channel override.
// Returns: transport or HTTP error.
func (s *SlackSender) Send(ctx context.Context, notification Notification) error {
	channel := strings.TrimSpace(notification.SlackChannel)
	if channel == "" {
		channel = strings.TrimSpace(s.cfg.Channel)
	}

	payload := struct {
		Text    string `json:"text"`
		Channel string `json:"channel,omitempty"`
	}{
		Text:    notification.Message,
		Channel: channel,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build slack request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := s.client.Do(request)
	if err != nil {
		return fmt.Errorf("slack send: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return unexpectedHTTPStatusError("slack", response)
	}
	return nil
}

// WebhookSender posts the notification payload to a generic HTTP endpoint.
// Params: fallback URL, timeout, and optional static headers.
// Returns: WEBHOOK channel sender.
type WebhookSender struct {
	cfg    config.WebhookNotifier
	client *http.Client
}

// NewWebhookSender creates the generic webhook sender.
// Params: cfg webhook notifier section.
// Returns: initialized sender.
func NewWebhookSender(cfg config.WebhookNotifier) *WebhookSender {
	return &WebhookSender{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
	}
}

// Channel returns the sender channel key.
// Params: none.
// Returns: WEBHOOK.
func (s *WebhookSender) Channel() domain.NotifyChannel {
	return domain.ChannelWebhook
}

// Send delivers the JSON payload to the rule URL or the configured fallback.
// Params: ctx caller context; notification carries the URL override.
// Returns: transport or HTTP error.
func (s *WebhookSender) Send(ctx context.Context, notification Notification) error {
	target := strings.TrimSpace(notification.WebhookURL)
	if target == "" {
		target = strings.TrimSpace(s.cfg.URL)
	}
	if target == "" {
		return errors.New("webhook url is not configured")
	}

	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	for key, value := range s.cfg.Headers {
		request.Header.Set(key, value)
	}

	response, err := s.client.Do(request)
	if err != nil {
		return fmt.Errorf("webhook send: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return unexpectedHTTPStatusError("webhook", response)
	}
	return nil
}

// TelegramSender delivers notifications over the Telegram Bot API.
// Params: bot token, chat id, and optional API base URL.
// Returns: TELEGRAM channel sender.
type TelegramSender struct {
	client  *tgbot.Bot
	chatID  any
	initErr error
}

// NewTelegramSender creates the Telegram sender.
// Params: cfg telegram notifier section.
// Returns: initialized sender, init errors surface on first Send.
func NewTelegramSender(cfg config.TelegramNotifier) *TelegramSender {
	sender := &TelegramSender{chatID: normalizeChatID(cfg.ChatID)}

	if strings.TrimSpace(cfg.BotToken) == "" {
		sender.initErr = errors.New("telegram bot token is required")
		return sender
	}
	if strings.TrimSpace(cfg.ChatID) == "" {
		sender.initErr = errors.New("telegram chat_id is required")
		return sender
	}

	options := []tgbot.Option{tgbot.WithSkipGetMe()}
	if base := strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/"); base != "" {
		options = append(options, tgbot.WithServerURL(base))
	}
	botClient, err := tgbot.New(cfg.BotToken, options...)
	if err != nil {
		sender.initErr = fmt.Errorf("init telegram bot: %w", err)
		return sender
	}
	sender.client = botClient
	return sender
}

// Channel returns the sender channel key.
// Params: none.
// Returns: TELEGRAM.
func (s *TelegramSender) Channel() domain.NotifyChannel {
	return domain.ChannelTelegram
}

// Send posts one message to the configured chat.
// Params: ctx caller context; notification rendered payload.
// Returns: transport or API error.
func (s *TelegramSender) Send(ctx context.Context, notification Notification) error {
	if s.initErr != nil {
		return s.initErr
	}
	if s.client == nil {
		return errors.New("telegram client is not initialized")
	}

	sent, err := s.client.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:    s.chatID,
		Text:      notification.Message,
		ParseMode: tgmodels.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	if sent == nil || sent.ID <= 0 {
		return errors.New("telegram send returned empty message id")
	}
	return nil
}

// normalizeChatID converts numeric chat IDs to int64 and keeps names as string.
// Params: raw configured chat ID value.
// Returns: Telegram API chat id union value.
func normalizeChatID(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if numeric, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return numeric
	}
	return trimmed
}

// unexpectedHTTPStatusError formats a non-2xx response with optional body.
// Params: sender prefix label and HTTP response.
// Returns: status-only or status+body error.
func unexpectedHTTPStatusError(prefix string, response *http.Response) error {
	if response == nil {
		return fmt.Errorf("%s status=0", prefix)
	}
	rawBody, readErr := io.ReadAll(response.Body)
	if readErr != nil {
		return fmt.Errorf("%s status=%d (read body error: %w)", prefix, response.StatusCode, readErr)
	}
	trimmedBody := strings.TrimSpace(string(rawBody))
	if trimmedBody == "" {
		return fmt.Errorf("%s status=%d", prefix, response.StatusCode)
	}
	return fmt.Errorf("%s status=%d body=%s", prefix, response.StatusCode, trimmedBody)
}
