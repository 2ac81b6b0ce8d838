package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync/atomic"
	"testing"
	"text/template"
	"time"

	"sitewatch/internal/config"
	"sitewatch/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type flakySender struct {
	failures int32
	calls    atomic.Int32
	lastMsg  atomic.Value
}

func (s *flakySender) Channel() domain.NotifyChannel {
	return domain.ChannelWebhook
}

func (s *flakySender) Send(_ context.Context, notification Notification) error {
	call := s.calls.Add(1)
	s.lastMsg.Store(notification.Message)
	if call <= s.failures {
		return errors.New("transient failure")
	}
	return nil
}

func testNotification() Notification {
	return Notification{
		CorrelationID: "c-1",
		Event:         "opened",
		IncidentID:    7,
		IncidentType:  domain.IncidentPageDown,
		SiteID:        1,
		SiteName:      "docs",
		SiteURL:       "https://docs.example.com",
		StartedAt:     time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Detail:        "site is DOWN: server returned 503",
	}
}

func retryDispatcher(sender ChannelSender, retry config.NotifyRetry) *Dispatcher {
	d := &Dispatcher{
		senders:      make(map[domain.NotifyChannel]ChannelSender),
		retries:      make(map[domain.NotifyChannel]config.NotifyRetry),
		templates:    make(map[domain.NotifyChannel]*template.Template),
		templateErrs: make(map[domain.NotifyChannel]error),
		logger:       discardLogger(),
	}
	d.register(sender, retry, "")
	return d
}

func TestSendRecoversAfterRetries(t *testing.T) {
	t.Parallel()

	sender := &flakySender{failures: 2}
	d := retryDispatcher(sender, config.NotifyRetry{
		Enabled: true, Backoff: "exponential", InitialMS: 1, MaxMS: 4, MaxAttempts: 5,
	})

	if err := d.Send(context.Background(), domain.ChannelWebhook, testNotification()); err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if got := sender.calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	msg, _ := sender.lastMsg.Load().(string)
	if msg != "[opened] PAGE_DOWN on docs (https://docs.example.com): site is DOWN: server returned 503" {
		t.Fatalf("unexpected rendered message %q", msg)
	}
}

func TestSendStopsAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	sender := &flakySender{failures: 100}
	d := retryDispatcher(sender, config.NotifyRetry{
		Enabled: true, Backoff: "exponential", InitialMS: 1, MaxMS: 2, MaxAttempts: 3,
	})

	err := d.Send(context.Background(), domain.ChannelWebhook, testNotification())
	if err == nil {
		t.Fatalf("expected final error")
	}
	if got := sender.calls.Load(); got != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", got)
	}
}

func TestSendWithoutRetrySendsOnce(t *testing.T) {
	t.Parallel()

	sender := &flakySender{failures: 100}
	d := retryDispatcher(sender, config.NotifyRetry{Enabled: false})

	if err := d.Send(context.Background(), domain.ChannelWebhook, testNotification()); err == nil {
		t.Fatalf("expected error without retries")
	}
	if got := sender.calls.Load(); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}

func TestSendUnknownChannel(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(config.NotifyConfig{}, discardLogger())
	if err := d.Send(context.Background(), domain.ChannelSlack, testNotification()); err == nil {
		t.Fatalf("expected unconfigured channel error")
	}
}

func TestSlackSenderPayload(t *testing.T) {
	t.Parallel()

	var got struct {
		Text    string `json:"text"`
		Channel string `json:"channel"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewSlackSender(config.SlackNotifier{
		Enabled: true, WebhookURL: server.URL, Channel: "#default", TimeoutSec: 5,
	})

	notification := testNotification()
	notification.Message = "docs is down"
	notification.SlackChannel = "#ops"
	if err := sender.Send(context.Background(), notification); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.Text != "docs is down" {
		t.Fatalf("unexpected text %q", got.Text)
	}
	if got.Channel != "#ops" {
		t.Fatalf("rule channel override not applied: %q", got.Channel)
	}
}

func TestWebhookSenderURLOverride(t *testing.T) {
	t.Parallel()

	var payload Notification
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sender := NewWebhookSender(config.WebhookNotifier{
		Enabled: true, URL: "http://127.0.0.1:1/unreachable", TimeoutSec: 5,
	})

	notification := testNotification()
	notification.Message = "rendered"
	notification.WebhookURL = server.URL
	if err := sender.Send(context.Background(), notification); err != nil {
		t.Fatalf("send: %v", err)
	}
	if payload.IncidentType != domain.IncidentPageDown || payload.Event != "opened" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.Message != "rendered" {
		t.Fatalf("rendered message missing from payload: %+v", payload)
	}
}

func TestWebhookSenderRejectsNon2xx(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	sender := NewWebhookSender(config.WebhookNotifier{Enabled: true, URL: server.URL, TimeoutSec: 5})
	err := sender.Send(context.Background(), testNotification())
	if err == nil {
		t.Fatalf("expected status error")
	}
}

func TestEmailSenderMessageShape(t *testing.T) {
	t.Parallel()

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	sender := NewEmailSender(config.EmailNotifier{
		Enabled: true, Host: "smtp.example.com", Port: 587,
		From: "alerts@example.com", To: []string{"ops@example.com"},
	})
	sender.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	notification := testNotification()
	notification.Message = "docs is down"
	if err := sender.Send(context.Background(), notification); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotAddr != "smtp.example.com:587" || gotFrom != "alerts@example.com" {
		t.Fatalf("unexpected smtp target: %s %s", gotAddr, gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "ops@example.com" {
		t.Fatalf("unexpected recipients: %v", gotTo)
	}
	body := string(gotMsg)
	if !containsAll(body, "Subject: sitewatch opened: PAGE_DOWN on docs", "docs is down") {
		t.Fatalf("unexpected mail body:\n%s", body)
	}
}

func containsAll(haystack string, needles ...string) bool {
	for _, needle := range needles {
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}
