package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"sitewatch/internal/config"
	"sitewatch/internal/domain"
)

// ResultSink accepts decoded check results from remote workers.
// Params: one validated check result per call.
// Returns: error when the result cannot be processed and should be redelivered.
type ResultSink interface {
	Push(result domain.CheckResult) error
}

// NATSSubscriber consumes worker check results via a JetStream queue consumer.
// Params: NATS connection, queue subscription, and result sink.
// Returns: ingest lifecycle handle.
type NATSSubscriber struct {
	nc     *nats.Conn
	sub    *nats.Subscription
	logger *slog.Logger
}

// NewNATSSubscriber creates the durable queue consumer for result ingestion.
// Params: cfg ingest NATS section; sink result destination; logger.
// Returns: started subscriber or initialization error.
func NewNATSSubscriber(cfg config.NATSIngestConfig, sink ResultSink, logger *slog.Logger) (*NATSSubscriber, error) {
	nc, err := nats.Connect(strings.Join(cfg.URL, ","))
	if err != nil {
		return nil, fmt.Errorf("connect nats ingest: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init for ingest: %w", err)
	}

	subscriber := &NATSSubscriber{
		nc:     nc,
		logger: logger,
	}
	nackDelay := time.Duration(cfg.NackDelayMS) * time.Millisecond
	subOpts := []nats.SubOpt{
		nats.BindStream(cfg.Stream),
		nats.Durable(cfg.ConsumerName),
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.AckWait(time.Duration(cfg.AckWaitSec) * time.Second),
		nats.MaxDeliver(cfg.MaxDeliver),
		nats.MaxAckPending(cfg.MaxAckPending),
		nats.DeliverAll(),
	}
	sub, err := js.QueueSubscribe(cfg.Subject, cfg.DeliverGroup, func(message *nats.Msg) {
		result, decodeErr := DecodeCheckResult(message.Data)
		if decodeErr != nil {
			logger.Warn("nats ingest decode failed",
				"subject", message.Subject, "error", decodeErr.Error())
			// Malformed payloads never become valid, redelivery would loop.
			subscriber.ackMessage(message, "decode")
			return
		}
		if pushErr := sink.Push(result); pushErr != nil {
			logger.Error("nats ingest push failed",
				"subject", message.Subject, "site_id", result.SiteID, "error", pushErr.Error())
			subscriber.nackMessage(message, nackDelay)
			return
		}
		subscriber.ackMessage(message, "processed")
	}, subOpts...)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("queue subscribe %q/%q: %w", cfg.Subject, cfg.DeliverGroup, err)
	}
	subscriber.sub = sub
	return subscriber, nil
}

// ackMessage acknowledges a processed or invalid message.
// Params: message and short reason for diagnostics.
// Returns: nothing, ack failures are logged.
func (s *NATSSubscriber) ackMessage(message *nats.Msg, reason string) {
	if message == nil {
		return
	}
	if err := message.Ack(); err != nil {
		s.logger.Warn("nats ingest ack failed",
			"subject", message.Subject, "reason", reason, "error", err.Error())
	}
}

// nackMessage asks JetStream to redeliver the message.
// Params: message and optional redelivery delay.
// Returns: nothing, nack failures are logged.
func (s *NATSSubscriber) nackMessage(message *nats.Msg, delay time.Duration) {
	if message == nil {
		return
	}
	var err error
	if delay > 0 {
		err = message.NakWithDelay(delay)
	} else {
		err = message.Nak()
	}
	if err != nil {
		s.logger.Warn("nats ingest nack failed", "subject", message.Subject, "error", err.Error())
	}
}

// Close drains the subscription and closes the connection.
// Params: none.
// Returns: drain error if any.
func (s *NATSSubscriber) Close() error {
	if s.sub != nil {
		if err := s.sub.Drain(); err != nil {
			s.nc.Close()
			return err
		}
	}
	s.nc.Close()
	return nil
}

// DecodeCheckResult decodes and validates one worker submission.
// Params: raw JSON message payload.
// Returns: check result or validation error.
func DecodeCheckResult(payload []byte) (domain.CheckResult, error) {
	var result domain.CheckResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return domain.CheckResult{}, fmt.Errorf("decode check result: %w", err)
	}
	if result.SiteID <= 0 {
		return domain.CheckResult{}, errors.New("check result requires a positive siteId")
	}
	if !domain.ValidCheckStatus(result.Status) {
		return domain.CheckResult{}, fmt.Errorf("unknown check status %q", result.Status)
	}
	if result.ResponseTime < 0 {
		return domain.CheckResult{}, errors.New("responseTime must not be negative")
	}
	if result.Timestamp.IsZero() {
		return domain.CheckResult{}, errors.New("check result requires a timestamp")
	}
	return result, nil
}
