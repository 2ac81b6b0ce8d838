package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"sitewatch/internal/domain"
)

const ruleColumns = `id, user_id, site_id, type, enabled, channels, webhook_url, slack_channel`

// CreateRule inserts one notification rule.
// Params: ctx request context; rule validated routing entry.
// Returns: stored rule with assigned ID or error.
func (s *SQLite) CreateRule(ctx context.Context, rule domain.NotificationRule) (domain.NotificationRule, error) {
	channels, err := encodeChannels(rule.Channels)
	if err != nil {
		return domain.NotificationRule{}, err
	}

	inserted, err := s.db.ExecContext(ctx, `
        INSERT INTO notification_rules (user_id, site_id, type, enabled, channels, webhook_url, slack_channel)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `,
		rule.UserID, rule.SiteID, rule.Type, rule.Enabled, channels, rule.WebhookURL, rule.SlackChannel,
	)
	if err != nil {
		return domain.NotificationRule{}, fmt.Errorf("insert rule: %w", err)
	}

	rule.ID, err = inserted.LastInsertId()
	if err != nil {
		return domain.NotificationRule{}, fmt.Errorf("rule id: %w", err)
	}
	return rule, nil
}

// GetRule loads one rule by ID.
// Params: ctx request context; id rule identifier.
// Returns: rule row or ErrNotFound.
func (s *SQLite) GetRule(ctx context.Context, id int64) (domain.NotificationRule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM notification_rules WHERE id = ?`, id)
	return scanRule(row)
}

// ListRules loads all rules owned by one user.
// Params: ctx request context; userID owner identity.
// Returns: rule list ordered by ID.
func (s *SQLite) ListRules(ctx context.Context, userID string) ([]domain.NotificationRule, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT `+ruleColumns+` FROM notification_rules WHERE user_id = ? ORDER BY id
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()
	return collectRules(rows)
}

// ListEnabledRules loads every enabled rule across all users.
// Params: ctx request context.
// Returns: routing input for the notifier.
func (s *SQLite) ListEnabledRules(ctx context.Context) ([]domain.NotificationRule, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT `+ruleColumns+` FROM notification_rules WHERE enabled = 1 ORDER BY id
    `)
	if err != nil {
		return nil, fmt.Errorf("list enabled rules: %w", err)
	}
	defer rows.Close()
	return collectRules(rows)
}

// UpdateRule overwrites the mutable fields of one rule row.
// Params: ctx request context; rule carries ID and replacement fields.
// Returns: updated rule or ErrNotFound.
func (s *SQLite) UpdateRule(ctx context.Context, rule domain.NotificationRule) (domain.NotificationRule, error) {
	channels, err := encodeChannels(rule.Channels)
	if err != nil {
		return domain.NotificationRule{}, err
	}

	result, err := s.db.ExecContext(ctx, `
        UPDATE notification_rules SET site_id = ?, type = ?, enabled = ?,
            channels = ?, webhook_url = ?, slack_channel = ?
        WHERE id = ?
    `,
		rule.SiteID, rule.Type, rule.Enabled, channels, rule.WebhookURL, rule.SlackChannel, rule.ID,
	)
	if err != nil {
		return domain.NotificationRule{}, fmt.Errorf("update rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return domain.NotificationRule{}, fmt.Errorf("update rule: %w", err)
	}
	if affected == 0 {
		return domain.NotificationRule{}, ErrNotFound
	}
	return rule, nil
}

// DeleteRule removes one rule row.
// Params: ctx request context; id rule identifier.
// Returns: nil or ErrNotFound.
func (s *SQLite) DeleteRule(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notification_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// scanRule reads one rule row into the domain shape.
// Params: row scanner positioned at a rule row.
// Returns: decoded rule or ErrNotFound.
func scanRule(row rowScanner) (domain.NotificationRule, error) {
	var (
		rule     domain.NotificationRule
		channels string
	)
	err := row.Scan(
		&rule.ID, &rule.UserID, &rule.SiteID, &rule.Type, &rule.Enabled,
		&channels, &rule.WebhookURL, &rule.SlackChannel,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotificationRule{}, ErrNotFound
	}
	if err != nil {
		return domain.NotificationRule{}, fmt.Errorf("scan rule: %w", err)
	}
	if err := json.Unmarshal([]byte(channels), &rule.Channels); err != nil {
		return domain.NotificationRule{}, fmt.Errorf("decode channels: %w", err)
	}
	return rule, nil
}

// collectRules drains a rule result set.
// Params: rows open result set.
// Returns: decoded rules or first scan error.
func collectRules(rows *sql.Rows) ([]domain.NotificationRule, error) {
	var rules []domain.NotificationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// encodeChannels serializes the channel list for the text column.
// Params: channels list, must be non-empty after validation.
// Returns: JSON array text.
func encodeChannels(channels []domain.NotifyChannel) (string, error) {
	encoded, err := json.Marshal(channels)
	if err != nil {
		return "", fmt.Errorf("encode channels: %w", err)
	}
	return string(encoded), nil
}
