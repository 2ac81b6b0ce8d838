package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"sitewatch/internal/domain"
)

const siteColumns = `id, user_id, name, url, check_interval, timeout,
	uptime_percent, max_latency, seo_score, query_params, health_endpoint,
	enabled, created_at, updated_at`

// CreateSite inserts a new site row.
// Params: ctx request context; site with defaults applied and validated.
// Returns: stored site with assigned ID or error.
func (s *SQLite) CreateSite(ctx context.Context, site domain.Site) (domain.Site, error) {
	params, err := encodeQueryParams(site.QueryParams)
	if err != nil {
		return domain.Site{}, err
	}

	result, err := s.db.ExecContext(ctx, `
        INSERT INTO sites (user_id, name, url, check_interval, timeout,
            uptime_percent, max_latency, seo_score, query_params, health_endpoint,
            enabled, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `,
		site.UserID, site.Name, site.URL, site.CheckInterval, site.Timeout,
		site.Thresholds.UptimePercent, site.Thresholds.MaxLatency, site.Thresholds.SEOScore,
		params, site.HealthEndpoint, site.Enabled, site.CreatedAt, site.UpdatedAt,
	)
	if err != nil {
		return domain.Site{}, fmt.Errorf("insert site: %w", err)
	}

	site.ID, err = result.LastInsertId()
	if err != nil {
		return domain.Site{}, fmt.Errorf("site id: %w", err)
	}
	return site, nil
}

// GetSite loads one site by ID.
// Params: ctx request context; id site identifier.
// Returns: site row or ErrNotFound.
func (s *SQLite) GetSite(ctx context.Context, id int64) (domain.Site, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+siteColumns+` FROM sites WHERE id = ?`, id)
	return scanSite(row)
}

// ListSites loads all sites owned by one user, newest first.
// Params: ctx request context; userID owner identity.
// Returns: site list or query error.
func (s *SQLite) ListSites(ctx context.Context, userID string) ([]domain.Site, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT `+siteColumns+` FROM sites WHERE user_id = ? ORDER BY created_at DESC, id DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()
	return collectSites(rows)
}

// ListEnabledSites loads every enabled site across all users.
// Params: ctx request context.
// Returns: sites the scheduler must register at boot.
func (s *SQLite) ListEnabledSites(ctx context.Context) ([]domain.Site, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT `+siteColumns+` FROM sites WHERE enabled = 1 ORDER BY id
    `)
	if err != nil {
		return nil, fmt.Errorf("list enabled sites: %w", err)
	}
	defer rows.Close()
	return collectSites(rows)
}

// CountSites counts sites owned by one user.
// Params: ctx request context; userID owner identity.
// Returns: site count or query error.
func (s *SQLite) CountSites(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sites WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count sites: %w", err)
	}
	return count, nil
}

// UpdateSite overwrites the mutable fields of one site row.
// Params: ctx request context; site carries ID and replacement fields.
// Returns: updated site or ErrNotFound.
func (s *SQLite) UpdateSite(ctx context.Context, site domain.Site) (domain.Site, error) {
	params, err := encodeQueryParams(site.QueryParams)
	if err != nil {
		return domain.Site{}, err
	}

	result, err := s.db.ExecContext(ctx, `
        UPDATE sites SET name = ?, url = ?, check_interval = ?, timeout = ?,
            uptime_percent = ?, max_latency = ?, seo_score = ?, query_params = ?,
            health_endpoint = ?, enabled = ?, updated_at = ?
        WHERE id = ?
    `,
		site.Name, site.URL, site.CheckInterval, site.Timeout,
		site.Thresholds.UptimePercent, site.Thresholds.MaxLatency, site.Thresholds.SEOScore,
		params, site.HealthEndpoint, site.Enabled, site.UpdatedAt, site.ID,
	)
	if err != nil {
		return domain.Site{}, fmt.Errorf("update site: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return domain.Site{}, fmt.Errorf("update site: %w", err)
	}
	if affected == 0 {
		return domain.Site{}, ErrNotFound
	}
	return site, nil
}

// DeleteSite removes one site and, via cascade, its checks and incidents.
// Params: ctx request context; id site identifier.
// Returns: nil or ErrNotFound.
func (s *SQLite) DeleteSite(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sites WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete site: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete site: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanSite reads one site row into the domain shape.
// Params: row scanner positioned at a site row.
// Returns: decoded site or ErrNotFound.
func scanSite(row rowScanner) (domain.Site, error) {
	var (
		site   domain.Site
		params string
	)
	err := row.Scan(
		&site.ID, &site.UserID, &site.Name, &site.URL, &site.CheckInterval, &site.Timeout,
		&site.Thresholds.UptimePercent, &site.Thresholds.MaxLatency, &site.Thresholds.SEOScore,
		&params, &site.HealthEndpoint, &site.Enabled, &site.CreatedAt, &site.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Site{}, ErrNotFound
	}
	if err != nil {
		return domain.Site{}, fmt.Errorf("scan site: %w", err)
	}

	if params != "" && params != "[]" {
		if err := json.Unmarshal([]byte(params), &site.QueryParams); err != nil {
			return domain.Site{}, fmt.Errorf("decode query params: %w", err)
		}
	}
	return site, nil
}

// collectSites drains a site result set.
// Params: rows open result set.
// Returns: decoded sites or first scan error.
func collectSites(rows *sql.Rows) ([]domain.Site, error) {
	var sites []domain.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

// encodeQueryParams serializes query params for the text column.
// Params: params list, may be nil.
// Returns: JSON array text.
func encodeQueryParams(params []domain.QueryParam) (string, error) {
	if len(params) == 0 {
		return "[]", nil
	}
	encoded, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encode query params: %w", err)
	}
	return string(encoded), nil
}
