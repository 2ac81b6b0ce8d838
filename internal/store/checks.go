package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sitewatch/internal/domain"
)

const checkColumns = `id, site_id, timestamp, status, response_time, status_code, error_message, seo_score`

// SaveCheckResult appends one probe outcome to the history.
// Params: ctx request context; result probe outcome with SiteID set.
// Returns: stored result with assigned ID or error.
func (s *SQLite) SaveCheckResult(ctx context.Context, result domain.CheckResult) (domain.CheckResult, error) {
	var statusCode, seoScore sql.NullInt64
	if result.StatusCode != nil {
		statusCode = sql.NullInt64{Int64: int64(*result.StatusCode), Valid: true}
	}
	if result.SEOScore != nil {
		seoScore = sql.NullInt64{Int64: int64(*result.SEOScore), Valid: true}
	}

	inserted, err := s.db.ExecContext(ctx, `
        INSERT INTO check_results (site_id, timestamp, status, response_time, status_code, error_message, seo_score)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `,
		result.SiteID, result.Timestamp, result.Status, result.ResponseTime,
		statusCode, result.Error, seoScore,
	)
	if err != nil {
		return domain.CheckResult{}, fmt.Errorf("insert check result: %w", err)
	}

	result.ID, err = inserted.LastInsertId()
	if err != nil {
		return domain.CheckResult{}, fmt.Errorf("check result id: %w", err)
	}
	return result, nil
}

// RecentChecks loads the newest results across one user's sites.
// Params: ctx request context; userID owner identity; limit row cap.
// Returns: newest-first result list.
func (s *SQLite) RecentChecks(ctx context.Context, userID string, limit int) ([]domain.CheckResult, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT `+prefixedCheckColumns+`
        FROM check_results c
        JOIN sites s ON s.id = c.site_id
        WHERE s.user_id = ?
        ORDER BY c.timestamp DESC, c.id DESC
        LIMIT ?
    `, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent checks: %w", err)
	}
	defer rows.Close()
	return collectChecks(rows)
}

// SiteChecks loads the newest results for one site.
// Params: ctx request context; siteID target site; limit row cap.
// Returns: newest-first result list.
func (s *SQLite) SiteChecks(ctx context.Context, siteID int64, limit int) ([]domain.CheckResult, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT `+checkColumns+`
        FROM check_results
        WHERE site_id = ?
        ORDER BY timestamp DESC, id DESC
        LIMIT ?
    `, siteID, limit)
	if err != nil {
		return nil, fmt.Errorf("site checks: %w", err)
	}
	defer rows.Close()
	return collectChecks(rows)
}

// SiteChecksSince loads all results for one site inside a window.
// Params: ctx request context; siteID target site; since window start.
// Returns: oldest-first result list for aggregation.
func (s *SQLite) SiteChecksSince(ctx context.Context, siteID int64, since time.Time) ([]domain.CheckResult, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT `+checkColumns+`
        FROM check_results
        WHERE site_id = ? AND timestamp >= ?
        ORDER BY timestamp ASC, id ASC
    `, siteID, since)
	if err != nil {
		return nil, fmt.Errorf("site checks since: %w", err)
	}
	defer rows.Close()
	return collectChecks(rows)
}

// ChecksSince loads all results across one user's sites inside a window.
// Params: ctx request context; userID owner identity; since window start.
// Returns: oldest-first result list for aggregation.
func (s *SQLite) ChecksSince(ctx context.Context, userID string, since time.Time) ([]domain.CheckResult, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT `+prefixedCheckColumns+`
        FROM check_results c
        JOIN sites s ON s.id = c.site_id
        WHERE s.user_id = ? AND c.timestamp >= ?
        ORDER BY c.timestamp ASC, c.id ASC
    `, userID, since)
	if err != nil {
		return nil, fmt.Errorf("checks since: %w", err)
	}
	defer rows.Close()
	return collectChecks(rows)
}

const prefixedCheckColumns = `c.id, c.site_id, c.timestamp, c.status, c.response_time, c.status_code, c.error_message, c.seo_score`

// collectChecks drains a check result set.
// Params: rows open result set.
// Returns: decoded results or first scan error.
func collectChecks(rows *sql.Rows) ([]domain.CheckResult, error) {
	var results []domain.CheckResult
	for rows.Next() {
		var (
			result     domain.CheckResult
			statusCode sql.NullInt64
			seoScore   sql.NullInt64
		)
		err := rows.Scan(
			&result.ID, &result.SiteID, &result.Timestamp, &result.Status,
			&result.ResponseTime, &statusCode, &result.Error, &seoScore,
		)
		if err != nil {
			return nil, fmt.Errorf("scan check result: %w", err)
		}
		if statusCode.Valid {
			code := int(statusCode.Int64)
			result.StatusCode = &code
		}
		if seoScore.Valid {
			score := int(seoScore.Int64)
			result.SEOScore = &score
		}
		results = append(results, result)
	}
	return results, rows.Err()
}
