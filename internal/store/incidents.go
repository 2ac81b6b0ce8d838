package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sitewatch/internal/domain"
)

const incidentColumns = `id, site_id, type, status, started_at, resolved_at, message`

// OpenIncident inserts one ACTIVE incident row.
// Params: ctx request context; incident with SiteID, Type, StartedAt, Message set.
// Returns: stored incident, or ErrActiveExists when one is already open for the pair.
func (s *SQLite) OpenIncident(ctx context.Context, incident domain.Incident) (domain.Incident, error) {
	incident.Status = domain.IncidentActive
	incident.ResolvedAt = nil

	inserted, err := s.db.ExecContext(ctx, `
        INSERT INTO incidents (site_id, type, status, started_at, resolved_at, message)
        VALUES (?, ?, ?, ?, NULL, ?)
    `,
		incident.SiteID, incident.Type, incident.Status, incident.StartedAt, incident.Message,
	)
	if isUniqueViolation(err) {
		return domain.Incident{}, ErrActiveExists
	}
	if err != nil {
		return domain.Incident{}, fmt.Errorf("insert incident: %w", err)
	}

	incident.ID, err = inserted.LastInsertId()
	if err != nil {
		return domain.Incident{}, fmt.Errorf("incident id: %w", err)
	}
	return incident, nil
}

// GetIncident loads one incident by ID.
// Params: ctx request context; id incident identifier.
// Returns: incident row or ErrNotFound.
func (s *SQLite) GetIncident(ctx context.Context, id int64) (domain.Incident, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE id = ?`, id)
	return scanIncident(row)
}

// ActiveIncident loads the open incident for one (site, type) pair.
// Params: ctx request context; siteID and incidentType pair key.
// Returns: the ACTIVE incident or ErrNotFound.
func (s *SQLite) ActiveIncident(ctx context.Context, siteID int64, incidentType domain.IncidentType) (domain.Incident, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT `+incidentColumns+` FROM incidents
        WHERE site_id = ? AND type = ? AND status = ?
    `, siteID, incidentType, domain.IncidentActive)
	return scanIncident(row)
}

// ResolveIncident transitions one ACTIVE incident to RESOLVED.
// Params: ctx request context; id incident identifier; resolvedAt close timestamp.
// Returns: resolved incident, or ErrNotFound when absent or already resolved.
func (s *SQLite) ResolveIncident(ctx context.Context, id int64, resolvedAt time.Time) (domain.Incident, error) {
	result, err := s.db.ExecContext(ctx, `
        UPDATE incidents SET status = ?, resolved_at = ?
        WHERE id = ? AND status = ?
    `, domain.IncidentResolved, resolvedAt, id, domain.IncidentActive)
	if err != nil {
		return domain.Incident{}, fmt.Errorf("resolve incident: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return domain.Incident{}, fmt.Errorf("resolve incident: %w", err)
	}
	if affected == 0 {
		return domain.Incident{}, ErrNotFound
	}
	return s.GetIncident(ctx, id)
}

// RefreshIncidentMessage replaces the message of one ACTIVE incident.
// Params: ctx request context; id incident identifier; message latest trigger detail.
// Returns: updated incident, or ErrNotFound when absent or already resolved.
func (s *SQLite) RefreshIncidentMessage(ctx context.Context, id int64, message string) (domain.Incident, error) {
	result, err := s.db.ExecContext(ctx, `
        UPDATE incidents SET message = ?
        WHERE id = ? AND status = ?
    `, message, id, domain.IncidentActive)
	if err != nil {
		return domain.Incident{}, fmt.Errorf("refresh incident: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return domain.Incident{}, fmt.Errorf("refresh incident: %w", err)
	}
	if affected == 0 {
		return domain.Incident{}, ErrNotFound
	}
	return s.GetIncident(ctx, id)
}

// ListActiveIncidents loads all open incidents across one user's sites.
// Params: ctx request context; userID owner identity.
// Returns: oldest-first open incidents.
func (s *SQLite) ListActiveIncidents(ctx context.Context, userID string) ([]domain.Incident, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT i.id, i.site_id, i.type, i.status, i.started_at, i.resolved_at, i.message
        FROM incidents i
        JOIN sites s ON s.id = i.site_id
        WHERE s.user_id = ? AND i.status = ?
        ORDER BY i.started_at ASC, i.id ASC
    `, userID, domain.IncidentActive)
	if err != nil {
		return nil, fmt.Errorf("list active incidents: %w", err)
	}
	defer rows.Close()

	var incidents []domain.Incident
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		incidents = append(incidents, incident)
	}
	return incidents, rows.Err()
}

// scanIncident reads one incident row into the domain shape.
// Params: row scanner positioned at an incident row.
// Returns: decoded incident or ErrNotFound.
func scanIncident(row rowScanner) (domain.Incident, error) {
	var (
		incident   domain.Incident
		resolvedAt sql.NullTime
	)
	err := row.Scan(
		&incident.ID, &incident.SiteID, &incident.Type, &incident.Status,
		&incident.StartedAt, &resolvedAt, &incident.Message,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Incident{}, ErrNotFound
	}
	if err != nil {
		return domain.Incident{}, fmt.Errorf("scan incident: %w", err)
	}
	if resolvedAt.Valid {
		ts := resolvedAt.Time
		incident.ResolvedAt = &ts
	}
	return incident, nil
}
