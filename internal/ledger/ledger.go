package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sitewatch/internal/clock"
	"sitewatch/internal/domain"
	"sitewatch/internal/store"
)

var (
	// ErrActiveExists indicates an incident is already open for the (site, type) pair.
	ErrActiveExists = errors.New("active incident exists")
	// ErrNotActive indicates no open incident for the pair or ID.
	ErrNotActive = errors.New("incident not active")
)

// Ledger serializes incident lifecycle changes per (site, type) pair.
// Params: backing store and clock.
// Returns: race-free open/resolve semantics with at most one ACTIVE per pair.
type Ledger struct {
	store store.Store
	clk   clock.Clock

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a ledger over one store.
// Params: st persistence backend; clk supplies lifecycle timestamps.
// Returns: ready ledger.
func New(st store.Store, clk clock.Clock) *Ledger {
	return &Ledger{
		store: st,
		clk:   clk,
		locks: make(map[string]*sync.Mutex),
	}
}

// pairLock returns the mutex guarding one (site, type) pair.
// Params: siteID and incidentType pair key.
// Returns: shared mutex, created on first use.
func (l *Ledger) pairLock(siteID int64, incidentType domain.IncidentType) *sync.Mutex {
	key := fmt.Sprintf("%d/%s", siteID, incidentType)

	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[key] = lock
	}
	return lock
}

// Open opens an incident for the pair unless one is already active.
// Params: ctx request context; siteID and incidentType pair key; message incident detail; at the triggering result timestamp.
// Returns: new ACTIVE incident started at the result instant, or ErrActiveExists.
func (l *Ledger) Open(ctx context.Context, siteID int64, incidentType domain.IncidentType, message string, at time.Time) (domain.Incident, error) {
	lock := l.pairLock(siteID, incidentType)
	lock.Lock()
	defer lock.Unlock()

	if _, err := l.store.ActiveIncident(ctx, siteID, incidentType); err == nil {
		return domain.Incident{}, ErrActiveExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.Incident{}, fmt.Errorf("check active incident: %w", err)
	}

	incident, err := l.store.OpenIncident(ctx, domain.Incident{
		SiteID:    siteID,
		Type:      incidentType,
		StartedAt: at,
		Message:   message,
	})
	if errors.Is(err, store.ErrActiveExists) {
		return domain.Incident{}, ErrActiveExists
	}
	if err != nil {
		return domain.Incident{}, fmt.Errorf("open incident: %w", err)
	}
	return incident, nil
}

// Refresh replaces the message of the active incident for the pair.
// Params: ctx request context; siteID and incidentType pair key; message latest trigger detail.
// Returns: updated incident, or ErrNotActive when none is open.
func (l *Ledger) Refresh(ctx context.Context, siteID int64, incidentType domain.IncidentType, message string) (domain.Incident, error) {
	lock := l.pairLock(siteID, incidentType)
	lock.Lock()
	defer lock.Unlock()

	active, err := l.store.ActiveIncident(ctx, siteID, incidentType)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Incident{}, ErrNotActive
	}
	if err != nil {
		return domain.Incident{}, fmt.Errorf("load active incident: %w", err)
	}

	updated, err := l.store.RefreshIncidentMessage(ctx, active.ID, message)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Incident{}, ErrNotActive
	}
	if err != nil {
		return domain.Incident{}, fmt.Errorf("refresh incident: %w", err)
	}
	return updated, nil
}

// Resolve closes the active incident for the pair.
// Params: ctx request context; siteID and incidentType pair key; at the triggering result timestamp.
// Returns: resolved incident closed at the result instant, or ErrNotActive when none is open.
func (l *Ledger) Resolve(ctx context.Context, siteID int64, incidentType domain.IncidentType, at time.Time) (domain.Incident, error) {
	lock := l.pairLock(siteID, incidentType)
	lock.Lock()
	defer lock.Unlock()

	active, err := l.store.ActiveIncident(ctx, siteID, incidentType)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Incident{}, ErrNotActive
	}
	if err != nil {
		return domain.Incident{}, fmt.Errorf("load active incident: %w", err)
	}

	resolved, err := l.store.ResolveIncident(ctx, active.ID, at)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Incident{}, ErrNotActive
	}
	if err != nil {
		return domain.Incident{}, fmt.Errorf("resolve incident: %w", err)
	}
	return resolved, nil
}

// ResolveByID closes one incident by its identifier.
// Params: ctx request context; id incident identifier.
// Returns: resolved incident, ErrNotActive when already resolved, or store.ErrNotFound.
func (l *Ledger) ResolveByID(ctx context.Context, id int64) (domain.Incident, error) {
	incident, err := l.store.GetIncident(ctx, id)
	if err != nil {
		return domain.Incident{}, err
	}

	lock := l.pairLock(incident.SiteID, incident.Type)
	lock.Lock()
	defer lock.Unlock()

	resolved, err := l.store.ResolveIncident(ctx, id, l.clk.Now())
	if errors.Is(err, store.ErrNotFound) {
		return domain.Incident{}, ErrNotActive
	}
	if err != nil {
		return domain.Incident{}, fmt.Errorf("resolve incident: %w", err)
	}
	return resolved, nil
}

// Active reports the open incident for the pair, if any.
// Params: ctx request context; siteID and incidentType pair key.
// Returns: incident and true when one is open.
func (l *Ledger) Active(ctx context.Context, siteID int64, incidentType domain.IncidentType) (domain.Incident, bool, error) {
	incident, err := l.store.ActiveIncident(ctx, siteID, incidentType)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Incident{}, false, nil
	}
	if err != nil {
		return domain.Incident{}, false, err
	}
	return incident, true, nil
}

// ListActive lists all open incidents across one user's sites.
// Params: ctx request context; userID owner identity.
// Returns: open incidents oldest first.
func (l *Ledger) ListActive(ctx context.Context, userID string) ([]domain.Incident, error) {
	return l.store.ListActiveIncidents(ctx, userID)
}
