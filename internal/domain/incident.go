package domain

import "time"

// IncidentType names one monitored threshold category.
// Params: threshold category constants.
// Returns: independent state-machine key per site.
type IncidentType string

const (
	// IncidentPageDown tracks DOWN/TIMEOUT results on the main URL.
	IncidentPageDown IncidentType = "PAGE_DOWN"
	// IncidentHealthFail tracks failing probes against a configured health endpoint.
	IncidentHealthFail IncidentType = "HEALTH_FAIL"
	// IncidentSlow3G tracks response times beyond twice the latency ceiling.
	IncidentSlow3G IncidentType = "3G_SLOW"
	// IncidentSlow4G tracks response times beyond the latency ceiling.
	IncidentSlow4G IncidentType = "4G_SLOW"
	// IncidentSEODrop tracks SEO scores below the configured floor.
	IncidentSEODrop IncidentType = "SEO_DROP"
)

// IncidentStatus is the lifecycle state of one incident record.
// Params: ACTIVE/RESOLVED constants.
// Returns: ledger lifecycle marker.
type IncidentStatus string

const (
	// IncidentActive marks an open incident.
	IncidentActive IncidentStatus = "ACTIVE"
	// IncidentResolved marks a closed incident.
	IncidentResolved IncidentStatus = "RESOLVED"
)

// Incident is one tracked violation period for a (site, type) pair.
// Params: site binding, type, lifecycle timestamps, and message.
// Returns: ledger record; at most one ACTIVE per (siteId, type).
type Incident struct {
	ID         int64          `json:"id"`
	SiteID     int64          `json:"siteId"`
	Type       IncidentType   `json:"type"`
	Status     IncidentStatus `json:"status"`
	StartedAt  time.Time      `json:"startedAt"`
	ResolvedAt *time.Time     `json:"resolvedAt,omitempty"`
	Message    string         `json:"message"`
}

// IncidentTypes lists all threshold categories in evaluation order.
// Params: none.
// Returns: stable type ordering for deterministic transitions.
func IncidentTypes() []IncidentType {
	return []IncidentType{
		IncidentPageDown,
		IncidentHealthFail,
		IncidentSlow3G,
		IncidentSlow4G,
		IncidentSEODrop,
	}
}

// ValidIncidentType reports whether the type value is one of the known constants.
// Params: candidate type from a rule definition.
// Returns: true for known threshold categories.
func ValidIncidentType(incidentType IncidentType) bool {
	for _, known := range IncidentTypes() {
		if incidentType == known {
			return true
		}
	}
	return false
}

// TransitionKind distinguishes incident open from incident resolve.
// Params: opened/resolved constants.
// Returns: notifier dispatch discriminator.
type TransitionKind string

const (
	// TransitionOpened signals a NORMAL to ACTIVE change.
	TransitionOpened TransitionKind = "opened"
	// TransitionResolved signals an ACTIVE to NORMAL change.
	TransitionResolved TransitionKind = "resolved"
)

// Transition is one evaluator state change carrying its incident record.
// Params: change kind and the incident after the change was applied.
// Returns: notifier input decoupled from ledger storage.
type Transition struct {
	Kind     TransitionKind
	Incident Incident
}
