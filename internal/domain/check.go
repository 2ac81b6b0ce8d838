package domain

import "time"

// CheckStatus classifies one probe outcome.
// Params: UP/DOWN/TIMEOUT status constants.
// Returns: classification used by the evaluator and stats.
type CheckStatus string

const (
	// CheckStatusUp indicates a response arrived with HTTP status below 500.
	CheckStatusUp CheckStatus = "UP"
	// CheckStatusDown indicates a connection failure or HTTP status 500 and above.
	CheckStatusDown CheckStatus = "DOWN"
	// CheckStatusTimeout indicates the probe deadline elapsed without a response.
	CheckStatusTimeout CheckStatus = "TIMEOUT"
)

// CheckResult is the immutable outcome of one probe against a site.
// Params: owning site, timing, classification, and optional probe detail.
// Returns: one append-only history row per scheduled probe.
type CheckResult struct {
	ID           int64       `json:"id"`
	SiteID       int64       `json:"siteId"`
	Timestamp    time.Time   `json:"timestamp"`
	Status       CheckStatus `json:"status"`
	ResponseTime int         `json:"responseTime"`
	StatusCode   *int        `json:"statusCode,omitempty"`
	Error        string      `json:"error,omitempty"`
	SEOScore     *int        `json:"seoScore,omitempty"`
}

// ValidCheckStatus reports whether the status value is one of the known constants.
// Params: candidate status from a remote worker submission.
// Returns: true for UP/DOWN/TIMEOUT.
func ValidCheckStatus(status CheckStatus) bool {
	switch status {
	case CheckStatusUp, CheckStatusDown, CheckStatusTimeout:
		return true
	default:
		return false
	}
}
