package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	// MinCheckIntervalSec is the lowest allowed probe interval.
	MinCheckIntervalSec = 60
	// MaxCheckIntervalSec is the highest allowed probe interval.
	MaxCheckIntervalSec = 86400
	// MinTimeoutSec is the lowest allowed probe timeout.
	MinTimeoutSec = 5
	// MaxTimeoutSec is the highest allowed probe timeout.
	MaxTimeoutSec = 30
	// MaxQueryParams limits query parameters attached to one probe URL.
	MaxQueryParams = 3

	defaultCheckIntervalSec = 300
	defaultTimeoutSec       = 10
	defaultUptimePercent    = 99
	defaultMaxLatencyMS     = 2000
	defaultSEOScore         = 80
)

// ValidationError reports one rejected configuration field.
// Params: field path and human-readable reason.
// Returns: configuration-time error surfaced to API callers.
type ValidationError struct {
	Field  string
	Reason string
}

// Error formats the validation failure.
// Params: none.
// Returns: "field: reason" message.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Thresholds holds per-site incident thresholds.
// Params: uptime percentage, latency ceiling, and SEO floor.
// Returns: limits evaluated against each check result.
type Thresholds struct {
	UptimePercent int `json:"uptimePercent"`
	MaxLatency    int `json:"maxLatency"`
	SEOScore      int `json:"seoScore"`
}

// QueryParam is one key/value pair appended to the probe URL.
// Params: non-empty key and value.
// Returns: query string fragment for the checker.
type QueryParam struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Site is one monitored URL with its check configuration.
// Params: owner identity, probe target, timing, and thresholds.
// Returns: scheduling and evaluation input for one target.
type Site struct {
	ID             int64        `json:"id"`
	UserID         string       `json:"userId"`
	Name           string       `json:"name"`
	URL            string       `json:"url"`
	CheckInterval  int          `json:"checkInterval"`
	Timeout        int          `json:"timeout"`
	Thresholds     Thresholds   `json:"thresholds"`
	QueryParams    []QueryParam `json:"queryParams,omitempty"`
	HealthEndpoint string       `json:"healthEndpoint,omitempty"`
	Enabled        bool         `json:"enabled"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// Interval returns the check interval as a duration.
// Params: none.
// Returns: wall-clock period between scheduled probes.
func (s Site) Interval() time.Duration {
	return time.Duration(s.CheckInterval) * time.Second
}

// ProbeTimeout returns the per-probe timeout as a duration.
// Params: none.
// Returns: upper bound for one HTTP round trip.
func (s Site) ProbeTimeout() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

// ApplySiteDefaults fills zero-valued optional site fields in place.
// Params: mutable site pointer from a create request.
// Returns: site with interval/timeout/threshold defaults applied.
func ApplySiteDefaults(site *Site) {
	if site.CheckInterval == 0 {
		site.CheckInterval = defaultCheckIntervalSec
	}
	if site.Timeout == 0 {
		site.Timeout = defaultTimeoutSec
	}
	if site.Thresholds == (Thresholds{}) {
		site.Thresholds = Thresholds{
			UptimePercent: defaultUptimePercent,
			MaxLatency:    defaultMaxLatencyMS,
			SEOScore:      defaultSEOScore,
		}
	}
}

// ValidateSite checks site fields against configuration bounds.
// Params: candidate site after defaults were applied.
// Returns: first ValidationError or nil.
func ValidateSite(site Site) error {
	if strings.TrimSpace(site.Name) == "" {
		return ValidationError{Field: "name", Reason: "site name is required"}
	}
	if len(site.Name) > 255 {
		return ValidationError{Field: "name", Reason: "site name must be at most 255 characters"}
	}
	url := strings.TrimSpace(site.URL)
	if url == "" {
		return ValidationError{Field: "url", Reason: "url is required"}
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return ValidationError{Field: "url", Reason: "url must start with http:// or https://"}
	}
	if site.CheckInterval < MinCheckIntervalSec {
		return ValidationError{Field: "checkInterval", Reason: fmt.Sprintf("check interval must be at least %d seconds", MinCheckIntervalSec)}
	}
	if site.CheckInterval > MaxCheckIntervalSec {
		return ValidationError{Field: "checkInterval", Reason: fmt.Sprintf("check interval must be at most %d seconds", MaxCheckIntervalSec)}
	}
	if site.Timeout < MinTimeoutSec {
		return ValidationError{Field: "timeout", Reason: fmt.Sprintf("timeout must be at least %d seconds", MinTimeoutSec)}
	}
	if site.Timeout > MaxTimeoutSec {
		return ValidationError{Field: "timeout", Reason: fmt.Sprintf("timeout must be at most %d seconds", MaxTimeoutSec)}
	}
	if site.Thresholds.UptimePercent < 0 || site.Thresholds.UptimePercent > 100 {
		return ValidationError{Field: "thresholds.uptimePercent", Reason: "uptime percent must be between 0 and 100"}
	}
	if site.Thresholds.MaxLatency < 100 {
		return ValidationError{Field: "thresholds.maxLatency", Reason: "max latency must be at least 100ms"}
	}
	if site.Thresholds.SEOScore < 0 || site.Thresholds.SEOScore > 100 {
		return ValidationError{Field: "thresholds.seoScore", Reason: "seo score must be between 0 and 100"}
	}
	if len(site.QueryParams) > MaxQueryParams {
		return ValidationError{Field: "queryParams", Reason: fmt.Sprintf("maximum %d query parameters allowed", MaxQueryParams)}
	}
	for i, param := range site.QueryParams {
		if strings.TrimSpace(param.Key) == "" {
			return ValidationError{Field: fmt.Sprintf("queryParams[%d].key", i), Reason: "parameter key is required"}
		}
		if param.Value == "" {
			return ValidationError{Field: fmt.Sprintf("queryParams[%d].value", i), Reason: "parameter value is required"}
		}
	}
	if len(site.HealthEndpoint) > 255 {
		return ValidationError{Field: "healthEndpoint", Reason: "health endpoint must be at most 255 characters"}
	}
	return nil
}
