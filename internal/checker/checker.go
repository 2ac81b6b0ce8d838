package checker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"sitewatch/internal/clock"
	"sitewatch/internal/domain"
)

const (
	userAgent   = "sitewatch/1.0"
	maxBodySize = 1 << 20
)

// Checker performs HTTP probes against monitored sites.
// Params: shared HTTP client, SEO scorer, and clock.
// Returns: one CheckResult per probe, never an error.
type Checker struct {
	client *http.Client
	scorer Scorer
	clk    clock.Clock
}

// New creates a checker with a shared transport.
// Params: scorer computes SEO scores from response content; clk supplies timestamps.
// Returns: ready checker.
func New(scorer Scorer, clk clock.Clock) *Checker {
	return &Checker{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        32,
				MaxIdleConnsPerHost: 2,
			},
		},
		scorer: scorer,
		clk:    clk,
	}
}

// Probe performs one HTTP GET against the site URL and classifies the outcome.
// Params: ctx caller context; site carries URL, query params, and timeout.
// Returns: CheckResult with UP below 500, DOWN on 5xx or connection failure,
// TIMEOUT when the probe deadline elapses; the caller context error when the
// probe was interrupted by shutdown rather than by the site.
func (c *Checker) Probe(ctx context.Context, site domain.Site) (domain.CheckResult, error) {
	result := domain.CheckResult{
		SiteID:    site.ID,
		Timestamp: c.clk.Now(),
	}

	target, err := buildProbeURL(site)
	if err != nil {
		result.Status = domain.CheckStatusDown
		result.Error = err.Error()
		return result, nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, site.ProbeTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, target, nil)
	if err != nil {
		result.Status = domain.CheckStatusDown
		result.Error = err.Error()
		return result, nil
	}
	req.Header.Set("User-Agent", userAgent)

	start := c.clk.Now()
	resp, err := c.client.Do(req)
	elapsed := int(c.clk.Now().Sub(start).Milliseconds())
	result.ResponseTime = elapsed

	if err != nil {
		// A canceled caller context means shutdown, not a site failure.
		if ctx.Err() != nil {
			return domain.CheckResult{}, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(probeCtx.Err(), context.DeadlineExceeded) {
			result.Status = domain.CheckStatusTimeout
			result.Error = fmt.Sprintf("probe exceeded %s", site.ProbeTimeout())
			return result, nil
		}
		result.Status = domain.CheckStatusDown
		result.Error = err.Error()
		return result, nil
	}
	defer resp.Body.Close()

	code := resp.StatusCode
	result.StatusCode = &code
	if code >= http.StatusInternalServerError {
		result.Status = domain.CheckStatusDown
		result.Error = fmt.Sprintf("server returned %d", code)
	} else {
		result.Status = domain.CheckStatusUp
	}

	// SEO has no signal on a failing page, scoring is UP-only.
	if result.Status == domain.CheckStatusUp {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			body = nil
		}
		score := c.scorer.Score(code, resp.Header, body)
		result.SEOScore = &score
	}

	return result, nil
}

// buildProbeURL assembles the target URL with configured query parameters.
// Params: site with base URL, optional health endpoint path, and query params.
// Returns: final URL string or parse error.
func buildProbeURL(site domain.Site) (string, error) {
	parsed, err := url.Parse(site.URL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if site.HealthEndpoint != "" {
		parsed.Path = site.HealthEndpoint
	}

	if len(site.QueryParams) > 0 {
		query := parsed.Query()
		for _, param := range site.QueryParams {
			query.Set(param.Key, param.Value)
		}
		parsed.RawQuery = query.Encode()
	}
	return parsed.String(), nil
}
