package checker

import (
	"bytes"
	"net/http"
	"regexp"
)

// Scorer computes an SEO score from one probe response.
// Params: status code, headers, and the capped response body.
// Returns: score between 0 and 100.
type Scorer interface {
	Score(statusCode int, header http.Header, body []byte) int
}

var (
	titlePattern = regexp.MustCompile(`(?is)<title[^>]*>\s*\S`)
	metaPattern  = regexp.MustCompile(`(?is)<meta[^>]+name\s*=\s*["']description["']`)
	h1Pattern    = regexp.MustCompile(`(?is)<h1[\s>]`)
)

// HeuristicScorer scores pages with fixed deductions per missing signal.
// Params: none, stateless.
// Returns: deterministic scores from response shape.
type HeuristicScorer struct{}

// Score applies the deduction table to one response.
// Params: statusCode HTTP status; header response headers; body capped HTML.
// Returns: 100 minus deductions, clamped to [0, 100].
// Deductions: 50 for status 400+, 10 for missing Content-Type, 20 for missing
// title, 15 for missing meta description, 10 for missing h1.
func (HeuristicScorer) Score(statusCode int, header http.Header, body []byte) int {
	score := 100

	if statusCode >= http.StatusBadRequest {
		score -= 50
	}
	if header.Get("Content-Type") == "" {
		score -= 10
	}

	lowered := bytes.ToLower(body)
	if !titlePattern.Match(lowered) {
		score -= 20
	}
	if !metaPattern.Match(lowered) {
		score -= 15
	}
	if !h1Pattern.Match(lowered) {
		score -= 10
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
