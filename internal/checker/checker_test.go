package checker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sitewatch/internal/clock"
	"sitewatch/internal/domain"
)

const fullPage = `<!DOCTYPE html>
<html>
<head>
<title>Docs</title>
<meta name="description" content="documentation portal">
</head>
<body><h1>Docs</h1></body>
</html>`

func probeSite(url string) domain.Site {
	return domain.Site{
		ID:            1,
		URL:           url,
		CheckInterval: 300,
		Timeout:       1,
		Thresholds:    domain.Thresholds{UptimePercent: 99, MaxLatency: 2000, SEOScore: 80},
	}
}

func mustProbe(t *testing.T, site domain.Site) domain.CheckResult {
	t.Helper()
	result, err := New(HeuristicScorer{}, clock.RealClock{}).Probe(context.Background(), site)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	return result
}

func TestProbeUp(t *testing.T) {
	t.Parallel()

	var gotUA, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(fullPage))
	}))
	defer server.Close()

	site := probeSite(server.URL)
	site.QueryParams = []domain.QueryParam{{Key: "region", Value: "eu"}}

	result := mustProbe(t, site)
	if result.Status != domain.CheckStatusUp {
		t.Fatalf("expected UP, got %+v", result)
	}
	if result.StatusCode == nil || *result.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status code: %+v", result.StatusCode)
	}
	if result.SEOScore == nil || *result.SEOScore != 100 {
		t.Fatalf("expected full score for complete page, got %+v", result.SEOScore)
	}
	if gotUA != "sitewatch/1.0" {
		t.Fatalf("unexpected user agent %q", gotUA)
	}
	if gotQuery != "region=eu" {
		t.Fatalf("query params not applied: %q", gotQuery)
	}
}

func TestProbeDownOnServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	result := mustProbe(t, probeSite(server.URL))
	if result.Status != domain.CheckStatusDown {
		t.Fatalf("expected DOWN for 503, got %+v", result)
	}
	if result.StatusCode == nil || *result.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status code: %+v", result.StatusCode)
	}
	if result.Error == "" {
		t.Fatalf("expected error message for 5xx")
	}
	if result.SEOScore != nil {
		t.Fatalf("failing page must not be scored, got %+v", result.SEOScore)
	}
}

func TestProbeHealthEndpointReplacesPath(t *testing.T) {
	t.Parallel()

	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	site := probeSite(server.URL + "/landing")
	site.HealthEndpoint = "/actuator/health"
	result := mustProbe(t, site)
	if result.Status != domain.CheckStatusUp {
		t.Fatalf("expected UP, got %+v", result)
	}
	if gotPath != "/actuator/health" {
		t.Fatalf("health endpoint not probed, got path %q", gotPath)
	}
}

func TestProbeDownOnConnectionFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	result := mustProbe(t, probeSite(server.URL))
	if result.Status != domain.CheckStatusDown {
		t.Fatalf("expected DOWN for refused connection, got %+v", result)
	}
	if result.Error == "" {
		t.Fatalf("expected connection error message")
	}
}

func TestProbeTimeout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	result := mustProbe(t, probeSite(server.URL))
	if result.Status != domain.CheckStatusTimeout {
		t.Fatalf("expected TIMEOUT, got %+v", result)
	}
	if result.StatusCode != nil {
		t.Fatalf("timeout must carry no status code")
	}
	if result.ResponseTime < 900 {
		t.Fatalf("expected elapsed near the deadline, got %dms", result.ResponseTime)
	}
}

func TestProbeShutdownIsNotTimeout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := New(HeuristicScorer{}, clock.RealClock{}).Probe(ctx, probeSite(server.URL))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled for interrupted probe, got %v", err)
	}
}

func TestHeuristicScorerDeductions(t *testing.T) {
	t.Parallel()

	htmlHeader := http.Header{"Content-Type": []string{"text/html"}}
	cases := []struct {
		name   string
		status int
		header http.Header
		body   string
		want   int
	}{
		{"complete page", 200, htmlHeader, fullPage, 100},
		{"client error page", 404, htmlHeader, fullPage, 50},
		{"missing content type", 200, http.Header{}, fullPage, 90},
		{"missing title", 200, htmlHeader, `<html><head><meta name="description" content="x"></head><body><h1>x</h1></body></html>`, 80},
		{"missing description", 200, htmlHeader, `<html><head><title>x</title></head><body><h1>x</h1></body></html>`, 85},
		{"missing h1", 200, htmlHeader, `<html><head><title>x</title><meta name="description" content="x"></head><body></body></html>`, 90},
		{"empty body", 200, htmlHeader, "", 55},
		{"everything wrong", 500, http.Header{}, "", 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := HeuristicScorer{}.Score(tc.status, tc.header, []byte(tc.body))
			if got != tc.want {
				t.Fatalf("expected score %d, got %d", tc.want, got)
			}
		})
	}
}
