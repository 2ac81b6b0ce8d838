package templatefmt

import (
	"strings"
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		value any
		want  string
	}{
		{"seconds", 12 * time.Second, "12.0s"},
		{"minutes", 90 * time.Second, "1.5m"},
		{"hours", 2 * time.Hour, "2.0h"},
		{"negative", -30 * time.Second, "30.0s"},
		{"nil pointer", (*time.Duration)(nil), "0.0s"},
		{"wrong type", "not a duration", "0.0s"},
	}
	for _, tc := range cases {
		if got := FormatDuration(tc.value); got != tc.want {
			t.Fatalf("%s: FormatDuration = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestFormatTime(t *testing.T) {
	t.Parallel()

	stamp := time.Date(2026, 8, 15, 10, 30, 0, 0, time.FixedZone("CEST", 2*3600))
	if got := FormatTime(stamp); got != "2026-08-15T08:30:00Z" {
		t.Fatalf("FormatTime = %q", got)
	}
	if got := FormatTime(&stamp); got != "2026-08-15T08:30:00Z" {
		t.Fatalf("FormatTime pointer = %q", got)
	}
	if got := FormatTime((*time.Time)(nil)); got != "" {
		t.Fatalf("FormatTime nil = %q", got)
	}
}

func TestParseNotificationTemplateRejectsMissingKeys(t *testing.T) {
	t.Parallel()

	tmpl, err := ParseNotificationTemplate("test", `{{ .SiteName }} at {{ fmtTime .StartedAt }}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	var out strings.Builder
	data := map[string]any{
		"SiteName":  "shop",
		"StartedAt": time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC),
	}
	if err := tmpl.Execute(&out, data); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.String() != "shop at 2026-08-15T10:00:00Z" {
		t.Fatalf("rendered %q", out.String())
	}

	if err := tmpl.Execute(&strings.Builder{}, map[string]any{"SiteName": "shop"}); err == nil {
		t.Fatal("expected missing key error")
	}
}
