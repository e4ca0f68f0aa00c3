package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/pageprobe/internal/database"
	"github.com/nao1215/pageprobe/internal/model"
)

func TestNewHistoryCmd(t *testing.T) {
	t.Parallel()

	cmd := NewHistoryCmd()

	if cmd.Use != "history [url]" {
		t.Errorf("unexpected Use: got %q", cmd.Use)
	}

	flagsWithShort := map[string]string{
		"list":        "l",
		"with-run-id": "i",
		"since":       "s",
		"requests":    "r",
		"json":        "j",
		"markdown":    "m",
	}
	for flag, shorthand := range flagsWithShort {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			t.Errorf("expected flag %q to exist", flag)
			continue
		}
		if f.Shorthand != shorthand {
			t.Errorf("flag %q: expected shorthand %q, got %q", flag, shorthand, f.Shorthand)
		}
	}
	for _, flag := range []string{"delete", "db-dir"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("expected flag %q to exist", flag)
		}
	}
}

// seedHistory stores two runs of https://example.com and one run of
// https://go.dev, and returns the database directory and the run IDs of
// example.com, oldest first.
func seedHistory(t *testing.T) (string, []int64) {
	t.Helper()

	dir := t.TempDir()
	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	first := model.NewProbeReport("https://example.com")
	first.DateProbed = base
	first.StatusCode = 200
	first.Title = "Example Domain"
	first.Cookies = []model.Cookie{{Name: "sid"}, {Name: "theme"}}
	first.Viewport = &model.Viewport{Width: 1200, Height: 800, DeviceScaleFactor: 1}
	first.Screenshot = &model.Screenshot{Path: "/tmp/a.png", SHA3: "aaaaaaaaaaaaaaaa"}
	first.Requests = []model.Request{
		{URL: "https://example.com/", Method: "GET", ResourceType: "Document", StatusCode: 200},
		{URL: "https://example.com/app.js", Method: "GET", ResourceType: "Script", Failed: true, ErrorText: "net::ERR_FAILED"},
	}
	first.AddFinding(model.NewFinding("cookie_missing_secure", "Cookie without Secure", "sid", "https://example.com"))

	second := model.NewProbeReport("https://example.com")
	second.DateProbed = base.Add(48 * time.Hour)
	second.StatusCode = 200
	second.Title = "Example Domain v2"
	second.Cookies = []model.Cookie{{Name: "sid"}, {Name: "consent"}}
	second.Viewport = &model.Viewport{Width: 1200, Height: 800, DeviceScaleFactor: 1}
	second.Screenshot = &model.Screenshot{Path: "/tmp/b.png", SHA3: "bbbbbbbbbbbbbbbb"}
	second.Requests = []model.Request{{URL: "https://example.com/", Method: "GET", ResourceType: "Document", StatusCode: 200}}

	other := model.NewProbeReport("https://go.dev")
	other.DateProbed = base
	other.Title = "The Go Programming Language"

	var ids []int64
	for _, r := range []*model.ProbeReport{first, second, other} {
		id, err := db.SaveProbeReport(ctx, r)
		if err != nil {
			t.Fatalf("failed to save report: %v", err)
		}
		ids = append(ids, id)
	}
	return dir, ids[:2]
}

func runHistory(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	cmd := NewHistoryCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestHistoryCmd(t *testing.T) {
	t.Parallel()

	dir, ids := seedHistory(t)

	t.Run("lists probed URLs", func(t *testing.T) {
		t.Parallel()

		out, err := runHistory(t, "--db-dir", dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"Probed URLs (2)", "https://example.com", "https://go.dev"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, out)
			}
		}
	})

	t.Run("lists runs of a URL", func(t *testing.T) {
		t.Parallel()

		out, err := runHistory(t, "--db-dir", dir, "--list", "https://example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"2 runs", "Example Domain v2", "aaaaaaaaaaaa", "L:1", noFindingsMessage} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, out)
			}
		}
	})

	t.Run("compares the latest two runs", func(t *testing.T) {
		t.Parallel()

		out, err := runHistory(t, "--db-dir", dir, "https://example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{
			"Probe Comparison: https://example.com",
			"IMPROVED",
			"Example Domain -> Example Domain v2",
			"[+] cookie consent",
			"[-] cookie theme",
			"Resolved Findings (1)",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, out)
			}
		}
	})

	t.Run("compares as JSON with a given run", func(t *testing.T) {
		t.Parallel()

		out, err := runHistory(t, "--db-dir", dir, "--json", "--with-run-id", itoa(ids[0]), "https://example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got ComparisonResult
		if err := json.Unmarshal([]byte(out), &got); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, out)
		}
		if !got.ScreenshotChanged {
			t.Error("expected screenshot change")
		}
		if diff := cmp.Diff([]string{"consent"}, got.AddedCookies); diff != "" {
			t.Errorf("added cookies mismatch (-want +got):\n%s", diff)
		}
		if got.RiskChange.Direction != riskDirectionImproved || got.RiskChange.LowDelta != -1 {
			t.Errorf("unexpected risk change: %+v", got.RiskChange)
		}
	})

	t.Run("compares as Markdown since a date", func(t *testing.T) {
		t.Parallel()

		out, err := runHistory(t, "--db-dir", dir, "--markdown", "--since", "2025-02-01", "https://example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"# Probe Comparison: https://example.com", "| Title", "removed `theme`"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, out)
			}
		}
	})

	t.Run("lists requests of a run", func(t *testing.T) {
		t.Parallel()

		out, err := runHistory(t, "--db-dir", dir, "--requests", itoa(ids[0]))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"https://example.com/app.js", "failed: net::ERR_FAILED", "Script"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, out)
			}
		}
	})

	t.Run("single run cannot be compared", func(t *testing.T) {
		t.Parallel()

		_, err := runHistory(t, "--db-dir", dir, "https://go.dev")
		if err == nil || !strings.Contains(err.Error(), "at least 2 runs") {
			t.Errorf("expected comparison error, got %v", err)
		}
	})

	t.Run("run of another URL is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := runHistory(t, "--db-dir", dir, "--with-run-id", itoa(ids[0]), "https://go.dev")
		if err == nil || !strings.Contains(err.Error(), "belongs to") {
			t.Errorf("expected ownership error, got %v", err)
		}
	})
}

func TestHistoryCmdErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing database is not an error", func(t *testing.T) {
		t.Parallel()

		out, err := runHistory(t, "--db-dir", t.TempDir())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "No probe history yet") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("list requires a URL", func(t *testing.T) {
		t.Parallel()

		if _, err := runHistory(t, "--db-dir", t.TempDir(), "--list"); err == nil {
			t.Error("expected error without URL")
		}
	})

	t.Run("invalid since date", func(t *testing.T) {
		t.Parallel()

		_, err := runHistory(t, "--db-dir", t.TempDir(), "--since", "01/02/2025", "https://example.com")
		if err == nil || !strings.Contains(err.Error(), "YYYY-MM-DD") {
			t.Errorf("expected date format error, got %v", err)
		}
	})

	t.Run("json and markdown conflict", func(t *testing.T) {
		t.Parallel()

		if _, err := runHistory(t, "--db-dir", t.TempDir(), "--json", "--markdown", "https://example.com"); err == nil {
			t.Error("expected conflicting formats error")
		}
	})
}

func TestHistoryDelete(t *testing.T) {
	t.Parallel()

	dir, _ := seedHistory(t)

	out, err := runHistory(t, "--db-dir", dir, "--delete", "https://example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Deleted 2 run(s) of https://example.com") {
		t.Errorf("unexpected output:\n%s", out)
	}

	out, err = runHistory(t, "--db-dir", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out, "https://example.com") {
		t.Errorf("expected example.com to be gone, got:\n%s", out)
	}
}

func TestCompareReports(t *testing.T) {
	t.Parallel()

	previous := model.NewProbeReport("https://example.com")
	previous.Title = "Same"
	previous.Cookies = []model.Cookie{{Name: "sid"}}

	current := model.NewProbeReport("https://example.com")
	current.Title = "Same"
	current.Cookies = []model.Cookie{{Name: "sid"}}
	current.StatusCode = 500
	current.AddFinding(model.NewFinding("http_error_status", "HTTP error", "500", "https://example.com"))

	result := compareReports(previous, current)

	want := []Change{{Field: "HTTP status", Previous: "-", Current: "500"}}
	if diff := cmp.Diff(want, result.Changes); diff != "" {
		t.Errorf("changes mismatch (-want +got):\n%s", diff)
	}
	if len(result.NewFindings) != 1 || len(result.ResolvedFindings) != 0 {
		t.Errorf("expected one new finding, got new=%d resolved=%d", len(result.NewFindings), len(result.ResolvedFindings))
	}
	if result.RiskChange.Direction != riskDirectionWorsened {
		t.Errorf("expected worsened, got %s", result.RiskChange.Direction)
	}
	if result.ScreenshotChanged {
		t.Error("runs without screenshots cannot differ")
	}
}

func TestCalculateRiskChange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		previous RunSnapshot
		current  RunSnapshot
		want     string
	}{
		{name: "fewer findings", previous: RunSnapshot{HighCount: 1}, current: RunSnapshot{}, want: riskDirectionImproved},
		{name: "more findings", previous: RunSnapshot{}, current: RunSnapshot{LowCount: 1}, want: riskDirectionWorsened},
		{name: "same findings", previous: RunSnapshot{MediumCount: 2}, current: RunSnapshot{MediumCount: 2}, want: riskDirectionUnchanged},
		{name: "one high outweighs four lows", previous: RunSnapshot{LowCount: 4}, current: RunSnapshot{HighCount: 1}, want: riskDirectionWorsened},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := calculateRiskChange(tt.previous, tt.current).Direction; got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFormatHelpers(t *testing.T) {
	t.Parallel()

	t.Run("formatDelta", func(t *testing.T) {
		t.Parallel()
		for delta, want := range map[int]string{3: "+3", 0: "0", -2: "-2"} {
			if got := formatDelta(delta); got != want {
				t.Errorf("formatDelta(%d) = %q, want %q", delta, got, want)
			}
		}
	})

	t.Run("formatRiskSummary", func(t *testing.T) {
		t.Parallel()
		if got := formatRiskSummary(nil); got != "N/A" {
			t.Errorf("got %q for nil summary", got)
		}
		if got := formatRiskSummary(map[string]int{}); got != noFindingsMessage {
			t.Errorf("got %q for empty summary", got)
		}
		if got := formatRiskSummary(map[string]int{"low": 2, "critical": 1}); got != "C:1 L:2" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("diffNames", func(t *testing.T) {
		t.Parallel()
		added, removed := diffNames([]string{"b", "a"}, []string{"c", "a", "c"})
		if diff := cmp.Diff([]string{"c"}, added); diff != "" {
			t.Errorf("added mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"b"}, removed); diff != "" {
			t.Errorf("removed mismatch (-want +got):\n%s", diff)
		}
	})
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
