package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/pageprobe/internal/model"
)

// createTestReport creates a report with sample data for testing.
func createTestReport() *model.ProbeReport {
	report := model.NewProbeReport("https://example.com")
	report.DateProbed = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	report.Duration = 1500 * time.Millisecond
	report.FinalURL = "https://example.com/"
	report.StatusCode = 200
	report.Title = "Example Domain"
	report.Cookies = []model.Cookie{
		{Name: "session", Value: "abc", Domain: "example.com", Path: "/", HTTPOnly: true},
	}
	report.Viewport = &model.Viewport{Width: 1200, Height: 800, DeviceScaleFactor: 1}
	report.Requests = []model.Request{
		{URL: "https://example.com/", ResourceType: "Document"},
		{URL: "https://example.com/app.js", ResourceType: "Script"},
		{URL: "https://example.com/lib.js", ResourceType: "Script"},
		{URL: "https://example.com/missing.png", ResourceType: "Image", Failed: true, ErrorText: "net::ERR_ABORTED"},
	}
	report.Screenshot = &model.Screenshot{
		Path:   "/tmp/screenshot.png",
		Size:   24000,
		Format: "png",
		Width:  1200,
		Height: 800,
		SHA3:   strings.Repeat("ab", 32),
	}
	report.PerformedSteps = []string{"navigate", "screenshot", "title"}

	f := model.NewFinding("cookie_missing_secure", "Cookie without Secure attribute", "session", "example.com/")
	f.Description = "Set by the login form"
	report.AddFinding(f)
	report.AddFinding(model.NewFinding("failed_request", "Request failed: net::ERR_ABORTED",
		"https://example.com/missing.png", "Image"))

	return report
}

func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	write := func(t *testing.T, report *model.ProbeReport, opts ...SimpleWriterOption) string {
		t.Helper()
		var buf bytes.Buffer
		n, err := NewSimpleWriter(&buf, opts...).Write(report)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("expected %d bytes reported, got %d", buf.Len(), n)
		}
		return buf.String()
	}

	t.Run("writes report header", func(t *testing.T) {
		t.Parallel()

		output := write(t, createTestReport())
		for _, want := range []string{"PAGEPROBE REPORT", "URL:          https://example.com", "HTTP Status:  200", "Status:       Complete"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q:\n%s", want, output)
			}
		}
	})

	t.Run("names the browser when known", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.Browser = &model.BrowserInfo{Product: "HeadlessChrome/120.0.6099.71"}
		if output := write(t, report); !strings.Contains(output, "Browser:      HeadlessChrome/120.0.6099.71") {
			t.Errorf("expected browser line:\n%s", output)
		}
		if output := write(t, createTestReport()); strings.Contains(output, "Browser:") {
			t.Errorf("expected no browser line:\n%s", output)
		}
	})

	t.Run("writes page data and artifacts", func(t *testing.T) {
		t.Parallel()

		output := write(t, createTestReport())
		for _, want := range []string{"Title:    Example Domain", "Cookies:  1", "Viewport: 1200x800 @1x", "/tmp/screenshot.png (24 kB, 1200x800)"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q:\n%s", want, output)
			}
		}
	})

	t.Run("writes request counts", func(t *testing.T) {
		t.Parallel()

		output := write(t, createTestReport())
		if !strings.Contains(output, "Script:      2") {
			t.Errorf("expected script count:\n%s", output)
		}
		if !strings.Contains(output, "TOTAL:       4") {
			t.Errorf("expected request total:\n%s", output)
		}
	})

	t.Run("writes findings most severe first", func(t *testing.T) {
		t.Parallel()

		output := write(t, createTestReport())
		medium := strings.Index(output, "[!] MEDIUM")
		low := strings.Index(output, "[-] LOW")
		if medium < 0 || low < 0 || medium > low {
			t.Errorf("expected MEDIUM before LOW:\n%s", output)
		}
	})

	t.Run("verbose mode includes details", func(t *testing.T) {
		t.Parallel()

		output := write(t, createTestReport(), WithVerbose(true))
		for _, want := range []string{"Description: Set by the login form", "[x] https://example.com/missing.png", "- session (domain=example.com"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected verbose output to contain %q:\n%s", want, output)
			}
		}
	})

	t.Run("never prints cookie values", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.Cookies[0].Value = "s3cr3t-value"
		if output := write(t, report, WithVerbose(true)); strings.Contains(output, "s3cr3t-value") {
			t.Errorf("cookie value leaked:\n%s", output)
		}
	})

	t.Run("handles timed out report", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.TimedOut = true
		if output := write(t, report); !strings.Contains(output, "TIMED OUT") {
			t.Errorf("expected output to indicate timeout:\n%s", output)
		}
	})

	t.Run("lists failed steps", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.AddStepError("pdf", errors.New("pdf: printing is not supported"))
		output := write(t, report)
		if !strings.Contains(output, "INCOMPLETE") || !strings.Contains(output, "[x] pdf: pdf: printing is not supported") {
			t.Errorf("expected failed step:\n%s", output)
		}
	})

	t.Run("report without audit", func(t *testing.T) {
		t.Parallel()

		output := write(t, model.NewProbeReport("about:blank"))
		if !strings.Contains(output, "TOTAL:    0 findings") {
			t.Errorf("expected empty summary:\n%s", output)
		}
		if strings.Contains(output, "FINDINGS\n") {
			t.Errorf("expected no findings section:\n%s", output)
		}
	})
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("outputs valid JSON", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var parsed model.ProbeReport
		if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if parsed.URL != "https://example.com" || parsed.Title != "Example Domain" {
			t.Errorf("unexpected report %+v", parsed)
		}
		if parsed.CookieCount() != 1 {
			t.Errorf("expected 1 cookie, got %d", parsed.CookieCount())
		}
		if parsed.Viewport == nil || parsed.Viewport.DeviceScaleFactor != 1 {
			t.Errorf("unexpected viewport %+v", parsed.Viewport)
		}
	})

	t.Run("uses camel case for the device scale factor", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), `"deviceScaleFactor":1`) {
			t.Errorf("expected deviceScaleFactor key: %s", buf.String())
		}
	})

	t.Run("compact output by default", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Count(buf.String(), "\n") != 1 {
			t.Errorf("expected a single line of JSON, got:\n%s", buf.String())
		}
	})

	t.Run("pretty print", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"url\": ") {
			t.Errorf("expected indented output, got:\n%s", buf.String())
		}
	})

	t.Run("writes several reports as an array", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		reports := []*model.ProbeReport{createTestReport(), model.NewProbeReport("https://example.org")}
		if _, err := NewJSONWriter(&buf).WriteAll(reports); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var parsed []model.ProbeReport
		if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
			t.Fatalf("output is not a JSON array: %v", err)
		}
		if len(parsed) != 2 || parsed[1].URL != "https://example.org" {
			t.Errorf("unexpected reports %+v", parsed)
		}
	})
}

func TestFullJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("wraps the report with version and stats", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.Browser = &model.BrowserInfo{Product: "HeadlessChrome/120.0.6099.71", UserAgent: "Mozilla/5.0 HeadlessChrome/120.0.6099.71"}

		var buf bytes.Buffer
		w := NewFullJSONWriter(&buf, "v1.2.3")
		w.now = func() time.Time { return time.Date(2024, 3, 9, 15, 0, 0, 0, time.FixedZone("JST", 9*3600)) }
		if _, err := w.Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var parsed JSONReport
		if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if parsed.Tool != "pageprobe" || parsed.Version != "v1.2.3" {
			t.Errorf("unexpected tool %q version %q", parsed.Tool, parsed.Version)
		}
		if want := time.Date(2024, 3, 9, 6, 0, 0, 0, time.UTC); !parsed.GeneratedAt.Equal(want) {
			t.Errorf("expected generated_at %v, got %v", want, parsed.GeneratedAt)
		}
		if diff := cmp.Diff(report.Browser, parsed.Browser); diff != "" {
			t.Errorf("browser mismatch (-want +got):\n%s", diff)
		}
		wantStats := JSONStats{Cookies: 1, Requests: 4, FailedRequests: 1, Findings: 2}
		if diff := cmp.Diff(wantStats, parsed.Stats); diff != "" {
			t.Errorf("stats mismatch (-want +got):\n%s", diff)
		}
		if parsed.Report == nil || parsed.Summary == nil || parsed.Summary.Total() != 2 {
			t.Errorf("unexpected wrapper %+v", parsed)
		}
	})

	t.Run("omits an unknown browser", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewFullJSONWriter(&buf, "v1.2.3").Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if _, ok := raw["browser"]; ok {
			t.Errorf("expected no browser key, got %s", raw["browser"])
		}
	})
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	write := func(t *testing.T, report *model.ProbeReport) string {
		t.Helper()
		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return buf.String()
	}

	t.Run("writes headings and tables", func(t *testing.T) {
		t.Parallel()

		output := write(t, createTestReport())
		for _, want := range []string{"# Page Probe Report", "## Page", "## Artifacts", "## Requests", "## Severity Summary", "## Findings", "Example Domain", "`session`"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected markdown to contain %q:\n%s", want, output)
			}
		}
	})

	t.Run("writes a mermaid pie chart of resource types", func(t *testing.T) {
		t.Parallel()

		output := write(t, createTestReport())
		if !strings.Contains(output, "```mermaid") || !strings.Contains(output, "Requests by Resource Type") {
			t.Errorf("expected mermaid chart:\n%s", output)
		}
		if !strings.Contains(output, `"Script"`) {
			t.Errorf("expected Script slice:\n%s", output)
		}
	})

	t.Run("title cases step names", func(t *testing.T) {
		t.Parallel()

		output := write(t, createTestReport())
		if !strings.Contains(output, "✅ Screenshot") {
			t.Errorf("expected title cased steps:\n%s", output)
		}
	})

	t.Run("report without findings", func(t *testing.T) {
		t.Parallel()

		output := write(t, model.NewProbeReport("about:blank"))
		if !strings.Contains(output, "No findings.") {
			t.Errorf("expected empty findings text:\n%s", output)
		}
		if strings.Contains(output, "## Requests") {
			t.Errorf("expected no requests section:\n%s", output)
		}
	})
}

type countingWriter struct {
	calls int
	err   error
}

func (c *countingWriter) Write(*model.ProbeReport) (int, error) {
	c.calls++
	return 1, c.err
}

func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to all writers", func(t *testing.T) {
		t.Parallel()

		a, b := &countingWriter{}, &countingWriter{}
		n, err := NewMultiWriter(a, b).Write(createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 2 || a.calls != 1 || b.calls != 1 {
			t.Errorf("unexpected n=%d calls=%d,%d", n, a.calls, b.calls)
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		a, b := &countingWriter{err: errors.New("disk full")}, &countingWriter{}
		if _, err := NewMultiWriter(a, b).Write(createTestReport()); err == nil {
			t.Fatal("expected error")
		}
		if b.calls != 0 {
			t.Error("expected second writer to be skipped")
		}
	})
}
