package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/pageprobe/internal/artifact"
	"github.com/nao1215/pageprobe/internal/model"
)

const ruleWidth = 70

// SimpleWriter outputs human-readable text reports for the terminal.
// It uses plain ASCII so that output can be piped to files.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no content are shown.
	showEmpty bool

	// verbose adds cookie and request details.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.ProbeReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writePage(&sb, report)
	w.writeArtifacts(&sb, report)
	w.writeRequests(&sb, report)
	w.writeSummary(&sb, summaryOf(report))
	w.writeFindings(&sb, summaryOf(report))
	w.writeStepErrors(&sb, report)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}

// writeHeader writes the report header with probe information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.ProbeReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("                         PAGEPROBE REPORT\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "URL:          %s\n", report.URL)
	if report.FinalURL != "" && report.FinalURL != report.URL {
		fmt.Fprintf(sb, "Final URL:    %s\n", report.FinalURL)
	}
	if report.StatusCode != 0 {
		fmt.Fprintf(sb, "HTTP Status:  %d\n", report.StatusCode)
	}
	fmt.Fprintf(sb, "Probe Date:   %s\n", report.DateProbed.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration:     %s\n", report.Duration.Round(time.Millisecond))
	if report.Device != "" {
		fmt.Fprintf(sb, "Device:       %s\n", report.Device)
	}
	if b := report.Browser; b != nil {
		fmt.Fprintf(sb, "Browser:      %s\n", b.Product)
	}
	fmt.Fprintf(sb, "Status:       %s\n", statusText(report))
	sb.WriteString("\n")
}

// writePage writes what was read from the page.
func (w *SimpleWriter) writePage(sb *strings.Builder, report *model.ProbeReport) {
	section(sb, "PAGE")

	fmt.Fprintf(sb, "  Title:    %s\n", report.Title)
	fmt.Fprintf(sb, "  Cookies:  %d\n", report.CookieCount())
	if vp := report.Viewport; vp != nil {
		fmt.Fprintf(sb, "  Viewport: %dx%d @%gx\n", vp.Width, vp.Height, vp.DeviceScaleFactor)
	}
	if w.verbose {
		for _, c := range report.Cookies {
			fmt.Fprintf(sb, "    - %s (domain=%s path=%s secure=%t httpOnly=%t sameSite=%s)\n",
				c.Name, c.Domain, c.Path, c.Secure, c.HTTPOnly, c.SameSite)
		}
	}
	sb.WriteString("\n")
}

// writeArtifacts writes the files produced by the probe.
func (w *SimpleWriter) writeArtifacts(sb *strings.Builder, report *model.ProbeReport) {
	if report.Screenshot == nil && report.PDF == nil && report.Baseline == nil &&
		report.Interception == nil && !w.showEmpty {
		return
	}

	section(sb, "ARTIFACTS")

	if s := report.Screenshot; s != nil {
		fmt.Fprintf(sb, "  Screenshot: %s (%s, %dx%d)\n", s.Path, artifact.HumanSize(s.Size), s.Width, s.Height)
	}
	if p := report.PDF; p != nil {
		fmt.Fprintf(sb, "  PDF:        %s (%s, %d pages)\n", p.Path, artifact.HumanSize(p.Size), p.Pages)
	}
	if b := report.Baseline; b != nil {
		switch {
		case b.SizeMismatch:
			fmt.Fprintf(sb, "  Baseline:   %s (size differs)\n", b.Path)
		case b.Match():
			fmt.Fprintf(sb, "  Baseline:   %s (match)\n", b.Path)
		default:
			fmt.Fprintf(sb, "  Baseline:   %s (%d pixels differ, %.2f%%)\n", b.Path, b.DiffPixels, b.DiffRatio()*100)
		}
	}
	if i := report.Interception; i != nil {
		fmt.Fprintf(sb, "  Intercepted: %d paused, %d modified\n", i.Paused, i.Modified)
		if i.DumpPath != "" {
			fmt.Fprintf(sb, "  Modified document: %s\n", i.DumpPath)
		}
	}
	sb.WriteString("\n")
}

// writeRequests writes request counts per resource type.
func (w *SimpleWriter) writeRequests(sb *strings.Builder, report *model.ProbeReport) {
	if len(report.Requests) == 0 && !w.showEmpty {
		return
	}

	section(sb, "REQUESTS")

	for _, rc := range model.ResourceCounts(report.Requests) {
		fmt.Fprintf(sb, "  %-12s %d\n", rc.ResourceType+":", rc.Count)
	}
	fmt.Fprintf(sb, "  %-12s %d\n", "TOTAL:", len(report.Requests))

	failed := model.FailedRequests(report.Requests)
	if w.verbose && len(failed) > 0 {
		sb.WriteString("\n  Failed:\n")
		for _, r := range failed {
			fmt.Fprintf(sb, "    [x] %s (%s)\n", r.URL, r.ErrorText)
		}
	}
	sb.WriteString("\n")
}

// writeSummary writes the severity summary section.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, summary *model.Summary) {
	section(sb, "SEVERITY SUMMARY")

	fmt.Fprintf(sb, "  CRITICAL: %d\n", summary.CriticalCount)
	fmt.Fprintf(sb, "  HIGH:     %d\n", summary.HighCount)
	fmt.Fprintf(sb, "  MEDIUM:   %d\n", summary.MediumCount)
	fmt.Fprintf(sb, "  LOW:      %d\n", summary.LowCount)
	fmt.Fprintf(sb, "  INFO:     %d\n", summary.InfoCount)
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  TOTAL:    %d findings\n", summary.Total())
	sb.WriteString("\n")
}

// writeFindings writes all findings, most severe first.
func (w *SimpleWriter) writeFindings(sb *strings.Builder, summary *model.Summary) {
	if summary.Total() == 0 && !w.showEmpty {
		return
	}

	section(sb, "FINDINGS")

	if summary.Total() == 0 {
		sb.WriteString("  No findings\n\n")
		return
	}

	current := model.Severity(-1)
	for _, f := range summary.SortedFindings() {
		if f.Severity != current {
			if current != -1 {
				sb.WriteString("\n")
			}
			current = f.Severity
			fmt.Fprintf(sb, "[%s] %s\n", severityIndicator(f.Severity), f.Severity.String())
		}
		fmt.Fprintf(sb, "  * %s\n", f.Title)
		if f.Value != "" {
			fmt.Fprintf(sb, "    Value: %s\n", f.Value)
		}
		if f.Location != "" {
			fmt.Fprintf(sb, "    Location: %s\n", f.Location)
		}
		if w.verbose && f.Description != "" {
			fmt.Fprintf(sb, "    Description: %s\n", f.Description)
		}
	}
	sb.WriteString("\n")
}

// writeStepErrors lists steps that failed in keep-going mode.
func (w *SimpleWriter) writeStepErrors(sb *strings.Builder, report *model.ProbeReport) {
	if len(report.StepErrors) == 0 {
		return
	}

	section(sb, "FAILED STEPS")
	for _, se := range report.StepErrors {
		fmt.Fprintf(sb, "  [x] %s: %s\n", se.Step, se.Message)
	}
	sb.WriteString("\n")
}

// severityIndicator returns a visual indicator for the severity level.
func severityIndicator(severity model.Severity) string {
	switch severity {
	case model.SeverityCritical:
		return "!!!"
	case model.SeverityHigh:
		return "!!"
	case model.SeverityMedium:
		return "!"
	case model.SeverityLow:
		return "-"
	case model.SeverityInfo:
		return "i"
	default:
		return "?"
	}
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("Report generated by pageprobe\n")
	sb.WriteString("https://github.com/nao1215/pageprobe\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
}
