package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/pageprobe/internal/artifact"
	"github.com/nao1215/pageprobe/internal/model"
)

// MarkdownWriter outputs reports in Markdown format for documentation and
// sharing. It uses nao1215/markdown for tables, alerts and mermaid charts.
type MarkdownWriter struct {
	baseWriter

	title cases.Caser
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
		title:      cases.Title(language.English),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.ProbeReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	summary := summaryOf(report)

	w.writeHeader(md, report)
	w.writePage(md, report)
	w.writeArtifacts(md, report)
	w.writeRequests(md, report)
	w.writeSummary(md, summary)
	w.writeFindings(md, summary)
	w.writeSteps(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with probe information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.ProbeReport) {
	md.H1("Page Probe Report")
	md.PlainText("")

	rows := [][]string{
		{"URL", "`" + report.URL + "`"},
	}
	if report.FinalURL != "" && report.FinalURL != report.URL {
		rows = append(rows, []string{"Final URL", "`" + report.FinalURL + "`"})
	}
	if report.StatusCode != 0 {
		rows = append(rows, []string{"HTTP Status", strconv.Itoa(report.StatusCode)})
	}
	rows = append(rows,
		[]string{"Probe Date", report.DateProbed.Format("2006-01-02 15:04:05 MST")},
		[]string{"Duration", report.Duration.String()},
	)
	if report.Device != "" {
		rows = append(rows, []string{"Device", report.Device})
	}
	if b := report.Browser; b != nil {
		rows = append(rows, []string{"Browser", b.Product})
	}
	rows = append(rows, []string{"Status", w.statusText(report)})

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// statusText returns the status text based on report state.
func (w *MarkdownWriter) statusText(report *model.ProbeReport) string {
	switch {
	case report.TimedOut:
		return "⚠️ Timed Out (partial results)"
	case report.ErrorMessage != "":
		return "❌ Error - " + report.ErrorMessage
	case len(report.StepErrors) > 0:
		return "⚠️ Incomplete"
	default:
		return "✅ Complete"
	}
}

// writePage writes the title, viewport and cookies.
func (w *MarkdownWriter) writePage(md *markdown.Markdown, report *model.ProbeReport) {
	md.H2("Page")
	md.PlainText("")

	rows := [][]string{
		{"Title", emptyDash(report.Title)},
		{"Cookies", strconv.Itoa(report.CookieCount())},
	}
	if vp := report.Viewport; vp != nil {
		rows = append(rows, []string{"Viewport", fmt.Sprintf("%d x %d @%gx", vp.Width, vp.Height, vp.DeviceScaleFactor)})
	}
	md.Table(markdown.TableSet{Header: []string{"Property", "Value"}, Rows: rows})
	md.PlainText("")

	if len(report.Cookies) == 0 {
		return
	}

	md.H3("Cookies")
	md.PlainText("")
	cookieRows := make([][]string, len(report.Cookies))
	for i, c := range report.Cookies {
		cookieRows[i] = []string{
			"`" + c.Name + "`",
			emptyDash(c.Domain),
			emptyDash(c.Path),
			yesNo(c.Secure),
			yesNo(c.HTTPOnly),
			emptyDash(c.SameSite),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Name", "Domain", "Path", "Secure", "HttpOnly", "SameSite"},
		Rows:   cookieRows,
	})
	md.PlainText("")
}

// writeArtifacts writes the files produced by the probe.
func (w *MarkdownWriter) writeArtifacts(md *markdown.Markdown, report *model.ProbeReport) {
	var rows [][]string
	if s := report.Screenshot; s != nil {
		rows = append(rows, []string{"Screenshot", "`" + s.Path + "`",
			fmt.Sprintf("%s, %dx%d %s, sha3 `%s`", artifact.HumanSize(s.Size), s.Width, s.Height, s.Format, truncateString(s.SHA3, 16))})
	}
	if p := report.PDF; p != nil {
		rows = append(rows, []string{"PDF", "`" + p.Path + "`",
			fmt.Sprintf("%s, %d pages", artifact.HumanSize(p.Size), p.Pages)})
	}
	if b := report.Baseline; b != nil {
		detail := "match"
		switch {
		case b.SizeMismatch:
			detail = "size differs"
		case !b.Match():
			detail = fmt.Sprintf("%d pixels differ (%.2f%%)", b.DiffPixels, b.DiffRatio()*100)
		}
		rows = append(rows, []string{"Baseline", "`" + b.Path + "`", detail})
	}
	if i := report.Interception; i != nil && i.DumpPath != "" {
		rows = append(rows, []string{"Modified document", "`" + i.DumpPath + "`",
			fmt.Sprintf("%d paused, %d modified", i.Paused, i.Modified)})
	}
	if len(rows) == 0 {
		return
	}

	md.H2("Artifacts")
	md.PlainText("")
	md.Table(markdown.TableSet{Header: []string{"Artifact", "Path", "Details"}, Rows: rows})
	md.PlainText("")
}

// writeRequests writes a pie chart of requests per resource type.
func (w *MarkdownWriter) writeRequests(md *markdown.Markdown, report *model.ProbeReport) {
	if len(report.Requests) == 0 {
		return
	}

	md.H2("Requests")
	md.PlainText("")

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Requests by Resource Type"),
		piechart.WithShowData(true),
	)
	rows := make([][]string, 0)
	for _, rc := range model.ResourceCounts(report.Requests) {
		chart.LabelAndIntValue(rc.ResourceType, uint64(rc.Count)) //nolint:gosec // counts are non-negative
		rows = append(rows, []string{rc.ResourceType, strconv.Itoa(rc.Count)})
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(len(report.Requests)) + "**"})

	md.Table(markdown.TableSet{Header: []string{"Resource Type", "Count"}, Rows: rows})
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeSummary writes the severity summary section.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, summary *model.Summary) {
	md.H2("Severity Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Severity", "Count"},
		Rows: [][]string{
			{"🔴 Critical", strconv.Itoa(summary.CriticalCount)},
			{"🟠 High", strconv.Itoa(summary.HighCount)},
			{"🟡 Medium", strconv.Itoa(summary.MediumCount)},
			{"🔵 Low", strconv.Itoa(summary.LowCount)},
			{"⚪ Info", strconv.Itoa(summary.InfoCount)},
			{"**Total**", "**" + strconv.Itoa(summary.Total()) + "**"},
		},
	})
	md.PlainText("")

	w.writeAlert(md, summary)
}

// writeAlert writes an appropriate alert based on severity counts.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, summary *model.Summary) {
	switch {
	case summary.CriticalCount > 0:
		md.Cautionf("The probe did not complete. %d step(s) failed.", summary.CriticalCount)
	case summary.HighCount > 0:
		md.Warningf("%d high severity finding(s): the page did not render as expected.", summary.HighCount)
	case summary.MediumCount > 0:
		md.Importantf("%d medium severity finding(s) should be reviewed.", summary.MediumCount)
	case summary.Total() > 0:
		md.Note("Only low severity and informational findings detected.")
	default:
		md.Tip("No issues detected.")
	}
	md.PlainText("")
}

// writeFindings writes all findings grouped by severity.
func (w *MarkdownWriter) writeFindings(md *markdown.Markdown, summary *model.Summary) {
	md.H2("Findings")
	md.PlainText("")

	if summary.Total() == 0 {
		md.PlainText("No findings.")
		md.PlainText("")
		return
	}

	severities := []struct {
		level  model.Severity
		header string
	}{
		{model.SeverityCritical, "### 🔴 Critical"},
		{model.SeverityHigh, "### 🟠 High"},
		{model.SeverityMedium, "### 🟡 Medium"},
		{model.SeverityLow, "### 🔵 Low"},
		{model.SeverityInfo, "### ⚪ Info"},
	}

	for _, sev := range severities {
		var findings []model.Finding
		for _, f := range summary.Findings {
			if f.Severity == sev.level {
				findings = append(findings, f)
			}
		}
		if len(findings) == 0 {
			continue
		}

		md.PlainText(sev.header)
		md.PlainText("")
		w.writeFindingsTable(md, findings)
	}
}

// writeFindingsTable writes a table of findings with details.
func (w *MarkdownWriter) writeFindingsTable(md *markdown.Markdown, findings []model.Finding) {
	rows := make([][]string, len(findings))
	for i, f := range findings {
		rows[i] = []string{
			f.Title,
			truncateString(emptyDash(f.Value), 50),
			truncateString(emptyDash(f.Location), 40),
			truncateString(emptyDash(f.Recommendation), 60),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Title", "Value", "Location", "Recommendation"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, f := range findings {
		if f.Description != "" {
			md.Details(f.Title, f.Description)
		}
	}
	md.PlainText("")
}

// writeSteps lists performed and failed steps.
func (w *MarkdownWriter) writeSteps(md *markdown.Markdown, report *model.ProbeReport) {
	if len(report.PerformedSteps) == 0 && len(report.StepErrors) == 0 {
		return
	}

	md.H2("Steps")
	md.PlainText("")

	items := make([]string, 0, len(report.PerformedSteps)+len(report.StepErrors))
	for _, s := range report.PerformedSteps {
		items = append(items, "✅ "+w.title.String(s))
	}
	for _, se := range report.StepErrors {
		items = append(items, "❌ "+w.title.String(se.Step)+": "+se.Message)
	}
	md.BulletList(items...)
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [pageprobe](https://github.com/nao1215/pageprobe)*")
}

func emptyDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// truncateString truncates a string to maxLen bytes with an ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
