package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/pageprobe/internal/config"
	"github.com/nao1215/pageprobe/internal/database"
	"github.com/nao1215/pageprobe/internal/model"
)

// Risk directions of a comparison.
const (
	riskDirectionWorsened  = "worsened"
	riskDirectionImproved  = "improved"
	riskDirectionUnchanged = "unchanged"
	noFindingsMessage      = "No findings"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [url]",
		Short: "Show stored probes and compare runs of a URL",
		Long: `History reads the probe history database.

Without a URL it lists every probed URL. With a URL it compares the latest
run with the previous one and shows what changed: title, HTTP status,
cookies, viewport, screenshot and findings.

Examples:
  # List probed URLs
  pageprobe history

  # List the runs of a URL
  pageprobe history --list https://example.com

  # Compare the latest two runs
  pageprobe history https://example.com

  # Compare the latest run with run 3
  pageprobe history --with-run-id 3 https://example.com

  # Compare with the first run since a date
  pageprobe history --since 2025-01-01 https://example.com

  # Show the requests recorded by run 3
  pageprobe history --requests 3

  # Forget a URL
  pageprobe history --delete https://example.com`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list", "l", false, "List the runs of the URL")
	cmd.Flags().Int64P("with-run-id", "i", 0, "Compare the latest run with this run (see --list)")
	cmd.Flags().StringP("since", "s", "", "Compare with the first run on or after this date (YYYY-MM-DD)")
	cmd.Flags().Int64P("requests", "r", 0, "List the requests recorded by this run")
	cmd.Flags().Bool("delete", false, "Delete every run of the URL")
	cmd.Flags().BoolP("json", "j", false, "Output the comparison as JSON")
	cmd.Flags().BoolP("markdown", "m", false, "Output the comparison as Markdown")
	cmd.Flags().String("db-dir", "", "History database directory (default: XDG data directory)")

	return cmd
}

// historyOptions are the parsed flags of the history command.
type historyOptions struct {
	url       string
	list      bool
	withRunID int64
	since     time.Time
	requests  int64
	delete    bool
	json      bool
	markdown  bool
	dbDir     string
}

func parseHistoryOptions(cmd *cobra.Command, args []string) (historyOptions, error) {
	var opts historyOptions
	if len(args) > 0 {
		opts.url = args[0]
	}

	r := &flagReader{flags: cmd.Flags()}
	var since string
	r.boolVar("list", &opts.list)
	r.set("with-run-id", func() (err error) { opts.withRunID, err = cmd.Flags().GetInt64("with-run-id"); return })
	r.stringVar("since", &since)
	r.set("requests", func() (err error) { opts.requests, err = cmd.Flags().GetInt64("requests"); return })
	r.boolVar("delete", &opts.delete)
	r.boolVar("json", &opts.json)
	r.boolVar("markdown", &opts.markdown)
	r.stringVar("db-dir", &opts.dbDir)
	if r.err != nil {
		return opts, r.err
	}

	if opts.json && opts.markdown {
		return opts, config.ErrConflictingReportFormats
	}
	if since != "" {
		t, err := time.ParseInLocation("2006-01-02", since, time.Local)
		if err != nil {
			return opts, fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}
		opts.since = t
	}

	needsURL := opts.list || opts.delete || opts.withRunID > 0 || !opts.since.IsZero()
	if needsURL && opts.url == "" {
		return opts, errors.New("a URL is required (run 'pageprobe history' to see probed URLs)")
	}

	if opts.dbDir == "" {
		env, err := config.LoadEnv()
		if err != nil {
			return opts, err
		}
		opts.dbDir = env.DBDir
	}
	if opts.dbDir == "" {
		opts.dbDir = config.XDGDataDir()
	}
	return opts, nil
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	// Flags are validated before the database is opened.
	opts, err := parseHistoryOptions(cmd, args)
	if err != nil {
		return err
	}

	db, err := database.Open(opts.dbDir, database.Options{EnableWAL: true})
	if errors.Is(err, database.ErrNotFound) {
		fmt.Fprintln(cmd.OutOrStdout(), "No probe history yet. Run 'pageprobe probe <url>' first.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case opts.requests > 0:
		return listRunRequests(ctx, out, db, opts.requests)
	case opts.url == "":
		return listProbedURLs(ctx, out, db)
	case opts.delete:
		return deleteHistory(ctx, out, db, opts.url)
	case opts.list:
		return listRuns(ctx, out, db, opts.url)
	default:
		return runComparison(ctx, out, db, opts)
	}
}

func listProbedURLs(ctx context.Context, out io.Writer, db *database.ProbeDB) error {
	urls, err := db.ListProbedURLs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list URLs: %w", err)
	}
	if len(urls) == 0 {
		fmt.Fprintln(out, "No probed URLs found in the database.")
		fmt.Fprintln(out, "\nUse 'pageprobe probe <url>' to probe a page.")
		return nil
	}

	fmt.Fprintf(out, "Probed URLs (%d):\n\n", len(urls))
	for _, u := range urls {
		fmt.Fprintf(out, "  • %s\n", u)
	}
	fmt.Fprintln(out, "\nUse 'pageprobe history --list <url>' to see the runs of a URL.")
	return nil
}

func listRuns(ctx context.Context, out io.Writer, db *database.ProbeDB, url string) error {
	runs, err := db.GetProbeHistoryWithMetadata(ctx, url, time.Time{})
	if err != nil {
		return fmt.Errorf("failed to get probe history: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintf(out, "No probe history found for %s\n", url)
		return nil
	}

	fmt.Fprintf(out, "Probe history for %s (%d runs):\n\n", url, len(runs))

	t := newTable(out)
	t.AppendHeader(table.Row{"ID", "Date", "Status", "Title", "Cookies", "Screenshot", "Result", "Findings"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "ID", Align: text.AlignRight},
		{Name: "Cookies", Align: text.AlignRight},
		{Name: "Title", WidthMax: 32},
	})
	for _, run := range runs {
		result := "ok"
		if run.Failed {
			result = "failed"
		}
		t.AppendRow(table.Row{
			run.ID,
			run.Timestamp.Local().Format("2006-01-02 15:04:05"),
			statusCodeText(run.StatusCode),
			run.Title,
			run.CookieCount,
			shortDigest(run.ScreenshotSHA3),
			result,
			formatRiskSummary(run.RiskSummary),
		})
	}
	t.Render()

	fmt.Fprintln(out, "\nUse 'pageprobe history <url>' to compare the latest two runs.")
	fmt.Fprintln(out, "Use 'pageprobe history --with-run-id <id> <url>' to compare with a specific run.")
	return nil
}

func listRunRequests(ctx context.Context, out io.Writer, db *database.ProbeDB, runID int64) error {
	requests, err := db.GetRequests(ctx, runID)
	if err != nil {
		return err
	}
	if len(requests) == 0 {
		fmt.Fprintf(out, "No requests recorded for run %d\n", runID)
		return nil
	}

	t := newTable(out)
	t.AppendHeader(table.Row{"#", "Method", "Type", "Status", "URL"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "#", Align: text.AlignRight},
		{Name: "URL", WidthMax: 80},
	})
	for i, r := range requests {
		status := statusCodeText(r.StatusCode)
		if r.Failed {
			status = "failed: " + r.ErrorText
		}
		t.AppendRow(table.Row{i + 1, r.Method, r.ResourceType, status, r.URL})
	}
	t.AppendFooter(table.Row{"", "", "", "Total", len(requests)})
	t.Render()
	return nil
}

func deleteHistory(ctx context.Context, out io.Writer, db *database.ProbeDB, url string) error {
	n, err := db.DeleteProbeHistory(ctx, url)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted %d run(s) of %s\n", n, url)
	return nil
}

func statusCodeText(code int) string {
	if code == 0 {
		return "-"
	}
	return strconv.Itoa(code)
}

func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	if digest == "" {
		return "-"
	}
	return digest
}

// formatRiskSummary formats the risk summary map as "H:1 L:2".
func formatRiskSummary(summary map[string]int) string {
	if summary == nil {
		return "N/A"
	}

	var parts []string
	for _, level := range []struct{ key, abbr string }{
		{"critical", "C"}, {"high", "H"}, {"medium", "M"}, {"low", "L"}, {"info", "I"},
	} {
		if v := summary[level.key]; v > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", level.abbr, v))
		}
	}
	if len(parts) == 0 {
		return noFindingsMessage
	}
	return strings.Join(parts, " ")
}

// runComparison compares the latest run of opts.url with an earlier one.
func runComparison(ctx context.Context, out io.Writer, db *database.ProbeDB, opts historyOptions) error {
	reports, err := db.GetProbeHistory(ctx, opts.url)
	if err != nil {
		return fmt.Errorf("failed to get probe history: %w", err)
	}
	if len(reports) == 0 {
		return fmt.Errorf("no probe history found for %s", opts.url)
	}
	if len(reports) < 2 && opts.withRunID == 0 {
		return fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(reports))
	}

	current := reports[0]
	var previous *model.ProbeReport

	switch {
	case opts.withRunID > 0:
		previous, err = db.GetProbeReportByID(ctx, opts.withRunID)
		if err != nil {
			return fmt.Errorf("failed to get run %d: %w", opts.withRunID, err)
		}
		if previous == nil {
			return fmt.Errorf("run %d not found", opts.withRunID)
		}
		if previous.URL != opts.url {
			return fmt.Errorf("run %d belongs to %s, not %s", opts.withRunID, previous.URL, opts.url)
		}
	case !opts.since.IsZero():
		// Reports are newest first; the oldest match is the last one.
		for i := len(reports) - 1; i >= 0; i-- {
			if !reports[i].DateProbed.Before(opts.since) {
				previous = reports[i]
				break
			}
		}
		if previous == nil {
			return fmt.Errorf("no runs found since %s", opts.since.Format("2006-01-02"))
		}
		if previous == current {
			return fmt.Errorf("only one run found since %s; at least 2 runs are required for comparison", opts.since.Format("2006-01-02"))
		}
	default:
		previous = reports[1]
	}

	result := compareReports(previous, current)
	switch {
	case opts.json:
		return outputComparisonJSON(out, result)
	case opts.markdown:
		return outputComparisonMarkdown(out, result)
	default:
		return outputComparisonText(out, result)
	}
}

// ComparisonResult holds the differences between two runs of a URL.
type ComparisonResult struct {
	URL      string      `json:"url"`
	Previous RunSnapshot `json:"previous"`
	Current  RunSnapshot `json:"current"`

	// Changes lists page properties that differ, in display order.
	Changes []Change `json:"changes,omitempty"`

	// AddedCookies and RemovedCookies are cookie names.
	AddedCookies   []string `json:"added_cookies,omitempty"`
	RemovedCookies []string `json:"removed_cookies,omitempty"`

	// ScreenshotChanged is true when both runs have a screenshot and the
	// digests differ.
	ScreenshotChanged bool `json:"screenshot_changed"`

	NewFindings      []model.Finding `json:"new_findings,omitempty"`
	ResolvedFindings []model.Finding `json:"resolved_findings,omitempty"`
	UnchangedCount   int             `json:"unchanged_count"`

	RiskChange RiskChange `json:"risk_change"`
}

// RunSnapshot is what the comparison shows about one run.
type RunSnapshot struct {
	DateProbed    time.Time `json:"date_probed"`
	Title         string    `json:"title"`
	StatusCode    int       `json:"status_code,omitempty"`
	CookieCount   int       `json:"cookie_count"`
	Viewport      string    `json:"viewport,omitempty"`
	Requests      int       `json:"requests"`
	Screenshot    string    `json:"screenshot_sha3,omitempty"`
	Failed        bool      `json:"failed"`
	TotalFindings int       `json:"total_findings"`
	CriticalCount int       `json:"critical_count"`
	HighCount     int       `json:"high_count"`
	MediumCount   int       `json:"medium_count"`
	LowCount      int       `json:"low_count"`
	InfoCount     int       `json:"info_count"`
}

// Change is one page property that differs between runs.
type Change struct {
	Field    string `json:"field"`
	Previous string `json:"previous"`
	Current  string `json:"current"`
}

// RiskChange describes the change in findings between runs.
type RiskChange struct {
	Direction     string `json:"direction"`
	CriticalDelta int    `json:"critical_delta"`
	HighDelta     int    `json:"high_delta"`
	MediumDelta   int    `json:"medium_delta"`
	LowDelta      int    `json:"low_delta"`
	InfoDelta     int    `json:"info_delta"`
}

func snapshot(r *model.ProbeReport) RunSnapshot {
	s := RunSnapshot{
		DateProbed:  r.DateProbed,
		Title:       r.Title,
		StatusCode:  r.StatusCode,
		CookieCount: r.CookieCount(),
		Requests:    len(r.Requests),
		Failed:      r.Failed(),
	}
	if r.Viewport != nil {
		s.Viewport = fmt.Sprintf("%dx%d@%g", r.Viewport.Width, r.Viewport.Height, r.Viewport.DeviceScaleFactor)
	}
	if r.Screenshot != nil {
		s.Screenshot = r.Screenshot.SHA3
	}
	if sum := r.Summary; sum != nil {
		s.TotalFindings = sum.Total()
		s.CriticalCount = sum.CriticalCount
		s.HighCount = sum.HighCount
		s.MediumCount = sum.MediumCount
		s.LowCount = sum.LowCount
		s.InfoCount = sum.InfoCount
	}
	return s
}

// compareReports compares two runs of the same URL.
func compareReports(previous, current *model.ProbeReport) *ComparisonResult {
	result := &ComparisonResult{
		URL:      current.URL,
		Previous: snapshot(previous),
		Current:  snapshot(current),
	}
	p, c := result.Previous, result.Current

	addChange := func(field, prev, cur string) {
		if prev != cur {
			result.Changes = append(result.Changes, Change{Field: field, Previous: prev, Current: cur})
		}
	}
	addChange("Title", p.Title, c.Title)
	addChange("HTTP status", statusCodeText(p.StatusCode), statusCodeText(c.StatusCode))
	addChange("Cookies", strconv.Itoa(p.CookieCount), strconv.Itoa(c.CookieCount))
	addChange("Viewport", p.Viewport, c.Viewport)
	addChange("Requests", strconv.Itoa(p.Requests), strconv.Itoa(c.Requests))

	result.ScreenshotChanged = p.Screenshot != "" && c.Screenshot != "" && p.Screenshot != c.Screenshot

	result.AddedCookies, result.RemovedCookies = diffNames(cookieNames(previous), cookieNames(current))

	previousFindings := findingsByKey(previous)
	currentFindings := findingsByKey(current)
	for _, f := range current.Findings() {
		if _, ok := previousFindings[findingKey(f)]; !ok {
			result.NewFindings = append(result.NewFindings, f)
		}
	}
	for _, f := range previous.Findings() {
		if _, ok := currentFindings[findingKey(f)]; ok {
			result.UnchangedCount++
		} else {
			result.ResolvedFindings = append(result.ResolvedFindings, f)
		}
	}

	result.RiskChange = calculateRiskChange(p, c)
	return result
}

func cookieNames(r *model.ProbeReport) []string {
	names := make([]string, 0, len(r.Cookies))
	for _, c := range r.Cookies {
		names = append(names, c.Name)
	}
	return names
}

// diffNames returns the names only in current and the names only in
// previous, both sorted.
func diffNames(previous, current []string) (added, removed []string) {
	for _, n := range current {
		if !slices.Contains(previous, n) && !slices.Contains(added, n) {
			added = append(added, n)
		}
	}
	for _, n := range previous {
		if !slices.Contains(current, n) && !slices.Contains(removed, n) {
			removed = append(removed, n)
		}
	}
	slices.Sort(added)
	slices.Sort(removed)
	return added, removed
}

func findingsByKey(r *model.ProbeReport) map[string]model.Finding {
	m := make(map[string]model.Finding)
	for _, f := range r.Findings() {
		m[findingKey(f)] = f
	}
	return m
}

// findingKey identifies a finding across runs.
func findingKey(f model.Finding) string {
	return f.Type + "|" + f.Value + "|" + f.Location
}

// calculateRiskChange weighs severities so that one critical finding
// outweighs any number of lower ones in practice.
func calculateRiskChange(previous, current RunSnapshot) RiskChange {
	change := RiskChange{
		CriticalDelta: current.CriticalCount - previous.CriticalCount,
		HighDelta:     current.HighCount - previous.HighCount,
		MediumDelta:   current.MediumCount - previous.MediumCount,
		LowDelta:      current.LowCount - previous.LowCount,
		InfoDelta:     current.InfoCount - previous.InfoCount,
	}

	score := func(s RunSnapshot) int {
		return s.CriticalCount*100 + s.HighCount*50 + s.MediumCount*10 + s.LowCount*5 + s.InfoCount
	}
	switch prev, cur := score(previous), score(current); {
	case cur < prev:
		change.Direction = riskDirectionImproved
	case cur > prev:
		change.Direction = riskDirectionWorsened
	default:
		change.Direction = riskDirectionUnchanged
	}
	return change
}

func outputComparisonJSON(out io.Writer, result *ComparisonResult) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func outputComparisonMarkdown(out io.Writer, result *ComparisonResult) error {
	md := markdown.NewMarkdown(out)
	p, c := result.Previous, result.Current

	md.H1("Probe Comparison: " + result.URL)
	md.PlainText("")
	md.H2("Summary")
	md.PlainText("")
	md.PlainText("**Risk Status:** " + formatRiskDirection(result.RiskChange.Direction))
	md.PlainText("")

	rows := [][]string{
		{"Date", p.DateProbed.Format("2006-01-02 15:04"), c.DateProbed.Format("2006-01-02 15:04"), "-"},
	}
	for _, ch := range result.Changes {
		rows = append(rows, []string{ch.Field, ch.Previous, ch.Current, "changed"})
	}
	rows = append(rows,
		[]string{"Screenshot", shortDigest(p.Screenshot), shortDigest(c.Screenshot), changedText(result.ScreenshotChanged)},
		[]string{"Critical", strconv.Itoa(p.CriticalCount), strconv.Itoa(c.CriticalCount), formatDelta(result.RiskChange.CriticalDelta)},
		[]string{"High", strconv.Itoa(p.HighCount), strconv.Itoa(c.HighCount), formatDelta(result.RiskChange.HighDelta)},
		[]string{"Medium", strconv.Itoa(p.MediumCount), strconv.Itoa(c.MediumCount), formatDelta(result.RiskChange.MediumDelta)},
		[]string{"Low", strconv.Itoa(p.LowCount), strconv.Itoa(c.LowCount), formatDelta(result.RiskChange.LowDelta)},
		[]string{"Info", strconv.Itoa(p.InfoCount), strconv.Itoa(c.InfoCount), formatDelta(result.RiskChange.InfoDelta)},
		[]string{"**Total**", "**" + strconv.Itoa(p.TotalFindings) + "**", "**" + strconv.Itoa(c.TotalFindings) + "**",
			"**" + formatDelta(c.TotalFindings-p.TotalFindings) + "**"},
	)
	md.Table(markdown.TableSet{Header: []string{"Metric", "Previous", "Current", "Change"}, Rows: rows})
	md.PlainText("")

	if len(result.AddedCookies) > 0 || len(result.RemovedCookies) > 0 {
		md.H2("Cookies")
		md.PlainText("")
		items := make([]string, 0, len(result.AddedCookies)+len(result.RemovedCookies))
		for _, n := range result.AddedCookies {
			items = append(items, "added `"+n+"`")
		}
		for _, n := range result.RemovedCookies {
			items = append(items, "removed `"+n+"`")
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	if len(result.NewFindings) > 0 {
		md.H2(fmt.Sprintf("New Findings (%d)", len(result.NewFindings)))
		md.PlainText("")
		items := make([]string, 0, len(result.NewFindings))
		for _, f := range result.NewFindings {
			items = append(items, fmt.Sprintf("**[%s]** %s: %s", f.SeverityText, f.Title, f.Value))
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	if len(result.ResolvedFindings) > 0 {
		md.H2(fmt.Sprintf("Resolved Findings (%d)", len(result.ResolvedFindings)))
		md.PlainText("")
		items := make([]string, 0, len(result.ResolvedFindings))
		for _, f := range result.ResolvedFindings {
			items = append(items, fmt.Sprintf("~~**[%s]** %s: %s~~", f.SeverityText, f.Title, f.Value))
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	if result.UnchangedCount > 0 {
		md.HorizontalRule()
		md.PlainText(fmt.Sprintf("*%d findings unchanged*", result.UnchangedCount))
	}

	return md.Build()
}

func outputComparisonText(out io.Writer, result *ComparisonResult) error {
	p, c := result.Previous, result.Current

	fmt.Fprintf(out, "Probe Comparison: %s\n", result.URL)
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintf(out, "\nRisk Status: %s\n", formatRiskDirection(result.RiskChange.Direction))
	fmt.Fprintf(out, "\nPrevious run: %s\n", p.DateProbed.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Current run:  %s\n", c.DateProbed.Local().Format("2006-01-02 15:04:05"))

	fmt.Fprintln(out, "\nPage:")
	if len(result.Changes) == 0 {
		fmt.Fprintln(out, "  no changes")
	}
	for _, ch := range result.Changes {
		fmt.Fprintf(out, "  %-12s %s -> %s\n", ch.Field, ch.Previous, ch.Current)
	}
	fmt.Fprintf(out, "  %-12s %s\n", "Screenshot", changedText(result.ScreenshotChanged))
	for _, n := range result.AddedCookies {
		fmt.Fprintf(out, "  [+] cookie %s\n", n)
	}
	for _, n := range result.RemovedCookies {
		fmt.Fprintf(out, "  [-] cookie %s\n", n)
	}

	t := newTable(out)
	t.SetTitle("Findings Summary")
	t.AppendHeader(table.Row{"Severity", "Previous", "Current", "Change"})
	t.AppendRows([]table.Row{
		{"Critical", p.CriticalCount, c.CriticalCount, formatDelta(result.RiskChange.CriticalDelta)},
		{"High", p.HighCount, c.HighCount, formatDelta(result.RiskChange.HighDelta)},
		{"Medium", p.MediumCount, c.MediumCount, formatDelta(result.RiskChange.MediumDelta)},
		{"Low", p.LowCount, c.LowCount, formatDelta(result.RiskChange.LowDelta)},
		{"Info", p.InfoCount, c.InfoCount, formatDelta(result.RiskChange.InfoDelta)},
	})
	t.AppendFooter(table.Row{"Total", p.TotalFindings, c.TotalFindings, formatDelta(c.TotalFindings - p.TotalFindings)})
	fmt.Fprintln(out)
	t.Render()

	if len(result.NewFindings) > 0 {
		fmt.Fprintf(out, "\nNew Findings (%d):\n", len(result.NewFindings))
		for _, f := range result.NewFindings {
			fmt.Fprintf(out, "  [+] [%s] %s: %s\n", f.SeverityText, f.Title, f.Value)
			if f.Location != "" {
				fmt.Fprintf(out, "      Location: %s\n", f.Location)
			}
		}
	}
	if len(result.ResolvedFindings) > 0 {
		fmt.Fprintf(out, "\nResolved Findings (%d):\n", len(result.ResolvedFindings))
		for _, f := range result.ResolvedFindings {
			fmt.Fprintf(out, "  [-] [%s] %s: %s\n", f.SeverityText, f.Title, f.Value)
		}
	}
	if result.UnchangedCount > 0 {
		fmt.Fprintf(out, "\nUnchanged: %d findings\n", result.UnchangedCount)
	}
	return nil
}

func changedText(changed bool) string {
	if changed {
		return "changed"
	}
	return "unchanged"
}

// formatRiskDirection formats the risk change direction for display.
func formatRiskDirection(direction string) string {
	switch direction {
	case riskDirectionImproved:
		return "IMPROVED (fewer findings)"
	case riskDirectionWorsened:
		return "WORSENED (more findings)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
