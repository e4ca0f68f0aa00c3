package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nao1215/pageprobe/internal/artifact"
	"github.com/nao1215/pageprobe/internal/browser"
	"github.com/nao1215/pageprobe/internal/config"
	"github.com/nao1215/pageprobe/internal/database"
	plog "github.com/nao1215/pageprobe/internal/log"
	"github.com/nao1215/pageprobe/internal/model"
	"github.com/nao1215/pageprobe/internal/pipeline"
	"github.com/nao1215/pageprobe/internal/report"
)

const (
	// closeTimeout bounds the graceful browser shutdown.
	closeTimeout = 10 * time.Second
	// versionTimeout bounds the browser version query.
	versionTimeout = 5 * time.Second
)

// errProbeFailed is returned when at least one probe did not complete.
var errProbeFailed = errors.New("probe failed")

// NewProbeCmd creates the probe command.
func NewProbeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe [url]",
		Short: "Open a URL in Chrome, take a screenshot and report page details",
		Long: `Probe launches Chrome, navigates to the URL and waits until the network
is idle. It then saves a screenshot and prints the page title, the number
of cookies and the viewport (width, height and device scale factor).
The browser stays open for --linger before it is closed.

Without an argument https://example.com is probed.

By default the first failing step stops the probe. With --keep-going only a
failed navigation stops it; other failures are reported and the probe goes
on. Either way the exit status is non-zero when anything failed.

Examples:
  # Probe the default URL
  pageprobe probe

  # Probe a URL with a visible browser window
  pageprobe probe --headful https://go.dev

  # Emulate a phone and capture the full page
  pageprobe probe --device iPhone13 --full-page https://go.dev

  # Compare against a baseline screenshot
  pageprobe probe --baseline baseline.png https://example.com

  # Probe every URL listed in a file, four tabs at a time
  pageprobe probe --list urls.txt --batch 4

  # Write a Markdown report
  pageprobe probe --markdown -o report.md https://example.com

Environment variables:
  PAGEPROBE_CHROME_PATH, PAGEPROBE_REMOTE_URL, PAGEPROBE_PROXY,
  PAGEPROBE_HEADLESS, PAGEPROBE_NO_SANDBOX and PAGEPROBE_DB_DIR are used
  unless the matching flag is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runProbeCmd,
	}

	f := cmd.Flags()

	// Browser
	f.Bool("headful", false, "Show the browser window instead of running headless")
	f.String("chrome-path", "", "Path to the Chrome binary")
	f.String("remote-url", "", "DevTools websocket URL of a running browser to use instead of launching one")
	f.String("proxy", "", "Proxy server passed to Chrome (e.g. socks5://127.0.0.1:1080)")
	f.Bool("no-sandbox", false, "Disable the Chrome sandbox (needed in most containers)")
	f.String("window-size", fmt.Sprintf("%d,%d", config.DefaultWindowWidth, config.DefaultWindowHeight),
		"Browser window size as width,height")
	f.String("user-agent", "", "Override the browser user agent")
	f.StringP("device", "D", "", "Emulate a device preset (see 'pageprobe devices')")

	// Timing
	f.DurationP("timeout", "t", config.DefaultTimeout, "Timeout for each browser action")
	f.Duration("nav-timeout", config.DefaultNavigationTimeout, "Timeout for navigation and the network idle wait")
	f.Duration("network-idle", config.DefaultNetworkIdle, "Quiet period without requests after which the page counts as loaded")
	f.Duration("linger", config.DefaultLinger, "How long the browser stays open after the probe")

	// Screenshot
	f.StringP("screenshot-dir", "d", "", "Directory for the screenshot (default: working directory)")
	f.Bool("timestamp", false, "Name the screenshot screenshot_YYYYmmdd_HHMMSS")
	f.Bool("full-page", false, "Capture the whole document instead of the viewport")
	f.IntP("quality", "q", config.DefaultQuality, "Screenshot quality; 100 writes PNG, lower values JPEG")

	// Extra artifacts
	f.String("pdf", "", "Print the page to this PDF file")
	f.String("baseline", "", "Compare the screenshot with this baseline image")
	f.Float64("threshold", config.DefaultThreshold, "Per-pixel color distance tolerated by --baseline (0..1)")
	f.Bool("intercept", false, "Inject a banner into HTML documents of the page")
	f.StringSlice("match", nil, "Only intercept URLs containing one of these substrings (default: the probed URL)")
	f.String("banner", config.DefaultBanner, "Banner text injected by --intercept")
	f.String("dump-dir", config.DefaultDumpDir, "Directory receiving modified.html when --intercept rewrites a page")
	f.String("trace", "", "Write every DevTools event to this file as JSON lines")

	// Targets
	f.StringP("list", "l", "", "File with one URL per line to probe")
	f.IntP("batch", "b", config.DefaultBatchSize, "Number of tabs probed concurrently with --list")

	// Behavior
	f.BoolP("keep-going", "k", false, "Record failed steps and continue (navigation failures still stop the probe)")
	f.StringP("config", "c", "", "Configuration file path (default: .pageprobe in current or home directory)")
	f.Bool("no-history", false, "Do not store the probe in the history database")
	f.String("db-dir", "", "History database directory (default: XDG data directory)")

	// Report
	f.BoolP("json", "j", false, "Output a JSON report (mutually exclusive with --markdown)")
	f.BoolP("markdown", "m", false, "Output a Markdown report (mutually exclusive with --json)")
	f.StringP("output", "o", "", "Write the report to this file (creates directories if needed)")

	return cmd
}

func runProbeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if cfg.Device != "" {
		if _, err := browser.LookupDevice(cfg.Device); err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
	}

	logger := newLogger(cmd, cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Progress lines must not end up inside a JSON or Markdown report
	// written to stdout.
	progress := cmd.OutOrStdout()
	if (cfg.JSONReport || cfg.MarkdownReport) && cfg.ReportFile == "" {
		progress = cmd.ErrOrStderr()
	}

	return runProbe(ctx, cfg, logger, progress, cmd.OutOrStdout())
}

// newLogger creates the secure logger on stderr in the format chosen by
// --log-json.
func newLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	if jsonLogs, _ := cmd.Flags().GetBool("log-json"); jsonLogs { //nolint:errcheck // missing flag means text logs
		return plog.NewSecureJSONLogger(cmd.ErrOrStderr(), verbose)
	}
	return plog.NewSecureLogger(cmd.ErrOrStderr(), verbose)
}

// flagReader reads flags into config fields and keeps the first error.
type flagReader struct {
	flags *pflag.FlagSet
	err   error
}

func (r *flagReader) set(name string, get func() error) {
	if r.err != nil {
		return
	}
	if err := get(); err != nil {
		r.err = fmt.Errorf("flag --%s: %w", name, err)
	}
}

func (r *flagReader) boolVar(name string, dst *bool) {
	r.set(name, func() (err error) { *dst, err = r.flags.GetBool(name); return })
}

func (r *flagReader) stringVar(name string, dst *string) {
	r.set(name, func() (err error) { *dst, err = r.flags.GetString(name); return })
}

func (r *flagReader) intVar(name string, dst *int) {
	r.set(name, func() (err error) { *dst, err = r.flags.GetInt(name); return })
}

func (r *flagReader) floatVar(name string, dst *float64) {
	r.set(name, func() (err error) { *dst, err = r.flags.GetFloat64(name); return })
}

func (r *flagReader) durationVar(name string, dst *time.Duration) {
	r.set(name, func() (err error) { *dst, err = r.flags.GetDuration(name); return })
}

func (r *flagReader) stringsVar(name string, dst *[]string) {
	r.set(name, func() (err error) { *dst, err = r.flags.GetStringSlice(name); return })
}

// changed reads name only when it was given on the command line, so that
// environment values survive flag defaults.
func (r *flagReader) changed(name string, read func()) {
	if r.flags.Changed(name) {
		read()
	}
}

// buildConfig creates a Config from defaults, the config file, the
// environment and flags, in increasing order of precedence.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.DBDir = config.XDGDataDir()
	cfg.SaveToDB = true

	env, err := config.LoadEnv()
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(env)

	r := &flagReader{flags: cmd.Flags()}

	r.changed("headful", func() {
		var headful bool
		r.boolVar("headful", &headful)
		cfg.Headless = !headful
	})
	r.changed("chrome-path", func() { r.stringVar("chrome-path", &cfg.ChromePath) })
	r.changed("remote-url", func() { r.stringVar("remote-url", &cfg.RemoteURL) })
	r.changed("proxy", func() { r.stringVar("proxy", &cfg.ProxyServer) })
	r.changed("no-sandbox", func() { r.boolVar("no-sandbox", &cfg.NoSandbox) })
	r.changed("db-dir", func() { r.stringVar("db-dir", &cfg.DBDir) })

	var windowSize string
	r.stringVar("window-size", &windowSize)
	r.stringVar("user-agent", &cfg.UserAgent)
	r.stringVar("device", &cfg.Device)

	r.durationVar("timeout", &cfg.Timeout)
	r.durationVar("nav-timeout", &cfg.NavigationTimeout)
	r.durationVar("network-idle", &cfg.NetworkIdle)
	r.durationVar("linger", &cfg.Linger)

	r.stringVar("screenshot-dir", &cfg.ScreenshotDir)
	r.boolVar("timestamp", &cfg.TimestampedScreenshot)
	r.boolVar("full-page", &cfg.FullPage)
	r.intVar("quality", &cfg.Quality)

	r.stringVar("pdf", &cfg.PDFFile)
	r.stringVar("baseline", &cfg.BaselineFile)
	r.floatVar("threshold", &cfg.Threshold)
	r.boolVar("intercept", &cfg.Intercept)
	r.stringsVar("match", &cfg.InterceptMatch)
	r.stringVar("banner", &cfg.Banner)
	r.stringVar("dump-dir", &cfg.DumpDir)
	r.stringVar("trace", &cfg.TraceFile)

	var listFile string
	r.stringVar("list", &listFile)
	r.intVar("batch", &cfg.BatchSize)

	r.boolVar("keep-going", &cfg.KeepGoing)
	r.stringVar("config", &cfg.ConfigFilePath)

	var noHistory bool
	r.boolVar("no-history", &noHistory)
	cfg.SaveToDB = !noHistory

	r.boolVar("json", &cfg.JSONReport)
	r.boolVar("markdown", &cfg.MarkdownReport)
	r.stringVar("output", &cfg.ReportFile)

	if r.err != nil {
		return nil, r.err
	}

	cfg.Verbose = verboseFlag(cmd)

	if cfg.WindowWidth, cfg.WindowHeight, err = parseWindowSize(windowSize); err != nil {
		return nil, err
	}

	if cfg.SiteConfigs, err = loadSiteConfigs(cfg.ConfigFilePath); err != nil {
		return nil, err
	}

	cfg.Targets, err = collectTargets(args, listFile)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// verboseFlag retrieves the verbose flag from the command or its parent.
func verboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// parseWindowSize parses "width,height". Zero or negative values are
// rejected by Config.Validate.
func parseWindowSize(s string) (int, int, error) {
	w, h, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q (want width,height)", config.ErrInvalidWindowSize, s)
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", config.ErrInvalidWindowSize, s)
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", config.ErrInvalidWindowSize, s)
	}
	return width, height, nil
}

// loadSiteConfigs loads the config file. A missing file is an error only
// when its path was given explicitly.
func loadSiteConfigs(path string) (*config.File, error) {
	found := config.FindConfigFile(path)
	switch {
	case found != "":
		cf, err := config.LoadConfigFile(found)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", found, err)
		}
		return cf, nil
	case path != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, path)
	default:
		return &config.File{Sites: make(map[string]config.SiteConfig)}, nil
	}
}

// collectTargets returns the positional URL followed by the URLs of the
// list file. Without either the default URL is probed.
func collectTargets(args []string, listFile string) ([]string, error) {
	targets := append([]string{}, args...)
	if listFile != "" {
		listed, err := readTargetList(listFile)
		if err != nil {
			return nil, err
		}
		if len(listed) == 0 && len(targets) == 0 {
			return nil, fmt.Errorf("%w: %s lists no URLs", config.ErrNoTarget, listFile)
		}
		targets = append(targets, listed...)
	}
	if len(targets) == 0 {
		targets = []string{config.DefaultURL}
	}
	return targets, nil
}

// readTargetList reads one URL per line, skipping blank lines and lines
// starting with '#'.
func readTargetList(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // user-provided list file
	if err != nil {
		return nil, fmt.Errorf("failed to open list file: %w", err)
	}
	defer f.Close()

	var targets []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		targets = append(targets, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read list file: %w", err)
	}
	return targets, nil
}

func browserOptions(cfg *config.Config) browser.Options {
	return browser.Options{
		Headless:     cfg.Headless,
		ExecPath:     cfg.ChromePath,
		RemoteURL:    cfg.RemoteURL,
		WindowWidth:  cfg.WindowWidth,
		WindowHeight: cfg.WindowHeight,
		UserAgent:    cfg.UserAgent,
		ProxyServer:  cfg.ProxyServer,
		NoSandbox:    cfg.NoSandbox,
	}
}

// runProbe launches the browser, probes every target and writes the
// reports. progress receives the status lines, out the report.
func runProbe(ctx context.Context, cfg *config.Config, logger *slog.Logger, progress, out io.Writer) error {
	var db *database.ProbeDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer db.Close()
		logger.Debug("history database opened", "path", db.Path())
	}

	batch := len(cfg.Targets) > 1
	con := newConsole(progress, batch, cfg.Linger)

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	if batch {
		con.printf("", "Target URLs: %d (concurrency: %d)", len(cfg.Targets), cfg.BatchSize)
	} else {
		con.printf("", "Target URL: %s", cfg.Targets[0])
	}
	con.printf("", "Working directory: %s", cwd)

	var tracer *browser.Tracer
	if cfg.TraceFile != "" {
		f, err := createFile(cfg.TraceFile)
		if err != nil {
			return fmt.Errorf("failed to create trace file: %w", err)
		}
		defer f.Close()
		tracer = browser.NewTracer(f)
	}

	session := browser.NewSession(ctx, browserOptions(cfg), logger)
	if err := session.Start(); err != nil {
		_ = session.Close(closeTimeout) //nolint:errcheck // launch already failed
		con.printf("", "❌ Failed: %v", err)
		return err
	}

	versionCtx, versionCancel := context.WithTimeout(session.Context(), versionTimeout)
	info, err := session.Version(versionCtx)
	versionCancel()
	if err != nil {
		logger.Warn("could not read browser version", "error", err)
	}

	factory := probeFactory(cfg, logger, con, batch)
	var reports []*model.ProbeReport
	if batch {
		reports = probeBatch(ctx, cfg, session, tracer, factory, logger)
	} else {
		reports = []*model.ProbeReport{probeSingle(session, tracer, factory, con, cfg.Targets[0])}
	}

	if err := session.Close(closeTimeout); err != nil {
		logger.Warn("browser did not close cleanly", "error", err)
	}
	con.printf("", "Browser closed")

	if tracer != nil {
		if err := tracer.Err(); err != nil {
			logger.Warn("trace incomplete", "file", cfg.TraceFile, "error", err)
		}
		con.printf("", "Trace: %d event(s) written to %s", tracer.Events(), cfg.TraceFile)
	}

	for _, r := range reports {
		if r != nil {
			r.Browser = info
			verifyArtifacts(r, con)
		}
	}

	if err := writeReports(cfg, reports, out); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	saveHistory(ctx, db, reports, logger)

	return probeError(cfg.Targets, reports)
}

// probeFactory builds the pipeline of each target. In batch mode every
// target writes its artifacts into its own directory.
func probeFactory(cfg *config.Config, logger *slog.Logger, con *console, perTarget bool) pipeline.Factory {
	return func(url string, page pipeline.Page) (*pipeline.Pipeline, error) {
		c := cfg
		if perTarget {
			c = targetConfig(cfg, url)
		}
		target, err := pipeline.ResolveTarget(c, url)
		if err != nil {
			con.printf(url, "❌ Failed: %v", err)
			return nil, err
		}
		return pipeline.DefaultPipeline(c, target, page, logger, pipeline.WithHook(con.hook(url))), nil
	}
}

// targetConfig returns a copy of cfg whose artifact paths live under a
// directory named after url.
func targetConfig(cfg *config.Config, url string) *config.Config {
	c := *cfg
	dir := artifact.TargetDir(cfg.ScreenshotDir, url)
	c.ScreenshotDir = dir
	if cfg.PDFFile != "" {
		c.PDFFile = filepath.Join(dir, filepath.Base(cfg.PDFFile))
	}
	if cfg.DumpDir != "" {
		c.DumpDir = filepath.Join(dir, filepath.Base(cfg.DumpDir))
	}
	return &c
}

// probeSingle probes url in the first tab of the session.
func probeSingle(session *browser.Session, tracer *browser.Tracer, factory pipeline.Factory, con *console, url string) *model.ProbeReport {
	rep := model.NewProbeReport(url)

	tab, err := session.FirstTab()
	if err != nil {
		rep.SetError(err)
		con.printf("", "❌ Failed: %v", err)
		return rep
	}
	defer tab.Close()
	if tracer != nil {
		tab.Trace(tracer)
	}

	p, err := factory(url, tab)
	if err != nil {
		rep.SetError(err)
		return rep
	}
	// Failures are recorded in the report and printed by the hook.
	_ = p.Execute(tab.Context(), rep) //nolint:errcheck // see rep.Failed
	return rep
}

// probeBatch probes every target in its own tab.
func probeBatch(ctx context.Context, cfg *config.Config, session *browser.Session, tracer *browser.Tracer, factory pipeline.Factory, logger *slog.Logger) []*model.ProbeReport {
	open := func() (pipeline.Tab, error) {
		tab, err := session.OpenTab()
		if err != nil {
			return nil, err
		}
		if tracer != nil {
			tab.Trace(tracer)
		}
		return tab, nil
	}

	bp := pipeline.NewBatchProcessor(open, factory,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)
	reports, err := bp.ProcessBatch(ctx, cfg.Targets)
	if err != nil {
		logger.Warn("batch stopped early", "error", err)
	}
	return reports
}

// verifyArtifacts checks that the screenshot is still on disk after the
// browser is gone.
func verifyArtifacts(r *model.ProbeReport, con *console) {
	if r.Screenshot == nil {
		return
	}
	if _, err := artifact.Verify(r.Screenshot.Path); err != nil {
		r.AddStepError("verify", err)
		con.printf(r.URL, "❌ Failed: screenshot missing after close: %v", err)
	}
}

// createFile creates path and its parent directories. The file is only
// readable by the owner because reports and traces may hold cookies.
func createFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // user-provided output path
}

// writeReports writes the report of every completed probe in the format
// selected by --json or --markdown, to --output or out. With --output the
// plain summary is still printed to out.
func writeReports(cfg *config.Config, reports []*model.ProbeReport, out io.Writer) error {
	completed := make([]*model.ProbeReport, 0, len(reports))
	for _, r := range reports {
		if r != nil {
			completed = append(completed, r)
		}
	}
	if len(completed) == 0 {
		return nil
	}

	w := out
	var summary report.Writer
	if cfg.ReportFile != "" {
		f, err := createFile(cfg.ReportFile)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
		summary = report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose))
	}

	var writer report.Writer
	switch {
	case cfg.JSONReport && len(completed) > 1:
		if _, err := report.NewJSONWriter(w, report.WithPrettyPrint()).WriteAll(completed); err != nil {
			return err
		}
		writer = summary
	case cfg.JSONReport:
		writer = report.NewFullJSONWriter(w, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		writer = report.NewMarkdownWriter(w)
	default:
		writer = report.NewSimpleWriter(w, report.WithVerbose(cfg.Verbose))
	}
	if writer == nil {
		return nil
	}
	if summary != nil && writer != summary {
		writer = report.NewMultiWriter(writer, summary)
	}

	for _, r := range completed {
		if _, err := writer.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// saveHistory stores every completed probe. A failing database never
// fails the probe.
func saveHistory(ctx context.Context, db *database.ProbeDB, reports []*model.ProbeReport, logger *slog.Logger) {
	if db == nil {
		return
	}
	// The probe context may already be cancelled by a signal; the run is
	// still worth keeping.
	ctx = context.WithoutCancel(ctx)
	for _, r := range reports {
		if r == nil {
			continue
		}
		id, err := db.SaveProbeReport(ctx, r)
		if err != nil {
			logger.Error("failed to save probe report", "url", r.URL, "error", err)
			continue
		}
		logger.Info("probe report saved", "url", r.URL, "run_id", id)
	}
}

// probeError returns nil when every target was probed successfully.
func probeError(targets []string, reports []*model.ProbeReport) error {
	var failed []string
	for i, url := range targets {
		if i >= len(reports) || reports[i] == nil || reports[i].Failed() {
			failed = append(failed, url)
		}
	}
	switch len(failed) {
	case 0:
		return nil
	case 1:
		if len(reports) == 1 && reports[0] != nil && reports[0].ErrorMessage != "" {
			return fmt.Errorf("%w: %s: %s", errProbeFailed, failed[0], reports[0].ErrorMessage)
		}
		return fmt.Errorf("%w: %s", errProbeFailed, failed[0])
	default:
		return fmt.Errorf("%w: %d of %d URLs: %s", errProbeFailed, len(failed), len(targets), strings.Join(failed, ", "))
	}
}
