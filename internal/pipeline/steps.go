package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/chromedp/cdproto/network"

	"github.com/nao1215/pageprobe/internal/artifact"
	"github.com/nao1215/pageprobe/internal/audit"
	"github.com/nao1215/pageprobe/internal/browser"
	"github.com/nao1215/pageprobe/internal/config"
	"github.com/nao1215/pageprobe/internal/imagediff"
	"github.com/nao1215/pageprobe/internal/intercept"
	"github.com/nao1215/pageprobe/internal/model"
)

// Page is the browser tab the steps drive. *browser.Tab implements it.
// Every ctx handed to it derives from the tab context.
type Page interface {
	Emulate(ctx context.Context, d browser.Device) error
	Prepare(ctx context.Context, url string, cookies, headers map[string]string) error
	Intercept(ctx context.Context, i *intercept.Interceptor) error
	Navigate(ctx context.Context, url string) (*network.Response, error)
	WaitIdle(ctx context.Context, quiet time.Duration) error
	Screenshot(ctx context.Context, fullPage bool, quality int) ([]byte, error)
	Title(ctx context.Context) (string, error)
	Cookies(ctx context.Context) ([]model.Cookie, error)
	Viewport(ctx context.Context) (model.Viewport, error)
	PrintPDF(ctx context.Context) ([]byte, error)
	Requests() []model.Request
}

// EmulateStep applies a device preset before navigation.
type EmulateStep struct {
	page    Page
	device  browser.Device
	timeout time.Duration
}

// NewEmulateStep creates an EmulateStep.
func NewEmulateStep(page Page, device browser.Device, timeout time.Duration) *EmulateStep {
	return &EmulateStep{page: page, device: device, timeout: timeout}
}

// Name returns the step name.
func (s *EmulateStep) Name() string { return "emulate" }

// Do executes the step.
func (s *EmulateStep) Do(ctx context.Context, report *model.ProbeReport) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.page.Emulate(ctx, s.device); err != nil {
		return err
	}
	report.Device = s.device.Name
	return nil
}

// PrepareStep sets site cookies and extra headers before navigation.
type PrepareStep struct {
	page    Page
	cookies map[string]string
	headers map[string]string
	timeout time.Duration
}

// NewPrepareStep creates a PrepareStep.
func NewPrepareStep(page Page, cookies, headers map[string]string, timeout time.Duration) *PrepareStep {
	return &PrepareStep{page: page, cookies: cookies, headers: headers, timeout: timeout}
}

// Name returns the step name.
func (s *PrepareStep) Name() string { return "prepare" }

// Do executes the step.
func (s *PrepareStep) Do(ctx context.Context, report *model.ProbeReport) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.page.Prepare(ctx, report.URL, s.cookies, s.headers)
}

// InterceptStep enables response interception before navigation.
type InterceptStep struct {
	page        Page
	interceptor *intercept.Interceptor
	timeout     time.Duration
}

// NewInterceptStep creates an InterceptStep.
func NewInterceptStep(page Page, i *intercept.Interceptor, timeout time.Duration) *InterceptStep {
	return &InterceptStep{page: page, interceptor: i, timeout: timeout}
}

// Name returns the step name.
func (s *InterceptStep) Name() string { return "intercept" }

// Do executes the step.
func (s *InterceptStep) Do(ctx context.Context, report *model.ProbeReport) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.page.Intercept(ctx, s.interceptor); err != nil {
		return err
	}
	report.Interception = &model.Interception{}
	return nil
}

// NavigateStep loads the target URL. It is critical: without a page no
// other step has anything to work on.
type NavigateStep struct {
	page    Page
	timeout time.Duration
}

// NewNavigateStep creates a NavigateStep.
func NewNavigateStep(page Page, timeout time.Duration) *NavigateStep {
	return &NavigateStep{page: page, timeout: timeout}
}

// Name returns the step name.
func (s *NavigateStep) Name() string { return "navigate" }

// Critical implements Critical.
func (s *NavigateStep) Critical() bool { return true }

// Do executes the step.
func (s *NavigateStep) Do(ctx context.Context, report *model.ProbeReport) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.page.Navigate(ctx, report.URL)
	if err != nil {
		return err
	}
	report.FinalURL = report.URL
	if resp == nil {
		return nil
	}
	if resp.URL != "" {
		report.FinalURL = resp.URL
	}
	report.StatusCode = int(resp.Status)
	report.MimeType = resp.MimeType
	if resp.RemoteIPAddress != "" {
		report.RemoteAddress = fmt.Sprintf("%s:%d", resp.RemoteIPAddress, resp.RemotePort)
	}
	return nil
}

// WaitStep waits until the network has been idle for a quiet period.
type WaitStep struct {
	page    Page
	quiet   time.Duration
	timeout time.Duration
}

// NewWaitStep creates a WaitStep.
func NewWaitStep(page Page, quiet, timeout time.Duration) *WaitStep {
	return &WaitStep{page: page, quiet: quiet, timeout: timeout}
}

// Name returns the step name.
func (s *WaitStep) Name() string { return "wait" }

// Do executes the step.
func (s *WaitStep) Do(ctx context.Context, _ *model.ProbeReport) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.page.WaitIdle(ctx, s.quiet)
}

// NetworkStep copies the observed requests and interception counters into
// the report.
type NetworkStep struct {
	page        Page
	interceptor *intercept.Interceptor
}

// NewNetworkStep creates a NetworkStep. interceptor may be nil.
func NewNetworkStep(page Page, interceptor *intercept.Interceptor) *NetworkStep {
	return &NetworkStep{page: page, interceptor: interceptor}
}

// Name returns the step name.
func (s *NetworkStep) Name() string { return "network" }

// Do executes the step.
func (s *NetworkStep) Do(_ context.Context, report *model.ProbeReport) error {
	report.Requests = s.page.Requests()
	if s.interceptor != nil {
		s.interceptor.Wait()
		stats := s.interceptor.Stats()
		report.Interception = &stats
	}
	return nil
}

// ScreenshotStep captures the page and writes the image file.
type ScreenshotStep struct {
	page        Page
	dir         string
	timestamped bool
	fullPage    bool
	quality     int
	timeout     time.Duration
	now         func() time.Time
}

// NewScreenshotStep creates a ScreenshotStep writing into dir.
func NewScreenshotStep(page Page, dir string, timestamped, fullPage bool, quality int, timeout time.Duration) *ScreenshotStep {
	return &ScreenshotStep{
		page:        page,
		dir:         dir,
		timestamped: timestamped,
		fullPage:    fullPage,
		quality:     quality,
		timeout:     timeout,
		now:         time.Now,
	}
}

// Name returns the step name.
func (s *ScreenshotStep) Name() string { return "screenshot" }

// Do executes the step.
func (s *ScreenshotStep) Do(ctx context.Context, report *model.ProbeReport) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := s.page.Screenshot(ctx, s.fullPage, s.quality)
	if err != nil {
		return err
	}

	format := artifact.FormatForQuality(s.quality)
	path, err := artifact.ScreenshotName(s.dir, s.timestamped, s.now(), format)
	if err != nil {
		return err
	}
	path = artifact.DeviceScreenshotName(path, report.Device)

	size, err := artifact.WriteFile(path, data)
	if err != nil {
		return err
	}

	shot := &model.Screenshot{
		Path:     path,
		Size:     size,
		Format:   format,
		FullPage: s.fullPage,
		SHA3:     artifact.Digest(data),
	}
	if w, h, _, err := artifact.ImageDimensions(data); err == nil {
		shot.Width, shot.Height = w, h
	}
	report.Screenshot = shot
	return nil
}

// TitleStep reads the document title.
type TitleStep struct {
	page    Page
	timeout time.Duration
}

// NewTitleStep creates a TitleStep.
func NewTitleStep(page Page, timeout time.Duration) *TitleStep {
	return &TitleStep{page: page, timeout: timeout}
}

// Name returns the step name.
func (s *TitleStep) Name() string { return "title" }

// Do executes the step.
func (s *TitleStep) Do(ctx context.Context, report *model.ProbeReport) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	title, err := s.page.Title(ctx)
	if err != nil {
		return err
	}
	report.Title = title
	return nil
}

// CookiesStep reads the cookies visible to the page.
type CookiesStep struct {
	page    Page
	timeout time.Duration
}

// NewCookiesStep creates a CookiesStep.
func NewCookiesStep(page Page, timeout time.Duration) *CookiesStep {
	return &CookiesStep{page: page, timeout: timeout}
}

// Name returns the step name.
func (s *CookiesStep) Name() string { return "cookies" }

// Do executes the step.
func (s *CookiesStep) Do(ctx context.Context, report *model.ProbeReport) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cookies, err := s.page.Cookies(ctx)
	if err != nil {
		return err
	}
	report.Cookies = cookies
	return nil
}

// ViewportStep evaluates the viewport dimensions in the page.
type ViewportStep struct {
	page    Page
	timeout time.Duration
}

// NewViewportStep creates a ViewportStep.
func NewViewportStep(page Page, timeout time.Duration) *ViewportStep {
	return &ViewportStep{page: page, timeout: timeout}
}

// Name returns the step name.
func (s *ViewportStep) Name() string { return "viewport" }

// Do executes the step.
func (s *ViewportStep) Do(ctx context.Context, report *model.ProbeReport) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	vp, err := s.page.Viewport(ctx)
	if err != nil {
		return err
	}
	report.Viewport = &vp
	return nil
}

// PDFStep prints the page to a PDF file.
type PDFStep struct {
	page    Page
	path    string
	timeout time.Duration
}

// NewPDFStep creates a PDFStep.
func NewPDFStep(page Page, path string, timeout time.Duration) *PDFStep {
	return &PDFStep{page: page, path: path, timeout: timeout}
}

// Name returns the step name.
func (s *PDFStep) Name() string { return "pdf" }

// Do executes the step. PDF printing is only supported by headless Chrome.
func (s *PDFStep) Do(ctx context.Context, report *model.ProbeReport) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := s.page.PrintPDF(ctx)
	if err != nil {
		return err
	}
	path, err := artifact.AbsPath(s.path)
	if err != nil {
		return err
	}
	size, err := artifact.WriteFile(path, data)
	if err != nil {
		return err
	}

	pages, err := artifact.PDFPages(data)
	if err != nil {
		return err
	}
	report.PDF = &model.PDFInfo{Path: path, Size: size, Pages: pages}
	return nil
}

// ErrNoScreenshot is returned by BaselineStep when no screenshot was taken.
var ErrNoScreenshot = errors.New("no screenshot to compare")

// ErrNoBaseline is returned by BaselineStep when the baseline file is missing.
var ErrNoBaseline = errors.New("baseline image not found")

// BaselineStep compares the screenshot against a baseline image.
// Differences are findings, not errors.
type BaselineStep struct {
	path      string
	threshold float64
}

// NewBaselineStep creates a BaselineStep.
func NewBaselineStep(path string, threshold float64) *BaselineStep {
	return &BaselineStep{path: path, threshold: threshold}
}

// Name returns the step name.
func (s *BaselineStep) Name() string { return "baseline" }

// Do executes the step.
func (s *BaselineStep) Do(_ context.Context, report *model.ProbeReport) error {
	if report.Screenshot == nil {
		return ErrNoScreenshot
	}
	if !artifact.Exists(s.path) {
		return fmt.Errorf("%w: %s", ErrNoBaseline, s.path)
	}
	current, err := os.ReadFile(report.Screenshot.Path)
	if err != nil {
		return fmt.Errorf("read screenshot: %w", err)
	}

	diff := &model.BaselineDiff{Path: s.path, Threshold: s.threshold}
	res, err := imagediff.CompareFile(s.path, current, s.threshold)
	switch {
	case errors.Is(err, imagediff.ErrSizeMismatch):
		diff.SizeMismatch = true
	case err != nil:
		return err
	default:
		diff.DiffPixels = res.DiffPixels
		diff.TotalPixels = res.TotalPixels
	}
	report.Baseline = diff
	return nil
}

// AuditStep runs the audit checks and adds their findings to the report.
type AuditStep struct {
	analyzer *audit.Analyzer
	logger   *slog.Logger
}

// NewAuditStep creates an AuditStep.
func NewAuditStep(logger *slog.Logger) *AuditStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditStep{analyzer: audit.NewAnalyzer(logger), logger: logger}
}

// Name returns the step name.
func (s *AuditStep) Name() string { return "audit" }

// Do executes the step.
func (s *AuditStep) Do(ctx context.Context, report *model.ProbeReport) error {
	findings, err := s.analyzer.Analyze(ctx, report)
	if err != nil {
		return err
	}
	for _, f := range findings {
		report.AddFinding(f)
	}
	s.logger.Info("audit completed", "findings_count", len(findings))
	return nil
}

// LingerStep keeps the page open for a while before the browser closes.
type LingerStep struct {
	d time.Duration
}

// NewLingerStep creates a LingerStep.
func NewLingerStep(d time.Duration) *LingerStep {
	return &LingerStep{d: d}
}

// Name returns the step name.
func (s *LingerStep) Name() string { return "linger" }

// Duration returns how long the step waits.
func (s *LingerStep) Duration() time.Duration { return s.d }

// Do waits for the duration. Cancellation ends the wait without error;
// a deadline does not.
func (s *LingerStep) Do(ctx context.Context, _ *model.ProbeReport) error {
	timer := time.NewTimer(s.d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		// An interrupt only cuts the wait short; the page was already probed.
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil
		}
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Target holds the settings for one URL after site overrides are applied.
type Target struct {
	URL      string
	Device   *browser.Device
	Cookies  map[string]string
	Headers  map[string]string
	Banner   string
	FullPage bool
}

// ResolveTarget merges the config file's site settings for url over cfg.
// A device named on the command line wins over the site's device.
func ResolveTarget(cfg *config.Config, url string) (Target, error) {
	t := Target{URL: url, Banner: cfg.Banner, FullPage: cfg.FullPage}

	var site config.SiteConfig
	if cfg.SiteConfigs != nil {
		site = cfg.SiteConfigs.GetSiteConfig(url)
	}

	deviceName := cfg.Device
	if deviceName == "" {
		deviceName = site.Device
	}
	if deviceName != "" {
		d, err := browser.LookupDevice(deviceName)
		if err != nil {
			return Target{}, err
		}
		t.Device = &d
	}

	if pairs := config.ParseCookies(site.Cookie); len(pairs) > 0 {
		t.Cookies = make(map[string]string, len(pairs))
		for _, p := range pairs {
			t.Cookies[p.Name] = p.Value
		}
	}
	t.Headers = site.Headers
	if site.Banner != "" && cfg.Banner == config.DefaultBanner {
		t.Banner = site.Banner
	}
	if site.FullPage {
		t.FullPage = true
	}
	return t, nil
}

// DefaultPipeline creates the standard probe pipeline for target:
//
//	[emulate] → [prepare] → [intercept] → navigate → wait → network →
//	screenshot → title → cookies → viewport → [pdf] → [baseline] →
//	audit → [linger]
func DefaultPipeline(cfg *config.Config, target Target, page Page, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := New(append([]Option{WithLogger(logger), WithContinueOnError(cfg.KeepGoing)}, opts...)...)

	if target.Device != nil {
		p.AddStep(NewEmulateStep(page, *target.Device, cfg.Timeout))
	}
	if len(target.Cookies) > 0 || len(target.Headers) > 0 {
		p.AddStep(NewPrepareStep(page, target.Cookies, target.Headers, cfg.Timeout))
	}

	var interceptor *intercept.Interceptor
	if cfg.Intercept {
		matches := cfg.InterceptMatch
		if len(matches) == 0 {
			matches = []string{target.URL}
		}
		interceptor = intercept.New(
			intercept.WithMatches(matches...),
			intercept.WithBanner(target.Banner),
			intercept.WithDumpDir(cfg.DumpDir),
			intercept.WithLogger(logger),
		)
		p.AddStep(NewInterceptStep(page, interceptor, cfg.Timeout))
	}

	p.AddSteps(
		NewNavigateStep(page, cfg.NavigationTimeout),
		NewWaitStep(page, cfg.NetworkIdle, cfg.NavigationTimeout),
		NewNetworkStep(page, interceptor),
		NewScreenshotStep(page, cfg.ScreenshotDir, cfg.TimestampedScreenshot, target.FullPage, cfg.Quality, cfg.Timeout),
		NewTitleStep(page, cfg.Timeout),
		NewCookiesStep(page, cfg.Timeout),
		NewViewportStep(page, cfg.Timeout),
	)
	if cfg.PDFFile != "" {
		p.AddStep(NewPDFStep(page, cfg.PDFFile, cfg.Timeout))
	}
	if cfg.BaselineFile != "" {
		p.AddStep(NewBaselineStep(cfg.BaselineFile, cfg.Threshold))
	}
	p.AddStep(NewAuditStep(logger))
	if cfg.Linger > 0 {
		p.AddStep(NewLingerStep(cfg.Linger))
	}
	return p
}
