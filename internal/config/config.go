package config

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultURL is probed when no positional argument is given.
	DefaultURL = "https://example.com"

	// DefaultTimeout bounds every browser action (navigation, evaluation,
	// screenshot). It matches the default action timeout of common
	// browser automation tools.
	DefaultTimeout = 30 * time.Second

	// DefaultNavigationTimeout bounds navigation plus the network idle wait.
	DefaultNavigationTimeout = 30 * time.Second

	// DefaultLinger is how long the browser stays open after the probe
	// so that a human watching a headful run can inspect the page.
	DefaultLinger = 5 * time.Second

	// DefaultNetworkIdle is the quiet period with no in-flight requests
	// after which the page counts as loaded.
	DefaultNetworkIdle = 500 * time.Millisecond

	// DefaultBatchSize is the number of tabs probed concurrently with --list.
	DefaultBatchSize = 4

	// DefaultWindowWidth and DefaultWindowHeight size the browser window.
	DefaultWindowWidth  = 1200
	DefaultWindowHeight = 800

	// DefaultQuality is the JPEG quality used when Quality is not 100.
	// 100 produces a lossless PNG.
	DefaultQuality = 100

	// DefaultThreshold is the per-pixel color distance tolerated when
	// comparing against a baseline screenshot.
	DefaultThreshold = 0.1

	// DefaultScreenshotName is the fixed screenshot file name.
	DefaultScreenshotName = "screenshot.png"

	// DefaultDumpDir receives the rewritten HTML when interception is on.
	DefaultDumpDir = "debug"

	// AppName is the application name used for XDG directory paths.
	AppName = "pageprobe"
)

// Config holds all configuration options for a probe run.
// It is populated from defaults, the config file, the environment and
// CLI flags (in increasing order of precedence) and passed explicitly.
type Config struct {
	// Targets is the list of URLs to probe.
	Targets []string

	// Headless runs Chrome without a window. The CLI defaults to headless;
	// --headful restores a visible window.
	Headless bool

	// ChromePath overrides the Chrome binary lookup.
	ChromePath string

	// RemoteURL connects to an already running browser through its
	// DevTools websocket URL instead of launching one.
	RemoteURL string

	// ProxyServer is passed to Chrome as --proxy-server.
	ProxyServer string

	// NoSandbox disables the Chrome sandbox, needed in most containers.
	NoSandbox bool

	// WindowWidth and WindowHeight size the browser window.
	WindowWidth  int
	WindowHeight int

	// UserAgent overrides the browser user agent when not empty.
	UserAgent string

	// Device selects a device emulation preset (see browser.Devices).
	Device string

	// Timeout bounds each browser action.
	Timeout time.Duration

	// NavigationTimeout bounds navigation and the network idle wait.
	NavigationTimeout time.Duration

	// NetworkIdle is the quiet period used to detect a loaded page.
	NetworkIdle time.Duration

	// Linger is the pause before the browser is closed.
	Linger time.Duration

	// ScreenshotDir is where the screenshot is written.
	// Empty means the current working directory.
	ScreenshotDir string

	// TimestampedScreenshot names the screenshot screenshot_YYYYmmdd_HHMMSS.
	TimestampedScreenshot bool

	// FullPage captures beyond the viewport.
	FullPage bool

	// Quality is the screenshot quality. 100 writes PNG, lower values JPEG.
	Quality int

	// PDFFile, when set, prints the page to this PDF file.
	PDFFile string

	// BaselineFile, when set, is compared against the new screenshot.
	BaselineFile string

	// Threshold is the pixel matching threshold in [0, 1].
	Threshold float64

	// Intercept enables response interception and banner injection.
	Intercept bool

	// InterceptMatch restricts interception to URLs containing one of
	// these substrings. Empty means the probed URL itself.
	InterceptMatch []string

	// Banner is the text injected into intercepted documents.
	Banner string

	// DumpDir receives modified.html when interception rewrites a page.
	DumpDir string

	// TraceFile, when set, receives every DevTools event as JSON lines.
	TraceFile string

	// KeepGoing records non-critical step failures and continues.
	// The run still exits non-zero when anything failed.
	KeepGoing bool

	// Verbose enables debug logging.
	Verbose bool

	// BatchSize is the number of concurrent tabs when probing a list.
	BatchSize int

	// ConfigFilePath is the path to the configuration file.
	// If empty, .pageprobe is searched in the current and home directories.
	ConfigFilePath string

	// SiteConfigs holds site-specific configurations from the config file.
	SiteConfigs *File

	// JSONReport and MarkdownReport select the report format.
	// They are mutually exclusive; neither means the console summary.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile writes the report to a file instead of stdout.
	ReportFile string

	// DBDir is where the history database lives.
	DBDir string

	// SaveToDB stores each probe in the history database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Headless:          true,
		WindowWidth:       DefaultWindowWidth,
		WindowHeight:      DefaultWindowHeight,
		Timeout:           DefaultTimeout,
		NavigationTimeout: DefaultNavigationTimeout,
		NetworkIdle:       DefaultNetworkIdle,
		Linger:            DefaultLinger,
		Quality:           DefaultQuality,
		Threshold:         DefaultThreshold,
		Banner:            DefaultBanner,
		DumpDir:           DefaultDumpDir,
		BatchSize:         DefaultBatchSize,
	}
}

// DefaultBanner is injected into intercepted documents.
const DefaultBanner = "Modified by pageprobe"

// XDGDataDir returns the XDG data directory for pageprobe.
// On Linux: ~/.local/share/pageprobe
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for pageprobe.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	for _, target := range c.Targets {
		if err := ValidateURL(target); err != nil {
			return err
		}
	}

	if c.Timeout <= 0 || c.NavigationTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Linger < 0 {
		return ErrInvalidLinger
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.Quality < 1 || c.Quality > 100 {
		return ErrInvalidQuality
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return ErrInvalidThreshold
	}
	if c.WindowWidth <= 0 || c.WindowHeight <= 0 {
		return ErrInvalidWindowSize
	}
	return nil
}

// ValidateURL reports whether target is an absolute http(s), file or
// about URL. The URL is otherwise passed to the browser untouched.
func ValidateURL(target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return &InvalidURLError{URL: target, Err: err}
	}
	switch u.Scheme {
	case "http", "https":
		if u.Host == "" {
			return &InvalidURLError{URL: target, Err: ErrMissingHost}
		}
	case "file", "about", "data":
	default:
		return &InvalidURLError{URL: target, Err: ErrUnsupportedScheme}
	}
	return nil
}
