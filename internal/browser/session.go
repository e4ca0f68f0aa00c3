package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"

	"github.com/nao1215/pageprobe/internal/log"
	"github.com/nao1215/pageprobe/internal/model"
)

// ErrCloseTimeout is returned by Close when the browser did not exit in time.
var ErrCloseTimeout = errors.New("browser did not close in time")

// Options configure how the browser is launched or reached.
type Options struct {
	// Headless runs Chrome without a window.
	Headless bool
	// ExecPath overrides Chrome discovery.
	ExecPath string
	// RemoteURL connects to a running browser's DevTools websocket instead
	// of launching one.
	RemoteURL string
	// WindowWidth and WindowHeight size the window. Zero keeps Chrome's default.
	WindowWidth  int
	WindowHeight int
	// UserAgent overrides the browser user agent.
	UserAgent string
	// ProxyServer is passed as --proxy-server.
	ProxyServer string
	// NoSandbox disables the Chrome sandbox.
	NoSandbox bool
	// Flags are extra command line switches.
	Flags map[string]interface{}
}

// Session owns one browser process (or remote connection) and its first tab.
type Session struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	logger      *slog.Logger
	remote      bool
}

// NewSession prepares a browser session. Chrome starts lazily on the first
// action; call Start to launch it eagerly and surface launch errors.
func NewSession(parent context.Context, opts Options, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if opts.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(parent, opts.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(parent, allocatorOptions(opts)...)
	}

	ctx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(log.Printf(logger, slog.LevelInfo)),
		chromedp.WithErrorf(log.Printf(logger, slog.LevelError)),
	)

	return &Session{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
		remote:      opts.RemoteURL != "",
	}
}

// allocatorOptions turns Options into exec allocator switches on top of
// chromedp's defaults (which include headless).
func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if !opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false), chromedp.Flag("hide-scrollbars", false))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.WindowWidth > 0 && opts.WindowHeight > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ProxyServer != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.ProxyServer))
	}
	if opts.NoSandbox {
		allocOpts = append(allocOpts, chromedp.NoSandbox)
	}
	for name, value := range opts.Flags {
		allocOpts = append(allocOpts, chromedp.Flag(name, value))
	}
	return allocOpts
}

// Start launches the browser and opens the first tab.
func (s *Session) Start() error {
	if err := chromedp.Run(s.ctx); err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	s.logger.Debug("browser started", "remote", s.remote)
	return nil
}

// Context returns the context of the first tab. Actions run against it
// operate on that tab.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Version asks the browser for its product and user agent. ctx must
// derive from Context.
func (s *Session) Version(ctx context.Context) (*model.BrowserInfo, error) {
	info := &model.BrowserInfo{}
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		info.ProtocolVersion, info.Product, info.Revision, info.UserAgent, info.JSVersion, err = cdpbrowser.GetVersion().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("browser version: %w", err)
	}
	return info, nil
}

// NewTab opens another tab in the same browser.
func (s *Session) NewTab() (context.Context, context.CancelFunc) {
	return chromedp.NewContext(s.ctx)
}

// Close shuts the browser down, waiting at most timeout for a graceful
// exit before the allocator is cancelled. A remote browser is left
// running; only the tab is closed.
func (s *Session) Close(timeout time.Duration) error {
	defer s.allocCancel()

	done := make(chan error, 1)
	go func() {
		if s.remote {
			s.cancel()
			done <- nil
			return
		}
		done <- chromedp.Cancel(s.ctx)
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("close browser: %w", err)
		}
		s.logger.Debug("browser closed")
		return nil
	case <-time.After(timeout):
		s.cancel()
		return ErrCloseTimeout
	}
}
