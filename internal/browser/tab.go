package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/nao1215/pageprobe/internal/intercept"
	"github.com/nao1215/pageprobe/internal/model"
)

// Tab is one browser tab together with the monitor recording its
// requests. Every ctx passed to its methods must derive from Context.
type Tab struct {
	ctx     context.Context
	cancel  context.CancelFunc
	monitor *Monitor
}

// FirstTab returns the session's initial tab with a monitor attached.
// Closing it is a no-op; the tab goes away with the session.
func (s *Session) FirstTab() (*Tab, error) {
	t := &Tab{ctx: s.ctx, cancel: func() {}, monitor: NewMonitor(s.logger)}
	if err := t.monitor.Attach(t.ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// OpenTab opens a new tab in the session's browser with a monitor
// attached.
func (s *Session) OpenTab() (*Tab, error) {
	ctx, cancel := s.NewTab()
	// The first Run creates the target; it must not run under a deadline
	// or the tab would be closed when the deadline passes.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}

	t := &Tab{ctx: ctx, cancel: cancel, monitor: NewMonitor(s.logger)}
	if err := t.monitor.Attach(ctx); err != nil {
		cancel()
		return nil, err
	}
	return t, nil
}

// Context returns the tab context.
func (t *Tab) Context() context.Context { return t.ctx }

// Close closes the tab.
func (t *Tab) Close() { t.cancel() }

// Trace attaches tr to the tab.
func (t *Tab) Trace(tr *Tracer) { tr.Attach(t.ctx) }

// Emulate applies a device preset.
func (t *Tab) Emulate(ctx context.Context, d Device) error { return Emulate(ctx, d) }

// Prepare sets cookies for url and extra request headers.
func (t *Tab) Prepare(ctx context.Context, url string, cookies, headers map[string]string) error {
	if err := SetCookies(ctx, url, cookies); err != nil {
		return err
	}
	return SetExtraHeaders(ctx, headers)
}

// Intercept enables response interception on the tab. The listener
// lives as long as the tab; only enabling the Fetch domain runs under ctx.
func (t *Tab) Intercept(ctx context.Context, i *intercept.Interceptor) error {
	i.Listen(t.ctx)
	return i.Enable(ctx)
}

// Navigate loads url.
func (t *Tab) Navigate(ctx context.Context, url string) (*network.Response, error) {
	return Navigate(ctx, url)
}

// WaitIdle waits for the network to be quiet.
func (t *Tab) WaitIdle(ctx context.Context, quiet time.Duration) error {
	return t.monitor.WaitIdle(ctx, quiet)
}

// Screenshot captures the tab.
func (t *Tab) Screenshot(ctx context.Context, fullPage bool, quality int) ([]byte, error) {
	return CaptureScreenshot(ctx, fullPage, quality)
}

// Title reads the document title.
func (t *Tab) Title(ctx context.Context) (string, error) { return Title(ctx) }

// Cookies reads the cookies of every URL the tab requested, so cookies
// set by third-party subresources are counted too.
func (t *Tab) Cookies(ctx context.Context) ([]model.Cookie, error) {
	return Cookies(ctx, CookieURLs(t.monitor.Requests())...)
}

// Viewport evaluates the viewport dimensions.
func (t *Tab) Viewport(ctx context.Context) (model.Viewport, error) { return EvaluateViewport(ctx) }

// PrintPDF prints the page.
func (t *Tab) PrintPDF(ctx context.Context) ([]byte, error) { return PrintPDF(ctx) }

// Requests returns the requests recorded so far.
func (t *Tab) Requests() []model.Request { return t.monitor.Requests() }
