package intercept

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/nao1215/pageprobe/internal/artifact"
	"github.com/nao1215/pageprobe/internal/model"
)

// DumpFileName is the name of the rewritten document inside the dump dir.
const DumpFileName = "modified.html"

// Action is what the interceptor does with a paused response.
type Action int

const (
	// ActionContinue lets the original response through.
	ActionContinue Action = iota
	// ActionRewrite fetches the body and fulfills with an injected banner.
	ActionRewrite
)

// String returns the action name used in logs.
func (a Action) String() string {
	if a == ActionRewrite {
		return "rewrite"
	}
	return "continue"
}

// Interceptor rewrites matching HTML documents.
type Interceptor struct {
	matches []string
	banner  string
	dumpDir string
	logger  *slog.Logger

	mu    sync.Mutex
	stats model.Interception
	wg    sync.WaitGroup
}

// Option configures an Interceptor.
type Option func(*Interceptor)

// WithMatches limits rewriting to URLs containing one of the substrings.
// Without matches every document is a candidate.
func WithMatches(matches ...string) Option {
	return func(i *Interceptor) {
		for _, m := range matches {
			if m = strings.TrimSpace(m); m != "" {
				i.matches = append(i.matches, m)
			}
		}
	}
}

// WithBanner sets the banner text.
func WithBanner(text string) Option {
	return func(i *Interceptor) {
		i.banner = text
	}
}

// WithDumpDir saves the last rewritten document to dir/modified.html.
func WithDumpDir(dir string) Option {
	return func(i *Interceptor) {
		i.dumpDir = dir
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Interceptor) {
		i.logger = logger
	}
}

// New creates an Interceptor.
func New(opts ...Option) *Interceptor {
	i := &Interceptor{banner: "Modified by pageprobe"}
	for _, opt := range opts {
		opt(i)
	}
	if i.logger == nil {
		i.logger = slog.Default()
	}
	return i
}

// Patterns returns the Fetch patterns: every document, paused at the
// response stage.
func (i *Interceptor) Patterns() []*fetch.RequestPattern {
	return []*fetch.RequestPattern{{
		URLPattern:   "*",
		ResourceType: network.ResourceTypeDocument,
		RequestStage: fetch.RequestStageResponse,
	}}
}

// Listen registers the paused-response handler on the tab in ctx.
// Listeners are dropped once their context is done, and commands for a
// paused response are sent under it, so ctx must be the tab context
// rather than a per-step deadline.
func (i *Interceptor) Listen(ctx context.Context) {
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		i.dispatch(ev, func() context.Context {
			return cdp.WithExecutor(ctx, chromedp.FromContext(ctx).Target)
		})
	})
}

// Enable enables the Fetch domain. Call Listen first and run it before
// navigation.
func (i *Interceptor) Enable(ctx context.Context) error {
	if err := chromedp.Run(ctx, fetch.Enable().WithPatterns(i.Patterns())); err != nil {
		return fmt.Errorf("enable fetch interception: %w", err)
	}
	return nil
}

// dispatch handles ev when it is a paused response. execCtx supplies the
// context the Fetch commands are executed with.
func (i *Interceptor) dispatch(ev interface{}, execCtx func() context.Context) {
	paused, ok := ev.(*fetch.EventRequestPaused)
	if !ok {
		return
	}
	i.mu.Lock()
	i.stats.Paused++
	i.mu.Unlock()

	// Commands cannot be sent from inside the listener; it runs on the
	// event loop that delivers their responses.
	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		i.handle(execCtx(), paused)
	}()
}

// Wait blocks until every paused response seen so far has been handled.
func (i *Interceptor) Wait() {
	i.wg.Wait()
}

// Stats returns a snapshot of the interception counters.
func (i *Interceptor) Stats() model.Interception {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.stats
}

// Decide picks the action for a paused response. Requests paused before a
// response exists (status 0), non-matching URLs, non-200 responses and
// non-HTML documents continue unchanged.
func (i *Interceptor) Decide(url string, status int64, headers []*fetch.HeaderEntry) Action {
	if status == 0 || !i.matchesURL(url) {
		return ActionContinue
	}
	if status != 200 {
		return ActionContinue
	}
	if !IsHTML(headers) {
		return ActionContinue
	}
	return ActionRewrite
}

func (i *Interceptor) matchesURL(url string) bool {
	if len(i.matches) == 0 {
		return true
	}
	for _, m := range i.matches {
		if strings.Contains(url, m) {
			return true
		}
	}
	return false
}

func (i *Interceptor) handle(ctx context.Context, ev *fetch.EventRequestPaused) {
	url := ""
	if ev.Request != nil {
		url = ev.Request.URL
	}

	action := i.Decide(url, ev.ResponseStatusCode, ev.ResponseHeaders)
	i.logger.Debug("response paused",
		"url", url,
		"status", ev.ResponseStatusCode,
		"resource_type", ev.ResourceType.String(),
		"action", action.String(),
	)

	if action == ActionRewrite {
		err := i.rewrite(ctx, ev)
		if err == nil {
			return
		}
		i.logger.Warn("rewrite failed, continuing original response", "url", url, "error", err)
	}

	if err := fetch.ContinueRequest(ev.RequestID).Do(ctx); err != nil {
		i.logger.Warn("continue request failed", "url", url, "error", err)
	}
}

func (i *Interceptor) rewrite(ctx context.Context, ev *fetch.EventRequestPaused) error {
	body, err := fetch.GetResponseBody(ev.RequestID).Do(ctx)
	if err != nil {
		return fmt.Errorf("get response body: %w", err)
	}

	modified, foundBody := InjectBanner(body, BannerHTML(i.banner))
	if !foundBody {
		i.logger.Debug("no body tag, banner prepended", "url", ev.Request.URL)
	}
	headers := RewriteContentLength(ev.ResponseHeaders, len(modified))

	err = fetch.FulfillRequest(ev.RequestID, ev.ResponseStatusCode).
		WithResponseHeaders(headers).
		WithBody(base64.StdEncoding.EncodeToString(modified)).
		WithResponsePhrase("OK").
		Do(ctx)
	if err != nil {
		return fmt.Errorf("fulfill request: %w", err)
	}

	i.mu.Lock()
	i.stats.Modified++
	i.mu.Unlock()

	if i.dumpDir != "" {
		i.dump(modified)
	}
	return nil
}

// dump failures are logged only: the response has already been fulfilled.
func (i *Interceptor) dump(doc []byte) {
	path, err := artifact.AbsPath(filepath.Join(i.dumpDir, DumpFileName))
	if err == nil {
		_, err = artifact.WriteFile(path, doc)
	}
	if err != nil {
		i.logger.Warn("save modified document", "error", err)
		return
	}

	i.mu.Lock()
	i.stats.DumpPath = path
	i.mu.Unlock()
}
