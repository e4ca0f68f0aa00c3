package browser

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/nao1215/pageprobe/internal/model"
)

// ViewportScript reads the layout viewport and the device pixel ratio.
const ViewportScript = `({
	width: document.documentElement.clientWidth,
	height: document.documentElement.clientHeight,
	deviceScaleFactor: window.devicePixelRatio
})`

// Navigate loads url in the tab and returns the main document response.
// The response is nil for URLs without one, such as about:blank.
func Navigate(ctx context.Context, url string) (*network.Response, error) {
	resp, err := chromedp.RunResponse(ctx, chromedp.Navigate(url))
	if err != nil {
		return nil, fmt.Errorf("navigate to %s: %w", url, err)
	}
	return resp, nil
}

// Emulate applies a device preset to the tab.
func Emulate(ctx context.Context, d Device) error {
	if err := chromedp.Run(ctx, chromedp.Emulate(d)); err != nil {
		return fmt.Errorf("emulate %s: %w", d.Name, err)
	}
	return nil
}

// CaptureScreenshot captures the tab. quality 100 yields PNG, lower values
// JPEG. fullPage captures the whole document instead of the viewport.
func CaptureScreenshot(ctx context.Context, fullPage bool, quality int) ([]byte, error) {
	var buf []byte
	var action chromedp.Action
	if fullPage {
		action = chromedp.FullScreenshot(&buf, quality)
	} else {
		action = chromedp.ActionFunc(func(ctx context.Context) error {
			params := page.CaptureScreenshot().WithFromSurface(true)
			if quality < 100 {
				params = params.WithFormat(page.CaptureScreenshotFormatJpeg).WithQuality(int64(quality))
			} else {
				params = params.WithFormat(page.CaptureScreenshotFormatPng)
			}
			var err error
			buf, err = params.Do(ctx)
			return err
		})
	}

	if err := chromedp.Run(ctx, action); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return buf, nil
}

// Title returns the document title.
func Title(ctx context.Context) (string, error) {
	var title string
	if err := chromedp.Run(ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("read title: %w", err)
	}
	return title, nil
}

// Cookies returns the cookies stored for urls. Without urls only the
// cookies of the current page's frames are returned.
func Cookies(ctx context.Context, urls ...string) ([]model.Cookie, error) {
	var cookies []*network.Cookie
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		params := network.GetCookies()
		if len(urls) > 0 {
			params = params.WithUrls(urls)
		}
		var err error
		cookies, err = params.Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}

	out := make([]model.Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, convertCookie(c))
	}
	return out, nil
}

// CookieURLs returns the distinct http(s) URLs of requests, in order.
// Passed to Cookies, they cover third-party cookies of subresources as
// well as the document's own.
func CookieURLs(requests []model.Request) []string {
	seen := make(map[string]bool, len(requests))
	urls := make([]string, 0, len(requests))
	for _, r := range requests {
		if !strings.HasPrefix(r.URL, "http://") && !strings.HasPrefix(r.URL, "https://") {
			continue
		}
		if seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		urls = append(urls, r.URL)
	}
	return urls
}

func convertCookie(c *network.Cookie) model.Cookie {
	mc := model.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Size:     c.Size,
		HTTPOnly: c.HTTPOnly,
		Secure:   c.Secure,
		Session:  c.Session,
		SameSite: c.SameSite.String(),
	}
	if !c.Session && c.Expires > 0 {
		sec, frac := math.Modf(c.Expires)
		mc.Expires = time.Unix(int64(sec), int64(frac*1e9)).UTC()
	}
	return mc
}

// SetCookies stores cookies for url before navigation.
func SetCookies(ctx context.Context, url string, cookies map[string]string) error {
	if len(cookies) == 0 {
		return nil
	}
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for name, value := range cookies {
			if err := network.SetCookie(name, value).WithURL(url).Do(ctx); err != nil {
				return fmt.Errorf("cookie %s: %w", name, err)
			}
		}
		return nil
	}))
	if err != nil {
		return fmt.Errorf("set cookies: %w", err)
	}
	return nil
}

// SetExtraHeaders sends headers with every request of the tab.
func SetExtraHeaders(ctx context.Context, headers map[string]string) error {
	if len(headers) == 0 {
		return nil
	}
	h := make(network.Headers, len(headers))
	for k, v := range headers {
		h[k] = v
	}
	if err := chromedp.Run(ctx, network.SetExtraHTTPHeaders(h)); err != nil {
		return fmt.Errorf("set extra headers: %w", err)
	}
	return nil
}

// EvaluateViewport evaluates ViewportScript in the page.
func EvaluateViewport(ctx context.Context) (model.Viewport, error) {
	var vp model.Viewport
	if err := chromedp.Run(ctx, chromedp.Evaluate(ViewportScript, &vp)); err != nil {
		return model.Viewport{}, fmt.Errorf("evaluate viewport: %w", err)
	}
	return vp, nil
}

// PrintPDF prints the page with backgrounds.
func PrintPDF(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, _, err = page.PrintToPDF().WithPrintBackground(true).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("print pdf: %w", err)
	}
	return buf, nil
}
