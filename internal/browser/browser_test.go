package browser

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/pageprobe/internal/model"
)

func TestLookupDevice(t *testing.T) {
	t.Parallel()

	t.Run("name lookup ignores case", func(t *testing.T) {
		t.Parallel()

		d, err := LookupDevice("IPHONE13")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d.Width != 390 || d.Height != 844 || d.Scale != 3 || !d.Mobile || !d.Touch {
			t.Errorf("unexpected preset %+v", d)
		}
	})

	t.Run("pixel5 preset", func(t *testing.T) {
		t.Parallel()

		d, err := LookupDevice("pixel5")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		info := d.Device()
		if info.Width != 393 || info.Height != 851 || info.Scale != 2.75 {
			t.Errorf("unexpected device info %+v", info)
		}
		if !strings.Contains(info.UserAgent, "Pixel 5") {
			t.Errorf("unexpected user agent %q", info.UserAgent)
		}
	})

	t.Run("unknown device is an error, not a fallback", func(t *testing.T) {
		t.Parallel()

		_, err := LookupDevice("Nokia3310")
		if !errors.Is(err, ErrUnknownDevice) {
			t.Fatalf("expected ErrUnknownDevice, got %v", err)
		}
		if !strings.Contains(err.Error(), "iPhone13") {
			t.Errorf("expected available devices in message, got %q", err)
		}
	})
}

func TestDevices(t *testing.T) {
	t.Parallel()

	want := []string{"Desktop", "Pixel5", "iPhone13"}
	if diff := cmp.Diff(want, DeviceNames()); diff != "" {
		t.Errorf("device names mismatch (-want +got):\n%s", diff)
	}
}

func TestDeviceString(t *testing.T) {
	t.Parallel()

	d, _ := LookupDevice("iphone13")
	if got := d.String(); got != "390x844@3 mobile touch" {
		t.Errorf("got %q", got)
	}
}

func TestAllocatorOptions(t *testing.T) {
	t.Parallel()

	base := len(allocatorOptions(Options{Headless: true}))

	tests := []struct {
		name  string
		opts  Options
		extra int
	}{
		{name: "headful adds two flags", opts: Options{}, extra: 2},
		{name: "window size adds one", opts: Options{Headless: true, WindowWidth: 1200, WindowHeight: 800}, extra: 1},
		{name: "partial window size is ignored", opts: Options{Headless: true, WindowWidth: 1200}, extra: 0},
		{
			name:  "path proxy agent and sandbox",
			opts:  Options{Headless: true, ExecPath: "/usr/bin/chromium", ProxyServer: "socks5://127.0.0.1:1080", UserAgent: "probe", NoSandbox: true},
			extra: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := len(allocatorOptions(tt.opts)) - base; got != tt.extra {
				t.Errorf("got %d extra options, want %d", got, tt.extra)
			}
		})
	}
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestMonitor() (*Monitor, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMonitor(nil)
	m.now = clock.Now
	m.lastChange = clock.Now()
	return m, clock
}

func TestMonitorRecordsRequests(t *testing.T) {
	t.Parallel()

	m, _ := newTestMonitor()

	m.handleEvent(&network.EventRequestWillBeSent{
		RequestID: "1",
		Request:   &network.Request{URL: "https://example.com/", Method: "GET"},
		Type:      network.ResourceTypeDocument,
	})
	m.handleEvent(&network.EventRequestWillBeSent{
		RequestID: "2",
		Request:   &network.Request{URL: "https://example.com/app.js", Method: "GET"},
		Type:      network.ResourceTypeScript,
	})
	m.handleEvent(&network.EventResponseReceived{
		RequestID: "1",
		Type:      network.ResourceTypeDocument,
		Response:  &network.Response{URL: "https://example.com/", Status: 200, MimeType: "text/html"},
	})
	m.handleEvent(&network.EventLoadingFinished{RequestID: "1"})
	m.handleEvent(&network.EventLoadingFailed{RequestID: "2", ErrorText: "net::ERR_BLOCKED_BY_CLIENT"})

	want := []model.Request{
		{URL: "https://example.com/", Method: "GET", ResourceType: "Document", StatusCode: 200, MimeType: "text/html"},
		{URL: "https://example.com/app.js", Method: "GET", ResourceType: "Script", Failed: true, ErrorText: "net::ERR_BLOCKED_BY_CLIENT"},
	}
	if diff := cmp.Diff(want, m.Requests()); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}
	if m.Inflight() != 0 {
		t.Errorf("expected no requests in flight, got %d", m.Inflight())
	}
}

func TestMonitorRedirectKeepsOneEntry(t *testing.T) {
	t.Parallel()

	m, _ := newTestMonitor()
	m.handleEvent(&network.EventRequestWillBeSent{
		RequestID: "1",
		Request:   &network.Request{URL: "http://example.com/", Method: "GET"},
		Type:      network.ResourceTypeDocument,
	})
	m.handleEvent(&network.EventRequestWillBeSent{
		RequestID: "1",
		Request:   &network.Request{URL: "https://example.com/", Method: "GET"},
		Type:      network.ResourceTypeDocument,
	})

	reqs := m.Requests()
	if len(reqs) != 1 || reqs[0].URL != "https://example.com/" {
		t.Errorf("unexpected requests %+v", reqs)
	}
	if m.Inflight() != 1 {
		t.Errorf("expected one request in flight, got %d", m.Inflight())
	}
}

func TestMonitorIdle(t *testing.T) {
	t.Parallel()

	m, clock := newTestMonitor()
	quiet := 500 * time.Millisecond

	m.handleEvent(&network.EventRequestWillBeSent{
		RequestID: "1",
		Request:   &network.Request{URL: "https://example.com/"},
	})
	clock.Advance(time.Second)
	if m.idleFor(quiet) {
		t.Fatal("should not be idle with a request in flight")
	}

	m.handleEvent(&network.EventLoadingFinished{RequestID: "1"})
	clock.Advance(100 * time.Millisecond)
	if m.idleFor(quiet) {
		t.Fatal("should not be idle before the quiet period elapsed")
	}

	clock.Advance(400 * time.Millisecond)
	if !m.idleFor(quiet) {
		t.Fatal("should be idle after the quiet period")
	}

	if err := m.WaitIdle(context.Background(), quiet); err != nil {
		t.Errorf("WaitIdle returned %v", err)
	}
}

func TestMonitorWaitIdleTimesOut(t *testing.T) {
	t.Parallel()

	m, _ := newTestMonitor()
	m.handleEvent(&network.EventRequestWillBeSent{
		RequestID: "poll",
		Request:   &network.Request{URL: "https://example.com/long-poll"},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	err := m.WaitIdle(ctx, 10*time.Millisecond)
	if !errors.Is(err, ErrNetworkNotIdle) {
		t.Fatalf("expected ErrNetworkNotIdle, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected wrapped deadline error, got %v", err)
	}
}

func TestTracerRecord(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tr := NewTracer(&buf)
	tr.now = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC) }

	tr.Record(&network.EventLoadingFinished{RequestID: "42"})
	tr.Record("not an event")

	if tr.Events() != 1 {
		t.Fatalf("expected 1 event, got %d", tr.Events())
	}
	line := buf.String()
	for _, want := range []string{
		`"time":"2024-03-09T14:05:07Z"`,
		`"event":"network.EventLoadingFinished"`,
		`"requestId":"42"`,
	} {
		if !strings.Contains(line, want) {
			t.Errorf("expected %s in %s", want, line)
		}
	}
	if !strings.HasSuffix(line, "}\n") {
		t.Errorf("expected a newline terminated object, got %q", line)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestTracerStopsAfterWriteError(t *testing.T) {
	t.Parallel()

	tr := NewTracer(failingWriter{})
	tr.Record(&network.EventLoadingFinished{RequestID: "1"})
	tr.Record(&network.EventLoadingFinished{RequestID: "2"})

	if tr.Err() == nil {
		t.Error("expected a write error")
	}
	if tr.Events() != 0 {
		t.Errorf("expected no events, got %d", tr.Events())
	}
}

func TestConvertCookie(t *testing.T) {
	t.Parallel()

	got := convertCookie(&network.Cookie{
		Name:     "sid",
		Value:    "abc",
		Domain:   ".example.com",
		Path:     "/",
		Expires:  1700000000.5,
		Size:     6,
		HTTPOnly: true,
		Secure:   true,
		SameSite: network.CookieSameSiteLax,
	})
	want := model.Cookie{
		Name:     "sid",
		Value:    "abc",
		Domain:   ".example.com",
		Path:     "/",
		Expires:  time.Unix(1700000000, 500000000).UTC(),
		Size:     6,
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("cookie mismatch (-want +got):\n%s", diff)
	}

	session := convertCookie(&network.Cookie{Name: "s", Session: true, Expires: -1})
	if !session.Expires.IsZero() {
		t.Errorf("session cookie should have no expiry, got %v", session.Expires)
	}
}

func TestCookieURLs(t *testing.T) {
	t.Parallel()

	requests := []model.Request{
		{URL: "https://example.com/"},
		{URL: "https://cdn.example.net/app.js"},
		{URL: "data:image/png;base64,AAAA"},
		{URL: "https://example.com/"},
		{URL: "about:blank"},
		{URL: "http://tracker.example.org/pixel.gif"},
	}
	want := []string{
		"https://example.com/",
		"https://cdn.example.net/app.js",
		"http://tracker.example.org/pixel.gif",
	}
	if diff := cmp.Diff(want, CookieURLs(requests)); diff != "" {
		t.Errorf("urls mismatch (-want +got):\n%s", diff)
	}

	if got := CookieURLs(nil); len(got) != 0 {
		t.Errorf("expected no urls, got %v", got)
	}
}
