package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nao1215/pageprobe/internal/artifact"
	"github.com/nao1215/pageprobe/internal/model"
	"github.com/nao1215/pageprobe/internal/pipeline"
)

// console prints the progress lines of one or more probes. Batch probes
// share a console, so every line is written under a lock and prefixed with
// the URL it belongs to.
type console struct {
	mu     sync.Mutex
	w      io.Writer
	prefix bool
	linger time.Duration
}

func newConsole(w io.Writer, prefix bool, linger time.Duration) *console {
	return &console{w: w, prefix: prefix, linger: linger}
}

func (c *console) printf(url, format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.prefix && url != "" {
		fmt.Fprintf(c.w, "[%s] ", url)
	}
	fmt.Fprintf(c.w, format+"\n", args...)
}

// hook returns the pipeline hook printing the progress of url.
func (c *console) hook(url string) pipeline.Hook {
	return func(ev pipeline.Event) {
		switch ev.Phase {
		case pipeline.PhaseStart:
			c.started(url, ev)
		case pipeline.PhaseDone:
			c.done(url, ev.Step, ev.Report)
		case pipeline.PhaseFailed:
			c.printf(url, "❌ Failed: %v", ev.Err)
		}
	}
}

func (c *console) started(url string, ev pipeline.Event) {
	switch ev.Step {
	case "navigate":
		c.printf(url, "Loading page: %s", ev.Report.URL)
	case "linger":
		c.printf(url, "Waiting %g seconds before closing the browser...", c.linger.Seconds())
	}
}

func (c *console) done(url, step string, report *model.ProbeReport) {
	switch step {
	case "emulate":
		c.printf(url, "Emulating device: %s", report.Device)
	case "wait":
		if report.StatusCode != 0 {
			c.printf(url, "Page loaded: %s (HTTP %d)", report.FinalURL, report.StatusCode)
		} else {
			c.printf(url, "Page loaded: %s", report.FinalURL)
		}
	case "network":
		failed := len(model.FailedRequests(report.Requests))
		c.printf(url, "Requests: %d (%d failed)", len(report.Requests), failed)
		if report.Interception != nil && report.Interception.Modified > 0 {
			c.printf(url, "Banner injected into %d document(s)", report.Interception.Modified)
		}
	case "screenshot":
		shot := report.Screenshot
		c.printf(url, "✅ Screenshot saved: %s (%s)", shot.Path, artifact.HumanSize(shot.Size))
	case "title":
		c.printf(url, "Page title: %s", report.Title)
	case "cookies":
		c.printf(url, "Cookies: %d", report.CookieCount())
	case "viewport":
		v := report.Viewport
		c.printf(url, "Viewport: %dx%d (device scale factor %g)", v.Width, v.Height, v.DeviceScaleFactor)
	case "pdf":
		c.printf(url, "✅ PDF saved: %s (%d page(s), %s)", report.PDF.Path, report.PDF.Pages, artifact.HumanSize(report.PDF.Size))
	case "baseline":
		b := report.Baseline
		switch {
		case b.SizeMismatch:
			c.printf(url, "Baseline: size differs from %s", b.Path)
		case b.Match():
			c.printf(url, "Baseline: matches %s", b.Path)
		default:
			c.printf(url, "Baseline: %d pixel(s) differ (%.2f%%)", b.DiffPixels, b.DiffRatio()*100)
		}
	case "audit":
		if s := report.Summary; s != nil && s.Total() > 0 {
			c.printf(url, "Findings: %d", s.Total())
		}
	}
}
