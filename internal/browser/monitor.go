package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/nao1215/pageprobe/internal/model"
)

// ErrNetworkNotIdle is returned when the network did not settle before the
// context deadline.
var ErrNetworkNotIdle = errors.New("network did not become idle")

// idlePollInterval is how often WaitIdle re-checks the in-flight count.
const idlePollInterval = 50 * time.Millisecond

// Monitor records the network requests of one tab and tracks how many are
// still in flight.
type Monitor struct {
	logger *slog.Logger
	now    func() time.Time

	mu         sync.Mutex
	order      []network.RequestID
	requests   map[network.RequestID]*model.Request
	inflight   map[network.RequestID]struct{}
	lastChange time.Time
}

// NewMonitor creates a Monitor. Call Attach before navigating.
func NewMonitor(logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		logger:   logger,
		now:      time.Now,
		requests: make(map[network.RequestID]*model.Request),
		inflight: make(map[network.RequestID]struct{}),
	}
}

// Attach subscribes the monitor to the tab in ctx and enables the Network
// domain.
func (m *Monitor) Attach(ctx context.Context) error {
	m.mu.Lock()
	m.lastChange = m.now()
	m.mu.Unlock()

	chromedp.ListenTarget(ctx, m.handleEvent)
	if err := chromedp.Run(ctx, network.Enable()); err != nil {
		return fmt.Errorf("enable network events: %w", err)
	}
	return nil
}

func (m *Monitor) handleEvent(ev interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		if e.Request == nil {
			return
		}
		req, ok := m.requests[e.RequestID]
		if !ok {
			req = &model.Request{}
			m.requests[e.RequestID] = req
			m.order = append(m.order, e.RequestID)
		}
		// A redirect reuses the request id; keep the latest hop.
		req.URL = e.Request.URL
		req.Method = e.Request.Method
		req.ResourceType = e.Type.String()
		m.inflight[e.RequestID] = struct{}{}
		m.lastChange = m.now()
		m.logger.Debug("request sent", "url", e.Request.URL, "type", e.Type.String())

	case *network.EventResponseReceived:
		if req, ok := m.requests[e.RequestID]; ok && e.Response != nil {
			req.StatusCode = int(e.Response.Status)
			req.MimeType = e.Response.MimeType
			if req.ResourceType == "" {
				req.ResourceType = e.Type.String()
			}
			m.logger.Debug("response received", "url", e.Response.URL, "status", e.Response.Status)
		}

	case *network.EventLoadingFinished:
		m.finish(e.RequestID)

	case *network.EventLoadingFailed:
		if req, ok := m.requests[e.RequestID]; ok {
			req.Failed = true
			req.ErrorText = e.ErrorText
			m.logger.Debug("request failed", "url", req.URL, "error", e.ErrorText)
		}
		m.finish(e.RequestID)
	}
}

func (m *Monitor) finish(id network.RequestID) {
	if _, ok := m.inflight[id]; !ok {
		return
	}
	delete(m.inflight, id)
	m.lastChange = m.now()
}

// Inflight returns the number of requests still in flight.
func (m *Monitor) Inflight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inflight)
}

// idleFor reports whether nothing has been in flight for at least quiet.
func (m *Monitor) idleFor(quiet time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inflight) == 0 && m.now().Sub(m.lastChange) >= quiet
}

// WaitIdle blocks until no request has been in flight for quiet.
// Long-polling pages never settle; the context deadline bounds the wait.
func (m *Monitor) WaitIdle(ctx context.Context, quiet time.Duration) error {
	ticker := time.NewTicker(idlePollInterval)
	defer ticker.Stop()

	for {
		if m.idleFor(quiet) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %d request(s) in flight: %w", ErrNetworkNotIdle, m.Inflight(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// Requests returns the observed requests in the order they were first seen.
func (m *Monitor) Requests() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.Request, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.requests[id])
	}
	return out
}
