package browser

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jwriter"
)

// Tracer writes every DevTools event of the tabs it is attached to as one
// JSON object per line:
//
//	{"time":"2024-03-09T14:05:07.123Z","event":"network.EventRequestWillBeSent","params":{...}}
type Tracer struct {
	mu     sync.Mutex
	w      io.Writer
	now    func() time.Time
	err    error
	events int
}

// NewTracer creates a Tracer writing to w.
func NewTracer(w io.Writer) *Tracer {
	return &Tracer{w: w, now: time.Now}
}

// Attach subscribes the tracer to the tab in ctx.
func (t *Tracer) Attach(ctx context.Context) {
	chromedp.ListenTarget(ctx, t.Record)
}

// Record writes one event. Events that cdproto cannot marshal are skipped.
// After the first write error the tracer stops writing; Err reports it.
func (t *Tracer) Record(ev interface{}) {
	m, ok := ev.(easyjson.Marshaler)
	if !ok {
		return
	}
	params, err := easyjson.Marshal(m)
	if err != nil {
		return
	}

	w := jwriter.Writer{}
	w.RawString(`{"time":`)
	w.String(t.now().UTC().Format(time.RFC3339Nano))
	w.RawString(`,"event":`)
	w.String(EventName(ev))
	w.RawString(`,"params":`)
	w.Raw(params, nil)
	w.RawString("}\n")

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return
	}
	if _, err := w.DumpTo(t.w); err != nil {
		t.err = fmt.Errorf("write trace: %w", err)
		return
	}
	t.events++
}

// Events returns the number of events written.
func (t *Tracer) Events() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.events
}

// Err returns the first write error.
func (t *Tracer) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// EventName returns "domain.EventType" for a cdproto event value.
func EventName(ev interface{}) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", ev), "*")
}
