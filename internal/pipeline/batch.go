package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/pageprobe/internal/config"
	"github.com/nao1215/pageprobe/internal/model"
)

// Tab is a Page bound to its own browser tab.
type Tab interface {
	Page
	// Context returns the tab context the pipeline runs under.
	Context() context.Context
	// Close closes the tab.
	Close()
}

// TabOpener opens a fresh tab for one URL.
type TabOpener func() (Tab, error)

// Factory builds the pipeline that probes url on page.
type Factory func(url string, page Page) (*Pipeline, error)

// BatchProcessor probes several URLs concurrently, one tab per URL, in a
// single browser. It uses errgroup to bound the number of open tabs.
type BatchProcessor struct {
	open    TabOpener
	factory Factory

	// concurrency is the maximum number of concurrently open tabs.
	concurrency int

	logger *slog.Logger

	// results stores completed reports in input order.
	results []*model.ProbeReport
	mu      sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent tabs.
// Non-positive values are ignored.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor. The default concurrency
// is config.DefaultBatchSize.
func NewBatchProcessor(open TabOpener, factory Factory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		open:        open,
		factory:     factory,
		concurrency: config.DefaultBatchSize,
		results:     make([]*model.ProbeReport, 0),
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// probe runs one URL in its own tab. Failures end up in the report.
func (bp *BatchProcessor) probe(ctx context.Context, url string) *model.ProbeReport {
	report := model.NewProbeReport(url)

	tab, err := bp.open()
	if err != nil {
		report.SetError(err)
		return report
	}
	defer tab.Close()

	// Cancelling the batch closes the tab, which cancels its context.
	stop := context.AfterFunc(ctx, tab.Close)
	defer stop()

	p, err := bp.factory(url, tab)
	if err != nil {
		report.SetError(err)
		return report
	}
	if err := p.Execute(tab.Context(), report); err != nil {
		bp.logger.Warn("probe failed", "url", url, "error", err)
		return report
	}

	bp.logger.Info("probe completed", "url", url)
	return report
}

// ProcessBatch probes urls concurrently and returns one report per URL in
// input order, including reports of failed probes. A URL whose turn comes
// after ctx was cancelled has no report (nil entry).
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, urls []string) ([]*model.ProbeReport, error) {
	bp.logger.Info("starting batch processing",
		"total_urls", len(urls),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()
	bp.results = make([]*model.ProbeReport, len(urls))

	err := bp.ProcessBatchWithCallback(ctx, urls, func(report *model.ProbeReport, index int) {
		bp.mu.Lock()
		bp.results[index] = report
		bp.mu.Unlock()
	})

	bp.logger.Info("batch processing complete",
		"total_urls", len(urls),
		"elapsed", time.Since(startTime),
	)

	return bp.results, err
}

// ProcessBatchWithCallback probes urls and calls callback as each probe
// completes. The callback receives the report and the index of the URL in
// urls; it is called from worker goroutines and must be safe for
// concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	urls []string,
	callback func(report *model.ProbeReport, index int),
) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, url := range urls {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("probing url",
				"url", url,
				"index", i+1,
				"total", len(urls),
			)
			callback(bp.probe(ctx, url), i)
			return nil
		})
	}

	return g.Wait()
}
