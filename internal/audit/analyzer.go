package audit

import (
	"context"
	"log/slog"

	"github.com/nao1215/pageprobe/internal/model"
)

// CheckAnalyzer is a single audit check.
type CheckAnalyzer interface {
	// Name returns the analyzer's name for logging.
	Name() string

	// Analyze inspects the report and returns findings. It must not
	// modify the report.
	Analyze(ctx context.Context, report *model.ProbeReport) ([]model.Finding, error)
}

// Analyzer runs every registered check.
type Analyzer struct {
	analyzers []CheckAnalyzer
	logger    *slog.Logger
}

// Options toggles optional checks.
type Options struct {
	// ThirdPartyHosts reports every foreign site the page loaded from.
	ThirdPartyHosts bool
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{ThirdPartyHosts: true}
}

// NewAnalyzer creates an Analyzer with all built-in checks registered.
func NewAnalyzer(logger *slog.Logger, opts ...func(*Options)) *Analyzer {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &Analyzer{logger: logger}
	a.Register(NewDocumentAnalyzer())
	a.Register(NewCookieAnalyzer())
	a.Register(NewRequestAnalyzer(options.ThirdPartyHosts))
	a.Register(NewBaselineAnalyzer())
	a.Register(NewStepAnalyzer())
	return a
}

// Register adds an analyzer.
func (a *Analyzer) Register(analyzer CheckAnalyzer) {
	a.analyzers = append(a.analyzers, analyzer)
}

// Analyze runs all analyzers and returns their deduplicated findings.
// A failing analyzer is logged and skipped.
func (a *Analyzer) Analyze(ctx context.Context, report *model.ProbeReport) ([]model.Finding, error) {
	var all []model.Finding
	for _, analyzer := range a.analyzers {
		if err := ctx.Err(); err != nil {
			return all, err
		}

		findings, err := analyzer.Analyze(ctx, report)
		if err != nil {
			a.logger.Warn("analyzer failed", "analyzer", analyzer.Name(), "error", err)
			continue
		}
		all = append(all, findings...)
	}
	return deduplicateFindings(all), nil
}

// deduplicateFindings removes findings with the same type, value and
// location, keeping the more severe one.
func deduplicateFindings(findings []model.Finding) []model.Finding {
	seen := make(map[string]int)
	result := make([]model.Finding, 0, len(findings))

	for _, f := range findings {
		key := f.Type + "|" + f.Value + "|" + f.Location
		if idx, exists := seen[key]; exists {
			if f.Severity > result[idx].Severity {
				result[idx] = f
			}
			continue
		}
		seen[key] = len(result)
		result = append(result, f)
	}
	return result
}
