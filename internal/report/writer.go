package report

import (
	"io"

	"github.com/nao1215/pageprobe/internal/model"
)

// Writer defines the interface for report output.
// Implementations write probe results in various formats.
type Writer interface {
	// Write outputs the report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.ProbeReport) (int, error)
}

// MultiWriter writes to multiple Writers, e.g. the terminal and a file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.ProbeReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// summaryOf returns the report summary, or an empty one for reports that
// were never audited.
func summaryOf(report *model.ProbeReport) *model.Summary {
	if report.Summary != nil {
		return report.Summary
	}
	return &model.Summary{URL: report.URL, DateProbed: report.DateProbed}
}

// statusText describes how the probe ended.
func statusText(report *model.ProbeReport) string {
	switch {
	case report.TimedOut:
		return "TIMED OUT (partial results)"
	case report.ErrorMessage != "":
		return "ERROR - " + report.ErrorMessage
	case len(report.StepErrors) > 0:
		return "INCOMPLETE - some steps failed"
	default:
		return "Complete"
	}
}
