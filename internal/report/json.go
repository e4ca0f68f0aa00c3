package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/nao1215/pageprobe/internal/model"
)

// JSONWriter outputs reports in JSON format for tool integration.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the full report in JSON format.
func (w *JSONWriter) Write(report *model.ProbeReport) (int, error) {
	return w.writeJSON(report)
}

// WriteAll outputs several reports as one JSON array.
func (w *JSONWriter) WriteAll(reports []*model.ProbeReport) (int, error) {
	return w.writeJSON(reports)
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}

// JSONReport is the document written for a single probe.
type JSONReport struct {
	// Tool and Version name the program that wrote the document.
	Tool    string `json:"tool"`
	Version string `json:"version"`

	// GeneratedAt is when the document was written.
	GeneratedAt time.Time `json:"generated_at"`

	// Browser repeats the report's browser at the top level.
	Browser *model.BrowserInfo `json:"browser,omitempty"`

	// Stats are counts taken from the report.
	Stats JSONStats `json:"stats"`

	Report  *model.ProbeReport `json:"report"`
	Summary *model.Summary     `json:"summary,omitempty"`
}

// JSONStats are counts for consumers that do not want to walk the report.
type JSONStats struct {
	Cookies        int `json:"cookies"`
	Requests       int `json:"requests"`
	FailedRequests int `json:"failed_requests"`
	Findings       int `json:"findings"`
}

// NewJSONReport builds the document for report.
func NewJSONReport(report *model.ProbeReport, version string, generatedAt time.Time) *JSONReport {
	return &JSONReport{
		Tool:        "pageprobe",
		Version:     version,
		GeneratedAt: generatedAt.UTC(),
		Browser:     report.Browser,
		Stats: JSONStats{
			Cookies:        report.CookieCount(),
			Requests:       len(report.Requests),
			FailedRequests: len(model.FailedRequests(report.Requests)),
			Findings:       len(report.Findings()),
		},
		Report:  report,
		Summary: report.Summary,
	}
}

// FullJSONWriter writes a JSONReport per probe.
type FullJSONWriter struct {
	*JSONWriter

	version string
	now     func() time.Time
}

// NewFullJSONWriter creates a FullJSONWriter stamping documents with version.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
		now:        time.Now,
	}
}

// Write writes the document for report.
func (w *FullJSONWriter) Write(report *model.ProbeReport) (int, error) {
	return w.writeJSON(NewJSONReport(report, w.version, w.now()))
}
