package model

import (
	"slices"
	"time"
)

// ProbeReport is the result of probing one URL.
// Every value the probe reads from the browser ends up here so that the
// report writers and the history database share a single source.
type ProbeReport struct {
	// === Target ===

	// URL is the URL that was requested, exactly as given.
	URL string `json:"url"`

	// FinalURL is the document URL after redirects.
	FinalURL string `json:"final_url,omitempty"`

	// StatusCode is the HTTP status of the main document response.
	// Zero when the URL scheme has no status (file, data, about).
	StatusCode int `json:"status_code,omitempty"`

	// MimeType is the MIME type of the main document.
	MimeType string `json:"mime_type,omitempty"`

	// RemoteAddress is the IP:port the document was served from.
	RemoteAddress string `json:"remote_address,omitempty"`

	// DateProbed is when the probe started.
	DateProbed time.Time `json:"date_probed"`

	// Duration is the wall time from launch to close.
	Duration time.Duration `json:"duration"`

	// Device is the emulated device preset, if any.
	Device string `json:"device,omitempty"`

	// Browser identifies the browser that loaded the page.
	Browser *BrowserInfo `json:"browser,omitempty"`

	// === Page data ===

	// Title is the document title.
	Title string `json:"title"`

	// Cookies are the cookies visible to the page after loading.
	Cookies []Cookie `json:"cookies"`

	// Viewport holds the dimensions evaluated inside the page.
	Viewport *Viewport `json:"viewport,omitempty"`

	// Requests are the network requests observed while loading.
	Requests []Request `json:"requests,omitempty"`

	// === Artifacts ===

	Screenshot   *Screenshot   `json:"screenshot,omitempty"`
	PDF          *PDFInfo      `json:"pdf,omitempty"`
	Baseline     *BaselineDiff `json:"baseline,omitempty"`
	Interception *Interception `json:"interception,omitempty"`

	// Summary holds findings from the audit step.
	Summary *Summary `json:"summary,omitempty"`

	// StepErrors lists steps that failed while the probe kept going.
	StepErrors []StepError `json:"step_errors,omitempty"`

	// === Run state ===

	// PerformedSteps lists the steps that completed, in order.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// TimedOut is true if the run was cut short by its deadline.
	TimedOut bool `json:"timed_out"`

	// Error is the error that stopped the probe, if any.
	Error error `json:"-"`

	// ErrorMessage is Error as a string for serialization.
	ErrorMessage string `json:"error,omitempty"` //nolint:tagliatelle // error is conventional
}

// StepError records a step that failed while the probe kept going.
type StepError struct {
	Step    string `json:"step"`
	Message string `json:"message"`
}

// NewProbeReport creates a new report for the given URL.
func NewProbeReport(url string) *ProbeReport {
	return &ProbeReport{
		URL:        url,
		DateProbed: time.Now(),
		Cookies:    make([]Cookie, 0),
	}
}

// CookieCount returns the number of cookie records read from the page.
func (r *ProbeReport) CookieCount() int {
	return len(r.Cookies)
}

// SetError records the error that stopped the probe.
func (r *ProbeReport) SetError(err error) {
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// AddStepError records a failed step without stopping the probe.
func (r *ProbeReport) AddStepError(step string, err error) {
	r.StepErrors = append(r.StepErrors, StepError{Step: step, Message: err.Error()})
}

// Failed reports whether the probe stopped on an error or any step failed.
func (r *ProbeReport) Failed() bool {
	return r.Error != nil || r.ErrorMessage != "" || len(r.StepErrors) > 0
}

// HasStep reports whether the named step completed.
func (r *ProbeReport) HasStep(name string) bool {
	return slices.Contains(r.PerformedSteps, name)
}

// AddFinding adds a finding to the summary, creating it on first use.
// A finding with the same type, value and location as an existing one is
// ignored.
func (r *ProbeReport) AddFinding(finding Finding) {
	if r.Summary == nil {
		r.Summary = &Summary{
			URL:        r.URL,
			DateProbed: r.DateProbed,
			Findings:   make([]Finding, 0),
		}
	}
	r.Summary.add(finding)
}

// Findings returns the summary findings, or nil when there are none.
func (r *ProbeReport) Findings() []Finding {
	if r.Summary == nil {
		return nil
	}
	return r.Summary.Findings
}
