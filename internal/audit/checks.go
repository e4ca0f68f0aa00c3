package audit

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/nao1215/pageprobe/internal/model"
)

// DocumentAnalyzer checks the main document: status, scheme, redirects
// and title.
type DocumentAnalyzer struct{}

// NewDocumentAnalyzer creates a DocumentAnalyzer.
func NewDocumentAnalyzer() *DocumentAnalyzer { return &DocumentAnalyzer{} }

// Name returns the analyzer name.
func (a *DocumentAnalyzer) Name() string { return "document" }

// Analyze implements CheckAnalyzer.
func (a *DocumentAnalyzer) Analyze(_ context.Context, r *model.ProbeReport) ([]model.Finding, error) {
	var findings []model.Finding

	if r.StatusCode >= 400 {
		findings = append(findings, model.NewFinding("http_error_status",
			fmt.Sprintf("Document returned HTTP %d", r.StatusCode), strconv.Itoa(r.StatusCode), r.URL))
	}

	final := r.FinalURL
	if final == "" {
		final = r.URL
	}
	if strings.HasPrefix(final, "http://") {
		findings = append(findings, model.NewFinding("insecure_scheme", "Page served over plain http", final, ""))
	}
	if r.FinalURL != "" && !sameURL(r.URL, r.FinalURL) {
		findings = append(findings, model.NewFinding("redirected", "Request was redirected", r.FinalURL, r.URL))
	}

	if r.HasStep("title") && strings.TrimSpace(r.Title) == "" {
		findings = append(findings, model.NewFinding("empty_title", "Document has no title", "", r.URL))
	}
	return findings, nil
}

// sameURL compares two URLs ignoring a trailing slash on an empty path.
func sameURL(a, b string) bool {
	return strings.TrimSuffix(a, "/") == strings.TrimSuffix(b, "/")
}

// CookieAnalyzer checks cookie attributes.
type CookieAnalyzer struct{}

// NewCookieAnalyzer creates a CookieAnalyzer.
func NewCookieAnalyzer() *CookieAnalyzer { return &CookieAnalyzer{} }

// Name returns the analyzer name.
func (a *CookieAnalyzer) Name() string { return "cookies" }

// Analyze implements CheckAnalyzer. Secure is only expected on https pages.
func (a *CookieAnalyzer) Analyze(_ context.Context, r *model.ProbeReport) ([]model.Finding, error) {
	https := strings.HasPrefix(pageURL(r), "https://")

	var findings []model.Finding
	for _, c := range r.Cookies {
		location := c.Domain + c.Path
		if https && !c.Secure {
			findings = append(findings, model.NewFinding("cookie_missing_secure",
				"Cookie without Secure attribute", c.Name, location))
		}
		if !c.HTTPOnly {
			findings = append(findings, model.NewFinding("cookie_missing_httponly",
				"Cookie readable from JavaScript", c.Name, location))
		}
		if strings.EqualFold(c.SameSite, "None") && !c.Secure {
			findings = append(findings, model.NewFinding("cookie_samesite_none_insecure",
				"SameSite=None cookie without Secure", c.Name, location))
		}
	}
	return findings, nil
}

// RequestAnalyzer checks subresources.
type RequestAnalyzer struct {
	thirdParty bool
}

// NewRequestAnalyzer creates a RequestAnalyzer. thirdParty enables
// reporting of foreign sites.
func NewRequestAnalyzer(thirdParty bool) *RequestAnalyzer {
	return &RequestAnalyzer{thirdParty: thirdParty}
}

// Name returns the analyzer name.
func (a *RequestAnalyzer) Name() string { return "requests" }

// Analyze implements CheckAnalyzer.
func (a *RequestAnalyzer) Analyze(ctx context.Context, r *model.ProbeReport) ([]model.Finding, error) {
	page := pageURL(r)
	https := strings.HasPrefix(page, "https://")
	pageSite := site(page)

	var findings []model.Finding
	for _, req := range r.Requests {
		if err := ctx.Err(); err != nil {
			return findings, err
		}

		if https && strings.HasPrefix(req.URL, "http://") {
			findings = append(findings, model.NewFinding("mixed_content",
				"Subresource loaded over http", req.URL, req.ResourceType))
		}
		if req.Failed {
			findings = append(findings, model.NewFinding("failed_request",
				"Request failed: "+req.ErrorText, req.URL, req.ResourceType))
		}
		if a.thirdParty && pageSite != "" {
			if s := site(req.URL); s != "" && s != pageSite {
				findings = append(findings, model.NewFinding("third_party_host",
					"Resource loaded from another site", s, ""))
			}
		}
	}
	return findings, nil
}

// site returns the registrable domain (eTLD+1) of rawURL, or the host
// when it has none (IP addresses, localhost).
func site(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	host := u.Hostname()
	if net.ParseIP(host) != nil {
		return host
	}
	if etld1, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return etld1
	}
	return host
}

func pageURL(r *model.ProbeReport) string {
	if r.FinalURL != "" {
		return r.FinalURL
	}
	return r.URL
}

// BaselineAnalyzer reports screenshots that drifted from their baseline.
type BaselineAnalyzer struct{}

// NewBaselineAnalyzer creates a BaselineAnalyzer.
func NewBaselineAnalyzer() *BaselineAnalyzer { return &BaselineAnalyzer{} }

// Name returns the analyzer name.
func (a *BaselineAnalyzer) Name() string { return "baseline" }

// Analyze implements CheckAnalyzer.
func (a *BaselineAnalyzer) Analyze(_ context.Context, r *model.ProbeReport) ([]model.Finding, error) {
	b := r.Baseline
	if b == nil || b.Match() {
		return nil, nil
	}
	if b.SizeMismatch {
		return []model.Finding{model.NewFinding("baseline_size_mismatch",
			"Screenshot size differs from baseline", "", b.Path)}, nil
	}
	return []model.Finding{model.NewFinding("baseline_mismatch",
		fmt.Sprintf("%d pixels (%.2f%%) differ from baseline", b.DiffPixels, b.DiffRatio()*100),
		strconv.Itoa(b.DiffPixels), b.Path)}, nil
}

// StepAnalyzer turns recorded step failures into findings.
type StepAnalyzer struct{}

// NewStepAnalyzer creates a StepAnalyzer.
func NewStepAnalyzer() *StepAnalyzer { return &StepAnalyzer{} }

// Name returns the analyzer name.
func (a *StepAnalyzer) Name() string { return "steps" }

// Analyze implements CheckAnalyzer.
func (a *StepAnalyzer) Analyze(_ context.Context, r *model.ProbeReport) ([]model.Finding, error) {
	findings := make([]model.Finding, 0, len(r.StepErrors))
	for _, se := range r.StepErrors {
		f := model.NewFinding("probe_incomplete", "Step "+se.Step+" failed", se.Step, "")
		f.Description = se.Message
		findings = append(findings, f)
	}
	return findings, nil
}
