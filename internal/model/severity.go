package model

// Severity represents how much attention a finding deserves.
type Severity int

const (
	// SeverityInfo indicates informational findings, e.g. third-party hosts.
	SeverityInfo Severity = iota

	// SeverityLow indicates minor issues, e.g. a cookie without HttpOnly.
	SeverityLow

	// SeverityMedium indicates issues worth fixing, e.g. mixed content.
	SeverityMedium

	// SeverityHigh indicates a page that did not render as expected, e.g.
	// an error status or a screenshot that no longer matches its baseline.
	SeverityHigh

	// SeverityCritical indicates the probe itself could not complete.
	SeverityCritical
)

// String returns a human-readable representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// FindingInfo contains metadata about a finding type.
type FindingInfo struct {
	Severity       Severity
	Impact         string
	Recommendation string
}

// findingInfoMapping is the single source of severity for every finding type.
var findingInfoMapping = map[string]FindingInfo{
	// CRITICAL
	"probe_incomplete": {
		Severity:       SeverityCritical,
		Impact:         "One or more probe steps failed, so the report is incomplete.",
		Recommendation: "Check the step errors and rerun with --verbose.",
	},

	// HIGH
	"http_error_status": {
		Severity:       SeverityHigh,
		Impact:         "The document was served with an error status; the screenshot shows an error page.",
		Recommendation: "Verify the URL and the server health.",
	},
	"baseline_mismatch": {
		Severity:       SeverityHigh,
		Impact:         "The rendering differs from the baseline screenshot.",
		Recommendation: "Review the new screenshot and update the baseline if the change is intended.",
	},
	"baseline_size_mismatch": {
		Severity:       SeverityHigh,
		Impact:         "The screenshot and the baseline have different dimensions.",
		Recommendation: "Capture both with the same device, window size and full page setting.",
	},

	// MEDIUM
	"mixed_content": {
		Severity:       SeverityMedium,
		Impact:         "An https page loaded a subresource over plain http.",
		Recommendation: "Serve every subresource over https.",
	},
	"insecure_scheme": {
		Severity:       SeverityMedium,
		Impact:         "The page was served over plain http.",
		Recommendation: "Redirect http to https and enable HSTS.",
	},
	"cookie_samesite_none_insecure": {
		Severity:       SeverityMedium,
		Impact:         "A SameSite=None cookie without Secure is rejected by current browsers.",
		Recommendation: "Set Secure on every SameSite=None cookie.",
	},
	"failed_request": {
		Severity:       SeverityMedium,
		Impact:         "A subresource failed to load; the page may render incompletely.",
		Recommendation: "Fix or remove the failing resource.",
	},

	// LOW
	"cookie_missing_secure": {
		Severity:       SeverityLow,
		Impact:         "The cookie can be sent over unencrypted connections.",
		Recommendation: "Set the Secure attribute.",
	},
	"cookie_missing_httponly": {
		Severity:       SeverityLow,
		Impact:         "The cookie is readable from JavaScript.",
		Recommendation: "Set the HttpOnly attribute unless scripts need the value.",
	},
	"redirected": {
		Severity:       SeverityLow,
		Impact:         "The requested URL redirected to a different document.",
		Recommendation: "Probe the final URL directly to skip the redirect.",
	},

	// INFO
	"third_party_host": {
		Severity:       SeverityInfo,
		Impact:         "The page loads resources from another site.",
		Recommendation: "Review third-party dependencies for privacy and availability.",
	},
	"empty_title": {
		Severity:       SeverityInfo,
		Impact:         "The document has no title.",
		Recommendation: "Add a <title> element.",
	},
}

// GetSeverity returns the severity level for a finding type.
// Returns SeverityInfo if the finding type is not in the mapping.
func GetSeverity(findingType string) Severity {
	if info, ok := findingInfoMapping[findingType]; ok {
		return info.Severity
	}
	return SeverityInfo
}

// GetFindingInfo returns the full finding information for a finding type.
func GetFindingInfo(findingType string) FindingInfo {
	if info, ok := findingInfoMapping[findingType]; ok {
		return info
	}
	return FindingInfo{
		Severity:       SeverityInfo,
		Impact:         "Unknown finding type. Review manually.",
		Recommendation: "Investigate the finding and assess risk.",
	}
}

// NewFinding builds a finding of the given type, filling in severity,
// impact and recommendation from the mapping.
func NewFinding(findingType, title, value, location string) Finding {
	info := GetFindingInfo(findingType)
	return Finding{
		Type:           findingType,
		Severity:       info.Severity,
		SeverityText:   info.Severity.String(),
		Title:          title,
		Impact:         info.Impact,
		Recommendation: info.Recommendation,
		Value:          value,
		Location:       location,
	}
}
