package model

import "testing"

func TestSeverityString(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		severity Severity
		expected string
	}{
		{SeverityInfo, "INFO"},
		{SeverityLow, "LOW"},
		{SeverityMedium, "MEDIUM"},
		{SeverityHigh, "HIGH"},
		{SeverityCritical, "CRITICAL"},
		{Severity(999), "UNKNOWN"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			t.Parallel()
			if tc.severity.String() != tc.expected {
				t.Errorf("got %q, expected %q", tc.severity.String(), tc.expected)
			}
		})
	}
}

func TestGetSeverity(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		findingType string
		expected    Severity
	}{
		{"probe_incomplete", SeverityCritical},
		{"http_error_status", SeverityHigh},
		{"baseline_mismatch", SeverityHigh},
		{"mixed_content", SeverityMedium},
		{"failed_request", SeverityMedium},
		{"cookie_missing_secure", SeverityLow},
		{"cookie_missing_httponly", SeverityLow},
		{"third_party_host", SeverityInfo},
		{"unknown_type", SeverityInfo},
	}

	for _, tc := range testCases {
		t.Run(tc.findingType, func(t *testing.T) {
			t.Parallel()
			if result := GetSeverity(tc.findingType); result != tc.expected {
				t.Errorf("GetSeverity(%q) = %v, expected %v", tc.findingType, result, tc.expected)
			}
		})
	}
}

// Info < Low < Medium < High < Critical
func TestSeverityOrdering(t *testing.T) {
	t.Parallel()

	ordered := []Severity{SeverityInfo, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	for i := 1; i < len(ordered); i++ {
		if ordered[i-1] >= ordered[i] {
			t.Errorf("expected %v < %v", ordered[i-1], ordered[i])
		}
	}
}

func TestGetFindingInfo(t *testing.T) {
	t.Parallel()

	t.Run("every mapped type has impact and recommendation", func(t *testing.T) {
		t.Parallel()
		for findingType, info := range findingInfoMapping {
			if info.Impact == "" || info.Recommendation == "" {
				t.Errorf("finding type %q is missing impact or recommendation", findingType)
			}
		}
	})

	t.Run("unknown type returns a generic entry", func(t *testing.T) {
		t.Parallel()
		info := GetFindingInfo("does_not_exist")
		if info.Severity != SeverityInfo || info.Impact == "" {
			t.Errorf("unexpected info for unknown type: %+v", info)
		}
	})
}

func TestNewFinding(t *testing.T) {
	t.Parallel()

	f := NewFinding("cookie_missing_secure", "Cookie without Secure", "session", "example.com")
	if f.Severity != SeverityLow || f.SeverityText != "LOW" {
		t.Errorf("unexpected severity %v (%s)", f.Severity, f.SeverityText)
	}
	if f.Recommendation == "" {
		t.Error("expected recommendation from mapping")
	}
	if f.Value != "session" || f.Location != "example.com" {
		t.Errorf("unexpected value/location %q/%q", f.Value, f.Location)
	}
}
