package model

import (
	"cmp"
	"slices"
	"time"
)

// Summary aggregates the findings of one probe.
type Summary struct {
	URL        string    `json:"url"`
	DateProbed time.Time `json:"date_probed"`

	CriticalCount int `json:"critical_count"`
	HighCount     int `json:"high_count"`
	MediumCount   int `json:"medium_count"`
	LowCount      int `json:"low_count"`
	InfoCount     int `json:"info_count"`

	Findings []Finding `json:"findings,omitempty"`
}

// Finding represents a single finding.
type Finding struct {
	// Type is the finding type identifier, a key of findingInfoMapping.
	Type string `json:"type"`

	Severity     Severity `json:"severity"`
	SeverityText string   `json:"severity_text"`

	// Title is a short description of the finding.
	Title string `json:"title"`

	Description    string `json:"description,omitempty"`
	Impact         string `json:"impact,omitempty"`
	Recommendation string `json:"recommendation,omitempty"`

	// Value is the specific value found (cookie name, URL, status).
	Value string `json:"value,omitempty"`

	// Location is where the finding was discovered.
	Location string `json:"location,omitempty"`
}

func (s *Summary) add(finding Finding) {
	for _, f := range s.Findings {
		if f.Type == finding.Type && f.Value == finding.Value && f.Location == finding.Location {
			return
		}
	}

	s.Findings = append(s.Findings, finding)

	switch finding.Severity {
	case SeverityCritical:
		s.CriticalCount++
	case SeverityHigh:
		s.HighCount++
	case SeverityMedium:
		s.MediumCount++
	case SeverityLow:
		s.LowCount++
	case SeverityInfo:
		s.InfoCount++
	}
}

// Total returns the number of findings.
func (s *Summary) Total() int {
	return len(s.Findings)
}

// SortedFindings returns the findings ordered by severity, most severe
// first, keeping insertion order within a severity.
func (s *Summary) SortedFindings() []Finding {
	sorted := slices.Clone(s.Findings)
	slices.SortStableFunc(sorted, func(a, b Finding) int {
		return cmp.Compare(b.Severity, a.Severity)
	})
	return sorted
}
