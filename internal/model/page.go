package model

import (
	"sort"
	"strings"
	"time"
)

// Cookie is a browser cookie as reported by the page.
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires,omitzero"`
	Size     int64     `json:"size"`
	HTTPOnly bool      `json:"http_only"`
	Secure   bool      `json:"secure"`
	Session  bool      `json:"session"`
	SameSite string    `json:"same_site,omitempty"`
}

// Viewport holds dimensions evaluated inside the page:
// document.documentElement.clientWidth/clientHeight and
// window.devicePixelRatio.
type Viewport struct {
	Width             int64   `json:"width"`
	Height            int64   `json:"height"`
	DeviceScaleFactor float64 `json:"deviceScaleFactor"` //nolint:tagliatelle // matches the in-page property name
}

// Request is one network request observed while the page loaded.
type Request struct {
	URL          string `json:"url"`
	Method       string `json:"method"`
	ResourceType string `json:"resource_type"`
	StatusCode   int    `json:"status_code,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
	Failed       bool   `json:"failed,omitempty"`
	ErrorText    string `json:"error_text,omitempty"`
}

// IsHTTPS reports whether the request used https or wss.
func (r Request) IsHTTPS() bool {
	return strings.HasPrefix(r.URL, "https://") || strings.HasPrefix(r.URL, "wss://")
}

// ResourceCount is the number of requests of one resource type.
type ResourceCount struct {
	ResourceType string
	Count        int
}

// ResourceCounts groups requests by resource type, most frequent first.
// Ties are ordered by resource type name.
func ResourceCounts(requests []Request) []ResourceCount {
	counts := make(map[string]int)
	for _, r := range requests {
		t := r.ResourceType
		if t == "" {
			t = "Other"
		}
		counts[t]++
	}

	result := make([]ResourceCount, 0, len(counts))
	for t, c := range counts {
		result = append(result, ResourceCount{ResourceType: t, Count: c})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].ResourceType < result[j].ResourceType
	})
	return result
}

// FailedRequests returns the requests that did not complete.
func FailedRequests(requests []Request) []Request {
	var failed []Request
	for _, r := range requests {
		if r.Failed {
			failed = append(failed, r)
		}
	}
	return failed
}

// BrowserInfo is what the browser reports about itself.
type BrowserInfo struct {
	Product         string `json:"product"`
	Revision        string `json:"revision,omitempty"`
	UserAgent       string `json:"user_agent"`
	JSVersion       string `json:"js_version,omitempty"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}
