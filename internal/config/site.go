package config

import (
	"maps"
	"net/url"
	"strings"
)

// SiteConfig holds site-specific configuration for a single host.
type SiteConfig struct {
	// Cookie is set in the browser before navigation.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra HTTP headers sent with every request of the page.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Device overrides the emulated device for this site.
	Device string `yaml:"device,omitempty"`

	// Banner overrides the injected banner text for this site.
	Banner string `yaml:"banner,omitempty"`

	// FullPage captures the whole document for this site.
	FullPage bool `yaml:"fullPage,omitempty"`
}

// File represents the structure of the .pageprobe configuration file.
type File struct {
	// Sites maps host names (e.g. "example.com") to their configuration.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults applies to every site unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for host merged over the defaults.
// A full URL is accepted as well; only its host is used for the lookup.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	if u, err := url.Parse(host); err == nil && u.Host != "" {
		host = u.Hostname()
	}

	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)

	siteConfig, ok := cf.Sites[host]
	if !ok {
		return result
	}

	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if siteConfig.Device != "" {
		result.Device = siteConfig.Device
	}
	if siteConfig.Banner != "" {
		result.Banner = siteConfig.Banner
	}
	if siteConfig.FullPage {
		result.FullPage = true
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(siteConfig.Headers))
		}
		maps.Copy(result.Headers, siteConfig.Headers)
	}
	return result
}

// CookiePair is a single name=value pair parsed from SiteConfig.Cookie.
type CookiePair struct {
	Name  string
	Value string
}

// ParseCookies splits a "name1=value1; name2=value2" string.
// Malformed segments without '=' or with an empty name are skipped.
func ParseCookies(raw string) []CookiePair {
	var pairs []CookiePair
	for _, part := range strings.Split(raw, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		pairs = append(pairs, CookiePair{Name: name, Value: strings.TrimSpace(value)})
	}
	return pairs
}
