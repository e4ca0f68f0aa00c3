// Package config provides the configuration of a probe run: defaults,
// validation, the .pageprobe YAML file with per-site overrides and
// PAGEPROBE_* environment variables.
package config
