package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env holds settings that are usually tied to the machine rather than
// to a single invocation, such as where Chrome lives.
type Env struct {
	ChromePath  string `env:"PAGEPROBE_CHROME_PATH"`
	RemoteURL   string `env:"PAGEPROBE_REMOTE_URL"`
	ProxyServer string `env:"PAGEPROBE_PROXY"`
	Headless    *bool  `env:"PAGEPROBE_HEADLESS"`
	NoSandbox   bool   `env:"PAGEPROBE_NO_SANDBOX"`
	DBDir       string `env:"PAGEPROBE_DB_DIR"`
}

// LoadEnv parses PAGEPROBE_* environment variables.
func LoadEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// ApplyEnv copies the environment settings that are set onto c.
// Flags explicitly given on the command line are applied afterwards by the
// caller and therefore win.
func (c *Config) ApplyEnv(e Env) {
	if e.ChromePath != "" {
		c.ChromePath = e.ChromePath
	}
	if e.RemoteURL != "" {
		c.RemoteURL = e.RemoteURL
	}
	if e.ProxyServer != "" {
		c.ProxyServer = e.ProxyServer
	}
	if e.Headless != nil {
		c.Headless = *e.Headless
	}
	if e.NoSandbox {
		c.NoSandbox = true
	}
	if e.DBDir != "" {
		c.DBDir = e.DBDir
	}
}
