// Package config defines client configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and TALLY_* environment variables on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the view API listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// ServerURL is the base URL of the remote tally service.
	ServerURL string `koanf:"server_url"`

	// RequestTimeoutMS bounds each round trip to the tally service.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`

	// RosterFile is an optional YAML or JSON(C) roster used when the service
	// roster cannot be loaded. Empty means the built-in roster.
	RosterFile string `koanf:"roster_file"`

	// RedactionMarker replaces voter ids in the print document.
	RedactionMarker string `koanf:"redaction_marker"`

	// NoticeTTLMS is how long the rendering layer shows an error notice.
	NoticeTTLMS int `koanf:"notice_ttl_ms"`

	// Page layout of the paginated export, in layout units.
	PageTopOffset    int `koanf:"page_top_offset"`
	PageLineHeight   int `koanf:"page_line_height"`
	PageHeaderHeight int `koanf:"page_header_height"`
	PageMaxOffset    int `koanf:"page_max_offset"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		Addr:             ":9080",
		ServerURL:        "http://localhost:5000",
		RequestTimeoutMS: 10_000,
		RedactionMarker:  "#####",
		NoticeTTLMS:      5_000,
		PageTopOffset:    10,
		PageLineHeight:   6,
		PageHeaderHeight: 8,
		PageMaxOffset:    270,
	}
}

// RequestTimeout returns RequestTimeoutMS as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// NoticeTTL returns NoticeTTLMS as a duration.
func (c *Config) NoticeTTL() time.Duration {
	return time.Duration(c.NoticeTTLMS) * time.Millisecond
}
