// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads and validates the preflight configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	preflighterrors "github.com/tombee/preflight/pkg/errors"
)

// Config represents the complete preflight configuration.
type Config struct {
	// Origin is the default API origin used when a page's session resolves
	// same-origin. In a browser this would be the page origin; the CLI and
	// daemon need it spelled out.
	Origin string `yaml:"origin,omitempty"`

	Log     LogConfig     `yaml:"log"`
	HTTP    HTTPConfig    `yaml:"http"`
	Server  ServerConfig  `yaml:"server"`
	Cache   CacheConfig   `yaml:"cache"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// HTTPConfig configures the outbound HTTP client.
type HTTPConfig struct {
	// Timeout is the total request timeout. Zero keeps transport defaults,
	// matching browser preload behavior.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	UserAgent string `yaml:"user_agent,omitempty"`
}

// ServerConfig configures the warmer daemon.
type ServerConfig struct {
	// Addr is the listen address, e.g. "127.0.0.1:8090".
	Addr string `yaml:"addr,omitempty"`

	// RequestTimeout bounds how long a bootstrap call waits for the preload
	// futures before reporting per-key timeouts.
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"`

	// RateLimit throttles bootstrap calls. Zero RPS disables limiting.
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig configures the bootstrap rate limiter.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps,omitempty"`
	Burst int     `yaml:"burst,omitempty"`
}

// CacheConfig configures the snapshot cache.
type CacheConfig struct {
	// Path is the SQLite database path. Empty uses the default config
	// directory; pass --no-cache to the daemon to disable caching.
	Path string `yaml:"path,omitempty"`

	// MaxAge bounds how stale a snapshot may be and still be served as a
	// fallback.
	MaxAge time.Duration `yaml:"max_age,omitempty"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	// Exporter is one of none, stdout, otlp.
	Exporter string `yaml:"exporter,omitempty"`

	// Endpoint is the OTLP collector URL.
	Endpoint string `yaml:"endpoint,omitempty"`

	// SampleRate is the head sampling ratio in [0,1].
	SampleRate float64 `yaml:"sample_rate,omitempty"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "json"},
		HTTP: HTTPConfig{
			UserAgent: "preflight/1.0",
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:8090",
			RequestTimeout: 10 * time.Second,
			RateLimit:      RateLimitConfig{RPS: 50, Burst: 100},
		},
		Cache: CacheConfig{
			MaxAge: time.Hour,
		},
		Tracing: TracingConfig{Exporter: "none", SampleRate: 1},
	}
}

// Load reads the configuration from path, falling back to defaults when the
// file does not exist. Environment overrides are applied last:
//   - PREFLIGHT_ORIGIN overrides origin
//   - PREFLIGHT_ADDR overrides server.addr
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults apply.
		case err != nil:
			return nil, &preflighterrors.ConfigError{Reason: "read config file", Cause: err}
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, &preflighterrors.ConfigError{Reason: "parse config file", Cause: err}
			}
		}
	}

	if origin := os.Getenv("PREFLIGHT_ORIGIN"); origin != "" {
		cfg.Origin = origin
	}
	if addr := os.Getenv("PREFLIGHT_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Origin != "" {
		u, err := url.Parse(c.Origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return &preflighterrors.ConfigError{
				Key:    "origin",
				Reason: fmt.Sprintf("must be an absolute URL, got %q", c.Origin),
			}
		}
	}

	if c.HTTP.Timeout < 0 {
		return &preflighterrors.ConfigError{
			Key:    "http.timeout",
			Reason: fmt.Sprintf("must be >= 0, got %v", c.HTTP.Timeout),
		}
	}

	if c.Server.RequestTimeout <= 0 {
		return &preflighterrors.ConfigError{
			Key:    "server.request_timeout",
			Reason: fmt.Sprintf("must be > 0, got %v", c.Server.RequestTimeout),
		}
	}

	if c.Server.RateLimit.RPS < 0 {
		return &preflighterrors.ConfigError{
			Key:    "server.rate_limit.rps",
			Reason: fmt.Sprintf("must be >= 0, got %v", c.Server.RateLimit.RPS),
		}
	}
	if c.Server.RateLimit.RPS > 0 && c.Server.RateLimit.Burst <= 0 {
		return &preflighterrors.ConfigError{
			Key:    "server.rate_limit.burst",
			Reason: "must be > 0 when rps is set",
		}
	}

	if c.Cache.MaxAge < 0 {
		return &preflighterrors.ConfigError{
			Key:    "cache.max_age",
			Reason: fmt.Sprintf("must be >= 0, got %v", c.Cache.MaxAge),
		}
	}

	switch c.Tracing.Exporter {
	case "", "none", "stdout", "otlp":
	default:
		return &preflighterrors.ConfigError{
			Key:    "tracing.exporter",
			Reason: fmt.Sprintf("must be one of none, stdout, otlp; got %q", c.Tracing.Exporter),
		}
	}
	if c.Tracing.Exporter == "otlp" && c.Tracing.Endpoint == "" {
		return &preflighterrors.ConfigError{
			Key:    "tracing.endpoint",
			Reason: "required when exporter is otlp",
		}
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return &preflighterrors.ConfigError{
			Key:    "tracing.sample_rate",
			Reason: fmt.Sprintf("must be in [0,1], got %v", c.Tracing.SampleRate),
		}
	}

	return nil
}
