// Copyright (c) 2026 Commonwealth Scientific and Industrial Research Organisation (CSIRO). All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package aitool

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the serve options consumed by [Run]. YAML file values are
// overridden by HOST/PORT environment variables, which are overridden by
// command-line flags.
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// ShutdownGrace bounds how long in-flight requests get to finish on
	// SIGINT/SIGTERM.
	ShutdownGrace time.Duration `yaml:"shutdownGrace"`

	RateLimit RateLimitConfig `yaml:"rateLimit"`

	// Metrics mounts Prometheus metrics at /metrics when true.
	Metrics bool `yaml:"metrics"`

	// Gzip compresses responses when the caller accepts it.
	Gzip *bool `yaml:"gzip"`
}

// RateLimitConfig configures the per-client token bucket.
type RateLimitConfig struct {
	Enabled *bool   `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

// DefaultConfig returns the config used when no file or overrides are given.
func DefaultConfig() Config {
	enabled := true
	gzip := true
	return Config{
		Host:          "0.0.0.0",
		Port:          8090,
		ShutdownGrace: 10 * time.Second,
		RateLimit:     RateLimitConfig{Enabled: &enabled, RPS: 30, Burst: 60},
		Gzip:          &gzip,
	}
}

// LoadConfig reads a YAML config file, merges it over the defaults and
// applies HOST/PORT environment overrides. An empty path skips the file and
// returns defaults plus environment.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
		merge(&cfg, parsed)
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

func merge(dst *Config, src Config) {
	if src.Host != "" {
		dst.Host = src.Host
	}
	if src.Port != 0 {
		dst.Port = src.Port
	}
	if src.ShutdownGrace != 0 {
		dst.ShutdownGrace = src.ShutdownGrace
	}
	if src.RateLimit.Enabled != nil {
		dst.RateLimit.Enabled = src.RateLimit.Enabled
	}
	if src.RateLimit.RPS != 0 {
		dst.RateLimit.RPS = src.RateLimit.RPS
	}
	if src.RateLimit.Burst != 0 {
		dst.RateLimit.Burst = src.RateLimit.Burst
	}
	if src.Metrics {
		dst.Metrics = true
	}
	if src.Gzip != nil {
		dst.Gzip = src.Gzip
	}
}

func applyEnvOverrides(cfg *Config) {
	if host := os.Getenv("HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("PORT"); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil && parsed > 0 {
			cfg.Port = parsed
		}
	}
}

func (c Config) addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c Config) rateLimitEnabled() bool {
	return c.RateLimit.Enabled == nil || *c.RateLimit.Enabled
}

func (c Config) gzipEnabled() bool {
	return c.Gzip == nil || *c.Gzip
}
