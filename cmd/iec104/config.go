// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/riclolsen/go-iec104/cs104"
)

// fileConfig is the YAML configuration of the reference CLI.
type fileConfig struct {
	K  uint16 `yaml:"k"`
	W  uint16 `yaml:"w"`
	T0 int    `yaml:"t0"` // seconds
	T1 int    `yaml:"t1"`
	T2 int    `yaml:"t2"`
	T3 int    `yaml:"t3"`

	CommonAddress uint16 `yaml:"common_address"`

	// Allowlist admits only the listed source hosts (server side).
	Allowlist []string `yaml:"allowlist"`
	// RateLimit bounds dispatched frames per second, 0 disables.
	RateLimit float64 `yaml:"rate_limit"`
	// Metrics is the listen address of the Prometheus endpoint,
	// empty disables.
	Metrics string `yaml:"metrics"`
}

// loadConfig reads the YAML file, an empty path yields defaults.
func loadConfig(path string) (*fileConfig, error) {
	cfg := &fileConfig{CommonAddress: 1}
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadParam, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadParam, err)
	}
	return cfg, nil
}

// sessionConfig converts the file values into a validated cs104
// configuration.
func (sf *fileConfig) sessionConfig() (cs104.Config, error) {
	cfg := cs104.Config{
		SendUnAckLimitK:   sf.K,
		RecvUnAckLimitW:   sf.W,
		ConnectTimeout0:   time.Duration(sf.T0) * time.Second,
		SendUnAckTimeout1: time.Duration(sf.T1) * time.Second,
		RecvUnAckTimeout2: time.Duration(sf.T2) * time.Second,
		IdleTimeout3:      time.Duration(sf.T3) * time.Second,
	}
	if err := cfg.Valid(); err != nil {
		return cfg, fmt.Errorf("%w: %v", errBadParam, err)
	}
	return cfg, nil
}
