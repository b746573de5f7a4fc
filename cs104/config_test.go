// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package cs104

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	require.NoError(t, cfg.Valid())
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, uint16(12), cfg.SendUnAckLimitK)
	assert.Equal(t, uint16(8), cfg.RecvUnAckLimitW)
	assert.Equal(t, 30*time.Second, cfg.ConnectTimeout0)
	assert.Equal(t, 15*time.Second, cfg.SendUnAckTimeout1)
	assert.Equal(t, 10*time.Second, cfg.RecvUnAckTimeout2)
	assert.Equal(t, 20*time.Second, cfg.IdleTimeout3)
	assert.Equal(t, 64<<10, cfg.RecvBufferMax)
}

func TestConfigRanges(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"t0 too large", func(c *Config) { c.ConnectTimeout0 = 256 * time.Second }},
		{"t1 too small", func(c *Config) { c.SendUnAckTimeout1 = 100 * time.Millisecond }},
		{"t2 above t1", func(c *Config) {
			c.SendUnAckTimeout1 = 5 * time.Second
			c.RecvUnAckTimeout2 = 6 * time.Second
		}},
		{"t3 too large", func(c *Config) { c.IdleTimeout3 = 49 * time.Hour }},
		{"w not below k", func(c *Config) {
			c.SendUnAckLimitK = 8
			c.RecvUnAckLimitW = 8
		}},
		{"buffer below APDU", func(c *Config) { c.RecvBufferMax = 100 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mod(&cfg)
			assert.Error(t, cfg.Valid())
		})
	}
}

func TestConfigDegenerateWindow(t *testing.T) {
	cfg := Config{SendUnAckLimitK: 1}
	require.NoError(t, cfg.Valid())
	assert.Equal(t, uint16(1), cfg.RecvUnAckLimitW)
}
