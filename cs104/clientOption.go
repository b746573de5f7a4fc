// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package cs104

import (
	"crypto/tls"
	"time"

	"github.com/riclolsen/go-iec104/asdu"
	"github.com/riclolsen/go-iec104/transport"
)

// DefaultReconnectInterval defined default value
const DefaultReconnectInterval = 1 * time.Minute

// ClientOption client (controlling station) configuration options
type ClientOption struct {
	config            Config
	params            asdu.Params
	server            string // remote server address "host:port"
	dialer            transport.Dialer
	tlsConfig         *tls.Config
	rateCheck         RateCheck
	autoReconnect     bool
	reconnectInterval time.Duration
}

// NewOption creates a ClientOption with the default session
// configuration and the standard 104 ASDU parameters.
func NewOption() *ClientOption {
	return &ClientOption{
		config:            DefaultConfig(),
		params:            *asdu.ParamsStandard104,
		autoReconnect:     true,
		reconnectInterval: DefaultReconnectInterval,
	}
}

// SetConfig sets the session configuration. Uses DefaultConfig() if
// the provided cfg is invalid.
func (sf *ClientOption) SetConfig(cfg Config) *ClientOption {
	if err := cfg.Valid(); err != nil {
		sf.config = DefaultConfig()
	} else {
		sf.config = cfg
	}
	return sf
}

// SetParams sets the ASDU parameters. Uses asdu.ParamsStandard104 if
// the provided p is invalid.
func (sf *ClientOption) SetParams(p *asdu.Params) *ClientOption {
	if err := p.Valid(); err != nil {
		sf.params = *asdu.ParamsStandard104
	} else {
		sf.params = *p
	}
	return sf
}

// SetRemoteServer sets the remote server address, "host:port".
func (sf *ClientOption) SetRemoteServer(addr string) *ClientOption {
	sf.server = addr
	return sf
}

// SetDialer replaces the transport dialer. By default the client dials
// TCP (or TLS when a TLS configuration is set) to the remote server.
func (sf *ClientOption) SetDialer(d transport.Dialer) *ClientOption {
	sf.dialer = d
	return sf
}

// SetTLSConfig enables TLS on the default dialer.
func (sf *ClientOption) SetTLSConfig(c *tls.Config) *ClientOption {
	sf.tlsConfig = c
	return sf
}

// SetRateCheck installs the frame dispatch hook.
func (sf *ClientOption) SetRateCheck(rc RateCheck) *ClientOption {
	sf.rateCheck = rc
	return sf
}

// SetReconnectInterval sets the interval between reconnection attempts.
func (sf *ClientOption) SetReconnectInterval(t time.Duration) *ClientOption {
	if t > 0 {
		sf.reconnectInterval = t
	}
	return sf
}

// SetAutoReconnect enables or disables automatic reconnection.
func (sf *ClientOption) SetAutoReconnect(b bool) *ClientOption {
	sf.autoReconnect = b
	return sf
}
