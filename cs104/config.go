// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package cs104

import (
	"errors"
	"time"
)

// Constants defining default values and ranges for the IEC 60870-5-104
// session parameters.
const (
	// Timeout of connection establishment
	// "t0" range [1, 255]s, default 30s.
	DefaultConnectTimeout0 = 30 * time.Second
	ConnectTimeout0Min     = 1 * time.Second
	ConnectTimeout0Max     = 255 * time.Second

	// Timeout of send or test APDUs
	// "t1" range [1, 255]s, default 15s.
	DefaultSendUnAckTimeout1 = 15 * time.Second
	SendUnAckTimeout1Min     = 1 * time.Second
	SendUnAckTimeout1Max     = 255 * time.Second

	// Timeout for acknowledges in case of no data messages
	// "t2" range [1, 255]s, default 10s, must not exceed t1.
	DefaultRecvUnAckTimeout2 = 10 * time.Second
	RecvUnAckTimeout2Min     = 1 * time.Second
	RecvUnAckTimeout2Max     = 255 * time.Second

	// Timeout for sending test frames in case of a long idle state
	// "t3" range [1s, 48h], default 20s.
	DefaultIdleTimeout3 = 20 * time.Second
	IdleTimeout3Min     = 1 * time.Second
	IdleTimeout3Max     = 48 * time.Hour

	// Maximum number of outstanding I format APDUs
	// "k" range [1, 32767], default 12.
	DefaultSendUnAckLimitK = 12
	SendUnAckLimitKMin     = 1
	SendUnAckLimitKMax     = 32767

	// Latest acknowledge after receiving w I format APDUs
	// "w" range [1, k-1] (1 when k is 1), default 8 (recommendation: w should not
	// exceed two-thirds of k).
	DefaultRecvUnAckLimitW = 8

	// Bound of the receive buffer, default 64 KiB.
	DefaultRecvBufferMax = 64 << 10
)

// Config defines an IEC 60870-5-104 session configuration.
type Config struct {
	// ConnectTimeout0 "t0" is the connection establishment timeout,
	// covering TCP connect plus the start of data transfer.
	// Range [1, 255]s.
	ConnectTimeout0 time.Duration

	// SendUnAckLimitK "k" is the maximum number of unacknowledged
	// outbound I format APDUs. Submissions beyond it suspend.
	// Range [1, 32767].
	SendUnAckLimitK uint16

	// SendUnAckTimeout1 "t1" is the timeout waiting for acknowledgement
	// of a sent I format APDU or an activation of a U format APDU.
	// Expiry is fatal. Range [1, 255]s.
	SendUnAckTimeout1 time.Duration

	// RecvUnAckLimitW "w" is the number of received I format APDUs
	// after which an acknowledgement is sent at the latest.
	// Range [1, k-1]; with k = 1 the only accepted value is 1.
	RecvUnAckLimitW uint16

	// RecvUnAckTimeout2 "t2" is the longest acknowledgement delay for
	// received I format APDUs. Must not exceed t1. Range [1, 255]s.
	RecvUnAckTimeout2 time.Duration

	// IdleTimeout3 "t3" is the idle time after which a test frame is
	// sent. Range [1s, 48h].
	IdleTimeout3 time.Duration

	// RecvBufferMax bounds the receive buffer; overflow before a
	// complete frame is parsable is fatal.
	RecvBufferMax int
}

// DefaultConfig returns a configuration with the standard defaults.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout0:   DefaultConnectTimeout0,
		SendUnAckLimitK:   DefaultSendUnAckLimitK,
		SendUnAckTimeout1: DefaultSendUnAckTimeout1,
		RecvUnAckLimitW:   DefaultRecvUnAckLimitW,
		RecvUnAckTimeout2: DefaultRecvUnAckTimeout2,
		IdleTimeout3:      DefaultIdleTimeout3,
		RecvBufferMax:     DefaultRecvBufferMax,
	}
}

// Valid applies defaults and checks configuration validity.
func (sf *Config) Valid() error {
	if sf == nil {
		return errors.New("invalid nil config")
	}

	if sf.ConnectTimeout0 == 0 {
		sf.ConnectTimeout0 = DefaultConnectTimeout0
	} else if sf.ConnectTimeout0 < ConnectTimeout0Min || sf.ConnectTimeout0 > ConnectTimeout0Max {
		return errors.New("timeout t0 out of range [1, 255]s")
	}

	if sf.SendUnAckLimitK == 0 {
		sf.SendUnAckLimitK = DefaultSendUnAckLimitK
	} else if sf.SendUnAckLimitK < SendUnAckLimitKMin || sf.SendUnAckLimitK > SendUnAckLimitKMax {
		return errors.New("send unacknowledged limit k out of range [1, 32767]")
	}

	if sf.SendUnAckTimeout1 == 0 {
		sf.SendUnAckTimeout1 = DefaultSendUnAckTimeout1
	} else if sf.SendUnAckTimeout1 < SendUnAckTimeout1Min || sf.SendUnAckTimeout1 > SendUnAckTimeout1Max {
		return errors.New("timeout t1 out of range [1, 255]s")
	}

	if sf.RecvUnAckLimitW == 0 {
		sf.RecvUnAckLimitW = DefaultRecvUnAckLimitW
		if sf.RecvUnAckLimitW >= sf.SendUnAckLimitK {
			// degenerate windows fall back to ack-every-frame
			sf.RecvUnAckLimitW = 1
		}
	}
	if sf.RecvUnAckLimitW >= sf.SendUnAckLimitK && sf.SendUnAckLimitK > 1 {
		return errors.New("receive unacknowledged limit w must be less than k")
	}

	if sf.RecvUnAckTimeout2 == 0 {
		sf.RecvUnAckTimeout2 = DefaultRecvUnAckTimeout2
	} else if sf.RecvUnAckTimeout2 < RecvUnAckTimeout2Min || sf.RecvUnAckTimeout2 > RecvUnAckTimeout2Max {
		return errors.New("timeout t2 out of range [1, 255]s")
	}
	if sf.RecvUnAckTimeout2 > sf.SendUnAckTimeout1 {
		return errors.New("timeout t2 must not exceed t1")
	}

	if sf.IdleTimeout3 == 0 {
		sf.IdleTimeout3 = DefaultIdleTimeout3
	} else if sf.IdleTimeout3 < IdleTimeout3Min || sf.IdleTimeout3 > IdleTimeout3Max {
		return errors.New("timeout t3 out of range [1s, 48h]")
	}

	if sf.RecvBufferMax == 0 {
		sf.RecvBufferMax = DefaultRecvBufferMax
	} else if sf.RecvBufferMax < APDUSizeMax {
		return errors.New("receive buffer bound below maximum APDU size")
	}

	return nil
}
