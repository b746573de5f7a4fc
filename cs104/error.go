// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package cs104

import (
	"errors"
)

// error defined
var (
	ErrUseClosedConnection = errors.New("use of closed connection")
	ErrBufferFulled        = errors.New("buffer is full")
	ErrNotActive           = errors.New("data transfer is not active")
)

// Protocol errors. All of these are session fatal: the session moves to
// stopped, the transport closes and the error surfaces once.
var (
	// ErrFramingViolation reports stream bytes ahead of the start octet.
	ErrFramingViolation = errors.New("framing violation: expected start octet 0x68")
	// ErrMalformedLength reports an APDU length octet outside [4, 253].
	ErrMalformedLength = errors.New("malformed APDU length")
	// ErrProtocolViolation reports a control field or sequence rule
	// violation.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrNrOutOfRange reports a receive sequence number acknowledging
	// frames that were never sent.
	ErrNrOutOfRange = errors.New("receive sequence number out of range")
	// ErrWindowOverflow reports more outstanding I-frames than the k
	// parameter permits.
	ErrWindowOverflow = errors.New("send window overflow")
	// ErrBufferExceeded reports receive buffer overflow before a
	// complete frame was parsable.
	ErrBufferExceeded = errors.New("receive buffer exceeded")
	// ErrPolicyViolation reports a rejection by the security policy.
	ErrPolicyViolation = errors.New("rejected by security policy")
	// ErrTransportClosed reports an unexpected transport closure.
	ErrTransportClosed = errors.New("transport closed")
	// ErrAborted reports a hard session abort by the caller.
	ErrAborted = errors.New("session aborted")
)

// Timeout errors.
var (
	// ErrTimeoutT0 reports connection establishment timeout.
	ErrTimeoutT0 = errors.New("connection establishment timeout (t0)")
	// ErrTimeoutT1 reports missing acknowledgement of a sent I-frame,
	// test frame or start/stop activation.
	ErrTimeoutT1 = errors.New("acknowledgement timeout (t1)")
	// ErrTimeoutT3 is reserved for idle supervision faults.
	ErrTimeoutT3 = errors.New("idle test frame timeout (t3)")
)
