// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package transport provides the byte-stream dialers consumed by the
// protocol engine: plain TCP, TLS and serial. The engine only needs a
// bidirectional stream with close, so every dialer yields an
// io.ReadWriteCloser.
package transport

import (
	"crypto/tls"
	"io"
	"net"
	"time"

	"go.bug.st/serial"
)

// Dialer opens the byte stream a session runs on. The timeout bounds
// connection establishment (the t0 budget).
type Dialer interface {
	Dial(timeout time.Duration) (io.ReadWriteCloser, error)
}

// TCP dials a plain TCP stream, or a TLS stream when a configuration
// is set. The TLS wrapper satisfies the same surface as the plain
// stream.
type TCP struct {
	// Addr is the remote address, "host:port".
	Addr string
	// TLSConfig, when set, wraps the stream with TLS.
	TLSConfig *tls.Config
}

// Dial opens the stream within timeout, TLS handshake included.
func (sf TCP) Dial(timeout time.Duration) (io.ReadWriteCloser, error) {
	conn, err := net.DialTimeout("tcp", sf.Addr, timeout)
	if err != nil {
		return nil, err
	}
	if sf.TLSConfig == nil {
		return conn, nil
	}
	tlsConn := tls.Client(conn, sf.TLSConfig)
	if err := tlsConn.SetDeadline(time.Now().Add(timeout)); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := tlsConn.Handshake(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := tlsConn.SetDeadline(time.Time{}); err != nil {
		_ = tlsConn.Close()
		return nil, err
	}
	return tlsConn, nil
}

// Serial opens a serial port as the session byte stream, for gateways
// running the 104 application profile over a serial hop.
type Serial struct {
	// Port is the device name, e.g. "/dev/ttyUSB0" or "COM3".
	Port string
	// Mode configures baud rate, parity, data and stop bits; nil uses
	// the library defaults (9600 8N1).
	Mode *serial.Mode
}

// Dial opens the serial port. The timeout does not apply; opening a
// local device either succeeds or fails immediately.
func (sf Serial) Dial(time.Duration) (io.ReadWriteCloser, error) {
	mode := sf.Mode
	if mode == nil {
		mode = &serial.Mode{BaudRate: 9600}
	}
	port, err := serial.Open(sf.Port, mode)
	if err != nil {
		return nil, err
	}
	return port, nil
}
