// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package transport

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTCPDial(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	stream, err := TCP{Addr: listener.Addr().String()}.Dial(3 * time.Second)
	require.NoError(t, err)
	defer stream.Close()

	server := <-accepted
	defer server.Close()

	_, err = stream.Write([]byte{0x68})
	require.NoError(t, err)
	buf := make([]byte, 1)
	_, err = server.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, byte(0x68), buf[0])
}

func TestTCPDialRefused(t *testing.T) {
	// a listener that is immediately closed leaves a dead port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	_, err = TCP{Addr: addr}.Dial(time.Second)
	assert.Error(t, err)
}
