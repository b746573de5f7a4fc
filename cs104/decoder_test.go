// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package cs104

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowReader yields its content in fixed-size chunks to exercise the
// partial-frame paths.
type slowReader struct {
	data  []byte
	chunk int
}

func (sf *slowReader) Read(p []byte) (int, error) {
	if len(sf.data) == 0 {
		return 0, io.EOF
	}
	n := sf.chunk
	if n > len(sf.data) {
		n = len(sf.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, sf.data[:n])
	sf.data = sf.data[n:]
	return n, nil
}

func TestFrameDecoderSingle(t *testing.T) {
	apdu := newUFrame(uStartDtActive)
	d := newFrameDecoder(bytes.NewReader(apdu), DefaultRecvBufferMax)
	got, err := d.next()
	require.NoError(t, err)
	assert.Equal(t, apdu, got)

	_, err = d.next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrameDecoderCoalesced(t *testing.T) {
	// three frames back to back in one stream, fed one byte per read
	first := newUFrame(uTestFrActive)
	second := newSFrame(9)
	third, err := newIFrame(0, 0, []byte{0x01, 0x01, 0x03, 0x00, 0x01, 0x00, 0x64, 0x00, 0x00, 0x01})
	require.NoError(t, err)

	var stream []byte
	stream = append(stream, first...)
	stream = append(stream, second...)
	stream = append(stream, third...)

	d := newFrameDecoder(&slowReader{data: stream, chunk: 1}, DefaultRecvBufferMax)
	for _, want := range [][]byte{first, second, third} {
		got, err := d.next()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestFrameDecoderFramingViolation(t *testing.T) {
	d := newFrameDecoder(bytes.NewReader([]byte{0x00, 0x68, 0x04}), DefaultRecvBufferMax)
	_, err := d.next()
	assert.ErrorIs(t, err, ErrFramingViolation)
}

func TestFrameDecoderMalformedLength(t *testing.T) {
	tests := []struct {
		name   string
		length byte
	}{
		{"below minimum", 0x03},
		{"above maximum", 0xfe},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newFrameDecoder(bytes.NewReader([]byte{0x68, tt.length, 0x00}), DefaultRecvBufferMax)
			_, err := d.next()
			assert.ErrorIs(t, err, ErrMalformedLength)
		})
	}
}

func TestFrameDecoderBufferExceeded(t *testing.T) {
	// a frame longer than the buffer bound can never complete
	stream := make([]byte, 128)
	stream[0] = 0x68
	stream[1] = 0xc8 // claims 200 octets
	d := newFrameDecoder(&slowReader{data: stream, chunk: 32}, 64)
	_, err := d.next()
	assert.ErrorIs(t, err, ErrBufferExceeded)
}
