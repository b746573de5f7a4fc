// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package cs104

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUFrameGolden(t *testing.T) {
	tests := []struct {
		name     string
		function byte
		want     []byte
	}{
		{"STARTDT act", uStartDtActive, []byte{0x68, 0x04, 0x07, 0x00, 0x00, 0x00}},
		{"STARTDT con", uStartDtConfirm, []byte{0x68, 0x04, 0x0b, 0x00, 0x00, 0x00}},
		{"STOPDT act", uStopDtActive, []byte{0x68, 0x04, 0x13, 0x00, 0x00, 0x00}},
		{"STOPDT con", uStopDtConfirm, []byte{0x68, 0x04, 0x23, 0x00, 0x00, 0x00}},
		{"TESTFR act", uTestFrActive, []byte{0x68, 0x04, 0x43, 0x00, 0x00, 0x00}},
		{"TESTFR con", uTestFrConfirm, []byte{0x68, 0x04, 0x83, 0x00, 0x00, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apdu := newUFrame(tt.function)
			assert.Equal(t, tt.want, apdu)

			head, body, err := parse(apdu)
			require.NoError(t, err)
			assert.Empty(t, body)
			assert.Equal(t, uAPCI{function: tt.function}, head)
		})
	}
}

func TestIFrameRoundTrip(t *testing.T) {
	asduBytes := []byte{0x01, 0x01, 0x03, 0x00, 0x01, 0x00, 0x64, 0x00, 0x00, 0x01}
	apdu, err := newIFrame(2, 5, asduBytes)
	require.NoError(t, err)

	// length invariant: bytes[1] == len(bytes)-2, bytes[0] == 0x68
	assert.Equal(t, byte(0x68), apdu[0])
	assert.Equal(t, byte(len(apdu)-2), apdu[1])

	head, body, err := parse(apdu)
	require.NoError(t, err)
	assert.Equal(t, iAPCI{sendSN: 2, rcvSN: 5}, head)
	assert.Equal(t, asduBytes, body)
}

func TestIFrameSeqBoundary(t *testing.T) {
	// sequence numbers cover the full 15-bit circle
	for _, sn := range []uint16{0, 1, 127, 128, 32766, 32767} {
		apdu, err := newIFrame(sn, 32767-sn, []byte{0x01})
		require.NoError(t, err)
		head, _, err := parse(apdu)
		require.NoError(t, err)
		assert.Equal(t, iAPCI{sendSN: sn, rcvSN: 32767 - sn}, head)
	}
}

func TestSFrameRoundTrip(t *testing.T) {
	apdu := newSFrame(0x1234)
	assert.Equal(t, []byte{0x68, 0x04, 0x01, 0x00, 0x68, 0x24}, apdu)

	head, body, err := parse(apdu)
	require.NoError(t, err)
	assert.Empty(t, body)
	assert.Equal(t, sAPCI{rcvSN: 0x1234}, head)
}

func TestParseViolations(t *testing.T) {
	tests := []struct {
		name string
		apdu []byte
		want error
	}{
		{"bad start", []byte{0x67, 0x04, 0x07, 0x00, 0x00, 0x00}, ErrFramingViolation},
		{"short", []byte{0x68, 0x04, 0x07}, ErrMalformedLength},
		{"length mismatch", []byte{0x68, 0x05, 0x07, 0x00, 0x00, 0x00}, ErrMalformedLength},
		{"I-frame empty body", []byte{0x68, 0x04, 0x02, 0x00, 0x00, 0x00}, ErrProtocolViolation},
		{"I-frame nr low bit", []byte{0x68, 0x05, 0x02, 0x00, 0x01, 0x00, 0xff}, ErrProtocolViolation},
		{"S-frame with body", []byte{0x68, 0x05, 0x01, 0x00, 0x00, 0x00, 0xff}, ErrProtocolViolation},
		{"S-frame reserved", []byte{0x68, 0x04, 0x05, 0x00, 0x00, 0x00}, ErrProtocolViolation},
		{"U-frame two functions", []byte{0x68, 0x04, 0x0f, 0x00, 0x00, 0x00}, ErrProtocolViolation},
		{"U-frame reserved octets", []byte{0x68, 0x04, 0x07, 0x00, 0x01, 0x00}, ErrProtocolViolation},
		{"U-frame with body", []byte{0x68, 0x05, 0x07, 0x00, 0x00, 0x00, 0xff}, ErrProtocolViolation},
		{"U-frame no function", []byte{0x68, 0x04, 0x03, 0x00, 0x00, 0x00}, ErrProtocolViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parse(tt.apdu)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewIFrameTooLarge(t *testing.T) {
	_, err := newIFrame(0, 0, make([]byte, 250))
	assert.Error(t, err)
}

func TestSeqNoCount(t *testing.T) {
	assert.Equal(t, uint16(0), seqNoCount(5, 5))
	assert.Equal(t, uint16(3), seqNoCount(5, 8))
	// wrap around the 15-bit circle
	assert.Equal(t, uint16(3), seqNoCount(32766, 1))
	assert.Equal(t, uint16(32767), seqNoCount(1, 0))
}
