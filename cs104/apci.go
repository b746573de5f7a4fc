// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package cs104 implements the IEC 60870-5-104 transmission profile:
// the APCI framing, the session state machine with the T0..T3 timer
// regime and the k/w flow control windows, plus client and server
// endpoints over a TCP (or TLS, or serial) byte stream.
package cs104

import (
	"fmt"

	"github.com/riclolsen/go-iec104/asdu"
)

// startFrame is the start octet ahead of every APDU.
const startFrame byte = 0x68

// APDU field length bounds: the length octet counts the four control
// octets plus the ASDU body.
const (
	// APCIFieldLen is the length of the four control octets.
	APCIFieldLen = 4
	// APDUFieldLenMin is the minimum value of the length octet.
	APDUFieldLenMin = 4
	// APDUFieldLenMax is the maximum value of the length octet.
	APDUFieldLenMax = 253
	// APDUSizeMax is the maximum size of a whole APDU on the wire,
	// start and length octets included.
	APDUSizeMax = 2 + APDUFieldLenMax
)

// U-frame control functions, mutually exclusive bits of control octet
// one (the low two bits 0b11 select the U format).
const (
	uStartDtActive  byte = 0x07
	uStartDtConfirm byte = 0x0b
	uStopDtActive   byte = 0x13
	uStopDtConfirm  byte = 0x23
	uTestFrActive   byte = 0x43
	uTestFrConfirm  byte = 0x83
)

// iAPCI is the control information of an information transfer frame.
type iAPCI struct {
	sendSN, rcvSN uint16
}

func (sf iAPCI) String() string {
	return fmt.Sprintf("I[sendNO: %d, rcvNO: %d]", sf.sendSN, sf.rcvSN)
}

// sAPCI is the control information of a supervisory frame.
type sAPCI struct {
	rcvSN uint16
}

func (sf sAPCI) String() string {
	return fmt.Sprintf("S[rcvNO: %d]", sf.rcvSN)
}

// uAPCI is the control information of an unnumbered control frame.
type uAPCI struct {
	function byte
}

func (sf uAPCI) String() string {
	var name string
	switch sf.function {
	case uStartDtActive:
		name = "startDtActive"
	case uStartDtConfirm:
		name = "startDtConfirm"
	case uStopDtActive:
		name = "stopDtActive"
	case uStopDtConfirm:
		name = "stopDtConfirm"
	case uTestFrActive:
		name = "testFrActive"
	case uTestFrConfirm:
		name = "testFrConfirm"
	default:
		name = fmt.Sprintf("unknown(%#02x)", sf.function)
	}
	return "U[" + name + "]"
}

// newIFrame encodes an information transfer APDU carrying the ASDU
// bytes. Constructing a frame with an oversized body is rejected here;
// sequence numbers are masked to their 15-bit range.
func newIFrame(sendSN, rcvSN uint16, asduBytes []byte) ([]byte, error) {
	if len(asduBytes) > asdu.ASDUSizeMax {
		return nil, asdu.ErrLengthOutOfRange
	}
	b := make([]byte, 0, 6+len(asduBytes))
	b = append(b, startFrame, byte(APCIFieldLen+len(asduBytes)),
		byte(sendSN<<1), byte(sendSN>>7),
		byte(rcvSN<<1), byte(rcvSN>>7))
	return append(b, asduBytes...), nil
}

// newSFrame encodes a supervisory APDU acknowledging rcvSN.
func newSFrame(rcvSN uint16) []byte {
	return []byte{startFrame, APCIFieldLen, 0x01, 0x00, byte(rcvSN << 1), byte(rcvSN >> 7)}
}

// newUFrame encodes an unnumbered control APDU.
func newUFrame(function byte) []byte {
	return []byte{startFrame, APCIFieldLen, function, 0x00, 0x00, 0x00}
}

// parse classifies a complete APDU (start and length octets included)
// and splits off the ASDU body. All format rules are strict: reserved
// octets must be zero, supervisory and unnumbered frames must carry no
// body, exactly one control function must be selected. There is no
// resynchronisation on violation.
func parse(apdu []byte) (interface{}, []byte, error) {
	if len(apdu) < 2+APDUFieldLenMin {
		return nil, nil, ErrMalformedLength
	}
	if apdu[0] != startFrame {
		return nil, nil, ErrFramingViolation
	}
	length := int(apdu[1])
	if length < APDUFieldLenMin || length > APDUFieldLenMax || length != len(apdu)-2 {
		return nil, nil, ErrMalformedLength
	}
	ctr1, ctr2, ctr3, ctr4 := apdu[2], apdu[3], apdu[4], apdu[5]
	body := apdu[6:]

	switch {
	case ctr1&0x01 == 0: // I format
		if ctr3&0x01 != 0 {
			return nil, nil, fmt.Errorf("%w: I-frame receive sequence low bit set", ErrProtocolViolation)
		}
		if len(body) == 0 {
			return nil, nil, fmt.Errorf("%w: I-frame without ASDU", ErrProtocolViolation)
		}
		return iAPCI{
			sendSN: uint16(ctr1)>>1 | uint16(ctr2)<<7,
			rcvSN:  uint16(ctr3)>>1 | uint16(ctr4)<<7,
		}, body, nil

	case ctr1&0x03 == 0x01: // S format
		if ctr1 != 0x01 || ctr2 != 0x00 || ctr3&0x01 != 0 {
			return nil, nil, fmt.Errorf("%w: S-frame reserved bits set", ErrProtocolViolation)
		}
		if length != APDUFieldLenMin {
			return nil, nil, fmt.Errorf("%w: S-frame length %d", ErrProtocolViolation, length)
		}
		return sAPCI{rcvSN: uint16(ctr3)>>1 | uint16(ctr4)<<7}, nil, nil

	default: // U format, ctr1&0x03 == 0x03
		if length != APDUFieldLenMin {
			return nil, nil, fmt.Errorf("%w: U-frame length %d", ErrProtocolViolation, length)
		}
		if ctr2 != 0x00 || ctr3 != 0x00 || ctr4 != 0x00 {
			return nil, nil, fmt.Errorf("%w: U-frame reserved octets set", ErrProtocolViolation)
		}
		switch ctr1 {
		case uStartDtActive, uStartDtConfirm, uStopDtActive,
			uStopDtConfirm, uTestFrActive, uTestFrConfirm:
			return uAPCI{function: ctr1}, nil, nil
		}
		return nil, nil, fmt.Errorf("%w: U-frame control function %#02x", ErrProtocolViolation, ctr1)
	}
}

// seqNoCount returns the number of sequence steps from nextAckNo to
// nextSeqNo on the 15-bit circle.
func seqNoCount(nextAckNo, nextSeqNo uint16) uint16 {
	return (nextSeqNo - nextAckNo) & 0x7fff
}
