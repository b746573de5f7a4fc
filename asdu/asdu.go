// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package asdu implements the application service data unit codec of
// IEC 60870-5-104: the six-byte ASDU identifier, the information object
// encodings and a registry of type identifications.
package asdu

import (
	"fmt"
	"math"
	"time"
)

// ASDUSizeMax is the maximum length of an ASDU within an APDU: the
// 253-byte APDU maximum minus the four control octets.
const ASDUSizeMax = 249

// Address limits.
const (
	// InvalidCommonAddr is the invalid common address (not to be used)
	InvalidCommonAddr CommonAddr = 0
	// GlobalCommonAddr is the broadcast common address
	GlobalCommonAddr CommonAddr = 65535
	// InfoObjAddrIrrelevant is the information object address used when
	// the address carries no meaning (station-wide commands)
	InfoObjAddrIrrelevant InfoObjAddr = 0
)

// OriginAddr is the originator address.
type OriginAddr uint8

// CommonAddr is the station common address.
type CommonAddr uint16

// InfoObjAddr is the information object address.
type InfoObjAddr uint32

// Params configures the field sizes of the ASDU identifier and the
// information object address, plus the time zone applied when encoding
// and decoding time tags.
type Params struct {
	// CauseSize is the cause of transmission size in octets (1 or 2);
	// with size 2 the second octet carries the originator address.
	CauseSize int
	// CommonAddrSize is the common address size in octets (1 or 2).
	CommonAddrSize int
	// InfoObjAddrSize is the information object address size in octets
	// (1, 2 or 3).
	InfoObjAddrSize int
	// InfoObjTimeZone is the time zone of encoded time tags.
	InfoObjTimeZone *time.Location
}

// ParamsStandard104 is the fixed IEC 60870-5-104 profile: two-octet
// cause with originator, two-octet common address, three-octet
// information object address.
var ParamsStandard104 = &Params{
	CauseSize:       2,
	CommonAddrSize:  2,
	InfoObjAddrSize: 3,
	InfoObjTimeZone: time.UTC,
}

// Valid checks the parameter combination.
func (sf *Params) Valid() error {
	if sf == nil ||
		(sf.CauseSize != 1 && sf.CauseSize != 2) ||
		(sf.CommonAddrSize != 1 && sf.CommonAddrSize != 2) ||
		(sf.InfoObjAddrSize < 1 || sf.InfoObjAddrSize > 3) ||
		sf.InfoObjTimeZone == nil {
		return ErrParam
	}
	return nil
}

// ValidCommonAddr checks a common address against the configured size.
func (sf *Params) ValidCommonAddr(addr CommonAddr) error {
	if addr == InvalidCommonAddr {
		return ErrCommonAddrZero
	}
	if sf.CommonAddrSize == 1 && addr != GlobalCommonAddr && addr > 255 {
		return ErrCommonAddrFit
	}
	return nil
}

// IdentifierSize returns the encoded size of the ASDU identifier.
func (sf *Params) IdentifierSize() int {
	return 2 + sf.CauseSize + sf.CommonAddrSize
}

// VariableStruct is the variable structure qualifier: the SQ bit and
// the number of information objects.
type VariableStruct struct {
	// IsSequence is the SQ bit: one information object address followed
	// by consecutive values.
	IsSequence bool
	// Number of information objects (or values when IsSequence), [0, 127].
	Number byte
}

// ParseVariableStruct decodes the VSQ octet.
func ParseVariableStruct(b byte) VariableStruct {
	return VariableStruct{
		IsSequence: b&0x80 != 0,
		Number:     b & 0x7f,
	}
}

// Value encodes the VSQ octet.
func (sf VariableStruct) Value() byte {
	v := sf.Number & 0x7f
	if sf.IsSequence {
		v |= 0x80
	}
	return v
}

func (sf VariableStruct) String() string {
	if sf.IsSequence {
		return fmt.Sprintf("sq<%d>", sf.Number)
	}
	return fmt.Sprintf("n<%d>", sf.Number)
}

// CauseOfTransmission is the cause octet: the 6-bit cause plus the
// test and negative confirmation flags.
type CauseOfTransmission struct {
	IsTest     bool
	IsNegative bool
	Cause      Cause
}

// ParseCauseOfTransmission decodes the cause octet.
func ParseCauseOfTransmission(b byte) CauseOfTransmission {
	return CauseOfTransmission{
		IsTest:     b&0x80 != 0,
		IsNegative: b&0x40 != 0,
		Cause:      Cause(b & 0x3f),
	}
}

// Value encodes the cause octet.
func (sf CauseOfTransmission) Value() byte {
	v := byte(sf.Cause) & 0x3f
	if sf.IsNegative {
		v |= 0x40
	}
	if sf.IsTest {
		v |= 0x80
	}
	return v
}

func (sf CauseOfTransmission) String() string {
	s := sf.Cause.String()
	if sf.IsTest {
		s += ",test"
	}
	if sf.IsNegative {
		s += ",neg"
	}
	return s
}

// CauseOf builds a cause of transmission value without flags.
func CauseOf(c Cause) CauseOfTransmission {
	return CauseOfTransmission{Cause: c}
}

// Identifier is the ASDU identification field.
type Identifier struct {
	// Type is the type identification.
	Type TypeID
	// Variable is the variable structure qualifier.
	Variable VariableStruct
	// Coa is the cause of transmission.
	Coa CauseOfTransmission
	// OrigAddr is the originator address (second cause octet).
	OrigAddr OriginAddr
	// CommonAddr is the station common address.
	CommonAddr CommonAddr
}

// String returns a compact identification like "M_SP_NA_1 n<1> spont @17".
func (id Identifier) String() string {
	return fmt.Sprintf("%s %s %s @%d", id.Type, id.Variable, id.Coa, id.CommonAddr)
}

// ASDU is an application service data unit: identifier plus the raw
// information object bytes. Typed access goes through the registry.
type ASDU struct {
	*Params
	Identifier
	infoObj   []byte
	bootstrap [ASDUSizeMax]byte
}

// NewEmptyASDU returns an ASDU with the given parameters and no
// identification filled in.
func NewEmptyASDU(p *Params) *ASDU {
	a := &ASDU{Params: p}
	a.infoObj = a.bootstrap[:0]
	return a
}

// NewASDU returns an ASDU with the given identification.
func NewASDU(p *Params, identifier Identifier) *ASDU {
	a := NewEmptyASDU(p)
	a.Identifier = identifier
	return a
}

// Clone returns a deep copy of the ASDU.
func (sf *ASDU) Clone() *ASDU {
	r := NewASDU(sf.Params, sf.Identifier)
	r.infoObj = append(r.infoObj, sf.infoObj...)
	return r
}

// Mirror returns a copy of the ASDU with the cause replaced, keeping
// the test flag. Used to build act-con and act-term replies.
func (sf *ASDU) Mirror(cause Cause) *ASDU {
	r := sf.Clone()
	r.Coa.Cause = cause
	return r
}

// SendReplyMirror sends a mirrored reply with the given cause on the
// connection.
func (sf *ASDU) SendReplyMirror(c Connect, cause Cause) error {
	return c.Send(sf.Mirror(cause))
}

// InfoObjBytes returns the raw information object bytes.
func (sf *ASDU) InfoObjBytes() []byte { return sf.infoObj }

// SetInfoObjBytes replaces the raw information object bytes.
func (sf *ASDU) SetInfoObjBytes(b []byte) error {
	if len(b) > ASDUSizeMax-sf.IdentifierSize() {
		return ErrLengthOutOfRange
	}
	sf.infoObj = append(sf.bootstrap[:0], b...)
	return nil
}

// AppendBytes appends raw bytes to the information object body.
func (sf *ASDU) AppendBytes(b ...byte) *ASDU {
	sf.infoObj = append(sf.infoObj, b...)
	return sf
}

// AppendInfoObjAddr appends an information object address encoded in
// the configured size, little-endian.
func (sf *ASDU) AppendInfoObjAddr(addr InfoObjAddr) error {
	switch sf.InfoObjAddrSize {
	case 1:
		if addr > 255 {
			return ErrInfoObjAddrFit
		}
		sf.infoObj = append(sf.infoObj, byte(addr))
	case 2:
		if addr > 65535 {
			return ErrInfoObjAddrFit
		}
		sf.infoObj = append(sf.infoObj, byte(addr), byte(addr>>8))
	case 3:
		if addr > 16777215 {
			return ErrInfoObjAddrFit
		}
		sf.infoObj = append(sf.infoObj, byte(addr), byte(addr>>8), byte(addr>>16))
	default:
		return ErrParam
	}
	return nil
}

// ParseInfoObjAddr decodes an information object address from the
// front of b using the configured size.
func (sf *Params) ParseInfoObjAddr(b []byte) (InfoObjAddr, error) {
	switch sf.InfoObjAddrSize {
	case 1:
		if len(b) < 1 {
			return 0, ErrTruncated
		}
		return InfoObjAddr(b[0]), nil
	case 2:
		if len(b) < 2 {
			return 0, ErrTruncated
		}
		return InfoObjAddr(b[0]) | InfoObjAddr(b[1])<<8, nil
	case 3:
		if len(b) < 3 {
			return 0, ErrTruncated
		}
		return InfoObjAddr(b[0]) | InfoObjAddr(b[1])<<8 | InfoObjAddr(b[2])<<16, nil
	}
	return 0, ErrParam
}

// AppendNormalize appends a 16-bit normalized value, little-endian.
func (sf *ASDU) AppendNormalize(n Normalize) *ASDU {
	sf.infoObj = append(sf.infoObj, byte(n), byte(n>>8))
	return sf
}

// AppendScaled appends a 16-bit scaled value, little-endian.
func (sf *ASDU) AppendScaled(i int16) *ASDU {
	sf.infoObj = append(sf.infoObj, byte(i), byte(i>>8))
	return sf
}

// AppendFloat32 appends an IEEE 754 short float, little-endian.
func (sf *ASDU) AppendFloat32(f float32) *ASDU {
	bits := math.Float32bits(f)
	sf.infoObj = append(sf.infoObj, byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24))
	return sf
}

// AppendCP56Time2a appends a seven-octet time tag.
func (sf *ASDU) AppendCP56Time2a(t time.Time, loc *time.Location) *ASDU {
	sf.infoObj = append(sf.infoObj, CP56Time2a(t, loc)...)
	return sf
}

// AppendCP24Time2a appends a three-octet time tag.
func (sf *ASDU) AppendCP24Time2a(t time.Time, loc *time.Location) *ASDU {
	sf.infoObj = append(sf.infoObj, CP24Time2a(t, loc)...)
	return sf
}

// AppendCP16Time2a appends a two-octet millisecond duration.
func (sf *ASDU) AppendCP16Time2a(msec uint16) *ASDU {
	sf.infoObj = append(sf.infoObj, CP16Time2a(msec)...)
	return sf
}

// MarshalBinary encodes the ASDU (identifier plus information object
// bytes) per encoding.BinaryMarshaler.
func (sf *ASDU) MarshalBinary() ([]byte, error) {
	switch {
	case sf.Coa.Cause == Unused:
		return nil, ErrCauseZero
	case sf.CauseSize == 1 && sf.OrigAddr != 0:
		return nil, ErrOriginAddrFit
	}
	if err := sf.ValidCommonAddr(sf.CommonAddr); err != nil {
		return nil, err
	}

	raw := make([]byte, 0, sf.IdentifierSize()+len(sf.infoObj))
	raw = append(raw, byte(sf.Type), sf.Variable.Value(), sf.Coa.Value())
	if sf.CauseSize == 2 {
		raw = append(raw, byte(sf.OrigAddr))
	}
	if sf.CommonAddrSize == 1 {
		if sf.CommonAddr == GlobalCommonAddr {
			raw = append(raw, 255)
		} else {
			raw = append(raw, byte(sf.CommonAddr))
		}
	} else {
		raw = append(raw, byte(sf.CommonAddr), byte(sf.CommonAddr>>8))
	}
	raw = append(raw, sf.infoObj...)
	if len(raw) > ASDUSizeMax {
		return nil, ErrLengthOutOfRange
	}
	return raw, nil
}

// UnmarshalBinary decodes the ASDU identifier and retains the
// information object bytes per encoding.BinaryUnmarshaler.
func (sf *ASDU) UnmarshalBinary(data []byte) error {
	if err := sf.Params.Valid(); err != nil {
		return err
	}
	if len(data) < sf.IdentifierSize() || len(data) > ASDUSizeMax {
		return ErrLengthOutOfRange
	}

	sf.Type = TypeID(data[0])
	if sf.Type == 0 {
		return ErrTypeIDZero
	}
	sf.Variable = ParseVariableStruct(data[1])
	sf.Coa = ParseCauseOfTransmission(data[2])
	if sf.Coa.Cause == Unused {
		return ErrCauseZero
	}
	offset := 3
	if sf.CauseSize == 2 {
		sf.OrigAddr = OriginAddr(data[offset])
		offset++
	} else {
		sf.OrigAddr = 0
	}
	if sf.CommonAddrSize == 1 {
		sf.CommonAddr = CommonAddr(data[offset])
		if sf.CommonAddr == 255 {
			sf.CommonAddr = GlobalCommonAddr
		}
		offset++
	} else {
		sf.CommonAddr = CommonAddr(data[offset]) | CommonAddr(data[offset+1])<<8
		offset += 2
	}
	if sf.CommonAddr == InvalidCommonAddr {
		return ErrCommonAddrZero
	}
	sf.infoObj = append(sf.bootstrap[:0], data[offset:]...)
	return nil
}
