// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package asdu

import (
	"math"
	"time"
)

// Normalize is a 16-bit normalized value covering [-1, 1-2^-15].
type Normalize int16

// Float64 converts the normalized value into its fractional range.
func (sf Normalize) Float64() float64 { return float64(sf) / 32768 }

// SinglePointInfo is the information object of M_SP_NA_1 and
// M_SP_TB_1.
type SinglePointInfo struct {
	Ioa   InfoObjAddr
	Value bool
	// Qds carries the SIQ quality flags (blocked, substituted, not
	// topical, invalid); overflow does not apply to single points.
	Qds QualityDescriptor
	// Time is the CP56Time2a tag; zero for the plain type.
	Time time.Time
}

// Addr returns the information object address.
func (sf SinglePointInfo) Addr() InfoObjAddr { return sf.Ioa }

// DoublePointInfo is the information object of M_DP_NA_1 and
// M_DP_TB_1.
type DoublePointInfo struct {
	Ioa   InfoObjAddr
	Value DoublePoint
	Qds   QualityDescriptor
	Time  time.Time
}

// Addr returns the information object address.
func (sf DoublePointInfo) Addr() InfoObjAddr { return sf.Ioa }

// MeasuredValueNormalInfo is the information object of M_ME_NA_1.
type MeasuredValueNormalInfo struct {
	Ioa   InfoObjAddr
	Value Normalize
	Qds   QualityDescriptor
	Time  time.Time
}

// Addr returns the information object address.
func (sf MeasuredValueNormalInfo) Addr() InfoObjAddr { return sf.Ioa }

// MeasuredValueScaledInfo is the information object of M_ME_NB_1.
type MeasuredValueScaledInfo struct {
	Ioa   InfoObjAddr
	Value int16
	Qds   QualityDescriptor
	Time  time.Time
}

// Addr returns the information object address.
func (sf MeasuredValueScaledInfo) Addr() InfoObjAddr { return sf.Ioa }

// MeasuredValueFloatInfo is the information object of M_ME_NC_1 and
// M_ME_TF_1.
type MeasuredValueFloatInfo struct {
	Ioa   InfoObjAddr
	Value float32
	Qds   QualityDescriptor
	Time  time.Time
}

// Addr returns the information object address.
func (sf MeasuredValueFloatInfo) Addr() InfoObjAddr { return sf.Ioa }

func boolToBit(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func init() {
	mustRegister(M_SP_NA_1, TypeCodec{
		ElementSize:     1,
		SequenceAllowed: true,
		Encode: func(a *ASDU, obj InformationObject) error {
			p, ok := obj.(SinglePointInfo)
			if !ok {
				return ErrObjectTypeMismatch
			}
			a.AppendBytes(byte(p.Qds&0xf0) | boolToBit(p.Value))
			return nil
		},
		Decode: func(_ *Params, addr InfoObjAddr, raw []byte) (InformationObject, error) {
			return SinglePointInfo{
				Ioa:   addr,
				Value: raw[0]&0x01 != 0,
				Qds:   QualityDescriptor(raw[0] & 0xf0),
			}, nil
		},
	})

	mustRegister(M_SP_TB_1, TypeCodec{
		ElementSize: 1 + CP56Time2aSize,
		Encode: func(a *ASDU, obj InformationObject) error {
			p, ok := obj.(SinglePointInfo)
			if !ok {
				return ErrObjectTypeMismatch
			}
			a.AppendBytes(byte(p.Qds&0xf0) | boolToBit(p.Value))
			a.AppendCP56Time2a(p.Time, a.InfoObjTimeZone)
			return nil
		},
		Decode: func(p *Params, addr InfoObjAddr, raw []byte) (InformationObject, error) {
			return SinglePointInfo{
				Ioa:   addr,
				Value: raw[0]&0x01 != 0,
				Qds:   QualityDescriptor(raw[0] & 0xf0),
				Time:  ParseCP56Time2a(raw[1:], p.InfoObjTimeZone),
			}, nil
		},
	})

	mustRegister(M_DP_NA_1, TypeCodec{
		ElementSize:     1,
		SequenceAllowed: true,
		Encode: func(a *ASDU, obj InformationObject) error {
			p, ok := obj.(DoublePointInfo)
			if !ok {
				return ErrObjectTypeMismatch
			}
			a.AppendBytes(byte(p.Qds&0xf0) | p.Value.Value())
			return nil
		},
		Decode: func(_ *Params, addr InfoObjAddr, raw []byte) (InformationObject, error) {
			return DoublePointInfo{
				Ioa:   addr,
				Value: DoublePoint(raw[0] & 0x03),
				Qds:   QualityDescriptor(raw[0] & 0xf0),
			}, nil
		},
	})

	mustRegister(M_ME_NA_1, TypeCodec{
		ElementSize:     3,
		SequenceAllowed: true,
		Encode: func(a *ASDU, obj InformationObject) error {
			p, ok := obj.(MeasuredValueNormalInfo)
			if !ok {
				return ErrObjectTypeMismatch
			}
			a.AppendNormalize(p.Value).AppendBytes(byte(p.Qds))
			return nil
		},
		Decode: func(_ *Params, addr InfoObjAddr, raw []byte) (InformationObject, error) {
			return MeasuredValueNormalInfo{
				Ioa:   addr,
				Value: Normalize(int16(raw[0]) | int16(raw[1])<<8),
				Qds:   QualityDescriptor(raw[2]),
			}, nil
		},
	})

	mustRegister(M_ME_NB_1, TypeCodec{
		ElementSize:     3,
		SequenceAllowed: true,
		Encode: func(a *ASDU, obj InformationObject) error {
			p, ok := obj.(MeasuredValueScaledInfo)
			if !ok {
				return ErrObjectTypeMismatch
			}
			a.AppendScaled(p.Value).AppendBytes(byte(p.Qds))
			return nil
		},
		Decode: func(_ *Params, addr InfoObjAddr, raw []byte) (InformationObject, error) {
			return MeasuredValueScaledInfo{
				Ioa:   addr,
				Value: int16(raw[0]) | int16(raw[1])<<8,
				Qds:   QualityDescriptor(raw[2]),
			}, nil
		},
	})

	mustRegister(M_ME_NC_1, TypeCodec{
		ElementSize:     5,
		SequenceAllowed: true,
		Encode: func(a *ASDU, obj InformationObject) error {
			p, ok := obj.(MeasuredValueFloatInfo)
			if !ok {
				return ErrObjectTypeMismatch
			}
			a.AppendFloat32(p.Value).AppendBytes(byte(p.Qds))
			return nil
		},
		Decode: func(_ *Params, addr InfoObjAddr, raw []byte) (InformationObject, error) {
			bits := uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16 | uint32(raw[3])<<24
			return MeasuredValueFloatInfo{
				Ioa:   addr,
				Value: math.Float32frombits(bits),
				Qds:   QualityDescriptor(raw[4]),
			}, nil
		},
	})

	mustRegister(M_ME_TF_1, TypeCodec{
		ElementSize: 5 + CP56Time2aSize,
		Encode: func(a *ASDU, obj InformationObject) error {
			p, ok := obj.(MeasuredValueFloatInfo)
			if !ok {
				return ErrObjectTypeMismatch
			}
			a.AppendFloat32(p.Value).AppendBytes(byte(p.Qds))
			a.AppendCP56Time2a(p.Time, a.InfoObjTimeZone)
			return nil
		},
		Decode: func(p *Params, addr InfoObjAddr, raw []byte) (InformationObject, error) {
			bits := uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16 | uint32(raw[3])<<24
			return MeasuredValueFloatInfo{
				Ioa:   addr,
				Value: math.Float32frombits(bits),
				Qds:   QualityDescriptor(raw[4]),
				Time:  ParseCP56Time2a(raw[5:], p.InfoObjTimeZone),
			}, nil
		},
	})
}

func sendMonitor(c Connect, typeID TypeID, isSequence bool, coa CauseOfTransmission,
	ca CommonAddr, objs ...InformationObject) error {
	if err := c.Params().Valid(); err != nil {
		return err
	}
	u := NewASDU(c.Params(), Identifier{
		Type:       typeID,
		Variable:   VariableStruct{IsSequence: isSequence},
		Coa:        coa,
		CommonAddr: ca,
	})
	if err := u.AppendObjects(objs...); err != nil {
		return err
	}
	return c.Send(u)
}

// Single sends a type identification 1 (M_SP_NA_1) ASDU: single-point
// information without time tag.
func Single(c Connect, isSequence bool, coa CauseOfTransmission, ca CommonAddr,
	infos ...SinglePointInfo) error {
	objs := make([]InformationObject, len(infos))
	for i, info := range infos {
		objs[i] = info
	}
	return sendMonitor(c, M_SP_NA_1, isSequence, coa, ca, objs...)
}

// SingleCP56Time2a sends a type identification 30 (M_SP_TB_1) ASDU:
// single-point information with seven-octet time tag.
func SingleCP56Time2a(c Connect, coa CauseOfTransmission, ca CommonAddr,
	infos ...SinglePointInfo) error {
	objs := make([]InformationObject, len(infos))
	for i, info := range infos {
		objs[i] = info
	}
	return sendMonitor(c, M_SP_TB_1, false, coa, ca, objs...)
}

// Double sends a type identification 3 (M_DP_NA_1) ASDU: double-point
// information without time tag.
func Double(c Connect, isSequence bool, coa CauseOfTransmission, ca CommonAddr,
	infos ...DoublePointInfo) error {
	objs := make([]InformationObject, len(infos))
	for i, info := range infos {
		objs[i] = info
	}
	return sendMonitor(c, M_DP_NA_1, isSequence, coa, ca, objs...)
}

// MeasuredValueNormal sends a type identification 9 (M_ME_NA_1) ASDU:
// measured value, normalized.
func MeasuredValueNormal(c Connect, isSequence bool, coa CauseOfTransmission,
	ca CommonAddr, infos ...MeasuredValueNormalInfo) error {
	objs := make([]InformationObject, len(infos))
	for i, info := range infos {
		objs[i] = info
	}
	return sendMonitor(c, M_ME_NA_1, isSequence, coa, ca, objs...)
}

// MeasuredValueScaled sends a type identification 11 (M_ME_NB_1) ASDU:
// measured value, scaled.
func MeasuredValueScaled(c Connect, isSequence bool, coa CauseOfTransmission,
	ca CommonAddr, infos ...MeasuredValueScaledInfo) error {
	objs := make([]InformationObject, len(infos))
	for i, info := range infos {
		objs[i] = info
	}
	return sendMonitor(c, M_ME_NB_1, isSequence, coa, ca, objs...)
}

// MeasuredValueFloat sends a type identification 13 (M_ME_NC_1) ASDU:
// measured value, short floating point.
func MeasuredValueFloat(c Connect, isSequence bool, coa CauseOfTransmission,
	ca CommonAddr, infos ...MeasuredValueFloatInfo) error {
	objs := make([]InformationObject, len(infos))
	for i, info := range infos {
		objs[i] = info
	}
	return sendMonitor(c, M_ME_NC_1, isSequence, coa, ca, objs...)
}

// MeasuredValueFloatCP56Time2a sends a type identification 36
// (M_ME_TF_1) ASDU: short floating point with seven-octet time tag.
func MeasuredValueFloatCP56Time2a(c Connect, coa CauseOfTransmission, ca CommonAddr,
	infos ...MeasuredValueFloatInfo) error {
	objs := make([]InformationObject, len(infos))
	for i, info := range infos {
		objs[i] = info
	}
	return sendMonitor(c, M_ME_TF_1, false, coa, ca, objs...)
}

// GetSinglePoint returns the single points of an M_SP_NA_1 or
// M_SP_TB_1 ASDU.
func (sf *ASDU) GetSinglePoint() ([]SinglePointInfo, error) {
	objs, err := sf.DecodeObjects()
	if err != nil {
		return nil, err
	}
	infos := make([]SinglePointInfo, 0, len(objs))
	for _, obj := range objs {
		info, ok := obj.(SinglePointInfo)
		if !ok {
			return nil, ErrObjectTypeMismatch
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// GetDoublePoint returns the double points of an M_DP_NA_1 ASDU.
func (sf *ASDU) GetDoublePoint() ([]DoublePointInfo, error) {
	objs, err := sf.DecodeObjects()
	if err != nil {
		return nil, err
	}
	infos := make([]DoublePointInfo, 0, len(objs))
	for _, obj := range objs {
		info, ok := obj.(DoublePointInfo)
		if !ok {
			return nil, ErrObjectTypeMismatch
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// GetMeasuredValueNormal returns the normalized values of an
// M_ME_NA_1 ASDU.
func (sf *ASDU) GetMeasuredValueNormal() ([]MeasuredValueNormalInfo, error) {
	objs, err := sf.DecodeObjects()
	if err != nil {
		return nil, err
	}
	infos := make([]MeasuredValueNormalInfo, 0, len(objs))
	for _, obj := range objs {
		info, ok := obj.(MeasuredValueNormalInfo)
		if !ok {
			return nil, ErrObjectTypeMismatch
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// GetMeasuredValueScaled returns the scaled values of an M_ME_NB_1
// ASDU.
func (sf *ASDU) GetMeasuredValueScaled() ([]MeasuredValueScaledInfo, error) {
	objs, err := sf.DecodeObjects()
	if err != nil {
		return nil, err
	}
	infos := make([]MeasuredValueScaledInfo, 0, len(objs))
	for _, obj := range objs {
		info, ok := obj.(MeasuredValueScaledInfo)
		if !ok {
			return nil, ErrObjectTypeMismatch
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// GetMeasuredValueFloat returns the short floating point values of an
// M_ME_NC_1 or M_ME_TF_1 ASDU.
func (sf *ASDU) GetMeasuredValueFloat() ([]MeasuredValueFloatInfo, error) {
	objs, err := sf.DecodeObjects()
	if err != nil {
		return nil, err
	}
	infos := make([]MeasuredValueFloatInfo, 0, len(objs))
	for _, obj := range objs {
		info, ok := obj.(MeasuredValueFloatInfo)
		if !ok {
			return nil, ErrObjectTypeMismatch
		}
		infos = append(infos, info)
	}
	return infos, nil
}
