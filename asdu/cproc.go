// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package asdu

// SingleCommandInfo is the information object of C_SC_NA_1. The SCO
// octet carries the command state, the qualifier of command and the
// select/execute flag.
type SingleCommandInfo struct {
	Ioa   InfoObjAddr
	Value bool
	Qoc   QualifierOfCommand
	// Select requests select-before-operate; cleared for execute.
	Select bool
}

// Addr returns the information object address.
func (sf SingleCommandInfo) Addr() InfoObjAddr { return sf.Ioa }

// octet encodes the SCO octet.
func (sf SingleCommandInfo) octet() byte {
	b := boolToBit(sf.Value) | byte(sf.Qoc&0x1f)<<2
	if sf.Select {
		b |= 0x80
	}
	return b
}

// DoubleCommandInfo is the information object of C_DC_NA_1.
type DoubleCommandInfo struct {
	Ioa    InfoObjAddr
	Value  DoublePoint
	Qoc    QualifierOfCommand
	Select bool
}

// Addr returns the information object address.
func (sf DoubleCommandInfo) Addr() InfoObjAddr { return sf.Ioa }

func (sf DoubleCommandInfo) octet() byte {
	b := sf.Value.Value() | byte(sf.Qoc&0x1f)<<2
	if sf.Select {
		b |= 0x80
	}
	return b
}

func init() {
	mustRegister(C_SC_NA_1, TypeCodec{
		ElementSize: 1,
		Encode: func(a *ASDU, obj InformationObject) error {
			cmd, ok := obj.(SingleCommandInfo)
			if !ok {
				return ErrObjectTypeMismatch
			}
			a.AppendBytes(cmd.octet())
			return nil
		},
		Decode: func(_ *Params, addr InfoObjAddr, raw []byte) (InformationObject, error) {
			return SingleCommandInfo{
				Ioa:    addr,
				Value:  raw[0]&0x01 != 0,
				Qoc:    QualifierOfCommand(raw[0] >> 2 & 0x1f),
				Select: raw[0]&0x80 != 0,
			}, nil
		},
	})

	mustRegister(C_DC_NA_1, TypeCodec{
		ElementSize: 1,
		Encode: func(a *ASDU, obj InformationObject) error {
			cmd, ok := obj.(DoubleCommandInfo)
			if !ok {
				return ErrObjectTypeMismatch
			}
			a.AppendBytes(cmd.octet())
			return nil
		},
		Decode: func(_ *Params, addr InfoObjAddr, raw []byte) (InformationObject, error) {
			return DoubleCommandInfo{
				Ioa:    addr,
				Value:  DoublePoint(raw[0] & 0x03),
				Qoc:    QualifierOfCommand(raw[0] >> 2 & 0x1f),
				Select: raw[0]&0x80 != 0,
			}, nil
		},
	})
}

// SingleCmd sends a type identification 45 (C_SC_NA_1) ASDU: single
// command. Valid causes are Activation and Deactivation.
func SingleCmd(c Connect, coa CauseOfTransmission, ca CommonAddr,
	cmd SingleCommandInfo) error {
	if coa.Cause != Activation && coa.Cause != Deactivation {
		return ErrCauseZero
	}
	u := NewASDU(c.Params(), Identifier{
		Type:       C_SC_NA_1,
		Variable:   VariableStruct{},
		Coa:        coa,
		CommonAddr: ca,
	})
	if err := u.AppendObjects(cmd); err != nil {
		return err
	}
	return c.Send(u)
}

// DoubleCmd sends a type identification 46 (C_DC_NA_1) ASDU: double
// command. Valid causes are Activation and Deactivation.
func DoubleCmd(c Connect, coa CauseOfTransmission, ca CommonAddr,
	cmd DoubleCommandInfo) error {
	if coa.Cause != Activation && coa.Cause != Deactivation {
		return ErrCauseZero
	}
	u := NewASDU(c.Params(), Identifier{
		Type:       C_DC_NA_1,
		Variable:   VariableStruct{},
		Coa:        coa,
		CommonAddr: ca,
	})
	if err := u.AppendObjects(cmd); err != nil {
		return err
	}
	return c.Send(u)
}

// GetSingleCmd returns the single command of a C_SC_NA_1 ASDU.
func (sf *ASDU) GetSingleCmd() (SingleCommandInfo, error) {
	objs, err := sf.DecodeObjects()
	if err != nil {
		return SingleCommandInfo{}, err
	}
	cmd, ok := objs[0].(SingleCommandInfo)
	if !ok {
		return SingleCommandInfo{}, ErrObjectTypeMismatch
	}
	return cmd, nil
}

// GetDoubleCmd returns the double command of a C_DC_NA_1 ASDU.
func (sf *ASDU) GetDoubleCmd() (DoubleCommandInfo, error) {
	objs, err := sf.DecodeObjects()
	if err != nil {
		return DoubleCommandInfo{}, err
	}
	cmd, ok := objs[0].(DoubleCommandInfo)
	if !ok {
		return DoubleCommandInfo{}, ErrObjectTypeMismatch
	}
	return cmd, nil
}
