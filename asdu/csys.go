// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package asdu

import (
	"time"
)

// InterrogationCmdInfo is the information object of C_IC_NA_1.
type InterrogationCmdInfo struct {
	Ioa InfoObjAddr
	Qoi QualifierOfInterrogation
}

// Addr returns the information object address.
func (sf InterrogationCmdInfo) Addr() InfoObjAddr { return sf.Ioa }

// CounterInterrogationCmdInfo is the information object of C_CI_NA_1.
type CounterInterrogationCmdInfo struct {
	Ioa InfoObjAddr
	Qcc QualifierCountCall
}

// Addr returns the information object address.
func (sf CounterInterrogationCmdInfo) Addr() InfoObjAddr { return sf.Ioa }

// ClockSyncCmdInfo is the information object of C_CS_NA_1.
type ClockSyncCmdInfo struct {
	Ioa  InfoObjAddr
	Time time.Time
}

// Addr returns the information object address.
func (sf ClockSyncCmdInfo) Addr() InfoObjAddr { return sf.Ioa }

func init() {
	mustRegister(C_IC_NA_1, TypeCodec{
		ElementSize: 1,
		Encode: func(a *ASDU, obj InformationObject) error {
			cmd, ok := obj.(InterrogationCmdInfo)
			if !ok {
				return ErrObjectTypeMismatch
			}
			a.AppendBytes(byte(cmd.Qoi))
			return nil
		},
		Decode: func(_ *Params, addr InfoObjAddr, raw []byte) (InformationObject, error) {
			return InterrogationCmdInfo{Ioa: addr, Qoi: QualifierOfInterrogation(raw[0])}, nil
		},
	})

	mustRegister(C_CI_NA_1, TypeCodec{
		ElementSize: 1,
		Encode: func(a *ASDU, obj InformationObject) error {
			cmd, ok := obj.(CounterInterrogationCmdInfo)
			if !ok {
				return ErrObjectTypeMismatch
			}
			a.AppendBytes(byte(cmd.Qcc))
			return nil
		},
		Decode: func(_ *Params, addr InfoObjAddr, raw []byte) (InformationObject, error) {
			return CounterInterrogationCmdInfo{Ioa: addr, Qcc: QualifierCountCall(raw[0])}, nil
		},
	})

	mustRegister(C_CS_NA_1, TypeCodec{
		ElementSize: CP56Time2aSize,
		Encode: func(a *ASDU, obj InformationObject) error {
			cmd, ok := obj.(ClockSyncCmdInfo)
			if !ok {
				return ErrObjectTypeMismatch
			}
			a.AppendCP56Time2a(cmd.Time, a.InfoObjTimeZone)
			return nil
		},
		Decode: func(p *Params, addr InfoObjAddr, raw []byte) (InformationObject, error) {
			return ClockSyncCmdInfo{Ioa: addr, Time: ParseCP56Time2a(raw, p.InfoObjTimeZone)}, nil
		},
	})
}

// InterrogationCmd sends a type identification 100 (C_IC_NA_1) ASDU:
// interrogation command. Valid causes are Activation and Deactivation.
func InterrogationCmd(c Connect, coa CauseOfTransmission, ca CommonAddr,
	qoi QualifierOfInterrogation) error {
	if coa.Cause != Activation && coa.Cause != Deactivation {
		return ErrCauseZero
	}
	u := NewASDU(c.Params(), Identifier{
		Type:       C_IC_NA_1,
		Variable:   VariableStruct{},
		Coa:        coa,
		CommonAddr: ca,
	})
	if err := u.AppendObjects(InterrogationCmdInfo{Ioa: InfoObjAddrIrrelevant, Qoi: qoi}); err != nil {
		return err
	}
	return c.Send(u)
}

// CounterInterrogationCmd sends a type identification 101 (C_CI_NA_1)
// ASDU: counter interrogation command.
func CounterInterrogationCmd(c Connect, coa CauseOfTransmission, ca CommonAddr,
	qcc QualifierCountCall) error {
	coa.Cause = Activation
	u := NewASDU(c.Params(), Identifier{
		Type:       C_CI_NA_1,
		Variable:   VariableStruct{},
		Coa:        coa,
		CommonAddr: ca,
	})
	if err := u.AppendObjects(CounterInterrogationCmdInfo{Ioa: InfoObjAddrIrrelevant, Qcc: qcc}); err != nil {
		return err
	}
	return c.Send(u)
}

// ClockSynchronizationCmd sends a type identification 103 (C_CS_NA_1)
// ASDU: clock synchronization command.
func ClockSynchronizationCmd(c Connect, coa CauseOfTransmission, ca CommonAddr,
	t time.Time) error {
	coa.Cause = Activation
	u := NewASDU(c.Params(), Identifier{
		Type:       C_CS_NA_1,
		Variable:   VariableStruct{},
		Coa:        coa,
		CommonAddr: ca,
	})
	if err := u.AppendObjects(ClockSyncCmdInfo{Ioa: InfoObjAddrIrrelevant, Time: t}); err != nil {
		return err
	}
	return c.Send(u)
}

// GetInterrogationCmd returns the address and qualifier of a
// C_IC_NA_1 ASDU.
func (sf *ASDU) GetInterrogationCmd() (InfoObjAddr, QualifierOfInterrogation, error) {
	objs, err := sf.DecodeObjects()
	if err != nil {
		return 0, 0, err
	}
	cmd, ok := objs[0].(InterrogationCmdInfo)
	if !ok {
		return 0, 0, ErrObjectTypeMismatch
	}
	return cmd.Ioa, cmd.Qoi, nil
}

// GetCounterInterrogationCmd returns the address and qualifier of a
// C_CI_NA_1 ASDU.
func (sf *ASDU) GetCounterInterrogationCmd() (InfoObjAddr, QualifierCountCall, error) {
	objs, err := sf.DecodeObjects()
	if err != nil {
		return 0, 0, err
	}
	cmd, ok := objs[0].(CounterInterrogationCmdInfo)
	if !ok {
		return 0, 0, ErrObjectTypeMismatch
	}
	return cmd.Ioa, cmd.Qcc, nil
}

// GetClockSynchronizationCmd returns the time of a C_CS_NA_1 ASDU.
func (sf *ASDU) GetClockSynchronizationCmd() (time.Time, error) {
	objs, err := sf.DecodeObjects()
	if err != nil {
		return time.Time{}, err
	}
	cmd, ok := objs[0].(ClockSyncCmdInfo)
	if !ok {
		return time.Time{}, ErrObjectTypeMismatch
	}
	return cmd.Time, nil
}
