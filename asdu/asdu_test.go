// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package asdu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsValid(t *testing.T) {
	require.NoError(t, ParamsStandard104.Valid())
	assert.Equal(t, 6, ParamsStandard104.IdentifierSize())

	bad := &Params{CauseSize: 3, CommonAddrSize: 2, InfoObjAddrSize: 3}
	assert.ErrorIs(t, bad.Valid(), ErrParam)
}

func TestVariableStruct(t *testing.T) {
	tests := []struct {
		name string
		vsq  VariableStruct
		want byte
	}{
		{"single object", VariableStruct{Number: 1}, 0x01},
		{"sequence of 10", VariableStruct{IsSequence: true, Number: 10}, 0x8a},
		{"max number", VariableStruct{Number: 127}, 0x7f},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.vsq.Value())
			assert.Equal(t, tt.vsq, ParseVariableStruct(tt.want))
		})
	}
}

func TestCauseOfTransmission(t *testing.T) {
	coa := CauseOfTransmission{Cause: Spontaneous}
	assert.Equal(t, byte(0x03), coa.Value())

	coa = CauseOfTransmission{Cause: Activation, IsNegative: true}
	assert.Equal(t, byte(0x46), coa.Value())

	coa = CauseOfTransmission{Cause: ActivationCon, IsTest: true}
	assert.Equal(t, byte(0x87), coa.Value())
	assert.Equal(t, coa, ParseCauseOfTransmission(0x87))
}

func TestASDUMarshalGolden(t *testing.T) {
	// single-point spontaneous: type 1, one object, IOA 100, value on
	a := NewASDU(ParamsStandard104, Identifier{
		Type:       M_SP_NA_1,
		Coa:        CauseOf(Spontaneous),
		CommonAddr: 0x0001,
	})
	require.NoError(t, a.AppendObjects(SinglePointInfo{Ioa: 100, Value: true}))
	raw, err := a.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x01, 0x03, 0x00, 0x01, 0x00, 0x64, 0x00, 0x00, 0x01}, raw)
}

func TestASDUUnmarshalGolden(t *testing.T) {
	raw := []byte{0x01, 0x01, 0x03, 0x00, 0x01, 0x00, 0x64, 0x00, 0x00, 0x01}
	a := NewEmptyASDU(ParamsStandard104)
	require.NoError(t, a.UnmarshalBinary(raw))
	assert.Equal(t, M_SP_NA_1, a.Type)
	assert.Equal(t, Spontaneous, a.Coa.Cause)
	assert.Equal(t, CommonAddr(1), a.CommonAddr)

	infos, err := a.GetSinglePoint()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, InfoObjAddr(100), infos[0].Ioa)
	assert.True(t, infos[0].Value)
}

func TestASDUMarshalErrors(t *testing.T) {
	a := NewASDU(ParamsStandard104, Identifier{Type: M_SP_NA_1, CommonAddr: 1})
	_, err := a.MarshalBinary()
	assert.ErrorIs(t, err, ErrCauseZero)

	a = NewASDU(ParamsStandard104, Identifier{Type: M_SP_NA_1, Coa: CauseOf(Spontaneous)})
	_, err = a.MarshalBinary()
	assert.ErrorIs(t, err, ErrCommonAddrZero)
}

func TestASDUUnmarshalErrors(t *testing.T) {
	a := NewEmptyASDU(ParamsStandard104)
	assert.ErrorIs(t, a.UnmarshalBinary([]byte{0x01, 0x01, 0x03}), ErrLengthOutOfRange)

	// zero type identification
	assert.ErrorIs(t, a.UnmarshalBinary([]byte{0x00, 0x01, 0x03, 0x00, 0x01, 0x00}), ErrTypeIDZero)

	// zero cause
	assert.ErrorIs(t, a.UnmarshalBinary([]byte{0x01, 0x01, 0x00, 0x00, 0x01, 0x00}), ErrCauseZero)

	// zero common address
	assert.ErrorIs(t, a.UnmarshalBinary([]byte{0x01, 0x01, 0x03, 0x00, 0x00, 0x00}), ErrCommonAddrZero)
}

func TestASDUMirror(t *testing.T) {
	a := NewASDU(ParamsStandard104, Identifier{
		Type:       C_IC_NA_1,
		Coa:        CauseOf(Activation),
		CommonAddr: 1,
	})
	require.NoError(t, a.AppendObjects(InterrogationCmdInfo{Qoi: QOIStation}))

	con := a.Mirror(ActivationCon)
	assert.Equal(t, ActivationCon, con.Coa.Cause)
	assert.Equal(t, a.InfoObjBytes(), con.InfoObjBytes())
	// the original is untouched
	assert.Equal(t, Activation, a.Coa.Cause)
}

func TestInfoObjAddrRoundTrip(t *testing.T) {
	a := NewEmptyASDU(ParamsStandard104)
	require.NoError(t, a.AppendInfoObjAddr(0x123456))
	addr, err := a.ParseInfoObjAddr(a.InfoObjBytes())
	require.NoError(t, err)
	assert.Equal(t, InfoObjAddr(0x123456), addr)

	assert.ErrorIs(t, a.AppendInfoObjAddr(1<<24), ErrInfoObjAddrFit)
}
