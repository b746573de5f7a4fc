// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package asdu

import (
	"fmt"
	"sync"
)

// InformationObject is one decoded (address, value) pair. The concrete
// type is determined by the ASDU type identification.
type InformationObject interface {
	Addr() InfoObjAddr
}

// TypeCodec encodes and decodes the information objects of one type
// identification.
type TypeCodec struct {
	// ElementSize is the encoded size of one value, excluding the
	// information object address.
	ElementSize int
	// SequenceAllowed permits the SQ=1 encoding. Time-tagged and
	// command types never use it.
	SequenceAllowed bool
	// Encode appends the value octets of obj (without the address) to
	// the ASDU body.
	Encode func(a *ASDU, obj InformationObject) error
	// Decode reads one value from raw, which holds exactly ElementSize
	// octets.
	Decode func(p *Params, addr InfoObjAddr, raw []byte) (InformationObject, error)
}

var (
	registryMux sync.RWMutex
	registry    = make(map[TypeID]TypeCodec)
)

// RegisterType registers a codec for a type identification. Built-in
// types register during package initialization; callers may add their
// own before opening sessions. Registering an already registered type
// identification fails.
func RegisterType(id TypeID, codec TypeCodec) error {
	if id == 0 || codec.ElementSize <= 0 || codec.Encode == nil || codec.Decode == nil {
		return ErrParam
	}
	registryMux.Lock()
	defer registryMux.Unlock()
	if _, ok := registry[id]; ok {
		return fmt.Errorf("codec for %s already registered", id)
	}
	registry[id] = codec
	return nil
}

// LookupType returns the codec registered for a type identification.
func LookupType(id TypeID) (TypeCodec, bool) {
	registryMux.RLock()
	defer registryMux.RUnlock()
	c, ok := registry[id]
	return c, ok
}

func mustRegister(id TypeID, codec TypeCodec) {
	if err := RegisterType(id, codec); err != nil {
		panic(err)
	}
}

// DecodeObjects decodes the information object bytes through the
// registry, honouring the variable structure qualifier. A type
// identification without a registered codec yields an
// *UnhandledTypeError carrying the raw body; structural violations
// (zero objects, truncation, residue) yield their respective errors.
func (sf *ASDU) DecodeObjects() ([]InformationObject, error) {
	codec, ok := LookupType(sf.Type)
	if !ok {
		raw := make([]byte, len(sf.infoObj))
		copy(raw, sf.infoObj)
		return nil, &UnhandledTypeError{Type: sf.Type, Raw: raw}
	}
	n := int(sf.Variable.Number)
	if n == 0 {
		return nil, ErrEmptyASDU
	}
	if sf.Variable.IsSequence && !codec.SequenceAllowed {
		return nil, ErrNotSequence
	}

	body := sf.infoObj
	objs := make([]InformationObject, 0, n)
	if sf.Variable.IsSequence {
		addr, err := sf.ParseInfoObjAddr(body)
		if err != nil {
			return nil, err
		}
		body = body[sf.InfoObjAddrSize:]
		for i := 0; i < n; i++ {
			if len(body) < codec.ElementSize {
				return nil, ErrTruncated
			}
			obj, err := codec.Decode(sf.Params, addr+InfoObjAddr(i), body[:codec.ElementSize])
			if err != nil {
				return nil, err
			}
			objs = append(objs, obj)
			body = body[codec.ElementSize:]
		}
	} else {
		for i := 0; i < n; i++ {
			addr, err := sf.ParseInfoObjAddr(body)
			if err != nil {
				return nil, err
			}
			body = body[sf.InfoObjAddrSize:]
			if len(body) < codec.ElementSize {
				return nil, ErrTruncated
			}
			obj, err := codec.Decode(sf.Params, addr, body[:codec.ElementSize])
			if err != nil {
				return nil, err
			}
			objs = append(objs, obj)
			body = body[codec.ElementSize:]
		}
	}
	if len(body) != 0 {
		return nil, ErrTrailingBytes
	}
	return objs, nil
}

// CheckObjects validates the information object bytes without keeping
// the decoded values.
func (sf *ASDU) CheckObjects() error {
	_, err := sf.DecodeObjects()
	return err
}

// AppendObjects encodes the information objects through the registry,
// replacing the current body and setting the variable structure
// qualifier number. With SQ=1 the objects must carry consecutive
// addresses; only the first address is encoded.
func (sf *ASDU) AppendObjects(objs ...InformationObject) error {
	codec, ok := LookupType(sf.Type)
	if !ok {
		return &UnhandledTypeError{Type: sf.Type}
	}
	if len(objs) == 0 {
		return ErrEmptyASDU
	}
	if len(objs) > 127 {
		return ErrInfoObjIndexFit
	}
	if sf.Variable.IsSequence && !codec.SequenceAllowed {
		return ErrNotSequence
	}

	sf.infoObj = sf.bootstrap[:0]
	if sf.Variable.IsSequence {
		base := objs[0].Addr()
		if err := sf.AppendInfoObjAddr(base); err != nil {
			return err
		}
		for i, obj := range objs {
			if obj.Addr() != base+InfoObjAddr(i) {
				return ErrIOANotConsecutive
			}
			if err := codec.Encode(sf, obj); err != nil {
				return err
			}
		}
	} else {
		for _, obj := range objs {
			if err := sf.AppendInfoObjAddr(obj.Addr()); err != nil {
				return err
			}
			if err := codec.Encode(sf, obj); err != nil {
				return err
			}
		}
	}
	sf.Variable.Number = byte(len(objs))
	if sf.IdentifierSize()+len(sf.infoObj) > ASDUSizeMax {
		return ErrLengthOutOfRange
	}
	return nil
}
