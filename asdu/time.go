// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package asdu

import (
	"time"
)

// CP56Time2aSize is the encoded size of a seven-octet time tag.
const CP56Time2aSize = 7

// CP24Time2aSize is the encoded size of a three-octet time tag.
const CP24Time2aSize = 3

// CP16Time2aSize is the encoded size of a two-octet duration.
const CP16Time2aSize = 2

// CP56Time2a encodes a seven-octet binary time: milliseconds of the
// minute, minute with invalid bit, hour with summer-time bit, day of
// month with day of week, month and two-digit year.
func CP56Time2a(t time.Time, loc *time.Location) []byte {
	if loc == nil {
		loc = time.UTC
	}
	ts := t.In(loc)
	msec := ts.Second()*1000 + ts.Nanosecond()/int(time.Millisecond)
	dow := int(ts.Weekday())
	if dow == 0 {
		dow = 7 // ISO day of week, Sunday is 7
	}
	return []byte{
		byte(msec),
		byte(msec >> 8),
		byte(ts.Minute()),
		byte(ts.Hour()),
		byte(dow<<5) | byte(ts.Day()),
		byte(ts.Month()),
		byte(ts.Year() % 100),
	}
}

// ParseCP56Time2a decodes a seven-octet binary time. The zero time is
// returned when the buffer is short or the invalid bit is set. Years
// map into 2000..2099.
func ParseCP56Time2a(b []byte, loc *time.Location) time.Time {
	if len(b) < CP56Time2aSize || b[2]&0x80 != 0 {
		return time.Time{}
	}
	if loc == nil {
		loc = time.UTC
	}
	msec := int(b[0]) | int(b[1])<<8
	min := int(b[2] & 0x3f)
	hour := int(b[3] & 0x1f)
	day := int(b[4] & 0x1f)
	month := time.Month(b[5] & 0x0f)
	year := 2000 + int(b[6]&0x7f)
	nsec := (msec % 1000) * int(time.Millisecond)
	sec := msec / 1000
	return time.Date(year, month, day, hour, min, sec, nsec, loc)
}

// CP24Time2a encodes a three-octet binary time: milliseconds of the
// minute plus the minute with invalid bit.
func CP24Time2a(t time.Time, loc *time.Location) []byte {
	if loc == nil {
		loc = time.UTC
	}
	ts := t.In(loc)
	msec := ts.Second()*1000 + ts.Nanosecond()/int(time.Millisecond)
	return []byte{
		byte(msec),
		byte(msec >> 8),
		byte(ts.Minute()),
	}
}

// ParseCP24Time2a decodes a three-octet binary time relative to the
// current hour in loc. The zero time is returned when the buffer is
// short or the invalid bit is set.
func ParseCP24Time2a(b []byte, loc *time.Location) time.Time {
	if len(b) < CP24Time2aSize || b[2]&0x80 != 0 {
		return time.Time{}
	}
	if loc == nil {
		loc = time.UTC
	}
	msec := int(b[0]) | int(b[1])<<8
	min := int(b[2] & 0x3f)
	nsec := (msec % 1000) * int(time.Millisecond)
	sec := msec / 1000
	now := time.Now().In(loc)
	return time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), min, sec, nsec, loc)
}

// CP16Time2a encodes a millisecond duration in two octets,
// little-endian.
func CP16Time2a(msec uint16) []byte {
	return []byte{byte(msec), byte(msec >> 8)}
}

// ParseCP16Time2a decodes a two-octet millisecond duration.
func ParseCP16Time2a(b []byte) uint16 {
	if len(b) < CP16Time2aSize {
		return 0
	}
	return uint16(b[0]) | uint16(b[1])<<8
}
