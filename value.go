// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corosync

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// ValueType is the tag of a typed configuration value.
type ValueType uint8

const (
	TypeInt8   ValueType = 1
	TypeUInt8  ValueType = 2
	TypeInt16  ValueType = 3
	TypeUInt16 ValueType = 4
	TypeInt32  ValueType = 5
	TypeUInt32 ValueType = 6
	TypeInt64  ValueType = 7
	TypeUInt64 ValueType = 8
	TypeFloat  ValueType = 9
	TypeDouble ValueType = 10
	TypeString ValueType = 11
	// TypeBinary is recognized but has no decoding; Encode and Decode
	// reject it with NOT_SUPPORTED.
	TypeBinary ValueType = 12
)

var typeNames = [...]string{
	TypeInt8:   "int8",
	TypeUInt8:  "uint8",
	TypeInt16:  "int16",
	TypeUInt16: "uint16",
	TypeInt32:  "int32",
	TypeUInt32: "uint32",
	TypeInt64:  "int64",
	TypeUInt64: "uint64",
	TypeFloat:  "float",
	TypeDouble: "double",
	TypeString: "string",
	TypeBinary: "binary",
}

func (t ValueType) String() string {
	if t.Valid() {
		return typeNames[t]
	}
	return "type(" + strconv.Itoa(int(t)) + ")"
}

// Valid reports whether t is a known tag.
func (t ValueType) Valid() bool {
	return t >= TypeInt8 && t <= TypeBinary
}

// Integer reports whether t is one of the eight integer kinds.
func (t ValueType) Integer() bool {
	return t >= TypeInt8 && t <= TypeUInt64
}

// Signed reports whether t is a signed integer kind.
func (t ValueType) Signed() bool {
	return t.Integer() && t%2 == 1
}

// Float reports whether t is Float or Double.
func (t ValueType) Float() bool {
	return t == TypeFloat || t == TypeDouble
}

// Size is the fixed encoded width of t, or 0 for String and Binary.
func (t ValueType) Size() int {
	switch {
	case t.Integer():
		return 1 << ((t - 1) / 2)
	case t == TypeFloat:
		return 4
	case t == TypeDouble:
		return 8
	}
	return 0
}

// Value is a decoded typed value. V holds the Go type matching Type:
// int8 … uint64, float32, float64 or string.
type Value struct {
	Type ValueType
	V    any
}

func (v Value) String() string {
	return fmt.Sprintf("%s(%v)", v.Type, v.V)
}

// integer is a Go integer normalized to sign and magnitude.
type integer struct {
	neg bool
	i   int64  // valid when neg
	u   uint64 // valid when !neg
}

func asInteger(v any) (integer, bool) {
	var x int64
	switch n := v.(type) {
	case int:
		x = int64(n)
	case int8:
		x = int64(n)
	case int16:
		x = int64(n)
	case int32:
		x = int64(n)
	case int64:
		x = n
	case uint:
		return integer{u: uint64(n)}, true
	case uint8:
		return integer{u: uint64(n)}, true
	case uint16:
		return integer{u: uint64(n)}, true
	case uint32:
		return integer{u: uint64(n)}, true
	case uint64:
		return integer{u: n}, true
	case uintptr:
		return integer{u: uint64(n)}, true
	default:
		return integer{}, false
	}
	if x < 0 {
		return integer{neg: true, i: x}, true
	}
	return integer{u: uint64(x)}, true
}

func asFloat(v any) (float64, bool) {
	switch f := v.(type) {
	case float32:
		return float64(f), true
	case float64:
		return f, true
	}
	if n, ok := asInteger(v); ok {
		if n.neg {
			return float64(n.i), true
		}
		return float64(n.u), true
	}
	return 0, false
}

// fits reports whether n lies in the two's-complement range of t.
func (n integer) fits(t ValueType) bool {
	bits := uint(t.Size() * 8)
	if t.Signed() {
		if n.neg {
			return n.i >= -1<<(bits-1)
		}
		return n.u <= 1<<(bits-1)-1
	}
	if n.neg {
		return false
	}
	return bits == 64 || n.u <= 1<<bits-1
}

// bits returns n as the raw two's-complement pattern.
func (n integer) bits() uint64 {
	if n.neg {
		return uint64(n.i)
	}
	return n.u
}

func floatFits(t ValueType, f float64) bool {
	if t == TypeFloat && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return math.Abs(f) <= math.MaxFloat32
	}
	return true
}

// Encode marshals v as kind t into its fixed-width native-order form.
// A String encodes as its bytes followed by a NUL terminator and must
// not contain NUL itself. Values outside t's range fail INVALID_PARAM.
func Encode(t ValueType, v any) ([]byte, error) {
	switch {
	case t.Integer():
		n, ok := asInteger(v)
		if !ok || !n.fits(t) {
			return nil, errorf("encode", KindInvalidParam)
		}
		buf := make([]byte, t.Size())
		u := n.bits()
		switch len(buf) {
		case 1:
			buf[0] = byte(u)
		case 2:
			binary.NativeEndian.PutUint16(buf, uint16(u))
		case 4:
			binary.NativeEndian.PutUint32(buf, uint32(u))
		case 8:
			binary.NativeEndian.PutUint64(buf, u)
		}
		return buf, nil
	case t.Float():
		f, ok := asFloat(v)
		if !ok || !floatFits(t, f) {
			return nil, errorf("encode", KindInvalidParam)
		}
		if t == TypeFloat {
			return binary.NativeEndian.AppendUint32(nil, math.Float32bits(float32(f))), nil
		}
		return binary.NativeEndian.AppendUint64(nil, math.Float64bits(f)), nil
	case t == TypeString:
		s, ok := v.(string)
		if !ok || bytes.IndexByte([]byte(s), 0) >= 0 {
			return nil, errorf("encode", KindInvalidParam)
		}
		return append([]byte(s), 0), nil
	case t == TypeBinary:
		return nil, errorf("encode", KindNotSupported)
	}
	return nil, errorf("encode", KindInvalidParam)
}

// Decode unmarshals buf as kind t. Fixed-width kinds require an exact
// width. A String ends at its first NUL, or at the end of buf.
func Decode(t ValueType, buf []byte) (Value, error) {
	if t == TypeBinary {
		return Value{}, errorf("decode", KindNotSupported)
	}
	if t == TypeString {
		if i := bytes.IndexByte(buf, 0); i >= 0 {
			buf = buf[:i]
		}
		return Value{Type: t, V: string(buf)}, nil
	}
	if !t.Valid() || len(buf) != t.Size() {
		return Value{}, errorf("decode", KindInvalidParam)
	}
	var v any
	switch t {
	case TypeInt8:
		v = int8(buf[0])
	case TypeUInt8:
		v = buf[0]
	case TypeInt16:
		v = int16(binary.NativeEndian.Uint16(buf))
	case TypeUInt16:
		v = binary.NativeEndian.Uint16(buf)
	case TypeInt32:
		v = int32(binary.NativeEndian.Uint32(buf))
	case TypeUInt32:
		v = binary.NativeEndian.Uint32(buf)
	case TypeInt64:
		v = int64(binary.NativeEndian.Uint64(buf))
	case TypeUInt64:
		v = binary.NativeEndian.Uint64(buf)
	case TypeFloat:
		v = math.Float32frombits(binary.NativeEndian.Uint32(buf))
	case TypeDouble:
		v = math.Float64frombits(binary.NativeEndian.Uint64(buf))
	}
	return Value{Type: t, V: v}, nil
}
