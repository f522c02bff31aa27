// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corosync

import "fmt"

// smallestUnsigned and smallestSigned are the widening orders used for
// integers that do not fit an existing kind.
var (
	smallestUnsigned = [...]ValueType{TypeUInt8, TypeUInt16, TypeUInt32, TypeUInt64}
	smallestSigned   = [...]ValueType{TypeInt8, TypeInt16, TypeInt32, TypeInt64}
)

// Holds reports whether a value of kind t can store v without overflow.
// Integers are held only by integer kinds and floats only by float kinds.
func Holds(t ValueType, v any) bool {
	if n, ok := asInteger(v); ok {
		return t.Integer() && n.fits(t)
	}
	if f, ok := v.(float64); ok {
		return t.Float() && floatFits(t, f)
	}
	if f, ok := v.(float32); ok {
		return t.Float() && floatFits(t, float64(f))
	}
	return false
}

// InferType picks the kind a value is stored as.
//
//  1. A string is a String.
//  2. If exists and the stored kind holds v, the stored kind is kept,
//     even if a smaller kind would also hold v.
//  3. A float is a Double.
//  4. A non-negative integer takes the first of uint8, uint16, uint32,
//     uint64 that holds it; a negative one the first of int8 … int64.
//     The bounds are the exact two's-complement ranges.
//  5. Anything else is stored as its String form (see StoredForm).
func InferType(v any, existing ValueType, exists bool) ValueType {
	if _, ok := v.(string); ok {
		return TypeString
	}
	if exists && Holds(existing, v) {
		return existing
	}
	switch v.(type) {
	case float32, float64:
		return TypeDouble
	}
	if n, ok := asInteger(v); ok {
		order := smallestUnsigned[:]
		if n.neg {
			order = smallestSigned[:]
		}
		for _, t := range order {
			if n.fits(t) {
				return t
			}
		}
	}
	return TypeString
}

// StoredForm returns v as it is stored under kind t: non-string values
// stored as String are stringified.
func StoredForm(t ValueType, v any) any {
	if t != TypeString {
		return v
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
