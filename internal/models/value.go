// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package models

import "fmt"

// ValueType tags the kind of data carried by a Value. Arrays carry the
// element type with an "Array" suffix, per the on-wire convention used by
// the rest of the platform (e.g. "Int16Array").
type ValueType string

const (
	ValueTypeBool    ValueType = "Bool"
	ValueTypeInt8    ValueType = "Int8"
	ValueTypeInt16   ValueType = "Int16"
	ValueTypeInt32   ValueType = "Int32"
	ValueTypeInt64   ValueType = "Int64"
	ValueTypeUint8   ValueType = "Uint8"
	ValueTypeUint16  ValueType = "Uint16"
	ValueTypeUint32  ValueType = "Uint32"
	ValueTypeUint64  ValueType = "Uint64"
	ValueTypeFloat32 ValueType = "Float32"
	ValueTypeFloat64 ValueType = "Float64"
	ValueTypeString  ValueType = "String"
	ValueTypeBinary  ValueType = "Binary"
	ValueTypeObject  ValueType = "Object"

	ValueTypeBoolArray    ValueType = "BoolArray"
	ValueTypeInt8Array    ValueType = "Int8Array"
	ValueTypeInt16Array   ValueType = "Int16Array"
	ValueTypeInt32Array   ValueType = "Int32Array"
	ValueTypeInt64Array   ValueType = "Int64Array"
	ValueTypeUint8Array   ValueType = "Uint8Array"
	ValueTypeUint16Array  ValueType = "Uint16Array"
	ValueTypeUint32Array  ValueType = "Uint32Array"
	ValueTypeUint64Array  ValueType = "Uint64Array"
	ValueTypeFloat32Array ValueType = "Float32Array"
	ValueTypeFloat64Array ValueType = "Float64Array"
)

// IsArray reports whether t denotes an array value type.
func (t ValueType) IsArray() bool {
	switch t {
	case ValueTypeBoolArray, ValueTypeInt8Array, ValueTypeInt16Array, ValueTypeInt32Array, ValueTypeInt64Array,
		ValueTypeUint8Array, ValueTypeUint16Array, ValueTypeUint32Array, ValueTypeUint64Array,
		ValueTypeFloat32Array, ValueTypeFloat64Array:
		return true
	}
	return false
}

// IsNumeric reports whether t is a scalar integer or float type (not an
// array, bool, string, binary or object).
func (t ValueType) IsNumeric() bool {
	switch t {
	case ValueTypeInt8, ValueTypeInt16, ValueTypeInt32, ValueTypeInt64,
		ValueTypeUint8, ValueTypeUint16, ValueTypeUint32, ValueTypeUint64,
		ValueTypeFloat32, ValueTypeFloat64:
		return true
	}
	return false
}

// IsFloat reports whether t is Float32 or Float64.
func (t ValueType) IsFloat() bool {
	return t == ValueTypeFloat32 || t == ValueTypeFloat64
}

// Value is the tagged union carried by every Reading and every resource
// default/bound. Only the field matching Type is meaningful.
type Value struct {
	Type ValueType

	// Origin is the driver-supplied sample timestamp in nanoseconds
	// since epoch; zero means "use wall clock at serialization".
	Origin int64

	BoolValue   bool
	NumberValue float64 // integers are stored exactly up to 2^53; overflow detection happens before this is populated
	StringValue string
	BinaryValue []byte
	MediaType   string
	ObjectValue map[string]interface{}

	BoolArray    []bool
	Int8Array    []int8
	Int16Array   []int16
	Int32Array   []int32
	Int64Array   []int64
	Uint8Array   []uint8
	Uint16Array  []uint16
	Uint32Array  []uint32
	Uint64Array  []uint64
	Float32Array []float32
	Float64Array []float64
}

// String renders the value the way an outgoing assertion check compares
// against: the textual form of whatever the type carries.
func (v Value) String() string {
	switch v.Type {
	case ValueTypeBool:
		return fmt.Sprintf("%t", v.BoolValue)
	case ValueTypeString:
		return v.StringValue
	case ValueTypeBinary:
		return fmt.Sprintf("<binary %d bytes>", len(v.BinaryValue))
	case ValueTypeObject:
		return fmt.Sprintf("%v", v.ObjectValue)
	default:
		if v.Type.IsArray() {
			return fmt.Sprintf("%v", v.arrayInterface())
		}
		if v.Type.IsFloat() {
			return fmt.Sprintf("%v", v.NumberValue)
		}
		return fmt.Sprintf("%d", int64(v.NumberValue))
	}
}

func (v Value) arrayInterface() interface{} {
	switch v.Type {
	case ValueTypeBoolArray:
		return v.BoolArray
	case ValueTypeInt8Array:
		return v.Int8Array
	case ValueTypeInt16Array:
		return v.Int16Array
	case ValueTypeInt32Array:
		return v.Int32Array
	case ValueTypeInt64Array:
		return v.Int64Array
	case ValueTypeUint8Array:
		return v.Uint8Array
	case ValueTypeUint16Array:
		return v.Uint16Array
	case ValueTypeUint32Array:
		return v.Uint32Array
	case ValueTypeUint64Array:
		return v.Uint64Array
	case ValueTypeFloat32Array:
		return v.Float32Array
	case ValueTypeFloat64Array:
		return v.Float64Array
	}
	return nil
}

// Equal is structural (deep) equality, used by the autoevent on-change
// filter. Numeric scalars are NOT compared here with a threshold; see
// NumericDelta for that -- Equal is exact.
func (v Value) Equal(other Value) bool {
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case ValueTypeBool:
		return v.BoolValue == other.BoolValue
	case ValueTypeString:
		return v.StringValue == other.StringValue
	case ValueTypeBinary:
		return bytesEqual(v.BinaryValue, other.BinaryValue)
	case ValueTypeObject:
		return fmt.Sprintf("%v", v.ObjectValue) == fmt.Sprintf("%v", other.ObjectValue)
	default:
		if v.Type.IsArray() {
			return fmt.Sprintf("%v", v.arrayInterface()) == fmt.Sprintf("%v", other.arrayInterface())
		}
		return v.NumberValue == other.NumberValue
	}
}

// NumericDelta returns the absolute difference between two numeric values
// and true, or (0, false) if either side is not numeric.
func NumericDelta(a, b Value) (float64, bool) {
	if !a.Type.IsNumeric() || !b.Type.IsNumeric() {
		return 0, false
	}
	d := a.NumberValue - b.NumberValue
	if d < 0 {
		d = -d
	}
	return d, true
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
