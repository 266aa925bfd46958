// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

// Package transformer implements the pure numeric and enum transforms
// applied to readings outgoing from, and values incoming to, a device's
// resources. See the numeric-transform-semantics section of the service
// spec for the exact stage ordering; this package is the only place that
// ordering is allowed to live.
package transformer

import (
	"math"

	edgeerr "github.com/openedge-platform/device-service-core/internal/errors"
	"github.com/openedge-platform/device-service-core/internal/models"
)

// Overflow is the sentinel string value emitted in place of a numeric
// reading whose transform produced a non-representable result.
const Overflow = "overflow"

// TransformOutgoing applies, in order, base-exponentiation, scale and
// offset (floats) or mask, shift, base and scale/offset (integers) to a
// value read from a device. It returns (value, overflowed).
func TransformOutgoing(v models.Value, t models.Transform) (models.Value, bool) {
	if !v.Type.IsNumeric() {
		return v, false
	}
	if v.Type.IsFloat() {
		return transformOutgoingFloat(v, t)
	}
	return transformOutgoingInt(v, t)
}

func transformOutgoingFloat(v models.Value, t models.Transform) (models.Value, bool) {
	x := v.NumberValue

	if t.Base != nil {
		x = math.Pow(*t.Base, x)
		if !finite(x) {
			return v, true
		}
	}
	if t.Scale != nil {
		x *= *t.Scale
		if !finite(x) {
			return v, true
		}
	}
	if t.Offset != nil {
		x += *t.Offset
		if !finite(x) {
			return v, true
		}
	}

	v.NumberValue = x
	return v, false
}

// TransformIncoming is the exact inverse of TransformOutgoing, applied in
// reverse order and skipping any stage not enabled. Used on a set to turn
// a caller-supplied external value back into the device's raw units.
func TransformIncoming(v models.Value, t models.Transform) (models.Value, bool) {
	if !v.Type.IsNumeric() {
		return v, false
	}
	if v.Type.IsFloat() {
		return transformIncomingFloat(v, t)
	}
	return transformIncomingInt(v, t)
}

func transformIncomingFloat(v models.Value, t models.Transform) (models.Value, bool) {
	x := v.NumberValue

	if t.Offset != nil {
		x -= *t.Offset
		if !finite(x) {
			return v, true
		}
	}
	if t.Scale != nil {
		if *t.Scale == 0 {
			return v, true
		}
		x /= *t.Scale
		if !finite(x) {
			return v, true
		}
	}
	if t.Base != nil {
		if *t.Base <= 0 || *t.Base == 1 || x <= 0 {
			return v, true
		}
		x = math.Log(x) / math.Log(*t.Base)
		if !finite(x) {
			return v, true
		}
	}

	v.NumberValue = x
	return v, false
}

// integerBounds returns the representable [min, max] for the declared
// integer ValueType, used to detect overflow.
func integerBounds(t models.ValueType) (min, max float64, ok bool) {
	switch t {
	case models.ValueTypeInt8:
		return math.MinInt8, math.MaxInt8, true
	case models.ValueTypeInt16:
		return math.MinInt16, math.MaxInt16, true
	case models.ValueTypeInt32:
		return math.MinInt32, math.MaxInt32, true
	case models.ValueTypeInt64:
		return math.MinInt64, math.MaxInt64, true
	case models.ValueTypeUint8:
		return 0, math.MaxUint8, true
	case models.ValueTypeUint16:
		return 0, math.MaxUint16, true
	case models.ValueTypeUint32:
		return 0, math.MaxUint32, true
	case models.ValueTypeUint64:
		return 0, math.MaxUint64, true
	}
	return 0, 0, false
}

func applyMaskShift(n int64, mask *uint64, shift *int) int64 {
	if mask != nil {
		n &= int64(*mask)
	}
	if shift != nil {
		if *shift < 0 {
			n <<= uint(-*shift)
		} else {
			n >>= uint(*shift)
		}
	}
	return n
}

func invertShiftMask(n int64, mask *uint64, shift *int) int64 {
	if shift != nil {
		if *shift < 0 {
			n >>= uint(-*shift)
		} else {
			n <<= uint(*shift)
		}
	}
	if mask != nil {
		n &= int64(*mask)
	}
	return n
}

func transformOutgoingInt(v models.Value, t models.Transform) (models.Value, bool) {
	n := int64(v.NumberValue)

	n = applyMaskShift(n, t.Mask, t.Shift)

	x := float64(n)
	if t.Base != nil {
		x = math.Pow(*t.Base, x)
	}
	if t.Scale != nil {
		x *= *t.Scale
	}
	if t.Offset != nil {
		x += *t.Offset
	}

	if !finite(x) {
		return v, true
	}
	if min, max, ok := integerBounds(v.Type); ok {
		if x < min || x > max {
			return v, true
		}
	}

	v.NumberValue = x
	return v, false
}

func transformIncomingInt(v models.Value, t models.Transform) (models.Value, bool) {
	x := v.NumberValue

	if t.Offset != nil {
		x -= *t.Offset
	}
	if t.Scale != nil {
		if *t.Scale == 0 {
			return v, true
		}
		x /= *t.Scale
	}
	if t.Base != nil {
		if *t.Base <= 0 || *t.Base == 1 || x <= 0 {
			return v, true
		}
		x = math.Log(x) / math.Log(*t.Base)
	}

	if !finite(x) {
		return v, true
	}
	n := int64(x)
	n = invertShiftMask(n, t.Mask, t.Shift)

	if min, max, ok := integerBounds(v.Type); ok {
		if float64(n) < min || float64(n) > max {
			return v, true
		}
	}

	v.NumberValue = float64(n)
	return v, false
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// CheckBounds validates a numeric value against declared Min/Max on set,
// returning a BadRequest error when out of range. Non-numeric values and
// unset bounds always pass.
func CheckBounds(v models.Value, b models.Bounds) error {
	if !v.Type.IsNumeric() {
		return nil
	}
	if b.Minimum != nil && v.NumberValue < *b.Minimum {
		return edgeerr.Newf(edgeerr.KindBadRequest, "value %v below minimum %v", v.NumberValue, *b.Minimum)
	}
	if b.Maximum != nil && v.NumberValue > *b.Maximum {
		return edgeerr.Newf(edgeerr.KindBadRequest, "value %v above maximum %v", v.NumberValue, *b.Maximum)
	}
	return nil
}

// MapOutgoing applies an enum value-mapping to a device-level string,
// returning the external name. Returns the input string unchanged (and
// false) if no mapping exists for it.
func MapOutgoing(value string, mapping map[string]string) (string, bool) {
	if mapping == nil {
		return value, false
	}
	mapped, ok := mapping[value]
	if !ok {
		return value, false
	}
	return mapped, true
}

// MapIncoming reverses a value-mapping: given an external name, finds the
// device-level string it came from. Returns the input unchanged (and
// false) if no mapping resolves it.
func MapIncoming(external string, mapping map[string]string) (string, bool) {
	if mapping == nil {
		return external, false
	}
	for deviceVal, extVal := range mapping {
		if extVal == external {
			return deviceVal, true
		}
	}
	return external, false
}
