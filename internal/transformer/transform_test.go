// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package transformer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openedge-platform/device-service-core/internal/models"
)

func f(n float64) *float64 { return &n }

// TestOutgoingIntegerScaleOffset covers seed case S1 from the service
// spec: Uint16 resource, scale=10, offset=-5, driver returns 0x0010 (16).
func TestOutgoingIntegerScaleOffset(t *testing.T) {
	v := models.Value{Type: models.ValueTypeUint16, NumberValue: 16}
	out, overflow := TransformOutgoing(v, models.Transform{Scale: f(10), Offset: f(-5)})
	assert.False(t, overflow)
	assert.Equal(t, float64(155), out.NumberValue)
}

// TestIncomingIntegerScaleOffset covers seed case S2: a caller-supplied
// 155 must invert to the raw 16 (0x0010) the driver receives.
func TestIncomingIntegerScaleOffset(t *testing.T) {
	v := models.Value{Type: models.ValueTypeUint16, NumberValue: 155}
	in, overflow := TransformIncoming(v, models.Transform{Scale: f(10), Offset: f(-5)})
	assert.False(t, overflow)
	assert.Equal(t, float64(16), in.NumberValue)
}

func TestRoundTripFloatIdentity(t *testing.T) {
	xs := []float64{0, 1, -1, 3.5, 12345.6789, -98765.4321}
	tr := models.Transform{Scale: f(2.5), Offset: f(-3.1)}
	for _, x := range xs {
		v := models.Value{Type: models.ValueTypeFloat64, NumberValue: x}
		out, overflow := TransformOutgoing(v, tr)
		assert.False(t, overflow)
		back, overflow2 := TransformIncoming(out, tr)
		assert.False(t, overflow2)
		assert.InDelta(t, x, back.NumberValue, 1e-9)
	}
}

func TestRoundTripIntegerMultiplicativeIdentity(t *testing.T) {
	tr := models.Transform{Scale: f(4), Offset: f(10)}
	for _, x := range []float64{0, 1, 2, 100, -5} {
		v := models.Value{Type: models.ValueTypeInt32, NumberValue: x}
		out, overflow := TransformOutgoing(v, tr)
		assert.False(t, overflow)
		back, overflow2 := TransformIncoming(out, tr)
		assert.False(t, overflow2)
		assert.Equal(t, x, back.NumberValue)
	}
}

func TestOutgoingOverflowDetected(t *testing.T) {
	v := models.Value{Type: models.ValueTypeUint8, NumberValue: 250}
	_, overflow := TransformOutgoing(v, models.Transform{Scale: f(10)})
	assert.True(t, overflow)
}

func TestMaskAndShift(t *testing.T) {
	mask := uint64(0x00FF)
	shift := -4 // left shift 4
	v := models.Value{Type: models.ValueTypeUint16, NumberValue: 0x1234}
	out, overflow := TransformOutgoing(v, models.Transform{Mask: &mask, Shift: &shift})
	assert.False(t, overflow)
	// 0x1234 & 0x00FF = 0x34 = 52; 52 << 4 = 832
	assert.Equal(t, float64(832), out.NumberValue)
}

func TestCheckBoundsRejectsOutOfRange(t *testing.T) {
	v := models.Value{Type: models.ValueTypeInt16, NumberValue: 200}
	err := CheckBounds(v, models.Bounds{Minimum: f(0), Maximum: f(100)})
	assert.Error(t, err)
}

func TestCheckBoundsPassesInRange(t *testing.T) {
	v := models.Value{Type: models.ValueTypeInt16, NumberValue: 50}
	err := CheckBounds(v, models.Bounds{Minimum: f(0), Maximum: f(100)})
	assert.NoError(t, err)
}

func TestEnumMappingRoundTrip(t *testing.T) {
	mapping := map[string]string{"0": "OFF", "1": "ON"}
	out, ok := MapOutgoing("1", mapping)
	assert.True(t, ok)
	assert.Equal(t, "ON", out)

	in, ok := MapIncoming("ON", mapping)
	assert.True(t, ok)
	assert.Equal(t, "1", in)
}

func TestEnumMappingUnknownPassesThrough(t *testing.T) {
	mapping := map[string]string{"0": "OFF"}
	out, ok := MapOutgoing("9", mapping)
	assert.False(t, ok)
	assert.Equal(t, "9", out)
}
