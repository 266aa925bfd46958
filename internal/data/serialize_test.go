// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package data

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openedge-platform/device-service-core/internal/models"
)

func TestSerializeEventChoosesJSONForTextReadings(t *testing.T) {
	event := models.Event{
		DeviceName:  "sensor7",
		ProfileName: "sensor-profile",
		SourceName:  "read_all",
		Readings: []models.Reading{
			{
				ResourceName: "temperature",
				ValueType:    models.ValueTypeFloat64,
				Value:        models.Value{Type: models.ValueTypeFloat64, NumberValue: 21.5},
			},
		},
	}

	payload, contentType, err := SerializeEvent(event)
	require.NoError(t, err)
	assert.Equal(t, models.ContentTypeJSON, contentType)
	assert.Contains(t, string(payload), "temperature")
}

// TestSerializeEventCBORRoundTrip is R2: CBOR event encode(decode(e))
// preserves the readings array up to field order.
func TestSerializeEventCBORRoundTrip(t *testing.T) {
	event := models.Event{
		DeviceName:  "camera1",
		ProfileName: "camera-profile",
		SourceName:  "snapshot",
		Readings: []models.Reading{
			{
				ResourceName: "image",
				ValueType:    models.ValueTypeBinary,
				Value:        models.Value{Type: models.ValueTypeBinary, BinaryValue: []byte{0xDE, 0xAD, 0xBE, 0xEF}},
			},
		},
	}

	payload, contentType, err := SerializeEvent(event)
	require.NoError(t, err)
	assert.Equal(t, models.ContentTypeCBOR, contentType)

	var decoded models.Event
	require.NoError(t, cbor.Unmarshal(payload, &decoded))

	require.Len(t, decoded.Readings, 1)
	assert.Equal(t, event.Readings[0].ResourceName, decoded.Readings[0].ResourceName)
	assert.Equal(t, event.Readings[0].Value.BinaryValue, decoded.Readings[0].Value.BinaryValue)
	assert.Equal(t, event.DeviceName, decoded.DeviceName)
}
