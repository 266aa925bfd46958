// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openedge-platform/device-service-core/internal/models"
)

// TestEnvelopeRoundTrip is R1: encode(decode(e)) preserves apiVersion,
// correlationID, contentType and payload bytes.
func TestEnvelopeRoundTrip(t *testing.T) {
	e := models.Envelope{
		ApiVersion:    "v3",
		CorrelationID: "11111111-1111-1111-1111-111111111111",
		RequestID:     "req-1",
		ContentType:   models.ContentTypeJSON,
		ErrorCode:     0,
		Payload:       []byte(`{"hello":"world"}`),
		QueryParams:   map[string]string{"ds-pushevent": "true"},
	}

	encoded, err := EncodeEnvelope(e)
	require.NoError(t, err)

	decoded, err := DecodeEnvelope(encoded)
	require.NoError(t, err)

	assert.Equal(t, e.ApiVersion, decoded.ApiVersion)
	assert.Equal(t, e.CorrelationID, decoded.CorrelationID)
	assert.Equal(t, e.ContentType, decoded.ContentType)
	assert.Equal(t, e.Payload, decoded.Payload)
}
