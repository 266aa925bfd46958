// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"encoding/base64"
	"encoding/json"

	edgeerr "github.com/openedge-platform/device-service-core/internal/errors"
	"github.com/openedge-platform/device-service-core/internal/models"
)

// wireEnvelope is the on-wire JSON shape of an Envelope: payload is
// base64 of the inner bytes, per §6's Envelope schema.
type wireEnvelope struct {
	ApiVersion    string            `json:"apiVersion"`
	CorrelationID string            `json:"correlationID"`
	RequestID     string            `json:"requestID,omitempty"`
	ContentType   string            `json:"contentType"`
	ErrorCode     int               `json:"errorCode"`
	Payload       string            `json:"payload"`
	QueryParams   map[string]string `json:"queryParams,omitempty"`
}

// EncodeEnvelope serializes an Envelope to the wire JSON form (R1: round
// trip preserves apiVersion, correlationID, contentType and payload
// bytes).
func EncodeEnvelope(e models.Envelope) ([]byte, error) {
	w := wireEnvelope{
		ApiVersion:    e.ApiVersion,
		CorrelationID: e.CorrelationID,
		RequestID:     e.RequestID,
		ContentType:   string(e.ContentType),
		ErrorCode:     e.ErrorCode,
		Payload:       base64.StdEncoding.EncodeToString(e.Payload),
		QueryParams:   e.QueryParams,
	}
	b, err := json.Marshal(w)
	if err != nil {
		return nil, edgeerr.Wrap(edgeerr.KindInternal, "encode envelope", err)
	}
	return b, nil
}

// DecodeEnvelope parses the wire JSON form back into an Envelope.
func DecodeEnvelope(data []byte) (models.Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return models.Envelope{}, edgeerr.Wrap(edgeerr.KindBadRequest, "decode envelope", err)
	}
	payload, err := base64.StdEncoding.DecodeString(w.Payload)
	if err != nil {
		return models.Envelope{}, edgeerr.Wrap(edgeerr.KindBadRequest, "decode envelope payload", err)
	}
	return models.Envelope{
		ApiVersion:    w.ApiVersion,
		CorrelationID: w.CorrelationID,
		RequestID:     w.RequestID,
		ContentType:   models.ContentType(w.ContentType),
		ErrorCode:     w.ErrorCode,
		Payload:       payload,
		QueryParams:   w.QueryParams,
	}, nil
}
