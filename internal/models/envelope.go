// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package models

// ContentType names the wire format of an envelope's inner payload.
type ContentType string

const (
	ContentTypeJSON ContentType = "application/json"
	ContentTypeCBOR ContentType = "application/cbor"
)

// Envelope is the bus-level wrapper around a request or response
// payload. Payload is always the raw (un-base64'd) inner bytes in this
// in-memory form; base64 encoding happens only at the wire boundary
// (see internal/bus).
type Envelope struct {
	ApiVersion    string
	CorrelationID string
	RequestID     string
	ContentType   ContentType
	ErrorCode     int
	Payload       []byte
	QueryParams   map[string]string
}
