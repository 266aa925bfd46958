// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

// Package data implements event publication (§4.5): serializing a cooked
// event to JSON or CBOR depending on its encoding, wrapping it in a bus
// envelope, and handing it to a bus.Client for delivery.
package data

import (
	"encoding/json"

	"github.com/fxamacker/cbor/v2"

	edgeerr "github.com/openedge-platform/device-service-core/internal/errors"
	"github.com/openedge-platform/device-service-core/internal/models"
)

// SerializeEvent renders event as JSON unless it carries a binary
// reading, in which case it is rendered as CBOR, per §4.5's "CBOR if the
// event encoding is BINARY, JSON otherwise" rule. The returned
// ContentType identifies which was used.
func SerializeEvent(event models.Event) ([]byte, models.ContentType, error) {
	if event.Encoding() == models.EncodingBinary {
		b, err := cbor.Marshal(event)
		if err != nil {
			return nil, "", edgeerr.Wrap(edgeerr.KindInternal, "cbor-encode event", err)
		}
		return b, models.ContentTypeCBOR, nil
	}
	b, err := json.Marshal(event)
	if err != nil {
		return nil, "", edgeerr.Wrap(edgeerr.KindInternal, "json-encode event", err)
	}
	return b, models.ContentTypeJSON, nil
}
