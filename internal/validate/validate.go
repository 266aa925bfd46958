// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

// Package validate implements the address-validation request of
// SPEC_FULL EXPANSION C item 5: asking whether a candidate protocol
// address would be acceptable without committing a device, reusing the
// same driver capability the device-added callback gates its insert on
// (internal/handler/callback).
package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/openedge-platform/device-service-core/internal/bus"
	"github.com/openedge-platform/device-service-core/internal/common"
	"github.com/openedge-platform/device-service-core/internal/logging"
	"github.com/openedge-platform/device-service-core/internal/models"
	drivermodels "github.com/openedge-platform/device-service-core/pkg/models"
)

// Handler answers validate-address requests by asking the driver's
// optional Validator capability; for a driver that does not implement
// it, every address is reported valid, since the core has no protocol knowledge of
// its own (spec.md Non-goals).
type Handler struct {
	Driver      drivermodels.ProtocolDriver
	Client      bus.Client
	TopicPrefix string
	ServiceName string
	Logger      logging.Client
}

type requestDTO struct {
	Protocols models.ProtocolAddress `json:"protocols"`
}

type resultDTO struct {
	RequestID string `json:"requestId"`
	Valid     bool   `json:"valid"`
	Error     string `json:"error,omitempty"`
}

// Register installs the request handler at
// "<prefix>/validate/device/request/<service>/{requestid}", mirroring
// the command-request topic shape; the result is announced on
// "<prefix>/validate/device/<service>/<requestid>" per spec.md §6,
// rather than the dispatcher's default response topic.
func (h *Handler) Register(d *bus.Dispatcher) error {
	pattern := fmt.Sprintf("%s/validate/device/request/%s/{requestid}", h.TopicPrefix, h.ServiceName)
	return d.Register(pattern, h.handle)
}

func (h *Handler) handle(ctx context.Context, request []byte, pathParams, _ map[string]string) (int, []byte) {
	requestID := pathParams["requestid"]
	if requestID == "" {
		requestID = common.NewCorrelationID()
	}

	var dto requestDTO
	if err := json.Unmarshal(request, &dto); err != nil {
		h.Logger.Error("validate request %s: invalid payload: %v", requestID, err)
		h.announce(ctx, requestID, false, err)
		return http.StatusBadRequest, nil
	}

	result := resultDTO{RequestID: requestID, Valid: true}
	if validator, ok := h.Driver.(drivermodels.Validator); ok {
		if err := validator.ValidateAddress(dto.Protocols); err != nil {
			result.Valid = false
			result.Error = err.Error()
		}
	}

	h.announce(ctx, requestID, result.Valid, nil)
	return http.StatusOK, nil
}

func (h *Handler) announce(ctx context.Context, requestID string, valid bool, err error) {
	result := resultDTO{RequestID: requestID, Valid: valid}
	if err != nil {
		result.Error = err.Error()
	}

	payload, marshalErr := json.Marshal(result)
	if marshalErr != nil {
		h.Logger.Error("failed to encode validate result %s: %v", requestID, marshalErr)
		return
	}

	envelope := models.Envelope{
		ApiVersion:    common.ApiVersion,
		CorrelationID: requestID,
		ContentType:   models.ContentTypeJSON,
		Payload:       payload,
	}
	encoded, encodeErr := bus.EncodeEnvelope(envelope)
	if encodeErr != nil {
		h.Logger.Error("failed to encode validate envelope %s: %v", requestID, encodeErr)
		return
	}

	topic := fmt.Sprintf("%s/validate/device/%s/%s", h.TopicPrefix, h.ServiceName, requestID)
	if pubErr := h.Client.Publish(ctx, topic, encoded); pubErr != nil {
		h.Logger.Error("failed to publish validate result on %s: %v", topic, pubErr)
	}
}
