// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2017-2018 Canonical Ltd
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

// Package command bridges the message-bus RPC layer (internal/bus) to
// the get/set pipeline (internal/command): it decodes a bus request into
// a pipeline call and encodes the pipeline's result (or error) back into
// the dispatcher's reply/status contract.
package command

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	corecommand "github.com/openedge-platform/device-service-core/internal/command"
	"github.com/openedge-platform/device-service-core/internal/bus"
	edgeerr "github.com/openedge-platform/device-service-core/internal/errors"
	"github.com/openedge-platform/device-service-core/internal/logging"
	"github.com/openedge-platform/device-service-core/internal/models"
)

// Handler registers the device command request topic and translates its
// GET/PUT verb into a Pipeline.Get/Set call.
type Handler struct {
	Pipeline    *corecommand.Pipeline
	TopicPrefix string
	ServiceName string
	Logger      logging.Client
}

// setRequest is the body of a PUT command request: resource name to
// device-level typed value.
type setRequest struct {
	Values map[string]models.Value `json:"values"`
}

// Register installs the handler at
// "<prefix>/device/command/request/<service>/{name}/{cmd}", the single
// subscription base named in spec.md §6.
func (h *Handler) Register(d *bus.Dispatcher) error {
	pattern := fmt.Sprintf("%s/device/command/request/%s/{name}/{cmd}", h.TopicPrefix, h.ServiceName)
	return d.Register(pattern, h.handle)
}

// handle dispatches on the "method" query parameter ("get", the
// default, or "put"/"set"), matching the verb-in-query-param shape the
// bus RPC layer uses since there is no HTTP verb on a bus message.
func (h *Handler) handle(ctx context.Context, request []byte, pathParams, queryParams map[string]string) (int, []byte) {
	name := pathParams["name"]
	cmd := pathParams["cmd"]

	switch queryParams["method"] {
	case "put", "set":
		return h.handleSet(ctx, name, cmd, request, queryParams)
	default:
		return h.handleGet(ctx, name, cmd, queryParams)
	}
}

func (h *Handler) handleGet(ctx context.Context, name, cmd string, queryParams map[string]string) (int, []byte) {
	result, err := h.Pipeline.Get(ctx, name, cmd, queryParams, nil)
	if err != nil {
		return h.statusFor(err, "get %s/%s failed: %v", name, cmd, err)
	}
	if result.Event == nil {
		return http.StatusOK, nil
	}
	reply, marshalErr := json.Marshal(result.Event)
	if marshalErr != nil {
		h.Logger.Error("failed to encode event for %s/%s: %v", name, cmd, marshalErr)
		return http.StatusInternalServerError, nil
	}
	return http.StatusOK, reply
}

func (h *Handler) handleSet(ctx context.Context, name, cmd string, request []byte, queryParams map[string]string) (int, []byte) {
	var body setRequest
	if len(request) > 0 {
		if err := json.Unmarshal(request, &body); err != nil {
			h.Logger.Error("set %s/%s: invalid payload: %v", name, cmd, err)
			return http.StatusBadRequest, nil
		}
	}
	if err := h.Pipeline.Set(ctx, name, cmd, body.Values, queryParams); err != nil {
		return h.statusFor(err, "set %s/%s failed: %v", name, cmd, err)
	}
	return http.StatusOK, nil
}

// statusFor maps a pipeline error's Kind onto the bus response's
// numeric status, logging at the appropriate level.
func (h *Handler) statusFor(err error, format string, args ...interface{}) (int, []byte) {
	h.Logger.Error(format, args...)
	switch edgeerr.KindOf(err) {
	case edgeerr.KindNotFound:
		return http.StatusNotFound, nil
	case edgeerr.KindLocked:
		return http.StatusLocked, nil
	case edgeerr.KindBadRequest, edgeerr.KindOverflow:
		return http.StatusBadRequest, nil
	case edgeerr.KindDriverError:
		return http.StatusBadGateway, nil
	default:
		return http.StatusInternalServerError, nil
	}
}
