// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package validate

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openedge-platform/device-service-core/internal/bus"
	"github.com/openedge-platform/device-service-core/internal/logging"
	"github.com/openedge-platform/device-service-core/internal/models"
	drivermodels "github.com/openedge-platform/device-service-core/pkg/models"
)

type noopDriver struct{}

func (noopDriver) Initialize(map[string]string, chan<- *drivermodels.AsyncValues) error { return nil }
func (noopDriver) Reconfigure(map[string]string) error                                  { return nil }
func (noopDriver) CreateAddress(models.ProtocolAddress) (interface{}, error)             { return nil, nil }
func (noopDriver) FreeAddress(interface{})                                               {}
func (noopDriver) CreateResourceAttr(models.ResourceAttributes) (interface{}, error)     { return nil, nil }
func (noopDriver) FreeResourceAttr(interface{})                                          {}
func (noopDriver) HandleGet(string, interface{}, []drivermodels.CommandRequest, map[string]string) ([]models.Value, error) {
	return nil, nil
}
func (noopDriver) HandlePut(string, interface{}, []drivermodels.CommandRequest, []models.Value, map[string]string) error {
	return nil
}
func (noopDriver) DeviceAdded(string, interface{}, []drivermodels.CommandRequest) {}
func (noopDriver) DeviceUpdated(string, interface{})                             {}
func (noopDriver) DeviceRemoved(string)                                          {}
func (noopDriver) Stop(bool) error                                               { return nil }

type validatingDriver struct {
	noopDriver
	reject bool
}

func (d validatingDriver) ValidateAddress(protocols models.ProtocolAddress) error {
	if d.reject {
		return assert.AnError
	}
	return nil
}

type recordingClient struct {
	topic   string
	payload []byte
}

func (c *recordingClient) Connect(context.Context) error { return nil }
func (c *recordingClient) Disconnect() error              { return nil }
func (c *recordingClient) Publish(_ context.Context, topic string, payload []byte) error {
	c.topic = topic
	c.payload = payload
	return nil
}
func (c *recordingClient) Subscribe(context.Context, string, func(string, []byte)) error { return nil }

func decodeResult(t *testing.T, payload []byte) resultDTO {
	t.Helper()
	envelope, err := bus.DecodeEnvelope(payload)
	require.NoError(t, err)
	var result resultDTO
	require.NoError(t, json.Unmarshal(envelope.Payload, &result))
	return result
}

func TestHandleAnnouncesValidWithoutValidatorCapability(t *testing.T) {
	client := &recordingClient{}
	h := &Handler{Driver: noopDriver{}, Client: client, TopicPrefix: "edgex", ServiceName: "device-test", Logger: logging.NewClient("device-test", logging.INFO)}

	payload, _ := json.Marshal(requestDTO{Protocols: models.ProtocolAddress{"rest": {"host": "10.0.0.1"}}})
	status, reply := h.handle(context.Background(), payload, map[string]string{"requestid": "req-1"}, nil)

	assert.Equal(t, http.StatusOK, status)
	assert.Nil(t, reply)
	assert.Equal(t, "edgex/validate/device/device-test/req-1", client.topic)
	result := decodeResult(t, client.payload)
	assert.True(t, result.Valid)
}

func TestHandleReportsInvalidFromValidatorCapability(t *testing.T) {
	client := &recordingClient{}
	h := &Handler{Driver: validatingDriver{reject: true}, Client: client, TopicPrefix: "edgex", ServiceName: "device-test", Logger: logging.NewClient("device-test", logging.INFO)}

	payload, _ := json.Marshal(requestDTO{Protocols: models.ProtocolAddress{"rest": {"host": "bad"}}})
	status, _ := h.handle(context.Background(), payload, map[string]string{"requestid": "req-2"}, nil)

	assert.Equal(t, http.StatusOK, status)
	result := decodeResult(t, client.payload)
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Error)
}
