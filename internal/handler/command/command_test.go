// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corecommand "github.com/openedge-platform/device-service-core/internal/command"
	"github.com/openedge-platform/device-service-core/internal/cache"
	"github.com/openedge-platform/device-service-core/internal/logging"
	"github.com/openedge-platform/device-service-core/internal/models"
	drivermodels "github.com/openedge-platform/device-service-core/pkg/models"
)

type stubPublisher struct{ published []models.Event }

func (p *stubPublisher) Publish(_ context.Context, event models.Event) error {
	p.published = append(p.published, event)
	return nil
}

type stubMetrics struct{}

func (stubMetrics) IncEventsSent(int)    {}
func (stubMetrics) IncReadingsSent(int)  {}
func (stubMetrics) IncReadCommands(int)  {}
func (stubMetrics) IncWriteCommands(int) {}

type stubDriver struct{ putValues []models.Value }

func (stubDriver) Initialize(map[string]string, chan<- *drivermodels.AsyncValues) error { return nil }
func (stubDriver) Reconfigure(map[string]string) error                                  { return nil }
func (stubDriver) CreateAddress(models.ProtocolAddress) (interface{}, error)             { return nil, nil }
func (stubDriver) FreeAddress(interface{})                                               {}
func (stubDriver) CreateResourceAttr(models.ResourceAttributes) (interface{}, error)     { return nil, nil }
func (stubDriver) FreeResourceAttr(interface{})                                          {}
func (stubDriver) HandleGet(_ string, _ interface{}, reqs []drivermodels.CommandRequest, _ map[string]string) ([]models.Value, error) {
	out := make([]models.Value, len(reqs))
	for i := range reqs {
		out[i] = models.Value{Type: models.ValueTypeFloat64, NumberValue: 21.5}
	}
	return out, nil
}
func (d *stubDriver) HandlePut(_ string, _ interface{}, _ []drivermodels.CommandRequest, values []models.Value, _ map[string]string) error {
	d.putValues = values
	return nil
}
func (stubDriver) DeviceAdded(string, interface{}, []drivermodels.CommandRequest) {}
func (stubDriver) DeviceUpdated(string, interface{})                             {}
func (stubDriver) DeviceRemoved(string)                                          {}
func (stubDriver) Stop(bool) error                                               { return nil }

func testHandler(t *testing.T, driver *stubDriver) (*Handler, *cache.DeviceCache) {
	t.Helper()
	devices := cache.NewDeviceCache(cache.Hooks{})
	profile := &models.Profile{
		Name: "thermostat",
		Resources: []models.Resource{{
			Name:       "temperature",
			Properties: models.PropertyValue{Type: models.ValueTypeFloat64, ReadWrite: models.ReadWrite{Readable: true, Writable: true}},
		}},
	}
	device := &models.Device{Name: "thermo-1", ProfileName: "thermostat", AdminState: models.Unlocked, OperatingState: models.Up}
	device.SetProfile(profile)
	devices.AddOrReplace(device)

	pipeline := &corecommand.Pipeline{
		Devices:   devices,
		Driver:    driver,
		Publisher: &stubPublisher{},
		Metrics:   stubMetrics{},
		Logger:    logging.NewClient("device-test", logging.INFO),
	}
	return &Handler{Pipeline: pipeline, TopicPrefix: "edgex", ServiceName: "device-test", Logger: pipeline.Logger}, devices
}

func TestHandleGetReturnsEventByDefault(t *testing.T) {
	h, _ := testHandler(t, &stubDriver{})

	status, reply := h.handle(context.Background(), nil, map[string]string{"name": "thermo-1", "cmd": "temperature"}, map[string]string{})

	assert.Equal(t, http.StatusOK, status)
	require.NotNil(t, reply)
	var event models.Event
	require.NoError(t, json.Unmarshal(reply, &event))
	assert.Equal(t, "thermo-1", event.DeviceName)
}

func TestHandleSetParsesValuesAndInvokesDriver(t *testing.T) {
	driver := &stubDriver{}
	h, _ := testHandler(t, driver)

	body, _ := json.Marshal(setRequest{Values: map[string]models.Value{
		"temperature": {Type: models.ValueTypeFloat64, NumberValue: 23},
	}})

	status, reply := h.handle(context.Background(), body, map[string]string{"name": "thermo-1", "cmd": "temperature"}, map[string]string{"method": "put"})

	assert.Equal(t, http.StatusOK, status)
	assert.Nil(t, reply)
	require.Len(t, driver.putValues, 1)
	assert.Equal(t, float64(23), driver.putValues[0].NumberValue)
}

func TestHandleGetOnLockedDeviceReturnsLockedStatus(t *testing.T) {
	h, devices := testHandler(t, &stubDriver{})
	devices.SetAdminState("thermo-1", models.Locked)

	status, _ := h.handle(context.Background(), nil, map[string]string{"name": "thermo-1", "cmd": "temperature"}, map[string]string{})

	assert.Equal(t, http.StatusLocked, status)
}

func TestHandleGetUnknownDeviceReturnsNotFound(t *testing.T) {
	h, _ := testHandler(t, &stubDriver{})

	status, _ := h.handle(context.Background(), nil, map[string]string{"name": "missing", "cmd": "temperature"}, map[string]string{})

	assert.Equal(t, http.StatusNotFound, status)
}
