// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package callback

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openedge-platform/device-service-core/internal/autoevent"
	"github.com/openedge-platform/device-service-core/internal/cache"
	"github.com/openedge-platform/device-service-core/internal/logging"
	"github.com/openedge-platform/device-service-core/internal/models"
	"github.com/openedge-platform/device-service-core/internal/provision"
	drivermodels "github.com/openedge-platform/device-service-core/pkg/models"
)

type fakeDriver struct {
	addedName      string
	addedResources []drivermodels.CommandRequest
	updatedName    string
	removedName    string
}

func (f *fakeDriver) Initialize(map[string]string, chan<- *drivermodels.AsyncValues) error { return nil }
func (f *fakeDriver) Reconfigure(map[string]string) error                                  { return nil }
func (f *fakeDriver) CreateAddress(models.ProtocolAddress) (interface{}, error)             { return "addr", nil }
func (f *fakeDriver) FreeAddress(interface{})                                               {}
func (f *fakeDriver) CreateResourceAttr(models.ResourceAttributes) (interface{}, error)     { return "res", nil }
func (f *fakeDriver) FreeResourceAttr(interface{})                                          {}
func (f *fakeDriver) HandleGet(string, interface{}, []drivermodels.CommandRequest, map[string]string) ([]models.Value, error) {
	return nil, nil
}
func (f *fakeDriver) HandlePut(string, interface{}, []drivermodels.CommandRequest, []models.Value, map[string]string) error {
	return nil
}
func (f *fakeDriver) DeviceAdded(name string, _ interface{}, resources []drivermodels.CommandRequest) {
	f.addedName = name
	f.addedResources = resources
}
func (f *fakeDriver) DeviceUpdated(name string, _ interface{}) { f.updatedName = name }
func (f *fakeDriver) DeviceRemoved(name string)                { f.removedName = name }
func (f *fakeDriver) Stop(bool) error                          { return nil }

func testHandlers(t *testing.T) (*Handlers, *fakeDriver) {
	t.Helper()
	devices := cache.NewDeviceCache(cache.Hooks{})
	profiles := cache.NewProfileCache()
	driver := &fakeDriver{}
	logger := logging.NewClient("device-test", logging.INFO)
	mgr := autoevent.NewManager(devices, nil, nil, nil, logger, 0)

	profiles.Add(&models.Profile{
		Name:      "thermostat",
		Resources: []models.Resource{{Name: "temperature", Properties: models.PropertyValue{Type: models.ValueTypeFloat64, ReadWrite: models.ReadWrite{Readable: true}}}},
	})

	return &Handlers{
		Devices:    devices,
		Profiles:   profiles,
		Watchers:   provision.NewList(),
		Autoevents: mgr,
		Driver:     driver,
		Logger:     logger,
	}, driver
}

func TestHandleDeviceAddInsertsAndNotifiesDriver(t *testing.T) {
	h, driver := testHandlers(t)
	payload, err := json.Marshal(deviceDTO{Name: "thermo-1", ProfileName: "thermostat", Protocols: models.ProtocolAddress{"rest": {"host": "10.0.0.1"}}})
	require.NoError(t, err)

	status, reply := h.handleDeviceAdd(context.Background(), payload, nil, nil)

	assert.Equal(t, http.StatusOK, status)
	assert.Nil(t, reply)
	assert.Equal(t, "thermo-1", driver.addedName)
	assert.Len(t, driver.addedResources, 1)

	device, ok := h.Devices.AcquireByName("thermo-1")
	require.True(t, ok)
	defer h.Devices.Release(device)
	assert.Equal(t, models.Unlocked, device.AdminState)
}

func TestHandleDeviceAddRejectsUnknownProfile(t *testing.T) {
	h, _ := testHandlers(t)
	payload, _ := json.Marshal(deviceDTO{Name: "thermo-1", ProfileName: "does-not-exist"})

	status, _ := h.handleDeviceAdd(context.Background(), payload, nil, nil)

	assert.Equal(t, http.StatusBadRequest, status)
	_, ok := h.Devices.AcquireByName("thermo-1")
	assert.False(t, ok)
}

func TestHandleDeviceUpdateInPlaceNotifiesUpdatedNotAdded(t *testing.T) {
	h, driver := testHandlers(t)
	add, _ := json.Marshal(deviceDTO{Name: "thermo-1", ProfileName: "thermostat", Protocols: models.ProtocolAddress{"rest": {"host": "10.0.0.1"}}})
	_, _ = h.handleDeviceAdd(context.Background(), add, nil, nil)
	driver.addedName = ""

	update, _ := json.Marshal(deviceDTO{Name: "thermo-1", ProfileName: "thermostat", Protocols: models.ProtocolAddress{"rest": {"host": "10.0.0.1"}}, Description: "renamed"})
	status, _ := h.handleDeviceUpdate(context.Background(), update, nil, nil)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "thermo-1", driver.updatedName)
	assert.Empty(t, driver.addedName, "in-place update should not re-fire device_added")
}

func TestHandleDeviceDeleteNotifiesDriver(t *testing.T) {
	h, driver := testHandlers(t)
	add, _ := json.Marshal(deviceDTO{Name: "thermo-1", ProfileName: "thermostat"})
	_, _ = h.handleDeviceAdd(context.Background(), add, nil, nil)

	del, _ := json.Marshal(deviceDTO{Name: "thermo-1"})
	status, _ := h.handleDeviceDelete(context.Background(), del, nil, nil)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "thermo-1", driver.removedName)
	_, ok := h.Devices.AcquireByName("thermo-1")
	assert.False(t, ok)
}

func TestHandleProfileUpdateRelinksDevices(t *testing.T) {
	h, _ := testHandlers(t)
	add, _ := json.Marshal(deviceDTO{Name: "thermo-1", ProfileName: "thermostat"})
	_, _ = h.handleDeviceAdd(context.Background(), add, nil, nil)

	updated := profileDTO{
		Name: "thermostat",
		Resources: []resourceDTO{
			{Name: "temperature", Properties: propertyDTO{ValueType: "Float64", ReadWrite: "R"}},
			{Name: "humidity", Properties: propertyDTO{ValueType: "Float64", ReadWrite: "R"}},
		},
	}
	payload, _ := json.Marshal(updated)
	status, _ := h.handleProfileUpdate(context.Background(), payload, nil, nil)
	assert.Equal(t, http.StatusOK, status)

	device, ok := h.Devices.AcquireByName("thermo-1")
	require.True(t, ok)
	defer h.Devices.Release(device)
	assert.NotNil(t, device.Profile().ResourceByName("humidity"))
}

func TestHandleServiceUpdateTogglesServiceLock(t *testing.T) {
	h, _ := testHandlers(t)

	lock, _ := json.Marshal(serviceUpdateDTO{Name: "device-test", AdminState: "LOCKED"})
	status, _ := h.handleServiceUpdate(context.Background(), lock, nil, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, h.Devices.ServiceLocked())

	unlock, _ := json.Marshal(serviceUpdateDTO{Name: "device-test", AdminState: "UNLOCKED"})
	status, _ = h.handleServiceUpdate(context.Background(), unlock, nil, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.False(t, h.Devices.ServiceLocked())
}

func TestHandleWatcherAddThenMatch(t *testing.T) {
	h, _ := testHandlers(t)
	spec, _ := json.Marshal(provision.WatcherSpec{
		Name:        "tcp-watcher",
		Enabled:     true,
		Identifiers: map[string]string{"port": "^502$"},
		ProfileName: "thermostat",
	})

	status, _ := h.handleWatcherAdd(context.Background(), spec, nil, nil)
	assert.Equal(t, http.StatusOK, status)

	match := h.Watchers.Match(models.DiscoveredDevice{Name: "d1", Properties: map[string]string{"port": "502"}})
	require.NotNil(t, match)
	assert.Equal(t, "tcp-watcher", match.Name)
}

func TestRequestAddDeviceInsertsDiscoveredDeviceUnderWatcherProfile(t *testing.T) {
	h, driver := testHandlers(t)
	watcher := &models.ProvisionWatcher{Name: "tcp-watcher", ProfileName: "thermostat", AdminState: models.Unlocked}

	err := h.RequestAddDevice(context.Background(), models.DiscoveredDevice{
		Name:      "discovered-1",
		Protocols: models.ProtocolAddress{"rest": {"host": "10.0.0.9"}},
	}, watcher)

	require.NoError(t, err)
	assert.Equal(t, "discovered-1", driver.addedName)

	device, ok := h.Devices.AcquireByName("discovered-1")
	require.True(t, ok)
	defer h.Devices.Release(device)
	assert.Equal(t, "thermostat", device.ProfileName)
}

func TestRequestAddDeviceRejectsUnknownWatcherProfile(t *testing.T) {
	h, _ := testHandlers(t)
	watcher := &models.ProvisionWatcher{Name: "tcp-watcher", ProfileName: "does-not-exist"}

	err := h.RequestAddDevice(context.Background(), models.DiscoveredDevice{Name: "discovered-1"}, watcher)

	assert.Error(t, err)
	_, ok := h.Devices.AcquireByName("discovered-1")
	assert.False(t, ok)
}

func TestHandleWatcherDeleteRemovesWatcher(t *testing.T) {
	h, _ := testHandlers(t)
	spec, _ := json.Marshal(provision.WatcherSpec{Name: "w1", Enabled: true, Identifiers: map[string]string{"port": ".*"}, ProfileName: "thermostat"})
	_, _ = h.handleWatcherAdd(context.Background(), spec, nil, nil)

	del, _ := json.Marshal(provision.WatcherSpec{Name: "w1"})
	status, _ := h.handleWatcherDelete(context.Background(), del, nil, nil)
	assert.Equal(t, http.StatusOK, status)

	match := h.Watchers.Match(models.DiscoveredDevice{Name: "d1", Properties: map[string]string{"port": "502"}})
	assert.Nil(t, match)
}
