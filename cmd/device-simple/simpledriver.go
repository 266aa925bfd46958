// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

// Package main implements a reference driver exercising every
// pkg/models.ProtocolDriver method against a handful of resources held
// in memory, with no real protocol I/O behind it. It exists to give
// operators and integration tests a service that runs without any
// external hardware or gateway.
package main

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/openedge-platform/device-service-core/internal/logging"
	"github.com/openedge-platform/device-service-core/internal/models"
	drivermodels "github.com/openedge-platform/device-service-core/pkg/models"
)

// simpleDriver backs every device's resources with an in-memory value
// keyed by device name + resource name. A "random" resource attribute
// set to "true" makes HandleGet ignore the stored value and return a
// fresh pseudo-random float instead, the same trick simulated push
// sensors use elsewhere in this repo's tests.
type simpleDriver struct {
	lc logging.Client

	mu     sync.Mutex
	values map[string]models.Value // "<device>/<resource>" -> last value
}

func newSimpleDriver(lc logging.Client) *simpleDriver {
	return &simpleDriver{lc: lc, values: make(map[string]models.Value)}
}

func valueKey(deviceName, resourceName string) string {
	return deviceName + "/" + resourceName
}

func (d *simpleDriver) Initialize(driverConfig map[string]string, _ chan<- *drivermodels.AsyncValues) error {
	d.lc.Info("simple driver initialized with %d config entries", len(driverConfig))
	return nil
}

func (d *simpleDriver) Reconfigure(driverConfig map[string]string) error {
	d.lc.Info("simple driver reconfigured with %d config entries", len(driverConfig))
	return nil
}

// CreateAddress accepts any protocol address; the simple driver has no
// real transport so the address handle is just the protocol address map
// it was given.
func (d *simpleDriver) CreateAddress(protocols models.ProtocolAddress) (interface{}, error) {
	return protocols, nil
}

func (d *simpleDriver) FreeAddress(interface{}) {}

func (d *simpleDriver) CreateResourceAttr(attrs models.ResourceAttributes) (interface{}, error) {
	return attrs, nil
}

func (d *simpleDriver) FreeResourceAttr(interface{}) {}

func (d *simpleDriver) HandleGet(deviceName string, _ interface{}, requests []drivermodels.CommandRequest, _ map[string]string) ([]models.Value, error) {
	results := make([]models.Value, len(requests))
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, req := range requests {
		if req.Attributes["random"] == "true" {
			results[i] = randomValue(req.Type)
			continue
		}
		key := valueKey(deviceName, req.DeviceResourceName)
		if v, ok := d.values[key]; ok {
			results[i] = v
			continue
		}
		results[i] = zeroValue(req.Type)
	}
	return results, nil
}

func (d *simpleDriver) HandlePut(deviceName string, _ interface{}, requests []drivermodels.CommandRequest, values []models.Value, _ map[string]string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, req := range requests {
		d.values[valueKey(deviceName, req.DeviceResourceName)] = values[i]
	}
	return nil
}

func (d *simpleDriver) DeviceAdded(deviceName string, _ interface{}, resources []drivermodels.CommandRequest) {
	d.lc.Info("device %s added with %d resources", deviceName, len(resources))
}

func (d *simpleDriver) DeviceUpdated(deviceName string, _ interface{}) {
	d.lc.Debug("device %s updated", deviceName)
}

func (d *simpleDriver) DeviceRemoved(deviceName string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key := range d.values {
		if len(key) > len(deviceName) && key[:len(deviceName)+1] == deviceName+"/" {
			delete(d.values, key)
		}
	}
	d.lc.Info("device %s removed", deviceName)
}

func (d *simpleDriver) Stop(force bool) error {
	d.lc.Info("simple driver stopping, force=%t", force)
	return nil
}

func randomValue(t models.ValueType) models.Value {
	switch t {
	case models.ValueTypeBool:
		return models.Value{Type: t, BoolValue: rand.Intn(2) == 1}
	case models.ValueTypeString:
		return models.Value{Type: t, StringValue: fmt.Sprintf("reading-%d", rand.Intn(1000))}
	default:
		return models.Value{Type: t, NumberValue: rand.Float64() * 100}
	}
}

func zeroValue(t models.ValueType) models.Value {
	return models.Value{Type: t}
}
