// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

// Package models defines the interface a device driver implements to
// plug into the core. It is the one package external driver
// implementations are expected to import; everything else under
// internal/ is private to the core.
package models

import (
	"github.com/openedge-platform/device-service-core/internal/models"
)

// CommandRequest is one resolved step the core asks the driver to
// perform: which resource, under which attributes/property contract.
type CommandRequest struct {
	DeviceResourceName string
	Attributes         models.ResourceAttributes
	Type               models.ValueType
}

// AsyncValues is a driver-initiated batch of readings pushed outside of
// a get cycle. Origin is nanoseconds since epoch; zero means "stamp with
// wall clock at serialization".
type AsyncValues struct {
	DeviceName   string
	SourceName   string
	Origin       int64
	Readings     map[string]models.Value // resource name -> raw (pre-transform) value
}

// ProtocolDriver is the low-level, device-specific interface the core
// drives. A driver need only implement the required methods below;
// optional capabilities (discovery, validation) are detected via the
// capability interfaces further down (the "set_discovery" /
// "set_discovery_delete" registration paths of the source are unified
// into the single Discoverer interface here, per the spec's Open
// Question #1).
type ProtocolDriver interface {
	// Initialize performs protocol-specific start-up. driverConfig is
	// the service's "Driver/*" configuration subtree. asyncCh lets the
	// driver push readings outside of a get cycle (e.g. a push sensor,
	// or the result of an async write); the core drains it and runs the
	// same event-assembly and publication path a synchronous get uses.
	Initialize(driverConfig map[string]string, asyncCh chan<- *AsyncValues) error

	// Reconfigure is invoked when the "Driver/*" subtree changes via a
	// Writable watch notification, without a service restart.
	Reconfigure(driverConfig map[string]string) error

	// CreateAddress parses a device's protocol properties into an
	// opaque, driver-owned address handle. FreeAddress releases it.
	CreateAddress(protocols models.ProtocolAddress) (interface{}, error)
	FreeAddress(handle interface{})

	// CreateResourceAttr parses a resource's attribute bag into an
	// opaque, driver-owned handle. FreeResourceAttr releases it.
	CreateResourceAttr(attrs models.ResourceAttributes) (interface{}, error)
	FreeResourceAttr(handle interface{})

	// HandleGet and HandlePut perform the actual protocol I/O for a
	// resolved command. options carries caller-supplied query
	// parameters (e.g. ds-pushevent). HandleGet writes one
	// models.Value per request into the returned slice, in order.
	HandleGet(deviceName string, addressHandle interface{}, requests []CommandRequest, options map[string]string) ([]models.Value, error)
	HandlePut(deviceName string, addressHandle interface{}, requests []CommandRequest, values []models.Value, options map[string]string) error

	// DeviceAdded/DeviceUpdated/DeviceRemoved notify the driver of
	// device-map changes the core decided were worth telling it about
	// (see cache.Outcome).
	DeviceAdded(deviceName string, addressHandle interface{}, resources []CommandRequest)
	DeviceUpdated(deviceName string, addressHandle interface{})
	DeviceRemoved(deviceName string)

	// Stop shuts the driver down; force requests immediate shutdown
	// rather than a graceful drain.
	Stop(force bool) error
}

// Discoverer is an optional driver capability: synchronous device
// discovery. A driver that implements it is asked to discover on a
// schedule (internal/discovery) or on demand (PUT /api/v3/discovery).
type Discoverer interface {
	Discover(requestID string) ([]models.DiscoveredDevice, error)
	StopDiscovery(requestID string) bool
}

// Validator is an optional driver capability: validates a candidate
// protocol address without committing a
// device, used by both the validate-address bus topic and the
// pre-insert check in the device-added callback (SPEC_FULL expansion
// item 3/5).
type Validator interface {
	ValidateAddress(protocols models.ProtocolAddress) error
}

// AutoeventScheduler is an optional driver capability interface for a
// driver-owned periodic-read timer. The core does not check for it:
// internal/autoevent schedules every autoevent on its own cron scheduler
// and runs the get pipeline on fire, whether or not the driver
// implements this interface.
type AutoeventScheduler interface {
	AutoeventStart(deviceName string, protocols models.ProtocolAddress, resourceName string, requests []CommandRequest, intervalMs int64, onChange bool) (interface{}, error)
	AutoeventStop(handle interface{})
}
