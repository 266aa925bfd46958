// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2017-2018 Canonical Ltd
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

// Package callback implements the bus-driven callback handlers of §4.10:
// core-metadata system events that add, update, delete and relink
// devices, profiles, provision watchers and the service-wide admin
// state. Each handler is registered on the shared request/response
// Dispatcher (internal/bus) and is idempotent and re-entrant, per the
// spec.
package callback

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/openedge-platform/device-service-core/internal/autoevent"
	"github.com/openedge-platform/device-service-core/internal/bus"
	"github.com/openedge-platform/device-service-core/internal/cache"
	"github.com/openedge-platform/device-service-core/internal/logging"
	"github.com/openedge-platform/device-service-core/internal/models"
	"github.com/openedge-platform/device-service-core/internal/provision"
	drivermodels "github.com/openedge-platform/device-service-core/pkg/models"
)

// Handlers wires the device/profile caches, the provision-watcher list
// and the autoevent manager into the bus's callback topics.
type Handlers struct {
	Devices    *cache.DeviceCache
	Profiles   *cache.ProfileCache
	Watchers   *provision.List
	Autoevents *autoevent.Manager
	Driver     drivermodels.ProtocolDriver
	Logger     logging.Client
}

// Register installs every §4.10 handler under
// "<prefix>/system-events/core-metadata/...". Registration order does
// not matter here: every pattern is a distinct literal topic, no two of
// which can match the same inbound message.
func (h *Handlers) Register(d *bus.Dispatcher, topicPrefix string) error {
	base := topicPrefix + "/system-events/core-metadata/"
	routes := []struct {
		pattern string
		handler bus.HandlerFunc
	}{
		{base + "device/add", h.handleDeviceAdd},
		{base + "device/update", h.handleDeviceUpdate},
		{base + "device/delete", h.handleDeviceDelete},
		{base + "deviceprofile/update", h.handleProfileUpdate},
		{base + "deviceservice/update", h.handleServiceUpdate},
		{base + "provisionwatcher/add", h.handleWatcherAdd},
		{base + "provisionwatcher/update", h.handleWatcherUpdate},
		{base + "provisionwatcher/delete", h.handleWatcherDelete},
	}
	for _, route := range routes {
		if err := d.Register(route.pattern, route.handler); err != nil {
			return err
		}
	}
	return nil
}

// handleDeviceAdd implements "device/add → device_read; profile must
// already be known (else BAD_REQUEST); insert; notify driver.device_added
// with the resource list."
func (h *Handlers) handleDeviceAdd(ctx context.Context, request []byte, _, _ map[string]string) (int, []byte) {
	var dto deviceDTO
	if err := json.Unmarshal(request, &dto); err != nil {
		h.Logger.Error("device add: invalid payload: %v", err)
		return http.StatusBadRequest, nil
	}

	profile, ok := h.Profiles.GetByName(dto.ProfileName)
	if !ok {
		h.Logger.Error("device add: device %s names unknown profile %s", dto.Name, dto.ProfileName)
		return http.StatusBadRequest, nil
	}

	if err := h.addDevice(deviceFromDTO(dto), profile); err != nil {
		h.Logger.Error("device add: %v", err)
		return http.StatusBadRequest, nil
	}
	return http.StatusOK, nil
}

// RequestAddDevice admits one discovered device matched against watcher,
// per the discovery coordinator's contract (internal/discovery): a
// discovered device is turned into the same insertion path a
// device/add callback would have taken, with the watcher supplying the
// profile binding and autoevents a discovered candidate has none of its
// own.
func (h *Handlers) RequestAddDevice(ctx context.Context, discovered models.DiscoveredDevice, watcher *models.ProvisionWatcher) error {
	profile, ok := h.Profiles.GetByName(watcher.ProfileName)
	if !ok {
		return fmt.Errorf("discovered device %s matched watcher %s naming unknown profile %s", discovered.Name, watcher.Name, watcher.ProfileName)
	}

	device := &models.Device{
		Name:           discovered.Name,
		Description:    discovered.Description,
		Protocols:      discovered.Protocols,
		ProfileName:    watcher.ProfileName,
		AdminState:     watcher.AdminState,
		OperatingState: models.Up,
		Autoevents:     watcher.Autoevents,
	}
	if device.AdminState == "" {
		device.AdminState = models.Unlocked
	}

	return h.addDevice(device, profile)
}

// addDevice is the insertion core shared by handleDeviceAdd (device
// arrives as a bus DTO) and RequestAddDevice (device arrives from
// discovery): validate the address, let the driver mint an address
// handle, insert, notify and install autoevents.
func (h *Handlers) addDevice(device *models.Device, profile *models.Profile) error {
	device.SetProfile(profile)

	if validator, ok := h.Driver.(drivermodels.Validator); ok {
		if err := validator.ValidateAddress(device.Protocols); err != nil {
			return fmt.Errorf("address validation failed for %s: %v", device.Name, err)
		}
	}

	addressHandle, err := h.Driver.CreateAddress(device.Protocols)
	if err != nil {
		return fmt.Errorf("driver rejected address for %s: %v", device.Name, err)
	}
	device.AddressHandle = addressHandle

	resources := resourceRequests(profile)
	h.Devices.AddOrReplace(device)
	h.Driver.DeviceAdded(device.Name, device.AddressHandle, resources)
	if len(device.Autoevents) > 0 {
		h.Autoevents.Install(device.Name, device.Autoevents)
	}

	h.Logger.Info("device %s added", device.Name)
	return nil
}

// handleDeviceUpdate implements "device/update → replace-in-place if
// possible, else full replacement; notify device_updated when the
// replacement was in-place; restart autoevents if the update has any."
func (h *Handlers) handleDeviceUpdate(ctx context.Context, request []byte, _, _ map[string]string) (int, []byte) {
	var dto deviceDTO
	if err := json.Unmarshal(request, &dto); err != nil {
		h.Logger.Error("device update: invalid payload: %v", err)
		return http.StatusBadRequest, nil
	}

	profile, ok := h.Profiles.GetByName(dto.ProfileName)
	if !ok {
		h.Logger.Error("device update: device %s names unknown profile %s", dto.Name, dto.ProfileName)
		return http.StatusBadRequest, nil
	}

	device := deviceFromDTO(dto)
	device.SetProfile(profile)

	addressHandle, err := h.Driver.CreateAddress(device.Protocols)
	if err != nil {
		h.Logger.Error("device update: driver rejected address for %s: %v", device.Name, err)
		return http.StatusBadRequest, nil
	}
	device.AddressHandle = addressHandle

	outcome := h.Devices.AddOrReplace(device)
	switch outcome {
	case cache.UpdatedInPlace:
		h.Driver.DeviceUpdated(device.Name, device.AddressHandle)
	case cache.UpdatedByReplace:
		h.Driver.DeviceAdded(device.Name, device.AddressHandle, resourceRequests(profile))
	}

	if outcome != cache.Created {
		h.Autoevents.Uninstall(device.Name, device.Autoevents)
	}
	if len(device.Autoevents) > 0 {
		h.Autoevents.Install(device.Name, device.Autoevents)
	}

	h.Logger.Info("device %s updated (%v)", device.Name, outcome)
	return http.StatusOK, nil
}

// handleDeviceDelete implements "device/delete → remove by name; notify
// device_removed."
func (h *Handlers) handleDeviceDelete(ctx context.Context, request []byte, _, _ map[string]string) (int, []byte) {
	var dto deviceDTO
	if err := json.Unmarshal(request, &dto); err != nil {
		h.Logger.Error("device delete: invalid payload: %v", err)
		return http.StatusBadRequest, nil
	}

	if existing, ok := h.Devices.AcquireByName(dto.Name); ok {
		h.Autoevents.Uninstall(dto.Name, existing.Autoevents)
		h.Devices.Release(existing)
	}

	if !h.Devices.RemoveByName(dto.Name) {
		h.Logger.Warn("device delete: %s was already absent", dto.Name)
		return http.StatusOK, nil
	}

	h.Driver.DeviceRemoved(dto.Name)
	h.Logger.Info("device %s removed", dto.Name)
	return http.StatusOK, nil
}

// handleProfileUpdate implements "deviceprofile/update → update profile;
// rebind every device that named it; notify profile_updated." There is
// deliberately no deviceprofile/add handler: a profile must exist before
// any device can reference it, so the service's bootstrap phase loads
// the initial profile set rather than waiting for a bus event.
func (h *Handlers) handleProfileUpdate(ctx context.Context, request []byte, _, _ map[string]string) (int, []byte) {
	var dto profileDTO
	if err := json.Unmarshal(request, &dto); err != nil {
		h.Logger.Error("profile update: invalid payload: %v", err)
		return http.StatusBadRequest, nil
	}

	profile := profileFromDTO(dto)
	h.Profiles.Add(profile)
	relinked := h.Devices.RelinkProfile(profile.Name, profile)

	h.Logger.Info("profile %s updated, relinked %d device(s)", profile.Name, relinked)
	return http.StatusOK, nil
}

// handleServiceUpdate implements "deviceservice/update → read
// adminState; transition service admin-state between LOCKED and
// UNLOCKED (LOCKED causes new commands to fail LOCKED and suppresses
// autoevents)." Autoevent suppression under a service-wide lock is
// enforced inside the fired job itself (internal/autoevent), which
// checks Devices.ServiceLocked() before publishing.
func (h *Handlers) handleServiceUpdate(ctx context.Context, request []byte, _, _ map[string]string) (int, []byte) {
	var dto serviceUpdateDTO
	if err := json.Unmarshal(request, &dto); err != nil {
		h.Logger.Error("service update: invalid payload: %v", err)
		return http.StatusBadRequest, nil
	}

	switch models.AdminState(dto.AdminState) {
	case models.Locked:
		h.Devices.ServiceLock()
		h.Logger.Info("service admin state set to LOCKED")
	case models.Unlocked:
		h.Devices.ServiceUnlock()
		h.Logger.Info("service admin state set to UNLOCKED")
	default:
		h.Logger.Error("service update: invalid adminState %q", dto.AdminState)
		return http.StatusBadRequest, nil
	}
	return http.StatusOK, nil
}

func (h *Handlers) handleWatcherAdd(ctx context.Context, request []byte, _, _ map[string]string) (int, []byte) {
	return h.upsertWatcher(request, "add")
}

func (h *Handlers) handleWatcherUpdate(ctx context.Context, request []byte, _, _ map[string]string) (int, []byte) {
	return h.upsertWatcher(request, "update")
}

func (h *Handlers) upsertWatcher(request []byte, verb string) (int, []byte) {
	var spec provision.WatcherSpec
	if err := json.Unmarshal(request, &spec); err != nil {
		h.Logger.Error("provision watcher %s: invalid payload: %v", verb, err)
		return http.StatusBadRequest, nil
	}

	var err error
	if verb == "add" {
		err = h.Watchers.Add(spec)
	} else {
		err = h.Watchers.Update(spec)
	}
	if err != nil {
		h.Logger.Error("provision watcher %s %s: %v", verb, spec.Name, err)
		return http.StatusBadRequest, nil
	}

	h.Logger.Info("provision watcher %s %sed", spec.Name, verb)
	return http.StatusOK, nil
}

func (h *Handlers) handleWatcherDelete(ctx context.Context, request []byte, _, _ map[string]string) (int, []byte) {
	var spec provision.WatcherSpec
	if err := json.Unmarshal(request, &spec); err != nil {
		h.Logger.Error("provision watcher delete: invalid payload: %v", err)
		return http.StatusBadRequest, nil
	}
	h.Watchers.Delete(spec.Name)
	h.Logger.Info("provision watcher %s deleted", spec.Name)
	return http.StatusOK, nil
}

// resourceRequests flattens a profile's resources into the driver
// notification shape for device_added/device_updated.
func resourceRequests(profile *models.Profile) []drivermodels.CommandRequest {
	out := make([]drivermodels.CommandRequest, len(profile.Resources))
	for i := range profile.Resources {
		r := &profile.Resources[i]
		out[i] = drivermodels.CommandRequest{
			DeviceResourceName: r.Name,
			Attributes:         r.Attributes,
			Type:               r.Properties.Type,
		}
	}
	return out
}
