// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

// Package cache holds the concurrent, reference-counted device and
// profile maps at the core of the service: every command, autoevent and
// callback handler looks devices up here rather than keeping its own
// copy, so there is exactly one place that owns device lifetime.
package cache

import (
	"sync"
	"sync/atomic"

	"github.com/openedge-platform/device-service-core/internal/models"
)

// Outcome reports what AddOrReplace actually did, so callers can decide
// whether the driver needs a device-added notification.
type Outcome int

const (
	Created Outcome = iota
	UpdatedInPlace
	UpdatedByReplace
)

// Hooks lets the device cache release driver-owned resources without
// importing the driver or autoevent packages directly.
type Hooks struct {
	// StopAutoevents is called once, synchronously, before a device's
	// entry is dropped from the map (on remove or replace).
	StopAutoevents func(device *models.Device)
	// FreeAddress/FreeResourceAttr run when a device's refcount reaches
	// zero, once per device / once per resource respectively.
	FreeAddress      func(handle interface{})
	FreeResourceAttr func(handle interface{})
}

type deviceEntry struct {
	device   *models.Device
	refCount int32
	retry    int32
	mu       sync.Mutex // serializes autoevent start/stop for this device (§4.6)
}

// DeviceCache is the read-write-locked device map (§4.1).
type DeviceCache struct {
	lock  writerPreferredLock
	byName map[string]*deviceEntry
	byID   map[string]*deviceEntry
	// live tracks every entry that still has outstanding borrows, keyed
	// by device pointer identity, independent of byName/byID membership.
	// A device removed from the map (or replaced) stays in live until
	// its last Release drives the refcount to zero, so a caller that
	// acquired before the remove can still release correctly.
	live  map[*models.Device]*deviceEntry
	mu    sync.Mutex // guards live
	hooks Hooks

	serviceLocked int32 // atomic bool: service-wide admin state (§4.10 deviceservice/update)
}

func NewDeviceCache(hooks Hooks) *DeviceCache {
	return &DeviceCache{
		byName: make(map[string]*deviceEntry),
		byID:   make(map[string]*deviceEntry),
		live:   make(map[*models.Device]*deviceEntry),
		hooks:  hooks,
	}
}

// AddOrReplace inserts device, or updates an existing entry of the same
// name in place when name, profile name, autoevent list and protocol
// address are all unchanged; otherwise it replaces (stop+decrement the
// old entry, insert a fresh one at refcount 1).
func (c *DeviceCache) AddOrReplace(device *models.Device) Outcome {
	c.lock.Lock()
	existing, ok := c.byName[device.Name]
	if !ok {
		c.lock.Unlock()
		c.insertNewLocked(device)
		return Created
	}

	if c.canUpdateInPlace(existing.device, device) {
		// Mutate the existing entry's mutable fields; identity (and
		// refcount, and the driver-owned handles) is preserved.
		old := existing.device
		device.SetProfile(old.Profile())
		device.AddressHandle = old.AddressHandle
		device.Autoevents = old.Autoevents
		device.Id = old.Id
		existing.device = device
		c.byName[device.Name] = existing
		if device.Id != "" {
			c.byID[device.Id] = existing
		}
		c.lock.Unlock()
		c.mu.Lock()
		c.live[device] = existing
		c.mu.Unlock()
		return UpdatedInPlace
	}

	c.lock.Unlock()
	c.removeEntry(existing, device.Name)
	c.insertNewLocked(device)
	return UpdatedByReplace
}

func (c *DeviceCache) canUpdateInPlace(old, next *models.Device) bool {
	return old.Name == next.Name &&
		old.ProfileName == next.ProfileName &&
		old.Protocols.Equal(next.Protocols) &&
		models.AutoeventsEqual(old.Autoevents, next.Autoevents)
}

func (c *DeviceCache) insertNewLocked(device *models.Device) {
	entry := &deviceEntry{device: device, refCount: 1}
	c.lock.Lock()
	c.byName[device.Name] = entry
	if device.Id != "" {
		c.byID[device.Id] = entry
	}
	c.lock.Unlock()
	c.mu.Lock()
	c.live[device] = entry
	c.mu.Unlock()
}

// RemoveByName removes and decrements refcount on the named device,
// reporting whether it existed.
func (c *DeviceCache) RemoveByName(name string) bool {
	c.lock.Lock()
	entry, ok := c.byName[name]
	c.lock.Unlock()
	if !ok {
		return false
	}
	c.removeEntry(entry, name)
	return true
}

func (c *DeviceCache) removeEntry(entry *deviceEntry, name string) {
	if c.hooks.StopAutoevents != nil {
		c.hooks.StopAutoevents(entry.device)
	}
	c.lock.Lock()
	delete(c.byName, name)
	if entry.device.Id != "" {
		delete(c.byID, entry.device.Id)
	}
	c.lock.Unlock()
	c.release(entry, entry.device)
}

// AcquireByName returns a borrow of the named device, incrementing its
// refcount. Callers must call Release exactly once per successful
// acquire.
func (c *DeviceCache) AcquireByName(name string) (*models.Device, bool) {
	c.lock.RLock()
	entry, ok := c.byName[name]
	c.lock.RUnlock()
	if !ok {
		return nil, false
	}
	atomic.AddInt32(&entry.refCount, 1)
	return entry.device, true
}

// AcquireByID is AcquireByName keyed by the device's generated id.
func (c *DeviceCache) AcquireByID(id string) (*models.Device, bool) {
	c.lock.RLock()
	entry, ok := c.byID[id]
	c.lock.RUnlock()
	if !ok {
		return nil, false
	}
	atomic.AddInt32(&entry.refCount, 1)
	return entry.device, true
}

// Release decrements the refcount of a previously-acquired device. When
// the count reaches zero the device is freed: the driver's FreeAddress
// and FreeResourceAttr hooks run, exactly once. Release works whether or
// not the device is still reachable from the map (it may have been
// removed or replaced since the matching Acquire), via the live-borrow
// table keyed by device pointer identity.
func (c *DeviceCache) Release(device *models.Device) {
	c.mu.Lock()
	entry, ok := c.live[device]
	c.mu.Unlock()
	if !ok {
		panic("device released that was never acquired: programmer error")
	}
	c.release(entry, device)
}

func (c *DeviceCache) release(entry *deviceEntry, devicePtr *models.Device) {
	remaining := atomic.AddInt32(&entry.refCount, -1)
	if remaining < 0 {
		panic("device refcount released below zero: programmer error")
	}
	if remaining == 0 {
		c.mu.Lock()
		delete(c.live, devicePtr)
		c.mu.Unlock()
		if c.hooks.FreeAddress != nil {
			c.hooks.FreeAddress(entry.device.AddressHandle)
		}
		if c.hooks.FreeResourceAttr != nil {
			if p := entry.device.Profile(); p != nil {
				for i := range p.Resources {
					c.hooks.FreeResourceAttr(p.Resources[i].DriverHandle)
				}
			}
		}
	}
}

// ForEachMatchingCommand snapshots, under the read lock, every UNLOCKED,
// UP device whose profile has a command of the given direction and
// name. Each returned device has had its refcount incremented; the
// caller must Release every one.
func (c *DeviceCache) ForEachMatchingCommand(name string, isGet bool) []*models.Device {
	if c.ServiceLocked() {
		return nil
	}
	c.lock.RLock()
	matches := make([]*deviceEntry, 0)
	for _, entry := range c.byName {
		d := entry.device
		if d.AdminState == models.Locked || d.OperatingState == models.Down {
			continue
		}
		p := d.Profile()
		if p == nil {
			continue
		}
		if _, ok := p.ResolveCommand(name, isGet); !ok {
			continue
		}
		matches = append(matches, entry)
	}
	for _, e := range matches {
		atomic.AddInt32(&e.refCount, 1)
	}
	c.lock.RUnlock()

	out := make([]*models.Device, len(matches))
	for i, e := range matches {
		out[i] = e.device
	}
	return out
}

// IncrementRetry bumps the device's consecutive-failure counter and
// returns the new value; ResetRetry clears it back to zero. Used by the
// autoevent manager to drive the AllowedFails rule (§7). The counter is
// a plain count with no time window: Device/DeviceDownTimeout is not
// consulted.
func (c *DeviceCache) IncrementRetry(name string) int32 {
	c.lock.RLock()
	entry, ok := c.byName[name]
	c.lock.RUnlock()
	if !ok {
		return 0
	}
	return atomic.AddInt32(&entry.retry, 1)
}

func (c *DeviceCache) ResetRetry(name string) {
	c.lock.RLock()
	entry, ok := c.byName[name]
	c.lock.RUnlock()
	if !ok {
		return
	}
	atomic.StoreInt32(&entry.retry, 0)
}

// SetOperatingState flips a device's operating state directly in the map
// (used when the retry counter crosses AllowedFails, or on recovery).
func (c *DeviceCache) SetOperatingState(name string, state models.OperatingState) bool {
	c.lock.RLock()
	entry, ok := c.byName[name]
	c.lock.RUnlock()
	if !ok {
		return false
	}
	entry.mu.Lock()
	entry.device.OperatingState = state
	entry.mu.Unlock()
	return true
}

// SetAdminState flips a device's admin state (service-wide LOCKED
// transitions go through ServiceLock/ServiceUnlock instead).
func (c *DeviceCache) SetAdminState(name string, state models.AdminState) bool {
	c.lock.RLock()
	entry, ok := c.byName[name]
	c.lock.RUnlock()
	if !ok {
		return false
	}
	entry.mu.Lock()
	entry.device.AdminState = state
	entry.mu.Unlock()
	return true
}

// ServiceLock and ServiceUnlock transition the service-wide admin state
// (§4.10's deviceservice/update handler): while locked, new commands
// against every device fail LOCKED and autoevents are suppressed,
// independent of any individual device's own admin state.
func (c *DeviceCache) ServiceLock()   { atomic.StoreInt32(&c.serviceLocked, 1) }
func (c *DeviceCache) ServiceUnlock() { atomic.StoreInt32(&c.serviceLocked, 0) }

// ServiceLocked reports the current service-wide admin state.
func (c *DeviceCache) ServiceLocked() bool {
	return atomic.LoadInt32(&c.serviceLocked) != 0
}

// WithDeviceLock runs fn while holding the device's local mutex, so that
// autoevent start/stop for this device is serialized per §4.6.
func (c *DeviceCache) WithDeviceLock(name string, fn func()) bool {
	c.lock.RLock()
	entry, ok := c.byName[name]
	c.lock.RUnlock()
	if !ok {
		return false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	fn()
	return true
}

// RelinkProfile updates every device referencing oldName to point at
// newProfile instead, used by the profile-updated callback handler.
func (c *DeviceCache) RelinkProfile(oldName string, newProfile *models.Profile) int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	n := 0
	for _, entry := range c.byName {
		if entry.device.ProfileName == oldName {
			entry.device.SetProfile(newProfile)
			n++
		}
	}
	return n
}

// All returns a snapshot of every device currently in the map, without
// acquiring refcounts (for read-only administrative listing only).
func (c *DeviceCache) All() []*models.Device {
	c.lock.RLock()
	defer c.lock.RUnlock()
	out := make([]*models.Device, 0, len(c.byName))
	for _, e := range c.byName {
		out = append(out, e.device)
	}
	return out
}
