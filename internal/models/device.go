// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package models

import "sync"

// AdminState governs whether the core will act on a device at all.
type AdminState string

const (
	Locked   AdminState = "LOCKED"
	Unlocked AdminState = "UNLOCKED"
)

// OperatingState reflects whether the device is currently reachable.
type OperatingState string

const (
	Up   OperatingState = "UP"
	Down OperatingState = "DOWN"
)

// Autoevent is a periodic self-issued command.
type Autoevent struct {
	SourceName         string // resource or command name
	Interval           string // "<n>ms|s|m|h"
	OnChange           bool
	OnChangeThreshold  float64

	// handle is the cron entry ID internal/autoevent assigned when it
	// installed this autoevent's job, or nil before installation.
	handle interface{}
	mu     sync.Mutex
}

// SetHandle/Handle let the autoevent manager record its scheduler entry
// ID on the Autoevent value (the last cooked event for on-change is kept
// on the scheduled job, not here). Guarded by mu since autoevent
// install/stop is serialized per device but reads may race a firing job.
func (a *Autoevent) SetHandle(h interface{}) {
	a.mu.Lock()
	a.handle = h
	a.mu.Unlock()
}

func (a *Autoevent) Handle() interface{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.handle
}

// Device is a logical addressable entity the service speaks to.
type Device struct {
	Id              string
	Name            string
	ParentName      string
	Description     string
	Labels          []string
	Tags            map[string]string
	AdminState      AdminState
	OperatingState  OperatingState
	Created         int64
	Origin          int64
	ServiceName     string
	Protocols       ProtocolAddress
	ProfileName     string
	Autoevents      []*Autoevent

	// AddressHandle is the opaque value the driver's CreateAddress hook
	// returned for Protocols; FreeAddress is called with it exactly
	// once when the device is freed.
	AddressHandle interface{}

	// profile is the non-owning reference resolved on insert (or
	// relinked on a profile-updated callback); never nil while the
	// device is reachable from the map (invariant P1).
	profile *Profile
}

// Profile returns the device's resolved profile. Only valid while the
// device is reachable from the cache (see internal/cache for the
// acquire/release discipline that keeps this pointer stable).
func (d *Device) Profile() *Profile { return d.profile }

// SetProfile is used only by internal/cache on insert, replace, and
// profile-updated relinking.
func (d *Device) SetProfile(p *Profile) { d.profile = p }

// AutoeventsEqual reports whether two autoevent lists are equal in the
// sense add_or_replace cares about: same length, same source/interval/
// on-change settings in the same order.
func AutoeventsEqual(a, b []*Autoevent) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].SourceName != b[i].SourceName ||
			a[i].Interval != b[i].Interval ||
			a[i].OnChange != b[i].OnChange ||
			a[i].OnChangeThreshold != b[i].OnChangeThreshold {
			return false
		}
	}
	return true
}
