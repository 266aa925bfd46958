// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

// Package provision implements the provision-watcher list (§4.7):
// compiled-regex population, add/update/delete maintenance, and the
// first-match admission rule applied to driver-discovered devices.
package provision

import (
	"regexp"
	"sync"

	edgeerr "github.com/openedge-platform/device-service-core/internal/errors"
	"github.com/openedge-platform/device-service-core/internal/models"
)

// WatcherSpec is the wire shape a watcher arrives in over the bus
// (system-events/core-metadata/provisionwatcher/*): identifier patterns
// are plain strings here and compiled once by Add/Update.
type WatcherSpec struct {
	Name                string
	AdminState          models.AdminState
	Enabled             bool
	Identifiers         map[string]string
	BlockingIdentifiers map[string][]string
	ProfileName         string
	Autoevents          []*models.Autoevent
}

// List holds the compiled provision watchers in declaration (insertion)
// order, since match order is significant (§4.7: "first matching watcher
// wins").
type List struct {
	mu       sync.RWMutex
	order    []string
	watchers map[string]*models.ProvisionWatcher
}

func NewList() *List {
	return &List{watchers: make(map[string]*models.ProvisionWatcher)}
}

// Add compiles spec's identifier patterns and appends the watcher to the
// declaration order (or, if the name already exists, replaces it in
// place without moving its position).
func (l *List) Add(spec WatcherSpec) error {
	watcher, err := compile(spec)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.watchers[spec.Name]; !exists {
		l.order = append(l.order, spec.Name)
	}
	l.watchers[spec.Name] = watcher
	return nil
}

// Update behaves exactly like Add; provision watcher updates are full
// replacements (no partial-field merge), matching the device-update
// DTO-replace convention used throughout §4.10.
func (l *List) Update(spec WatcherSpec) error {
	return l.Add(spec)
}

func (l *List) Delete(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.watchers, name)
	for i, n := range l.order {
		if n == name {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

func compile(spec WatcherSpec) (*models.ProvisionWatcher, error) {
	identifiers := make(map[string]*regexp.Regexp, len(spec.Identifiers))
	for property, pattern := range spec.Identifiers {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, edgeerr.Wrap(edgeerr.KindBadRequest, "compile identifier regex for "+property, err)
		}
		identifiers[property] = re
	}
	return &models.ProvisionWatcher{
		Name:                spec.Name,
		AdminState:          spec.AdminState,
		Enabled:             spec.Enabled,
		Identifiers:         identifiers,
		BlockingIdentifiers: spec.BlockingIdentifiers,
		ProfileName:         spec.ProfileName,
		Autoevents:          spec.Autoevents,
	}, nil
}

// Match evaluates discovered against every enabled, unlocked watcher in
// declaration order and returns the first admitting watcher, or nil if
// none match (§4.7). A watcher admits discovered when every identifier
// regex matches the correspondingly-named property (a missing property
// is a non-match) and no blocking-identifier's value list contains the
// announcement's value for that property.
func (l *List) Match(discovered models.DiscoveredDevice) *models.ProvisionWatcher {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, name := range l.order {
		w := l.watchers[name]
		if w == nil || !w.Enabled || w.AdminState == models.Locked {
			continue
		}
		if admits(w, discovered) {
			return w
		}
	}
	return nil
}

func admits(w *models.ProvisionWatcher, discovered models.DiscoveredDevice) bool {
	for property, re := range w.Identifiers {
		value, ok := discovered.Properties[property]
		if !ok || !re.MatchString(value) {
			return false
		}
	}
	for property, blocked := range w.BlockingIdentifiers {
		value, ok := discovered.Properties[property]
		if !ok {
			continue
		}
		for _, b := range blocked {
			if b == value {
				return false
			}
		}
	}
	return true
}
