// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"github.com/openedge-platform/device-service-core/internal/models"
)

// ProfileCache is the name-indexed map of owned profiles. Profiles are
// never replaced in place: Add always supersedes a predecessor by name.
type ProfileCache struct {
	lock     writerPreferredLock
	profiles map[string]*models.Profile
}

func NewProfileCache() *ProfileCache {
	return &ProfileCache{profiles: make(map[string]*models.Profile)}
}

// GetByName returns the profile registered under name, or (nil, false).
func (c *ProfileCache) GetByName(name string) (*models.Profile, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	p, ok := c.profiles[name]
	return p, ok
}

// Add installs profile, superseding any predecessor of the same name.
// Returns true if a predecessor existed.
func (c *ProfileCache) Add(profile *models.Profile) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	_, existed := c.profiles[profile.Name]
	c.profiles[profile.Name] = profile
	return existed
}

// Remove deletes the named profile. Returns true if it existed.
func (c *ProfileCache) Remove(name string) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	_, ok := c.profiles[name]
	delete(c.profiles, name)
	return ok
}

// All returns a snapshot slice of every cached profile.
func (c *ProfileCache) All() []*models.Profile {
	c.lock.RLock()
	defer c.lock.RUnlock()
	out := make([]*models.Profile, 0, len(c.profiles))
	for _, p := range c.profiles {
		out = append(out, p)
	}
	return out
}
