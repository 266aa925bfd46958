// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package models

import "sync"

// Transform carries the optional numeric transform stages for a
// PropertyValue. A stage is "enabled" by a non-nil pointer; Shift is
// signed (negative = left, positive = right) and applied after Mask.
type Transform struct {
	Scale  *float64
	Offset *float64
	Base   *float64
	Shift  *int
	Mask   *uint64
}

// Bounds carries optional numeric validation bounds, checked on set.
type Bounds struct {
	Minimum *float64
	Maximum *float64
}

// PropertyValue is the read/write contract of one resource.
type PropertyValue struct {
	Type         ValueType
	ReadWrite    ReadWrite
	Transform    Transform
	Bounds       Bounds
	Assertion    string
	Units        string
	DefaultValue string
	MediaType    string
	// ValueMapping maps device-level strings to external names outgoing,
	// and is consulted in reverse incoming (external name -> device
	// string) on a set.
	ValueMapping map[string]string
}

// ReadWrite captures which directions a resource permits.
type ReadWrite struct {
	Readable bool
	Writable bool
}

func (rw ReadWrite) Permits(isGet bool) bool {
	if isGet {
		return rw.Readable
	}
	return rw.Writable
}

// Resource is one read/write endpoint on a device.
type Resource struct {
	Name        string
	Description string
	Attributes  ResourceAttributes
	Properties  PropertyValue
	Tags        map[string]string

	// DriverHandle is the opaque value the driver's CreateResourceAttr
	// hook returned for Attributes; FreeResourceAttr is called with it
	// exactly once when the owning device is freed.
	DriverHandle interface{}
}

// ResourceOperation names one step of a Command's resolution: the
// resource it targets, plus optional per-step overrides of the mapping
// and default value that the underlying PropertyValue declares.
type ResourceOperation struct {
	ResourceName string
	DefaultValue string
	ValueMapping map[string]string
}

// Command is a named aggregate of resource operations.
type Command struct {
	Name       string
	ReadWrite  ReadWrite
	Resources  []ResourceOperation
	Tags       map[string]string
}

// ResourceRequest is one flattened step of a resolved command: which
// resource to hit, and the mapping/default to apply to it, as produced
// by ResolveCommand (see internal/command).
type ResourceRequest struct {
	Resource     *Resource
	ValueMapping map[string]string
	DefaultValue string
}

// commandInfo is the memoised resolution table for one profile.
type commandInfo struct {
	once  sync.Once
	get   map[string][]ResourceRequest
	set   map[string][]ResourceRequest
}

// Profile is a declared set of resources and commands for a class of
// devices. Profiles are owned by the profile cache and referenced by
// devices via name; see internal/cache for lifecycle rules.
type Profile struct {
	Name         string
	Description  string
	Manufacturer string
	Model        string
	Labels       []string
	Resources    []Resource
	Commands     []Command

	info commandInfo
}

// ResourceByName returns the named resource, or nil.
func (p *Profile) ResourceByName(name string) *Resource {
	for i := range p.Resources {
		if p.Resources[i].Name == name {
			return &p.Resources[i]
		}
	}
	return nil
}

// CommandByName returns the named command, or nil.
func (p *Profile) CommandByName(name string) *Command {
	for i := range p.Commands {
		if p.Commands[i].Name == name {
			return &p.Commands[i]
		}
	}
	return nil
}

// initCommandInfo performs the one-time walk building the get/set
// resolution tables for every command and bare-resource name. It runs
// under a sync.Once so concurrent first lookups don't race.
func (p *Profile) initCommandInfo() {
	p.info.once.Do(func() {
		p.info.get = make(map[string][]ResourceRequest)
		p.info.set = make(map[string][]ResourceRequest)

		for ci := range p.Commands {
			cmd := &p.Commands[ci]
			reqs := make([]ResourceRequest, 0, len(cmd.Resources))
			ok := true
			for _, op := range cmd.Resources {
				res := p.ResourceByName(op.ResourceName)
				if res == nil {
					ok = false
					break
				}
				reqs = append(reqs, ResourceRequest{
					Resource:     res,
					ValueMapping: firstNonEmptyMapping(op.ValueMapping, res.Properties.ValueMapping),
					DefaultValue: firstNonEmptyString(op.DefaultValue, res.Properties.DefaultValue),
				})
			}
			if !ok {
				continue
			}
			if cmd.ReadWrite.Readable {
				if allPermit(reqs, true) {
					p.info.get[cmd.Name] = reqs
				}
			}
			if cmd.ReadWrite.Writable {
				if allPermit(reqs, false) {
					p.info.set[cmd.Name] = reqs
				}
			}
		}

		for ri := range p.Resources {
			res := &p.Resources[ri]
			if p.CommandByName(res.Name) != nil {
				// A command of this name takes precedence in both
				// directions, even where it did not resolve.
				continue
			}
			single := []ResourceRequest{{Resource: res, ValueMapping: res.Properties.ValueMapping, DefaultValue: res.Properties.DefaultValue}}
			if res.Properties.ReadWrite.Readable {
				if _, exists := p.info.get[res.Name]; !exists {
					p.info.get[res.Name] = single
				}
			}
			if res.Properties.ReadWrite.Writable {
				if _, exists := p.info.set[res.Name]; !exists {
					p.info.set[res.Name] = single
				}
			}
		}
	})
}

func allPermit(reqs []ResourceRequest, isGet bool) bool {
	for _, r := range reqs {
		if !r.Resource.Properties.ReadWrite.Permits(isGet) {
			return false
		}
	}
	return true
}

func firstNonEmptyMapping(a, b map[string]string) map[string]string {
	if len(a) > 0 {
		return a
	}
	return b
}

func firstNonEmptyString(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// ResolveCommand returns the ordered resource requests a get or set of
// name expands to, per the resolution rules: command match first, then
// bare-resource fallback only when no command has that name. ok is false when no such command/resource
// exists, or the one that does exist doesn't permit the direction.
func (p *Profile) ResolveCommand(name string, isGet bool) ([]ResourceRequest, bool) {
	p.initCommandInfo()
	table := p.info.set
	if isGet {
		table = p.info.get
	}
	reqs, ok := table[name]
	return reqs, ok
}
