// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package models

// ProtocolProperties is the opaque, driver-defined property bag for one
// protocol entry on a device's address. The core never interprets these
// keys; it is the driver's CreateAddress hook that parses them.
type ProtocolProperties map[string]string

// ProtocolAddress maps protocol name (e.g. "modbus-tcp", "rest") to its
// property bag. Two addresses are equal iff their maps are equal at every
// protocol name and every property -- used by the device map to decide
// whether an add_or_replace can update a device in place.
type ProtocolAddress map[string]ProtocolProperties

// Equal reports deep equality between two protocol addresses.
func (p ProtocolAddress) Equal(other ProtocolAddress) bool {
	if len(p) != len(other) {
		return false
	}
	for proto, props := range p {
		otherProps, ok := other[proto]
		if !ok || len(props) != len(otherProps) {
			return false
		}
		for k, v := range props {
			if otherProps[k] != v {
				return false
			}
		}
	}
	return true
}

// ResourceAttributes is the opaque, driver-defined property bag for one
// resource. Parsed by the driver's CreateResourceAttr hook.
type ResourceAttributes map[string]string
