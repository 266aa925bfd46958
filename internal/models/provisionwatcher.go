// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package models

import "regexp"

// ProvisionWatcher is a pattern-based rule that admits discovered devices
// into the service. Identifiers is pre-compiled once at population time
// (see internal/provision); BlockingIdentifiers holds exact-match
// forbidden values per property.
type ProvisionWatcher struct {
	Name                string
	AdminState          AdminState
	Enabled             bool
	Identifiers         map[string]*regexp.Regexp
	BlockingIdentifiers map[string][]string
	ProfileName         string
	Autoevents          []*Autoevent
}

// DiscoveredDevice is what a driver's Discover hook reports for one
// candidate: a name, protocol address, description and a flat property
// map that provision watchers match against.
type DiscoveredDevice struct {
	Name        string
	Protocols   ProtocolAddress
	Description string
	Properties  map[string]string
}
