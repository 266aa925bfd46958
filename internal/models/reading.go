// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package models

// Reading is one value sampled (or about to be written) at one resource.
// Origin is nanoseconds since epoch; zero means "stamp with wall clock at
// serialization time".
type Reading struct {
	Id           string
	Origin       int64
	DeviceName   string
	ProfileName  string
	ResourceName string
	ValueType    ValueType
	MediaType    string
	Value        Value
}

// AssertionFailed is set on the per-request outcome, not on the Reading
// itself; readings do not carry pipeline bookkeeping.
