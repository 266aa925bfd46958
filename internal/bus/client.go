// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package bus

import "context"

// Client is the transport-agnostic surface both bindings (mqtt, redis)
// implement. The rest of the core talks to Client, never to paho or
// go-redis directly.
type Client interface {
	Connect(ctx context.Context) error
	Disconnect() error
	// Publish must buffer internally rather than block hard when the
	// backend is briefly unavailable (§4.5); a hard failure is
	// returned to the caller to log and drop.
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe registers a handler for every topic matching prefix
	// (already remapped to the binding's own wildcard convention by the
	// binding itself). Subscribe may be called multiple times with
	// different prefixes.
	Subscribe(ctx context.Context, prefix string, handler func(topic string, payload []byte)) error
}
