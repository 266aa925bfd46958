// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

// Package telemetry counts the metrics named in §6's "Writable/
// Telemetry/Metrics/<name>" configuration tree and periodically
// publishes the enabled ones on "<prefix>/telemetry/<service>/<metric>".
package telemetry

import "sync/atomic"

// Registry holds the service's running metric counters. Each counter is
// a plain atomic so Inc* can be called from any pipeline or scheduler
// goroutine without extra locking.
type Registry struct {
	eventsSent    int64
	readingsSent  int64
	readCommands  int64
	writeCommands int64
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) IncEventsSent(n int)    { atomic.AddInt64(&r.eventsSent, int64(n)) }
func (r *Registry) IncReadingsSent(n int)  { atomic.AddInt64(&r.readingsSent, int64(n)) }
func (r *Registry) IncReadCommands(n int)  { atomic.AddInt64(&r.readCommands, int64(n)) }
func (r *Registry) IncWriteCommands(n int) { atomic.AddInt64(&r.writeCommands, int64(n)) }

// Snapshot returns the current value of every named metric, keyed the
// same way the Writable/Telemetry/Metrics/<name> config gate names them.
func (r *Registry) Snapshot() map[string]int64 {
	return map[string]int64{
		"EventsSent":    atomic.LoadInt64(&r.eventsSent),
		"ReadingsSent":  atomic.LoadInt64(&r.readingsSent),
		"ReadCommands":  atomic.LoadInt64(&r.readCommands),
		"WriteCommands": atomic.LoadInt64(&r.writeCommands),
	}
}
