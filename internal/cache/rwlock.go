// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package cache

import "sync"

// writerPreferredLock wraps sync.RWMutex with a writer-preference gate: a
// pending writer blocks any reader that has not already begun its
// critical section, so a steady stream of reads cannot starve an update.
// Readers already in progress are unaffected; the writer still waits for
// them to finish via the underlying RWMutex.
type writerPreferredLock struct {
	gate sync.Mutex
	rw   sync.RWMutex
}

func (l *writerPreferredLock) RLock() {
	l.gate.Lock()
	l.gate.Unlock()
	l.rw.RLock()
}

func (l *writerPreferredLock) RUnlock() {
	l.rw.RUnlock()
}

func (l *writerPreferredLock) Lock() {
	l.gate.Lock()
	l.rw.Lock()
}

func (l *writerPreferredLock) Unlock() {
	l.rw.Unlock()
	l.gate.Unlock()
}
