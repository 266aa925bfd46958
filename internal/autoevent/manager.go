// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

// Package autoevent implements the autoevent scheduler of §4.6: one
// scheduler job per device autoevent, installed at device insertion and
// cancelled at removal/replacement, running the get pipeline on a shared
// worker pool and applying the on-change filter before publication.
package autoevent

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/openedge-platform/device-service-core/internal/cache"
	"github.com/openedge-platform/device-service-core/internal/command"
	"github.com/openedge-platform/device-service-core/internal/common"
	"github.com/openedge-platform/device-service-core/internal/logging"
	"github.com/openedge-platform/device-service-core/internal/models"
)

// EventPublisher mirrors internal/command.EventPublisher; declared
// locally so this package does not need to import the driver-facing
// parts of internal/command just for the interface.
type EventPublisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// MetricsRecorder mirrors the counter surface the pipeline already
// updates for pushed events; autoevent firings bypass the pipeline's own
// push (it always runs with ds-pushevent=false) so the manager accounts
// for them itself when the on-change filter lets one through.
type MetricsRecorder interface {
	IncEventsSent(n int)
	IncReadingsSent(n int)
}

// Manager owns the shared cron scheduler and the per-device job handles.
type Manager struct {
	Devices     *cache.DeviceCache
	Pipeline    *command.Pipeline
	Publisher   EventPublisher
	Metrics     MetricsRecorder
	Logger      logging.Client
	AllowedFails int

	cr       *cron.Cron
	mu       sync.Mutex
	handles  map[jobKey]cron.EntryID
}

type jobKey struct {
	device string
	source string
}

func NewManager(devices *cache.DeviceCache, pipeline *command.Pipeline, publisher EventPublisher, metrics MetricsRecorder, logger logging.Client, allowedFails int) *Manager {
	return &Manager{
		Devices:      devices,
		Pipeline:     pipeline,
		Publisher:    publisher,
		Metrics:      metrics,
		Logger:       logger,
		AllowedFails: allowedFails,
		cr:           cron.New(),
		handles:      make(map[jobKey]cron.EntryID),
	}
}

func (m *Manager) Start() { m.cr.Start() }

func (m *Manager) Stop() { <-m.cr.Stop().Done() }

// Install schedules one job per autoevent on device, serialized via the
// device cache's per-device lock so the scheduler handle is never torn
// down mid-callback (§4.6 concurrency rule).
func (m *Manager) Install(deviceName string, autoevents []*models.Autoevent) {
	m.Devices.WithDeviceLock(deviceName, func() {
		for _, ae := range autoevents {
			m.installOne(deviceName, ae)
		}
	})
}

func (m *Manager) installOne(deviceName string, ae *models.Autoevent) {
	interval, err := common.ParseInterval(ae.Interval)
	if err != nil {
		m.Logger.Error("invalid autoevent interval %q for device %s: %v", ae.Interval, deviceName, err)
		return
	}

	job := &autoeventJob{
		manager:    m,
		deviceName: deviceName,
		autoevent:  ae,
	}
	spec := fmt.Sprintf("@every %s", interval.String())

	m.mu.Lock()
	defer m.mu.Unlock()
	id, err := m.cr.AddJob(spec, job)
	if err != nil {
		m.Logger.Error("failed to schedule autoevent %s/%s: %v", deviceName, ae.SourceName, err)
		return
	}
	m.handles[jobKey{deviceName, ae.SourceName}] = id
	ae.SetHandle(id)
}

// Uninstall cancels every scheduled job for device, called on removal or
// replacement (§4.6).
func (m *Manager) Uninstall(deviceName string, autoevents []*models.Autoevent) {
	m.Devices.WithDeviceLock(deviceName, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for _, ae := range autoevents {
			key := jobKey{deviceName, ae.SourceName}
			if id, ok := m.handles[key]; ok {
				m.cr.Remove(id)
				delete(m.handles, key)
			}
		}
	})
}

// autoeventJob is the cron.Job fired on the shared worker pool (cron/v3
// runs each entry's Run on its own goroutine, giving us the "multiple
// autoevents fire concurrently" requirement without a separate pool).
type autoeventJob struct {
	manager    *Manager
	deviceName string
	autoevent  *models.Autoevent

	mu       sync.Mutex
	previous *models.Event
}

func (j *autoeventJob) Run() {
	m := j.manager
	ctx := common.WithCorrelationID(context.Background(), common.NewCorrelationID())

	result, err := m.Pipeline.Get(ctx, j.deviceName, j.autoevent.SourceName, map[string]string{
		"ds-pushevent":   "false",
		"ds-returnevent": "true",
	}, nil)
	if err != nil {
		m.onFailure(j.deviceName, err)
		return
	}
	m.onSuccess(j.deviceName)

	if result.Event == nil || result.AssertionFailed {
		return
	}

	if j.autoevent.OnChange {
		j.mu.Lock()
		prev := j.previous
		changed := prev == nil || eventChanged(prev, result.Event, j.autoevent.OnChangeThreshold)
		if changed {
			j.previous = result.Event
		}
		j.mu.Unlock()
		if !changed {
			return
		}
	}

	if err := m.Publisher.Publish(ctx, *result.Event); err != nil {
		m.Logger.Error("autoevent publish failed for device %s source %s: %v", j.deviceName, j.autoevent.SourceName, err)
		return
	}
	if m.Metrics != nil {
		m.Metrics.IncEventsSent(1)
		m.Metrics.IncReadingsSent(len(result.Event.Readings))
	}
}

// eventChanged implements the §4.6 on-change comparison: numeric
// readings compare by absolute difference against threshold; everything
// else compares for exact equality.
func eventChanged(prev, next *models.Event, threshold float64) bool {
	if len(prev.Readings) != len(next.Readings) {
		return true
	}
	for i := range next.Readings {
		a, b := prev.Readings[i].Value, next.Readings[i].Value
		if a.Type.IsNumeric() && b.Type.IsNumeric() {
			if delta, ok := models.NumericDelta(a, b); ok && delta >= threshold {
				return true
			}
			continue
		}
		if !a.Equal(b) {
			return true
		}
	}
	return false
}

// onFailure increments the device's retry counter and, once it reaches
// AllowedFails, marks the device DOWN (§7). Failures are counted without
// a time window; DeviceDownTimeout plays no part.
func (m *Manager) onFailure(deviceName string, err error) {
	m.Logger.Error("autoevent run failed for device %s: %v", deviceName, err)
	retries := m.Devices.IncrementRetry(deviceName)
	if m.AllowedFails > 0 && int(retries) >= m.AllowedFails {
		m.Devices.SetOperatingState(deviceName, models.Down)
	}
}

// onSuccess resets the retry counter and restores the device to UP.
func (m *Manager) onSuccess(deviceName string) {
	m.Devices.ResetRetry(deviceName)
	m.Devices.SetOperatingState(deviceName, models.Up)
}
