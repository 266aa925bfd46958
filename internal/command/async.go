// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/openedge-platform/device-service-core/internal/models"
	"github.com/openedge-platform/device-service-core/internal/transformer"
	drivermodels "github.com/openedge-platform/device-service-core/pkg/models"
)

// AsyncHandler drains a driver's asynchronous-values channel: readings a
// driver pushes on its own schedule (a push sensor, or the tail end of
// an async write) rather than in response to a Get. It assembles and
// publishes a cooked event through the same profile-driven transform
// pipeline Get uses, so a subscriber cannot tell an async reading from a
// polled one.
type AsyncHandler struct {
	*Pipeline
}

// Run drains asyncCh until it is closed or ctx is cancelled. It is
// meant to run on its own goroutine, one per started driver.
func (h *AsyncHandler) Run(ctx context.Context, asyncCh <-chan *drivermodels.AsyncValues) {
	for {
		select {
		case <-ctx.Done():
			return
		case values, ok := <-asyncCh:
			if !ok {
				return
			}
			h.handle(ctx, values)
		}
	}
}

func (h *AsyncHandler) handle(ctx context.Context, values *drivermodels.AsyncValues) {
	device, ok := h.Devices.AcquireByName(values.DeviceName)
	if !ok {
		h.Logger.Warn("async values for unknown device %s dropped", values.DeviceName)
		return
	}
	defer h.Devices.Release(device)

	profile := device.Profile()
	if profile == nil {
		h.Logger.Warn("async values for device %s with no bound profile dropped", values.DeviceName)
		return
	}

	now := values.Origin
	if now == 0 {
		now = time.Now().UnixNano()
	}

	readings := make([]models.Reading, 0, len(values.Readings))
	for resourceName, raw := range values.Readings {
		resource := profile.ResourceByName(resourceName)
		if resource == nil {
			h.Logger.Warn("async value for unknown resource %s/%s dropped", values.DeviceName, resourceName)
			continue
		}

		v := raw
		if h.Transforms {
			if out, overflow := transformer.TransformOutgoing(v, resource.Properties.Transform); overflow {
				v = models.Value{Type: models.ValueTypeString, StringValue: transformer.Overflow, Origin: v.Origin}
			} else {
				v = out
			}
		}

		origin := v.Origin
		if origin == 0 {
			origin = now
		}
		readings = append(readings, models.Reading{
			Id:           uuid.New().String(),
			Origin:       origin,
			DeviceName:   values.DeviceName,
			ProfileName:  profile.Name,
			ResourceName: resourceName,
			ValueType:    v.Type,
			MediaType:    v.MediaType,
			Value:        v,
		})
	}
	if len(readings) == 0 {
		return
	}

	sourceName := values.SourceName
	if sourceName == "" {
		sourceName = readings[0].ResourceName
	}

	event := models.Event{
		Id:          uuid.New().String(),
		DeviceName:  values.DeviceName,
		ProfileName: profile.Name,
		SourceName:  sourceName,
		Origin:      now,
		Tags:        device.Tags,
		Readings:    readings,
	}

	if err := h.Publisher.Publish(ctx, event); err != nil {
		h.Logger.Error("publish failed for async values on device %s: %v", values.DeviceName, err)
		return
	}
	if h.Metrics != nil {
		h.Metrics.IncEventsSent(1)
		h.Metrics.IncReadingsSent(len(readings))
	}
}
