// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openedge-platform/device-service-core/internal/cache"
	"github.com/openedge-platform/device-service-core/internal/logging"
	"github.com/openedge-platform/device-service-core/internal/models"
	drivermodels "github.com/openedge-platform/device-service-core/pkg/models"
)

type asyncPublisher struct{ published []models.Event }

func (p *asyncPublisher) Publish(_ context.Context, event models.Event) error {
	p.published = append(p.published, event)
	return nil
}

type asyncMetrics struct{ events, readings int }

func (m *asyncMetrics) IncEventsSent(n int)    { m.events += n }
func (m *asyncMetrics) IncReadingsSent(n int)  { m.readings += n }
func (asyncMetrics) IncReadCommands(int)       {}
func (asyncMetrics) IncWriteCommands(int)      {}

func testAsyncHandler(t *testing.T) (*AsyncHandler, *asyncPublisher) {
	t.Helper()
	devices := cache.NewDeviceCache(cache.Hooks{})
	profile := &models.Profile{
		Name: "push-sensor",
		Resources: []models.Resource{{
			Name:       "temperature",
			Properties: models.PropertyValue{Type: models.ValueTypeFloat64, ReadWrite: models.ReadWrite{Readable: true}},
		}},
	}
	device := &models.Device{Name: "push-1", ProfileName: "push-sensor", AdminState: models.Unlocked, OperatingState: models.Up}
	device.SetProfile(profile)
	devices.AddOrReplace(device)

	metrics := &asyncMetrics{}
	publisher := &asyncPublisher{}
	pipeline := &Pipeline{
		Devices:   devices,
		Publisher: publisher,
		Metrics:   metrics,
		Logger:    logging.NewClient("device-test", logging.INFO),
	}
	return &AsyncHandler{Pipeline: pipeline}, publisher
}

func TestAsyncHandlerPublishesEventForKnownResource(t *testing.T) {
	h, publisher := testAsyncHandler(t)

	h.Run(context.Background(), asyncChWith(&drivermodels.AsyncValues{
		DeviceName: "push-1",
		SourceName: "temperature",
		Readings:   map[string]models.Value{"temperature": {Type: models.ValueTypeFloat64, NumberValue: 19.5}},
	}))

	require.Len(t, publisher.published, 1)
	event := publisher.published[0]
	assert.Equal(t, "push-1", event.DeviceName)
	require.Len(t, event.Readings, 1)
	assert.Equal(t, "temperature", event.Readings[0].ResourceName)
}

func TestAsyncHandlerDropsReadingsForUnknownResourceButPublishesRest(t *testing.T) {
	h, publisher := testAsyncHandler(t)

	h.Run(context.Background(), asyncChWith(&drivermodels.AsyncValues{
		DeviceName: "push-1",
		Readings: map[string]models.Value{
			"temperature": {Type: models.ValueTypeFloat64, NumberValue: 19.5},
			"unknown":     {Type: models.ValueTypeFloat64, NumberValue: 1},
		},
	}))

	require.Len(t, publisher.published, 1)
	assert.Len(t, publisher.published[0].Readings, 1)
}

func TestAsyncHandlerDropsValuesForUnknownDevice(t *testing.T) {
	h, publisher := testAsyncHandler(t)

	h.Run(context.Background(), asyncChWith(&drivermodels.AsyncValues{
		DeviceName: "missing",
		Readings:   map[string]models.Value{"temperature": {Type: models.ValueTypeFloat64, NumberValue: 1}},
	}))

	assert.Empty(t, publisher.published)
}

func asyncChWith(values ...*drivermodels.AsyncValues) <-chan *drivermodels.AsyncValues {
	ch := make(chan *drivermodels.AsyncValues, len(values))
	for _, v := range values {
		ch <- v
	}
	close(ch)
	return ch
}
