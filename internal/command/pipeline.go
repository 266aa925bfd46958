// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

// Package command implements the get/set pipeline: resolving a command
// against a device's profile, invoking the driver, applying transforms
// and assertions in both directions, and assembling the cooked event the
// event path (internal/data) serializes and publishes.
package command

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/openedge-platform/device-service-core/internal/cache"
	coreerrors "github.com/openedge-platform/device-service-core/internal/errors"
	"github.com/openedge-platform/device-service-core/internal/logging"
	"github.com/openedge-platform/device-service-core/internal/models"
	"github.com/openedge-platform/device-service-core/internal/transformer"
	drivermodels "github.com/openedge-platform/device-service-core/pkg/models"
)

// EventPublisher is the event-path boundary the pipeline hands cooked
// events to for serialization, envelope wrapping and bus publication
// (§4.5). Kept as an interface here so internal/data can depend on
// internal/command's output type without a back-import.
type EventPublisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// MetricsRecorder is the minimal counter surface the pipeline touches;
// see internal/telemetry for the concrete implementation.
type MetricsRecorder interface {
	IncEventsSent(n int)
	IncReadingsSent(n int)
	IncReadCommands(n int)
	IncWriteCommands(n int)
}

// Pipeline wires together the device cache, the driver and the event
// path to implement §4.3 of the service spec.
type Pipeline struct {
	Devices     *cache.DeviceCache
	Driver      drivermodels.ProtocolDriver
	Publisher   EventPublisher
	Metrics     MetricsRecorder
	Logger      logging.Client
	MaxCmdOps   int
	ServiceName string
	Transforms  bool // Device/DataTransform config gate
}

// GetResult is what a successful Get pipeline run produced.
type GetResult struct {
	Event           *models.Event
	AssertionFailed bool
}

// Get runs the read pipeline for one command against one device.
func (p *Pipeline) Get(ctx context.Context, deviceName, commandName string, options map[string]string, callerTags map[string]string) (*GetResult, error) {
	device, ok := p.Devices.AcquireByName(deviceName)
	if !ok {
		return nil, coreerrors.Newf(coreerrors.KindNotFound, "device %s not found", deviceName)
	}
	defer p.Devices.Release(device)

	if p.Devices.ServiceLocked() || device.AdminState == models.Locked || device.OperatingState == models.Down {
		return nil, coreerrors.Newf(coreerrors.KindLocked, "device %s is locked or down", deviceName)
	}

	profile := device.Profile()
	if profile == nil {
		return nil, coreerrors.Newf(coreerrors.KindInternal, "device %s has no bound profile", deviceName)
	}
	reqs, ok := profile.ResolveCommand(commandName, true)
	if !ok || len(reqs) == 0 {
		return nil, coreerrors.Newf(coreerrors.KindNotFound, "command %s not found or not readable", commandName)
	}
	if p.MaxCmdOps > 0 && len(reqs) > p.MaxCmdOps {
		return nil, coreerrors.Newf(coreerrors.KindBadRequest, "command %s resolves to %d operations, exceeding MaxCmdOps %d", commandName, len(reqs), p.MaxCmdOps)
	}

	driverReqs := make([]drivermodels.CommandRequest, len(reqs))
	for i, r := range reqs {
		driverReqs[i] = drivermodels.CommandRequest{
			DeviceResourceName: r.Resource.Name,
			Attributes:         r.Resource.Attributes,
			Type:               r.Resource.Properties.Type,
		}
	}

	rawValues, err := p.Driver.HandleGet(deviceName, device.AddressHandle, driverReqs, options)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindDriverError, "driver HandleGet failed", err)
	}
	if len(rawValues) != len(reqs) {
		return nil, coreerrors.Newf(coreerrors.KindInternal, "driver returned %d values for %d requests", len(rawValues), len(reqs))
	}

	now := time.Now().UnixNano()
	readings := make([]models.Reading, len(reqs))
	assertionFailed := false

	for i, r := range reqs {
		v := rawValues[i]
		prop := r.Resource.Properties

		if p.Transforms {
			if out, overflow := transformer.TransformOutgoing(v, prop.Transform); overflow {
				v = models.Value{Type: models.ValueTypeString, StringValue: transformer.Overflow, Origin: v.Origin}
			} else {
				v = out
			}
		}

		if len(r.ValueMapping) > 0 {
			if mapped, ok := transformer.MapOutgoing(v.String(), r.ValueMapping); ok {
				v = models.Value{Type: models.ValueTypeString, StringValue: mapped, Origin: v.Origin}
			}
		}

		if prop.Assertion != "" {
			if v.String() != prop.Assertion {
				assertionFailed = true
			}
		}

		origin := v.Origin
		if origin == 0 {
			origin = now
		}
		readings[i] = models.Reading{
			Id:           uuid.New().String(),
			Origin:       origin,
			DeviceName:   deviceName,
			ProfileName:  profile.Name,
			ResourceName: r.Resource.Name,
			ValueType:    v.Type,
			MediaType:    v.MediaType,
			Value:        v,
		}
	}

	if p.Metrics != nil {
		p.Metrics.IncReadCommands(1)
	}

	if assertionFailed {
		p.Logger.Warn("assertion failed for command %s on device %s; event suppressed", commandName, deviceName)
		return &GetResult{AssertionFailed: true}, nil
	}

	tags := mergeTags(device.Tags, commandTags(profile, commandName), callerTags)
	event := models.Event{
		Id:          uuid.New().String(),
		DeviceName:  deviceName,
		ProfileName: profile.Name,
		SourceName:  commandName,
		Origin:      now,
		Tags:        tags,
		Readings:    readings,
	}

	pushEvent := options[pushEventKey] != "false"
	if pushEvent {
		if err := p.Publisher.Publish(ctx, event); err != nil {
			p.Logger.Error("publish failed for device %s command %s: %v", deviceName, commandName, err)
		} else if p.Metrics != nil {
			p.Metrics.IncEventsSent(1)
			p.Metrics.IncReadingsSent(len(readings))
		}
	}

	returnEvent := options[returnEventKey] != "false"
	result := &GetResult{}
	if returnEvent {
		result.Event = &event
	}
	return result, nil
}

const (
	pushEventKey   = "ds-pushevent"
	returnEventKey = "ds-returnevent"
)

func commandTags(p *models.Profile, commandName string) map[string]string {
	if cmd := p.CommandByName(commandName); cmd != nil {
		return cmd.Tags
	}
	return nil
}

func mergeTags(tagSets ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, ts := range tagSets {
		for k, v := range ts {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Set runs the write pipeline for one command against one device.
func (p *Pipeline) Set(ctx context.Context, deviceName, commandName string, values map[string]models.Value, options map[string]string) error {
	device, ok := p.Devices.AcquireByName(deviceName)
	if !ok {
		return coreerrors.Newf(coreerrors.KindNotFound, "device %s not found", deviceName)
	}
	defer p.Devices.Release(device)

	if p.Devices.ServiceLocked() || device.AdminState == models.Locked || device.OperatingState == models.Down {
		return coreerrors.Newf(coreerrors.KindLocked, "device %s is locked or down", deviceName)
	}

	profile := device.Profile()
	if profile == nil {
		return coreerrors.Newf(coreerrors.KindInternal, "device %s has no bound profile", deviceName)
	}
	reqs, ok := profile.ResolveCommand(commandName, false)
	if !ok || len(reqs) == 0 {
		return coreerrors.Newf(coreerrors.KindNotFound, "command %s not found or not writable", commandName)
	}
	if p.MaxCmdOps > 0 && len(reqs) > p.MaxCmdOps {
		return coreerrors.Newf(coreerrors.KindBadRequest, "command %s resolves to %d operations, exceeding MaxCmdOps %d", commandName, len(reqs), p.MaxCmdOps)
	}

	driverReqs := make([]drivermodels.CommandRequest, len(reqs))
	driverVals := make([]models.Value, len(reqs))

	for i, r := range reqs {
		prop := r.Resource.Properties
		raw, ok := values[r.Resource.Name]
		if !ok {
			if r.DefaultValue == "" {
				return coreerrors.Newf(coreerrors.KindBadRequest, "missing value for resource %s", r.Resource.Name)
			}
			parsed, err := parseDeviceString(r.DefaultValue, prop.Type)
			if err != nil {
				return coreerrors.Wrap(coreerrors.KindBadRequest, "invalid default value", err)
			}
			raw = parsed
		}

		if len(r.ValueMapping) > 0 && raw.Type == models.ValueTypeString {
			if mapped, ok := transformer.MapIncoming(raw.StringValue, r.ValueMapping); ok {
				parsed, err := parseDeviceString(mapped, prop.Type)
				if err != nil {
					return coreerrors.Wrap(coreerrors.KindBadRequest, "invalid mapped value", err)
				}
				raw = parsed
			}
		}

		if err := transformer.CheckBounds(raw, prop.Bounds); err != nil {
			return err
		}

		if p.Transforms {
			if out, overflow := transformer.TransformIncoming(raw, prop.Transform); overflow {
				return coreerrors.Newf(coreerrors.KindOverflow, "transform overflow for resource %s", r.Resource.Name)
			} else {
				raw = out
			}
		}

		driverReqs[i] = drivermodels.CommandRequest{
			DeviceResourceName: r.Resource.Name,
			Attributes:         r.Resource.Attributes,
			Type:               prop.Type,
		}
		driverVals[i] = raw
	}

	if p.Metrics != nil {
		p.Metrics.IncWriteCommands(1)
	}

	if err := p.Driver.HandlePut(deviceName, device.AddressHandle, driverReqs, driverVals, options); err != nil {
		return coreerrors.Wrap(coreerrors.KindDriverError, "driver HandlePut failed", err)
	}
	return nil
}

// parseDeviceString interprets a device-level string (a default value,
// or the result of an incoming enum-mapping lookup) as the resource's
// declared type.
func parseDeviceString(s string, t models.ValueType) (models.Value, error) {
	switch {
	case t == models.ValueTypeBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return models.Value{}, err
		}
		return models.Value{Type: t, BoolValue: b}, nil
	case t == models.ValueTypeString:
		return models.Value{Type: t, StringValue: s}, nil
	case t.IsNumeric():
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return models.Value{}, err
		}
		return models.Value{Type: t, NumberValue: f}, nil
	default:
		return models.Value{Type: models.ValueTypeString, StringValue: s}, nil
	}
}
