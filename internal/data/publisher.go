// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package data

import (
	"context"
	"fmt"

	"github.com/openedge-platform/device-service-core/internal/bus"
	"github.com/openedge-platform/device-service-core/internal/common"
	"github.com/openedge-platform/device-service-core/internal/logging"
	"github.com/openedge-platform/device-service-core/internal/models"
)

// Publisher implements internal/command.EventPublisher by serializing a
// cooked event, wrapping it in a bus envelope, and publishing it on
// "<prefix>/events/device/<profile>/<device>/<command>" (§6).
//
// Publication is fire-and-forget: a hard publish failure is logged at
// ERROR and the event is dropped, never retried (§4.5) -- retry is the
// bus binding's concern, not this layer's. Counting a published event
// toward the telemetry registry (events-sent/readings-sent) is the
// caller's responsibility, since the caller already knows whether the
// publish actually happened; see internal/command.Pipeline,
// internal/command.AsyncHandler and internal/autoevent.Manager.
type Publisher struct {
	Client      bus.Client
	TopicPrefix string
	Logger      logging.Client
}

func (p *Publisher) Publish(ctx context.Context, event models.Event) error {
	payload, contentType, err := SerializeEvent(event)
	if err != nil {
		p.Logger.Error("failed to serialize event for device %s: %v", event.DeviceName, err)
		return err
	}

	corrID := common.CorrelationIDFrom(ctx)
	if corrID == "" {
		corrID = common.NewCorrelationID()
	}

	envelope := models.Envelope{
		ApiVersion:    common.ApiVersion,
		CorrelationID: corrID,
		ContentType:   contentType,
		ErrorCode:     0,
		Payload:       payload,
	}
	encoded, err := bus.EncodeEnvelope(envelope)
	if err != nil {
		p.Logger.Error("failed to encode envelope for device %s: %v", event.DeviceName, err)
		return err
	}

	topic := fmt.Sprintf("%s/events/device/%s/%s/%s", p.TopicPrefix, event.ProfileName, event.DeviceName, event.SourceName)
	if err := p.Client.Publish(ctx, topic, encoded); err != nil {
		p.Logger.Error("failed to publish event on %s: %v", topic, err)
		return err
	}

	return nil
}

var _ interface {
	Publish(ctx context.Context, event models.Event) error
} = (*Publisher)(nil)
