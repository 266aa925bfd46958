// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openedge-platform/device-service-core/internal/bus"
	"github.com/openedge-platform/device-service-core/internal/common"
	"github.com/openedge-platform/device-service-core/internal/logging"
	"github.com/openedge-platform/device-service-core/internal/models"
)

// Publisher periodically publishes every metric named in Enabled (the
// Writable/Telemetry/Metrics/<name> config gate) on
// "<prefix>/telemetry/<service>/<metric>", one message per metric, per
// §6's topic list. Interval and Enabled are read fresh on every tick so a
// Writable/* reconfiguration takes effect without a restart (§4.9).
type Publisher struct {
	Registry    *Registry
	Client      bus.Client
	TopicPrefix string
	ServiceName string
	Logger      logging.Client

	Interval func() time.Duration
	Enabled  func() map[string]bool
}

// Run publishes metrics on a ticker until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	interval := p.Interval()
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.publishOnce(ctx)
			if next := p.Interval(); next > 0 && next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

func (p *Publisher) publishOnce(ctx context.Context) {
	snapshot := p.Registry.Snapshot()
	enabled := p.Enabled()

	for name, value := range snapshot {
		if enabled != nil && !enabled[name] {
			continue
		}
		payload, err := json.Marshal(map[string]int64{name: value})
		if err != nil {
			p.Logger.Error("failed to encode metric %s: %v", name, err)
			continue
		}

		envelope := models.Envelope{
			ApiVersion:    common.ApiVersion,
			CorrelationID: common.NewCorrelationID(),
			ContentType:   models.ContentTypeJSON,
			Payload:       payload,
		}
		encoded, err := bus.EncodeEnvelope(envelope)
		if err != nil {
			p.Logger.Error("failed to encode telemetry envelope for %s: %v", name, err)
			continue
		}

		topic := fmt.Sprintf("%s/telemetry/%s/%s", p.TopicPrefix, p.ServiceName, name)
		if err := p.Client.Publish(ctx, topic, encoded); err != nil {
			p.Logger.Error("failed to publish metric %s on %s: %v", name, topic, err)
		}
	}
}
