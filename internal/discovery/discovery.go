// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

// Package discovery coordinates device discovery runs (EXPANSION C
// supplement item 4): request-ID correlation, single-in-flight
// coalescing, announcing results on
// "<prefix>/discovery/<service>/<requestid>", and matching each
// discovered device against the provision-watcher list before posting an
// add-device request.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openedge-platform/device-service-core/internal/bus"
	"github.com/openedge-platform/device-service-core/internal/common"
	edgeerr "github.com/openedge-platform/device-service-core/internal/errors"
	"github.com/openedge-platform/device-service-core/internal/logging"
	"github.com/openedge-platform/device-service-core/internal/models"
	"github.com/openedge-platform/device-service-core/internal/provision"
)

// Discoverer is the driver's optional synchronous discovery capability.
type Discoverer interface {
	Discover(requestID string) ([]models.DiscoveredDevice, error)
	StopDiscovery(requestID string) bool
}

// AddDeviceRequester is called for every admitted discovered device;
// concretely, internal/handler/callback's device-add path.
type AddDeviceRequester interface {
	RequestAddDevice(ctx context.Context, discovered models.DiscoveredDevice, watcher *models.ProvisionWatcher) error
}

// Coordinator runs at most one discovery at a time, matching the
// original's single in-flight discover_lock.
type Coordinator struct {
	Driver      Discoverer
	Watchers    *provision.List
	Requester   AddDeviceRequester
	Client      bus.Client
	TopicPrefix string
	ServiceName string
	Logger      logging.Client

	mu        sync.Mutex
	inFlight  bool
	requestID string
}

// ErrAlreadyInFlight is returned by TriggerDiscovery when a run is
// already underway; concurrent triggers are coalesced (§ supplement 4).
var ErrAlreadyInFlight = edgeerr.New(edgeerr.KindLocked, "a discovery run is already in flight")

// TriggerDiscovery starts one discovery run in the background and
// returns immediately; the result is announced asynchronously on the
// discovery response topic.
func (c *Coordinator) TriggerDiscovery() error {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrAlreadyInFlight
	}
	requestID := uuid.New().String()
	c.inFlight = true
	c.requestID = requestID
	c.mu.Unlock()

	go c.run(requestID)
	return nil
}

func (c *Coordinator) run(requestID string) {
	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.requestID = ""
		c.mu.Unlock()
	}()

	ctx := common.WithCorrelationID(context.Background(), requestID)
	discovered, err := c.Driver.Discover(requestID)
	if err != nil {
		c.Logger.Error("discovery run %s failed: %v", requestID, err)
		c.announce(ctx, requestID, nil, err)
		return
	}

	var admitted []models.DiscoveredDevice
	for _, d := range discovered {
		watcher := c.Watchers.Match(d)
		if watcher == nil {
			continue
		}
		if err := c.Requester.RequestAddDevice(ctx, d, watcher); err != nil {
			c.Logger.Error("failed to request add for discovered device %s: %v", d.Name, err)
			continue
		}
		admitted = append(admitted, d)
	}

	c.announce(ctx, requestID, admitted, nil)
}

type discoveryResult struct {
	RequestID string   `json:"requestId"`
	Admitted  []string `json:"admittedDevices"`
	Error     string   `json:"error,omitempty"`
}

func (c *Coordinator) announce(ctx context.Context, requestID string, admitted []models.DiscoveredDevice, runErr error) {
	names := make([]string, len(admitted))
	for i, d := range admitted {
		names[i] = d.Name
	}
	result := discoveryResult{RequestID: requestID, Admitted: names}
	if runErr != nil {
		result.Error = runErr.Error()
	}

	payload, err := json.Marshal(result)
	if err != nil {
		c.Logger.Error("failed to encode discovery result %s: %v", requestID, err)
		return
	}

	envelope := models.Envelope{
		ApiVersion:    common.ApiVersion,
		CorrelationID: requestID,
		ContentType:   models.ContentTypeJSON,
		Payload:       payload,
	}
	encoded, err := bus.EncodeEnvelope(envelope)
	if err != nil {
		c.Logger.Error("failed to encode discovery envelope %s: %v", requestID, err)
		return
	}

	topic := fmt.Sprintf("%s/discovery/%s/%s", c.TopicPrefix, c.ServiceName, requestID)
	if err := c.Client.Publish(ctx, topic, encoded); err != nil {
		c.Logger.Error("failed to publish discovery result on %s: %v", topic, err)
	}
}

// RunPeriodic triggers a discovery run every interval until ctx is
// cancelled, per Device/Discovery/Enabled + Device/Discovery/Interval
// (§6). A run already in flight is silently skipped rather than queued.
func (c *Coordinator) RunPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.TriggerDiscovery(); err != nil && err != ErrAlreadyInFlight {
				c.Logger.Error("periodic discovery trigger failed: %v", err)
			}
		}
	}
}

var _ interface{ TriggerDiscovery() error } = (*Coordinator)(nil)
