// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package bus

import (
	"context"
	"sync"

	"github.com/openedge-platform/device-service-core/internal/common"
	edgeerr "github.com/openedge-platform/device-service-core/internal/errors"
	"github.com/openedge-platform/device-service-core/internal/logging"
	"github.com/openedge-platform/device-service-core/internal/models"
)

// HandlerFunc handles one decoded request. It returns the numeric status
// to report back (the handlers in this module use HTTP status codes,
// http.StatusOK on success) and, when non-nil, a reply payload to
// wrap in a response envelope and publish.
type HandlerFunc func(ctx context.Context, request []byte, pathParams, queryParams map[string]string) (status int, reply []byte)

type registration struct {
	template *Template
	handler  HandlerFunc
}

// Dispatcher owns the (small, mutex-guarded) handler list for one bus
// client and implements the request/reply protocol of §4.8.
type Dispatcher struct {
	mu           sync.Mutex
	regs         []registration
	client       Client
	serviceName  string
	responseBase string // "<prefix>/response/<service>"
	logger       logging.Client
}

func NewDispatcher(client Client, topicPrefix, serviceName string, logger logging.Client) *Dispatcher {
	return &Dispatcher{
		client:       client,
		serviceName:  serviceName,
		responseBase: topicPrefix + "/response/" + serviceName,
		logger:       logger,
	}
}

// Register installs handler for pattern. Registration order matters:
// more specific templates must be registered before more general ones,
// since matching is head-to-tail and the first match wins.
func (d *Dispatcher) Register(pattern string, handler HandlerFunc) error {
	tmpl, err := Compile(pattern)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.regs = append(d.regs, registration{template: tmpl, handler: handler})
	return nil
}

// SubscriptionPrefixes returns the distinct MQTT-style subscription
// prefixes ("#"-suffixed bases) implied by the registered templates, for
// the binding to actually subscribe to.
func (d *Dispatcher) SubscriptionPrefixes() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, r := range d.regs {
		sub := r.template.MQTTSubscription()
		if !seen[sub] {
			seen[sub] = true
			out = append(out, sub)
		}
	}
	return out
}

// HandleMessage is the binding's entry point on every inbound message:
// it decodes the envelope, finds the first matching handler, invokes it
// with the correlation id installed on the context, and publishes a
// response envelope if the handler produced a reply.
func (d *Dispatcher) HandleMessage(ctx context.Context, topic string, payload []byte) {
	envelope, err := DecodeEnvelope(payload)
	if err != nil {
		d.logger.Error("failed to decode envelope on topic %s: %v", topic, err)
		return
	}

	corrID := envelope.CorrelationID
	if corrID == "" {
		corrID = common.NewCorrelationID()
	}
	ctx = common.WithCorrelationID(ctx, corrID)

	d.mu.Lock()
	regs := d.regs
	d.mu.Unlock()

	var matched *registration
	var params map[string]string
	for i := range regs {
		if p, ok := regs[i].template.Match(topic); ok {
			matched = &regs[i]
			params = p
			break
		}
	}
	if matched == nil {
		d.logger.Warn("no handler registered for topic %s", topic)
		return
	}

	status, reply := matched.handler(ctx, envelope.Payload, params, envelope.QueryParams)

	if reply == nil {
		return
	}

	respEnvelope := models.Envelope{
		ApiVersion:    common.ApiVersion,
		CorrelationID: corrID,
		RequestID:     envelope.RequestID,
		ContentType:   models.ContentTypeJSON,
		ErrorCode:     status,
		Payload:       reply,
	}
	encoded, err := EncodeEnvelope(respEnvelope)
	if err != nil {
		d.logger.Error("failed to encode response envelope: %v", err)
		return
	}

	respTopic := d.responseBase + "/" + envelope.RequestID
	if err := d.client.Publish(ctx, respTopic, encoded); err != nil {
		d.logger.Error("failed to publish response on %s: %v", respTopic, err)
	}
}

// ErrNoHandler is returned by callers that need to distinguish "no
// registered handler" from other dispatch failures.
var ErrNoHandler = edgeerr.New(edgeerr.KindNotFound, "no handler registered for topic")
