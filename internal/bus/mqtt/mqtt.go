// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

// Package mqtt is the MQTT binding of the message-bus layer. The
// binding owns an asynchronous paho client; subscriptions are
// QoS-configurable; credentials come from the secret store under the
// configured key (§4.8).
package mqtt

import (
	"context"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/openedge-platform/device-service-core/internal/bus"
	edgeerr "github.com/openedge-platform/device-service-core/internal/errors"
	"github.com/openedge-platform/device-service-core/internal/logging"
)

// Config is the MessageBus/* configuration subtree relevant to the MQTT
// binding.
type Config struct {
	Host            string
	Port            int
	ClientID        string
	Qos             byte
	Retained        bool
	KeepAlive       time.Duration
	Username        string // resolved from the secret store by the caller
	Password        string
	ConnectDeadline time.Duration
	SkipCertVerify  bool
}

// Binding implements bus.Client over paho.mqtt.golang.
type Binding struct {
	cfg    Config
	client paho.Client
	logger logging.Client
}

func New(cfg Config, logger logging.Client) *Binding {
	return &Binding{cfg: cfg, logger: logger}
}

func (b *Binding) Connect(ctx context.Context) error {
	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", b.cfg.Host, b.cfg.Port))
	opts.SetClientID(b.cfg.ClientID)
	opts.SetKeepAlive(b.cfg.KeepAlive)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	if b.cfg.Username != "" {
		opts.SetUsername(b.cfg.Username)
		opts.SetPassword(b.cfg.Password)
	}
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		b.logger.Warn("mqtt connection lost: %v", err)
	})

	b.client = paho.NewClient(opts)

	deadline := b.cfg.ConnectDeadline
	if deadline <= 0 {
		deadline = 30 * time.Second
	}

	token := b.client.Connect()
	if !token.WaitTimeout(deadline) {
		return edgeerr.Newf(edgeerr.KindServerDown, "mqtt broker %s:%d did not connect within %s", b.cfg.Host, b.cfg.Port, deadline)
	}
	if err := token.Error(); err != nil {
		return edgeerr.Wrap(edgeerr.KindServerDown, "mqtt connect failed", err)
	}
	return nil
}

func (b *Binding) Disconnect() error {
	if b.client != nil && b.client.IsConnected() {
		b.client.Disconnect(250)
	}
	return nil
}

// Publish is non-blocking per §4.5: paho buffers internally while
// disconnected, and we only surface a hard failure (timeout on an
// established publish) to the caller to log and drop.
func (b *Binding) Publish(ctx context.Context, topic string, payload []byte) error {
	token := b.client.Publish(topic, b.cfg.Qos, b.cfg.Retained, payload)
	if !token.WaitTimeout(10 * time.Second) {
		return edgeerr.Newf(edgeerr.KindServerDown, "mqtt publish to %s timed out", topic)
	}
	return token.Error()
}

func (b *Binding) Subscribe(ctx context.Context, prefix string, handler func(topic string, payload []byte)) error {
	token := b.client.Subscribe(prefix, b.cfg.Qos, func(_ paho.Client, msg paho.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(10 * time.Second) {
		return edgeerr.Newf(edgeerr.KindServerDown, "mqtt subscribe to %s timed out", prefix)
	}
	return token.Error()
}

var _ bus.Client = (*Binding)(nil)
