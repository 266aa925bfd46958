// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

// Package redis is the Redis binding of the message-bus layer. It is
// built on Redis pub/sub (PUBLISH and PSUBSCRIBE); it does not use Redis
// Streams. The binding holds two connections: one for publish (under a mutex,
// reconnecting on error) and one dedicated to a blocking subscribe loop
// running on a background goroutine. Topic slashes are remapped to
// dots, since Redis pub/sub pattern matching treats '/' as an ordinary
// character rather than a hierarchy separator (§4.8).
package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/openedge-platform/device-service-core/internal/bus"
	edgeerr "github.com/openedge-platform/device-service-core/internal/errors"
	"github.com/openedge-platform/device-service-core/internal/logging"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Binding implements bus.Client over Redis pub/sub with the MQTT-style
// topic grammar remapped per RedisTopic/MQTTTopic in the bus package.
type Binding struct {
	cfg Config

	pubMu  sync.Mutex
	pubCli *goredis.Client

	subCli *goredis.Client
	logger logging.Client

	cancel context.CancelFunc
}

func New(cfg Config, logger logging.Client) *Binding {
	return &Binding{cfg: cfg, logger: logger}
}

func (b *Binding) addr() string {
	return fmt.Sprintf("%s:%d", b.cfg.Host, b.cfg.Port)
}

func (b *Binding) newClient() *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     b.addr(),
		Username: b.cfg.Username,
		Password: b.cfg.Password,
	})
}

func (b *Binding) Connect(ctx context.Context) error {
	b.pubMu.Lock()
	b.pubCli = b.newClient()
	b.pubMu.Unlock()

	b.subCli = b.newClient()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := b.subCli.Ping(pingCtx).Err(); err != nil {
		return edgeerr.Wrap(edgeerr.KindServerDown, "redis ping failed", err)
	}
	return nil
}

func (b *Binding) Disconnect() error {
	if b.cancel != nil {
		b.cancel()
	}
	b.pubMu.Lock()
	if b.pubCli != nil {
		b.pubCli.Close()
	}
	b.pubMu.Unlock()
	if b.subCli != nil {
		return b.subCli.Close()
	}
	return nil
}

// Publish reconnects once on error, per the binding's "reconnect on
// error" contract, before surfacing failure to the caller.
func (b *Binding) Publish(ctx context.Context, topic string, payload []byte) error {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	channel := bus.RedisTopic(topic)
	err := b.pubCli.Publish(ctx, channel, payload).Err()
	if err == nil {
		return nil
	}

	b.logger.Warn("redis publish failed, reconnecting: %v", err)
	b.pubCli.Close()
	b.pubCli = b.newClient()
	if err2 := b.pubCli.Publish(ctx, channel, payload).Err(); err2 != nil {
		return edgeerr.Wrap(edgeerr.KindServerDown, "redis publish failed after reconnect", err2)
	}
	return nil
}

// Subscribe starts a new pattern subscription and background receive
// loop for prefix, remapped to Redis's glob pattern convention. Every
// call starts its own loop, which ends when ctx is cancelled; the
// binding keeps the cancel function of the most recent call only, and
// that is the one Disconnect invokes.
func (b *Binding) Subscribe(ctx context.Context, prefix string, handler func(topic string, payload []byte)) error {
	pattern := bus.RedisTopic(prefix)

	subCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	pubsub := b.subCli.PSubscribe(subCtx, pattern)
	if _, err := pubsub.Receive(subCtx); err != nil {
		cancel()
		return edgeerr.Wrap(edgeerr.KindServerDown, "redis psubscribe failed", err)
	}

	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler(bus.MQTTTopic(msg.Channel), []byte(msg.Payload))
			}
		}
	}()
	return nil
}

var _ bus.Client = (*Binding)(nil)
