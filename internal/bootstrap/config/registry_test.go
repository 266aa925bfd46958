// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openedge-platform/device-service-core/internal/common"
	"github.com/openedge-platform/device-service-core/internal/logging"
)

type fakeRegistry struct {
	alive          bool
	aliveAfter     int
	readyAfter     int
	getAllCalls    int
	allServices    map[string]string
	deviceServices map[string]string
	private        map[string]string
}

func (r *fakeRegistry) IsAlive() bool {
	r.aliveAfter--
	return r.aliveAfter <= 0
}

func (r *fakeRegistry) GetAll(path string) (map[string]string, error) {
	switch path {
	case commonConfigAllServicesPath:
		return r.allServices, nil
	case commonConfigDeviceServicesPath:
		r.getAllCalls++
		tree := map[string]string{}
		for k, v := range r.deviceServices {
			tree[k] = v
		}
		if r.getAllCalls >= r.readyAfter {
			tree[commonConfigReadyKey] = "true"
		}
		return tree, nil
	default:
		return r.private, nil
	}
}

func (r *fakeRegistry) WatchWritable(ctx context.Context, path string, onChange func(key, value string)) error {
	onChange("LogLevel", "DEBUG")
	return nil
}

func TestLoadMergesCommonTreeWithDeviceServicesWinningAndAppliesPrivateTree(t *testing.T) {
	reg := &fakeRegistry{
		aliveAfter: 1,
		readyAfter: 1,
		allServices: map[string]string{
			"Service/Timeout": "5000",
			"Writable/LogLevel": "WARN",
		},
		deviceServices: map[string]string{
			"Writable/LogLevel": "ERROR", // must win over all-services
		},
		private: map[string]string{
			"MessageBus/Host": "bus.example.com",
		},
	}
	cfg := &common.Config{}
	logger := logging.NewClient("device-test", logging.INFO)

	err := Load(context.Background(), reg, "device-test", cfg, BootstrapOptions{Retries: 3, Interval: time.Millisecond}, logger)

	require.NoError(t, err)
	assert.Equal(t, "5000", cfg.Service.Timeout)
	assert.Equal(t, "ERROR", cfg.Writable.LogLevel)
	assert.Equal(t, "bus.example.com", cfg.MessageBus.Host)
}

func TestLoadRetriesUntilCommonConfigReadyGateOpens(t *testing.T) {
	reg := &fakeRegistry{
		aliveAfter:     1,
		readyAfter:     3,
		allServices:    map[string]string{},
		deviceServices: map[string]string{"Service/Host": "0.0.0.0"},
		private:        map[string]string{},
	}
	cfg := &common.Config{}
	logger := logging.NewClient("device-test", logging.INFO)

	err := Load(context.Background(), reg, "device-test", cfg, BootstrapOptions{Retries: 5, Interval: time.Millisecond}, logger)

	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Service.Host)
	assert.Equal(t, 3, reg.getAllCalls)
}

func TestLoadFailsWhenCommonConfigNeverBecomesReady(t *testing.T) {
	reg := &fakeRegistry{
		aliveAfter:     1,
		readyAfter:     100,
		allServices:    map[string]string{},
		deviceServices: map[string]string{},
		private:        map[string]string{},
	}
	cfg := &common.Config{}
	logger := logging.NewClient("device-test", logging.INFO)

	err := Load(context.Background(), reg, "device-test", cfg, BootstrapOptions{Retries: 2, Interval: time.Millisecond}, logger)

	assert.Error(t, err)
}

func TestWatchAppliesWritablePrefixedKeyAndInvokesCallback(t *testing.T) {
	reg := &fakeRegistry{}
	cfg := &common.Config{}
	logger := logging.NewClient("device-test", logging.INFO)

	var reloaded string
	err := Watch(context.Background(), reg, "device-test", cfg, func(key string) { reloaded = key }, logger)

	require.NoError(t, err)
	assert.Equal(t, "DEBUG", cfg.Writable.LogLevel)
	assert.Equal(t, "Writable/LogLevel", reloaded)
}
