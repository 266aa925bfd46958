// -*- Mode: Go; indent-tabs-mode: t -*-
//
// Copyright (C) 2018-2019 IOTech Ltd
//
// SPDX-License-Identifier: Apache-2.0

package bootstrap

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openedge-platform/device-service-core/internal/common"
	"github.com/openedge-platform/device-service-core/internal/secret"
)

func TestRetryIntervalFallsBackToOneSecondOnInvalidTimeout(t *testing.T) {
	cfg := &common.Config{Service: common.ServiceInfo{Timeout: "not-a-duration"}}
	assert.Equal(t, time.Second, retryInterval(cfg))
}

func TestRetryIntervalParsesConfiguredTimeout(t *testing.T) {
	cfg := &common.Config{Service: common.ServiceInfo{Timeout: "250ms"}}
	assert.Equal(t, 250*time.Millisecond, retryInterval(cfg))
}

func TestHasPrefixMatchesDriverSubtree(t *testing.T) {
	assert.True(t, hasPrefix("Driver/PollRate", "Driver/"))
	assert.False(t, hasPrefix("Writable/LogLevel", "Driver/"))
	assert.False(t, hasPrefix("Drv", "Driver/"))
}

func TestResolveCredentialsReturnsEmptyWhenAuthModeIsNone(t *testing.T) {
	cfg := &common.Config{MessageBus: common.MessageBusInfo{AuthMode: "none", SecretName: "mqtt-bus"}}
	path := filepath.Join(t.TempDir(), "secrets.json")
	provider, err := secret.NewInsecureProvider(path, nil)
	require.NoError(t, err)
	require.NoError(t, provider.StoreSecret("mqtt-bus", map[string]string{"username": "svc", "password": "hunter2"}))

	username, password := resolveCredentials(cfg, provider)

	assert.Empty(t, username)
	assert.Empty(t, password)
}

func TestResolveCredentialsReadsSecretWhenAuthModeConfigured(t *testing.T) {
	cfg := &common.Config{MessageBus: common.MessageBusInfo{AuthMode: "usernamepassword", SecretName: "mqtt-bus"}}
	path := filepath.Join(t.TempDir(), "secrets.json")
	provider, err := secret.NewInsecureProvider(path, nil)
	require.NoError(t, err)
	require.NoError(t, provider.StoreSecret("mqtt-bus", map[string]string{"username": "svc", "password": "hunter2"}))

	username, password := resolveCredentials(cfg, provider)

	assert.Equal(t, "svc", username)
	assert.Equal(t, "hunter2", password)
}

func TestResolveCredentialsReturnsEmptyWhenSecretMissing(t *testing.T) {
	cfg := &common.Config{MessageBus: common.MessageBusInfo{AuthMode: "usernamepassword", SecretName: "does-not-exist"}}
	path := filepath.Join(t.TempDir(), "secrets.json")
	provider, err := secret.NewInsecureProvider(path, nil)
	require.NoError(t, err)

	username, password := resolveCredentials(cfg, provider)

	assert.Empty(t, username)
	assert.Empty(t, password)
}

func TestDiscoveryTriggerOrNilReturnsUntypedNilForNilCoordinator(t *testing.T) {
	trigger := discoveryTriggerOrNil(nil)
	assert.Nil(t, trigger)
}
